package web

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderdesk/internal/cache"
	"github.com/Additional-Code/orderdesk/internal/config"
	"github.com/Additional-Code/orderdesk/internal/dashboard"
	"github.com/Additional-Code/orderdesk/internal/dto"
	"github.com/Additional-Code/orderdesk/internal/orderlist"
)

// SessionCookie carries the browser's dashboard session id.
const SessionCookie = "orderdesk_session"

const prefsTimeout = 2 * time.Second

// Session is one browser's dashboard.
type Session struct {
	ID         string
	Controller *dashboard.Controller
	Editor     *orderlist.StatusEditor

	lastSeen    time.Time
	unsubscribe func()
}

// Registry owns per-browser sessions and evicts idle ones.
type Registry struct {
	svc      OrderService
	prefs    cache.Store
	cfg      config.Dashboard
	logger   *zap.Logger
	schedule dashboard.Scheduler
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
	base     context.Context
	stop     context.CancelFunc
}

// RegistryOption customises a Registry.
type RegistryOption func(*Registry)

// WithScheduler sets the debounce scheduler of new sessions.
func WithScheduler(s dashboard.Scheduler) RegistryOption {
	return func(r *Registry) { r.schedule = s }
}

// WithClock overrides time.Now for idle tracking.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

// NewRegistry builds a Registry. Filter preferences are kept in prefs.
func NewRegistry(svc OrderService, prefs cache.Store, cfg config.Config, logger *zap.Logger, opts ...RegistryOption) *Registry {
	base, stop := context.WithCancel(context.Background())
	r := &Registry{
		svc:      svc,
		prefs:    prefs,
		cfg:      cfg.Dashboard,
		logger:   logger.Named("sessions"),
		now:      time.Now,
		sessions: make(map[string]*Session),
		base:     base,
		stop:     stop,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Session returns the caller's session, creating it and setting the cookie
// when the browser has none or an expired one.
func (r *Registry) Session(c echo.Context) *Session {
	id := ""
	if cookie, err := c.Cookie(SessionCookie); err == nil {
		if s := r.lookup(cookie.Value); s != nil {
			return s
		}
		// An evicted or pre-restart session keeps its id so saved filters return.
		if _, err := uuid.Parse(cookie.Value); err == nil {
			id = cookie.Value
		}
	}
	if id == "" {
		id = uuid.NewString()
	}

	s := r.create(c.Request().Context(), id)
	c.SetCookie(&http.Cookie{
		Name:     SessionCookie,
		Value:    s.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(r.cfg.SessionTTL.Seconds()),
	})
	return s
}

// Touch marks s as active.
func (r *Registry) Touch(s *Session) {
	r.mu.Lock()
	s.lastSeen = r.now()
	r.mu.Unlock()
}

func (r *Registry) lookup(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil
	}
	s.lastSeen = r.now()
	return s
}

func (r *Registry) create(ctx context.Context, id string) *Session {
	logger := r.logger.With(zap.String("session", id))

	ctrl := dashboard.New(r.svc, dashboard.Options{
		DefaultPageSize: r.cfg.DefaultPageSize,
		SearchDebounce:  r.cfg.SearchDebounce,
		Schedule:        r.schedule,
		Logger:          logger,
	})

	s := &Session{
		ID:         id,
		Controller: ctrl,
		Editor:     orderlist.NewStatusEditor(r.svc, ctrl, logger),
	}

	var saved dto.OrderFilters
	loadCtx, cancel := context.WithTimeout(ctx, prefsTimeout)
	if err := cache.GetJSON(loadCtx, r.prefs, prefsKey(id), &saved); err == nil {
		ctrl.Restore(saved)
	}
	cancel()

	last := ctrl.Snapshot().Filters
	var lastMu sync.Mutex
	s.unsubscribe = ctrl.Subscribe(func(st dashboard.State) {
		lastMu.Lock()
		defer lastMu.Unlock()
		if st.Filters == last {
			return
		}
		last = st.Filters
		r.savePrefs(id, st.Filters)
	})

	r.mu.Lock()
	if existing, ok := r.sessions[id]; ok {
		// A concurrent request revived the same id first.
		existing.lastSeen = r.now()
		r.mu.Unlock()
		s.close()
		return existing
	}
	s.lastSeen = r.now()
	r.sessions[id] = s
	base := r.base
	r.mu.Unlock()

	ctrl.Start(base)
	logger.Debug("dashboard session created")
	return s
}

func (r *Registry) savePrefs(id string, filters dto.OrderFilters) {
	ctx, cancel := context.WithTimeout(r.base, prefsTimeout)
	defer cancel()
	if err := cache.SetJSON(ctx, r.prefs, prefsKey(id), filters, r.cfg.SessionTTL); err != nil {
		r.logger.Warn("saving dashboard filters failed", zap.String("session", id), zap.Error(err))
	}
}

func prefsKey(id string) string {
	return cache.Key("dashboard", "session", id, "filters")
}

// Sweep closes sessions idle for longer than the session TTL and returns how
// many were evicted.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.cfg.SessionTTL)

	r.mu.Lock()
	var idle []*Session
	for id, s := range r.sessions {
		if s.lastSeen.Before(cutoff) {
			idle = append(idle, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range idle {
		s.close()
	}
	if len(idle) > 0 {
		r.logger.Info("evicted idle dashboard sessions", zap.Int("count", len(idle)))
	}
	return len(idle)
}

// Len is the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Start runs the idle sweeper until Stop.
func (r *Registry) Start(context.Context) error {
	interval := r.cfg.SessionTTL / 2
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-r.base.Done():
				return
			case <-ticker.C:
				r.Sweep()
			}
		}
	}()
	return nil
}

// Stop closes every session.
func (r *Registry) Stop(context.Context) error {
	r.stop()

	r.mu.Lock()
	all := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		all = append(all, s)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, s := range all {
		s.close()
	}
	return nil
}

func (s *Session) close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.Controller.Close()
}
