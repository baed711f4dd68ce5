package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderdesk/internal/dto"
)

// DefaultSearchDebounce is the quiet period before typed search is committed.
const DefaultSearchDebounce = 500 * time.Millisecond

// Lister fetches pages of orders.
type Lister interface {
	ListOrders(ctx context.Context, filters dto.OrderFilters) (*dto.OrdersResponse, error)
}

// Options configures a Controller.
type Options struct {
	DefaultPageSize int
	SearchDebounce  time.Duration
	Schedule        Scheduler
	Logger          *zap.Logger
}

// State is an immutable snapshot of the dashboard.
type State struct {
	Filters     dto.OrderFilters
	SearchInput string
	Orders      []dto.Order
	Total       int
	Loading     bool
	Loaded      bool
	Err         error
	Revision    uint64
}

// UIPage is the 0-based page index shown to the user.
func (s State) UIPage() int {
	return s.Filters.Page - 1
}

// PageCount is the number of pages for the current total.
func (s State) PageCount() int {
	return dto.PageCount(s.Total, s.Filters.PageSize)
}

// Controller owns filter, search and pagination state for one dashboard view
// and drives list fetches. It is safe for concurrent use.
type Controller struct {
	lister    Lister
	logger    *zap.Logger
	debouncer *Debouncer
	stale     metric.Int64Counter

	mu        sync.Mutex
	state     State
	base      context.Context
	stop      context.CancelFunc
	seq       uint64
	cancel    context.CancelFunc
	started   bool
	closed    bool
	subs      map[int]func(State)
	nextSubID int
	pending   int
	idle      chan struct{}
	// fetchErr marks Err as coming from a list fetch; only those clear on success.
	fetchErr bool

	notifyMu     sync.Mutex
	lastNotified uint64
}

// New creates a Controller with default filters (page 1). It does not fetch
// until Start.
func New(lister Lister, opts Options) *Controller {
	if opts.DefaultPageSize <= 0 {
		opts.DefaultPageSize = dto.DefaultPageSize
	}
	if opts.SearchDebounce <= 0 {
		opts.SearchDebounce = DefaultSearchDebounce
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	stale, err := otel.Meter("github.com/Additional-Code/orderdesk/dashboard").Int64Counter(
		"dashboard.stale_fetches",
		metric.WithDescription("List results discarded because a newer fetch was issued"),
	)
	if err != nil {
		opts.Logger.Warn("stale fetch counter unavailable", zap.Error(err))
	}

	base, stop := context.WithCancel(context.Background())
	return &Controller{
		lister:    lister,
		logger:    opts.Logger,
		debouncer: NewDebouncer(opts.SearchDebounce, opts.Schedule),
		stale:     stale,
		base:      base,
		stop:      stop,
		subs:      make(map[int]func(State)),
		state: State{
			Filters: dto.OrderFilters{Page: 1, PageSize: opts.DefaultPageSize},
		},
	}
}

// Start mounts the view: the current filters are fetched. Fetches are bound to
// ctx as well as to Close.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	if c.closed || c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.base, c.stop = mergeCancel(ctx, c.stop)
	snap := c.fetchLocked()
	c.mu.Unlock()
	c.notify(snap)
}

// mergeCancel derives a context from parent that is also cancelled by prev's owner.
func mergeCancel(parent context.Context, prev context.CancelFunc) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	return ctx, func() {
		cancel()
		prev()
	}
}

// Close cancels pending search commits and in-flight fetches. Further calls
// are ignored.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.debouncer.Cancel()
	if c.cancel != nil {
		c.cancel()
	}
	c.stop()
	c.subs = map[int]func(State){}
	c.mu.Unlock()
}

// Wait blocks until no fetch is in flight.
func (c *Controller) Wait() {
	_ = c.WaitContext(context.Background())
}

// WaitContext is Wait bounded by ctx.
func (c *Controller) WaitContext(ctx context.Context) error {
	c.mu.Lock()
	if c.pending == 0 {
		c.mu.Unlock()
		return nil
	}
	idle := c.idle
	c.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe registers fn for state changes. Snapshots are delivered in
// revision order and older revisions are skipped.
func (c *Controller) Subscribe(fn func(State)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// InputSearch shows term immediately and commits it as the search filter once
// input has been quiet for the debounce window.
func (c *Controller) InputSearch(term string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.state.SearchInput = term
	snap := c.touchLocked()
	c.mu.Unlock()
	c.notify(snap)

	c.debouncer.Trigger(func() { c.commitSearch(term) })
}

func (c *Controller) commitSearch(term string) {
	c.update(func(s *State) bool {
		// The box changed after the timer fired, e.g. ClearSearch ran first.
		if s.SearchInput != term || s.Filters.Search == term {
			return false
		}
		s.Filters.Search = term
		s.Filters.Page = 1
		return true
	})
}

// ClearSearch empties the displayed and committed search at once, bypassing
// the debounce window, and returns to page 1.
func (c *Controller) ClearSearch() {
	c.debouncer.Cancel()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.state.SearchInput = ""
	var snap State
	if c.state.Filters.Search != "" || c.state.Filters.Page != 1 {
		c.state.Filters.Search = ""
		c.state.Filters.Page = 1
		snap = c.fetchLocked()
	} else {
		snap = c.touchLocked()
	}
	c.mu.Unlock()
	c.notify(snap)
}

// SetStatus filters by status; empty clears the filter.
func (c *Controller) SetStatus(status dto.OrderStatus) {
	c.update(func(s *State) bool {
		if s.Filters.Status == status {
			return false
		}
		s.Filters.Status = status
		s.Filters.Page = 1
		return true
	})
}

// SetOrderType filters by order type; empty clears the filter.
func (c *Controller) SetOrderType(orderType dto.OrderType) {
	c.update(func(s *State) bool {
		if s.Filters.OrderType == orderType {
			return false
		}
		s.Filters.OrderType = orderType
		s.Filters.Page = 1
		return true
	})
}

// SetCustomerName filters by customer name substring.
func (c *Controller) SetCustomerName(name string) {
	c.update(func(s *State) bool {
		if s.Filters.CustomerName == name {
			return false
		}
		s.Filters.CustomerName = name
		s.Filters.Page = 1
		return true
	})
}

// SetUIPage navigates to the 0-based page p. Other filters are kept.
func (c *Controller) SetUIPage(p int) {
	if p < 0 {
		p = 0
	}
	c.update(func(s *State) bool {
		if s.Filters.Page == p+1 {
			return false
		}
		s.Filters.Page = p + 1
		return true
	})
}

// SetPageSize changes the page size and returns to page 1.
func (c *Controller) SetPageSize(size int) {
	if size <= 0 {
		return
	}
	c.update(func(s *State) bool {
		if s.Filters.PageSize == size && s.Filters.Page == 1 {
			return false
		}
		s.Filters.PageSize = size
		s.Filters.Page = 1
		return true
	})
}

// Refresh re-runs the current query.
func (c *Controller) Refresh() {
	c.update(func(*State) bool { return true })
}

// Restore replaces the filters wholesale, e.g. from saved preferences. The
// displayed search follows the restored search.
func (c *Controller) Restore(filters dto.OrderFilters) {
	filters = filters.Normalize()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.debouncer.Cancel()
	c.state.Filters = filters
	c.state.SearchInput = filters.Search
	var snap State
	if c.started {
		snap = c.fetchLocked()
	} else {
		snap = c.touchLocked()
	}
	c.mu.Unlock()
	c.notify(snap)
}

// ReportError surfaces err in the view without touching results. It stays
// until dismissed.
func (c *Controller) ReportError(err error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	c.state.Err = err
	c.fetchErr = false
	snap := c.touchLocked()
	c.mu.Unlock()
	c.notify(snap)
}

// DismissError clears the visible error.
func (c *Controller) DismissError() {
	c.mu.Lock()
	if c.state.Err == nil {
		c.mu.Unlock()
		return
	}
	c.state.Err = nil
	c.fetchErr = false
	snap := c.touchLocked()
	c.mu.Unlock()
	c.notify(snap)
}

// update applies mutate and fetches when it reports a change.
func (c *Controller) update(mutate func(*State) bool) {
	c.mu.Lock()
	if c.closed || !mutate(&c.state) {
		c.mu.Unlock()
		return
	}
	snap := c.fetchLocked()
	c.mu.Unlock()
	c.notify(snap)
}

// fetchLocked issues a fetch for the current filters, superseding any fetch
// still in flight. Caller holds c.mu.
func (c *Controller) fetchLocked() State {
	c.seq++
	seq := c.seq
	if c.cancel != nil {
		c.cancel()
	}
	ctx, cancel := context.WithCancel(c.base)
	c.cancel = cancel
	c.state.Loading = true
	filters := c.state.Filters
	snap := c.touchLocked()

	if c.pending == 0 {
		c.idle = make(chan struct{})
	}
	c.pending++

	go func() {
		defer c.done()
		defer cancel()
		resp, err := c.lister.ListOrders(ctx, filters)
		c.complete(seq, filters, resp, err)
	}()
	return snap
}

func (c *Controller) done() {
	c.mu.Lock()
	c.pending--
	if c.pending == 0 {
		close(c.idle)
	}
	c.mu.Unlock()
}

func (c *Controller) complete(seq uint64, filters dto.OrderFilters, resp *dto.OrdersResponse, err error) {
	c.mu.Lock()
	if seq != c.seq || c.closed {
		c.mu.Unlock()
		if c.stale != nil {
			c.stale.Add(context.Background(), 1)
		}
		c.logger.Debug("discarding stale order list", zap.Uint64("seq", seq))
		return
	}

	c.state.Loading = false
	switch {
	case err != nil:
		if !errors.Is(err, context.Canceled) {
			c.logger.Warn("order list fetch failed",
				zap.Int("page", filters.Page),
				zap.String("search", filters.Search),
				zap.Error(err),
			)
			c.state.Err = err
			c.fetchErr = true
		}
	case resp == nil:
		c.state.Err = errors.New("order list response is empty")
		c.fetchErr = true
	default:
		c.state.Orders = resp.Orders
		c.state.Total = resp.Total
		c.state.Loaded = true
		if c.fetchErr {
			c.state.Err = nil
			c.fetchErr = false
		}
	}
	snap := c.touchLocked()
	c.mu.Unlock()
	c.notify(snap)
}

// touchLocked bumps the revision and returns a snapshot. Caller holds c.mu.
func (c *Controller) touchLocked() State {
	c.state.Revision++
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() State {
	snap := c.state
	snap.Orders = append([]dto.Order(nil), c.state.Orders...)
	return snap
}

func (c *Controller) notify(snap State) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	if snap.Revision <= c.lastNotified {
		return
	}
	c.lastNotified = snap.Revision

	c.mu.Lock()
	subs := make([]func(State), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}
