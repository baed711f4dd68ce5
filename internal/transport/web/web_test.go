package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderdesk/internal/cache"
	"github.com/Additional-Code/orderdesk/internal/config"
	"github.com/Additional-Code/orderdesk/internal/dto"
	"github.com/Additional-Code/orderdesk/pkg/errorbank"
)

type fakeOrders struct {
	mu      sync.Mutex
	orders  map[dto.ID]dto.Order
	lists   []dto.OrderFilters
	patches map[dto.ID][]dto.OrderPatch
}

func newFakeOrders(orders ...dto.Order) *fakeOrders {
	f := &fakeOrders{orders: map[dto.ID]dto.Order{}, patches: map[dto.ID][]dto.OrderPatch{}}
	for _, o := range orders {
		f.orders[o.ID] = o
	}
	return f
}

func (f *fakeOrders) ListOrders(_ context.Context, filters dto.OrderFilters) (*dto.OrdersResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists = append(f.lists, filters)
	var out []dto.Order
	for _, o := range f.orders {
		if filters.Status != "" && o.Status != filters.Status {
			continue
		}
		out = append(out, o)
	}
	return &dto.OrdersResponse{Orders: out, Total: len(out), Page: filters.Page, PageSize: filters.PageSize}, nil
}

func (f *fakeOrders) GetOrder(_ context.Context, id dto.ID) (*dto.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, errorbank.NotFound("order not found")
	}
	return &o, nil
}

func (f *fakeOrders) UpdateOrder(_ context.Context, id dto.ID, patch dto.OrderPatch) (*dto.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, errorbank.NotFound("order not found")
	}
	f.patches[id] = append(f.patches[id], patch)
	if patch.Status != nil {
		o.Status = *patch.Status
	}
	if patch.PreparationNotes != nil {
		o.PreparationNotes = *patch.PreparationNotes
	}
	f.orders[id] = o
	return &o, nil
}

func (f *fakeOrders) listCalls() []dto.OrderFilters {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]dto.OrderFilters(nil), f.lists...)
}

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStore() *memStore { return &memStore{data: map[string][]byte{}} }

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return v, nil
}

func (m *memStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

type harness struct {
	e        *echo.Echo
	svc      *fakeOrders
	prefs    *memStore
	sessions *Registry
	cookie   *http.Cookie
}

func testConfig() config.Config {
	return config.Config{Dashboard: config.Dashboard{
		DefaultPageSize:   10,
		SearchDebounce:    10 * time.Millisecond,
		PageSizeOptions:   []int{5, 10, 25},
		SessionTTL:        time.Hour,
		RefetchAfterWrite: true,
	}}
}

func newHarness(t *testing.T, svc *fakeOrders, opts ...RegistryOption) *harness {
	t.Helper()
	cfg := testConfig()
	prefs := newMemStore()
	sessions := NewRegistry(svc, prefs, cfg, zap.NewNop(), opts...)
	t.Cleanup(func() { _ = sessions.Stop(context.Background()) })

	renderer, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	e := echo.New()
	NewHandler(svc, sessions, renderer, cfg, zap.NewNop()).Register(e)
	return &harness{e: e, svc: svc, prefs: prefs, sessions: sessions}
}

func (h *harness) do(t *testing.T, method, target string, form url.Values, htmx bool) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	if h.cookie != nil {
		req.AddCookie(h.cookie)
	}
	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookie {
			h.cookie = c
		}
	}
	return rec
}

func (h *harness) session(t *testing.T) *Session {
	t.Helper()
	if h.cookie == nil {
		t.Fatal("no session cookie")
	}
	s := h.sessions.lookup(h.cookie.Value)
	if s == nil {
		t.Fatal("session not registered")
	}
	s.Controller.Wait()
	return s
}

func sampleOrders() []dto.Order {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return []dto.Order{
		{ID: "1", CustomerName: "Ada Lovelace", CustomerEmail: "ada@example.com", OrderType: dto.OrderTypeDelivery,
			Status: dto.StatusPending, Total: 12.99, CreatedAt: created,
			Items: []dto.OrderItem{{ID: "a", Name: "Margherita", Quantity: 1, Price: 12.99}}},
		{ID: "2", CustomerName: "Grace Hopper", CustomerEmail: "grace@example.com", OrderType: dto.OrderTypePickup,
			Status: dto.StatusReady, Total: 9.99, CreatedAt: created,
			Items: []dto.OrderItem{{ID: "b", Name: "Greek Salad", Quantity: 1, Price: 9.99}}},
	}
}

func TestIndexRendersOrdersAndSetsCookie(t *testing.T) {
	h := newHarness(t, newFakeOrders(sampleOrders()...))

	rec := h.do(t, http.MethodGet, "/", nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	if h.cookie == nil || !h.cookie.HttpOnly {
		t.Fatalf("cookie = %+v", h.cookie)
	}
	body := rec.Body.String()
	for _, want := range []string{"Ada Lovelace", "Grace Hopper", "$12.99", "Page 1 of 1", `sse-connect="/dashboard/events"`} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}

	calls := h.svc.listCalls()
	if len(calls) != 1 || calls[0].Page != 1 || calls[0].PageSize != 10 {
		t.Fatalf("list calls = %+v", calls)
	}
}

func TestEmptyState(t *testing.T) {
	h := newHarness(t, newFakeOrders())
	rec := h.do(t, http.MethodGet, "/dashboard/orders", nil, true)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "No orders found matching your criteria") {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestFilterActions(t *testing.T) {
	h := newHarness(t, newFakeOrders(sampleOrders()...))
	h.do(t, http.MethodGet, "/", nil, false)

	rec := h.do(t, http.MethodPost, "/dashboard/filters/status", url.Values{"value": {"ready"}}, false)
	if rec.Code != http.StatusSeeOther || rec.Header().Get(echo.HeaderLocation) != "/" {
		t.Fatalf("plain post: status=%d location=%q", rec.Code, rec.Header().Get(echo.HeaderLocation))
	}
	s := h.session(t)
	if st := s.Controller.Snapshot(); st.Filters.Status != dto.StatusReady || len(st.Orders) != 1 {
		t.Fatalf("state = %+v", st)
	}

	rec = h.do(t, http.MethodPost, "/dashboard/page", url.Values{"page": {"2"}}, true)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("htmx post status = %d", rec.Code)
	}
	h.session(t)
	calls := h.svc.listCalls()
	if last := calls[len(calls)-1]; last.Page != 3 || last.Status != dto.StatusReady {
		t.Fatalf("last list = %+v", last)
	}

	h.do(t, http.MethodPost, "/dashboard/page-size", url.Values{"pageSize": {"25"}}, true)
	if st := h.session(t).Controller.Snapshot(); st.Filters.PageSize != 25 || st.Filters.Page != 1 {
		t.Fatalf("filters = %+v", st.Filters)
	}

	for _, bad := range []struct {
		path string
		form url.Values
		code int
	}{
		{"/dashboard/filters/status", url.Values{"value": {"cooking"}}, http.StatusBadRequest},
		{"/dashboard/filters/colour", url.Values{"value": {"red"}}, http.StatusNotFound},
		{"/dashboard/page", url.Values{"page": {"-1"}}, http.StatusBadRequest},
		{"/dashboard/page-size", url.Values{"pageSize": {"0"}}, http.StatusBadRequest},
	} {
		if rec := h.do(t, http.MethodPost, bad.path, bad.form, true); rec.Code != bad.code {
			t.Errorf("%s %v: status = %d, want %d", bad.path, bad.form, rec.Code, bad.code)
		}
	}
}

func TestSearchAndClear(t *testing.T) {
	h := newHarness(t, newFakeOrders(sampleOrders()...))
	h.do(t, http.MethodGet, "/", nil, false)

	h.do(t, http.MethodPost, "/dashboard/search", url.Values{"search": {"ada"}}, true)
	s := h.session(t)
	if got := s.Controller.Snapshot().SearchInput; got != "ada" {
		t.Fatalf("search input = %q", got)
	}

	deadline := time.Now().Add(2 * time.Second)
	for s.Controller.Snapshot().Filters.Search != "ada" {
		if time.Now().After(deadline) {
			t.Fatal("search never committed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	h.do(t, http.MethodPost, "/dashboard/search/clear", nil, true)
	if st := h.session(t).Controller.Snapshot(); st.SearchInput != "" || st.Filters.Search != "" {
		t.Fatalf("state = %+v", st)
	}
}

func TestInlineStatusChange(t *testing.T) {
	h := newHarness(t, newFakeOrders(sampleOrders()...))
	h.do(t, http.MethodGet, "/", nil, false)
	h.do(t, http.MethodPost, "/dashboard/filters/orderType", url.Values{"value": {"pickup"}}, true)
	h.session(t)
	calls := h.svc.listCalls()
	before := len(calls)
	active := calls[before-1]
	if active.OrderType != dto.OrderTypePickup {
		t.Fatalf("filter not applied: %+v", active)
	}

	rec := h.do(t, http.MethodPost, "/orders/1/status", url.Values{"status": {"confirmed"}}, true)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	h.session(t)

	patches := h.svc.patches["1"]
	if len(patches) != 1 || *patches[0].Status != dto.StatusConfirmed {
		t.Fatalf("patches = %+v", patches)
	}
	calls = h.svc.listCalls()
	if len(calls) != before+1 {
		t.Fatalf("list refreshes = %d", len(calls)-before)
	}
	if refresh := calls[len(calls)-1]; refresh != active {
		t.Fatalf("refresh filters = %+v, want unchanged %+v", refresh, active)
	}

	h.do(t, http.MethodPost, "/orders/404/status", url.Values{"status": {"ready"}}, true)
	s := h.session(t)
	if err := s.Controller.Snapshot().Err; err == nil || !strings.Contains(err.Error(), "order not found") {
		t.Fatalf("banner error = %v", err)
	}
}

func TestDetailPage(t *testing.T) {
	h := newHarness(t, newFakeOrders(sampleOrders()...))

	rec := h.do(t, http.MethodGet, "/orders/2", nil, false)
	body := rec.Body.String()
	if rec.Code != http.StatusOK || !strings.Contains(body, "Grace Hopper") || !strings.Contains(body, "Greek Salad") {
		t.Fatalf("status=%d body=%s", rec.Code, body)
	}

	rec = h.do(t, http.MethodGet, "/orders/99", nil, false)
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), "Order not found") {
		t.Fatalf("missing order: status=%d", rec.Code)
	}

	rec = h.do(t, http.MethodPost, "/orders/2", url.Values{"status": {"completed"}, "preparationNotes": {"bag it"}}, false)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "bag it") {
		t.Fatalf("save: status=%d body=%s", rec.Code, rec.Body.String())
	}
	patches := h.svc.patches["2"]
	if len(patches) != 1 || *patches[0].Status != dto.StatusCompleted || *patches[0].PreparationNotes != "bag it" {
		t.Fatalf("patches = %+v", patches)
	}

	// The detail page has no dashboard of its own to start.
	if h.cookie != nil || h.sessions.Len() != 0 {
		t.Fatalf("detail views opened a session: cookie=%v sessions=%d", h.cookie, h.sessions.Len())
	}
	if n := len(h.svc.listCalls()); n != 0 {
		t.Fatalf("detail views listed orders %d times", n)
	}
}

func TestFiltersSurviveSessionEviction(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var clockMu sync.Mutex
	clock := func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		return now
	}
	h := newHarness(t, newFakeOrders(sampleOrders()...), WithClock(clock))

	h.do(t, http.MethodGet, "/", nil, false)
	h.do(t, http.MethodPost, "/dashboard/filters/orderType", url.Values{"value": {"pickup"}}, true)
	h.session(t)
	if _, err := h.prefs.Get(context.Background(), prefsKey(h.cookie.Value)); err != nil {
		t.Fatalf("filters not saved: %v", err)
	}

	clockMu.Lock()
	now = now.Add(2 * time.Hour)
	clockMu.Unlock()
	if n := h.sessions.Sweep(); n != 1 || h.sessions.Len() != 0 {
		t.Fatalf("evicted %d, live %d", n, h.sessions.Len())
	}

	h.do(t, http.MethodGet, "/", nil, false)
	s := h.session(t)
	if got := s.Controller.Snapshot().Filters.OrderType; got != dto.OrderTypePickup {
		t.Fatalf("restored order type = %q", got)
	}
}

func TestWriteEvent(t *testing.T) {
	var b strings.Builder
	if err := writeEvent(&b, "orders", "<p>one</p>\n<p>two</p>"); err != nil {
		t.Fatal(err)
	}
	want := "event: orders\ndata: <p>one</p>\ndata: <p>two</p>\n\n"
	if b.String() != want {
		t.Fatalf("event = %q", b.String())
	}
}
