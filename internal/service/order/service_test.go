package order

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Additional-Code/orderdesk/internal/cache"
	"github.com/Additional-Code/orderdesk/internal/config"
	"github.com/Additional-Code/orderdesk/internal/database"
	"github.com/Additional-Code/orderdesk/internal/dto"
	"github.com/Additional-Code/orderdesk/internal/messaging"
	"github.com/Additional-Code/orderdesk/internal/migration"
	repo "github.com/Additional-Code/orderdesk/internal/repository/order"
	"github.com/Additional-Code/orderdesk/pkg/errorbank"
)

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func (m *memoryCache) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[key]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return v, nil
}

func (m *memoryCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	return nil
}

func (m *memoryCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

type recordingPublisher struct {
	messaging.Client
	events []OrderEvent
}

func (r *recordingPublisher) Publish(_ context.Context, _ []byte, value []byte) error {
	var event OrderEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return err
	}
	r.events = append(r.events, event)
	return nil
}

func newTestService(t *testing.T) (*Service, *memoryCache, *recordingPublisher) {
	t.Helper()
	conns, err := database.Open(config.Database{Driver: "sqlite", WriterDSN: ":memory:"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = conns.Close() })

	m, err := migration.NewWithDB("sqlite", conns.Writer, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Up(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	store := &memoryCache{entries: map[string][]byte{}}
	pub := &recordingPublisher{Client: messaging.NewNoop("orders.events")}
	cfg := config.Config{}
	cfg.Messaging.Enabled = true
	cfg.Cache.DefaultTTL = time.Minute

	svc := NewService(Params{
		Repository: repo.NewRepository(conns),
		Cache:      store,
		Config:     cfg,
		Logger:     zap.NewNop(),
		Publisher:  pub,
	})
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }
	return svc, store, pub
}

func validOrder() dto.Order {
	return dto.Order{
		CustomerName:  "Ada Lovelace",
		CustomerEmail: "ada@example.com",
		OrderType:     dto.OrderTypeDelivery,
		Items: []dto.OrderItem{
			{Name: "Margherita Pizza", Quantity: 2, Price: 12.99},
			{Name: "Coca Cola", Quantity: 1, Price: 2.99},
		},
	}
}

func TestCreateFillsDefaults(t *testing.T) {
	svc, _, pub := newTestService(t)

	created, err := svc.Create(context.Background(), validOrder())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID.IsZero() || created.Items[0].ID.IsZero() {
		t.Fatal("ids not generated")
	}
	if created.Status != dto.StatusPending {
		t.Fatalf("status = %s", created.Status)
	}
	if created.Total != 28.97 {
		t.Fatalf("total = %v, want 28.97", created.Total)
	}
	if len(pub.events) != 1 || pub.events[0].Type != EventOrderCreated {
		t.Fatalf("events = %+v", pub.events)
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _, _ := newTestService(t)

	past := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	cases := map[string]func(*dto.Order){
		"name":      func(o *dto.Order) { o.CustomerName = " " },
		"email":     func(o *dto.Order) { o.CustomerEmail = "nope" },
		"type":      func(o *dto.Order) { o.OrderType = "dine-in" },
		"items":     func(o *dto.Order) { o.Items = nil },
		"quantity":  func(o *dto.Order) { o.Items[0].Quantity = 0 },
		"status":    func(o *dto.Order) { o.Status = "cooking" },
		"scheduled": func(o *dto.Order) { o.ScheduledFor = &past },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			order := validOrder()
			mutate(&order)
			_, err := svc.Create(context.Background(), order)
			if !errorbank.Is(err, errorbank.KindValidation) {
				t.Fatalf("err = %v, want validation", err)
			}
		})
	}
}

func TestGetUsesCacheAndReportsNotFound(t *testing.T) {
	svc, store, _ := newTestService(t)
	created, err := svc.Create(context.Background(), validOrder())
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := store.entries["orders:"+created.ID.String()]; !ok {
		t.Fatal("created order not cached")
	}
	got, err := svc.Get(context.Background(), created.ID.String())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.CustomerName != "Ada Lovelace" {
		t.Fatalf("got %+v", got)
	}

	_, err = svc.Get(context.Background(), "missing")
	if !errorbank.Is(err, errorbank.KindNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestUpdateStatusAndNotes(t *testing.T) {
	svc, store, pub := newTestService(t)
	created, err := svc.Create(context.Background(), validOrder())
	if err != nil {
		t.Fatal(err)
	}
	id := created.ID.String()

	notes := "  Ring twice  "
	status := dto.StatusConfirmed
	updated, err := svc.Update(context.Background(), id, dto.OrderPatch{Status: &status, PreparationNotes: &notes})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Status != dto.StatusConfirmed || updated.PreparationNotes != "Ring twice" {
		t.Fatalf("updated = %+v", updated)
	}
	if len(updated.Items) != 2 {
		t.Fatalf("items lost on update: %+v", updated.Items)
	}
	if _, ok := store.entries["orders:"+id]; ok {
		t.Fatal("cache entry should be invalidated")
	}
	last := pub.events[len(pub.events)-1]
	if last.Type != EventOrderUpdated || last.PreviousStatus != dto.StatusPending || last.Status != dto.StatusConfirmed {
		t.Fatalf("event = %+v", last)
	}

	reloaded, err := svc.Get(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Status != dto.StatusConfirmed {
		t.Fatalf("reloaded status = %s", reloaded.Status)
	}
}

func TestUpdateErrors(t *testing.T) {
	svc, _, _ := newTestService(t)

	if _, err := svc.Update(context.Background(), "x", dto.OrderPatch{}); !errorbank.Is(err, errorbank.KindBadRequest) {
		t.Fatalf("empty patch err = %v", err)
	}
	if _, err := svc.Update(context.Background(), "x", dto.StatusPatch("cooking")); !errorbank.Is(err, errorbank.KindValidation) {
		t.Fatalf("bad status err = %v", err)
	}
	if _, err := svc.Update(context.Background(), "missing", dto.StatusPatch(dto.StatusReady)); !errorbank.Is(err, errorbank.KindNotFound) {
		t.Fatalf("missing err = %v", err)
	}
}

func TestListRejectsInvalidFilters(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.List(context.Background(), dto.OrderFilters{Page: 0, PageSize: 10}); !errorbank.Is(err, errorbank.KindBadRequest) {
		t.Fatalf("err = %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := svc.Create(context.Background(), validOrder()); err != nil {
			t.Fatal(err)
		}
	}
	resp, err := svc.List(context.Background(), dto.OrderFilters{Page: 1, PageSize: 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if resp.Total != 3 || len(resp.Orders) != 2 || resp.Page != 1 || resp.PageSize != 2 {
		t.Fatalf("resp = %+v", resp)
	}
}
