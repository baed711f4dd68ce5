package seeder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderdesk/internal/dto"
	repository "github.com/Additional-Code/orderdesk/internal/repository/order"
	service "github.com/Additional-Code/orderdesk/internal/service/order"
)

// Module provides the Seeder to Fx.
var Module = fx.Provide(New)

// Creator persists a new order.
type Creator interface {
	Create(ctx context.Context, order dto.Order) (dto.Order, error)
}

// Store reports and clears existing orders.
type Store interface {
	Count(ctx context.Context) (int, error)
	DeleteAll(ctx context.Context) error
}

// Seeder fills the order store with generated orders for local setups.
type Seeder struct {
	creator Creator
	store   Store
	logger  *zap.Logger
	gen     *Generator
}

// New builds a Seeder that writes through the order service, so seeded
// orders are validated and announced like any other.
func New(svc *service.Service, repo *repository.Repository, logger *zap.Logger) *Seeder {
	return NewWith(svc, repo, NewGenerator(uint64(time.Now().UnixNano()), nil), logger)
}

// NewWith builds a Seeder from its parts.
func NewWith(creator Creator, store Store, gen *Generator, logger *zap.Logger) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{creator: creator, store: store, gen: gen, logger: logger}
}

// Orders inserts count generated orders. An already populated store is left
// alone unless force is set, in which case it is emptied first. It returns the
// number of orders created.
func (s *Seeder) Orders(ctx context.Context, count int, force bool) (int, error) {
	if count <= 0 {
		count = DefaultCount
	}

	existing, err := s.store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	if existing > 0 {
		if !force {
			s.logger.Info("orders already present; skipping seed", zap.Int("existing", existing))
			return 0, nil
		}
		if err := s.store.DeleteAll(ctx); err != nil {
			return 0, fmt.Errorf("clear orders: %w", err)
		}
		s.logger.Info("cleared existing orders", zap.Int("count", existing))
	}

	created := 0
	for _, order := range s.gen.Orders(count) {
		if _, err := s.creator.Create(ctx, order); err != nil {
			return created, fmt.Errorf("seed order %d: %w", created+1, err)
		}
		created++
	}

	s.logger.Info("seeded orders", zap.Int("count", created))
	return created, nil
}

// Generate returns count orders without storing them.
func (s *Seeder) Generate(count int) []dto.Order {
	if count <= 0 {
		count = DefaultCount
	}
	return s.gen.Orders(count)
}

// WriteJSON writes orders as {"orders":[...]}, the layout json fixtures use.
func WriteJSON(w io.Writer, orders []dto.Order) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Orders []dto.Order `json:"orders"`
	}{Orders: orders})
}
