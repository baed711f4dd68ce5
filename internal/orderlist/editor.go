package orderlist

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/Additional-Code/orderdesk/internal/dto"
	"github.com/Additional-Code/orderdesk/pkg/errorbank"
)

// Updater applies partial order updates.
type Updater interface {
	UpdateOrder(ctx context.Context, id dto.ID, patch dto.OrderPatch) (*dto.Order, error)
}

// Refresher re-runs the list query.
type Refresher interface {
	Refresh()
}

// StatusEditor changes a row's status in place. The row keeps its server value
// until the write and the following refresh land.
type StatusEditor struct {
	updater   Updater
	refresher Refresher
	logger    *zap.Logger

	mu       sync.Mutex
	updating map[dto.ID]struct{}
}

// NewStatusEditor builds a StatusEditor.
func NewStatusEditor(updater Updater, refresher Refresher, logger *zap.Logger) *StatusEditor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusEditor{
		updater:   updater,
		refresher: refresher,
		logger:    logger,
		updating:  make(map[dto.ID]struct{}),
	}
}

// ChangeStatus writes status for id and then refreshes the list, whether or
// not the write succeeded.
func (e *StatusEditor) ChangeStatus(ctx context.Context, id dto.ID, status dto.OrderStatus) error {
	if id.IsZero() {
		return errorbank.BadRequest("order id is required")
	}
	if !status.Valid() {
		return errorbank.Validation("unknown order status",
			errorbank.WithDetail("status", string(status)))
	}

	e.mu.Lock()
	if _, busy := e.updating[id]; busy {
		e.mu.Unlock()
		return errorbank.BadRequest("status update already in progress",
			errorbank.WithDetail("id", id.String()))
	}
	e.updating[id] = struct{}{}
	e.mu.Unlock()

	_, err := e.updater.UpdateOrder(ctx, id, dto.StatusPatch(status))

	e.mu.Lock()
	delete(e.updating, id)
	e.mu.Unlock()

	e.refresher.Refresh()

	if err != nil {
		e.logger.Warn("status update failed",
			zap.String("id", id.String()),
			zap.String("status", string(status)),
			zap.Error(err),
		)
		return err
	}
	e.logger.Info("status updated", zap.String("id", id.String()), zap.String("status", string(status)))
	return nil
}

// Updating reports whether id has a write in flight.
func (e *StatusEditor) Updating(id dto.ID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.updating[id]
	return ok
}
