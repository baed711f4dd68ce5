// Package orderdetail drives viewing and editing a single order.
package orderdetail

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/Additional-Code/orderdesk/internal/dto"
	"github.com/Additional-Code/orderdesk/pkg/errorbank"
)

// Service reads and writes single orders.
type Service interface {
	GetOrder(ctx context.Context, id dto.ID) (*dto.Order, error)
	UpdateOrder(ctx context.Context, id dto.ID, patch dto.OrderPatch) (*dto.Order, error)
}

// Phase is the loading state of the view.
type Phase int

const (
	PhaseLoading Phase = iota
	PhaseLoaded
	PhaseNotFound
)

func (p Phase) String() string {
	switch p {
	case PhaseLoaded:
		return "loaded"
	case PhaseNotFound:
		return "not_found"
	default:
		return "loading"
	}
}

// Form holds the editable fields.
type Form struct {
	Status           dto.OrderStatus
	PreparationNotes string
}

func formOf(o *dto.Order) Form {
	return Form{Status: o.Status, PreparationNotes: o.PreparationNotes}
}

// View is a snapshot for rendering.
type View struct {
	ID             dto.ID
	Phase          Phase
	Order          *dto.Order
	Form           Form
	Saving         bool
	Err            error
	Reconciliation dto.Reconciliation
}

// Workflow owns one order's detail view. Items and total are read-only.
type Workflow struct {
	svc     Service
	id      dto.ID
	logger  *zap.Logger
	refetch bool

	mu     sync.Mutex
	phase  Phase
	order  *dto.Order
	form   Form
	saving bool
	err    error
}

// New builds a workflow for id. With refetchAfterWrite the order is read back
// after a successful save; otherwise the write response is used.
func New(svc Service, id dto.ID, logger *zap.Logger, refetchAfterWrite bool) *Workflow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Workflow{
		svc:     svc,
		id:      id,
		logger:  logger.With(zap.String("order_id", id.String())),
		refetch: refetchAfterWrite,
	}
}

// Load fetches the order. Any failure, or an empty result, moves the view to
// PhaseNotFound.
func (w *Workflow) Load(ctx context.Context) error {
	w.mu.Lock()
	w.phase = PhaseLoading
	w.mu.Unlock()

	order, err := w.svc.GetOrder(ctx, w.id)
	if err == nil && (order == nil || order.ID.IsZero()) {
		err = errorbank.NotFound("order not found", errorbank.WithDetail("id", w.id.String()))
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.logger.Warn("order detail load failed", zap.Error(err))
		w.phase = PhaseNotFound
		w.order = nil
		w.err = err
		return err
	}
	w.phase = PhaseLoaded
	w.order = order
	w.form = formOf(order)
	w.err = nil
	return nil
}

// Edit replaces the in-progress form values.
func (w *Workflow) Edit(status dto.OrderStatus, notes string) {
	w.mu.Lock()
	w.form = Form{Status: status, PreparationNotes: notes}
	w.mu.Unlock()
}

// Save writes the form. On failure the form keeps the edited values.
func (w *Workflow) Save(ctx context.Context) error {
	w.mu.Lock()
	if w.phase != PhaseLoaded {
		w.mu.Unlock()
		return errorbank.BadRequest("order is not loaded", errorbank.WithDetail("id", w.id.String()))
	}
	if w.saving {
		w.mu.Unlock()
		return errorbank.BadRequest("save already in progress", errorbank.WithDetail("id", w.id.String()))
	}
	form := w.form
	if !form.Status.Valid() {
		err := errorbank.Validation("unknown order status", errorbank.WithDetail("status", string(form.Status)))
		w.err = err
		w.mu.Unlock()
		return err
	}
	w.saving = true
	w.mu.Unlock()

	status, notes := form.Status, form.PreparationNotes
	written, err := w.svc.UpdateOrder(ctx, w.id, dto.OrderPatch{
		Status:           &status,
		PreparationNotes: &notes,
	})

	var refreshed *dto.Order
	if err == nil {
		refreshed = written
		if w.refetch {
			fetched, ferr := w.svc.GetOrder(ctx, w.id)
			switch {
			case ferr != nil:
				w.logger.Warn("reload after save failed; showing write response", zap.Error(ferr))
			case fetched != nil:
				refreshed = fetched
			}
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.saving = false
	if err != nil {
		w.logger.Warn("order detail save failed", zap.Error(err))
		w.err = err
		return err
	}
	if refreshed != nil {
		w.order = refreshed
		w.form = formOf(refreshed)
	}
	w.err = nil
	w.logger.Info("order detail saved", zap.String("status", string(status)))
	return nil
}

// View returns the current snapshot.
func (w *Workflow) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()
	v := View{
		ID:     w.id,
		Phase:  w.phase,
		Form:   w.form,
		Saving: w.saving,
		Err:    w.err,
	}
	if w.order != nil {
		o := *w.order
		v.Order = &o
		v.Reconciliation = o.Reconcile()
	}
	return v
}
