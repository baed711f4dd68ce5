package order

import (
	"context"
	"encoding/json"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderdesk/internal/cache"
	"github.com/Additional-Code/orderdesk/internal/config"
	"github.com/Additional-Code/orderdesk/internal/dto"
	"github.com/Additional-Code/orderdesk/internal/entity"
	"github.com/Additional-Code/orderdesk/internal/messaging"
	repo "github.com/Additional-Code/orderdesk/internal/repository/order"
	"github.com/Additional-Code/orderdesk/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/orderdesk/service/order")

// Service encapsulates business logic around stored orders.
type Service struct {
	repo      *repo.Repository
	cache     cache.Store
	cacheTTL  time.Duration
	logger    *zap.Logger
	publisher messaging.Client
	publish   bool
	now       func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository *repo.Repository
	Cache      cache.Store
	Config     config.Config
	Logger     *zap.Logger
	Publisher  messaging.Client
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		repo:      p.Repository,
		cache:     p.Cache,
		cacheTTL:  p.Config.Cache.DefaultTTL,
		logger:    p.Logger,
		publisher: p.Publisher,
		publish:   p.Config.Messaging.Enabled,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// List returns one page of orders matching filters.
func (s *Service) List(ctx context.Context, filters dto.OrderFilters) (dto.OrdersResponse, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.List")
	defer span.End()

	if err := filters.Validate(); err != nil {
		return dto.OrdersResponse{}, errorbank.BadRequest(err.Error())
	}
	if filters.PageSize > dto.MaxPageSize {
		filters.PageSize = dto.MaxPageSize
	}

	records, total, err := s.repo.List(ctx, filters)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return dto.OrdersResponse{}, errorbank.Internal("failed to list orders", errorbank.WithCause(err))
	}

	resp := dto.OrdersResponse{
		Orders:   make([]dto.Order, 0, len(records)),
		Total:    total,
		Page:     filters.Page,
		PageSize: filters.PageSize,
	}
	for _, record := range records {
		resp.Orders = append(resp.Orders, record.ToDTO())
	}
	return resp, nil
}

// Get retrieves an order by id, consulting cache when available.
func (s *Service) Get(ctx context.Context, id string) (dto.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Get", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	var cached dto.Order
	err := cache.GetJSON(ctx, s.cache, s.cacheKey(id), &cached)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("orders cache read failed", zap.String("id", id), zap.Error(err))
	}

	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return dto.Order{}, errorbank.NotFound("order not found", errorbank.WithDetail("id", id))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return dto.Order{}, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}

	order := record.ToDTO()
	s.storeInCache(ctx, order)
	return order, nil
}

// Create validates and persists a new order. Missing ids, status, creation
// time and total are filled in.
func (s *Service) Create(ctx context.Context, in dto.Order) (dto.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Create")
	defer span.End()

	order, err := s.prepareNew(in)
	if err != nil {
		return dto.Order{}, err
	}
	span.SetAttributes(attribute.String("order.id", order.ID.String()))

	record := entity.OrderFromDTO(order)
	if err := s.repo.Create(ctx, record); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return dto.Order{}, errorbank.Internal("failed to create order", errorbank.WithCause(err))
	}

	created := record.ToDTO()
	s.storeInCache(ctx, created)
	s.publishEvent(ctx, EventOrderCreated, created, "")
	return created, nil
}

// Update applies a partial change to an existing order and returns the result.
func (s *Service) Update(ctx context.Context, id string, patch dto.OrderPatch) (dto.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Update", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	if patch.IsEmpty() {
		return dto.Order{}, errorbank.BadRequest("update payload is empty")
	}
	if err := validatePatch(patch); err != nil {
		return dto.Order{}, err
	}

	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return dto.Order{}, errorbank.NotFound("order not found", errorbank.WithDetail("id", id))
		}
		span.RecordError(err)
		return dto.Order{}, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}

	previous := dto.OrderStatus(record.Status)
	columns := applyPatch(record, patch)

	if patch.ScheduledFor != nil && record.ScheduledFor.Before(record.CreatedAt) {
		return dto.Order{}, errorbank.Validation("scheduledFor must not precede createdAt", errorbank.WithDetail("field", "scheduledFor"))
	}

	if err := s.repo.Update(ctx, record, columns...); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return dto.Order{}, errorbank.NotFound("order not found", errorbank.WithDetail("id", id))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return dto.Order{}, errorbank.Internal("failed to update order", errorbank.WithCause(err))
	}

	updated := record.ToDTO()
	if err := s.cache.Delete(ctx, s.cacheKey(id)); err != nil {
		s.logger.Warn("orders cache invalidation failed", zap.String("id", id), zap.Error(err))
	}
	s.publishEvent(ctx, EventOrderUpdated, updated, previous)
	return updated, nil
}

func (s *Service) prepareNew(in dto.Order) (dto.Order, error) {
	order := in
	order.CustomerName = strings.TrimSpace(order.CustomerName)
	order.CustomerEmail = strings.TrimSpace(order.CustomerEmail)
	order.PreparationNotes = strings.TrimSpace(order.PreparationNotes)

	if order.CustomerName == "" {
		return dto.Order{}, fieldError("customerName", "customer name is required")
	}
	if _, err := mail.ParseAddress(order.CustomerEmail); err != nil {
		return dto.Order{}, fieldError("customerEmail", "customer email is invalid")
	}
	if !order.OrderType.Valid() {
		return dto.Order{}, fieldError("orderType", "order type must be delivery or pickup")
	}
	if order.Status == "" {
		order.Status = dto.StatusPending
	} else if !order.Status.Valid() {
		return dto.Order{}, fieldError("status", "unknown order status")
	}
	if len(order.Items) == 0 {
		return dto.Order{}, fieldError("items", "at least one item is required")
	}

	order.Items = append([]dto.OrderItem(nil), order.Items...)
	for i := range order.Items {
		item := &order.Items[i]
		item.Name = strings.TrimSpace(item.Name)
		if item.Name == "" {
			return dto.Order{}, fieldError("items", "item name is required")
		}
		if item.Quantity <= 0 {
			return dto.Order{}, fieldError("items", "item quantity must be positive")
		}
		if item.Price < 0 {
			return dto.Order{}, fieldError("items", "item price must not be negative")
		}
		if item.ID.IsZero() {
			item.ID = dto.ID(uuid.NewString())
		}
	}

	if order.ID.IsZero() {
		order.ID = dto.ID(uuid.NewString())
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = s.now()
	}
	if order.ScheduledFor != nil && order.ScheduledFor.Before(order.CreatedAt) {
		return dto.Order{}, fieldError("scheduledFor", "scheduledFor must not precede createdAt")
	}
	if order.Total == 0 {
		order.Total = dto.ItemsSubtotal(order.Items).InexactFloat64()
	} else if order.Total < 0 {
		return dto.Order{}, fieldError("total", "total must not be negative")
	}
	return order, nil
}

func validatePatch(patch dto.OrderPatch) error {
	if patch.Status != nil && !patch.Status.Valid() {
		return fieldError("status", "unknown order status")
	}
	if patch.OrderType != nil && !patch.OrderType.Valid() {
		return fieldError("orderType", "order type must be delivery or pickup")
	}
	if patch.CustomerName != nil && strings.TrimSpace(*patch.CustomerName) == "" {
		return fieldError("customerName", "customer name is required")
	}
	if patch.CustomerEmail != nil {
		if _, err := mail.ParseAddress(strings.TrimSpace(*patch.CustomerEmail)); err != nil {
			return fieldError("customerEmail", "customer email is invalid")
		}
	}
	return nil
}

// applyPatch copies set fields onto record and reports the touched columns.
func applyPatch(record *entity.Order, patch dto.OrderPatch) []string {
	var columns []string
	if patch.Status != nil {
		record.Status = string(*patch.Status)
		columns = append(columns, "status")
	}
	if patch.PreparationNotes != nil {
		record.PreparationNotes = strings.TrimSpace(*patch.PreparationNotes)
		columns = append(columns, "preparation_notes")
	}
	if patch.CustomerName != nil {
		record.CustomerName = strings.TrimSpace(*patch.CustomerName)
		columns = append(columns, "customer_name")
	}
	if patch.CustomerEmail != nil {
		record.CustomerEmail = strings.TrimSpace(*patch.CustomerEmail)
		columns = append(columns, "customer_email")
	}
	if patch.OrderType != nil {
		record.OrderType = string(*patch.OrderType)
		columns = append(columns, "order_type")
	}
	if patch.ScheduledFor != nil {
		scheduled := patch.ScheduledFor.UTC()
		record.ScheduledFor = &scheduled
		columns = append(columns, "scheduled_for")
	}
	return columns
}

func fieldError(field, message string) *errorbank.AppError {
	return errorbank.Validation(message, errorbank.WithDetail("field", field))
}

func (s *Service) publishEvent(ctx context.Context, eventType string, order dto.Order, previous dto.OrderStatus) {
	if !s.publish || s.publisher == nil {
		return
	}
	event := OrderEvent{
		Type:           eventType,
		OrderID:        order.ID,
		Status:         order.Status,
		PreviousStatus: previous,
		CustomerName:   order.CustomerName,
		OrderType:      order.OrderType,
		Total:          order.Total,
		OccurredAt:     s.now(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal order event", zap.String("type", eventType), zap.Error(err))
		return
	}
	if err := s.publisher.Publish(ctx, []byte(order.ID.String()), payload); err != nil {
		s.logger.Error("publish order event", zap.String("type", eventType), zap.Error(err))
	}
}

func (s *Service) cacheKey(id string) string {
	return cache.Key("orders", id)
}

func (s *Service) storeInCache(ctx context.Context, order dto.Order) {
	if err := cache.SetJSON(ctx, s.cache, s.cacheKey(order.ID.String()), order, s.cacheTTL); err != nil {
		s.logger.Warn("orders cache write failed", zap.String("id", order.ID.String()), zap.Error(err))
	}
}
