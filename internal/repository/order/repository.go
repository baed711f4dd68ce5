package order

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/orderdesk/internal/database"
	"github.com/Additional-Code/orderdesk/internal/dto"
	"github.com/Additional-Code/orderdesk/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/orderdesk/repository/order")

// ErrNotFound is returned when an order is missing.
var ErrNotFound = errors.New("order not found")

// Repository encapsulates read/write access for orders.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// Create persists an order and its items in one transaction.
func (r *Repository) Create(ctx context.Context, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Create", trace.WithAttributes(attribute.String("order.id", order.ID)))
	defer span.End()

	err := r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(order).Exec(ctx); err != nil {
			return err
		}
		if len(order.Items) == 0 {
			return nil
		}
		for i, item := range order.Items {
			item.OrderID = order.ID
			item.Position = i
		}
		_, err := tx.NewInsert().Model(&order.Items).Exec(ctx)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// GetByID fetches an order with its items using the read replica when available.
func (r *Repository) GetByID(ctx context.Context, id string) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetByID", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	order := new(entity.Order)
	err := r.reader.NewSelect().
		Model(order).
		Relation("Items", orderItemsByPosition).
		Where("o.id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return order, nil
}

// List returns one page of orders matching filters, newest first, plus the
// total count of matches.
func (r *Repository) List(ctx context.Context, filters dto.OrderFilters) ([]*entity.Order, int, error) {
	filters = filters.Normalize()
	ctx, span := repoTracer.Start(ctx, "OrderRepository.List", trace.WithAttributes(
		attribute.Int("filter.page", filters.Page),
		attribute.Int("filter.page_size", filters.PageSize),
		attribute.String("filter.status", string(filters.Status)),
	))
	defer span.End()

	var orders []*entity.Order
	q := r.reader.NewSelect().
		Model(&orders).
		Relation("Items", orderItemsByPosition).
		OrderExpr("o.created_at DESC").
		OrderExpr("o.id ASC").
		Limit(filters.PageSize).
		Offset(filters.Offset())
	q = r.applyFilters(q, filters)

	total, err := q.ScanAndCount(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, 0, err
	}
	span.SetAttributes(attribute.Int("result.total", total))
	return orders, total, nil
}

// Count reports how many orders are stored.
func (r *Repository) Count(ctx context.Context) (int, error) {
	return r.reader.NewSelect().Model((*entity.Order)(nil)).Count(ctx)
}

// Update writes the named columns of order. Columns must be bun column names.
func (r *Repository) Update(ctx context.Context, order *entity.Order, columns ...string) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Update", trace.WithAttributes(
		attribute.String("order.id", order.ID),
		attribute.StringSlice("order.columns", columns),
	))
	defer span.End()

	order.UpdatedAt = time.Now().UTC()
	columns = append(columns, "updated_at")

	res, err := r.writer.NewUpdate().Model(order).Column(columns...).WherePK().Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		span.SetStatus(codes.Error, "not found")
		return ErrNotFound
	}
	return nil
}

// DeleteAll removes every order; used by reseeding.
func (r *Repository) DeleteAll(ctx context.Context) error {
	return r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*entity.OrderItem)(nil)).Where("1 = 1").Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewDelete().Model((*entity.Order)(nil)).Where("1 = 1").Exec(ctx)
		return err
	})
}

func orderItemsByPosition(q *bun.SelectQuery) *bun.SelectQuery {
	return q.OrderExpr("oi.position ASC")
}

func (r *Repository) applyFilters(q *bun.SelectQuery, filters dto.OrderFilters) *bun.SelectQuery {
	if filters.Status != "" {
		q = q.Where("o.status = ?", string(filters.Status))
	}
	if filters.OrderType != "" {
		q = q.Where("o.order_type = ?", string(filters.OrderType))
	}
	if name := strings.TrimSpace(filters.CustomerName); name != "" {
		q = q.Where("LOWER(o.customer_name) LIKE ? ESCAPE '!'", likePattern(name))
	}
	if term := strings.TrimSpace(filters.Search); term != "" {
		pattern := likePattern(term)
		itemMatches := r.reader.NewSelect().
			Model((*entity.OrderItem)(nil)).
			Column("oi.order_id").
			Where("LOWER(oi.name) LIKE ? ESCAPE '!'", pattern)
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				WhereOr("LOWER(o.customer_name) LIKE ? ESCAPE '!'", pattern).
				WhereOr("LOWER(o.customer_email) LIKE ? ESCAPE '!'", pattern).
				WhereOr("LOWER(o.preparation_notes) LIKE ? ESCAPE '!'", pattern).
				WhereOr("o.id IN (?)", itemMatches)
		})
	}
	return q
}

// likeEscaper makes user input match literally under ESCAPE '!'. A backslash
// escape would need different quoting on MySQL.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func likePattern(term string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(term)) + "%"
}
