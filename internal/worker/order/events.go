package order

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderdesk/internal/messaging"
	ordersvc "github.com/Additional-Code/orderdesk/internal/service/order"
	"github.com/Additional-Code/orderdesk/internal/worker"
)

var workerTracer = otel.Tracer("github.com/Additional-Code/orderdesk/worker/order")

// Module registers order event handlers.
var Module = fx.Module("worker_order",
	fx.Provide(
		fx.Annotate(
			NewEventsHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// NewEventsHandler handles order lifecycle events from the client's topic.
func NewEventsHandler(logger *zap.Logger, client messaging.Client) worker.HandlerRegistration {
	return worker.HandlerRegistration{
		Topic:   client.Topic(),
		Handler: HandleEvent(logger.Named("order_events")),
	}
}

// HandleEvent decodes an order event and records it. Undecodable payloads are
// returned as errors so the broker can redeliver or dead-letter them.
func HandleEvent(logger *zap.Logger) messaging.Handler {
	return func(ctx context.Context, msg messaging.Message) error {
		_, span := workerTracer.Start(ctx, "worker.orders.process", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
		))
		defer span.End()

		var event ordersvc.OrderEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Error("failed to decode order event", zap.ByteString("key", msg.Key), zap.Error(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return err
		}
		span.SetAttributes(
			attribute.String("order.event", event.Type),
			attribute.String("order.id", event.OrderID.String()),
		)

		fields := []zap.Field{
			zap.String("id", event.OrderID.String()),
			zap.String("status", string(event.Status)),
			zap.Time("occurred_at", event.OccurredAt),
		}
		switch event.Type {
		case ordersvc.EventOrderCreated:
			logger.Info("order received", append(fields,
				zap.String("customer", event.CustomerName),
				zap.String("order_type", string(event.OrderType)),
				zap.Float64("total", event.Total),
			)...)
		case ordersvc.EventOrderUpdated:
			if event.PreviousStatus != "" && event.PreviousStatus != event.Status {
				logger.Info("order status changed", append(fields,
					zap.String("previous_status", string(event.PreviousStatus)),
				)...)
				return nil
			}
			logger.Info("order details updated", fields...)
		default:
			logger.Warn("ignoring unknown order event", append(fields, zap.String("type", event.Type))...)
		}
		return nil
	}
}
