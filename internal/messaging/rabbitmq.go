package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderdesk/internal/config"
)

const (
	rabbitRoutingKey  = "orders.events"
	rabbitBindingKey  = "orders.#"
	rabbitDeadLetters = "_dlx"
)

// rabbitClient publishes to a topic exchange and consumes from a durable queue
// bound to it. Consume delivers messages with Topic set to the exchange name.
type rabbitClient struct {
	cfg    config.RabbitMQ
	logger *zap.Logger

	mu   sync.Mutex
	conn *amqp.Connection
}

func newRabbitClient(lc fx.Lifecycle, cfg config.RabbitMQ, logger *zap.Logger) Client {
	client := &rabbitClient{cfg: cfg, logger: logger}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if _, err := client.connection(); err != nil {
				return err
			}
			logger.Info("rabbitmq connected", zap.String("exchange", cfg.Exchange))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("closing rabbitmq client")
			return client.close()
		},
	})

	return client
}

func (r *rabbitClient) Topic() string { return r.cfg.Exchange }

func (r *rabbitClient) connection() (*amqp.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn != nil && !r.conn.IsClosed() {
		return r.conn, nil
	}
	conn, err := amqp.Dial(r.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}
	r.conn = conn
	return conn, nil
}

func (r *rabbitClient) close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil || r.conn.IsClosed() {
		return nil
	}
	return r.conn.Close()
}

func (r *rabbitClient) channel() (*amqp.Channel, error) {
	conn, err := r.connection()
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(r.cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", r.cfg.Exchange, err)
	}
	return ch, nil
}

func (r *rabbitClient) Publish(ctx context.Context, key []byte, value []byte) error {
	ch, err := r.channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	return ch.PublishWithContext(ctx, r.cfg.Exchange, rabbitRoutingKey, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  contentTypeJSON,
		MessageId:    string(key),
		Timestamp:    time.Now().UTC(),
		Body:         value,
	})
}

func (r *rabbitClient) Consume(ctx context.Context, handler Handler) error {
	ch, err := r.channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.Qos(r.cfg.Prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	if err := r.declareQueue(ch); err != nil {
		return err
	}

	deliveries, err := ch.Consume(r.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}
	closed := ch.NotifyClose(make(chan *amqp.Error, 1))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case amqpErr := <-closed:
			if amqpErr != nil {
				return fmt.Errorf("channel closed: %w", amqpErr)
			}
			return errors.New("channel closed")
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			if err := handler(ctx, fromDelivery(r.cfg.Exchange, d)); err != nil {
				r.logger.Error("message handler failed", zap.Error(err), zap.String("message_id", d.MessageId))
				// Redelivered messages go to the dead-letter queue on a second failure.
				_ = d.Nack(false, !d.Redelivered)
				continue
			}
			if err := d.Ack(false); err != nil {
				r.logger.Warn("ack failed", zap.Error(err))
			}
		}
	}
}

func (r *rabbitClient) declareQueue(ch *amqp.Channel) error {
	dlx := r.cfg.Exchange + rabbitDeadLetters
	if err := ch.ExchangeDeclare(dlx, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare dead-letter exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(r.cfg.Queue+rabbitDeadLetters, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare dead-letter queue: %w", err)
	}
	if err := ch.QueueBind(r.cfg.Queue+rabbitDeadLetters, "", dlx, false, nil); err != nil {
		return fmt.Errorf("bind dead-letter queue: %w", err)
	}

	q, err := ch.QueueDeclare(r.cfg.Queue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange": dlx,
	})
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", r.cfg.Queue, err)
	}
	if err := ch.QueueBind(q.Name, rabbitBindingKey, r.cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", q.Name, err)
	}
	return nil
}

func fromDelivery(topic string, d amqp.Delivery) Message {
	var headers map[string]string
	if len(d.Headers) > 0 || d.ContentType != "" {
		headers = make(map[string]string, len(d.Headers)+1)
		for k, v := range d.Headers {
			headers[k] = fmt.Sprint(v)
		}
		if d.ContentType != "" {
			headers["content-type"] = d.ContentType
		}
	}
	return Message{
		Topic:   topic,
		Key:     []byte(d.MessageId),
		Value:   d.Body,
		Headers: headers,
		Offset:  int64(d.DeliveryTag),
		Time:    d.Timestamp,
	}
}
