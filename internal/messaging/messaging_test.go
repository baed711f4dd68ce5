package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/segmentio/kafka-go"
)

func TestNoopConsumeBlocksUntilCancelled(t *testing.T) {
	client := NewNoop("orders.events")
	if client.Topic() != "orders.events" {
		t.Fatalf("topic = %s", client.Topic())
	}
	if err := client.Publish(context.Background(), []byte("k"), []byte("v")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := client.Consume(ctx, func(context.Context, Message) error { return nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("consume err = %v", err)
	}
}

func TestFromKafkaCopiesPayload(t *testing.T) {
	raw := kafka.Message{
		Topic:   "orders.events",
		Key:     []byte("ord-1"),
		Value:   []byte(`{"type":"order.created"}`),
		Headers: []kafka.Header{{Key: "source", Value: []byte("orderdesk")}},
		Offset:  7,
	}
	msg := fromKafka(raw)
	raw.Value[0] = 'X'

	if string(msg.Value) != `{"type":"order.created"}` {
		t.Fatalf("value aliases the kafka buffer: %s", msg.Value)
	}
	if msg.Headers["source"] != "orderdesk" || msg.Offset != 7 {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestFromDelivery(t *testing.T) {
	d := amqp.Delivery{
		MessageId:   "ord-2",
		ContentType: contentTypeJSON,
		Headers:     amqp.Table{"attempt": int32(1)},
		Body:        []byte(`{}`),
		DeliveryTag: 3,
	}
	msg := fromDelivery("orders_topic", d)
	if msg.Topic != "orders_topic" || string(msg.Key) != "ord-2" || msg.Offset != 3 {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if msg.Headers["content-type"] != contentTypeJSON || msg.Headers["attempt"] != "1" {
		t.Fatalf("headers = %v", msg.Headers)
	}
}
