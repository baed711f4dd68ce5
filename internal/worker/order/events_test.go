package order

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Additional-Code/orderdesk/internal/dto"
	"github.com/Additional-Code/orderdesk/internal/messaging"
	ordersvc "github.com/Additional-Code/orderdesk/internal/service/order"
)

func eventMessage(t *testing.T, event ordersvc.OrderEvent) messaging.Message {
	t.Helper()
	raw, err := json.Marshal(event)
	if err != nil {
		t.Fatal(err)
	}
	return messaging.Message{Topic: "orders.events", Key: []byte(event.OrderID), Value: raw}
}

func TestHandleEventLogsByType(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	handle := HandleEvent(zap.New(core))
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	events := []ordersvc.OrderEvent{
		{Type: ordersvc.EventOrderCreated, OrderID: "1", Status: dto.StatusPending, CustomerName: "Ada", OccurredAt: at},
		{Type: ordersvc.EventOrderUpdated, OrderID: "1", Status: dto.StatusReady, PreviousStatus: dto.StatusPending, OccurredAt: at},
		{Type: ordersvc.EventOrderUpdated, OrderID: "1", Status: dto.StatusReady, PreviousStatus: dto.StatusReady, OccurredAt: at},
		{Type: "order.deleted", OrderID: "1", OccurredAt: at},
	}
	for _, ev := range events {
		if err := handle(context.Background(), eventMessage(t, ev)); err != nil {
			t.Fatalf("%s: %v", ev.Type, err)
		}
	}

	want := []string{"order received", "order status changed", "order details updated", "ignoring unknown order event"}
	entries := logs.All()
	if len(entries) != len(want) {
		t.Fatalf("logged %d entries", len(entries))
	}
	for i, w := range want {
		if entries[i].Message != w {
			t.Errorf("entry %d = %q, want %q", i, entries[i].Message, w)
		}
	}
	if got := entries[1].ContextMap()["previous_status"]; got != "pending" {
		t.Errorf("previous_status = %v", got)
	}
}

func TestHandleEventRejectsGarbage(t *testing.T) {
	handle := HandleEvent(zap.NewNop())
	err := handle(context.Background(), messaging.Message{Topic: "orders.events", Value: []byte("{nope")})
	if err == nil {
		t.Fatal("expected decode error")
	}
}

func TestRegistrationUsesClientTopic(t *testing.T) {
	reg := NewEventsHandler(zap.NewNop(), messaging.NewNoop("orders_topic"))
	if reg.Topic != "orders_topic" || reg.Handler == nil {
		t.Fatalf("registration = %+v", reg)
	}
}
