package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Additional-Code/orderdesk/internal/config"
	"github.com/Additional-Code/orderdesk/internal/messaging"
)

// scriptedClient delivers a fixed batch of messages, then blocks until cancelled.
type scriptedClient struct {
	messaging.Client
	topic    string
	messages []messaging.Message
	once     sync.Once
}

func (c *scriptedClient) Topic() string { return c.topic }

func (c *scriptedClient) Consume(ctx context.Context, handler messaging.Handler) error {
	c.once.Do(func() {
		for _, m := range c.messages {
			_ = handler(ctx, m)
		}
	})
	<-ctx.Done()
	return ctx.Err()
}

func enabledConfig() config.Config {
	var cfg config.Config
	cfg.Messaging.Enabled = true
	cfg.Messaging.Workers.Enabled = true
	cfg.Messaging.Workers.Concurrency = 2
	return cfg
}

func TestDispatchRoutesByTopic(t *testing.T) {
	var got []string
	engine := NewEngine(Params{
		Client: messaging.NewNoop("orders"),
		Logger: zap.NewNop(),
		Config: enabledConfig(),
		Registrations: []HandlerRegistration{
			{Topic: "orders", Handler: func(_ context.Context, m messaging.Message) error {
				got = append(got, string(m.Value))
				return nil
			}},
			{Topic: "broken", Handler: func(context.Context, messaging.Message) error {
				return errors.New("handler failed")
			}},
			{Topic: "", Handler: func(context.Context, messaging.Message) error { return nil }},
		},
	})

	if err := engine.Dispatch(context.Background(), messaging.Message{Topic: "orders", Value: []byte("a")}); err != nil {
		t.Fatal(err)
	}
	if err := engine.Dispatch(context.Background(), messaging.Message{Topic: "unknown"}); err != nil {
		t.Fatalf("unrouted topics are dropped, got %v", err)
	}
	if err := engine.Dispatch(context.Background(), messaging.Message{Topic: "broken"}); err == nil {
		t.Fatal("handler errors must propagate")
	}
	if len(got) != 1 || got[0] != "a" {
		t.Fatalf("handled = %v", got)
	}
	if len(engine.registrations) != 2 {
		t.Fatalf("registrations = %d", len(engine.registrations))
	}
}

func TestEngineConsumesUntilStopped(t *testing.T) {
	handled := make(chan string, 4)
	client := &scriptedClient{
		topic:    "orders",
		messages: []messaging.Message{{Topic: "orders", Value: []byte("1")}, {Topic: "orders", Value: []byte("2")}},
	}
	engine := NewEngine(Params{
		Client: client,
		Logger: zap.NewNop(),
		Config: enabledConfig(),
		Registrations: []HandlerRegistration{{Topic: "orders", Handler: func(_ context.Context, m messaging.Message) error {
			handled <- string(m.Value)
			return nil
		}}},
	})

	if err := engine.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		select {
		case <-handled:
		case <-time.After(2 * time.Second):
			t.Fatal("message not handled")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := engine.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestDisabledEngineDoesNothing(t *testing.T) {
	engine := NewEngine(Params{
		Client: messaging.NewNoop("orders"),
		Logger: zap.NewNop(),
		Config: config.Config{},
	})
	if err := engine.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := engine.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
}
