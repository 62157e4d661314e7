package kafka_middleware

import (
	"context"
	"errors"
	"testing"

	"slotswap/pkg/kafka"
	"slotswap/pkg/logger"
)

func TestMetricsMiddleware(t *testing.T) {
	m := &Metrics{}
	publish := m.ProducerMiddleware()
	consume := m.ConsumerMiddleware()
	ctx := context.Background()
	msg := kafka.Message{Key: "slot-1", Value: []byte(`{}`)}

	ok := func(ctx context.Context, msg kafka.Message) error { return nil }
	fail := func(ctx context.Context, msg kafka.Message) error { return errors.New("broker down") }

	_ = publish(ctx, msg, ok)
	_ = publish(ctx, msg, ok)
	if err := publish(ctx, msg, fail); err == nil {
		t.Errorf("producer middleware should return the downstream error")
	}
	_ = consume(ctx, msg, ok)
	_ = consume(ctx, msg, fail)

	s := m.Snapshot()
	if s.Published != 2 || s.PublishFailed != 1 {
		t.Errorf("publish counters = %d/%d, want 2/1", s.Published, s.PublishFailed)
	}
	if s.Consumed != 1 || s.ConsumeFailed != 1 {
		t.Errorf("consume counters = %d/%d, want 1/1", s.Consumed, s.ConsumeFailed)
	}
}

func TestLoggingMiddleware_PassesThrough(t *testing.T) {
	log := logger.Discard()
	ctx := context.Background()
	msg := kafka.NewMessage().WithKey("r1").WithEventType("swap.accepted")
	built, err := msg.WithValue(map[string]string{"id": "r1"}).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	sentinel := errors.New("handler failed")
	var seen kafka.Message
	err = LoggingConsumerMiddleware(log)(ctx, built, func(ctx context.Context, m kafka.Message) error {
		seen = m
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("got %v, want handler error", err)
	}
	if seen.GetEventType() != "swap.accepted" {
		t.Errorf("handler saw event type %q", seen.GetEventType())
	}

	called := false
	err = LoggingProducerMiddleware(log)(ctx, built, func(ctx context.Context, m kafka.Message) error {
		called = true
		return nil
	})
	if err != nil || !called {
		t.Errorf("producer middleware should call next and return nil, err=%v called=%v", err, called)
	}
}
