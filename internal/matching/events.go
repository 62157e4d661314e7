package matching

import (
	"context"
	"time"

	"slotswap/pkg/kafka"
	"slotswap/pkg/logger"
	"slotswap/pkg/middleware"
	"slotswap/pkg/model"
)

type EventType string

const (
	EventSwapRequested EventType = "swap.requested"
	EventSwapAccepted  EventType = "swap.accepted"
	EventSwapRejected  EventType = "swap.rejected"
	EventSwapCancelled EventType = "swap.cancelled"
)

const (
	eventSchemaVersion = "1"
	eventSource        = "slotswap"
)

// SwapEvent describes a committed change to a swap request.
type SwapEvent struct {
	Type            EventType        `json:"type"`
	RequestID       string           `json:"request_id"`
	RequesterID     string           `json:"requester_id"`
	ReceiverID      string           `json:"receiver_id"`
	OfferedSlotID   string           `json:"offered_slot_id"`
	RequestedSlotID string           `json:"requested_slot_id"`
	Status          model.SwapStatus `json:"status"`
	Reason          string           `json:"reason,omitempty"`
	OccurredAt      time.Time        `json:"occurred_at"`
}

func newSwapEvent(eventType EventType, req *model.SwapRequest, reason string) SwapEvent {
	return SwapEvent{
		Type:            eventType,
		RequestID:       req.ID,
		RequesterID:     req.RequesterID,
		ReceiverID:      req.ReceiverID,
		OfferedSlotID:   req.OfferedSlotID,
		RequestedSlotID: req.RequestedSlotID,
		Status:          req.Status,
		Reason:          reason,
		OccurredAt:      time.Now().UTC(),
	}
}

// EventPublisher emits swap events once the change they describe is durable.
type EventPublisher interface {
	Publish(ctx context.Context, event SwapEvent) error
}

type kafkaEventPublisher struct {
	producer kafka.Publisher
	log      *logger.Logger
}

// NewKafkaEventPublisher keys every event by request id so the events of one
// negotiation stay ordered on a single partition.
func NewKafkaEventPublisher(producer kafka.Publisher, log *logger.Logger) EventPublisher {
	return &kafkaEventPublisher{producer: producer, log: log.Component("swap-events")}
}

func (p *kafkaEventPublisher) Publish(ctx context.Context, event SwapEvent) error {
	msg, err := kafka.NewMessage().
		WithKey(event.RequestID).
		WithEventID(event.RequestID+"/"+string(event.Type)).
		WithValue(event).
		WithEventType(string(event.Type)).
		WithCorrelationID(middleware.RequestIDFromContext(ctx)).
		WithSchemaVersion(eventSchemaVersion).
		WithSource(eventSource).
		Build()
	if err != nil {
		return err
	}
	return p.producer.Publish(ctx, msg)
}

type noopPublisher struct{}

// NoopPublisher drops every event. Used when events are disabled.
func NoopPublisher() EventPublisher {
	return noopPublisher{}
}

func (noopPublisher) Publish(context.Context, SwapEvent) error { return nil }
