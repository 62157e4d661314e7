package matching

import (
	"context"

	"slotswap/pkg/kafka"
	"slotswap/pkg/logger"
)

// OfferSweeper applies the eager stale-offer policy out of band: each
// swap.accepted event rejects the PENDING requests that offered either of the
// exchanged slots.
type OfferSweeper struct {
	coordinator Coordinator
	log         *logger.Logger
}

func NewOfferSweeper(coordinator Coordinator, log *logger.Logger) *OfferSweeper {
	return &OfferSweeper{coordinator: coordinator, log: log.Component("offer-sweeper")}
}

// Handle is a kafka.MessageHandler. Events other than swap.accepted are
// skipped.
func (s *OfferSweeper) Handle(ctx context.Context, msg kafka.Message) error {
	if msg.GetEventType() != string(EventSwapAccepted) {
		return nil
	}

	var event SwapEvent
	if err := msg.DecodeValue(&event); err != nil {
		return kafka.NewPermanentError("failed to decode swap event", err)
	}
	if event.OfferedSlotID == "" || event.RequestedSlotID == "" {
		return kafka.NewPermanentError("swap.accepted event without slot ids", nil)
	}

	rejected, err := s.coordinator.InvalidateStaleOffers(ctx, event.OfferedSlotID, event.RequestedSlotID)
	if err != nil {
		return kafka.NewTransientError("failed to invalidate stale offers", err)
	}

	s.log.Info("Swept stale offers",
		"request_id", event.RequestID,
		"correlation_id", msg.GetCorrelationID(),
		"rejected", rejected,
	)
	return nil
}
