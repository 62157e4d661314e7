package model

import "time"

type SwapStatus string

const (
	SwapPending   SwapStatus = "PENDING"
	SwapAccepted  SwapStatus = "ACCEPTED"
	SwapRejected  SwapStatus = "REJECTED"
	SwapCancelled SwapStatus = "CANCELLED"
)

func (s SwapStatus) IsValid() bool {
	switch s {
	case SwapPending, SwapAccepted, SwapRejected, SwapCancelled:
		return true
	}
	return false
}

func (s SwapStatus) IsTerminal() bool {
	return s == SwapAccepted || s == SwapRejected || s == SwapCancelled
}

// CanTransitionTo reports whether a request may move from s to next. Only
// PENDING requests move, and only into a terminal state.
func (s SwapStatus) CanTransitionTo(next SwapStatus) bool {
	return s == SwapPending && next.IsTerminal()
}

type SwapRequest struct {
	ID              string     `json:"id" bson:"_id"`
	RequesterID     string     `json:"requester_id" bson:"requester_id"`
	ReceiverID      string     `json:"receiver_id" bson:"receiver_id"`
	OfferedSlotID   string     `json:"offered_slot_id" bson:"offered_slot_id"`
	RequestedSlotID string     `json:"requested_slot_id" bson:"requested_slot_id"`
	Status          SwapStatus `json:"status" bson:"status"`
	CreatedAt       time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" bson:"updated_at"`
	ClosedAt        *time.Time `json:"closed_at,omitempty" bson:"closed_at,omitempty"`
}

func (r *SwapRequest) Clone() *SwapRequest {
	if r == nil {
		return nil
	}
	c := *r
	if r.ClosedAt != nil {
		t := *r.ClosedAt
		c.ClosedAt = &t
	}
	return &c
}

type SwapRequestInput struct {
	OfferedSlotID   string `json:"my_slot_id" validate:"required,max=64"`
	RequestedSlotID string `json:"their_slot_id" validate:"required,max=64,nefield=OfferedSlotID"`
}

type SwapResponseInput struct {
	Accept *bool `json:"accept" validate:"required"`
}
