package model

import "time"

type SlotStatus string

const (
	SlotBusy        SlotStatus = "BUSY"
	SlotSwappable   SlotStatus = "SWAPPABLE"
	SlotSwapPending SlotStatus = "SWAP_PENDING"
)

// Actor identifies who drives a slot status change.
type Actor int

const (
	ActorOwner Actor = iota
	ActorCoordinator
)

func (s SlotStatus) IsValid() bool {
	switch s {
	case SlotBusy, SlotSwappable, SlotSwapPending:
		return true
	}
	return false
}

// CanTransitionTo is the single source of truth for the slot state machine.
//
// Owners may only toggle BUSY and SWAPPABLE. SWAP_PENDING is entered and left
// exclusively by the coordinator: SWAPPABLE -> SWAP_PENDING when a request
// reserves the slot, SWAP_PENDING -> SWAPPABLE on reject or cancel, and
// SWAP_PENDING|SWAPPABLE -> BUSY when an exchange is accepted.
func (s SlotStatus) CanTransitionTo(next SlotStatus, actor Actor) bool {
	switch actor {
	case ActorOwner:
		return (s == SlotBusy && next == SlotSwappable) ||
			(s == SlotSwappable && next == SlotBusy)
	case ActorCoordinator:
		switch s {
		case SlotSwappable:
			return next == SlotSwapPending || next == SlotBusy
		case SlotSwapPending:
			return next == SlotSwappable || next == SlotBusy
		}
	}
	return false
}

type Slot struct {
	ID        string     `json:"id" bson:"_id"`
	Owner     string     `json:"owner" bson:"owner"`
	Title     string     `json:"title" bson:"title" validate:"required,notblank,max=200"`
	StartTime time.Time  `json:"start_time" bson:"start_time" validate:"required"`
	EndTime   time.Time  `json:"end_time" bson:"end_time" validate:"required,gtfield=StartTime"`
	Status    SlotStatus `json:"status" bson:"status"`
	Version   int64      `json:"version" bson:"version"`
	CreatedAt time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" bson:"updated_at"`
}

func (s *Slot) Clone() *Slot {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

type SlotInput struct {
	Title     string    `json:"title" validate:"required,notblank,max=200"`
	StartTime time.Time `json:"start_time" validate:"required"`
	EndTime   time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
}

type SlotUpdate struct {
	Title     *string    `json:"title,omitempty"`
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
}

func (u *SlotUpdate) IsEmpty() bool {
	return u == nil || (u.Title == nil && u.StartTime == nil && u.EndTime == nil)
}

// Apply merges u into a copy of s and returns the copy.
func (u *SlotUpdate) Apply(s *Slot) *Slot {
	merged := s.Clone()
	if u == nil {
		return merged
	}
	if u.Title != nil {
		merged.Title = *u.Title
	}
	if u.StartTime != nil {
		merged.StartTime = *u.StartTime
	}
	if u.EndTime != nil {
		merged.EndTime = *u.EndTime
	}
	return merged
}

type StatusChange struct {
	Status SlotStatus `json:"status" validate:"required,oneof=BUSY SWAPPABLE SWAP_PENDING"`
}

// SlotTransition is a compare-and-swap mutation applied by repositories. Owner
// is left unchanged when empty.
type SlotTransition struct {
	Status SlotStatus
	Owner  string
}
