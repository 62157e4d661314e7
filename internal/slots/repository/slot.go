package repository

import (
	"context"

	"slotswap/pkg/model"
)

const (
	CollectionName = "Slots"
	TableName      = "slots"
)

// SlotRepository persists slots. Every mutation is a compare-and-swap on the
// slot version and increments it on success; a mismatch yields
// ErrVersionConflict. Inside a transaction ctx, writes join that transaction.
type SlotRepository interface {
	Create(ctx context.Context, slot *model.Slot) error
	FindByID(ctx context.Context, id string) (*model.Slot, error)
	FindByOwner(ctx context.Context, owner string) ([]*model.Slot, error)
	FindSwappable(ctx context.Context, excludeOwner string, limit int, offset int64) ([]*model.Slot, error)
	CountSwappable(ctx context.Context, excludeOwner string) (int64, error)
	UpdateDetails(ctx context.Context, slot *model.Slot) error
	Transition(ctx context.Context, id string, expectedVersion int64, t model.SlotTransition) error
	Delete(ctx context.Context, id string, expectedVersion int64) error
}
