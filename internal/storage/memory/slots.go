package memory

import (
	"context"
	"sort"

	slotserrors "slotswap/internal/slots/errors"
	slotsrepo "slotswap/internal/slots/repository"
	"slotswap/pkg/model"
)

type slotRepository struct {
	store *Store
}

func (s *Store) SlotRepository() slotsrepo.SlotRepository {
	return &slotRepository{store: s}
}

func (r *slotRepository) Create(ctx context.Context, slot *model.Slot) error {
	return r.store.write(ctx, op{kind: opSlotCreate, slot: slot.Clone()})
}

func (r *slotRepository) FindByID(ctx context.Context, id string) (*model.Slot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.store.mu.RLock()
	slot, ok := r.store.slots[id]
	r.store.mu.RUnlock()
	if !ok {
		return nil, slotserrors.ErrNotFound
	}
	return slot.Clone(), nil
}

func (r *slotRepository) FindByOwner(ctx context.Context, owner string) ([]*model.Slot, error) {
	return r.filter(ctx, func(s *model.Slot) bool { return s.Owner == owner })
}

func (r *slotRepository) FindSwappable(ctx context.Context, excludeOwner string, limit int, offset int64) ([]*model.Slot, error) {
	slots, err := r.filter(ctx, swappableExcept(excludeOwner))
	if err != nil {
		return nil, err
	}
	if offset >= int64(len(slots)) {
		return []*model.Slot{}, nil
	}
	end := min(int(offset)+limit, len(slots))
	return slots[offset:end], nil
}

func (r *slotRepository) CountSwappable(ctx context.Context, excludeOwner string) (int64, error) {
	slots, err := r.filter(ctx, swappableExcept(excludeOwner))
	if err != nil {
		return 0, err
	}
	return int64(len(slots)), nil
}

func (r *slotRepository) UpdateDetails(ctx context.Context, slot *model.Slot) error {
	return r.store.write(ctx, op{
		kind:            opSlotDetails,
		slotID:          slot.ID,
		expectedVersion: slot.Version,
		slot:            slot.Clone(),
		updatedAt:       slot.UpdatedAt,
	})
}

func (r *slotRepository) Transition(ctx context.Context, id string, expectedVersion int64, t model.SlotTransition) error {
	return r.store.write(ctx, op{
		kind:            opSlotTransition,
		slotID:          id,
		expectedVersion: expectedVersion,
		transition:      t,
		updatedAt:       r.store.now(),
	})
}

func (r *slotRepository) Delete(ctx context.Context, id string, expectedVersion int64) error {
	return r.store.write(ctx, op{kind: opSlotDelete, slotID: id, expectedVersion: expectedVersion})
}

func swappableExcept(owner string) func(*model.Slot) bool {
	return func(s *model.Slot) bool {
		return s.Status == model.SlotSwappable && s.Owner != owner
	}
}

// filter returns matching slots ordered by start time, then ID.
func (r *slotRepository) filter(ctx context.Context, match func(*model.Slot) bool) ([]*model.Slot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	out := make([]*model.Slot, 0)
	for _, slot := range r.store.slots {
		if match(slot) {
			out = append(out, slot.Clone())
		}
	}
	r.store.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
