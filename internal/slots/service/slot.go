package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	slotserrors "slotswap/internal/slots/errors"
	"slotswap/internal/slots/repository"
	"slotswap/internal/slots/validator"
	"slotswap/pkg/config"
	apperrors "slotswap/pkg/errors"
	"slotswap/pkg/model"
	"slotswap/pkg/sanitizer"

	"github.com/google/uuid"
)

// SlotService is the slot registry. The owner-facing methods enforce
// ownership; Load, Reserve, Release and TransferOwnership are reserved for the
// matching coordinator and trust their caller.
type SlotService interface {
	Create(ctx context.Context, owner string, input *model.SlotInput) (*model.Slot, error)
	GetByID(ctx context.Context, id string, requester string) (*model.Slot, error)
	ListByOwner(ctx context.Context, owner string) ([]*model.Slot, error)
	ListSwappable(ctx context.Context, principal string, limit int, offset int64) ([]*model.Slot, int64, error)
	Update(ctx context.Context, id string, requester string, update *model.SlotUpdate) (*model.Slot, error)
	SetStatus(ctx context.Context, id string, requester string, status model.SlotStatus) (*model.Slot, error)
	Delete(ctx context.Context, id string, requester string) error

	Load(ctx context.Context, id string) (*model.Slot, error)
	Reserve(ctx context.Context, slot *model.Slot) error
	Release(ctx context.Context, slot *model.Slot) error
	TransferOwnership(ctx context.Context, slot *model.Slot, fromOwner, toOwner string, resetStatus model.SlotStatus) error
}

type slotService struct {
	repo      repository.SlotRepository
	validator *validator.SlotValidator
	cfg       *config.Config
}

func NewSlotService(
	repo repository.SlotRepository,
	validator *validator.SlotValidator,
	cfg *config.Config,
) SlotService {
	return &slotService{
		repo:      repo,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *slotService) Create(ctx context.Context, owner string, input *model.SlotInput) (*model.Slot, error) {
	if owner == "" {
		return nil, apperrors.Unauthorized("Authentication required")
	}

	input.Title = sanitizer.SanitizeTitle(input.Title)
	if err := s.validator.ValidateInput(input); err != nil {
		s.cfg.Log.Warn("Slot validation failed", "owner", owner, "error", err)
		return nil, apperrors.Validation("Slot validation failed", map[string]any{"error": err.Error()})
	}

	now := s.now()
	slot := &model.Slot{
		ID:        uuid.New().String(),
		Owner:     owner,
		Title:     input.Title,
		StartTime: input.StartTime.UTC().Truncate(time.Millisecond),
		EndTime:   input.EndTime.UTC().Truncate(time.Millisecond),
		Status:    model.SlotBusy,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, slot); err != nil {
		s.cfg.Log.Error("Failed to create slot", "owner", owner, "error", err)
		return nil, apperrors.Internal("Failed to create slot", err)
	}

	s.cfg.Log.Info("Slot created successfully",
		"slot_id", slot.ID,
		"owner", owner,
		"start_time", slot.StartTime,
	)
	return slot, nil
}

func (s *slotService) GetByID(ctx context.Context, id string, requester string) (*model.Slot, error) {
	slot, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if slot.Owner != requester {
		return nil, apperrors.Forbidden("You do not own this slot")
	}
	return slot, nil
}

func (s *slotService) ListByOwner(ctx context.Context, owner string) ([]*model.Slot, error) {
	slots, err := s.repo.FindByOwner(ctx, owner)
	if err != nil {
		s.cfg.Log.Error("Failed to list slots", "owner", owner, "error", err)
		return nil, apperrors.Internal("Failed to retrieve slots", err)
	}
	return slots, nil
}

func (s *slotService) ListSwappable(ctx context.Context, principal string, limit int, offset int64) ([]*model.Slot, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	count, err := s.repo.CountSwappable(ctx, principal)
	if err != nil {
		s.cfg.Log.Error("Failed to count swappable slots", "error", err)
		return nil, 0, apperrors.Internal("Failed to count swappable slots", err)
	}

	slots, err := s.repo.FindSwappable(ctx, principal, limit, offset)
	if err != nil {
		s.cfg.Log.Error("Failed to list swappable slots", "error", err)
		return nil, 0, apperrors.Internal("Failed to retrieve swappable slots", err)
	}
	return slots, count, nil
}

func (s *slotService) Update(ctx context.Context, id string, requester string, update *model.SlotUpdate) (*model.Slot, error) {
	if update.IsEmpty() {
		return nil, apperrors.InvalidInput("No fields to update")
	}
	if update.Title != nil {
		title := sanitizer.SanitizeTitle(*update.Title)
		update.Title = &title
	}

	slot, err := s.ownedSlot(ctx, id, requester)
	if err != nil {
		return nil, err
	}
	if slot.Status == model.SlotSwapPending {
		return nil, apperrors.InvalidTransition("Slot cannot be edited while a swap is pending")
	}

	merged := update.Apply(slot)
	merged.StartTime = merged.StartTime.UTC().Truncate(time.Millisecond)
	merged.EndTime = merged.EndTime.UTC().Truncate(time.Millisecond)
	if err := s.validator.ValidateSlot(merged); err != nil {
		s.cfg.Log.Warn("Slot update validation failed", "slot_id", id, "error", err)
		return nil, apperrors.Validation("Slot validation failed", map[string]any{"error": err.Error()})
	}
	merged.UpdatedAt = s.now()

	if err := s.repo.UpdateDetails(ctx, merged); err != nil {
		return nil, s.mapWriteError(err, id)
	}

	merged.Version++
	s.cfg.Log.Info("Slot updated successfully", "slot_id", id, "owner", requester)
	return merged, nil
}

// SetStatus applies an owner transition. Requesting the current status is a
// no-op.
func (s *slotService) SetStatus(ctx context.Context, id string, requester string, status model.SlotStatus) (*model.Slot, error) {
	if !status.IsValid() {
		return nil, apperrors.Validation("Invalid slot status", map[string]any{"status": status})
	}
	if status == model.SlotSwapPending {
		return nil, apperrors.InvalidTransition("SWAP_PENDING can only be set by a swap request")
	}

	slot, err := s.ownedSlot(ctx, id, requester)
	if err != nil {
		return nil, err
	}
	if slot.Status == model.SlotSwapPending {
		return nil, apperrors.InvalidTransition("Slot status cannot change while a swap is pending")
	}
	if slot.Status == status {
		return slot, nil
	}
	if !slot.Status.CanTransitionTo(status, model.ActorOwner) {
		return nil, apperrors.InvalidTransition(fmt.Sprintf("Cannot change slot status from %s to %s", slot.Status, status))
	}

	if err := s.repo.Transition(ctx, id, slot.Version, model.SlotTransition{Status: status}); err != nil {
		return nil, s.mapWriteError(err, id)
	}

	slot.Status = status
	slot.Version++
	slot.UpdatedAt = s.now()
	s.cfg.Log.Info("Slot status changed", "slot_id", id, "owner", requester, "status", status)
	return slot, nil
}

func (s *slotService) Delete(ctx context.Context, id string, requester string) error {
	slot, err := s.ownedSlot(ctx, id, requester)
	if err != nil {
		return err
	}
	if slot.Status == model.SlotSwapPending {
		return apperrors.InvalidTransition("Slot cannot be deleted while a swap is pending")
	}

	if err := s.repo.Delete(ctx, id, slot.Version); err != nil {
		return s.mapWriteError(err, id)
	}

	s.cfg.Log.Info("Slot deleted successfully", "slot_id", id, "owner", requester)
	return nil
}

func (s *slotService) Load(ctx context.Context, id string) (*model.Slot, error) {
	id = sanitizer.SanitizeID(id)
	if id == "" {
		return nil, apperrors.InvalidInput("Slot ID cannot be empty")
	}
	if err := uuid.Validate(id); err != nil {
		return nil, apperrors.InvalidInput("Invalid slot ID format")
	}

	slot, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, slotserrors.ErrNotFound) {
			return nil, apperrors.Wrap(slotserrors.ErrNotFound, apperrors.CodeNotFound, "Slot not found", http.StatusNotFound).
				WithDetails(map[string]any{"resource": "Slot", "id": id})
		}
		s.cfg.Log.Error("Failed to retrieve slot", "slot_id", id, "error", err)
		return nil, apperrors.Internal("Failed to retrieve slot", err)
	}
	return slot, nil
}

// Reserve moves a SWAPPABLE slot to SWAP_PENDING, provided it is still at the
// version it was read at.
func (s *slotService) Reserve(ctx context.Context, slot *model.Slot) error {
	return s.coordinatorTransition(ctx, slot, model.SlotTransition{Status: model.SlotSwapPending})
}

// Release returns a SWAP_PENDING slot to SWAPPABLE.
func (s *slotService) Release(ctx context.Context, slot *model.Slot) error {
	return s.coordinatorTransition(ctx, slot, model.SlotTransition{Status: model.SlotSwappable})
}

func (s *slotService) TransferOwnership(ctx context.Context, slot *model.Slot, fromOwner, toOwner string, resetStatus model.SlotStatus) error {
	if slot.Owner != fromOwner {
		return apperrors.Consistency(fmt.Errorf("transfer of slot %s from %s: current owner is %s", slot.ID, fromOwner, slot.Owner))
	}
	if toOwner == "" {
		return apperrors.Consistency(fmt.Errorf("transfer of slot %s to an empty owner", slot.ID))
	}
	return s.coordinatorTransition(ctx, slot, model.SlotTransition{Status: resetStatus, Owner: toOwner})
}

// --- Helpers ---

func (s *slotService) coordinatorTransition(ctx context.Context, slot *model.Slot, t model.SlotTransition) error {
	if !slot.Status.CanTransitionTo(t.Status, model.ActorCoordinator) {
		return apperrors.InvalidTransition(fmt.Sprintf("Cannot change slot status from %s to %s", slot.Status, t.Status))
	}
	if err := s.repo.Transition(ctx, slot.ID, slot.Version, t); err != nil {
		return s.mapWriteError(err, slot.ID)
	}
	return nil
}

func (s *slotService) ownedSlot(ctx context.Context, id string, requester string) (*model.Slot, error) {
	slot, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if slot.Owner != requester {
		s.cfg.Log.Warn("Slot ownership check failed", "slot_id", id, "requester", requester)
		return nil, apperrors.Forbidden("You do not own this slot")
	}
	return slot, nil
}

// mapWriteError keeps the repository sentinel reachable through errors.Is so
// the coordinator can tell a lost race from other failures.
func (s *slotService) mapWriteError(err error, id string) error {
	switch {
	case errors.Is(err, slotserrors.ErrVersionConflict):
		return apperrors.Wrap(err, apperrors.CodeConflict, "Slot was modified concurrently, retry the request", http.StatusConflict)
	case errors.Is(err, slotserrors.ErrNotFound):
		return apperrors.Wrap(err, apperrors.CodeNotFound, "Slot not found", http.StatusNotFound).
			WithDetails(map[string]any{"resource": "Slot", "id": id})
	default:
		s.cfg.Log.Error("Failed to write slot", "slot_id", id, "error", err)
		return apperrors.Internal("Failed to update slot", err)
	}
}

func (s *slotService) now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
