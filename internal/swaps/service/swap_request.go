package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	swapserrors "slotswap/internal/swaps/errors"
	"slotswap/internal/swaps/repository"
	"slotswap/pkg/config"
	apperrors "slotswap/pkg/errors"
	"slotswap/pkg/model"
	"slotswap/pkg/sanitizer"

	"github.com/google/uuid"
)

// SwapLedger records swap requests and their lifecycle. It performs no
// cross-slot validation.
type SwapLedger interface {
	Open(ctx context.Context, requester, offeredSlotID, receiver, requestedSlotID string) (*model.SwapRequest, error)
	Close(ctx context.Context, id string, outcome model.SwapStatus) error
	GetByID(ctx context.Context, id string) (*model.SwapRequest, error)
	ListIncoming(ctx context.Context, principal string, status model.SwapStatus) ([]*model.SwapRequest, error)
	ListOutgoing(ctx context.Context, principal string, status model.SwapStatus) ([]*model.SwapRequest, error)
	ListPendingByOfferedSlot(ctx context.Context, slotIDs ...string) ([]*model.SwapRequest, error)
}

type swapLedger struct {
	repo repository.SwapRequestRepository
	cfg  *config.Config
}

func NewSwapLedger(repo repository.SwapRequestRepository, cfg *config.Config) SwapLedger {
	return &swapLedger{
		repo: repo,
		cfg:  cfg,
	}
}

func (l *swapLedger) Open(ctx context.Context, requester, offeredSlotID, receiver, requestedSlotID string) (*model.SwapRequest, error) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	req := &model.SwapRequest{
		ID:              uuid.New().String(),
		RequesterID:     requester,
		ReceiverID:      receiver,
		OfferedSlotID:   offeredSlotID,
		RequestedSlotID: requestedSlotID,
		Status:          model.SwapPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := l.repo.Create(ctx, req); err != nil {
		if errors.Is(err, swapserrors.ErrDuplicatePending) {
			return nil, apperrors.Wrap(err, apperrors.CodeConflict, "Slot no longer available", http.StatusConflict)
		}
		l.cfg.Log.Error("Failed to open swap request",
			"requester", requester,
			"requested_slot_id", requestedSlotID,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to open swap request", err)
	}
	return req, nil
}

// Close moves a PENDING request into outcome. A request closes exactly once.
func (l *swapLedger) Close(ctx context.Context, id string, outcome model.SwapStatus) error {
	if !model.SwapPending.CanTransitionTo(outcome) {
		return apperrors.InvalidTransition(fmt.Sprintf("Cannot close a swap request as %s", outcome))
	}

	err := l.repo.Close(ctx, id, outcome, time.Now().UTC().Truncate(time.Millisecond))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, swapserrors.ErrNotPending):
		return apperrors.Wrap(err, apperrors.CodeInvalidTransition, "Swap request is no longer pending", http.StatusConflict)
	case errors.Is(err, swapserrors.ErrNotFound):
		return apperrors.Wrap(err, apperrors.CodeNotFound, "Swap request not found", http.StatusNotFound).
			WithDetails(map[string]any{"resource": "Swap request", "id": id})
	default:
		l.cfg.Log.Error("Failed to close swap request", "request_id", id, "outcome", outcome, "error", err)
		return apperrors.Internal("Failed to close swap request", err)
	}
}

func (l *swapLedger) GetByID(ctx context.Context, id string) (*model.SwapRequest, error) {
	id = sanitizer.SanitizeID(id)
	if id == "" {
		return nil, apperrors.InvalidInput("Swap request ID cannot be empty")
	}
	if err := uuid.Validate(id); err != nil {
		return nil, apperrors.InvalidInput("Invalid swap request ID format")
	}

	req, err := l.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, swapserrors.ErrNotFound) {
			return nil, apperrors.Wrap(err, apperrors.CodeNotFound, "Swap request not found", http.StatusNotFound).
				WithDetails(map[string]any{"resource": "Swap request", "id": id})
		}
		l.cfg.Log.Error("Failed to retrieve swap request", "request_id", id, "error", err)
		return nil, apperrors.Internal("Failed to retrieve swap request", err)
	}
	return req, nil
}

func (l *swapLedger) ListIncoming(ctx context.Context, principal string, status model.SwapStatus) ([]*model.SwapRequest, error) {
	requests, err := l.repo.FindByReceiver(ctx, principal, status)
	if err != nil {
		l.cfg.Log.Error("Failed to list incoming swap requests", "principal", principal, "error", err)
		return nil, apperrors.Internal("Failed to retrieve swap requests", err)
	}
	return requests, nil
}

func (l *swapLedger) ListOutgoing(ctx context.Context, principal string, status model.SwapStatus) ([]*model.SwapRequest, error) {
	requests, err := l.repo.FindByRequester(ctx, principal, status)
	if err != nil {
		l.cfg.Log.Error("Failed to list outgoing swap requests", "principal", principal, "error", err)
		return nil, apperrors.Internal("Failed to retrieve swap requests", err)
	}
	return requests, nil
}

func (l *swapLedger) ListPendingByOfferedSlot(ctx context.Context, slotIDs ...string) ([]*model.SwapRequest, error) {
	if len(slotIDs) == 0 {
		return []*model.SwapRequest{}, nil
	}
	requests, err := l.repo.FindPendingByOfferedSlots(ctx, slotIDs)
	if err != nil {
		l.cfg.Log.Error("Failed to list pending offers", "slot_ids", slotIDs, "error", err)
		return nil, apperrors.Internal("Failed to retrieve swap requests", err)
	}
	return requests, nil
}
