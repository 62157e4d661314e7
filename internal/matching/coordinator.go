// Package matching coordinates swap negotiations across the slot registry and
// the swap ledger. It owns every cross-entity invariant: a requested slot is
// promised to at most one open request, and an accepted exchange moves both
// slots in a single transaction.
package matching

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"slotswap/internal/directory"
	slotserrors "slotswap/internal/slots/errors"
	slotsservice "slotswap/internal/slots/service"
	swapserrors "slotswap/internal/swaps/errors"
	swapsservice "slotswap/internal/swaps/service"
	"slotswap/pkg/config"
	"slotswap/pkg/db"
	apperrors "slotswap/pkg/errors"
	"slotswap/pkg/model"
	"slotswap/pkg/sanitizer"
)

type Coordinator interface {
	RequestSwap(ctx context.Context, requester, offeredSlotID, requestedSlotID string) (*model.SwapRequest, error)
	Respond(ctx context.Context, requestID, principal string, accept bool) (*model.SwapRequest, error)
	Cancel(ctx context.Context, requestID, principal string) (*model.SwapRequest, error)
	GetRequest(ctx context.Context, requestID, principal string) (*model.SwapRequest, error)
	ListIncoming(ctx context.Context, principal string, status model.SwapStatus) ([]*model.SwapRequest, error)
	ListOutgoing(ctx context.Context, principal string, status model.SwapStatus) ([]*model.SwapRequest, error)
	// InvalidateStaleOffers rejects PENDING requests whose offered slot is one
	// of slotIDs and can no longer be delivered. It returns how many it closed.
	InvalidateStaleOffers(ctx context.Context, slotIDs ...string) (int, error)
}

type coordinator struct {
	slots     slotsservice.SlotService
	ledger    swapsservice.SwapLedger
	txManager db.TransactionManager
	directory directory.Directory
	events    EventPublisher
	cfg       *config.Config
}

func NewCoordinator(
	slots slotsservice.SlotService,
	ledger swapsservice.SwapLedger,
	txManager db.TransactionManager,
	dir directory.Directory,
	events EventPublisher,
	cfg *config.Config,
) Coordinator {
	if events == nil {
		events = NoopPublisher()
	}
	return &coordinator{
		slots:     slots,
		ledger:    ledger,
		txManager: txManager,
		directory: dir,
		events:    events,
		cfg:       cfg,
	}
}

// --- Open ---

func (c *coordinator) RequestSwap(ctx context.Context, requester, offeredSlotID, requestedSlotID string) (*model.SwapRequest, error) {
	if requester == "" {
		return nil, apperrors.Unauthorized("Authentication required")
	}
	offeredSlotID = sanitizer.SanitizeID(offeredSlotID)
	requestedSlotID = sanitizer.SanitizeID(requestedSlotID)
	if offeredSlotID != "" && offeredSlotID == requestedSlotID {
		return nil, apperrors.Validation("A slot cannot be swapped with itself", map[string]any{"slot_id": offeredSlotID})
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts(); attempt++ {
		req, err := c.tryRequestSwap(ctx, requester, offeredSlotID, requestedSlotID, lastErr != nil)
		if err == nil {
			c.cfg.Log.Info("Swap request opened",
				"request_id", req.ID,
				"requester", requester,
				"offered_slot_id", offeredSlotID,
				"requested_slot_id", requestedSlotID,
				"attempt", attempt,
			)
			c.publish(ctx, EventSwapRequested, req, "")
			return req, nil
		}
		if !isLostRace(err) {
			return nil, err
		}
		lastErr = err
		c.cfg.Log.Warn("Swap request lost a race, retrying",
			"requested_slot_id", requestedSlotID,
			"attempt", attempt,
			"error", err,
		)
	}
	return nil, slotUnavailable(lastErr)
}

// tryRequestSwap validates from scratch and reserves the requested slot. When
// contended is set a previous attempt lost a race, so a requested slot that is
// no longer SWAPPABLE means another negotiation took it.
func (c *coordinator) tryRequestSwap(ctx context.Context, requester, offeredSlotID, requestedSlotID string, contended bool) (*model.SwapRequest, error) {
	offered, err := c.slots.Load(ctx, offeredSlotID)
	if err != nil {
		return nil, err
	}
	requested, err := c.slots.Load(ctx, requestedSlotID)
	if err != nil {
		return nil, err
	}

	if offered.Owner != requester {
		c.cfg.Log.Warn("Swap request for a slot the requester does not own",
			"requester", requester,
			"offered_slot_id", offered.ID,
		)
		return nil, apperrors.Forbidden("You do not own the offered slot")
	}
	if offered.Owner == requested.Owner {
		return nil, apperrors.Validation("Cannot swap with your own slot", map[string]any{"requested_slot_id": requested.ID})
	}
	if offered.Status != model.SlotSwappable {
		return nil, apperrors.Validation("Offered slot is not swappable", map[string]any{"status": offered.Status})
	}
	if requested.Status != model.SlotSwappable {
		if contended {
			return nil, slotUnavailable(nil)
		}
		return nil, apperrors.Validation("Requested slot is not swappable", map[string]any{"status": requested.Status})
	}

	receiver, err := c.directory.CurrentOwner(ctx, requested.ID)
	if err != nil {
		return nil, err
	}
	if receiver.ID != requested.Owner {
		return nil, fmt.Errorf("requested slot %s changed owner: %w", requested.ID, slotserrors.ErrVersionConflict)
	}

	var opened *model.SwapRequest
	err = c.txManager.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		if err := c.slots.Reserve(txCtx, requested); err != nil {
			return err
		}
		req, err := c.ledger.Open(txCtx, requester, offered.ID, receiver.ID, requested.ID)
		if err != nil {
			return err
		}
		opened = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return opened, nil
}

// --- Respond ---

func (c *coordinator) Respond(ctx context.Context, requestID, principal string, accept bool) (*model.SwapRequest, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts(); attempt++ {
		req, err := c.tryRespond(ctx, requestID, principal, accept)
		if err == nil {
			return req, nil
		}
		if !isLostRace(err) {
			return nil, err
		}
		lastErr = err
		c.cfg.Log.Warn("Swap response lost a race, retrying",
			"request_id", requestID,
			"attempt", attempt,
			"error", err,
		)
	}
	return nil, apperrors.Wrap(lastErr, apperrors.CodeConflict, "Swap request was modified concurrently, retry the request", http.StatusConflict)
}

func (c *coordinator) tryRespond(ctx context.Context, requestID, principal string, accept bool) (*model.SwapRequest, error) {
	req, err := c.ledger.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.ReceiverID != principal {
		c.cfg.Log.Warn("Swap response from a principal other than the receiver",
			"request_id", req.ID,
			"principal", principal,
		)
		return nil, apperrors.Forbidden("Only the receiver can respond to this swap request")
	}
	if req.Status != model.SwapPending {
		return nil, apperrors.InvalidTransition(fmt.Sprintf("Swap request is already %s", req.Status))
	}

	requested, err := c.pendingRequestedSlot(ctx, req)
	if err != nil {
		return nil, err
	}

	if !accept {
		if err := c.closeAndRelease(ctx, req, requested, model.SwapRejected); err != nil {
			return nil, err
		}
		c.cfg.Log.Info("Swap request rejected", "request_id", req.ID, "receiver", principal)
		return c.finish(ctx, req, model.SwapRejected, EventSwapRejected, ""), nil
	}

	offered, stale, err := c.offeredSlot(ctx, req)
	if err != nil {
		return nil, err
	}
	if stale {
		if err := c.closeAndRelease(ctx, req, requested, model.SwapRejected); err != nil {
			return nil, err
		}
		c.cfg.Log.Info("Swap request auto-rejected, offered slot no longer available",
			"request_id", req.ID,
			"offered_slot_id", req.OfferedSlotID,
		)
		c.finish(ctx, req, model.SwapRejected, EventSwapRejected, "offered slot no longer available")
		return nil, apperrors.Conflict("Offered slot is no longer available, the swap request was rejected").
			WithDetails(map[string]any{"request_id": req.ID, "offered_slot_id": req.OfferedSlotID})
	}

	err = c.txManager.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		if err := c.slots.TransferOwnership(txCtx, offered, req.RequesterID, req.ReceiverID, model.SlotBusy); err != nil {
			return err
		}
		if err := c.slots.TransferOwnership(txCtx, requested, req.ReceiverID, req.RequesterID, model.SlotBusy); err != nil {
			return err
		}
		return c.ledger.Close(txCtx, req.ID, model.SwapAccepted)
	})
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeConsistency) {
			c.cfg.Log.Error("Swap exchange aborted on a broken invariant", "request_id", req.ID, "error", err)
		}
		return nil, err
	}

	c.cfg.Log.Info("Swap request accepted",
		"request_id", req.ID,
		"requester", req.RequesterID,
		"receiver", req.ReceiverID,
		"offered_slot_id", offered.ID,
		"requested_slot_id", requested.ID,
	)
	accepted := c.finish(ctx, req, model.SwapAccepted, EventSwapAccepted, "")

	if c.cfg.StaleOfferPolicy == config.StaleOfferEager {
		if _, err := c.InvalidateStaleOffers(ctx, offered.ID, requested.ID); err != nil {
			c.cfg.Log.Warn("Failed to invalidate stale offers", "request_id", req.ID, "error", err)
		}
	}
	return accepted, nil
}

// --- Cancel ---

func (c *coordinator) Cancel(ctx context.Context, requestID, principal string) (*model.SwapRequest, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts(); attempt++ {
		req, err := c.tryCancel(ctx, requestID, principal)
		if err == nil {
			return req, nil
		}
		if !isLostRace(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, apperrors.Wrap(lastErr, apperrors.CodeConflict, "Swap request was modified concurrently, retry the request", http.StatusConflict)
}

func (c *coordinator) tryCancel(ctx context.Context, requestID, principal string) (*model.SwapRequest, error) {
	req, err := c.ledger.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.RequesterID != principal {
		return nil, apperrors.Forbidden("Only the requester can cancel this swap request")
	}
	if req.Status != model.SwapPending {
		return nil, apperrors.InvalidTransition(fmt.Sprintf("Swap request is already %s", req.Status))
	}

	requested, err := c.pendingRequestedSlot(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := c.closeAndRelease(ctx, req, requested, model.SwapCancelled); err != nil {
		return nil, err
	}

	c.cfg.Log.Info("Swap request cancelled", "request_id", req.ID, "requester", principal)
	return c.finish(ctx, req, model.SwapCancelled, EventSwapCancelled, ""), nil
}

// --- Stale offers ---

func (c *coordinator) InvalidateStaleOffers(ctx context.Context, slotIDs ...string) (int, error) {
	candidates, err := c.ledger.ListPendingByOfferedSlot(ctx, slotIDs...)
	if err != nil {
		return 0, err
	}

	rejected := 0
	for _, req := range candidates {
		ok, err := c.rejectIfStale(ctx, req)
		if err != nil {
			c.cfg.Log.Warn("Failed to reject stale offer", "request_id", req.ID, "error", err)
			continue
		}
		if ok {
			rejected++
		}
	}

	if rejected > 0 {
		c.cfg.Log.Info("Stale offers rejected", "slot_ids", slotIDs, "count", rejected)
	}
	return rejected, nil
}

func (c *coordinator) rejectIfStale(ctx context.Context, req *model.SwapRequest) (bool, error) {
	_, stale, err := c.offeredSlot(ctx, req)
	if err != nil || !stale {
		return false, err
	}
	requested, err := c.pendingRequestedSlot(ctx, req)
	if err != nil {
		return false, err
	}
	if err := c.closeAndRelease(ctx, req, requested, model.SwapRejected); err != nil {
		return false, err
	}
	c.finish(ctx, req, model.SwapRejected, EventSwapRejected, "offered slot no longer available")
	return true, nil
}

// --- Reads ---

func (c *coordinator) GetRequest(ctx context.Context, requestID, principal string) (*model.SwapRequest, error) {
	req, err := c.ledger.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.RequesterID != principal && req.ReceiverID != principal {
		return nil, apperrors.Forbidden("You are not a party to this swap request")
	}
	return req, nil
}

func (c *coordinator) ListIncoming(ctx context.Context, principal string, status model.SwapStatus) ([]*model.SwapRequest, error) {
	return c.ledger.ListIncoming(ctx, principal, status)
}

func (c *coordinator) ListOutgoing(ctx context.Context, principal string, status model.SwapStatus) ([]*model.SwapRequest, error) {
	return c.ledger.ListOutgoing(ctx, principal, status)
}

// --- Helpers ---

// pendingRequestedSlot loads the slot a PENDING request holds. Anything but a
// SWAP_PENDING slot still owned by the receiver is a broken invariant.
func (c *coordinator) pendingRequestedSlot(ctx context.Context, req *model.SwapRequest) (*model.Slot, error) {
	slot, err := c.slots.Load(ctx, req.RequestedSlotID)
	if err != nil {
		if !apperrors.HasCode(err, apperrors.CodeNotFound) {
			return nil, err
		}
		if c.closedSince(ctx, req) {
			return nil, fmt.Errorf("swap request %s closed concurrently: %w", req.ID, swapserrors.ErrNotPending)
		}
		return nil, c.consistency(req, fmt.Errorf("requested slot %s of pending request is missing", req.RequestedSlotID))
	}
	if slot.Status != model.SlotSwapPending || slot.Owner != req.ReceiverID {
		if c.closedSince(ctx, req) {
			return nil, fmt.Errorf("swap request %s closed concurrently: %w", req.ID, swapserrors.ErrNotPending)
		}
		return nil, c.consistency(req, fmt.Errorf("requested slot %s is %s owned by %s, want SWAP_PENDING owned by %s",
			slot.ID, slot.Status, slot.Owner, req.ReceiverID))
	}
	return slot, nil
}

// closedSince tells a request closed between our two reads apart from a
// genuinely broken reservation.
func (c *coordinator) closedSince(ctx context.Context, req *model.SwapRequest) bool {
	current, err := c.ledger.GetByID(ctx, req.ID)
	return err == nil && current.Status != model.SwapPending
}

// offeredSlot re-reads the offered slot and reports whether it can no longer
// be delivered: deleted, not SWAPPABLE, or owned by someone else.
func (c *coordinator) offeredSlot(ctx context.Context, req *model.SwapRequest) (*model.Slot, bool, error) {
	slot, err := c.slots.Load(ctx, req.OfferedSlotID)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeNotFound) {
			return nil, true, nil
		}
		return nil, false, err
	}
	stale := slot.Status != model.SlotSwappable || slot.Owner != req.RequesterID
	return slot, stale, nil
}

func (c *coordinator) closeAndRelease(ctx context.Context, req *model.SwapRequest, requested *model.Slot, outcome model.SwapStatus) error {
	return c.txManager.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		if err := c.slots.Release(txCtx, requested); err != nil {
			return err
		}
		return c.ledger.Close(txCtx, req.ID, outcome)
	})
}

// finish publishes the outcome and returns the stored request, falling back to
// the in-memory view when the re-read fails after commit.
func (c *coordinator) finish(ctx context.Context, req *model.SwapRequest, outcome model.SwapStatus, eventType EventType, reason string) *model.SwapRequest {
	closed, err := c.ledger.GetByID(ctx, req.ID)
	if err != nil {
		c.cfg.Log.Warn("Failed to reload closed swap request", "request_id", req.ID, "error", err)
		closed = req.Clone()
		closed.Status = outcome
	}
	c.publish(ctx, eventType, closed, reason)
	return closed
}

func (c *coordinator) publish(ctx context.Context, eventType EventType, req *model.SwapRequest, reason string) {
	if err := c.events.Publish(ctx, newSwapEvent(eventType, req, reason)); err != nil {
		c.cfg.Log.Warn("Failed to publish swap event",
			"event_type", eventType,
			"request_id", req.ID,
			"error", err,
		)
	}
}

func (c *coordinator) consistency(req *model.SwapRequest, err error) error {
	c.cfg.Log.Error("Swap invariant violated", "request_id", req.ID, "error", err)
	return apperrors.Consistency(err)
}

func (c *coordinator) maxAttempts() int {
	return max(1, c.cfg.SwapMaxAttempts)
}

// isLostRace reports whether err means a concurrent writer got there first.
// Storage backends surface the bare sentinel from commit; services wrap it.
func isLostRace(err error) bool {
	return errors.Is(err, slotserrors.ErrVersionConflict) ||
		errors.Is(err, swapserrors.ErrDuplicatePending) ||
		errors.Is(err, swapserrors.ErrNotPending)
}

func slotUnavailable(cause error) *apperrors.AppError {
	if cause == nil {
		return apperrors.Conflict("Slot no longer available")
	}
	return apperrors.Wrap(cause, apperrors.CodeConflict, "Slot no longer available", http.StatusConflict)
}
