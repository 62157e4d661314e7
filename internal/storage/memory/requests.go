package memory

import (
	"context"
	"sort"
	"time"

	swapserrors "slotswap/internal/swaps/errors"
	swapsrepo "slotswap/internal/swaps/repository"
	"slotswap/pkg/model"
)

type swapRequestRepository struct {
	store *Store
}

func (s *Store) SwapRequestRepository() swapsrepo.SwapRequestRepository {
	return &swapRequestRepository{store: s}
}

func (r *swapRequestRepository) Create(ctx context.Context, req *model.SwapRequest) error {
	return r.store.write(ctx, op{kind: opRequestCreate, req: req.Clone()})
}

func (r *swapRequestRepository) FindByID(ctx context.Context, id string) (*model.SwapRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.store.mu.RLock()
	stored, ok := r.store.requests[id]
	r.store.mu.RUnlock()
	if !ok {
		return nil, swapserrors.ErrNotFound
	}
	return stored.req.Clone(), nil
}

func (r *swapRequestRepository) FindByReceiver(ctx context.Context, receiver string, status model.SwapStatus) ([]*model.SwapRequest, error) {
	return r.newestFirst(ctx, func(req *model.SwapRequest) bool {
		return req.ReceiverID == receiver && (status == "" || req.Status == status)
	})
}

func (r *swapRequestRepository) FindByRequester(ctx context.Context, requester string, status model.SwapStatus) ([]*model.SwapRequest, error) {
	return r.newestFirst(ctx, func(req *model.SwapRequest) bool {
		return req.RequesterID == requester && (status == "" || req.Status == status)
	})
}

func (r *swapRequestRepository) FindPendingByOfferedSlots(ctx context.Context, slotIDs []string) ([]*model.SwapRequest, error) {
	wanted := make(map[string]struct{}, len(slotIDs))
	for _, id := range slotIDs {
		wanted[id] = struct{}{}
	}
	requests, err := r.newestFirst(ctx, func(req *model.SwapRequest) bool {
		_, ok := wanted[req.OfferedSlotID]
		return ok && req.Status == model.SwapPending
	})
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(requests)-1; i < j; i, j = i+1, j-1 {
		requests[i], requests[j] = requests[j], requests[i]
	}
	return requests, nil
}

func (r *swapRequestRepository) Close(ctx context.Context, id string, outcome model.SwapStatus, closedAt time.Time) error {
	return r.store.write(ctx, op{kind: opRequestClose, requestID: id, outcome: outcome, closedAt: closedAt})
}

// newestFirst orders by created_at descending, falling back to insertion order
// for equal timestamps.
func (r *swapRequestRepository) newestFirst(ctx context.Context, match func(*model.SwapRequest) bool) ([]*model.SwapRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	matched := make([]*storedRequest, 0)
	for _, stored := range r.store.requests {
		if match(stored.req) {
			matched = append(matched, stored)
		}
	}
	r.store.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.req.CreatedAt.Equal(b.req.CreatedAt) {
			return a.req.CreatedAt.After(b.req.CreatedAt)
		}
		return a.seq > b.seq
	})

	out := make([]*model.SwapRequest, len(matched))
	for i, stored := range matched {
		out[i] = stored.req.Clone()
	}
	return out, nil
}
