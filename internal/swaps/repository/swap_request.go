package repository

import (
	"context"
	"time"

	"slotswap/pkg/model"
)

const (
	CollectionName = "SwapRequests"
	TableName      = "swap_requests"
)

// SwapRequestRepository persists the swap ledger. Requests are never deleted.
type SwapRequestRepository interface {
	// Create fails with ErrDuplicatePending when the requested slot already
	// has a PENDING request.
	Create(ctx context.Context, req *model.SwapRequest) error
	FindByID(ctx context.Context, id string) (*model.SwapRequest, error)
	// FindByReceiver and FindByRequester order by created_at descending. An
	// empty status matches every status.
	FindByReceiver(ctx context.Context, receiver string, status model.SwapStatus) ([]*model.SwapRequest, error)
	FindByRequester(ctx context.Context, requester string, status model.SwapStatus) ([]*model.SwapRequest, error)
	FindPendingByOfferedSlots(ctx context.Context, slotIDs []string) ([]*model.SwapRequest, error)
	// Close moves a PENDING request to outcome, or fails with ErrNotPending.
	Close(ctx context.Context, id string, outcome model.SwapStatus, closedAt time.Time) error
}
