package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	swapserrors "slotswap/internal/swaps/errors"
	"slotswap/pkg/config"
	"slotswap/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoSwapRequestRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoSwapRequestRepository(cfg *config.Config) SwapRequestRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSwapRequestRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoSwapRequestRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoSwapRequestRepository) Create(ctx context.Context, req *model.SwapRequest) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := r.collection.InsertOne(ctx, req); err != nil {
		// the partial unique index on requested_slot_id covers PENDING requests only
		if mongo.IsDuplicateKeyError(err) {
			return swapserrors.ErrDuplicatePending
		}
		return fmt.Errorf("failed to create swap request: %w", err)
	}
	return nil
}

func (r *mongoSwapRequestRepository) FindByID(ctx context.Context, id string) (*model.SwapRequest, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var req model.SwapRequest
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&req); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, swapserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find swap request: %w", err)
	}
	return &req, nil
}

func (r *mongoSwapRequestRepository) FindByReceiver(ctx context.Context, receiver string, status model.SwapStatus) ([]*model.SwapRequest, error) {
	return r.findByParty(ctx, "receiver_id", receiver, status)
}

func (r *mongoSwapRequestRepository) FindByRequester(ctx context.Context, requester string, status model.SwapStatus) ([]*model.SwapRequest, error) {
	return r.findByParty(ctx, "requester_id", requester, status)
}

func (r *mongoSwapRequestRepository) FindPendingByOfferedSlots(ctx context.Context, slotIDs []string) ([]*model.SwapRequest, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"offered_slot_id": bson.M{"$in": slotIDs},
		"status":          model.SwapPending,
	}
	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
}

func (r *mongoSwapRequestRepository) Close(ctx context.Context, id string, outcome model.SwapStatus, closedAt time.Time) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{"_id": id, "status": model.SwapPending}
	update := bson.M{"$set": bson.M{
		"status":     outcome,
		"closed_at":  closedAt,
		"updated_at": closedAt,
	}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to close swap request: %w", err)
	}
	if result.MatchedCount == 0 {
		count, err := r.collection.CountDocuments(ctx, bson.M{"_id": id})
		if err != nil {
			return fmt.Errorf("failed to check swap request existence: %w", err)
		}
		if count == 0 {
			return swapserrors.ErrNotFound
		}
		return swapserrors.ErrNotPending
	}
	return nil
}

// --- Helpers ---

func (r *mongoSwapRequestRepository) findByParty(ctx context.Context, field, principal string, status model.SwapStatus) ([]*model.SwapRequest, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{field: principal}
	if status != "" {
		filter["status"] = status
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	return r.find(ctx, filter, opts)
}

func (r *mongoSwapRequestRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*model.SwapRequest, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find swap requests: %w", err)
	}
	defer cursor.Close(ctx)

	requests := make([]*model.SwapRequest, 0)
	if err := cursor.All(ctx, &requests); err != nil {
		return nil, fmt.Errorf("failed to decode swap requests: %w", err)
	}
	return requests, nil
}
