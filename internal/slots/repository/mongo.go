package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	slotserrors "slotswap/internal/slots/errors"
	"slotswap/pkg/config"
	"slotswap/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoSlotRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoSlotRepository(cfg *config.Config) SlotRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSlotRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

// withTimeout bounds ctx unless it is a SessionContext, which cannot be
// wrapped without leaving the transaction.
func (r *mongoSlotRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if hasDeadline && time.Until(deadline) < timeout {
		return ctx, func() {}
	}

	return context.WithTimeout(ctx, timeout)
}

func (r *mongoSlotRepository) Create(ctx context.Context, slot *model.Slot) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := r.collection.InsertOne(ctx, slot); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return slotserrors.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create slot: %w", err)
	}
	return nil
}

func (r *mongoSlotRepository) FindByID(ctx context.Context, id string) (*model.Slot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var slot model.Slot
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&slot)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, slotserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find slot: %w", err)
	}
	return &slot, nil
}

func (r *mongoSlotRepository) FindByOwner(ctx context.Context, owner string) ([]*model.Slot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "start_time", Value: 1}, {Key: "_id", Value: 1}})
	return r.find(ctx, bson.M{"owner": owner}, opts)
}

func (r *mongoSlotRepository) FindSwappable(ctx context.Context, excludeOwner string, limit int, offset int64) ([]*model.Slot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "start_time", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)
	return r.find(ctx, swappableFilter(excludeOwner), opts)
}

func (r *mongoSlotRepository) CountSwappable(ctx context.Context, excludeOwner string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, swappableFilter(excludeOwner))
	if err != nil {
		return 0, fmt.Errorf("failed to count swappable slots: %w", err)
	}
	return count, nil
}

func (r *mongoSlotRepository) UpdateDetails(ctx context.Context, slot *model.Slot) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{
		"_id":     slot.ID,
		"version": slot.Version,
		"status":  bson.M{"$ne": model.SlotSwapPending},
	}
	update := bson.M{
		"$set": bson.M{
			"title":      slot.Title,
			"start_time": slot.StartTime,
			"end_time":   slot.EndTime,
			"updated_at": slot.UpdatedAt,
		},
		"$inc": bson.M{"version": 1},
	}
	return r.casUpdate(ctx, slot.ID, filter, update)
}

func (r *mongoSlotRepository) Transition(ctx context.Context, id string, expectedVersion int64, t model.SlotTransition) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	set := bson.M{
		"status":     t.Status,
		"updated_at": time.Now().UTC().Truncate(time.Millisecond),
	}
	if t.Owner != "" {
		set["owner"] = t.Owner
	}

	filter := bson.M{"_id": id, "version": expectedVersion}
	update := bson.M{"$set": set, "$inc": bson.M{"version": 1}}
	return r.casUpdate(ctx, id, filter, update)
}

func (r *mongoSlotRepository) Delete(ctx context.Context, id string, expectedVersion int64) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "version": expectedVersion})
	if err != nil {
		return fmt.Errorf("failed to delete slot: %w", err)
	}
	if result.DeletedCount == 0 {
		return r.missOrConflict(ctx, id)
	}
	return nil
}

// --- Helpers ---

func swappableFilter(excludeOwner string) bson.M {
	filter := bson.M{"status": model.SlotSwappable}
	if excludeOwner != "" {
		filter["owner"] = bson.M{"$ne": excludeOwner}
	}
	return filter
}

func (r *mongoSlotRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*model.Slot, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find slots: %w", err)
	}
	defer cursor.Close(ctx)

	slots := make([]*model.Slot, 0)
	if err := cursor.All(ctx, &slots); err != nil {
		return nil, fmt.Errorf("failed to decode slots: %w", err)
	}
	return slots, nil
}

func (r *mongoSlotRepository) casUpdate(ctx context.Context, id string, filter, update bson.M) error {
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update slot: %w", err)
	}
	if result.MatchedCount == 0 {
		return r.missOrConflict(ctx, id)
	}
	return nil
}

func (r *mongoSlotRepository) missOrConflict(ctx context.Context, id string) error {
	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to check slot existence: %w", err)
	}
	if count == 0 {
		return slotserrors.ErrNotFound
	}
	return slotserrors.ErrVersionConflict
}
