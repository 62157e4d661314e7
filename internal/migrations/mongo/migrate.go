package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"slotswap/internal/migrations/mongo/validators"
	slotsrepo "slotswap/internal/slots/repository"
	swapsrepo "slotswap/internal/swaps/repository"
	"slotswap/pkg/logger"
	"slotswap/pkg/model"
)

// OnePendingPerSlotIndex rejects a second PENDING request for the same
// requested slot. Closed requests fall outside the partial filter.
const OnePendingPerSlotIndex = "swap_requests_one_pending_per_slot"

var (
	SlotsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner", Value: 1}, {Key: "start_time", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "start_time", Value: 1}, {Key: "_id", Value: 1}}},
	}

	SwapRequestsIndexes = []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "requested_slot_id", Value: 1}},
			Options: options.Index().
				SetName(OnePendingPerSlotIndex).
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": model.SwapPending}),
		},
		{Keys: bson.D{{Key: "requester_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "receiver_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "offered_slot_id", Value: 1}, {Key: "status", Value: 1}}},
	}
)

type CollectionDef struct {
	Indexes   []mongo.IndexModel
	Validator bson.M
}

// Collections lists every collection the service writes, keyed by name.
func Collections() map[string]CollectionDef {
	return map[string]CollectionDef{
		slotsrepo.CollectionName: {
			Indexes:   SlotsIndexes,
			Validator: validators.SlotValidator,
		},
		swapsrepo.CollectionName: {
			Indexes:   SwapRequestsIndexes,
			Validator: validators.SwapRequestValidator,
		},
	}
}

// RunMigration creates the collections with their validators and indexes. It
// is safe to run repeatedly.
func RunMigration(ctx context.Context, db *mongo.Database, log *logger.Logger) error {
	log.Info("Running Mongo migrations", "database", db.Name())

	for name, def := range Collections() {
		if err := ensureCollection(ctx, db, name, def.Validator, log); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", name, err)
		}
		if err := ensureIndexes(ctx, db, name, def.Indexes, log); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", name, err)
		}
	}

	log.Info("All Mongo migrations applied successfully")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M, log *logger.Logger) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		log.Info("Creating collection", "collection", name)
		opts := options.CreateCollection().SetValidator(validator)
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	log.Info("Collection already exists, updating validator", "collection", name)
	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		log.Warn("Failed updating validator", "collection", name, "error", err)
	}
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel, log *logger.Logger) error {
	if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
		return err
	}
	log.Info("Ensured indexes", "collection", name, "count", len(models))
	return nil
}
