package main

import (
	"context"
	"flag"
	"time"

	mongoMigration "slotswap/internal/migrations/mongo"
	postgresMigration "slotswap/internal/migrations/postgres"
	"slotswap/pkg/config"
)

const JobName = "migrate"

func main() {
	down := flag.Bool("down", false, "roll back the latest Postgres migration instead of applying")
	timeout := flag.Duration("timeout", 120*time.Second, "migration deadline")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	cfg := config.Load(JobName)
	cfg.SetStorage()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting migration job", "storage_backend", cfg.StorageBackend)
	switch cfg.StorageBackend {
	case config.BackendMongo:
		if *down {
			cfg.Log.Fatal("Rolling back is only supported for Postgres")
		}
		migrateMongo(ctx, cfg)
	case config.BackendPostgres:
		migratePostgres(ctx, cfg, *down)
	default:
		cfg.Log.Info("Nothing to migrate for storage backend", "storage_backend", cfg.StorageBackend)
		return
	}
	cfg.Log.Info("Migration completed successfully")
}

func migrateMongo(ctx context.Context, cfg *config.Config) {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	if err := mongoMigration.RunMigration(ctx, db, cfg.Log); err != nil {
		cfg.Log.Fatal("Mongo migration failed", "error", err)
	}
}

func migratePostgres(ctx context.Context, cfg *config.Config, down bool) {
	migrator, err := postgresMigration.NewMigrator(cfg.Client.Postgres, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Postgres migrator", "error", err)
	}
	defer func() {
		if err := migrator.Close(); err != nil {
			cfg.Log.Error("Failed to close migrator", "error", err)
		}
	}()

	if down {
		err = migrator.Down(ctx)
	} else {
		err = migrator.Up(ctx)
	}
	if err != nil {
		cfg.Log.Fatal("Postgres migration failed", "error", err)
	}
}
