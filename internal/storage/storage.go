// Package storage selects the repositories and transaction manager for the
// configured backend.
package storage

import (
	"errors"
	"fmt"

	slotsrepo "slotswap/internal/slots/repository"
	"slotswap/internal/storage/memory"
	swapsrepo "slotswap/internal/swaps/repository"
	"slotswap/pkg/config"
	"slotswap/pkg/db"
	mongodb "slotswap/pkg/db/mongo"
	pgdb "slotswap/pkg/db/postgres"
)

var ErrNotConnected = errors.New("storage client is not connected")

type Backend struct {
	Slots     slotsrepo.SlotRepository
	Requests  swapsrepo.SwapRequestRepository
	TxManager db.TransactionManager
}

// Open builds the backend named by cfg.StorageBackend. Mongo and Postgres
// require cfg.SetStorage to have connected the client first.
func Open(cfg *config.Config) (*Backend, error) {
	switch cfg.StorageBackend {
	case config.BackendMemory:
		store := memory.NewStore()
		return &Backend{
			Slots:     store.SlotRepository(),
			Requests:  store.SwapRequestRepository(),
			TxManager: store.TransactionManager(),
		}, nil

	case config.BackendMongo:
		if cfg.Client == nil || cfg.Client.Mongo == nil {
			return nil, fmt.Errorf("mongo: %w", ErrNotConnected)
		}
		return &Backend{
			Slots:     slotsrepo.NewMongoSlotRepository(cfg),
			Requests:  swapsrepo.NewMongoSwapRequestRepository(cfg),
			TxManager: mongodb.NewTransactionManager(cfg.Client.Mongo),
		}, nil

	case config.BackendPostgres:
		if cfg.Client == nil || cfg.Client.Postgres == nil {
			return nil, fmt.Errorf("postgres: %w", ErrNotConnected)
		}
		return &Backend{
			Slots:     slotsrepo.NewPostgresSlotRepository(cfg),
			Requests:  swapsrepo.NewPostgresSwapRequestRepository(cfg),
			TxManager: pgdb.NewTransactionManager(cfg.Client.Postgres),
		}, nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
}
