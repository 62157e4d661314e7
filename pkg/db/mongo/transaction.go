package mongo

import (
	"context"
	"fmt"

	"slotswap/pkg/db"
	apperrors "slotswap/pkg/errors"

	"go.mongodb.org/mongo-driver/mongo"
)

type mongoTransactionManager struct {
	client *mongo.Client
}

func NewTransactionManager(client *mongo.Client) db.TransactionManager {
	return &mongoTransactionManager{
		client: client,
	}
}

// ExecuteTransaction passes a mongo.SessionContext as ctx. The driver may run
// fn more than once on transient transaction errors.
func (m *mongoTransactionManager) ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) error {
	session, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (any, error) {
		return nil, fn(sessCtx)
	})

	if err != nil {
		if apperrors.IsAppError(err) {
			return err
		}
		return fmt.Errorf("transaction failed: %w", err)
	}

	return nil
}
