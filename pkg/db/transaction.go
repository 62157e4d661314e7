// Package db defines the storage transaction contract shared by every backend.
package db

import "context"

// TransactionFunc runs inside a transaction. Repository calls made with the
// ctx it receives join that transaction.
type TransactionFunc func(ctx context.Context) error

// TransactionManager runs fn atomically: either every write issued through
// the transactional ctx commits, or none does.
type TransactionManager interface {
	ExecuteTransaction(ctx context.Context, fn TransactionFunc) error
}
