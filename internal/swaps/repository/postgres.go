package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	swapserrors "slotswap/internal/swaps/errors"
	"slotswap/pkg/config"
	pgdb "slotswap/pkg/db/postgres"
	"slotswap/pkg/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const requestColumns = `id, requester_id, receiver_id, offered_slot_id, requested_slot_id, status, created_at, updated_at, closed_at`

type postgresSwapRequestRepository struct {
	cfg  *config.Config
	pool *pgxpool.Pool
}

func NewPostgresSwapRequestRepository(cfg *config.Config) SwapRequestRepository {
	return &postgresSwapRequestRepository{
		cfg:  cfg,
		pool: cfg.Client.Postgres,
	}
}

func (r *postgresSwapRequestRepository) Create(ctx context.Context, req *model.SwapRequest) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	_, err := pgdb.Conn(ctx, r.pool).Exec(ctx,
		`INSERT INTO `+TableName+` (`+requestColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		req.ID, req.RequesterID, req.ReceiverID, req.OfferedSlotID, req.RequestedSlotID,
		string(req.Status), req.CreatedAt, req.UpdatedAt, req.ClosedAt,
	)
	if err != nil {
		// swap_requests_one_pending_per_slot is a partial unique index
		if pgdb.IsUniqueViolation(err) {
			return swapserrors.ErrDuplicatePending
		}
		return fmt.Errorf("failed to create swap request: %w", err)
	}
	return nil
}

func (r *postgresSwapRequestRepository) FindByID(ctx context.Context, id string) (*model.SwapRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	row := pgdb.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+requestColumns+` FROM `+TableName+` WHERE id = $1`, id)

	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, swapserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find swap request: %w", err)
	}
	return req, nil
}

func (r *postgresSwapRequestRepository) FindByReceiver(ctx context.Context, receiver string, status model.SwapStatus) ([]*model.SwapRequest, error) {
	return r.findByParty(ctx, "receiver_id", receiver, status)
}

func (r *postgresSwapRequestRepository) FindByRequester(ctx context.Context, requester string, status model.SwapStatus) ([]*model.SwapRequest, error) {
	return r.findByParty(ctx, "requester_id", requester, status)
}

func (r *postgresSwapRequestRepository) FindPendingByOfferedSlots(ctx context.Context, slotIDs []string) ([]*model.SwapRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	return r.query(ctx,
		`SELECT `+requestColumns+` FROM `+TableName+`
		 WHERE offered_slot_id = ANY($1) AND status = $2 ORDER BY created_at`,
		slotIDs, string(model.SwapPending))
}

func (r *postgresSwapRequestRepository) Close(ctx context.Context, id string, outcome model.SwapStatus, closedAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	conn := pgdb.Conn(ctx, r.pool)
	tag, err := conn.Exec(ctx,
		`UPDATE `+TableName+` SET status = $2, closed_at = $3, updated_at = $3
		 WHERE id = $1 AND status = $4`,
		id, string(outcome), closedAt, string(model.SwapPending))
	if err != nil {
		return fmt.Errorf("failed to close swap request: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := conn.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+TableName+` WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check swap request existence: %w", err)
	}
	if !exists {
		return swapserrors.ErrNotFound
	}
	return swapserrors.ErrNotPending
}

// --- Helpers ---

// field is one of two column names chosen by this package, never user input.
func (r *postgresSwapRequestRepository) findByParty(ctx context.Context, field, principal string, status model.SwapStatus) ([]*model.SwapRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	return r.query(ctx,
		`SELECT `+requestColumns+` FROM `+TableName+`
		 WHERE `+field+` = $1 AND ($2 = '' OR status = $2)
		 ORDER BY created_at DESC, id DESC`,
		principal, string(status))
}

func (r *postgresSwapRequestRepository) query(ctx context.Context, sql string, args ...any) ([]*model.SwapRequest, error) {
	rows, err := pgdb.Conn(ctx, r.pool).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query swap requests: %w", err)
	}
	defer rows.Close()

	requests := make([]*model.SwapRequest, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan swap request: %w", err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate swap requests: %w", err)
	}
	return requests, nil
}

func scanRequest(row pgx.Row) (*model.SwapRequest, error) {
	var req model.SwapRequest
	var status string
	err := row.Scan(
		&req.ID, &req.RequesterID, &req.ReceiverID, &req.OfferedSlotID, &req.RequestedSlotID,
		&status, &req.CreatedAt, &req.UpdatedAt, &req.ClosedAt,
	)
	if err != nil {
		return nil, err
	}
	req.Status = model.SwapStatus(status)
	return &req, nil
}
