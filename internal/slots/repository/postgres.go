package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	slotserrors "slotswap/internal/slots/errors"
	"slotswap/pkg/config"
	pgdb "slotswap/pkg/db/postgres"
	"slotswap/pkg/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const slotColumns = `id, owner, title, start_time, end_time, status, version, created_at, updated_at`

type postgresSlotRepository struct {
	cfg  *config.Config
	pool *pgxpool.Pool
}

func NewPostgresSlotRepository(cfg *config.Config) SlotRepository {
	return &postgresSlotRepository{
		cfg:  cfg,
		pool: cfg.Client.Postgres,
	}
}

func (r *postgresSlotRepository) Create(ctx context.Context, slot *model.Slot) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	_, err := pgdb.Conn(ctx, r.pool).Exec(ctx,
		`INSERT INTO `+TableName+` (`+slotColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		slot.ID, slot.Owner, slot.Title, slot.StartTime, slot.EndTime,
		string(slot.Status), slot.Version, slot.CreatedAt, slot.UpdatedAt,
	)
	if err != nil {
		if pgdb.IsUniqueViolation(err) {
			return slotserrors.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create slot: %w", err)
	}
	return nil
}

func (r *postgresSlotRepository) FindByID(ctx context.Context, id string) (*model.Slot, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	row := pgdb.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+slotColumns+` FROM `+TableName+` WHERE id = $1`, id)

	slot, err := scanSlot(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, slotserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find slot: %w", err)
	}
	return slot, nil
}

func (r *postgresSlotRepository) FindByOwner(ctx context.Context, owner string) ([]*model.Slot, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	return r.query(ctx,
		`SELECT `+slotColumns+` FROM `+TableName+` WHERE owner = $1 ORDER BY start_time, id`, owner)
}

func (r *postgresSlotRepository) FindSwappable(ctx context.Context, excludeOwner string, limit int, offset int64) ([]*model.Slot, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	return r.query(ctx,
		`SELECT `+slotColumns+` FROM `+TableName+`
		 WHERE status = $1 AND owner <> $2
		 ORDER BY start_time, id LIMIT $3 OFFSET $4`,
		string(model.SlotSwappable), excludeOwner, limit, offset)
}

func (r *postgresSlotRepository) CountSwappable(ctx context.Context, excludeOwner string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var count int64
	err := pgdb.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM `+TableName+` WHERE status = $1 AND owner <> $2`,
		string(model.SlotSwappable), excludeOwner,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count swappable slots: %w", err)
	}
	return count, nil
}

func (r *postgresSlotRepository) UpdateDetails(ctx context.Context, slot *model.Slot) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	tag, err := pgdb.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE `+TableName+`
		 SET title = $3, start_time = $4, end_time = $5, updated_at = $6, version = version + 1
		 WHERE id = $1 AND version = $2 AND status <> $7`,
		slot.ID, slot.Version, slot.Title, slot.StartTime, slot.EndTime, slot.UpdatedAt, string(model.SlotSwapPending),
	)
	if err != nil {
		return fmt.Errorf("failed to update slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.missOrConflict(ctx, slot.ID)
	}
	return nil
}

func (r *postgresSlotRepository) Transition(ctx context.Context, id string, expectedVersion int64, t model.SlotTransition) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	tag, err := pgdb.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE `+TableName+`
		 SET status = $3, owner = COALESCE(NULLIF($4, ''), owner), updated_at = $5, version = version + 1
		 WHERE id = $1 AND version = $2`,
		id, expectedVersion, string(t.Status), t.Owner, time.Now().UTC().Truncate(time.Millisecond),
	)
	if err != nil {
		return fmt.Errorf("failed to transition slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.missOrConflict(ctx, id)
	}
	return nil
}

func (r *postgresSlotRepository) Delete(ctx context.Context, id string, expectedVersion int64) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	tag, err := pgdb.Conn(ctx, r.pool).Exec(ctx,
		`DELETE FROM `+TableName+` WHERE id = $1 AND version = $2`, id, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to delete slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.missOrConflict(ctx, id)
	}
	return nil
}

// --- Helpers ---

func (r *postgresSlotRepository) query(ctx context.Context, sql string, args ...any) ([]*model.Slot, error) {
	rows, err := pgdb.Conn(ctx, r.pool).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query slots: %w", err)
	}
	defer rows.Close()

	slots := make([]*model.Slot, 0)
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan slot: %w", err)
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate slots: %w", err)
	}
	return slots, nil
}

func (r *postgresSlotRepository) missOrConflict(ctx context.Context, id string) error {
	var exists bool
	err := pgdb.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+TableName+` WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check slot existence: %w", err)
	}
	if !exists {
		return slotserrors.ErrNotFound
	}
	return slotserrors.ErrVersionConflict
}

func scanSlot(row pgx.Row) (*model.Slot, error) {
	var slot model.Slot
	var status string
	err := row.Scan(
		&slot.ID, &slot.Owner, &slot.Title, &slot.StartTime, &slot.EndTime,
		&status, &slot.Version, &slot.CreatedAt, &slot.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	slot.Status = model.SlotStatus(status)
	return &slot, nil
}
