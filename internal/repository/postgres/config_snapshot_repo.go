package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"stmtrules/internal/domain"
	"stmtrules/internal/port"
)

type configSnapshotRepo struct {
	db *sqlx.DB
}

// NewConfigSnapshotRepo creates a PostgreSQL-backed ConfigSnapshotRepository.
func NewConfigSnapshotRepo(db *sqlx.DB) port.ConfigSnapshotRepository {
	return &configSnapshotRepo{db: db}
}

// snapshotRow scans payload as []byte so both json and text column encodings work.
type snapshotRow struct {
	ID        uuid.UUID           `db:"id"`
	Kind      domain.SnapshotKind `db:"kind"`
	Payload   []byte              `db:"payload"`
	CreatedAt time.Time           `db:"created_at"`
}

func (r snapshotRow) toDomain() domain.ConfigSnapshot {
	return domain.ConfigSnapshot{ID: r.ID, Kind: r.Kind, Payload: r.Payload, CreatedAt: r.CreatedAt}
}

func (r *configSnapshotRepo) Create(ctx context.Context, snap *domain.ConfigSnapshot) error {
	if snap.ID == uuid.Nil {
		snap.ID = uuid.New()
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO config_snapshots (id, kind, payload, created_at) VALUES ($1, $2, $3, $4)`,
		snap.ID, snap.Kind, []byte(snap.Payload), snap.CreatedAt)
	if err != nil {
		return fmt.Errorf("configSnapshotRepo.Create: %w", err)
	}
	return nil
}

func (r *configSnapshotRepo) Latest(ctx context.Context, kind domain.SnapshotKind) (*domain.ConfigSnapshot, error) {
	var row snapshotRow
	err := r.db.GetContext(ctx, &row,
		`SELECT id, kind, payload, created_at FROM config_snapshots
		 WHERE kind = $1 ORDER BY created_at DESC, id DESC LIMIT 1`, kind)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("configSnapshotRepo.Latest: %w", err)
	}
	snap := row.toDomain()
	return &snap, nil
}

func (r *configSnapshotRepo) List(ctx context.Context, kind domain.SnapshotKind, limit int) ([]domain.ConfigSnapshot, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []snapshotRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT id, kind, payload, created_at FROM config_snapshots
		 WHERE kind = $1 ORDER BY created_at DESC, id DESC LIMIT $2`, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("configSnapshotRepo.List: %w", err)
	}
	out := make([]domain.ConfigSnapshot, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

func (r *configSnapshotRepo) DeleteAllButNewest(ctx context.Context, kind domain.SnapshotKind, keep int) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM config_snapshots
		 WHERE kind = $1 AND id NOT IN (
			SELECT id FROM config_snapshots WHERE kind = $1
			ORDER BY created_at DESC, id DESC LIMIT $2
		 )`, kind, keep)
	if err != nil {
		return 0, fmt.Errorf("configSnapshotRepo.DeleteAllButNewest: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("configSnapshotRepo.DeleteAllButNewest rows: %w", err)
	}
	return int(n), nil
}
