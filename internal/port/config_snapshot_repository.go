package port

import (
	"context"

	"stmtrules/internal/domain"
)

// ConfigSnapshotRepository defines persistence operations for configuration snapshots.
type ConfigSnapshotRepository interface {
	Create(ctx context.Context, snap *domain.ConfigSnapshot) error
	Latest(ctx context.Context, kind domain.SnapshotKind) (*domain.ConfigSnapshot, error)
	List(ctx context.Context, kind domain.SnapshotKind, limit int) ([]domain.ConfigSnapshot, error)
	DeleteAllButNewest(ctx context.Context, kind domain.SnapshotKind, keep int) (int, error)
}
