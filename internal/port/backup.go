package port

import (
	"context"

	"stmtrules/internal/domain"
)

// ProfileBackupStore persists profile backup snapshots.
type ProfileBackupStore interface {
	// Store writes the snapshot and returns where it was written.
	Store(ctx context.Context, snap *domain.ConfigSnapshot) (string, error)
	// Prune removes all but the newest keep backups and returns how many were removed.
	Prune(ctx context.Context, keep int) (int, error)
}
