package backup

import (
	"context"
	"fmt"

	"stmtrules/internal/domain"
	"stmtrules/internal/port"
)

// SnapshotStore keeps profile backups as rows of the config snapshot table.
type SnapshotStore struct {
	repo port.ConfigSnapshotRepository
}

// NewSnapshotStore creates a SnapshotStore.
func NewSnapshotStore(repo port.ConfigSnapshotRepository) *SnapshotStore {
	return &SnapshotStore{repo: repo}
}

func (s *SnapshotStore) Store(ctx context.Context, snap *domain.ConfigSnapshot) (string, error) {
	if err := s.repo.Create(ctx, snap); err != nil {
		return "", fmt.Errorf("saving profile backup: %w", err)
	}
	return fmt.Sprintf("postgres://config_snapshots/%s", snap.ID), nil
}

func (s *SnapshotStore) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	n, err := s.repo.DeleteAllButNewest(ctx, domain.SnapshotProfiles, keep)
	if err != nil {
		return 0, fmt.Errorf("pruning profile backups: %w", err)
	}
	return n, nil
}
