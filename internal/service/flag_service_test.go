package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"stmtrules/internal/condition"
	"stmtrules/internal/domain"
	"stmtrules/internal/featureflag"
	"stmtrules/internal/service"
	"stmtrules/mocks"
)

func TestFlagService_GetUnknown(t *testing.T) {
	svc := service.NewFlagService(newEngine(t), nil, quietLogger())

	_, err := svc.Get("nope")
	assert.ErrorIs(t, err, domain.ErrFlagNotFound)
}

func TestFlagService_SnapshotsDisabled(t *testing.T) {
	svc := service.NewFlagService(newEngine(t), nil, quietLogger())

	_, err := svc.SaveSnapshot(context.Background())
	assert.ErrorIs(t, err, domain.ErrPersistenceDisabled)
	_, err = svc.RestoreLatest(context.Background())
	assert.ErrorIs(t, err, domain.ErrPersistenceDisabled)
	_, err = svc.ListSnapshots(context.Background(), 10)
	assert.ErrorIs(t, err, domain.ErrPersistenceDisabled)
}

func TestFlagService_SaveAndRestoreSnapshot(t *testing.T) {
	repo := new(mocks.MockConfigSnapshotRepo)
	src := service.NewFlagService(newEngine(t), repo, quietLogger())
	_, err := src.Disable("quality-monitoring")
	require.NoError(t, err)

	var saved *domain.ConfigSnapshot
	repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.ConfigSnapshot")).
		Run(func(args mock.Arguments) { saved = args.Get(1).(*domain.ConfigSnapshot) }).
		Return(nil)

	snap, err := src.SaveSnapshot(context.Background())
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, domain.SnapshotFlags, snap.Kind)
	assert.NotEqual(t, uuid.Nil, snap.ID)

	dstRepo := new(mocks.MockConfigSnapshotRepo)
	dstRepo.On("Latest", mock.Anything, domain.SnapshotFlags).Return(saved, nil)
	dst := service.NewFlagService(newEngine(t), dstRepo, quietLogger())
	assert.True(t, dst.IsEnabled("quality-monitoring", nil).Enabled)

	restored, err := dst.RestoreLatest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, saved.ID, restored.ID)
	assert.False(t, dst.IsEnabled("quality-monitoring", nil).Enabled)
	repo.AssertExpectations(t)
	dstRepo.AssertExpectations(t)
}

func TestFlagService_RestoreRejectsCorruptPayload(t *testing.T) {
	repo := new(mocks.MockConfigSnapshotRepo)
	repo.On("Latest", mock.Anything, domain.SnapshotFlags).
		Return(&domain.ConfigSnapshot{ID: uuid.New(), Kind: domain.SnapshotFlags, Payload: json.RawMessage(`{"featureFlags":`)}, nil)
	svc := service.NewFlagService(newEngine(t), repo, quietLogger())

	_, err := svc.RestoreLatest(context.Background())
	assert.Error(t, err)
	assert.True(t, svc.IsEnabled("quality-monitoring", nil).Enabled)
}

func TestRestoreAtBoot_IgnoresMissingSnapshot(t *testing.T) {
	repo := new(mocks.MockConfigSnapshotRepo)
	repo.On("Latest", mock.Anything, domain.SnapshotFlags).Return(nil, domain.ErrSnapshotNotFound)
	svc := service.NewFlagService(newEngine(t), repo, quietLogger())

	service.RestoreAtBoot(context.Background(), svc, quietLogger())
	repo.AssertExpectations(t)
}

func TestFlagService_SaveSnapshotRepoError(t *testing.T) {
	repo := new(mocks.MockConfigSnapshotRepo)
	repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("db down"))
	svc := service.NewFlagService(newEngine(t), repo, quietLogger())

	_, err := svc.SaveSnapshot(context.Background())
	assert.Error(t, err)
}

func TestFlagService_FallbackOperations(t *testing.T) {
	svc := service.NewFlagService(newEngine(t), nil, quietLogger())
	ctx := &condition.Context{Format: "pdf"}

	st, ok := svc.SelectStrategy(ctx)
	require.True(t, ok)
	assert.Equal(t, "regex-based", st.Name)
	assert.True(t, svc.ShouldAutoSwitch(0.4, st.Name))

	next, ok := svc.NextStrategy(st.Name, ctx)
	require.True(t, ok)
	assert.Equal(t, "basic-heuristic", next.Name)
	assert.False(t, svc.ShouldAutoSwitch(0.1, next.Name))

	_, ok = svc.NextStrategy(next.Name, ctx)
	assert.False(t, ok)
	assert.Len(t, svc.Strategies(), 3)
}

func TestFlagService_ImportExport(t *testing.T) {
	svc := service.NewFlagService(newEngine(t), nil, quietLogger())
	cfg := svc.Export()
	cfg.Flags["new-flag"] = featureflag.Flag{Enabled: true}

	require.NoError(t, svc.Import(cfg))
	assert.True(t, svc.IsEnabled("new-flag", nil).Enabled)

	svc.Reset()
	_, err := svc.Get("new-flag")
	assert.ErrorIs(t, err, domain.ErrFlagNotFound)
}
