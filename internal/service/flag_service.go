package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"stmtrules/internal/condition"
	"stmtrules/internal/domain"
	"stmtrules/internal/fallback"
	"stmtrules/internal/featureflag"
	"stmtrules/internal/port"
)

// FlagService exposes feature-flag evaluation and administration together
// with the fallback ladder, and persists configuration snapshots when a
// repository is configured.
type FlagService interface {
	IsEnabled(name string, ctx *condition.Context) featureflag.Result
	GetValue(name string, def any, ctx *condition.Context) any
	EnabledFeatures(ctx *condition.Context) []string
	List() map[string]featureflag.Flag
	Get(name string) (featureflag.Flag, error)
	Set(name string, f featureflag.Flag) (featureflag.Flag, error)
	Update(name string, u featureflag.FlagUpdate) (featureflag.Flag, error)
	Enable(name string) (featureflag.Flag, error)
	Disable(name string) (featureflag.Flag, error)
	Stats() map[string]featureflag.Usage
	Export() featureflag.Configuration
	Import(cfg featureflag.Configuration) error
	Reset()

	SelectStrategy(ctx *condition.Context) (*fallback.Strategy, bool)
	Strategies() []fallback.Strategy
	UpdateStrategy(name string, u fallback.StrategyUpdate) (fallback.Strategy, error)
	UpdateFallbackSettings(u fallback.SettingsUpdate) (fallback.Config, error)
	FallbackConfig() fallback.Config
	ShouldAutoSwitch(quality float64, current string) bool
	NextStrategy(current string, ctx *condition.Context) (*fallback.Strategy, bool)

	SaveSnapshot(ctx context.Context) (*domain.ConfigSnapshot, error)
	RestoreLatest(ctx context.Context) (*domain.ConfigSnapshot, error)
	ListSnapshots(ctx context.Context, limit int) ([]domain.ConfigSnapshot, error)
}

type flagService struct {
	engine    *featureflag.Engine
	snapshots port.ConfigSnapshotRepository
	logger    *slog.Logger
}

// NewFlagService creates a FlagService. snapshots may be nil, in which case
// snapshot operations return domain.ErrPersistenceDisabled.
func NewFlagService(engine *featureflag.Engine, snapshots port.ConfigSnapshotRepository, logger *slog.Logger) FlagService {
	if logger == nil {
		logger = slog.Default()
	}
	return &flagService{
		engine:    engine,
		snapshots: snapshots,
		logger:    logger.With("component", "service.FlagService"),
	}
}

func (s *flagService) IsEnabled(name string, ctx *condition.Context) featureflag.Result {
	return s.engine.IsEnabled(name, ctx)
}

func (s *flagService) GetValue(name string, def any, ctx *condition.Context) any {
	return s.engine.GetValue(name, def, ctx)
}

func (s *flagService) EnabledFeatures(ctx *condition.Context) []string {
	return s.engine.EnabledFeatures(ctx)
}

func (s *flagService) List() map[string]featureflag.Flag {
	return s.engine.Flags()
}

func (s *flagService) Get(name string) (featureflag.Flag, error) {
	f, ok := s.engine.Flag(name)
	if !ok {
		return featureflag.Flag{}, fmt.Errorf("flag %q: %w", name, domain.ErrFlagNotFound)
	}
	return f, nil
}

func (s *flagService) Set(name string, f featureflag.Flag) (featureflag.Flag, error) {
	return s.engine.Set(name, f)
}

func (s *flagService) Update(name string, u featureflag.FlagUpdate) (featureflag.Flag, error) {
	return s.engine.Update(name, u)
}

func (s *flagService) Enable(name string) (featureflag.Flag, error) {
	return s.engine.Enable(name)
}

func (s *flagService) Disable(name string) (featureflag.Flag, error) {
	return s.engine.Disable(name)
}

func (s *flagService) Stats() map[string]featureflag.Usage {
	return s.engine.Stats()
}

func (s *flagService) Export() featureflag.Configuration {
	return s.engine.Export()
}

func (s *flagService) Import(cfg featureflag.Configuration) error {
	return s.engine.Import(cfg)
}

func (s *flagService) Reset() {
	s.engine.ResetToDefaults()
}

func (s *flagService) SelectStrategy(ctx *condition.Context) (*fallback.Strategy, bool) {
	st, ok := s.engine.Fallback().Select(ctx)
	if !ok {
		return nil, false
	}
	return &st, true
}

func (s *flagService) Strategies() []fallback.Strategy {
	return s.engine.Fallback().Strategies()
}

func (s *flagService) UpdateStrategy(name string, u fallback.StrategyUpdate) (fallback.Strategy, error) {
	return s.engine.Fallback().UpdateStrategy(name, u)
}

func (s *flagService) UpdateFallbackSettings(u fallback.SettingsUpdate) (fallback.Config, error) {
	return s.engine.Fallback().UpdateSettings(u)
}

func (s *flagService) FallbackConfig() fallback.Config {
	return s.engine.Fallback().Config()
}

func (s *flagService) ShouldAutoSwitch(quality float64, current string) bool {
	return s.engine.Fallback().ShouldEscalate(quality, current)
}

func (s *flagService) NextStrategy(current string, ctx *condition.Context) (*fallback.Strategy, bool) {
	st, ok := s.engine.Fallback().Next(current, ctx)
	if !ok {
		return nil, false
	}
	return &st, true
}

func (s *flagService) SaveSnapshot(ctx context.Context) (*domain.ConfigSnapshot, error) {
	if s.snapshots == nil {
		return nil, domain.ErrPersistenceDisabled
	}
	payload, err := json.Marshal(s.engine.Export())
	if err != nil {
		return nil, fmt.Errorf("encoding flag configuration: %w", err)
	}
	snap := &domain.ConfigSnapshot{
		ID:        uuid.New(),
		Kind:      domain.SnapshotFlags,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.snapshots.Create(ctx, snap); err != nil {
		return nil, fmt.Errorf("saving flag snapshot: %w", err)
	}
	s.logger.Info("flag configuration snapshot saved", "snapshot_id", snap.ID)
	return snap, nil
}

func (s *flagService) RestoreLatest(ctx context.Context) (*domain.ConfigSnapshot, error) {
	if s.snapshots == nil {
		return nil, domain.ErrPersistenceDisabled
	}
	snap, err := s.snapshots.Latest(ctx, domain.SnapshotFlags)
	if err != nil {
		return nil, err
	}
	var cfg featureflag.Configuration
	if err := json.Unmarshal(snap.Payload, &cfg); err != nil {
		return nil, fmt.Errorf("decoding flag snapshot %s: %w", snap.ID, err)
	}
	if err := s.engine.Import(cfg); err != nil {
		return nil, fmt.Errorf("restoring flag snapshot %s: %w", snap.ID, err)
	}
	s.logger.Info("flag configuration restored", "snapshot_id", snap.ID, "created_at", snap.CreatedAt)
	return snap, nil
}

func (s *flagService) ListSnapshots(ctx context.Context, limit int) ([]domain.ConfigSnapshot, error) {
	if s.snapshots == nil {
		return nil, domain.ErrPersistenceDisabled
	}
	return s.snapshots.List(ctx, domain.SnapshotFlags, limit)
}

// RestoreAtBoot restores the newest flag snapshot if one exists. A missing
// snapshot or disabled persistence is not an error.
func RestoreAtBoot(ctx context.Context, s FlagService, logger *slog.Logger) {
	_, err := s.RestoreLatest(ctx)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrPersistenceDisabled), errors.Is(err, domain.ErrSnapshotNotFound):
	default:
		logger.Warn("could not restore flag snapshot, keeping defaults", "error", err)
	}
}
