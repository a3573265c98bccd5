// @title Statement Rules API
// @version 1.0
// @description Bank profile, feature flag and fallback strategy configuration for statement parsing.
// @BasePath /api/v1
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"stmtrules/internal/backup"
	"stmtrules/internal/config"
	"stmtrules/internal/domain"
	"stmtrules/internal/fallback"
	"stmtrules/internal/featureflag"
	"stmtrules/internal/handler"
	"stmtrules/internal/hotreload"
	"stmtrules/internal/parser"
	"stmtrules/internal/parser/remote"
	"stmtrules/internal/port"
	"stmtrules/internal/profile"
	"stmtrules/internal/repository/postgres"
	"stmtrules/internal/router"
	"stmtrules/internal/service"
	s3storage "stmtrules/internal/storage/s3"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Bank profiles
	store := profile.NewStore(cfg.Profiles.Directory, profile.WithLogger(logger))
	manager := service.NewProfileConfigService(store.List(), hotReloadConfig(cfg), logger)

	// Feature flags and fallback ladder
	engine, err := featureflag.New(
		featureflag.WithLogger(logger),
		featureflag.WithEnvironment(cfg.Server.Environment),
		featureflag.WithOverrides(cfg.Features.Overrides),
		featureflag.WithFallbackConfig(fallbackConfig(cfg.Fallback)),
	)
	if err != nil {
		return fmt.Errorf("failed to build feature flag engine: %w", err)
	}

	// Optional persistence
	var snapshots port.ConfigSnapshotRepository
	var healthDB handler.Pinger
	if cfg.DB.Enabled {
		db, err := postgres.NewDB(ctx, &cfg.DB)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()
		snapshots = postgres.NewConfigSnapshotRepo(db)
		healthDB = db
	}

	var backups port.ProfileBackupStore
	switch cfg.Backup.Provider {
	case "s3":
		storage, err := s3storage.NewObjectStorage(ctx, &cfg.S3)
		if err != nil {
			return fmt.Errorf("failed to initialize S3 client: %w", err)
		}
		backups = backup.NewObjectStore(storage, cfg.S3.Bucket, cfg.S3.Prefix)
	case "postgres":
		backups = backup.NewSnapshotStore(snapshots)
	}

	// Services
	profiles := service.NewProfileService(store, manager, backups, logger)
	flags := service.NewFlagService(engine, snapshots, logger)
	plans := service.NewPlanService(store, engine, logger)
	if snapshots != nil {
		service.RestoreAtBoot(ctx, flags, logger)
	}

	// Parser engines
	var runner handler.StatementRunner
	if cfg.Parser.Endpoint != "" {
		remote.Register(engineNames(engine.Fallback().Strategies())...)
		engines, err := parser.BuildEngines(&cfg.Parser)
		if err != nil {
			return fmt.Errorf("failed to build parser engines: %w", err)
		}
		runner = parser.NewStrategyRunner(plans, engines, &cfg.Parser, parser.WithRunnerLogger(logger))
	} else {
		logger.Warn("parser endpoint not configured; statement parsing disabled")
	}

	// Hot reload
	watcher := hotreload.New(manager, profiles, logger)
	go func() {
		if err := watcher.Run(ctx); err != nil {
			logger.Error("profile watcher stopped", "error", err)
		}
	}()

	r := router.Setup(router.Handlers{
		Profile:  handler.NewProfileHandler(profiles),
		Config:   handler.NewConfigHandler(manager),
		Flag:     handler.NewFlagHandler(flags),
		Fallback: handler.NewFallbackHandler(flags),
		Plan:     handler.NewPlanHandler(plans, runner),
		Health:   handler.NewHealthHandler(healthDB, manager),
	}, cfg.CORS.AllowedOrigins, logger)

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", cfg.Server.Port, "profiles", store.Len())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func hotReloadConfig(cfg *config.Config) domain.HotReloadConfig {
	hr := service.DefaultHotReloadConfig()
	hr.Enabled = cfg.Profiles.HotReload.Enabled
	hr.DebounceMs = cfg.Profiles.HotReload.DebounceMs
	hr.BackupCount = cfg.Profiles.HotReload.BackupCount
	hr.MaxFileSize = cfg.Profiles.HotReload.MaxFileSize
	hr.WatchDirectory = cfg.Profiles.Directory
	return hr
}

func fallbackConfig(cfg config.FallbackConfig) fallback.Config {
	fc := fallback.DefaultConfig()
	fc.Enabled = cfg.Enabled
	fc.AutoSwitchThreshold = cfg.AutoSwitchThreshold
	fc.MaxAttempts = cfg.MaxAttempts
	fc.RetryDelayMs = cfg.RetryDelayMs
	return fc
}

// engineNames lists the parsing actions named by the ladder, one engine each.
func engineNames(strategies []fallback.Strategy) []string {
	seen := make(map[string]bool, len(strategies))
	var names []string
	for _, s := range strategies {
		if s.Actions.Parsing != "" && !seen[s.Actions.Parsing] {
			seen[s.Actions.Parsing] = true
			names = append(names, s.Actions.Parsing)
		}
	}
	return names
}
