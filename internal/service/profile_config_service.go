package service

import (
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"sort"
	"sync"
	"time"

	"stmtrules/internal/domain"
	"stmtrules/internal/profile"
)

// ProfileConfigService is the runtime management overlay for bank profiles:
// saving, deleting, the active selection, backups, health and the hot-reload
// settings. It keeps its own profile map and never touches the filesystem.
type ProfileConfigService interface {
	Save(p *domain.BankProfile) (*domain.BankProfile, error)
	ReplaceAll(profiles []*domain.BankProfile)
	Get(id string) (*domain.BankProfile, bool)
	Details(id string) (*domain.ProfileDetails, error)
	Delete(id string) error
	SetActive(id string) error
	Active() (string, bool)
	CreateBackup(profileID string) domain.BackupInfo
	Health() domain.HealthReport
	Diagnostics(id string) (*domain.Diagnostics, error)
	Schema() map[string]any
	HotReloadConfig() domain.HotReloadConfig
	UpdateHotReloadConfig(u domain.HotReloadUpdate) (domain.HotReloadConfig, error)
	Len() int
}

// DefaultHotReloadConfig mirrors the built-in watcher settings.
func DefaultHotReloadConfig() domain.HotReloadConfig {
	return domain.HotReloadConfig{
		Enabled:        false,
		DebounceMs:     500,
		WatchDirectory: "config/bank-profiles",
		BackupCount:    5,
		MaxFileSize:    10 * 1024 * 1024,
	}
}

type profileConfigService struct {
	mu           sync.RWMutex
	profiles     map[string]*domain.BankProfile
	activeID     string
	backupCount  int
	lastBackupAt *time.Time
	hotReload    domain.HotReloadConfig

	logger *slog.Logger
	now    func() time.Time
}

// NewProfileConfigService creates a ProfileConfigService seeded with profiles.
func NewProfileConfigService(seed []*domain.BankProfile, hotReload domain.HotReloadConfig, logger *slog.Logger) ProfileConfigService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &profileConfigService{
		profiles:  make(map[string]*domain.BankProfile, len(seed)),
		hotReload: hotReload,
		logger:    logger.With("component", "service.ProfileConfigService"),
		now:       time.Now,
	}
	for _, p := range seed {
		s.profiles[p.ID] = p.Clone()
	}
	return s
}

func (s *profileConfigService) Save(p *domain.BankProfile) (*domain.BankProfile, error) {
	if p == nil || p.ID == "" || p.Name == "" {
		return nil, fmt.Errorf("%w: profile must have id and name", domain.ErrInvalidProfile)
	}
	cp := p.Clone()
	cp.LastUpdated = s.now().UTC()

	s.mu.Lock()
	s.profiles[cp.ID] = cp
	s.mu.Unlock()
	s.logger.Debug("saved profile", "id", cp.ID)
	return cp.Clone(), nil
}

// ReplaceAll swaps the whole profile set. An active id that is no longer
// present is cleared.
func (s *profileConfigService) ReplaceAll(profiles []*domain.BankProfile) {
	next := make(map[string]*domain.BankProfile, len(profiles))
	for _, p := range profiles {
		next[p.ID] = p.Clone()
	}

	s.mu.Lock()
	s.profiles = next
	cleared := ""
	if _, ok := next[s.activeID]; s.activeID != "" && !ok {
		cleared = s.activeID
		s.activeID = ""
	}
	s.mu.Unlock()

	if cleared != "" {
		s.logger.Warn("active profile removed by reload", "id", cleared)
	}
	s.logger.Info("profiles replaced", "count", len(next))
}

func (s *profileConfigService) Get(id string) (*domain.BankProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

func (s *profileConfigService) Details(id string) (*domain.ProfileDetails, error) {
	p, ok := s.Get(id)
	if !ok {
		return nil, fmt.Errorf("profile %q: %w", id, domain.ErrProfileNotFound)
	}
	return details(p), nil
}

func details(p *domain.BankProfile) *domain.ProfileDetails {
	required := 0
	for _, c := range p.Parsing.Columns {
		if c.Required {
			required++
		}
	}
	return &domain.ProfileDetails{
		Profile:       p,
		Validation:    profile.Validate(p),
		ColumnCount:   len(p.Parsing.Columns),
		RequiredCount: required,
	}
}

func (s *profileConfigService) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[id]; !ok {
		return fmt.Errorf("profile %q: %w", id, domain.ErrProfileNotFound)
	}
	delete(s.profiles, id)
	s.logger.Info("deleted profile", "id", id)
	return nil
}

func (s *profileConfigService) SetActive(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[id]; !ok {
		return fmt.Errorf("profile %q: %w", id, domain.ErrProfileNotFound)
	}
	s.activeID = id
	s.logger.Info("active profile set", "id", id)
	return nil
}

func (s *profileConfigService) Active() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID, s.activeID != ""
}

func (s *profileConfigService) CreateBackup(profileID string) domain.BackupInfo {
	now := s.now().UTC()
	s.mu.Lock()
	s.backupCount++
	s.lastBackupAt = &now
	count := s.backupCount
	s.mu.Unlock()
	return domain.BackupInfo{ProfileID: profileID, BackupCount: count, Timestamp: now}
}

func (s *profileConfigService) Health() domain.HealthReport {
	s.mu.RLock()
	ids := make([]string, 0, len(s.profiles))
	for id := range s.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var invalid []string
	for _, id := range ids {
		if res := profile.Validate(s.profiles[id]); !res.IsValid {
			invalid = append(invalid, fmt.Sprintf("Profile %s is invalid: %v", id, res.Errors))
		}
	}
	activeID := s.activeID
	_, activeKnown := s.profiles[activeID]
	hr := s.hotReload
	s.mu.RUnlock()

	report := domain.HealthReport{Status: domain.HealthHealthy, Issues: []string{}}
	warn := func(msg string) {
		report.Issues = append(report.Issues, msg)
		if report.Status == domain.HealthHealthy {
			report.Status = domain.HealthWarning
		}
	}

	if len(ids) == 0 {
		warn("No profiles loaded")
	}
	for _, msg := range invalid {
		warn(msg)
	}
	if activeID != "" && !activeKnown {
		warn(fmt.Sprintf("Active profile %s no longer exists", activeID))
	}
	if hr.Enabled {
		if info, err := os.Stat(hr.WatchDirectory); err != nil || !info.IsDir() {
			report.Issues = append(report.Issues, fmt.Sprintf("Hot reload watch directory %s is not accessible", hr.WatchDirectory))
			report.Status = domain.HealthError
		}
	}
	return report
}

func (s *profileConfigService) Diagnostics(id string) (*domain.Diagnostics, error) {
	s.mu.RLock()
	d := &domain.Diagnostics{
		ProfileCount:    len(s.profiles),
		ActiveProfileID: s.activeID,
		Backups:         s.backupCount,
		HotReload:       s.hotReload.Enabled,
	}
	if s.lastBackupAt != nil {
		t := *s.lastBackupAt
		d.LastBackupAt = &t
	}
	s.mu.RUnlock()

	if id != "" {
		pd, err := s.Details(id)
		if err != nil {
			return nil, err
		}
		d.Profile = pd
	}
	return d, nil
}

func (s *profileConfigService) Schema() map[string]any {
	return describeStruct(reflect.TypeOf(domain.BankProfile{}))
}

func (s *profileConfigService) HotReloadConfig() domain.HotReloadConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hotReload
}

func (s *profileConfigService) UpdateHotReloadConfig(u domain.HotReloadUpdate) (domain.HotReloadConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.hotReload
	u.Apply(&next)
	if next.DebounceMs < 0 || next.BackupCount < 0 || next.MaxFileSize < 0 {
		return s.hotReload, fmt.Errorf("%w: hot reload values must not be negative", domain.ErrInvalidProfile)
	}
	s.hotReload = next
	s.logger.Info("hot reload configuration updated",
		"enabled", next.Enabled,
		"debounce_ms", next.DebounceMs,
		"watch_directory", next.WatchDirectory,
	)
	return next, nil
}

func (s *profileConfigService) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.profiles)
}
