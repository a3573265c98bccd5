package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"stmtrules/internal/domain"
	"stmtrules/internal/port"
	"stmtrules/internal/profile"
)

// IdentifyResult reports which profile matched a document and how.
type IdentifyResult struct {
	Profile *domain.BankProfile         `json:"profile"`
	Method  domain.IdentificationMethod `json:"method"`
}

// ProfileService keeps the profile store and the management overlay in step.
type ProfileService interface {
	List() []*domain.BankProfile
	Get(id string) (*domain.BankProfile, error)
	Create(p *domain.BankProfile) (*domain.BankProfile, error)
	Update(id string, u domain.ProfileUpdate) (*domain.BankProfile, error)
	Delete(id string) error
	Validate(p *domain.BankProfile) domain.ValidationResult
	Identify(filename, text string) (*IdentifyResult, error)
	Export(id string, format profile.Format) ([]byte, error)
	Import(data []byte, format profile.Format) (*domain.BankProfile, error)
	Backup(ctx context.Context, profileID string) (*domain.BackupInfo, error)
	Reload() int
}

type profileService struct {
	store   *profile.Store
	manager ProfileConfigService
	backups port.ProfileBackupStore
	logger  *slog.Logger
}

// NewProfileService creates a ProfileService. backups may be nil, in which
// case backups only advance the manager counter.
func NewProfileService(store *profile.Store, manager ProfileConfigService, backups port.ProfileBackupStore, logger *slog.Logger) ProfileService {
	if logger == nil {
		logger = slog.Default()
	}
	return &profileService{
		store:   store,
		manager: manager,
		backups: backups,
		logger:  logger.With("component", "service.ProfileService"),
	}
}

func (s *profileService) List() []*domain.BankProfile {
	return s.store.List()
}

func (s *profileService) Get(id string) (*domain.BankProfile, error) {
	p, ok := s.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("profile %q: %w", id, domain.ErrProfileNotFound)
	}
	return p, nil
}

func (s *profileService) Create(p *domain.BankProfile) (*domain.BankProfile, error) {
	if err := invalid(profile.Validate(p)); err != nil {
		return nil, err
	}
	saved, err := s.manager.Save(p)
	if err != nil {
		return nil, err
	}
	s.store.Add(saved)
	return saved, nil
}

func (s *profileService) Update(id string, u domain.ProfileUpdate) (*domain.BankProfile, error) {
	existing, ok := s.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("profile %q: %w", id, domain.ErrProfileNotFound)
	}
	u.Apply(existing, time.Now().UTC())
	if err := invalid(profile.Validate(existing)); err != nil {
		return nil, err
	}

	updated, err := s.store.Update(id, u)
	if err != nil {
		return nil, err
	}
	if _, err := s.manager.Save(updated); err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *profileService) Delete(id string) error {
	if err := s.manager.Delete(id); err != nil {
		return err
	}
	s.store.Remove(id)
	return nil
}

func (s *profileService) Validate(p *domain.BankProfile) domain.ValidationResult {
	return profile.Validate(p)
}

func (s *profileService) Identify(filename, text string) (*IdentifyResult, error) {
	p, method, ok := s.store.Identify(filename, text)
	if !ok {
		return nil, fmt.Errorf("no profile matches %q: %w", filename, domain.ErrProfileNotFound)
	}
	return &IdentifyResult{Profile: p, Method: method}, nil
}

func (s *profileService) Export(id string, format profile.Format) ([]byte, error) {
	return s.store.Export(id, format)
}

func (s *profileService) Import(data []byte, format profile.Format) (*domain.BankProfile, error) {
	p, err := s.store.Import(data, format)
	if err != nil {
		return nil, err
	}
	if _, err := s.manager.Save(p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *profileService) Backup(ctx context.Context, profileID string) (*domain.BackupInfo, error) {
	var profiles []*domain.BankProfile
	if profileID != "" {
		p, err := s.Get(profileID)
		if err != nil {
			return nil, err
		}
		profiles = []*domain.BankProfile{p}
	} else {
		profiles = s.store.List()
	}

	info := s.manager.CreateBackup(profileID)
	if s.backups == nil {
		return &info, nil
	}

	payload, err := json.Marshal(profiles)
	if err != nil {
		return nil, fmt.Errorf("encoding profile backup: %w", err)
	}
	snap := &domain.ConfigSnapshot{
		ID:        uuid.New(),
		Kind:      domain.SnapshotProfiles,
		Payload:   payload,
		CreatedAt: info.Timestamp,
	}
	location, err := s.backups.Store(ctx, snap)
	if err != nil {
		return nil, fmt.Errorf("storing profile backup: %w", err)
	}
	info.Location = location

	keep := s.manager.HotReloadConfig().BackupCount
	if keep > 0 {
		pruned, err := s.backups.Prune(ctx, keep)
		if err != nil {
			s.logger.Warn("failed to prune old profile backups", "error", err)
		}
		info.Pruned = pruned
	}
	s.logger.Info("profile backup created", "location", location, "profiles", len(profiles), "backup_count", info.BackupCount)
	return &info, nil
}

func (s *profileService) Reload() int {
	s.store.Reload()
	profiles := s.store.List()
	s.manager.ReplaceAll(profiles)
	return len(profiles)
}

func invalid(res domain.ValidationResult) error {
	if res.IsValid {
		return nil
	}
	return fmt.Errorf("%w: %s", domain.ErrInvalidProfile, strings.Join(res.Errors, ", "))
}
