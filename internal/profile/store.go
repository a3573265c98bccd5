// Package profile holds the registry of bank parsing profiles and the
// heuristics used to identify which bank produced a statement.
package profile

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"stmtrules/internal/domain"
)

// Store is the in-memory registry of bank profiles. Iteration order is
// insertion order and is significant for identification: when several
// profiles match, the one registered first wins.
type Store struct {
	mu        sync.RWMutex
	dir       string
	profiles  map[string]*domain.BankProfile
	order     []string
	filenames map[string][]*regexp.Regexp

	logger *slog.Logger
	now    func() time.Time
}

// Option customises a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock overrides the time source used for LastUpdated stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a store seeded from dir. A missing, unreadable or empty
// directory degrades to the built-in default profiles.
func NewStore(dir string, opts ...Option) *Store {
	s := newStore(dir, opts...)
	s.load()
	return s
}

// NewMemoryStore creates a store holding exactly the given profiles, in order.
// It never touches the filesystem; Reload re-seeds the defaults.
func NewMemoryStore(profiles []*domain.BankProfile, opts ...Option) *Store {
	s := newStore("", opts...)
	for _, p := range profiles {
		s.put(p.Clone())
	}
	return s
}

func newStore(dir string, opts ...Option) *Store {
	s := &Store{
		dir:       dir,
		profiles:  make(map[string]*domain.BankProfile),
		filenames: make(map[string][]*regexp.Regexp),
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "profile.Store")
	return s
}

// Dir returns the directory profiles are loaded from.
func (s *Store) Dir() string {
	return s.dir
}

// Get returns a copy of the profile with the given id.
func (s *Store) Get(id string) (*domain.BankProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// List returns copies of all profiles in store order.
func (s *Store) List() []*domain.BankProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.BankProfile, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.profiles[id].Clone())
	}
	return out
}

// Len returns the number of profiles held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// FindByFilename returns the first profile (in store order) with any
// filename pattern matching name, case-insensitively.
func (s *Store) FindByFilename(name string) (*domain.BankProfile, bool) {
	normalized := strings.ToLower(name)

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		for _, re := range s.filenames[id] {
			if re.MatchString(normalized) {
				return s.profiles[id].Clone(), true
			}
		}
	}
	return nil, false
}

// FindByText returns the first profile (in store order) whose text patterns
// occur in content, case-insensitively.
func (s *Store) FindByText(content string) (*domain.BankProfile, bool) {
	normalized := strings.ToLower(content)

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		for _, pattern := range s.profiles[id].Identification.TextPatterns {
			if pattern == "" {
				continue
			}
			if strings.Contains(normalized, strings.ToLower(pattern)) {
				return s.profiles[id].Clone(), true
			}
		}
	}
	return nil, false
}

// Identify tries filename patterns first, then text patterns.
func (s *Store) Identify(filename, text string) (*domain.BankProfile, domain.IdentificationMethod, bool) {
	if filename != "" {
		if p, ok := s.FindByFilename(filename); ok {
			return p, domain.IdentifiedByFilename, true
		}
	}
	if text != "" {
		if p, ok := s.FindByText(text); ok {
			return p, domain.IdentifiedByText, true
		}
	}
	return nil, "", false
}

// Add inserts or replaces a profile. A replaced profile keeps its position.
func (s *Store) Add(p *domain.BankProfile) {
	cp := p.Clone()
	if cp.LastUpdated.IsZero() {
		cp.LastUpdated = s.now().UTC()
	}
	s.mu.Lock()
	s.put(cp)
	s.mu.Unlock()
	s.logger.Info("added bank profile", "id", cp.ID, "name", cp.Name)
}

// Update merges u into the stored profile and refreshes LastUpdated.
func (s *Store) Update(id string, u domain.ProfileUpdate) (*domain.BankProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.profiles[id]
	if !ok {
		return nil, fmt.Errorf("updating profile %q: %w", id, domain.ErrProfileNotFound)
	}
	updated := existing.Clone()
	u.Apply(updated, s.now().UTC())
	s.put(updated)
	s.logger.Info("updated bank profile", "id", id, "name", updated.Name)
	return updated.Clone(), nil
}

// Remove deletes a profile and reports whether it existed.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[id]; !ok {
		return false
	}
	delete(s.profiles, id)
	delete(s.filenames, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.logger.Info("removed bank profile", "id", id)
	return true
}

// Reload re-seeds the store from disk or the defaults. The new profile set
// replaces the old one atomically; readers see either set, never a partial one.
func (s *Store) Reload() {
	s.load()
}

// Validate checks structural completeness of a profile.
func (s *Store) Validate(p *domain.BankProfile) domain.ValidationResult {
	return Validate(p)
}

func (s *Store) load() {
	var loaded []*domain.BankProfile
	if s.dir != "" {
		var err error
		loaded, err = LoadDir(s.dir, s.logger)
		if err != nil {
			s.logger.Warn("bank profile directory unavailable, using defaults", "dir", s.dir, "error", err)
		} else if len(loaded) == 0 {
			s.logger.Warn("no bank profiles found in directory, using defaults", "dir", s.dir)
		}
	}
	if len(loaded) == 0 {
		loaded = DefaultProfiles(s.now().UTC())
	}

	profiles := make(map[string]*domain.BankProfile, len(loaded))
	filenames := make(map[string][]*regexp.Regexp, len(loaded))
	order := make([]string, 0, len(loaded))
	for _, p := range loaded {
		if p.LastUpdated.IsZero() {
			p.LastUpdated = s.now().UTC()
		}
		if _, exists := profiles[p.ID]; !exists {
			order = append(order, p.ID)
		}
		profiles[p.ID] = p
		filenames[p.ID] = s.compileFilenamePatterns(p)
	}

	s.mu.Lock()
	s.profiles = profiles
	s.filenames = filenames
	s.order = order
	s.mu.Unlock()
	s.logger.Info("bank profiles loaded", "count", len(order))
}

// put stores p and recompiles its filename patterns. Caller holds mu.
func (s *Store) put(p *domain.BankProfile) {
	if _, exists := s.profiles[p.ID]; !exists {
		s.order = append(s.order, p.ID)
	}
	s.profiles[p.ID] = p
	s.filenames[p.ID] = s.compileFilenamePatterns(p)
}

func (s *Store) compileFilenamePatterns(p *domain.BankProfile) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(p.Identification.FilenamePatterns))
	for _, pattern := range p.Identification.FilenamePatterns {
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			s.logger.Warn("skipping invalid filename pattern", "id", p.ID, "pattern", pattern, "error", err)
			continue
		}
		out = append(out, re)
	}
	return out
}
