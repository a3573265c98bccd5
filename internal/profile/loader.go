package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"stmtrules/internal/domain"
)

// LoadDir reads every *.json, *.yaml and *.yml profile in dir, in file name
// order. Files that fail to decode are logged and skipped; only a missing or
// unreadable directory is returned as an error.
func LoadDir(dir string, logger *slog.Logger) ([]*domain.BankProfile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading profile directory: %w", err)
	}

	var out []*domain.BankProfile
	seen := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || !IsProfileFile(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		p, err := LoadFile(path)
		if err != nil {
			logger.Error("failed to load bank profile", "path", path, "error", err)
			continue
		}
		if prev, dup := seen[p.ID]; dup {
			logger.Warn("duplicate bank profile id, later file wins", "id", p.ID, "previous", prev, "path", path)
			for i := range out {
				if out[i].ID == p.ID {
					out[i] = p
				}
			}
			seen[p.ID] = path
			continue
		}
		if res := Validate(p); !res.IsValid {
			logger.Warn("loaded bank profile is incomplete", "id", p.ID, "errors", strings.Join(res.Errors, "; "))
		}
		seen[p.ID] = path
		out = append(out, p)
		logger.Info("loaded bank profile", "id", p.ID, "name", p.Name, "path", path)
	}
	return out, nil
}

// LoadFile decodes a single JSON or YAML profile file.
func LoadFile(path string) (*domain.BankProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	format := FormatJSON
	if ext := strings.ToLower(filepath.Ext(path)); ext == ".yaml" || ext == ".yml" {
		format = FormatYAML
	}
	p, err := Decode(data, format)
	if err != nil {
		return nil, err
	}
	if p.ID == "" {
		return nil, fmt.Errorf("profile in %s has no id", filepath.Base(path))
	}
	return p, nil
}

// IsProfileFile reports whether name has a supported profile extension.
func IsProfileFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

// Format is a profile serialisation format.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat maps a user-supplied format name, defaulting to JSON.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("profile format %q: %w", s, domain.ErrUnsupportedFormat)
}

// Decode parses a profile document.
func Decode(data []byte, format Format) (*domain.BankProfile, error) {
	var p domain.BankProfile
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decoding json profile: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decoding yaml profile: %w", err)
		}
	default:
		return nil, fmt.Errorf("profile format %q: %w", format, domain.ErrUnsupportedFormat)
	}
	return &p, nil
}

// Encode serialises a profile.
func Encode(p *domain.BankProfile, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return json.MarshalIndent(p, "", "  ")
	case FormatYAML:
		return yaml.Marshal(p)
	}
	return nil, fmt.Errorf("profile format %q: %w", format, domain.ErrUnsupportedFormat)
}

// Export serialises the stored profile with the given id.
func (s *Store) Export(id string, format Format) ([]byte, error) {
	p, ok := s.Get(id)
	if !ok {
		return nil, fmt.Errorf("exporting profile %q: %w", id, domain.ErrProfileNotFound)
	}
	return Encode(p, format)
}

// Import decodes, validates and adds a profile.
func (s *Store) Import(data []byte, format Format) (*domain.BankProfile, error) {
	p, err := Decode(data, format)
	if err != nil {
		if errors.Is(err, domain.ErrUnsupportedFormat) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidProfile, err)
	}
	if res := Validate(p); !res.IsValid {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidProfile, strings.Join(res.Errors, ", "))
	}
	s.Add(p)
	out, _ := s.Get(p.ID)
	return out, nil
}
