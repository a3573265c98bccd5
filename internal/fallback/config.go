// Package fallback selects parsing strategies by priority and context and
// decides when a low-quality parse should escalate to the next rung.
package fallback

import (
	"fmt"
	"time"

	"stmtrules/internal/condition"
	"stmtrules/internal/domain"
)

// Actions are the directives a strategy hands to the parsing pipeline.
type Actions struct {
	Parsing    string `json:"parsing"`
	Extraction string `json:"extraction"`
	Validation string `json:"validation"`
	AutoFix    bool   `json:"autoFix"`
}

// Strategy is one rung of the escalation ladder. Lower priority is tried first.
type Strategy struct {
	Name       string                `json:"name"`
	Priority   int                   `json:"priority"`
	Conditions []condition.Condition `json:"conditions"`
	Actions    Actions               `json:"actions"`
	Enabled    bool                  `json:"enabled"`
	IsTerminal bool                  `json:"isTerminal"`
}

// CatchAll reports whether the strategy matches every context.
func (s Strategy) CatchAll() bool {
	return s.Enabled && len(s.Conditions) == 0
}

func (s Strategy) clone() Strategy {
	out := s
	if s.Conditions != nil {
		out.Conditions = append([]condition.Condition(nil), s.Conditions...)
	}
	return out
}

// Config is the process-wide fallback configuration.
type Config struct {
	Enabled             bool       `json:"enabled"`
	Strategies          []Strategy `json:"strategies"`
	AutoSwitchThreshold float64    `json:"autoSwitchThreshold"`
	MaxAttempts         int        `json:"maxAttempts"`
	RetryDelayMs        int        `json:"retryDelay"`
}

// RetryDelay returns the configured pause between attempts.
func (c Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMs) * time.Millisecond
}

// Clone returns a deep copy.
func (c Config) Clone() Config {
	out := c
	out.Strategies = make([]Strategy, len(c.Strategies))
	for i, s := range c.Strategies {
		out.Strategies[i] = s.clone()
	}
	return out
}

// Validate checks names, numeric bounds, condition enums and the catch-all rule.
func (c Config) Validate() error {
	if c.AutoSwitchThreshold < 0 || c.AutoSwitchThreshold > 1 {
		return fmt.Errorf("%w: autoSwitchThreshold must be between 0 and 1", domain.ErrInvalidStrategy)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("%w: maxAttempts must be at least 1", domain.ErrInvalidStrategy)
	}
	if c.RetryDelayMs < 0 {
		return fmt.Errorf("%w: retryDelay must not be negative", domain.ErrInvalidStrategy)
	}

	seen := make(map[string]bool, len(c.Strategies))
	catchAll := false
	for _, s := range c.Strategies {
		if s.Name == "" {
			return fmt.Errorf("%w: strategy name is required", domain.ErrInvalidStrategy)
		}
		if seen[s.Name] {
			return fmt.Errorf("%w: duplicate strategy %q", domain.ErrInvalidStrategy, s.Name)
		}
		seen[s.Name] = true
		for _, cond := range s.Conditions {
			if !cond.Type.Valid() || !cond.Operator.Valid() {
				return fmt.Errorf("%w: strategy %q has unsupported condition %s", domain.ErrInvalidStrategy, s.Name, cond)
			}
		}
		if s.CatchAll() {
			catchAll = true
		}
	}
	if !catchAll {
		return domain.ErrNoCatchAllStrategy
	}
	return nil
}

// DefaultConfig is the built-in ladder: ml-first, regex-based, basic-heuristic.
func DefaultConfig() Config {
	return Config{
		Enabled: true,
		Strategies: []Strategy{
			{
				Name:     "ml-first",
				Priority: 1,
				Conditions: []condition.Condition{
					{Type: condition.TypeFeature, Operator: condition.OpEquals, Field: "ml-classification", Value: true},
					{Type: condition.TypeFormat, Operator: condition.OpIn, Field: "format", Value: []string{"pdf", "excel"}},
				},
				Actions: Actions{Parsing: "ml-enhanced", Extraction: "ai-powered", Validation: "strict", AutoFix: true},
				Enabled: true,
			},
			{
				Name:     "regex-based",
				Priority: 2,
				Conditions: []condition.Condition{
					{Type: condition.TypeFeature, Operator: condition.OpEquals, Field: "ml-classification", Value: false},
				},
				Actions: Actions{Parsing: "regex-based", Extraction: "pattern-matching", Validation: "standard", AutoFix: false},
				Enabled: true,
			},
			{
				Name:       "basic-heuristic",
				Priority:   3,
				Conditions: []condition.Condition{},
				Actions:    Actions{Parsing: "basic", Extraction: "simple", Validation: "minimal", AutoFix: false},
				Enabled:    true,
				IsTerminal: true,
			},
		},
		AutoSwitchThreshold: 0.7,
		MaxAttempts:         3,
		RetryDelayMs:        1000,
	}
}

// StrategyUpdate is a partial strategy update; nil fields are left untouched.
// A non-nil Conditions slice replaces the list, an empty one clears it.
type StrategyUpdate struct {
	Priority   *int                  `json:"priority"`
	Conditions []condition.Condition `json:"conditions"`
	Actions    *Actions              `json:"actions"`
	Enabled    *bool                 `json:"enabled"`
	IsTerminal *bool                 `json:"isTerminal"`
}

func (u StrategyUpdate) apply(s *Strategy) {
	if u.Priority != nil {
		s.Priority = *u.Priority
	}
	if u.Conditions != nil {
		s.Conditions = append([]condition.Condition{}, u.Conditions...)
	}
	if u.Actions != nil {
		s.Actions = *u.Actions
	}
	if u.Enabled != nil {
		s.Enabled = *u.Enabled
	}
	if u.IsTerminal != nil {
		s.IsTerminal = *u.IsTerminal
	}
}

// SettingsUpdate changes the global knobs without touching strategies.
type SettingsUpdate struct {
	Enabled             *bool    `json:"enabled"`
	AutoSwitchThreshold *float64 `json:"autoSwitchThreshold"`
	MaxAttempts         *int     `json:"maxAttempts"`
	RetryDelayMs        *int     `json:"retryDelay"`
}

func (u SettingsUpdate) apply(c *Config) {
	if u.Enabled != nil {
		c.Enabled = *u.Enabled
	}
	if u.AutoSwitchThreshold != nil {
		c.AutoSwitchThreshold = *u.AutoSwitchThreshold
	}
	if u.MaxAttempts != nil {
		c.MaxAttempts = *u.MaxAttempts
	}
	if u.RetryDelayMs != nil {
		c.RetryDelayMs = *u.RetryDelayMs
	}
}
