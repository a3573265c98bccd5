package fallback

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"stmtrules/internal/condition"
	"stmtrules/internal/domain"
)

// Escalator owns the fallback configuration. Condition evaluation happens on
// a snapshot taken under the read lock so feature conditions may call back
// into the flag engine without lock nesting.
type Escalator struct {
	mu       sync.RWMutex
	cfg      Config
	defaults Config
	eval   *condition.Evaluator
	logger *slog.Logger
}

// Option customises an Escalator.
type Option func(*Escalator)

// WithLogger sets the escalator logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Escalator) { e.logger = l }
}

// WithEnvironment sets the environment assumed when a context carries none.
func WithEnvironment(env string) Option {
	return func(e *Escalator) { e.eval.DefaultEnvironment = env }
}

// New creates an escalator. flags resolves `feature` conditions and may be nil.
func New(cfg Config, flags condition.FlagResolver, opts ...Option) (*Escalator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Escalator{
		cfg:      cfg.Clone(),
		defaults: cfg.Clone(),
		eval:     &condition.Evaluator{Flags: flags},
	}
	for _, o := range opts {
		o(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	e.logger = e.logger.With("component", "fallback.Escalator")
	e.eval.Logger = e.logger
	return e, nil
}

// Select returns the enabled, matching strategy with the lowest priority.
// Equal priorities keep configuration order. It returns false when fallback
// is disabled or nothing matches.
func (e *Escalator) Select(ctx *condition.Context) (Strategy, bool) {
	cfg := e.snapshot()
	if !cfg.Enabled {
		return Strategy{}, false
	}
	for _, s := range byPriority(cfg.Strategies) {
		if e.matches(s, ctx) {
			return s, true
		}
	}
	return Strategy{}, false
}

// ShouldEscalate reports whether a parse with the given quality under the
// named strategy should move to the next rung. Terminal strategies never escalate.
func (e *Escalator) ShouldEscalate(quality float64, current string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.cfg.Enabled || quality >= e.cfg.AutoSwitchThreshold {
		return false
	}
	if s, ok := find(e.cfg.Strategies, current); ok && s.IsTerminal {
		return false
	}
	return true
}

// Next returns the enabled, matching strategy with the smallest priority
// strictly greater than the current one. An unknown current name behaves like
// Select; a terminal current strategy has no successor.
func (e *Escalator) Next(current string, ctx *condition.Context) (Strategy, bool) {
	cfg := e.snapshot()
	cur, ok := find(cfg.Strategies, current)
	if !ok {
		return e.Select(ctx)
	}
	if !cfg.Enabled || cur.IsTerminal {
		return Strategy{}, false
	}
	for _, s := range byPriority(cfg.Strategies) {
		if s.Priority <= cur.Priority || s.Name == cur.Name {
			continue
		}
		if e.matches(s, ctx) {
			return s, true
		}
	}
	return Strategy{}, false
}

// IsTerminal reports whether the named strategy is an absorbing rung.
func (e *Escalator) IsTerminal(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := find(e.cfg.Strategies, name)
	return ok && s.IsTerminal
}

// Strategy returns a copy of the named strategy.
func (e *Escalator) Strategy(name string) (Strategy, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := find(e.cfg.Strategies, name)
	if !ok {
		return Strategy{}, false
	}
	return s.clone(), true
}

// Strategies returns every strategy in priority order.
func (e *Escalator) Strategies() []Strategy {
	return byPriority(e.snapshot().Strategies)
}

// Config returns a copy of the current configuration.
func (e *Escalator) Config() Config {
	return e.snapshot()
}

// UpdateStrategy merges u into the named strategy. The change is rejected if
// it would leave the ladder without an enabled catch-all rung.
func (e *Escalator) UpdateStrategy(name string, u StrategyUpdate) (Strategy, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.cfg.Clone()
	idx := -1
	for i := range next.Strategies {
		if next.Strategies[i].Name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Strategy{}, fmt.Errorf("updating strategy %q: %w", name, domain.ErrStrategyNotFound)
	}
	u.apply(&next.Strategies[idx])
	if err := next.Validate(); err != nil {
		return Strategy{}, fmt.Errorf("updating strategy %q: %w", name, err)
	}
	e.cfg = next
	e.logger.Info("updated fallback strategy", "name", name)
	return next.Strategies[idx].clone(), nil
}

// UpdateSettings changes the global switch, threshold, attempt bound or delay.
func (e *Escalator) UpdateSettings(u SettingsUpdate) (Config, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.cfg.Clone()
	u.apply(&next)
	if err := next.Validate(); err != nil {
		return Config{}, err
	}
	e.cfg = next
	e.logger.Info("updated fallback settings",
		"enabled", next.Enabled,
		"auto_switch_threshold", next.AutoSwitchThreshold,
		"max_attempts", next.MaxAttempts,
	)
	return next.Clone(), nil
}

// SetConfig replaces the whole configuration after validation.
func (e *Escalator) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	e.cfg = cfg.Clone()
	e.mu.Unlock()
	e.logger.Info("replaced fallback configuration", "strategies", len(cfg.Strategies))
	return nil
}

// Reset restores the configuration the escalator was created with.
func (e *Escalator) Reset() {
	e.mu.Lock()
	e.cfg = e.defaults.Clone()
	e.mu.Unlock()
	e.logger.Info("fallback configuration reset to defaults")
}

func (e *Escalator) snapshot() Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg.Clone()
}

func (e *Escalator) matches(s Strategy, ctx *condition.Context) bool {
	return s.Enabled && e.eval.EvaluateAll(s.Conditions, ctx).Passed
}

func find(strategies []Strategy, name string) (Strategy, bool) {
	for _, s := range strategies {
		if s.Name == name {
			return s, true
		}
	}
	return Strategy{}, false
}

func byPriority(strategies []Strategy) []Strategy {
	out := make([]Strategy, len(strategies))
	for i, s := range strategies {
		out[i] = s.clone()
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}
