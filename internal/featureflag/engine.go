// Package featureflag evaluates named flags against a request context using a
// global switch, deterministic percentage rollout and AND-ed conditions.
package featureflag

import (
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sort"
	"sync"
	"time"

	"stmtrules/internal/condition"
	"stmtrules/internal/domain"
	"stmtrules/internal/fallback"
)

// Source tells which gate decided a Result.
type Source string

const (
	SourceGlobal    Source = "global"
	SourceCondition Source = "condition"
	SourceRollout   Source = "rollout"
	SourceDefault   Source = "default"
)

const reasonNotFound = "Feature flag not found"

// Flag is the configuration of one feature flag.
type Flag struct {
	Enabled           bool                  `json:"enabled"`
	Value             any                   `json:"value,omitempty"`
	RolloutPercentage *int                  `json:"rolloutPercentage,omitempty"`
	Conditions        []condition.Condition `json:"conditions,omitempty"`
	LastUpdated       time.Time             `json:"lastUpdated"`
}

func (f Flag) clone() Flag {
	out := f
	if f.RolloutPercentage != nil {
		p := *f.RolloutPercentage
		out.RolloutPercentage = &p
	}
	if f.Conditions != nil {
		out.Conditions = append([]condition.Condition(nil), f.Conditions...)
	}
	return out
}

func (f Flag) validate(name string) error {
	if name == "" {
		return fmt.Errorf("%w: flag name is required", domain.ErrInvalidFlag)
	}
	if p := f.RolloutPercentage; p != nil && (*p < 0 || *p > 100) {
		return fmt.Errorf("%w: %s rolloutPercentage must be between 0 and 100", domain.ErrInvalidFlag, name)
	}
	for _, c := range f.Conditions {
		if !c.Type.Valid() || !c.Operator.Valid() {
			return fmt.Errorf("%w: %s has unsupported condition %s", domain.ErrInvalidFlag, name, c)
		}
	}
	return nil
}

// Result is the outcome of evaluating a flag.
type Result struct {
	Enabled bool   `json:"enabled"`
	Value   any    `json:"value,omitempty"`
	Reason  string `json:"reason"`
	Source  Source `json:"source"`
}

// FlagUpdate is a partial flag update; nil fields are left untouched.
type FlagUpdate struct {
	Enabled           *bool                 `json:"enabled"`
	Value             any                   `json:"value"`
	ClearValue        bool                  `json:"clearValue"`
	RolloutPercentage *int                  `json:"rolloutPercentage"`
	ClearRollout      bool                  `json:"clearRollout"`
	Conditions        []condition.Condition `json:"conditions"`
}

func (u FlagUpdate) apply(f *Flag) {
	if u.Enabled != nil {
		f.Enabled = *u.Enabled
	}
	if u.ClearValue {
		f.Value = nil
	} else if u.Value != nil {
		f.Value = u.Value
	}
	if u.ClearRollout {
		f.RolloutPercentage = nil
	} else if u.RolloutPercentage != nil {
		p := *u.RolloutPercentage
		f.RolloutPercentage = &p
	}
	if u.Conditions != nil {
		f.Conditions = append([]condition.Condition{}, u.Conditions...)
	}
}

// Usage is the evaluation counter kept per flag.
type Usage struct {
	Enabled    bool       `json:"enabled"`
	UsageCount int64      `json:"usageCount"`
	LastUsed   *time.Time `json:"lastUsed"`
}

// Configuration is the exportable state: every flag plus the fallback ladder.
type Configuration struct {
	Flags      map[string]Flag `json:"featureFlags"`
	Fallback   fallback.Config `json:"fallbackConfig"`
	ExportedAt time.Time       `json:"exportedAt"`
}

// Engine holds the flag table and owns the fallback escalator, whose feature
// conditions it resolves.
type Engine struct {
	mu        sync.RWMutex
	flags     map[string]Flag
	overrides map[string]string

	statsMu sync.Mutex
	usage   map[string]*Usage

	eval      *condition.Evaluator
	nested    *condition.Evaluator
	escalator *fallback.Escalator

	environment string
	fallbackCfg *fallback.Config
	logger      *slog.Logger
	now         func() time.Time
}

// Option customises an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock overrides the time source used for LastUpdated stamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithEnvironment sets the environment assumed when a context carries none.
func WithEnvironment(env string) Option {
	return func(e *Engine) { e.environment = env }
}

// WithOverrides applies flag-name → raw switch overrides at boot and on reset.
func WithOverrides(overrides map[string]string) Option {
	return func(e *Engine) {
		e.overrides = make(map[string]string, len(overrides))
		for k, v := range overrides {
			e.overrides[k] = v
		}
	}
}

// WithFallbackConfig replaces the default fallback ladder at boot.
func WithFallbackConfig(cfg fallback.Config) Option {
	return func(e *Engine) {
		c := cfg.Clone()
		e.fallbackCfg = &c
	}
}

// New creates an engine seeded with DefaultFlags and any overrides.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		usage: make(map[string]*Usage),
		now:   time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	base := e.logger
	e.logger = base.With("component", "featureflag.Engine")

	e.eval = &condition.Evaluator{DefaultEnvironment: e.environment, Flags: e, Logger: e.logger}
	e.nested = &condition.Evaluator{DefaultEnvironment: e.environment, Logger: e.logger}

	cfg := fallback.DefaultConfig()
	if e.fallbackCfg != nil {
		cfg = *e.fallbackCfg
	}
	esc, err := fallback.New(cfg, e, fallback.WithLogger(base), fallback.WithEnvironment(e.environment))
	if err != nil {
		return nil, fmt.Errorf("creating fallback escalator: %w", err)
	}
	e.escalator = esc

	e.flags = e.seed()
	e.logger.Info("feature flags initialised", "count", len(e.flags), "overrides", len(e.overrides))
	return e, nil
}

func (e *Engine) seed() map[string]Flag {
	now := e.now().UTC()
	flags := DefaultFlags(now)
	applyOverrides(flags, e.overrides, now)
	for name := range e.overrides {
		e.logger.Info("feature flag overridden from environment", "flag", name, "enabled", flags[name].Enabled)
	}
	return flags
}

// Fallback returns the escalator owned by the engine.
func (e *Engine) Fallback() *fallback.Escalator {
	return e.escalator
}

// IsEnabled evaluates a flag: lookup, global switch, rollout, then conditions.
func (e *Engine) IsEnabled(name string, ctx *condition.Context) Result {
	res := e.evaluate(name, ctx, e.eval)
	if res.Reason != reasonNotFound {
		e.record(name, res.Enabled)
	}
	return res
}

// FlagEnabled resolves `feature` conditions. Nested flags see only context
// values, never further flag lookups.
func (e *Engine) FlagEnabled(name string, ctx *condition.Context) bool {
	return e.evaluate(name, ctx, e.nested).Enabled
}

// GetValue returns the flag value, true when enabled without a value, or def.
func (e *Engine) GetValue(name string, def any, ctx *condition.Context) any {
	res := e.IsEnabled(name, ctx)
	if !res.Enabled {
		return def
	}
	if res.Value == nil {
		return true
	}
	return res.Value
}

func (e *Engine) evaluate(name string, ctx *condition.Context, eval *condition.Evaluator) Result {
	e.mu.RLock()
	f, ok := e.flags[name]
	if ok {
		f = f.clone()
	}
	e.mu.RUnlock()

	if !ok {
		return Result{Enabled: false, Reason: reasonNotFound, Source: SourceDefault}
	}
	if !f.Enabled {
		return Result{Enabled: false, Reason: "Feature flag globally disabled", Source: SourceGlobal}
	}
	if p := f.RolloutPercentage; p != nil && *p < 100 {
		if ctx == nil || ctx.UserID == "" {
			return Result{Enabled: false, Reason: "No user context for rollout check", Source: SourceDefault}
		}
		if Bucket(ctx.UserID, name) >= *p {
			return Result{Enabled: false, Reason: "User not included in rollout", Source: SourceRollout}
		}
	}
	if len(f.Conditions) > 0 {
		out := eval.EvaluateAll(f.Conditions, ctx)
		if !out.Passed {
			return Result{Enabled: false, Reason: out.Reason, Source: SourceCondition}
		}
		return Result{Enabled: true, Value: f.Value, Reason: "Feature flag enabled and conditions met", Source: SourceCondition}
	}
	return Result{Enabled: true, Value: f.Value, Reason: "Feature flag enabled and conditions met", Source: SourceDefault}
}

// Bucket maps a user to a rollout bucket in [0, 100). It depends only on the
// user id and flag name.
func Bucket(userID, flag string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID + ":" + flag))
	return int(h.Sum32() % 100)
}

// BankSpecificFlags evaluates every flag with the bank injected into the
// context, then lets the profile's features block override the results.
func (e *Engine) BankSpecificFlags(p *domain.BankProfile, ctx *condition.Context) map[string]Result {
	var bankCtx condition.Context
	if ctx != nil {
		bankCtx = *ctx
	}
	bankCtx = bankCtx.WithBank(p.ID)

	out := e.Evaluate(&bankCtx)
	for name, v := range p.Features {
		out[name] = Result{Enabled: truthy(v), Value: v, Reason: "Bank-specific configuration", Source: SourceCondition}
	}
	return out
}

// Evaluate evaluates every registered flag against ctx.
func (e *Engine) Evaluate(ctx *condition.Context) map[string]Result {
	names := e.names()
	out := make(map[string]Result, len(names))
	for _, name := range names {
		out[name] = e.IsEnabled(name, ctx)
	}
	return out
}

// EnabledFeatures lists, in name order, every flag enabled for ctx.
func (e *Engine) EnabledFeatures(ctx *condition.Context) []string {
	var out []string
	for _, name := range e.names() {
		if e.IsEnabled(name, ctx).Enabled {
			out = append(out, name)
		}
	}
	return out
}

// Flag returns a copy of the named flag.
func (e *Engine) Flag(name string) (Flag, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	f, ok := e.flags[name]
	if !ok {
		return Flag{}, false
	}
	return f.clone(), true
}

// Flags returns a copy of the whole table.
func (e *Engine) Flags() map[string]Flag {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]Flag, len(e.flags))
	for name, f := range e.flags {
		out[name] = f.clone()
	}
	return out
}

// Set creates or replaces a flag.
func (e *Engine) Set(name string, f Flag) (Flag, error) {
	if err := f.validate(name); err != nil {
		return Flag{}, err
	}
	f = f.clone()
	f.LastUpdated = e.now().UTC()

	e.mu.Lock()
	e.flags[name] = f
	e.mu.Unlock()
	e.logger.Info("set feature flag", "flag", name, "enabled", f.Enabled)
	return f.clone(), nil
}

// Update merges u into an existing flag.
func (e *Engine) Update(name string, u FlagUpdate) (Flag, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	f, ok := e.flags[name]
	if !ok {
		return Flag{}, fmt.Errorf("updating flag %q: %w", name, domain.ErrFlagNotFound)
	}
	f = f.clone()
	u.apply(&f)
	if err := f.validate(name); err != nil {
		return Flag{}, err
	}
	f.LastUpdated = e.now().UTC()
	e.flags[name] = f
	e.logger.Info("updated feature flag", "flag", name, "enabled", f.Enabled)
	return f.clone(), nil
}

// Enable switches a flag on globally.
func (e *Engine) Enable(name string) (Flag, error) {
	on := true
	return e.Update(name, FlagUpdate{Enabled: &on})
}

// Disable switches a flag off globally.
func (e *Engine) Disable(name string) (Flag, error) {
	off := false
	return e.Update(name, FlagUpdate{Enabled: &off})
}

// Stats reports per-flag evaluation counters.
func (e *Engine) Stats() map[string]Usage {
	flags := e.Flags()

	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	out := make(map[string]Usage, len(flags))
	for name, f := range flags {
		u := Usage{Enabled: f.Enabled}
		if rec, ok := e.usage[name]; ok {
			u.UsageCount = rec.UsageCount
			if rec.LastUsed != nil {
				t := *rec.LastUsed
				u.LastUsed = &t
			}
		}
		out[name] = u
	}
	return out
}

// Export captures every flag and the fallback configuration.
func (e *Engine) Export() Configuration {
	return Configuration{
		Flags:      e.Flags(),
		Fallback:   e.escalator.Config(),
		ExportedAt: e.now().UTC(),
	}
}

// Import upserts the given flags and replaces the fallback configuration.
// A document without fallback strategies leaves the current ladder in place.
// Nothing is applied unless the whole document is valid.
func (e *Engine) Import(cfg Configuration) error {
	var errs []error
	for name, f := range cfg.Flags {
		if err := f.validate(name); err != nil {
			errs = append(errs, err)
		}
	}
	withFallback := len(cfg.Fallback.Strategies) > 0
	if withFallback {
		if err := cfg.Fallback.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("importing configuration: %w", err)
	}

	now := e.now().UTC()
	e.mu.Lock()
	for name, f := range cfg.Flags {
		f = f.clone()
		if f.LastUpdated.IsZero() {
			f.LastUpdated = now
		}
		e.flags[name] = f
	}
	e.mu.Unlock()

	if !withFallback {
		e.logger.Info("imported configuration", "flags", len(cfg.Flags), "fallback", "unchanged")
		return nil
	}
	if err := e.escalator.SetConfig(cfg.Fallback); err != nil {
		return fmt.Errorf("importing fallback configuration: %w", err)
	}
	e.logger.Info("imported configuration", "flags", len(cfg.Flags), "strategies", len(cfg.Fallback.Strategies))
	return nil
}

// ResetToDefaults discards runtime changes: flags are re-seeded with the boot
// overrides, the fallback ladder and usage counters are reset.
func (e *Engine) ResetToDefaults() {
	flags := e.seed()
	e.mu.Lock()
	e.flags = flags
	e.mu.Unlock()

	e.statsMu.Lock()
	e.usage = make(map[string]*Usage)
	e.statsMu.Unlock()

	e.escalator.Reset()
	e.logger.Info("feature flags reset to defaults", "count", len(flags))
}

func (e *Engine) names() []string {
	e.mu.RLock()
	names := make([]string, 0, len(e.flags))
	for name := range e.flags {
		names = append(names, name)
	}
	e.mu.RUnlock()
	sort.Strings(names)
	return names
}

func (e *Engine) record(name string, enabled bool) {
	now := e.now().UTC()
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	rec, ok := e.usage[name]
	if !ok {
		rec = &Usage{}
		e.usage[name] = rec
	}
	rec.Enabled = enabled
	rec.UsageCount++
	rec.LastUsed = &now
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	}
	return true
}
