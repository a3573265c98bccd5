package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"stmtrules/internal/config"
	"stmtrules/internal/domain"
	"stmtrules/internal/port"
	"stmtrules/internal/service"
)

// Attempt records one parse under one strategy.
type Attempt struct {
	Number   int           `json:"number"`
	Strategy string        `json:"strategy"`
	Engine   string        `json:"engine"`
	Quality  float64       `json:"quality"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// RunResult is the outcome of driving a document through the fallback ladder.
// Output is the highest-quality successful attempt.
type RunResult struct {
	Plan     *service.Plan     `json:"plan"`
	Output   *port.ParseOutput `json:"output,omitempty"`
	Strategy string            `json:"strategy"`
	Attempts []Attempt         `json:"attempts"`
	Reason   string            `json:"reason"`
}

// RunnerOption configures a StrategyRunner.
type RunnerOption func(*StrategyRunner)

// WithRunnerLogger sets the runner's logger.
func WithRunnerLogger(l *slog.Logger) RunnerOption {
	return func(r *StrategyRunner) { r.logger = l }
}

// WithSleep replaces the retry-delay wait, mainly for tests.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) RunnerOption {
	return func(r *StrategyRunner) { r.sleep = fn }
}

// WithNow replaces the clock used for circuit decisions.
func WithNow(fn func() time.Time) RunnerOption {
	return func(r *StrategyRunner) { r.now = fn }
}

// StrategyRunner runs external parsing engines under the strategy chosen by
// the plan and escalates while the reported quality stays below threshold.
type StrategyRunner struct {
	plans          service.PlanService
	engines        map[string]port.StatementParser
	circuits       map[string]*circuit
	attemptTimeout time.Duration
	cooldown       time.Duration
	sleep          func(ctx context.Context, d time.Duration) error
	now            func() time.Time
	logger         *slog.Logger
}

// NewStrategyRunner creates a StrategyRunner over engines keyed by the
// actions.parsing name they serve.
func NewStrategyRunner(plans service.PlanService, engines map[string]port.StatementParser, cfg *config.ParserConfig, opts ...RunnerOption) *StrategyRunner {
	r := &StrategyRunner{
		plans:    plans,
		engines:  engines,
		circuits: make(map[string]*circuit, len(engines)),
		sleep:    sleepContext,
		now:      time.Now,
		logger:   slog.Default(),
	}
	if cfg != nil {
		r.attemptTimeout = cfg.AttemptTimeout
		r.cooldown = cfg.CircuitCooldown
	}
	for name := range engines {
		r.circuits[name] = &circuit{}
	}
	for _, o := range opts {
		o(r)
	}
	r.logger = r.logger.With("component", "parser.StrategyRunner")
	return r
}

// Run plans the document and parses it, escalating through the ladder until
// the quality is acceptable, a terminal strategy is reached or maxAttempts runs out.
func (r *StrategyRunner) Run(ctx context.Context, dc service.DocumentContext, file []byte, contentType string) (*RunResult, error) {
	plan := r.plans.Plan(dc)
	res := &RunResult{Plan: plan}
	if plan.Strategy == nil {
		return res, fmt.Errorf("no strategy applies: %w", domain.ErrStrategyNotFound)
	}

	bankID := plan.Context.BankID
	features := plan.EnabledFeatures()
	current := *plan.Strategy
	var lastErr error
	allRateLimited := true
	var earliestReset time.Time

	for attempt := 1; ; attempt++ {
		engineName := current.Actions.Parsing
		rec := Attempt{Number: attempt, Strategy: current.Name, Engine: engineName}
		start := r.now()

		out, err := r.attempt(ctx, engineName, port.ParseInput{
			FileBytes:   file,
			Filename:    dc.Filename,
			ContentType: contentType,
			BankID:      bankID,
			Strategy:    current.Name,
			Extraction:  current.Actions.Extraction,
			Validation:  current.Actions.Validation,
			AutoFix:     current.Actions.AutoFix,
			Features:    features,
		})
		rec.Duration = r.now().Sub(start)

		quality := 0.0
		if err != nil {
			rec.Error = err.Error()
			lastErr = err
			var rlErr *RateLimitError
			if errors.As(err, &rlErr) {
				reset := start.Add(rlErr.RetryAfter)
				if earliestReset.IsZero() || reset.Before(earliestReset) {
					earliestReset = reset
				}
			} else {
				allRateLimited = false
			}
			r.logger.Warn("parse attempt failed", "attempt", attempt, "strategy", current.Name, "engine", engineName, "error", err)
		} else {
			quality = out.Quality
			if res.Output == nil || out.Quality > res.Output.Quality {
				res.Output = out
				res.Strategy = current.Name
			}
		}
		rec.Quality = quality
		res.Attempts = append(res.Attempts, rec)

		esc := r.plans.Escalate(plan, current.Name, quality, attempt)
		if !esc.Escalate {
			res.Reason = esc.Reason
			break
		}
		r.logger.Info("escalating parse strategy",
			"attempt", attempt,
			"from", current.Name,
			"to", esc.Next.Name,
			"quality", quality,
		)
		if err := r.sleep(ctx, time.Duration(plan.RetryDelayMs)*time.Millisecond); err != nil {
			res.Reason = "cancelled"
			return res, err
		}
		current = *esc.Next
	}

	if res.Output != nil {
		return res, nil
	}
	if allRateLimited && !earliestReset.IsZero() {
		retryAfter := earliestReset.Sub(r.now())
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		return res, NewRateLimitError("all", errors.New("all parser engines rate limited"), int(retryAfter.Seconds()))
	}
	return res, fmt.Errorf("%w: %w", ErrAllStrategiesFailed, lastErr)
}

func (r *StrategyRunner) attempt(ctx context.Context, name string, input port.ParseInput) (*port.ParseOutput, error) {
	engine, ok := r.engines[name]
	if !ok {
		return nil, fmt.Errorf("parser engine %q: %w", name, domain.ErrNoParserEngine)
	}
	c := r.circuits[name]
	now := r.now()
	if resetAt, open := c.openUntil(now); open {
		retry := int(resetAt.Sub(now).Seconds())
		if retry < 1 {
			retry = 1
		}
		return nil, NewRateLimitError(name, errors.New("circuit open"), retry)
	}

	if r.attemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.attemptTimeout)
		defer cancel()
	}
	out, err := engine.Parse(ctx, input)
	if err != nil {
		var rlErr *RateLimitError
		if errors.As(err, &rlErr) {
			wait := rlErr.RetryAfter
			if wait <= 0 {
				wait = r.cooldown
			}
			c.open(now.Add(wait))
		}
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("parser engine %q returned no output", name)
	}
	return out, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
