package service

import (
	"log/slog"
	"path/filepath"
	"strings"

	"stmtrules/internal/condition"
	"stmtrules/internal/domain"
	"stmtrules/internal/fallback"
	"stmtrules/internal/featureflag"
	"stmtrules/internal/profile"
)

// DocumentContext is what a caller knows about a statement before parsing.
type DocumentContext struct {
	Filename         string         `json:"filename"`
	Text             string         `json:"text"`
	BankID           string         `json:"bankId"`
	UserID           string         `json:"userId"`
	Locale           string         `json:"locale"`
	Format           string         `json:"format"`
	Environment      string         `json:"environment"`
	CustomProperties map[string]any `json:"customProperties"`
}

// Plan is the parsing decision for one document.
type Plan struct {
	Profile             *domain.BankProfile           `json:"profile,omitempty"`
	IdentifiedBy        domain.IdentificationMethod   `json:"identifiedBy,omitempty"`
	Context             condition.Context             `json:"context"`
	Features            map[string]featureflag.Result `json:"features"`
	Strategy            *fallback.Strategy            `json:"strategy,omitempty"`
	MaxAttempts         int                           `json:"maxAttempts"`
	RetryDelayMs        int                           `json:"retryDelay"`
	AutoSwitchThreshold float64                       `json:"autoSwitchThreshold"`
}

// EnabledFeatures returns the flag names the plan resolved as enabled.
func (p *Plan) EnabledFeatures() map[string]bool {
	out := make(map[string]bool, len(p.Features))
	for name, r := range p.Features {
		out[name] = r.Enabled
	}
	return out
}

// Escalation is the decision taken after a parse attempt.
type Escalation struct {
	Escalate bool               `json:"escalate"`
	Next     *fallback.Strategy `json:"next,omitempty"`
	Attempt  int                `json:"attempt"`
	Terminal bool               `json:"terminal"`
	Reason   string             `json:"reason"`
}

// PlanService turns a document context into a parsing plan and decides
// escalations after each attempt.
type PlanService interface {
	Plan(dc DocumentContext) *Plan
	Escalate(plan *Plan, current string, quality float64, attempt int) Escalation
}

type planService struct {
	store  *profile.Store
	engine *featureflag.Engine
	logger *slog.Logger
}

// NewPlanService creates a PlanService.
func NewPlanService(store *profile.Store, engine *featureflag.Engine, logger *slog.Logger) PlanService {
	if logger == nil {
		logger = slog.Default()
	}
	return &planService{
		store:  store,
		engine: engine,
		logger: logger.With("component", "service.PlanService"),
	}
}

func (s *planService) Plan(dc DocumentContext) *Plan {
	plan := &Plan{}

	if dc.BankID != "" {
		if p, ok := s.store.Get(dc.BankID); ok {
			plan.Profile, plan.IdentifiedBy = p, domain.IdentifiedByBankID
		}
	}
	if plan.Profile == nil {
		if p, method, ok := s.store.Identify(dc.Filename, dc.Text); ok {
			plan.Profile, plan.IdentifiedBy = p, method
		}
	}

	ctx := condition.Context{
		BankID:      dc.BankID,
		UserID:      dc.UserID,
		Locale:      dc.Locale,
		Format:      dc.Format,
		Environment: dc.Environment,
	}
	if plan.Profile != nil {
		ctx.BankID = plan.Profile.ID
		if ctx.Locale == "" {
			ctx.Locale = plan.Profile.Locale
		}
	}
	if ctx.Format == "" {
		ctx.Format = inferFormat(dc.Filename, plan.Profile)
	}

	if plan.Profile != nil {
		plan.Features = s.engine.BankSpecificFlags(plan.Profile, &ctx)
	} else {
		plan.Features = s.engine.Evaluate(&ctx)
	}

	// Strategy conditions see the resolved flags so bank overrides steer the
	// ladder. Caller-supplied properties take precedence.
	ctx.CustomProperties = make(map[string]any, len(plan.Features)+len(dc.CustomProperties))
	for name, r := range plan.Features {
		ctx.CustomProperties[name] = r.Enabled
	}
	for k, v := range dc.CustomProperties {
		ctx.CustomProperties[k] = v
	}
	plan.Context = ctx

	if st, ok := s.engine.Fallback().Select(&ctx); ok {
		plan.Strategy = &st
	}
	cfg := s.engine.Fallback().Config()
	plan.MaxAttempts = cfg.MaxAttempts
	plan.RetryDelayMs = cfg.RetryDelayMs
	plan.AutoSwitchThreshold = cfg.AutoSwitchThreshold

	s.logger.Debug("parsing plan built",
		"bank_id", ctx.BankID,
		"identified_by", plan.IdentifiedBy,
		"format", ctx.Format,
		"strategy", strategyName(plan.Strategy),
	)
	return plan
}

func (s *planService) Escalate(plan *Plan, current string, quality float64, attempt int) Escalation {
	esc := s.engine.Fallback()
	out := Escalation{Attempt: attempt, Terminal: esc.IsTerminal(current)}

	switch {
	case attempt >= plan.MaxAttempts:
		out.Reason = "maximum attempts reached"
	case !esc.ShouldEscalate(quality, current):
		if out.Terminal {
			out.Reason = "terminal strategy reached"
		} else {
			out.Reason = "quality acceptable"
		}
	default:
		ctx := plan.Context
		next, ok := esc.Next(current, &ctx)
		if !ok {
			out.Reason = "no further strategy matches"
			break
		}
		out.Escalate = true
		out.Next = &next
		out.Reason = "quality below threshold"
	}
	return out
}

func inferFormat(filename string, p *domain.BankProfile) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return string(domain.FormatPDF)
	case ".xlsx", ".xls":
		return string(domain.FormatExcel)
	case ".csv":
		return string(domain.FormatCSV)
	case ".html", ".htm":
		return string(domain.FormatHTML)
	}
	if p != nil && p.Parsing.Format != domain.FormatAuto {
		return string(p.Parsing.Format)
	}
	return ""
}

func strategyName(s *fallback.Strategy) string {
	if s == nil {
		return ""
	}
	return s.Name
}
