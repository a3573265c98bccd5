package featureflag

import (
	"strings"
	"time"

	"stmtrules/internal/condition"
)

func pct(n int) *int { return &n }

// DefaultFlags is the built-in flag table.
func DefaultFlags(now time.Time) map[string]Flag {
	flags := map[string]Flag{
		"ml-classification": {
			Enabled:           true,
			RolloutPercentage: pct(80),
		},
		"ai-extraction": {
			Enabled: true,
			Conditions: []condition.Condition{
				{Type: condition.TypeBank, Operator: condition.OpIn, Field: "bankId", Value: []string{"kazkomertsbank", "halykbank"}},
				{Type: condition.TypeEnvironment, Operator: condition.OpEquals, Field: "environment", Value: "production"},
			},
		},
		"advanced-metadata-extraction": {
			Enabled:           true,
			RolloutPercentage: pct(100),
		},
		"auto-fix-enabled": {
			Enabled: true,
			Value:   true,
			Conditions: []condition.Condition{
				{Type: condition.TypeBank, Operator: condition.OpNotIn, Field: "bankId", Value: []string{"unknown"}},
			},
		},
		"checksum-validation": {
			Enabled: true,
			Value: map[string]any{
				"enabled":   true,
				"tolerance": 0.02,
				"autoFix":   true,
			},
		},
		"duplicate-detection": {
			Enabled: true,
			Value: map[string]any{
				"enabled":    true,
				"tolerance":  0.95,
				"strictMode": false,
			},
		},
		"ml-transaction-classification": {
			Enabled: true,
			Conditions: []condition.Condition{
				{Type: condition.TypeFormat, Operator: condition.OpIn, Field: "format", Value: []string{"pdf", "scanned"}},
				{Type: condition.TypeBank, Operator: condition.OpIn, Field: "bankId", Value: []string{"kazkomertsbank"}},
			},
		},
		"enhanced-date-parsing": {
			Enabled:           true,
			RolloutPercentage: pct(100),
			Value: map[string]any{
				"enabled":   true,
				"languages": []string{"ru", "kk", "en"},
				"formats":   []string{"auto", "dd.mm.yyyy", "mm/dd/yyyy", "yyyy-mm-dd"},
			},
		},
		"multi-currency-support": {
			Enabled: true,
			Conditions: []condition.Condition{
				{Type: condition.TypeBank, Operator: condition.OpIn, Field: "bankId", Value: []string{"halykbank"}},
			},
		},
		"pdf-ocr-processing": {
			Enabled: true,
			Conditions: []condition.Condition{
				{Type: condition.TypeFormat, Operator: condition.OpEquals, Field: "format", Value: "pdf"},
				{Type: condition.TypeBank, Operator: condition.OpIn, Field: "bankId", Value: []string{"kazkomertsbank", "berekebank"}},
			},
			Value: map[string]any{
				"enabled":       true,
				"language":      "auto",
				"preprocessing": true,
				"confidence":    0.8,
			},
		},
		"column-detection-ml": {
			Enabled:           true,
			RolloutPercentage: pct(60),
		},
		"quality-monitoring": {
			Enabled: true,
			Value: map[string]any{
				"enabled":  true,
				"metrics":  []string{"accuracy", "completeness", "consistency"},
				"alerting": true,
				"thresholds": map[string]any{
					"accuracy":     0.95,
					"completeness": 0.98,
					"consistency":  0.9,
				},
			},
		},
	}
	for name, f := range flags {
		f.LastUpdated = now
		flags[name] = f
	}
	return flags
}

// ParseOverride interprets an environment override: "true", "1" and
// "enabled" switch a flag on, anything else switches it off.
func ParseOverride(raw string) bool {
	switch strings.TrimSpace(raw) {
	case "true", "1", "enabled":
		return true
	}
	return false
}

// applyOverrides sets the global switch of each named flag. Flags missing
// from the table are created with only the switch set.
func applyOverrides(flags map[string]Flag, overrides map[string]string, now time.Time) {
	for name, raw := range overrides {
		f := flags[name]
		f.Enabled = ParseOverride(raw)
		f.LastUpdated = now
		flags[name] = f
	}
}
