// Package condition evaluates the contextual predicates shared by feature
// flags and fallback strategies.
package condition

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
)

// Type names the context dimension a condition compares against.
type Type string

const (
	TypeBank        Type = "bank"
	TypeUser        Type = "user"
	TypeLocale      Type = "locale"
	TypeFormat      Type = "format"
	TypeEnvironment Type = "environment"
	TypeCustom      Type = "custom"
	TypeFeature     Type = "feature"
)

// Valid reports whether t is one of the known condition types.
func (t Type) Valid() bool {
	switch t {
	case TypeBank, TypeUser, TypeLocale, TypeFormat, TypeEnvironment, TypeCustom, TypeFeature:
		return true
	}
	return false
}

// Operator is the comparison applied between the context value and Condition.Value.
type Operator string

const (
	OpEquals     Operator = "equals"
	OpNotEquals  Operator = "notEquals"
	OpContains   Operator = "contains"
	OpStartsWith Operator = "startsWith"
	OpEndsWith   Operator = "endsWith"
	OpIn         Operator = "in"
	OpNotIn      Operator = "notIn"
)

// Valid reports whether o is one of the known operators.
func (o Operator) Valid() bool {
	switch o {
	case OpEquals, OpNotEquals, OpContains, OpStartsWith, OpEndsWith, OpIn, OpNotIn:
		return true
	}
	return false
}

// Condition is a single (type, operator, field, value) predicate.
// Value is a string, number, bool or list of strings.
type Condition struct {
	Type     Type     `json:"type"`
	Operator Operator `json:"operator"`
	Field    string   `json:"field"`
	Value    any      `json:"value"`
}

func (c Condition) String() string {
	return fmt.Sprintf("%s %s %s", c.Type, c.Operator, c.Field)
}

// Context is the request context a condition is evaluated against.
type Context struct {
	BankID           string         `json:"bankId,omitempty"`
	UserID           string         `json:"userId,omitempty"`
	Locale           string         `json:"locale,omitempty"`
	Format           string         `json:"format,omitempty"`
	Environment      string         `json:"environment,omitempty"`
	CustomProperties map[string]any `json:"customProperties,omitempty"`
}

// WithBank returns a copy of c scoped to bankID.
func (c Context) WithBank(bankID string) Context {
	out := c
	out.BankID = bankID
	return out
}

// FlagResolver resolves `feature` conditions whose field names a feature flag.
type FlagResolver interface {
	FlagEnabled(name string, ctx *Context) bool
}

// Outcome is the result of evaluating a condition list.
type Outcome struct {
	Passed bool
	Reason string
}

// Evaluator evaluates condition lists with AND semantics.
type Evaluator struct {
	// DefaultEnvironment is used when the context carries no environment.
	DefaultEnvironment string
	// Flags resolves `feature` conditions. Nil means feature conditions only
	// see CustomProperties.
	Flags  FlagResolver
	Logger *slog.Logger
}

// EvaluateAll checks every condition, short-circuiting on the first failure.
// An empty list always passes. A non-empty list with a nil context fails closed.
func (e *Evaluator) EvaluateAll(conds []Condition, ctx *Context) Outcome {
	if len(conds) == 0 {
		return Outcome{Passed: true, Reason: "no conditions to check"}
	}
	if ctx == nil {
		return Outcome{Passed: false, Reason: "no context provided for condition evaluation"}
	}
	for _, c := range conds {
		if !e.Evaluate(c, ctx) {
			return Outcome{Passed: false, Reason: "condition failed: " + c.String()}
		}
	}
	return Outcome{Passed: true, Reason: "all conditions satisfied"}
}

// Evaluate checks a single condition. Unknown types or operators fail closed.
func (e *Evaluator) Evaluate(c Condition, ctx *Context) bool {
	actual, ok := e.contextValue(c, ctx)
	if !ok {
		e.logger().Warn("unknown condition type", "type", string(c.Type), "field", c.Field)
		return false
	}

	switch c.Operator {
	case OpEquals:
		return valuesEqual(actual, c.Value)
	case OpNotEquals:
		return !valuesEqual(actual, c.Value)
	case OpContains:
		return strings.Contains(lowerString(actual), lowerString(c.Value))
	case OpStartsWith:
		return strings.HasPrefix(lowerString(actual), lowerString(c.Value))
	case OpEndsWith:
		return strings.HasSuffix(lowerString(actual), lowerString(c.Value))
	case OpIn:
		list, isList := asList(c.Value)
		return isList && listContains(list, actual)
	case OpNotIn:
		list, isList := asList(c.Value)
		return isList && !listContains(list, actual)
	default:
		e.logger().Warn("unknown condition operator", "operator", string(c.Operator), "field", c.Field)
		return false
	}
}

// contextValue returns the value a condition compares against. A nil value
// means the dimension is absent from the context.
func (e *Evaluator) contextValue(c Condition, ctx *Context) (any, bool) {
	switch c.Type {
	case TypeBank:
		return optional(ctx.BankID), true
	case TypeUser:
		return optional(ctx.UserID), true
	case TypeLocale:
		return optional(ctx.Locale), true
	case TypeFormat:
		return optional(ctx.Format), true
	case TypeEnvironment:
		if ctx.Environment != "" {
			return ctx.Environment, true
		}
		return optional(e.DefaultEnvironment), true
	case TypeCustom:
		return ctx.CustomProperties[c.Field], true
	case TypeFeature:
		if v, ok := ctx.CustomProperties[c.Field]; ok {
			return v, true
		}
		if e.Flags == nil {
			return nil, true
		}
		return e.Flags.FlagEnabled(c.Field, ctx), true
	default:
		return nil, false
	}
}

func (e *Evaluator) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default().With("component", "condition.Evaluator")
}

func optional(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && math.Abs(fa-fb) < 1e-9
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func lowerString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.ToLower(s)
	}
	return strings.ToLower(fmt.Sprint(v))
}

func asList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

func listContains(list []any, v any) bool {
	for _, item := range list {
		if valuesEqual(item, v) {
			return true
		}
	}
	return false
}
