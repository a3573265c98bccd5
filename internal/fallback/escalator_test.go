package fallback_test

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stmtrules/internal/condition"
	"stmtrules/internal/domain"
	"stmtrules/internal/fallback"
)

type staticFlags map[string]bool

func (f staticFlags) FlagEnabled(name string, _ *condition.Context) bool {
	return f[name]
}

func newEscalator(t *testing.T, cfg fallback.Config, flags condition.FlagResolver) *fallback.Escalator {
	t.Helper()
	e, err := fallback.New(cfg, flags, fallback.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	return e
}

func catchAll(name string, priority int) fallback.Strategy {
	return fallback.Strategy{Name: name, Priority: priority, Enabled: true}
}

func ladder(strategies ...fallback.Strategy) fallback.Config {
	return fallback.Config{
		Enabled:             true,
		Strategies:          strategies,
		AutoSwitchThreshold: 0.7,
		MaxAttempts:         3,
		RetryDelayMs:        0,
	}
}

func TestSelect_DefaultLadderFollowsMLFlag(t *testing.T) {
	ctx := &condition.Context{Format: "pdf", BankID: "kazkomertsbank"}

	s, ok := newEscalator(t, fallback.DefaultConfig(), staticFlags{"ml-classification": true}).Select(ctx)
	require.True(t, ok)
	assert.Equal(t, "ml-first", s.Name)
	assert.Equal(t, "ml-enhanced", s.Actions.Parsing)

	s, ok = newEscalator(t, fallback.DefaultConfig(), staticFlags{}).Select(ctx)
	require.True(t, ok)
	assert.Equal(t, "regex-based", s.Name)
}

func TestSelect_NilContextOnlyMatchesCatchAll(t *testing.T) {
	e := newEscalator(t, fallback.DefaultConfig(), staticFlags{"ml-classification": true})

	s, ok := e.Select(nil)
	require.True(t, ok)
	assert.Equal(t, "basic-heuristic", s.Name)
}

func TestSelect_CustomPropertyOverridesFeatureResolution(t *testing.T) {
	e := newEscalator(t, fallback.DefaultConfig(), staticFlags{})

	s, ok := e.Select(&condition.Context{Format: "excel", CustomProperties: map[string]any{"ml-classification": true}})
	require.True(t, ok)
	assert.Equal(t, "ml-first", s.Name)
}

func TestSelect_PriorityOrdering(t *testing.T) {
	e := newEscalator(t, ladder(catchAll("third", 3), catchAll("first", 1), catchAll("second", 2)), nil)

	s, ok := e.Select(&condition.Context{})
	require.True(t, ok)
	assert.Equal(t, "first", s.Name)

	disabled := false
	_, err := e.UpdateStrategy("first", fallback.StrategyUpdate{Enabled: &disabled})
	require.NoError(t, err)

	s, ok = e.Select(&condition.Context{})
	require.True(t, ok)
	assert.Equal(t, "second", s.Name)
}

func TestSelect_EqualPriorityKeepsConfigurationOrder(t *testing.T) {
	e := newEscalator(t, ladder(catchAll("a", 1), catchAll("b", 1)), nil)

	for i := 0; i < 20; i++ {
		s, ok := e.Select(nil)
		require.True(t, ok)
		assert.Equal(t, "a", s.Name)
	}
}

func TestSelect_DisabledFallback(t *testing.T) {
	cfg := fallback.DefaultConfig()
	cfg.Enabled = false
	e := newEscalator(t, cfg, nil)

	_, ok := e.Select(&condition.Context{})
	assert.False(t, ok)
	assert.False(t, e.ShouldEscalate(0.1, "ml-first"))
}

func TestEscalation_Terminates(t *testing.T) {
	e := newEscalator(t, fallback.DefaultConfig(), staticFlags{"ml-classification": true})
	ctx := &condition.Context{Format: "pdf"}

	s, ok := e.Select(ctx)
	require.True(t, ok)
	visited := []string{s.Name}
	for i := 0; i < 10 && e.ShouldEscalate(0.1, s.Name); i++ {
		s, ok = e.Next(s.Name, ctx)
		require.True(t, ok)
		visited = append(visited, s.Name)
	}

	assert.Equal(t, []string{"ml-first", "basic-heuristic"}, visited)
	assert.True(t, e.IsTerminal(s.Name))
	for _, q := range []float64{0, 0.3, 0.69, 0.99} {
		assert.False(t, e.ShouldEscalate(q, s.Name))
	}
	_, ok = e.Next(s.Name, ctx)
	assert.False(t, ok)
}

func TestShouldEscalate_Threshold(t *testing.T) {
	e := newEscalator(t, fallback.DefaultConfig(), nil)

	assert.True(t, e.ShouldEscalate(0.69, "ml-first"))
	assert.False(t, e.ShouldEscalate(0.7, "ml-first"))
	assert.False(t, e.ShouldEscalate(0.95, "regex-based"))
	assert.True(t, e.ShouldEscalate(0.2, "unknown"))
}

func TestNext_ToleratesPriorityGaps(t *testing.T) {
	last := catchAll("last", 9)
	last.IsTerminal = true
	e := newEscalator(t, ladder(catchAll("top", 1), catchAll("middle", 5), last), nil)

	s, ok := e.Next("top", nil)
	require.True(t, ok)
	assert.Equal(t, "middle", s.Name)

	s, ok = e.Next("middle", nil)
	require.True(t, ok)
	assert.Equal(t, "last", s.Name)
}

func TestNext_SkipsNonMatching(t *testing.T) {
	guarded := fallback.Strategy{
		Name:       "bank-only",
		Priority:   2,
		Enabled:    true,
		Conditions: []condition.Condition{{Type: condition.TypeBank, Operator: condition.OpEquals, Field: "bankId", Value: "halykbank"}},
	}
	e := newEscalator(t, ladder(catchAll("top", 1), guarded, catchAll("bottom", 3)), nil)

	s, ok := e.Next("top", &condition.Context{BankID: "kaspibank"})
	require.True(t, ok)
	assert.Equal(t, "bottom", s.Name)

	s, ok = e.Next("top", &condition.Context{BankID: "halykbank"})
	require.True(t, ok)
	assert.Equal(t, "bank-only", s.Name)
}

func TestNext_UnknownCurrentFallsBackToSelect(t *testing.T) {
	e := newEscalator(t, fallback.DefaultConfig(), staticFlags{})

	s, ok := e.Next("does-not-exist", &condition.Context{Format: "pdf"})
	require.True(t, ok)
	assert.Equal(t, "regex-based", s.Name)
}

func TestUpdateStrategy_RejectsLosingCatchAll(t *testing.T) {
	e := newEscalator(t, fallback.DefaultConfig(), nil)

	disabled := false
	_, err := e.UpdateStrategy("basic-heuristic", fallback.StrategyUpdate{Enabled: &disabled})
	assert.ErrorIs(t, err, domain.ErrNoCatchAllStrategy)

	s, ok := e.Strategy("basic-heuristic")
	require.True(t, ok)
	assert.True(t, s.Enabled)
}

func TestUpdateStrategy_UnknownName(t *testing.T) {
	e := newEscalator(t, fallback.DefaultConfig(), nil)

	_, err := e.UpdateStrategy("nope", fallback.StrategyUpdate{})
	assert.ErrorIs(t, err, domain.ErrStrategyNotFound)
}

func TestUpdateStrategy_MergesFields(t *testing.T) {
	e := newEscalator(t, fallback.DefaultConfig(), nil)

	priority := 7
	updated, err := e.UpdateStrategy("regex-based", fallback.StrategyUpdate{
		Priority: &priority,
		Actions:  &fallback.Actions{Parsing: "regex-v2", Extraction: "pattern-matching", Validation: "strict"},
	})
	require.NoError(t, err)
	assert.Equal(t, 7, updated.Priority)
	assert.Equal(t, "regex-v2", updated.Actions.Parsing)
	assert.Len(t, updated.Conditions, 1)

	names := []string{}
	for _, s := range e.Strategies() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"ml-first", "basic-heuristic", "regex-based"}, names)
}

func TestSetConfig_Validation(t *testing.T) {
	e := newEscalator(t, fallback.DefaultConfig(), nil)

	guardedOnly := ladder(fallback.Strategy{
		Name:       "guarded",
		Priority:   1,
		Enabled:    true,
		Conditions: []condition.Condition{{Type: condition.TypeFormat, Operator: condition.OpEquals, Value: "pdf"}},
	})
	assert.ErrorIs(t, e.SetConfig(guardedOnly), domain.ErrNoCatchAllStrategy)

	dup := ladder(catchAll("a", 1), catchAll("a", 2))
	assert.ErrorIs(t, e.SetConfig(dup), domain.ErrInvalidStrategy)

	badThreshold := ladder(catchAll("a", 1))
	badThreshold.AutoSwitchThreshold = 1.5
	assert.ErrorIs(t, e.SetConfig(badThreshold), domain.ErrInvalidStrategy)

	badOp := ladder(catchAll("a", 1), fallback.Strategy{
		Name:       "b",
		Priority:   2,
		Enabled:    true,
		Conditions: []condition.Condition{{Type: condition.TypeFormat, Operator: "matches", Value: "pdf"}},
	})
	assert.ErrorIs(t, e.SetConfig(badOp), domain.ErrInvalidStrategy)

	assert.Len(t, e.Strategies(), 3)
}

func TestUpdateSettingsAndReset(t *testing.T) {
	e := newEscalator(t, fallback.DefaultConfig(), nil)

	threshold := 0.5
	attempts := 5
	cfg, err := e.UpdateSettings(fallback.SettingsUpdate{AutoSwitchThreshold: &threshold, MaxAttempts: &attempts})
	require.NoError(t, err)
	assert.Equal(t, 0.5, cfg.AutoSwitchThreshold)
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.False(t, e.ShouldEscalate(0.6, "ml-first"))

	zero := 0
	_, err = e.UpdateSettings(fallback.SettingsUpdate{MaxAttempts: &zero})
	assert.ErrorIs(t, err, domain.ErrInvalidStrategy)

	e.Reset()
	assert.Equal(t, fallback.DefaultConfig().AutoSwitchThreshold, e.Config().AutoSwitchThreshold)
	assert.Equal(t, 3, e.Config().MaxAttempts)
}

func TestConfig_RetryDelay(t *testing.T) {
	assert.Equal(t, "1s", fallback.DefaultConfig().RetryDelay().String())
}
