package featureflag_test

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stmtrules/internal/condition"
	"stmtrules/internal/domain"
	"stmtrules/internal/fallback"
	"stmtrules/internal/featureflag"
	"stmtrules/internal/profile"
)

func newEngine(t *testing.T, opts ...featureflag.Option) *featureflag.Engine {
	t.Helper()
	opts = append([]featureflag.Option{featureflag.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	e, err := featureflag.New(opts...)
	require.NoError(t, err)
	return e
}

func pct(n int) *int { return &n }

func TestIsEnabled_UnknownFlag(t *testing.T) {
	e := newEngine(t)

	res := e.IsEnabled("no-such-flag", &condition.Context{})
	assert.False(t, res.Enabled)
	assert.Equal(t, featureflag.SourceDefault, res.Source)
	assert.Equal(t, "Feature flag not found", res.Reason)
}

func TestIsEnabled_GloballyDisabled(t *testing.T) {
	e := newEngine(t)
	_, err := e.Disable("checksum-validation")
	require.NoError(t, err)

	res := e.IsEnabled("checksum-validation", &condition.Context{UserID: "u1"})
	assert.False(t, res.Enabled)
	assert.Equal(t, featureflag.SourceGlobal, res.Source)
}

func TestIsEnabled_RolloutWithoutUser(t *testing.T) {
	e := newEngine(t)

	res := e.IsEnabled("ml-classification", &condition.Context{BankID: "kaspibank"})
	assert.False(t, res.Enabled)
	assert.Equal(t, featureflag.SourceDefault, res.Source)

	res = e.IsEnabled("advanced-metadata-extraction", nil)
	assert.True(t, res.Enabled)
}

func TestIsEnabled_RolloutIsDeterministic(t *testing.T) {
	e := newEngine(t)
	ctx := &condition.Context{UserID: "u1"}

	first := e.IsEnabled("ml-classification", ctx)
	for i := 0; i < 1000; i++ {
		assert.Equal(t, first.Enabled, e.IsEnabled("ml-classification", ctx).Enabled)
	}
	assert.Equal(t, first.Enabled, featureflag.Bucket("u1", "ml-classification") < 80)
}

func TestIsEnabled_RolloutDistribution(t *testing.T) {
	e := newEngine(t)
	_, err := e.Set("test-rollout", featureflag.Flag{Enabled: true, RolloutPercentage: pct(30)})
	require.NoError(t, err)

	included := 0
	for i := 0; i < 10000; i++ {
		if e.IsEnabled("test-rollout", &condition.Context{UserID: fmt.Sprintf("user-%d", i)}).Enabled {
			included++
		}
	}
	assert.InDelta(t, 30.0, float64(included)/100, 3.0)
}

func TestIsEnabled_ZeroRolloutExcludesEveryone(t *testing.T) {
	e := newEngine(t)
	_, err := e.Set("dark-launch", featureflag.Flag{Enabled: true, RolloutPercentage: pct(0)})
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		assert.False(t, e.IsEnabled("dark-launch", &condition.Context{UserID: fmt.Sprintf("u%d", i)}).Enabled)
	}
}

func TestBucket_DependsOnFlagName(t *testing.T) {
	differs := false
	for i := 0; i < 50 && !differs; i++ {
		user := fmt.Sprintf("user-%d", i)
		differs = featureflag.Bucket(user, "a") != featureflag.Bucket(user, "b")
	}
	assert.True(t, differs)
	assert.Equal(t, featureflag.Bucket("u1", "x"), featureflag.Bucket("u1", "x"))
}

func TestIsEnabled_ConditionANDSemantics(t *testing.T) {
	e := newEngine(t)

	res := e.IsEnabled("ai-extraction", &condition.Context{BankID: "halykbank", Environment: "staging"})
	assert.False(t, res.Enabled)
	assert.Equal(t, featureflag.SourceCondition, res.Source)
	assert.Equal(t, "condition failed: environment equals environment", res.Reason)

	res = e.IsEnabled("ai-extraction", &condition.Context{BankID: "halykbank", Environment: "production"})
	assert.True(t, res.Enabled)
	assert.Equal(t, featureflag.SourceCondition, res.Source)
}

func TestIsEnabled_ConditionsWithoutContextFailClosed(t *testing.T) {
	e := newEngine(t)

	res := e.IsEnabled("multi-currency-support", nil)
	assert.False(t, res.Enabled)
	assert.Equal(t, "no context provided for condition evaluation", res.Reason)
}

func TestIsEnabled_DefaultEnvironment(t *testing.T) {
	e := newEngine(t, featureflag.WithEnvironment("production"))

	assert.True(t, e.IsEnabled("ai-extraction", &condition.Context{BankID: "kazkomertsbank"}).Enabled)
}

func TestGetValue(t *testing.T) {
	e := newEngine(t)
	ctx := &condition.Context{BankID: "kaspibank"}

	v := e.GetValue("checksum-validation", nil, ctx)
	require.IsType(t, map[string]any{}, v)
	assert.Equal(t, 0.02, v.(map[string]any)["tolerance"])

	assert.Equal(t, true, e.GetValue("multi-currency-support", false, &condition.Context{BankID: "halykbank"}))
	assert.Equal(t, "fallback", e.GetValue("multi-currency-support", "fallback", ctx))
	assert.Equal(t, 42, e.GetValue("missing", 42, ctx))
}

func TestBankSpecificFlags_OverrideWins(t *testing.T) {
	e := newEngine(t)
	_, err := e.Disable("ai-extraction")
	require.NoError(t, err)

	p := &domain.BankProfile{ID: "acme", Features: map[string]any{
		"ai-extraction":     true,
		"ml-classification": false,
		"fallback-mode":     "heuristic",
	}}
	flags := e.BankSpecificFlags(p, &condition.Context{UserID: "u1"})

	assert.True(t, flags["ai-extraction"].Enabled)
	assert.Equal(t, "Bank-specific configuration", flags["ai-extraction"].Reason)
	assert.False(t, flags["ml-classification"].Enabled)
	assert.True(t, flags["fallback-mode"].Enabled)
	assert.Equal(t, "heuristic", flags["fallback-mode"].Value)

	assert.False(t, flags["multi-currency-support"].Enabled)
	assert.True(t, flags["auto-fix-enabled"].Enabled)
}

func TestBankSpecificFlags_NullFeatureDisables(t *testing.T) {
	e := newEngine(t)
	p := &domain.BankProfile{ID: "acme", Features: map[string]any{"ml-classification": nil}}
	flags := e.BankSpecificFlags(p, nil)

	res := flags["ml-classification"]
	assert.False(t, res.Enabled)
	assert.Nil(t, res.Value)
	assert.Equal(t, "Bank-specific configuration", res.Reason)
}

func TestBankSpecificFlags_InjectsBank(t *testing.T) {
	e := newEngine(t)
	halyk, ok := profile.NewMemoryStore(profile.DefaultProfiles(time.Now())).Get("halykbank")
	require.True(t, ok)

	flags := e.BankSpecificFlags(halyk, nil)
	assert.True(t, flags["multi-currency-support"].Enabled)
	assert.True(t, flags["ml-classification"].Enabled)
}

func TestUpdate_RefreshesLastUpdated(t *testing.T) {
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	e := newEngine(t, featureflag.WithClock(func() time.Time { return clock }))

	clock = clock.Add(time.Hour)
	f, err := e.Update("column-detection-ml", featureflag.FlagUpdate{RolloutPercentage: pct(10)})
	require.NoError(t, err)
	assert.Equal(t, 10, *f.RolloutPercentage)
	assert.True(t, clock.Equal(f.LastUpdated))

	clock = clock.Add(time.Hour)
	f, err = e.Enable("column-detection-ml")
	require.NoError(t, err)
	assert.True(t, clock.Equal(f.LastUpdated))

	f, err = e.Update("column-detection-ml", featureflag.FlagUpdate{ClearRollout: true})
	require.NoError(t, err)
	assert.Nil(t, f.RolloutPercentage)

	_, err = e.Update("missing", featureflag.FlagUpdate{})
	assert.ErrorIs(t, err, domain.ErrFlagNotFound)
	_, err = e.Enable("missing")
	assert.ErrorIs(t, err, domain.ErrFlagNotFound)
}

func TestSet_RejectsInvalidFlag(t *testing.T) {
	e := newEngine(t)

	_, err := e.Set("bad", featureflag.Flag{Enabled: true, RolloutPercentage: pct(150)})
	assert.ErrorIs(t, err, domain.ErrInvalidFlag)

	_, err = e.Set("bad", featureflag.Flag{Enabled: true, Conditions: []condition.Condition{{Type: "planet", Operator: condition.OpEquals}}})
	assert.ErrorIs(t, err, domain.ErrInvalidFlag)

	_, ok := e.Flag("bad")
	assert.False(t, ok)
}

func TestEnvOverrides(t *testing.T) {
	e := newEngine(t, featureflag.WithOverrides(map[string]string{
		"ml-classification":   "false",
		"checksum-validation": "enabled",
		"duplicate-detection": "yes",
		"ai-extraction":       "1",
	}))

	f, _ := e.Flag("ml-classification")
	assert.False(t, f.Enabled)
	assert.Equal(t, 80, *f.RolloutPercentage)
	f, _ = e.Flag("checksum-validation")
	assert.True(t, f.Enabled)
	f, _ = e.Flag("duplicate-detection")
	assert.False(t, f.Enabled)
	f, _ = e.Flag("ai-extraction")
	assert.True(t, f.Enabled)
	f, _ = e.Flag("auto-fix-enabled")
	assert.True(t, f.Enabled)
}

func TestParseOverride(t *testing.T) {
	for raw, want := range map[string]bool{"true": true, "1": true, "enabled": true, "TRUE": false, "0": false, "": false} {
		assert.Equal(t, want, featureflag.ParseOverride(raw), raw)
	}
}

func sampleContexts() []*condition.Context {
	return []*condition.Context{
		nil,
		{UserID: "u1"},
		{UserID: "u2", BankID: "kazkomertsbank", Format: "pdf", Environment: "production"},
		{UserID: "u3", BankID: "halykbank", Format: "excel"},
		{BankID: "berekebank", Format: "pdf"},
	}
}

func TestExportImport_RoundTrip(t *testing.T) {
	src := newEngine(t)
	_, err := src.Set("ml-classification", featureflag.Flag{Enabled: true, RolloutPercentage: pct(45)})
	require.NoError(t, err)
	_, err = src.Fallback().UpdateStrategy("regex-based", fallback.StrategyUpdate{Actions: &fallback.Actions{Parsing: "regex-v2"}})
	require.NoError(t, err)

	raw, err := json.Marshal(src.Export())
	require.NoError(t, err)
	var doc featureflag.Configuration
	require.NoError(t, json.Unmarshal(raw, &doc))

	dst := newEngine(t)
	require.NoError(t, dst.Import(doc))

	for _, ctx := range sampleContexts() {
		for name := range src.Flags() {
			assert.Equal(t, src.IsEnabled(name, ctx).Enabled, dst.IsEnabled(name, ctx).Enabled, name)
		}
		want, wantOK := src.Fallback().Select(ctx)
		got, gotOK := dst.Fallback().Select(ctx)
		assert.Equal(t, wantOK, gotOK)
		assert.Equal(t, want.Name, got.Name)
		assert.Equal(t, want.Actions, got.Actions)
	}
}

func TestImport_RejectsInvalidDocumentAtomically(t *testing.T) {
	e := newEngine(t)
	cfg := e.Export()
	cfg.Flags["brand-new"] = featureflag.Flag{Enabled: true}
	cfg.Fallback.Strategies = cfg.Fallback.Strategies[:1]

	err := e.Import(cfg)
	assert.ErrorIs(t, err, domain.ErrNoCatchAllStrategy)
	_, ok := e.Flag("brand-new")
	assert.False(t, ok)
	assert.Len(t, e.Fallback().Strategies(), 3)
}

func TestImport_FlagsOnlyKeepsFallbackLadder(t *testing.T) {
	e := newEngine(t)
	disabled := false
	_, err := e.Fallback().UpdateStrategy("ml-first", fallback.StrategyUpdate{Enabled: &disabled})
	require.NoError(t, err)

	var cfg featureflag.Configuration
	require.NoError(t, json.Unmarshal([]byte(`{"featureFlags":{"brand-new":{"enabled":true}}}`), &cfg))
	require.NoError(t, e.Import(cfg))

	f, ok := e.Flag("brand-new")
	require.True(t, ok)
	assert.True(t, f.Enabled)
	assert.False(t, f.LastUpdated.IsZero())

	s, ok := e.Fallback().Strategy("ml-first")
	require.True(t, ok)
	assert.False(t, s.Enabled)
	assert.Len(t, e.Fallback().Strategies(), 3)
}

func TestResetToDefaults(t *testing.T) {
	e := newEngine(t, featureflag.WithOverrides(map[string]string{"auto-fix-enabled": "false"}))
	_, err := e.Set("custom", featureflag.Flag{Enabled: true})
	require.NoError(t, err)
	_, err = e.Disable("quality-monitoring")
	require.NoError(t, err)
	disabled := false
	_, err = e.Fallback().UpdateStrategy("ml-first", fallback.StrategyUpdate{Enabled: &disabled})
	require.NoError(t, err)
	e.IsEnabled("quality-monitoring", nil)

	e.ResetToDefaults()

	_, ok := e.Flag("custom")
	assert.False(t, ok)
	f, _ := e.Flag("quality-monitoring")
	assert.True(t, f.Enabled)
	f, _ = e.Flag("auto-fix-enabled")
	assert.False(t, f.Enabled)
	s, _ := e.Fallback().Strategy("ml-first")
	assert.True(t, s.Enabled)
	assert.Zero(t, e.Stats()["quality-monitoring"].UsageCount)
}

func TestStatsAndEnabledFeatures(t *testing.T) {
	e := newEngine(t)
	ctx := &condition.Context{BankID: "kazkomertsbank", Format: "pdf"}

	features := e.EnabledFeatures(ctx)
	assert.Contains(t, features, "pdf-ocr-processing")
	assert.Contains(t, features, "ml-transaction-classification")
	assert.NotContains(t, features, "multi-currency-support")
	assert.NotContains(t, features, "ml-classification")
	assert.IsIncreasing(t, features)

	e.IsEnabled("pdf-ocr-processing", ctx)
	e.IsEnabled("no-such-flag", ctx)
	stats := e.Stats()
	assert.EqualValues(t, 2, stats["pdf-ocr-processing"].UsageCount)
	assert.NotNil(t, stats["pdf-ocr-processing"].LastUsed)
	_, tracked := stats["no-such-flag"]
	assert.False(t, tracked)
}

func TestExampleScenario(t *testing.T) {
	store := profile.NewStore(t.TempDir()+"/absent", profile.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	p, ok := store.FindByFilename("kaspi_statement_2024.pdf")
	require.True(t, ok)
	assert.Equal(t, "kaspibank", p.ID)

	e := newEngine(t)
	first := e.IsEnabled("ml-classification", &condition.Context{UserID: "u1"})
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, e.IsEnabled("ml-classification", &condition.Context{UserID: "u1"}))
	}

	ctx := &condition.Context{Format: "pdf", BankID: "kazkomertsbank"}
	s, ok := e.Fallback().Select(ctx)
	require.True(t, ok)
	assert.Equal(t, "regex-based", s.Name)

	_, err := e.Update("ml-classification", featureflag.FlagUpdate{RolloutPercentage: pct(100)})
	require.NoError(t, err)
	s, ok = e.Fallback().Select(ctx)
	require.True(t, ok)
	assert.Equal(t, "ml-first", s.Name)
}

func TestWithFallbackConfig_InvalidLadder(t *testing.T) {
	cfg := fallback.DefaultConfig()
	cfg.Strategies = cfg.Strategies[:2]

	_, err := featureflag.New(
		featureflag.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		featureflag.WithFallbackConfig(cfg),
	)
	assert.ErrorIs(t, err, domain.ErrNoCatchAllStrategy)
}
