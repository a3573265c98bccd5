package router_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stmtrules/internal/featureflag"
	"stmtrules/internal/handler"
	"stmtrules/internal/profile"
	"stmtrules/internal/router"
	"stmtrules/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := profile.NewStore(t.TempDir()+"/missing", profile.WithLogger(logger))
	manager := service.NewProfileConfigService(store.List(), service.DefaultHotReloadConfig(), logger)
	engine, err := featureflag.New(featureflag.WithLogger(logger))
	require.NoError(t, err)

	profiles := service.NewProfileService(store, manager, nil, logger)
	flags := service.NewFlagService(engine, nil, logger)
	plans := service.NewPlanService(store, engine, logger)

	return router.Setup(router.Handlers{
		Profile:  handler.NewProfileHandler(profiles),
		Config:   handler.NewConfigHandler(manager),
		Flag:     handler.NewFlagHandler(flags),
		Fallback: handler.NewFallbackHandler(flags),
		Plan:     handler.NewPlanHandler(plans, nil),
		Health:   handler.NewHealthHandler(nil, manager),
	}, []string{"http://localhost:3000"}, logger)
}

func do(t *testing.T, r *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func TestRouter_HealthProbes(t *testing.T) {
	r := newTestRouter(t)

	w, _ := do(t, r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = do(t, r, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRouter_ListDefaultProfiles(t *testing.T) {
	r := newTestRouter(t)

	w, env := do(t, r, http.MethodGet, "/api/v1/profiles", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var profiles []struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &profiles))
	ids := make([]string, 0, len(profiles))
	for _, p := range profiles {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"kazkomertsbank", "halykbank", "kaspibank", "berekebank"}, ids)
}

func TestRouter_IdentifyByFilename(t *testing.T) {
	r := newTestRouter(t)

	w, env := do(t, r, http.MethodPost, "/api/v1/profiles/identify", handler.IdentifyRequest{Filename: "kkb_2024_03.pdf"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"kazkomertsbank"`)
	assert.Contains(t, string(env.Data), `"filename"`)
}

func TestRouter_UnknownFlag(t *testing.T) {
	r := newTestRouter(t)

	w, env := do(t, r, http.MethodGet, "/api/v1/flags/no-such-flag", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "FLAG_NOT_FOUND", env.Code)
}

func TestRouter_DisableAndEvaluateFlag(t *testing.T) {
	r := newTestRouter(t)

	w, _ := do(t, r, http.MethodPost, "/api/v1/flags/quality-monitoring/disable", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, env := do(t, r, http.MethodPost, "/api/v1/flags/quality-monitoring/evaluate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var res featureflag.Result
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.False(t, res.Enabled)
	assert.Equal(t, featureflag.SourceGlobal, res.Source)
}

func TestRouter_EnabledFeaturesForContext(t *testing.T) {
	r := newTestRouter(t)

	w, env := do(t, r, http.MethodPost, "/api/v1/flags/evaluate", map[string]any{
		"bankId": "kazkomertsbank",
		"format": "pdf",
	})
	require.Equal(t, http.StatusOK, w.Code)
	var names []string
	require.NoError(t, json.Unmarshal(env.Data, &names))
	assert.Contains(t, names, "pdf-ocr-processing")
	assert.Contains(t, names, "quality-monitoring")
}

func TestRouter_SnapshotsRequirePersistence(t *testing.T) {
	r := newTestRouter(t)

	w, env := do(t, r, http.MethodPost, "/api/v1/flags/snapshots", nil)
	assert.Equal(t, http.StatusNotImplemented, w.Code)
	assert.Equal(t, "PERSISTENCE_DISABLED", env.Code)
}

func TestRouter_CatchAllStrategyIsProtected(t *testing.T) {
	r := newTestRouter(t)

	w, env := do(t, r, http.MethodPatch, "/api/v1/fallback/strategies/basic-heuristic", map[string]any{"enabled": false})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "NO_CATCH_ALL_STRATEGY", env.Code)

	w, env = do(t, r, http.MethodPatch, "/api/v1/fallback/strategies/missing", map[string]any{"enabled": false})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "STRATEGY_NOT_FOUND", env.Code)
}

func TestRouter_NextStrategy(t *testing.T) {
	r := newTestRouter(t)

	ctx := map[string]any{
		"format":           "pdf",
		"customProperties": map[string]any{"ml-classification": false},
	}

	w, env := do(t, r, http.MethodPost, "/api/v1/fallback/next", map[string]any{
		"current": "ml-first",
		"quality": 0.3,
		"context": ctx,
	})
	require.Equal(t, http.StatusOK, w.Code)
	var decision handler.StrategyDecision
	require.NoError(t, json.Unmarshal(env.Data, &decision))
	assert.True(t, decision.Escalate)
	require.NotNil(t, decision.Strategy)
	assert.Equal(t, "regex-based", decision.Strategy.Name)

	w, env = do(t, r, http.MethodPost, "/api/v1/fallback/next", map[string]any{
		"current": "ml-first",
		"quality": 0.9,
		"context": ctx,
	})
	require.Equal(t, http.StatusOK, w.Code)
	decision = handler.StrategyDecision{}
	require.NoError(t, json.Unmarshal(env.Data, &decision))
	assert.False(t, decision.Escalate)
	assert.Nil(t, decision.Strategy)
}

func TestRouter_PlanForKnownBank(t *testing.T) {
	r := newTestRouter(t)

	w, env := do(t, r, http.MethodPost, "/api/v1/plans", service.DocumentContext{Filename: "kkb_2024_03.pdf"})
	require.Equal(t, http.StatusOK, w.Code)

	var plan service.Plan
	require.NoError(t, json.Unmarshal(env.Data, &plan))
	require.NotNil(t, plan.Profile)
	assert.Equal(t, "kazkomertsbank", plan.Profile.ID)
	require.NotNil(t, plan.Strategy)
	assert.Equal(t, "ml-first", plan.Strategy.Name)
	assert.Equal(t, 3, plan.MaxAttempts)
}

func TestRouter_ActiveProfile(t *testing.T) {
	r := newTestRouter(t)

	w, _ := do(t, r, http.MethodPut, "/api/v1/config/active", handler.SetActiveRequest{ProfileID: "kaspibank"})
	require.Equal(t, http.StatusOK, w.Code)

	w, env := do(t, r, http.MethodGet, "/api/v1/config/active", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var active handler.ActiveProfileResponse
	require.NoError(t, json.Unmarshal(env.Data, &active))
	assert.True(t, active.Set)
	assert.Equal(t, "kaspibank", active.ProfileID)

	w, env = do(t, r, http.MethodPut, "/api/v1/config/active", handler.SetActiveRequest{ProfileID: "nope"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "PROFILE_NOT_FOUND", env.Code)
}

func TestRouter_ParseWithoutEngines(t *testing.T) {
	r := newTestRouter(t)

	w, env := do(t, r, http.MethodPost, "/api/v1/statements/parse", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "NO_PARSER_ENGINE", env.Code)
}

func TestRouter_SwaggerDoc(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/plans/escalate")
}

func TestRouter_CORSPreflight(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/profiles", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}
