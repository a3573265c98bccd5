package handler

import (
	"github.com/gin-gonic/gin"

	"stmtrules/internal/fallback"
	"stmtrules/internal/service"
)

// FallbackHandler handles fallback ladder endpoints.
type FallbackHandler struct {
	flags service.FlagService
}

// NewFallbackHandler creates a new FallbackHandler.
func NewFallbackHandler(flags service.FlagService) *FallbackHandler {
	return &FallbackHandler{flags: flags}
}

// Config handles GET /api/v1/fallback
// @Summary Fallback configuration
// @Tags fallback
// @Produce json
// @Success 200 {object} Response{data=fallback.Config}
// @Router /fallback [get]
func (h *FallbackHandler) Config(c *gin.Context) {
	RespondOK(c, h.flags.FallbackConfig())
}

// Strategies handles GET /api/v1/fallback/strategies
// @Summary Strategies in priority order
// @Tags fallback
// @Produce json
// @Success 200 {object} Response{data=[]fallback.Strategy}
// @Router /fallback/strategies [get]
func (h *FallbackHandler) Strategies(c *gin.Context) {
	RespondOK(c, h.flags.Strategies())
}

// UpdateStrategy handles PATCH /api/v1/fallback/strategies/:name
// @Summary Update a strategy
// @Description Rejected when the ladder would be left without an enabled catch-all strategy.
// @Tags fallback
// @Accept json
// @Produce json
// @Param name path string true "Strategy name"
// @Param request body fallback.StrategyUpdate true "Partial strategy"
// @Success 200 {object} Response{data=fallback.Strategy}
// @Failure 400 {object} ErrorResponseBody
// @Failure 404 {object} ErrorResponseBody
// @Router /fallback/strategies/{name} [patch]
func (h *FallbackHandler) UpdateStrategy(c *gin.Context) {
	var u fallback.StrategyUpdate
	if !bindJSON(c, &u) {
		return
	}
	st, err := h.flags.UpdateStrategy(c.Param("name"), u)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, st)
}

// UpdateSettings handles PATCH /api/v1/fallback/settings
// @Summary Update fallback settings
// @Tags fallback
// @Accept json
// @Produce json
// @Param request body fallback.SettingsUpdate true "Partial settings"
// @Success 200 {object} Response{data=fallback.Config}
// @Failure 400 {object} ErrorResponseBody
// @Router /fallback/settings [patch]
func (h *FallbackHandler) UpdateSettings(c *gin.Context) {
	var u fallback.SettingsUpdate
	if !bindJSON(c, &u) {
		return
	}
	cfg, err := h.flags.UpdateFallbackSettings(u)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, cfg)
}

// Select handles POST /api/v1/fallback/select
// @Summary Select the initial strategy for a context
// @Tags fallback
// @Accept json
// @Produce json
// @Param request body condition.Context false "Evaluation context"
// @Success 200 {object} Response{data=StrategyDecision}
// @Router /fallback/select [post]
func (h *FallbackHandler) Select(c *gin.Context) {
	ctx, ok := bindContext(c)
	if !ok {
		return
	}
	st, _ := h.flags.SelectStrategy(ctx)
	RespondOK(c, StrategyDecision{Strategy: st})
}

// Next handles POST /api/v1/fallback/next
// @Summary Decide whether and where to escalate
// @Tags fallback
// @Accept json
// @Produce json
// @Param request body NextStrategyRequest true "Current strategy and quality"
// @Success 200 {object} Response{data=StrategyDecision}
// @Router /fallback/next [post]
func (h *FallbackHandler) Next(c *gin.Context) {
	var req NextStrategyRequest
	if !bindJSON(c, &req) {
		return
	}
	out := StrategyDecision{Escalate: h.flags.ShouldAutoSwitch(req.Quality, req.Current)}
	if out.Escalate {
		out.Strategy, _ = h.flags.NextStrategy(req.Current, req.Context)
	}
	RespondOK(c, out)
}
