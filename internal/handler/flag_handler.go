package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"stmtrules/internal/condition"
	"stmtrules/internal/featureflag"
	"stmtrules/internal/service"
)

// FlagHandler handles feature flag endpoints.
type FlagHandler struct {
	flags service.FlagService
}

// NewFlagHandler creates a new FlagHandler.
func NewFlagHandler(flags service.FlagService) *FlagHandler {
	return &FlagHandler{flags: flags}
}

// List handles GET /api/v1/flags
// @Summary List feature flags
// @Tags flags
// @Produce json
// @Success 200 {object} Response{data=map[string]featureflag.Flag}
// @Router /flags [get]
func (h *FlagHandler) List(c *gin.Context) {
	RespondOK(c, h.flags.List())
}

// Get handles GET /api/v1/flags/:name
// @Summary Get a feature flag
// @Tags flags
// @Produce json
// @Param name path string true "Flag name"
// @Success 200 {object} Response{data=featureflag.Flag}
// @Failure 404 {object} ErrorResponseBody
// @Router /flags/{name} [get]
func (h *FlagHandler) Get(c *gin.Context) {
	f, err := h.flags.Get(c.Param("name"))
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, f)
}

// Set handles PUT /api/v1/flags/:name
// @Summary Create or replace a feature flag
// @Tags flags
// @Accept json
// @Produce json
// @Param name path string true "Flag name"
// @Param request body featureflag.Flag true "Flag"
// @Success 200 {object} Response{data=featureflag.Flag}
// @Failure 400 {object} ErrorResponseBody
// @Router /flags/{name} [put]
func (h *FlagHandler) Set(c *gin.Context) {
	var f featureflag.Flag
	if !bindJSON(c, &f) {
		return
	}
	saved, err := h.flags.Set(c.Param("name"), f)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, saved)
}

// Update handles PATCH /api/v1/flags/:name
// @Summary Update a feature flag
// @Tags flags
// @Accept json
// @Produce json
// @Param name path string true "Flag name"
// @Param request body featureflag.FlagUpdate true "Partial flag"
// @Success 200 {object} Response{data=featureflag.Flag}
// @Failure 400 {object} ErrorResponseBody
// @Failure 404 {object} ErrorResponseBody
// @Router /flags/{name} [patch]
func (h *FlagHandler) Update(c *gin.Context) {
	var u featureflag.FlagUpdate
	if !bindJSON(c, &u) {
		return
	}
	f, err := h.flags.Update(c.Param("name"), u)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, f)
}

// Enable handles POST /api/v1/flags/:name/enable
// @Summary Enable a feature flag
// @Tags flags
// @Produce json
// @Param name path string true "Flag name"
// @Success 200 {object} Response{data=featureflag.Flag}
// @Failure 404 {object} ErrorResponseBody
// @Router /flags/{name}/enable [post]
func (h *FlagHandler) Enable(c *gin.Context) {
	f, err := h.flags.Enable(c.Param("name"))
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, f)
}

// Disable handles POST /api/v1/flags/:name/disable
// @Summary Disable a feature flag
// @Tags flags
// @Produce json
// @Param name path string true "Flag name"
// @Success 200 {object} Response{data=featureflag.Flag}
// @Failure 404 {object} ErrorResponseBody
// @Router /flags/{name}/disable [post]
func (h *FlagHandler) Disable(c *gin.Context) {
	f, err := h.flags.Disable(c.Param("name"))
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, f)
}

// Evaluate handles POST /api/v1/flags/:name/evaluate
// @Summary Evaluate one flag for a context
// @Description An unknown flag evaluates to disabled with source "default".
// @Tags flags
// @Accept json
// @Produce json
// @Param name path string true "Flag name"
// @Param request body condition.Context false "Evaluation context"
// @Success 200 {object} Response{data=featureflag.Result}
// @Router /flags/{name}/evaluate [post]
func (h *FlagHandler) Evaluate(c *gin.Context) {
	ctx, ok := bindContext(c)
	if !ok {
		return
	}
	RespondOK(c, h.flags.IsEnabled(c.Param("name"), ctx))
}

// Value handles POST /api/v1/flags/:name/value
// @Summary Resolve a flag's value for a context
// @Tags flags
// @Accept json
// @Produce json
// @Param name path string true "Flag name"
// @Param request body condition.Context false "Evaluation context"
// @Success 200 {object} Response{data=FlagValueResponse}
// @Router /flags/{name}/value [post]
func (h *FlagHandler) Value(c *gin.Context) {
	ctx, ok := bindContext(c)
	if !ok {
		return
	}
	RespondOK(c, FlagValueResponse{Name: c.Param("name"), Value: h.flags.GetValue(c.Param("name"), nil, ctx)})
}

// Enabled handles POST /api/v1/flags/evaluate
// @Summary List the flags enabled for a context
// @Tags flags
// @Accept json
// @Produce json
// @Param request body condition.Context false "Evaluation context"
// @Success 200 {object} Response{data=[]string}
// @Router /flags/evaluate [post]
func (h *FlagHandler) Enabled(c *gin.Context) {
	ctx, ok := bindContext(c)
	if !ok {
		return
	}
	features := h.flags.EnabledFeatures(ctx)
	if features == nil {
		features = []string{}
	}
	RespondOK(c, features)
}

// Stats handles GET /api/v1/flags/stats
// @Summary Flag usage statistics
// @Tags flags
// @Produce json
// @Success 200 {object} Response{data=map[string]featureflag.Usage}
// @Router /flags/stats [get]
func (h *FlagHandler) Stats(c *gin.Context) {
	RespondOK(c, h.flags.Stats())
}

// Export handles GET /api/v1/flags/export
// @Summary Export flags and fallback configuration
// @Tags flags
// @Produce json
// @Success 200 {object} Response{data=featureflag.Configuration}
// @Router /flags/export [get]
func (h *FlagHandler) Export(c *gin.Context) {
	RespondOK(c, h.flags.Export())
}

// Import handles POST /api/v1/flags/import
// @Summary Import flags and fallback configuration
// @Description The whole document is validated before anything is applied.
// @Tags flags
// @Accept json
// @Produce json
// @Param request body featureflag.Configuration true "Configuration"
// @Success 200 {object} Response{data=featureflag.Configuration}
// @Failure 400 {object} ErrorResponseBody
// @Router /flags/import [post]
func (h *FlagHandler) Import(c *gin.Context) {
	var cfg featureflag.Configuration
	if !bindJSON(c, &cfg) {
		return
	}
	if err := h.flags.Import(cfg); err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, h.flags.Export())
}

// Reset handles POST /api/v1/flags/reset
// @Summary Reset flags and fallback configuration to defaults
// @Tags flags
// @Produce json
// @Success 200 {object} Response{data=featureflag.Configuration}
// @Router /flags/reset [post]
func (h *FlagHandler) Reset(c *gin.Context) {
	h.flags.Reset()
	RespondOK(c, h.flags.Export())
}

// SaveSnapshot handles POST /api/v1/flags/snapshots
// @Summary Persist the current flag configuration
// @Tags flags
// @Produce json
// @Success 201 {object} Response{data=domain.ConfigSnapshot}
// @Failure 501 {object} ErrorResponseBody "Persistence disabled"
// @Router /flags/snapshots [post]
func (h *FlagHandler) SaveSnapshot(c *gin.Context) {
	snap, err := h.flags.SaveSnapshot(c.Request.Context())
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondCreated(c, snap)
}

// ListSnapshots handles GET /api/v1/flags/snapshots
// @Summary List persisted flag configurations
// @Tags flags
// @Produce json
// @Param limit query int false "Maximum rows (max 100)" default(20)
// @Success 200 {object} Response{data=[]domain.ConfigSnapshot}
// @Failure 501 {object} ErrorResponseBody "Persistence disabled"
// @Router /flags/snapshots [get]
func (h *FlagHandler) ListSnapshots(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	snaps, err := h.flags.ListSnapshots(c.Request.Context(), limit)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, snaps)
}

// RestoreSnapshot handles POST /api/v1/flags/snapshots/restore
// @Summary Restore the newest persisted flag configuration
// @Tags flags
// @Produce json
// @Success 200 {object} Response{data=domain.ConfigSnapshot}
// @Failure 404 {object} ErrorResponseBody
// @Failure 501 {object} ErrorResponseBody "Persistence disabled"
// @Router /flags/snapshots/restore [post]
func (h *FlagHandler) RestoreSnapshot(c *gin.Context) {
	snap, err := h.flags.RestoreLatest(c.Request.Context())
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, snap)
}

// bindContext reads an optional evaluation context. An empty body, with or
// without a Content-Length, means no context.
func bindContext(c *gin.Context) (*condition.Context, bool) {
	if c.Request.ContentLength == 0 {
		return nil, true
	}
	var ctx condition.Context
	if err := c.ShouldBindJSON(&ctx); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, true
		}
		RespondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return nil, false
	}
	return &ctx, true
}
