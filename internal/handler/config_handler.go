package handler

import (
	"github.com/gin-gonic/gin"

	"stmtrules/internal/domain"
	"stmtrules/internal/service"
)

// ConfigHandler exposes the profile configuration manager.
type ConfigHandler struct {
	manager service.ProfileConfigService
}

// NewConfigHandler creates a new ConfigHandler.
func NewConfigHandler(manager service.ProfileConfigService) *ConfigHandler {
	return &ConfigHandler{manager: manager}
}

// Health handles GET /api/v1/config/health
// @Summary Configuration health
// @Tags config
// @Produce json
// @Success 200 {object} Response{data=domain.HealthReport}
// @Router /config/health [get]
func (h *ConfigHandler) Health(c *gin.Context) {
	RespondOK(c, h.manager.Health())
}

// Schema handles GET /api/v1/config/schema
// @Summary Bank profile schema
// @Description Field names and types of a bank profile, derived from the Go types.
// @Tags config
// @Produce json
// @Success 200 {object} Response{data=map[string]interface{}}
// @Router /config/schema [get]
func (h *ConfigHandler) Schema(c *gin.Context) {
	RespondOK(c, h.manager.Schema())
}

// Diagnostics handles GET /api/v1/config/diagnostics
// @Summary Manager diagnostics
// @Tags config
// @Produce json
// @Param profileId query string false "Include details for one profile"
// @Success 200 {object} Response{data=domain.Diagnostics}
// @Failure 404 {object} ErrorResponseBody
// @Router /config/diagnostics [get]
func (h *ConfigHandler) Diagnostics(c *gin.Context) {
	d, err := h.manager.Diagnostics(c.Query("profileId"))
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, d)
}

// Details handles GET /api/v1/config/profiles/:id
// @Summary Managed profile with validation details
// @Tags config
// @Produce json
// @Param id path string true "Profile ID"
// @Success 200 {object} Response{data=domain.ProfileDetails}
// @Failure 404 {object} ErrorResponseBody
// @Router /config/profiles/{id} [get]
func (h *ConfigHandler) Details(c *gin.Context) {
	d, err := h.manager.Details(c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, d)
}

// GetActive handles GET /api/v1/config/active
// @Summary Active profile id
// @Tags config
// @Produce json
// @Success 200 {object} Response{data=ActiveProfileResponse}
// @Router /config/active [get]
func (h *ConfigHandler) GetActive(c *gin.Context) {
	id, ok := h.manager.Active()
	RespondOK(c, ActiveProfileResponse{ProfileID: id, Set: ok})
}

// SetActive handles PUT /api/v1/config/active
// @Summary Select the active profile
// @Tags config
// @Accept json
// @Produce json
// @Param request body SetActiveRequest true "Profile to activate"
// @Success 200 {object} Response{data=ActiveProfileResponse}
// @Failure 404 {object} ErrorResponseBody
// @Router /config/active [put]
func (h *ConfigHandler) SetActive(c *gin.Context) {
	var req SetActiveRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.manager.SetActive(req.ProfileID); err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, ActiveProfileResponse{ProfileID: req.ProfileID, Set: true})
}

// GetHotReload handles GET /api/v1/config/hot-reload
// @Summary Hot reload settings
// @Tags config
// @Produce json
// @Success 200 {object} Response{data=domain.HotReloadConfig}
// @Router /config/hot-reload [get]
func (h *ConfigHandler) GetHotReload(c *gin.Context) {
	RespondOK(c, h.manager.HotReloadConfig())
}

// UpdateHotReload handles PATCH /api/v1/config/hot-reload
// @Summary Update hot reload settings
// @Tags config
// @Accept json
// @Produce json
// @Param request body domain.HotReloadUpdate true "Partial settings"
// @Success 200 {object} Response{data=domain.HotReloadConfig}
// @Failure 400 {object} ErrorResponseBody
// @Router /config/hot-reload [patch]
func (h *ConfigHandler) UpdateHotReload(c *gin.Context) {
	var u domain.HotReloadUpdate
	if !bindJSON(c, &u) {
		return
	}
	cfg, err := h.manager.UpdateHotReloadConfig(u)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, cfg)
}
