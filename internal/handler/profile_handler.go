package handler

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"stmtrules/internal/domain"
	"stmtrules/internal/profile"
	"stmtrules/internal/profileexport"
	"stmtrules/internal/service"
)

const maxProfileBody = 10 << 20

// ProfileHandler handles bank profile endpoints.
type ProfileHandler struct {
	profiles service.ProfileService
	now      func() time.Time
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(profiles service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, now: time.Now}
}

// List handles GET /api/v1/profiles
// @Summary List bank profiles
// @Tags profiles
// @Produce json
// @Success 200 {object} Response{data=[]domain.BankProfile}
// @Router /profiles [get]
func (h *ProfileHandler) List(c *gin.Context) {
	RespondOK(c, h.profiles.List())
}

// Get handles GET /api/v1/profiles/:id
// @Summary Get a bank profile
// @Tags profiles
// @Produce json
// @Param id path string true "Profile ID"
// @Success 200 {object} Response{data=domain.BankProfile}
// @Failure 404 {object} ErrorResponseBody
// @Router /profiles/{id} [get]
func (h *ProfileHandler) Get(c *gin.Context) {
	p, err := h.profiles.Get(c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, p)
}

// Create handles POST /api/v1/profiles
// @Summary Create a bank profile
// @Tags profiles
// @Accept json
// @Produce json
// @Param request body domain.BankProfile true "Profile"
// @Success 201 {object} Response{data=domain.BankProfile}
// @Failure 400 {object} ErrorResponseBody
// @Router /profiles [post]
func (h *ProfileHandler) Create(c *gin.Context) {
	var p domain.BankProfile
	if !bindJSON(c, &p) {
		return
	}
	created, err := h.profiles.Create(&p)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondCreated(c, created)
}

// Update handles PUT /api/v1/profiles/:id
// @Summary Update a bank profile
// @Description Merges the given sections into the profile. The id cannot change.
// @Tags profiles
// @Accept json
// @Produce json
// @Param id path string true "Profile ID"
// @Param request body domain.ProfileUpdate true "Partial profile"
// @Success 200 {object} Response{data=domain.BankProfile}
// @Failure 400 {object} ErrorResponseBody
// @Failure 404 {object} ErrorResponseBody
// @Router /profiles/{id} [put]
func (h *ProfileHandler) Update(c *gin.Context) {
	var u domain.ProfileUpdate
	if !bindJSON(c, &u) {
		return
	}
	updated, err := h.profiles.Update(c.Param("id"), u)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, updated)
}

// Delete handles DELETE /api/v1/profiles/:id
// @Summary Delete a bank profile
// @Tags profiles
// @Produce json
// @Param id path string true "Profile ID"
// @Success 200 {object} Response{data=MessageResponse}
// @Failure 404 {object} ErrorResponseBody
// @Router /profiles/{id} [delete]
func (h *ProfileHandler) Delete(c *gin.Context) {
	if err := h.profiles.Delete(c.Param("id")); err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, MessageResponse{Message: "profile deleted"})
}

// Validate handles POST /api/v1/profiles/validate
// @Summary Validate a bank profile without saving it
// @Tags profiles
// @Accept json
// @Produce json
// @Param request body domain.BankProfile true "Profile"
// @Success 200 {object} Response{data=domain.ValidationResult}
// @Router /profiles/validate [post]
func (h *ProfileHandler) Validate(c *gin.Context) {
	var p domain.BankProfile
	if !bindJSON(c, &p) {
		return
	}
	RespondOK(c, h.profiles.Validate(&p))
}

// Identify handles POST /api/v1/profiles/identify
// @Summary Identify the bank of a document
// @Description Filename patterns are tried first, then text patterns.
// @Tags profiles
// @Accept json
// @Produce json
// @Param request body IdentifyRequest true "Document hints"
// @Success 200 {object} Response{data=service.IdentifyResult}
// @Failure 404 {object} ErrorResponseBody
// @Router /profiles/identify [post]
func (h *ProfileHandler) Identify(c *gin.Context) {
	var req IdentifyRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Filename == "" && req.Text == "" {
		RespondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "filename or text is required")
		return
	}
	res, err := h.profiles.Identify(req.Filename, req.Text)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, res)
}

// Export handles GET /api/v1/profiles/:id/export
// @Summary Export a bank profile
// @Tags profiles
// @Produce json,application/x-yaml
// @Param id path string true "Profile ID"
// @Param format query string false "json or yaml" default(json)
// @Success 200 {file} file
// @Failure 400 {object} ErrorResponseBody
// @Failure 404 {object} ErrorResponseBody
// @Router /profiles/{id}/export [get]
func (h *ProfileHandler) Export(c *gin.Context) {
	format, err := profile.ParseFormat(c.Query("format"))
	if err != nil {
		HandleError(c, err)
		return
	}
	data, err := h.profiles.Export(c.Param("id"), format)
	if err != nil {
		HandleError(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=\""+profileexport.SanitizeFilename(c.Param("id"))+"."+string(format)+"\"")
	c.Data(http.StatusOK, contentType(format), data)
}

// Import handles POST /api/v1/profiles/import
// @Summary Import a bank profile document
// @Tags profiles
// @Accept json,application/x-yaml
// @Produce json
// @Param format query string false "json or yaml" default(json)
// @Success 201 {object} Response{data=domain.BankProfile}
// @Failure 400 {object} ErrorResponseBody
// @Router /profiles/import [post]
func (h *ProfileHandler) Import(c *gin.Context) {
	format, err := profile.ParseFormat(c.Query("format"))
	if err != nil {
		HandleError(c, err)
		return
	}
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxProfileBody))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "could not read request body")
		return
	}
	p, err := h.profiles.Import(data, format)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondCreated(c, p)
}

// Backup handles POST /api/v1/profiles/backup
// @Summary Back up bank profiles
// @Description Advances the backup counter and, when a backup store is configured, writes a snapshot.
// @Tags profiles
// @Produce json
// @Param profileId query string false "Back up a single profile"
// @Success 200 {object} Response{data=domain.BackupInfo}
// @Failure 404 {object} ErrorResponseBody
// @Router /profiles/backup [post]
func (h *ProfileHandler) Backup(c *gin.Context) {
	info, err := h.profiles.Backup(c.Request.Context(), c.Query("profileId"))
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, info)
}

// Reload handles POST /api/v1/profiles/reload
// @Summary Reload bank profiles from the profile directory
// @Tags profiles
// @Produce json
// @Success 200 {object} Response{data=ReloadResponse}
// @Router /profiles/reload [post]
func (h *ProfileHandler) Reload(c *gin.Context) {
	RespondOK(c, ReloadResponse{Count: h.profiles.Reload()})
}

// Catalog handles GET /api/v1/profiles/catalog
// @Summary Download the profile column catalog
// @Tags profiles
// @Produce text/csv,application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param format query string false "csv or xlsx" default(csv)
// @Success 200 {file} file
// @Failure 400 {object} ErrorResponseBody
// @Router /profiles/catalog [get]
func (h *ProfileHandler) Catalog(c *gin.Context) {
	profiles := h.profiles.List()
	var buf bytes.Buffer
	var mime, ext string

	switch c.DefaultQuery("format", "csv") {
	case "csv":
		if err := profileexport.WriteCSV(&buf, profiles); err != nil {
			HandleError(c, err)
			return
		}
		mime, ext = "text/csv; charset=utf-8", "csv"
	case "xlsx":
		if err := profileexport.WriteXLSX(&buf, profiles); err != nil {
			HandleError(c, err)
			return
		}
		mime, ext = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "xlsx"
	default:
		RespondError(c, http.StatusBadRequest, "UNSUPPORTED_FORMAT", "format must be csv or xlsx")
		return
	}

	filename := profileexport.BuildFilename("bank_profiles", ext, h.now())
	c.Header("Content-Disposition", "attachment; filename=\""+filename+"\"")
	c.Data(http.StatusOK, mime, buf.Bytes())
}

func contentType(f profile.Format) string {
	if f == profile.FormatYAML {
		return "application/x-yaml"
	}
	return "application/json"
}
