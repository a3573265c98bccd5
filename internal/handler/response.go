package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"stmtrules/internal/domain"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// APIResponse is the envelope for every API response.
type APIResponse struct {
	Status  string      `json:"status"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// RespondOK sends a 200 success response.
func RespondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{Status: statusSuccess, Data: data})
}

// RespondCreated sends a 201 success response.
func RespondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, APIResponse{Status: statusSuccess, Data: data})
}

// RespondError sends an error response with the given status code.
func RespondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, APIResponse{Status: statusError, Code: code, Message: msg})
}

// MapDomainError translates domain errors to HTTP status codes and error
// codes. Client errors carry the error text; server errors a fixed message.
func MapDomainError(err error) (status int, code, msg string) {
	switch {
	case errors.Is(err, domain.ErrProfileNotFound):
		return http.StatusNotFound, "PROFILE_NOT_FOUND", err.Error()
	case errors.Is(err, domain.ErrFlagNotFound):
		return http.StatusNotFound, "FLAG_NOT_FOUND", err.Error()
	case errors.Is(err, domain.ErrStrategyNotFound):
		return http.StatusNotFound, "STRATEGY_NOT_FOUND", err.Error()
	case errors.Is(err, domain.ErrSnapshotNotFound):
		return http.StatusNotFound, "SNAPSHOT_NOT_FOUND", err.Error()
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "resource not found"
	case errors.Is(err, domain.ErrInvalidProfile):
		return http.StatusBadRequest, "INVALID_PROFILE", err.Error()
	case errors.Is(err, domain.ErrInvalidFlag):
		return http.StatusBadRequest, "INVALID_FLAG", err.Error()
	case errors.Is(err, domain.ErrNoCatchAllStrategy):
		return http.StatusBadRequest, "NO_CATCH_ALL_STRATEGY", err.Error()
	case errors.Is(err, domain.ErrInvalidStrategy):
		return http.StatusBadRequest, "INVALID_STRATEGY", err.Error()
	case errors.Is(err, domain.ErrUnsupportedFormat):
		return http.StatusBadRequest, "UNSUPPORTED_FORMAT", err.Error()
	case errors.Is(err, domain.ErrPersistenceDisabled):
		return http.StatusNotImplemented, "PERSISTENCE_DISABLED", "persistence is not configured"
	case errors.Is(err, domain.ErrNoParserEngine):
		return http.StatusServiceUnavailable, "NO_PARSER_ENGINE", "no parser engine is available for the selected strategy"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred"
	}
}

// HandleError maps a domain error and sends the appropriate error response.
func HandleError(c *gin.Context, err error) {
	status, code, msg := MapDomainError(err)
	if status >= 500 {
		requestID, _ := c.Get("request_id")
		slog.Error("request failed", "request_id", requestID, "path", c.FullPath(), "error", err)
	}
	RespondError(c, status, code, msg)
}

func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		RespondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return false
	}
	return true
}
