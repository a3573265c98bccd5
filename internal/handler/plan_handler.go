package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"stmtrules/internal/domain"
	"stmtrules/internal/parser"
	"stmtrules/internal/service"
)

const maxStatementSize = 20 << 20

// StatementRunner drives a document through the fallback ladder.
type StatementRunner interface {
	Run(ctx context.Context, dc service.DocumentContext, file []byte, contentType string) (*parser.RunResult, error)
}

// PlanHandler handles parsing plan endpoints.
type PlanHandler struct {
	plans  service.PlanService
	runner StatementRunner
}

// NewPlanHandler creates a new PlanHandler. runner may be nil when no
// parser engines are configured.
func NewPlanHandler(plans service.PlanService, runner StatementRunner) *PlanHandler {
	return &PlanHandler{plans: plans, runner: runner}
}

// Plan handles POST /api/v1/plans
// @Summary Build a parsing plan
// @Description Identifies the bank profile, resolves feature flags and selects the initial strategy.
// @Tags plans
// @Accept json
// @Produce json
// @Param request body service.DocumentContext true "Document context"
// @Success 200 {object} Response{data=service.Plan}
// @Failure 400 {object} ErrorResponseBody
// @Router /plans [post]
func (h *PlanHandler) Plan(c *gin.Context) {
	var dc service.DocumentContext
	if !bindJSON(c, &dc) {
		return
	}
	RespondOK(c, h.plans.Plan(dc))
}

// Escalate handles POST /api/v1/plans/escalate
// @Summary Decide the next step after a parse attempt
// @Tags plans
// @Accept json
// @Produce json
// @Param request body EscalateRequest true "Attempt outcome"
// @Success 200 {object} Response{data=service.Escalation}
// @Failure 400 {object} ErrorResponseBody
// @Router /plans/escalate [post]
func (h *PlanHandler) Escalate(c *gin.Context) {
	var req EscalateRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Attempt <= 0 {
		req.Attempt = 1
	}
	plan := h.plans.Plan(req.Document)
	RespondOK(c, h.plans.Escalate(plan, req.Strategy, req.Quality, req.Attempt))
}

// Parse handles POST /api/v1/statements/parse
// @Summary Parse a statement through the fallback ladder
// @Description Runs parse attempts, escalating while quality stays below the threshold. Returns the best output.
// @Tags plans
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Statement file"
// @Param bankId formData string false "Known bank identifier"
// @Param userId formData string false "User identifier for rollouts"
// @Param locale formData string false "Locale"
// @Param format formData string false "Format override (pdf, excel, csv)"
// @Success 200 {object} Response{data=parser.RunResult}
// @Failure 400 {object} ErrorResponseBody
// @Failure 429 {object} ErrorResponseBody "Parser engines rate limited"
// @Failure 502 {object} ErrorResponseBody "All strategies failed"
// @Failure 503 {object} ErrorResponseBody "No parser engine configured"
// @Router /statements/parse [post]
func (h *PlanHandler) Parse(c *gin.Context) {
	if h.runner == nil {
		RespondError(c, http.StatusServiceUnavailable, "NO_PARSER_ENGINE", "no parser engines are configured")
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "MISSING_FILE", "file field is required")
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(io.LimitReader(file, maxStatementSize+1))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_FILE", "could not read uploaded file")
		return
	}
	if len(data) > maxStatementSize {
		RespondError(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "statement exceeds 20MB")
		return
	}

	dc := service.DocumentContext{
		Filename: header.Filename,
		BankID:   c.PostForm("bankId"),
		UserID:   c.PostForm("userId"),
		Locale:   c.PostForm("locale"),
		Format:   c.PostForm("format"),
	}
	contentType := header.Header.Get("Content-Type")

	res, err := h.runner.Run(c.Request.Context(), dc, data, contentType)
	if err != nil {
		var rl *parser.RateLimitError
		switch {
		case errors.As(err, &rl):
			c.Header("Retry-After", strconv.Itoa(int(rl.RetryAfter.Seconds())))
			RespondError(c, http.StatusTooManyRequests, "RATE_LIMITED", rl.Error())
		case res != nil && res.Reason == "cancelled":
			RespondError(c, http.StatusRequestTimeout, "CANCELLED", "request cancelled")
		case errors.Is(err, domain.ErrNoParserEngine):
			HandleError(c, err)
		case errors.Is(err, parser.ErrAllStrategiesFailed):
			RespondError(c, http.StatusBadGateway, "PARSE_FAILED", err.Error())
		default:
			HandleError(c, err)
		}
		return
	}
	RespondOK(c, res)
}
