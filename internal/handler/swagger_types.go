package handler

import (
	"stmtrules/internal/condition"
	"stmtrules/internal/fallback"
	"stmtrules/internal/service"
)

// Swagger type definitions for API documentation.
// These types are used by swag to generate OpenAPI documentation.

// --- Request Types ---

// IdentifyRequest is the body of POST /profiles/identify.
type IdentifyRequest struct {
	Filename string `json:"filename" example:"kkb_2024_03.pdf"`
	Text     string `json:"text" example:"АО Казкоммерцбанк выписка по счету"`
}

// SetActiveRequest selects the active profile.
type SetActiveRequest struct {
	ProfileID string `json:"profileId" binding:"required" example:"kazkomertsbank"`
}

// NextStrategyRequest asks whether to leave the current strategy.
type NextStrategyRequest struct {
	Current string             `json:"current" binding:"required" example:"ml-first"`
	Quality float64            `json:"quality" example:"0.42"`
	Context *condition.Context `json:"context,omitempty"`
}

// EscalateRequest reports the outcome of one parse attempt.
type EscalateRequest struct {
	Document service.DocumentContext `json:"document"`
	Strategy string                  `json:"strategy" binding:"required" example:"ml-first"`
	Quality  float64                 `json:"quality" example:"0.42"`
	Attempt  int                     `json:"attempt" example:"1"`
}

// --- Response Types ---

// Response is the generic success envelope.
type Response struct {
	Status string      `json:"status" example:"success"`
	Data   interface{} `json:"data,omitempty"`
}

// ErrorResponseBody is the error envelope.
type ErrorResponseBody struct {
	Status  string `json:"status" example:"error"`
	Code    string `json:"code" example:"PROFILE_NOT_FOUND"`
	Message string `json:"message" example:"profile not found"`
}

// MessageResponse carries a human readable confirmation.
type MessageResponse struct {
	Message string `json:"message" example:"profile deleted"`
}

// ReloadResponse reports how many profiles a reload loaded.
type ReloadResponse struct {
	Count int `json:"count" example:"4"`
}

// ActiveProfileResponse reports the active profile.
type ActiveProfileResponse struct {
	ProfileID string `json:"profileId,omitempty" example:"kazkomertsbank"`
	Set       bool   `json:"set" example:"true"`
}

// StrategyDecision is a strategy selection result. Strategy is nil when
// nothing matches.
type StrategyDecision struct {
	Strategy *fallback.Strategy `json:"strategy,omitempty"`
	Escalate bool               `json:"escalate,omitempty"`
}

// FlagValueResponse is a resolved flag value.
type FlagValueResponse struct {
	Name  string `json:"name" example:"ml-classification"`
	Value any    `json:"value"`
}

// HealthResponse is returned by the probe endpoints.
type HealthResponse struct {
	Status string   `json:"status" example:"ok"`
	Error  string   `json:"error,omitempty"`
	Issues []string `json:"issues,omitempty"`
}
