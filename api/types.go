// Package api provides the HTTP request/response types for the Control API.
package api

import "time"

// =============================================================================
// Response Envelope
// =============================================================================

// Response is the canonical API envelope every handler writes.
// @Description Standard API response envelope
type Response struct {
	Success   bool       `json:"success"`
	Data      any        `json:"data,omitempty"`
	Error     *ErrorInfo `json:"error,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
	RequestID string     `json:"request_id,omitempty"`
}

// ErrorInfo is the canonical error structure carried in a failed Response.
// @Description Error detail structure
type ErrorInfo struct {
	Code       string `json:"code" example:"INVALID_REQUEST"`
	Message    string `json:"message" example:"Invalid request parameters"`
	HTTPStatus int    `json:"http_status,omitempty" example:"400"`
	Retryable  bool   `json:"retryable,omitempty" example:"false"`
}

// =============================================================================
// Upgrade Control API Types
// =============================================================================

// AnalyzeRequest is the body of POST /api/upgrade/analyze.
// @Description Request to launch an upgrade orchestration run
type AnalyzeRequest struct {
	// Requirements describes the evolution goal in natural language.
	Requirements string `json:"requirements" binding:"required" example:"add SSO login"`
	// ProjectPath is the path to the target project on disk.
	ProjectPath string `json:"project_path" binding:"required" example:"/workspace/my-service"`
	// EnableDynamicAnalysis is copied into the run's task inputs; no agent
	// reads it.
	EnableDynamicAnalysis bool `json:"enable_dynamic_analysis,omitempty"`
	// IncludeBehaviorAnalysis is copied into the run's task inputs; the
	// orchestrator runs BehaviorAnalyzer whether or not it is set.
	IncludeBehaviorAnalysis bool `json:"include_behavior_analysis,omitempty"`
	// GenerateImpactMatrix is copied into the run's task inputs; the
	// orchestrator runs ImpactAnalyzer whether or not it is set.
	GenerateImpactMatrix bool `json:"generate_impact_matrix,omitempty"`
}

// RunStatus is the status shape shared by the analyze and status endpoints.
// @Description Upgrade run status
type RunStatus struct {
	TaskID       string  `json:"task_id" example:"task-a1b2c3"`
	Status       string  `json:"status" example:"running"` // pending, running, completed, failed
	Progress     float64 `json:"progress" example:"0.4"`
	CurrentPhase string  `json:"current_phase,omitempty" example:"build"`
	Message      string  `json:"message,omitempty"`
}

// TaskSummary is one entry in the GET /api/upgrade/list response.
// @Description Summary of one known upgrade run
type TaskSummary struct {
	TaskID       string    `json:"task_id"`
	Status       string    `json:"status"`
	CurrentPhase string    `json:"current_phase,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TaskListResponse is the body of GET /api/upgrade/list.
// @Description List of known upgrade runs
type TaskListResponse struct {
	Tasks []TaskSummary `json:"tasks"`
}

// HealthResponse is the body of GET /api/health.
// @Description Top-level service health
type HealthResponse struct {
	Status    string    `json:"status" example:"healthy"`
	Version   string    `json:"version,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
