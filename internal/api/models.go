package api

import (
	"github.com/phrazzld/studyguide-api/internal/domain"
	"github.com/phrazzld/studyguide-api/internal/generation"
)

// Common request/response structures

// ProgressRequest defines the payload for marking a schedule task.
type ProgressRequest struct {
	// Index is a pointer so a missing index is distinguishable from 0.
	Index     *int `json:"index"     validate:"required"`
	Completed bool `json:"completed"`
}

// ReplanRequest defines the payload for regenerating a schedule.
type ReplanRequest struct {
	MissedReason string `json:"missed_reason" validate:"max=2000"`
	APIKey       string `json:"api_key,omitempty"`
}

// MotivationRequest defines the payload for a motivational message.
type MotivationRequest struct {
	CompletedCount *int   `json:"completed_count" validate:"required,gte=0"`
	TotalCount     *int   `json:"total_count"     validate:"required,gte=0"`
	APIKey         string `json:"api_key,omitempty"`
}

// HealthResponse reports liveness and the configured store backend.
type HealthResponse struct {
	Status  string `json:"status"`
	Backend string `json:"backend"`
	Store   string `json:"store"`
}

// ModelsResponse lists the models available to the caller's credential.
type ModelsResponse struct {
	Models []generation.ModelInfo `json:"models"`
}

// GuidesResponse lists guide summaries, newest first.
type GuidesResponse struct {
	Guides []domain.GuideSummary `json:"guides"`
}

// SuccessResponse acknowledges a mutation with no other payload.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// ProgressResponse returns the stored schedule after a progress update.
type ProgressResponse struct {
	Success       bool          `json:"success"`
	StudySchedule []domain.Task `json:"study_schedule"`
}

// MotivationResponse carries one motivational message.
type MotivationResponse struct {
	Message string `json:"message"`
}
