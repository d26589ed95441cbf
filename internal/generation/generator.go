package generation

import (
	"context"

	"github.com/phrazzld/studyguide-api/internal/domain"
)

// Generator defines the interface for producing study material with a
// language model. It serves as a boundary between the application core and
// external AI/LLM services, following the hexagonal architecture pattern.
//
// Every request carries the caller's credential. An empty credential falls
// back to the implementation's configured key; if both are empty the call
// fails with ErrCredentialMissing before reaching the provider.
type Generator interface {
	// Generate builds a complete guide from a transcript. The returned guide
	// is normalized and validated but carries no identity or provenance.
	Generate(ctx context.Context, req GenerateRequest) (*domain.Guide, error)

	// Replan regenerates the remaining part of a guide's schedule.
	Replan(ctx context.Context, req ReplanRequest) (*domain.Replan, error)

	// Motivate returns a short encouragement based on progress counts.
	Motivate(ctx context.Context, req MotivateRequest) (string, error)

	// Transcribe converts audio or video bytes into plain text.
	Transcribe(ctx context.Context, req TranscribeRequest) (string, error)

	// ListModels returns the models available to the credential that can
	// generate content.
	ListModels(ctx context.Context, credential string) ([]ModelInfo, error)
}

// GenerateRequest holds the inputs for guide generation.
type GenerateRequest struct {
	Credential string
	Transcript string
	Goals      string
	Difficulty string
	ExamDate   string
}

// ReplanRequest holds the inputs for schedule regeneration. Remaining is the
// incomplete subsequence of Guide's schedule. Today is the day offset of the
// current day, counted from the guide's creation like every task offset.
type ReplanRequest struct {
	Credential string
	Guide      *domain.Guide
	Remaining  []domain.Task
	Reason     string
	Today      int
}

// MotivateRequest holds the progress counts for a motivational message.
type MotivateRequest struct {
	Credential string
	Completed  int
	Total      int
}

// TranscribeRequest holds raw media for transcription.
type TranscribeRequest struct {
	Credential string
	Data       []byte
	MIMEType   string
}

// ModelInfo describes a model available to a credential.
type ModelInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
}
