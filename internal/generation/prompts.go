package generation

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/phrazzld/studyguide-api/internal/domain"
)

// Prompt limits.
const (
	// DefaultMaxTranscriptChars bounds the transcript sent for generation.
	DefaultMaxTranscriptChars = 50000

	// ReplanSummaryChars bounds the guide summary included in replan prompts.
	ReplanSummaryChars = 5000

	// DefaultReplanReason is used when the user gives no reason for replanning.
	DefaultReplanReason = "Not specified"

	// DefaultDifficulty is the target level when none is supplied.
	DefaultDifficulty = "Intermediate"

	// DefaultGoals is used in prompts when the user gave no goals.
	DefaultGoals = "General mastery"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

// Prompts holds the parsed prompt templates.
type Prompts struct {
	templates *template.Template
}

// LoadPrompts parses the embedded prompt templates.
func LoadPrompts() (*Prompts, error) {
	tmpl, err := template.ParseFS(promptFS, "prompts/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse prompt templates: %v", ErrInvalidConfig, err)
	}
	return &Prompts{templates: tmpl}, nil
}

type guidePromptData struct {
	Transcript string
	Goals      string
	Difficulty string
	ExamDate   string
}

type replanPromptData struct {
	Title          string
	Summary        string
	Goals          string
	Total          int
	RemainingCount int
	RemainingJSON  string
	Reason         string
	Today          int
}

type motivationPromptData struct {
	Completed int
	Total     int
}

// Guide renders the generation prompt. The transcript is truncated to
// maxTranscriptChars runes; a non-positive limit uses the default.
func (p *Prompts) Guide(req GenerateRequest, maxTranscriptChars int) (string, error) {
	if maxTranscriptChars <= 0 {
		maxTranscriptChars = DefaultMaxTranscriptChars
	}
	data := guidePromptData{
		Transcript: Truncate(req.Transcript, maxTranscriptChars),
		Goals:      withDefault(req.Goals, DefaultGoals),
		Difficulty: withDefault(req.Difficulty, DefaultDifficulty),
		ExamDate:   strings.TrimSpace(req.ExamDate),
	}
	return p.render("guide.tmpl", data)
}

// Replan renders the schedule regeneration prompt.
func (p *Prompts) Replan(req ReplanRequest) (string, error) {
	if req.Guide == nil {
		return "", fmt.Errorf("replan prompt requires a guide")
	}

	remaining := req.Remaining
	if remaining == nil {
		remaining = []domain.Task{}
	}
	remainingJSON, err := json.Marshal(remaining)
	if err != nil {
		return "", fmt.Errorf("failed to encode remaining tasks: %w", err)
	}

	data := replanPromptData{
		Title:          req.Guide.Title,
		Summary:        Truncate(req.Guide.Summary, ReplanSummaryChars),
		Goals:          withDefault(req.Guide.Goals, DefaultGoals),
		Total:          len(req.Guide.StudySchedule),
		RemainingCount: len(remaining),
		RemainingJSON:  string(remainingJSON),
		Reason:         withDefault(req.Reason, DefaultReplanReason),
		Today:          max(req.Today, 0),
	}
	return p.render("replan.tmpl", data)
}

// Motivation renders the motivational nudge prompt.
func (p *Prompts) Motivation(req MotivateRequest) (string, error) {
	return p.render("motivation.tmpl", motivationPromptData{Completed: req.Completed, Total: req.Total})
}

// Transcription renders the instruction sent alongside media bytes.
func (p *Prompts) Transcription() (string, error) {
	return p.render("transcribe.tmpl", nil)
}

func (p *Prompts) render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := p.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to execute prompt template %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// Truncate shortens s to at most limit runes.
func Truncate(s string, limit int) string {
	if limit < 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}

func withDefault(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}
