package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/studyguide-api/internal/domain"
	"github.com/phrazzld/studyguide-api/internal/generation"
)

// MockGenerator implements generation.Generator for testing. Each method
// uses its Fn field when set, and otherwise returns a canned success or Err.
type MockGenerator struct {
	GenerateFn   func(ctx context.Context, req generation.GenerateRequest) (*domain.Guide, error)
	ReplanFn     func(ctx context.Context, req generation.ReplanRequest) (*domain.Replan, error)
	MotivateFn   func(ctx context.Context, req generation.MotivateRequest) (string, error)
	TranscribeFn func(ctx context.Context, req generation.TranscribeRequest) (string, error)
	ListModelsFn func(ctx context.Context, credential string) ([]generation.ModelInfo, error)

	// Err is returned by every method without an Fn when set.
	Err error

	// Calls records the requests received, for verification.
	Calls struct {
		// mu protects the call tracking state for concurrent test cases
		mu sync.Mutex

		Generate   []generation.GenerateRequest
		Replan     []generation.ReplanRequest
		Motivate   []generation.MotivateRequest
		Transcribe []generation.TranscribeRequest
		ListModels []string
	}
}

var _ generation.Generator = (*MockGenerator)(nil)

// Generate implements the generation.Generator interface
func (m *MockGenerator) Generate(ctx context.Context, req generation.GenerateRequest) (*domain.Guide, error) {
	m.Calls.mu.Lock()
	m.Calls.Generate = append(m.Calls.Generate, req)
	m.Calls.mu.Unlock()

	if m.GenerateFn != nil {
		return m.GenerateFn(ctx, req)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return SampleGuide(), nil
}

// Replan implements the generation.Generator interface
func (m *MockGenerator) Replan(ctx context.Context, req generation.ReplanRequest) (*domain.Replan, error) {
	m.Calls.mu.Lock()
	m.Calls.Replan = append(m.Calls.Replan, req)
	m.Calls.mu.Unlock()

	if m.ReplanFn != nil {
		return m.ReplanFn(ctx, req)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return &domain.Replan{
		StudySchedule: []domain.Task{
			{DayOffset: 3, Title: "Catch up", DurationMinutes: 45, Type: domain.TaskTypeRevision},
		},
		PlanExplanation: "Moved the missed session to day 3.",
	}, nil
}

// Motivate implements the generation.Generator interface
func (m *MockGenerator) Motivate(ctx context.Context, req generation.MotivateRequest) (string, error) {
	m.Calls.mu.Lock()
	m.Calls.Motivate = append(m.Calls.Motivate, req)
	m.Calls.mu.Unlock()

	if m.MotivateFn != nil {
		return m.MotivateFn(ctx, req)
	}
	if m.Err != nil {
		return "", m.Err
	}
	return "Keep going!", nil
}

// Transcribe implements the generation.Generator interface
func (m *MockGenerator) Transcribe(ctx context.Context, req generation.TranscribeRequest) (string, error) {
	m.Calls.mu.Lock()
	m.Calls.Transcribe = append(m.Calls.Transcribe, req)
	m.Calls.mu.Unlock()

	if m.TranscribeFn != nil {
		return m.TranscribeFn(ctx, req)
	}
	if m.Err != nil {
		return "", m.Err
	}
	return "transcribed lecture", nil
}

// ListModels implements the generation.Generator interface
func (m *MockGenerator) ListModels(ctx context.Context, credential string) ([]generation.ModelInfo, error) {
	m.Calls.mu.Lock()
	m.Calls.ListModels = append(m.Calls.ListModels, credential)
	m.Calls.mu.Unlock()

	if m.ListModelsFn != nil {
		return m.ListModelsFn(ctx, credential)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return []generation.ModelInfo{{Name: "models/gemini-2.5-flash-lite", DisplayName: "Gemini 2.5 Flash-Lite"}}, nil
}

// GenerateCount returns how many times Generate was called.
func (m *MockGenerator) GenerateCount() int {
	m.Calls.mu.Lock()
	defer m.Calls.mu.Unlock()
	return len(m.Calls.Generate)
}

// NewMockGeneratorWithError creates a MockGenerator that fails every call with err.
func NewMockGeneratorWithError(err error) *MockGenerator {
	return &MockGenerator{Err: err}
}

// SampleGuide returns a generated guide without identity or provenance, as
// a generator would.
func SampleGuide() *domain.Guide {
	g := &domain.Guide{
		Title:     "Cell Biology",
		Summary:   "Organelles and their functions.",
		StudyTips: []string{"Sketch the cell from memory"},
		FlashCards: []domain.FlashCard{
			{Front: "Powerhouse of the cell?", Back: "Mitochondria"},
		},
		Quiz: []domain.QuizQuestion{{
			Question:        "Where is ATP produced?",
			PossibleAnswers: []string{"Nucleus", "Mitochondria"},
			CorrectIndex:    1,
		}},
		Topics: []domain.Topic{{Name: "Organelles", Difficulty: domain.DifficultyMedium}},
		StudySchedule: []domain.Task{
			{DayOffset: 0, Title: "Study: Organelles", DurationMinutes: 45, Type: domain.TaskTypeLearning},
			{DayOffset: 1, Title: "Revision: Organelles", DurationMinutes: 20, Type: domain.TaskTypeRevision},
			{DayOffset: 2, Title: "Study: Membranes", DurationMinutes: 45, Type: domain.TaskTypeLearning},
		},
	}
	g.Normalize()
	return g
}
