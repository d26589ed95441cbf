package generation_test

import (
	"strings"
	"testing"

	"github.com/phrazzld/studyguide-api/internal/domain"
	"github.com/phrazzld/studyguide-api/internal/generation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadPrompts(t *testing.T) *generation.Prompts {
	t.Helper()
	prompts, err := generation.LoadPrompts()
	require.NoError(t, err)
	return prompts
}

func TestGuidePrompt(t *testing.T) {
	t.Parallel()
	prompts := loadPrompts(t)

	prompt, err := prompts.Guide(generation.GenerateRequest{
		Transcript: "Mitochondria produce ATP.",
		Goals:      "Pass the midterm",
		ExamDate:   "2026-12-01",
	}, 0)

	require.NoError(t, err)
	assert.Contains(t, prompt, "'Pass the midterm'")
	assert.Contains(t, prompt, "'Intermediate'")
	assert.Contains(t, prompt, "'2026-12-01'")
	assert.Contains(t, prompt, "Plan strictly backwards", "exam date should drive backward planning")
	assert.True(t, strings.HasSuffix(prompt, "Mitochondria produce ATP."))
	assert.Contains(t, prompt, `"study_schedule"`)
}

func TestGuidePromptWithoutExamDate(t *testing.T) {
	t.Parallel()
	prompts := loadPrompts(t)

	prompt, err := prompts.Guide(generation.GenerateRequest{Transcript: "text"}, 0)

	require.NoError(t, err)
	assert.Contains(t, prompt, "No exam date was given")
	assert.Contains(t, prompt, "'"+generation.DefaultGoals+"'")
}

func TestGuidePromptTruncatesTranscript(t *testing.T) {
	t.Parallel()
	prompts := loadPrompts(t)

	transcript := strings.Repeat("é", 20) + "TAIL"
	prompt, err := prompts.Guide(generation.GenerateRequest{Transcript: transcript}, 20)

	require.NoError(t, err)
	assert.NotContains(t, prompt, "TAIL")
	assert.True(t, strings.HasSuffix(prompt, strings.Repeat("é", 20)))
}

func TestReplanPrompt(t *testing.T) {
	t.Parallel()
	prompts := loadPrompts(t)

	guide := &domain.Guide{
		Title:   "Chemistry",
		Summary: strings.Repeat("s", generation.ReplanSummaryChars+100),
		StudySchedule: []domain.Task{
			{Title: "Done", Completed: true},
			{Title: "Bonds", DayOffset: 2, DurationMinutes: 40, Type: domain.TaskTypeLearning},
		},
	}

	prompt, err := prompts.Replan(generation.ReplanRequest{
		Guide:     guide,
		Remaining: guide.IncompleteTasks(),
	})

	require.NoError(t, err)
	assert.Contains(t, prompt, "'Chemistry'")
	assert.Contains(t, prompt, "2 total sessions and 1 remaining")
	assert.Contains(t, prompt, `"title":"Bonds"`)
	assert.Contains(t, prompt, "'"+generation.DefaultReplanReason+"'")
	assert.NotContains(t, prompt, strings.Repeat("s", generation.ReplanSummaryChars+1))
	assert.Contains(t, prompt, "between 30 and 60 minutes")
	assert.Contains(t, prompt, "realistic daily load")
	assert.Contains(t, prompt, "Today is day 0.")
}

func TestReplanPromptReferenceDay(t *testing.T) {
	t.Parallel()
	prompts := loadPrompts(t)
	guide := &domain.Guide{Title: "Chemistry", StudySchedule: []domain.Task{{Title: "Bonds", DayOffset: 2}}}

	tests := []struct {
		name  string
		today int
		want  string
	}{
		{name: "days since creation", today: 10, want: "Today is day 10."},
		{name: "negative clamps to creation day", today: -3, want: "Today is day 0."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prompt, err := prompts.Replan(generation.ReplanRequest{
				Guide:     guide,
				Remaining: guide.StudySchedule,
				Today:     tt.today,
			})

			require.NoError(t, err)
			assert.Contains(t, prompt, "counts days from when the guide was created")
			assert.Contains(t, prompt, tt.want)
			assert.NotContains(t, prompt, "from today")
		})
	}
}

func TestReplanPromptRequiresGuide(t *testing.T) {
	t.Parallel()
	_, err := loadPrompts(t).Replan(generation.ReplanRequest{})
	assert.Error(t, err)
}

func TestMotivationAndTranscriptionPrompts(t *testing.T) {
	t.Parallel()
	prompts := loadPrompts(t)

	motivation, err := prompts.Motivation(generation.MotivateRequest{Completed: 3, Total: 10})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(motivation, "User has completed 3 out of 10 study sessions."))

	transcription, err := prompts.Transcription()
	require.NoError(t, err)
	assert.Contains(t, transcription, "Transcribe")
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", generation.Truncate("abc", 0))
	assert.Equal(t, "ab", generation.Truncate("abc", 2))
	assert.Equal(t, "abc", generation.Truncate("abc", 10))
	assert.Equal(t, "日本", generation.Truncate("日本語", 2))
	assert.Equal(t, "abc", generation.Truncate("abc", -1))
}
