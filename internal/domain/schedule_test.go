package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplanValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		replan    Replan
		wantField string
	}{
		{
			name: "valid",
			replan: Replan{StudySchedule: []Task{
				{DayOffset: 1, Title: "Catch up", DurationMinutes: 40, Type: TaskTypeLearning},
			}},
		},
		{
			name:   "empty schedule is allowed",
			replan: Replan{StudySchedule: []Task{}},
		},
		{
			name:      "missing schedule",
			replan:    Replan{PlanExplanation: "nothing"},
			wantField: "study_schedule",
		},
		{
			name: "negative day offset",
			replan: Replan{StudySchedule: []Task{
				{DayOffset: -2, Title: "Catch up", DurationMinutes: 40, Type: TaskTypeLearning},
			}},
			wantField: "study_schedule[0].day_offset",
		},
		{
			name: "zero duration",
			replan: Replan{StudySchedule: []Task{
				{DayOffset: 0, Title: "Catch up", DurationMinutes: 40, Type: TaskTypeLearning},
				{DayOffset: 1, Title: "Review", DurationMinutes: 0, Type: TaskTypeRevision},
			}},
			wantField: "study_schedule[1].duration_minutes",
		},
		{
			name: "missing title",
			replan: Replan{StudySchedule: []Task{
				{DayOffset: 0, DurationMinutes: 40, Type: TaskTypeLearning},
			}},
			wantField: "study_schedule[0].title",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.replan.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr), "expected ValidationError, got %v", err)
			assert.Equal(t, tt.wantField, vErr.Field)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestReplanNormalize(t *testing.T) {
	t.Parallel()

	r := Replan{StudySchedule: []Task{{Title: " Review ", DurationMinutes: 30, Type: "REVISION"}}}
	r.Normalize()
	assert.Equal(t, DefaultPlanExplanation, r.PlanExplanation)
	assert.Equal(t, TaskTypeRevision, r.StudySchedule[0].Type)
	assert.Equal(t, "Review", r.StudySchedule[0].Title)

	missing := Replan{PlanExplanation: " Shifted two days. "}
	missing.Normalize()
	assert.Nil(t, missing.StudySchedule)
	assert.Equal(t, "Shifted two days.", missing.PlanExplanation)
}

func TestMergeReplan(t *testing.T) {
	t.Parallel()

	task := func(day int, title string, completed bool) Task {
		return Task{DayOffset: day, Title: title, DurationMinutes: 30, Type: TaskTypeLearning, Completed: completed}
	}

	tests := []struct {
		name        string
		current     []Task
		regenerated []Task
		today       int
		want        []Task
	}{
		{
			name:        "keeps completed and appends sorted tail",
			current:     []Task{task(0, "a", true), task(1, "b", false), task(2, "c", true)},
			regenerated: []Task{task(5, "y", false), task(3, "x", false)},
			want:        []Task{task(0, "a", true), task(2, "c", true), task(3, "x", false), task(5, "y", false)},
		},
		{
			name:        "shifts tail that starts before last completed day",
			current:     []Task{task(0, "a", true), task(4, "b", true), task(5, "c", false)},
			regenerated: []Task{task(1, "x", false), task(2, "y", false)},
			want:        []Task{task(0, "a", true), task(4, "b", true), task(4, "x", false), task(5, "y", false)},
		},
		{
			name:        "forces regenerated tasks uncompleted",
			current:     []Task{task(0, "a", false)},
			regenerated: []Task{task(0, "x", true)},
			want:        []Task{task(0, "x", false)},
		},
		{
			name:        "stable order for equal days",
			current:     nil,
			regenerated: []Task{task(2, "first", false), task(1, "early", false), task(2, "second", false)},
			want:        []Task{task(1, "early", false), task(2, "first", false), task(2, "second", false)},
		},
		{
			name:        "shifts tail that starts before today",
			current:     []Task{task(0, "a", true), task(1, "b", false)},
			regenerated: []Task{task(0, "x", false), task(2, "y", false)},
			today:       10,
			want:        []Task{task(0, "a", true), task(10, "x", false), task(12, "y", false)},
		},
		{
			name:        "tail already after today is untouched",
			current:     []Task{task(0, "a", false)},
			regenerated: []Task{task(11, "x", false)},
			today:       10,
			want:        []Task{task(11, "x", false)},
		},
		{
			name:        "empty regeneration keeps completed only",
			current:     []Task{task(0, "a", true), task(1, "b", false)},
			regenerated: []Task{},
			want:        []Task{task(0, "a", true)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, MergeReplan(tt.current, tt.regenerated, tt.today))
		})
	}
}

func TestMergeReplanDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	regenerated := []Task{{DayOffset: 0, Title: "x", DurationMinutes: 30, Type: TaskTypeLearning, Completed: true}}
	MergeReplan([]Task{{DayOffset: 3, Title: "done", DurationMinutes: 30, Type: TaskTypeLearning, Completed: true}}, regenerated, 0)

	assert.Equal(t, 0, regenerated[0].DayOffset)
	assert.True(t, regenerated[0].Completed)
}

func TestGuideDayOffsetAt(t *testing.T) {
	t.Parallel()

	created := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	tests := []struct {
		name      string
		createdAt int64
		now       time.Time
		want      int
	}{
		{name: "same day", createdAt: created.UnixMilli(), now: created.Add(3 * time.Hour), want: 0},
		{name: "ten days later", createdAt: created.UnixMilli(), now: created.Add(10*24*time.Hour + time.Minute), want: 10},
		{name: "just short of a day", createdAt: created.UnixMilli(), now: created.Add(24*time.Hour - time.Second), want: 0},
		{name: "clock behind creation", createdAt: created.UnixMilli(), now: created.Add(-time.Hour), want: 0},
		{name: "no creation time", createdAt: 0, now: created, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := &Guide{CreatedAt: tt.createdAt}
			assert.Equal(t, tt.want, g.DayOffsetAt(tt.now))
		})
	}
}
