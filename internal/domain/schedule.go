package domain

import (
	"sort"
	"strings"
	"time"
)

// TaskType classifies a scheduled study session.
type TaskType string

// Task types.
const (
	TaskTypeLearning TaskType = "learning"
	TaskTypeRevision TaskType = "revision"
)

// Task is one study session in a guide's schedule. DayOffset counts days
// from the guide's creation.
type Task struct {
	DayOffset       int      `json:"day_offset" validate:"gte=0"`
	Title           string   `json:"title" validate:"required"`
	Details         string   `json:"details"`
	DurationMinutes int      `json:"duration_minutes" validate:"gte=1"`
	Difficulty      string   `json:"difficulty"`
	Type            TaskType `json:"type" validate:"oneof=learning revision"`
	Completed       bool     `json:"completed"`
}

// Replan is a regenerated schedule for the incomplete portion of a guide.
type Replan struct {
	StudySchedule   []Task `json:"study_schedule" validate:"required,dive"`
	PlanExplanation string `json:"plan_explanation"`
}

// DefaultPlanExplanation is used when a replan carries no explanation.
const DefaultPlanExplanation = "Plan updated based on your progress."

// NormalizeSchedule canonicalizes task casing and defaults untyped tasks
// to learning sessions. A nil schedule becomes an empty one.
func NormalizeSchedule(tasks []Task) []Task {
	if tasks == nil {
		return []Task{}
	}
	for i := range tasks {
		tasks[i].Title = strings.TrimSpace(tasks[i].Title)
		tasks[i].Type = TaskType(strings.ToLower(strings.TrimSpace(string(tasks[i].Type))))
		if tasks[i].Type == "" {
			tasks[i].Type = TaskTypeLearning
		}
		if tasks[i].Difficulty != "" {
			tasks[i].Difficulty = normalizeDifficulty(tasks[i].Difficulty)
		}
	}
	return tasks
}

// Normalize canonicalizes the regenerated tasks and fills in a missing
// explanation. A missing schedule is left nil for Validate to reject.
func (r *Replan) Normalize() {
	if r.StudySchedule != nil {
		r.StudySchedule = NormalizeSchedule(r.StudySchedule)
	}
	r.PlanExplanation = strings.TrimSpace(r.PlanExplanation)
	if r.PlanExplanation == "" {
		r.PlanExplanation = DefaultPlanExplanation
	}
}

// Validate checks that the schedule is present and every task is in bounds.
func (r *Replan) Validate() error {
	if r.StudySchedule == nil {
		return NewValidationError("study_schedule", "is required", nil)
	}
	if err := validate.Struct(r); err != nil {
		return translateValidationError(err)
	}
	return nil
}

// DayOffsetAt returns the day offset of now relative to the guide's
// creation. Guides without a creation time, or created in the future,
// yield 0.
func (g *Guide) DayOffsetAt(now time.Time) int {
	if g.CreatedAt <= 0 {
		return 0
	}
	elapsed := now.Sub(time.UnixMilli(g.CreatedAt))
	if elapsed < 0 {
		return 0
	}
	return int(elapsed / (24 * time.Hour))
}

// MergeReplan combines a stored schedule with regenerated tasks. Completed
// tasks keep their stored order; regenerated tasks are appended uncompleted
// and ordered by day. When the first appended day falls before today or the
// last completed day, the appended block is shifted forward so no new task
// lands in the past.
func MergeReplan(current, regenerated []Task, today int) []Task {
	merged := make([]Task, 0, len(current)+len(regenerated))
	lastCompletedDay := -1
	for _, task := range current {
		if task.Completed {
			merged = append(merged, task)
			if task.DayOffset > lastCompletedDay {
				lastCompletedDay = task.DayOffset
			}
		}
	}

	tail := make([]Task, len(regenerated))
	copy(tail, regenerated)
	sort.SliceStable(tail, func(i, j int) bool {
		return tail[i].DayOffset < tail[j].DayOffset
	})

	floor := max(lastCompletedDay, today)
	shift := 0
	if len(tail) > 0 && tail[0].DayOffset < floor {
		shift = floor - tail[0].DayOffset
	}
	for i := range tail {
		tail[i].Completed = false
		tail[i].DayOffset += shift
	}

	return append(merged, tail...)
}
