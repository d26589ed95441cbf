package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// AnonymousOwner is the owner recorded when a guide is created without
// an identified user.
const AnonymousOwner = "anonymous"

// OwnerOrAnonymous returns owner, or AnonymousOwner when owner is blank.
// Records written before owners existed are read as anonymous.
func OwnerOrAnonymous(owner string) string {
	if owner = strings.TrimSpace(owner); owner == "" {
		return AnonymousOwner
	}
	return owner
}

// Topic difficulty values.
const (
	DifficultyEasy   = "Easy"
	DifficultyMedium = "Medium"
	DifficultyHard   = "Hard"
)

// Guide is the persisted study guide generated from one uploaded source.
// JSON field names are the external contract shared with stored records
// and with the model prompt.
type Guide struct {
	ID              string         `json:"id"`
	Owner           string         `json:"owner"`
	Title           string         `json:"title" validate:"required"`
	Summary         string         `json:"summary"`
	StudyTips       []string       `json:"study_tips"`
	FlashCards      []FlashCard    `json:"flash_cards" validate:"dive"`
	Quiz            []QuizQuestion `json:"quiz" validate:"dive"`
	Topics          []Topic        `json:"topics" validate:"dive"`
	StudySchedule   []Task         `json:"study_schedule" validate:"dive"`
	PlanExplanation string         `json:"plan_explanation,omitempty"`
	CreatedAt       int64          `json:"created_at"`
	Filename        string         `json:"filename"`
	Goals           string         `json:"goals"`
	Difficulty      string         `json:"difficulty,omitempty"`
	ExamDate        string         `json:"exam_date,omitempty"`
}

// FlashCard is a question/answer pair.
type FlashCard struct {
	Front string `json:"front" validate:"required"`
	Back  string `json:"back" validate:"required"`
}

// QuizQuestion is a multiple-choice question. CorrectIndex points into
// PossibleAnswers.
type QuizQuestion struct {
	Question        string   `json:"question" validate:"required"`
	PossibleAnswers []string `json:"possible_answers" validate:"min=1"`
	CorrectIndex    int      `json:"correct_index"`
	RelatedTopic    string   `json:"related_topic,omitempty"`
}

// Topic is a subject area tagged with its difficulty.
type Topic struct {
	Name       string `json:"name" validate:"required"`
	Difficulty string `json:"difficulty" validate:"oneof=Easy Medium Hard"`
}

// GuideSummary is the listing projection of a Guide.
type GuideSummary struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Filename  string `json:"filename"`
	CreatedAt int64  `json:"created_at"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report wire names (study_schedule[2].duration_minutes) instead of Go names.
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// UnmarshalJSON accepts records written with the legacy user_id field.
func (g *Guide) UnmarshalJSON(data []byte) error {
	type guideAlias Guide
	aux := struct {
		*guideAlias
		UserID string `json:"user_id"`
	}{guideAlias: (*guideAlias)(g)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if g.Owner == "" {
		g.Owner = aux.UserID
	}
	return nil
}

// UnmarshalJSON accepts both {"front","back"} objects and the legacy
// ["question","answer"] pair form.
func (c *FlashCard) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var pair []string
		if err := json.Unmarshal(data, &pair); err != nil {
			return err
		}
		if len(pair) != 2 {
			return fmt.Errorf("flash card pair must have 2 entries, got %d", len(pair))
		}
		c.Front, c.Back = pair[0], pair[1]
		return nil
	}

	type cardAlias FlashCard
	return json.Unmarshal(data, (*cardAlias)(c))
}

// UnmarshalJSON accepts the legacy "index" name for correct_index. A
// question with neither field gets an index of -1 so validation rejects it.
func (q *QuizQuestion) UnmarshalJSON(data []byte) error {
	type questionAlias QuizQuestion
	aux := struct {
		*questionAlias
		CorrectIndex *int `json:"correct_index"`
		Index        *int `json:"index"`
	}{questionAlias: (*questionAlias)(q)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	switch {
	case aux.CorrectIndex != nil:
		q.CorrectIndex = *aux.CorrectIndex
	case aux.Index != nil:
		q.CorrectIndex = *aux.Index
	default:
		q.CorrectIndex = -1
	}
	return nil
}

// Normalize canonicalizes casing and replaces nil collections with empty
// ones so the stored JSON always carries arrays.
func (g *Guide) Normalize() {
	g.Title = strings.TrimSpace(g.Title)
	if g.StudyTips == nil {
		g.StudyTips = []string{}
	}
	if g.FlashCards == nil {
		g.FlashCards = []FlashCard{}
	}
	if g.Quiz == nil {
		g.Quiz = []QuizQuestion{}
	}
	if g.Topics == nil {
		g.Topics = []Topic{}
	}
	for i := range g.Topics {
		g.Topics[i].Difficulty = normalizeDifficulty(g.Topics[i].Difficulty)
	}
	g.StudySchedule = NormalizeSchedule(g.StudySchedule)
}

// Validate checks the guide's shape, including the quiz answer bounds.
func (g *Guide) Validate() error {
	if err := validate.Struct(g); err != nil {
		return translateValidationError(err)
	}
	for i, q := range g.Quiz {
		if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.PossibleAnswers) {
			return NewValidationError(
				fmt.Sprintf("quiz[%d].correct_index", i),
				fmt.Sprintf("must be between 0 and %d", len(q.PossibleAnswers)-1),
				nil,
			)
		}
	}
	return nil
}

// Summarize returns the listing projection of the guide.
func (g *Guide) Summarize() GuideSummary {
	return GuideSummary{
		ID:        g.ID,
		Title:     g.Title,
		Filename:  g.Filename,
		CreatedAt: g.CreatedAt,
	}
}

// IncompleteTasks returns the tasks not yet completed, in schedule order.
func (g *Guide) IncompleteTasks() []Task {
	remaining := make([]Task, 0, len(g.StudySchedule))
	for _, task := range g.StudySchedule {
		if !task.Completed {
			remaining = append(remaining, task)
		}
	}
	return remaining
}

// SetTaskCompleted flips the completion flag of the task at index.
func (g *Guide) SetTaskCompleted(index int, completed bool) error {
	if index < 0 || index >= len(g.StudySchedule) {
		return fmt.Errorf("%w: %d of %d", ErrTaskIndexOutOfRange, index, len(g.StudySchedule))
	}
	g.StudySchedule[index].Completed = completed
	return nil
}

func normalizeDifficulty(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "easy":
		return DifficultyEasy
	case "medium":
		return DifficultyMedium
	case "hard":
		return DifficultyHard
	default:
		return strings.TrimSpace(value)
	}
}

// translateValidationError converts the first validator failure into a
// ValidationError naming the wire field.
func translateValidationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	fe := fieldErrs[0]
	field := fe.Namespace()
	// Drop the root type name ("Guide.", "Replan.").
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}

	var message string
	switch fe.Tag() {
	case "required":
		message = "is required"
	case "min":
		message = "must have at least " + fe.Param() + " entries"
	case "gte":
		message = "must be at least " + fe.Param()
	case "oneof":
		message = "must be one of: " + fe.Param()
	default:
		message = "failed on " + fe.Tag()
	}
	return NewValidationError(field, message, nil)
}
