package generation

import (
	"encoding/json"
	"fmt"

	"github.com/phrazzld/studyguide-api/internal/domain"
)

// DecodeGuide parses raw model output into a normalized, validated guide.
// Unparseable text yields a *ResponseError; a parsed guide with an invalid
// shape yields an error wrapping ErrSchemaViolation and the domain
// validation error.
func DecodeGuide(raw string) (*domain.Guide, error) {
	var guide domain.Guide
	if err := json.Unmarshal([]byte(StripCodeFence(raw)), &guide); err != nil {
		return nil, &ResponseError{Raw: raw, Err: err}
	}

	// Identity and provenance are assigned by the service, never the model.
	guide.ID = ""
	guide.Owner = ""
	guide.CreatedAt = 0
	guide.PlanExplanation = ""
	for i := range guide.StudySchedule {
		guide.StudySchedule[i].Completed = false
	}

	guide.Normalize()
	if err := guide.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSchemaViolation, err)
	}
	return &guide, nil
}

// DecodeReplan parses raw model output into a validated replan. A missing
// explanation is replaced with domain.DefaultPlanExplanation.
func DecodeReplan(raw string) (*domain.Replan, error) {
	var replan domain.Replan
	if err := json.Unmarshal([]byte(StripCodeFence(raw)), &replan); err != nil {
		return nil, &ResponseError{Raw: raw, Err: err}
	}

	replan.Normalize()
	if err := replan.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSchemaViolation, err)
	}
	return &replan, nil
}
