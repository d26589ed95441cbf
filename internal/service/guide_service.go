package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/studyguide-api/internal/domain"
	"github.com/phrazzld/studyguide-api/internal/extract"
	"github.com/phrazzld/studyguide-api/internal/generation"
	"github.com/phrazzld/studyguide-api/internal/platform/logger"
	"github.com/phrazzld/studyguide-api/internal/redact"
	"github.com/phrazzld/studyguide-api/internal/store"
)

// MaxInlineMediaBytes is the largest media payload sent for transcription.
const MaxInlineMediaBytes = 20 << 20

// CreateGuideRequest carries an uploaded source and its study preferences.
type CreateGuideRequest struct {
	Filename   string
	Data       []byte
	Goals      string
	Difficulty string
	ExamDate   string
	Credential string
	Owner      string
}

// ReplanResult is the stored schedule after a replan.
type ReplanResult struct {
	StudySchedule   []domain.Task `json:"study_schedule"`
	PlanExplanation string        `json:"plan_explanation"`
}

// GuideService provides study guide operations.
type GuideService interface {
	// CreateGuide extracts the source text, generates a guide and stores it.
	// Nothing is stored when generation fails.
	CreateGuide(ctx context.Context, req CreateGuideRequest) (*domain.Guide, error)

	// GetGuide returns a stored guide or ErrGuideNotFound.
	GetGuide(ctx context.Context, id string) (*domain.Guide, error)

	// ListGuides returns the owner's guides, newest first.
	ListGuides(ctx context.Context, owner string) ([]domain.GuideSummary, error)

	// UpdateProgress marks one schedule task and returns the stored schedule.
	UpdateProgress(ctx context.Context, id string, index int, completed bool) ([]domain.Task, error)

	// Replan regenerates the incomplete tasks, keeping completed ones.
	Replan(ctx context.Context, id, reason, credential string) (*ReplanResult, error)

	// DeleteGuide removes a guide; deleting a missing guide succeeds.
	DeleteGuide(ctx context.Context, id string) error

	// Motivate returns an encouragement for the given progress.
	Motivate(ctx context.Context, completed, total int, credential string) (string, error)

	// ListModels returns the generation models available to the credential.
	ListModels(ctx context.Context, credential string) ([]generation.ModelInfo, error)
}

// Option configures the guide service.
type Option func(*guideServiceImpl)

// WithArchive keeps copies of uploaded sources in archive.
func WithArchive(archive Archive) Option {
	return func(s *guideServiceImpl) { s.archive = archive }
}

// WithMediaTranscription enables transcribing audio and video uploads.
func WithMediaTranscription(enabled bool) Option {
	return func(s *guideServiceImpl) { s.transcribeMedia = enabled }
}

// WithClock replaces the time source used for created_at.
func WithClock(now func() time.Time) Option {
	return func(s *guideServiceImpl) { s.now = now }
}

// WithIDGenerator replaces the guide id source.
func WithIDGenerator(newID func() string) Option {
	return func(s *guideServiceImpl) { s.newID = newID }
}

type guideServiceImpl struct {
	store           store.GuideStore
	generator       generation.Generator
	extractor       Extractor
	archive         Archive
	transcribeMedia bool
	now             func() time.Time
	newID           func() string
	logger          *slog.Logger
}

// NewGuideService creates a GuideService.
// It returns an error if any of the required dependencies are nil.
func NewGuideService(
	guideStore store.GuideStore,
	generator generation.Generator,
	extractor Extractor,
	logger *slog.Logger,
	opts ...Option,
) (GuideService, error) {
	if guideStore == nil {
		return nil, &GuideServiceError{Operation: "create_service", Message: "guideStore cannot be nil"}
	}
	if generator == nil {
		return nil, &GuideServiceError{Operation: "create_service", Message: "generator cannot be nil"}
	}
	if extractor == nil {
		return nil, &GuideServiceError{Operation: "create_service", Message: "extractor cannot be nil"}
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &guideServiceImpl{
		store:     guideStore,
		generator: generator,
		extractor: extractor,
		now:       time.Now,
		newID:     uuid.NewString,
		logger:    logger.With("component", "guide_service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *guideServiceImpl) CreateGuide(ctx context.Context, req CreateGuideRequest) (*domain.Guide, error) {
	log := s.log(ctx).With("filename", req.Filename, "size", len(req.Data))

	if len(req.Data) == 0 {
		return nil, domain.NewValidationError("file", "is required", nil)
	}
	difficulty := strings.TrimSpace(req.Difficulty)
	if difficulty == "" {
		difficulty = generation.DefaultDifficulty
	}
	owner := domain.OwnerOrAnonymous(req.Owner)

	transcript, err := s.transcript(ctx, req)
	if err != nil {
		log.Warn("could not read uploaded source", "error", redact.Error(err))
		return nil, NewGuideServiceError("create_guide", "failed to read source", err)
	}

	guide, err := s.generator.Generate(ctx, generation.GenerateRequest{
		Credential: req.Credential,
		Transcript: transcript,
		Goals:      req.Goals,
		Difficulty: difficulty,
		ExamDate:   req.ExamDate,
	})
	if err != nil {
		log.Error("guide generation failed", "error", redact.Error(err))
		return nil, NewGuideServiceError("create_guide", "failed to generate guide", err)
	}

	guide.ID = s.newID()
	guide.CreatedAt = s.now().UnixMilli()
	guide.Owner = owner
	guide.Filename = req.Filename
	guide.Goals = req.Goals
	guide.Difficulty = difficulty
	guide.ExamDate = req.ExamDate

	if err := s.store.Put(ctx, guide); err != nil {
		log.Error("failed to store guide", "guide_id", guide.ID, "error", redact.Error(err))
		return nil, NewGuideServiceError("create_guide", "failed to store guide", err)
	}

	if s.archive != nil {
		if err := s.archive.Put(ctx, guide.ID, req.Filename, req.Data); err != nil {
			log.Warn("failed to archive source", "guide_id", guide.ID, "error", redact.Error(err))
		}
	}

	log.Info("guide created",
		"guide_id", guide.ID,
		"tasks", len(guide.StudySchedule),
		"flash_cards", len(guide.FlashCards))
	return guide, nil
}

// transcript returns the text to generate from: extracted document text, or
// a transcription of audio and video uploads.
func (s *guideServiceImpl) transcript(ctx context.Context, req CreateGuideRequest) (string, error) {
	result, err := s.extractor.Extract(req.Filename, req.Data)
	if err != nil {
		if errors.Is(err, extract.ErrUnsupportedFormat) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}

	if !result.Media {
		if strings.TrimSpace(result.Text) == "" {
			return "", ErrExtractionFailed
		}
		return result.Text, nil
	}

	if !s.transcribeMedia {
		s.log(ctx).Info("media upload without transcription", "mime_type", result.MIMEType)
		return result.Text, nil
	}
	if len(req.Data) > MaxInlineMediaBytes {
		return "", ErrMediaTooLarge
	}

	text, err := s.generator.Transcribe(ctx, generation.TranscribeRequest{
		Credential: req.Credential,
		Data:       req.Data,
		MIMEType:   result.MIMEType,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrExtractionFailed
	}
	return text, nil
}

func (s *guideServiceImpl) GetGuide(ctx context.Context, id string) (*domain.Guide, error) {
	guide, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, NewGuideServiceError("get_guide", "failed to load guide", err)
	}
	return guide, nil
}

func (s *guideServiceImpl) ListGuides(ctx context.Context, owner string) ([]domain.GuideSummary, error) {
	guides, err := s.store.ListByOwner(ctx, domain.OwnerOrAnonymous(owner))
	if err != nil {
		return nil, NewGuideServiceError("list_guides", "failed to list guides", err)
	}

	summaries := make([]domain.GuideSummary, 0, len(guides))
	for _, g := range guides {
		summaries = append(summaries, g.Summarize())
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt > summaries[j].CreatedAt
	})
	return summaries, nil
}

func (s *guideServiceImpl) UpdateProgress(ctx context.Context, id string, index int, completed bool) ([]domain.Task, error) {
	updated, err := s.store.Update(ctx, id, func(g *domain.Guide) error {
		return g.SetTaskCompleted(index, completed)
	})
	if err != nil {
		return nil, NewGuideServiceError("update_progress", "failed to update progress", err)
	}

	s.log(ctx).Debug("progress updated", "guide_id", id, "index", index, "completed", completed)
	return updated.StudySchedule, nil
}

func (s *guideServiceImpl) Replan(ctx context.Context, id, reason, credential string) (*ReplanResult, error) {
	log := s.log(ctx).With("guide_id", id)

	guide, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, NewGuideServiceError("replan", "failed to load guide", err)
	}

	today := guide.DayOffsetAt(s.now())
	replan, err := s.generator.Replan(ctx, generation.ReplanRequest{
		Credential: credential,
		Guide:      guide,
		Remaining:  guide.IncompleteTasks(),
		Reason:     reason,
		Today:      today,
	})
	if err != nil {
		log.Error("replan generation failed", "error", redact.Error(err))
		return nil, NewGuideServiceError("replan", "failed to regenerate schedule", err)
	}

	// Merge against the freshest record so progress saved while the model
	// was working is kept.
	updated, err := s.store.Update(ctx, id, func(g *domain.Guide) error {
		g.StudySchedule = domain.MergeReplan(g.StudySchedule, replan.StudySchedule, today)
		g.PlanExplanation = replan.PlanExplanation
		return nil
	})
	if err != nil {
		return nil, NewGuideServiceError("replan", "failed to store schedule", err)
	}

	log.Info("guide replanned", "tasks", len(updated.StudySchedule))
	return &ReplanResult{
		StudySchedule:   updated.StudySchedule,
		PlanExplanation: updated.PlanExplanation,
	}, nil
}

func (s *guideServiceImpl) DeleteGuide(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return NewGuideServiceError("delete_guide", "failed to delete guide", err)
	}
	if s.archive != nil {
		if err := s.archive.Delete(ctx, id); err != nil {
			s.log(ctx).Warn("failed to delete archived source", "guide_id", id, "error", redact.Error(err))
		}
	}
	return nil
}

func (s *guideServiceImpl) Motivate(ctx context.Context, completed, total int, credential string) (string, error) {
	if completed < 0 || total < 0 || completed > total {
		return "", domain.NewValidationError("completed_count",
			"must be between 0 and total_count", ErrInvalidProgress)
	}

	message, err := s.generator.Motivate(ctx, generation.MotivateRequest{
		Credential: credential,
		Completed:  completed,
		Total:      total,
	})
	if err != nil {
		return "", NewGuideServiceError("motivate", "failed to generate message", err)
	}
	return message, nil
}

func (s *guideServiceImpl) ListModels(ctx context.Context, credential string) ([]generation.ModelInfo, error) {
	models, err := s.generator.ListModels(ctx, credential)
	if err != nil {
		return nil, NewGuideServiceError("list_models", "failed to list models", err)
	}
	return models, nil
}

func (s *guideServiceImpl) log(ctx context.Context) *slog.Logger {
	return logger.FromContextOrDefault(ctx, s.logger)
}

