package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/phrazzld/studyguide-api/internal/api/shared"
	"github.com/phrazzld/studyguide-api/internal/platform/logger"
	"github.com/phrazzld/studyguide-api/internal/service"
)

// multipartMemory is the part of an upload held in memory before the
// multipart reader spills to temporary files.
const multipartMemory = 8 << 20

// DefaultMaxUploadBytes bounds upload bodies when no limit is configured.
const DefaultMaxUploadBytes = 25 << 20

// GuideHandler handles study guide HTTP requests
type GuideHandler struct {
	guideService   service.GuideService
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewGuideHandler creates a new GuideHandler. A non-positive maxUploadBytes
// uses DefaultMaxUploadBytes.
func NewGuideHandler(
	guideService service.GuideService,
	maxUploadBytes int64,
	logger *slog.Logger,
) *GuideHandler {
	if guideService == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("guideService cannot be nil for GuideHandler")
	}
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for GuideHandler")
	}
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}

	return &GuideHandler{
		guideService:   guideService,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.With(slog.String("component", "guide_handler")),
	}
}

// UploadGuide handles POST /api/upload requests.
// It turns an uploaded document or recording into a stored study guide.
func (h *GuideHandler) UploadGuide(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			HandleAPIError(w, r, fmt.Errorf("%w: limit is %d bytes", ErrUploadTooLarge, maxErr.Limit), "")
			return
		}
		log.Debug("invalid multipart upload", slog.String("error", err.Error()))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid upload format")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "No file provided")
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to read upload")
		return
	}

	log.Info("upload received",
		slog.String("filename", header.Filename),
		slog.Int("size", len(data)))

	guide, err := h.guideService.CreateGuide(r.Context(), service.CreateGuideRequest{
		Filename:   header.Filename,
		Data:       data,
		Goals:      r.FormValue("goals"),
		Difficulty: r.FormValue("difficulty"),
		ExamDate:   r.FormValue("exam_date"),
		Credential: credentialFromRequest(r, r.FormValue("api_key")),
		Owner:      ownerFromRequest(r, r.FormValue("user_id")),
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create study guide")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, guide)
}

// ListGuides handles GET /api/guides requests
func (h *GuideHandler) ListGuides(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromRequest(r, r.URL.Query().Get("user_id"))

	summaries, err := h.guideService.ListGuides(r.Context(), owner)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list guides")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, GuidesResponse{Guides: summaries})
}

// GetGuide handles GET /api/guide/{id} requests
func (h *GuideHandler) GetGuide(w http.ResponseWriter, r *http.Request) {
	id, err := getPathID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	guide, err := h.guideService.GetGuide(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get guide")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, guide)
}

// UpdateProgress handles PUT /api/guide/{id}/progress requests
func (h *GuideHandler) UpdateProgress(w http.ResponseWriter, r *http.Request) {
	id, err := getPathID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	var req ProgressRequest
	if !decodeRequest(w, r, &req, false) {
		return
	}

	schedule, err := h.guideService.UpdateProgress(r.Context(), id, *req.Index, req.Completed)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update progress")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, ProgressResponse{Success: true, StudySchedule: schedule})
}

// Replan handles POST /api/guide/{id}/replan requests
func (h *GuideHandler) Replan(w http.ResponseWriter, r *http.Request) {
	id, err := getPathID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	var req ReplanRequest
	if !decodeRequest(w, r, &req, true) {
		return
	}

	result, err := h.guideService.Replan(r.Context(), id, req.MissedReason, credentialFromRequest(r, req.APIKey))
	if err != nil {
		HandleAPIError(w, r, err, "Failed to replan schedule")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, result)
}

// DeleteGuide handles DELETE /api/guide/{id} requests.
// Deleting a guide that does not exist succeeds.
func (h *GuideHandler) DeleteGuide(w http.ResponseWriter, r *http.Request) {
	id, err := getPathID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	if err := h.guideService.DeleteGuide(r.Context(), id); err != nil {
		HandleAPIError(w, r, err, "Failed to delete guide")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, SuccessResponse{Success: true})
}

// Motivate handles POST /api/motivation requests
func (h *GuideHandler) Motivate(w http.ResponseWriter, r *http.Request) {
	var req MotivationRequest
	if !decodeRequest(w, r, &req, false) {
		return
	}

	message, err := h.guideService.Motivate(r.Context(), *req.CompletedCount, *req.TotalCount,
		credentialFromRequest(r, req.APIKey))
	if err != nil {
		HandleAPIError(w, r, err, "Failed to generate message")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, MotivationResponse{Message: message})
}

// ListModels handles GET /api/models requests
func (h *GuideHandler) ListModels(w http.ResponseWriter, r *http.Request) {
	models, err := h.guideService.ListModels(r.Context(), credentialFromRequest(r, r.URL.Query().Get("api_key")))
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list models")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, ModelsResponse{Models: models})
}

