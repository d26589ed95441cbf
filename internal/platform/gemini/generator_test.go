package gemini_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/phrazzld/studyguide-api/internal/config"
	"github.com/phrazzld/studyguide-api/internal/domain"
	"github.com/phrazzld/studyguide-api/internal/generation"
	"github.com/phrazzld/studyguide-api/internal/platform/gemini"
	"github.com/phrazzld/studyguide-api/internal/platform/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

const guideJSON = `{
  "title": "Thermodynamics",
  "summary": "Energy and entropy.",
  "topics": [{"name": "Entropy", "difficulty": "Hard"}],
  "study_tips": ["Derive each law"],
  "flash_cards": [{"front": "First law?", "back": "Energy is conserved"}],
  "quiz": [{"question": "Unit of entropy?", "possible_answers": ["J/K", "W"], "correct_index": 0}],
  "study_schedule": [{"day_offset": 0, "title": "Study: Entropy", "duration_minutes": 45, "type": "learning"}]
}`

// fakeModels is a ModelsClient whose behavior is set per test.
type fakeModels struct {
	mu         sync.Mutex
	calls      int
	models     []string
	contents   [][]*genai.Content
	configs    []*genai.GenerateContentConfig
	GenerateFn func(call int) (*genai.GenerateContentResponse, error)
	ListFn     func() (genai.Page[genai.Model], error)
}

func (f *fakeModels) GenerateContent(
	_ context.Context,
	model string,
	contents []*genai.Content,
	cfg *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.models = append(f.models, model)
	f.contents = append(f.contents, contents)
	f.configs = append(f.configs, cfg)
	f.mu.Unlock()
	return f.GenerateFn(call)
}

func (f *fakeModels) List(context.Context, *genai.ListModelsConfig) (genai.Page[genai.Model], error) {
	return f.ListFn()
}

func (f *fakeModels) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeModels) promptText(call int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var sb strings.Builder
	for _, content := range f.contents[call] {
		for _, part := range content.Parts {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

type harness struct {
	generator *gemini.Generator
	fake      *fakeModels
	keys      []string
	sleeps    []time.Duration
	metrics   *metrics.Metrics
	sleepErr  error
	mu        sync.Mutex
}

func (h *harness) factoryKeys() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.keys...)
}

func newHarness(t *testing.T, cfg config.LLMConfig, fake *fakeModels) *harness {
	t.Helper()

	h := &harness{fake: fake, metrics: metrics.New(prometheus.NewRegistry())}
	if cfg.ModelName == "" {
		cfg.ModelName = "gemini-2.5-flash-lite"
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelaySeconds == 0 {
		cfg.RetryDelaySeconds = 2
	}

	generator, err := gemini.NewGenerator(
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		cfg,
		gemini.WithClientFactory(func(_ context.Context, apiKey string) (gemini.ModelsClient, error) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.keys = append(h.keys, apiKey)
			return fake, nil
		}),
		gemini.WithMetrics(h.metrics),
		gemini.WithSleep(func(_ context.Context, d time.Duration) error {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.sleeps = append(h.sleeps, d)
			return h.sleepErr
		}),
		gemini.WithJitter(func() float64 { return 0.5 }),
	)
	require.NoError(t, err)
	h.generator = generator
	return h
}

func TestNewGeneratorRequiresModel(t *testing.T) {
	t.Parallel()

	_, err := gemini.NewGenerator(slog.New(slog.NewTextHandler(io.Discard, nil)), config.LLMConfig{})
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)

	_, err = gemini.NewGenerator(nil, config.LLMConfig{ModelName: "m"})
	assert.Error(t, err)
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	fake := &fakeModels{GenerateFn: func(int) (*genai.GenerateContentResponse, error) {
		return textResponse("```json\n" + guideJSON + "\n```"), nil
	}}
	h := newHarness(t, config.LLMConfig{}, fake)

	guide, err := h.generator.Generate(context.Background(), generation.GenerateRequest{
		Credential: "request-key-123456",
		Transcript: "Entropy always increases in an isolated system.",
		Goals:      "Ace the final",
	})

	require.NoError(t, err)
	assert.Equal(t, "Thermodynamics", guide.Title)
	assert.Equal(t, domain.TaskTypeLearning, guide.StudySchedule[0].Type)

	require.Equal(t, 1, fake.callCount())
	assert.Equal(t, "gemini-2.5-flash-lite", fake.models[0])
	require.NotNil(t, fake.configs[0])
	assert.Equal(t, "application/json", fake.configs[0].ResponseMIMEType)
	assert.Contains(t, fake.promptText(0), "Entropy always increases")
	assert.Contains(t, fake.promptText(0), "Ace the final")

	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.GenerationRequests.WithLabelValues("generate", metrics.OutcomeSuccess)))
}

func TestCredentialResolution(t *testing.T) {
	t.Parallel()

	ok := func(int) (*genai.GenerateContentResponse, error) { return textResponse("Keep going!"), nil }

	t.Run("request credential wins", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, config.LLMConfig{GeminiAPIKey: "configured-key"}, &fakeModels{GenerateFn: ok})
		_, err := h.generator.Motivate(context.Background(), generation.MotivateRequest{Credential: " request-key ", Total: 1})
		require.NoError(t, err)
		assert.Equal(t, []string{"request-key"}, h.factoryKeys())
	})

	t.Run("falls back to configured key", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, config.LLMConfig{GeminiAPIKey: "configured-key"}, &fakeModels{GenerateFn: ok})
		_, err := h.generator.Motivate(context.Background(), generation.MotivateRequest{Total: 1})
		require.NoError(t, err)
		assert.Equal(t, []string{"configured-key"}, h.factoryKeys())
	})

	t.Run("missing everywhere", func(t *testing.T) {
		t.Parallel()
		fake := &fakeModels{GenerateFn: ok}
		h := newHarness(t, config.LLMConfig{}, fake)
		_, err := h.generator.Motivate(context.Background(), generation.MotivateRequest{Total: 1})
		assert.ErrorIs(t, err, generation.ErrCredentialMissing)
		assert.Empty(t, h.factoryKeys())
		assert.Zero(t, fake.callCount())
	})

	t.Run("clients are cached per key", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, config.LLMConfig{}, &fakeModels{GenerateFn: ok})
		for _, key := range []string{"key-a", "key-a", "key-b", "key-a"} {
			_, err := h.generator.Motivate(context.Background(), generation.MotivateRequest{Credential: key, Total: 1})
			require.NoError(t, err)
		}
		assert.Equal(t, []string{"key-a", "key-b"}, h.factoryKeys())
	})
}

func TestRetryPolicy(t *testing.T) {
	t.Parallel()

	t.Run("retries rate limits then succeeds", func(t *testing.T) {
		t.Parallel()
		fake := &fakeModels{GenerateFn: func(call int) (*genai.GenerateContentResponse, error) {
			if call < 3 {
				return nil, genai.APIError{Code: http.StatusTooManyRequests, Status: "RESOURCE_EXHAUSTED"}
			}
			return textResponse("Nice streak!"), nil
		}}
		h := newHarness(t, config.LLMConfig{GeminiAPIKey: "k"}, fake)

		msg, err := h.generator.Motivate(context.Background(), generation.MotivateRequest{Completed: 1, Total: 2})

		require.NoError(t, err)
		assert.Equal(t, "Nice streak!", msg)
		assert.Equal(t, 3, fake.callCount())
		// base 2s, jitter 0.5: 1s then 2s
		assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, h.sleeps)
		assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.GenerationRetries.WithLabelValues("motivate")))
	})

	t.Run("exhausts retries on unavailable", func(t *testing.T) {
		t.Parallel()
		fake := &fakeModels{GenerateFn: func(int) (*genai.GenerateContentResponse, error) {
			return nil, genai.APIError{Code: http.StatusServiceUnavailable, Status: "UNAVAILABLE", Message: "overloaded"}
		}}
		h := newHarness(t, config.LLMConfig{GeminiAPIKey: "k"}, fake)

		_, err := h.generator.Generate(context.Background(), generation.GenerateRequest{Transcript: "t"})

		assert.ErrorIs(t, err, generation.ErrTransientFailure)
		assert.Equal(t, 3, fake.callCount())
		assert.Len(t, h.sleeps, 2, "no wait after the final attempt")
		assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.GenerationRequests.WithLabelValues("generate", metrics.OutcomeError)))
	})

	t.Run("does not retry terminal errors", func(t *testing.T) {
		t.Parallel()
		fake := &fakeModels{GenerateFn: func(int) (*genai.GenerateContentResponse, error) {
			return nil, genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL", Message: "boom"}
		}}
		h := newHarness(t, config.LLMConfig{GeminiAPIKey: "k"}, fake)

		_, err := h.generator.Generate(context.Background(), generation.GenerateRequest{Transcript: "t"})

		assert.ErrorIs(t, err, generation.ErrUpstream)
		var upstream *generation.UpstreamError
		require.True(t, errors.As(err, &upstream))
		assert.Equal(t, http.StatusInternalServerError, upstream.Code)
		assert.Equal(t, "INTERNAL", upstream.Status)
		assert.Equal(t, 1, fake.callCount())
		assert.Empty(t, h.sleeps)
	})

	t.Run("does not retry transport errors", func(t *testing.T) {
		t.Parallel()
		cause := errors.New("dial tcp: connection refused")
		fake := &fakeModels{GenerateFn: func(int) (*genai.GenerateContentResponse, error) {
			return nil, cause
		}}
		h := newHarness(t, config.LLMConfig{GeminiAPIKey: "k"}, fake)

		_, err := h.generator.Generate(context.Background(), generation.GenerateRequest{Transcript: "t"})

		assert.ErrorIs(t, err, generation.ErrUpstream)
		assert.ErrorIs(t, err, cause)
		assert.NotErrorIs(t, err, generation.ErrTransientFailure)
		var upstream *generation.UpstreamError
		require.True(t, errors.As(err, &upstream))
		assert.Zero(t, upstream.Code)
		assert.Equal(t, 1, fake.callCount())
		assert.Empty(t, h.sleeps)
		assert.Zero(t, testutil.ToFloat64(h.metrics.GenerationRetries.WithLabelValues("generate")))
	})

	t.Run("cancellation during wait", func(t *testing.T) {
		t.Parallel()
		fake := &fakeModels{GenerateFn: func(int) (*genai.GenerateContentResponse, error) {
			return nil, genai.APIError{Code: http.StatusTooManyRequests}
		}}
		h := newHarness(t, config.LLMConfig{GeminiAPIKey: "k"}, fake)
		h.sleepErr = context.Canceled

		_, err := h.generator.Motivate(context.Background(), generation.MotivateRequest{Total: 1})

		assert.ErrorIs(t, err, generation.ErrTransientFailure)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, fake.callCount())
	})
}

func TestCredentialRejected(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  genai.APIError
	}{
		{name: "bad request naming the key", err: genai.APIError{Code: 400, Status: "INVALID_ARGUMENT", Message: "API key not valid. Please pass a valid API key."}},
		{name: "unauthorized", err: genai.APIError{Code: 401, Status: "UNAUTHENTICATED"}},
		{name: "forbidden", err: genai.APIError{Code: 403, Status: "PERMISSION_DENIED"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fake := &fakeModels{GenerateFn: func(int) (*genai.GenerateContentResponse, error) { return nil, tt.err }}
			h := newHarness(t, config.LLMConfig{}, fake)

			_, err := h.generator.Generate(context.Background(), generation.GenerateRequest{Credential: "bad", Transcript: "t"})

			assert.ErrorIs(t, err, generation.ErrCredentialRejected)
			assert.Equal(t, 1, fake.callCount())
		})
	}

	t.Run("other bad requests are upstream errors", func(t *testing.T) {
		t.Parallel()
		fake := &fakeModels{GenerateFn: func(int) (*genai.GenerateContentResponse, error) {
			return nil, genai.APIError{Code: 400, Status: "INVALID_ARGUMENT", Message: "prompt too long"}
		}}
		h := newHarness(t, config.LLMConfig{}, fake)
		_, err := h.generator.Generate(context.Background(), generation.GenerateRequest{Credential: "k", Transcript: "t"})
		assert.ErrorIs(t, err, generation.ErrUpstream)
		assert.NotErrorIs(t, err, generation.ErrCredentialRejected)
	})
}

func TestResponseHandling(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		resp    *genai.GenerateContentResponse
		wantErr error
	}{
		{
			name: "safety block",
			resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonSafety}}},
			wantErr: generation.ErrContentBlocked,
		},
		{
			name: "prompt blocked",
			resp: &genai.GenerateContentResponse{
				PromptFeedback: &genai.GenerateContentResponsePromptFeedback{BlockReason: "SAFETY"},
			},
			wantErr: generation.ErrContentBlocked,
		},
		{name: "no candidates", resp: &genai.GenerateContentResponse{}, wantErr: generation.ErrInvalidResponse},
		{name: "empty text", resp: textResponse("   "), wantErr: generation.ErrInvalidResponse},
		{name: "prose instead of json", resp: textResponse("Here is your guide!"), wantErr: generation.ErrInvalidResponse},
		{name: "schema violation", resp: textResponse(`{"summary":"no title"}`), wantErr: generation.ErrSchemaViolation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fake := &fakeModels{GenerateFn: func(int) (*genai.GenerateContentResponse, error) { return tt.resp, nil }}
			h := newHarness(t, config.LLMConfig{GeminiAPIKey: "k"}, fake)

			guide, err := h.generator.Generate(context.Background(), generation.GenerateRequest{Transcript: "t"})

			assert.Nil(t, guide)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 1, fake.callCount(), "response errors are not retried")
		})
	}

	t.Run("raw text is kept on parse failure", func(t *testing.T) {
		t.Parallel()
		fake := &fakeModels{GenerateFn: func(int) (*genai.GenerateContentResponse, error) {
			return textResponse("not json at all"), nil
		}}
		h := newHarness(t, config.LLMConfig{GeminiAPIKey: "k"}, fake)

		_, err := h.generator.Generate(context.Background(), generation.GenerateRequest{Transcript: "t"})

		var respErr *generation.ResponseError
		require.True(t, errors.As(err, &respErr))
		assert.Equal(t, "not json at all", respErr.Raw)
	})
}

func TestReplan(t *testing.T) {
	t.Parallel()

	fake := &fakeModels{GenerateFn: func(int) (*genai.GenerateContentResponse, error) {
		return textResponse(`{"study_schedule":[{"day_offset":3,"title":"Catch up: Entropy","duration_minutes":30,"type":"revision"}]}`), nil
	}}
	h := newHarness(t, config.LLMConfig{GeminiAPIKey: "k"}, fake)

	guide := &domain.Guide{
		Title: "Thermodynamics",
		StudySchedule: []domain.Task{
			{DayOffset: 0, Title: "Study: Entropy", DurationMinutes: 45, Type: domain.TaskTypeLearning},
		},
	}
	replan, err := h.generator.Replan(context.Background(), generation.ReplanRequest{
		Guide:     guide,
		Remaining: guide.IncompleteTasks(),
		Reason:    "I was sick",
	})

	require.NoError(t, err)
	assert.Equal(t, domain.DefaultPlanExplanation, replan.PlanExplanation)
	require.Len(t, replan.StudySchedule, 1)
	assert.Equal(t, domain.TaskTypeRevision, replan.StudySchedule[0].Type)
	assert.Contains(t, fake.promptText(0), "'I was sick'")
	assert.Equal(t, "application/json", fake.configs[0].ResponseMIMEType)
}

func TestMotivateUsesPlainText(t *testing.T) {
	t.Parallel()

	fake := &fakeModels{GenerateFn: func(int) (*genai.GenerateContentResponse, error) {
		return textResponse("  Halfway there, keep the momentum!  \n"), nil
	}}
	h := newHarness(t, config.LLMConfig{GeminiAPIKey: "k"}, fake)

	msg, err := h.generator.Motivate(context.Background(), generation.MotivateRequest{Completed: 5, Total: 10})

	require.NoError(t, err)
	assert.Equal(t, "Halfway there, keep the momentum!", msg)
	assert.Nil(t, fake.configs[0])
	assert.Contains(t, fake.promptText(0), "5 out of 10")
}

func TestTranscribe(t *testing.T) {
	t.Parallel()

	fake := &fakeModels{GenerateFn: func(int) (*genai.GenerateContentResponse, error) {
		return textResponse("Today we cover the second law.\n"), nil
	}}
	h := newHarness(t, config.LLMConfig{GeminiAPIKey: "k"}, fake)

	text, err := h.generator.Transcribe(context.Background(), generation.TranscribeRequest{
		Data:     []byte("ID3fake-mp3"),
		MIMEType: "audio/mpeg",
	})

	require.NoError(t, err)
	assert.Equal(t, "Today we cover the second law.", text)

	require.Len(t, fake.contents[0], 1)
	var inline *genai.Blob
	for _, part := range fake.contents[0][0].Parts {
		if part.InlineData != nil {
			inline = part.InlineData
		}
	}
	require.NotNil(t, inline)
	assert.Equal(t, "audio/mpeg", inline.MIMEType)
	assert.Equal(t, []byte("ID3fake-mp3"), inline.Data)

	_, err = h.generator.Transcribe(context.Background(), generation.TranscribeRequest{MIMEType: "audio/mpeg"})
	assert.Error(t, err)
}

func TestListModels(t *testing.T) {
	t.Parallel()

	fake := &fakeModels{ListFn: func() (genai.Page[genai.Model], error) {
		return genai.Page[genai.Model]{Items: []*genai.Model{
			{Name: "models/gemini-2.5-flash", DisplayName: "Gemini 2.5 Flash", SupportedActions: []string{"generateContent", "countTokens"}},
			{Name: "models/text-embedding-004", DisplayName: "Embedding", SupportedActions: []string{"embedContent"}},
		}}, nil
	}}
	h := newHarness(t, config.LLMConfig{GeminiAPIKey: "k"}, fake)

	models, err := h.generator.ListModels(context.Background(), "")

	require.NoError(t, err)
	assert.Equal(t, []generation.ModelInfo{{Name: "models/gemini-2.5-flash", DisplayName: "Gemini 2.5 Flash"}}, models)
}

func TestListModelsRejectedKey(t *testing.T) {
	t.Parallel()

	fake := &fakeModels{ListFn: func() (genai.Page[genai.Model], error) {
		return genai.Page[genai.Model]{}, genai.APIError{Code: 403, Status: "PERMISSION_DENIED"}
	}}
	h := newHarness(t, config.LLMConfig{}, fake)

	_, err := h.generator.ListModels(context.Background(), "bad-key")
	assert.ErrorIs(t, err, generation.ErrCredentialRejected)

	_, err = h.generator.ListModels(context.Background(), "")
	assert.ErrorIs(t, err, generation.ErrCredentialMissing)
}
