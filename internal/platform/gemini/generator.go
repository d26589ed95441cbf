package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/phrazzld/studyguide-api/internal/config"
	"github.com/phrazzld/studyguide-api/internal/domain"
	"github.com/phrazzld/studyguide-api/internal/generation"
	"github.com/phrazzld/studyguide-api/internal/platform/logger"
	"github.com/phrazzld/studyguide-api/internal/platform/metrics"
	"github.com/phrazzld/studyguide-api/internal/redact"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// Operation names used in logs and metric labels.
const (
	opGenerate   = "generate"
	opReplan     = "replan"
	opMotivate   = "motivate"
	opTranscribe = "transcribe"
	opListModels = "list_models"
)

const (
	defaultMaxRetries        = 3
	defaultRetryDelaySeconds = 2
	generateContentAction    = "generateContent"
)

// Generator implements generation.Generator on top of the Gemini API.
type Generator struct {
	logger  *slog.Logger
	config  config.LLMConfig
	prompts *generation.Prompts
	metrics *metrics.Metrics
	limiter *rate.Limiter
	factory ClientFactory

	// sleep waits between retries; it returns early with the context error.
	sleep func(ctx context.Context, d time.Duration) error
	// jitter returns a factor in [0.5, 1.0).
	jitter func() float64

	mu      sync.Mutex
	clients map[string]ModelsClient
}

var _ generation.Generator = (*Generator)(nil)

// Option configures a Generator.
type Option func(*Generator)

// WithClientFactory replaces the factory used to build Gemini clients.
func WithClientFactory(factory ClientFactory) Option {
	return func(g *Generator) { g.factory = factory }
}

// WithMetrics records generation metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Generator) { g.metrics = m }
}

// WithSleep replaces the retry wait function.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(g *Generator) { g.sleep = sleep }
}

// WithJitter replaces the backoff jitter source.
func WithJitter(jitter func() float64) Option {
	return func(g *Generator) { g.jitter = jitter }
}

// NewGenerator creates a Gemini-backed generator. The configured API key may
// be empty when every request is expected to bring its own.
func NewGenerator(logger *slog.Logger, cfg config.LLMConfig, opts ...Option) (*Generator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}

	log := logger.With("component", "gemini_generator")
	if cfg.MaxRetries < 1 {
		log.Warn("invalid max retries value, using default", "max_retries", defaultMaxRetries)
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryDelaySeconds < 1 {
		log.Warn("invalid retry delay value, using default", "retry_delay_seconds", defaultRetryDelaySeconds)
		cfg.RetryDelaySeconds = defaultRetryDelaySeconds
	}

	prompts, err := generation.LoadPrompts()
	if err != nil {
		return nil, err
	}

	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
	}

	g := &Generator{
		logger:  log,
		config:  cfg,
		prompts: prompts,
		limiter: rate.NewLimiter(limit, 1),
		factory: NewClientFactory(),
		sleep:   sleepContext,
		jitter:  func() float64 { return 0.5 + rand.Float64()*0.5 },
		clients: make(map[string]ModelsClient),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.metrics == nil {
		g.metrics = metrics.New(prometheus.NewRegistry())
	}

	log.Info("gemini generator initialized",
		"model", cfg.ModelName,
		"max_retries", cfg.MaxRetries,
		"requests_per_minute", cfg.RequestsPerMinute,
		"fallback_key_configured", cfg.GeminiAPIKey != "")
	return g, nil
}

// Generate builds a study guide from the request transcript.
func (g *Generator) Generate(ctx context.Context, req generation.GenerateRequest) (guide *domain.Guide, err error) {
	defer g.observe(opGenerate, time.Now(), &err)

	apiKey, err := g.resolveKey(req.Credential)
	if err != nil {
		return nil, err
	}
	prompt, err := g.prompts.Guide(req, g.config.MaxTranscriptChars)
	if err != nil {
		return nil, err
	}

	text, err := g.call(ctx, opGenerate, apiKey, genai.Text(prompt), jsonResponseConfig())
	if err != nil {
		return nil, err
	}

	guide, err = generation.DecodeGuide(text)
	if err != nil {
		g.logFromContext(ctx).WarnContext(ctx, "model returned an unusable guide",
			"error", redact.Error(err),
			"response_length", len(text))
		return nil, err
	}
	return guide, nil
}

// Replan regenerates the incomplete part of a guide's schedule.
func (g *Generator) Replan(ctx context.Context, req generation.ReplanRequest) (replan *domain.Replan, err error) {
	defer g.observe(opReplan, time.Now(), &err)

	apiKey, err := g.resolveKey(req.Credential)
	if err != nil {
		return nil, err
	}
	prompt, err := g.prompts.Replan(req)
	if err != nil {
		return nil, err
	}

	text, err := g.call(ctx, opReplan, apiKey, genai.Text(prompt), jsonResponseConfig())
	if err != nil {
		return nil, err
	}

	replan, err = generation.DecodeReplan(text)
	if err != nil {
		g.logFromContext(ctx).WarnContext(ctx, "model returned an unusable replan",
			"error", redact.Error(err),
			"response_length", len(text))
		return nil, err
	}
	return replan, nil
}

// Motivate returns a one-line encouragement for the given progress.
func (g *Generator) Motivate(ctx context.Context, req generation.MotivateRequest) (message string, err error) {
	defer g.observe(opMotivate, time.Now(), &err)

	apiKey, err := g.resolveKey(req.Credential)
	if err != nil {
		return "", err
	}
	prompt, err := g.prompts.Motivation(req)
	if err != nil {
		return "", err
	}

	text, err := g.call(ctx, opMotivate, apiKey, genai.Text(prompt), nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// Transcribe sends media bytes inline and returns the spoken text.
func (g *Generator) Transcribe(ctx context.Context, req generation.TranscribeRequest) (transcript string, err error) {
	defer g.observe(opTranscribe, time.Now(), &err)

	apiKey, err := g.resolveKey(req.Credential)
	if err != nil {
		return "", err
	}
	if len(req.Data) == 0 {
		return "", errors.New("transcription requires media data")
	}
	prompt, err := g.prompts.Transcription()
	if err != nil {
		return "", err
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(prompt),
			genai.NewPartFromBytes(req.Data, req.MIMEType),
		}, genai.RoleUser),
	}

	text, err := g.call(ctx, opTranscribe, apiKey, contents, nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// ListModels returns the models that support content generation for the
// credential.
func (g *Generator) ListModels(ctx context.Context, credential string) (models []generation.ModelInfo, err error) {
	defer g.observe(opListModels, time.Now(), &err)

	apiKey, err := g.resolveKey(credential)
	if err != nil {
		return nil, err
	}
	client, err := g.client(ctx, apiKey)
	if err != nil {
		return nil, err
	}

	page, err := client.List(ctx, &genai.ListModelsConfig{})
	for {
		if err != nil {
			if errors.Is(err, genai.ErrPageDone) {
				break
			}
			mapped, transient := classifyError(err)
			if transient {
				return nil, fmt.Errorf("%w: %s", generation.ErrTransientFailure, redact.Error(err))
			}
			return nil, mapped
		}
		for _, m := range page.Items {
			if m != nil && supportsGeneration(m) {
				models = append(models, generation.ModelInfo{Name: m.Name, DisplayName: m.DisplayName})
			}
		}
		if page.NextPageToken == "" {
			break
		}
		page, err = page.Next(ctx)
	}

	if models == nil {
		models = []generation.ModelInfo{}
	}
	return models, nil
}

// resolveKey picks the request credential, falling back to the configured key.
func (g *Generator) resolveKey(credential string) (string, error) {
	if key := strings.TrimSpace(credential); key != "" {
		return key, nil
	}
	if g.config.GeminiAPIKey != "" {
		return g.config.GeminiAPIKey, nil
	}
	return "", generation.ErrCredentialMissing
}

func (g *Generator) observe(operation string, start time.Time, errp *error) {
	g.metrics.ObserveGeneration(operation, time.Since(start).Seconds(), *errp)
}

func (g *Generator) logFromContext(ctx context.Context) *slog.Logger {
	return logger.FromContextOrDefault(ctx, g.logger).With("component", "gemini_generator")
}

func jsonResponseConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}
}

func supportsGeneration(m *genai.Model) bool {
	for _, action := range m.SupportedActions {
		if action == generateContentAction {
			return true
		}
	}
	return false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
