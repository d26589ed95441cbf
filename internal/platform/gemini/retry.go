package gemini

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/phrazzld/studyguide-api/internal/generation"
	"github.com/phrazzld/studyguide-api/internal/redact"
	"google.golang.org/genai"
)

// call sends one generation request, retrying transient failures with
// exponential backoff. It returns the response text.
func (g *Generator) call(
	ctx context.Context,
	operation string,
	apiKey string,
	contents []*genai.Content,
	cfg *genai.GenerateContentConfig,
) (string, error) {
	client, err := g.client(ctx, apiKey)
	if err != nil {
		return "", err
	}

	log := g.logFromContext(ctx).With("operation", operation, "api_key", redact.Key(apiKey))
	maxAttempts := g.config.MaxRetries

	for attempt := 1; ; attempt++ {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("%w: %w", generation.ErrTransientFailure, err)
		}

		log.DebugContext(ctx, "making Gemini API call",
			"attempt", attempt,
			"max_attempts", maxAttempts)

		resp, err := g.attempt(ctx, client, contents, cfg)
		if err == nil {
			log.DebugContext(ctx, "Gemini API call successful", "attempt", attempt)
			return responseText(resp)
		}

		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %w", generation.ErrTransientFailure, ctx.Err())
		}

		mapped, transient := classifyError(err)
		if !transient {
			log.WarnContext(ctx, "Gemini API call failed permanently, not retrying",
				"attempt", attempt,
				"error", redact.Error(err))
			return "", mapped
		}

		if attempt >= maxAttempts {
			log.WarnContext(ctx, "maximum retry attempts reached",
				"attempts", attempt,
				"error", redact.Error(err))
			return "", fmt.Errorf("%w: exceeded maximum attempts (%d): %s",
				generation.ErrTransientFailure, maxAttempts, redact.Error(err))
		}

		delay := g.backoff(attempt)
		g.metrics.GenerationRetries.WithLabelValues(operation).Inc()
		log.InfoContext(ctx, "retrying after delay",
			"attempt", attempt,
			"delay_seconds", delay.Seconds(),
			"error", redact.Error(err))

		if err := g.sleep(ctx, delay); err != nil {
			log.WarnContext(ctx, "API call cancelled during retry delay",
				"attempt", attempt,
				"ctx_err", err)
			return "", fmt.Errorf("%w: %w", generation.ErrTransientFailure, err)
		}
	}
}

// attempt performs a single upstream request bounded by the configured timeout.
func (g *Generator) attempt(
	ctx context.Context,
	client ModelsClient,
	contents []*genai.Content,
	cfg *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	if g.config.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(g.config.TimeoutSeconds)*time.Second)
		defer cancel()
	}
	return client.GenerateContent(ctx, g.config.ModelName, contents, cfg)
}

// backoff returns the delay before the retry that follows attempt n:
// base * 2^(n-1) * jitter.
func (g *Generator) backoff(attempt int) time.Duration {
	base := float64(g.config.RetryDelaySeconds) * math.Pow(2, float64(attempt-1))
	return time.Duration(base * g.jitter() * float64(time.Second))
}

// classifyError maps an upstream error onto the generation error taxonomy
// and reports whether it is worth retrying.
func classifyError(err error) (error, bool) {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		var ptrErr *genai.APIError
		if !errors.As(err, &ptrErr) || ptrErr == nil {
			// Transport failures and per-attempt timeouts carry no API
			// status; only 429 and 503 are retried.
			return &generation.UpstreamError{Message: redact.Error(err), Err: err}, false
		}
		apiErr = *ptrErr
	}

	status := strings.ToUpper(apiErr.Status)
	switch {
	case apiErr.Code == http.StatusTooManyRequests,
		apiErr.Code == http.StatusServiceUnavailable,
		status == "RESOURCE_EXHAUSTED",
		status == "UNAVAILABLE":
		return err, true
	case apiErr.Code == http.StatusUnauthorized,
		apiErr.Code == http.StatusForbidden,
		status == "UNAUTHENTICATED",
		status == "PERMISSION_DENIED",
		apiErr.Code == http.StatusBadRequest && strings.Contains(strings.ToLower(apiErr.Message), "api key"):
		return fmt.Errorf("%w: %s", generation.ErrCredentialRejected, redact.String(apiErr.Message)), false
	default:
		return &generation.UpstreamError{
			Code:    apiErr.Code,
			Status:  apiErr.Status,
			Message: redact.String(apiErr.Message),
		}, false
	}
}

// responseText extracts the first candidate's text, reporting safety blocks
// and empty replies.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", &generation.ResponseError{Err: errors.New("nil response")}
	}
	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("%w: prompt blocked: %s", generation.ErrContentBlocked, resp.PromptFeedback.BlockReason)
		}
		return "", &generation.ResponseError{Err: errors.New("no candidates in response")}
	}
	if resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("%w: candidate blocked by safety filters", generation.ErrContentBlocked)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", &generation.ResponseError{Err: errors.New("empty response text")}
	}
	return text, nil
}
