package gemini

import (
	"context"
	"fmt"

	"github.com/phrazzld/studyguide-api/internal/generation"
	"google.golang.org/genai"
)

// ModelsClient is the subset of the Gemini models service the generator uses.
// *genai.Models satisfies it.
type ModelsClient interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
	List(ctx context.Context, config *genai.ListModelsConfig) (genai.Page[genai.Model], error)
}

// ClientFactory creates a models client bound to one API key.
type ClientFactory func(ctx context.Context, apiKey string) (ModelsClient, error)

// NewClientFactory returns a factory that builds real Gemini API clients.
func NewClientFactory() ClientFactory {
	return func(ctx context.Context, apiKey string) (ModelsClient, error) {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  apiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: failed to create Gemini client: %v", generation.ErrInvalidConfig, err)
		}
		return client.Models, nil
	}
}

// client returns the cached client for apiKey, creating it on first use.
func (g *Generator) client(ctx context.Context, apiKey string) (ModelsClient, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if c, ok := g.clients[apiKey]; ok {
		return c, nil
	}

	c, err := g.factory(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	g.clients[apiKey] = c
	return c, nil
}
