package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"
)

// Matcher adapts a Provider to the narrow Complete(ctx, system, user) string
// contracts the extract and score packages depend on, so those packages
// never import a specific provider SDK.
type Matcher struct {
	provider    Provider
	temperature float32
}

// NewMatcher selects a Provider by model identifier prefix: "qwen" and
// "deepseek" route to their dedicated HTTP providers, everything else
// (including the default "gemini-*" identifiers) uses Gemini.
func NewMatcher(modelIdentifier string, temperature float64) *Matcher {
	var p Provider
	switch {
	case strings.HasPrefix(modelIdentifier, "qwen"):
		p = &QwenProvider{}
	case strings.HasPrefix(modelIdentifier, "deepseek"):
		p = &DeepSeekProvider{}
	default:
		p = &GeminiProvider{Model: modelIdentifier}
	}
	return &Matcher{provider: p, temperature: float32(temperature)}
}

// Complete sends system+user prompts and asks for JSON output; implements
// extract.Chatter and the rescorer's chat contract.
func (m *Matcher) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return m.provider.GenerateResponse(ctx, userPrompt, systemPrompt, map[string]interface{}{
		"response_format": map[string]interface{}{"type": "json_object"},
		"temperature":     float64(m.temperature),
	})
}

// Embedder produces dense vectors for catalog descriptions via Gemini's
// embedding endpoint, used by the reranker's similarity pass.
type Embedder struct {
	model string
}

func NewEmbedder(model string) *Embedder {
	if model == "" {
		model = "text-embedding-004"
	}
	return &Embedder{model: model}
}

// Embed returns the vector the embedding service produces for text (not
// re-normalized here), or an error if the service is unreachable or
// misconfigured. Callers degrade to a
// zero similarity score on error rather than fail the whole match.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding client: %w", err)
	}

	result, err := client.Models.EmbedContent(ctx, e.model, genai.Text(text), nil)
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("embedding service returned no vectors")
	}
	return result.Embeddings[0].Values, nil
}
