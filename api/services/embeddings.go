package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"

	"github.com/local/quizforge/api/models"
)

// EmbeddingProvider is the interface for embedding providers
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	ModelName() string
}

// GeminiEmbedding implements embeddings via the Gemini API. Calls are
// stateless; the same text always embeds to the same vector for a given
// model, and the vector length is constant per model.
type GeminiEmbedding struct {
	model   *genai.EmbeddingModel
	name    string
	policy  RetryPolicy
	timeout time.Duration
}

func NewGeminiEmbedding(client *genai.Client, model string, timeout time.Duration) *GeminiEmbedding {
	return &GeminiEmbedding{
		model:   client.EmbeddingModel(model),
		name:    model,
		policy:  DefaultRetryPolicy(isTransient),
		timeout: timeout,
	}
}

func (g *GeminiEmbedding) ModelName() string {
	return g.name
}

func (g *GeminiEmbedding) Embed(ctx context.Context, text string) ([]float32, error) {
	var vector []float32
	err := g.policy.Do(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		res, err := g.model.EmbedContent(ctx, genai.Text(text))
		if err != nil {
			return err
		}
		if res.Embedding == nil || len(res.Embedding.Values) == 0 {
			return fmt.Errorf("no embedding data in response")
		}
		vector = res.Embedding.Values
		return nil
	})
	if err != nil {
		return nil, classifyEmbeddingError(err)
	}
	return vector, nil
}

// EmbedBatch embeds all texts in a single request, preserving input order.
func (g *GeminiEmbedding) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var vectors [][]float32
	err := g.policy.Do(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		batch := g.model.NewBatch()
		for _, text := range texts {
			batch = batch.AddContent(genai.Text(text))
		}

		res, err := g.model.BatchEmbedContents(ctx, batch)
		if err != nil {
			return err
		}
		if len(res.Embeddings) != len(texts) {
			return fmt.Errorf("expected %d embeddings, got %d", len(texts), len(res.Embeddings))
		}

		vectors = make([][]float32, len(res.Embeddings))
		for i, emb := range res.Embeddings {
			if emb == nil || len(emb.Values) == 0 {
				return fmt.Errorf("no embedding data for input %d", i)
			}
			vectors[i] = emb.Values
		}
		return nil
	})
	if err != nil {
		return nil, classifyEmbeddingError(err)
	}
	return vectors, nil
}

// isTransient reports whether a service error is worth one retry: rate
// limits, server-side failures, and plain transport errors. Auth and client
// errors are surfaced immediately.
func isTransient(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == 429 || gerr.Code >= 500
	}
	// Non-API errors are transport-level (connection reset, DNS, timeout).
	return !errors.Is(err, context.Canceled)
}

// isQuotaError reports whether the service rejected the call for rate or
// quota reasons.
func isQuotaError(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == 429
}

func classifyEmbeddingError(err error) error {
	if isQuotaError(err) {
		return fmt.Errorf("%w: %v", models.ErrEmbeddingQuotaExceeded, err)
	}
	return fmt.Errorf("%w: %v", models.ErrEmbeddingServiceUnavailable, err)
}
