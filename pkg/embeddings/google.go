package embeddings

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

const (
	TaskRetrievalQuery    = "RETRIEVAL_QUERY"
	TaskRetrievalDocument = "RETRIEVAL_DOCUMENT"
)

// contentEmbedder is implemented by *genai.Models.
type contentEmbedder interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// GoogleEmbedder wraps Gemini embeddings
type GoogleEmbedder struct {
	models     contentEmbedder
	model      string
	dimensions int32
}

// NewGoogleEmbedder creates a new Gemini API embedder producing vectors of the given width.
func NewGoogleEmbedder(ctx context.Context, model, apiKey string, dimensions int) (*GoogleEmbedder, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini API client: %w", err)
	}

	return &GoogleEmbedder{
		models:     client.Models,
		model:      model,
		dimensions: int32(dimensions),
	}, nil
}

// EmbedQuery embeds a search query.
func (e *GoogleEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.embed(ctx, text, &genai.EmbedContentConfig{TaskType: TaskRetrievalQuery})
}

// EmbedDocument embeds a paper abstract; title helps the model when present.
func (e *GoogleEmbedder) EmbedDocument(ctx context.Context, title, text string) ([]float32, error) {
	return e.embed(ctx, text, &genai.EmbedContentConfig{TaskType: TaskRetrievalDocument, Title: title})
}

func (e *GoogleEmbedder) embed(ctx context.Context, text string, cfg *genai.EmbedContentConfig) ([]float32, error) {
	cfg.OutputDimensionality = &e.dimensions

	res, err := e.models.EmbedContent(ctx, e.model, genai.Text(text), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to embed text: %w", err)
	}

	if res == nil || len(res.Embeddings) == 0 || len(res.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("empty embedding returned")
	}

	return res.Embeddings[0].Values, nil
}
