package embeddings

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeModels struct {
	model  string
	text   string
	config *genai.EmbedContentConfig
	resp   *genai.EmbedContentResponse
	err    error
}

func (f *fakeModels) EmbedContent(_ context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
	f.model = model
	f.config = config
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.text = contents[0].Parts[0].Text
	}
	return f.resp, f.err
}

func TestEmbedQuery(t *testing.T) {
	fake := &fakeModels{resp: &genai.EmbedContentResponse{
		Embeddings: []*genai.ContentEmbedding{{Values: []float32{0.1, 0.2, 0.3}}},
	}}
	e := &GoogleEmbedder{models: fake, model: "gemini-embedding-001", dimensions: 3}

	vec, err := e.EmbedQuery(context.Background(), "sparse attention")
	require.NoError(t, err)

	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, "gemini-embedding-001", fake.model)
	assert.Equal(t, "sparse attention", fake.text)
	assert.Equal(t, TaskRetrievalQuery, fake.config.TaskType)
	require.NotNil(t, fake.config.OutputDimensionality)
	assert.EqualValues(t, 3, *fake.config.OutputDimensionality)
}

func TestEmbedDocument(t *testing.T) {
	fake := &fakeModels{resp: &genai.EmbedContentResponse{
		Embeddings: []*genai.ContentEmbedding{{Values: []float32{1}}},
	}}
	e := &GoogleEmbedder{models: fake, model: "m", dimensions: 1}

	_, err := e.EmbedDocument(context.Background(), "A Title", "the abstract")
	require.NoError(t, err)
	assert.Equal(t, TaskRetrievalDocument, fake.config.TaskType)
	assert.Equal(t, "A Title", fake.config.Title)
}

func TestEmbedErrors(t *testing.T) {
	e := &GoogleEmbedder{models: &fakeModels{err: errors.New("quota")}, dimensions: 3}
	_, err := e.EmbedQuery(context.Background(), "q")
	assert.ErrorContains(t, err, "failed to embed text")

	e = &GoogleEmbedder{models: &fakeModels{resp: &genai.EmbedContentResponse{}}, dimensions: 3}
	_, err = e.EmbedQuery(context.Background(), "q")
	assert.ErrorContains(t, err, "empty embedding")
}
