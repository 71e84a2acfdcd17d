package search

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"

	openai "github.com/sashabaranov/go-openai"
)

// Embedder converts text to fixed-dimension vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// LocalEmbeddingDimensions is the vector width of the feature-hashing
// embedder.
const LocalEmbeddingDimensions = 256

// LocalEmbedder is a deterministic feature-hashing embedder. It makes
// no network calls, so it serves tests and single-node deployments
// where no embedding API is configured. Tokens hash into signed
// buckets and the result is L2-normalized.
type LocalEmbedder struct {
	dims int
}

var _ Embedder = (*LocalEmbedder)(nil)

// NewLocalEmbedder returns a LocalEmbedder with the default dimensions.
func NewLocalEmbedder() *LocalEmbedder {
	return &LocalEmbedder{dims: LocalEmbeddingDimensions}
}

// Dimensions returns the vector width.
func (e *LocalEmbedder) Dimensions() int { return e.dims }

// Embed hashes each text into a normalized vector. It never fails.
func (e *LocalEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.embedOne(text)
	}
	return out, nil
}

func (e *LocalEmbedder) embedOne(text string) []float32 {
	vec := make([]float32, e.dims)
	for _, tok := range Tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(tok))
		sum := h.Sum32()
		sign := float32(1)
		if sum&0x80000000 != 0 {
			sign = -1
		}
		vec[int(sum%uint32(e.dims))] += sign
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

// embeddingClient captures the subset of the go-openai client used by
// OpenAIEmbedder.
type embeddingClient interface {
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// OpenAIEmbedder embeds text through the OpenAI embeddings API or any
// compatible endpoint.
type OpenAIEmbedder struct {
	client embeddingClient
	model  openai.EmbeddingModel
	dims   int
}

var _ Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder wraps an existing client. The dimensions are looked
// up from the model; unknown models assume 1536.
func NewOpenAIEmbedder(client embeddingClient, model openai.EmbeddingModel) *OpenAIEmbedder {
	dims := 1536
	if model == openai.LargeEmbedding3 {
		dims = 3072
	}
	return &OpenAIEmbedder{client: client, model: model, dims: dims}
}

// NewOpenAIEmbedderFromKey constructs an embedder with the default HTTP
// client. baseURL overrides the API endpoint when non-empty, for
// OpenAI-compatible servers.
func NewOpenAIEmbedderFromKey(apiKey, baseURL string, model openai.EmbeddingModel) *OpenAIEmbedder {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return NewOpenAIEmbedder(openai.NewClientWithConfig(cfg), model)
}

// Dimensions returns the vector width of the configured model.
func (e *OpenAIEmbedder) Dimensions() int { return e.dims }

// Embed requests embeddings for all texts in one call.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: e.model,
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("create embeddings: got %d vectors for %d inputs", len(resp.Data), len(texts))
	}
	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		out[i] = d.Embedding
	}
	return out, nil
}
