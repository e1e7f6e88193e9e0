package embedding

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
)

// Client calls the hosted embeddings deployment. It implements Provider.
type Client struct {
	client     openai.Client
	deployment string
}

// NewClient creates a new embeddings client for an Azure OpenAI endpoint.
// deployment is the name of the embeddings deployment to call. Additional
// request options (e.g. a custom base URL in tests) may be appended via extra.
func NewClient(endpoint, apiKey, apiVersion, deployment string, extra ...option.RequestOption) *Client {
	opts := []option.RequestOption{
		azure.WithEndpoint(endpoint, apiVersion),
		azure.WithAPIKey(apiKey),
	}
	opts = append(opts, extra...)

	return &Client{
		client:     openai.NewClient(opts...),
		deployment: deployment,
	}
}

// EmbedBatch makes a single embeddings request for the given texts and
// returns one vector per input, in order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
		Model: openai.EmbeddingModel(c.deployment),
	})
	if err != nil {
		return nil, fmt.Errorf("embeddings request failed: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	// The API returns float64; vectors are stored as float32
	vectors := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		vec := make([]float32, len(data.Embedding))
		for j, v := range data.Embedding {
			vec[j] = float32(v)
		}
		vectors[i] = vec
	}

	return vectors, nil
}
