package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
)

const systemPrompt = "You are a helpful assistant."

// Client is a client for the hosted chat completions deployment.
type Client struct {
	client     openai.Client
	deployment string
}

// NewClient creates a new chat client for an Azure OpenAI endpoint.
// deployment is the name of the chat deployment to call. Additional request
// options (e.g. a custom base URL in tests) may be appended via extra.
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

// Chat sends a single user message to the chat deployment and returns the reply.
func (c *Client) Chat(ctx context.Context, message string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.deployment),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(message),
		},
		Temperature: openai.Float(0.3),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}

	return resp.Choices[0].Message.Content, nil
}
