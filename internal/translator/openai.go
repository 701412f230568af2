package translator

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient implements TextClient on top of the OpenAI chat completions
// API.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

var _ TextClient = (*OpenAIClient)(nil)

// NewOpenAIClient builds a client. An empty apiKey yields a client whose
// Generate fails with ErrNotConfigured, so a deployment without translation
// still boots.
func NewOpenAIClient(apiKey, model string) *OpenAIClient {
	c := &OpenAIClient{model: model}
	if apiKey != "" {
		c.client = openai.NewClient(apiKey)
	}
	return c
}

// Ready reports whether the client has credentials, for health reporting.
func (c *OpenAIClient) Ready() bool {
	return c.client != nil
}

// Generate sends the prompt as a single chat completion and returns the first
// choice plus total token usage.
func (c *OpenAIClient) Generate(ctx context.Context, prompt string, maxTokens int) (string, int, error) {
	if c.client == nil {
		return "", 0, ErrNotConfigured
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: 0.7,
	})
	if err != nil {
		return "", 0, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", 0, fmt.Errorf("chat completion: empty response")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), resp.Usage.TotalTokens, nil
}
