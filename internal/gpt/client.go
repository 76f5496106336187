// internal/gpt/client.go
package gpt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

var ErrEmptyResponse = errors.New("no response from GPT API")

type GenerateContext struct {
	Level      int
	ActiveDays int
}

// Generator produces free-form coach text. Output carries no structural guarantees.
type Generator interface {
	Generate(ctx context.Context, prompt, locale string, gc GenerateContext) (string, error)
}

var _ Generator = (*Client)(nil)

type Client struct {
	client *openai.Client
	model  string
}

func NewClient(apiKey string) *Client {
	return &Client{
		client: openai.NewClient(apiKey),
		model:  openai.GPT4oMini,
	}
}

// NewClientWithBaseURL points the client at an OpenAI compatible endpoint.
func NewClientWithBaseURL(apiKey, baseURL string) *Client {
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL
	return &Client{
		client: openai.NewClientWithConfig(config),
		model:  openai.GPT4oMini,
	}
}

func (c *Client) WithModel(model string) *Client {
	if model != "" {
		c.model = model
	}
	return c
}

func (c *Client) Generate(ctx context.Context, prompt, locale string, gc GenerateContext) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: SystemPrompt(locale),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: userMessage(prompt, gc),
			},
		},
		MaxTokens:   2048,
		Temperature: 0.7,
		TopP:        0.9,
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}

	return text, nil
}

func userMessage(prompt string, gc GenerateContext) string {
	level := gc.Level
	if level < 1 {
		level = 1
	}
	return fmt.Sprintf("User Level: %d\nActive Days: %d\n\nUser Message: %s", level, gc.ActiveDays, prompt)
}
