// Package ai implements the AI advisory client: prompt construction, the
// remote chat-completion call, strict JSON parsing of the reply, and the
// deterministic fallback payloads used when the remote model cannot be
// reached or returns something unusable.
//
// The remote boundary is deliberately narrow: a prompt string plus a JSON
// schema description go out, text expected to parse as JSON comes back.
// There is no retry and no backoff; a per-request timeout bounds each call.
package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// ChatCompleter is the seam between the advisor and the hosted model.
// Production uses the OpenAI-compatible client below; tests substitute a
// stub that returns canned text or errors.
type ChatCompleter interface {
	// Complete sends a single-turn prompt (with an optional system prompt)
	// and returns the raw text of the model's reply.
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ClientConfig configures the OpenAI-compatible chat client. BaseURL may
// point at OpenAI itself or at any compatible endpoint (e.g. an Ollama
// instance at http://localhost:11434/v1).
type ClientConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// Client is a thin wrapper over go-openai that satisfies ChatCompleter.
type Client struct {
	api         *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

// NewClient constructs a chat client with defaults applied for any unset
// option.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.2
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	apiCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Client{
		api:         openai.NewClientWithConfig(apiCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

// Complete sends the prompt as a single chat turn, requesting a JSON-object
// response, and returns the reply text.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, 2)
	if systemPrompt != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userPrompt,
	})

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty completion response")
	}
	return resp.Choices[0].Message.Content, nil
}
