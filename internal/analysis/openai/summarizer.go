// Package openai implements analysis.Summarizer with the OpenAI chat API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"
)

// DefaultModel matches the 16k context window the prompt budget assumes.
const DefaultModel = "gpt-3.5-turbo-16k"

// Config holds the API credentials and model selection.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error)
}

// Summarizer sends one chat completion per site.
type Summarizer struct {
	client chatClient
	model  string
}

// New builds a Summarizer. BaseURL overrides the API endpoint (proxies,
// compatible servers, tests).
func New(cfg Config) (*Summarizer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai api key is required")
	}
	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return newWithClient(goopenai.NewClientWithConfig(clientCfg), cfg.Model), nil
}

func newWithClient(client chatClient, model string) *Summarizer {
	if model == "" {
		model = DefaultModel
	}
	return &Summarizer{client: client, model: model}
}

// Model reports the chat model in use.
func (s *Summarizer) Model() string {
	return s.model
}

// Summarize returns the assistant reply to systemPrompt + userPrompt.
func (s *Summarizer) Summarize(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := s.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: s.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: goopenai.ChatMessageRoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
