package generator

import (
	"context"
	"fmt"

	"github.com/revrost/go-openrouter"
)

// OpenRouterClient is the slice of the openrouter client the generator
// uses, extracted for testability.
type OpenRouterClient interface {
	CreateChatCompletion(ctx context.Context,
		ccr openrouter.ChatCompletionRequest) (openrouter.ChatCompletionResponse, error)
}

// OpenRouterGenerator produces completions for the ai plugin.
type OpenRouterGenerator struct {
	client       OpenRouterClient
	systemPrompt string
	model        string
}

func NewOpenRouterGenerator(apiKey, systemPrompt, model string) *OpenRouterGenerator {
	return &OpenRouterGenerator{
		systemPrompt: systemPrompt,
		model:        model,
		client: openrouter.NewClient(
			apiKey,
			openrouter.WithXTitle("plugbot"),
		),
	}
}

func (g *OpenRouterGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	ccr := openrouter.ChatCompletionRequest{
		Model: g.model,
		Messages: []openrouter.ChatCompletionMessage{
			{
				Role:    openrouter.ChatMessageRoleSystem,
				Content: openrouter.Content{Text: g.systemPrompt},
			},
			{
				Role:    openrouter.ChatMessageRoleUser,
				Content: openrouter.Content{Text: prompt},
			},
		},
	}

	resp, err := g.client.CreateChatCompletion(ctx, ccr)
	if err != nil {
		return "", fmt.Errorf("openrouter API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openrouter returned no choices")
	}

	return resp.Choices[0].Message.Content.Text, nil
}
