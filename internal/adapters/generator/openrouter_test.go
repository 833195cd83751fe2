package generator

import (
	"context"
	"errors"
	"testing"

	"github.com/revrost/go-openrouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockOpenRouterClient struct {
	request  openrouter.ChatCompletionRequest
	response openrouter.ChatCompletionResponse
	err      error
}

func (m *mockOpenRouterClient) CreateChatCompletion(_ context.Context,
	ccr openrouter.ChatCompletionRequest) (openrouter.ChatCompletionResponse, error) {
	m.request = ccr
	return m.response, m.err
}

func TestGenerate(t *testing.T) {
	client := &mockOpenRouterClient{
		response: openrouter.ChatCompletionResponse{
			Choices: []openrouter.ChatCompletionChoice{
				{Message: openrouter.ChatCompletionMessage{
					Content: openrouter.Content{Text: "olá mundo"},
				}},
			},
		},
	}
	g := &OpenRouterGenerator{
		client:       client,
		systemPrompt: "answer briefly",
		model:        "deepseek/deepseek-chat-v3",
	}

	resp, err := g.Generate(context.Background(), "say hello")

	require.NoError(t, err)
	assert.Equal(t, "olá mundo", resp)
	assert.Equal(t, "deepseek/deepseek-chat-v3", client.request.Model)
	require.Len(t, client.request.Messages, 2)
	assert.Equal(t, openrouter.ChatMessageRoleSystem, client.request.Messages[0].Role)
	assert.Equal(t, "answer briefly", client.request.Messages[0].Content.Text)
	assert.Equal(t, openrouter.ChatMessageRoleUser, client.request.Messages[1].Role)
	assert.Equal(t, "say hello", client.request.Messages[1].Content.Text)
}

func TestGenerateAPIError(t *testing.T) {
	client := &mockOpenRouterClient{err: errors.New("rate limited")}
	g := &OpenRouterGenerator{client: client}

	_, err := g.Generate(context.Background(), "hi")

	require.Error(t, err)
	assert.ErrorContains(t, err, "openrouter API error")
}

func TestGenerateNoChoices(t *testing.T) {
	client := &mockOpenRouterClient{}
	g := &OpenRouterGenerator{client: client}

	_, err := g.Generate(context.Background(), "hi")

	require.Error(t, err)
	assert.ErrorContains(t, err, "no choices")
}
