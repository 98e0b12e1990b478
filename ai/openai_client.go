package ai

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	apperrors "chat-companion/backend/pkg/errors"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient adapts the OpenAI API to the CompletionBackend and
// TranscriptionBackend interfaces.
type OpenAIClient struct {
	client    *openai.Client
	model     string
	maxTokens int
}

func NewOpenAIClient(apiKey, model string) *OpenAIClient {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIClient{
		client:    openai.NewClient(apiKey),
		model:     model,
		maxTokens: 4024,
	}
}

// Complete sends the message history to the chat completion endpoint.
func (c *OpenAIClient) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    strings.ToLower(m.Role),
			Content: m.Content,
		})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages:  msgs,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrTransientBackend, err)
	}

	if len(resp.Choices) == 0 {
		return "", apperrors.ErrEmptyResult
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", apperrors.ErrEmptyResult
	}
	return content, nil
}

// Transcribe converts a voice note to text with Whisper.
func (c *OpenAIClient) Transcribe(ctx context.Context, audio []byte) (string, error) {
	resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		Reader:   bytes.NewReader(audio),
		FilePath: "voice.ogg",
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrTransientBackend, err)
	}
	return resp.Text, nil
}
