// Package llm is a thin client for the hosted chat-completion model behind
// the quilting assistant.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/tbourn/quilt-shop-backend/internal/config"
)

// Roles accepted in a conversation.
const (
	RoleSystem    = openai.ChatMessageRoleSystem
	RoleUser      = openai.ChatMessageRoleUser
	RoleAssistant = openai.ChatMessageRoleAssistant
)

// ErrEmptyReply is returned when the model produced no text.
var ErrEmptyReply = errors.New("llm returned an empty reply")

// Message is one turn of a conversation.
type Message struct {
	Role    string
	Content string
}

// Completer produces the next assistant turn for a conversation.
type Completer interface {
	Complete(ctx context.Context, msgs []Message) (string, error)
}

// OpenAI implements Completer on the chat completions API.
type OpenAI struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

// NewOpenAI returns a client for cfg. BaseURL may point at any
// OpenAI-compatible endpoint.
func NewOpenAI(cfg config.LLMConfig) *OpenAI {
	oc := openai.DefaultConfig(cfg.APIKey)
	if u := strings.TrimRight(cfg.BaseURL, "/"); u != "" {
		oc.BaseURL = u
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAI{
		client:      openai.NewClientWithConfig(oc),
		model:       model,
		temperature: float32(cfg.Temperature),
		maxTokens:   cfg.MaxTokens,
	}
}

// Complete sends msgs and returns the first choice's content.
func (o *OpenAI) Complete(ctx context.Context, msgs []Message) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(msgs)),
	}
	for _, m := range msgs {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("llm: status %d: %w", apiErr.HTTPStatusCode, err)
		}
		return "", fmt.Errorf("llm: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", ErrEmptyReply
	}
	return resp.Choices[0].Message.Content, nil
}
