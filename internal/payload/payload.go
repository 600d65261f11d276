package payload

import (
	"errors"
	"fmt"
	"strings"

	"github.com/quailyquaily/llmask/llm"
)

const DefaultMaxTokens = 512

var (
	ErrEmptyModel  = errors.New("model must not be empty")
	ErrEmptyPrompt = errors.New("prompt must not be empty")
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the LlamaStack chat-completion body.
type ChatRequest struct {
	ModelID   string        `json:"model_id"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

// CompletionRequest is the Ollama generate body. Stream is always sent.
type CompletionRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// NewRequest builds the immutable request for one invocation.
func NewRequest(dialect llm.Dialect, model, prompt string, maxTokens int) (llm.Request, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return llm.Request{}, ErrEmptyModel
	}
	if strings.TrimSpace(prompt) == "" {
		return llm.Request{}, ErrEmptyPrompt
	}
	switch dialect {
	case llm.DialectChat:
		if maxTokens <= 0 {
			maxTokens = DefaultMaxTokens
		}
		return llm.Request{
			Model:     model,
			Messages:  []llm.Message{{Role: "user", Content: prompt}},
			MaxTokens: maxTokens,
		}, nil
	case llm.DialectCompletion:
		return llm.Request{
			Model:  model,
			Prompt: prompt,
			Stream: false,
		}, nil
	default:
		return llm.Request{}, fmt.Errorf("unknown dialect: %q", dialect)
	}
}

// Body returns the wire object for req in the given dialect.
func Body(dialect llm.Dialect, req llm.Request) (any, error) {
	switch dialect {
	case llm.DialectChat:
		msgs := make([]chatMessage, len(req.Messages))
		for i, m := range req.Messages {
			msgs[i] = chatMessage{Role: m.Role, Content: m.Content}
		}
		return ChatRequest{
			ModelID:   req.Model,
			Messages:  msgs,
			MaxTokens: req.MaxTokens,
		}, nil
	case llm.DialectCompletion:
		return CompletionRequest{
			Model:  req.Model,
			Prompt: req.Prompt,
			Stream: req.Stream,
		}, nil
	default:
		return nil, fmt.Errorf("unknown dialect: %q", dialect)
	}
}
