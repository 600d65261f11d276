package llm

import (
	"context"
	"time"
)

// Dialect selects the request/response shape a local inference server speaks.
type Dialect string

const (
	// DialectChat is the LlamaStack-style chat-completion API.
	DialectChat Dialect = "chat"
	// DialectCompletion is the Ollama-style generate API.
	DialectCompletion Dialect = "completion"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Request struct {
	Model     string
	Prompt    string
	Messages  []Message
	MaxTokens int
	Stream    bool
}

// Result carries one finished round trip. Document is the decoded JSON body
// and is only set for 2xx responses.
type Result struct {
	Status    int
	Body      []byte
	Document  any
	RequestID string
	Duration  time.Duration
}

type Client interface {
	Do(ctx context.Context, dialect Dialect, endpoint string, req Request) (Result, error)
}
