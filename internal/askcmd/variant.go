package askcmd

import "github.com/quailyquaily/llmask/llm"

const defaultPrompt = "What is the capital city of Texas?"

type flagSpec struct {
	Name      string
	Shorthand string
	Usage     string
}

// Variant describes one binary: the server dialect it speaks and the flag
// names its users know it by.
type Variant struct {
	Use     string
	Short   string
	Dialect llm.Dialect

	Endpoint flagSpec
	Model    flagSpec

	DefaultEndpoint string
	DefaultModel    string
	DefaultPrompt   string

	// MaxTokens exposes --max-tokens; only the chat payload carries it.
	MaxTokens bool
}

var LlamaStack = Variant{
	Use:     "llamastack-ask",
	Short:   "Send one prompt to a local LlamaStack server",
	Dialect: llm.DialectChat,
	Endpoint: flagSpec{
		Name:      "endpoint",
		Shorthand: "e",
		Usage:     "LlamaStack chat-completion endpoint.",
	},
	Model: flagSpec{
		Name:      "model-id",
		Shorthand: "m",
		Usage:     "Model id to use.",
	},
	DefaultEndpoint: "http://localhost:8321/v1/inference/chat-completion",
	DefaultModel:    "llama3.1:8b",
	DefaultPrompt:   defaultPrompt,
	MaxTokens:       true,
}

var Ollama = Variant{
	Use:     "ollama-ask",
	Short:   "Send one prompt to a local Ollama server",
	Dialect: llm.DialectCompletion,
	Endpoint: flagSpec{
		Name:      "url",
		Shorthand: "u",
		Usage:     "API URL (e.g. http://localhost:11434/api/generate).",
	},
	Model: flagSpec{
		Name:      "model",
		Shorthand: "m",
		Usage:     "Model name (e.g. llama3.1:8b).",
	},
	DefaultEndpoint: "http://localhost:11434/api/generate",
	DefaultModel:    "llama3.1:8b",
	DefaultPrompt:   defaultPrompt,
}
