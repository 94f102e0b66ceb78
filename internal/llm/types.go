// Package llm provides language generation providers for avatarpipe.
package llm

import (
	"context"
	"errors"
	"time"
)

// Common errors
var (
	ErrProviderUnavailable = errors.New("LLM provider unavailable")
	ErrEmptyMessages       = errors.New("messages list cannot be empty")
	ErrUnknownProvider     = errors.New("unknown LLM provider")
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one turn of conversation history.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Response is a non-streaming generation result.
type Response struct {
	Text           string        `json:"text"`
	TokensCount    int           `json:"tokens_count"`
	GenerationTime time.Duration `json:"generation_time"`
}

// TokenStream is a pull-based stream of generated text tokens.
// Recv returns io.EOF once the stream is exhausted. Callers that stop
// early must Close the stream to release the underlying connection.
type TokenStream interface {
	Recv() (string, error)
	Close() error
}

// GenerateOptions are pass-through sampling parameters.
type GenerateOptions struct {
	Temperature float64
	MaxTokens   int
}

// Provider is the interface all language generation providers implement.
type Provider interface {
	// Name returns the provider identifier (e.g., "ollama", "openai")
	Name() string

	// Generate produces a complete response in one call
	Generate(ctx context.Context, messages []Message, opts GenerateOptions) (*Response, error)

	// GenerateStream starts a streaming generation and returns a token stream
	GenerateStream(ctx context.Context, messages []Message, opts GenerateOptions) (TokenStream, error)

	// Health checks if the provider is reachable
	Health(ctx context.Context) error
}
