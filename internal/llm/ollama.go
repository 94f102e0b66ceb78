package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// OllamaConfig holds configuration for the Ollama provider
type OllamaConfig struct {
	Model        string        `json:"model"`
	BaseURL      string        `json:"base_url"` // e.g., "http://localhost:11434"
	SystemPrompt string        `json:"system_prompt"`
	Timeout      time.Duration `json:"timeout"`
}

// DefaultOllamaConfig returns sensible defaults
func DefaultOllamaConfig() *OllamaConfig {
	return &OllamaConfig{
		Model:   "mistral:7b-instruct-q4_K_M",
		BaseURL: "http://localhost:11434",
		Timeout: 60 * time.Second,
	}
}

// OllamaProvider generates text against a local Ollama server.
type OllamaProvider struct {
	config     *OllamaConfig
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewOllamaProvider creates a new Ollama provider
func NewOllamaProvider(config *OllamaConfig, logger zerolog.Logger) *OllamaProvider {
	if config == nil {
		config = DefaultOllamaConfig()
	}

	return &OllamaProvider{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger.With().Str("provider", "ollama").Logger(),
	}
}

// Name returns the provider identifier
func (p *OllamaProvider) Name() string {
	return "ollama"
}

type ollamaChatRequest struct {
	Model    string                 `json:"model"`
	Messages []ollamaMessage        `json:"messages"`
	Stream   bool                   `json:"stream"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatResponse struct {
	Message   ollamaMessage `json:"message"`
	Done      bool          `json:"done"`
	EvalCount int           `json:"eval_count"`
	Error     string        `json:"error"`
}

func (p *OllamaProvider) buildMessages(messages []Message) []ollamaMessage {
	out := make([]ollamaMessage, 0, len(messages)+1)
	if p.config.SystemPrompt != "" {
		out = append(out, ollamaMessage{Role: "system", Content: p.config.SystemPrompt})
	}
	for _, m := range messages {
		out = append(out, ollamaMessage{Role: string(m.Role), Content: m.Content})
	}
	return out
}

func (p *OllamaProvider) chatRequest(ctx context.Context, messages []Message, opts GenerateOptions, stream bool) (*http.Response, error) {
	if len(messages) == 0 {
		return nil, ErrEmptyMessages
	}

	payload := ollamaChatRequest{
		Model:    p.config.Model,
		Messages: p.buildMessages(messages),
		Stream:   stream,
		Options: map[string]interface{}{
			"temperature": opts.Temperature,
			"num_predict": opts.MaxTokens,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/chat", p.config.BaseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(respBody))
	}

	return resp, nil
}

// Generate produces a complete response in one call
func (p *OllamaProvider) Generate(ctx context.Context, messages []Message, opts GenerateOptions) (*Response, error) {
	start := time.Now()

	resp, err := p.chatRequest(ctx, messages, opts, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var chat ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if chat.Error != "" {
		return nil, fmt.Errorf("ollama generation failed: %s", chat.Error)
	}

	p.logger.Debug().
		Int("tokens", chat.EvalCount).
		Dur("elapsed", time.Since(start)).
		Msg("Generation complete")

	return &Response{
		Text:           chat.Message.Content,
		TokensCount:    chat.EvalCount,
		GenerationTime: time.Since(start),
	}, nil
}

// GenerateStream starts a streaming generation. Ollama streams one JSON
// object per line; each object carries a token fragment in message.content.
func (p *OllamaProvider) GenerateStream(ctx context.Context, messages []Message, opts GenerateOptions) (TokenStream, error) {
	resp, err := p.chatRequest(ctx, messages, opts, true)
	if err != nil {
		return nil, err
	}

	p.logger.Debug().
		Str("model", p.config.Model).
		Int("messages", len(messages)).
		Msg("Streaming generation started")

	return &ollamaStream{
		body:    resp.Body,
		scanner: bufio.NewScanner(resp.Body),
	}, nil
}

type ollamaStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	done    bool
}

func (s *ollamaStream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}

	for s.scanner.Scan() {
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var chunk ollamaChatResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			return "", fmt.Errorf("failed to decode stream chunk: %w", err)
		}
		if chunk.Error != "" {
			return "", fmt.Errorf("ollama stream failed: %s", chunk.Error)
		}
		if chunk.Done {
			s.done = true
			if chunk.Message.Content != "" {
				return chunk.Message.Content, nil
			}
			return "", io.EOF
		}
		return chunk.Message.Content, nil
	}

	if err := s.scanner.Err(); err != nil {
		return "", fmt.Errorf("stream read failed: %w", err)
	}
	s.done = true
	return "", io.EOF
}

func (s *ollamaStream) Close() error {
	s.done = true
	return s.body.Close()
}

// Health checks if the Ollama server is reachable
func (p *OllamaProvider) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", p.config.BaseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama unhealthy (status %d)", resp.StatusCode)
	}
	return nil
}
