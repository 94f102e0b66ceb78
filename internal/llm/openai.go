package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/rs/zerolog"
)

// OpenAIConfig holds configuration for the OpenAI provider
type OpenAIConfig struct {
	APIKey       string `json:"api_key"`
	Model        string `json:"model"`
	BaseURL      string `json:"base_url"` // optional override for compatible gateways
	SystemPrompt string `json:"system_prompt"`
}

// OpenAIProvider generates text via the OpenAI chat completions API.
type OpenAIProvider struct {
	config *OpenAIConfig
	client *openai.Client
	logger zerolog.Logger
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(config *OpenAIConfig, logger zerolog.Logger) (*OpenAIProvider, error) {
	if config == nil || config.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}
	if config.Model == "" {
		config.Model = openai.GPT4oMini
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIProvider{
		config: config,
		client: openai.NewClientWithConfig(clientConfig),
		logger: logger.With().Str("provider", "openai").Logger(),
	}, nil
}

// Name returns the provider identifier
func (p *OpenAIProvider) Name() string {
	return "openai"
}

func (p *OpenAIProvider) buildRequest(messages []Message, opts GenerateOptions) openai.ChatCompletionRequest {
	chatMessages := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if p.config.SystemPrompt != "" {
		chatMessages = append(chatMessages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: p.config.SystemPrompt,
		})
	}
	for _, m := range messages {
		chatMessages = append(chatMessages, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	return openai.ChatCompletionRequest{
		Model:       p.config.Model,
		Messages:    chatMessages,
		Temperature: float32(opts.Temperature),
		MaxTokens:   opts.MaxTokens,
	}
}

// Generate produces a complete response in one call
func (p *OpenAIProvider) Generate(ctx context.Context, messages []Message, opts GenerateOptions) (*Response, error) {
	if len(messages) == 0 {
		return nil, ErrEmptyMessages
	}

	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, p.buildRequest(messages, opts))
	if err != nil {
		return nil, fmt.Errorf("openai generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai returned no choices")
	}

	return &Response{
		Text:           resp.Choices[0].Message.Content,
		TokensCount:    resp.Usage.CompletionTokens,
		GenerationTime: time.Since(start),
	}, nil
}

// GenerateStream starts a streaming generation
func (p *OpenAIProvider) GenerateStream(ctx context.Context, messages []Message, opts GenerateOptions) (TokenStream, error) {
	if len(messages) == 0 {
		return nil, ErrEmptyMessages
	}

	req := p.buildRequest(messages, opts)
	req.Stream = true

	stream, err := p.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	p.logger.Debug().Str("model", p.config.Model).Msg("Streaming generation started")

	return &openaiStream{stream: stream}, nil
}

type openaiStream struct {
	stream *openai.ChatCompletionStream
}

func (s *openaiStream) Recv() (string, error) {
	for {
		resp, err := s.stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", io.EOF
			}
			return "", fmt.Errorf("openai stream failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		return resp.Choices[0].Delta.Content, nil
	}
}

func (s *openaiStream) Close() error {
	return s.stream.Close()
}

// Health checks if the API accepts requests. A listing call is the
// cheapest authenticated probe the API offers.
func (p *OpenAIProvider) Health(ctx context.Context) error {
	_, err := p.client.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return nil
}
