package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// SileroConfig holds configuration for the Silero engine client
type SileroConfig struct {
	ServiceURL string        `json:"service_url"` // e.g., "http://localhost:8920"
	Language   string        `json:"language"`
	Speaker    string        `json:"speaker"`
	SampleRate int           `json:"sample_rate"`
	Timeout    time.Duration `json:"timeout"`
}

// DefaultSileroConfig returns sensible defaults
func DefaultSileroConfig() *SileroConfig {
	return &SileroConfig{
		ServiceURL: "http://localhost:8920",
		Language:   "ru",
		Speaker:    "baya",
		SampleRate: 24000,
		Timeout:    30 * time.Second,
	}
}

// SileroEngine synthesizes speech through a Silero TTS microservice.
type SileroEngine struct {
	config     *SileroConfig
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewSileroEngine creates a new Silero engine client
func NewSileroEngine(config *SileroConfig, logger zerolog.Logger) *SileroEngine {
	if config == nil {
		config = DefaultSileroConfig()
	}

	return &SileroEngine{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger.With().Str("engine", "silero").Logger(),
	}
}

// Name returns the engine identifier
func (e *SileroEngine) Name() string {
	return "silero"
}

// Synthesize converts text to a WAV audio segment
func (e *SileroEngine) Synthesize(ctx context.Context, text string) (*AudioSegment, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	start := time.Now()

	payload := map[string]interface{}{
		"text":        text,
		"language":    e.config.Language,
		"speaker":     e.config.Speaker,
		"sample_rate": e.config.SampleRate,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/tts", e.config.ServiceURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("silero returned status %d: %s", resp.StatusCode, string(respBody))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}

	duration, err := ProbeWAVDuration(audio)
	if err != nil {
		e.logger.Warn().Err(err).Msg("Could not probe WAV duration")
		duration = 0
	}

	e.logger.Debug().
		Int("audio_bytes", len(audio)).
		Dur("duration", duration).
		Dur("elapsed", time.Since(start)).
		Msg("Synthesis complete")

	return &AudioSegment{
		Bytes:      audio,
		SampleRate: e.config.SampleRate,
		Format:     "wav",
		Duration:   duration,
	}, nil
}

// Languages returns supported language codes
func (e *SileroEngine) Languages() []string {
	return []string{"ru", "en", "de", "es", "fr"}
}

// Health checks if the Silero service is available
func (e *SileroEngine) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", e.config.ServiceURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("silero unhealthy (status %d)", resp.StatusCode)
	}
	return nil
}
