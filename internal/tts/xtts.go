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

// XTTSConfig holds configuration for the XTTS engine client
type XTTSConfig struct {
	ServiceURL string        `json:"service_url"` // e.g., "http://localhost:8020"
	Language   string        `json:"language"`
	SpeakerWAV string        `json:"speaker_wav"` // reference voice for cloning
	Speed      float64       `json:"speed"`
	Timeout    time.Duration `json:"timeout"`
}

// DefaultXTTSConfig returns sensible defaults
func DefaultXTTSConfig() *XTTSConfig {
	return &XTTSConfig{
		ServiceURL: "http://localhost:8020",
		Language:   "ru",
		Speed:      1.0,
		Timeout:    60 * time.Second,
	}
}

// XTTSEngine synthesizes speech through an XTTS-v2 microservice.
// Slower than Silero but supports voice cloning via a reference WAV.
type XTTSEngine struct {
	config     *XTTSConfig
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewXTTSEngine creates a new XTTS engine client
func NewXTTSEngine(config *XTTSConfig, logger zerolog.Logger) *XTTSEngine {
	if config == nil {
		config = DefaultXTTSConfig()
	}

	return &XTTSEngine{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger.With().Str("engine", "xtts").Logger(),
	}
}

// Name returns the engine identifier
func (e *XTTSEngine) Name() string {
	return "xtts"
}

// Synthesize converts text to a WAV audio segment
func (e *XTTSEngine) Synthesize(ctx context.Context, text string) (*AudioSegment, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	payload := map[string]interface{}{
		"text":     text,
		"language": e.config.Language,
		"speed":    e.config.Speed,
	}
	if e.config.SpeakerWAV != "" {
		payload["speaker_wav"] = e.config.SpeakerWAV
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
		return nil, fmt.Errorf("xtts returned status %d: %s", resp.StatusCode, string(respBody))
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

	sampleRate := 24000 // XTTS-v2 output rate
	return &AudioSegment{
		Bytes:      audio,
		SampleRate: sampleRate,
		Format:     "wav",
		Duration:   duration,
	}, nil
}

// Languages returns supported language codes
func (e *XTTSEngine) Languages() []string {
	return []string{"ru", "en", "de", "es", "fr", "it", "pt", "pl", "tr", "nl", "cs", "ar", "zh", "ja", "ko"}
}

// Health checks if the XTTS service is available
func (e *XTTSEngine) Health(ctx context.Context) error {
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
		return fmt.Errorf("xtts unhealthy (status %d)", resp.StatusCode)
	}
	return nil
}
