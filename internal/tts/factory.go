package tts

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/normanking/avatarpipe/internal/config"
)

// New constructs the engine selected by cfg.Engine.
func New(cfg config.TTSConfig, logger zerolog.Logger) (Engine, error) {
	switch cfg.Engine {
	case "silero":
		return NewSileroEngine(&SileroConfig{
			ServiceURL: cfg.ServiceURL,
			Language:   cfg.Language,
			Speaker:    cfg.Speaker,
			SampleRate: cfg.SampleRate,
			Timeout:    cfg.Timeout,
		}, logger), nil
	case "xtts":
		return NewXTTSEngine(&XTTSConfig{
			ServiceURL: cfg.ServiceURL,
			Language:   cfg.Language,
			SpeakerWAV: cfg.SpeakerWAV,
			Speed:      cfg.Speed,
			Timeout:    cfg.Timeout,
		}, logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, cfg.Engine)
	}
}
