package motion

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/normanking/avatarpipe/internal/config"
)

// New builds the motion Generator selected by the configuration.
func New(cfg config.MotionConfig, logger zerolog.Logger) (Generator, error) {
	switch cfg.Generator {
	case "preset", "":
		return NewPresetGenerator(PresetConfig{
			Dir:            cfg.AnimationsDir,
			FallbackAction: cfg.FallbackAction,
			Watch:          cfg.WatchPresets,
		}, logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownGenerator, cfg.Generator)
	}
}

// NewAnalyzer builds the sentiment Analyzer selected by the configuration.
func NewAnalyzer(cfg config.MotionConfig, logger zerolog.Logger) (Analyzer, error) {
	switch cfg.Sentiment {
	case "remote":
		if cfg.SentimentURL == "" {
			return nil, fmt.Errorf("remote sentiment analyzer requires a service URL")
		}
		return NewRemoteAnalyzer(cfg.SentimentURL, cfg.SentimentThreshold, cfg.SentimentTimeout, logger), nil
	case "lexicon", "":
		return NewLexiconAnalyzer(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAnalyzer, cfg.Sentiment)
	}
}
