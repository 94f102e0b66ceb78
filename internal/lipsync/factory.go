package lipsync

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/normanking/avatarpipe/internal/config"
)

// New builds the Generator selected by the configuration.
func New(cfg config.LipsyncConfig, logger zerolog.Logger) (Generator, error) {
	switch cfg.Generator {
	case "rhubarb", "":
		return NewRhubarbGenerator(RhubarbConfig{
			BinaryPath: cfg.RhubarbPath,
			Recognizer: cfg.Recognizer,
			Timeout:    cfg.Timeout,
		}, logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownGenerator, cfg.Generator)
	}
}
