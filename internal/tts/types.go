// Package tts provides speech synthesis engines for avatarpipe.
package tts

import (
	"context"
	"errors"
	"time"
)

// Common errors
var (
	ErrEngineUnavailable = errors.New("TTS engine unavailable")
	ErrEmptyText         = errors.New("text cannot be empty")
	ErrUnknownEngine     = errors.New("unknown TTS engine")
)

// AudioSegment is a synthesized audio unit with its metadata.
// Duration reflects the decodable length of Bytes.
type AudioSegment struct {
	Bytes      []byte        `json:"-"`
	SampleRate int           `json:"sample_rate"`
	Format     string        `json:"format"` // wav, mp3
	Duration   time.Duration `json:"duration"`
}

// Engine is the interface all speech synthesis engines implement.
type Engine interface {
	// Name returns the engine identifier (e.g., "silero", "xtts")
	Name() string

	// Synthesize converts chunk text to audio
	Synthesize(ctx context.Context, text string) (*AudioSegment, error)

	// Languages returns supported language codes
	Languages() []string

	// Health checks if the engine is available
	Health(ctx context.Context) error
}
