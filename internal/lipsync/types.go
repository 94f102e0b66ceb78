// Package lipsync produces per-frame mouth blendshape weights for a piece
// of synthesized speech audio.
package lipsync

import (
	"context"
	"errors"
)

var (
	// ErrGeneratorUnavailable marks a generator whose backing tool or
	// service cannot be reached.
	ErrGeneratorUnavailable = errors.New("lipsync generator unavailable")
	// ErrUnknownGenerator is returned by the factory for an
	// unrecognized generator name.
	ErrUnknownGenerator = errors.New("unknown lipsync generator")
)

// BlendshapeFrame holds the mouth shape weights at one instant, keyed by
// viseme blendshape name with weights in [0, 1].
type BlendshapeFrame struct {
	Timestamp   float64            `json:"timestamp"`
	MouthShapes map[string]float64 `json:"mouth_shapes"`
}

// BlendshapeWeights is the full lipsync track for one audio segment.
type BlendshapeWeights struct {
	Frames   []BlendshapeFrame `json:"frames"`
	FPS      float64           `json:"fps"`
	Duration float64           `json:"duration"`
}

// Generator derives blendshape weights from speech audio on disk.
type Generator interface {
	// Name identifies the generator implementation.
	Name() string

	// Generate analyzes the WAV file at audioPath. The text is the
	// transcript of the audio and may improve phoneme recognition.
	Generate(ctx context.Context, audioPath, text string) (*BlendshapeWeights, error)

	// PhonemeMapping exposes the phoneme code to blendshape name table
	// the generator emits frames with.
	PhonemeMapping() map[string]string

	// Health reports whether the generator can do useful work.
	Health(ctx context.Context) error
}
