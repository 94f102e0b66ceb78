// Package motion selects body animation keyframes for a spoken chunk and
// classifies the emotion driving the selection.
package motion

import (
	"context"
	"errors"
)

var (
	// ErrUnknownGenerator is returned by the factory for an
	// unrecognized generator name.
	ErrUnknownGenerator = errors.New("unknown motion generator")
	// ErrUnknownAnalyzer is returned by the factory for an
	// unrecognized sentiment analyzer name.
	ErrUnknownAnalyzer = errors.New("unknown sentiment analyzer")
	// ErrNoPreset means neither the requested action nor the fallback
	// could be loaded.
	ErrNoPreset = errors.New("no motion preset available")
)

// Emotion is the coarse affective state steering animation choice.
type Emotion string

const (
	EmotionNeutral  Emotion = "neutral"
	EmotionHappy    Emotion = "happy"
	EmotionSad      Emotion = "sad"
	EmotionThinking Emotion = "thinking"
)

// Keyframe is one pose sample. Rotations are unit quaternions stored as
// [x, y, z, w]; positions are optional local translations.
type Keyframe struct {
	Timestamp     float64               `json:"timestamp"`
	BoneRotations map[string][4]float64 `json:"bone_rotations"`
	BonePositions map[string][3]float64 `json:"bone_positions,omitempty"`
}

// Keyframes is a complete animation clip for one chunk.
type Keyframes struct {
	Keyframes []Keyframe `json:"keyframes"`
	Emotion   Emotion    `json:"emotion"`
	Duration  float64    `json:"duration"`
}

// Generator produces an animation clip matching the emotional tone of a
// chunk, scaled to the chunk's audio duration. A non-empty actionHint
// names a specific clip and takes precedence over the emotion mapping.
type Generator interface {
	Name() string
	Generate(ctx context.Context, emotion Emotion, duration float64, actionHint string) (*Keyframes, error)
	AvailableActions() []string
	Health(ctx context.Context) error
}

// Analyzer classifies the emotion of a text chunk.
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, text string) (Emotion, error)
}
