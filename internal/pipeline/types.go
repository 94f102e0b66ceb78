// Package pipeline turns a user utterance into a stream of timestamped
// avatar frames. Each frame carries one speakable text chunk with its
// synthesized audio, lipsync weights, emotion, and body motion.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/normanking/avatarpipe/internal/lipsync"
	"github.com/normanking/avatarpipe/internal/motion"
	"github.com/normanking/avatarpipe/internal/tts"
)

// ErrInvalidInput rejects empty input or input past the length limit
// before any backend is contacted.
var ErrInvalidInput = errors.New("invalid input")

// StageError aborts the stream when an essential stage fails. Best-effort
// stages never raise it; they degrade instead.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline aborted at %s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Frame is one unit of avatar output. Timestamp is the frame's offset in
// seconds from the start of the response; frames of one stream carry
// strictly non-decreasing timestamps.
type Frame struct {
	Timestamp float64                    `json:"timestamp"`
	TextChunk string                     `json:"text_chunk"`
	Audio     *tts.AudioSegment          `json:"audio,omitempty"`
	Lipsync   *lipsync.BlendshapeWeights `json:"lipsync,omitempty"`
	Motion    *motion.Keyframes          `json:"motion,omitempty"`
	Emotion   motion.Emotion             `json:"emotion"`
}
