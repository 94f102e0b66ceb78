// Package server exposes the avatar pipeline over HTTP and WebSocket.
package server

import (
	"github.com/normanking/avatarpipe/internal/lipsync"
	"github.com/normanking/avatarpipe/internal/motion"
)

// Message types carried in envelopes on the stream socket.
const (
	TypeChat  = "chat"
	TypeFrame = "frame"
	TypeDone  = "done"
	TypeError = "error"
)

// ChatRequest asks for a spoken response to the given text.
type ChatRequest struct {
	Text string `json:"text"`
}

// ChatResponse is the aggregated result of a non-streaming chat call.
type ChatResponse struct {
	Text     string  `json:"text"`
	Frames   int     `json:"frames"`
	Duration float64 `json:"duration"`
}

// AudioPayload carries one chunk's audio, base64 encoded.
type AudioPayload struct {
	Data       string  `json:"data"`
	SampleRate int     `json:"sample_rate"`
	Format     string  `json:"format"`
	Duration   float64 `json:"duration"`
}

// FramePayload is the wire form of one avatar frame.
type FramePayload struct {
	Timestamp float64                    `json:"timestamp"`
	TextChunk string                     `json:"text_chunk"`
	Audio     *AudioPayload              `json:"audio,omitempty"`
	Lipsync   *lipsync.BlendshapeWeights `json:"lipsync,omitempty"`
	Motion    *motion.Keyframes          `json:"motion,omitempty"`
	Emotion   motion.Emotion             `json:"emotion"`
}

// DonePayload closes a streamed response with the full reply text and
// total spoken duration.
type DonePayload struct {
	Text     string  `json:"text"`
	Frames   int     `json:"frames"`
	Duration float64 `json:"duration"`
}

// ErrorPayload reports a failed request on the stream socket.
type ErrorPayload struct {
	Message string `json:"message"`
	Stage   string `json:"stage,omitempty"`
}

// HealthResponse is the health endpoint body.
type HealthResponse struct {
	Status     string          `json:"status"`
	Components map[string]bool `json:"components"`
}
