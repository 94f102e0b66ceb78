package server

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/normanking/avatarpipe/internal/pipeline"
)

// Envelope frames every message on the stream socket.
type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// rawEnvelope defers payload decoding until the type is known.
type rawEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encode marshals an envelope of the given type around the payload.
func Encode(msgType string, payload any) ([]byte, error) {
	data, err := sonic.Marshal(Envelope{Type: msgType, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", msgType, err)
	}
	return data, nil
}

// DecodeChat parses an inbound envelope and returns its chat request.
// Any other envelope type is rejected.
func DecodeChat(data []byte) (*ChatRequest, error) {
	var env rawEnvelope
	if err := sonic.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type != TypeChat {
		return nil, fmt.Errorf("unexpected message type %q", env.Type)
	}

	var req ChatRequest
	if err := sonic.Unmarshal(env.Payload, &req); err != nil {
		return nil, fmt.Errorf("decode chat payload: %w", err)
	}
	return &req, nil
}

// framePayload converts a pipeline frame into its wire form, base64
// encoding the raw audio bytes.
func framePayload(frame *pipeline.Frame) *FramePayload {
	p := &FramePayload{
		Timestamp: frame.Timestamp,
		TextChunk: frame.TextChunk,
		Lipsync:   frame.Lipsync,
		Motion:    frame.Motion,
		Emotion:   frame.Emotion,
	}
	if frame.Audio != nil {
		p.Audio = &AudioPayload{
			Data:       base64.StdEncoding.EncodeToString(frame.Audio.Bytes),
			SampleRate: frame.Audio.SampleRate,
			Format:     frame.Audio.Format,
			Duration:   frame.Audio.Duration.Seconds(),
		}
	}
	return p
}
