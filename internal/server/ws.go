package server

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/normanking/avatarpipe/internal/llm"
	"github.com/normanking/avatarpipe/internal/pipeline"
)

// wsConn wraps one stream socket. It doubles as a broadcast observer so
// frames produced for other clients' requests animate this one too.
// Writes are serialized; gorilla connections allow one writer at a time.
type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	logger       zerolog.Logger

	mu sync.Mutex
}

func (c *wsConn) send(msgType string, payload any) error {
	data, err := Encode(msgType, payload)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// OnFrame implements broadcast.Observer.
func (c *wsConn) OnFrame(frame *pipeline.Frame) error {
	return c.send(TypeFrame, framePayload(frame))
}

// OnStreamError implements broadcast.Observer.
func (c *wsConn) OnStreamError(message, stage string) error {
	return c.send(TypeError, ErrorPayload{Message: message, Stage: stage})
}

// handleStream upgrades the connection and serves chat requests over it.
// Each request streams frame envelopes followed by a done envelope.
// Conversation history is kept per connection, bounded by the configured
// turn limit.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	client := &wsConn{
		conn:         conn,
		writeTimeout: s.cfg.WriteTimeout,
		logger:       s.logger,
	}

	s.caster.Subscribe(client)
	defer s.caster.Unsubscribe(client)

	s.logger.Info().Str("remote", conn.RemoteAddr().String()).Msg("Stream client connected")

	var history []llm.Message
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn().Err(err).Msg("Stream client read error")
			}
			return
		}

		req, err := DecodeChat(data)
		if err != nil {
			client.send(TypeError, ErrorPayload{Message: err.Error()})
			continue
		}

		reply, ok := s.serveChat(r.Context(), client, req.Text, history)
		if ok {
			history = append(history,
				llm.Message{Role: llm.RoleUser, Content: req.Text},
				llm.Message{Role: llm.RoleAssistant, Content: reply},
			)
			history = trimHistory(history, s.cfg.MaxHistory)
		}
	}
}

// serveChat runs one pipeline pass for the requesting client. Frames go
// to the requester directly and to every other subscriber through the
// broadcaster. It returns the full reply text and whether the stream
// completed.
func (s *Server) serveChat(ctx context.Context, client *wsConn, text string, history []llm.Message) (string, bool) {
	stream, err := s.pipe.Process(ctx, text, history)
	if err != nil {
		client.send(TypeError, pipelineErrorPayload(err))
		return "", false
	}
	defer stream.Close()

	var reply string
	var duration float64
	for {
		frame, err := stream.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			payload := pipelineErrorPayload(err)
			client.send(TypeError, payload)
			s.notifyOthersOfAbort(client, payload)
			return "", false
		}

		if sendErr := client.OnFrame(frame); sendErr != nil {
			s.logger.Warn().Err(sendErr).Msg("Stream client write failed mid-response")
			return "", false
		}
		s.publishToOthers(client, frame)

		if reply != "" {
			reply += " "
		}
		reply += frame.TextChunk
		if frame.Audio != nil {
			duration += frame.Audio.Duration.Seconds()
		}
	}

	client.send(TypeDone, DonePayload{Text: reply, Frames: stream.Frames(), Duration: duration})
	return reply, true
}

// notifyOthersOfAbort fans an abort notice out to every other subscriber
// so mirroring clients do not wait on a stream that will never finish.
func (s *Server) notifyOthersOfAbort(requester *wsConn, payload ErrorPayload) {
	s.caster.Unsubscribe(requester)
	defer s.caster.Subscribe(requester)
	if err := s.caster.PublishError(payload.Message, payload.Stage); err != nil {
		s.logger.Warn().Err(err).Msg("Abort fan-out failure")
	}
}

// publishToOthers fans the frame out while keeping the requester from
// receiving it twice.
func (s *Server) publishToOthers(requester *wsConn, frame *pipeline.Frame) {
	s.caster.Unsubscribe(requester)
	defer s.caster.Subscribe(requester)
	if err := s.caster.Publish(frame); err != nil {
		s.logger.Warn().Err(err).Msg("Fan-out failure during stream")
	}
}

func pipelineErrorPayload(err error) ErrorPayload {
	if stageErr, ok := err.(*pipeline.StageError); ok {
		return ErrorPayload{Message: stageErr.Error(), Stage: stageErr.Stage}
	}
	return ErrorPayload{Message: err.Error()}
}
