package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/normanking/avatarpipe/internal/broadcast"
	"github.com/normanking/avatarpipe/internal/config"
	"github.com/normanking/avatarpipe/internal/llm"
	"github.com/normanking/avatarpipe/internal/pipeline"
)

// Server serves the chat, stream, and health endpoints.
type Server struct {
	pipe     *pipeline.Pipeline
	caster   *broadcast.Broadcaster
	cfg      config.ServerConfig
	logger   zerolog.Logger
	upgrader websocket.Upgrader
	http     *http.Server
}

// New builds the server around a wired pipeline.
func New(pipe *pipeline.Pipeline, cfg config.ServerConfig, logger zerolog.Logger) *Server {
	s := &Server{
		pipe:   pipe,
		caster: broadcast.New(logger),
		cfg:    cfg,
		logger: logger.With().Str("component", "server").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browser clients connect from arbitrary origins in
			// local deployments.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/chat", s.handleChat)
	mux.HandleFunc("GET /api/v1/stream", s.handleStream)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	s.http = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: mux,
	}
	return s
}

// Handler exposes the route table, mainly for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.http.Addr).Msg("Server listening")
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// handleChat runs the full pipeline and returns the aggregated response
// text. Frames are still fanned out to stream subscribers, so a connected
// avatar client animates along with a plain REST call.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "request body unreadable")
		return
	}

	var req ChatRequest
	if err := sonic.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request")
		return
	}

	stream, err := s.pipe.Process(r.Context(), req.Text, nil)
	if err != nil {
		s.writePipelineError(w, err)
		return
	}
	defer stream.Close()

	var parts []string
	var duration float64
	for {
		frame, err := stream.Next(r.Context())
		if err == io.EOF {
			break
		}
		if err != nil {
			s.writePipelineError(w, err)
			return
		}
		parts = append(parts, frame.TextChunk)
		if frame.Audio != nil {
			duration += frame.Audio.Duration.Seconds()
		}
		if pubErr := s.caster.Publish(frame); pubErr != nil {
			s.logger.Warn().Err(pubErr).Msg("Fan-out failure during chat")
		}
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		Text:     strings.Join(parts, " "),
		Frames:   stream.Frames(),
		Duration: duration,
	})
}

// handleHealth reports per-stage pipeline health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	components := s.pipe.Healthcheck(r.Context())

	status := "ok"
	code := http.StatusOK
	for _, healthy := range components {
		if !healthy {
			status = "degraded"
			code = http.StatusServiceUnavailable
			break
		}
	}

	writeJSON(w, code, HealthResponse{Status: status, Components: components})
}

func (s *Server) writePipelineError(w http.ResponseWriter, err error) {
	var stageErr *pipeline.StageError
	switch {
	case errors.Is(err, pipeline.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &stageErr):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	data, err := sonic.Marshal(body)
	if err != nil {
		http.Error(w, "encoding failure", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(data)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}

// trimHistory keeps the newest maxTurns exchanges, two messages per turn.
func trimHistory(history []llm.Message, maxTurns int) []llm.Message {
	if maxTurns <= 0 {
		return history
	}
	limit := maxTurns * 2
	if len(history) <= limit {
		return history
	}
	return history[len(history)-limit:]
}
