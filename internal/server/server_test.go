package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/avatarpipe/internal/chunker"
	"github.com/normanking/avatarpipe/internal/config"
	"github.com/normanking/avatarpipe/internal/llm"
	"github.com/normanking/avatarpipe/internal/pipeline"
	"github.com/normanking/avatarpipe/internal/tts"
)

type stubStream struct {
	tokens []string
	idx    int
}

func (s *stubStream) Recv() (string, error) {
	if s.idx >= len(s.tokens) {
		return "", io.EOF
	}
	tok := s.tokens[s.idx]
	s.idx++
	return tok, nil
}

func (s *stubStream) Close() error { return nil }

type stubProvider struct {
	tokens      []string
	healthErr   error
	lastHistory []llm.Message
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Generate(_ context.Context, _ []llm.Message, _ llm.GenerateOptions) (*llm.Response, error) {
	return &llm.Response{Text: strings.Join(p.tokens, "")}, nil
}

func (p *stubProvider) GenerateStream(_ context.Context, messages []llm.Message, _ llm.GenerateOptions) (llm.TokenStream, error) {
	p.lastHistory = messages
	return &stubStream{tokens: p.tokens}, nil
}

func (p *stubProvider) Health(_ context.Context) error { return p.healthErr }

type stubEngine struct {
	healthErr error
}

func (e *stubEngine) Name() string { return "stub" }

func (e *stubEngine) Synthesize(_ context.Context, text string) (*tts.AudioSegment, error) {
	return &tts.AudioSegment{
		Bytes:      []byte("audio:" + text),
		SampleRate: 24000,
		Format:     "wav",
		Duration:   250 * time.Millisecond,
	}, nil
}

func (e *stubEngine) Languages() []string { return []string{"en"} }

func (e *stubEngine) Health(_ context.Context) error { return e.healthErr }

func newTestServer(t *testing.T, provider *stubProvider, engine *stubEngine) *Server {
	t.Helper()
	pipe, err := pipeline.New(provider, engine, nil, nil, nil,
		pipeline.Options{Chunker: chunker.DefaultConfig(), TempDir: t.TempDir()},
		zerolog.Nop())
	require.NoError(t, err)

	return New(pipe, config.ServerConfig{
		MaxHistory:   2,
		WriteTimeout: 5 * time.Second,
	}, zerolog.Nop())
}

func TestChatEndpoint(t *testing.T) {
	provider := &stubProvider{tokens: []string{"Hello there, nice to meet you today."}}
	srv := httptest.NewServer(newTestServer(t, provider, &stubEngine{}).Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/chat", "application/json",
		bytes.NewBufferString(`{"text":"hi"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out ChatResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "Hello there, nice to meet you today.", out.Text)
	assert.Equal(t, 1, out.Frames)
	assert.InDelta(t, 0.25, out.Duration, 1e-9)
}

func TestChatEndpointRejectsEmptyText(t *testing.T) {
	provider := &stubProvider{tokens: []string{"hi"}}
	srv := httptest.NewServer(newTestServer(t, provider, &stubEngine{}).Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/chat", "application/json",
		bytes.NewBufferString(`{"text":"  "}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChatEndpointMalformedBody(t *testing.T) {
	provider := &stubProvider{tokens: []string{"hi"}}
	srv := httptest.NewServer(newTestServer(t, provider, &stubEngine{}).Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/chat", "application/json",
		bytes.NewBufferString(`{"text": 12`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		srv := httptest.NewServer(newTestServer(t, &stubProvider{}, &stubEngine{}).Handler())
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)

		var health HealthResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
		assert.Equal(t, "ok", health.Status)
		assert.True(t, health.Components["llm"])
		assert.True(t, health.Components["tts"])
	})

	t.Run("degraded", func(t *testing.T) {
		engine := &stubEngine{healthErr: tts.ErrEngineUnavailable}
		srv := httptest.NewServer(newTestServer(t, &stubProvider{}, engine).Handler())
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		var health HealthResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
		assert.Equal(t, "degraded", health.Status)
		assert.False(t, health.Components["tts"])
	})
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http") + "/api/v1/stream"
}

func readEnvelope(t *testing.T, conn *websocket.Conn) (string, json.RawMessage) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var env struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(data, &env))
	return env.Type, env.Payload
}

func TestStreamSocket(t *testing.T) {
	provider := &stubProvider{tokens: []string{"Sure, I can absolutely help with that."}}
	srv := httptest.NewServer(newTestServer(t, provider, &stubEngine{}).Handler())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv.URL), nil)
	require.NoError(t, err)
	defer conn.Close()

	msg, err := Encode(TypeChat, ChatRequest{Text: "help me"})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, msg))

	msgType, payload := readEnvelope(t, conn)
	require.Equal(t, TypeFrame, msgType)

	var frame FramePayload
	require.NoError(t, json.Unmarshal(payload, &frame))
	assert.Equal(t, "Sure, I can absolutely help with that.", frame.TextChunk)
	assert.Equal(t, 0.0, frame.Timestamp)
	require.NotNil(t, frame.Audio)
	assert.Equal(t, "wav", frame.Audio.Format)
	assert.NotEmpty(t, frame.Audio.Data)

	msgType, payload = readEnvelope(t, conn)
	require.Equal(t, TypeDone, msgType)

	var done DonePayload
	require.NoError(t, json.Unmarshal(payload, &done))
	assert.Equal(t, 1, done.Frames)
	assert.Equal(t, "Sure, I can absolutely help with that.", done.Text)
}

func TestStreamSocketCarriesHistory(t *testing.T) {
	provider := &stubProvider{tokens: []string{"Answer number one, with several words."}}
	srv := httptest.NewServer(newTestServer(t, provider, &stubEngine{}).Handler())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv.URL), nil)
	require.NoError(t, err)
	defer conn.Close()

	ask := func(text string) {
		msg, err := Encode(TypeChat, ChatRequest{Text: text})
		require.NoError(t, err)
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, msg))
		for {
			msgType, _ := readEnvelope(t, conn)
			if msgType == TypeDone {
				return
			}
		}
	}

	ask("first question")
	ask("second question")

	// The second request must carry the first exchange.
	require.Len(t, provider.lastHistory, 3)
	assert.Equal(t, llm.RoleUser, provider.lastHistory[0].Role)
	assert.Equal(t, "first question", provider.lastHistory[0].Content)
	assert.Equal(t, llm.RoleAssistant, provider.lastHistory[1].Role)
	assert.Equal(t, "second question", provider.lastHistory[2].Content)
}

func TestStreamSocketRejectsBadEnvelope(t *testing.T) {
	provider := &stubProvider{tokens: []string{"hi"}}
	srv := httptest.NewServer(newTestServer(t, provider, &stubEngine{}).Handler())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv.URL), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"dance"}`)))

	msgType, payload := readEnvelope(t, conn)
	require.Equal(t, TypeError, msgType)

	var errPayload ErrorPayload
	require.NoError(t, json.Unmarshal(payload, &errPayload))
	assert.Contains(t, errPayload.Message, "dance")
}

func TestTrimHistory(t *testing.T) {
	history := []llm.Message{
		{Role: llm.RoleUser, Content: "1"},
		{Role: llm.RoleAssistant, Content: "2"},
		{Role: llm.RoleUser, Content: "3"},
		{Role: llm.RoleAssistant, Content: "4"},
		{Role: llm.RoleUser, Content: "5"},
		{Role: llm.RoleAssistant, Content: "6"},
	}

	trimmed := trimHistory(history, 2)
	require.Len(t, trimmed, 4)
	assert.Equal(t, "3", trimmed[0].Content)

	assert.Len(t, trimHistory(history, 0), 6)
	assert.Len(t, trimHistory(history[:2], 2), 2)
}
