package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, "silero", cfg.TTS.Engine)
	assert.Equal(t, "rhubarb", cfg.Lipsync.Generator)
	assert.Equal(t, "hybrid", cfg.Chunker.Mode)
	assert.Equal(t, 10, cfg.Chunker.MaxWords)
	assert.Equal(t, 4, cfg.Chunker.MinWords)
	assert.Equal(t, 2000, cfg.Server.MaxInputLength)
	assert.Equal(t, 0.6, cfg.Motion.SentimentThreshold)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  provider: openai
  model: gpt-4o-mini
chunker:
  max_words: 6
server:
  port: 9000
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 6, cfg.Chunker.MaxWords)
	assert.Equal(t, 9000, cfg.Server.Port)

	// Untouched sections keep their defaults.
	assert.Equal(t, "silero", cfg.TTS.Engine)
	assert.Equal(t, 4, cfg.Chunker.MinWords)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm: [not: a map"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
