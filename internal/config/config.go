// Package config provides configuration management for avatarpipe
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	LLM     LLMConfig     `mapstructure:"llm"`
	TTS     TTSConfig     `mapstructure:"tts"`
	Lipsync LipsyncConfig `mapstructure:"lipsync"`
	Motion  MotionConfig  `mapstructure:"motion"`
	Chunker ChunkerConfig `mapstructure:"chunker"`
	Server  ServerConfig  `mapstructure:"server"`
}

// LLMConfig configures the language generation provider
type LLMConfig struct {
	Provider     string        `mapstructure:"provider"` // ollama, openai
	Model        string        `mapstructure:"model"`
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	Temperature  float64       `mapstructure:"temperature"`
	MaxTokens    int           `mapstructure:"max_tokens"`
	SystemPrompt string        `mapstructure:"system_prompt"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// TTSConfig configures the speech synthesis engine
type TTSConfig struct {
	Engine     string        `mapstructure:"engine"` // silero, xtts
	ServiceURL string        `mapstructure:"service_url"`
	Language   string        `mapstructure:"language"`
	Speaker    string        `mapstructure:"speaker"`
	SpeakerWAV string        `mapstructure:"speaker_wav"` // voice cloning reference (xtts)
	Speed      float64       `mapstructure:"speed"`
	SampleRate int           `mapstructure:"sample_rate"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// LipsyncConfig configures the lipsync generator
type LipsyncConfig struct {
	Generator   string        `mapstructure:"generator"` // rhubarb
	RhubarbPath string        `mapstructure:"rhubarb_path"`
	Recognizer  string        `mapstructure:"recognizer"` // pocketSphinx, phonetic
	Timeout     time.Duration `mapstructure:"timeout"`
}

// MotionConfig configures motion generation and sentiment analysis
type MotionConfig struct {
	Generator          string        `mapstructure:"generator"` // preset
	AnimationsDir      string        `mapstructure:"animations_dir"`
	FallbackAction     string        `mapstructure:"fallback_action"`
	WatchPresets       bool          `mapstructure:"watch_presets"`
	Sentiment          string        `mapstructure:"sentiment"` // lexicon, remote
	SentimentURL       string        `mapstructure:"sentiment_url"`
	SentimentThreshold float64       `mapstructure:"sentiment_threshold"` // below this confidence -> thinking
	SentimentTimeout   time.Duration `mapstructure:"sentiment_timeout"`
}

// ChunkerConfig configures token-stream segmentation
type ChunkerConfig struct {
	Mode     string `mapstructure:"mode"` // words, punctuation, hybrid
	MaxWords int    `mapstructure:"max_words"`
	MinWords int    `mapstructure:"min_words"`
}

// ServerConfig configures the HTTP/WebSocket server
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	MaxInputLength int           `mapstructure:"max_input_length"`
	MaxHistory     int           `mapstructure:"max_history"` // turns retained per connection
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:     "ollama",
			Model:        "mistral:7b-instruct-q4_K_M",
			BaseURL:      "http://localhost:11434",
			Temperature:  0.7,
			MaxTokens:    512,
			SystemPrompt: "You are a friendly assistant driving a virtual avatar. Keep answers short and speakable.",
			Timeout:      60 * time.Second,
		},
		TTS: TTSConfig{
			Engine:     "silero",
			ServiceURL: "http://localhost:8920",
			Language:   "ru",
			Speaker:    "baya",
			Speed:      1.0,
			SampleRate: 24000,
			Timeout:    30 * time.Second,
		},
		Lipsync: LipsyncConfig{
			Generator:   "rhubarb",
			RhubarbPath: "assets/rhubarb/rhubarb",
			Recognizer:  "pocketSphinx",
			Timeout:     5 * time.Minute,
		},
		Motion: MotionConfig{
			Generator:          "preset",
			AnimationsDir:      "assets/animations",
			FallbackAction:     "idle",
			WatchPresets:       true,
			Sentiment:          "lexicon",
			SentimentThreshold: 0.6,
			SentimentTimeout:   10 * time.Second,
		},
		Chunker: ChunkerConfig{
			Mode:     "hybrid",
			MaxWords: 10,
			MinWords: 4,
		},
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8000,
			MaxInputLength: 2000,
			MaxHistory:     10,
			WriteTimeout:   10 * time.Second,
		},
	}
}

// Load reads configuration from file and environment.
// An empty path falls back to ~/.avatarpipe/config.yaml and the working directory.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(homeDir, ".avatarpipe"))
		}
		v.AddConfigPath(".")
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("AVATARPIPE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !notFound && !os.IsNotExist(err) {
			return cfg, err
		}
		// Missing config file means defaults apply.
	}

	if err := v.Unmarshal(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Save writes the configuration to ~/.avatarpipe/config.yaml.
func Save(cfg *Config) error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	configDir := filepath.Join(homeDir, ".avatarpipe")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}

	v := viper.New()
	v.Set("llm", cfg.LLM)
	v.Set("tts", cfg.TTS)
	v.Set("lipsync", cfg.Lipsync)
	v.Set("motion", cfg.Motion)
	v.Set("chunker", cfg.Chunker)
	v.Set("server", cfg.Server)

	return v.WriteConfigAs(filepath.Join(configDir, "config.yaml"))
}
