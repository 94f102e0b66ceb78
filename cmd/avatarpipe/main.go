// Command avatarpipe serves a streaming talking-avatar pipeline: language
// model tokens in, timestamped frames of speech, lipsync, emotion, and
// body motion out.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/normanking/avatarpipe/internal/chunker"
	"github.com/normanking/avatarpipe/internal/config"
	"github.com/normanking/avatarpipe/internal/lipsync"
	"github.com/normanking/avatarpipe/internal/llm"
	"github.com/normanking/avatarpipe/internal/logging"
	"github.com/normanking/avatarpipe/internal/motion"
	"github.com/normanking/avatarpipe/internal/pipeline"
	"github.com/normanking/avatarpipe/internal/server"
	"github.com/normanking/avatarpipe/internal/tts"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:          "avatarpipe",
		Short:        "Streaming talking-avatar response pipeline",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")

	root.AddCommand(serveCmd(), healthCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}

			pipe, cleanup, err := buildPipeline(cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := server.New(pipe, cfg.Server, logger)
			return srv.Run(ctx)
		},
	}
}

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Probe the configured backends and report per-stage health",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}

			pipe, cleanup, err := buildPipeline(cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			healthy := true
			for stage, ok := range pipe.Healthcheck(cmd.Context()) {
				state := "ok"
				if !ok {
					state = "unhealthy"
					healthy = false
				}
				fmt.Printf("%-8s %s\n", stage, state)
			}
			if !healthy {
				return fmt.Errorf("one or more stages unhealthy")
			}
			return nil
		},
	}
}

func setup() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(logging.DefaultConfig())
	if err != nil {
		return nil, zerolog.Logger{}, fmt.Errorf("init logging: %w", err)
	}
	return cfg, logger, nil
}

// buildPipeline wires the capabilities from configuration. The lipsync,
// sentiment, and motion stages are optional; a failure to build one is
// logged and the stage runs degraded.
func buildPipeline(cfg *config.Config, logger zerolog.Logger) (*pipeline.Pipeline, func(), error) {
	provider, err := llm.New(cfg.LLM, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("llm: %w", err)
	}

	engine, err := tts.New(cfg.TTS, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("tts: %w", err)
	}

	var lips lipsync.Generator
	if lips, err = lipsync.New(cfg.Lipsync, logger); err != nil {
		logger.Warn().Err(err).Msg("Lipsync disabled")
		lips = nil
	}

	var analyzer motion.Analyzer
	if analyzer, err = motion.NewAnalyzer(cfg.Motion, logger); err != nil {
		logger.Warn().Err(err).Msg("Sentiment disabled")
		analyzer = nil
	}

	cleanup := func() {}
	var mover motion.Generator
	if mover, err = motion.New(cfg.Motion, logger); err != nil {
		logger.Warn().Err(err).Msg("Motion disabled")
		mover = nil
	} else if closer, ok := mover.(interface{ Close() error }); ok {
		cleanup = func() { closer.Close() }
	}

	pipe, err := pipeline.New(provider, engine, lips, analyzer, mover, pipeline.Options{
		Chunker: chunker.Config{
			Mode:     chunker.Mode(cfg.Chunker.Mode),
			MaxWords: cfg.Chunker.MaxWords,
			MinWords: cfg.Chunker.MinWords,
		},
		MaxInputLength: cfg.Server.MaxInputLength,
		SystemPrompt:   cfg.LLM.SystemPrompt,
		Generate: llm.GenerateOptions{
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
		},
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	return pipe, cleanup, nil
}
