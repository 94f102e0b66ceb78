package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/normanking/avatarpipe/internal/chunker"
	"github.com/normanking/avatarpipe/internal/lipsync"
	"github.com/normanking/avatarpipe/internal/llm"
	"github.com/normanking/avatarpipe/internal/motion"
	"github.com/normanking/avatarpipe/internal/tts"
)

const defaultMaxInput = 2000

// Options tunes pipeline behavior beyond the wired capabilities.
type Options struct {
	// Chunker controls text segmentation.
	Chunker chunker.Config
	// MaxInputLength is the longest accepted utterance in characters.
	MaxInputLength int
	// SystemPrompt is prepended to every conversation, when set.
	SystemPrompt string
	// Generate carries sampling parameters through to the language
	// model.
	Generate llm.GenerateOptions
	// TempDir receives transient audio files for lipsync analysis.
	// Empty means the system temp directory.
	TempDir string
}

// Pipeline orchestrates the response stages. The language model and
// speech synthesis are essential: their failures abort the stream. The
// lipsync, sentiment, and motion stages are best effort: their failures
// degrade the frame and the stream continues.
type Pipeline struct {
	llm       llm.Provider
	tts       tts.Engine
	lipsync   lipsync.Generator
	sentiment motion.Analyzer
	motion    motion.Generator

	opts   Options
	logger zerolog.Logger
}

// New wires the pipeline. The llm and tts capabilities are required; any
// of lipsync, sentiment, and motion may be nil, in which case that stage
// always degrades.
func New(provider llm.Provider, engine tts.Engine, lips lipsync.Generator, analyzer motion.Analyzer, mover motion.Generator, opts Options, logger zerolog.Logger) (*Pipeline, error) {
	if provider == nil {
		return nil, fmt.Errorf("pipeline requires an llm provider")
	}
	if engine == nil {
		return nil, fmt.Errorf("pipeline requires a tts engine")
	}
	if opts.MaxInputLength <= 0 {
		opts.MaxInputLength = defaultMaxInput
	}

	return &Pipeline{
		llm:       provider,
		tts:       engine,
		lipsync:   lips,
		sentiment: analyzer,
		motion:    mover,
		opts:      opts,
		logger:    logger.With().Str("component", "pipeline").Logger(),
	}, nil
}

// Process validates the input and opens a frame stream for it. History
// carries prior conversation turns, oldest first. No backend is contacted
// when validation fails.
func (p *Pipeline) Process(ctx context.Context, input string, history []llm.Message) (*FrameStream, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty text", ErrInvalidInput)
	}
	if len([]rune(input)) > p.opts.MaxInputLength {
		return nil, fmt.Errorf("%w: text exceeds %d characters", ErrInvalidInput, p.opts.MaxInputLength)
	}

	messages := make([]llm.Message, 0, len(history)+2)
	if p.opts.SystemPrompt != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: p.opts.SystemPrompt})
	}
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: trimmed})

	tokens, err := p.llm.GenerateStream(ctx, messages, p.opts.Generate)
	if err != nil {
		return nil, &StageError{Stage: "llm", Err: err}
	}

	p.logger.Info().Int("input_len", len(trimmed)).Int("history", len(history)).Msg("Stream opened")

	return &FrameStream{
		pipe:   p,
		tokens: tokens,
		seg:    chunker.New(p.opts.Chunker, p.logger),
	}, nil
}

// Healthcheck probes every wired capability and reports per-stage health.
// A capability without a probe counts as healthy; a probe that fails or
// panics counts as unhealthy and never propagates.
func (p *Pipeline) Healthcheck(ctx context.Context) map[string]bool {
	return map[string]bool{
		"llm":     probe(ctx, p.llm),
		"tts":     probe(ctx, p.tts),
		"lipsync": probe(ctx, p.lipsync),
		"motion":  probe(ctx, p.motion),
	}
}

func probe(ctx context.Context, capability any) (healthy bool) {
	if capability == nil {
		// Absent capability, nothing to probe.
		return true
	}
	h, ok := capability.(interface{ Health(context.Context) error })
	if !ok {
		return true
	}
	defer func() {
		if recover() != nil {
			healthy = false
		}
	}()
	return h.Health(ctx) == nil
}
