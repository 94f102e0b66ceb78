package lipsync

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"
)

const defaultFPS = 30.0

// RhubarbConfig configures the Rhubarb Lip Sync CLI wrapper.
type RhubarbConfig struct {
	// BinaryPath is the rhubarb executable. Defaults to "rhubarb" on
	// the PATH.
	BinaryPath string
	// Recognizer selects the phoneme recognizer, "pocketSphinx" or
	// "phonetic".
	Recognizer string
	// FPS is the sampling rate of the generated frames.
	FPS float64
	// Timeout bounds one rhubarb run. Zero means no bound beyond the
	// caller's context.
	Timeout time.Duration
	// Mapping overrides the default mouth shape to blendshape mapping.
	Mapping map[string]string
}

// RhubarbGenerator shells out to the Rhubarb Lip Sync CLI and converts
// its mouth cue timeline into sampled blendshape frames.
type RhubarbGenerator struct {
	binary     string
	recognizer string
	fps        float64
	timeout    time.Duration
	mapper     *Mapper
	logger     zerolog.Logger
}

type rhubarbOutput struct {
	Metadata struct {
		SoundFile string  `json:"soundFile"`
		Duration  float64 `json:"duration"`
	} `json:"metadata"`
	MouthCues []rhubarbCue `json:"mouthCues"`
}

type rhubarbCue struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Value string  `json:"value"`
}

// NewRhubarbGenerator creates a generator around the rhubarb binary.
func NewRhubarbGenerator(cfg RhubarbConfig, logger zerolog.Logger) *RhubarbGenerator {
	if cfg.BinaryPath == "" {
		cfg.BinaryPath = "rhubarb"
	}
	if cfg.Recognizer == "" {
		cfg.Recognizer = "pocketSphinx"
	}
	if cfg.FPS <= 0 {
		cfg.FPS = defaultFPS
	}

	return &RhubarbGenerator{
		binary:     cfg.BinaryPath,
		recognizer: cfg.Recognizer,
		fps:        cfg.FPS,
		timeout:    cfg.Timeout,
		mapper:     NewMapper(cfg.Mapping),
		logger:     logger.With().Str("component", "lipsync").Logger(),
	}
}

func (g *RhubarbGenerator) Name() string { return "rhubarb" }

// PhonemeMapping returns the mouth shape code to blendshape table in use.
func (g *RhubarbGenerator) PhonemeMapping() map[string]string {
	return g.mapper.Mapping()
}

// Generate runs rhubarb against the WAV file and samples its mouth cue
// timeline at the configured frame rate.
func (g *RhubarbGenerator) Generate(ctx context.Context, audioPath, text string) (*BlendshapeWeights, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	args := []string{"-f", "json", "-r", g.recognizer}

	// A transcript steers the pocketSphinx recognizer towards the
	// right phonemes.
	if text != "" && g.recognizer == "pocketSphinx" {
		dialogFile, err := writeDialogFile(text)
		if err == nil {
			defer os.Remove(dialogFile)
			args = append(args, "--dialogFile", dialogFile)
		}
	}
	args = append(args, audioPath)

	cmd := exec.CommandContext(ctx, g.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		g.logger.Error().Err(err).Str("stderr", stderr.String()).Msg("Rhubarb run failed")
		return nil, fmt.Errorf("rhubarb: %w", err)
	}

	var out rhubarbOutput
	if err := sonic.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("rhubarb output: %w", err)
	}

	weights := g.sampleCues(out)
	g.logger.Debug().
		Int("cues", len(out.MouthCues)).
		Int("frames", len(weights.Frames)).
		Float64("duration", weights.Duration).
		Msg("Lipsync generated")
	return weights, nil
}

// sampleCues walks the cue timeline at a fixed frame interval. Gaps
// between cues, and any tail past the last cue, read as silence.
func (g *RhubarbGenerator) sampleCues(out rhubarbOutput) *BlendshapeWeights {
	duration := out.Metadata.Duration
	if duration <= 0 && len(out.MouthCues) > 0 {
		duration = out.MouthCues[len(out.MouthCues)-1].End
	}

	weights := &BlendshapeWeights{
		FPS:      g.fps,
		Duration: duration,
	}

	step := 1.0 / g.fps
	cueIdx := 0
	for t := 0.0; t < duration; t += step {
		for cueIdx < len(out.MouthCues) && out.MouthCues[cueIdx].End <= t {
			cueIdx++
		}
		code := "X"
		if cueIdx < len(out.MouthCues) && out.MouthCues[cueIdx].Start <= t {
			code = out.MouthCues[cueIdx].Value
		}
		weights.Frames = append(weights.Frames, g.mapper.Frame(t, code))
	}
	return weights
}

// Health checks that the rhubarb binary is present and executable.
func (g *RhubarbGenerator) Health(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, g.binary, "--version")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %v", ErrGeneratorUnavailable, err)
	}
	return nil
}

func writeDialogFile(text string) (string, error) {
	f, err := os.CreateTemp("", "dialog-*.txt")
	if err != nil {
		return "", err
	}
	if _, err := f.WriteString(text); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
