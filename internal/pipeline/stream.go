package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/normanking/avatarpipe/internal/chunker"
	"github.com/normanking/avatarpipe/internal/lipsync"
	"github.com/normanking/avatarpipe/internal/llm"
	"github.com/normanking/avatarpipe/internal/motion"
	"github.com/normanking/avatarpipe/internal/tts"
)

// FrameStream yields avatar frames one at a time. The consumer drives the
// pipeline: no stage runs between Next calls, so dropping the stream after
// any frame stops all further backend work. Next returns io.EOF after the
// final frame. FrameStream is not safe for concurrent use.
type FrameStream struct {
	pipe   *Pipeline
	tokens llm.TokenStream
	seg    *chunker.Segmenter

	pending   []string
	timeline  float64
	frames    int
	exhausted bool
	failed    error
}

// Next produces the next frame. It pulls language model tokens until a
// chunk is ready, runs the synthesis stages on it, and returns the result.
// An essential stage failure is returned as a StageError and the stream is
// dead afterwards.
func (s *FrameStream) Next(ctx context.Context) (*Frame, error) {
	if s.failed != nil {
		return nil, s.failed
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if len(s.pending) > 0 {
			chunk := s.pending[0]
			s.pending = s.pending[1:]
			frame, err := s.processChunk(ctx, chunk)
			if err != nil {
				s.failed = err
				return nil, err
			}
			s.frames++
			return frame, nil
		}

		if s.exhausted {
			return nil, io.EOF
		}

		token, err := s.tokens.Recv()
		if err == io.EOF {
			s.exhausted = true
			if final, ok := s.seg.Finish(); ok {
				s.pending = append(s.pending, final)
			}
			continue
		}
		if err != nil {
			s.failed = &StageError{Stage: "llm", Err: err}
			return nil, s.failed
		}

		if chunk, ok := s.seg.Feed(token); ok {
			s.pending = append(s.pending, chunk)
			for {
				next, more := s.seg.TryExtract()
				if !more {
					break
				}
				s.pending = append(s.pending, next)
			}
		}
	}
}

// Frames returns the number of frames produced so far.
func (s *FrameStream) Frames() int { return s.frames }

// Close releases the underlying token stream. It is safe to call at any
// point, including mid-stream.
func (s *FrameStream) Close() error {
	return s.tokens.Close()
}

// processChunk runs the per-chunk stages. Speech synthesis is essential;
// lipsync, sentiment, and motion degrade on failure.
func (s *FrameStream) processChunk(ctx context.Context, chunk string) (*Frame, error) {
	audio, err := s.pipe.tts.Synthesize(ctx, chunk)
	if err != nil {
		return nil, &StageError{Stage: "tts", Err: err}
	}

	frame := &Frame{
		Timestamp: s.timeline,
		TextChunk: chunk,
		Audio:     audio,
	}

	frame.Lipsync = s.runLipsync(ctx, audio, chunk)
	frame.Emotion = s.runSentiment(ctx, chunk)
	frame.Motion = s.runMotion(ctx, frame.Emotion, audio.Duration.Seconds())

	s.timeline += audio.Duration.Seconds()

	s.pipe.logger.Debug().
		Int("frame", s.frames+1).
		Float64("timestamp", frame.Timestamp).
		Str("emotion", string(frame.Emotion)).
		Msg("Frame produced")
	return frame, nil
}

// runLipsync writes the audio to a transient WAV file for analysis and
// removes it on every path. Any failure leaves the frame without a track.
func (s *FrameStream) runLipsync(ctx context.Context, audio *tts.AudioSegment, chunk string) (weights *lipsync.BlendshapeWeights) {
	if s.pipe.lipsync == nil {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			s.pipe.logger.Warn().Interface("panic", r).Msg("Lipsync stage panicked")
			weights = nil
		}
	}()

	path, err := s.writeAudioFile(audio)
	if err != nil {
		s.pipe.logger.Warn().Err(err).Msg("Lipsync skipped, audio file not written")
		return nil
	}
	defer os.Remove(path)

	weights, err = s.pipe.lipsync.Generate(ctx, path, chunk)
	if err != nil {
		s.pipe.logger.Warn().Err(err).Msg("Lipsync failed, continuing without")
		return nil
	}
	return weights
}

func (s *FrameStream) runSentiment(ctx context.Context, chunk string) (emotion motion.Emotion) {
	if s.pipe.sentiment == nil {
		return motion.EmotionNeutral
	}

	defer func() {
		if r := recover(); r != nil {
			s.pipe.logger.Warn().Interface("panic", r).Msg("Sentiment stage panicked")
			emotion = motion.EmotionNeutral
		}
	}()

	emotion, err := s.pipe.sentiment.Analyze(ctx, chunk)
	if err != nil {
		s.pipe.logger.Warn().Err(err).Msg("Sentiment failed, defaulting to neutral")
		return motion.EmotionNeutral
	}
	return emotion
}

func (s *FrameStream) runMotion(ctx context.Context, emotion motion.Emotion, duration float64) (clip *motion.Keyframes) {
	if s.pipe.motion == nil {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			s.pipe.logger.Warn().Interface("panic", r).Msg("Motion stage panicked")
			clip = nil
		}
	}()

	clip, err := s.pipe.motion.Generate(ctx, emotion, duration, "")
	if err != nil {
		s.pipe.logger.Warn().Err(err).Msg("Motion failed, continuing without")
		return nil
	}
	return clip
}

func (s *FrameStream) writeAudioFile(audio *tts.AudioSegment) (string, error) {
	dir := s.pipe.opts.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, fmt.Sprintf("chunk-%s.%s", uuid.NewString(), audio.Format))
	if err := os.WriteFile(path, audio.Bytes, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
