// Package chunker segments an unbounded token stream into speakable text
// chunks. It buffers incoming tokens and cuts at natural breakpoints
// (sentence terminators, clause separators) or, failing that, at a word
// count limit, balancing naturalness against latency.
package chunker

import (
	"strings"
	"unicode"

	"github.com/rs/zerolog"
)

// Mode selects the segmentation strategy.
type Mode string

const (
	// ModeWords cuts purely on word count.
	ModeWords Mode = "words"
	// ModePunctuation cuts only at punctuation.
	ModePunctuation Mode = "punctuation"
	// ModeHybrid prefers punctuation and falls back to word count.
	ModeHybrid Mode = "hybrid"
)

const (
	sentenceTerminators = ".!?…"
	clauseSeparators    = ",;:—–"
)

// Config holds segmentation parameters.
type Config struct {
	Mode     Mode
	MaxWords int // force a break once the buffer holds this many words
	MinWords int // a chunk must hold at least this many words, except the final flush
}

// DefaultConfig returns the segmentation defaults used by the pipeline.
func DefaultConfig() Config {
	return Config{
		Mode:     ModeHybrid,
		MaxWords: 10,
		MinWords: 4,
	}
}

// Segmenter accumulates tokens and extracts speakable chunks. It carries
// mutable buffer state across one streaming call; use Reset before reuse.
type Segmenter struct {
	mode     Mode
	maxWords int
	minWords int

	buffer  []rune
	emitted int
	logger  zerolog.Logger
}

// New creates a Segmenter with the given configuration.
func New(cfg Config, logger zerolog.Logger) *Segmenter {
	if cfg.MaxWords <= 0 {
		cfg.MaxWords = 10
	}
	if cfg.MinWords <= 0 {
		cfg.MinWords = 4
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeHybrid
	}

	return &Segmenter{
		mode:     cfg.Mode,
		maxWords: cfg.MaxWords,
		minWords: cfg.MinWords,
		logger:   logger.With().Str("component", "chunker").Logger(),
	}
}

// Feed appends token text to the buffer and attempts a single extraction.
// At most one chunk is returned per call; use TryExtract to drain any
// further ready chunks before feeding more tokens.
func (s *Segmenter) Feed(token string) (string, bool) {
	s.buffer = append(s.buffer, []rune(token)...)
	return s.TryExtract()
}

// TryExtract attempts to cut one chunk from the buffered text.
func (s *Segmenter) TryExtract() (string, bool) {
	var chunk string
	var ok bool

	switch s.mode {
	case ModeWords:
		chunk, ok = s.extractByWords()
	case ModePunctuation:
		chunk, ok = s.extractByPunctuation()
	default:
		chunk, ok = s.extractHybrid()
	}

	if ok {
		s.emitted++
		s.logger.Debug().
			Int("chunk", s.emitted).
			Int("words", wordCount(chunk)).
			Msg("Chunk ready")
	}
	return chunk, ok
}

// Finish flushes whatever remains in the buffer as one final chunk,
// regardless of the minimum word requirement. It returns false when the
// remaining content is empty after trimming.
func (s *Segmenter) Finish() (string, bool) {
	final := strings.TrimSpace(string(s.buffer))
	s.buffer = nil
	if final == "" {
		return "", false
	}
	s.emitted++
	s.logger.Debug().
		Int("chunk", s.emitted).
		Int("words", wordCount(final)).
		Msg("Final chunk flushed")
	return final, true
}

// Reset clears the buffer so the segmenter can serve a new stream.
func (s *Segmenter) Reset() {
	s.buffer = nil
	s.emitted = 0
}

// Emitted returns the number of chunks produced so far.
func (s *Segmenter) Emitted() int {
	return s.emitted
}

// extractHybrid prefers sentence terminators, then clause separators once
// the buffer is nearly full, then a hard word-count cut.
func (s *Segmenter) extractHybrid() (string, bool) {
	if end := indexAfterAny(s.buffer, sentenceTerminators); end >= 0 {
		if chunk, ok := s.cutAt(end); ok {
			return chunk, true
		}
	}

	words := wordCount(string(s.buffer))

	if words >= s.maxWords-2 {
		if end := indexAfterAny(s.buffer, clauseSeparators); end >= 0 {
			if chunk, ok := s.cutAt(end); ok {
				return chunk, true
			}
		}
	}

	if words >= s.maxWords {
		return s.cutAtWordLimit()
	}

	return "", false
}

// extractByPunctuation cuts only at sentence terminators, or at clause
// separators once a few words beyond the minimum have accumulated.
func (s *Segmenter) extractByPunctuation() (string, bool) {
	if end := indexAfterAny(s.buffer, sentenceTerminators); end >= 0 {
		if chunk, ok := s.cutAt(end); ok {
			return chunk, true
		}
	}

	if wordCount(string(s.buffer)) >= s.minWords+2 {
		if end := indexAfterAny(s.buffer, clauseSeparators); end >= 0 {
			if chunk, ok := s.cutAt(end); ok {
				return chunk, true
			}
		}
	}

	return "", false
}

// extractByWords cuts at the word-count limit only.
func (s *Segmenter) extractByWords() (string, bool) {
	if wordCount(string(s.buffer)) >= s.maxWords {
		return s.cutAtWordLimit()
	}
	return "", false
}

// cutAt emits the prefix ending at the rune index end when it satisfies
// the minimum word requirement, retaining the remainder.
func (s *Segmenter) cutAt(end int) (string, bool) {
	chunk := strings.TrimSpace(string(s.buffer[:end]))
	if wordCount(chunk) < s.minWords {
		return "", false
	}
	s.buffer = trimLeadingSpace(s.buffer[end:])
	return chunk, true
}

// cutAtWordLimit cuts at the boundary after the maxWords-th word, backing
// off to the previous whitespace so no word is ever split.
func (s *Segmenter) cutAtWordLimit() (string, bool) {
	pos := startOfWord(s.buffer, s.maxWords+1)
	if pos <= 0 {
		return "", false
	}

	chunk, end := completeWordsUpTo(s.buffer, pos)
	if chunk == "" || wordCount(chunk) < s.minWords {
		return "", false
	}

	s.buffer = trimLeadingSpace(s.buffer[end:])
	return chunk, true
}

// startOfWord returns the rune index where the n-th word begins, or -1
// when the buffer holds fewer than n words.
func startOfWord(buf []rune, n int) int {
	count := 0
	for i, r := range buf {
		if unicode.IsSpace(r) {
			continue
		}
		if i == 0 || unicode.IsSpace(buf[i-1]) {
			count++
			if count == n {
				return i
			}
		}
	}
	return -1
}

// completeWordsUpTo returns the longest whole-word prefix that ends at or
// before maxPos, along with the rune index the buffer should resume from.
// A single unbroken run of non-whitespace yields an empty result: such a
// token is held until whitespace, punctuation, or stream end appears.
func completeWordsUpTo(buf []rune, maxPos int) (string, int) {
	if maxPos >= len(buf) {
		return strings.TrimSpace(string(buf)), len(buf)
	}

	chunk := buf[:maxPos]
	last := chunk[len(chunk)-1]
	if unicode.IsSpace(last) || strings.ContainsRune(sentenceTerminators+clauseSeparators, last) {
		return strings.TrimSpace(string(chunk)), maxPos
	}

	lastSpace := -1
	for i := len(chunk) - 1; i >= 0; i-- {
		if unicode.IsSpace(chunk[i]) {
			lastSpace = i
			break
		}
	}
	if lastSpace == -1 {
		return "", 0
	}

	return strings.TrimSpace(string(buf[:lastSpace])), lastSpace
}

// indexAfterAny returns the rune index just past the first occurrence of
// any rune in set, or -1 when none is present.
func indexAfterAny(buf []rune, set string) int {
	for i, r := range buf {
		if strings.ContainsRune(set, r) {
			return i + 1
		}
	}
	return -1
}

func trimLeadingSpace(buf []rune) []rune {
	i := 0
	for i < len(buf) && unicode.IsSpace(buf[i]) {
		i++
	}
	out := make([]rune, len(buf)-i)
	copy(out, buf[i:])
	return out
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
