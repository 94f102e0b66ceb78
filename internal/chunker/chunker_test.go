package chunker

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSegmenter(t *testing.T, cfg Config) *Segmenter {
	t.Helper()
	return New(cfg, zerolog.Nop())
}

// collect feeds every token, draining ready chunks as it goes, then
// flushes the tail.
func collect(s *Segmenter, tokens []string) []string {
	var chunks []string
	for _, tok := range tokens {
		if chunk, ok := s.Feed(tok); ok {
			chunks = append(chunks, chunk)
			for {
				next, more := s.TryExtract()
				if !more {
					break
				}
				chunks = append(chunks, next)
			}
		}
	}
	if final, ok := s.Finish(); ok {
		chunks = append(chunks, final)
	}
	return chunks
}

func tokenize(text string) []string {
	words := strings.Fields(text)
	tokens := make([]string, len(words))
	for i, w := range words {
		if i == 0 {
			tokens[i] = w
		} else {
			tokens[i] = " " + w
		}
	}
	return tokens
}

func TestHybridSentenceBoundary(t *testing.T) {
	s := newTestSegmenter(t, DefaultConfig())

	chunks := collect(s, tokenize("One two three four. Five six seven eight."))

	require.Len(t, chunks, 2)
	assert.Equal(t, "One two three four.", chunks[0])
	assert.Equal(t, "Five six seven eight.", chunks[1])
}

func TestHybridShortSentenceHeld(t *testing.T) {
	s := newTestSegmenter(t, DefaultConfig())

	// "Hi." alone is below the minimum, so it rides along until the
	// word limit forces a cut.
	chunks := collect(s, tokenize("Hi. alpha beta gamma delta epsilon zeta eta theta iota kappa"))

	require.NotEmpty(t, chunks)
	assert.True(t, strings.HasPrefix(chunks[0], "Hi. alpha"))
	assert.GreaterOrEqual(t, len(strings.Fields(chunks[0])), 4)
}

func TestHybridClauseSeparator(t *testing.T) {
	s := newTestSegmenter(t, Config{Mode: ModeHybrid, MaxWords: 6, MinWords: 2})

	// No terminator anywhere. Once the buffer nears the limit the
	// comma becomes a legal breakpoint.
	chunks := collect(s, tokenize("alpha beta gamma delta, epsilon zeta eta theta"))

	require.Len(t, chunks, 2)
	assert.Equal(t, "alpha beta gamma delta,", chunks[0])
	assert.Equal(t, "epsilon zeta eta theta", chunks[1])
}

func TestHybridWordLimit(t *testing.T) {
	s := newTestSegmenter(t, DefaultConfig())

	text := "w1 w2 w3 w4 w5 w6 w7 w8 w9 w10 w11 w12"
	chunks := collect(s, tokenize(text))

	require.Len(t, chunks, 2)
	assert.Equal(t, "w1 w2 w3 w4 w5 w6 w7 w8 w9 w10", chunks[0])
	assert.Equal(t, "w11 w12", chunks[1])
}

func TestWordsNeverSplit(t *testing.T) {
	s := newTestSegmenter(t, DefaultConfig())

	// Tokens arrive mid-word; every emitted chunk must end on a word
	// boundary of the reassembled text.
	tokens := []string{"hel", "lo wor", "ld one two three four five six seven eight nine"}
	chunks := collect(s, tokens)

	full := strings.Join(tokens, "")
	words := strings.Fields(full)

	var seen []string
	for _, chunk := range chunks {
		seen = append(seen, strings.Fields(chunk)...)
	}
	assert.Equal(t, words, seen)
}

func TestReassemblyPreservesContent(t *testing.T) {
	s := newTestSegmenter(t, DefaultConfig())

	text := "The quick brown fox jumps over the lazy dog. Pack my box with five dozen liquor jugs, then rest."
	chunks := collect(s, tokenize(text))

	assert.Equal(t, strings.Fields(text), strings.Fields(strings.Join(chunks, " ")))
}

func TestFinalFlushIgnoresMinimum(t *testing.T) {
	s := newTestSegmenter(t, DefaultConfig())

	chunks := collect(s, []string{"Привет", " как", " дела"})

	require.Len(t, chunks, 1)
	assert.Equal(t, "Привет как дела", chunks[0])
}

func TestCyrillicSentence(t *testing.T) {
	s := newTestSegmenter(t, DefaultConfig())

	chunks := collect(s, tokenize("Привет, как у тебя дела сегодня? Всё хорошо."))

	require.Len(t, chunks, 2)
	assert.Equal(t, "Привет, как у тебя дела сегодня?", chunks[0])
	assert.Equal(t, "Всё хорошо.", chunks[1])
}

func TestLongUnbrokenTokenHeld(t *testing.T) {
	s := newTestSegmenter(t, Config{Mode: ModeWords, MaxWords: 3, MinWords: 1})

	chunk, ok := s.Feed(strings.Repeat("x", 200))
	assert.False(t, ok)
	assert.Empty(t, chunk)

	final, ok := s.Finish()
	require.True(t, ok)
	assert.Equal(t, strings.Repeat("x", 200), final)
}

func TestWordsMode(t *testing.T) {
	s := newTestSegmenter(t, Config{Mode: ModeWords, MaxWords: 4, MinWords: 1})

	chunks := collect(s, tokenize("a b c d e f g h i"))

	require.Len(t, chunks, 3)
	assert.Equal(t, "a b c d", chunks[0])
	assert.Equal(t, "e f g h", chunks[1])
	assert.Equal(t, "i", chunks[2])
}

func TestPunctuationMode(t *testing.T) {
	s := newTestSegmenter(t, Config{Mode: ModePunctuation, MaxWords: 10, MinWords: 2})

	chunks := collect(s, tokenize("First thing here. Second part without any stop at all"))

	require.Len(t, chunks, 2)
	assert.Equal(t, "First thing here.", chunks[0])
	assert.Equal(t, "Second part without any stop at all", chunks[1])
}

func TestEmptyFinish(t *testing.T) {
	s := newTestSegmenter(t, DefaultConfig())

	_, ok := s.Finish()
	assert.False(t, ok)

	s.Feed("   ")
	_, ok = s.Finish()
	assert.False(t, ok)
}

func TestReset(t *testing.T) {
	s := newTestSegmenter(t, DefaultConfig())

	s.Feed("partial text that never completed")
	s.Reset()

	_, ok := s.Finish()
	assert.False(t, ok)
	assert.Zero(t, s.Emitted())
}
