package motion

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"
)

// labelEmotion translates classifier labels into avatar emotions.
func labelEmotion(label string, score, threshold float64) Emotion {
	// Low confidence reads as deliberation rather than a wrong guess.
	if score < threshold {
		return EmotionThinking
	}
	switch strings.ToUpper(label) {
	case "POSITIVE":
		return EmotionHappy
	case "NEGATIVE":
		return EmotionSad
	default:
		return EmotionNeutral
	}
}

// RemoteAnalyzer calls an inference endpoint that exposes the common
// text-classification response shape: a ranked list of label/score pairs.
type RemoteAnalyzer struct {
	url       string
	threshold float64
	client    *http.Client
	logger    zerolog.Logger
}

// NewRemoteAnalyzer wires a classifier endpoint. Threshold is the minimum
// confidence below which the result degrades to thinking.
func NewRemoteAnalyzer(url string, threshold float64, timeout time.Duration, logger zerolog.Logger) *RemoteAnalyzer {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RemoteAnalyzer{
		url:       url,
		threshold: threshold,
		client:    &http.Client{Timeout: timeout},
		logger:    logger.With().Str("component", "sentiment").Logger(),
	}
}

func (a *RemoteAnalyzer) Name() string { return "remote" }

func (a *RemoteAnalyzer) Analyze(ctx context.Context, text string) (Emotion, error) {
	payload, err := sonic.Marshal(map[string]string{"inputs": text})
	if err != nil {
		return EmotionNeutral, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(payload))
	if err != nil {
		return EmotionNeutral, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return EmotionNeutral, fmt.Errorf("sentiment request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return EmotionNeutral, fmt.Errorf("sentiment service returned %d: %s", resp.StatusCode, body)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return EmotionNeutral, err
	}

	var results [][]struct {
		Label string  `json:"label"`
		Score float64 `json:"score"`
	}
	if err := sonic.Unmarshal(body, &results); err != nil {
		return EmotionNeutral, fmt.Errorf("sentiment response: %w", err)
	}
	if len(results) == 0 || len(results[0]) == 0 {
		return EmotionNeutral, nil
	}

	top := results[0][0]
	emotion := labelEmotion(top.Label, top.Score, a.threshold)
	a.logger.Debug().
		Str("label", top.Label).
		Float64("score", top.Score).
		Str("emotion", string(emotion)).
		Msg("Sentiment classified")
	return emotion, nil
}

// Lexicon word lists. Lowercased; matched against whole words after
// stripping punctuation.
var (
	positiveWords = map[string]struct{}{
		"great": {}, "good": {}, "wonderful": {}, "happy": {}, "love": {},
		"excellent": {}, "amazing": {}, "glad": {}, "nice": {}, "fun": {},
		"отлично": {}, "хорошо": {}, "рад": {}, "рада": {}, "прекрасно": {},
		"замечательно": {}, "люблю": {}, "здорово": {},
	}
	negativeWords = map[string]struct{}{
		"bad": {}, "sad": {}, "terrible": {}, "awful": {}, "sorry": {},
		"hate": {}, "angry": {}, "unfortunately": {}, "wrong": {}, "fail": {},
		"плохо": {}, "грустно": {}, "ужасно": {}, "жаль": {}, "извини": {},
		"ошибка": {}, "неправильно": {},
	}
	thinkingWords = map[string]struct{}{
		"hmm": {}, "maybe": {}, "perhaps": {}, "think": {}, "wonder": {},
		"possibly": {}, "consider": {},
		"хм": {}, "возможно": {}, "думаю": {}, "наверное": {}, "может": {},
	}
)

// LexiconAnalyzer is an offline keyword scorer. It is deliberately crude;
// it exists so the pipeline keeps emoting when no classifier service is
// configured.
type LexiconAnalyzer struct{}

// NewLexiconAnalyzer creates the offline analyzer.
func NewLexiconAnalyzer() *LexiconAnalyzer { return &LexiconAnalyzer{} }

func (a *LexiconAnalyzer) Name() string { return "lexicon" }

func (a *LexiconAnalyzer) Analyze(_ context.Context, text string) (Emotion, error) {
	var pos, neg, thk int
	for _, raw := range strings.Fields(strings.ToLower(text)) {
		word := strings.Trim(raw, ".,!?;:…\"'()")
		if _, ok := positiveWords[word]; ok {
			pos++
		}
		if _, ok := negativeWords[word]; ok {
			neg++
		}
		if _, ok := thinkingWords[word]; ok {
			thk++
		}
	}

	switch {
	case thk > pos && thk > neg:
		return EmotionThinking, nil
	case pos > neg:
		return EmotionHappy, nil
	case neg > pos:
		return EmotionSad, nil
	default:
		return EmotionNeutral, nil
	}
}
