package motion

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// emotionActions maps each emotion to its preset clip name.
var emotionActions = map[Emotion]string{
	EmotionNeutral:  "idle",
	EmotionHappy:    "happy_gesture",
	EmotionSad:      "sad_gesture",
	EmotionThinking: "thinking_gesture",
}

// preset is the on-disk clip format, one JSON file per action.
type preset struct {
	Name      string     `json:"name"`
	Duration  float64    `json:"duration"`
	Keyframes []Keyframe `json:"keyframes"`
}

// PresetConfig configures the preset-backed generator.
type PresetConfig struct {
	// Dir holds the clip files, <action>.json.
	Dir string
	// FallbackAction is used when an emotion's clip is missing.
	// Defaults to "idle".
	FallbackAction string
	// Watch enables hot reload of edited clip files.
	Watch bool
}

// PresetGenerator serves animation clips from per-action JSON files,
// rescaled to the requested duration. Loaded clips are cached; with Watch
// enabled an edited file drops its cache entry on the next change event.
type PresetGenerator struct {
	dir      string
	fallback string
	logger   zerolog.Logger

	mu      sync.RWMutex
	cache   map[string]*preset
	watcher *fsnotify.Watcher
}

// NewPresetGenerator creates the generator and, when requested, starts a
// directory watcher for cache invalidation.
func NewPresetGenerator(cfg PresetConfig, logger zerolog.Logger) (*PresetGenerator, error) {
	if cfg.FallbackAction == "" {
		cfg.FallbackAction = "idle"
	}

	g := &PresetGenerator{
		dir:      cfg.Dir,
		fallback: cfg.FallbackAction,
		cache:    make(map[string]*preset),
		logger:   logger.With().Str("component", "motion").Logger(),
	}

	if cfg.Watch {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, fmt.Errorf("preset watcher: %w", err)
		}
		if err := watcher.Add(cfg.Dir); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("watch %s: %w", cfg.Dir, err)
		}
		g.watcher = watcher
		go g.watch()
	}

	return g, nil
}

func (g *PresetGenerator) Name() string { return "preset" }

// Generate loads the clip for the emotion's action and rescales its
// timeline to the chunk duration. A non-empty actionHint selects that
// clip directly. A missing clip falls back once to the fallback action.
func (g *PresetGenerator) Generate(_ context.Context, emotion Emotion, duration float64, actionHint string) (*Keyframes, error) {
	action := actionHint
	if action == "" {
		var ok bool
		if action, ok = emotionActions[emotion]; !ok {
			action = g.fallback
		}
	}

	p, err := g.load(action)
	if err != nil && action != g.fallback {
		g.logger.Warn().Err(err).Str("action", action).Msg("Preset missing, using fallback")
		p, err = g.load(g.fallback)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoPreset, err)
	}

	return rescale(p, emotion, duration), nil
}

// AvailableActions lists the clip names present in the preset directory,
// sorted. An unreadable directory yields an empty list.
func (g *PresetGenerator) AvailableActions() []string {
	entries, err := os.ReadDir(g.dir)
	if err != nil {
		g.logger.Warn().Err(err).Msg("Preset directory unreadable")
		return nil
	}

	var actions []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		actions = append(actions, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(actions)
	return actions
}

// Health verifies that the fallback clip loads, which also proves the
// preset directory is readable.
func (g *PresetGenerator) Health(_ context.Context) error {
	_, err := g.load(g.fallback)
	return err
}

// Close stops the directory watcher if one is running.
func (g *PresetGenerator) Close() error {
	if g.watcher != nil {
		return g.watcher.Close()
	}
	return nil
}

func (g *PresetGenerator) load(action string) (*preset, error) {
	g.mu.RLock()
	p, ok := g.cache[action]
	g.mu.RUnlock()
	if ok {
		return p, nil
	}

	path := filepath.Join(g.dir, action+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var loaded preset
	if err := sonic.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("preset %s: %w", path, err)
	}
	if len(loaded.Keyframes) == 0 {
		return nil, fmt.Errorf("preset %s has no keyframes", path)
	}

	g.mu.Lock()
	g.cache[action] = &loaded
	g.mu.Unlock()

	g.logger.Debug().Str("action", action).Int("keyframes", len(loaded.Keyframes)).Msg("Preset loaded")
	return &loaded, nil
}

func (g *PresetGenerator) watch() {
	for {
		select {
		case event, ok := <-g.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) {
				continue
			}
			action := strings.TrimSuffix(filepath.Base(event.Name), ".json")
			g.mu.Lock()
			delete(g.cache, action)
			g.mu.Unlock()
			g.logger.Info().Str("action", action).Msg("Preset cache invalidated")
		case err, ok := <-g.watcher.Errors:
			if !ok {
				return
			}
			g.logger.Warn().Err(err).Msg("Preset watcher error")
		}
	}
}

// rescale maps the clip's native timeline onto the target duration. A
// non-positive target keeps the native timing.
func rescale(p *preset, emotion Emotion, duration float64) *Keyframes {
	out := &Keyframes{
		Emotion:   emotion,
		Duration:  p.Duration,
		Keyframes: make([]Keyframe, len(p.Keyframes)),
	}

	scale := 1.0
	if duration > 0 && p.Duration > 0 {
		scale = duration / p.Duration
		out.Duration = duration
	}

	for i, kf := range p.Keyframes {
		scaled := Keyframe{
			Timestamp:     kf.Timestamp * scale,
			BoneRotations: make(map[string][4]float64, len(kf.BoneRotations)),
		}
		for bone, q := range kf.BoneRotations {
			scaled.BoneRotations[bone] = q
		}
		if len(kf.BonePositions) > 0 {
			scaled.BonePositions = make(map[string][3]float64, len(kf.BonePositions))
			for bone, pos := range kf.BonePositions {
				scaled.BonePositions[bone] = pos
			}
		}
		out.Keyframes[i] = scaled
	}
	return out
}
