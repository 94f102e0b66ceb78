package motion

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rigJSON = `{
  "asset": {"version": "2.0"},
  "scene": 0,
  "scenes": [{"nodes": [0]}],
  "nodes": [
    {"name": "spine", "rotation": [0, 0, 0, 1], "children": [1, 2]},
    {"name": "arm_l", "rotation": [0.7071, 0, 0, 0.7071], "translation": [0.2, 1.4, 0]},
    {"rotation": [0, 1, 0, 0]}
  ]
}`

func writeRig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rig.gltf")
	require.NoError(t, os.WriteFile(path, []byte(rigJSON), 0o644))
	return path
}

func TestLoadPose(t *testing.T) {
	kf, err := LoadPose(writeRig(t))
	require.NoError(t, err)

	// The unnamed node is skipped.
	require.Len(t, kf.BoneRotations, 2)
	assert.Equal(t, [4]float64{0, 0, 0, 1}, kf.BoneRotations["spine"])
	assert.Equal(t, [4]float64{0.7071, 0, 0, 0.7071}, kf.BoneRotations["arm_l"])
	assert.Equal(t, [3]float64{0.2, 1.4, 0}, kf.BonePositions["arm_l"])
}

func TestLoadPoseMissingFile(t *testing.T) {
	_, err := LoadPose(filepath.Join(t.TempDir(), "nope.gltf"))
	assert.Error(t, err)
}

func TestImportPosePreset(t *testing.T) {
	presetDir := t.TempDir()
	require.NoError(t, ImportPosePreset(writeRig(t), presetDir, "idle", 2.0))

	g, err := NewPresetGenerator(PresetConfig{Dir: presetDir}, zerolog.Nop())
	require.NoError(t, err)
	defer g.Close()

	clip, err := g.Generate(context.Background(), EmotionNeutral, 0, "")
	require.NoError(t, err)
	assert.Equal(t, 2.0, clip.Duration)
	require.Len(t, clip.Keyframes, 1)
	assert.Contains(t, clip.Keyframes[0].BoneRotations, "spine")
}
