package motion

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/qmuntal/gltf"
)

// LoadPose reads the node transforms of a glTF or GLB file and returns
// them as a single pose keyframe. Bone names come from the node names;
// unnamed nodes are skipped.
func LoadPose(path string) (Keyframe, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return Keyframe{}, fmt.Errorf("open %s: %w", path, err)
	}

	kf := Keyframe{
		BoneRotations: make(map[string][4]float64),
		BonePositions: make(map[string][3]float64),
	}

	for _, node := range doc.Nodes {
		if node.Name == "" {
			continue
		}
		// glTF and clips agree on [x, y, z, w] component order.
		kf.BoneRotations[node.Name] = node.RotationOrDefault()

		t := node.TranslationOrDefault()
		if t != [3]float64{} {
			kf.BonePositions[node.Name] = t
		}
	}

	if len(kf.BoneRotations) == 0 {
		return Keyframe{}, fmt.Errorf("%s: no named nodes", path)
	}
	return kf, nil
}

// ImportPosePreset converts a rigged model file into a one-keyframe preset
// clip in the preset directory, usable as a static action pose.
func ImportPosePreset(modelPath, presetDir, action string, duration float64) error {
	kf, err := LoadPose(modelPath)
	if err != nil {
		return err
	}
	if duration <= 0 {
		duration = 1.0
	}

	p := preset{
		Name:      action,
		Duration:  duration,
		Keyframes: []Keyframe{kf},
	}

	data, err := sonic.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}

	out := filepath.Join(presetDir, strings.TrimSuffix(action, ".json")+".json")
	return os.WriteFile(out, data, 0o644)
}
