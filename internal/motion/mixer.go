package motion

import (
	"sort"

	"github.com/go-gl/mathgl/mgl64"
)

// quat converts an [x, y, z, w] clip rotation into a math quaternion.
func quat(q [4]float64) mgl64.Quat {
	return mgl64.Quat{W: q[3], V: mgl64.Vec3{q[0], q[1], q[2]}}
}

func fromQuat(q mgl64.Quat) [4]float64 {
	return [4]float64{q.V.X(), q.V.Y(), q.V.Z(), q.W}
}

// poseAt holds the keyframe's pose, restamped at t.
func poseAt(kf Keyframe, t float64) Keyframe {
	kf.Timestamp = t
	return kf
}

// SampleAt interpolates the clip's pose at time t. Rotations are slerped
// between the surrounding keyframes; positions are lerped. Outside the
// clip the nearest end pose is held.
func SampleAt(clip *Keyframes, t float64) Keyframe {
	kfs := clip.Keyframes
	if len(kfs) == 0 {
		return Keyframe{Timestamp: t}
	}

	i := sort.Search(len(kfs), func(i int) bool { return kfs[i].Timestamp >= t })
	if i == 0 {
		return poseAt(kfs[0], t)
	}
	if i == len(kfs) {
		return poseAt(kfs[len(kfs)-1], t)
	}

	prev, next := kfs[i-1], kfs[i]
	span := next.Timestamp - prev.Timestamp
	if span <= 0 {
		return poseAt(next, t)
	}
	frac := (t - prev.Timestamp) / span

	out := Keyframe{
		Timestamp:     t,
		BoneRotations: make(map[string][4]float64, len(prev.BoneRotations)),
	}
	for bone, from := range prev.BoneRotations {
		to, ok := next.BoneRotations[bone]
		if !ok {
			out.BoneRotations[bone] = from
			continue
		}
		out.BoneRotations[bone] = fromQuat(mgl64.QuatSlerp(quat(from), quat(to), frac))
	}
	for bone, to := range next.BoneRotations {
		if _, ok := prev.BoneRotations[bone]; !ok {
			out.BoneRotations[bone] = to
		}
	}

	if len(prev.BonePositions) > 0 || len(next.BonePositions) > 0 {
		out.BonePositions = make(map[string][3]float64)
		for bone, from := range prev.BonePositions {
			to, ok := next.BonePositions[bone]
			if !ok {
				out.BonePositions[bone] = from
				continue
			}
			out.BonePositions[bone] = [3]float64{
				from[0] + (to[0]-from[0])*frac,
				from[1] + (to[1]-from[1])*frac,
				from[2] + (to[2]-from[2])*frac,
			}
		}
		for bone, to := range next.BonePositions {
			if _, ok := prev.BonePositions[bone]; !ok {
				out.BonePositions[bone] = to
			}
		}
	}

	return out
}

// Blend mixes two poses, weight 0 giving pose a and weight 1 giving pose
// b. Bones present in only one pose pass through unchanged.
func Blend(a, b Keyframe, weight float64) Keyframe {
	if weight <= 0 {
		return a
	}
	if weight >= 1 {
		return b
	}

	out := Keyframe{
		Timestamp:     a.Timestamp,
		BoneRotations: make(map[string][4]float64, len(a.BoneRotations)),
	}
	for bone, from := range a.BoneRotations {
		to, ok := b.BoneRotations[bone]
		if !ok {
			out.BoneRotations[bone] = from
			continue
		}
		out.BoneRotations[bone] = fromQuat(mgl64.QuatSlerp(quat(from), quat(to), weight))
	}
	for bone, to := range b.BoneRotations {
		if _, ok := a.BoneRotations[bone]; !ok {
			out.BoneRotations[bone] = to
		}
	}
	return out
}

// CrossfadeClips appends next to current with a slerped transition over
// fade seconds, producing one continuous clip. It keeps chunk-to-chunk
// gesture changes from snapping.
func CrossfadeClips(current, next *Keyframes, fade float64) *Keyframes {
	if current == nil || len(current.Keyframes) == 0 {
		return next
	}
	if next == nil || len(next.Keyframes) == 0 {
		return current
	}
	if fade < 0 {
		fade = 0
	}

	offset := current.Duration
	out := &Keyframes{
		Emotion:  next.Emotion,
		Duration: offset + next.Duration,
	}
	out.Keyframes = append(out.Keyframes, current.Keyframes...)

	lastPose := current.Keyframes[len(current.Keyframes)-1]
	for _, kf := range next.Keyframes {
		shifted := kf
		shifted.Timestamp += offset
		if fade > 0 && kf.Timestamp < fade {
			weight := kf.Timestamp / fade
			blended := Blend(lastPose, kf, weight)
			blended.Timestamp = shifted.Timestamp
			blended.BonePositions = kf.BonePositions
			shifted = blended
		}
		out.Keyframes = append(out.Keyframes, shifted)
	}
	return out
}
