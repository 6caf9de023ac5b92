package pose

import (
	"context"
	"fmt"
	"math"

	"github.com/motionlab/backend/internal/model/pose"
)

// Model is the opaque frame-to-keypoints inference function. Implementations
// retain no state between calls from the caller's perspective.
type Model interface {
	Infer(ctx context.Context, image []byte) ([]pose.Keypoint, error)
}

// DefaultConfidence is the keypoint confidence cutoff used when no
// threshold is configured.
const DefaultConfidence = 0.5

// Detector runs pose inference on still frames and derives movement
// metrics from whichever joints clear the confidence threshold.
type Detector struct {
	model     Model
	threshold float64
}

// NewDetector wraps a model with result filtering. A nil model yields empty
// results rather than errors, mirroring a deployment without an inference
// backend.
func NewDetector(model Model, threshold float64) *Detector {
	if threshold <= 0 {
		threshold = DefaultConfidence
	}
	return &Detector{model: model, threshold: threshold}
}

// Detect decodes nothing itself; it hands the image bytes to the model and
// shapes the outcome. Joints below the confidence threshold are omitted and
// every metric falls back to its neutral zero value when its joints are
// missing.
func (d *Detector) Detect(ctx context.Context, image []byte) (pose.Result, error) {
	empty := pose.Result{Joints: []pose.Keypoint{}}

	if d.model == nil || len(image) == 0 {
		return empty, nil
	}

	keypoints, err := d.model.Infer(ctx, image)
	if err != nil {
		return empty, fmt.Errorf("pose inference: %w", err)
	}

	joints := make([]pose.Keypoint, 0, len(keypoints))
	for _, kp := range keypoints {
		if kp.Confidence > d.threshold {
			joints = append(joints, kp)
		}
	}

	return pose.Result{Joints: joints, Metrics: computeMetrics(joints)}, nil
}

// computeMetrics derives scalar movement measurements. Lean angle comes
// from the left shoulder-to-hip vector; limb speed and range of motion need
// cross-frame state and stay at their neutral value for single frames.
func computeMetrics(joints []pose.Keypoint) pose.Metrics {
	var m pose.Metrics

	byName := make(map[string]pose.Keypoint, len(joints))
	for _, j := range joints {
		byName[j.Name] = j
	}

	shoulder, haveShoulder := byName["left_shoulder"]
	hip, haveHip := byName["left_hip"]
	if haveShoulder && haveHip {
		dx := shoulder.X - hip.X
		dy := shoulder.Y - hip.Y
		if dy != 0 {
			m.LeanAngle = math.Abs(math.Atan2(dx, dy) * 180 / math.Pi)
		}
	}

	return m
}
