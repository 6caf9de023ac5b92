package pose_test

import (
	"context"
	"errors"
	"math"
	"testing"

	poseModel "github.com/motionlab/backend/internal/model/pose"
	pose "github.com/motionlab/backend/internal/service/pose"
)

type stubModel struct {
	keypoints []poseModel.Keypoint
	err       error
}

func (m *stubModel) Infer(context.Context, []byte) ([]poseModel.Keypoint, error) {
	return m.keypoints, m.err
}

func TestDetectFiltersLowConfidenceJoints(t *testing.T) {
	model := &stubModel{keypoints: []poseModel.Keypoint{
		{Name: "nose", X: 0.5, Y: 0.1, Confidence: 0.9},
		{Name: "left_elbow", X: 0.4, Y: 0.4, Confidence: 0.3},
	}}
	detector := pose.NewDetector(model, 0.5)

	result, err := detector.Detect(context.Background(), []byte("frame"))
	if err != nil {
		t.Fatalf("Detect err: %v", err)
	}

	if len(result.Joints) != 1 {
		t.Fatalf("expected 1 joint above threshold, got %d", len(result.Joints))
	}
	if result.Joints[0].Name != "nose" {
		t.Fatalf("unexpected joint: %s", result.Joints[0].Name)
	}
}

func TestDetectComputesLeanAngle(t *testing.T) {
	model := &stubModel{keypoints: []poseModel.Keypoint{
		{Name: "left_shoulder", X: 0.5, Y: 0.2, Confidence: 0.9},
		{Name: "left_hip", X: 0.4, Y: 0.6, Confidence: 0.9},
	}}
	detector := pose.NewDetector(model, 0.5)

	result, err := detector.Detect(context.Background(), []byte("frame"))
	if err != nil {
		t.Fatalf("Detect err: %v", err)
	}

	// atan2(0.1, -0.4) in degrees, absolute.
	want := 165.9637565320735
	if math.Abs(result.Metrics.LeanAngle-want) > 1e-6 {
		t.Fatalf("unexpected lean angle: got %v want %v", result.Metrics.LeanAngle, want)
	}
}

func TestMetricsDefaultToNeutralWhenJointsAbsent(t *testing.T) {
	model := &stubModel{keypoints: []poseModel.Keypoint{
		{Name: "nose", X: 0.5, Y: 0.1, Confidence: 0.9},
		// Shoulder present but below threshold, so no lean angle either.
		{Name: "left_shoulder", X: 0.5, Y: 0.2, Confidence: 0.2},
	}}
	detector := pose.NewDetector(model, 0.5)

	result, err := detector.Detect(context.Background(), []byte("frame"))
	if err != nil {
		t.Fatalf("Detect err: %v", err)
	}

	if result.Metrics != (poseModel.Metrics{}) {
		t.Fatalf("expected neutral metrics, got %+v", result.Metrics)
	}
}

func TestDetectWithoutModel(t *testing.T) {
	detector := pose.NewDetector(nil, 0.5)

	result, err := detector.Detect(context.Background(), []byte("frame"))
	if err != nil {
		t.Fatalf("Detect err: %v", err)
	}
	if len(result.Joints) != 0 {
		t.Fatalf("expected empty joints, got %d", len(result.Joints))
	}
	if result.Joints == nil {
		t.Fatal("joints must serialize as an empty list, not null")
	}
}

func TestDetectEmptyImage(t *testing.T) {
	model := &stubModel{keypoints: []poseModel.Keypoint{{Name: "nose", Confidence: 0.9}}}
	detector := pose.NewDetector(model, 0.5)

	result, err := detector.Detect(context.Background(), nil)
	if err != nil {
		t.Fatalf("Detect err: %v", err)
	}
	if len(result.Joints) != 0 {
		t.Fatal("expected empty result for empty image")
	}
}

func TestDetectModelError(t *testing.T) {
	model := &stubModel{err: errors.New("backend down")}
	detector := pose.NewDetector(model, 0.5)

	result, err := detector.Detect(context.Background(), []byte("frame"))
	if err == nil {
		t.Fatal("expected inference error")
	}
	if len(result.Joints) != 0 {
		t.Fatal("expected empty joints on error")
	}
}
