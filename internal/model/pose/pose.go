package pose

// Keypoint is one named anatomical joint with normalized planar coordinates.
type Keypoint struct {
	Name       string  `json:"name"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Confidence float64 `json:"confidence"`
}

// Metrics are derived scalar movement measurements. Each field defaults to
// zero when the joints it needs are absent from the frame.
type Metrics struct {
	LeanAngle     float64 `json:"leanAngle"`
	LimbSpeed     float64 `json:"limbSpeed"`
	RangeOfMotion float64 `json:"rangeOfMotion"`
}

// Result is the per-frame detection outcome pushed back to the client.
type Result struct {
	Joints  []Keypoint `json:"joints"`
	Metrics Metrics    `json:"metrics"`
}

// JointNames lists the COCO pose keypoints in model output order.
var JointNames = []string{
	"nose", "left_eye", "right_eye", "left_ear", "right_ear",
	"left_shoulder", "right_shoulder", "left_elbow", "right_elbow",
	"left_wrist", "right_wrist", "left_hip", "right_hip",
	"left_knee", "right_knee", "left_ankle", "right_ankle",
}
