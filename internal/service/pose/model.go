package pose

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/motionlab/backend/internal/model/pose"
)

// HTTPModel runs inference through a sidecar model server: the frame is
// POSTed as raw bytes and the server answers with the keypoint list.
type HTTPModel struct {
	endpoint string
	client   *http.Client
}

// NewHTTPModel creates a client for the given inference endpoint.
func NewHTTPModel(endpoint string, timeout time.Duration) *HTTPModel {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPModel{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type inferResponse struct {
	Keypoints []pose.Keypoint `json:"keypoints"`
}

func (m *HTTPModel) Infer(ctx context.Context, image []byte) ([]pose.Keypoint, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(image))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inference request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference endpoint returned %s", resp.Status)
	}

	var decoded inferResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode inference response: %w", err)
	}
	return decoded.Keypoints, nil
}
