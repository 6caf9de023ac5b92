package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Transcoder abstracts the external media engine so the pipeline can be
// tested with deterministic fakes.
type Transcoder interface {
	// Normalize converts an arbitrary-codec segment into the canonical
	// codec/container. Each chunk normalizes independently of its siblings.
	Normalize(ctx context.Context, rawPath, outPath string) error
	// Concatenate stream-copies already-normalized segments, in the order
	// given, into one output. It performs no reordering of its own.
	Concatenate(ctx context.Context, segments []string, outPath string) error
}

// FFmpeg invokes the ffmpeg binary once per operation. Every invocation is
// bounded by a timeout; on expiry the process is killed and the chunk is
// reported as failed rather than stalling the session.
type FFmpeg struct {
	binary  string
	timeout time.Duration
}

// NewFFmpeg creates a transcoder around the given binary. Empty binary
// defaults to "ffmpeg" on PATH; non-positive timeout defaults to 60s.
func NewFFmpeg(binary string, timeout time.Duration) *FFmpeg {
	if binary == "" {
		binary = "ffmpeg"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &FFmpeg{binary: binary, timeout: timeout}
}

func (f *FFmpeg) Normalize(ctx context.Context, rawPath, outPath string) error {
	return f.run(ctx,
		"-i", rawPath,
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-c:a", "aac",
		"-y", outPath,
	)
}

func (f *FFmpeg) Concatenate(ctx context.Context, segments []string, outPath string) error {
	if len(segments) == 0 {
		return errors.New("no segments to concatenate")
	}

	list, err := writeConcatList(filepath.Dir(outPath), segments)
	if err != nil {
		return err
	}
	defer os.Remove(list)

	return f.run(ctx,
		"-f", "concat",
		"-safe", "0",
		"-i", list,
		"-c", "copy",
		"-y", outPath,
	)
}

func (f *FFmpeg) run(ctx context.Context, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, f.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("ffmpeg timed out after %s", f.timeout)
		}
		return fmt.Errorf("ffmpeg: %w: %s", err, lastLine(&stderr))
	}
	return nil
}

// writeConcatList emits a concat-demuxer list file with absolute segment
// paths, so the output can live in a different directory than its inputs.
func writeConcatList(dir string, segments []string) (string, error) {
	tmp, err := os.CreateTemp(dir, "concat-*.txt")
	if err != nil {
		return "", fmt.Errorf("create concat list: %w", err)
	}

	var b strings.Builder
	for _, seg := range segments {
		abs, err := filepath.Abs(seg)
		if err != nil {
			abs = seg
		}
		fmt.Fprintf(&b, "file '%s'\n", abs)
	}

	if _, err := tmp.WriteString(b.String()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write concat list: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

func lastLine(buf *bytes.Buffer) string {
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
