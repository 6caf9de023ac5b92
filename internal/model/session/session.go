package session

import (
	"fmt"
	"path/filepath"
	"time"
)

// Status tracks the lifecycle of a recording session.
type Status string

const (
	StatusActive Status = "active"
	StatusClosed Status = "closed"
)

// Session is a snapshot of one recording session. The authoritative copy
// lives inside the session store; snapshots returned to callers carry a
// detached copy of the chunk map.
type Session struct {
	ID        string     `json:"session_id"`
	Owner     string     `json:"username"`
	Status    Status     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	Dir       string     `json:"-"`

	// Chunks maps chunk index to the on-disk path of its normalized
	// segment. Indices need not be contiguous.
	Chunks map[int]string `json:"-"`
}

// Metadata is the passive on-disk record that outlives the registry entry.
type Metadata struct {
	Status    Status     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
}

// ChunksDir returns the directory holding raw and normalized chunks.
func (s Session) ChunksDir() string {
	return filepath.Join(s.Dir, "chunks")
}

// FinalDir returns the directory holding assembled artifacts.
func (s Session) FinalDir() string {
	return filepath.Join(s.Dir, "final")
}

// LiveArtifactPath is the best-effort preview video extended on every append.
func (s Session) LiveArtifactPath() string {
	return filepath.Join(s.FinalDir(), "live.mp4")
}

// FinalArtifactPath is the authoritative merged video produced at close.
func (s Session) FinalArtifactPath() string {
	return filepath.Join(s.FinalDir(), fmt.Sprintf("session_%s.mp4", s.ShortID()))
}

// ShortID returns the first eight characters of the session identifier,
// used for deterministic artifact naming.
func (s Session) ShortID() string {
	if len(s.ID) < 8 {
		return s.ID
	}
	return s.ID[:8]
}

// MetadataPath returns the location of the persisted session record.
func (s Session) MetadataPath() string {
	return filepath.Join(s.Dir, "metadata.json")
}
