package session_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	sessionModel "github.com/motionlab/backend/internal/model/session"
	session "github.com/motionlab/backend/internal/service/session"
)

func TestCreateProvisionsSession(t *testing.T) {
	root := t.TempDir()
	store := session.NewStore(root)

	sess, err := store.Create("alice")
	if err != nil {
		t.Fatalf("Create err: %v", err)
	}

	if sess.ID == "" {
		t.Fatal("expected non-empty session id")
	}
	if sess.Status != sessionModel.StatusActive {
		t.Fatalf("expected active status, got %s", sess.Status)
	}
	if sess.Owner != "alice" {
		t.Fatalf("unexpected owner: %s", sess.Owner)
	}

	for _, dir := range []string{sess.ChunksDir(), sess.FinalDir()} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
	}

	meta := readMetadata(t, sess.MetadataPath())
	if meta.Status != sessionModel.StatusActive {
		t.Fatalf("expected active metadata, got %s", meta.Status)
	}
	if meta.ClosedAt != nil {
		t.Fatal("expected no closedAt on creation")
	}
}

func TestRecordChunkUnknownSession(t *testing.T) {
	store := session.NewStore(t.TempDir())

	if store.RecordChunk("missing", 0, "/tmp/chunk_0.mp4") {
		t.Fatal("expected false for unknown session")
	}
	if store.Count() != 0 {
		t.Fatalf("expected no sessions, got %d", store.Count())
	}
}

func TestRecordChunkGrowsSnapshot(t *testing.T) {
	store := session.NewStore(t.TempDir())
	sess, err := store.Create("alice")
	if err != nil {
		t.Fatalf("Create err: %v", err)
	}

	if !store.RecordChunk(sess.ID, 0, "a.mp4") {
		t.Fatal("RecordChunk returned false")
	}
	if !store.RecordChunk(sess.ID, 2, "b.mp4") {
		t.Fatal("RecordChunk returned false")
	}

	snap, ok := store.Get(sess.ID)
	if !ok {
		t.Fatal("expected session")
	}
	if len(snap.Chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(snap.Chunks))
	}
	if snap.Chunks[2] != "b.mp4" {
		t.Fatalf("unexpected chunk path: %s", snap.Chunks[2])
	}

	// Snapshots are detached copies.
	snap.Chunks[5] = "rogue.mp4"
	again, _ := store.Get(sess.ID)
	if len(again.Chunks) != 2 {
		t.Fatalf("snapshot mutation leaked into store: %d chunks", len(again.Chunks))
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	store := session.NewStore(t.TempDir())
	sess, err := store.Create("alice")
	if err != nil {
		t.Fatalf("Create err: %v", err)
	}
	store.RecordChunk(sess.ID, 0, "a.mp4")

	closed, ok := store.Close(sess.ID)
	if !ok {
		t.Fatal("expected first close to succeed")
	}
	if closed.Status != sessionModel.StatusClosed {
		t.Fatalf("expected closed status, got %s", closed.Status)
	}
	if closed.ClosedAt == nil {
		t.Fatal("expected closedAt to be stamped")
	}
	if len(closed.Chunks) != 1 {
		t.Fatalf("expected chunk map in close snapshot, got %d", len(closed.Chunks))
	}

	meta := readMetadata(t, closed.MetadataPath())
	if meta.Status != sessionModel.StatusClosed || meta.ClosedAt == nil {
		t.Fatalf("metadata not amended: %+v", meta)
	}

	if _, ok := store.Close(sess.ID); ok {
		t.Fatal("expected second close to be a no-op")
	}
	if store.Count() != 0 {
		t.Fatalf("expected empty registry, got %d", store.Count())
	}
}

func TestCloseUnknownSession(t *testing.T) {
	store := session.NewStore(t.TempDir())
	if _, ok := store.Close("missing"); ok {
		t.Fatal("expected close of unknown session to report absent")
	}
}

func readMetadata(t *testing.T, path string) sessionModel.Metadata {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read metadata: %v", err)
	}
	var meta sessionModel.Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		t.Fatalf("parse metadata: %v", err)
	}
	return meta
}

func TestSessionArtifactNaming(t *testing.T) {
	sess := sessionModel.Session{ID: "0123456789abcdef", Dir: filepath.Join("data", "alice", "0123456789abcdef")}
	want := filepath.Join("data", "alice", "0123456789abcdef", "final", "session_01234567.mp4")
	if got := sess.FinalArtifactPath(); got != want {
		t.Fatalf("unexpected final artifact path: got %s want %s", got, want)
	}
}
