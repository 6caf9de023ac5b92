package session

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/motionlab/backend/internal/model/session"
)

// entry is the authoritative in-memory state for one active session.
type entry struct {
	session  session.Session
	chunks   map[int]string
	appendMu sync.Mutex // serializes live-artifact rewrites for this session
}

// Store is the registry of active recording sessions. All mutation of
// session state goes through its methods; on-disk metadata is the only
// state that survives a restart.
type Store struct {
	mu       sync.RWMutex
	root     string
	sessions map[string]*entry
}

// NewStore creates a store rooted at the given storage directory.
func NewStore(root string) *Store {
	return &Store{
		root:     root,
		sessions: make(map[string]*entry),
	}
}

// Create provisions directories and metadata for a new session owned by
// the given user and registers it as active.
func (s *Store) Create(owner string) (session.Session, error) {
	id := uuid.NewString()
	dir := filepath.Join(s.root, owner, id)

	sess := session.Session{
		ID:        id,
		Owner:     owner,
		Status:    session.StatusActive,
		CreatedAt: time.Now().UTC(),
		Dir:       dir,
	}

	for _, d := range []string{sess.ChunksDir(), sess.FinalDir()} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return session.Session{}, fmt.Errorf("provision session dir: %w", err)
		}
	}

	meta := session.Metadata{Status: session.StatusActive, CreatedAt: sess.CreatedAt}
	if err := writeMetadata(sess.MetadataPath(), meta); err != nil {
		return session.Session{}, fmt.Errorf("write session metadata: %w", err)
	}

	s.mu.Lock()
	s.sessions[id] = &entry{session: sess, chunks: make(map[int]string)}
	s.mu.Unlock()

	log.Printf("[session] created session=%s owner=%s", sess.ShortID(), owner)
	return sess, nil
}

// Get returns a snapshot of an active session.
func (s *Store) Get(id string) (session.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[id]
	if !ok {
		return session.Session{}, false
	}
	return snapshot(e), true
}

// RecordChunk registers the normalized segment for one chunk index.
// Returns false when the session is unknown; callers treat that as
// "session not found", not a failure of the process.
func (s *Store) RecordChunk(id string, index int, normalizedPath string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok {
		return false
	}
	e.chunks[index] = normalizedPath
	return true
}

// LockAppend acquires the per-session append lock, returning the unlock
// function. Returns ok=false when the session is unknown.
func (s *Store) LockAppend(id string) (func(), bool) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	e.appendMu.Lock()
	return e.appendMu.Unlock, true
}

// Close transitions a session to closed, amends its on-disk metadata and
// removes it from the registry. The returned snapshot carries the full
// chunk map as it existed at close. Closing an unknown or already-closed
// session is a no-op returning ok=false.
func (s *Store) Close(id string) (session.Session, bool) {
	s.mu.Lock()
	e, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	if !ok {
		return session.Session{}, false
	}

	now := time.Now().UTC()
	e.session.Status = session.StatusClosed
	e.session.ClosedAt = &now

	meta := session.Metadata{
		Status:    session.StatusClosed,
		CreatedAt: e.session.CreatedAt,
		ClosedAt:  &now,
	}
	if err := writeMetadata(e.session.MetadataPath(), meta); err != nil {
		log.Printf("[session] amend metadata failed session=%s: %v", e.session.ShortID(), err)
	}

	log.Printf("[session] closed session=%s chunks=%d", e.session.ShortID(), len(e.chunks))
	return snapshot(e), true
}

// Count reports the number of active sessions.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func snapshot(e *entry) session.Session {
	sess := e.session
	sess.Chunks = make(map[int]string, len(e.chunks))
	for idx, path := range e.chunks {
		sess.Chunks[idx] = path
	}
	return sess
}

func writeMetadata(path string, meta session.Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
