package video

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/motionlab/backend/internal/model/session"
	sessionService "github.com/motionlab/backend/internal/service/session"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNoChunks        = errors.New("no usable chunks to finalize")
)

// Pipeline assembles uploaded chunks into session artifacts. Every append
// extends a best-effort live preview; the authoritative artifact is derived
// once, at close, from the complete index-ordered chunk set.
type Pipeline struct {
	store *sessionService.Store
	tc    Transcoder
}

// NewPipeline wires the pipeline to the session registry and a transcoder.
func NewPipeline(store *sessionService.Store, tc Transcoder) *Pipeline {
	return &Pipeline{store: store, tc: tc}
}

// AppendChunk normalizes one uploaded chunk and extends the session's live
// artifact. Chunks are processed in arrival order; a normalization failure
// drops the chunk from all future assembly without failing the session.
func (p *Pipeline) AppendChunk(ctx context.Context, sessionID string, index int, rawPath string) error {
	sess, ok := p.store.Get(sessionID)
	if !ok {
		return ErrSessionNotFound
	}

	normalized := filepath.Join(sess.ChunksDir(), fmt.Sprintf("chunk_%d.mp4", index))
	if err := p.tc.Normalize(ctx, rawPath, normalized); err != nil {
		return fmt.Errorf("normalize chunk %d: %w", index, err)
	}

	if !p.store.RecordChunk(sessionID, index, normalized) {
		return ErrSessionNotFound
	}

	// Two concurrent rewrites of the live artifact would corrupt it, so
	// the concatenate-and-replace step holds the session's append lock.
	unlock, ok := p.store.LockAppend(sessionID)
	if !ok {
		return ErrSessionNotFound
	}
	defer unlock()

	if err := p.extendLive(ctx, sess, normalized); err != nil {
		// The normalized chunk is already recorded for finalize; only the
		// preview missed this append.
		log.Printf("[video] live append failed session=%s chunk=%d: %v", sess.ShortID(), index, err)
	}
	return nil
}

// Finalize merges the session's full chunk set, ordered by chunk index and
// skipping any index without a normalized segment, into the artifact of
// record. The live preview is not consulted.
func (p *Pipeline) Finalize(ctx context.Context, sess session.Session) (string, error) {
	indices := make([]int, 0, len(sess.Chunks))
	for idx, path := range sess.Chunks {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			log.Printf("[video] finalize skipping chunk %d session=%s: %v", idx, sess.ShortID(), err)
			continue
		}
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	if len(indices) == 0 {
		return "", ErrNoChunks
	}

	ordered := make([]string, 0, len(indices))
	for _, idx := range indices {
		ordered = append(ordered, sess.Chunks[idx])
	}

	out := sess.FinalArtifactPath()
	if err := p.tc.Concatenate(ctx, ordered, out); err != nil {
		return "", fmt.Errorf("merge final video: %w", err)
	}

	log.Printf("[video] finalized session=%s segments=%d artifact=%s", sess.ShortID(), len(ordered), out)
	return out, nil
}

// extendLive grows the preview artifact: the first append seeds it with a
// copy of the normalized chunk, later appends concatenate [live, chunk]
// into a staging file swapped over the old preview.
func (p *Pipeline) extendLive(ctx context.Context, sess session.Session, segment string) error {
	live := sess.LiveArtifactPath()

	if _, err := os.Stat(live); errors.Is(err, os.ErrNotExist) {
		return copyFile(segment, live)
	} else if err != nil {
		return err
	}

	next := filepath.Join(sess.FinalDir(), "live.next.mp4")
	if err := p.tc.Concatenate(ctx, []string{live, segment}, next); err != nil {
		return err
	}
	return os.Rename(next, live)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
