package video

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"

	sessionModel "github.com/motionlab/backend/internal/model/session"
	sessionService "github.com/motionlab/backend/internal/service/session"
	videoService "github.com/motionlab/backend/internal/service/video"
	"github.com/motionlab/backend/pkg/utils"
)

const maxChunkMemory = 32 << 20

// Handler 视频分片上传与成品录像下载的HTTP处理器
type Handler struct {
	store        *sessionService.Store
	pipeline     *videoService.Pipeline
	storageRoot  string
	maxDiskBytes int64
}

// New 创建视频处理器。maxDiskBytes <= 0 时关闭磁盘用量限制。
func New(store *sessionService.Store, pipeline *videoService.Pipeline, storageRoot string, maxDiskBytes int64) *Handler {
	return &Handler{
		store:        store,
		pipeline:     pipeline,
		storageRoot:  storageRoot,
		maxDiskBytes: maxDiskBytes,
	}
}

// RegisterRoutes 注册视频相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/video/chunk", h.handleUploadChunk)
	r.Get("/video/session/{sessionID}/recording", h.handleDownloadRecording)
}

func (h *Handler) handleUploadChunk(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxChunkMemory); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	sessionID := r.FormValue("session_id")
	index, err := strconv.Atoi(r.FormValue("chunk_index"))
	if err != nil || index < 0 {
		utils.RespondError(w, http.StatusBadRequest, "invalid chunk_index")
		return
	}

	sess, ok := h.store.Get(sessionID)
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}

	if h.overBudget() {
		utils.RespondError(w, http.StatusInsufficientStorage, "storage budget exceeded")
		return
	}

	chunk, _, err := r.FormFile("chunk")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "chunk file is required")
		return
	}
	defer chunk.Close()

	rawPath := filepath.Join(sess.ChunksDir(), fmt.Sprintf("chunk_%d.webm", index))
	if err := saveUpload(chunk, rawPath); err != nil {
		log.Printf("[video] save chunk failed session=%s chunk=%d: %v", sess.ShortID(), index, err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to store chunk")
		return
	}

	if err := h.pipeline.AppendChunk(r.Context(), sessionID, index, rawPath); err != nil {
		if errors.Is(err, videoService.ErrSessionNotFound) {
			utils.RespondError(w, http.StatusNotFound, "session not found")
			return
		}
		// The chunk is dropped from assembly but the upload itself is
		// acknowledged; the client keeps streaming.
		log.Printf("[video] chunk dropped session=%s chunk=%d: %v", sess.ShortID(), index, err)
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status":      "dropped",
			"chunk_index": index,
		})
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"status":      "success",
		"chunk_index": index,
	})
}

// handleDownloadRecording serves the final artifact of a session. Closed
// sessions are no longer in the registry, so the session directory is
// located by scanning per-owner storage.
func (h *Handler) handleDownloadRecording(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		utils.RespondError(w, http.StatusBadRequest, "sessionID is required")
		return
	}

	var sess sessionModel.Session
	if active, ok := h.store.Get(sessionID); ok {
		sess = active
	} else {
		dir, ok := h.findSessionDir(sessionID)
		if !ok {
			utils.RespondError(w, http.StatusNotFound, "session not found")
			return
		}
		sess = sessionModel.Session{ID: sessionID, Dir: dir}
	}

	artifact := sess.FinalArtifactPath()
	if _, err := os.Stat(artifact); err != nil {
		utils.RespondError(w, http.StatusNotFound, "recording not available")
		return
	}

	http.ServeFile(w, r, artifact)
}

func (h *Handler) findSessionDir(sessionID string) (string, bool) {
	matches, err := filepath.Glob(filepath.Join(h.storageRoot, "*", sessionID))
	if err != nil || len(matches) == 0 {
		return "", false
	}
	return matches[0], true
}

func (h *Handler) overBudget() bool {
	if h.maxDiskBytes <= 0 {
		return false
	}

	used, err := dirSize(h.storageRoot)
	if err != nil {
		log.Printf("[video] storage usage check failed: %v", err)
		return false
	}
	return used > h.maxDiskBytes
}

func dirSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		total += info.Size()
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	return total, err
}

func saveUpload(src io.Reader, dst string) error {
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
