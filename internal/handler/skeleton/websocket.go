package skeleton

import (
	"context"
	"encoding/base64"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	poseModel "github.com/motionlab/backend/internal/model/pose"
	poseService "github.com/motionlab/backend/internal/service/pose"
	sessionService "github.com/motionlab/backend/internal/service/session"
	skeletonService "github.com/motionlab/backend/internal/service/skeleton"
	videoService "github.com/motionlab/backend/internal/service/video"
)

const readTimeout = 60 * time.Second

// Handler WebSocket骨骼检测处理器：逐帧执行姿态检测并在同一连接上推送
// 结果；end_session 消息会关闭会话并合成最终录像。
type Handler struct {
	store    *sessionService.Store
	pipeline *videoService.Pipeline
	detector *poseService.Detector
	manager  *skeletonService.Manager
	upgrader websocket.Upgrader
}

// New 创建WebSocket处理器
func New(store *sessionService.Store, pipeline *videoService.Pipeline, detector *poseService.Detector, manager *skeletonService.Manager) *Handler {
	return &Handler{
		store:    store,
		pipeline: pipeline,
		detector: detector,
		manager:  manager,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/skeleton", h.handleWebSocket)
}

type inboundMessage struct {
	Action    string `json:"action"`
	SessionID string `json:"sessionId"`
	Username  string `json:"username"`
	Image     string `json:"image"`
}

type actionMessage struct {
	Action string `json:"action"`
}

type errorMessage struct {
	Action  string `json:"action"`
	Message string `json:"message"`
}

type skeletonMessage struct {
	Action  string               `json:"action"`
	Joints  []poseModel.Keypoint `json:"joints"`
	Metrics poseModel.Metrics    `json:"metrics"`
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	// The channel binds to a session on its first message; anything else
	// ends the channel with no further interaction.
	var connect inboundMessage
	if err := conn.ReadJSON(&connect); err != nil {
		return
	}
	if connect.Action != "connect" || connect.SessionID == "" {
		return
	}

	sessionID := connect.SessionID
	sub := h.manager.Bind(sessionID, conn)
	defer func() {
		// Unbind waits for the writer to finish; close the connection
		// first so an in-flight write errors out instead of pinning it.
		conn.Close()
		h.manager.Unbind(sessionID)
	}()

	log.Printf("[websocket] channel bound session=%s", sessionID)
	sub.Push(actionMessage{Action: "connected"})

	ctx := r.Context()
	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[websocket] read error session=%s: %v", sessionID, err)
			}
			return
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))

		switch msg.Action {
		case "frame":
			h.handleFrame(ctx, sub, sessionID, msg.Image)
		case "end_session":
			h.handleEndSession(ctx, sub, sessionID)
			return
		default:
			sub.Push(errorMessage{Action: "error", Message: "unsupported action: " + msg.Action})
		}
	}
}

// handleFrame 对单帧图像执行姿态检测并推送结果。单帧失败只上报，不会终止通道。
func (h *Handler) handleFrame(ctx context.Context, sub *skeletonService.Subscriber, sessionID, imageB64 string) {
	image, err := base64.StdEncoding.DecodeString(imageB64)
	if err != nil {
		sub.Push(errorMessage{Action: "error", Message: "invalid frame payload"})
		return
	}

	result, err := h.detector.Detect(ctx, image)
	if err != nil {
		log.Printf("[websocket] pose detection failed session=%s: %v", sessionID, err)
		sub.Push(errorMessage{Action: "error", Message: "pose detection failed"})
		return
	}

	sub.Push(skeletonMessage{
		Action:  "skeleton",
		Joints:  result.Joints,
		Metrics: result.Metrics,
	})
}

// handleEndSession retires the session and derives the authoritative
// recording from its full chunk set. An unknown session still gets the
// closing confirmation; there is nothing to finalize.
func (h *Handler) handleEndSession(ctx context.Context, sub *skeletonService.Subscriber, sessionID string) {
	if snap, ok := h.store.Close(sessionID); ok {
		if _, err := h.pipeline.Finalize(ctx, snap); err != nil {
			if !errors.Is(err, videoService.ErrNoChunks) {
				log.Printf("[websocket] finalize failed session=%s: %v", snap.ShortID(), err)
			}
		}
	}

	sub.Push(actionMessage{Action: "session_closed"})
}
