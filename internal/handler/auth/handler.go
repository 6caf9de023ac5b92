package auth

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	authService "github.com/motionlab/backend/internal/service/auth"
	sessionService "github.com/motionlab/backend/internal/service/session"
	"github.com/motionlab/backend/pkg/utils"
)

// Handler 认证服务的HTTP处理器。登录成功的同时会开启一个新的录制会话。
type Handler struct {
	authSvc  *authService.Service
	sessions *sessionService.Store
}

// New 创建认证处理器
func New(authSvc *authService.Service, sessions *sessionService.Store) *Handler {
	return &Handler{authSvc: authSvc, sessions: sessions}
}

// RegisterRoutes 注册认证相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/login", h.handleLogin)
	r.Post("/auth/users", h.handleCreateUser)
}

type credentialsPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload credentialsPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if payload.Username == "" || payload.Password == "" {
		utils.RespondError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	if !h.authSvc.Verify(payload.Username, payload.Password) {
		utils.RespondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	session, err := h.sessions.Create(payload.Username)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"session_id": session.ID,
		"username":   payload.Username,
	})
}

// handleCreateUser 创建首个用户（仅用于初始化），一旦存在用户即拒绝后续注册。
func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var payload credentialsPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if payload.Username == "" || payload.Password == "" {
		utils.RespondError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	if h.authSvc.HasUsers() {
		utils.RespondError(w, http.StatusForbidden, "users already exist")
		return
	}

	created, err := h.authSvc.Register(payload.Username, payload.Password)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to register user")
		return
	}
	if !created {
		utils.RespondError(w, http.StatusBadRequest, "user already exists")
		return
	}

	utils.RespondJSON(w, http.StatusCreated, map[string]string{"message": "user created successfully"})
}
