package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	authHandler "github.com/motionlab/backend/internal/handler/auth"
	skeletonHandler "github.com/motionlab/backend/internal/handler/skeleton"
	videoHandler "github.com/motionlab/backend/internal/handler/video"
	middlewarePkg "github.com/motionlab/backend/internal/middleware"
	authService "github.com/motionlab/backend/internal/service/auth"
	poseService "github.com/motionlab/backend/internal/service/pose"
	sessionService "github.com/motionlab/backend/internal/service/session"
	skeletonService "github.com/motionlab/backend/internal/service/skeleton"
	videoService "github.com/motionlab/backend/internal/service/video"
)

// Deps collects the services the router wires into handlers.
type Deps struct {
	Auth         *authService.Service
	Sessions     *sessionService.Store
	Pipeline     *videoService.Pipeline
	Detector     *poseService.Detector
	Connections  *skeletonService.Manager
	StorageRoot  string
	MaxDiskBytes int64
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	authHandler.New(deps.Auth, deps.Sessions).RegisterRoutes(r)
	videoHandler.New(deps.Sessions, deps.Pipeline, deps.StorageRoot, deps.MaxDiskBytes).RegisterRoutes(r)
	skeletonHandler.New(deps.Sessions, deps.Pipeline, deps.Detector, deps.Connections).RegisterRoutes(r)

	return r
}
