package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/motionlab/backend/internal/config"
	"github.com/motionlab/backend/internal/handler"
	authService "github.com/motionlab/backend/internal/service/auth"
	poseService "github.com/motionlab/backend/internal/service/pose"
	sessionService "github.com/motionlab/backend/internal/service/session"
	skeletonService "github.com/motionlab/backend/internal/service/skeleton"
	videoService "github.com/motionlab/backend/internal/service/video"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	authSvc := authService.NewService(cfg.Storage.UsersFile)
	sessions := sessionService.NewStore(cfg.Storage.Root)

	transcoder := videoService.NewFFmpeg(cfg.Video.FFmpegPath, cfg.Video.Timeout)
	pipeline := videoService.NewPipeline(sessions, transcoder)

	var model poseService.Model
	if cfg.Pose.Enabled() {
		model = poseService.NewHTTPModel(cfg.Pose.Endpoint, 10*time.Second)
		log.Printf("pose inference endpoint configured: %s", cfg.Pose.Endpoint)
	} else {
		log.Println("pose inference endpoint not configured, skeleton results will be empty")
	}
	detector := poseService.NewDetector(model, cfg.Pose.Confidence)

	connections := skeletonService.NewManager()

	router := handler.NewRouter(handler.Deps{
		Auth:         authSvc,
		Sessions:     sessions,
		Pipeline:     pipeline,
		Detector:     detector,
		Connections:  connections,
		StorageRoot:  cfg.Storage.Root,
		MaxDiskBytes: cfg.Storage.MaxDiskBytes,
	})

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("movement analysis backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
