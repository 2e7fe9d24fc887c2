package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/huddlekit/huddle/internal/v1/api"
	"github.com/huddlekit/huddle/internal/v1/config"
	"github.com/huddlekit/huddle/internal/v1/health"
	"github.com/huddlekit/huddle/internal/v1/logging"
	"github.com/huddlekit/huddle/internal/v1/middleware"
	"github.com/huddlekit/huddle/internal/v1/ratelimit"
	"github.com/huddlekit/huddle/internal/v1/room"
	"github.com/huddlekit/huddle/internal/v1/transport"
	"github.com/huddlekit/huddle/internal/v1/upload"
)

func main() {
	// Load .env for local development; in deployment the environment is set
	// by the platform.
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, relying on environment variables")
	}

	cfg, err := config.ValidateEnv()
	if err != nil {
		slog.Error("Environment validation failed", "error", err)
		os.Exit(1)
	}

	if err := logging.Initialize(cfg.DevelopmentMode); err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}

	if cfg.DevelopmentMode {
		slog.Info("Running in DEVELOPMENT MODE")
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// --- Core services ---
	registry := room.NewRegistry()

	uploads, err := upload.NewManager(cfg.UploadDir)
	if err != nil {
		slog.Error("Failed to initialize upload manager", "error", err)
		os.Exit(1)
	}

	var limiter *ratelimit.Limiter
	if !cfg.DevelopmentMode {
		limiter, err = ratelimit.New(cfg)
		if err != nil {
			slog.Error("Failed to initialize rate limiter", "error", err)
			os.Exit(1)
		}
	}

	hub := transport.NewHub(registry, uploads, limiter, cfg.ClientOrigin)

	// --- HTTP server ---
	router := gin.Default()
	router.Use(middleware.CorrelationID())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.ClientOrigin}
	router.Use(cors.New(corsConfig))

	apiHandler := api.NewHandler(registry)
	apiGroup := router.Group("/api")
	if limiter != nil {
		apiGroup.Use(limiter.APIMiddleware())
	}
	{
		apiGroup.POST("/create-room", apiHandler.CreateRoom)
		apiGroup.GET("/room/:id", apiHandler.GetRoom)
	}

	// Completed uploads are served as plain static files.
	router.Static("/uploads", uploads.Dir())

	router.GET("/ws", hub.ServeWs)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	healthHandler := health.NewHandler(uploads.Dir())
	router.GET("/health/live", healthHandler.Liveness)
	router.GET("/health/ready", healthHandler.Readiness)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// --- Graceful shutdown ---
	go func() {
		slog.Info("Server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Failed to run server", "error", err)
			syscall.Kill(os.Getpid(), syscall.SIGTERM)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Close WebSocket connections first so disconnect cleanup (room leave,
	// upload aborts) runs while the process is still healthy.
	if err := hub.Shutdown(ctx); err != nil {
		slog.Error("Error during hub shutdown", "error", err)
	}

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server exiting")
}
