package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iconidentify/framegrab/internal/api"
	"github.com/iconidentify/framegrab/internal/api/handler"
	"github.com/iconidentify/framegrab/internal/browser"
	"github.com/iconidentify/framegrab/internal/config"
	"github.com/iconidentify/framegrab/internal/downloader"
	"github.com/iconidentify/framegrab/internal/repository"
	"github.com/iconidentify/framegrab/internal/resolver"
	"github.com/iconidentify/framegrab/internal/service"
	"github.com/iconidentify/framegrab/pkg/ffmpeg"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("framegrab %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting framegrab",
		"version", Version,
		"build_time", BuildTime,
	)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Ensure the output tree exists
	if err := os.MkdirAll(cfg.Storage.BasePath, 0755); err != nil {
		logger.Error("failed to create storage directory", "error", err)
		os.Exit(1)
	}

	// ffmpeg and ffprobe must be on PATH; without them a grab cannot
	// probe, remux, or sample.
	processor, err := ffmpeg.NewProcessor()
	if err != nil {
		logger.Warn("ffmpeg not found; grabs will be rejected until it is installed", "error", err)
	} else {
		if version, verr := processor.GetVersion(); verr == nil {
			logger.Info("ffmpeg available", "version", version)
		}
	}

	// Initialize dependencies
	archive, err := repository.NewArchiveRepository(cfg.Storage.IndexPath)
	if err != nil {
		logger.Error("failed to open archive index", "error", err)
		os.Exit(1)
	}
	defer archive.Close()

	provider := browser.NewChromeProvider(cfg.Browser, logger)
	res := resolver.New(cfg.Browser, logger)
	dl := downloader.NewHTTPDownloader(cfg.Download)
	dl.SetLogger(logger)

	// Initialize services
	var gateway service.MediaGateway
	if processor != nil {
		gateway = processor
	}
	grabSvc := service.NewGrabService(
		provider,
		res,
		dl,
		gateway,
		archive,
		cfg.Storage,
		cfg.Browser,
		logger,
	)
	statsSvc := service.NewStatsService(archive, cfg.Storage, logger)

	// Initialize handlers
	grabHandler := handler.NewGrabHandler(grabSvc, cfg.Download, cfg.Frames, logger)
	archiveHandler := handler.NewArchiveHandler(archive, logger)
	var mediaTool handler.MediaToolInfo
	if processor != nil {
		mediaTool = processor
	}
	healthHandler := handler.NewHealthHandler(statsSvc, mediaTool, cfg.Storage.BasePath)

	// Setup router
	router := api.NewRouter(grabHandler, archiveHandler, healthHandler, cfg.Server.APIKey)

	// Setup HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	// Graceful shutdown; a grab in flight gets time to finish.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
