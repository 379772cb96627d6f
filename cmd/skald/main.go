package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"github.com/skaldhq/skald/internal/adapters/duckdb"
	"github.com/skaldhq/skald/internal/adapters/imagegen"
	"github.com/skaldhq/skald/internal/adapters/llm"
	"github.com/skaldhq/skald/internal/adapters/objstore"
	"github.com/skaldhq/skald/internal/adapters/sandbox"
	"github.com/skaldhq/skald/internal/adapters/vidcap"
	"github.com/skaldhq/skald/internal/config"
	"github.com/skaldhq/skald/internal/core/ports"
	"github.com/skaldhq/skald/internal/core/services"
	"github.com/skaldhq/skald/pkg/kernel"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger.Info("starting skald")

	if err := run(logger); err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Info("shutting down")
		cancel()
	}()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Initialize Adapters
	jobs, err := duckdb.NewJobStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to init job store: %w", err)
	}
	defer jobs.Close()

	store, err := objstore.New(
		objstore.WithEndpoint(cfg.Storage.Endpoint),
		objstore.WithBucket(cfg.Storage.Bucket),
		objstore.WithAccessKey(cfg.Storage.AccessKey),
		objstore.WithSecretKey(cfg.Storage.SecretKey),
		objstore.WithSSL(cfg.Storage.UseSSL),
	)
	if err != nil {
		return fmt.Errorf("failed to init object store: %w", err)
	}

	runner, err := sandbox.NewRunner(cfg.Video.SandboxImage)
	if err != nil {
		return fmt.Errorf("failed to init render sandbox: %w", err)
	}

	var textGen ports.TextGenerator
	switch cfg.LLM.Provider {
	case "openai":
		textGen = llm.NewOpenAIProvider(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model)
	default:
		textGen = llm.NewOllamaProvider(cfg.LLM.BaseURL, cfg.LLM.Model)
	}

	// Image generation is optional; without an API key the renderer emits
	// placeholder references for image-type visuals.
	var imageGen ports.ImageGenerator
	if cfg.Image.APIKey != "" {
		imageGen = imagegen.NewOpenAIImageProvider(cfg.Image.BaseURL, cfg.Image.APIKey, cfg.Image.Model)
	}

	captions := vidcap.NewClient(cfg.Caption.BaseURL, cfg.Caption.APIKey, cfg.Caption.Locale)

	// Initialize Core Services
	eventBus := services.NewEventBus(logger)
	progress := services.NewProgressStore(logger, services.DefaultProgressTTL)

	scheduler := services.NewJobScheduler(logger, services.SchedulerConfig{
		MaxConcurrentJobs: cfg.MaxConcurrentJobs,
	})

	acquisition := services.NewContentAcquisition(logger, captions, store)
	structurer := services.NewReportStructurer(logger, textGen)
	planner := services.NewVisualizationPlanner(logger, textGen)
	renderer := services.NewVisualizationRenderer(logger, textGen, imageGen, runner, store)
	videoInfo := services.NewVideoInfoService(logger, cfg.Video.YoutubeAPIKey)
	merger := services.NewReportMerger(logger, store, videoInfo)

	orchestrator := services.NewPipelineOrchestrator(
		logger, progress, eventBus, jobs,
		acquisition, structurer, planner, renderer, merger,
	)

	apiServer := kernel.NewServer(logger, scheduler, jobs, progress, eventBus, store)

	// Setup HTTP Server
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
	})

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: c.Handler(apiServer.Handler()),
	}

	done := make(chan struct{})
	progress.StartJanitor(done, 10*time.Minute)
	defer close(done)

	g, gCtx := errgroup.WithContext(ctx)

	// 1. Start pipeline worker loop
	scheduler.Start(gCtx, func(ctx context.Context, req services.PipelineRequest) {
		if _, err := orchestrator.Run(ctx, req.JobID, req.UserID, req.YoutubeURL); err != nil {
			logger.Error("pipeline run failed", "job_id", req.JobID, "error", err)
		}
	})

	// 2. Start API Server
	g.Go(func() error {
		logger.Info("starting api server", "addr", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	})

	// 3. Graceful Shutdown for API Server
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
