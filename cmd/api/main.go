package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"renovai/server/internal/http/handlers"
	"renovai/server/internal/http/httpapi"
	"renovai/server/internal/infra"
	"renovai/server/internal/jobs"
	"renovai/server/internal/pipeline"
	"renovai/server/internal/providers/openai"
	"renovai/server/internal/providers/replicate"
	"renovai/server/internal/storage"
)

func main() {
	// Load .env (optional)
	_ = godotenv.Load()

	// Configuration & logger
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	// Artifact store and job registry
	store, err := storage.NewStore(cfg.UploadDir, cfg.PublicUploadURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize artifact store")
	}
	registry := jobs.NewRegistry(cfg.JobTTL)

	// Model-service clients, constructed once and injected everywhere
	replicateClient, err := replicate.NewClient(replicate.Options{
		APIToken:         cfg.ReplicateAPIToken,
		BaseURL:          cfg.ReplicateBaseURL,
		CaptionVersion:   cfg.CaptionVersion,
		SegmentVersion:   cfg.SegmentVersion,
		SynthesisVersion: cfg.SynthesisVersion,
		SegmentModelSize: cfg.SegmentModelSize,
		RequestTimeout:   cfg.UpstreamTimeout,
		Logger:           &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize replicate client")
	}
	openaiClient, err := openai.NewClient(openai.Options{
		APIKey:         cfg.OpenAIAPIKey,
		Model:          cfg.OpenAIModel,
		BaseURL:        cfg.OpenAIBaseURL,
		Organization:   cfg.OpenAIOrg,
		RequestTimeout: cfg.UpstreamTimeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize openai client")
	}

	// Pipeline wiring
	pipe := pipeline.New(pipeline.Deps{
		Store:     store,
		Registry:  registry,
		Segmenter: pipeline.NewSegmenter(replicateClient, replicateClient, store),
		Styles:    pipeline.NewStyleExtractor(replicateClient, openaiClient, cfg.StyleConcurrency),
		Rules:     pipeline.NewRuleSynthesizer(openaiClient),
		Control:   pipeline.NewControlBuilder(store),
		Composer:  pipeline.NewRenderComposer(replicateClient, replicateClient, store),
		Logger:    logger,
	})

	app := handlers.NewApp(pipe, logger)
	router := httpapi.NewRouter(app, httpapi.Options{
		Logger:          logger,
		RateLimitPerMin: cfg.RateLimitPerMin,
		AllowedOrigins:  cfg.AllowedOrigins,
		UploadDir:       cfg.UploadDir,
		PublicUploadURL: cfg.PublicUploadURL,
	})

	server := infra.NewHTTPServer(cfg, router)

	// Start async
	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
