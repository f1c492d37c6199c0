package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"call-translation-service/internal/config"
	"call-translation-service/internal/events"
	"call-translation-service/internal/evidence"
	evidencehttp "call-translation-service/internal/evidence/httpapi"
	evidencemock "call-translation-service/internal/evidence/mock"
	httpapi "call-translation-service/internal/http"
	"call-translation-service/internal/observability"
	"call-translation-service/internal/observability/logging"
	"call-translation-service/internal/pipeline"
	"call-translation-service/internal/registry"
	"call-translation-service/internal/store"
	"call-translation-service/internal/stream"
	"call-translation-service/internal/translate"
	translatemock "call-translation-service/internal/translate/mock"
	translateopenai "call-translation-service/internal/translate/openai"
	"call-translation-service/internal/webhook"
)

func main() {
	cfg := config.Load()

	logging.Init(logging.Config{
		Level:  cfg.Observability.LogLevel,
		Format: cfg.Observability.LogFormat,
	})

	ctx := context.Background()

	// Stores: postgres when a database URL is configured, otherwise in-memory
	// (dev and test mode).
	var (
		callRegistry  registry.Store
		segmentStore  store.SegmentStore
		evidenceStore store.EvidenceStore
	)
	if cfg.Database.URL != "" {
		pool, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create database pool")
		}
		defer pool.Close()

		pgRegistry := registry.NewPostgres(pool)
		if err := pgRegistry.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("Registry migration failed")
		}
		pgStore := store.NewPostgres(pool)
		if err := pgStore.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("Store migration failed")
		}
		callRegistry = pgRegistry
		segmentStore = pgStore
		evidenceStore = pgStore
		log.Info().Msg("Using postgres stores")
	} else {
		callRegistry = registry.NewMemory()
		mem := store.NewMemory()
		segmentStore = mem
		evidenceStore = mem
		log.Warn().Msg("No DATABASE_URL configured, using in-memory stores")
	}

	translator := newTranslator(cfg)

	// Kafka publisher with separate topics for segments and lifecycle events.
	publisher := events.New(&events.Config{
		Enabled:        cfg.Kafka.Enabled,
		Brokers:        cfg.Kafka.Brokers,
		TopicSegments:  cfg.Kafka.TopicSegments,
		TopicLifecycle: cfg.Kafka.TopicLifecycle,
		Principal:      cfg.Kafka.Principal,
	})
	defer publisher.Close()

	evidencePipeline := evidence.NewPipeline(
		newTranscriber(cfg),
		translator,
		evidenceStore,
		callRegistry,
		publisher,
		evidence.Config{
			CallbackURL:      cfg.Evidence.CallbackURL,
			MaxAttempts:      cfg.Evidence.MaxAttempts,
			RetryBackoff:     cfg.Evidence.RetryBackoff,
			TranslateTimeout: cfg.Evidence.Timeout,
		},
	)

	processor := pipeline.New(
		callRegistry,
		translator,
		segmentStore,
		publisher,
		evidencePipeline,
		pipeline.Config{
			TranslateTimeout:  cfg.Translation.Timeout,
			AppendMaxAttempts: cfg.Pipeline.AppendMaxAttempts,
		},
	)

	verifier, err := webhook.NewVerifier(cfg.Webhook.PublicKey, cfg.Webhook.Tolerance)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid webhook public key")
	}

	router := httpapi.NewRouter(httpapi.Handlers{
		Webhook:               webhook.NewHandler(verifier, processor, cfg.Webhook.MaxBodyLen),
		Stream: stream.New(callRegistry, segmentStore, stream.Config{
			PollInterval:       cfg.Stream.PollInterval,
			MaxSubscriptionAge: cfg.Stream.MaxSubscriptionAge,
		}),
		TranscriptionCallback: evidence.NewCallbackHandler(evidencePipeline, cfg.Evidence.CallbackToken),
		Calls:                 httpapi.NewCallsHandler(callRegistry),
	})

	obsServer := observability.NewServer(":" + cfg.Service.ObservabilityPort)
	obsServer.Start()

	server := &http.Server{
		Addr:        ":" + cfg.Service.HTTPPort,
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Service.HTTPPort).Msg("Call translation service started")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	if err := obsServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Observability server shutdown failed")
	}
}

func newTranslator(cfg *config.Configuration) translate.Translator {
	switch cfg.Translation.Provider {
	case "openai":
		t, err := translateopenai.New(
			cfg.Translation.APIKey,
			cfg.Translation.Model,
			translateopenai.WithTimeout(cfg.Translation.Timeout),
		)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create openai translator")
		}
		return t
	default:
		log.Warn().Str("provider", cfg.Translation.Provider).Msg("Using mock translator")
		return translatemock.New()
	}
}

func newTranscriber(cfg *config.Configuration) evidence.Transcriber {
	switch cfg.Evidence.Provider {
	case "http":
		return evidencehttp.New(evidencehttp.Config{
			BaseURL: cfg.Evidence.BaseURL,
			APIKey:  cfg.Evidence.APIKey,
			Timeout: cfg.Evidence.Timeout,
		})
	default:
		log.Warn().Str("provider", cfg.Evidence.Provider).Msg("Using mock transcriber")
		return evidencemock.New()
	}
}
