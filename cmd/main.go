package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/deckforge/deckforge-backend/internal/clients/redis"
	"github.com/deckforge/deckforge-backend/internal/db"
	"github.com/deckforge/deckforge-backend/internal/deck"
	"github.com/deckforge/deckforge-backend/internal/generation"
	"github.com/deckforge/deckforge-backend/internal/handlers"
	"github.com/deckforge/deckforge-backend/internal/observability"
	"github.com/deckforge/deckforge-backend/internal/platform/anthropic"
	"github.com/deckforge/deckforge-backend/internal/platform/envutil"
	"github.com/deckforge/deckforge-backend/internal/platform/logger"
	"github.com/deckforge/deckforge-backend/internal/repos"
	"github.com/deckforge/deckforge-backend/internal/server"
	"github.com/deckforge/deckforge-backend/internal/sse"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Tracing
	shutdownOTel := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: "deckforge-backend",
		Environment: envutil.Str("DEPLOY_ENV", "development"),
		Version:     envutil.Str("SERVICE_VERSION", "dev"),
	})
	if shutdownOTel != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownOTel(ctx)
		}()
	}

	// Database (session log; optional)
	var runRepo repos.GenerationRunRepo
	var callLogRepo repos.LLMCallLogRepo
	dbService, err := db.New(log)
	if err != nil {
		log.Warn("Database init failed; run persistence disabled", "error", err)
	} else if err := dbService.AutoMigrateAll(); err != nil {
		log.Warn("Auto migration failed; run persistence disabled", "error", err)
	} else {
		runRepo = repos.NewGenerationRunRepo(dbService.DB(), log)
		callLogRepo = repos.NewLLMCallLogRepo(dbService.DB(), log)
	}

	// LLM client (optional: without it the pipeline runs its heuristics)
	var llm anthropic.Client
	client, err := anthropic.NewClient(log)
	if err != nil {
		log.Warn("Anthropic client unavailable; running heuristic-only", "error", err)
	} else {
		llm = client
	}

	// SSE
	log.Info("Setting up SSE hub...")
	hub := sse.NewHub(log)

	// Redis (optional cross-instance fan-out + progress snapshots)
	var bus redis.Bus
	var progressStore redis.ProgressStore
	if b, err := redis.NewBus(log); err != nil {
		log.Warn("Redis unavailable; cross-instance streaming disabled", "error", err)
	} else {
		bus = b
		progressStore = redis.NewProgressStore(log, bus)
		if err := bus.StartForwarder(context.Background(), func(m sse.Message) {
			hub.Broadcast(m)
		}); err != nil {
			log.Warn("Redis forwarder failed to start", "error", err)
		}
	}

	// Generation pipeline
	log.Info("Setting up generation service...")
	var recorder generation.CallRecorder
	if callLogRepo != nil {
		recorder = repos.NewLLMCallRecorder(callLogRepo, log)
	}
	var svcLLM generation.LLM
	if llm != nil {
		svcLLM = generation.LogCalls(llm, recorder)
	}
	svc := generation.NewService(log, svcLLM, deck.PipelineConfigFromEnv())

	// Handlers
	log.Info("Setting up handlers...")
	generationHandler := handlers.NewGenerationHandler(log, svc, llm, recorder, hub, bus, progressStore, runRepo)
	runsHandler := handlers.NewRunsHandler(log, runRepo, callLogRepo)
	streamHandler := handlers.NewStreamHandler(log, hub, progressStore)

	// Router
	log.Info("Setting up router...")
	router := server.NewRouter(server.RouterConfig{
		Log:               log,
		GenerationHandler: generationHandler,
		RunsHandler:       runsHandler,
		StreamHandler:     streamHandler,
	})

	port := envutil.Str("PORT", "8080")
	log.Info("Server listening", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Error("Server failed", "error", err)
	}
}
