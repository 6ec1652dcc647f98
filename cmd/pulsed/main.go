// Package main is the entry point for pulsed, the venezuelawatch
// ingestion and intelligence daemon. It wires the storage layer, the
// seven source adapters, the event bus, the analysis pipeline, the
// trending leaderboard, and the HTTP front door, then runs until a
// shutdown signal arrives.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stdin/venezuelawatch/internal/adapter"
	"github.com/stdin/venezuelawatch/internal/adapter/sources"
	"github.com/stdin/venezuelawatch/internal/bus"
	"github.com/stdin/venezuelawatch/internal/config"
	"github.com/stdin/venezuelawatch/internal/entity"
	"github.com/stdin/venezuelawatch/internal/llm"
	"github.com/stdin/venezuelawatch/internal/pipeline"
	"github.com/stdin/venezuelawatch/internal/scheduler"
	"github.com/stdin/venezuelawatch/internal/server"
	"github.com/stdin/venezuelawatch/internal/storage"
	"github.com/stdin/venezuelawatch/internal/trending"
	"github.com/stdin/venezuelawatch/pkg/logger"
)

// reconcileInterval is how often the trending leaderboard rebuilds
// itself from mention history (C14's nightly reconciliation job).
const reconcileInterval = 24 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("pulsed: failed to load configuration")
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.Pretty})
	log.Info().Msg("pulsed: starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	relDB, err := storage.OpenRelational(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("pulsed: failed to open relational store")
	}
	defer relDB.Close()

	eventPool, err := storage.OpenEventStore(ctx, cfg.EventDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("pulsed: failed to open event store")
	}
	defer eventPool.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("pulsed: failed to reach redis")
	}
	defer rdb.Close()

	settingsStore := storage.NewSettingsStore(relDB)
	if err := cfg.UpdateFromSettings(settingsStore); err != nil {
		log.Warn().Err(err).Msg("pulsed: failed to overlay settings store, using environment values")
	}

	eventStore := storage.NewEventStore(eventPool)
	mentionStore := storage.NewMentionStore(relDB)
	entityStore := storage.NewEntityStore(relDB)
	sanctionsStore := storage.NewSanctionsStore(relDB)

	eventBus := bus.New(rdb, log, cfg.MaxQueueRetries)
	publisher := bus.NewEventPublisher(eventBus)

	llmCache := llm.NewRedisCache(rdb)
	analyzer := llm.NewClaudeAnalyzer(cfg.AnthropicAPIKey, llmCache, log)
	narrator := llm.NewClaudeNarrator(cfg.AnthropicAPIKey, cfg.LLMModel, log)

	resolver := entity.New(entityStore, log)
	httpClient := &http.Client{Timeout: 30 * time.Second}
	watchlist := entity.NewWatchlistFromConfig(cfg, httpClient)
	screener := entity.NewScreener(watchlist, sanctionsStore, log)

	leaderboard := trending.New(rdb, entityStore, mentionStore, log)

	registry := adapter.NewRegistry()
	registry.Register(sources.NewGDELTAdapter(httpClient, "https://api.gdeltproject.org/api/v2/doc/doc", eventStore))
	registry.Register(sources.NewReliefWebAdapter(httpClient, "https://api.reliefweb.int/v1/reports", eventStore))
	registry.Register(sources.NewFREDAdapter(httpClient, "https://api.stlouisfed.org/fred/series/observations", cfg.FREDAPIKey, eventStore))
	registry.Register(sources.NewUNComtradeAdapter(httpClient, "https://comtradeapi.un.org/data/v1/get/C/M/HS", cfg.UNComtradeSubKey, eventStore))
	registry.Register(sources.NewWorldBankAdapter(httpClient, "https://api.worldbank.org/v2", eventStore))
	registry.Register(sources.NewGoogleTrendsAdapter(httpClient, "https://trends.google.com/trends/api", eventStore))
	registry.Register(sources.NewSECEdgarAdapter(eventStore))
	log.Info().Int("count", len(registry.All())).Msg("pulsed: source adapters registered")

	pl := pipeline.New(eventBus, eventStore, mentionStore, analyzer, resolver, screener, leaderboard, log)
	go pl.Run(ctx)
	log.Info().Msg("pulsed: pipeline started")

	go leaderboard.RunNightly(ctx, reconcileInterval)
	log.Info().Dur("interval", reconcileInterval).Msg("pulsed: trending reconciliation scheduled")

	go runAlertJobs(ctx, eventStore, mentionStore, publisher, log)
	log.Info().Msg("pulsed: threshold/spike alert jobs started")

	sched := scheduler.New(registry, publisher, adapter.PublishOptions{}, log)
	sched.Start(ctx)
	defer sched.Stop()

	srv := server.New(server.Config{
		Log:       log,
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
		Registry:  registry,
		Publisher: publisher,
		Events:    eventStore,
		Mentions:  mentionStore,
		Entities:  entityStore,
		Narrator:  narrator,
	})
	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("pulsed: HTTP server failed")
		}
	}()
	log.Info().Int("port", cfg.Port).Msg("pulsed: HTTP server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("pulsed: shutdown signal received")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("pulsed: error during HTTP server shutdown")
	}

	log.Info().Msg("pulsed: stopped")
}
