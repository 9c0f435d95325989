package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"kangaroo/internal/application/port"
	"kangaroo/internal/application/service"
	"kangaroo/internal/infrastructure/config"
	"kangaroo/internal/infrastructure/feed/asx"
	"kangaroo/internal/infrastructure/feed/sim"
	"kangaroo/internal/infrastructure/logger"
	"kangaroo/internal/infrastructure/storage/postgres"
	rediscache "kangaroo/internal/infrastructure/storage/redis"
	"kangaroo/internal/infrastructure/storage/sqlite"
	"kangaroo/internal/interfaces/rest"
	"kangaroo/internal/interfaces/stream"
)

func main() {
	logger.Setup("info", true)

	configPath := flag.String("config", "configs/config.toml", "path to config.toml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("load config failed")
	}
	logger.Setup(cfg.App.LogLevel, cfg.App.Pretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// store
	var store port.Store
	switch cfg.DB.Driver {
	case "postgres":
		store, err = postgres.New(cfg.DB.DSN)
	default:
		store, err = sqlite.New(cfg.DB.Path)
	}
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DB.Driver).Msg("open store failed")
	}
	defer store.Close()

	// optional quote cache
	var cache port.QuoteCache
	if cfg.Redis.Enabled {
		rdb := goredis.NewClient(&goredis.Options{Addr: cfg.Redis.Addr})
		cache = rediscache.New(rdb, cfg.Redis.Prefix, cfg.RedisTTL())
		log.Info().Str("addr", cfg.Redis.Addr).Msg("quote cache enabled")
	}

	hub := stream.NewHub()

	var feed port.MarketFeed
	if cfg.App.Mode == "display" {
		feed = sim.New(cfg.Simulator.SeedCount, 1)
	} else {
		feed = asx.New(cfg.Ingest.SourceURL)
	}

	ingestor := service.NewIngestor(service.IngestorDeps{
		Feed:     feed,
		Repo:     store,
		Cache:    cache,
		Pub:      hub,
		Interval: cfg.IngestInterval(),
	})

	registry := service.NewSessionRegistry(store, cfg.SessionTTL(), cfg.Session.SeedBalance, nil)
	ledger := service.NewLedgerService(store, cfg.Session.SeedBalance, nil)

	server := rest.NewServer(rest.Deps{
		Store:    store,
		Cache:    cache,
		Ledger:   ledger,
		Registry: registry,
		Hub:      hub,
	})

	log.Info().
		Str("mode", cfg.App.Mode).
		Str("driver", cfg.DB.Driver).
		Str("addr", cfg.Server.Addr).
		Msg("kangaroo engine starting")

	// one task group owns every background loop; cancelling the group
	// awaits each teardown before main returns
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ingestor.Run(gctx) })
	if cfg.App.Mode == "display" {
		simulator := service.NewSimulator(service.SimulatorDeps{
			Repo:     store,
			Cache:    cache,
			Pub:      hub,
			Interval: cfg.SimulatorInterval(),
		})
		g.Go(func() error { return simulator.Run(gctx) })
	}
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error { return server.Run(gctx, cfg.Server.Addr) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("engine exited with error")
	}
	log.Info().Msg("kangaroo engine shut down")
}
