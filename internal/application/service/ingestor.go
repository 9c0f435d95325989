package service

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"kangaroo/internal/application/port"
)

const feedStopTimeout = 5 * time.Second

// IngestorDeps wires the ingestion loop. Cache and Pub are optional.
type IngestorDeps struct {
	Feed     port.MarketFeed
	Repo     port.MarketRepository
	Cache    port.QuoteCache
	Pub      port.Publisher
	Interval time.Duration
	Clock    func() time.Time
}

// Ingestor is the market-data ingestion loop: poll the feed, diff the batch
// against the last accepted snapshot, and upsert only when something changed.
// It runs for the process lifetime and never dies on a transient failure.
type Ingestor struct {
	deps IngestorDeps

	lastSnapshot string
	liveTicks    atomic.Int64
}

func NewIngestor(deps IngestorDeps) *Ingestor {
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &Ingestor{deps: deps}
}

// LiveTicks counts cycles that fetched data but found nothing changed.
func (s *Ingestor) LiveTicks() int64 { return s.liveTicks.Load() }

// Run drives the loop until ctx is cancelled. The feed is torn down before
// Run returns, so the host can await a complete shutdown.
func (s *Ingestor) Run(ctx context.Context) error {
	if err := s.deps.Feed.Start(ctx); err != nil {
		// cycles will keep retrying via Fetch
		log.Error().Err(err).Str("feed", s.deps.Feed.Name()).Msg("feed start failed")
	}
	defer func() {
		// ctx is already cancelled here; give teardown its own deadline
		stopCtx, cancel := context.WithTimeout(context.Background(), feedStopTimeout)
		defer cancel()
		if err := s.deps.Feed.Stop(stopCtx); err != nil {
			log.Warn().Err(err).Str("feed", s.deps.Feed.Name()).Msg("feed stop failed")
		}
		log.Info().Msg("market engine stopped")
	}()

	log.Info().
		Str("feed", s.deps.Feed.Name()).
		Dur("interval", s.deps.Interval).
		Msg("market engine started")

	ticker := time.NewTicker(s.deps.Interval)
	defer ticker.Stop()

	for {
		s.cycle(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// cycle runs one poll/diff/write pass. Every failure path is local: log and
// keep the previous state so the next cycle retries the same diff.
func (s *Ingestor) cycle(ctx context.Context) {
	batch, err := s.deps.Feed.Fetch(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("fetch failed, keeping previous data")
		return
	}
	if len(batch) == 0 {
		log.Debug().Msg("empty batch, skipping cycle")
		return
	}

	snap := CanonicalSnapshot(batch)
	if snap == s.lastSnapshot {
		s.liveTicks.Add(1)
		log.Debug().Msg("no change")
		return
	}

	stocks := Records(batch, s.deps.Clock())
	if err := s.deps.Repo.UpsertStocks(ctx, stocks); err != nil {
		// marker not advanced: the same diff is retried next cycle
		log.Error().Err(err).Int("stocks", len(stocks)).Msg("batch write failed")
		return
	}
	s.lastSnapshot = snap

	if s.deps.Cache != nil {
		if err := s.deps.Cache.SetBatch(ctx, stocks); err != nil {
			log.Warn().Err(err).Msg("quote cache update failed")
		}
	}
	if s.deps.Pub != nil {
		s.deps.Pub.PublishStocks(stocks)
	}
	log.Info().Int("stocks", len(stocks)).Msg("price update detected, written to store")
}
