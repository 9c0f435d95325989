package service

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog/log"

	"kangaroo/internal/application/port"
	"kangaroo/internal/domain/model"
)

// Display-mode tick tuning, matching the live engine's feel: every tick a
// random 30-60% subset of stocks moves by 0.2-1.2%.
const (
	simTickInterval = 2 * time.Second
	simMinMovePct   = 0.002
	simMaxMovePct   = 0.012
	simMinMoveRatio = 0.3
	simMaxMoveRatio = 0.6
)

// SimulatorDeps wires the display-mode price simulator. Cache and Pub are
// optional, as in the ingestor.
type SimulatorDeps struct {
	Repo     port.MarketRepository
	Cache    port.QuoteCache
	Pub      port.Publisher
	Interval time.Duration
	Rand     *rand.Rand
	Clock    func() time.Time
}

// Simulator is the display-mode stand-in for the ingestion loop: it nudges
// stored prices on a random walk so the UI has movement without a live feed.
type Simulator struct {
	deps SimulatorDeps
}

func NewSimulator(deps SimulatorDeps) *Simulator {
	if deps.Interval <= 0 {
		deps.Interval = simTickInterval
	}
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &Simulator{deps: deps}
}

// Run drives the simulator until ctx is cancelled. Same failure policy as
// the ingestor: log and carry on.
func (s *Simulator) Run(ctx context.Context) error {
	log.Info().Dur("interval", s.deps.Interval).Msg("price simulator started")
	defer log.Info().Msg("price simulator stopped")

	ticker := time.NewTicker(s.deps.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.tick(ctx); err != nil {
				log.Warn().Err(err).Msg("simulator tick failed")
			}
		}
	}
}

func (s *Simulator) tick(ctx context.Context) error {
	stocks, err := s.deps.Repo.ListStocks(ctx)
	if err != nil {
		return err
	}
	if len(stocks) == 0 {
		return nil
	}

	ratio := simMinMoveRatio + s.deps.Rand.Float64()*(simMaxMoveRatio-simMinMoveRatio)
	count := max(1, int(float64(len(stocks))*ratio))

	s.deps.Rand.Shuffle(len(stocks), func(i, j int) { stocks[i], stocks[j] = stocks[j], stocks[i] })

	now := s.deps.Clock()
	movers := make([]model.Stock, 0, count)
	for _, st := range stocks[:count] {
		if st.Price <= 0 {
			continue
		}
		dir := 1.0
		if s.deps.Rand.IntN(2) == 0 {
			dir = -1.0
		}
		magnitude := simMinMovePct + s.deps.Rand.Float64()*(simMaxMovePct-simMinMovePct)
		movers = append(movers, nudge(st, dir*magnitude, now))
	}
	if len(movers) == 0 {
		return nil
	}

	if err := s.deps.Repo.UpsertStocks(ctx, movers); err != nil {
		return err
	}
	if s.deps.Cache != nil {
		if err := s.deps.Cache.SetBatch(ctx, movers); err != nil {
			log.Warn().Err(err).Msg("quote cache update failed")
		}
	}
	if s.deps.Pub != nil {
		s.deps.Pub.PublishStocks(movers)
	}
	return nil
}

// nudge moves one stock by the signed fraction pct and rewrites its
// session-change fields against the implied previous close. The price never
// goes non-positive: a move that would cross zero is discarded.
func nudge(st model.Stock, pct float64, now time.Time) model.Stock {
	newPrice := math.Round(st.Price*(1+pct)*1e4) / 1e4
	if newPrice <= 0 {
		newPrice = st.Price
	}

	prevClose := st.Price - st.ChangeAmount
	change := newPrice - prevClose
	var changePct float64
	if prevClose != 0 {
		changePct = change / prevClose * 100
	}

	st.Price = newPrice
	st.ChangeAmount = math.Round(change*1e4) / 1e4
	st.ChangePercent = formatPercent(changePct)
	st.LastUpdated = now
	return st
}

func formatPercent(pct float64) string {
	if pct >= 0 {
		return fmt.Sprintf("+%.2f%%", pct)
	}
	return fmt.Sprintf("%.2f%%", pct)
}
