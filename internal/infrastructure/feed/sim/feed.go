package sim

import (
	"context"
	"fmt"
	"strings"

	"github.com/brianvoe/gofakeit/v7"

	"kangaroo/internal/application/port"
	"kangaroo/internal/domain/model"
)

// well-known ASX large caps anchor the demo universe; the rest is generated
var anchors = []struct {
	ticker, name, sector string
}{
	{"BHP", "BHP Group", "Materials"},
	{"CBA", "Commonwealth Bank", "Financials"},
	{"CSL", "CSL Limited", "Health Care"},
	{"NAB", "National Australia Bank", "Financials"},
	{"WBC", "Westpac Banking", "Financials"},
	{"ANZ", "ANZ Group", "Financials"},
	{"WES", "Wesfarmers", "Consumer Staples"},
	{"MQG", "Macquarie Group", "Financials"},
	{"WOW", "Woolworths Group", "Consumer Staples"},
	{"TLS", "Telstra Group", "Telecommunications"},
	{"RIO", "Rio Tinto", "Materials"},
	{"FMG", "Fortescue", "Materials"},
}

var sectors = []string{
	"Materials", "Financials", "Health Care", "Consumer Staples",
	"Consumer Discretionary", "Energy", "Industrials",
	"Information Technology", "Real Estate", "Telecommunications", "Utilities",
}

// Feed is the display-mode stand-in for the live scraper: it generates one
// fixed universe at construction and serves the same batch every fetch, so
// the ingestion loop commits it once and then sees an unchanged snapshot.
// Price movement afterwards comes from the simulator, not the feed.
type Feed struct {
	rows []model.StockRow
}

// New builds a deterministic universe of n rows from the given seed.
func New(n int, seed uint64) *Feed {
	faker := gofakeit.New(seed)

	if n < len(anchors) {
		n = len(anchors)
	}
	rows := make([]model.StockRow, 0, n)
	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		var ticker, name, sector string
		if i < len(anchors) {
			ticker, name, sector = anchors[i].ticker, anchors[i].name, anchors[i].sector
		} else {
			for ticker == "" || seen[ticker] {
				ticker = strings.ToUpper(faker.LetterN(3))
			}
			name = faker.Company()
			sector = faker.RandomString(sectors)
		}
		seen[ticker] = true
		price := faker.Float64Range(0.5, 350)
		change := faker.Float64Range(-0.03, 0.03) * price
		rows = append(rows, model.StockRow{
			Ticker:        ticker,
			Name:          name,
			Sector:        sector,
			Price:         fmt.Sprintf("$%.2f", price),
			ChangeAmount:  fmt.Sprintf("%.2f", change),
			ChangePercent: fmt.Sprintf("%+.2f%%", change/price*100),
			MarketCap:     fmt.Sprintf("%.1fB", faker.Float64Range(0.5, 250)),
			Volume:        fmt.Sprintf("%.1fM", faker.Float64Range(0.1, 40)),
		})
	}
	return &Feed{rows: rows}
}

func (f *Feed) Name() string { return "sim" }

func (f *Feed) Start(ctx context.Context) error { return nil }

func (f *Feed) Fetch(ctx context.Context) ([]model.StockRow, error) {
	out := make([]model.StockRow, len(f.rows))
	copy(out, f.rows)
	return out, nil
}

func (f *Feed) Stop(ctx context.Context) error { return nil }

var _ port.MarketFeed = (*Feed)(nil)
