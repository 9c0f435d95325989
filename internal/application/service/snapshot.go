package service

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"kangaroo/internal/domain/model"
)

// CanonicalSnapshot serializes a batch to a deterministic string used purely
// for equality comparison between poll cycles. Two semantically identical
// batches produce byte-identical output regardless of row order, so transient
// reordering from the feed never triggers a spurious write.
func CanonicalSnapshot(batch []model.StockRow) string {
	sorted := make([]model.StockRow, len(batch))
	copy(sorted, batch)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Ticker < sorted[j].Ticker })

	// struct field order is fixed, so Marshal is deterministic
	b, err := json.Marshal(sorted)
	if err != nil {
		return ""
	}
	return string(b)
}

// ParsePrice converts a display price like "$1,234.50" to a float.
// Unparsable input defaults to 0, it never fails.
func ParsePrice(s string) float64 {
	clean := strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(s, "$", ""), ",", ""))
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0
	}
	return v
}

// suffix multipliers for compact display figures like "200B" or "1.5M"
var compactSuffixes = map[byte]float64{
	'K': 1e3, 'M': 1e6, 'B': 1e9, 'T': 1e12,
}

// ParseCompact converts a compact display figure ("200B", "$1.5M", "34,567")
// to its raw numeric value. Unparsable input defaults to 0.
func ParseCompact(s string) float64 {
	clean := strings.ToUpper(strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(s, "$", ""), ",", "")))
	if clean == "" {
		return 0
	}
	mult := 1.0
	if m, ok := compactSuffixes[clean[len(clean)-1]]; ok {
		mult = m
		clean = clean[:len(clean)-1]
	}
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0
	}
	return v * mult
}

// Records converts a scraped batch into persistable rows, parsing the display
// strings once at write time and stamping last_updated.
func Records(batch []model.StockRow, now time.Time) []model.Stock {
	stocks := make([]model.Stock, 0, len(batch))
	for _, row := range batch {
		stocks = append(stocks, model.Stock{
			Ticker:        strings.ToUpper(strings.TrimSpace(row.Ticker)),
			Name:          row.Name,
			Sector:        row.Sector,
			Price:         ParsePrice(row.Price),
			ChangeAmount:  ParsePrice(row.ChangeAmount),
			ChangePercent: row.ChangePercent,
			MarketCap:     row.MarketCap,
			MarketCapVal:  ParseCompact(row.MarketCap),
			Volume:        row.Volume,
			VolumeVal:     ParseCompact(row.Volume),
			LastUpdated:   now,
		})
	}
	return stocks
}
