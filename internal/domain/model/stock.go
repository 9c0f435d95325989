package model

import "time"

// Stock is one persisted row per unique ticker. The ingestion loop is the
// only writer; the REST layer and the ledger read it.
type Stock struct {
	Ticker        string    `json:"ticker"`
	Name          string    `json:"name"`
	Sector        string    `json:"sector,omitempty"`
	Price         float64   `json:"price"`
	ChangeAmount  float64   `json:"change_amount"`
	ChangePercent string    `json:"change_percent"` // display string, e.g. "+1.23%"
	MarketCap     string    `json:"market_cap"`     // display string, e.g. "200B"
	MarketCapVal  float64   `json:"market_cap_value"`
	Volume        string    `json:"volume"` // display string
	VolumeVal     float64   `json:"volume_value"`
	LastUpdated   time.Time `json:"last_updated"`
}

// StockRow is one scraped row as the feed returns it, all fields still in
// display form. A batch is one full snapshot of these per poll cycle.
type StockRow struct {
	Ticker        string `json:"ticker"`
	Name          string `json:"name"`
	Sector        string `json:"sector,omitempty"`
	Price         string `json:"price"`
	ChangeAmount  string `json:"change_amount"`
	ChangePercent string `json:"change_percent"`
	MarketCap     string `json:"market_cap"`
	Volume        string `json:"volume"`
}
