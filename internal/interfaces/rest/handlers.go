package rest

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"kangaroo/internal/domain/model"
)

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "kangaroo engine running"})
}

// handleListStocks returns the universe sorted by market cap, largest first.
// The quote cache answers when it holds data; the store is the fallback.
func (s *Server) handleListStocks(c *gin.Context) {
	ctx := c.Request.Context()

	if s.cache != nil {
		if stocks, err := s.cache.List(ctx); err == nil && len(stocks) > 0 {
			c.JSON(http.StatusOK, stocks)
			return
		}
	}

	stocks, err := s.store.ListStocks(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if stocks == nil {
		stocks = []model.Stock{}
	}
	c.JSON(http.StatusOK, stocks)
}

func (s *Server) handleGetStock(c *gin.Context) {
	ctx := c.Request.Context()
	ticker := strings.ToUpper(strings.TrimSpace(c.Param("ticker")))

	if s.cache != nil {
		if st, ok, err := s.cache.Get(ctx, ticker); err == nil && ok {
			c.JSON(http.StatusOK, st)
			return
		}
	}

	st, err := s.store.GetStock(ctx, ticker)
	if errors.Is(err, model.ErrStockNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Stock not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, st)
}

type tradeRequest struct {
	Ticker string `json:"ticker" binding:"required"`
	Shares int64  `json:"shares" binding:"required,min=1"`
	Type   string `json:"type" binding:"required,oneof=BUY SELL"`
}

// handleTrade executes a paper trade at the current stored price.
func (s *Server) handleTrade(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := c.GetString("session_id")

	var req tradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ticker := strings.ToUpper(strings.TrimSpace(req.Ticker))
	st, err := s.lookupStock(c, ticker)
	if errors.Is(err, model.ErrStockNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Stock not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if st.Price <= 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "no market price for " + ticker})
		return
	}

	err = s.ledger.ExecuteTrade(ctx, sessionID, ticker, req.Shares, st.Price, model.TradeType(req.Type))
	switch {
	case errors.Is(err, model.ErrInsufficientFunds), errors.Is(err, model.ErrInsufficientShares):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		log.Error().Err(err).Str("session", sessionID).Msg("trade failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "trade failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "executed", "ticker": ticker, "shares": req.Shares, "price": st.Price})
}

func (s *Server) lookupStock(c *gin.Context, ticker string) (*model.Stock, error) {
	ctx := c.Request.Context()
	if s.cache != nil {
		if st, ok, err := s.cache.Get(ctx, ticker); err == nil && ok {
			return st, nil
		}
	}
	return s.store.GetStock(ctx, ticker)
}

type holdingView struct {
	Ticker      string  `json:"ticker"`
	Shares      int64   `json:"shares"`
	AvgCost     float64 `json:"avg_cost"`
	MarketPrice float64 `json:"market_price"`
	MarketValue float64 `json:"market_value"`
}

func (s *Server) handlePortfolio(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := c.GetString("session_id")

	account, err := s.ledger.Account(ctx, sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	balance := 0.0
	if account != nil {
		balance = account.Balance
	}

	holdings, err := s.ledger.Holdings(ctx, sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	views := make([]holdingView, 0, len(holdings))
	total := balance
	for _, h := range holdings {
		v := holdingView{Ticker: h.Ticker, Shares: h.Shares, AvgCost: h.AvgCost}
		if st, err := s.lookupStock(c, h.Ticker); err == nil {
			v.MarketPrice = st.Price
			v.MarketValue = float64(h.Shares) * st.Price
		}
		total += v.MarketValue
		views = append(views, v)
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id":  sessionID,
		"balance":     balance,
		"holdings":    views,
		"total_value": total,
	})
}

func (s *Server) handleTransactions(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := c.GetString("session_id")

	txs, err := s.ledger.Transactions(ctx, sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if txs == nil {
		txs = []model.SessionTransaction{}
	}
	c.JSON(http.StatusOK, txs)
}
