package rest

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"kangaroo/internal/application/port"
	"kangaroo/internal/application/service"
	"kangaroo/internal/interfaces/stream"
)

const sessionHeader = "X-Session-ID"

// Server is the HTTP surface: read-only market endpoints plus the
// session-scoped paper-trading endpoints.
type Server struct {
	store    port.Store
	cache    port.QuoteCache
	ledger   *service.LedgerService
	registry *service.SessionRegistry
	hub      *stream.Hub
	engine   *gin.Engine
}

type Deps struct {
	Store    port.Store
	Cache    port.QuoteCache
	Ledger   *service.LedgerService
	Registry *service.SessionRegistry
	Hub      *stream.Hub
}

func NewServer(deps Deps) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		store:    deps.Store,
		cache:    deps.Cache,
		ledger:   deps.Ledger,
		registry: deps.Registry,
		hub:      deps.Hub,
		engine:   gin.New(),
	}
	s.engine.Use(gin.Recovery())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/", s.handleRoot)
	s.engine.GET("/stocks", s.handleListStocks)
	s.engine.GET("/stock/:ticker", s.handleGetStock)

	if s.hub != nil {
		s.engine.GET("/ws", func(c *gin.Context) { s.hub.Handle(c.Writer, c.Request) })
	}

	withSession := s.engine.Group("/", s.sessionMiddleware())
	withSession.POST("/trade", s.handleTrade)
	withSession.GET("/portfolio", s.handlePortfolio)
	withSession.GET("/transactions", s.handleTransactions)
}

// sessionMiddleware resolves the caller's session id and echoes the live id
// back on every response, so a fresh or expired client learns its token.
func (s *Server) sessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := s.registry.Resolve(c.Request.Context(), c.GetHeader(sessionHeader))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "session unavailable"})
			return
		}
		c.Header(sessionHeader, id)
		c.Set("session_id", id)
		c.Next()
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Info().Str("addr", addr).Msg("http server started")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return ctx.Err()
	}
}
