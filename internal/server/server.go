// Package server exposes the control API: market snapshots for external
// agents, the override intake and manual order placement.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"antigravity/internal/domain"
	"antigravity/internal/ports"
)

// SnapshotProvider serves the market state published by the decision loop.
type SnapshotProvider interface {
	Snapshot() domain.Snapshot
}

// OverrideSink accepts external override signals.
type OverrideSink interface {
	SetOverride(ov domain.Override)
}

// OrderPlacer places manual orders against the current position.
type OrderPlacer interface {
	Execute(ctx context.Context, side domain.OrderSide, reason domain.Reason, priceHint float64) (*domain.TradeEvent, error)
}

// Config holds configuration for the control server.
type Config struct {
	Port        int
	OverrideTTL time.Duration // default TTL when the request omits ttl_seconds
}

// Server is the HTTP control surface.
type Server struct {
	cfg      Config
	snapshot SnapshotProvider
	override OverrideSink
	orders   OrderPlacer
	market   ports.MarketDataSource
	ledger   ports.TradeLedger // optional, enables GET /trades
	logger   ports.Logger
	symbol   string

	httpServer *http.Server
}

// Deps bundles the server's collaborators. Ledger may be nil.
type Deps struct {
	Snapshot SnapshotProvider
	Override OverrideSink
	Orders   OrderPlacer
	Market   ports.MarketDataSource
	Ledger   ports.TradeLedger
	Logger   ports.Logger
	Symbol   string
}

// New creates the control server.
func New(cfg Config, deps Deps) (*Server, error) {
	switch {
	case deps.Snapshot == nil:
		return nil, fmt.Errorf("snapshot provider is required")
	case deps.Override == nil:
		return nil, fmt.Errorf("override sink is required")
	case deps.Orders == nil:
		return nil, fmt.Errorf("order placer is required")
	case deps.Market == nil:
		return nil, fmt.Errorf("market data source is required")
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("%w: invalid port %d", ports.ErrConfigurationError, cfg.Port)
	}
	if cfg.OverrideTTL <= 0 {
		cfg.OverrideTTL = 5 * time.Minute
	}

	s := &Server{
		cfg:      cfg,
		snapshot: deps.Snapshot,
		override: deps.Override,
		orders:   deps.Orders,
		market:   deps.Market,
		ledger:   deps.Ledger,
		logger:   deps.Logger,
		symbol:   deps.Symbol,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /market/status", s.handleMarketStatus)
	mux.HandleFunc("POST /signal/override", s.handleOverride)
	mux.HandleFunc("POST /orders", s.handleOrder)
	if s.ledger != nil {
		mux.HandleFunc("GET /trades", s.handleTrades)
	}

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s, nil
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Control API listening", map[string]interface{}{"addr": s.httpServer.Addr})
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("control server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
