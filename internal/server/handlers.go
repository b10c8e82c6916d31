package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"antigravity/internal/domain"
	"antigravity/internal/ports"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMarketStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot.Snapshot()
	if snap.UpdatedAt.IsZero() {
		// No cycle has completed yet; serve a live price so agents are not
		// left with an empty shell.
		price, err := s.market.GetTickerPrice(r.Context(), s.symbol)
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "market data not available yet")
			return
		}
		snap = domain.Snapshot{
			Symbol:       s.symbol,
			Price:        price,
			Trend:        domain.TrendFlat,
			PositionSide: domain.SideNone,
			Sentiment:    domain.Neutral,
			UpdatedAt:    time.Now(),
		}
	}
	writeJSON(w, http.StatusOK, snap)
}

type overrideRequest struct {
	Signal     string  `json:"signal"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
	TTLSeconds int     `json:"ttl_seconds"`
}

func (s *Server) handleOverride(w http.ResponseWriter, r *http.Request) {
	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var action domain.OverrideAction
	switch req.Signal {
	case "buy":
		action = domain.OverrideBuy
	case "sell":
		action = domain.OverrideSell
	case "hold":
		action = domain.OverrideHold
	default:
		writeError(w, http.StatusBadRequest, "signal must be buy, sell or hold")
		return
	}
	if req.Confidence < 0 || req.Confidence > 1 {
		writeError(w, http.StatusBadRequest, "confidence must be between 0.0 and 1.0")
		return
	}

	ttl := s.cfg.OverrideTTL
	if req.TTLSeconds > 0 {
		ttl = time.Duration(req.TTLSeconds) * time.Second
	}

	s.override.SetOverride(domain.Override{
		Action:     action,
		Confidence: req.Confidence,
		Rationale:  req.Rationale,
		ReceivedAt: time.Now(),
		TTL:        ttl,
	})

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"status":      "accepted",
		"signal":      string(action),
		"confidence":  req.Confidence,
		"ttl_seconds": int(ttl.Seconds()),
	})
}

type orderRequest struct {
	Side string `json:"side"`
	// Rationale is a free-text operator note. It is logged, never recorded
	// as the trade reason: orders placed here are always MANUAL so the
	// audit trail cannot be spoofed into attributing them to the pipeline.
	Rationale string `json:"rationale"`
}

type orderResponse struct {
	ID        string  `json:"id"`
	Action    string  `json:"action"`
	Price     float64 `json:"price"`
	Quantity  float64 `json:"quantity"`
	PnLPct    float64 `json:"pnl_pct"`
	Simulated bool    `json:"simulated"`
}

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var side domain.OrderSide
	switch req.Side {
	case "buy", "BUY":
		side = domain.Buy
	case "sell", "SELL":
		side = domain.Sell
	default:
		writeError(w, http.StatusBadRequest, "side must be buy or sell")
		return
	}

	if req.Rationale != "" {
		s.logger.Info(r.Context(), "Manual order requested", map[string]interface{}{
			"side":      string(side),
			"rationale": req.Rationale,
		})
	}

	priceHint := s.snapshot.Snapshot().Price
	if priceHint <= 0 {
		price, err := s.market.GetTickerPrice(r.Context(), s.symbol)
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "no price available for execution")
			return
		}
		priceHint = price
	}

	event, err := s.orders.Execute(r.Context(), side, domain.ReasonManual, priceHint)
	if err != nil {
		if errors.Is(err, ports.ErrOrderRejected) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.logger.Error(r.Context(), "Manual order failed", err, map[string]interface{}{"side": string(side)})
		writeError(w, http.StatusInternalServerError, "order execution failed")
		return
	}

	writeJSON(w, http.StatusOK, orderResponse{
		ID:        event.ID,
		Action:    event.Action.String(),
		Price:     event.Price,
		Quantity:  event.Quantity,
		PnLPct:    event.PnLPct,
		Simulated: event.Simulated,
	})
}

type tradeResponse struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Symbol    string    `json:"symbol"`
	Action    string    `json:"action"`
	Price     float64   `json:"price"`
	Quantity  float64   `json:"quantity"`
	Reason    string    `json:"reason"`
	PnLPct    float64   `json:"pnl_pct"`
	Simulated bool      `json:"simulated"`
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	events, err := s.ledger.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error(r.Context(), "Failed to read trade ledger", err, nil)
		writeError(w, http.StatusInternalServerError, "failed to read trade ledger")
		return
	}

	out := make([]tradeResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, tradeResponse{
			ID:        ev.ID,
			Timestamp: ev.Timestamp,
			Symbol:    ev.Symbol,
			Action:    ev.Action.String(),
			Price:     ev.Price,
			Quantity:  ev.Quantity,
			Reason:    string(ev.Reason),
			PnLPct:    ev.PnLPct,
			Simulated: ev.Simulated,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
