package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"alpha_portfolios/internal/models"
)

// priceWindow is how far either side of a trade the price history reaches.
const priceWindow = 30 * 24 * time.Hour

func (s *Server) handleGetNotes(w http.ResponseWriter, r *http.Request) {
	_, rec, err := s.mgr.FindTrade(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"id": rec.ID, "notes": rec.Notes})
}

func (s *Server) handleSetNotes(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Notes string `json:"notes"`
	}
	if err := decode(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	rec, err := s.mgr.SetTradeNotes(chi.URLParam(r, "id"), body.Notes)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"id": rec.ID, "notes": rec.Notes})
}

func (s *Server) handleGetTags(w http.ResponseWriter, r *http.Request) {
	_, rec, err := s.mgr.FindTrade(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tagsResponse(rec))
}

func (s *Server) handleSetTags(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Tags []string `json:"tags"`
	}
	if err := decode(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	rec, err := s.mgr.SetTradeTags(chi.URLParam(r, "id"), body.Tags)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tagsResponse(rec))
}

func tagsResponse(rec models.TradeRecord) map[string]interface{} {
	tags := rec.Tags
	if tags == nil {
		tags = []string{}
	}
	return map[string]interface{}{"id": rec.ID, "tags": tags}
}

// handlePriceHistory returns daily closes around a trade for charting the
// entry or exit against the market.
func (s *Server) handlePriceHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, fmt.Errorf("price history: %w", errUnavailable))
		return
	}
	_, rec, err := s.mgr.FindTrade(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	start := rec.SubmittedAt.Add(-priceWindow)
	end := rec.SubmittedAt.Add(priceWindow)
	if now := time.Now(); end.After(now) {
		end = now
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	prices, err := s.history.DailyCloses(ctx, rec.Symbol, start, end)
	if err != nil {
		s.log.Warn().Err(err).Str("symbol", rec.Symbol).Msg("price history unavailable")
		prices = []models.PricePoint{}
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"trade":  rec,
		"prices": prices,
	})
}
