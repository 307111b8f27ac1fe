package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"alpha_portfolios/internal/manager"
	"alpha_portfolios/internal/models"
	"alpha_portfolios/internal/portfolio"
)

func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	return nil
}

func (s *Server) portfolio(w http.ResponseWriter, r *http.Request) (*portfolio.Portfolio, bool) {
	p, err := s.mgr.Get(chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	return p, true
}

func (s *Server) handleListPortfolios(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.mgr.Snapshots(r.Context()))
}

func (s *Server) handleAddPortfolio(w http.ResponseWriter, r *http.Request) {
	var def models.PortfolioDefinition
	if err := decode(r, &def); err != nil {
		s.writeError(w, err)
		return
	}
	p, err := s.mgr.AddPortfolio(def)
	if err != nil {
		s.writeError(w, err)
		return
	}
	view, err := s.mgr.Snapshot(r.Context(), p.Name())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, view)
}

func (s *Server) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	view, err := s.mgr.Snapshot(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleRemovePortfolio(w http.ResponseWriter, r *http.Request) {
	if err := s.mgr.RemovePortfolio(chi.URLParam(r, "name")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var u manager.ConfigUpdate
	if err := decode(r, &u); err != nil {
		s.writeError(w, err)
		return
	}
	name := chi.URLParam(r, "name")
	if err := s.mgr.UpdateConfig(name, u); err != nil {
		s.writeError(w, err)
		return
	}
	p, err := s.mgr.Get(name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":          p.Name(),
		"strategy_type": p.Strategy(),
		"custom_prompt": p.PromptTemplate(),
		"thresholds":    p.Thresholds(),
	})
}

func (s *Server) handleTradeHistory(w http.ResponseWriter, r *http.Request) {
	p, ok := s.portfolio(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	s.writeJSON(w, http.StatusOK, p.TradeHistory(portfolio.HistoryFilter{
		Symbol: q.Get("symbol"),
		Side:   models.Side(q.Get("side")),
	}))
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	p, ok := s.portfolio(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, p.Activity(models.ActivityType(r.URL.Query().Get("type"))))
}

func (s *Server) handlePnL(w http.ResponseWriter, r *http.Request) {
	p, ok := s.portfolio(w, r)
	if !ok {
		return
	}
	period := r.URL.Query().Get("period")
	if period == "" {
		period = portfolio.PeriodDay
	}
	pnl, err := p.PnLByPeriod(period)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, pnl)
}

// handleExport returns the full trade history as a downloadable JSON file.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	p, ok := s.portfolio(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s_trades.json"`, p.Name()))
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"portfolio": p.Name(),
		"trades":    p.TradeHistory(portfolio.HistoryFilter{}).Trades,
		"stats":     p.Stats(),
	})
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		s.writeError(w, fmt.Errorf("journal: %w", errUnavailable))
		return
	}
	p, ok := s.portfolio(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := s.journal.Recent(r.Context(), p.Name(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleBenchmark(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.mgr.BenchmarkCurve())
}

type cycleRequest struct {
	Symbols []string `json:"symbols"`
}

func (s *Server) cycleSymbols(r *http.Request) ([]string, error) {
	var req cycleRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			return nil, err
		}
	}
	if len(req.Symbols) == 0 {
		return s.symbols, nil
	}
	return req.Symbols, nil
}

// Cycles run detached from the request so a dropped client does not abort
// orders half way through.
func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	symbols, err := s.cycleSymbols(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.mgr.Step(context.WithoutCancel(r.Context()), symbols))
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	symbols, err := s.cycleSymbols(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.mgr.ScanBuys(context.WithoutCancel(r.Context()), symbols))
}
