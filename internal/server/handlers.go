package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"papertrader/internal/ledger"
	"papertrader/internal/quotes"
	"papertrader/internal/repository"
	"papertrader/internal/trading"
	"papertrader/types"
)

type accountResponse struct {
	Cash        decimal.Decimal `json:"cash"`
	Initialized bool            `json:"initialized"`
}

type setAccountRequest struct {
	InitialCash decimal.Decimal `json:"initialCash"`
}

type tradeRequest struct {
	Side   string          `json:"side"`
	Symbol string          `json:"symbol"`
	Shares decimal.Decimal `json:"shares"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, accountResponse{
		Cash:        s.service.Cash(),
		Initialized: s.service.Initialized(),
	})
}

func (s *Server) handleSetAccount(w http.ResponseWriter, r *http.Request) {
	var req setAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.service.SetInitialCash(r.Context(), req.InitialCash); err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, accountResponse{
		Cash:        s.service.Cash(),
		Initialized: s.service.Initialized(),
	})
}

func (s *Server) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.service.Portfolio(r.Context()))
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	entries := s.service.History()
	if entries == nil {
		entries = []types.TransactionEntry{}
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handlePostTrade(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var (
		entry types.TransactionEntry
		err   error
	)
	switch types.Side(strings.ToUpper(req.Side)) {
	case types.SideTypeBuy:
		entry, err = s.service.Buy(r.Context(), req.Symbol, req.Shares)
	case types.SideTypeSell:
		entry, err = s.service.Sell(r.Context(), req.Symbol, req.Shares)
	default:
		http.Error(w, "side must be BUY or SELL", http.StatusBadRequest)
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleGetQuote(w http.ResponseWriter, r *http.Request) {
	quote, err := s.service.Quote(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, quote)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode response")
	}
}

// writeError maps domain failures onto HTTP statuses. Validation problems
// are the client's fault, collaborator outages are not.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var shortfall *ledger.InsufficientSharesError

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ledger.InvalidSymbolErr),
		errors.Is(err, ledger.InvalidQuantityErr),
		errors.Is(err, ledger.InvalidPriceErr),
		errors.Is(err, trading.InvalidInitialCashErr):
		status = http.StatusBadRequest
	case errors.Is(err, ledger.InsufficientFundsErr),
		errors.Is(err, ledger.UnknownSymbolErr),
		errors.As(err, &shortfall):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, trading.AlreadyTradedErr),
		errors.Is(err, repository.ErrAlreadyInitialized):
		status = http.StatusConflict
	case errors.Is(err, quotes.ErrUnavailable),
		errors.Is(err, trading.StaleQuoteErr):
		status = http.StatusBadGateway
	case errors.Is(err, repository.ErrStorageUnavailable):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("Request failed")
		http.Error(w, "Internal server error", status)
		return
	}
	http.Error(w, err.Error(), status)
}
