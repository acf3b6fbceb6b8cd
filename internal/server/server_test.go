package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papertrader/internal/ledger"
	"papertrader/internal/quotes"
	"papertrader/internal/repository"
	"papertrader/internal/trading"
	"papertrader/types"
)

type stubQuotes struct {
	prices map[string]string
	err    error
}

func (s *stubQuotes) Quote(_ context.Context, symbol string) (types.Quote, error) {
	if s.err != nil {
		return types.Quote{}, s.err
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	price, ok := s.prices[symbol]
	if !ok {
		return types.Quote{}, quotes.ErrUnavailable
	}
	return types.Quote{
		Symbol:    symbol,
		Name:      symbol,
		Price:     decimal.RequireFromString(price),
		FetchedAt: time.Now(),
	}, nil
}

func newTestServer(t *testing.T, provider trading.QuoteProvider) *Server {
	t.Helper()
	store, err := repository.NewSQLiteStore(":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	service, err := trading.NewService(context.Background(), trading.Config{
		Store:       store,
		Quotes:      provider,
		Fees:        ledger.FlatFee{Amount: decimal.RequireFromString("10")},
		InitialCash: decimal.RequireFromString("10000"),
		Log:         zerolog.Nop(),
	})
	require.NoError(t, err)

	return New(Config{Port: 0, Log: zerolog.Nop(), Service: service})
}

func doJSON(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &stubQuotes{})
	rec := doJSON(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAccountLifecycle(t *testing.T) {
	srv := newTestServer(t, &stubQuotes{prices: map[string]string{"AAPL": "150"}})

	rec := doJSON(t, srv, http.MethodGet, "/api/account", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var acct struct {
		Cash        decimal.Decimal `json:"cash"`
		Initialized bool            `json:"initialized"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &acct))
	assert.True(t, acct.Cash.Equal(decimal.RequireFromString("10000")))
	assert.False(t, acct.Initialized)

	rec = doJSON(t, srv, http.MethodPost, "/api/account", `{"initialCash":"25000"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &acct))
	assert.True(t, acct.Cash.Equal(decimal.RequireFromString("25000")))
	assert.True(t, acct.Initialized)

	rec = doJSON(t, srv, http.MethodPost, "/api/account", `{"initialCash":"-1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// After a trade the opening balance is locked in.
	rec = doJSON(t, srv, http.MethodPost, "/api/trades", `{"side":"BUY","symbol":"AAPL","shares":"10"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = doJSON(t, srv, http.MethodPost, "/api/account", `{"initialCash":"50000"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPostTrade(t *testing.T) {
	srv := newTestServer(t, &stubQuotes{prices: map[string]string{"AAPL": "150"}})

	rec := doJSON(t, srv, http.MethodPost, "/api/trades", `{"side":"buy","symbol":"aapl","shares":"10"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var entry types.TransactionEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entry))
	assert.Equal(t, types.SideTypeBuy, entry.Side)
	assert.Equal(t, "AAPL", entry.Symbol)
	assert.True(t, entry.CashAfter.Equal(decimal.RequireFromString("8490")), "cash after = %s", entry.CashAfter)

	rec = doJSON(t, srv, http.MethodGet, "/api/trades", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var history []types.TransactionEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history, 1)
	assert.Equal(t, entry.ID, history[0].ID)
}

func TestPostTradeErrors(t *testing.T) {
	srv := newTestServer(t, &stubQuotes{prices: map[string]string{"AAPL": "150"}})

	tests := []struct {
		name string
		body string
		want int
	}{
		{"bad json", `{`, http.StatusBadRequest},
		{"unknown side", `{"side":"HOLD","symbol":"AAPL","shares":"1"}`, http.StatusBadRequest},
		{"zero shares", `{"side":"BUY","symbol":"AAPL","shares":"0"}`, http.StatusBadRequest},
		{"empty symbol", `{"side":"BUY","symbol":"","shares":"1"}`, http.StatusBadRequest},
		{"insufficient funds", `{"side":"BUY","symbol":"AAPL","shares":"1000"}`, http.StatusUnprocessableEntity},
		{"sell unowned", `{"side":"SELL","symbol":"AAPL","shares":"1"}`, http.StatusUnprocessableEntity},
		{"unknown quote", `{"side":"BUY","symbol":"NOPE","shares":"1"}`, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, srv, http.MethodPost, "/api/trades", tt.body)
			assert.Equal(t, tt.want, rec.Code, "body: %s", rec.Body.String())
		})
	}
}

func TestPortfolio(t *testing.T) {
	srv := newTestServer(t, &stubQuotes{prices: map[string]string{"AAPL": "150"}})

	rec := doJSON(t, srv, http.MethodPost, "/api/trades", `{"side":"BUY","symbol":"AAPL","shares":"10"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/portfolio", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var view struct {
		Cash      decimal.Decimal `json:"cash"`
		Positions []struct {
			Symbol       string           `json:"symbol"`
			Shares       decimal.Decimal  `json:"shares"`
			CurrentValue *decimal.Decimal `json:"currentValue"`
		} `json:"positions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.True(t, view.Cash.Equal(decimal.RequireFromString("8490")))
	require.Len(t, view.Positions, 1)
	assert.Equal(t, "AAPL", view.Positions[0].Symbol)
	require.NotNil(t, view.Positions[0].CurrentValue)
	assert.True(t, view.Positions[0].CurrentValue.Equal(decimal.RequireFromString("1500")))
}

func TestGetQuote(t *testing.T) {
	srv := newTestServer(t, &stubQuotes{prices: map[string]string{"TSLA": "250.5"}})

	rec := doJSON(t, srv, http.MethodGet, "/api/quotes/tsla", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var quote types.Quote
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &quote))
	assert.Equal(t, "TSLA", quote.Symbol)
	assert.True(t, quote.Price.Equal(decimal.RequireFromString("250.5")))

	rec = doJSON(t, srv, http.MethodGet, "/api/quotes/NOPE", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
