// Package quotes fetches current market data over HTTP. A failed or empty
// lookup surfaces as ErrUnavailable, a recoverable no-data condition; it
// never corrupts or blocks the ledger itself.
package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"papertrader/types"
)

var ErrUnavailable = errors.New("quote unavailable")

// Client looks up quotes from a JSON quote API.
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     log.With().Str("client", "quotes").Logger(),
	}
}

type quoteResponse struct {
	Symbol string          `json:"symbol"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Volume int64           `json:"volume"`
}

// Quote fetches the current quote for symbol. FetchedAt is stamped with the
// local receive time so callers can enforce a staleness bound.
func (c *Client) Quote(ctx context.Context, symbol string) (types.Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return types.Quote{}, fmt.Errorf("empty symbol: %w", ErrUnavailable)
	}

	reqURL := fmt.Sprintf("%s/v1/quote?symbol=%s", c.baseURL, url.QueryEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return types.Quote{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("quote request failed")
		return types.Quote{}, fmt.Errorf("fetch %s: %w: %w", symbol, err, ErrUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Warn().Int("status", resp.StatusCode).Str("symbol", symbol).Msg("quote request rejected")
		return types.Quote{}, fmt.Errorf("fetch %s: status %d: %w", symbol, resp.StatusCode, ErrUnavailable)
	}

	var body quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return types.Quote{}, fmt.Errorf("parse %s response: %w: %w", symbol, err, ErrUnavailable)
	}
	if !body.Price.IsPositive() {
		return types.Quote{}, fmt.Errorf("no data for %s: %w", symbol, ErrUnavailable)
	}

	name := body.Name
	if name == "" {
		name = symbol
	}
	return types.Quote{
		Symbol:    symbol,
		Name:      name,
		Price:     body.Price,
		Open:      body.Open,
		High:      body.High,
		Low:       body.Low,
		Volume:    body.Volume,
		FetchedAt: time.Now(),
	}, nil
}
