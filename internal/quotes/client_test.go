package quotes

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func TestQuoteSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("symbol"); got != "AAPL" {
			t.Errorf("symbol query = %q, want AAPL", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"symbol": "AAPL",
			"name": "Apple Inc.",
			"price": 150.25,
			"open": 148.0,
			"high": 151.1,
			"low": 147.6,
			"volume": 51234567
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, zerolog.Nop())
	q, err := c.Quote(context.Background(), " aapl ")
	if err != nil {
		t.Fatalf("Quote() error = %v", err)
	}
	if q.Symbol != "AAPL" || q.Name != "Apple Inc." {
		t.Errorf("quote identity = %s/%s", q.Symbol, q.Name)
	}
	if !q.Price.Equal(decimal.RequireFromString("150.25")) {
		t.Errorf("price = %v, want 150.25", q.Price)
	}
	if q.Volume != 51234567 {
		t.Errorf("volume = %d", q.Volume)
	}
	if q.FetchedAt.IsZero() {
		t.Errorf("FetchedAt not stamped")
	}
}

func TestQuoteNameFallsBackToSymbol(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symbol": "MSFT", "price": 410.55}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, zerolog.Nop())
	q, err := c.Quote(context.Background(), "MSFT")
	if err != nil {
		t.Fatalf("Quote() error = %v", err)
	}
	if q.Name != "MSFT" {
		t.Errorf("name = %q, want symbol fallback", q.Name)
	}
}

func TestQuoteUnavailable(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"not found", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "unknown symbol", http.StatusNotFound)
		}},
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{"garbage body", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<html>not json</html>"))
		}},
		{"zero price", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"symbol": "AAPL", "price": 0}`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c := NewClient(srv.URL, zerolog.Nop())
			_, err := c.Quote(context.Background(), "AAPL")
			if !errors.Is(err, ErrUnavailable) {
				t.Errorf("Quote() error = %v, want ErrUnavailable", err)
			}
		})
	}
}

func TestQuoteConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // shut down before use

	c := NewClient(srv.URL, zerolog.Nop())
	_, err := c.Quote(context.Background(), "AAPL")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Quote() error = %v, want ErrUnavailable", err)
	}
}

func TestQuoteEmptySymbol(t *testing.T) {
	c := NewClient("http://localhost:0", zerolog.Nop())
	_, err := c.Quote(context.Background(), "   ")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Quote() error = %v, want ErrUnavailable", err)
	}
}
