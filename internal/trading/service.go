// Package trading runs one paper-trading session: it captures a quote,
// stages the trade against the ledger, appends the entry to durable storage
// and only then applies it in memory. A crash between append and apply loses
// process state only, which the next session rebuilds by replay.
package trading

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"papertrader/internal/ledger"
	"papertrader/internal/repository"
	"papertrader/types"
)

var StaleQuoteErr = errors.New("quote is too old to trade on")
var AlreadyTradedErr = errors.New("initial cash can only be set before the first transaction")
var InvalidInitialCashErr = errors.New("initial cash must be positive")

// QuoteProvider returns a current quote for a symbol. The market-data source
// lives behind this interface so ledger correctness never depends on it.
type QuoteProvider interface {
	Quote(ctx context.Context, symbol string) (types.Quote, error)
}

type Config struct {
	Store       repository.Store
	Quotes      QuoteProvider
	Fees        ledger.FeeModel
	InitialCash decimal.Decimal // opening balance used until SetInitialCash or the first stored state
	QuoteMaxAge time.Duration   // 0 disables the staleness bound
	Now         func() time.Time
	Log         zerolog.Logger
}

// Service owns the session's ledger. Single-writer: one service instance per
// stored ledger record.
type Service struct {
	store       repository.Store
	quotes      QuoteProvider
	fees        ledger.FeeModel
	ledger      *ledger.Ledger
	journal     *ledger.Log
	initialized bool
	quoteMaxAge time.Duration
	now         func() time.Time
	log         zerolog.Logger
}

// NewService loads the stored record and reconstructs the ledger by replay.
// A fresh store starts the session with cfg.InitialCash, still adjustable
// until the first transaction.
func NewService(ctx context.Context, cfg Config) (*Service, error) {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	s := &Service{
		store:       cfg.Store,
		quotes:      cfg.Quotes,
		fees:        cfg.Fees,
		quoteMaxAge: cfg.QuoteMaxAge,
		now:         now,
		log:         cfg.Log.With().Str("service", "trading").Logger(),
	}

	initialCash, entries, err := cfg.Store.Load(ctx)
	switch {
	case errors.Is(err, repository.ErrNoState):
		s.ledger = ledger.New(cfg.InitialCash)
		s.journal = ledger.NewLog()
	case err != nil:
		return nil, fmt.Errorf("load ledger record: %w", err)
	default:
		led, err := ledger.Replay(entries, initialCash)
		if err != nil {
			return nil, fmt.Errorf("replay ledger record: %w", err)
		}
		if len(entries) > 0 {
			opening := entries[0].CashAfter.Add(entries[0].NetAmount)
			if !initialCash.IsZero() && !opening.Equal(initialCash) {
				// The log is derivable from the append-only record, so it
				// wins over the stored scalar.
				s.log.Warn().
					Str("stored", initialCash.String()).
					Str("replayed", opening.String()).
					Msg("stored opening balance disagrees with replay; using replay")
			}
		}
		s.ledger = led
		s.journal = ledger.NewLog(entries...)
		s.initialized = true
		s.log.Info().Int("entries", len(entries)).Str("cash", led.Cash().String()).Msg("ledger reconstructed")
	}
	return s, nil
}

// SetInitialCash records the opening balance. Permitted only while no
// transaction exists.
func (s *Service) SetInitialCash(ctx context.Context, cash decimal.Decimal) error {
	if !cash.IsPositive() {
		return InvalidInitialCashErr
	}
	if s.journal.Len() > 0 {
		return AlreadyTradedErr
	}
	if err := s.store.SetInitialCash(ctx, cash); err != nil {
		return err
	}
	s.ledger = ledger.New(cash)
	s.initialized = true
	s.log.Info().Str("cash", cash.String()).Msg("initial cash set")
	return nil
}

// Buy fetches a quote for symbol and buys shares at its price.
func (s *Service) Buy(ctx context.Context, symbol string, shares decimal.Decimal) (types.TransactionEntry, error) {
	return s.trade(ctx, types.SideTypeBuy, symbol, shares)
}

// Sell fetches a quote for symbol and sells shares at its price.
func (s *Service) Sell(ctx context.Context, symbol string, shares decimal.Decimal) (types.TransactionEntry, error) {
	return s.trade(ctx, types.SideTypeSell, symbol, shares)
}

func (s *Service) trade(ctx context.Context, side types.Side, symbol string, shares decimal.Decimal) (types.TransactionEntry, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return types.TransactionEntry{}, ledger.InvalidSymbolErr
	}

	quote, err := s.quotes.Quote(ctx, symbol)
	if err != nil {
		return types.TransactionEntry{}, err
	}
	if err := s.checkQuoteAge(quote); err != nil {
		return types.TransactionEntry{}, err
	}

	var entry types.TransactionEntry
	switch side {
	case types.SideTypeBuy:
		entry, err = s.ledger.StageBuy(symbol, shares, quote.Price, s.fees, s.now())
	case types.SideTypeSell:
		entry, err = s.ledger.StageSell(symbol, shares, quote.Price, s.fees, s.now())
	default:
		err = ledger.UnknownSideErr
	}
	if err != nil {
		return types.TransactionEntry{}, err
	}

	// Durable append first; the in-memory apply cannot fail on an entry the
	// ledger itself staged.
	if err := s.store.AppendEntry(ctx, entry); err != nil {
		return types.TransactionEntry{}, fmt.Errorf("persist transaction: %w", err)
	}
	if err := s.ledger.Apply(entry); err != nil {
		return types.TransactionEntry{}, err
	}
	s.journal.Append(entry)
	s.initialized = true

	s.log.Info().
		Str("side", string(entry.Side)).
		Str("symbol", entry.Symbol).
		Str("shares", entry.Shares.String()).
		Str("price", entry.PricePerShare.String()).
		Str("fee", entry.Fee.String()).
		Str("cash_after", entry.CashAfter.String()).
		Msg("transaction committed")
	return entry, nil
}

func (s *Service) checkQuoteAge(q types.Quote) error {
	if s.quoteMaxAge <= 0 || q.FetchedAt.IsZero() {
		return nil
	}
	if age := s.now().Sub(q.FetchedAt); age > s.quoteMaxAge {
		return fmt.Errorf("%s quote is %s old (max %s): %w", q.Symbol, age, s.quoteMaxAge, StaleQuoteErr)
	}
	return nil
}

// Quote passes a lookup through to the provider.
func (s *Service) Quote(ctx context.Context, symbol string) (types.Quote, error) {
	return s.quotes.Quote(ctx, symbol)
}

// History returns all committed transactions in execution order.
func (s *Service) History() []types.TransactionEntry {
	return s.journal.Entries()
}

func (s *Service) Cash() decimal.Decimal {
	return s.ledger.Cash()
}

// Initialized reports whether the opening balance is locked in, either
// explicitly or by the first transaction.
func (s *Service) Initialized() bool {
	return s.initialized
}

// PositionView is a holding plus its best-effort market valuation. The
// pointers stay nil when the quote provider has no data; a valuation failure
// never blocks viewing the portfolio.
type PositionView struct {
	types.Position
	CurrentPrice *decimal.Decimal `json:"currentPrice,omitempty"`
	CurrentValue *decimal.Decimal `json:"currentValue,omitempty"`
}

type PortfolioView struct {
	Cash        decimal.Decimal `json:"cash"`
	Positions   []PositionView  `json:"positions"`
	Initialized bool            `json:"initialized"`
	Time        time.Time       `json:"time"`
}

// Portfolio returns cash and holdings, valued at current quotes where the
// provider can serve them.
func (s *Service) Portfolio(ctx context.Context) PortfolioView {
	snap := s.ledger.Snapshot(s.now())
	view := PortfolioView{
		Cash:        snap.Cash,
		Positions:   make([]PositionView, 0, len(snap.Positions)),
		Initialized: s.initialized,
		Time:        snap.Time,
	}
	for _, pos := range snap.Positions {
		pv := PositionView{Position: pos}
		if quote, err := s.quotes.Quote(ctx, pos.Symbol); err == nil {
			price := quote.Price
			value := pos.Shares.Mul(price)
			pv.CurrentPrice = &price
			pv.CurrentValue = &value
		}
		view.Positions = append(view.Positions, pv)
	}
	sort.Slice(view.Positions, func(i, j int) bool {
		return view.Positions[i].Symbol < view.Positions[j].Symbol
	})
	return view
}
