package ledger

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"papertrader/types"
)

var UnknownSideErr = errors.New("unknown transaction side")
var InsufficientFundsErr = errors.New("insufficient funds for buy")
var UnknownSymbolErr = errors.New("no open position for symbol")
var InvalidSymbolErr = errors.New("symbol must not be empty")
var InvalidQuantityErr = errors.New("share quantity must be positive")
var InvalidPriceErr = errors.New("price per share must be positive")

// InsufficientSharesError rejects a sell that asks for more shares than the
// position holds. Requested and Available are kept for user display.
type InsufficientSharesError struct {
	Symbol    string
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientSharesError) Error() string {
	return fmt.Sprintf("insufficient shares of %s: requested %s, available %s",
		e.Symbol, e.Requested, e.Available)
}

type position struct {
	shares            decimal.Decimal
	lastPurchasePrice decimal.Decimal
	cumulativeFee     decimal.Decimal
	lastTransactionAt time.Time
}

// Ledger tracks a cash balance and per-symbol holdings. Buy and Sell are the
// only mutators; each either fully applies or leaves the ledger untouched.
// Invariants after every committed transaction: cash >= 0, and every position
// in the map has shares > 0 (a sell down to zero removes the symbol).
type Ledger struct {
	cash      decimal.Decimal
	positions map[string]*position
}

func New(initialCash decimal.Decimal) *Ledger {
	return &Ledger{
		cash:      initialCash,
		positions: make(map[string]*position),
	}
}

func (l *Ledger) Cash() decimal.Decimal {
	return l.cash
}

// Snapshot returns a copy of the current state.
func (l *Ledger) Snapshot(now time.Time) types.LedgerView {
	view := types.LedgerView{
		Cash:      l.cash,
		Positions: make(map[string]types.Position, len(l.positions)),
		Time:      now,
	}
	for sym, pos := range l.positions {
		view.Positions[sym] = types.Position{
			Symbol:            sym,
			Shares:            pos.shares,
			LastPurchasePrice: pos.lastPurchasePrice,
			CumulativeFee:     pos.cumulativeFee,
			LastTransactionAt: pos.lastTransactionAt,
		}
	}
	return view
}

// StageBuy validates a buy and builds its transaction entry without mutating
// the ledger. Callers that need durability persist the entry first and Apply
// it afterwards, so a failed write never leaves the two out of step.
func (l *Ledger) StageBuy(symbol string, shares, price decimal.Decimal, fees FeeModel, now time.Time) (types.TransactionEntry, error) {
	symbol, err := canonicalSymbol(symbol)
	if err != nil {
		return types.TransactionEntry{}, err
	}
	if err := validateTrade(shares, price); err != nil {
		return types.TransactionEntry{}, err
	}

	gross := shares.Mul(price)
	fee := fees.Compute(gross)
	total := gross.Add(fee)
	if total.GreaterThan(l.cash) {
		return types.TransactionEntry{}, fmt.Errorf("%w: required %s, available %s",
			InsufficientFundsErr, total, l.cash)
	}

	owned := decimal.Zero
	if pos := l.positions[symbol]; pos != nil {
		owned = pos.shares
	}

	return types.TransactionEntry{
		ID:               uuid.NewString(),
		Timestamp:        now,
		Side:             types.SideTypeBuy,
		Symbol:           symbol,
		Shares:           shares,
		PricePerShare:    price,
		Fee:              fee,
		NetAmount:        total,
		CashAfter:        l.cash.Sub(total),
		SharesOwnedAfter: owned.Add(shares),
	}, nil
}

// StageSell validates a sell and builds its entry without mutating the
// ledger. The fee never blocks a sell, it only reduces the proceeds.
func (l *Ledger) StageSell(symbol string, shares, price decimal.Decimal, fees FeeModel, now time.Time) (types.TransactionEntry, error) {
	symbol, err := canonicalSymbol(symbol)
	if err != nil {
		return types.TransactionEntry{}, err
	}
	if err := validateTrade(shares, price); err != nil {
		return types.TransactionEntry{}, err
	}

	pos := l.positions[symbol]
	if pos == nil {
		return types.TransactionEntry{}, fmt.Errorf("symbol %s %w", symbol, UnknownSymbolErr)
	}
	if shares.GreaterThan(pos.shares) {
		return types.TransactionEntry{}, &InsufficientSharesError{
			Symbol:    symbol,
			Requested: shares,
			Available: pos.shares,
		}
	}

	gross := shares.Mul(price)
	fee := fees.Compute(gross)
	net := gross.Sub(fee)
	// A fee above the proceeds is paid from cash; it still cannot take the
	// balance below zero.
	if l.cash.Add(net).IsNegative() {
		return types.TransactionEntry{}, fmt.Errorf("%w: fee %s exceeds proceeds %s plus available cash",
			InsufficientFundsErr, fee, gross)
	}

	return types.TransactionEntry{
		ID:               uuid.NewString(),
		Timestamp:        now,
		Side:             types.SideTypeSell,
		Symbol:           symbol,
		Shares:           shares,
		PricePerShare:    price,
		Fee:              fee,
		NetAmount:        net.Neg(),
		CashAfter:        l.cash.Add(net),
		SharesOwnedAfter: pos.shares.Sub(shares),
	}, nil
}

// Apply folds one staged entry into the state. It cross-checks the entry's
// CashAfter and SharesOwnedAfter against the fold, so replaying a tampered or
// truncated log fails instead of silently producing a different ledger.
func (l *Ledger) Apply(e types.TransactionEntry) error {
	cashAfter := l.cash.Sub(e.NetAmount)
	if !cashAfter.Equal(e.CashAfter) {
		return fmt.Errorf("entry %s: cash after fold %s, entry says %s: %w",
			e.ID, cashAfter, e.CashAfter, CorruptLogErr)
	}
	if cashAfter.IsNegative() {
		return fmt.Errorf("entry %s: cash would go negative (%s): %w", e.ID, cashAfter, CorruptLogErr)
	}

	owned := decimal.Zero
	if pos := l.positions[e.Symbol]; pos != nil {
		owned = pos.shares
	}
	var sharesAfter decimal.Decimal
	switch e.Side {
	case types.SideTypeBuy:
		sharesAfter = owned.Add(e.Shares)
	case types.SideTypeSell:
		sharesAfter = owned.Sub(e.Shares)
	default:
		return fmt.Errorf("entry %s: side %q: %w", e.ID, e.Side, UnknownSideErr)
	}
	if !sharesAfter.Equal(e.SharesOwnedAfter) {
		return fmt.Errorf("entry %s: %s shares after fold %s, entry says %s: %w",
			e.ID, e.Symbol, sharesAfter, e.SharesOwnedAfter, CorruptLogErr)
	}
	if sharesAfter.IsNegative() {
		return fmt.Errorf("entry %s: %s shares would go negative (%s): %w",
			e.ID, e.Symbol, sharesAfter, CorruptLogErr)
	}

	// All checks passed, commit.
	l.cash = cashAfter
	if sharesAfter.IsZero() {
		delete(l.positions, e.Symbol)
		return nil
	}
	pos := l.positions[e.Symbol]
	if pos == nil {
		pos = &position{}
		l.positions[e.Symbol] = pos
	}
	pos.shares = sharesAfter
	if e.Side == types.SideTypeBuy {
		pos.lastPurchasePrice = e.PricePerShare
	}
	pos.cumulativeFee = pos.cumulativeFee.Add(e.Fee)
	pos.lastTransactionAt = e.Timestamp
	return nil
}

// Buy executes a buy against the in-memory state and returns its entry.
func (l *Ledger) Buy(symbol string, shares, price decimal.Decimal, fees FeeModel, now time.Time) (types.TransactionEntry, error) {
	entry, err := l.StageBuy(symbol, shares, price, fees, now)
	if err != nil {
		return types.TransactionEntry{}, err
	}
	if err := l.Apply(entry); err != nil {
		return types.TransactionEntry{}, err
	}
	return entry, nil
}

// Sell executes a sell against the in-memory state and returns its entry.
func (l *Ledger) Sell(symbol string, shares, price decimal.Decimal, fees FeeModel, now time.Time) (types.TransactionEntry, error) {
	entry, err := l.StageSell(symbol, shares, price, fees, now)
	if err != nil {
		return types.TransactionEntry{}, err
	}
	if err := l.Apply(entry); err != nil {
		return types.TransactionEntry{}, err
	}
	return entry, nil
}

func canonicalSymbol(symbol string) (string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return "", InvalidSymbolErr
	}
	return symbol, nil
}

func validateTrade(shares, price decimal.Decimal) error {
	if !shares.IsPositive() {
		return InvalidQuantityErr
	}
	if !price.IsPositive() {
		return InvalidPriceErr
	}
	return nil
}
