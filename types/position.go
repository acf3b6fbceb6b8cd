package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is a per-symbol holding. A position with zero shares never
// appears in a ledger view; it is removed instead.
type Position struct {
	Symbol            string          `json:"symbol"`
	Shares            decimal.Decimal `json:"shares"`
	LastPurchasePrice decimal.Decimal `json:"lastPurchasePrice"`
	CumulativeFee     decimal.Decimal `json:"cumulativeFee"`
	LastTransactionAt time.Time       `json:"lastTransactionAt"`
}

type LedgerView struct {
	Cash      decimal.Decimal     `json:"cash"`
	Positions map[string]Position `json:"positions"`
	Time      time.Time           `json:"time"`
}
