package types

import (
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideTypeBuy  Side = "BUY"
	SideTypeSell Side = "SELL"
)

// TransactionEntry is one committed trade. Entries are immutable once
// appended to the transaction log.
//
// NetAmount is signed from the cash account's point of view: positive means
// cash was debited (buy total cost, fee included), negative means cash was
// credited (sell net proceeds, fee already subtracted). With that convention
// the opening balance is recoverable from the first entry:
// openingCash = CashAfter + NetAmount.
type TransactionEntry struct {
	ID               string          `json:"id"`
	Timestamp        time.Time       `json:"timestamp"`
	Side             Side            `json:"side"`
	Symbol           string          `json:"symbol"`
	Shares           decimal.Decimal `json:"shares"`
	PricePerShare    decimal.Decimal `json:"pricePerShare"`
	Fee              decimal.Decimal `json:"fee"`
	NetAmount        decimal.Decimal `json:"netAmount"`
	CashAfter        decimal.Decimal `json:"cashAfter"`
	SharesOwnedAfter decimal.Decimal `json:"sharesOwnedAfter"`
}
