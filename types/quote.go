package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a point-in-time market snapshot for one symbol. FetchedAt is the
// local time the quote was retrieved, used for the optional staleness bound.
type Quote struct {
	Symbol    string          `json:"symbol"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Volume    int64           `json:"volume"`
	FetchedAt time.Time       `json:"fetchedAt"`
}
