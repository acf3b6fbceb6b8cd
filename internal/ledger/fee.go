package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// FeeModel computes the transaction fee for a gross trade amount. The fee is
// part of the cost a buy must afford and is subtracted from sell proceeds.
type FeeModel interface {
	Compute(gross decimal.Decimal) decimal.Decimal
}

// FlatFee charges a fixed amount regardless of trade size.
type FlatFee struct {
	Amount decimal.Decimal
}

func (f FlatFee) Compute(decimal.Decimal) decimal.Decimal {
	return f.Amount
}

// ProportionalFee charges a fixed rate of the gross amount, e.g. 0.002 for 0.2%.
type ProportionalFee struct {
	Rate decimal.Decimal
}

func (f ProportionalFee) Compute(gross decimal.Decimal) decimal.Decimal {
	return gross.Mul(f.Rate)
}

// ParseFeeModel parses a fee model configuration string of the form
// "flat:10" or "proportional:0.002".
func ParseFeeModel(s string) (FeeModel, error) {
	kind, value, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return nil, fmt.Errorf("fee model %q: want kind:value", s)
	}
	v, err := decimal.NewFromString(value)
	if err != nil {
		return nil, fmt.Errorf("fee model %q: %w", s, err)
	}
	if v.IsNegative() {
		return nil, fmt.Errorf("fee model %q: value must not be negative", s)
	}
	switch kind {
	case "flat":
		return FlatFee{Amount: v}, nil
	case "proportional":
		return ProportionalFee{Rate: v}, nil
	default:
		return nil, fmt.Errorf("fee model %q: unknown kind %q", s, kind)
	}
}
