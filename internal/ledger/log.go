package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"papertrader/types"
)

var CorruptLogErr = errors.New("transaction log does not replay to a consistent state")

// Log is the append-only record of committed transactions. Entries are kept
// in insertion order, which under the single-writer model is execution order.
type Log struct {
	entries []types.TransactionEntry
}

func NewLog(entries ...types.TransactionEntry) *Log {
	return &Log{entries: entries}
}

func (g *Log) Append(e types.TransactionEntry) {
	g.entries = append(g.entries, e)
}

func (g *Log) Len() int {
	return len(g.entries)
}

// Entries returns a copy; the log itself is never edited, only appended to.
func (g *Log) Entries() []types.TransactionEntry {
	return append([]types.TransactionEntry(nil), g.entries...)
}

// Replay folds every entry in order into a fresh ledger and must reproduce
// the exact cash and positions the live ledger held after the same sequence.
//
// When the log is empty the supplied initial cash seeds the ledger. Otherwise
// the opening balance comes from the first entry (CashAfter + NetAmount) and
// initialCash is ignored; the log is the source of truth.
func Replay(entries []types.TransactionEntry, initialCash decimal.Decimal) (*Ledger, error) {
	if len(entries) == 0 {
		return New(initialCash), nil
	}

	opening := entries[0].CashAfter.Add(entries[0].NetAmount)
	if opening.IsNegative() {
		return nil, fmt.Errorf("opening cash %s is negative: %w", opening, CorruptLogErr)
	}

	l := New(opening)
	prev := entries[0].Timestamp
	for i, e := range entries {
		if e.Timestamp.Before(prev) {
			return nil, fmt.Errorf("entry %d (%s) out of chronological order: %w", i, e.ID, CorruptLogErr)
		}
		prev = e.Timestamp
		if err := l.Apply(e); err != nil {
			return nil, fmt.Errorf("replay entry %d: %w", i, err)
		}
	}
	return l, nil
}
