// Package repository persists the transaction log and account scalars,
// isolating the ledger from the storage format. Three stores share one
// interface: csv (the directory format), sqlite (default local store) and
// postgres (shared deployments).
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"papertrader/types"
)

// Global error declarations.
var (
	// ErrNoState marks a genuinely fresh start: no account row and no
	// transactions. It is never returned for unreadable or corrupt storage.
	ErrNoState = errors.New("no stored ledger state")
	// ErrStorageUnavailable wraps storage that cannot be read or written.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrAlreadyInitialized rejects setting the opening balance twice.
	ErrAlreadyInitialized = errors.New("account already initialized")
)

// Store is the durable home of a single account's ledger record.
//
// AppendEntry must be atomic per entry and must preserve append order;
// callers persist an entry before applying it in memory, so a failed append
// leaves both sides unchanged.
type Store interface {
	// Load returns the persisted opening balance and the full transaction
	// log in append order. Returns ErrNoState on a fresh start.
	Load(ctx context.Context) (initialCash decimal.Decimal, entries []types.TransactionEntry, err error)
	// SetInitialCash records the opening balance for a fresh account.
	SetInitialCash(ctx context.Context, cash decimal.Decimal) error
	AppendEntry(ctx context.Context, e types.TransactionEntry) error
	Close() error
}

// Open selects a store from a DSN: postgres URLs go to the pgx store, paths
// ending in .db or .sqlite to the sqlite store, anything else is treated as
// a directory for the csv store.
func Open(ctx context.Context, dsn string, log zerolog.Logger) (Store, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://"):
		return NewPostgresStore(ctx, dsn, log)
	case strings.HasSuffix(dsn, ".db") || strings.HasSuffix(dsn, ".sqlite"):
		return NewSQLiteStore(dsn, log)
	case dsn == "":
		return nil, fmt.Errorf("empty store DSN")
	default:
		return NewCSVStore(dsn, log)
	}
}
