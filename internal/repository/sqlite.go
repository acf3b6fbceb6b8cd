package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite" // pure Go SQLite driver

	"papertrader/types"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS account (
	id           INTEGER PRIMARY KEY CHECK (id = 1),
	initial_cash TEXT NOT NULL,
	created_at   TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS transactions (
	seq                INTEGER PRIMARY KEY AUTOINCREMENT,
	id                 TEXT NOT NULL UNIQUE,
	timestamp          TEXT NOT NULL,
	side               TEXT NOT NULL CHECK (side IN ('BUY','SELL')),
	symbol             TEXT NOT NULL,
	shares             TEXT NOT NULL,
	price_per_share    TEXT NOT NULL,
	fee                TEXT NOT NULL,
	net_amount         TEXT NOT NULL,
	cash_after         TEXT NOT NULL,
	shares_owned_after TEXT NOT NULL
);
`

const transactionColumns = `id, timestamp, side, symbol, shares, price_per_share, fee, net_amount, cash_after, shares_owned_after`

// SQLiteStore is the default local store. Amounts are stored as decimal
// strings, never floats, so replay stays bit-identical.
type SQLiteStore struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewSQLiteStore opens (or creates) the database at dbPath and initializes
// the schema. WAL mode keeps appends durable without blocking readers.
func NewSQLiteStore(dbPath string, log zerolog.Logger) (*SQLiteStore, error) {
	connStr := dbPath
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w: %w", err, ErrStorageUnavailable)
		}
		connStr = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dbPath)
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w: %w", err, ErrStorageUnavailable)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w: %w", err, ErrStorageUnavailable)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w: %w", err, ErrStorageUnavailable)
	}

	return &SQLiteStore{
		db:  db,
		log: log.With().Str("store", "sqlite").Str("path", dbPath).Logger(),
	}, nil
}

func (s *SQLiteStore) Load(ctx context.Context) (decimal.Decimal, []types.TransactionEntry, error) {
	initialCash := decimal.Zero
	haveAccount := true
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT initial_cash FROM account WHERE id = 1`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		haveAccount = false
	} else if err != nil {
		return decimal.Zero, nil, fmt.Errorf("load account: %w: %w", err, ErrStorageUnavailable)
	} else {
		initialCash, err = decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, nil, fmt.Errorf("account initial cash: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+transactionColumns+` FROM transactions ORDER BY seq`)
	if err != nil {
		return decimal.Zero, nil, fmt.Errorf("load transactions: %w: %w", err, ErrStorageUnavailable)
	}
	defer rows.Close()

	var entries []types.TransactionEntry
	for rows.Next() {
		e, err := scanTransaction(rows)
		if err != nil {
			return decimal.Zero, nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, nil, fmt.Errorf("iterate transactions: %w: %w", err, ErrStorageUnavailable)
	}

	if !haveAccount && len(entries) == 0 {
		return decimal.Zero, nil, ErrNoState
	}
	s.log.Debug().Int("entries", len(entries)).Msg("loaded ledger record")
	return initialCash, entries, nil
}

func (s *SQLiteStore) SetInitialCash(ctx context.Context, cash decimal.Decimal) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO account (id, initial_cash, created_at) VALUES (1, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		cash.String(), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("set initial cash: %w: %w", err, ErrStorageUnavailable)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set initial cash: %w: %w", err, ErrStorageUnavailable)
	}
	if n == 0 {
		return ErrAlreadyInitialized
	}
	return nil
}

func (s *SQLiteStore) AppendEntry(ctx context.Context, e types.TransactionEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (`+transactionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.Timestamp.UTC().Format(time.RFC3339Nano),
		string(e.Side),
		e.Symbol,
		e.Shares.String(),
		e.PricePerShare.String(),
		e.Fee.String(),
		e.NetAmount.String(),
		e.CashAfter.String(),
		e.SharesOwnedAfter.String(),
	)
	if err != nil {
		return fmt.Errorf("append transaction: %w: %w", err, ErrStorageUnavailable)
	}
	s.log.Debug().Str("id", e.ID).Str("symbol", e.Symbol).Str("side", string(e.Side)).Msg("transaction appended")
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanTransaction(rows *sql.Rows) (types.TransactionEntry, error) {
	var e types.TransactionEntry
	var ts, side, shares, price, fee, net, cashAfter, owned string
	if err := rows.Scan(&e.ID, &ts, &side, &e.Symbol, &shares, &price, &fee, &net, &cashAfter, &owned); err != nil {
		return types.TransactionEntry{}, fmt.Errorf("scan transaction: %w: %w", err, ErrStorageUnavailable)
	}
	parsed, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return types.TransactionEntry{}, fmt.Errorf("transaction timestamp: %w", err)
	}
	e.Timestamp = parsed
	e.Side = types.Side(side)
	for _, field := range []struct {
		name string
		dst  *decimal.Decimal
		raw  string
	}{
		{"shares", &e.Shares, shares},
		{"price_per_share", &e.PricePerShare, price},
		{"fee", &e.Fee, fee},
		{"net_amount", &e.NetAmount, net},
		{"cash_after", &e.CashAfter, cashAfter},
		{"shares_owned_after", &e.SharesOwnedAfter, owned},
	} {
		d, err := decimal.NewFromString(field.raw)
		if err != nil {
			return types.TransactionEntry{}, fmt.Errorf("transaction %s: %w", field.name, err)
		}
		*field.dst = d
	}
	return e, nil
}
