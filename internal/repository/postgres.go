package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"papertrader/types"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS account (
	id           INT PRIMARY KEY CHECK (id = 1),
	initial_cash NUMERIC NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS transactions (
	seq                BIGSERIAL PRIMARY KEY,
	id                 TEXT NOT NULL UNIQUE,
	ts                 TIMESTAMPTZ NOT NULL,
	side               TEXT NOT NULL CHECK (side IN ('BUY','SELL')),
	symbol             TEXT NOT NULL,
	shares             NUMERIC NOT NULL,
	price_per_share    NUMERIC NOT NULL,
	fee                NUMERIC NOT NULL,
	net_amount         NUMERIC NOT NULL,
	cash_after         NUMERIC NOT NULL,
	shares_owned_after NUMERIC NOT NULL
);
`

const pgTransactionColumns = `id, ts, side, symbol, shares, price_per_share, fee, net_amount, cash_after, shares_owned_after`

type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps the ledger record in Postgres for shared deployments.
// NUMERIC columns round-trip through shopspring decimals without float
// conversion.
type PostgresStore struct {
	q    pgQuerier
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewPostgresStore connects, registers the decimal codec and ensures the
// schema exists.
func NewPostgresStore(ctx context.Context, dbURL string, log zerolog.Logger) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// Register shopspring decimal
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect: %w: %w", err, ErrStorageUnavailable)
	}
	// Ensure the connection is established.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w: %w", err, ErrStorageUnavailable)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("initialize schema: %w: %w", err, ErrStorageUnavailable)
	}

	return &PostgresStore{
		q:    pool,
		pool: pool,
		log:  log.With().Str("store", "postgres").Logger(),
	}, nil
}

func (s *PostgresStore) Load(ctx context.Context) (decimal.Decimal, []types.TransactionEntry, error) {
	initialCash := decimal.Zero
	haveAccount := true
	err := s.q.QueryRow(ctx, `SELECT initial_cash FROM account WHERE id = 1`).Scan(&initialCash)
	if errors.Is(err, pgx.ErrNoRows) {
		haveAccount = false
	} else if err != nil {
		return decimal.Zero, nil, fmt.Errorf("load account: %w: %w", err, ErrStorageUnavailable)
	}

	rows, err := s.q.Query(ctx, `SELECT `+pgTransactionColumns+` FROM transactions ORDER BY seq`)
	if err != nil {
		return decimal.Zero, nil, fmt.Errorf("load transactions: %w: %w", err, ErrStorageUnavailable)
	}
	defer rows.Close()

	var entries []types.TransactionEntry
	for rows.Next() {
		var e types.TransactionEntry
		var side string
		if err := rows.Scan(&e.ID, &e.Timestamp, &side, &e.Symbol, &e.Shares,
			&e.PricePerShare, &e.Fee, &e.NetAmount, &e.CashAfter, &e.SharesOwnedAfter); err != nil {
			return decimal.Zero, nil, fmt.Errorf("scan transaction: %w: %w", err, ErrStorageUnavailable)
		}
		e.Side = types.Side(side)
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

func (s *PostgresStore) SetInitialCash(ctx context.Context, cash decimal.Decimal) error {
	tag, err := s.q.Exec(ctx,
		`INSERT INTO account (id, initial_cash, created_at) VALUES (1, $1, $2)
		 ON CONFLICT (id) DO NOTHING`,
		cash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set initial cash: %w: %w", err, ErrStorageUnavailable)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyInitialized
	}
	return nil
}

func (s *PostgresStore) AppendEntry(ctx context.Context, e types.TransactionEntry) error {
	_, err := s.q.Exec(ctx,
		`INSERT INTO transactions (`+pgTransactionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.Timestamp.UTC(), string(e.Side), e.Symbol, e.Shares,
		e.PricePerShare, e.Fee, e.NetAmount, e.CashAfter, e.SharesOwnedAfter)
	if err != nil {
		return fmt.Errorf("append transaction: %w: %w", err, ErrStorageUnavailable)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
