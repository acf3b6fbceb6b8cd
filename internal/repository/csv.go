package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"papertrader/types"
)

const (
	accountFile      = "account.csv"
	transactionsFile = "transactions.csv"
)

var transactionHeader = []string{
	"id",
	"timestamp", // RFC3339Nano
	"side",
	"symbol",
	"shares",
	"price_per_share",
	"fee",
	"net_amount",
	"cash_after",
	"shares_owned_after",
}

// CSVStore keeps the ledger record in a directory: account.csv holds the
// opening balance, transactions.csv grows append-only, one row per entry.
// Account scalars never ride along on transaction rows.
type CSVStore struct {
	dir string
	log zerolog.Logger
}

func NewCSVStore(dir string, log zerolog.Logger) (*CSVStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w: %w", err, ErrStorageUnavailable)
	}
	return &CSVStore{
		dir: dir,
		log: log.With().Str("store", "csv").Str("dir", dir).Logger(),
	}, nil
}

func (s *CSVStore) Load(_ context.Context) (decimal.Decimal, []types.TransactionEntry, error) {
	initialCash, haveAccount, err := s.readAccount()
	if err != nil {
		return decimal.Zero, nil, err
	}
	entries, haveEntries, err := s.readTransactions()
	if err != nil {
		return decimal.Zero, nil, err
	}
	if !haveAccount && !haveEntries {
		return decimal.Zero, nil, ErrNoState
	}
	s.log.Debug().Int("entries", len(entries)).Msg("loaded ledger record")
	return initialCash, entries, nil
}

func (s *CSVStore) SetInitialCash(_ context.Context, cash decimal.Decimal) error {
	path := filepath.Join(s.dir, accountFile)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return ErrAlreadyInitialized
		}
		return fmt.Errorf("create %s: %w: %w", accountFile, err, ErrStorageUnavailable)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"initial_cash", "created_at"}); err != nil {
		return fmt.Errorf("write account header: %w", err)
	}
	if err := w.Write([]string{cash.String(), time.Now().UTC().Format(time.RFC3339Nano)}); err != nil {
		return fmt.Errorf("write account row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush account csv: %w: %w", err, ErrStorageUnavailable)
	}
	return f.Sync()
}

// AppendEntry appends one row without rewriting prior rows. The header is
// written when the file is first created.
func (s *CSVStore) AppendEntry(_ context.Context, e types.TransactionEntry) error {
	path := filepath.Join(s.dir, transactionsFile)
	_, statErr := os.Stat(path)
	fresh := errors.Is(statErr, fs.ErrNotExist)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w: %w", transactionsFile, err, ErrStorageUnavailable)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if fresh {
		if err := w.Write(transactionHeader); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	record := []string{
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
	}
	if err := w.Write(record); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w: %w", err, ErrStorageUnavailable)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w: %w", transactionsFile, err, ErrStorageUnavailable)
	}
	return nil
}

func (s *CSVStore) Close() error {
	return nil
}

func (s *CSVStore) readAccount() (decimal.Decimal, bool, error) {
	f, err := os.Open(filepath.Join(s.dir, accountFile))
	if errors.Is(err, fs.ErrNotExist) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("open %s: %w: %w", accountFile, err, ErrStorageUnavailable)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("read %s: %w", accountFile, err)
	}
	if len(rows) < 2 || len(rows[1]) < 1 {
		return decimal.Zero, false, fmt.Errorf("%s: malformed account record", accountFile)
	}
	cash, err := decimal.NewFromString(rows[1][0])
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("%s: initial cash: %w", accountFile, err)
	}
	return cash, true, nil
}

func (s *CSVStore) readTransactions() ([]types.TransactionEntry, bool, error) {
	f, err := os.Open(filepath.Join(s.dir, transactionsFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("open %s: %w: %w", transactionsFile, err, ErrStorageUnavailable)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", transactionsFile, err)
	}
	if len(rows) == 0 {
		return nil, false, nil
	}

	entries := make([]types.TransactionEntry, 0, len(rows)-1)
	for i, row := range rows[1:] { // skip header
		e, err := parseTransactionRow(row)
		if err != nil {
			return nil, false, fmt.Errorf("%s row %d: %w", transactionsFile, i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, len(entries) > 0, nil
}

func parseTransactionRow(row []string) (types.TransactionEntry, error) {
	if len(row) != len(transactionHeader) {
		return types.TransactionEntry{}, fmt.Errorf("want %d columns, got %d", len(transactionHeader), len(row))
	}
	ts, err := time.Parse(time.RFC3339Nano, row[1])
	if err != nil {
		return types.TransactionEntry{}, fmt.Errorf("timestamp: %w", err)
	}
	e := types.TransactionEntry{
		ID:        row[0],
		Timestamp: ts,
		Side:      types.Side(row[2]),
		Symbol:    row[3],
	}
	for _, field := range []struct {
		name string
		dst  *decimal.Decimal
		raw  string
	}{
		{"shares", &e.Shares, row[4]},
		{"price_per_share", &e.PricePerShare, row[5]},
		{"fee", &e.Fee, row[6]},
		{"net_amount", &e.NetAmount, row[7]},
		{"cash_after", &e.CashAfter, row[8]},
		{"shares_owned_after", &e.SharesOwnedAfter, row[9]},
	} {
		d, err := decimal.NewFromString(field.raw)
		if err != nil {
			return types.TransactionEntry{}, fmt.Errorf("%s: %w", field.name, err)
		}
		*field.dst = d
	}
	return e, nil
}
