// Package store implements lifecycle persistence (SPEC_FULL.md §4.13,
// supplemented — not named by spec.md, added so dynamic-mode restarts and
// process restarts survive). Grounded on the teacher's
// internal/engine/simple/store_sqlite.go: one JSON blob per session,
// wrapped in a SHA-256 checksum and written inside a serializable
// transaction. Backtest mode never opens a Store (spec.md Lifecycle:
// "created once per (re)start" — there is nothing to resume).
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "github.com/mattn/go-sqlite3"

	"gridbot/internal/core"
)

// LevelSnapshot is the persisted shape of one grid.Level.
type LevelSnapshot struct {
	Price           decimal.Decimal
	Quantity        decimal.Decimal
	State           core.GridCycleState
	PairedBuyIndex  *int
	PairedSellIndex *int
}

// SessionSnapshot is everything needed to resume a paper/live session
// after a process restart or a dynamic-mode grid reset (SPEC_FULL.md §4.13):
// grid level state, open orders, ledger balances, cumulative profit and
// total fees.
type SessionSnapshot struct {
	Symbol           string
	Fiat             decimal.Decimal
	Crypto           decimal.Decimal
	ReservedFiat     decimal.Decimal
	ReservedCrypto   decimal.Decimal
	TotalFees        decimal.Decimal
	CumulativeProfit decimal.Decimal
	Levels           []LevelSnapshot
	OpenOrders       []*core.Order
	UpdatedAt        time.Time
}

// Store persists and resumes one SessionSnapshot per symbol.
type Store interface {
	SaveSession(ctx context.Context, snap SessionSnapshot) error
	LoadSession(ctx context.Context, symbol string) (*SessionSnapshot, bool, error)
	Close() error
}

// SQLiteStore is the one Store implementation (mattn/go-sqlite3), matching
// the teacher's checksummed-blob pattern but keyed by symbol instead of a
// single fixed row, since one process can in principle resume more than
// one trading pair's session across restarts.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if absent) a SQLite database at dbPath and
// ensures its schema exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("store: ping database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("store: enable WAL mode: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS session_state (
		symbol TEXT PRIMARY KEY,
		data TEXT NOT NULL,
		checksum BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("store: create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// SaveSession overwrites the persisted state for snap.Symbol inside a
// serializable transaction (teacher's SaveState pattern).
func (s *SQLiteStore) SaveSession(ctx context.Context, snap SessionSnapshot) error {
	if snap.UpdatedAt.IsZero() {
		snap.UpdatedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("store: marshal session: %w", err)
	}

	var roundTrip SessionSnapshot
	if err := json.Unmarshal(data, &roundTrip); err != nil {
		return fmt.Errorf("store: session validation failed: %w", err)
	}

	checksum := sha256.Sum256(data)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO session_state (symbol, data, checksum, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(symbol) DO UPDATE SET data = excluded.data, checksum = excluded.checksum, updated_at = excluded.updated_at`,
		snap.Symbol, string(data), checksum[:], snap.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("store: write session: %w", err)
	}

	return tx.Commit()
}

// LoadSession returns the last persisted snapshot for symbol, or
// (nil, false, nil) if none exists.
func (s *SQLiteStore) LoadSession(ctx context.Context, symbol string) (*SessionSnapshot, bool, error) {
	var data string
	var checksum []byte
	err := s.db.QueryRowContext(ctx, `SELECT data, checksum FROM session_state WHERE symbol = ?`, symbol).
		Scan(&data, &checksum)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: read session: %w", err)
	}

	computed := sha256.Sum256([]byte(data))
	if len(checksum) != len(computed) || !bytesEqual(checksum, computed[:]) {
		return nil, false, fmt.Errorf("store: checksum verification failed for %s: data corruption detected", symbol)
	}

	var snap SessionSnapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, false, fmt.Errorf("store: unmarshal session: %w", err)
	}
	return &snap, true, nil
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
