package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

type DB struct {
	*sql.DB
	logger *zerolog.Logger
	locks  *keyedMutex
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Writers are serialized by the keyed mutex; one connection keeps
	// sqlite from returning SQLITE_BUSY between concurrent transactions.
	sqlDB.SetMaxOpenConns(1)

	if err := createTables(sqlDB); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("database initialized")
	return &DB{DB: sqlDB, logger: logger, locks: newKeyedMutex()}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS tours (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            title TEXT NOT NULL,
            company_id INTEGER NOT NULL,
            capacity_limit INTEGER NOT NULL CHECK (capacity_limit >= 0),
            price_cents INTEGER NOT NULL CHECK (price_cents >= 0),
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS tour_counters (
            tour_id INTEGER PRIMARY KEY REFERENCES tours(id),
            reserved INTEGER NOT NULL DEFAULT 0 CHECK (reserved >= 0),
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS bookings (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            user_id INTEGER NOT NULL,
            tour_id INTEGER NOT NULL REFERENCES tours(id),
            status TEXT NOT NULL DEFAULT 'pending',
            idempotent_key TEXT NOT NULL UNIQUE,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS wallets (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            owner_id INTEGER NOT NULL,
            owner_kind TEXT NOT NULL,
            balance_cents INTEGER NOT NULL DEFAULT 0 CHECK (balance_cents >= 0),
            updated_at DATETIME NOT NULL,
            UNIQUE(owner_id, owner_kind)
        )`,
		`CREATE TABLE IF NOT EXISTS transactions (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            from_wallet_id INTEGER NOT NULL DEFAULT 0,
            to_wallet_id INTEGER NOT NULL DEFAULT 0,
            booking_id INTEGER NOT NULL DEFAULT 0,
            amount_cents INTEGER NOT NULL CHECK (amount_cents > 0),
            type TEXT NOT NULL,
            idempotent_key TEXT NOT NULL UNIQUE,
            created_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS qr_references (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            booking_id INTEGER NOT NULL UNIQUE REFERENCES bookings(id),
            content TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'activated',
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,

		`CREATE INDEX IF NOT EXISTS idx_bookings_user_tour ON bookings(user_id, tour_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_created_at ON bookings(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_booking_id ON transactions(booking_id)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_created_at ON transactions(created_at)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}
