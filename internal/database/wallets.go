package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gout/internal/models"
)

// EnsureWallet creates the wallet with zero balance if the owner does
// not have one yet and returns the current row.
func (db *DB) EnsureWallet(ctx context.Context, ownerID int64, ownerKind string) (*models.Wallet, error) {
	if ownerKind != models.OwnerUser && ownerKind != models.OwnerCompany {
		return nil, fmt.Errorf("%w: unknown owner kind %q", ErrValidation, ownerKind)
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO wallets (owner_id, owner_kind, balance_cents, updated_at)
         VALUES (?, ?, 0, ?)
         ON CONFLICT(owner_id, owner_kind) DO NOTHING`,
		ownerID, ownerKind, time.Now(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure wallet: %w", err)
	}
	return db.GetWallet(ctx, ownerID, ownerKind)
}

func (db *DB) GetWallet(ctx context.Context, ownerID int64, ownerKind string) (*models.Wallet, error) {
	var w models.Wallet
	query := `SELECT id, owner_id, owner_kind, balance_cents, updated_at
              FROM wallets WHERE owner_id = ? AND owner_kind = ?`
	err := db.QueryRowContext(ctx, query, ownerID, ownerKind).Scan(
		&w.ID, &w.OwnerID, &w.OwnerKind, &w.BalanceCents, &w.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("wallet %s:%d: %w", ownerKind, ownerID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return &w, nil
}

// GetTransactionByKey is the durable dedup lookup for ledger writes.
func (db *DB) GetTransactionByKey(ctx context.Context, idempotentKey string) (*models.Transaction, error) {
	return scanTransaction(db.QueryRowContext(ctx,
		`SELECT id, from_wallet_id, to_wallet_id, booking_id, amount_cents, type, idempotent_key, created_at
         FROM transactions WHERE idempotent_key = ?`, idempotentKey))
}

func getTransactionByKeyTx(ctx context.Context, tx *sql.Tx, idempotentKey string) (*models.Transaction, error) {
	return scanTransaction(tx.QueryRowContext(ctx,
		`SELECT id, from_wallet_id, to_wallet_id, booking_id, amount_cents, type, idempotent_key, created_at
         FROM transactions WHERE idempotent_key = ?`, idempotentKey))
}

func scanTransaction(row *sql.Row) (*models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(
		&t.ID, &t.FromWalletID, &t.ToWalletID, &t.BookingID,
		&t.AmountCents, &t.Type, &t.IdempotentKey, &t.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}
	return &t, nil
}

// TopUpWallet credits the user wallet and appends the top_up row in
// one transaction. A replayed key returns the stored transaction with
// no second credit.
func (db *DB) TopUpWallet(ctx context.Context, userID int64, idempotentKey string, amountCents int64) (*models.Transaction, bool, error) {
	if amountCents <= 0 {
		return nil, false, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}

	if existing, err := db.GetTransactionByKey(ctx, idempotentKey); err == nil {
		return existing, true, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	wallet, err := db.EnsureWallet(ctx, userID, models.OwnerUser)
	if err != nil {
		return nil, false, err
	}

	unlock := db.locks.Lock(walletKey(wallet.ID))
	defer unlock()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// A racing replay may have committed between the dedup read and
	// the lock acquisition.
	if existing, err := getTransactionByKeyTx(ctx, tx, idempotentKey); err == nil {
		return existing, true, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	now := time.Now()
	_, err = tx.ExecContext(ctx,
		`UPDATE wallets SET balance_cents = balance_cents + ?, updated_at = ? WHERE id = ?`,
		amountCents, now, wallet.ID,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to credit wallet: %w", err)
	}

	txn := &models.Transaction{
		ToWalletID:    wallet.ID,
		AmountCents:   amountCents,
		Type:          models.TransactionTopUp,
		IdempotentKey: idempotentKey,
		CreatedAt:     now,
	}
	if err := insertTransactionTx(ctx, tx, txn); err != nil {
		return nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit top up: %w", err)
	}
	return txn, false, nil
}

// transferTx debits one wallet and credits the other within the
// caller's transaction. The debit and credit never commit apart. The
// caller must hold both wallet locks.
func transferTx(ctx context.Context, tx *sql.Tx, txn *models.Transaction) error {
	var balance int64
	err := tx.QueryRowContext(ctx,
		`SELECT balance_cents FROM wallets WHERE id = ?`, txn.FromWalletID,
	).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("wallet %d: %w", txn.FromWalletID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to read payer balance: %w", err)
	}

	if balance < txn.AmountCents {
		return fmt.Errorf("wallet %d: balance %d < amount %d: %w",
			txn.FromWalletID, balance, txn.AmountCents, ErrInsufficientBalance)
	}

	now := time.Now()
	_, err = tx.ExecContext(ctx,
		`UPDATE wallets SET balance_cents = balance_cents - ?, updated_at = ? WHERE id = ?`,
		txn.AmountCents, now, txn.FromWalletID,
	)
	if err != nil {
		return fmt.Errorf("failed to debit wallet: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE wallets SET balance_cents = balance_cents + ?, updated_at = ? WHERE id = ?`,
		txn.AmountCents, now, txn.ToWalletID,
	)
	if err != nil {
		return fmt.Errorf("failed to credit wallet: %w", err)
	}

	txn.CreatedAt = now
	return insertTransactionTx(ctx, tx, txn)
}

func insertTransactionTx(ctx context.Context, tx *sql.Tx, txn *models.Transaction) error {
	result, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (from_wallet_id, to_wallet_id, booking_id, amount_cents, type, idempotent_key, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		txn.FromWalletID, txn.ToWalletID, txn.BookingID,
		txn.AmountCents, txn.Type, txn.IdempotentKey, txn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	txn.ID = id
	return nil
}

// ListTransactions returns ledger rows for a period, oldest first.
func (db *DB) ListTransactions(ctx context.Context, from, to time.Time) ([]*models.Transaction, error) {
	query := `SELECT id, from_wallet_id, to_wallet_id, booking_id, amount_cents, type, idempotent_key, created_at
              FROM transactions WHERE created_at >= ? AND created_at <= ?
              ORDER BY created_at ASC, id ASC`
	rows, err := db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var out []*models.Transaction
	for rows.Next() {
		var t models.Transaction
		err := rows.Scan(
			&t.ID, &t.FromWalletID, &t.ToWalletID, &t.BookingID,
			&t.AmountCents, &t.Type, &t.IdempotentKey, &t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}
