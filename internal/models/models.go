package models

import "time"

type Tour struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	CompanyID     int64     `json:"company_id"`
	CapacityLimit int64     `json:"capacity_limit"`
	PriceCents    int64     `json:"price_cents"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CapacityCounter tracks reserved seats against the tour's fixed limit.
// 0 <= Reserved <= CapacityLimit holds at every committed point.
type CapacityCounter struct {
	TourID    int64     `json:"tour_id"`
	Reserved  int64     `json:"reserved"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Booking struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"user_id"`
	TourID        int64     `json:"tour_id"`
	Status        string    `json:"status"` // pending, completed, cancelled
	IdempotentKey string    `json:"idempotent_key"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type Wallet struct {
	ID           int64     `json:"id"`
	OwnerID      int64     `json:"owner_id"`
	OwnerKind    string    `json:"owner_kind"` // user, company
	BalanceCents int64     `json:"balance_cents"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Transaction is an append-only ledger row. Rows are never updated
// or deleted; wallet balances are derivable from the full log.
type Transaction struct {
	ID            int64     `json:"id"`
	FromWalletID  int64     `json:"from_wallet_id"`
	ToWalletID    int64     `json:"to_wallet_id"`
	BookingID     int64     `json:"booking_id,omitempty"` // 0 for top-ups
	AmountCents   int64     `json:"amount_cents"`
	Type          string    `json:"type"` // top_up, booking_charge, refund
	IdempotentKey string    `json:"idempotent_key"`
	CreatedAt     time.Time `json:"created_at"`
}

type QrReference struct {
	ID        int64     `json:"id"`
	BookingID int64     `json:"booking_id"`
	Content   string    `json:"content"`
	Status    string    `json:"status"` // activated, expired
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BookingResult is what booking and settlement operations hand back
// to the transport layer.
type BookingResult struct {
	Booking       *Booking `json:"booking"`
	QrReferenceID int64    `json:"qr_reference_id,omitempty"`
	Replayed      bool     `json:"replayed"`
	RefundIssued  bool     `json:"refund_issued,omitempty"`
	RefundCents   int64    `json:"refund_cents,omitempty"`
}

// ReplayRecord is the cached outcome of an idempotency-keyed
// operation. The cache is a fast path only; the unique key columns in
// the store remain the source of truth for deduplication.
type ReplayRecord struct {
	Key           string    `json:"key"`
	Operation     string    `json:"operation"` // book, cancel, pay, top_up
	BookingID     int64     `json:"booking_id,omitempty"`
	TransactionID int64     `json:"transaction_id,omitempty"`
	Status        string    `json:"status,omitempty"`
	StoredAt      time.Time `json:"stored_at"`
}

// TourAvailability is the read-side view of a tour's counter.
type TourAvailability struct {
	Tour      *Tour `json:"tour"`
	Reserved  int64 `json:"reserved"`
	Available int64 `json:"available"`
}
