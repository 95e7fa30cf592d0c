package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventBookingCreated   = "booking_created"
	EventBookingCompleted = "booking_completed"
	EventBookingCancelled = "booking_cancelled"
	EventBookingExpired   = "booking_expired"
	EventWalletTopUp      = "wallet_top_up"
	EventPaymentSettled   = "payment_settled"
	EventPaymentRefunded  = "payment_refunded"
)

// BookingEventPayload describes the minimal booking snapshot for event consumers.
type BookingEventPayload struct {
	BookingID     int64  `json:"booking_id"`
	UserID        int64  `json:"user_id"`
	TourID        int64  `json:"tour_id"`
	Status        string `json:"status"`
	QrReferenceID int64  `json:"qr_reference_id,omitempty"`
	Replayed      bool   `json:"replayed,omitempty"`
}

// LedgerEventPayload describes a committed ledger transaction.
type LedgerEventPayload struct {
	TransactionID int64  `json:"transaction_id"`
	Type          string `json:"type"`
	FromWalletID  int64  `json:"from_wallet_id,omitempty"`
	ToWalletID    int64  `json:"to_wallet_id"`
	BookingID     int64  `json:"booking_id,omitempty"`
	AmountCents   int64  `json:"amount_cents"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Handler reacts to an event.
type Handler func(event *Event) error

// Bus provides in-process pub/sub for events.
type Bus struct {
	subscribers map[string][]Handler
	mu          sync.RWMutex
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[string][]Handler)}
}

// Subscribe registers a handler for a given event type.
func (b *Bus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type. Handlers run
// synchronously; the caller owns the concurrency model.
func (b *Bus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *Bus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
