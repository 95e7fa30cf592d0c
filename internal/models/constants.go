package models

const (
	BookingStatusPending   = "pending"
	BookingStatusCompleted = "completed"
	BookingStatusCancelled = "cancelled"
)

const (
	TransactionTopUp  = "top_up"
	TransactionCharge = "booking_charge"
	TransactionRefund = "refund"
)

const (
	QrStatusActivated = "activated"
	QrStatusExpired   = "expired"
)

const (
	OwnerUser    = "user"
	OwnerCompany = "company"
)

const (
	// DefaultPendingTTLMinutes время, после которого неоплаченная заявка снимается
	DefaultPendingTTLMinutes = 30

	// DefaultSweepIntervalMinutes период фонового обхода просроченных заявок
	DefaultSweepIntervalMinutes = 5

	// DefaultReplayCacheTTLHours время жизни записи о повторе в Redis
	DefaultReplayCacheTTLHours = 24
)
