package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus describes the payment lifecycle of an order.
type PaymentStatus string

const (
	PaymentStatusReserved PaymentStatus = "reserved"
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
)

// rank orders statuses so that transitions can be checked for regressions.
func (s PaymentStatus) rank() int {
	switch s {
	case PaymentStatusReserved:
		return 1
	case PaymentStatusPending:
		return 2
	case PaymentStatusPaid:
		return 3
	}
	return 0
}

// CanAdvanceTo reports whether moving from s to next keeps the status moving forward.
func (s PaymentStatus) CanAdvanceTo(next PaymentStatus) bool {
	return s.rank() > 0 && next.rank() > s.rank()
}

// PaymentMethod identifies how the customer settles an order.
type PaymentMethod string

const (
	PaymentMethodUnset    PaymentMethod = ""
	PaymentMethodBlik     PaymentMethod = "blik"
	PaymentMethodCrypto   PaymentMethod = "crypto"
	PaymentMethodTransfer PaymentMethod = "transfer"
)

// Order is a customer order together with its payment state.
type Order struct {
	ID                   string          `db:"id"`
	UserID               int64           `db:"user_id"`
	Name                 string          `db:"name"`
	ItemsText            string          `db:"items"`
	Total                decimal.Decimal `db:"total"`
	PaymentMethod        PaymentMethod   `db:"payment_method"`
	PaymentStatus        PaymentStatus   `db:"payment_status"`
	EncryptedPaymentCode *string         `db:"blik_code_enc"`
	AssignedOperatorID   *int64          `db:"assigned_operator_id"`
	ReservedUntil        time.Time       `db:"reserved_until"`
	TrackingNumber       *string         `db:"tracking_number"`
}

// ReservationExpired reports whether the reservation window has passed at now.
func (o *Order) ReservationExpired(now time.Time) bool {
	return !o.ReservedUntil.IsZero() && now.After(o.ReservedUntil)
}

// NewOrder carries the fields supplied when an order is created.
type NewOrder struct {
	UserID    int64
	Name      string
	ItemsText string
	Total     decimal.Decimal
}
