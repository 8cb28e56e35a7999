package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the payment state of an order.
type PaymentStatus string

const (
	PaymentPaid          PaymentStatus = "paid"
	PaymentPartiallyPaid PaymentStatus = "partially_paid"
	PaymentUnpaid        PaymentStatus = "unpaid"
	PaymentHold          PaymentStatus = "hold"
	PaymentDue           PaymentStatus = "due"
	PaymentRefunded      PaymentStatus = "refunded"
	PaymentVoid          PaymentStatus = "void"
)

// Order is a sale owned by the order module. Only the fields the register
// ledger reads are carried here.
type Order struct {
	ID            string          `json:"id"`
	RegisterID    string          `json:"register_id,omitempty"`
	Author        string          `json:"author"`
	Total         decimal.Decimal `json:"total"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	CreatedAt     time.Time       `json:"created_at"`
}

// OrderPayment is one payment made against an order.
type OrderPayment struct {
	ID      string          `json:"id"`
	OrderID string          `json:"order_id"`
	Value   decimal.Decimal `json:"value"`
}
