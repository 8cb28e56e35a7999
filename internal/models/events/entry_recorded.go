package events

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TopicRegisterEntryRecorded = "register.entry_recorded"

	OrderCreated              = "order.created"
	OrderPaymentCreated       = "order.payment_created"
	OrderPaymentStatusChanged = "order.payment_status_changed"
	OrderDeleted              = "order.deleted"
	ProcurementDeleted        = "procurement.deleted"
	ProductCategoryChanged    = "product_category.changed"
)

// EntryRecorded is published after a ledger entry and its register update
// have been committed.
type EntryRecorded struct {
	EntryID         string          `json:"entry_id"`
	RegisterID      string          `json:"register_id"`
	Action          string          `json:"action"`
	Author          string          `json:"author"`
	Value           decimal.Decimal `json:"value"`
	BalanceAfter    decimal.Decimal `json:"balance_after"`
	RegisterStatus  string          `json:"register_status"`
	RegisterBalance decimal.Decimal `json:"register_balance"`
	OccurredAt      time.Time       `json:"occurred_at"`
}
