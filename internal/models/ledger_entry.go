package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Action identifies what kind of balance-affecting event an entry records.
type Action string

const (
	ActionOpening Action = "register-opening"
	ActionClosing Action = "register-closing"
	ActionCashIn  Action = "register-cash-in"
	ActionCashOut Action = "register-cash-out"
	ActionSale    Action = "register-sale"
	ActionDelete  Action = "register-delete"
	ActionRefund  Action = "register-refund"
)

// Direction tells how an action moves the running balance.
type Direction int

const (
	DirectionNone Direction = iota
	DirectionIn
	DirectionOut
)

// Direction classifies the action. Opening, cash-in and sales increase the
// balance; cash-out, deletions and refunds decrease it. Closing is neither.
func (a Action) Direction() Direction {
	switch a {
	case ActionOpening, ActionCashIn, ActionSale:
		return DirectionIn
	case ActionCashOut, ActionDelete, ActionRefund:
		return DirectionOut
	default:
		return DirectionNone
	}
}

// TransactionType is the sign of counted versus expected cash at closing.
type TransactionType string

const (
	TransactionUnchanged TransactionType = "unchanged"
	TransactionPositive  TransactionType = "positive"
	TransactionNegative  TransactionType = "negative"
)

// LedgerEntry represents a single immutable ledger record for a register
type LedgerEntry struct {
	ID              string          `json:"id"`
	RegisterID      string          `json:"register_id"`
	Action          Action          `json:"action"`
	Author          string          `json:"author"`
	Description     string          `json:"description"`
	BalanceBefore   decimal.Decimal `json:"balance_before"`
	Value           decimal.Decimal `json:"value"`
	BalanceAfter    decimal.Decimal `json:"balance_after"`
	TransactionType TransactionType `json:"transaction_type,omitempty"` // closing only
	IdempotencyKey  string          `json:"idempotency_key,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}
