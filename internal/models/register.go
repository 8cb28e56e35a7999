package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RegisterStatus is the lifecycle state of a cash register.
type RegisterStatus string

const (
	StatusClosed   RegisterStatus = "closed"
	StatusOpened   RegisterStatus = "opened"
	StatusInUse    RegisterStatus = "in-use"
	StatusDisabled RegisterStatus = "disabled"
)

// Register is the current state of one till. Balance is a cached projection
// of the ledger since the most recent opening.
type Register struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Status    RegisterStatus  `json:"status"`
	Balance   decimal.Decimal `json:"balance"`
	UsedBy    string          `json:"used_by,omitempty"` // empty when nobody operates the till
	Version   int64           `json:"version"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// RegisterDetails is the read-only reporting view of a register.
type RegisterDetails struct {
	Register
	StatusLabel     string          `json:"status_label"`
	OpeningBalance  decimal.Decimal `json:"opening_balance"`
	TotalSaleAmount decimal.Decimal `json:"total_sale_amount"`
}
