package events

import "github.com/sheikh-saqib/till-ledger/internal/models"

// OrderEvent is the inbound envelope emitted by the order and procurement
// modules. Which fields are set depends on Type.
type OrderEvent struct {
	ID             string               `json:"id"`
	Type           string               `json:"type"`
	Actor          string               `json:"actor"`
	Order          *models.Order        `json:"order,omitempty"`
	Payment        *models.OrderPayment `json:"payment,omitempty"`
	PreviousStatus models.PaymentStatus `json:"previous_status,omitempty"`
	NewStatus      models.PaymentStatus `json:"new_status,omitempty"`
	ProviderID     string               `json:"provider_id,omitempty"`
	CategoryID     string               `json:"category_id,omitempty"`
}
