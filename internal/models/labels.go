package models

// ActionLabel returns the display name of an action. Unknown actions are
// returned unchanged.
func ActionLabel(a Action) string {
	switch a {
	case ActionCashIn:
		return "Cash In"
	case ActionCashOut:
		return "Cash Out"
	case ActionClosing:
		return "Closing"
	case ActionOpening:
		return "Opening"
	case ActionRefund:
		return "Refund"
	case ActionSale:
		return "Sale"
	case ActionDelete:
		return "Sale Deleted"
	default:
		return string(a)
	}
}

// StatusLabel returns the display name of a register status.
func StatusLabel(s RegisterStatus) string {
	switch s {
	case StatusClosed:
		return "Closed"
	case StatusDisabled:
		return "Disabled"
	case StatusInUse:
		return "In Use"
	case StatusOpened:
		return "Opened"
	default:
		return string(s)
	}
}
