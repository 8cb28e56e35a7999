package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/sheikh-saqib/till-ledger/internal/models"
	"github.com/sheikh-saqib/till-ledger/internal/storage"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Reconcile applies entry to register and returns the new register state. It
// is the only place a register balance changes:
//   - opening resets the balance to the declared float and opens the register
//   - closing zeroes the balance and closes the register
//   - IN and OUT actions move the balance only while the register is opened
func Reconcile(register models.Register, entry models.LedgerEntry) models.Register {
	switch entry.Action {
	case models.ActionOpening:
		register.Status = models.StatusOpened
		register.UsedBy = entry.Author
		register.Balance = entry.Value
		return register
	case models.ActionClosing:
		register.Status = models.StatusClosed
		register.UsedBy = ""
		register.Balance = decimal.Zero
		return register
	}

	if register.Status != models.StatusOpened {
		return register
	}
	switch entry.Action.Direction() {
	case models.DirectionIn:
		register.Balance = register.Balance.Add(entry.Value)
	case models.DirectionOut:
		register.Balance = register.Balance.Sub(entry.Value)
	}
	return register
}

// Replay recomputes a register balance from its ledger, oldest entry first,
// starting at the most recent opening. ok is false when there is no opening.
func Replay(entries []models.LedgerEntry) (balance decimal.Decimal, ok bool) {
	start := -1
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Action == models.ActionOpening {
			start = i
			break
		}
	}
	if start < 0 {
		return decimal.Zero, false
	}

	register := models.Register{Status: models.StatusClosed}
	for _, entry := range entries[start:] {
		register = Reconcile(register, entry)
	}
	return register.Balance, true
}

// UpdateRegisterBalance records an entry produced outside of the ledger
// operations and applies it to its register in the same atomic unit.
// Opening and closing entries must go through Open and Close. The balance
// fields and the creation time of the entry are set at commit time, so the
// entry always sorts after everything already applied to the register.
func (l *Ledger) UpdateRegisterBalance(ctx context.Context, entry models.LedgerEntry) (Result, error) {
	if entry.IdempotencyKey != "" {
		if dup, err := l.alreadyRecorded(ctx, entry.RegisterID, entry.IdempotencyKey); dup || err != nil {
			return duplicateOrError(dup, err)
		}
	}

	return l.execute(ctx, entry.RegisterID, func(register models.Register) (models.LedgerEntry, error) {
		direction := entry.Action.Direction()
		if direction == models.DirectionNone {
			return models.LedgerEntry{}, newError(ErrInvalidState,
				"%s entries can't be applied directly to %q.", models.ActionLabel(entry.Action), register.Name)
		}
		if err := checkAmount(entry.Value); err != nil {
			return models.LedgerEntry{}, err
		}
		if direction == models.DirectionOut && register.Status == models.StatusOpened &&
			register.Balance.Sub(entry.Value).IsNegative() {
			return models.LedgerEntry{}, newError(ErrInsufficientFunds,
				"Not enough funds in %q to apply %s.", register.Name, l.format(entry.Value))
		}

		applied := movement(register, entry.Action, entry.Value, entry.Description, entry.Author)
		applied.ID = entry.ID
		applied.IdempotencyKey = entry.IdempotencyKey
		return applied, nil
	}, "The register balance has been updated")
}

// IncreaseFromOrderPayment records a sale for a payment made on an order bound
// to a register.
func (l *Ledger) IncreaseFromOrderPayment(ctx context.Context, order models.Order, payment models.OrderPayment) (Result, error) {
	if order.RegisterID == "" {
		return ignored(), nil
	}
	return l.recordSale(ctx, order.RegisterID, payment.Value, order.Author,
		"payment:"+payment.ID, fmt.Sprintf("Payment %s of order %s", payment.ID, order.ID))
}

// CreateRegisterHistoryUsingPaymentStatus records the order total as a sale
// when an unpaid order becomes paid.
func (l *Ledger) CreateRegisterHistoryUsingPaymentStatus(ctx context.Context, order models.Order, previous, next models.PaymentStatus, actor string) (Result, error) {
	if order.RegisterID == "" || next != models.PaymentPaid {
		return ignored(), nil
	}
	switch previous {
	case models.PaymentDue, models.PaymentHold, models.PaymentPartiallyPaid, models.PaymentUnpaid:
	default:
		return ignored(), nil
	}
	return l.recordSale(ctx, order.RegisterID, order.Total, actor,
		paidOrderKey(order), fmt.Sprintf("Order %s paid", order.ID))
}

// CreateRegisterHistoryFromPaidOrder records the order total as a sale when
// the order is already paid at creation.
func (l *Ledger) CreateRegisterHistoryFromPaidOrder(ctx context.Context, order models.Order, actor string) (Result, error) {
	if order.RegisterID == "" || order.PaymentStatus != models.PaymentPaid {
		return ignored(), nil
	}
	return l.recordSale(ctx, order.RegisterID, order.Total, actor,
		paidOrderKey(order), fmt.Sprintf("Order %s paid", order.ID))
}

// DeleteOrderSale takes a deleted paid order out of its register.
func (l *Ledger) DeleteOrderSale(ctx context.Context, order models.Order, actor string) (Result, error) {
	if order.RegisterID == "" || order.PaymentStatus != models.PaymentPaid {
		return ignored(), nil
	}
	key := "order:" + order.ID + ":deleted"
	if dup, err := l.alreadyRecorded(ctx, order.RegisterID, key); dup || err != nil {
		return duplicateOrError(dup, err)
	}
	return l.execute(ctx, order.RegisterID,
		l.decideSaleDelete(order.Total, fmt.Sprintf("Order %s deleted", order.ID), actor, key),
		"The sale has successfully been removed from the register")
}

// TrackOrder keeps the reporting copy of an order bound to a register, which
// GetRegisterDetails sums. Orders without a register are not kept.
func (l *Ledger) TrackOrder(ctx context.Context, order models.Order) error {
	if order.RegisterID == "" {
		return nil
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = l.now()
	}
	if err := l.store.SaveOrder(ctx, order); err != nil {
		return fmt.Errorf("track order %s: %w", order.ID, err)
	}
	return nil
}

// ForgetOrder drops the reporting copy of a deleted order.
func (l *Ledger) ForgetOrder(ctx context.Context, orderID string) error {
	if err := l.store.DeleteOrder(ctx, orderID); err != nil {
		return fmt.Errorf("forget order %s: %w", orderID, err)
	}
	return nil
}

// Both "created paid" and "became paid" use the same key, so an order is
// counted once whichever events arrive.
func paidOrderKey(order models.Order) string {
	return "order:" + order.ID + ":paid"
}

func (l *Ledger) recordSale(ctx context.Context, registerID string, value decimal.Decimal, author, key, description string) (Result, error) {
	if dup, err := l.alreadyRecorded(ctx, registerID, key); dup || err != nil {
		return duplicateOrError(dup, err)
	}
	return l.execute(ctx, registerID, func(register models.Register) (models.LedgerEntry, error) {
		if err := checkAmount(value); err != nil {
			return models.LedgerEntry{}, err
		}
		entry := movement(register, models.ActionSale, value, description, author)
		entry.IdempotencyKey = key
		return entry, nil
	}, "The sale has been recorded")
}

func (l *Ledger) alreadyRecorded(ctx context.Context, registerID, key string) (bool, error) {
	exists, err := l.store.EntryExists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("check entry %s: %w", key, err)
	}
	if exists {
		l.logger.Debug("skipping already recorded entry",
			zap.String("register_id", registerID),
			zap.String("idempotency_key", key),
		)
	}
	return exists, nil
}

func duplicateOrError(dup bool, err error) (Result, error) {
	if err != nil {
		return Result{}, err
	}
	return Result{Status: StatusDuplicate, Message: "The entry has already been recorded"}, nil
}

func ignored() Result {
	return Result{Status: StatusIgnored, Message: "The order is not bound to a register"}
}

// GetRegisterDetails returns the reporting view of a register. For an opened
// register it carries the opening float and the paid sales since opening.
func (l *Ledger) GetRegisterDetails(ctx context.Context, registerID string) (models.RegisterDetails, error) {
	register, err := l.loadRegister(ctx, registerID)
	if err != nil {
		return models.RegisterDetails{}, err
	}

	details := models.RegisterDetails{
		Register:        register,
		StatusLabel:     models.StatusLabel(register.Status),
		OpeningBalance:  decimal.Zero,
		TotalSaleAmount: decimal.Zero,
	}
	if register.Status != models.StatusOpened {
		return details, nil
	}

	opening, err := l.store.LatestEntry(ctx, register.ID, models.ActionOpening)
	if errors.Is(err, storage.ErrNotFound) {
		return models.RegisterDetails{}, newError(ErrOpeningNotFound,
			"Register %q is opened but has no opening entry.", register.Name)
	}
	if err != nil {
		return models.RegisterDetails{}, fmt.Errorf("load opening entry: %w", err)
	}

	total, err := l.store.SumPaidOrders(ctx, register.ID, opening.CreatedAt)
	if err != nil {
		return models.RegisterDetails{}, fmt.Errorf("sum paid orders: %w", err)
	}

	details.OpeningBalance = opening.Value
	details.TotalSaleAmount = total
	return details, nil
}

// History returns the ledger of a register, oldest entry first.
func (l *Ledger) History(ctx context.Context, registerID string) ([]models.LedgerEntry, error) {
	if _, err := l.loadRegister(ctx, registerID); err != nil {
		return nil, err
	}
	entries, err := l.store.GetEntriesByRegister(ctx, registerID)
	if err != nil {
		return nil, fmt.Errorf("load ledger of %s: %w", registerID, err)
	}
	return entries, nil
}

// VerifyBalance replays the ledger of an opened register and checks it against
// the cached balance.
func (l *Ledger) VerifyBalance(ctx context.Context, registerID string) error {
	mu := l.getRegisterLock(registerID)
	mu.Lock()
	defer mu.Unlock()

	register, err := l.loadRegister(ctx, registerID)
	if err != nil {
		return err
	}
	if register.Status != models.StatusOpened {
		return nil
	}

	entries, err := l.store.GetEntriesByRegister(ctx, registerID)
	if err != nil {
		return fmt.Errorf("load ledger of %s: %w", registerID, err)
	}
	replayed, ok := Replay(entries)
	if !ok {
		return newError(ErrOpeningNotFound, "Register %q is opened but has no opening entry.", register.Name)
	}
	if !replayed.Equal(register.Balance) {
		return newError(ErrBalanceMismatch, "Register %q holds %s but its ledger sums to %s.",
			register.Name, l.format(register.Balance), l.format(replayed))
	}
	return nil
}
