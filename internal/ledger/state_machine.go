package ledger

import (
	"context"

	"github.com/sheikh-saqib/till-ledger/internal/models"
	"github.com/shopspring/decimal"
)

// Open starts a session on a closed register with amount as its float. The
// running balance is reset to amount; the entry keeps the previous balance for
// audit.
func (l *Ledger) Open(ctx context.Context, registerID string, amount decimal.Decimal, description, actor string) (Result, error) {
	return l.execute(ctx, registerID, func(register models.Register) (models.LedgerEntry, error) {
		return decideOpen(register, amount, description, actor)
	}, "The register has been successfully opened")
}

// Close ends the session of an opened register. amount is the counted cash;
// the entry records the variance against the expected balance.
func (l *Ledger) Close(ctx context.Context, registerID string, amount decimal.Decimal, description, actor string) (Result, error) {
	return l.execute(ctx, registerID, func(register models.Register) (models.LedgerEntry, error) {
		return decideClose(register, amount, description, actor)
	}, "The register has been successfully closed")
}

func decideOpen(register models.Register, amount decimal.Decimal, description, actor string) (models.LedgerEntry, error) {
	if register.Status != models.StatusClosed {
		return models.LedgerEntry{}, newError(ErrInvalidState,
			"Unable to open %q, as it's not closed.", register.Name)
	}
	if amount.IsNegative() {
		return models.LedgerEntry{}, newError(ErrInvalidAmount,
			"The opening amount of %q can't be negative.", register.Name)
	}
	if !fitsScale(amount) {
		return models.LedgerEntry{}, tooPrecise()
	}

	return models.LedgerEntry{
		RegisterID:    register.ID,
		Action:        models.ActionOpening,
		Author:        actor,
		Description:   description,
		BalanceBefore: register.Balance,
		Value:         amount,
		BalanceAfter:  register.Balance.Add(amount),
	}, nil
}

func decideClose(register models.Register, amount decimal.Decimal, description, actor string) (models.LedgerEntry, error) {
	if register.Status != models.StatusOpened {
		return models.LedgerEntry{}, newError(ErrInvalidState,
			"Unable to close %q, as it's not opened.", register.Name)
	}
	if !fitsScale(amount) {
		return models.LedgerEntry{}, tooPrecise()
	}

	return models.LedgerEntry{
		RegisterID:      register.ID,
		Action:          models.ActionClosing,
		Author:          actor,
		Description:     description,
		TransactionType: diffType(register.Balance, amount),
		BalanceBefore:   register.Balance,
		Value:           amount,
		BalanceAfter:    register.Balance.Sub(amount).Abs(),
	}, nil
}

// diffType compares expected cash with counted cash.
func diffType(expected, counted decimal.Decimal) models.TransactionType {
	switch expected.Cmp(counted) {
	case 0:
		return models.TransactionUnchanged
	case -1:
		return models.TransactionPositive
	default:
		return models.TransactionNegative
	}
}
