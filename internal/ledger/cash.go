package ledger

import (
	"context"

	"github.com/sheikh-saqib/till-ledger/internal/models"
	"github.com/shopspring/decimal"
)

// CashIn stores cash in an opened register.
func (l *Ledger) CashIn(ctx context.Context, registerID string, amount decimal.Decimal, description, actor string) (Result, error) {
	return l.execute(ctx, registerID, func(register models.Register) (models.LedgerEntry, error) {
		return decideCashIn(register, amount, description, actor)
	}, "The cash has successfully been stored")
}

// CashOut disburses cash from an opened register.
func (l *Ledger) CashOut(ctx context.Context, registerID string, amount decimal.Decimal, description, actor string) (Result, error) {
	return l.execute(ctx, registerID, l.decideCashOut(amount, description, actor),
		"The cash has successfully been disbursed.")
}

// SaleDelete takes the amount of a deleted sale out of the register. Deleting
// historical sales is corrective, so the register may be in any state.
func (l *Ledger) SaleDelete(ctx context.Context, registerID string, amount decimal.Decimal, description, actor string) (Result, error) {
	return l.execute(ctx, registerID, l.decideSaleDelete(amount, description, actor, ""),
		"The sale has successfully been removed from the register")
}

func decideCashIn(register models.Register, amount decimal.Decimal, description, actor string) (models.LedgerEntry, error) {
	if register.Status != models.StatusOpened {
		return models.LedgerEntry{}, newError(ErrInvalidState,
			"Unable to cash in on %q, as it's not opened.", register.Name)
	}
	if err := checkAmount(amount); err != nil {
		return models.LedgerEntry{}, err
	}
	return movement(register, models.ActionCashIn, amount, description, actor), nil
}

func (l *Ledger) decideCashOut(amount decimal.Decimal, description, actor string) decision {
	return func(register models.Register) (models.LedgerEntry, error) {
		if register.Status != models.StatusOpened {
			return models.LedgerEntry{}, newError(ErrInvalidState,
				"Unable to cash out on %q, as it's not opened.", register.Name)
		}
		if err := checkAmount(amount); err != nil {
			return models.LedgerEntry{}, err
		}
		if register.Balance.Sub(amount).IsNegative() {
			return models.LedgerEntry{}, newError(ErrInsufficientFunds,
				"Not enough funds in %q to cash out %s.", register.Name, l.format(amount))
		}
		return movement(register, models.ActionCashOut, amount, description, actor), nil
	}
}

func (l *Ledger) decideSaleDelete(amount decimal.Decimal, description, actor, key string) decision {
	return func(register models.Register) (models.LedgerEntry, error) {
		if err := checkAmount(amount); err != nil {
			return models.LedgerEntry{}, err
		}
		if register.Balance.Sub(amount).IsNegative() {
			return models.LedgerEntry{}, newError(ErrInsufficientFunds,
				"Not enough funds to delete a sale from %q. If funds were cashed-out or disbursed, consider adding some cash (%s) to the register.",
				register.Name, l.format(amount))
		}
		entry := movement(register, models.ActionDelete, amount, description, actor)
		entry.IdempotencyKey = key
		return entry, nil
	}
}

// movement builds an entry for any IN or OUT action, so that the recorded
// balance_after always agrees with the direction Reconcile applies.
func movement(register models.Register, action models.Action, amount decimal.Decimal, description, actor string) models.LedgerEntry {
	after := register.Balance.Add(amount)
	if action.Direction() == models.DirectionOut {
		after = register.Balance.Sub(amount)
	}
	return models.LedgerEntry{
		RegisterID:    register.ID,
		Action:        action,
		Author:        actor,
		Description:   description,
		BalanceBefore: register.Balance,
		Value:         amount,
		BalanceAfter:  after,
	}
}

// amountScale is the number of decimal places the ledger stores.
const amountScale = 4

func fitsScale(amount decimal.Decimal) bool {
	return amount.Equal(amount.Truncate(amountScale))
}

// checkAmount accepts amounts greater than zero that the ledger can store
// without rounding.
func checkAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return newError(ErrInvalidAmount, `The provided amount is not allowed. The amount should be greater than "0".`)
	}
	if !fitsScale(amount) {
		return tooPrecise()
	}
	return nil
}

func tooPrecise() *Error {
	return newError(ErrInvalidAmount, "The provided amount can't have more than %d decimal places.", amountScale)
}
