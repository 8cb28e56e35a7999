package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sheikh-saqib/till-ledger/internal/models"
	"github.com/sheikh-saqib/till-ledger/internal/models/events"
	"github.com/sheikh-saqib/till-ledger/internal/storage"
	"github.com/sheikh-saqib/till-ledger/internal/storage/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []any
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, _ string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

type fixture struct {
	ledger *Ledger
	store  *memory.MemoryRegisterStore
	pub    *recordingPublisher
}

func newFixture(t *testing.T, register models.Register) *fixture {
	t.Helper()
	store := memory.NewMemoryRegisterStore()
	require.NoError(t, store.SaveRegister(context.Background(), register))

	var seq atomic.Int64
	var tick atomic.Int64
	pub := &recordingPublisher{}
	l := NewLedger(store,
		WithPublisher(pub),
		WithClock(func() time.Time { return baseTime.Add(time.Duration(tick.Add(1)) * time.Minute) }),
		WithIDGenerator(func() string { return fmt.Sprintf("entry-%d", seq.Add(1)) }),
	)
	return &fixture{ledger: l, store: store, pub: pub}
}

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func closedRegister() models.Register {
	return models.Register{ID: "r1", Name: "Front till", Status: models.StatusClosed}
}

// openedWith returns a fixture whose register was opened with float and then
// received extra cash, all through the ledger.
func openedWith(t *testing.T, float, extra int64) *fixture {
	t.Helper()
	f := newFixture(t, closedRegister())
	_, err := f.ledger.Open(context.Background(), "r1", dec(float), "morning", "alice")
	require.NoError(t, err)
	if extra > 0 {
		_, err = f.ledger.CashIn(context.Background(), "r1", dec(extra), "change", "alice")
		require.NoError(t, err)
	}
	return f
}

func (f *fixture) register(t *testing.T) models.Register {
	t.Helper()
	r, err := f.store.GetRegister(context.Background(), "r1")
	require.NoError(t, err)
	return r
}

func (f *fixture) entries(t *testing.T) []models.LedgerEntry {
	t.Helper()
	e, err := f.store.GetEntriesByRegister(context.Background(), "r1")
	require.NoError(t, err)
	return e
}

func TestLedger_Open(t *testing.T) {
	ctx := context.Background()

	t.Run("opens a closed register", func(t *testing.T) {
		f := newFixture(t, closedRegister())

		res, err := f.ledger.Open(ctx, "r1", dec(100), "morning", "alice")
		require.NoError(t, err)

		assert.Equal(t, StatusSuccess, res.Status)
		assert.Equal(t, models.StatusOpened, res.Data.Register.Status)
		assert.Equal(t, "alice", res.Data.Register.UsedBy)
		assert.True(t, res.Data.Register.Balance.Equal(dec(100)))

		entry := res.Data.Entry
		assert.Equal(t, models.ActionOpening, entry.Action)
		assert.True(t, entry.BalanceBefore.Equal(dec(0)))
		assert.True(t, entry.Value.Equal(dec(100)))
		assert.True(t, entry.BalanceAfter.Equal(dec(100)))
		assert.Equal(t, "alice", entry.Author)

		assert.Equal(t, res.Data.Register.Balance.String(), f.register(t).Balance.String())
		assert.Len(t, f.pub.events, 1)
	})

	t.Run("resets balance to the declared float", func(t *testing.T) {
		reg := closedRegister()
		reg.Balance = dec(30)
		f := newFixture(t, reg)

		res, err := f.ledger.Open(ctx, "r1", dec(100), "", "alice")
		require.NoError(t, err)
		assert.True(t, res.Data.Register.Balance.Equal(dec(100)))
		assert.True(t, res.Data.Entry.BalanceBefore.Equal(dec(30)))
		assert.True(t, res.Data.Entry.BalanceAfter.Equal(dec(130)))
	})

	t.Run("rejects registers that are not closed", func(t *testing.T) {
		for _, status := range []models.RegisterStatus{models.StatusOpened, models.StatusInUse, models.StatusDisabled} {
			reg := closedRegister()
			reg.Status = status
			f := newFixture(t, reg)

			_, err := f.ledger.Open(ctx, "r1", dec(100), "", "alice")
			assert.ErrorIs(t, err, ErrInvalidState, status)
			assert.Empty(t, f.entries(t))
			assert.Equal(t, status, f.register(t).Status)
		}
	})

	t.Run("rejects negative float", func(t *testing.T) {
		f := newFixture(t, closedRegister())
		_, err := f.ledger.Open(ctx, "r1", dec(-1), "", "alice")
		assert.ErrorIs(t, err, ErrInvalidAmount)
		assert.Empty(t, f.entries(t))
	})

	t.Run("unknown register", func(t *testing.T) {
		f := newFixture(t, closedRegister())
		_, err := f.ledger.Open(ctx, "missing", dec(1), "", "alice")
		assert.ErrorIs(t, err, ErrRegisterNotFound)
	})
}

func TestLedger_Close(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name     string
		counted  int64
		diffType models.TransactionType
		variance int64
	}{
		{"negative variance", 140, models.TransactionNegative, 10},
		{"positive variance", 160, models.TransactionPositive, 10},
		{"unchanged", 150, models.TransactionUnchanged, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := openedWith(t, 100, 50)

			res, err := f.ledger.Close(ctx, "r1", dec(tc.counted), "evening", "bob")
			require.NoError(t, err)

			entry := res.Data.Entry
			assert.Equal(t, models.ActionClosing, entry.Action)
			assert.Equal(t, tc.diffType, entry.TransactionType)
			assert.True(t, entry.BalanceBefore.Equal(dec(150)))
			assert.True(t, entry.Value.Equal(dec(tc.counted)))
			assert.True(t, entry.BalanceAfter.Equal(dec(tc.variance)), entry.BalanceAfter.String())

			reg := f.register(t)
			assert.Equal(t, models.StatusClosed, reg.Status)
			assert.Empty(t, reg.UsedBy)
			assert.True(t, reg.Balance.IsZero())
		})
	}

	t.Run("rejects registers that are not opened", func(t *testing.T) {
		f := newFixture(t, closedRegister())
		_, err := f.ledger.Close(ctx, "r1", dec(0), "", "bob")
		assert.ErrorIs(t, err, ErrInvalidState)
		assert.Empty(t, f.entries(t))
	})
}

func TestLedger_CashIn(t *testing.T) {
	ctx := context.Background()

	t.Run("adds to the balance", func(t *testing.T) {
		f := openedWith(t, 100, 0)

		res, err := f.ledger.CashIn(ctx, "r1", dec(50), "change", "alice")
		require.NoError(t, err)

		entry := res.Data.Entry
		assert.Equal(t, models.ActionCashIn, entry.Action)
		assert.True(t, entry.BalanceBefore.Equal(dec(100)))
		assert.True(t, entry.Value.Equal(dec(50)))
		assert.True(t, entry.BalanceAfter.Equal(dec(150)))
		assert.True(t, f.register(t).Balance.Equal(dec(150)))
	})

	t.Run("requires an opened register", func(t *testing.T) {
		f := newFixture(t, closedRegister())
		_, err := f.ledger.CashIn(ctx, "r1", dec(50), "", "alice")
		assert.ErrorIs(t, err, ErrInvalidState)
		assert.Empty(t, f.entries(t))
	})

	t.Run("requires a positive amount", func(t *testing.T) {
		f := openedWith(t, 100, 0)
		for _, amount := range []int64{0, -5} {
			_, err := f.ledger.CashIn(ctx, "r1", dec(amount), "", "alice")
			assert.ErrorIs(t, err, ErrInvalidAmount)
		}
		assert.Len(t, f.entries(t), 1)
		assert.True(t, f.register(t).Balance.Equal(dec(100)))
	})
}

func TestLedger_CashOut(t *testing.T) {
	ctx := context.Background()

	t.Run("takes from the balance", func(t *testing.T) {
		f := openedWith(t, 100, 50)

		res, err := f.ledger.CashOut(ctx, "r1", dec(150), "bank drop", "alice")
		require.NoError(t, err)
		assert.True(t, res.Data.Entry.BalanceAfter.IsZero())
		assert.True(t, f.register(t).Balance.IsZero())
	})

	t.Run("insufficient funds leaves everything untouched", func(t *testing.T) {
		f := openedWith(t, 100, 50)
		before := f.entries(t)

		_, err := f.ledger.CashOut(ctx, "r1", dec(200), "", "alice")
		assert.ErrorIs(t, err, ErrInsufficientFunds)
		assert.Contains(t, err.Error(), "200.00")

		assert.True(t, f.register(t).Balance.Equal(dec(150)))
		assert.Equal(t, before, f.entries(t))
	})

	t.Run("requires an opened register", func(t *testing.T) {
		f := newFixture(t, closedRegister())
		_, err := f.ledger.CashOut(ctx, "r1", dec(1), "", "alice")
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("requires a positive amount", func(t *testing.T) {
		f := openedWith(t, 100, 0)
		_, err := f.ledger.CashOut(ctx, "r1", dec(0), "", "alice")
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})
}

func TestLedger_SaleDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("removes the sale from an opened register", func(t *testing.T) {
		f := openedWith(t, 100, 0)

		res, err := f.ledger.SaleDelete(ctx, "r1", dec(40), "void", "alice")
		require.NoError(t, err)
		assert.Equal(t, models.ActionDelete, res.Data.Entry.Action)
		assert.True(t, res.Data.Entry.BalanceAfter.Equal(dec(60)))
		assert.True(t, f.register(t).Balance.Equal(dec(60)))
	})

	t.Run("insufficient funds", func(t *testing.T) {
		reg := closedRegister()
		reg.Status = models.StatusOpened
		reg.Balance = dec(10)
		f := newFixture(t, reg)

		_, err := f.ledger.SaleDelete(ctx, "r1", dec(20), "", "alice")
		assert.ErrorIs(t, err, ErrInsufficientFunds)
		assert.True(t, f.register(t).Balance.Equal(dec(10)))
		assert.Empty(t, f.entries(t))
	})

	t.Run("runs on a closed register without moving its balance", func(t *testing.T) {
		reg := closedRegister()
		reg.Balance = dec(30)
		f := newFixture(t, reg)

		res, err := f.ledger.SaleDelete(ctx, "r1", dec(20), "", "alice")
		require.NoError(t, err)
		assert.True(t, res.Data.Entry.BalanceAfter.Equal(dec(10)))
		assert.True(t, f.register(t).Balance.Equal(dec(30)))
	})
}

func TestLedger_EntriesAreAppendOnly(t *testing.T) {
	ctx := context.Background()
	f := openedWith(t, 100, 0)
	first := f.entries(t)[0]

	_, err := f.ledger.CashIn(ctx, "r1", dec(5), "", "alice")
	require.NoError(t, err)
	_, err = f.ledger.Close(ctx, "r1", dec(105), "", "alice")
	require.NoError(t, err)
	_, err = f.ledger.Open(ctx, "r1", dec(20), "", "bob")
	require.NoError(t, err)

	entries := f.entries(t)
	require.Len(t, entries, 4)
	assert.Equal(t, first, entries[0])
}

func TestLedger_ReplayMatchesBalance(t *testing.T) {
	ctx := context.Background()
	f := openedWith(t, 100, 50)
	l := f.ledger

	_, err := l.CashOut(ctx, "r1", dec(30), "", "alice")
	require.NoError(t, err)
	_, err = l.IncreaseFromOrderPayment(ctx,
		models.Order{ID: "o1", RegisterID: "r1", Author: "alice"},
		models.OrderPayment{ID: "p1", Value: decimal.RequireFromString("12.35")})
	require.NoError(t, err)
	_, err = l.SaleDelete(ctx, "r1", dec(2), "", "alice")
	require.NoError(t, err)
	_, err = l.Close(ctx, "r1", dec(0), "", "alice")
	require.NoError(t, err)
	_, err = l.Open(ctx, "r1", dec(40), "", "bob")
	require.NoError(t, err)
	_, err = l.CashIn(ctx, "r1", decimal.RequireFromString("0.65"), "", "bob")
	require.NoError(t, err)

	replayed, ok := Replay(f.entries(t))
	require.True(t, ok)
	assert.Equal(t, "40.65", replayed.StringFixed(2))
	assert.True(t, replayed.Equal(f.register(t).Balance))
	assert.NoError(t, l.VerifyBalance(ctx, "r1"))
}

func TestReplay_WithoutOpening(t *testing.T) {
	_, ok := Replay([]models.LedgerEntry{{Action: models.ActionCashIn, Value: dec(3)}})
	assert.False(t, ok)
}

func TestLedger_VerifyBalance(t *testing.T) {
	ctx := context.Background()

	t.Run("detects a drifted cached balance", func(t *testing.T) {
		f := openedWith(t, 100, 0)
		reg := f.register(t)
		reg.Balance = dec(99)
		require.NoError(t, f.store.SaveRegister(ctx, reg))

		err := f.ledger.VerifyBalance(ctx, "r1")
		assert.ErrorIs(t, err, ErrBalanceMismatch)
	})

	t.Run("opened register without opening entry", func(t *testing.T) {
		reg := closedRegister()
		reg.Status = models.StatusOpened
		f := newFixture(t, reg)

		assert.ErrorIs(t, f.ledger.VerifyBalance(ctx, "r1"), ErrOpeningNotFound)
	})
}

func TestLedger_UpdateRegisterBalance(t *testing.T) {
	ctx := context.Background()

	t.Run("applies a refund", func(t *testing.T) {
		f := openedWith(t, 100, 0)

		res, err := f.ledger.UpdateRegisterBalance(ctx, models.LedgerEntry{
			RegisterID: "r1", Action: models.ActionRefund, Value: dec(25), Author: "alice", IdempotencyKey: "refund:1",
		})
		require.NoError(t, err)
		assert.Equal(t, StatusSuccess, res.Status)
		assert.True(t, res.Data.Entry.BalanceBefore.Equal(dec(100)))
		assert.True(t, res.Data.Entry.BalanceAfter.Equal(dec(75)))
		assert.True(t, f.register(t).Balance.Equal(dec(75)))

		res, err = f.ledger.UpdateRegisterBalance(ctx, models.LedgerEntry{
			RegisterID: "r1", Action: models.ActionRefund, Value: dec(25), IdempotencyKey: "refund:1",
		})
		require.NoError(t, err)
		assert.Equal(t, StatusDuplicate, res.Status)
		assert.True(t, f.register(t).Balance.Equal(dec(75)))
	})

	t.Run("leaves a closed register balance alone", func(t *testing.T) {
		f := newFixture(t, closedRegister())
		_, err := f.ledger.UpdateRegisterBalance(ctx, models.LedgerEntry{RegisterID: "r1", Action: models.ActionSale, Value: dec(5)})
		require.NoError(t, err)
		assert.True(t, f.register(t).Balance.IsZero())
		assert.Len(t, f.entries(t), 1)
	})

	t.Run("refuses opening and closing entries", func(t *testing.T) {
		f := newFixture(t, closedRegister())
		_, err := f.ledger.UpdateRegisterBalance(ctx, models.LedgerEntry{RegisterID: "r1", Action: models.ActionOpening, Value: dec(5)})
		assert.ErrorIs(t, err, ErrInvalidState)
		assert.Empty(t, f.entries(t))
	})

	t.Run("refuses to go negative", func(t *testing.T) {
		f := openedWith(t, 10, 0)
		_, err := f.ledger.UpdateRegisterBalance(ctx, models.LedgerEntry{RegisterID: "r1", Action: models.ActionCashOut, Value: dec(11)})
		assert.ErrorIs(t, err, ErrInsufficientFunds)
		assert.True(t, f.register(t).Balance.Equal(dec(10)))
	})

	t.Run("backdated entries are stamped at commit time", func(t *testing.T) {
		f := openedWith(t, 100, 0)

		res, err := f.ledger.UpdateRegisterBalance(ctx, models.LedgerEntry{
			RegisterID: "r1", Action: models.ActionSale, Value: dec(30), CreatedAt: baseTime.Add(-24 * time.Hour),
		})
		require.NoError(t, err)

		entries := f.entries(t)
		require.Len(t, entries, 2)
		assert.True(t, res.Data.Entry.CreatedAt.After(entries[0].CreatedAt))
		assert.Equal(t, models.ActionSale, entries[1].Action)

		replayed, ok := Replay(entries)
		require.True(t, ok)
		assert.True(t, replayed.Equal(dec(130)))
		assert.NoError(t, f.ledger.VerifyBalance(ctx, "r1"))
	})
}

func TestLedger_AmountScale(t *testing.T) {
	ctx := context.Background()
	tooFine := decimal.RequireFromString("0.00001")

	t.Run("movements finer than the stored scale are rejected", func(t *testing.T) {
		f := openedWith(t, 100, 0)

		_, err := f.ledger.CashIn(ctx, "r1", tooFine, "", "alice")
		assert.ErrorIs(t, err, ErrInvalidAmount)
		_, err = f.ledger.CashOut(ctx, "r1", tooFine, "", "alice")
		assert.ErrorIs(t, err, ErrInvalidAmount)
		_, err = f.ledger.SaleDelete(ctx, "r1", tooFine, "", "alice")
		assert.ErrorIs(t, err, ErrInvalidAmount)
		_, err = f.ledger.UpdateRegisterBalance(ctx, models.LedgerEntry{RegisterID: "r1", Action: models.ActionSale, Value: tooFine})
		assert.ErrorIs(t, err, ErrInvalidAmount)
		_, err = f.ledger.Close(ctx, "r1", decimal.RequireFromString("99.99999"), "", "alice")
		assert.ErrorIs(t, err, ErrInvalidAmount)

		assert.Len(t, f.entries(t), 1)
		assert.True(t, f.register(t).Balance.Equal(dec(100)))
	})

	t.Run("four decimal places and trailing zeros are accepted", func(t *testing.T) {
		f := openedWith(t, 100, 0)

		_, err := f.ledger.CashIn(ctx, "r1", decimal.RequireFromString("0.0001"), "", "alice")
		require.NoError(t, err)
		_, err = f.ledger.CashIn(ctx, "r1", decimal.RequireFromString("1.500000"), "", "alice")
		require.NoError(t, err)
		assert.Equal(t, "101.5001", f.register(t).Balance.String())
	})

	t.Run("opening float finer than the stored scale is rejected", func(t *testing.T) {
		f := newFixture(t, closedRegister())
		_, err := f.ledger.Open(ctx, "r1", decimal.RequireFromString("10.12345"), "", "alice")
		assert.ErrorIs(t, err, ErrInvalidAmount)
		assert.Equal(t, models.StatusClosed, f.register(t).Status)
	})
}

func TestLedger_OrderSales(t *testing.T) {
	ctx := context.Background()
	order := models.Order{ID: "o1", RegisterID: "r1", Author: "carol", Total: dec(30), PaymentStatus: models.PaymentPaid}

	t.Run("payment on a bound order", func(t *testing.T) {
		f := openedWith(t, 100, 0)

		res, err := f.ledger.IncreaseFromOrderPayment(ctx, order, models.OrderPayment{ID: "p1", OrderID: "o1", Value: dec(12)})
		require.NoError(t, err)
		assert.Equal(t, models.ActionSale, res.Data.Entry.Action)
		assert.Equal(t, "carol", res.Data.Entry.Author)
		assert.True(t, res.Data.Entry.BalanceAfter.Equal(dec(112)))
		assert.True(t, f.register(t).Balance.Equal(dec(112)))
	})

	t.Run("order without register is ignored", func(t *testing.T) {
		f := openedWith(t, 100, 0)
		unbound := order
		unbound.RegisterID = ""

		res, err := f.ledger.IncreaseFromOrderPayment(ctx, unbound, models.OrderPayment{ID: "p1", Value: dec(12)})
		require.NoError(t, err)
		assert.Equal(t, StatusIgnored, res.Status)
		assert.Len(t, f.entries(t), 1)
	})

	t.Run("status change to paid", func(t *testing.T) {
		for _, previous := range []models.PaymentStatus{models.PaymentDue, models.PaymentHold, models.PaymentPartiallyPaid, models.PaymentUnpaid} {
			f := openedWith(t, 100, 0)
			res, err := f.ledger.CreateRegisterHistoryUsingPaymentStatus(ctx, order, previous, models.PaymentPaid, "dave")
			require.NoError(t, err)
			assert.Equal(t, StatusSuccess, res.Status, previous)
			assert.True(t, f.register(t).Balance.Equal(dec(130)), previous)
		}
	})

	t.Run("other status changes are ignored", func(t *testing.T) {
		f := openedWith(t, 100, 0)
		res, err := f.ledger.CreateRegisterHistoryUsingPaymentStatus(ctx, order, models.PaymentRefunded, models.PaymentPaid, "dave")
		require.NoError(t, err)
		assert.Equal(t, StatusIgnored, res.Status)

		res, err = f.ledger.CreateRegisterHistoryUsingPaymentStatus(ctx, order, models.PaymentUnpaid, models.PaymentHold, "dave")
		require.NoError(t, err)
		assert.Equal(t, StatusIgnored, res.Status)
		assert.True(t, f.register(t).Balance.Equal(dec(100)))
	})

	t.Run("paid order counted once", func(t *testing.T) {
		f := openedWith(t, 100, 0)

		res, err := f.ledger.CreateRegisterHistoryFromPaidOrder(ctx, order, "dave")
		require.NoError(t, err)
		assert.Equal(t, StatusSuccess, res.Status)

		res, err = f.ledger.CreateRegisterHistoryUsingPaymentStatus(ctx, order, models.PaymentUnpaid, models.PaymentPaid, "dave")
		require.NoError(t, err)
		assert.Equal(t, StatusDuplicate, res.Status)

		res, err = f.ledger.CreateRegisterHistoryFromPaidOrder(ctx, order, "dave")
		require.NoError(t, err)
		assert.Equal(t, StatusDuplicate, res.Status)

		assert.True(t, f.register(t).Balance.Equal(dec(130)))
	})

	t.Run("unpaid order at creation is ignored", func(t *testing.T) {
		f := openedWith(t, 100, 0)
		unpaid := order
		unpaid.PaymentStatus = models.PaymentUnpaid
		res, err := f.ledger.CreateRegisterHistoryFromPaidOrder(ctx, unpaid, "dave")
		require.NoError(t, err)
		assert.Equal(t, StatusIgnored, res.Status)
	})

	t.Run("deleted paid order", func(t *testing.T) {
		f := openedWith(t, 100, 0)

		res, err := f.ledger.DeleteOrderSale(ctx, order, "dave")
		require.NoError(t, err)
		assert.Equal(t, models.ActionDelete, res.Data.Entry.Action)
		assert.True(t, f.register(t).Balance.Equal(dec(70)))

		res, err = f.ledger.DeleteOrderSale(ctx, order, "dave")
		require.NoError(t, err)
		assert.Equal(t, StatusDuplicate, res.Status)
		assert.True(t, f.register(t).Balance.Equal(dec(70)))
	})

	t.Run("sale on unknown register", func(t *testing.T) {
		f := openedWith(t, 100, 0)
		stray := order
		stray.RegisterID = "missing"
		_, err := f.ledger.CreateRegisterHistoryFromPaidOrder(ctx, stray, "dave")
		assert.ErrorIs(t, err, ErrRegisterNotFound)
	})

	t.Run("zero payment", func(t *testing.T) {
		f := openedWith(t, 100, 0)
		_, err := f.ledger.IncreaseFromOrderPayment(ctx, order, models.OrderPayment{ID: "p0", Value: dec(0)})
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})
}

func TestLedger_GetRegisterDetails(t *testing.T) {
	ctx := context.Background()

	t.Run("opened register", func(t *testing.T) {
		f := openedWith(t, 100, 0)
		opening := f.entries(t)[0]

		require.NoError(t, f.store.SaveOrder(ctx, models.Order{ID: "o1", RegisterID: "r1", Total: dec(20), PaymentStatus: models.PaymentPaid, CreatedAt: opening.CreatedAt}))
		require.NoError(t, f.store.SaveOrder(ctx, models.Order{ID: "o2", RegisterID: "r1", Total: dec(7), PaymentStatus: models.PaymentPaid, CreatedAt: opening.CreatedAt.Add(-time.Hour)}))

		details, err := f.ledger.GetRegisterDetails(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, "Opened", details.StatusLabel)
		assert.True(t, details.OpeningBalance.Equal(dec(100)))
		assert.True(t, details.TotalSaleAmount.Equal(dec(20)))
	})

	t.Run("closed register reports zeros", func(t *testing.T) {
		f := newFixture(t, closedRegister())
		details, err := f.ledger.GetRegisterDetails(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, "Closed", details.StatusLabel)
		assert.True(t, details.OpeningBalance.IsZero())
		assert.True(t, details.TotalSaleAmount.IsZero())
	})

	t.Run("opened register without opening entry", func(t *testing.T) {
		reg := closedRegister()
		reg.Status = models.StatusOpened
		f := newFixture(t, reg)

		_, err := f.ledger.GetRegisterDetails(ctx, "r1")
		assert.ErrorIs(t, err, ErrOpeningNotFound)
	})
}

func TestLedger_History(t *testing.T) {
	f := openedWith(t, 100, 5)
	entries, err := f.ledger.History(context.Background(), "r1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.ActionOpening, entries[0].Action)
	assert.Equal(t, models.ActionCashIn, entries[1].Action)

	_, err = f.ledger.History(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRegisterNotFound)
}

func TestLedger_PublishesCommittedEntries(t *testing.T) {
	f := openedWith(t, 100, 0)
	f.pub.err = errors.New("broker down")

	_, err := f.ledger.CashIn(context.Background(), "r1", dec(1), "", "alice")
	require.NoError(t, err, "publish failures must not fail the operation")

	require.Len(t, f.pub.events, 2)
	evt, ok := f.pub.events[1].(events.EntryRecorded)
	require.True(t, ok)
	assert.Equal(t, "r1", evt.RegisterID)
	assert.Equal(t, string(models.ActionCashIn), evt.Action)
	assert.True(t, evt.RegisterBalance.Equal(dec(101)))
}

// conflictingStore reports a concurrent modification on the first commits.
type conflictingStore struct {
	*memory.MemoryRegisterStore
	conflicts int
}

func (s *conflictingStore) Commit(ctx context.Context, r models.Register, e models.LedgerEntry) error {
	if s.conflicts > 0 {
		s.conflicts--
		return storage.ErrConflict
	}
	return s.MemoryRegisterStore.Commit(ctx, r, e)
}

func TestLedger_RetriesOnConflict(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewMemoryRegisterStore()
	require.NoError(t, mem.SaveRegister(ctx, closedRegister()))

	t.Run("succeeds within the retry budget", func(t *testing.T) {
		store := &conflictingStore{MemoryRegisterStore: mem, conflicts: 2}
		l := NewLedger(store, WithCommitRetries(2))

		_, err := l.Open(ctx, "r1", dec(10), "", "alice")
		require.NoError(t, err)
	})

	t.Run("gives up after the retry budget", func(t *testing.T) {
		store := &conflictingStore{MemoryRegisterStore: mem, conflicts: 5}
		l := NewLedger(store, WithCommitRetries(1))

		_, err := l.CashIn(ctx, "r1", dec(10), "", "alice")
		assert.ErrorIs(t, err, storage.ErrConflict)
	})
}

func TestLedger_SerializesOperationsPerRegister(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMemoryRegisterStore()
	require.NoError(t, store.SaveRegister(ctx, closedRegister()))
	require.NoError(t, store.SaveRegister(ctx, models.Register{ID: "r2", Status: models.StatusClosed}))
	l := NewLedger(store, WithCommitRetries(0))

	_, err := l.Open(ctx, "r1", dec(0), "", "alice")
	require.NoError(t, err)
	_, err = l.Open(ctx, "r2", dec(0), "", "bob")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := l.CashIn(ctx, "r1", dec(2), "", "alice")
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := l.CashIn(ctx, "r2", dec(1), "", "bob")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	r1, err := store.GetRegister(ctx, "r1")
	require.NoError(t, err)
	r2, err := store.GetRegister(ctx, "r2")
	require.NoError(t, err)
	assert.True(t, r1.Balance.Equal(dec(100)), r1.Balance.String())
	assert.True(t, r2.Balance.Equal(dec(50)), r2.Balance.String())
	assert.NoError(t, l.VerifyBalance(ctx, "r1"))
}
