package interfaces

import (
	"context"
	"time"

	"github.com/sheikh-saqib/till-ledger/internal/models"
	"github.com/shopspring/decimal"
)

// RegisterStore is the persistence port of the register ledger.
type RegisterStore interface {
	GetRegister(ctx context.Context, id string) (models.Register, error)
	SaveRegister(ctx context.Context, register models.Register) error

	// Commit appends entry and stores register in one atomic unit. register.Version
	// must equal the stored version; the stored version is then incremented.
	Commit(ctx context.Context, register models.Register, entry models.LedgerEntry) error

	EntryExists(ctx context.Context, idempotencyKey string) (bool, error)
	GetEntriesByRegister(ctx context.Context, registerID string) ([]models.LedgerEntry, error)
	LatestEntry(ctx context.Context, registerID string, action models.Action) (models.LedgerEntry, error)

	// Orders are a read model fed by order events, used for sale totals.
	SaveOrder(ctx context.Context, order models.Order) error
	DeleteOrder(ctx context.Context, id string) error
	SumPaidOrders(ctx context.Context, registerID string, since time.Time) (decimal.Decimal, error)
}
