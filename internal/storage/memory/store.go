package memory

import (
	"context" // request-scoped context, unused by the in-memory implementation
	"sync"
	"time"

	interfaces "github.com/sheikh-saqib/till-ledger/internal/interfaces" // interface RegisterStore
	"github.com/sheikh-saqib/till-ledger/internal/models"                // domain models: Register, LedgerEntry, Order
	"github.com/sheikh-saqib/till-ledger/internal/storage"
	"github.com/shopspring/decimal"
)

// MemoryRegisterStore is an in-memory implementation of interfaces.RegisterStore.
// Every method holds the same mutex, so Commit is atomic with respect to readers.
type MemoryRegisterStore struct {
	mu        sync.Mutex                 // protects everything below
	registers map[string]models.Register // registers by id
	entries   []models.LedgerEntry       // append-only ledger, in commit order
	keys      map[string]struct{}        // idempotency keys already recorded
	orders    map[string]models.Order    // paid-order lookups for reporting
}

// NewMemoryRegisterStore creates and returns a new MemoryRegisterStore instance
func NewMemoryRegisterStore() *MemoryRegisterStore {
	return &MemoryRegisterStore{
		registers: make(map[string]models.Register),
		entries:   make([]models.LedgerEntry, 0),
		keys:      make(map[string]struct{}),
		orders:    make(map[string]models.Order),
	}
}

func (m *MemoryRegisterStore) GetRegister(ctx context.Context, id string) (models.Register, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	register, ok := m.registers[id]
	if !ok {
		return models.Register{}, storage.ErrNotFound
	}
	return register, nil
}

// SaveRegister creates or replaces a register outside of the ledger. Used for
// administrative setup.
func (m *MemoryRegisterStore) SaveRegister(ctx context.Context, register models.Register) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.registers[register.ID] = register
	return nil
}

func (m *MemoryRegisterStore) Commit(ctx context.Context, register models.Register, entry models.LedgerEntry) error {
	m.mu.Lock()         // one critical section for the entry and the register
	defer m.mu.Unlock() // released even when a check fails

	current, ok := m.registers[register.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if current.Version != register.Version {
		return storage.ErrConflict
	}
	if entry.IdempotencyKey != "" {
		if _, exists := m.keys[entry.IdempotencyKey]; exists {
			return storage.ErrDuplicateEntry
		}
		m.keys[entry.IdempotencyKey] = struct{}{}
	}

	m.entries = append(m.entries, entry)
	register.Version++
	m.registers[register.ID] = register
	return nil
}

func (m *MemoryRegisterStore) EntryExists(ctx context.Context, idempotencyKey string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, exists := m.keys[idempotencyKey]
	return exists, nil
}

// GetEntriesByRegister returns a copy of the ledger of one register in commit order.
func (m *MemoryRegisterStore) GetEntriesByRegister(ctx context.Context, registerID string) ([]models.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []models.LedgerEntry
	for _, e := range m.entries {
		if e.RegisterID == registerID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *MemoryRegisterStore) LatestEntry(ctx context.Context, registerID string, action models.Action) (models.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if e.RegisterID == registerID && e.Action == action {
			return e, nil
		}
	}
	return models.LedgerEntry{}, storage.ErrNotFound
}

// SaveOrder records an order so that reporting can sum paid sales. The first
// seen creation time is kept.
func (m *MemoryRegisterStore) SaveOrder(ctx context.Context, order models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.orders[order.ID]; ok {
		order.CreatedAt = prev.CreatedAt
	}
	m.orders[order.ID] = order
	return nil
}

func (m *MemoryRegisterStore) DeleteOrder(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.orders, id)
	return nil
}

func (m *MemoryRegisterStore) SumPaidOrders(ctx context.Context, registerID string, since time.Time) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := decimal.Zero
	for _, o := range m.orders {
		if o.RegisterID != registerID || o.PaymentStatus != models.PaymentPaid {
			continue
		}
		if o.CreatedAt.Before(since) {
			continue
		}
		total = total.Add(o.Total)
	}
	return total, nil
}

// Compile-time check: ensure MemoryRegisterStore implements RegisterStore interface
var _ interfaces.RegisterStore = (*MemoryRegisterStore)(nil)
