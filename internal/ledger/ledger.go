package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	interfaces "github.com/sheikh-saqib/till-ledger/internal/interfaces"
	"github.com/sheikh-saqib/till-ledger/internal/models"
	"github.com/sheikh-saqib/till-ledger/internal/models/events"
	"github.com/sheikh-saqib/till-ledger/internal/storage"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	StatusSuccess   = "success"
	StatusDuplicate = "duplicate" // entry with the same idempotency key already recorded
	StatusIgnored   = "ignored"   // event does not concern any register
)

// Result is returned by every mutating ledger operation.
type Result struct {
	Status  string     `json:"status"`
	Message string     `json:"message"`
	Data    ResultData `json:"data"`
}

type ResultData struct {
	Register models.Register    `json:"register"`
	Entry    models.LedgerEntry `json:"entry"`
}

// Ledger is the register ledger service.
// It holds a reference to the storage layer and one mutex per register, so
// operations on the same register are serialized while different registers
// proceed in parallel.
type Ledger struct {
	store   interfaces.RegisterStore
	events  interfaces.EventPublisher
	topic   string
	logger  *zap.Logger
	format  func(decimal.Decimal) string
	now     func() time.Time
	newID   func() string
	retries int

	muMap map[string]*sync.Mutex // stores the *sync.Mutex for each register
	mapMu sync.Mutex             // protects the muMap itself
}

type Option func(*Ledger)

// WithPublisher sets where committed entries are announced.
func WithPublisher(p interfaces.EventPublisher) Option {
	return func(l *Ledger) { l.events = p }
}

// WithEventTopic overrides the topic committed entries are published on.
func WithEventTopic(topic string) Option {
	return func(l *Ledger) {
		if topic != "" {
			l.topic = topic
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithFormatter sets the currency formatter used in failure messages.
func WithFormatter(format func(decimal.Decimal) string) Option {
	return func(l *Ledger) {
		if format != nil {
			l.format = format
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(l *Ledger) { l.newID = newID }
}

// WithCommitRetries sets how many times an operation is re-decided after the
// store reports a concurrent modification of the register.
func WithCommitRetries(n int) Option {
	return func(l *Ledger) {
		if n >= 0 {
			l.retries = n
		}
	}
}

// NewLedger creates a Ledger on top of store.
func NewLedger(store interfaces.RegisterStore, opts ...Option) *Ledger {
	l := &Ledger{
		store:   store,
		topic:   events.TopicRegisterEntryRecorded,
		logger:  zap.NewNop(),
		format:  func(d decimal.Decimal) string { return d.StringFixed(2) },
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
		retries: 3,
		muMap:   make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) getRegisterLock(registerID string) *sync.Mutex {
	l.mapMu.Lock()
	defer l.mapMu.Unlock()

	if _, exists := l.muMap[registerID]; !exists {
		l.muMap[registerID] = &sync.Mutex{}
	}
	return l.muMap[registerID]
}

// decision inspects the current register and returns the entry to record, or
// a typed failure. It must not have side effects.
type decision func(register models.Register) (models.LedgerEntry, error)

// execute runs one check-then-act unit for a register: the decision, the
// balance reconciliation and the atomic commit all happen under the register
// lock. A failed decision leaves both the ledger and the register untouched.
func (l *Ledger) execute(ctx context.Context, registerID string, decide decision, message string) (Result, error) {
	mu := l.getRegisterLock(registerID)
	mu.Lock()
	defer mu.Unlock()

	var lastErr error
	for attempt := 0; attempt <= l.retries; attempt++ {
		register, err := l.loadRegister(ctx, registerID)
		if err != nil {
			return Result{}, err
		}

		entry, err := decide(register)
		if err != nil {
			l.logger.Debug("ledger operation rejected",
				zap.String("register_id", registerID),
				zap.Error(err),
			)
			return Result{}, err
		}
		if entry.ID == "" {
			entry.ID = l.newID()
		}
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = l.now()
		}
		entry.RegisterID = register.ID

		updated := Reconcile(register, entry)
		updated.UpdatedAt = entry.CreatedAt

		err = l.store.Commit(ctx, updated, entry)
		switch {
		case errors.Is(err, storage.ErrConflict):
			lastErr = err
			l.logger.Warn("register modified concurrently, retrying",
				zap.String("register_id", registerID),
				zap.Int("attempt", attempt+1),
			)
			continue
		case errors.Is(err, storage.ErrDuplicateEntry):
			return l.duplicate(register), nil
		case err != nil:
			return Result{}, fmt.Errorf("commit ledger entry: %w", err)
		}

		updated.Version++
		l.logger.Info("ledger entry recorded",
			zap.String("register_id", updated.ID),
			zap.String("entry_id", entry.ID),
			zap.String("action", string(entry.Action)),
			zap.String("value", entry.Value.String()),
			zap.String("balance", updated.Balance.String()),
		)
		l.publish(ctx, updated, entry)

		return Result{
			Status:  StatusSuccess,
			Message: message,
			Data:    ResultData{Register: updated, Entry: entry},
		}, nil
	}
	return Result{}, fmt.Errorf("commit ledger entry after %d attempts: %w", l.retries+1, lastErr)
}

func (l *Ledger) loadRegister(ctx context.Context, registerID string) (models.Register, error) {
	register, err := l.store.GetRegister(ctx, registerID)
	if errors.Is(err, storage.ErrNotFound) {
		return models.Register{}, newError(ErrRegisterNotFound, "Unable to find the register %q.", registerID)
	}
	if err != nil {
		return models.Register{}, fmt.Errorf("load register %s: %w", registerID, err)
	}
	return register, nil
}

func (l *Ledger) duplicate(register models.Register) Result {
	return Result{
		Status:  StatusDuplicate,
		Message: "The entry has already been recorded",
		Data:    ResultData{Register: register},
	}
}

// publish announces a committed entry. Failures are logged and never undo the
// commit.
func (l *Ledger) publish(ctx context.Context, register models.Register, entry models.LedgerEntry) {
	if l.events == nil {
		return
	}
	event := events.EntryRecorded{
		EntryID:         entry.ID,
		RegisterID:      register.ID,
		Action:          string(entry.Action),
		Author:          entry.Author,
		Value:           entry.Value,
		BalanceAfter:    entry.BalanceAfter,
		RegisterStatus:  string(register.Status),
		RegisterBalance: register.Balance,
		OccurredAt:      entry.CreatedAt,
	}
	if err := l.events.Publish(ctx, l.topic, register.ID, event); err != nil {
		l.logger.Warn("failed to publish register event",
			zap.String("register_id", register.ID),
			zap.String("entry_id", entry.ID),
			zap.Error(err),
		)
	}
}
