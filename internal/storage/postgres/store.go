package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	interfaces "github.com/sheikh-saqib/till-ledger/internal/interfaces" // interface RegisterStore
	"github.com/sheikh-saqib/till-ledger/internal/models"
	"github.com/sheikh-saqib/till-ledger/internal/storage"
	"github.com/shopspring/decimal"
)

const (
	uniqueViolation          = "23505"
	idempotencyKeyConstraint = "register_entries_idempotency_key_uniq"
)

type PostgresRegisterStore struct {
	db *sql.DB
}

func NewPostgresRegisterStore(db *sql.DB) *PostgresRegisterStore {
	return &PostgresRegisterStore{
		db: db,
	}
}

func (p *PostgresRegisterStore) GetRegister(ctx context.Context, id string) (models.Register, error) {
	const query = `SELECT id, name, status, balance, used_by, version, updated_at
	FROM registers WHERE id = $1`

	var (
		register models.Register
		usedBy   sql.NullString
	)
	err := p.db.QueryRowContext(ctx, query, id).Scan(
		&register.ID,
		&register.Name,
		&register.Status,
		&register.Balance,
		&usedBy,
		&register.Version,
		&register.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return models.Register{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Register{}, err
	}
	register.UsedBy = usedBy.String
	return register, nil
}

func (p *PostgresRegisterStore) SaveRegister(ctx context.Context, register models.Register) error {
	const query = `INSERT INTO registers (id, name, status, balance, used_by, version, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, status = EXCLUDED.status,
	balance = EXCLUDED.balance, used_by = EXCLUDED.used_by, updated_at = EXCLUDED.updated_at`

	_, err := p.db.ExecContext(ctx, query,
		register.ID, register.Name, register.Status, register.Balance,
		nullString(register.UsedBy), register.Version, register.UpdatedAt)
	return err
}

func (p *PostgresRegisterStore) saveEntry(ctx context.Context, dbTx *sql.Tx, entry models.LedgerEntry) error {
	const query = `INSERT INTO register_entries (id, register_id, action, author, description,
	balance_before, value, balance_after, transaction_type, idempotency_key, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := dbTx.ExecContext(ctx, query,
		entry.ID, entry.RegisterID, entry.Action, entry.Author, entry.Description,
		entry.BalanceBefore, entry.Value, entry.BalanceAfter,
		nullString(string(entry.TransactionType)), nullString(entry.IdempotencyKey), entry.CreatedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		if pqErr.Constraint == idempotencyKeyConstraint {
			return storage.ErrDuplicateEntry
		}
		return fmt.Errorf("insert entry %s: %w", entry.ID, err)
	}
	return err
}

func (p *PostgresRegisterStore) updateRegister(ctx context.Context, dbTx *sql.Tx, register models.Register) error {
	const query = `UPDATE registers SET status = $1, balance = $2, used_by = $3, updated_at = $4,
	version = version + 1 WHERE id = $5 AND version = $6`

	res, err := dbTx.ExecContext(ctx, query,
		register.Status, register.Balance, nullString(register.UsedBy), register.UpdatedAt,
		register.ID, register.Version)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrConflict
	}
	return nil
}

// Commit inserts the entry and updates the register in one transaction. The
// entry goes first so a crash can never leave a balance without its ledger line.
func (p *PostgresRegisterStore) Commit(ctx context.Context, register models.Register, entry models.LedgerEntry) (err error) {
	dbTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			dbTx.Rollback()
		}
	}()

	if err = p.saveEntry(ctx, dbTx, entry); err != nil {
		return err
	}
	if err = p.updateRegister(ctx, dbTx, register); err != nil {
		return err
	}
	return dbTx.Commit()
}

func (p *PostgresRegisterStore) EntryExists(ctx context.Context, idempotencyKey string) (bool, error) {
	const query = `SELECT 1 FROM register_entries WHERE idempotency_key = $1 LIMIT 1`

	var exists int
	err := p.db.QueryRowContext(ctx, query, idempotencyKey).Scan(&exists)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}

const entryColumns = `id, register_id, action, author, description, balance_before, value,
	balance_after, transaction_type, idempotency_key, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (models.LedgerEntry, error) {
	var (
		entry           models.LedgerEntry
		transactionType sql.NullString
		idempotencyKey  sql.NullString
	)
	err := row.Scan(
		&entry.ID,
		&entry.RegisterID,
		&entry.Action,
		&entry.Author,
		&entry.Description,
		&entry.BalanceBefore,
		&entry.Value,
		&entry.BalanceAfter,
		&transactionType,
		&idempotencyKey,
		&entry.CreatedAt,
	)
	if err != nil {
		return models.LedgerEntry{}, err
	}
	entry.TransactionType = models.TransactionType(transactionType.String)
	entry.IdempotencyKey = idempotencyKey.String
	return entry, nil
}

func (p *PostgresRegisterStore) GetEntriesByRegister(ctx context.Context, registerID string) ([]models.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM register_entries
	WHERE register_id = $1 ORDER BY seq`

	rows, err := p.db.QueryContext(ctx, query, registerID)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (p *PostgresRegisterStore) LatestEntry(ctx context.Context, registerID string, action models.Action) (models.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM register_entries
	WHERE register_id = $1 AND action = $2 ORDER BY seq DESC LIMIT 1`

	entry, err := scanEntry(p.db.QueryRowContext(ctx, query, registerID, action))
	if err == sql.ErrNoRows {
		return models.LedgerEntry{}, storage.ErrNotFound
	}
	return entry, err
}

// SaveOrder upserts the reporting copy of an order.
func (p *PostgresRegisterStore) SaveOrder(ctx context.Context, order models.Order) error {
	const query = `INSERT INTO orders (id, register_id, total, payment_status, created_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (id) DO UPDATE SET register_id = EXCLUDED.register_id, total = EXCLUDED.total,
	payment_status = EXCLUDED.payment_status`

	_, err := p.db.ExecContext(ctx, query,
		order.ID, nullString(order.RegisterID), order.Total, order.PaymentStatus, order.CreatedAt)
	if err != nil {
		return fmt.Errorf("save order %s: %w", order.ID, err)
	}
	return nil
}

func (p *PostgresRegisterStore) DeleteOrder(ctx context.Context, id string) error {
	const query = `DELETE FROM orders WHERE id = $1`

	if _, err := p.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete order %s: %w", id, err)
	}
	return nil
}

func (p *PostgresRegisterStore) SumPaidOrders(ctx context.Context, registerID string, since time.Time) (decimal.Decimal, error) {
	const query = `SELECT COALESCE(SUM(total), 0) FROM orders
	WHERE register_id = $1 AND payment_status = $2 AND created_at >= $3`

	var total decimal.Decimal
	if err := p.db.QueryRowContext(ctx, query, registerID, models.PaymentPaid, since).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("sum paid orders: %w", err)
	}
	return total, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var _ interfaces.RegisterStore = (*PostgresRegisterStore)(nil)
