// Package postgres implements the Repository on PostgreSQL via the pgx
// stdlib driver.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"dukaanpos/backend/internal/domain"
	"dukaanpos/backend/internal/store"
	"dukaanpos/backend/internal/taxcalc"
)

type Store struct {
	db *sql.DB
}

// Open connects, tunes the pool, and ensures the schema exists.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

var _ store.Repository = (*Store)(nil)

func (s *Store) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS items (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			name TEXT NOT NULL,
			sku TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			location TEXT NOT NULL DEFAULT '',
			price_cents BIGINT NOT NULL,
			cost_cents BIGINT NOT NULL DEFAULT 0,
			stock BIGINT NOT NULL,
			reorder_level BIGINT NOT NULL DEFAULT 0,
			supplier TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS items_user_sku
			ON items (user_id, sku) WHERE sku <> ''`,
		`CREATE TABLE IF NOT EXISTS sales (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			receipt_number TEXT NOT NULL,
			receipt_number_value BIGINT NOT NULL DEFAULT 0,
			items JSONB NOT NULL,
			subtotal_cents BIGINT NOT NULL,
			discount_cents BIGINT NOT NULL,
			tax_cents BIGINT NOT NULL,
			total_cents BIGINT NOT NULL,
			payment_method TEXT NOT NULL,
			cash_amount_cents BIGINT NOT NULL DEFAULT 0,
			change_cents BIGINT NOT NULL DEFAULT 0,
			customer_name TEXT NOT NULL DEFAULT '',
			printed BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS sales_user_created
			ON sales (user_id, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS receipt_counters (
			user_id TEXT PRIMARY KEY,
			counter BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS cash_drawer_entries (
			seq BIGSERIAL PRIMARY KEY,
			id TEXT NOT NULL UNIQUE,
			user_id TEXT NOT NULL,
			operation TEXT NOT NULL,
			amount_cents BIGINT NOT NULL,
			previous_balance_cents BIGINT NOT NULL,
			balance_cents BIGINT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			reference_id TEXT NOT NULL DEFAULT '',
			performed_by TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS drawer_user_seq
			ON cash_drawer_entries (user_id, seq DESC)`,
		`CREATE TABLE IF NOT EXISTS expenses (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			category TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			amount_cents BIGINT NOT NULL,
			payment_method TEXT NOT NULL,
			drawer_entry_id TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS business_settings (
			user_id TEXT PRIMARY KEY,
			business_name TEXT NOT NULL,
			address TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			receipt_header TEXT NOT NULL DEFAULT '',
			receipt_footer TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS tax_settings (
			user_id TEXT PRIMARY KEY,
			business_type TEXT NOT NULL DEFAULT '',
			tax_id_number TEXT NOT NULL DEFAULT '',
			income_tax_enabled BOOLEAN NOT NULL,
			zakat_enabled BOOLEAN NOT NULL,
			sales_tax_percent DOUBLE PRECISION NOT NULL DEFAULT 0,
			custom_slabs JSONB,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS tax_records (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			type TEXT NOT NULL,
			period TEXT NOT NULL DEFAULT '',
			income_cents BIGINT NOT NULL,
			tax_due_cents BIGINT NOT NULL,
			paid_cents BIGINT NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			drawer_entry_id TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			paid_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS suppliers (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			name TEXT NOT NULL,
			contact TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			address TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'active',
			total_orders BIGINT NOT NULL DEFAULT 0,
			last_order_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			display_name TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL,
			owner_id TEXT NOT NULL DEFAULT '',
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS users_username
			ON users (lower(username))`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Inventory.

const itemColumns = `id, user_id, name, sku, category, description, location,
	price_cents, cost_cents, stock, reorder_level, supplier, status,
	created_at, updated_at`

func scanItem(row interface{ Scan(...any) error }) (domain.InventoryItem, error) {
	var it domain.InventoryItem
	err := row.Scan(&it.ID, &it.UserID, &it.Name, &it.SKU, &it.Category,
		&it.Description, &it.Location, &it.PriceCents, &it.CostCents,
		&it.Stock, &it.ReorderLevel, &it.Supplier, &it.Status,
		&it.CreatedAt, &it.UpdatedAt)
	return it, err
}

func (s *Store) CreateItem(ctx context.Context, item domain.InventoryItem) (domain.InventoryItem, error) {
	if item.ID == "" || item.UserID == "" {
		return domain.InventoryItem{}, fmt.Errorf("%w: item id and user id are required", store.ErrValidation)
	}
	item.Status = domain.DeriveStockStatus(item.Stock, item.ReorderLevel)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO items (`+itemColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`, item.ID, item.UserID, item.Name, item.SKU, item.Category,
		item.Description, item.Location, item.PriceCents, item.CostCents,
		item.Stock, item.ReorderLevel, item.Supplier, item.Status,
		item.CreatedAt, item.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.InventoryItem{}, store.ErrDuplicate
		}
		return domain.InventoryItem{}, err
	}
	return item, nil
}

func (s *Store) GetItem(ctx context.Context, userID, id string) (domain.InventoryItem, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+itemColumns+` FROM items WHERE id = $1 AND user_id = $2
	`, id, userID)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.InventoryItem{}, store.ErrNotFound
		}
		return domain.InventoryItem{}, err
	}
	return item, nil
}

func (s *Store) ListItems(ctx context.Context, userID string, f store.ItemFilter) ([]domain.InventoryItem, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE user_id = $1`
	args := []any{userID}
	if f.Category != "" {
		args = append(args, f.Category)
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.Search != "" {
		args = append(args, "%"+strings.ToLower(f.Search)+"%")
		query += fmt.Sprintf(" AND (lower(name) LIKE $%d OR lower(sku) LIKE $%d)", len(args), len(args))
	}
	query += " ORDER BY name"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.InventoryItem, 0, 64)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) UpdateItem(ctx context.Context, item domain.InventoryItem) (domain.InventoryItem, error) {
	item.Status = domain.DeriveStockStatus(item.Stock, item.ReorderLevel)
	res, err := s.db.ExecContext(ctx, `
		UPDATE items SET name=$3, sku=$4, category=$5, description=$6, location=$7,
			price_cents=$8, cost_cents=$9, stock=$10, reorder_level=$11,
			supplier=$12, status=$13, updated_at=$14
		WHERE id = $1 AND user_id = $2
	`, item.ID, item.UserID, item.Name, item.SKU, item.Category,
		item.Description, item.Location, item.PriceCents, item.CostCents,
		item.Stock, item.ReorderLevel, item.Supplier, item.Status, item.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.InventoryItem{}, store.ErrDuplicate
		}
		return domain.InventoryItem{}, err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return domain.InventoryItem{}, store.ErrNotFound
	}
	return s.GetItem(ctx, item.UserID, item.ID)
}

func (s *Store) DeleteItem(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) AdjustStock(ctx context.Context, userID, itemID string, delta int64) (domain.InventoryItem, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE items SET
			stock = stock + $3,
			status = CASE
				WHEN stock + $3 <= 0 THEN $4
				WHEN stock + $3 <= reorder_level THEN $5
				ELSE $6
			END,
			updated_at = now()
		WHERE id = $1 AND user_id = $2 AND stock + $3 >= 0
		RETURNING `+itemColumns+`
	`, itemID, userID, delta,
		domain.StatusOutOfStock, domain.StatusLowStock, domain.StatusInStock)
	item, err := scanItem(row)
	if err == nil {
		return item, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.InventoryItem{}, err
	}
	// Distinguish a missing item from a guard rejection.
	existing, getErr := s.GetItem(ctx, userID, itemID)
	if getErr != nil {
		return domain.InventoryItem{}, getErr
	}
	return domain.InventoryItem{}, fmt.Errorf("%w: %q has %d in stock",
		store.ErrInsufficientStock, existing.Name, existing.Stock)
}

// Sales.

func (s *Store) NextReceiptNumber(ctx context.Context, userID string) (int64, error) {
	var counter int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO receipt_counters (user_id, counter) VALUES ($1, 1)
		ON CONFLICT (user_id) DO UPDATE SET counter = receipt_counters.counter + 1
		RETURNING counter
	`, userID).Scan(&counter)
	return counter, err
}

const saleColumns = `id, user_id, receipt_number, receipt_number_value, items,
	subtotal_cents, discount_cents, tax_cents, total_cents, payment_method,
	cash_amount_cents, change_cents, customer_name, printed, created_at`

func scanSale(row interface{ Scan(...any) error }) (domain.SaleRecord, error) {
	var sale domain.SaleRecord
	var itemsJSON []byte
	err := row.Scan(&sale.ID, &sale.UserID, &sale.ReceiptNumber, &sale.ReceiptNumberValue, &itemsJSON,
		&sale.SubtotalCents, &sale.DiscountCents, &sale.TaxCents, &sale.TotalCents,
		&sale.PaymentMethod, &sale.CashAmountCents, &sale.ChangeCents,
		&sale.CustomerName, &sale.Printed, &sale.CreatedAt)
	if err != nil {
		return domain.SaleRecord{}, err
	}
	if err := json.Unmarshal(itemsJSON, &sale.Items); err != nil {
		return domain.SaleRecord{}, fmt.Errorf("decode sale items: %w", err)
	}
	return sale, nil
}

func (s *Store) CreateSale(ctx context.Context, sale domain.SaleRecord) (domain.SaleRecord, error) {
	if sale.ID == "" || sale.UserID == "" {
		return domain.SaleRecord{}, fmt.Errorf("%w: sale id and user id are required", store.ErrValidation)
	}
	itemsJSON, err := json.Marshal(sale.Items)
	if err != nil {
		return domain.SaleRecord{}, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sales (`+saleColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`, sale.ID, sale.UserID, sale.ReceiptNumber, sale.ReceiptNumberValue, itemsJSON,
		sale.SubtotalCents, sale.DiscountCents, sale.TaxCents, sale.TotalCents,
		sale.PaymentMethod, sale.CashAmountCents, sale.ChangeCents,
		sale.CustomerName, sale.Printed, sale.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.SaleRecord{}, store.ErrDuplicate
		}
		return domain.SaleRecord{}, err
	}
	return sale, nil
}

func (s *Store) GetSale(ctx context.Context, userID, id string) (domain.SaleRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+saleColumns+` FROM sales WHERE id = $1 AND user_id = $2
	`, id, userID)
	sale, err := scanSale(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.SaleRecord{}, store.ErrNotFound
		}
		return domain.SaleRecord{}, err
	}
	return sale, nil
}

func (s *Store) ListSales(ctx context.Context, userID string, f store.SaleFilter) ([]domain.SaleRecord, error) {
	query := `SELECT ` + saleColumns + ` FROM sales WHERE user_id = $1`
	args := []any{userID}
	if !f.From.IsZero() {
		args = append(args, f.From)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if !f.To.IsZero() {
		args = append(args, f.To)
		query += fmt.Sprintf(" AND created_at < $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.SaleRecord, 0, 64)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	return sales, rows.Err()
}

func (s *Store) MarkSalePrinted(ctx context.Context, userID, id string) (domain.SaleRecord, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sales SET printed = TRUE WHERE id = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		return domain.SaleRecord{}, err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return domain.SaleRecord{}, store.ErrNotFound
	}
	return s.GetSale(ctx, userID, id)
}

func (s *Store) DeleteSale(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sales WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Cash drawer ledger.

const entryColumns = `id, user_id, operation, amount_cents, previous_balance_cents,
	balance_cents, reason, reference_id, performed_by, created_at`

func scanEntry(row interface{ Scan(...any) error }) (domain.CashDrawerEntry, error) {
	var e domain.CashDrawerEntry
	err := row.Scan(&e.ID, &e.UserID, &e.Operation, &e.AmountCents,
		&e.PreviousBalanceCents, &e.BalanceCents, &e.Reason, &e.ReferenceID,
		&e.PerformedBy, &e.CreatedAt)
	return e, err
}

func (s *Store) AppendCashDrawerEntry(ctx context.Context, entry domain.CashDrawerEntry) (domain.CashDrawerEntry, error) {
	if entry.ID == "" || entry.UserID == "" {
		return domain.CashDrawerEntry{}, fmt.Errorf("%w: entry id and user id are required", store.ErrValidation)
	}
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return domain.CashDrawerEntry{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var lastBalance int64
	err = tx.QueryRowContext(ctx, `
		SELECT balance_cents FROM cash_drawer_entries
		WHERE user_id = $1 ORDER BY seq DESC LIMIT 1
	`, entry.UserID).Scan(&lastBalance)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return domain.CashDrawerEntry{}, err
	}
	if entry.PreviousBalanceCents != lastBalance {
		return domain.CashDrawerEntry{}, fmt.Errorf("%w: previous balance %d is stale, chain is at %d",
			store.ErrConflict, entry.PreviousBalanceCents, lastBalance)
	}

	entry.BalanceCents = entry.PreviousBalanceCents + entry.AmountCents
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO cash_drawer_entries (`+entryColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, entry.ID, entry.UserID, entry.Operation, entry.AmountCents,
		entry.PreviousBalanceCents, entry.BalanceCents, entry.Reason,
		entry.ReferenceID, entry.PerformedBy, entry.CreatedAt)
	if err != nil {
		if isSerializationFailure(err) {
			return domain.CashDrawerEntry{}, fmt.Errorf("%w: %v", store.ErrConflict, err)
		}
		return domain.CashDrawerEntry{}, err
	}
	if err := tx.Commit(); err != nil {
		if isSerializationFailure(err) {
			return domain.CashDrawerEntry{}, fmt.Errorf("%w: %v", store.ErrConflict, err)
		}
		return domain.CashDrawerEntry{}, err
	}
	return entry, nil
}

func (s *Store) LastCashDrawerEntry(ctx context.Context, userID string) (domain.CashDrawerEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+` FROM cash_drawer_entries
		WHERE user_id = $1 ORDER BY seq DESC LIMIT 1
	`, userID)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.CashDrawerEntry{}, store.ErrNotFound
		}
		return domain.CashDrawerEntry{}, err
	}
	return entry, nil
}

func (s *Store) GetCashDrawerEntry(ctx context.Context, userID, id string) (domain.CashDrawerEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+` FROM cash_drawer_entries
		WHERE id = $1 AND user_id = $2
	`, id, userID)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.CashDrawerEntry{}, store.ErrNotFound
		}
		return domain.CashDrawerEntry{}, err
	}
	return entry, nil
}

func (s *Store) ListCashDrawerEntries(ctx context.Context, userID string, f store.EntryFilter) ([]domain.CashDrawerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM cash_drawer_entries WHERE user_id = $1`
	args := []any{userID}
	if f.Operation != "" {
		args = append(args, f.Operation)
		query += fmt.Sprintf(" AND operation = $%d", len(args))
	}
	if !f.From.IsZero() {
		args = append(args, f.From)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if !f.To.IsZero() {
		args = append(args, f.To)
		query += fmt.Sprintf(" AND created_at < $%d", len(args))
	}
	query += " ORDER BY seq DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.CashDrawerEntry, 0, 64)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Expenses.

const expenseColumns = `id, user_id, category, description, amount_cents,
	payment_method, drawer_entry_id, created_at, updated_at`

func scanExpense(row interface{ Scan(...any) error }) (domain.Expense, error) {
	var e domain.Expense
	err := row.Scan(&e.ID, &e.UserID, &e.Category, &e.Description, &e.AmountCents,
		&e.PaymentMethod, &e.DrawerEntryID, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

func (s *Store) CreateExpense(ctx context.Context, exp domain.Expense) (domain.Expense, error) {
	if exp.ID == "" || exp.UserID == "" {
		return domain.Expense{}, fmt.Errorf("%w: expense id and user id are required", store.ErrValidation)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO expenses (`+expenseColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, exp.ID, exp.UserID, exp.Category, exp.Description, exp.AmountCents,
		exp.PaymentMethod, exp.DrawerEntryID, exp.CreatedAt, exp.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Expense{}, store.ErrDuplicate
		}
		return domain.Expense{}, err
	}
	return exp, nil
}

func (s *Store) GetExpense(ctx context.Context, userID, id string) (domain.Expense, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+expenseColumns+` FROM expenses WHERE id = $1 AND user_id = $2
	`, id, userID)
	exp, err := scanExpense(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Expense{}, store.ErrNotFound
		}
		return domain.Expense{}, err
	}
	return exp, nil
}

func (s *Store) ListExpenses(ctx context.Context, userID string, f store.ExpenseFilter) ([]domain.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE user_id = $1`
	args := []any{userID}
	if f.Category != "" {
		args = append(args, f.Category)
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}
	if !f.From.IsZero() {
		args = append(args, f.From)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if !f.To.IsZero() {
		args = append(args, f.To)
		query += fmt.Sprintf(" AND created_at < $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expenses := make([]domain.Expense, 0, 32)
	for rows.Next() {
		exp, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, exp)
	}
	return expenses, rows.Err()
}

func (s *Store) UpdateExpense(ctx context.Context, exp domain.Expense) (domain.Expense, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE expenses SET category=$3, description=$4, amount_cents=$5,
			payment_method=$6, drawer_entry_id=$7, updated_at=$8
		WHERE id = $1 AND user_id = $2
	`, exp.ID, exp.UserID, exp.Category, exp.Description, exp.AmountCents,
		exp.PaymentMethod, exp.DrawerEntryID, exp.UpdatedAt)
	if err != nil {
		return domain.Expense{}, err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return domain.Expense{}, store.ErrNotFound
	}
	return s.GetExpense(ctx, exp.UserID, exp.ID)
}

func (s *Store) DeleteExpense(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Business profile.

func (s *Store) GetBusinessSettings(ctx context.Context, userID string) (domain.BusinessSettings, error) {
	var settings domain.BusinessSettings
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, business_name, address, phone, receipt_header, receipt_footer, updated_at
		FROM business_settings WHERE user_id = $1
	`, userID).Scan(&settings.UserID, &settings.BusinessName, &settings.Address,
		&settings.Phone, &settings.ReceiptHeader, &settings.ReceiptFooter, &settings.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.BusinessSettings{}, store.ErrNotFound
		}
		return domain.BusinessSettings{}, err
	}
	return settings, nil
}

func (s *Store) SaveBusinessSettings(ctx context.Context, settings domain.BusinessSettings) (domain.BusinessSettings, error) {
	if settings.UserID == "" {
		return domain.BusinessSettings{}, fmt.Errorf("%w: user id is required", store.ErrValidation)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO business_settings (user_id, business_name, address, phone,
			receipt_header, receipt_footer, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (user_id) DO UPDATE SET
			business_name = EXCLUDED.business_name,
			address = EXCLUDED.address,
			phone = EXCLUDED.phone,
			receipt_header = EXCLUDED.receipt_header,
			receipt_footer = EXCLUDED.receipt_footer,
			updated_at = EXCLUDED.updated_at
	`, settings.UserID, settings.BusinessName, settings.Address, settings.Phone,
		settings.ReceiptHeader, settings.ReceiptFooter, settings.UpdatedAt)
	if err != nil {
		return domain.BusinessSettings{}, err
	}
	return settings, nil
}

// Tax.

func (s *Store) GetTaxSettings(ctx context.Context, userID string) (domain.TaxSettings, error) {
	var settings domain.TaxSettings
	var slabsJSON []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, business_type, tax_id_number, income_tax_enabled, zakat_enabled,
			sales_tax_percent, custom_slabs, updated_at
		FROM tax_settings WHERE user_id = $1
	`, userID).Scan(&settings.UserID, &settings.BusinessType, &settings.TaxIDNumber,
		&settings.IncomeTaxEnabled, &settings.ZakatEnabled,
		&settings.SalesTaxPercent, &slabsJSON, &settings.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.TaxSettings{}, store.ErrNotFound
		}
		return domain.TaxSettings{}, err
	}
	if len(slabsJSON) > 0 {
		var slabs []taxcalc.Slab
		if err := json.Unmarshal(slabsJSON, &slabs); err != nil {
			return domain.TaxSettings{}, fmt.Errorf("decode custom slabs: %w", err)
		}
		settings.CustomSlabs = slabs
	}
	return settings, nil
}

func (s *Store) SaveTaxSettings(ctx context.Context, settings domain.TaxSettings) (domain.TaxSettings, error) {
	if settings.UserID == "" {
		return domain.TaxSettings{}, fmt.Errorf("%w: user id is required", store.ErrValidation)
	}
	var slabsJSON any
	if len(settings.CustomSlabs) > 0 {
		payload, err := json.Marshal(settings.CustomSlabs)
		if err != nil {
			return domain.TaxSettings{}, err
		}
		slabsJSON = payload
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tax_settings (user_id, business_type, tax_id_number, income_tax_enabled,
			zakat_enabled, sales_tax_percent, custom_slabs, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (user_id) DO UPDATE SET
			business_type = EXCLUDED.business_type,
			tax_id_number = EXCLUDED.tax_id_number,
			income_tax_enabled = EXCLUDED.income_tax_enabled,
			zakat_enabled = EXCLUDED.zakat_enabled,
			sales_tax_percent = EXCLUDED.sales_tax_percent,
			custom_slabs = EXCLUDED.custom_slabs,
			updated_at = EXCLUDED.updated_at
	`, settings.UserID, settings.BusinessType, settings.TaxIDNumber,
		settings.IncomeTaxEnabled, settings.ZakatEnabled,
		settings.SalesTaxPercent, slabsJSON, settings.UpdatedAt)
	if err != nil {
		return domain.TaxSettings{}, err
	}
	return settings, nil
}

const taxRecordColumns = `id, user_id, type, period, income_cents, tax_due_cents,
	paid_cents, status, drawer_entry_id, notes, paid_at, created_at, updated_at`

func scanTaxRecord(row interface{ Scan(...any) error }) (domain.TaxRecord, error) {
	var rec domain.TaxRecord
	var paidAt sql.NullTime
	err := row.Scan(&rec.ID, &rec.UserID, &rec.Type, &rec.Period, &rec.IncomeCents,
		&rec.TaxDueCents, &rec.PaidCents, &rec.Status, &rec.DrawerEntryID,
		&rec.Notes, &paidAt, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return domain.TaxRecord{}, err
	}
	if paidAt.Valid {
		t := paidAt.Time
		rec.PaidAt = &t
	}
	return rec, nil
}

func (s *Store) CreateTaxRecord(ctx context.Context, rec domain.TaxRecord) (domain.TaxRecord, error) {
	if rec.ID == "" || rec.UserID == "" {
		return domain.TaxRecord{}, fmt.Errorf("%w: tax record id and user id are required", store.ErrValidation)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tax_records (`+taxRecordColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, rec.ID, rec.UserID, rec.Type, rec.Period, rec.IncomeCents, rec.TaxDueCents,
		rec.PaidCents, rec.Status, rec.DrawerEntryID, rec.Notes, nullTime(rec.PaidAt),
		rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.TaxRecord{}, store.ErrDuplicate
		}
		return domain.TaxRecord{}, err
	}
	return rec, nil
}

func (s *Store) GetTaxRecord(ctx context.Context, userID, id string) (domain.TaxRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+taxRecordColumns+` FROM tax_records WHERE id = $1 AND user_id = $2
	`, id, userID)
	rec, err := scanTaxRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.TaxRecord{}, store.ErrNotFound
		}
		return domain.TaxRecord{}, err
	}
	return rec, nil
}

func (s *Store) ListTaxRecords(ctx context.Context, userID string, f store.TaxRecordFilter) ([]domain.TaxRecord, error) {
	query := `SELECT ` + taxRecordColumns + ` FROM tax_records WHERE user_id = $1`
	args := []any{userID}
	if f.Type != "" {
		args = append(args, f.Type)
		query += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]domain.TaxRecord, 0, 32)
	for rows.Next() {
		rec, err := scanTaxRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *Store) UpdateTaxRecord(ctx context.Context, rec domain.TaxRecord) (domain.TaxRecord, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tax_records SET type=$3, period=$4, income_cents=$5, tax_due_cents=$6,
			paid_cents=$7, status=$8, drawer_entry_id=$9, notes=$10, paid_at=$11, updated_at=$12
		WHERE id = $1 AND user_id = $2
	`, rec.ID, rec.UserID, rec.Type, rec.Period, rec.IncomeCents, rec.TaxDueCents,
		rec.PaidCents, rec.Status, rec.DrawerEntryID, rec.Notes, nullTime(rec.PaidAt), rec.UpdatedAt)
	if err != nil {
		return domain.TaxRecord{}, err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return domain.TaxRecord{}, store.ErrNotFound
	}
	return s.GetTaxRecord(ctx, rec.UserID, rec.ID)
}

func (s *Store) DeleteTaxRecord(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tax_records WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Suppliers.

const supplierColumns = `id, user_id, name, contact, email, phone, address,
	category, status, total_orders, last_order_at, created_at, updated_at`

func scanSupplier(row interface{ Scan(...any) error }) (domain.Supplier, error) {
	var sup domain.Supplier
	var lastOrder sql.NullTime
	err := row.Scan(&sup.ID, &sup.UserID, &sup.Name, &sup.Contact, &sup.Email,
		&sup.Phone, &sup.Address, &sup.Category, &sup.Status,
		&sup.TotalOrders, &lastOrder, &sup.CreatedAt, &sup.UpdatedAt)
	if err != nil {
		return domain.Supplier{}, err
	}
	if lastOrder.Valid {
		t := lastOrder.Time
		sup.LastOrderAt = &t
	}
	return sup, nil
}

func (s *Store) CreateSupplier(ctx context.Context, sup domain.Supplier) (domain.Supplier, error) {
	if sup.ID == "" || sup.UserID == "" {
		return domain.Supplier{}, fmt.Errorf("%w: supplier id and user id are required", store.ErrValidation)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO suppliers (`+supplierColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, sup.ID, sup.UserID, sup.Name, sup.Contact, sup.Email, sup.Phone, sup.Address,
		sup.Category, sup.Status, sup.TotalOrders, nullTime(sup.LastOrderAt),
		sup.CreatedAt, sup.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Supplier{}, store.ErrDuplicate
		}
		return domain.Supplier{}, err
	}
	return sup, nil
}

func (s *Store) GetSupplier(ctx context.Context, userID, id string) (domain.Supplier, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+supplierColumns+` FROM suppliers WHERE id = $1 AND user_id = $2
	`, id, userID)
	sup, err := scanSupplier(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Supplier{}, store.ErrNotFound
		}
		return domain.Supplier{}, err
	}
	return sup, nil
}

func (s *Store) ListSuppliers(ctx context.Context, userID string) ([]domain.Supplier, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+supplierColumns+` FROM suppliers WHERE user_id = $1 ORDER BY name
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	suppliers := make([]domain.Supplier, 0, 16)
	for rows.Next() {
		sup, err := scanSupplier(rows)
		if err != nil {
			return nil, err
		}
		suppliers = append(suppliers, sup)
	}
	return suppliers, rows.Err()
}

func (s *Store) UpdateSupplier(ctx context.Context, sup domain.Supplier) (domain.Supplier, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE suppliers SET name=$3, contact=$4, email=$5, phone=$6, address=$7,
			category=$8, status=$9, total_orders=$10, last_order_at=$11, updated_at=$12
		WHERE id = $1 AND user_id = $2
	`, sup.ID, sup.UserID, sup.Name, sup.Contact, sup.Email, sup.Phone, sup.Address,
		sup.Category, sup.Status, sup.TotalOrders, nullTime(sup.LastOrderAt), sup.UpdatedAt)
	if err != nil {
		return domain.Supplier{}, err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return domain.Supplier{}, store.ErrNotFound
	}
	return s.GetSupplier(ctx, sup.UserID, sup.ID)
}

func (s *Store) DeleteSupplier(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM suppliers WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// User accounts.

const userColumns = `id, username, password_hash, display_name, role, owner_id, active, created_at`

func scanUser(row interface{ Scan(...any) error }) (domain.UserAccount, error) {
	var u domain.UserAccount
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.DisplayName,
		&u.Role, &u.OwnerID, &u.Active, &u.CreatedAt)
	return u, err
}

func (s *Store) CreateUser(ctx context.Context, u domain.UserAccount) (domain.UserAccount, error) {
	if u.ID == "" || u.Username == "" {
		return domain.UserAccount{}, fmt.Errorf("%w: user id and username are required", store.ErrValidation)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, u.ID, u.Username, u.PasswordHash, u.DisplayName, u.Role, u.OwnerID, u.Active, u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.UserAccount{}, fmt.Errorf("%w: username %q taken", store.ErrDuplicate, u.Username)
		}
		return domain.UserAccount{}, err
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (domain.UserAccount, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.UserAccount{}, store.ErrNotFound
		}
		return domain.UserAccount{}, err
	}
	return u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (domain.UserAccount, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE lower(username) = lower($1)
	`, username)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.UserAccount{}, store.ErrNotFound
		}
		return domain.UserAccount{}, err
	}
	return u, nil
}

func (s *Store) ListCashiers(ctx context.Context, ownerID string) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE role = $1 AND owner_id = $2 ORDER BY username
	`, domain.RoleCashier, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) UpdateUser(ctx context.Context, u domain.UserAccount) (domain.UserAccount, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET username=$2, password_hash=$3, display_name=$4,
			role=$5, owner_id=$6, active=$7
		WHERE id = $1
	`, u.ID, u.Username, u.PasswordHash, u.DisplayName, u.Role, u.OwnerID, u.Active)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.UserAccount{}, fmt.Errorf("%w: username %q taken", store.ErrDuplicate, u.Username)
		}
		return domain.UserAccount{}, err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return domain.UserAccount{}, store.ErrNotFound
	}
	return s.GetUser(ctx, u.ID)
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Helpers.

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001"
	}
	return false
}

func nullTime(val *time.Time) any {
	if val == nil {
		return nil
	}
	return *val
}
