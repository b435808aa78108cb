// Package store defines the persistence contract for the POS backend.
package store

import (
	"context"
	"errors"
	"time"

	"dukaanpos/backend/internal/domain"
)

// Sentinel errors shared by every Repository implementation. Callers
// match them with errors.Is.
var (
	ErrNotFound          = errors.New("store: record not found")
	ErrDuplicate         = errors.New("store: duplicate record")
	ErrValidation        = errors.New("store: validation failed")
	ErrInsufficientStock = errors.New("store: insufficient stock")
	ErrInsufficientFunds = errors.New("store: insufficient drawer funds")
	ErrConflict          = errors.New("store: concurrent modification")
)

// ItemFilter narrows ListItems. Zero values mean no constraint.
type ItemFilter struct {
	Search   string
	Category string
	Status   string
	Limit    int
}

// SaleFilter narrows ListSales.
type SaleFilter struct {
	From  time.Time
	To    time.Time
	Limit int
}

// EntryFilter narrows ListCashDrawerEntries.
type EntryFilter struct {
	Operation string
	From      time.Time
	To        time.Time
	Limit     int
}

// ExpenseFilter narrows ListExpenses.
type ExpenseFilter struct {
	Category string
	From     time.Time
	To       time.Time
	Limit    int
}

// TaxRecordFilter narrows ListTaxRecords.
type TaxRecordFilter struct {
	Type   string
	Status string
	Limit  int
}

// Repository is the persistence surface used by the service layer.
// All reads and writes are scoped to the owning tenant's userID.
type Repository interface {
	// Inventory.
	CreateItem(ctx context.Context, item domain.InventoryItem) (domain.InventoryItem, error)
	GetItem(ctx context.Context, userID, id string) (domain.InventoryItem, error)
	ListItems(ctx context.Context, userID string, f ItemFilter) ([]domain.InventoryItem, error)
	UpdateItem(ctx context.Context, item domain.InventoryItem) (domain.InventoryItem, error)
	DeleteItem(ctx context.Context, userID, id string) error
	// AdjustStock changes an item's stock by delta in one atomic step.
	// A negative delta that would take stock below zero fails with
	// ErrInsufficientStock and leaves the item untouched.
	AdjustStock(ctx context.Context, userID, itemID string, delta int64) (domain.InventoryItem, error)

	// Sales.
	// NextReceiptNumber atomically increments and returns the tenant's
	// receipt counter. Numbers are never reused even if the sale that
	// consumed one is later rolled back.
	NextReceiptNumber(ctx context.Context, userID string) (int64, error)
	CreateSale(ctx context.Context, sale domain.SaleRecord) (domain.SaleRecord, error)
	GetSale(ctx context.Context, userID, id string) (domain.SaleRecord, error)
	ListSales(ctx context.Context, userID string, f SaleFilter) ([]domain.SaleRecord, error)
	MarkSalePrinted(ctx context.Context, userID, id string) (domain.SaleRecord, error)
	DeleteSale(ctx context.Context, userID, id string) error

	// Cash drawer ledger.
	// AppendCashDrawerEntry appends one entry to the tenant's chain.
	// The entry's PreviousBalanceCents must equal the balance of the
	// current last entry (or zero for an empty chain); a stale value
	// fails with ErrConflict so the caller can recompute and retry.
	AppendCashDrawerEntry(ctx context.Context, entry domain.CashDrawerEntry) (domain.CashDrawerEntry, error)
	LastCashDrawerEntry(ctx context.Context, userID string) (domain.CashDrawerEntry, error)
	GetCashDrawerEntry(ctx context.Context, userID, id string) (domain.CashDrawerEntry, error)
	ListCashDrawerEntries(ctx context.Context, userID string, f EntryFilter) ([]domain.CashDrawerEntry, error)

	// Expenses.
	CreateExpense(ctx context.Context, exp domain.Expense) (domain.Expense, error)
	GetExpense(ctx context.Context, userID, id string) (domain.Expense, error)
	ListExpenses(ctx context.Context, userID string, f ExpenseFilter) ([]domain.Expense, error)
	UpdateExpense(ctx context.Context, exp domain.Expense) (domain.Expense, error)
	DeleteExpense(ctx context.Context, userID, id string) error

	// Business profile.
	GetBusinessSettings(ctx context.Context, userID string) (domain.BusinessSettings, error)
	SaveBusinessSettings(ctx context.Context, settings domain.BusinessSettings) (domain.BusinessSettings, error)

	// Tax.
	GetTaxSettings(ctx context.Context, userID string) (domain.TaxSettings, error)
	SaveTaxSettings(ctx context.Context, settings domain.TaxSettings) (domain.TaxSettings, error)
	CreateTaxRecord(ctx context.Context, rec domain.TaxRecord) (domain.TaxRecord, error)
	GetTaxRecord(ctx context.Context, userID, id string) (domain.TaxRecord, error)
	ListTaxRecords(ctx context.Context, userID string, f TaxRecordFilter) ([]domain.TaxRecord, error)
	UpdateTaxRecord(ctx context.Context, rec domain.TaxRecord) (domain.TaxRecord, error)
	DeleteTaxRecord(ctx context.Context, userID, id string) error

	// Suppliers.
	CreateSupplier(ctx context.Context, sup domain.Supplier) (domain.Supplier, error)
	GetSupplier(ctx context.Context, userID, id string) (domain.Supplier, error)
	ListSuppliers(ctx context.Context, userID string) ([]domain.Supplier, error)
	UpdateSupplier(ctx context.Context, sup domain.Supplier) (domain.Supplier, error)
	DeleteSupplier(ctx context.Context, userID, id string) error

	// User accounts.
	CreateUser(ctx context.Context, u domain.UserAccount) (domain.UserAccount, error)
	GetUser(ctx context.Context, id string) (domain.UserAccount, error)
	GetUserByUsername(ctx context.Context, username string) (domain.UserAccount, error)
	ListCashiers(ctx context.Context, ownerID string) ([]domain.UserAccount, error)
	UpdateUser(ctx context.Context, u domain.UserAccount) (domain.UserAccount, error)
	DeleteUser(ctx context.Context, id string) error
}
