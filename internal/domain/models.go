// Package domain holds the persisted record types shared by the store,
// service, and HTTP layers. All monetary values are integer cents.
package domain

import (
	"time"

	"dukaanpos/backend/internal/taxcalc"
)

// Stock status values derived from the stock level, never stored as input.
const (
	StatusInStock    = "in_stock"
	StatusLowStock   = "low_stock"
	StatusOutOfStock = "out_of_stock"
)

// DeriveStockStatus maps a stock level to its status. A stock level equal
// to the reorder level already counts as low.
func DeriveStockStatus(stock, reorderLevel int64) string {
	switch {
	case stock <= 0:
		return StatusOutOfStock
	case stock <= reorderLevel:
		return StatusLowStock
	default:
		return StatusInStock
	}
}

// Cash drawer operations. Every drawer mutation is one of these.
const (
	DrawerAdd            = "add"
	DrawerRemove         = "remove"
	DrawerCount          = "count"
	DrawerSale           = "sale"
	DrawerExpense        = "expense"
	DrawerInitialization = "initialization"
	DrawerClose          = "close"
)

// ValidDrawerOperation reports whether op names a known drawer operation.
func ValidDrawerOperation(op string) bool {
	switch op {
	case DrawerAdd, DrawerRemove, DrawerCount, DrawerSale, DrawerExpense, DrawerInitialization, DrawerClose:
		return true
	}
	return false
}

// Payment methods accepted on sales and expenses.
const (
	PaymentCash   = "cash"
	PaymentCard   = "card"
	PaymentMobile = "mobile"
)

// ValidPaymentMethod reports whether method is accepted.
func ValidPaymentMethod(method string) bool {
	switch method {
	case PaymentCash, PaymentCard, PaymentMobile:
		return true
	}
	return false
}

// User roles.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleCashier = "cashier"
)

// Supplier status.
const (
	SupplierActive   = "active"
	SupplierInactive = "inactive"
)

// Tax record types.
const (
	TaxTypeIncome = "income"
	TaxTypeZakat  = "zakat"
)

// Tax record payment status.
const (
	TaxStatusPending       = "pending"
	TaxStatusPartiallyPaid = "partially_paid"
	TaxStatusPaid          = "paid"
)

// InventoryItem is one catalog entry owned by a tenant user.
type InventoryItem struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	Name         string    `json:"name"`
	SKU          string    `json:"sku,omitempty"`
	Category     string    `json:"category,omitempty"`
	Description  string    `json:"description,omitempty"`
	Location     string    `json:"location,omitempty"`
	PriceCents   int64     `json:"priceCents"`
	CostCents    int64     `json:"costCents,omitempty"`
	Stock        int64     `json:"stock"`
	ReorderLevel int64     `json:"reorderLevel"`
	Supplier     string    `json:"supplier,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// SaleLineItem snapshots one sold line. UnitPriceCents is the catalog
// price at the moment of sale, not whatever the client sent.
type SaleLineItem struct {
	ItemID         string `json:"itemId"`
	Name           string `json:"name"`
	SKU            string `json:"sku,omitempty"`
	Quantity       int64  `json:"quantity"`
	UnitPriceCents int64  `json:"unitPriceCents"`
	TotalCents     int64  `json:"totalCents"`
}

// SaleRecord is a completed sale.
type SaleRecord struct {
	ID                 string         `json:"id"`
	UserID             string         `json:"userId"`
	ReceiptNumber      string         `json:"receiptNumber"`
	ReceiptNumberValue int64          `json:"receiptNumberValue"`
	Items              []SaleLineItem `json:"items"`
	SubtotalCents      int64          `json:"subtotalCents"`
	DiscountCents      int64          `json:"discountCents"`
	TaxCents           int64          `json:"taxCents"`
	TotalCents         int64          `json:"totalCents"`
	PaymentMethod      string         `json:"paymentMethod"`
	CashAmountCents    int64          `json:"cashAmountCents,omitempty"`
	ChangeCents        int64          `json:"changeCents,omitempty"`
	CustomerName       string         `json:"customerName,omitempty"`
	Printed            bool           `json:"printed"`
	CreatedAt          time.Time      `json:"createdAt"`
}

// CashDrawerEntry is one link in a tenant's drawer ledger chain. The
// invariant Balance = PreviousBalance + Amount holds for every entry,
// and PreviousBalance equals the Balance of the entry before it.
// Outflows carry negative amounts; count entries store the observed
// minus previous delta so the chain arithmetic never special-cases.
type CashDrawerEntry struct {
	ID                   string    `json:"id"`
	UserID               string    `json:"userId"`
	Operation            string    `json:"operation"`
	AmountCents          int64     `json:"amountCents"`
	PreviousBalanceCents int64     `json:"previousBalanceCents"`
	BalanceCents         int64     `json:"balanceCents"`
	Reason               string    `json:"reason,omitempty"`
	ReferenceID          string    `json:"referenceId,omitempty"`
	PerformedBy          string    `json:"performedBy,omitempty"`
	CreatedAt            time.Time `json:"createdAt"`
}

// Expense is a recorded business expense. Cash expenses link to the
// drawer entry that paid them via DrawerEntryID.
type Expense struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	Category      string    `json:"category"`
	Description   string    `json:"description,omitempty"`
	AmountCents   int64     `json:"amountCents"`
	PaymentMethod string    `json:"paymentMethod"`
	DrawerEntryID string    `json:"drawerEntryId,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// BusinessSettings is the per-tenant business profile singleton. Its
// name and header/footer lines appear on printed receipts.
type BusinessSettings struct {
	UserID        string    `json:"userId"`
	BusinessName  string    `json:"businessName"`
	Address       string    `json:"address,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	ReceiptHeader string    `json:"receiptHeader,omitempty"`
	ReceiptFooter string    `json:"receiptFooter,omitempty"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// TaxSettings is the per-tenant tax configuration singleton. When
// CustomSlabs is empty the default income tax slabs apply.
type TaxSettings struct {
	UserID           string         `json:"userId"`
	BusinessType     string         `json:"businessType,omitempty"`
	TaxIDNumber      string         `json:"taxIdNumber,omitempty"`
	IncomeTaxEnabled bool           `json:"incomeTaxEnabled"`
	ZakatEnabled     bool           `json:"zakatEnabled"`
	SalesTaxPercent  float64        `json:"salesTaxPercent"`
	CustomSlabs      []taxcalc.Slab `json:"customSlabs,omitempty"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

// TaxRecord is one assessed tax obligation.
type TaxRecord struct {
	ID            string     `json:"id"`
	UserID        string     `json:"userId"`
	Type          string     `json:"type"`
	Period        string     `json:"period,omitempty"`
	IncomeCents   int64      `json:"incomeCents"`
	TaxDueCents   int64      `json:"taxDueCents"`
	PaidCents     int64      `json:"paidCents"`
	Status        string     `json:"status"`
	DrawerEntryID string     `json:"drawerEntryId,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	PaidAt        *time.Time `json:"paidAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Supplier is a vendor the tenant restocks from. TotalOrders and
// LastOrderAt are maintained by the service when stock arrives.
type Supplier struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	Name        string     `json:"name"`
	Contact     string     `json:"contact,omitempty"`
	Email       string     `json:"email,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	Address     string     `json:"address,omitempty"`
	Category    string     `json:"category,omitempty"`
	Status      string     `json:"status"`
	TotalOrders int64      `json:"totalOrders"`
	LastOrderAt *time.Time `json:"lastOrderAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// UserAccount is a login principal. Cashier accounts are owned by the
// admin tenant that created them.
type UserAccount struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	DisplayName  string    `json:"displayName,omitempty"`
	Role         string    `json:"role"`
	OwnerID      string    `json:"ownerId,omitempty"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"createdAt"`
}

// DailySummary aggregates one tenant's activity for the current day.
type DailySummary struct {
	Date               string           `json:"date"`
	SalesCount         int64            `json:"salesCount"`
	SalesTotalCents    int64            `json:"salesTotalCents"`
	ItemsSold          int64            `json:"itemsSold"`
	ExpensesTotalCents int64            `json:"expensesTotalCents"`
	DrawerBalanceCents int64            `json:"drawerBalanceCents"`
	AverageSaleCents   int64            `json:"averageSaleCents"`
	ProfitCents        int64            `json:"profitCents"`
	TopItems           []TopItem        `json:"topItems,omitempty"`
	HourlyBuckets      []HourBucket     `json:"hourlyBuckets,omitempty"`
	DrawerOpsCents     map[string]int64 `json:"drawerOpsCents,omitempty"`
}

// HourBucket is one hour of sales activity within a daily summary.
type HourBucket struct {
	Hour       int   `json:"hour"`
	SalesCount int64 `json:"salesCount"`
	TotalCents int64 `json:"totalCents"`
}

// TopItem is one best-selling line in a summary.
type TopItem struct {
	ItemID       string `json:"itemId"`
	Name         string `json:"name"`
	QuantitySold int64  `json:"quantitySold"`
	RevenueCents int64  `json:"revenueCents"`
}

// InventoryStats is the aggregate view behind the inventory stats
// endpoint. Values are derived on read, never stored.
type InventoryStats struct {
	ItemCount        int64 `json:"itemCount"`
	LowStockCount    int64 `json:"lowStockCount"`
	OutOfStockCount  int64 `json:"outOfStockCount"`
	StockUnits       int64 `json:"stockUnits"`
	RetailValueCents int64 `json:"retailValueCents"`
	CostValueCents   int64 `json:"costValueCents"`
}

// DashboardSummary is the aggregate view behind the dashboard endpoint.
type DashboardSummary struct {
	InventoryCount      int64 `json:"inventoryCount"`
	LowStockCount       int64 `json:"lowStockCount"`
	OutOfStockCount     int64 `json:"outOfStockCount"`
	InventoryValueCents int64 `json:"inventoryValueCents"`
	SalesCount          int64 `json:"salesCount"`
	SalesTotalCents     int64 `json:"salesTotalCents"`
	ExpensesTotalCents  int64 `json:"expensesTotalCents"`
	DrawerBalanceCents  int64 `json:"drawerBalanceCents"`
	PendingTaxCents     int64 `json:"pendingTaxCents"`
	SupplierCount       int64 `json:"supplierCount"`
}

// DrawerSummary aggregates a tenant's ledger by operation.
type DrawerSummary struct {
	BalanceCents int64            `json:"balanceCents"`
	EntryCount   int64            `json:"entryCount"`
	ByOperation  map[string]int64 `json:"byOperation"`
	FirstEntryAt *time.Time       `json:"firstEntryAt,omitempty"`
	LastEntryAt  *time.Time       `json:"lastEntryAt,omitempty"`
}
