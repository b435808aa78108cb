// Package service implements the business rules on top of the store.
// Monetary amounts are integer cents throughout.
package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"dukaanpos/backend/internal/cache"
	"dukaanpos/backend/internal/domain"
	"dukaanpos/backend/internal/store"
	"dukaanpos/backend/internal/xid"
)

// Identifier prefixes per record kind.
const (
	prefixItem     = "ITEM"
	prefixSale     = "SALE"
	prefixDrawer   = "CD"
	prefixExpense  = "EXP"
	prefixTax      = "TAX"
	prefixSupplier = "SUP"
)

// Actor identifies the authenticated principal for a request. TenantID
// is the data owner: for cashiers it is the admin account that created
// them, for admins it equals UserID.
type Actor struct {
	UserID   string
	TenantID string
	Role     string
	Name     string
}

type actorKey struct{}

// WithActor attaches the request principal to the context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the principal attached by WithActor.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}

// Service coordinates the store, the report cache, and per-tenant
// serialization of ledger mutations.
type Service struct {
	repo  store.Repository
	cache cache.ReportCache
	now   func() time.Time

	tenantMu sync.Map // userID -> *sync.Mutex
}

// New wires a Service. Pass cache.Noop{} when no Redis is configured.
func New(repo store.Repository, reportCache cache.ReportCache) *Service {
	return &Service{
		repo:  repo,
		cache: reportCache,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// lockTenant serializes ledger-touching mutations for one tenant.
// Callers must invoke the returned unlock.
func (s *Service) lockTenant(userID string) func() {
	muIface, _ := s.tenantMu.LoadOrStore(userID, &sync.Mutex{})
	mu := muIface.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *Service) logAudit(ctx context.Context, action, detail string) {
	actor, _ := ActorFromContext(ctx)
	who := actor.UserID
	if who == "" {
		who = "system"
	}
	log.Printf("[service] audit actor=%s action=%s %s", who, action, detail)
}

func (s *Service) invalidateReports(ctx context.Context, userID string) {
	s.cache.Invalidate(ctx,
		cache.Key(userID, reportToday),
		cache.Key(userID, reportDashboard),
	)
}

func validationErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", store.ErrValidation, fmt.Sprintf(format, args...))
}

// Inventory.

// CreateItemInput carries a new catalog entry. Status is derived, never
// accepted from the caller.
type CreateItemInput struct {
	Name         string
	SKU          string
	Category     string
	Description  string
	Location     string
	PriceCents   int64
	CostCents    int64
	Stock        int64
	ReorderLevel int64
	Supplier     string
}

func (in CreateItemInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return validationErr("item name is required")
	}
	if in.PriceCents < 0 || in.CostCents < 0 {
		return validationErr("prices cannot be negative")
	}
	if in.Stock < 0 {
		return validationErr("stock cannot be negative")
	}
	if in.ReorderLevel < 0 {
		return validationErr("reorder level cannot be negative")
	}
	return nil
}

func (s *Service) CreateItem(ctx context.Context, userID string, in CreateItemInput) (domain.InventoryItem, error) {
	if err := in.validate(); err != nil {
		return domain.InventoryItem{}, err
	}
	now := s.now()
	item := domain.InventoryItem{
		ID:           xid.New(prefixItem),
		UserID:       userID,
		Name:         strings.TrimSpace(in.Name),
		SKU:          strings.TrimSpace(in.SKU),
		Category:     strings.TrimSpace(in.Category),
		Description:  strings.TrimSpace(in.Description),
		Location:     strings.TrimSpace(in.Location),
		PriceCents:   in.PriceCents,
		CostCents:    in.CostCents,
		Stock:        in.Stock,
		ReorderLevel: in.ReorderLevel,
		Supplier:     strings.TrimSpace(in.Supplier),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	created, err := s.repo.CreateItem(ctx, item)
	if err != nil {
		return domain.InventoryItem{}, err
	}
	s.logAudit(ctx, "item.create", "id="+created.ID)
	s.invalidateReports(ctx, userID)
	return created, nil
}

func (s *Service) Item(ctx context.Context, userID, id string) (domain.InventoryItem, error) {
	return s.repo.GetItem(ctx, userID, id)
}

func (s *Service) ListItems(ctx context.Context, userID string, f store.ItemFilter) ([]domain.InventoryItem, error) {
	return s.repo.ListItems(ctx, userID, f)
}

// UpdateItemInput updates mutable item fields. Nil fields are left as is.
type UpdateItemInput struct {
	Name         *string
	SKU          *string
	Category     *string
	Description  *string
	Location     *string
	PriceCents   *int64
	CostCents    *int64
	Stock        *int64
	ReorderLevel *int64
	Supplier     *string
}

func (s *Service) UpdateItem(ctx context.Context, userID, id string, in UpdateItemInput) (domain.InventoryItem, error) {
	item, err := s.repo.GetItem(ctx, userID, id)
	if err != nil {
		return domain.InventoryItem{}, err
	}
	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return domain.InventoryItem{}, validationErr("item name cannot be empty")
		}
		item.Name = strings.TrimSpace(*in.Name)
	}
	if in.SKU != nil {
		item.SKU = strings.TrimSpace(*in.SKU)
	}
	if in.Category != nil {
		item.Category = strings.TrimSpace(*in.Category)
	}
	if in.Description != nil {
		item.Description = strings.TrimSpace(*in.Description)
	}
	if in.Location != nil {
		item.Location = strings.TrimSpace(*in.Location)
	}
	if in.PriceCents != nil {
		if *in.PriceCents < 0 {
			return domain.InventoryItem{}, validationErr("price cannot be negative")
		}
		item.PriceCents = *in.PriceCents
	}
	if in.CostCents != nil {
		if *in.CostCents < 0 {
			return domain.InventoryItem{}, validationErr("cost cannot be negative")
		}
		item.CostCents = *in.CostCents
	}
	if in.Stock != nil {
		if *in.Stock < 0 {
			return domain.InventoryItem{}, validationErr("stock cannot be negative")
		}
		item.Stock = *in.Stock
	}
	if in.ReorderLevel != nil {
		if *in.ReorderLevel < 0 {
			return domain.InventoryItem{}, validationErr("reorder level cannot be negative")
		}
		item.ReorderLevel = *in.ReorderLevel
	}
	if in.Supplier != nil {
		item.Supplier = strings.TrimSpace(*in.Supplier)
	}
	item.UpdatedAt = s.now()
	updated, err := s.repo.UpdateItem(ctx, item)
	if err != nil {
		return domain.InventoryItem{}, err
	}
	s.logAudit(ctx, "item.update", "id="+id)
	s.invalidateReports(ctx, userID)
	return updated, nil
}

func (s *Service) DeleteItem(ctx context.Context, userID, id string) error {
	if err := s.repo.DeleteItem(ctx, userID, id); err != nil {
		return err
	}
	s.logAudit(ctx, "item.delete", "id="+id)
	s.invalidateReports(ctx, userID)
	return nil
}

// RestockItem adds quantity to an item's stock. When supplierID is set
// the supplier's order counters advance as well.
func (s *Service) RestockItem(ctx context.Context, userID, itemID string, quantity int64, supplierID string) (domain.InventoryItem, error) {
	if quantity <= 0 {
		return domain.InventoryItem{}, validationErr("restock quantity must be positive")
	}
	item, err := s.repo.AdjustStock(ctx, userID, itemID, quantity)
	if err != nil {
		return domain.InventoryItem{}, err
	}
	if supplierID != "" {
		sup, err := s.repo.GetSupplier(ctx, userID, supplierID)
		if err != nil {
			log.Printf("[service] WARN: restock %s: supplier %s: %v", itemID, supplierID, err)
		} else {
			now := s.now()
			sup.TotalOrders++
			sup.LastOrderAt = &now
			sup.UpdatedAt = now
			if _, err := s.repo.UpdateSupplier(ctx, sup); err != nil {
				log.Printf("[service] WARN: restock %s: update supplier %s: %v", itemID, supplierID, err)
			}
		}
	}
	s.logAudit(ctx, "item.restock", fmt.Sprintf("id=%s qty=%d", itemID, quantity))
	s.invalidateReports(ctx, userID)
	return item, nil
}

// LowStockItems lists items at or below their reorder level.
func (s *Service) LowStockItems(ctx context.Context, userID string) ([]domain.InventoryItem, error) {
	low, err := s.repo.ListItems(ctx, userID, store.ItemFilter{Status: domain.StatusLowStock})
	if err != nil {
		return nil, err
	}
	out, err := s.repo.ListItems(ctx, userID, store.ItemFilter{Status: domain.StatusOutOfStock})
	if err != nil {
		return nil, err
	}
	return append(low, out...), nil
}

// ItemCategories lists the distinct categories in use, sorted.
func (s *Service) ItemCategories(ctx context.Context, userID string) ([]string, error) {
	items, err := s.repo.ListItems(ctx, userID, store.ItemFilter{})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	categories := make([]string, 0, 16)
	for _, item := range items {
		if item.Category == "" || seen[item.Category] {
			continue
		}
		seen[item.Category] = true
		categories = append(categories, item.Category)
	}
	sort.Strings(categories)
	return categories, nil
}

// InventoryStats aggregates the whole catalog for the stats endpoint.
func (s *Service) InventoryStats(ctx context.Context, userID string) (domain.InventoryStats, error) {
	items, err := s.repo.ListItems(ctx, userID, store.ItemFilter{})
	if err != nil {
		return domain.InventoryStats{}, err
	}
	var stats domain.InventoryStats
	for _, item := range items {
		stats.ItemCount++
		stats.StockUnits += item.Stock
		stats.RetailValueCents += item.PriceCents * item.Stock
		stats.CostValueCents += item.CostCents * item.Stock
		switch item.Status {
		case domain.StatusLowStock:
			stats.LowStockCount++
		case domain.StatusOutOfStock:
			stats.OutOfStockCount++
		}
	}
	return stats, nil
}

// Suppliers.

type SupplierInput struct {
	Name     string
	Contact  string
	Email    string
	Phone    string
	Address  string
	Category string
	Status   string
}

func (in SupplierInput) status() (string, error) {
	switch in.Status {
	case "":
		return domain.SupplierActive, nil
	case domain.SupplierActive, domain.SupplierInactive:
		return in.Status, nil
	}
	return "", validationErr("unknown supplier status %q", in.Status)
}

func (s *Service) CreateSupplier(ctx context.Context, userID string, in SupplierInput) (domain.Supplier, error) {
	if strings.TrimSpace(in.Name) == "" {
		return domain.Supplier{}, validationErr("supplier name is required")
	}
	status, err := in.status()
	if err != nil {
		return domain.Supplier{}, err
	}
	now := s.now()
	sup := domain.Supplier{
		ID:        xid.New(prefixSupplier),
		UserID:    userID,
		Name:      strings.TrimSpace(in.Name),
		Contact:   strings.TrimSpace(in.Contact),
		Email:     strings.TrimSpace(in.Email),
		Phone:     strings.TrimSpace(in.Phone),
		Address:   strings.TrimSpace(in.Address),
		Category:  strings.TrimSpace(in.Category),
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	created, err := s.repo.CreateSupplier(ctx, sup)
	if err != nil {
		return domain.Supplier{}, err
	}
	s.logAudit(ctx, "supplier.create", "id="+created.ID)
	return created, nil
}

func (s *Service) Supplier(ctx context.Context, userID, id string) (domain.Supplier, error) {
	return s.repo.GetSupplier(ctx, userID, id)
}

func (s *Service) ListSuppliers(ctx context.Context, userID string) ([]domain.Supplier, error) {
	return s.repo.ListSuppliers(ctx, userID)
}

func (s *Service) UpdateSupplier(ctx context.Context, userID, id string, in SupplierInput) (domain.Supplier, error) {
	sup, err := s.repo.GetSupplier(ctx, userID, id)
	if err != nil {
		return domain.Supplier{}, err
	}
	if strings.TrimSpace(in.Name) == "" {
		return domain.Supplier{}, validationErr("supplier name is required")
	}
	status, err := in.status()
	if err != nil {
		return domain.Supplier{}, err
	}
	sup.Name = strings.TrimSpace(in.Name)
	sup.Contact = strings.TrimSpace(in.Contact)
	sup.Email = strings.TrimSpace(in.Email)
	sup.Phone = strings.TrimSpace(in.Phone)
	sup.Address = strings.TrimSpace(in.Address)
	sup.Category = strings.TrimSpace(in.Category)
	sup.Status = status
	sup.UpdatedAt = s.now()
	updated, err := s.repo.UpdateSupplier(ctx, sup)
	if err != nil {
		return domain.Supplier{}, err
	}
	s.logAudit(ctx, "supplier.update", "id="+id)
	return updated, nil
}

func (s *Service) DeleteSupplier(ctx context.Context, userID, id string) error {
	if err := s.repo.DeleteSupplier(ctx, userID, id); err != nil {
		return err
	}
	s.logAudit(ctx, "supplier.delete", "id="+id)
	return nil
}
