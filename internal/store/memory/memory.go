// Package memory provides an in-memory Repository used by tests and
// local development runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"dukaanpos/backend/internal/domain"
	"dukaanpos/backend/internal/store"
)

// Store keeps every record in process memory behind one RWMutex. It is
// safe for concurrent use and implements store.Repository.
type Store struct {
	mu sync.RWMutex

	items           map[string]domain.InventoryItem
	sales           map[string]domain.SaleRecord
	receiptCounters map[string]int64
	drawers         map[string][]domain.CashDrawerEntry
	expenses        map[string]domain.Expense
	business        map[string]domain.BusinessSettings
	taxSettings     map[string]domain.TaxSettings
	taxRecords      map[string]domain.TaxRecord
	suppliers       map[string]domain.Supplier
	users           map[string]domain.UserAccount
	usernames       map[string]string
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		items:           make(map[string]domain.InventoryItem),
		sales:           make(map[string]domain.SaleRecord),
		receiptCounters: make(map[string]int64),
		drawers:         make(map[string][]domain.CashDrawerEntry),
		expenses:        make(map[string]domain.Expense),
		business:        make(map[string]domain.BusinessSettings),
		taxSettings:     make(map[string]domain.TaxSettings),
		taxRecords:      make(map[string]domain.TaxRecord),
		suppliers:       make(map[string]domain.Supplier),
		users:           make(map[string]domain.UserAccount),
		usernames:       make(map[string]string),
	}
}

var _ store.Repository = (*Store)(nil)

// Inventory.

func (s *Store) CreateItem(_ context.Context, item domain.InventoryItem) (domain.InventoryItem, error) {
	if item.ID == "" || item.UserID == "" {
		return domain.InventoryItem{}, fmt.Errorf("%w: item id and user id are required", store.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[item.ID]; ok {
		return domain.InventoryItem{}, store.ErrDuplicate
	}
	if item.SKU != "" {
		for _, existing := range s.items {
			if existing.UserID == item.UserID && existing.SKU == item.SKU {
				return domain.InventoryItem{}, fmt.Errorf("%w: sku %q already in use", store.ErrDuplicate, item.SKU)
			}
		}
	}
	item.Status = domain.DeriveStockStatus(item.Stock, item.ReorderLevel)
	s.items[item.ID] = item
	return item, nil
}

func (s *Store) GetItem(_ context.Context, userID, id string) (domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok || item.UserID != userID {
		return domain.InventoryItem{}, store.ErrNotFound
	}
	return item, nil
}

func (s *Store) ListItems(_ context.Context, userID string, f store.ItemFilter) ([]domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.InventoryItem, 0)
	search := strings.ToLower(f.Search)
	for _, item := range s.items {
		if item.UserID != userID {
			continue
		}
		if f.Category != "" && item.Category != f.Category {
			continue
		}
		if f.Status != "" && item.Status != f.Status {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(item.Name), search) &&
			!strings.Contains(strings.ToLower(item.SKU), search) {
			continue
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return applyLimit(out, f.Limit), nil
}

func (s *Store) UpdateItem(_ context.Context, item domain.InventoryItem) (domain.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.items[item.ID]
	if !ok || existing.UserID != item.UserID {
		return domain.InventoryItem{}, store.ErrNotFound
	}
	item.CreatedAt = existing.CreatedAt
	item.Status = domain.DeriveStockStatus(item.Stock, item.ReorderLevel)
	s.items[item.ID] = item
	return item, nil
}

func (s *Store) DeleteItem(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok || item.UserID != userID {
		return store.ErrNotFound
	}
	delete(s.items, id)
	return nil
}

func (s *Store) AdjustStock(_ context.Context, userID, itemID string, delta int64) (domain.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[itemID]
	if !ok || item.UserID != userID {
		return domain.InventoryItem{}, store.ErrNotFound
	}
	next := item.Stock + delta
	if next < 0 {
		return domain.InventoryItem{}, fmt.Errorf("%w: %q has %d in stock", store.ErrInsufficientStock, item.Name, item.Stock)
	}
	item.Stock = next
	item.Status = domain.DeriveStockStatus(item.Stock, item.ReorderLevel)
	item.UpdatedAt = time.Now().UTC()
	s.items[itemID] = item
	return item, nil
}

// Sales.

func (s *Store) NextReceiptNumber(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receiptCounters[userID]++
	return s.receiptCounters[userID], nil
}

func (s *Store) CreateSale(_ context.Context, sale domain.SaleRecord) (domain.SaleRecord, error) {
	if sale.ID == "" || sale.UserID == "" {
		return domain.SaleRecord{}, fmt.Errorf("%w: sale id and user id are required", store.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sales[sale.ID]; ok {
		return domain.SaleRecord{}, store.ErrDuplicate
	}
	sale.Items = append([]domain.SaleLineItem(nil), sale.Items...)
	s.sales[sale.ID] = sale
	return cloneSale(sale), nil
}

func (s *Store) GetSale(_ context.Context, userID, id string) (domain.SaleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sale, ok := s.sales[id]
	if !ok || sale.UserID != userID {
		return domain.SaleRecord{}, store.ErrNotFound
	}
	return cloneSale(sale), nil
}

func (s *Store) ListSales(_ context.Context, userID string, f store.SaleFilter) ([]domain.SaleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.SaleRecord, 0)
	for _, sale := range s.sales {
		if sale.UserID != userID {
			continue
		}
		if !f.From.IsZero() && sale.CreatedAt.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && !sale.CreatedAt.Before(f.To) {
			continue
		}
		out = append(out, cloneSale(sale))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return applyLimit(out, f.Limit), nil
}

func (s *Store) MarkSalePrinted(_ context.Context, userID, id string) (domain.SaleRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sale, ok := s.sales[id]
	if !ok || sale.UserID != userID {
		return domain.SaleRecord{}, store.ErrNotFound
	}
	sale.Printed = true
	s.sales[id] = sale
	return cloneSale(sale), nil
}

func (s *Store) DeleteSale(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sale, ok := s.sales[id]
	if !ok || sale.UserID != userID {
		return store.ErrNotFound
	}
	delete(s.sales, id)
	return nil
}

// Cash drawer ledger.

func (s *Store) AppendCashDrawerEntry(_ context.Context, entry domain.CashDrawerEntry) (domain.CashDrawerEntry, error) {
	if entry.ID == "" || entry.UserID == "" {
		return domain.CashDrawerEntry{}, fmt.Errorf("%w: entry id and user id are required", store.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	chain := s.drawers[entry.UserID]
	var lastBalance int64
	if len(chain) > 0 {
		lastBalance = chain[len(chain)-1].BalanceCents
	}
	if entry.PreviousBalanceCents != lastBalance {
		return domain.CashDrawerEntry{}, fmt.Errorf("%w: previous balance %d is stale, chain is at %d",
			store.ErrConflict, entry.PreviousBalanceCents, lastBalance)
	}
	entry.BalanceCents = entry.PreviousBalanceCents + entry.AmountCents
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	// Keep chain order unambiguous even when two entries land within
	// the same clock tick.
	if len(chain) > 0 && !entry.CreatedAt.After(chain[len(chain)-1].CreatedAt) {
		entry.CreatedAt = chain[len(chain)-1].CreatedAt.Add(time.Nanosecond)
	}
	s.drawers[entry.UserID] = append(chain, entry)
	return entry, nil
}

func (s *Store) LastCashDrawerEntry(_ context.Context, userID string) (domain.CashDrawerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chain := s.drawers[userID]
	if len(chain) == 0 {
		return domain.CashDrawerEntry{}, store.ErrNotFound
	}
	return chain[len(chain)-1], nil
}

func (s *Store) GetCashDrawerEntry(_ context.Context, userID, id string) (domain.CashDrawerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, entry := range s.drawers[userID] {
		if entry.ID == id {
			return entry, nil
		}
	}
	return domain.CashDrawerEntry{}, store.ErrNotFound
}

func (s *Store) ListCashDrawerEntries(_ context.Context, userID string, f store.EntryFilter) ([]domain.CashDrawerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chain := s.drawers[userID]
	out := make([]domain.CashDrawerEntry, 0, len(chain))
	// Newest first.
	for i := len(chain) - 1; i >= 0; i-- {
		entry := chain[i]
		if f.Operation != "" && entry.Operation != f.Operation {
			continue
		}
		if !f.From.IsZero() && entry.CreatedAt.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && !entry.CreatedAt.Before(f.To) {
			continue
		}
		out = append(out, entry)
	}
	return applyLimit(out, f.Limit), nil
}

// Expenses.

func (s *Store) CreateExpense(_ context.Context, exp domain.Expense) (domain.Expense, error) {
	if exp.ID == "" || exp.UserID == "" {
		return domain.Expense{}, fmt.Errorf("%w: expense id and user id are required", store.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.expenses[exp.ID]; ok {
		return domain.Expense{}, store.ErrDuplicate
	}
	s.expenses[exp.ID] = exp
	return exp, nil
}

func (s *Store) GetExpense(_ context.Context, userID, id string) (domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	exp, ok := s.expenses[id]
	if !ok || exp.UserID != userID {
		return domain.Expense{}, store.ErrNotFound
	}
	return exp, nil
}

func (s *Store) ListExpenses(_ context.Context, userID string, f store.ExpenseFilter) ([]domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Expense, 0)
	for _, exp := range s.expenses {
		if exp.UserID != userID {
			continue
		}
		if f.Category != "" && exp.Category != f.Category {
			continue
		}
		if !f.From.IsZero() && exp.CreatedAt.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && !exp.CreatedAt.Before(f.To) {
			continue
		}
		out = append(out, exp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return applyLimit(out, f.Limit), nil
}

func (s *Store) UpdateExpense(_ context.Context, exp domain.Expense) (domain.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.expenses[exp.ID]
	if !ok || existing.UserID != exp.UserID {
		return domain.Expense{}, store.ErrNotFound
	}
	exp.CreatedAt = existing.CreatedAt
	s.expenses[exp.ID] = exp
	return exp, nil
}

func (s *Store) DeleteExpense(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.expenses[id]
	if !ok || exp.UserID != userID {
		return store.ErrNotFound
	}
	delete(s.expenses, id)
	return nil
}

// Business profile.

func (s *Store) GetBusinessSettings(_ context.Context, userID string) (domain.BusinessSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	settings, ok := s.business[userID]
	if !ok {
		return domain.BusinessSettings{}, store.ErrNotFound
	}
	return settings, nil
}

func (s *Store) SaveBusinessSettings(_ context.Context, settings domain.BusinessSettings) (domain.BusinessSettings, error) {
	if settings.UserID == "" {
		return domain.BusinessSettings{}, fmt.Errorf("%w: user id is required", store.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.business[settings.UserID] = settings
	return settings, nil
}

// Tax.

func (s *Store) GetTaxSettings(_ context.Context, userID string) (domain.TaxSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	settings, ok := s.taxSettings[userID]
	if !ok {
		return domain.TaxSettings{}, store.ErrNotFound
	}
	return settings, nil
}

func (s *Store) SaveTaxSettings(_ context.Context, settings domain.TaxSettings) (domain.TaxSettings, error) {
	if settings.UserID == "" {
		return domain.TaxSettings{}, fmt.Errorf("%w: user id is required", store.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.taxSettings[settings.UserID] = settings
	return settings, nil
}

func (s *Store) CreateTaxRecord(_ context.Context, rec domain.TaxRecord) (domain.TaxRecord, error) {
	if rec.ID == "" || rec.UserID == "" {
		return domain.TaxRecord{}, fmt.Errorf("%w: tax record id and user id are required", store.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.taxRecords[rec.ID]; ok {
		return domain.TaxRecord{}, store.ErrDuplicate
	}
	s.taxRecords[rec.ID] = rec
	return rec, nil
}

func (s *Store) GetTaxRecord(_ context.Context, userID, id string) (domain.TaxRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.taxRecords[id]
	if !ok || rec.UserID != userID {
		return domain.TaxRecord{}, store.ErrNotFound
	}
	return rec, nil
}

func (s *Store) ListTaxRecords(_ context.Context, userID string, f store.TaxRecordFilter) ([]domain.TaxRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.TaxRecord, 0)
	for _, rec := range s.taxRecords {
		if rec.UserID != userID {
			continue
		}
		if f.Type != "" && rec.Type != f.Type {
			continue
		}
		if f.Status != "" && rec.Status != f.Status {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return applyLimit(out, f.Limit), nil
}

func (s *Store) UpdateTaxRecord(_ context.Context, rec domain.TaxRecord) (domain.TaxRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.taxRecords[rec.ID]
	if !ok || existing.UserID != rec.UserID {
		return domain.TaxRecord{}, store.ErrNotFound
	}
	rec.CreatedAt = existing.CreatedAt
	s.taxRecords[rec.ID] = rec
	return rec, nil
}

func (s *Store) DeleteTaxRecord(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.taxRecords[id]
	if !ok || rec.UserID != userID {
		return store.ErrNotFound
	}
	delete(s.taxRecords, id)
	return nil
}

// Suppliers.

func (s *Store) CreateSupplier(_ context.Context, sup domain.Supplier) (domain.Supplier, error) {
	if sup.ID == "" || sup.UserID == "" {
		return domain.Supplier{}, fmt.Errorf("%w: supplier id and user id are required", store.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.suppliers[sup.ID]; ok {
		return domain.Supplier{}, store.ErrDuplicate
	}
	s.suppliers[sup.ID] = sup
	return sup, nil
}

func (s *Store) GetSupplier(_ context.Context, userID, id string) (domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sup, ok := s.suppliers[id]
	if !ok || sup.UserID != userID {
		return domain.Supplier{}, store.ErrNotFound
	}
	return sup, nil
}

func (s *Store) ListSuppliers(_ context.Context, userID string) ([]domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Supplier, 0)
	for _, sup := range s.suppliers {
		if sup.UserID == userID {
			out = append(out, sup)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) UpdateSupplier(_ context.Context, sup domain.Supplier) (domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.suppliers[sup.ID]
	if !ok || existing.UserID != sup.UserID {
		return domain.Supplier{}, store.ErrNotFound
	}
	sup.CreatedAt = existing.CreatedAt
	s.suppliers[sup.ID] = sup
	return sup, nil
}

func (s *Store) DeleteSupplier(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sup, ok := s.suppliers[id]
	if !ok || sup.UserID != userID {
		return store.ErrNotFound
	}
	delete(s.suppliers, id)
	return nil
}

// User accounts.

func (s *Store) CreateUser(_ context.Context, u domain.UserAccount) (domain.UserAccount, error) {
	if u.ID == "" || u.Username == "" {
		return domain.UserAccount{}, fmt.Errorf("%w: user id and username are required", store.ErrValidation)
	}
	key := strings.ToLower(u.Username)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.usernames[key]; ok {
		return domain.UserAccount{}, fmt.Errorf("%w: username %q taken", store.ErrDuplicate, u.Username)
	}
	s.users[u.ID] = u
	s.usernames[key] = u.ID
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id string) (domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return domain.UserAccount{}, store.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.usernames[strings.ToLower(username)]
	if !ok {
		return domain.UserAccount{}, store.ErrNotFound
	}
	return s.users[id], nil
}

func (s *Store) ListCashiers(_ context.Context, ownerID string) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.UserAccount, 0)
	for _, u := range s.users {
		if u.Role == domain.RoleCashier && u.OwnerID == ownerID {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *Store) UpdateUser(_ context.Context, u domain.UserAccount) (domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.users[u.ID]
	if !ok {
		return domain.UserAccount{}, store.ErrNotFound
	}
	if !strings.EqualFold(existing.Username, u.Username) {
		key := strings.ToLower(u.Username)
		if _, taken := s.usernames[key]; taken {
			return domain.UserAccount{}, fmt.Errorf("%w: username %q taken", store.ErrDuplicate, u.Username)
		}
		delete(s.usernames, strings.ToLower(existing.Username))
		s.usernames[key] = u.ID
	}
	u.CreatedAt = existing.CreatedAt
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	delete(s.usernames, strings.ToLower(u.Username))
	delete(s.users, id)
	return nil
}

func cloneSale(sale domain.SaleRecord) domain.SaleRecord {
	sale.Items = append([]domain.SaleLineItem(nil), sale.Items...)
	return sale
}

func applyLimit[T any](in []T, limit int) []T {
	if limit > 0 && len(in) > limit {
		return in[:limit]
	}
	return in
}
