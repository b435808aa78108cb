package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"dukaanpos/backend/internal/domain"
	"dukaanpos/backend/internal/store"
	"dukaanpos/backend/internal/xid"
)

// appendRetries bounds how often a drawer append is retried after the
// store reports a stale previous balance.
const appendRetries = 3

// drawerRequest describes one intended ledger mutation before the
// chain position is known. For count operations amountCents holds the
// observed balance; the stored delta is computed at append time.
type drawerRequest struct {
	operation   string
	amountCents int64
	reason      string
	referenceID string
}

// appendDrawerEntry is the single primitive every drawer mutation goes
// through. It reads the chain head, validates the operation against the
// current balance, and appends. A stale head is retried a bounded
// number of times.
func (s *Service) appendDrawerEntry(ctx context.Context, userID string, req drawerRequest) (domain.CashDrawerEntry, error) {
	if !domain.ValidDrawerOperation(req.operation) {
		return domain.CashDrawerEntry{}, validationErr("unknown drawer operation %q", req.operation)
	}
	actor, _ := ActorFromContext(ctx)

	var lastErr error
	for attempt := 0; attempt < appendRetries; attempt++ {
		var prev int64
		var hasChain bool
		last, err := s.repo.LastCashDrawerEntry(ctx, userID)
		switch {
		case err == nil:
			prev = last.BalanceCents
			hasChain = true
		case errors.Is(err, store.ErrNotFound):
			// Empty chain starts at zero.
		default:
			return domain.CashDrawerEntry{}, err
		}

		amount, err := resolveDrawerAmount(req, prev, hasChain)
		if err != nil {
			return domain.CashDrawerEntry{}, err
		}

		entry := domain.CashDrawerEntry{
			ID:                   xid.New(prefixDrawer),
			UserID:               userID,
			Operation:            req.operation,
			AmountCents:          amount,
			PreviousBalanceCents: prev,
			Reason:               req.reason,
			ReferenceID:          req.referenceID,
			PerformedBy:          actor.UserID,
			CreatedAt:            s.now(),
		}
		appended, err := s.repo.AppendCashDrawerEntry(ctx, entry)
		if err == nil {
			return appended, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return domain.CashDrawerEntry{}, err
		}
		lastErr = err
	}
	// Formatted with %v on purpose: contention that survives the retry
	// budget is an internal consistency problem, not a client conflict.
	return domain.CashDrawerEntry{}, fmt.Errorf("drawer append for %s did not settle after %d attempts: %v",
		userID, appendRetries, lastErr)
}

// resolveDrawerAmount turns a request into the signed amount stored on
// the chain, enforcing the per-operation rules.
func resolveDrawerAmount(req drawerRequest, prevBalance int64, hasChain bool) (int64, error) {
	switch req.operation {
	case domain.DrawerInitialization:
		if hasChain {
			return 0, validationErr("drawer is already initialized")
		}
		if req.amountCents < 0 {
			return 0, validationErr("opening float cannot be negative")
		}
		return req.amountCents, nil
	case domain.DrawerAdd:
		if req.amountCents <= 0 {
			return 0, validationErr("add amount must be positive")
		}
		return req.amountCents, nil
	case domain.DrawerRemove:
		if req.amountCents <= 0 {
			return 0, validationErr("remove amount must be positive")
		}
		if req.amountCents > prevBalance {
			return 0, fmt.Errorf("%w: drawer holds %d, cannot remove %d",
				store.ErrInsufficientFunds, prevBalance, req.amountCents)
		}
		return -req.amountCents, nil
	case domain.DrawerCount:
		if req.amountCents < 0 {
			return 0, validationErr("counted balance cannot be negative")
		}
		// Store the correction delta so the chain arithmetic holds.
		return req.amountCents - prevBalance, nil
	case domain.DrawerSale:
		if req.amountCents < 0 {
			return 0, validationErr("sale amount cannot be negative")
		}
		return req.amountCents, nil
	case domain.DrawerExpense:
		if req.amountCents <= 0 {
			return 0, validationErr("expense amount must be positive")
		}
		if req.amountCents > prevBalance {
			return 0, fmt.Errorf("%w: drawer holds %d, cannot pay %d",
				store.ErrInsufficientFunds, prevBalance, req.amountCents)
		}
		return -req.amountCents, nil
	case domain.DrawerClose:
		if !hasChain {
			return 0, validationErr("drawer has no entries to close")
		}
		return 0, nil
	}
	return 0, validationErr("unknown drawer operation %q", req.operation)
}

// ApplyDrawerOperation handles the generic operation endpoint. Sale and
// expense entries are appended only by their owning flows.
func (s *Service) ApplyDrawerOperation(ctx context.Context, userID, operation string, amountCents int64, reason string) (domain.CashDrawerEntry, error) {
	switch operation {
	case domain.DrawerSale, domain.DrawerExpense:
		return domain.CashDrawerEntry{}, validationErr("operation %q is recorded automatically", operation)
	}
	unlock := s.lockTenant(userID)
	defer unlock()
	entry, err := s.appendDrawerEntry(ctx, userID, drawerRequest{
		operation:   operation,
		amountCents: amountCents,
		reason:      strings.TrimSpace(reason),
	})
	if err != nil {
		return domain.CashDrawerEntry{}, err
	}
	s.logAudit(ctx, "drawer."+operation, fmt.Sprintf("entry=%s amount=%d balance=%d", entry.ID, entry.AmountCents, entry.BalanceCents))
	s.invalidateReports(ctx, userID)
	return entry, nil
}

// AddToDrawer and RemoveFromDrawer are the dedicated add/remove
// endpoints layered on the generic primitive.
func (s *Service) AddToDrawer(ctx context.Context, userID string, amountCents int64, reason string) (domain.CashDrawerEntry, error) {
	return s.ApplyDrawerOperation(ctx, userID, domain.DrawerAdd, amountCents, reason)
}

func (s *Service) RemoveFromDrawer(ctx context.Context, userID string, amountCents int64, reason string) (domain.CashDrawerEntry, error) {
	return s.ApplyDrawerOperation(ctx, userID, domain.DrawerRemove, amountCents, reason)
}

// DrawerBalance returns the current balance, zero for an empty chain.
func (s *Service) DrawerBalance(ctx context.Context, userID string) (int64, error) {
	last, err := s.repo.LastCashDrawerEntry(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return last.BalanceCents, nil
}

func (s *Service) DrawerEntry(ctx context.Context, userID, id string) (domain.CashDrawerEntry, error) {
	return s.repo.GetCashDrawerEntry(ctx, userID, id)
}

func (s *Service) DrawerHistory(ctx context.Context, userID string, f store.EntryFilter) ([]domain.CashDrawerEntry, error) {
	return s.repo.ListCashDrawerEntries(ctx, userID, f)
}

// DrawerSummary aggregates the tenant's ledger by operation, optionally
// bounded to a time range.
func (s *Service) DrawerSummary(ctx context.Context, userID string, from, to time.Time) (domain.DrawerSummary, error) {
	entries, err := s.repo.ListCashDrawerEntries(ctx, userID, store.EntryFilter{From: from, To: to})
	if err != nil {
		return domain.DrawerSummary{}, err
	}
	summary := domain.DrawerSummary{ByOperation: make(map[string]int64)}
	for _, entry := range entries {
		summary.EntryCount++
		summary.ByOperation[entry.Operation] += entry.AmountCents
	}
	if len(entries) > 0 {
		// Entries arrive newest first.
		newest, oldest := entries[0], entries[len(entries)-1]
		summary.BalanceCents = newest.BalanceCents
		summary.LastEntryAt = &newest.CreatedAt
		summary.FirstEntryAt = &oldest.CreatedAt
	}
	return summary, nil
}

// Sales.

// SaleItemInput is one requested line. Prices always come from the
// catalog at completion time, never from the client.
type SaleItemInput struct {
	ItemID   string
	Quantity int64
}

type CompleteSaleInput struct {
	Items           []SaleItemInput
	DiscountCents   int64
	PaymentMethod   string
	CashAmountCents int64
	CustomerName    string
}

func (in CompleteSaleInput) validate() error {
	if len(in.Items) == 0 {
		return validationErr("a sale needs at least one item")
	}
	for i, line := range in.Items {
		if strings.TrimSpace(line.ItemID) == "" {
			return validationErr("line %d: item id is required", i+1)
		}
		if line.Quantity <= 0 {
			return validationErr("line %d: quantity must be positive", i+1)
		}
	}
	if in.DiscountCents < 0 {
		return validationErr("discount cannot be negative")
	}
	if !domain.ValidPaymentMethod(in.PaymentMethod) {
		return validationErr("unknown payment method %q", in.PaymentMethod)
	}
	return nil
}

// CompleteSale validates the whole cart, then decrements stock, assigns
// a receipt number, persists the sale, and records the cash movement.
// Any failure after the first mutation rolls back what already landed.
func (s *Service) CompleteSale(ctx context.Context, userID string, in CompleteSaleInput) (domain.SaleRecord, error) {
	if err := in.validate(); err != nil {
		return domain.SaleRecord{}, err
	}
	unlock := s.lockTenant(userID)
	defer unlock()

	// Validate every line before touching anything.
	lines := make([]domain.SaleLineItem, 0, len(in.Items))
	var subtotal int64
	for _, reqLine := range in.Items {
		item, err := s.repo.GetItem(ctx, userID, reqLine.ItemID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domain.SaleRecord{}, fmt.Errorf("%w: item %q not found", store.ErrNotFound, reqLine.ItemID)
			}
			return domain.SaleRecord{}, err
		}
		if item.Stock < reqLine.Quantity {
			return domain.SaleRecord{}, fmt.Errorf("%w: %q has %d in stock, %d requested",
				store.ErrInsufficientStock, item.Name, item.Stock, reqLine.Quantity)
		}
		lineTotal := item.PriceCents * reqLine.Quantity
		lines = append(lines, domain.SaleLineItem{
			ItemID:         item.ID,
			Name:           item.Name,
			SKU:            item.SKU,
			Quantity:       reqLine.Quantity,
			UnitPriceCents: item.PriceCents,
			TotalCents:     lineTotal,
		})
		subtotal += lineTotal
	}
	if in.DiscountCents > subtotal {
		return domain.SaleRecord{}, validationErr("discount %d exceeds subtotal %d", in.DiscountCents, subtotal)
	}

	taxCents := s.salesTaxFor(ctx, userID, subtotal-in.DiscountCents)
	total := subtotal - in.DiscountCents + taxCents

	var cashAmount, change int64
	if in.PaymentMethod == domain.PaymentCash {
		cashAmount = in.CashAmountCents
		if cashAmount < total {
			return domain.SaleRecord{}, validationErr("cash tendered %d is less than total %d", cashAmount, total)
		}
		change = cashAmount - total
	}

	// Mutation phase. Track decrements so a later failure can undo them.
	undo := make([]SaleItemInput, 0, len(lines))
	rollbackStock := func() {
		for _, done := range undo {
			if _, err := s.repo.AdjustStock(ctx, userID, done.ItemID, done.Quantity); err != nil {
				log.Printf("[service] ERROR: rollback stock for %s failed: %v", done.ItemID, err)
			}
		}
	}
	for _, line := range lines {
		if _, err := s.repo.AdjustStock(ctx, userID, line.ItemID, -line.Quantity); err != nil {
			rollbackStock()
			return domain.SaleRecord{}, err
		}
		undo = append(undo, SaleItemInput{ItemID: line.ItemID, Quantity: line.Quantity})
	}

	receiptNum, err := s.repo.NextReceiptNumber(ctx, userID)
	if err != nil {
		rollbackStock()
		return domain.SaleRecord{}, err
	}

	sale := domain.SaleRecord{
		ID:                 xid.New(prefixSale),
		UserID:             userID,
		ReceiptNumber:      fmt.Sprintf("#%06d", receiptNum),
		ReceiptNumberValue: receiptNum,
		Items:              lines,
		SubtotalCents:      subtotal,
		DiscountCents:      in.DiscountCents,
		TaxCents:           taxCents,
		TotalCents:         total,
		PaymentMethod:      in.PaymentMethod,
		CashAmountCents:    cashAmount,
		ChangeCents:        change,
		CustomerName:       strings.TrimSpace(in.CustomerName),
		CreatedAt:          s.now(),
	}
	created, err := s.repo.CreateSale(ctx, sale)
	if err != nil {
		rollbackStock()
		return domain.SaleRecord{}, err
	}

	if in.PaymentMethod == domain.PaymentCash {
		// Net cash that stays in the drawer: tendered minus change.
		_, err := s.appendDrawerEntry(ctx, userID, drawerRequest{
			operation:   domain.DrawerSale,
			amountCents: cashAmount - change,
			reason:      "Sale " + created.ReceiptNumber,
			referenceID: created.ID,
		})
		if err != nil {
			if delErr := s.repo.DeleteSale(ctx, userID, created.ID); delErr != nil {
				log.Printf("[service] ERROR: rollback sale %s failed: %v", created.ID, delErr)
			}
			rollbackStock()
			return domain.SaleRecord{}, err
		}
	}

	s.logAudit(ctx, "sale.complete", fmt.Sprintf("id=%s receipt=%s total=%d", created.ID, created.ReceiptNumber, created.TotalCents))
	s.invalidateReports(ctx, userID)
	return created, nil
}

// salesTaxFor applies the tenant's configured sales tax rate to a
// taxable amount. Settings lookup failures degrade to zero tax on the
// principle that a sale must not be blocked by tax configuration.
func (s *Service) salesTaxFor(ctx context.Context, userID string, taxable int64) int64 {
	if taxable <= 0 {
		return 0
	}
	settings, err := s.taxSettingsOrDefault(ctx, userID)
	if err != nil {
		log.Printf("[service] WARN: tax settings for %s: %v", userID, err)
		return 0
	}
	if settings.SalesTaxPercent <= 0 {
		return 0
	}
	return roundPercent(taxable, settings.SalesTaxPercent)
}

func (s *Service) Sale(ctx context.Context, userID, id string) (domain.SaleRecord, error) {
	return s.repo.GetSale(ctx, userID, id)
}

func (s *Service) ListSales(ctx context.Context, userID string, f store.SaleFilter) ([]domain.SaleRecord, error) {
	return s.repo.ListSales(ctx, userID, f)
}

func (s *Service) MarkSalePrinted(ctx context.Context, userID, id string) (domain.SaleRecord, error) {
	sale, err := s.repo.MarkSalePrinted(ctx, userID, id)
	if err != nil {
		return domain.SaleRecord{}, err
	}
	s.logAudit(ctx, "sale.printed", "id="+id)
	return sale, nil
}
