package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"dukaanpos/backend/internal/domain"
	"dukaanpos/backend/internal/store"
)

func TestAdjustStockInsufficient(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, err := s.CreateItem(ctx, domain.InventoryItem{ID: "ITEM-1", UserID: "u1", Name: "Chai", Stock: 3, ReorderLevel: 1})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	if _, err := s.AdjustStock(ctx, "u1", "ITEM-1", -5); !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	item, err := s.AdjustStock(ctx, "u1", "ITEM-1", -3)
	if err != nil {
		t.Fatalf("adjust stock: %v", err)
	}
	if item.Stock != 0 || item.Status != domain.StatusOutOfStock {
		t.Fatalf("got stock=%d status=%q, want 0/out_of_stock", item.Stock, item.Status)
	}
}

func TestNextReceiptNumberConcurrent(t *testing.T) {
	s := New()
	ctx := context.Background()
	const n = 50
	seen := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			num, err := s.NextReceiptNumber(ctx, "u1")
			if err != nil {
				t.Errorf("next receipt: %v", err)
				return
			}
			seen <- num
		}()
	}
	wg.Wait()
	close(seen)
	got := make(map[int64]bool)
	for num := range seen {
		if got[num] {
			t.Fatalf("receipt number %d issued twice", num)
		}
		got[num] = true
	}
	if len(got) != n {
		t.Fatalf("issued %d numbers, want %d", len(got), n)
	}
}

func TestDrawerChainRejectsStalePreviousBalance(t *testing.T) {
	s := New()
	ctx := context.Background()
	first := domain.CashDrawerEntry{
		ID: "CD-1", UserID: "u1", Operation: domain.DrawerInitialization,
		AmountCents: 10_000, PreviousBalanceCents: 0,
	}
	if _, err := s.AppendCashDrawerEntry(ctx, first); err != nil {
		t.Fatalf("append first: %v", err)
	}
	stale := domain.CashDrawerEntry{
		ID: "CD-2", UserID: "u1", Operation: domain.DrawerAdd,
		AmountCents: 500, PreviousBalanceCents: 0,
	}
	if _, err := s.AppendCashDrawerEntry(ctx, stale); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	fresh := stale
	fresh.PreviousBalanceCents = 10_000
	entry, err := s.AppendCashDrawerEntry(ctx, fresh)
	if err != nil {
		t.Fatalf("append fresh: %v", err)
	}
	if entry.BalanceCents != 10_500 {
		t.Fatalf("balance = %d, want 10500", entry.BalanceCents)
	}
}

func TestDrawerChainOrdering(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now().UTC()
	prev := int64(0)
	for i, amount := range []int64{5_000, -1_200, 300} {
		entry := domain.CashDrawerEntry{
			ID:     "CD-" + string(rune('a'+i)),
			UserID: "u1", Operation: domain.DrawerAdd,
			AmountCents: amount, PreviousBalanceCents: prev,
			CreatedAt: now,
		}
		appended, err := s.AppendCashDrawerEntry(ctx, entry)
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		prev = appended.BalanceCents
	}
	entries, err := s.ListCashDrawerEntries(ctx, "u1", store.EntryFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	// Newest first, with timestamps bumped so identical clocks still order.
	for i := 0; i < len(entries)-1; i++ {
		if !entries[i].CreatedAt.After(entries[i+1].CreatedAt) {
			t.Fatalf("entries %d and %d share or invert timestamps", i, i+1)
		}
		if entries[i].PreviousBalanceCents != entries[i+1].BalanceCents {
			t.Fatalf("chain broken between entries %d and %d", i, i+1)
		}
	}
}
