package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"dukaanpos/backend/internal/cache"
	"dukaanpos/backend/internal/domain"
	"dukaanpos/backend/internal/store"
	"dukaanpos/backend/internal/store/memory"
)

const testUser = "USR-owner"

func newTestService() *Service {
	return New(memory.New(), cache.Noop{})
}

func seedItem(t *testing.T, s *Service, name string, priceCents, stock int64) domain.InventoryItem {
	t.Helper()
	item, err := s.CreateItem(context.Background(), testUser, CreateItemInput{
		Name:         name,
		PriceCents:   priceCents,
		Stock:        stock,
		ReorderLevel: 2,
	})
	if err != nil {
		t.Fatalf("seed item %s: %v", name, err)
	}
	return item
}

func initDrawer(t *testing.T, s *Service, openingCents int64) {
	t.Helper()
	_, err := s.ApplyDrawerOperation(context.Background(), testUser, domain.DrawerInitialization, openingCents, "opening float")
	if err != nil {
		t.Fatalf("init drawer: %v", err)
	}
}

func TestCompleteSaleHappyPath(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	item := seedItem(t, s, "Chai", 150_00, 10)
	initDrawer(t, s, 50_00)

	sale, err := s.CompleteSale(ctx, testUser, CompleteSaleInput{
		Items:           []SaleItemInput{{ItemID: item.ID, Quantity: 3}},
		PaymentMethod:   domain.PaymentCash,
		CashAmountCents: 500_00,
	})
	if err != nil {
		t.Fatalf("complete sale: %v", err)
	}
	if sale.ReceiptNumber != "#000001" {
		t.Fatalf("receipt = %q, want #000001", sale.ReceiptNumber)
	}
	if sale.ReceiptNumberValue != 1 {
		t.Fatalf("receipt value = %d, want 1", sale.ReceiptNumberValue)
	}
	stored, err := s.Sale(ctx, testUser, sale.ID)
	if err != nil {
		t.Fatalf("reload sale: %v", err)
	}
	if stored.ReceiptNumberValue != 1 {
		t.Fatalf("stored receipt value = %d, want 1", stored.ReceiptNumberValue)
	}
	if sale.TotalCents != 450_00 {
		t.Fatalf("total = %d, want 45000", sale.TotalCents)
	}
	if sale.ChangeCents != 50_00 {
		t.Fatalf("change = %d, want 5000", sale.ChangeCents)
	}

	got, err := s.Item(ctx, testUser, item.ID)
	if err != nil {
		t.Fatalf("reload item: %v", err)
	}
	if got.Stock != 7 {
		t.Fatalf("stock = %d, want 7", got.Stock)
	}

	balance, err := s.DrawerBalance(ctx, testUser)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	// Opening 5000 plus the 45000 that stays in the drawer.
	if balance != 500_00 {
		t.Fatalf("balance = %d, want 50000", balance)
	}

	entries, err := s.DrawerHistory(ctx, testUser, store.EntryFilter{Operation: domain.DrawerSale})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d sale entries, want 1", len(entries))
	}
	if entries[0].ReferenceID != sale.ID {
		t.Fatalf("sale entry references %q, want %q", entries[0].ReferenceID, sale.ID)
	}
	if entries[0].AmountCents != 450_00 {
		t.Fatalf("sale entry amount = %d, want 45000", entries[0].AmountCents)
	}
}

func TestCompleteSaleInsufficientStockMutatesNothing(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	full := seedItem(t, s, "Biscuits", 80_00, 10)
	scarce := seedItem(t, s, "Milk", 200_00, 1)
	initDrawer(t, s, 0)

	_, err := s.CompleteSale(ctx, testUser, CompleteSaleInput{
		Items: []SaleItemInput{
			{ItemID: full.ID, Quantity: 2},
			{ItemID: scarce.ID, Quantity: 5},
		},
		PaymentMethod:   domain.PaymentCash,
		CashAmountCents: 100_000_00,
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	// Nothing moved: validation rejected the cart before any decrement.
	for _, want := range []struct {
		id    string
		stock int64
	}{{full.ID, 10}, {scarce.ID, 1}} {
		item, err := s.Item(ctx, testUser, want.id)
		if err != nil {
			t.Fatalf("reload: %v", err)
		}
		if item.Stock != want.stock {
			t.Fatalf("item %s stock = %d, want %d", want.id, item.Stock, want.stock)
		}
	}
	sales, err := s.ListSales(ctx, testUser, store.SaleFilter{})
	if err != nil {
		t.Fatalf("list sales: %v", err)
	}
	if len(sales) != 0 {
		t.Fatalf("got %d sales, want 0", len(sales))
	}
	entries, err := s.DrawerHistory(ctx, testUser, store.EntryFilter{})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d drawer entries, want only the initialization", len(entries))
	}
}

func TestCompleteSaleUnknownItem(t *testing.T) {
	s := newTestService()
	_, err := s.CompleteSale(context.Background(), testUser, CompleteSaleInput{
		Items:         []SaleItemInput{{ItemID: "ITEM-missing", Quantity: 1}},
		PaymentMethod: domain.PaymentCard,
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCompleteSaleCashShort(t *testing.T) {
	s := newTestService()
	item := seedItem(t, s, "Rice", 500_00, 5)
	_, err := s.CompleteSale(context.Background(), testUser, CompleteSaleInput{
		Items:           []SaleItemInput{{ItemID: item.ID, Quantity: 2}},
		PaymentMethod:   domain.PaymentCash,
		CashAmountCents: 900_00,
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for short cash, got %v", err)
	}
}

func TestCompleteSaleCardSkipsDrawer(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	item := seedItem(t, s, "Sugar", 120_00, 8)
	initDrawer(t, s, 10_00)

	if _, err := s.CompleteSale(ctx, testUser, CompleteSaleInput{
		Items:         []SaleItemInput{{ItemID: item.ID, Quantity: 1}},
		PaymentMethod: domain.PaymentCard,
	}); err != nil {
		t.Fatalf("complete sale: %v", err)
	}
	balance, err := s.DrawerBalance(ctx, testUser)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 10_00 {
		t.Fatalf("card sale changed drawer balance to %d", balance)
	}
}

func TestConcurrentSalesKeepChainAndReceiptsConsistent(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	item := seedItem(t, s, "Eggs", 30_00, 100)
	initDrawer(t, s, 0)

	const n = 20
	var wg sync.WaitGroup
	results := make(chan domain.SaleRecord, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sale, err := s.CompleteSale(ctx, testUser, CompleteSaleInput{
				Items:           []SaleItemInput{{ItemID: item.ID, Quantity: 2}},
				PaymentMethod:   domain.PaymentCash,
				CashAmountCents: 60_00,
			})
			if err != nil {
				t.Errorf("complete sale: %v", err)
				return
			}
			results <- sale
		}()
	}
	wg.Wait()
	close(results)

	receipts := make(map[string]bool)
	values := make(map[int64]bool)
	for sale := range results {
		if receipts[sale.ReceiptNumber] {
			t.Fatalf("receipt %s issued twice", sale.ReceiptNumber)
		}
		receipts[sale.ReceiptNumber] = true
		values[sale.ReceiptNumberValue] = true
	}
	if len(receipts) != n {
		t.Fatalf("completed %d sales, want %d", len(receipts), n)
	}
	// The underlying counter values must be dense: every number in 1..n
	// handed out exactly once.
	for v := int64(1); v <= n; v++ {
		if !values[v] {
			t.Fatalf("receipt value %d never issued", v)
		}
	}

	got, err := s.Item(ctx, testUser, item.ID)
	if err != nil {
		t.Fatalf("reload item: %v", err)
	}
	if got.Stock != 100-2*n {
		t.Fatalf("stock = %d, want %d", got.Stock, 100-2*n)
	}

	entries, err := s.DrawerHistory(ctx, testUser, store.EntryFilter{})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	// n sale entries plus the initialization, newest first.
	if len(entries) != n+1 {
		t.Fatalf("got %d entries, want %d", len(entries), n+1)
	}
	for i := 0; i < len(entries); i++ {
		if entries[i].BalanceCents != entries[i].PreviousBalanceCents+entries[i].AmountCents {
			t.Fatalf("entry %s violates balance arithmetic", entries[i].ID)
		}
		if i+1 < len(entries) && entries[i].PreviousBalanceCents != entries[i+1].BalanceCents {
			t.Fatalf("chain broken at entry %s", entries[i].ID)
		}
	}
	if entries[0].BalanceCents != int64(n)*60_00 {
		t.Fatalf("final balance = %d, want %d", entries[0].BalanceCents, int64(n)*60_00)
	}
}

func TestDrawerRemoveBeyondBalance(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	initDrawer(t, s, 20_00)
	_, err := s.RemoveFromDrawer(ctx, testUser, 50_00, "bank deposit")
	if !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	balance, err := s.DrawerBalance(ctx, testUser)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 20_00 {
		t.Fatalf("balance = %d, want unchanged 2000", balance)
	}
}

func TestDrawerCountStoresCorrectionDelta(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	initDrawer(t, s, 100_00)
	if _, err := s.AddToDrawer(ctx, testUser, 25_00, "float top-up"); err != nil {
		t.Fatalf("add: %v", err)
	}

	// Physical count finds less cash than the ledger expects.
	entry, err := s.ApplyDrawerOperation(ctx, testUser, domain.DrawerCount, 110_00, "end of shift count")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if entry.AmountCents != -15_00 {
		t.Fatalf("count delta = %d, want -1500", entry.AmountCents)
	}
	if entry.BalanceCents != 110_00 {
		t.Fatalf("balance after count = %d, want 11000", entry.BalanceCents)
	}
}

func TestDrawerInitializeTwiceRejected(t *testing.T) {
	s := newTestService()
	initDrawer(t, s, 10_00)
	_, err := s.ApplyDrawerOperation(context.Background(), testUser, domain.DrawerInitialization, 5_00, "again")
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDrawerDirectSaleOperationRejected(t *testing.T) {
	s := newTestService()
	for _, op := range []string{domain.DrawerSale, domain.DrawerExpense} {
		_, err := s.ApplyDrawerOperation(context.Background(), testUser, op, 10_00, "manual")
		if !errors.Is(err, store.ErrValidation) {
			t.Fatalf("operation %q: expected validation error, got %v", op, err)
		}
	}
}

func TestCashExpenseLinksDrawerEntryAndDeleteReverses(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	initDrawer(t, s, 200_00)

	exp, err := s.CreateExpense(ctx, testUser, ExpenseInput{
		Category:      "utilities",
		Description:   "electricity bill",
		AmountCents:   75_00,
		PaymentMethod: domain.PaymentCash,
	})
	if err != nil {
		t.Fatalf("create expense: %v", err)
	}
	if exp.DrawerEntryID == "" {
		t.Fatal("cash expense should link its drawer entry")
	}
	entry, err := s.DrawerEntry(ctx, testUser, exp.DrawerEntryID)
	if err != nil {
		t.Fatalf("drawer entry: %v", err)
	}
	if entry.AmountCents != -75_00 {
		t.Fatalf("expense entry amount = %d, want -7500", entry.AmountCents)
	}
	balance, _ := s.DrawerBalance(ctx, testUser)
	if balance != 125_00 {
		t.Fatalf("balance = %d, want 12500", balance)
	}

	if err := s.DeleteExpense(ctx, testUser, exp.ID); err != nil {
		t.Fatalf("delete expense: %v", err)
	}
	balance, _ = s.DrawerBalance(ctx, testUser)
	if balance != 200_00 {
		t.Fatalf("balance after reversal = %d, want 20000", balance)
	}
	adds, err := s.DrawerHistory(ctx, testUser, store.EntryFilter{Operation: domain.DrawerAdd})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(adds) != 1 || adds[0].ReferenceID != exp.ID {
		t.Fatalf("expected one reversing add entry referencing %s", exp.ID)
	}
}

func TestCashExpenseRejectedWhenDrawerShort(t *testing.T) {
	s := newTestService()
	initDrawer(t, s, 10_00)
	_, err := s.CreateExpense(context.Background(), testUser, ExpenseInput{
		Category:      "rent",
		AmountCents:   500_00,
		PaymentMethod: domain.PaymentCash,
	})
	if !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
}

func TestCardExpenseSkipsDrawer(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	exp, err := s.CreateExpense(ctx, testUser, ExpenseInput{
		Category:      "supplies",
		AmountCents:   30_00,
		PaymentMethod: domain.PaymentCard,
	})
	if err != nil {
		t.Fatalf("create expense: %v", err)
	}
	if exp.DrawerEntryID != "" {
		t.Fatal("card expense must not touch the drawer")
	}
}

func TestExpenseAmountUpdateSettlesDifference(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	initDrawer(t, s, 100_00)
	exp, err := s.CreateExpense(ctx, testUser, ExpenseInput{
		Category:      "fuel",
		AmountCents:   40_00,
		PaymentMethod: domain.PaymentCash,
	})
	if err != nil {
		t.Fatalf("create expense: %v", err)
	}
	if _, err := s.UpdateExpense(ctx, testUser, exp.ID, ExpenseInput{
		Category:      "fuel",
		AmountCents:   25_00,
		PaymentMethod: domain.PaymentCash,
	}); err != nil {
		t.Fatalf("update expense: %v", err)
	}
	balance, _ := s.DrawerBalance(ctx, testUser)
	if balance != 75_00 {
		t.Fatalf("balance = %d, want 7500 after refunding 1500", balance)
	}
}

func TestPayTaxRecordRequiresDrawer(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	rec, err := s.CreateTaxRecord(ctx, testUser, TaxRecordInput{
		Type:       domain.TaxTypeIncome,
		BasisCents: 100_000_000,
	})
	if err != nil {
		t.Fatalf("create tax record: %v", err)
	}
	if rec.TaxDueCents != 2_000_000 {
		t.Fatalf("tax due = %d, want 2000000", rec.TaxDueCents)
	}
	if _, err := s.PayTaxRecord(ctx, testUser, rec.ID, 0); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error without a drawer, got %v", err)
	}
}

func TestPayTaxRecordFullFlow(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	initDrawer(t, s, 5_000_000)
	rec, err := s.CreateTaxRecord(ctx, testUser, TaxRecordInput{
		Type:       domain.TaxTypeZakat,
		BasisCents: 100_000_00,
	})
	if err != nil {
		t.Fatalf("create tax record: %v", err)
	}
	if rec.TaxDueCents != 2_500_00 {
		t.Fatalf("zakat due = %d, want 250000", rec.TaxDueCents)
	}

	paid, err := s.PayTaxRecord(ctx, testUser, rec.ID, 0)
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if paid.Status != domain.TaxStatusPaid || paid.PaidAt == nil {
		t.Fatalf("record not marked paid: %+v", paid)
	}
	if paid.DrawerEntryID == "" {
		t.Fatal("payment should link a drawer entry")
	}
	entry, err := s.DrawerEntry(ctx, testUser, paid.DrawerEntryID)
	if err != nil {
		t.Fatalf("drawer entry: %v", err)
	}
	if entry.Operation != domain.DrawerExpense || entry.AmountCents != -2_500_00 {
		t.Fatalf("payment entry = %+v, want expense of -250000", entry)
	}
	if _, err := s.PayTaxRecord(ctx, testUser, rec.ID, 0); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected rejection of double payment, got %v", err)
	}
}

func TestSalesTaxAppliedFromSettings(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	if _, err := s.UpdateTaxSettings(ctx, testUser, TaxSettingsInput{SalesTaxPercent: 10}); err != nil {
		t.Fatalf("settings: %v", err)
	}
	item := seedItem(t, s, "Flour", 100_00, 10)
	sale, err := s.CompleteSale(ctx, testUser, CompleteSaleInput{
		Items:           []SaleItemInput{{ItemID: item.ID, Quantity: 2}},
		DiscountCents:   20_00,
		PaymentMethod:   domain.PaymentCash,
		CashAmountCents: 300_00,
	})
	if err != nil {
		t.Fatalf("complete sale: %v", err)
	}
	// Subtotal 20000, discount 2000, tax 10% of 18000 = 1800.
	if sale.TaxCents != 18_00 {
		t.Fatalf("tax = %d, want 1800", sale.TaxCents)
	}
	if sale.TotalCents != 198_00 {
		t.Fatalf("total = %d, want 19800", sale.TotalCents)
	}
}

func TestRestockAdvancesSupplierCounters(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	item := seedItem(t, s, "Tea", 90_00, 1)
	sup, err := s.CreateSupplier(ctx, testUser, SupplierInput{Name: "Karachi Traders"})
	if err != nil {
		t.Fatalf("create supplier: %v", err)
	}
	if _, err := s.RestockItem(ctx, testUser, item.ID, 24, sup.ID); err != nil {
		t.Fatalf("restock: %v", err)
	}
	got, err := s.Supplier(ctx, testUser, sup.ID)
	if err != nil {
		t.Fatalf("supplier: %v", err)
	}
	if got.TotalOrders != 1 || got.LastOrderAt == nil {
		t.Fatalf("supplier counters not advanced: %+v", got)
	}
	item, err = s.Item(ctx, testUser, item.ID)
	if err != nil {
		t.Fatalf("item: %v", err)
	}
	if item.Stock != 25 || item.Status != domain.StatusInStock {
		t.Fatalf("item after restock = stock %d status %s", item.Stock, item.Status)
	}
}

func TestTodayReportAggregates(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	item := seedItem(t, s, "Bread", 60_00, 20)
	initDrawer(t, s, 0)
	for i := 0; i < 3; i++ {
		if _, err := s.CompleteSale(ctx, testUser, CompleteSaleInput{
			Items:           []SaleItemInput{{ItemID: item.ID, Quantity: 2}},
			PaymentMethod:   domain.PaymentCash,
			CashAmountCents: 120_00,
		}); err != nil {
			t.Fatalf("sale %d: %v", i, err)
		}
	}
	if _, err := s.CreateExpense(ctx, testUser, ExpenseInput{
		Category: "misc", AmountCents: 10_00, PaymentMethod: domain.PaymentCash,
	}); err != nil {
		t.Fatalf("expense: %v", err)
	}

	report, err := s.TodayReport(ctx, testUser)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if report.SalesCount != 3 || report.SalesTotalCents != 360_00 {
		t.Fatalf("report sales = %d/%d, want 3/36000", report.SalesCount, report.SalesTotalCents)
	}
	if report.ItemsSold != 6 {
		t.Fatalf("items sold = %d, want 6", report.ItemsSold)
	}
	if report.ExpensesTotalCents != 10_00 {
		t.Fatalf("expenses = %d, want 1000", report.ExpensesTotalCents)
	}
	if report.DrawerBalanceCents != 350_00 {
		t.Fatalf("drawer = %d, want 35000", report.DrawerBalanceCents)
	}
	if len(report.TopItems) != 1 || report.TopItems[0].QuantitySold != 6 {
		t.Fatalf("top items = %+v", report.TopItems)
	}
	if report.ProfitCents != 350_00 {
		t.Fatalf("profit = %d, want 35000", report.ProfitCents)
	}
	var hourlySales int64
	for _, bucket := range report.HourlyBuckets {
		hourlySales += bucket.SalesCount
	}
	if hourlySales != 3 {
		t.Fatalf("hourly bucket sales = %d, want 3", hourlySales)
	}
	// Three cash sales in, one cash expense out.
	if report.DrawerOpsCents[domain.DrawerSale] != 360_00 {
		t.Fatalf("drawer sale ops = %d, want 36000", report.DrawerOpsCents[domain.DrawerSale])
	}
	if report.DrawerOpsCents[domain.DrawerExpense] != -10_00 {
		t.Fatalf("drawer expense ops = %d, want -1000", report.DrawerOpsCents[domain.DrawerExpense])
	}
}

func TestDashboardReport(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	seedItem(t, s, "Soap", 50_00, 0)
	seedItem(t, s, "Shampoo", 300_00, 2)
	seedItem(t, s, "Towel", 400_00, 50)
	if _, err := s.CreateTaxRecord(ctx, testUser, TaxRecordInput{
		Type: domain.TaxTypeZakat, BasisCents: 40_000_00,
	}); err != nil {
		t.Fatalf("tax record: %v", err)
	}

	report, err := s.DashboardReport(ctx, testUser)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if report.InventoryCount != 3 {
		t.Fatalf("inventory count = %d, want 3", report.InventoryCount)
	}
	if report.OutOfStockCount != 1 || report.LowStockCount != 1 {
		t.Fatalf("stock buckets = out %d low %d, want 1/1", report.OutOfStockCount, report.LowStockCount)
	}
	if report.PendingTaxCents != 1_000_00 {
		t.Fatalf("pending tax = %d, want 100000", report.PendingTaxCents)
	}
}

func TestFormatReceipt(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	item := seedItem(t, s, "Chai", 150_00, 5)
	initDrawer(t, s, 0)
	sale, err := s.CompleteSale(ctx, testUser, CompleteSaleInput{
		Items:           []SaleItemInput{{ItemID: item.ID, Quantity: 2}},
		PaymentMethod:   domain.PaymentCash,
		CashAmountCents: 350_00,
	})
	if err != nil {
		t.Fatalf("sale: %v", err)
	}
	text, err := s.RenderReceipt(ctx, testUser, sale.ID, "Test Mart")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{"Test Mart", sale.ReceiptNumber, "Chai", "300.00", "Change"} {
		if !strings.Contains(text, want) {
			t.Fatalf("receipt missing %q:\n%s", want, text)
		}
	}
}

func TestTaxRecordReassessAndDelete(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	rec, err := s.CreateTaxRecord(ctx, testUser, TaxRecordInput{
		Type: domain.TaxTypeZakat, BasisCents: 100_000_00,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.TaxDueCents != 2_500_00 {
		t.Fatalf("due = %d, want 250000", rec.TaxDueCents)
	}

	updated, err := s.UpdateTaxRecord(ctx, testUser, rec.ID, TaxRecordInput{
		Type: domain.TaxTypeZakat, BasisCents: 200_000_00, Period: "2026",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.TaxDueCents != 5_000_00 || updated.Period != "2026" {
		t.Fatalf("updated = due %d period %q", updated.TaxDueCents, updated.Period)
	}

	if err := s.DeleteTaxRecord(ctx, testUser, rec.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.TaxRecord(ctx, testUser, rec.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("get after delete = %v, want ErrNotFound", err)
	}
}

func TestPaidTaxRecordIsImmutable(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	initDrawer(t, s, 10_000_00)
	rec, err := s.CreateTaxRecord(ctx, testUser, TaxRecordInput{
		Type: domain.TaxTypeZakat, BasisCents: 10_000_00,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.PayTaxRecord(ctx, testUser, rec.ID, 0); err != nil {
		t.Fatalf("pay: %v", err)
	}

	if _, err := s.UpdateTaxRecord(ctx, testUser, rec.ID, TaxRecordInput{
		Type: domain.TaxTypeZakat, BasisCents: 20_000_00,
	}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("update paid = %v, want ErrValidation", err)
	}
	if err := s.DeleteTaxRecord(ctx, testUser, rec.ID); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("delete paid = %v, want ErrValidation", err)
	}
}

func TestCategoriesAndInventoryStats(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	for _, seed := range []struct {
		name     string
		category string
		price    int64
		cost     int64
		stock    int64
	}{
		{"Chai", "drinks", 150_00, 90_00, 10},
		{"Coffee", "drinks", 300_00, 200_00, 0},
		{"Rusk", "bakery", 80_00, 40_00, 1},
	} {
		if _, err := s.CreateItem(ctx, testUser, CreateItemInput{
			Name:         seed.name,
			Category:     seed.category,
			PriceCents:   seed.price,
			CostCents:    seed.cost,
			Stock:        seed.stock,
			ReorderLevel: 2,
		}); err != nil {
			t.Fatalf("seed %s: %v", seed.name, err)
		}
	}

	categories, err := s.ItemCategories(ctx, testUser)
	if err != nil {
		t.Fatalf("categories: %v", err)
	}
	if len(categories) != 2 || categories[0] != "bakery" || categories[1] != "drinks" {
		t.Fatalf("categories = %v", categories)
	}

	stats, err := s.InventoryStats(ctx, testUser)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.ItemCount != 3 || stats.StockUnits != 11 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.OutOfStockCount != 1 || stats.LowStockCount != 1 {
		t.Fatalf("stock buckets = %+v", stats)
	}
	if stats.RetailValueCents != 150_00*10+80_00*1 {
		t.Fatalf("retail value = %d", stats.RetailValueCents)
	}
	if stats.CostValueCents != 90_00*10+40_00*1 {
		t.Fatalf("cost value = %d", stats.CostValueCents)
	}
}

func TestExpenseCategories(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	for _, category := range []string{"rent", "utilities", "rent"} {
		if _, err := s.CreateExpense(ctx, testUser, ExpenseInput{
			Category: category, AmountCents: 5_00, PaymentMethod: domain.PaymentCard,
		}); err != nil {
			t.Fatalf("expense %s: %v", category, err)
		}
	}
	categories, err := s.ExpenseCategories(ctx, testUser)
	if err != nil {
		t.Fatalf("categories: %v", err)
	}
	if len(categories) != 2 || categories[0] != "rent" || categories[1] != "utilities" {
		t.Fatalf("categories = %v", categories)
	}
}

func TestTodayReportServedFromRedisUntilTTL(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	repo := memory.New()
	s := New(repo, cache.NewRedisFromClient(client))
	ctx := context.Background()

	item := seedItem(t, s, "Biscuits", 40_00, 50)
	initDrawer(t, s, 0)
	if _, err := s.CompleteSale(ctx, testUser, CompleteSaleInput{
		Items:           []SaleItemInput{{ItemID: item.ID, Quantity: 1}},
		PaymentMethod:   domain.PaymentCash,
		CashAmountCents: 40_00,
	}); err != nil {
		t.Fatalf("sale: %v", err)
	}

	report, err := s.TodayReport(ctx, testUser)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if report.SalesCount != 1 {
		t.Fatalf("sales count = %d, want 1", report.SalesCount)
	}

	// Write through a sibling instance that shares the store but not the
	// cache, so the cached payload stays behind the data.
	sidecar := New(repo, cache.Noop{})
	if _, err := sidecar.CompleteSale(ctx, testUser, CompleteSaleInput{
		Items:           []SaleItemInput{{ItemID: item.ID, Quantity: 1}},
		PaymentMethod:   domain.PaymentCash,
		CashAmountCents: 40_00,
	}); err != nil {
		t.Fatalf("sidecar sale: %v", err)
	}

	report, err = s.TodayReport(ctx, testUser)
	if err != nil {
		t.Fatalf("cached report: %v", err)
	}
	if report.SalesCount != 1 {
		t.Fatalf("cached sales count = %d, want stale 1", report.SalesCount)
	}

	srv.FastForward(31 * time.Second)
	report, err = s.TodayReport(ctx, testUser)
	if err != nil {
		t.Fatalf("refreshed report: %v", err)
	}
	if report.SalesCount != 2 {
		t.Fatalf("refreshed sales count = %d, want 2", report.SalesCount)
	}
}

// flakyRepo wraps the in-memory store and fails selected operations on
// demand.
type flakyRepo struct {
	store.Repository
	failAppend bool
	failDelete bool
}

func (r *flakyRepo) AppendCashDrawerEntry(ctx context.Context, entry domain.CashDrawerEntry) (domain.CashDrawerEntry, error) {
	if r.failAppend {
		return domain.CashDrawerEntry{}, fmt.Errorf("%w: simulated contention", store.ErrConflict)
	}
	return r.Repository.AppendCashDrawerEntry(ctx, entry)
}

func (r *flakyRepo) DeleteExpense(ctx context.Context, userID, id string) error {
	if r.failDelete {
		return errors.New("simulated storage failure")
	}
	return r.Repository.DeleteExpense(ctx, userID, id)
}

func TestExhaustedDrawerContentionIsNotAClientConflict(t *testing.T) {
	repo := &flakyRepo{Repository: memory.New(), failAppend: true}
	s := New(repo, cache.Noop{})
	ctx := context.Background()

	_, err := s.ApplyDrawerOperation(ctx, testUser, domain.DrawerInitialization, 100_00, "opening float")
	if err == nil {
		t.Fatal("expected error when every append attempt conflicts")
	}
	if errors.Is(err, store.ErrConflict) {
		t.Fatalf("exhausted retries still report a conflict: %v", err)
	}
	if !strings.Contains(err.Error(), "did not settle") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDeleteExpenseKeepsRecordWhenReversalFails(t *testing.T) {
	repo := &flakyRepo{Repository: memory.New()}
	s := New(repo, cache.Noop{})
	ctx := context.Background()
	initDrawer(t, s, 100_00)

	exp, err := s.CreateExpense(ctx, testUser, ExpenseInput{
		Category: "fuel", AmountCents: 40_00, PaymentMethod: domain.PaymentCash,
	})
	if err != nil {
		t.Fatalf("create expense: %v", err)
	}

	repo.failAppend = true
	if err := s.DeleteExpense(ctx, testUser, exp.ID); err == nil {
		t.Fatal("expected delete to fail when the reversal cannot be appended")
	}
	if _, err := s.Expense(ctx, testUser, exp.ID); err != nil {
		t.Fatalf("expense should survive a failed reversal: %v", err)
	}

	repo.failAppend = false
	balance, err := s.DrawerBalance(ctx, testUser)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 60_00 {
		t.Fatalf("balance = %d, want 6000", balance)
	}
}

func TestDeleteExpenseRestoresPayoutWhenDeleteFails(t *testing.T) {
	repo := &flakyRepo{Repository: memory.New()}
	s := New(repo, cache.Noop{})
	ctx := context.Background()
	initDrawer(t, s, 100_00)

	exp, err := s.CreateExpense(ctx, testUser, ExpenseInput{
		Category: "fuel", AmountCents: 40_00, PaymentMethod: domain.PaymentCash,
	})
	if err != nil {
		t.Fatalf("create expense: %v", err)
	}

	repo.failDelete = true
	if err := s.DeleteExpense(ctx, testUser, exp.ID); err == nil {
		t.Fatal("expected delete error to surface")
	}
	if _, err := s.Expense(ctx, testUser, exp.ID); err != nil {
		t.Fatalf("expense should still exist: %v", err)
	}
	balance, err := s.DrawerBalance(ctx, testUser)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	// The reversal and its compensation cancel out.
	if balance != 60_00 {
		t.Fatalf("balance = %d, want 6000", balance)
	}
}

func TestPartialTaxPaymentStatus(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	initDrawer(t, s, 100_000_00)
	rec, err := s.CreateTaxRecord(ctx, testUser, TaxRecordInput{
		Type: domain.TaxTypeZakat, BasisCents: 100_000_00,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	paid, err := s.PayTaxRecord(ctx, testUser, rec.ID, 1_000_00)
	if err != nil {
		t.Fatalf("partial pay: %v", err)
	}
	if paid.Status != domain.TaxStatusPartiallyPaid || paid.PaidCents != 1_000_00 {
		t.Fatalf("after partial pay = status %q paid %d", paid.Status, paid.PaidCents)
	}
	if paid.PaidAt != nil {
		t.Fatal("partial payment must not set PaidAt")
	}

	report, err := s.DashboardReport(ctx, testUser)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if report.PendingTaxCents != 1_500_00 {
		t.Fatalf("pending tax = %d, want 150000", report.PendingTaxCents)
	}

	settled, err := s.PayTaxRecord(ctx, testUser, rec.ID, 0)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if settled.Status != domain.TaxStatusPaid || settled.PaidAt == nil {
		t.Fatalf("after settle = status %q paidAt %v", settled.Status, settled.PaidAt)
	}
}

func TestReceiptUsesBusinessProfile(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	item := seedItem(t, s, "Chai", 150_00, 5)
	initDrawer(t, s, 0)
	sale, err := s.CompleteSale(ctx, testUser, CompleteSaleInput{
		Items:           []SaleItemInput{{ItemID: item.ID, Quantity: 1}},
		PaymentMethod:   domain.PaymentCash,
		CashAmountCents: 150_00,
	})
	if err != nil {
		t.Fatalf("sale: %v", err)
	}

	if _, err := s.UpdateBusinessSettings(ctx, testUser, BusinessSettingsInput{
		BusinessName:  "Madina General Store",
		Address:       "Shop 4, Saddar Bazaar",
		ReceiptHeader: "NTN 1234567-8",
		ReceiptFooter: "No returns without receipt",
	}); err != nil {
		t.Fatalf("save settings: %v", err)
	}

	text, err := s.RenderReceipt(ctx, testUser, sale.ID, "Fallback Mart")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{"Madina General Store", "Saddar Bazaar", "NTN 1234567-8", "No returns without receipt"} {
		if !strings.Contains(text, want) {
			t.Fatalf("receipt missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "Fallback Mart") {
		t.Fatal("default name should not appear once a profile is saved")
	}

	// A second tenant with no profile falls back to the default name.
	other := "USR-other"
	otherItem, err := s.CreateItem(ctx, other, CreateItemInput{Name: "Soap", PriceCents: 50_00, Stock: 5, ReorderLevel: 1})
	if err != nil {
		t.Fatalf("other item: %v", err)
	}
	if _, err := s.ApplyDrawerOperation(ctx, other, domain.DrawerInitialization, 0, "opening"); err != nil {
		t.Fatalf("other drawer: %v", err)
	}
	otherSale, err := s.CompleteSale(ctx, other, CompleteSaleInput{
		Items:           []SaleItemInput{{ItemID: otherItem.ID, Quantity: 1}},
		PaymentMethod:   domain.PaymentCash,
		CashAmountCents: 50_00,
	})
	if err != nil {
		t.Fatalf("other sale: %v", err)
	}
	otherText, err := s.RenderReceipt(ctx, other, otherSale.ID, "Fallback Mart")
	if err != nil {
		t.Fatalf("other render: %v", err)
	}
	if !strings.Contains(otherText, "Fallback Mart") {
		t.Fatalf("fallback name missing:\n%s", otherText)
	}
}
