package service

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"dukaanpos/backend/internal/cache"
	"dukaanpos/backend/internal/domain"
	"dukaanpos/backend/internal/store"
)

// Cache key suffixes for the report endpoints.
const (
	reportToday     = "today"
	reportDashboard = "dashboard"
)

// reportTTL bounds staleness between a mutation on another instance and
// this one's cache.
const reportTTL = 30 * time.Second

// TodayReport summarizes the tenant's current calendar day (UTC).
func (s *Service) TodayReport(ctx context.Context, userID string) (domain.DailySummary, error) {
	key := cache.Key(userID, reportToday)
	if payload, ok := s.cache.Get(ctx, key); ok {
		var cached domain.DailySummary
		if err := json.Unmarshal(payload, &cached); err == nil {
			return cached, nil
		}
		log.Printf("[service] WARN: discarding undecodable cached report %s", key)
	}

	now := s.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	var (
		sales    []domain.SaleRecord
		expenses []domain.Expense
		entries  []domain.CashDrawerEntry
		balance  int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sales, err = s.repo.ListSales(gctx, userID, store.SaleFilter{From: dayStart, To: dayEnd})
		return err
	})
	g.Go(func() error {
		var err error
		expenses, err = s.repo.ListExpenses(gctx, userID, store.ExpenseFilter{From: dayStart, To: dayEnd})
		return err
	})
	g.Go(func() error {
		var err error
		entries, err = s.repo.ListCashDrawerEntries(gctx, userID, store.EntryFilter{From: dayStart, To: dayEnd})
		return err
	})
	g.Go(func() error {
		var err error
		balance, err = s.DrawerBalance(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.DailySummary{}, err
	}

	summary := domain.DailySummary{
		Date:               dayStart.Format("2006-01-02"),
		DrawerBalanceCents: balance,
	}
	perItem := make(map[string]*domain.TopItem)
	perHour := make(map[int]*domain.HourBucket)
	for _, sale := range sales {
		summary.SalesCount++
		summary.SalesTotalCents += sale.TotalCents
		hour := sale.CreatedAt.UTC().Hour()
		bucket, ok := perHour[hour]
		if !ok {
			bucket = &domain.HourBucket{Hour: hour}
			perHour[hour] = bucket
		}
		bucket.SalesCount++
		bucket.TotalCents += sale.TotalCents
		for _, line := range sale.Items {
			summary.ItemsSold += line.Quantity
			top, ok := perItem[line.ItemID]
			if !ok {
				top = &domain.TopItem{ItemID: line.ItemID, Name: line.Name}
				perItem[line.ItemID] = top
			}
			top.QuantitySold += line.Quantity
			top.RevenueCents += line.TotalCents
		}
	}
	for _, exp := range expenses {
		summary.ExpensesTotalCents += exp.AmountCents
	}
	if len(entries) > 0 {
		summary.DrawerOpsCents = make(map[string]int64, 4)
		for _, entry := range entries {
			summary.DrawerOpsCents[entry.Operation] += entry.AmountCents
		}
	}
	if summary.SalesCount > 0 {
		summary.AverageSaleCents = summary.SalesTotalCents / summary.SalesCount
	}
	summary.ProfitCents = summary.SalesTotalCents - summary.ExpensesTotalCents
	summary.TopItems = topItems(perItem, 5)
	summary.HourlyBuckets = hourBuckets(perHour)

	s.cacheReport(ctx, key, summary)
	return summary, nil
}

// DashboardReport aggregates the whole account for the dashboard view.
func (s *Service) DashboardReport(ctx context.Context, userID string) (domain.DashboardSummary, error) {
	key := cache.Key(userID, reportDashboard)
	if payload, ok := s.cache.Get(ctx, key); ok {
		var cached domain.DashboardSummary
		if err := json.Unmarshal(payload, &cached); err == nil {
			return cached, nil
		}
		log.Printf("[service] WARN: discarding undecodable cached report %s", key)
	}

	var (
		items     []domain.InventoryItem
		sales     []domain.SaleRecord
		expenses  []domain.Expense
		taxes     []domain.TaxRecord
		suppliers []domain.Supplier
		balance   int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = s.repo.ListItems(gctx, userID, store.ItemFilter{})
		return err
	})
	g.Go(func() error {
		var err error
		sales, err = s.repo.ListSales(gctx, userID, store.SaleFilter{})
		return err
	})
	g.Go(func() error {
		var err error
		expenses, err = s.repo.ListExpenses(gctx, userID, store.ExpenseFilter{})
		return err
	})
	g.Go(func() error {
		var err error
		taxes, err = s.repo.ListTaxRecords(gctx, userID, store.TaxRecordFilter{})
		return err
	})
	g.Go(func() error {
		var err error
		suppliers, err = s.repo.ListSuppliers(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		balance, err = s.DrawerBalance(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.DashboardSummary{}, err
	}

	summary := domain.DashboardSummary{
		DrawerBalanceCents: balance,
		SupplierCount:      int64(len(suppliers)),
	}
	for _, item := range items {
		summary.InventoryCount++
		summary.InventoryValueCents += item.PriceCents * item.Stock
		switch item.Status {
		case domain.StatusLowStock:
			summary.LowStockCount++
		case domain.StatusOutOfStock:
			summary.OutOfStockCount++
		}
	}
	for _, sale := range sales {
		summary.SalesCount++
		summary.SalesTotalCents += sale.TotalCents
	}
	for _, exp := range expenses {
		summary.ExpensesTotalCents += exp.AmountCents
	}
	for _, rec := range taxes {
		if rec.Status != domain.TaxStatusPaid {
			summary.PendingTaxCents += rec.TaxDueCents - rec.PaidCents
		}
	}

	s.cacheReport(ctx, key, summary)
	return summary, nil
}

func (s *Service) cacheReport(ctx context.Context, key string, report any) {
	payload, err := json.Marshal(report)
	if err != nil {
		log.Printf("[service] WARN: marshal report %s: %v", key, err)
		return
	}
	s.cache.Set(ctx, key, payload, reportTTL)
}

func hourBuckets(perHour map[int]*domain.HourBucket) []domain.HourBucket {
	if len(perHour) == 0 {
		return nil
	}
	out := make([]domain.HourBucket, 0, len(perHour))
	for _, bucket := range perHour {
		out = append(out, *bucket)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hour < out[j].Hour })
	return out
}

func topItems(perItem map[string]*domain.TopItem, limit int) []domain.TopItem {
	out := make([]domain.TopItem, 0, len(perItem))
	for _, top := range perItem {
		out = append(out, *top)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].QuantitySold != out[j].QuantitySold {
			return out[i].QuantitySold > out[j].QuantitySold
		}
		return out[i].Name < out[j].Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
