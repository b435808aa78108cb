package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"dukaanpos/backend/internal/domain"
	"dukaanpos/backend/internal/store"
	"dukaanpos/backend/internal/taxcalc"
	"dukaanpos/backend/internal/xid"
)

func roundPercent(amountCents int64, percent float64) int64 {
	return int64(math.Round(float64(amountCents) * percent / 100))
}

// taxSettingsOrDefault returns the tenant's settings, falling back to
// the defaults when none were ever saved.
func (s *Service) taxSettingsOrDefault(ctx context.Context, userID string) (domain.TaxSettings, error) {
	settings, err := s.repo.GetTaxSettings(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.TaxSettings{
				UserID:           userID,
				IncomeTaxEnabled: true,
				ZakatEnabled:     true,
			}, nil
		}
		return domain.TaxSettings{}, err
	}
	return settings, nil
}

func (s *Service) TaxSettings(ctx context.Context, userID string) (domain.TaxSettings, error) {
	return s.taxSettingsOrDefault(ctx, userID)
}

type TaxSettingsInput struct {
	BusinessType     string
	TaxIDNumber      string
	IncomeTaxEnabled bool
	ZakatEnabled     bool
	SalesTaxPercent  float64
	CustomSlabs      []taxcalc.Slab
}

func (s *Service) UpdateTaxSettings(ctx context.Context, userID string, in TaxSettingsInput) (domain.TaxSettings, error) {
	if in.SalesTaxPercent < 0 || in.SalesTaxPercent > 100 {
		return domain.TaxSettings{}, validationErr("sales tax percent must be between 0 and 100")
	}
	if len(in.CustomSlabs) > 0 {
		if err := taxcalc.ValidateSlabs(in.CustomSlabs); err != nil {
			return domain.TaxSettings{}, validationErr("custom slabs: %v", err)
		}
	}
	settings := domain.TaxSettings{
		UserID:           userID,
		BusinessType:     strings.TrimSpace(in.BusinessType),
		TaxIDNumber:      strings.TrimSpace(in.TaxIDNumber),
		IncomeTaxEnabled: in.IncomeTaxEnabled,
		ZakatEnabled:     in.ZakatEnabled,
		SalesTaxPercent:  in.SalesTaxPercent,
		CustomSlabs:      in.CustomSlabs,
		UpdatedAt:        s.now(),
	}
	saved, err := s.repo.SaveTaxSettings(ctx, settings)
	if err != nil {
		return domain.TaxSettings{}, err
	}
	s.logAudit(ctx, "tax.settings", "user="+userID)
	return saved, nil
}

// TaxEstimate is the result of a what-if calculation; nothing is stored.
type TaxEstimate struct {
	Type        string  `json:"type"`
	BasisCents  int64   `json:"basisCents"`
	TaxDueCents int64   `json:"taxDueCents"`
	RatePercent float64 `json:"ratePercent,omitempty"`
}

// CalculateTax estimates the obligation for an income or wealth figure
// under the tenant's settings.
func (s *Service) CalculateTax(ctx context.Context, userID, taxType string, basisCents int64) (TaxEstimate, error) {
	if basisCents < 0 {
		return TaxEstimate{}, validationErr("amount cannot be negative")
	}
	settings, err := s.taxSettingsOrDefault(ctx, userID)
	if err != nil {
		return TaxEstimate{}, err
	}
	switch taxType {
	case domain.TaxTypeIncome:
		if !settings.IncomeTaxEnabled {
			return TaxEstimate{}, validationErr("income tax is disabled in settings")
		}
		return TaxEstimate{
			Type:        domain.TaxTypeIncome,
			BasisCents:  basisCents,
			TaxDueCents: taxcalc.IncomeTax(basisCents, settings.CustomSlabs),
		}, nil
	case domain.TaxTypeZakat:
		if !settings.ZakatEnabled {
			return TaxEstimate{}, validationErr("zakat is disabled in settings")
		}
		return TaxEstimate{
			Type:        domain.TaxTypeZakat,
			BasisCents:  basisCents,
			TaxDueCents: taxcalc.Zakat(basisCents),
			RatePercent: taxcalc.ZakatRatePercent,
		}, nil
	}
	return TaxEstimate{}, validationErr("unknown tax type %q", taxType)
}

type TaxRecordInput struct {
	Type       string
	Period     string
	BasisCents int64
	Notes      string
}

// CreateTaxRecord assesses and stores a pending obligation.
func (s *Service) CreateTaxRecord(ctx context.Context, userID string, in TaxRecordInput) (domain.TaxRecord, error) {
	estimate, err := s.CalculateTax(ctx, userID, in.Type, in.BasisCents)
	if err != nil {
		return domain.TaxRecord{}, err
	}
	now := s.now()
	rec := domain.TaxRecord{
		ID:          xid.New(prefixTax),
		UserID:      userID,
		Type:        estimate.Type,
		Period:      strings.TrimSpace(in.Period),
		IncomeCents: in.BasisCents,
		TaxDueCents: estimate.TaxDueCents,
		Status:      domain.TaxStatusPending,
		Notes:       strings.TrimSpace(in.Notes),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	created, err := s.repo.CreateTaxRecord(ctx, rec)
	if err != nil {
		return domain.TaxRecord{}, err
	}
	s.logAudit(ctx, "tax.assess", fmt.Sprintf("id=%s type=%s due=%d", created.ID, created.Type, created.TaxDueCents))
	return created, nil
}

func (s *Service) TaxRecord(ctx context.Context, userID, id string) (domain.TaxRecord, error) {
	return s.repo.GetTaxRecord(ctx, userID, id)
}

func (s *Service) ListTaxRecords(ctx context.Context, userID string, f store.TaxRecordFilter) ([]domain.TaxRecord, error) {
	return s.repo.ListTaxRecords(ctx, userID, f)
}

// UpdateTaxRecord reassesses a pending obligation. Paid records are
// immutable.
func (s *Service) UpdateTaxRecord(ctx context.Context, userID, id string, in TaxRecordInput) (domain.TaxRecord, error) {
	rec, err := s.repo.GetTaxRecord(ctx, userID, id)
	if err != nil {
		return domain.TaxRecord{}, err
	}
	if rec.Status == domain.TaxStatusPaid {
		return domain.TaxRecord{}, validationErr("tax record %s is already paid", id)
	}
	estimate, err := s.CalculateTax(ctx, userID, in.Type, in.BasisCents)
	if err != nil {
		return domain.TaxRecord{}, err
	}
	if estimate.TaxDueCents < rec.PaidCents {
		return domain.TaxRecord{}, validationErr("reassessed due %d is below the %d already paid", estimate.TaxDueCents, rec.PaidCents)
	}
	rec.Type = estimate.Type
	rec.Period = strings.TrimSpace(in.Period)
	rec.IncomeCents = in.BasisCents
	rec.TaxDueCents = estimate.TaxDueCents
	rec.Notes = strings.TrimSpace(in.Notes)
	rec.UpdatedAt = s.now()
	updated, err := s.repo.UpdateTaxRecord(ctx, rec)
	if err != nil {
		return domain.TaxRecord{}, err
	}
	s.logAudit(ctx, "tax.reassess", fmt.Sprintf("id=%s due=%d", id, updated.TaxDueCents))
	return updated, nil
}

// DeleteTaxRecord removes a pending obligation. Records with any
// payment against them stay for the audit trail.
func (s *Service) DeleteTaxRecord(ctx context.Context, userID, id string) error {
	rec, err := s.repo.GetTaxRecord(ctx, userID, id)
	if err != nil {
		return err
	}
	if rec.PaidCents > 0 {
		return validationErr("tax record %s has payments recorded against it", id)
	}
	if err := s.repo.DeleteTaxRecord(ctx, userID, id); err != nil {
		return err
	}
	s.logAudit(ctx, "tax.delete", "id="+id)
	return nil
}

// PayTaxRecord settles an obligation out of the cash drawer. The drawer
// must have been initialized; payment is recorded as an expense entry
// and linked back to the record.
func (s *Service) PayTaxRecord(ctx context.Context, userID, id string, amountCents int64) (domain.TaxRecord, error) {
	unlock := s.lockTenant(userID)
	defer unlock()

	rec, err := s.repo.GetTaxRecord(ctx, userID, id)
	if err != nil {
		return domain.TaxRecord{}, err
	}
	if rec.Status == domain.TaxStatusPaid {
		return domain.TaxRecord{}, validationErr("tax record %s is already paid", id)
	}
	outstanding := rec.TaxDueCents - rec.PaidCents
	if amountCents == 0 {
		amountCents = outstanding
	}
	if amountCents <= 0 {
		return domain.TaxRecord{}, validationErr("payment amount must be positive")
	}
	if amountCents > outstanding {
		return domain.TaxRecord{}, validationErr("payment %d exceeds outstanding %d", amountCents, outstanding)
	}
	if _, err := s.repo.LastCashDrawerEntry(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.TaxRecord{}, validationErr("cash drawer is not initialized")
		}
		return domain.TaxRecord{}, err
	}

	entry, err := s.appendDrawerEntry(ctx, userID, drawerRequest{
		operation:   domain.DrawerExpense,
		amountCents: amountCents,
		reason:      fmt.Sprintf("Tax payment (%s)", rec.Type),
		referenceID: rec.ID,
	})
	if err != nil {
		return domain.TaxRecord{}, err
	}

	now := s.now()
	rec.PaidCents += amountCents
	rec.DrawerEntryID = entry.ID
	rec.UpdatedAt = now
	if rec.PaidCents >= rec.TaxDueCents {
		rec.Status = domain.TaxStatusPaid
		rec.PaidAt = &now
	} else {
		rec.Status = domain.TaxStatusPartiallyPaid
	}
	updated, err := s.repo.UpdateTaxRecord(ctx, rec)
	if err != nil {
		s.reverseDrawerPayout(ctx, userID, amountCents, "Reversal: tax payment "+rec.ID+" failed to save")
		return domain.TaxRecord{}, err
	}
	s.logAudit(ctx, "tax.pay", fmt.Sprintf("id=%s amount=%d", id, amountCents))
	s.invalidateReports(ctx, userID)
	return updated, nil
}

// TaxSummary totals obligations by type and status.
type TaxSummary struct {
	PendingCents int64            `json:"pendingCents"`
	PaidCents    int64            `json:"paidCents"`
	ByType       map[string]int64 `json:"byType"`
	RecordCount  int64            `json:"recordCount"`
}

func (s *Service) TaxSummaryReport(ctx context.Context, userID string) (TaxSummary, error) {
	records, err := s.repo.ListTaxRecords(ctx, userID, store.TaxRecordFilter{})
	if err != nil {
		return TaxSummary{}, err
	}
	summary := TaxSummary{ByType: make(map[string]int64)}
	for _, rec := range records {
		summary.RecordCount++
		summary.ByType[rec.Type] += rec.TaxDueCents
		summary.PendingCents += rec.TaxDueCents - rec.PaidCents
		summary.PaidCents += rec.PaidCents
	}
	return summary, nil
}
