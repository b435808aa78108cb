package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"dukaanpos/backend/internal/domain"
	"dukaanpos/backend/internal/store"
	"dukaanpos/backend/internal/xid"
)

type ExpenseInput struct {
	Category      string
	Description   string
	AmountCents   int64
	PaymentMethod string
}

func (in ExpenseInput) validate() error {
	if strings.TrimSpace(in.Category) == "" {
		return validationErr("expense category is required")
	}
	if in.AmountCents <= 0 {
		return validationErr("expense amount must be positive")
	}
	if !domain.ValidPaymentMethod(in.PaymentMethod) {
		return validationErr("unknown payment method %q", in.PaymentMethod)
	}
	return nil
}

// CreateExpense records an expense. Cash expenses pay out of the drawer
// first; if the record itself then fails to persist, the payout is
// reversed with a compensating add entry.
func (s *Service) CreateExpense(ctx context.Context, userID string, in ExpenseInput) (domain.Expense, error) {
	if err := in.validate(); err != nil {
		return domain.Expense{}, err
	}
	unlock := s.lockTenant(userID)
	defer unlock()

	now := s.now()
	exp := domain.Expense{
		ID:            xid.New(prefixExpense),
		UserID:        userID,
		Category:      strings.TrimSpace(in.Category),
		Description:   strings.TrimSpace(in.Description),
		AmountCents:   in.AmountCents,
		PaymentMethod: in.PaymentMethod,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if in.PaymentMethod == domain.PaymentCash {
		entry, err := s.appendDrawerEntry(ctx, userID, drawerRequest{
			operation:   domain.DrawerExpense,
			amountCents: in.AmountCents,
			reason:      "Expense: " + exp.Category,
			referenceID: exp.ID,
		})
		if err != nil {
			return domain.Expense{}, err
		}
		exp.DrawerEntryID = entry.ID
	}

	created, err := s.repo.CreateExpense(ctx, exp)
	if err != nil {
		if exp.DrawerEntryID != "" {
			s.reverseDrawerPayout(ctx, userID, exp.AmountCents, "Reversal: expense "+exp.ID+" failed to save")
		}
		return domain.Expense{}, err
	}
	s.logAudit(ctx, "expense.create", fmt.Sprintf("id=%s amount=%d", created.ID, created.AmountCents))
	s.invalidateReports(ctx, userID)
	return created, nil
}

func (s *Service) Expense(ctx context.Context, userID, id string) (domain.Expense, error) {
	return s.repo.GetExpense(ctx, userID, id)
}

func (s *Service) ListExpenses(ctx context.Context, userID string, f store.ExpenseFilter) ([]domain.Expense, error) {
	return s.repo.ListExpenses(ctx, userID, f)
}

// ExpenseCategories lists the distinct categories in use, sorted.
func (s *Service) ExpenseCategories(ctx context.Context, userID string) ([]string, error) {
	expenses, err := s.repo.ListExpenses(ctx, userID, store.ExpenseFilter{})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	categories := make([]string, 0, 16)
	for _, exp := range expenses {
		if exp.Category == "" || seen[exp.Category] {
			continue
		}
		seen[exp.Category] = true
		categories = append(categories, exp.Category)
	}
	sort.Strings(categories)
	return categories, nil
}

// UpdateExpense edits an expense. When the amount of a drawer-linked
// expense changes, the difference is settled on the ledger so the
// drawer keeps matching what was actually paid.
func (s *Service) UpdateExpense(ctx context.Context, userID, id string, in ExpenseInput) (domain.Expense, error) {
	if err := in.validate(); err != nil {
		return domain.Expense{}, err
	}
	unlock := s.lockTenant(userID)
	defer unlock()

	exp, err := s.repo.GetExpense(ctx, userID, id)
	if err != nil {
		return domain.Expense{}, err
	}
	if in.PaymentMethod != exp.PaymentMethod {
		return domain.Expense{}, validationErr("payment method cannot change after the fact")
	}

	if exp.DrawerEntryID != "" && in.AmountCents != exp.AmountCents {
		diff := in.AmountCents - exp.AmountCents
		var req drawerRequest
		if diff > 0 {
			req = drawerRequest{
				operation:   domain.DrawerExpense,
				amountCents: diff,
				reason:      "Expense adjustment: " + exp.Category,
				referenceID: exp.ID,
			}
		} else {
			req = drawerRequest{
				operation:   domain.DrawerAdd,
				amountCents: -diff,
				reason:      "Expense adjustment: " + exp.Category,
				referenceID: exp.ID,
			}
		}
		if _, err := s.appendDrawerEntry(ctx, userID, req); err != nil {
			return domain.Expense{}, err
		}
	}

	exp.Category = strings.TrimSpace(in.Category)
	exp.Description = strings.TrimSpace(in.Description)
	exp.AmountCents = in.AmountCents
	exp.UpdatedAt = s.now()
	updated, err := s.repo.UpdateExpense(ctx, exp)
	if err != nil {
		return domain.Expense{}, err
	}
	s.logAudit(ctx, "expense.update", "id="+id)
	s.invalidateReports(ctx, userID)
	return updated, nil
}

// DeleteExpense removes an expense. A drawer-linked expense puts the
// cash back with a reversing add entry.
func (s *Service) DeleteExpense(ctx context.Context, userID, id string) error {
	unlock := s.lockTenant(userID)
	defer unlock()

	exp, err := s.repo.GetExpense(ctx, userID, id)
	if err != nil {
		return err
	}
	// Put the cash back before dropping the record, so a failed reversal
	// leaves the expense intact. A failed delete is compensated by taking
	// the cash out again.
	if exp.DrawerEntryID != "" {
		if _, err := s.appendDrawerEntry(ctx, userID, drawerRequest{
			operation:   domain.DrawerAdd,
			amountCents: exp.AmountCents,
			reason:      "Reversal of expense: " + exp.Category,
			referenceID: exp.ID,
		}); err != nil {
			return err
		}
	}
	if err := s.repo.DeleteExpense(ctx, userID, id); err != nil {
		if exp.DrawerEntryID != "" {
			if _, revErr := s.appendDrawerEntry(ctx, userID, drawerRequest{
				operation:   domain.DrawerExpense,
				amountCents: exp.AmountCents,
				reason:      "Reversal undone: expense " + exp.ID + " failed to delete",
				referenceID: exp.ID,
			}); revErr != nil {
				log.Printf("[service] ERROR: undo reversal for expense %s failed: %v", id, revErr)
			}
		}
		return err
	}
	s.logAudit(ctx, "expense.delete", "id="+id)
	s.invalidateReports(ctx, userID)
	return nil
}

// reverseDrawerPayout compensates a payout whose owning record failed
// to persist.
func (s *Service) reverseDrawerPayout(ctx context.Context, userID string, amountCents int64, reason string) {
	if _, err := s.appendDrawerEntry(ctx, userID, drawerRequest{
		operation:   domain.DrawerAdd,
		amountCents: amountCents,
		reason:      reason,
	}); err != nil {
		log.Printf("[service] ERROR: drawer compensation for %s failed: %v", userID, err)
	}
}
