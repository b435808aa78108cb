package service

import (
	"context"
	"errors"
	"strings"

	"dukaanpos/backend/internal/domain"
	"dukaanpos/backend/internal/store"
)

// BusinessSettings returns the tenant's business profile. A tenant that
// never saved one gets an empty profile; receipt rendering fills in the
// instance-wide default name.
func (s *Service) BusinessSettings(ctx context.Context, userID string) (domain.BusinessSettings, error) {
	settings, err := s.repo.GetBusinessSettings(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.BusinessSettings{UserID: userID}, nil
		}
		return domain.BusinessSettings{}, err
	}
	return settings, nil
}

type BusinessSettingsInput struct {
	BusinessName  string
	Address       string
	Phone         string
	ReceiptHeader string
	ReceiptFooter string
}

func (s *Service) UpdateBusinessSettings(ctx context.Context, userID string, in BusinessSettingsInput) (domain.BusinessSettings, error) {
	name := strings.TrimSpace(in.BusinessName)
	if name == "" {
		return domain.BusinessSettings{}, validationErr("business name is required")
	}
	settings := domain.BusinessSettings{
		UserID:        userID,
		BusinessName:  name,
		Address:       strings.TrimSpace(in.Address),
		Phone:         strings.TrimSpace(in.Phone),
		ReceiptHeader: strings.TrimSpace(in.ReceiptHeader),
		ReceiptFooter: strings.TrimSpace(in.ReceiptFooter),
		UpdatedAt:     s.now(),
	}
	saved, err := s.repo.SaveBusinessSettings(ctx, settings)
	if err != nil {
		return domain.BusinessSettings{}, err
	}
	s.logAudit(ctx, "settings.business", "user="+userID)
	return saved, nil
}
