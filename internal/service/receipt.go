package service

import (
	"context"
	"fmt"
	"strings"

	"dukaanpos/backend/internal/domain"
)

// RenderReceipt produces the plain-text receipt for a sale, suitable
// for a 40-column thermal printer. The tenant's business profile supplies
// the header; defaultName covers tenants that never saved one.
func (s *Service) RenderReceipt(ctx context.Context, userID, saleID, defaultName string) (string, error) {
	sale, err := s.repo.GetSale(ctx, userID, saleID)
	if err != nil {
		return "", err
	}
	profile, err := s.BusinessSettings(ctx, userID)
	if err != nil {
		return "", err
	}
	if profile.BusinessName == "" {
		profile.BusinessName = defaultName
	}
	return FormatReceipt(sale, profile), nil
}

const receiptWidth = 40

// FormatReceipt renders a sale as printable text.
func FormatReceipt(sale domain.SaleRecord, profile domain.BusinessSettings) string {
	var b strings.Builder
	rule := strings.Repeat("-", receiptWidth)

	name := profile.BusinessName
	if name == "" {
		name = "DukaanPOS"
	}
	center(&b, name)
	if profile.Address != "" {
		center(&b, profile.Address)
	}
	if profile.Phone != "" {
		center(&b, profile.Phone)
	}
	if profile.ReceiptHeader != "" {
		center(&b, profile.ReceiptHeader)
	}
	center(&b, "Receipt "+sale.ReceiptNumber)
	center(&b, sale.CreatedAt.Format("2006-01-02 15:04"))
	b.WriteString(rule + "\n")

	for _, line := range sale.Items {
		fmt.Fprintf(&b, "%s\n", line.Name)
		fmt.Fprintf(&b, "  %d x %s%*s\n",
			line.Quantity, money(line.UnitPriceCents),
			receiptWidth-4-len(fmt.Sprintf("%d x %s", line.Quantity, money(line.UnitPriceCents))),
			money(line.TotalCents))
	}
	b.WriteString(rule + "\n")

	amountLine(&b, "Subtotal", sale.SubtotalCents)
	if sale.DiscountCents > 0 {
		amountLine(&b, "Discount", -sale.DiscountCents)
	}
	if sale.TaxCents > 0 {
		amountLine(&b, "Tax", sale.TaxCents)
	}
	amountLine(&b, "TOTAL", sale.TotalCents)
	if sale.PaymentMethod == domain.PaymentCash {
		amountLine(&b, "Cash", sale.CashAmountCents)
		amountLine(&b, "Change", sale.ChangeCents)
	} else {
		fmt.Fprintf(&b, "Paid by %s\n", sale.PaymentMethod)
	}
	if sale.CustomerName != "" {
		fmt.Fprintf(&b, "Customer: %s\n", sale.CustomerName)
	}
	b.WriteString(rule + "\n")
	footer := profile.ReceiptFooter
	if footer == "" {
		footer = "Thank you!"
	}
	center(&b, footer)
	return b.String()
}

func center(b *strings.Builder, text string) {
	if len(text) >= receiptWidth {
		b.WriteString(text + "\n")
		return
	}
	pad := (receiptWidth - len(text)) / 2
	b.WriteString(strings.Repeat(" ", pad) + text + "\n")
}

func amountLine(b *strings.Builder, label string, cents int64) {
	value := money(cents)
	pad := receiptWidth - len(label) - len(value)
	if pad < 1 {
		pad = 1
	}
	fmt.Fprintf(b, "%s%s%s\n", label, strings.Repeat(" ", pad), value)
}

func money(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
