package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"dukaanpos/backend/internal/domain"
	"dukaanpos/backend/internal/service"
	"dukaanpos/backend/internal/store"
	"dukaanpos/backend/internal/taxcalc"
)

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}
	var req LoginRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleCSRFToken(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"csrfToken": a.generateCSRFToken()})
}

// Inventory.

type itemCreateRequest struct {
	Name         string `json:"name" validate:"required,max=200"`
	SKU          string `json:"sku" validate:"max=64"`
	Category     string `json:"category" validate:"max=100"`
	Description  string `json:"description" validate:"max=1000"`
	Location     string `json:"location" validate:"max=200"`
	PriceCents   int64  `json:"priceCents" validate:"min=0"`
	CostCents    int64  `json:"costCents" validate:"min=0"`
	Stock        int64  `json:"stock" validate:"min=0"`
	ReorderLevel int64  `json:"reorderLevel" validate:"min=0"`
	Supplier     string `json:"supplier" validate:"max=200"`
}

func (a *API) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var req itemCreateRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	item, err := a.service.CreateItem(r.Context(), tenantFrom(r), service.CreateItemInput{
		Name:         req.Name,
		SKU:          req.SKU,
		Category:     req.Category,
		Description:  req.Description,
		Location:     req.Location,
		PriceCents:   req.PriceCents,
		CostCents:    req.CostCents,
		Stock:        req.Stock,
		ReorderLevel: req.ReorderLevel,
		Supplier:     req.Supplier,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"item": item})
}

func (a *API) handleListItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := a.service.ListItems(r.Context(), tenantFrom(r), store.ItemFilter{
		Search:   q.Get("search"),
		Category: q.Get("category"),
		Status:   q.Get("status"),
		Limit:    parsePositiveLimit(q.Get("limit"), 100, 500),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) handleLowStock(w http.ResponseWriter, r *http.Request) {
	items, err := a.service.LowStockItems(r.Context(), tenantFrom(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) handleItemCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := a.service.ItemCategories(r.Context(), tenantFrom(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

func (a *API) handleInventoryStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.service.InventoryStats(r.Context(), tenantFrom(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stats": stats})
}

func (a *API) handleGetItem(w http.ResponseWriter, r *http.Request) {
	item, err := a.service.Item(r.Context(), tenantFrom(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": item})
}

type itemUpdateRequest struct {
	Name         *string `json:"name"`
	SKU          *string `json:"sku"`
	Category     *string `json:"category"`
	Description  *string `json:"description"`
	Location     *string `json:"location"`
	PriceCents   *int64  `json:"priceCents"`
	CostCents    *int64  `json:"costCents"`
	Stock        *int64  `json:"stock"`
	ReorderLevel *int64  `json:"reorderLevel"`
	Supplier     *string `json:"supplier"`
}

func (a *API) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	var req itemUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	item, err := a.service.UpdateItem(r.Context(), tenantFrom(r), r.PathValue("id"), service.UpdateItemInput{
		Name:         req.Name,
		SKU:          req.SKU,
		Category:     req.Category,
		Description:  req.Description,
		Location:     req.Location,
		PriceCents:   req.PriceCents,
		CostCents:    req.CostCents,
		Stock:        req.Stock,
		ReorderLevel: req.ReorderLevel,
		Supplier:     req.Supplier,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": item})
}

func (a *API) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteItem(r.Context(), tenantFrom(r), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

type restockRequest struct {
	Quantity   int64  `json:"quantity" validate:"required,min=1"`
	SupplierID string `json:"supplierId"`
}

func (a *API) handleRestockItem(w http.ResponseWriter, r *http.Request) {
	var req restockRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	item, err := a.service.RestockItem(r.Context(), tenantFrom(r), r.PathValue("id"), req.Quantity, req.SupplierID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": item})
}

// Sales.

type saleLineRequest struct {
	ItemID   string `json:"itemId" validate:"required"`
	Quantity int64  `json:"quantity" validate:"required,min=1"`
}

type saleCompleteRequest struct {
	Items           []saleLineRequest `json:"items" validate:"required,min=1,dive"`
	DiscountCents   int64             `json:"discountCents" validate:"min=0"`
	PaymentMethod   string            `json:"paymentMethod" validate:"required,oneof=cash card mobile"`
	CashAmountCents int64             `json:"cashAmountCents" validate:"min=0"`
	CustomerName    string            `json:"customerName" validate:"max=200"`
}

func (a *API) handleCompleteSale(w http.ResponseWriter, r *http.Request) {
	var req saleCompleteRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	lines := make([]service.SaleItemInput, 0, len(req.Items))
	for _, line := range req.Items {
		lines = append(lines, service.SaleItemInput{ItemID: line.ItemID, Quantity: line.Quantity})
	}
	tenant := tenantFrom(r)
	sale, err := a.service.CompleteSale(r.Context(), tenant, service.CompleteSaleInput{
		Items:           lines,
		DiscountCents:   req.DiscountCents,
		PaymentMethod:   req.PaymentMethod,
		CashAmountCents: req.CashAmountCents,
		CustomerName:    req.CustomerName,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	resp := map[string]any{"sale": sale}
	// Best-effort stock deltas and drawer movement for the POS screen.
	deltas := make([]map[string]any, 0, len(sale.Items))
	for _, line := range sale.Items {
		item, err := a.service.Item(r.Context(), tenant, line.ItemID)
		if err != nil {
			continue
		}
		deltas = append(deltas, map[string]any{
			"id":             item.ID,
			"name":           item.Name,
			"quantitySold":   line.Quantity,
			"remainingStock": item.Stock,
			"status":         item.Status,
		})
	}
	resp["items"] = deltas
	if sale.PaymentMethod == domain.PaymentCash {
		if balance, err := a.service.DrawerBalance(r.Context(), tenant); err == nil {
			resp["drawer"] = map[string]any{
				"previousBalanceCents": balance - sale.TotalCents,
				"currentBalanceCents":  balance,
				"saleAmountCents":      sale.TotalCents,
			}
		}
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handleListSales(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.SaleFilter{Limit: parsePositiveLimit(q.Get("limit"), 50, 500)}
	filter.From, filter.To = parseDateRange(q.Get("from"), q.Get("to"))
	sales, err := a.service.ListSales(r.Context(), tenantFrom(r), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sales": sales})
}

func (a *API) handleGetSale(w http.ResponseWriter, r *http.Request) {
	sale, err := a.service.Sale(r.Context(), tenantFrom(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sale": sale})
}

func (a *API) handleSalePrinted(w http.ResponseWriter, r *http.Request) {
	sale, err := a.service.MarkSalePrinted(r.Context(), tenantFrom(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sale": sale})
}

func (a *API) handleSaleReceipt(w http.ResponseWriter, r *http.Request) {
	text, err := a.service.RenderReceipt(r.Context(), tenantFrom(r), r.PathValue("id"), a.storeName)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(text))
}

// handlePrintReceipt marks the sale printed and returns the rendered
// receipt. Actual printer dispatch is the client's job.
func (a *API) handlePrintReceipt(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFrom(r)
	if _, err := a.service.MarkSalePrinted(r.Context(), tenant, r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	text, err := a.service.RenderReceipt(r.Context(), tenant, r.PathValue("id"), a.storeName)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(text))
}

// Cash drawer.

type drawerAmountRequest struct {
	AmountCents int64  `json:"amountCents" validate:"required,min=1"`
	Reason      string `json:"reason" validate:"max=300"`
}

func (a *API) handleDrawerAdd(w http.ResponseWriter, r *http.Request) {
	var req drawerAmountRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	entry, err := a.service.AddToDrawer(r.Context(), tenantFrom(r), req.AmountCents, req.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"entry": entry})
}

func (a *API) handleDrawerRemove(w http.ResponseWriter, r *http.Request) {
	var req drawerAmountRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	entry, err := a.service.RemoveFromDrawer(r.Context(), tenantFrom(r), req.AmountCents, req.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"entry": entry})
}

type drawerOperationRequest struct {
	Operation   string `json:"operation" validate:"required,oneof=add remove count initialization close"`
	AmountCents int64  `json:"amountCents" validate:"min=0"`
	Reason      string `json:"reason" validate:"max=300"`
}

func (a *API) handleDrawerOperation(w http.ResponseWriter, r *http.Request) {
	var req drawerOperationRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	entry, err := a.service.ApplyDrawerOperation(r.Context(), tenantFrom(r), req.Operation, req.AmountCents, req.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"entry": entry})
}

func (a *API) handleDrawerBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := a.service.DrawerBalance(r.Context(), tenantFrom(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"balanceCents": balance})
}

func (a *API) handleDrawerHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.EntryFilter{
		Operation: q.Get("operation"),
		Limit:     parsePositiveLimit(q.Get("limit"), 100, 1000),
	}
	filter.From, filter.To = parseDateRange(q.Get("from"), q.Get("to"))
	entries, err := a.service.DrawerHistory(r.Context(), tenantFrom(r), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (a *API) handleDrawerSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to := parseDateRange(q.Get("from"), q.Get("to"))
	summary, err := a.service.DrawerSummary(r.Context(), tenantFrom(r), from, to)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"summary": summary})
}

func (a *API) handleDrawerEntry(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFrom(r)
	entry, err := a.service.DrawerEntry(r.Context(), tenant, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	resp := map[string]any{"entry": entry}
	if entry.Operation == domain.DrawerSale && entry.ReferenceID != "" {
		if sale, err := a.service.Sale(r.Context(), tenant, entry.ReferenceID); err == nil {
			resp["sale"] = sale
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Expenses.

type expenseRequest struct {
	Category      string `json:"category" validate:"required,max=100"`
	Description   string `json:"description" validate:"max=500"`
	AmountCents   int64  `json:"amountCents" validate:"required,min=1"`
	PaymentMethod string `json:"paymentMethod" validate:"required,oneof=cash card mobile"`
}

func (req expenseRequest) toInput() service.ExpenseInput {
	return service.ExpenseInput{
		Category:      req.Category,
		Description:   req.Description,
		AmountCents:   req.AmountCents,
		PaymentMethod: req.PaymentMethod,
	}
}

func (a *API) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	exp, err := a.service.CreateExpense(r.Context(), tenantFrom(r), req.toInput())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"expense": exp})
}

func (a *API) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.ExpenseFilter{
		Category: q.Get("category"),
		Limit:    parsePositiveLimit(q.Get("limit"), 100, 500),
	}
	filter.From, filter.To = parseDateRange(q.Get("from"), q.Get("to"))
	expenses, err := a.service.ListExpenses(r.Context(), tenantFrom(r), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"expenses": expenses})
}

func (a *API) handleExpenseCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := a.service.ExpenseCategories(r.Context(), tenantFrom(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

func (a *API) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	exp, err := a.service.Expense(r.Context(), tenantFrom(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"expense": exp})
}

func (a *API) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	exp, err := a.service.UpdateExpense(r.Context(), tenantFrom(r), r.PathValue("id"), req.toInput())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"expense": exp})
}

func (a *API) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteExpense(r.Context(), tenantFrom(r), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

// Business settings.

func (a *API) handleGetBusinessSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := a.service.BusinessSettings(r.Context(), tenantFrom(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"settings": settings})
}

type businessSettingsRequest struct {
	BusinessName  string `json:"businessName" validate:"required,max=200"`
	Address       string `json:"address" validate:"max=500"`
	Phone         string `json:"phone" validate:"max=50"`
	ReceiptHeader string `json:"receiptHeader" validate:"max=200"`
	ReceiptFooter string `json:"receiptFooter" validate:"max=200"`
}

func (a *API) handlePutBusinessSettings(w http.ResponseWriter, r *http.Request) {
	var req businessSettingsRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	settings, err := a.service.UpdateBusinessSettings(r.Context(), tenantFrom(r), service.BusinessSettingsInput{
		BusinessName:  req.BusinessName,
		Address:       req.Address,
		Phone:         req.Phone,
		ReceiptHeader: req.ReceiptHeader,
		ReceiptFooter: req.ReceiptFooter,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"settings": settings})
}

// Tax.

func (a *API) handleGetTaxSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := a.service.TaxSettings(r.Context(), tenantFrom(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"settings": settings})
}

type taxSettingsRequest struct {
	BusinessType     string         `json:"businessType" validate:"max=100"`
	TaxIDNumber      string         `json:"taxIdNumber" validate:"max=64"`
	IncomeTaxEnabled bool           `json:"incomeTaxEnabled"`
	ZakatEnabled     bool           `json:"zakatEnabled"`
	SalesTaxPercent  float64        `json:"salesTaxPercent" validate:"min=0,max=100"`
	CustomSlabs      []taxcalc.Slab `json:"customSlabs"`
}

func (a *API) handlePutTaxSettings(w http.ResponseWriter, r *http.Request) {
	var req taxSettingsRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	settings, err := a.service.UpdateTaxSettings(r.Context(), tenantFrom(r), service.TaxSettingsInput{
		BusinessType:     req.BusinessType,
		TaxIDNumber:      req.TaxIDNumber,
		IncomeTaxEnabled: req.IncomeTaxEnabled,
		ZakatEnabled:     req.ZakatEnabled,
		SalesTaxPercent:  req.SalesTaxPercent,
		CustomSlabs:      req.CustomSlabs,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"settings": settings})
}

type taxCalculateRequest struct {
	Type       string `json:"type" validate:"required,oneof=income zakat"`
	BasisCents int64  `json:"basisCents" validate:"min=0"`
}

func (a *API) handleCalculateTax(w http.ResponseWriter, r *http.Request) {
	var req taxCalculateRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	estimate, err := a.service.CalculateTax(r.Context(), tenantFrom(r), req.Type, req.BasisCents)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"estimate": estimate})
}

// handleCalculateTaxQuick is the GET form of the calculator: the tax
// type comes from the path, the amount from the query string.
func (a *API) handleCalculateTaxQuick(w http.ResponseWriter, r *http.Request) {
	basis, err := strconv.ParseInt(r.URL.Query().Get("amountCents"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("amountCents must be an integer"))
		return
	}
	estimate, err := a.service.CalculateTax(r.Context(), tenantFrom(r), r.PathValue("type"), basis)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"estimate": estimate})
}

type taxRecordRequest struct {
	Type       string `json:"type" validate:"required,oneof=income zakat"`
	Period     string `json:"period" validate:"max=64"`
	BasisCents int64  `json:"basisCents" validate:"min=0"`
	Notes      string `json:"notes" validate:"max=500"`
}

func (a *API) handleCreateTaxRecord(w http.ResponseWriter, r *http.Request) {
	var req taxRecordRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rec, err := a.service.CreateTaxRecord(r.Context(), tenantFrom(r), service.TaxRecordInput{
		Type:       req.Type,
		Period:     req.Period,
		BasisCents: req.BasisCents,
		Notes:      req.Notes,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"record": rec})
}

func (a *API) handleListTaxRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	records, err := a.service.ListTaxRecords(r.Context(), tenantFrom(r), store.TaxRecordFilter{
		Type:   q.Get("type"),
		Status: q.Get("status"),
		Limit:  parsePositiveLimit(q.Get("limit"), 100, 500),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

func (a *API) handleGetTaxRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := a.service.TaxRecord(r.Context(), tenantFrom(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"record": rec})
}

func (a *API) handleUpdateTaxRecord(w http.ResponseWriter, r *http.Request) {
	var req taxRecordRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rec, err := a.service.UpdateTaxRecord(r.Context(), tenantFrom(r), r.PathValue("id"), service.TaxRecordInput{
		Type:       req.Type,
		Period:     req.Period,
		BasisCents: req.BasisCents,
		Notes:      req.Notes,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"record": rec})
}

func (a *API) handleDeleteTaxRecord(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteTaxRecord(r.Context(), tenantFrom(r), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

type taxPayRequest struct {
	AmountCents int64 `json:"amountCents" validate:"min=0"`
}

func (a *API) handlePayTaxRecord(w http.ResponseWriter, r *http.Request) {
	var req taxPayRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rec, err := a.service.PayTaxRecord(r.Context(), tenantFrom(r), r.PathValue("id"), req.AmountCents)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"record": rec})
}

type taxPaymentRequest struct {
	RecordID    string `json:"recordId" validate:"required"`
	AmountCents int64  `json:"amountCents" validate:"min=0"`
}

// handleTaxPayment is the body-addressed form of paying a record.
func (a *API) handleTaxPayment(w http.ResponseWriter, r *http.Request) {
	var req taxPaymentRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rec, err := a.service.PayTaxRecord(r.Context(), tenantFrom(r), req.RecordID, req.AmountCents)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"record": rec})
}

func (a *API) handleTaxSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := a.service.TaxSummaryReport(r.Context(), tenantFrom(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"summary": summary})
}

// Suppliers.

type supplierRequest struct {
	Name     string `json:"name" validate:"required,max=200"`
	Contact  string `json:"contact" validate:"max=200"`
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"phone" validate:"max=32"`
	Address  string `json:"address" validate:"max=500"`
	Category string `json:"category" validate:"max=100"`
	Status   string `json:"status" validate:"omitempty,oneof=active inactive"`
}

func (req supplierRequest) toInput() service.SupplierInput {
	return service.SupplierInput{
		Name:     req.Name,
		Contact:  req.Contact,
		Email:    req.Email,
		Phone:    req.Phone,
		Address:  req.Address,
		Category: req.Category,
		Status:   req.Status,
	}
}

func (a *API) handleCreateSupplier(w http.ResponseWriter, r *http.Request) {
	var req supplierRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sup, err := a.service.CreateSupplier(r.Context(), tenantFrom(r), req.toInput())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"supplier": sup})
}

func (a *API) handleListSuppliers(w http.ResponseWriter, r *http.Request) {
	suppliers, err := a.service.ListSuppliers(r.Context(), tenantFrom(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suppliers": suppliers})
}

func (a *API) handleGetSupplier(w http.ResponseWriter, r *http.Request) {
	sup, err := a.service.Supplier(r.Context(), tenantFrom(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"supplier": sup})
}

func (a *API) handleUpdateSupplier(w http.ResponseWriter, r *http.Request) {
	var req supplierRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sup, err := a.service.UpdateSupplier(r.Context(), tenantFrom(r), r.PathValue("id"), req.toInput())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"supplier": sup})
}

func (a *API) handleDeleteSupplier(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteSupplier(r.Context(), tenantFrom(r), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

// Reports.

func (a *API) handleTodayReport(w http.ResponseWriter, r *http.Request) {
	report, err := a.service.TodayReport(r.Context(), tenantFrom(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"report": report})
}

func (a *API) handleDashboardReport(w http.ResponseWriter, r *http.Request) {
	report, err := a.service.DashboardReport(r.Context(), tenantFrom(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"report": report})
}

// Cashier management.

func (a *API) handleCreateCashier(w http.ResponseWriter, r *http.Request) {
	var req CashierCreateRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	actor, _ := service.ActorFromContext(r.Context())
	user, err := a.auth.CreateCashier(r.Context(), actor.UserID, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"cashier": user})
}

func (a *API) handleListCashiers(w http.ResponseWriter, r *http.Request) {
	actor, _ := service.ActorFromContext(r.Context())
	cashiers, err := a.auth.ListCashiers(r.Context(), actor.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cashiers": cashiers})
}

type cashierUpdateRequest struct {
	Active *bool `json:"active" validate:"required"`
}

func (a *API) handleUpdateCashier(w http.ResponseWriter, r *http.Request) {
	var req cashierUpdateRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	actor, _ := service.ActorFromContext(r.Context())
	user, err := a.auth.SetCashierActive(r.Context(), actor.UserID, r.PathValue("id"), *req.Active)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cashier": user})
}

func (a *API) handleDeleteCashier(w http.ResponseWriter, r *http.Request) {
	actor, _ := service.ActorFromContext(r.Context())
	if err := a.auth.DeleteCashier(r.Context(), actor.UserID, r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

// parseDateRange accepts RFC3339 timestamps or plain dates. A plain
// "to" date is extended to the end of that day.
func parseDateRange(fromRaw, toRaw string) (from, to time.Time) {
	parse := func(raw string) (time.Time, bool, bool) {
		if raw == "" {
			return time.Time{}, false, false
		}
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			return ts.UTC(), true, false
		}
		if day, err := time.Parse("2006-01-02", raw); err == nil {
			return day.UTC(), true, true
		}
		return time.Time{}, false, false
	}
	if ts, ok, _ := parse(fromRaw); ok {
		from = ts
	}
	if ts, ok, dateOnly := parse(toRaw); ok {
		to = ts
		if dateOnly {
			to = to.Add(24 * time.Hour)
		}
	}
	return from, to
}
