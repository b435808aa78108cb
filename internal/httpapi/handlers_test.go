package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"dukaanpos/backend/internal/cache"
	"dukaanpos/backend/internal/service"
	"dukaanpos/backend/internal/store/memory"
)

type testEnv struct {
	api   *API
	token string
	csrf  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo := memory.New()
	svc := service.New(repo, cache.Noop{})
	auth := NewAuthManager("test-secret-at-least-32-characters!!", time.Hour, repo)
	if err := auth.Bootstrap(context.Background(), "owner", "super-secret-pw"); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	api := New(svc, auth, "http://localhost:5173", "Test Mart")
	env := &testEnv{api: api, csrf: api.generateCSRFToken()}
	env.token = env.login(t, "owner", "super-secret-pw")
	return env
}

func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/auth/login",
		fmt.Sprintf(`{"username":%q,"password":%q}`, username, password), false)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp.AccessToken
}

func (e *testEnv) do(t *testing.T, method, path, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "192.0.2.10:54321"
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	if isMutating(method) {
		req.Header.Set("X-CSRF-Token", e.csrf)
	}
	rec := httptest.NewRecorder()
	e.api.Handler().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) createItem(t *testing.T, name string, priceCents, stock int64) string {
	t.Helper()
	body := fmt.Sprintf(`{"name":%q,"priceCents":%d,"stock":%d,"reorderLevel":2}`, name, priceCents, stock)
	rec := e.do(t, http.MethodPost, "/api/v1/inventory", body, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create item status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Item struct {
			ID string `json:"id"`
		} `json:"item"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode item: %v", err)
	}
	return resp.Item.ID
}

func TestLoginRejectsBadPassword(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/v1/auth/login",
		`{"username":"owner","password":"wrong"}`, false)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/v1/inventory", "", false)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestCSRFRequiredOnMutations(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/inventory",
		strings.NewReader(`{"name":"Chai","priceCents":100,"stock":1,"reorderLevel":0}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+env.token)
	rec := httptest.NewRecorder()
	env.api.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403 without CSRF token", rec.Code)
	}
}

func TestUnknownJSONFieldRejected(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/v1/inventory",
		`{"name":"Chai","priceCents":100,"stock":1,"reorderLevel":0,"status":"in_stock"}`, true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for unknown field", rec.Code)
	}
}

func TestInventoryCreateAndList(t *testing.T) {
	env := newTestEnv(t)
	env.createItem(t, "Chai", 150_00, 10)
	env.createItem(t, "Milk", 200_00, 0)

	rec := env.do(t, http.MethodGet, "/api/v1/inventory?status=out_of_stock", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var resp struct {
		Items []struct {
			Name   string `json:"name"`
			Status string `json:"status"`
		} `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].Name != "Milk" {
		t.Fatalf("filtered items = %+v", resp.Items)
	}
}

func TestCompleteSaleEndpoint(t *testing.T) {
	env := newTestEnv(t)
	itemID := env.createItem(t, "Chai", 150_00, 10)

	init := `{"operation":"initialization","amountCents":5000,"reason":"opening"}`
	if rec := env.do(t, http.MethodPost, "/api/v1/cash-drawer/operation", init, true); rec.Code != http.StatusCreated {
		t.Fatalf("init drawer status = %d, body %s", rec.Code, rec.Body.String())
	}

	body := fmt.Sprintf(`{"items":[{"itemId":%q,"quantity":3}],"paymentMethod":"cash","cashAmountCents":50000}`, itemID)
	rec := env.do(t, http.MethodPost, "/api/v1/sales/complete", body, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("sale status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Sale struct {
			ID            string `json:"id"`
			ReceiptNumber string `json:"receiptNumber"`
			TotalCents    int64  `json:"totalCents"`
			ChangeCents   int64  `json:"changeCents"`
		} `json:"sale"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Sale.ReceiptNumber != "#000001" || resp.Sale.TotalCents != 45000 {
		t.Fatalf("sale = %+v", resp.Sale)
	}

	balRec := env.do(t, http.MethodGet, "/api/v1/cash-drawer/balance", "", true)
	var bal struct {
		BalanceCents int64 `json:"balanceCents"`
	}
	if err := json.Unmarshal(balRec.Body.Bytes(), &bal); err != nil {
		t.Fatalf("decode balance: %v", err)
	}
	if bal.BalanceCents != 50000 {
		t.Fatalf("balance = %d, want 50000", bal.BalanceCents)
	}

	receiptRec := env.do(t, http.MethodGet, "/api/v1/sales/"+resp.Sale.ID+"/receipt", "", true)
	if receiptRec.Code != http.StatusOK {
		t.Fatalf("receipt status = %d", receiptRec.Code)
	}
	if ct := receiptRec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("receipt content type = %q", ct)
	}
	if !strings.Contains(receiptRec.Body.String(), "#000001") {
		t.Fatal("receipt missing receipt number")
	}
}

func TestCompleteSaleInsufficientStockReturns400(t *testing.T) {
	env := newTestEnv(t)
	itemID := env.createItem(t, "Milk", 200_00, 1)
	body := fmt.Sprintf(`{"items":[{"itemId":%q,"quantity":5}],"paymentMethod":"card"}`, itemID)
	rec := env.do(t, http.MethodPost, "/api/v1/sales/complete", body, true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "Milk") {
		t.Fatalf("error should name the item: %s", rec.Body.String())
	}
}

func TestDrawerRemoveBeyondBalanceReturns400(t *testing.T) {
	env := newTestEnv(t)
	init := `{"operation":"initialization","amountCents":1000,"reason":"opening"}`
	if rec := env.do(t, http.MethodPost, "/api/v1/cash-drawer/operation", init, true); rec.Code != http.StatusCreated {
		t.Fatalf("init status = %d", rec.Code)
	}
	rec := env.do(t, http.MethodPost, "/api/v1/cash-drawer/remove",
		`{"amountCents":5000,"reason":"bank deposit"}`, true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body %s", rec.Code, rec.Body.String())
	}
}

func TestCashierRoleRestrictions(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/v1/users/cashiers",
		`{"username":"till1","password":"cashier-pw-123","displayName":"Till One"}`, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create cashier status = %d, body %s", rec.Code, rec.Body.String())
	}

	cashierToken := env.login(t, "till1", "cashier-pw-123")
	adminToken := env.token

	env.token = cashierToken
	defer func() { env.token = adminToken }()

	// Cashiers sell but do not manage the catalog.
	if rec := env.do(t, http.MethodGet, "/api/v1/inventory", "", true); rec.Code != http.StatusOK {
		t.Fatalf("cashier list inventory status = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/api/v1/inventory",
		`{"name":"Chai","priceCents":100,"stock":1,"reorderLevel":0}`, true); rec.Code != http.StatusForbidden {
		t.Fatalf("cashier create item status = %d, want 403", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/v1/reports/dashboard", "", true); rec.Code != http.StatusForbidden {
		t.Fatalf("cashier dashboard status = %d, want 403", rec.Code)
	}
}

func TestLoginRateLimited(t *testing.T) {
	env := newTestEnv(t)
	var last int
	for i := 0; i < 7; i++ {
		rec := env.do(t, http.MethodPost, "/api/v1/auth/login",
			`{"username":"owner","password":"wrong"}`, false)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("status after repeated failures = %d, want 429", last)
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/healthz", "", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}
}

func TestQuickTaxCalculation(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/v1/tax/calculate/zakat?amountCents=10000000", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Estimate struct {
			TaxDueCents int64 `json:"taxDueCents"`
		} `json:"estimate"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// 2.5% of 100,000.00.
	if resp.Estimate.TaxDueCents != 250000 {
		t.Fatalf("due = %d, want 250000", resp.Estimate.TaxDueCents)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/tax/calculate/zakat?amountCents=abc", "", true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad amount status = %d, want 400", rec.Code)
	}
}

func TestExpenseCategoriesEndpoint(t *testing.T) {
	env := newTestEnv(t)
	for _, body := range []string{
		`{"category":"rent","amountCents":50000,"paymentMethod":"card"}`,
		`{"category":"fuel","amountCents":2000,"paymentMethod":"card"}`,
	} {
		if rec := env.do(t, http.MethodPost, "/api/v1/expenses", body, true); rec.Code != http.StatusCreated {
			t.Fatalf("create expense status = %d, body %s", rec.Code, rec.Body.String())
		}
	}
	rec := env.do(t, http.MethodGet, "/api/v1/expense-categories", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Categories []string `json:"categories"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Categories) != 2 || resp.Categories[0] != "fuel" {
		t.Fatalf("categories = %v", resp.Categories)
	}
}

func TestBusinessSettingsRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPut, "/api/v1/settings",
		`{"businessName":"Madina General Store","address":"Saddar Bazaar","receiptFooter":"Shukriya!"}`, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("put settings status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/api/v1/settings", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("get settings status = %d", rec.Code)
	}
	var resp struct {
		Settings struct {
			BusinessName  string `json:"businessName"`
			Address       string `json:"address"`
			ReceiptFooter string `json:"receiptFooter"`
		} `json:"settings"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode settings: %v", err)
	}
	if resp.Settings.BusinessName != "Madina General Store" || resp.Settings.ReceiptFooter != "Shukriya!" {
		t.Fatalf("settings = %+v", resp.Settings)
	}

	rec = env.do(t, http.MethodPut, "/api/v1/settings", `{"businessName":""}`, true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty name status = %d, want 400", rec.Code)
	}
}
