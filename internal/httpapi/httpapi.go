// Package httpapi exposes the POS service over HTTP with JWT auth,
// CSRF protection for mutating requests, and per-client rate limiting
// on login.
package httpapi

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"dukaanpos/backend/internal/service"
	"dukaanpos/backend/internal/store"
)

var validate = validator.New()

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	storeName     string
	loginLimiter  *attemptLimiter
	csrfSecret    []byte
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin, storeName string) *API {
	csrfSecret := make([]byte, 32)
	if _, err := rand.Read(csrfSecret); err != nil {
		// crypto/rand failing means the host is badly broken; refuse to
		// run with a guessable secret.
		panic(fmt.Sprintf("httpapi: cannot seed csrf secret: %v", err))
	}
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		storeName:     storeName,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		csrfSecret:    csrfSecret,
	}
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", a.handleHealth)
	mux.HandleFunc("POST /api/v1/auth/login", a.handleLogin)
	mux.HandleFunc("GET /api/v1/auth/csrf-token", a.handleCSRFToken)

	anyRole := []string{"admin", "manager", "cashier"}
	managers := []string{"admin", "manager"}
	admins := []string{"admin"}

	mux.HandleFunc("GET /api/v1/inventory", a.requireAuth(a.handleListItems, anyRole...))
	mux.HandleFunc("POST /api/v1/inventory", a.requireAuth(a.handleCreateItem, managers...))
	mux.HandleFunc("GET /api/v1/inventory/low-stock", a.requireAuth(a.handleLowStock, anyRole...))
	mux.HandleFunc("GET /api/v1/inventory/categories", a.requireAuth(a.handleItemCategories, anyRole...))
	mux.HandleFunc("GET /api/v1/inventory/stats", a.requireAuth(a.handleInventoryStats, managers...))
	mux.HandleFunc("GET /api/v1/inventory/{id}", a.requireAuth(a.handleGetItem, anyRole...))
	mux.HandleFunc("PUT /api/v1/inventory/{id}", a.requireAuth(a.handleUpdateItem, managers...))
	mux.HandleFunc("PATCH /api/v1/inventory/{id}", a.requireAuth(a.handleUpdateItem, managers...))
	mux.HandleFunc("DELETE /api/v1/inventory/{id}", a.requireAuth(a.handleDeleteItem, managers...))
	mux.HandleFunc("POST /api/v1/inventory/{id}/restock", a.requireAuth(a.handleRestockItem, managers...))

	mux.HandleFunc("POST /api/v1/sales/complete", a.requireAuth(a.handleCompleteSale, anyRole...))
	mux.HandleFunc("GET /api/v1/sales", a.requireAuth(a.handleListSales, anyRole...))
	mux.HandleFunc("GET /api/v1/sales/history", a.requireAuth(a.handleListSales, anyRole...))
	mux.HandleFunc("GET /api/v1/sales/{id}", a.requireAuth(a.handleGetSale, anyRole...))
	mux.HandleFunc("PATCH /api/v1/sales/{id}/printed", a.requireAuth(a.handleSalePrinted, anyRole...))
	mux.HandleFunc("GET /api/v1/sales/{id}/receipt", a.requireAuth(a.handleSaleReceipt, anyRole...))
	mux.HandleFunc("POST /api/v1/sales/{id}/receipt", a.requireAuth(a.handlePrintReceipt, anyRole...))

	mux.HandleFunc("POST /api/v1/cash-drawer/add", a.requireAuth(a.handleDrawerAdd, anyRole...))
	mux.HandleFunc("POST /api/v1/cash-drawer/remove", a.requireAuth(a.handleDrawerRemove, managers...))
	mux.HandleFunc("POST /api/v1/cash-drawer/operation", a.requireAuth(a.handleDrawerOperation, managers...))
	mux.HandleFunc("GET /api/v1/cash-drawer/balance", a.requireAuth(a.handleDrawerBalance, anyRole...))
	mux.HandleFunc("GET /api/v1/cash-drawer/history", a.requireAuth(a.handleDrawerHistory, anyRole...))
	mux.HandleFunc("GET /api/v1/cash-drawer/summary", a.requireAuth(a.handleDrawerSummary, managers...))
	mux.HandleFunc("GET /api/v1/cash-drawer/transaction/{id}", a.requireAuth(a.handleDrawerEntry, anyRole...))

	mux.HandleFunc("GET /api/v1/expenses", a.requireAuth(a.handleListExpenses, anyRole...))
	mux.HandleFunc("POST /api/v1/expenses", a.requireAuth(a.handleCreateExpense, anyRole...))
	mux.HandleFunc("GET /api/v1/expenses/{id}", a.requireAuth(a.handleGetExpense, anyRole...))
	mux.HandleFunc("PUT /api/v1/expenses/{id}", a.requireAuth(a.handleUpdateExpense, managers...))
	mux.HandleFunc("PATCH /api/v1/expenses/{id}", a.requireAuth(a.handleUpdateExpense, managers...))
	mux.HandleFunc("DELETE /api/v1/expenses/{id}", a.requireAuth(a.handleDeleteExpense, managers...))
	mux.HandleFunc("GET /api/v1/expense-categories", a.requireAuth(a.handleExpenseCategories, anyRole...))

	mux.HandleFunc("GET /api/v1/settings", a.requireAuth(a.handleGetBusinessSettings, anyRole...))
	mux.HandleFunc("PUT /api/v1/settings", a.requireAuth(a.handlePutBusinessSettings, admins...))

	mux.HandleFunc("GET /api/v1/tax/settings", a.requireAuth(a.handleGetTaxSettings, managers...))
	mux.HandleFunc("PUT /api/v1/tax/settings", a.requireAuth(a.handlePutTaxSettings, admins...))
	mux.HandleFunc("POST /api/v1/tax/calculate", a.requireAuth(a.handleCalculateTax, managers...))
	mux.HandleFunc("GET /api/v1/tax/calculate/{type}", a.requireAuth(a.handleCalculateTaxQuick, managers...))
	mux.HandleFunc("GET /api/v1/tax/records", a.requireAuth(a.handleListTaxRecords, managers...))
	mux.HandleFunc("POST /api/v1/tax/records", a.requireAuth(a.handleCreateTaxRecord, managers...))
	mux.HandleFunc("GET /api/v1/tax/records/{id}", a.requireAuth(a.handleGetTaxRecord, managers...))
	mux.HandleFunc("PUT /api/v1/tax/records/{id}", a.requireAuth(a.handleUpdateTaxRecord, managers...))
	mux.HandleFunc("DELETE /api/v1/tax/records/{id}", a.requireAuth(a.handleDeleteTaxRecord, admins...))
	mux.HandleFunc("POST /api/v1/tax/records/{id}/pay", a.requireAuth(a.handlePayTaxRecord, admins...))
	mux.HandleFunc("POST /api/v1/tax/payment", a.requireAuth(a.handleTaxPayment, admins...))
	mux.HandleFunc("GET /api/v1/tax/summary", a.requireAuth(a.handleTaxSummary, managers...))

	mux.HandleFunc("GET /api/v1/suppliers", a.requireAuth(a.handleListSuppliers, anyRole...))
	mux.HandleFunc("POST /api/v1/suppliers", a.requireAuth(a.handleCreateSupplier, managers...))
	mux.HandleFunc("GET /api/v1/suppliers/{id}", a.requireAuth(a.handleGetSupplier, anyRole...))
	mux.HandleFunc("PUT /api/v1/suppliers/{id}", a.requireAuth(a.handleUpdateSupplier, managers...))
	mux.HandleFunc("DELETE /api/v1/suppliers/{id}", a.requireAuth(a.handleDeleteSupplier, managers...))

	mux.HandleFunc("GET /api/v1/reports/today", a.requireAuth(a.handleTodayReport, anyRole...))
	mux.HandleFunc("GET /api/v1/reports/dashboard", a.requireAuth(a.handleDashboardReport, managers...))

	mux.HandleFunc("GET /api/v1/users/cashiers", a.requireAuth(a.handleListCashiers, admins...))
	mux.HandleFunc("POST /api/v1/users/cashiers", a.requireAuth(a.handleCreateCashier, admins...))
	mux.HandleFunc("PATCH /api/v1/users/cashiers/{id}", a.requireAuth(a.handleUpdateCashier, admins...))
	mux.HandleFunc("DELETE /api/v1/users/cashiers/{id}", a.requireAuth(a.handleDeleteCashier, admins...))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}
		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}
		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

// tenantFrom returns the data owner for the request principal.
func tenantFrom(r *http.Request) string {
	actor, _ := service.ActorFromContext(r.Context())
	return actor.TenantID
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-CSRF-Token")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if isMutating(r.Method) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if !a.checkCSRF(w, r) {
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(startedAt))
	})
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// CSRF tokens are stateless HMACs over an hour bucket, valid for the
// current and previous hour.

func (a *API) csrfTokenForHour(hourBucket int64) string {
	h := hmac.New(sha256.New, a.csrfSecret)
	fmt.Fprintf(h, "%d", hourBucket)
	return hex.EncodeToString(h.Sum(nil))
}

func (a *API) generateCSRFToken() string {
	bucket := time.Now().UTC().Truncate(time.Hour).Unix()
	return a.csrfTokenForHour(bucket)
}

func (a *API) validateCSRFToken(token string) bool {
	if token == "" {
		return false
	}
	current := time.Now().UTC().Truncate(time.Hour).Unix()
	return hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(current))) ||
		hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(current-3600)))
}

// Login is exempt because clients fetch their first CSRF token after
// authenticating.
var csrfExemptPaths = []string{
	"/api/v1/auth/login",
}

func (a *API) checkCSRF(w http.ResponseWriter, r *http.Request) bool {
	if !isMutating(r.Method) {
		return true
	}
	for _, exempt := range csrfExemptPaths {
		if r.URL.Path == exempt {
			return true
		}
	}
	token := strings.TrimSpace(r.Header.Get("X-CSRF-Token"))
	if !a.validateCSRFToken(token) {
		writeError(w, http.StatusForbidden, errors.New("missing or invalid CSRF token"))
		return false
	}
	return true
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

// Helpers shared by the handlers.

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

// decodeValid decodes and runs struct validation in one step.
func decodeValid(r *http.Request, dest any) error {
	if err := decodeJSON(r, dest); err != nil {
		return err
	}
	if err := validate.Struct(dest); err != nil {
		var invalid validator.ValidationErrors
		if errors.As(err, &invalid) && len(invalid) > 0 {
			field := invalid[0]
			return fmt.Errorf("field %q failed %q validation", field.Field(), field.Tag())
		}
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback, max int) int {
	limit := fallback
	if trimmed := strings.TrimSpace(raw); trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

// statusForError maps store sentinels to HTTP statuses.
func statusForError(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrValidation),
		errors.Is(err, store.ErrInsufficientStock),
		errors.Is(err, store.ErrInsufficientFunds):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrDuplicate), errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	writeError(w, statusForError(err), err)
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx details stay in the logs; clients get a generic message.
	msg := err.Error()
	if status >= 500 {
		log.Printf("internal error (status %d): %v", status, err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
