package httpapi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"dukaanpos/backend/internal/domain"
	"dukaanpos/backend/internal/service"
	"dukaanpos/backend/internal/store"
	"dukaanpos/backend/internal/xid"
)

// AuthManager issues and validates access tokens and manages the user
// accounts behind them. Accounts live in the repository so both store
// backends serve them.
type AuthManager struct {
	secret   []byte
	tokenTTL time.Duration
	repo     store.Repository
}

type posClaims struct {
	jwtlib.RegisteredClaims
	Role     string `json:"role"`
	TenantID string `json:"tenant"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, repo store.Repository) *AuthManager {
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	return &AuthManager{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		repo:     repo,
	}
}

// Bootstrap ensures the configured admin account exists. Run once at
// startup before the server accepts traffic.
func (a *AuthManager) Bootstrap(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return errors.New("admin username and password are required")
	}
	if _, err := a.repo.GetUserByUsername(ctx, username); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	_, err = a.repo.CreateUser(ctx, domain.UserAccount{
		ID:           xid.New("USR"),
		Username:     username,
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	})
	return err
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken string `json:"accessToken"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expiresAt"`
}

func (a *AuthManager) Login(ctx context.Context, req LoginRequest) (LoginResponse, error) {
	user, err := a.repo.GetUserByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		// Same error for unknown user and bad password.
		return LoginResponse{}, errors.New("invalid credentials")
	}
	if !verifyPassword(user.PasswordHash, req.Password) {
		return LoginResponse{}, errors.New("invalid credentials")
	}
	if !user.Active {
		return LoginResponse{}, errors.New("account is inactive")
	}

	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	token, err := a.sign(user, expiresAt)
	if err != nil {
		return LoginResponse{}, err
	}
	return LoginResponse{
		AccessToken: token,
		Role:        user.Role,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

func (a *AuthManager) sign(user domain.UserAccount, expiresAt time.Time) (string, error) {
	tenant := user.ID
	if user.Role == domain.RoleCashier && user.OwnerID != "" {
		tenant = user.OwnerID
	}
	claims := posClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
		},
		Role:     user.Role,
		TenantID: tenant,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func (a *AuthManager) ParseToken(tokenStr string) (service.Actor, error) {
	claims := &posClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return service.Actor{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return service.Actor{}, errors.New("invalid token subject")
	}
	tenant := claims.TenantID
	if tenant == "" {
		tenant = sub
	}
	return service.Actor{UserID: sub, TenantID: tenant, Role: claims.Role}, nil
}

// Cashier management, restricted to admin callers by the router.

type CashierCreateRequest struct {
	Username    string `json:"username" validate:"required,min=3,max=64"`
	Password    string `json:"password" validate:"required,min=8"`
	DisplayName string `json:"displayName" validate:"max=128"`
}

func (a *AuthManager) CreateCashier(ctx context.Context, ownerID string, req CashierCreateRequest) (domain.UserAccount, error) {
	hash, err := hashPassword(req.Password)
	if err != nil {
		return domain.UserAccount{}, err
	}
	return a.repo.CreateUser(ctx, domain.UserAccount{
		ID:           xid.New("USR"),
		Username:     strings.TrimSpace(req.Username),
		PasswordHash: hash,
		DisplayName:  strings.TrimSpace(req.DisplayName),
		Role:         domain.RoleCashier,
		OwnerID:      ownerID,
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	})
}

func (a *AuthManager) ListCashiers(ctx context.Context, ownerID string) ([]domain.UserAccount, error) {
	return a.repo.ListCashiers(ctx, ownerID)
}

// SetCashierActive flips the active flag on a cashier owned by ownerID.
func (a *AuthManager) SetCashierActive(ctx context.Context, ownerID, cashierID string, active bool) (domain.UserAccount, error) {
	user, err := a.repo.GetUser(ctx, cashierID)
	if err != nil {
		return domain.UserAccount{}, err
	}
	if user.Role != domain.RoleCashier || user.OwnerID != ownerID {
		return domain.UserAccount{}, store.ErrNotFound
	}
	user.Active = active
	return a.repo.UpdateUser(ctx, user)
}

func (a *AuthManager) DeleteCashier(ctx context.Context, ownerID, cashierID string) error {
	user, err := a.repo.GetUser(ctx, cashierID)
	if err != nil {
		return err
	}
	if user.Role != domain.RoleCashier || user.OwnerID != ownerID {
		return store.ErrNotFound
	}
	return a.repo.DeleteUser(ctx, cashierID)
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func verifyPassword(stored, input string) bool {
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}
