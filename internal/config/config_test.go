package config

import (
	"strings"
	"testing"
)

func setValidEnv(t *testing.T) {
	t.Helper()
	t.Setenv("AUTH_SECRET", strings.Repeat("s", 32))
	t.Setenv("ADMIN_PASSWORD", "a-long-enough-password")
}

func TestLoadDefaults(t *testing.T) {
	setValidEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.TokenTTL.Hours() != 8 {
		t.Fatalf("TokenTTL = %v, want 8h", cfg.TokenTTL)
	}
	if cfg.AdminUsername != "admin" {
		t.Fatalf("AdminUsername = %q, want admin", cfg.AdminUsername)
	}
}

func TestLoadRejectsShortSecret(t *testing.T) {
	setValidEnv(t)
	t.Setenv("AUTH_SECRET", "short")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for short AUTH_SECRET")
	}
}

func TestLoadRejectsWeakAdminPassword(t *testing.T) {
	setValidEnv(t)
	t.Setenv("ADMIN_PASSWORD", "qwertyuiop")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for weak ADMIN_PASSWORD")
	}
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")
	t.Setenv("ADMIN_PASSWORD", "a-long-enough-password")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when AUTH_SECRET is unset")
	}
}
