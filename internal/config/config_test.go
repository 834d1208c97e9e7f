package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("PAYMENT_CURRENCY", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.Currency != "NPR" {
		t.Fatalf("expected default currency, got %s", cfg.Currency)
	}
	if cfg.RazorpayBaseURL != "https://api.razorpay.com" {
		t.Fatalf("expected razorpay default base url, got %s", cfg.RazorpayBaseURL)
	}
	if cfg.ProviderHTTPTimeout != 10*time.Second {
		t.Fatalf("expected default provider timeout, got %s", cfg.ProviderHTTPTimeout)
	}
	if cfg.DashboardWindowDays != 30 {
		t.Fatalf("expected default dashboard window, got %d", cfg.DashboardWindowDays)
	}
	if len(cfg.CORSAllowedOrigins) != 0 {
		t.Fatalf("expected no CORS origins by default, got %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("RAZORPAY_BASE_URL", "http://localhost:9200")
	t.Setenv("KHALTI_BASE_URL", "http://localhost:9300")
	t.Setenv("PROVIDER_HTTP_TIMEOUT", "3s")
	t.Setenv("DASHBOARD_WINDOW_DAYS", "7")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("expected db override, got %s", cfg.DatabaseURL)
	}
	if cfg.RazorpayBaseURL != "http://localhost:9200" {
		t.Fatalf("expected razorpay override, got %s", cfg.RazorpayBaseURL)
	}
	if cfg.KhaltiBaseURL != "http://localhost:9300" {
		t.Fatalf("expected khalti override, got %s", cfg.KhaltiBaseURL)
	}
	if cfg.ProviderHTTPTimeout != 3*time.Second {
		t.Fatalf("expected timeout override, got %s", cfg.ProviderHTTPTimeout)
	}
	if cfg.DashboardWindowDays != 7 {
		t.Fatalf("expected window override, got %d", cfg.DashboardWindowDays)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("expected trimmed CORS origins, got %v", cfg.CORSAllowedOrigins)
	}
}
