package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	JWTSecret string

	CORSAllowedOrigins []string

	// Razorpay (order + signed callback provider)
	RazorpayKeyID     string
	RazorpayKeySecret string
	RazorpayBaseURL   string

	// Khalti (initiate + redirect-verify provider)
	KhaltiSecretKey string
	KhaltiBaseURL   string
	KhaltiReturnURL string

	Currency            string
	ProviderHTTPTimeout time.Duration

	DashboardWindowDays int
	TopDoctorsLimit     int
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		JWTSecret: getEnv("JWT_SECRET", ""),

		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "")),

		RazorpayKeyID:     getEnv("RAZORPAY_KEY_ID", ""),
		RazorpayKeySecret: getEnv("RAZORPAY_KEY_SECRET", ""),
		RazorpayBaseURL:   getEnv("RAZORPAY_BASE_URL", "https://api.razorpay.com"),

		KhaltiSecretKey: getEnv("KHALTI_SECRET_KEY", ""),
		KhaltiBaseURL:   getEnv("KHALTI_BASE_URL", "https://khalti.com"),
		KhaltiReturnURL: getEnv("KHALTI_RETURN_URL", ""),

		Currency:            getEnv("PAYMENT_CURRENCY", "NPR"),
		ProviderHTTPTimeout: getEnvAsDuration("PROVIDER_HTTP_TIMEOUT", 10*time.Second),

		DashboardWindowDays: getEnvAsInt("DASHBOARD_WINDOW_DAYS", 30),
		TopDoctorsLimit:     getEnvAsInt("DASHBOARD_TOP_DOCTORS", 5),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
