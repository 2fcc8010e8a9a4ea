package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	AppEnv         string
	Port           string
	DatabaseURL    string
	JWTSecret      string
	TokenTTL       time.Duration
	AllowedOrigins string
	Debug          bool

	Login   LoginConfig
	Account AccountConfig
	Trading TradingConfig
}

// LoginConfig describes the single identity accepted by the demo build.
type LoginConfig struct {
	Email        string
	Password     string
	PasswordHash string
	Admin        bool
}

type AccountConfig struct {
	ID                   string
	Name                 string
	AccountType          string
	DemoBalance          float64
	LiveBalance          float64
	BalancePolicy        string
	PinnedLiveBalance    float64
	LogoutPolicy         string
	HighBalanceThreshold float64
}

type TradingConfig struct {
	MinDeposit   float64
	MaxDeposit   float64
	MinTrade     float64
	MaxTrade     float64
	HistoryLimit int
	TickInterval time.Duration
}

func Load() Config {
	liveBalance := getFloat("QX_LIVE_BALANCE", 55000)
	return Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		Port:           getEnv("PORT", "8080"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		JWTSecret:      getEnv("JWT_SECRET", "dev-secret-change-me"),
		TokenTTL:       getDuration("TOKEN_TTL_MINUTES", 60),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "*"),
		Debug:          getBool("DEBUG", false),
		Login: LoginConfig{
			Email:        strings.TrimSpace(getEnv("QX_LOGIN_EMAIL", "")),
			Password:     os.Getenv("QX_LOGIN_PASSWORD"),
			PasswordHash: getEnv("QX_LOGIN_PASSWORD_HASH", ""),
			Admin:        getBool("QX_LOGIN_ADMIN", false),
		},
		Account: AccountConfig{
			ID:                   getEnv("QX_ACCOUNT_ID", ""),
			Name:                 getEnv("QX_ACCOUNT_NAME", "Demo Trader"),
			AccountType:          getEnv("QX_ACCOUNT_TYPE", "live"),
			DemoBalance:          getFloat("QX_DEMO_BALANCE", 10000),
			LiveBalance:          liveBalance,
			BalancePolicy:        getEnv("QX_BALANCE_POLICY", "accumulating"),
			PinnedLiveBalance:    getFloat("QX_PINNED_LIVE_BALANCE", liveBalance),
			LogoutPolicy:         getEnv("QX_LOGOUT_POLICY", "retain"),
			HighBalanceThreshold: getFloat("QX_HIGH_BALANCE_THRESHOLD", 50000),
		},
		Trading: TradingConfig{
			MinDeposit:   getFloat("QX_MIN_DEPOSIT", 10),
			MaxDeposit:   getFloat("QX_MAX_DEPOSIT", 1000000),
			MinTrade:     getFloat("QX_MIN_TRADE", 10),
			MaxTrade:     getFloat("QX_MAX_TRADE", 10000),
			HistoryLimit: getInt("QX_TRADE_HISTORY_LIMIT", 50),
			TickInterval: getSeconds("QX_TICK_INTERVAL", time.Second),
		},
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getDuration(key string, fallbackMinutes int) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return time.Duration(fallbackMinutes) * time.Minute
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return time.Duration(fallbackMinutes) * time.Minute
	}
	return time.Duration(parsed) * time.Minute
}

// getSeconds accepts either a Go duration ("2s", "1m") or a bare number of
// seconds. Anything under one second falls back: the cron driver cannot fire
// faster than that.
func getSeconds(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	if parsed, err := time.ParseDuration(raw); err == nil {
		if parsed < time.Second {
			return fallback
		}
		return parsed
	}
	if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
		return time.Duration(parsed) * time.Second
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func getBool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
