package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Global config instance
var global *Config

// Config holds process-wide settings loaded from .env / environment.
// Per-user settings (alerts, watchlists, themes) live in the store.
type Config struct {
	// Server
	APIServerPort       int
	JWTSecret           string
	RegistrationEnabled bool

	// Rate limiting (fixed window per IP+path)
	RateLimitWindow   time.Duration
	RateLimitRequests int

	// Polymarket upstreams
	GammaBaseURL   string
	CLOBBaseURL    string
	DataAPIBaseURL string
	CLOBWSBaseURL  string

	// CLOB credentials (optional, needed for authed reads: open orders, fills)
	CLOBAPIKey        string
	CLOBAPISecret     string
	CLOBAPIPassphrase string
	WalletPrivateKey  string

	// News upstreams
	NewsAPIKey      string
	NewsAPIBaseURL  string
	AdjacentAPIKey  string
	AdjacentBaseURL string

	// Notifications
	TelegramBotToken string

	// Alert engine
	AlertScanInterval time.Duration
}

// Init loads the global config from environment variables.
func Init() {
	cfg := &Config{
		APIServerPort:       8080,
		RegistrationEnabled: true,
		RateLimitWindow:     time.Minute,
		RateLimitRequests:   120,
		GammaBaseURL:        "https://gamma-api.polymarket.com",
		CLOBBaseURL:         "https://clob.polymarket.com",
		DataAPIBaseURL:      "https://data-api.polymarket.com",
		CLOBWSBaseURL:       "wss://ws-subscriptions-clob.polymarket.com/ws/market",
		NewsAPIBaseURL:      "https://eventregistry.org/api/v1",
		AdjacentBaseURL:     "https://api.data.adj.news",
		AlertScanInterval:   15 * time.Second,
	}

	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWTSecret = strings.TrimSpace(v)
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "default-jwt-secret-change-in-production"
	}

	if v := os.Getenv("REGISTRATION_ENABLED"); v != "" {
		cfg.RegistrationEnabled = strings.ToLower(v) == "true"
	}

	if v := os.Getenv("API_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			cfg.APIServerPort = port
		}
	}

	if v := os.Getenv("RATE_LIMIT_REQUESTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RateLimitRequests = n
		}
	}
	if v := os.Getenv("RATE_LIMIT_WINDOW_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RateLimitWindow = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("GAMMA_BASE_URL"); v != "" {
		cfg.GammaBaseURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("CLOB_BASE_URL"); v != "" {
		cfg.CLOBBaseURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("DATA_API_BASE_URL"); v != "" {
		cfg.DataAPIBaseURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("CLOB_WS_BASE_URL"); v != "" {
		cfg.CLOBWSBaseURL = strings.TrimRight(v, "/")
	}

	cfg.CLOBAPIKey = os.Getenv("CLOB_API_KEY")
	cfg.CLOBAPISecret = os.Getenv("CLOB_API_SECRET")
	cfg.CLOBAPIPassphrase = os.Getenv("CLOB_API_PASSPHRASE")
	cfg.WalletPrivateKey = os.Getenv("WALLET_PRIVATE_KEY")

	cfg.NewsAPIKey = os.Getenv("NEWSAPI_AI_KEY")
	if v := os.Getenv("NEWSAPI_AI_BASE_URL"); v != "" {
		cfg.NewsAPIBaseURL = strings.TrimRight(v, "/")
	}
	cfg.AdjacentAPIKey = os.Getenv("ADJACENT_API_KEY")
	if v := os.Getenv("ADJACENT_BASE_URL"); v != "" {
		cfg.AdjacentBaseURL = strings.TrimRight(v, "/")
	}

	cfg.TelegramBotToken = os.Getenv("TELEGRAM_BOT_TOKEN")

	if v := os.Getenv("ALERT_SCAN_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 5 {
			cfg.AlertScanInterval = time.Duration(n) * time.Second
		}
	}

	global = cfg
}

// Get returns the global config, initializing it on first use.
func Get() *Config {
	if global == nil {
		Init()
	}
	return global
}
