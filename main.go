package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"polyterm/alerts"
	"polyterm/api"
	"polyterm/auth"
	"polyterm/config"
	"polyterm/logger"
	"polyterm/market"
	"polyterm/news"
	"polyterm/notify"
	"polyterm/polymarket"
	"polyterm/pool"
	"polyterm/store"
)

func main() {
	// Load environment variables from .env file if present (for local/dev runs)
	// In Docker Compose, variables are injected by the runtime and this is harmless.
	_ = godotenv.Load()

	// Initialize logging
	logger.Init(nil)

	logger.Info("╔════════════════════════════════════════════════════════════╗")
	logger.Info("║    📈 PolyTerm - Polymarket Trading Terminal Backend       ║")
	logger.Info("╚════════════════════════════════════════════════════════════╝")

	config.Init()
	cfg := config.Get()

	// Open the database (DB_TYPE selects sqlite or postgres; a CLI arg
	// overrides the sqlite path for local runs)
	var st *store.Store
	var err error
	if len(os.Args) > 1 {
		logger.Infof("📋 Opening database: %s", os.Args[1])
		st, err = store.New(os.Args[1])
	} else {
		st, err = store.NewFromEnv()
	}
	if err != nil {
		logger.Fatalf("❌ Failed to open database: %v", err)
	}
	defer st.Close()

	// JWT secret resolution: environment > system_config > built-in default
	jwtSecret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if jwtSecret == "" {
		jwtSecret, _ = st.GetSystemConfig("jwt_secret")
		if jwtSecret == "" {
			jwtSecret = cfg.JWTSecret
			logger.Warn("⚠️  Using default JWT secret, set JWT_SECRET in production")
		} else {
			logger.Info("🔑 Using JWT secret from database")
		}
	} else {
		logger.Info("🔑 Using JWT secret from environment")
	}
	auth.SetJWTSecret(jwtSecret)

	// Upstream clients
	gamma := polymarket.NewGammaClient(cfg.GammaBaseURL)
	data := polymarket.NewDataClient(cfg.DataAPIBaseURL)

	clob, err := polymarket.NewCLOBClient(cfg.CLOBBaseURL, cfg.CLOBAPIKey, cfg.CLOBAPISecret, cfg.CLOBAPIPassphrase, cfg.WalletPrivateKey)
	if err != nil {
		logger.Fatalf("❌ Failed to create CLOB client: %v", err)
	}
	if !clob.HasCreds() && clob.Address() != "" {
		// Wallet configured but no API creds: derive them via L1 auth
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		creds, derr := clob.DeriveAPICreds(ctx)
		cancel()
		if derr != nil {
			logger.Warnf("⚠️  CLOB credential derivation failed, authed endpoints disabled: %v", derr)
		} else {
			clob.SetCreds(creds.APIKey, creds.Secret, creds.Passphrase)
			logger.Info("✓ CLOB API credentials derived from wallet")
		}
	}
	if clob.HasCreds() {
		logger.Info("✓ CLOB authed endpoints enabled (fills, open orders)")
	} else {
		logger.Info("ℹ️  CLOB running unauthenticated, fill sync disabled")
	}

	var newsClient *news.NewsAPIClient
	if cfg.NewsAPIKey != "" {
		newsClient = news.NewNewsAPIClient(cfg.NewsAPIBaseURL, cfg.NewsAPIKey)
		logger.Info("✓ NewsAPI.ai client configured")
	} else {
		logger.Info("ℹ️  NEWSAPI_AI_KEY not set, news search disabled")
	}

	var adjacent *news.AdjacentClient
	if cfg.AdjacentAPIKey != "" {
		adjacent = news.NewAdjacentClient(cfg.AdjacentBaseURL, cfg.AdjacentAPIKey)
		logger.Info("✓ Adjacent News client configured")
	} else {
		logger.Info("ℹ️  ADJACENT_API_KEY not set, related-markets lookup disabled")
	}

	// Market pool: trending markets + everything on a user watchlist
	marketPool := pool.New(gamma, st, pool.DefaultConfig())
	poolCtx, poolCancel := context.WithCancel(context.Background())
	if err := marketPool.Refresh(poolCtx); err != nil {
		logger.Warnf("⚠️  Initial market pool refresh failed: %v", err)
	}

	// Live order books over the CLOB websocket
	monitor := market.NewMonitor(cfg.CLOBWSBaseURL, clob)
	monitor.Start(marketPool.TokenIDs())
	go marketPool.Run(poolCtx, func(tokenIDs []string) {
		monitor.Subscribe(tokenIDs)
	})

	// Anomaly detection feeds off the monitor's book stream
	detector := alerts.NewDetector(st, marketPool, alerts.DefaultDetectorConfig())
	go detector.Consume(monitor.Updates())

	// Notification channels
	var telegram alerts.TelegramSender
	if cfg.TelegramBotToken != "" {
		tg, terr := notify.NewTelegramNotifier(cfg.TelegramBotToken)
		if terr != nil {
			logger.Warnf("⚠️  Telegram bot init failed, telegram alerts disabled: %v", terr)
		} else {
			telegram = tg
			logger.Info("✓ Telegram notifier ready")
		}
	}
	webhook := notify.NewWebhookClient()

	// Alert engine
	engine := alerts.NewEngine(st, monitor, marketPool, telegram, webhook, detector, cfg.AlertScanInterval)
	engineCtx, engineCancel := context.WithCancel(context.Background())
	go engine.Run(engineCtx)

	// API server
	apiServer := api.NewServer(st, api.Deps{
		Gamma:    gamma,
		CLOB:     clob,
		Data:     data,
		News:     newsClient,
		Adjacent: adjacent,
		Markets:  marketPool,
		Detector: detector,
		Telegram: telegram,
		Webhook:  webhook,
	}, cfg.APIServerPort)
	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Errorf("❌ API server error: %v", err)
		}
	}()

	logger.Info("Press Ctrl+C to stop")
	logger.Info(strings.Repeat("=", 60))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info("📛 Shutdown signal received, closing down...")

	// Step 1: stop producing new alert firings
	logger.Info("⏸️  Stopping alert engine...")
	engine.Stop()
	engineCancel()

	// Step 2: stop the market data pipeline
	logger.Info("📦 Stopping market pool and book monitor...")
	poolCancel()
	monitor.Close()

	// Step 3: drain in-flight HTTP requests
	logger.Info("🛑 Stopping API server...")
	if err := apiServer.Shutdown(); err != nil {
		logger.Warnf("⚠️  API server shutdown error: %v", err)
	} else {
		logger.Info("✅ API server closed")
	}

	// Step 4: close the database last so all writes land
	logger.Info("💾 Closing database...")
	if err := st.Close(); err != nil {
		logger.Errorf("❌ Database close failed: %v", err)
	} else {
		logger.Info("✅ Database closed, all data persisted")
	}

	logger.Info("👋 PolyTerm stopped")
}
