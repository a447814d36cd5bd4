package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"polyterm/alerts"
	"polyterm/auth"
	"polyterm/config"
	"polyterm/logger"
	"polyterm/news"
	"polyterm/polymarket"
	"polyterm/store"
)

// Markets is the market-pool view the handlers need
type Markets interface {
	Market(idOrSlug string) *polymarket.Market
	Markets() []*polymarket.Market
}

// Deps bundles the outbound clients and background services the server
// serves data from. Any of them may be nil; the affected routes then answer
// 503.
type Deps struct {
	Gamma    *polymarket.GammaClient
	CLOB     *polymarket.CLOBClient
	Data     *polymarket.DataClient
	News     *news.NewsAPIClient
	Adjacent *news.AdjacentClient
	Markets  Markets
	Detector *alerts.Detector
	Telegram alerts.TelegramSender
	Webhook  alerts.WebhookPoster
}

// Server HTTP API server
type Server struct {
	router     *gin.Engine
	store      *store.Store
	deps       Deps
	limiter    *rateLimiter
	httpServer *http.Server
	port       int
}

// NewServer creates the API server
func NewServer(st *store.Store, deps Deps, port int) *Server {
	// Set to Release mode (reduce log output)
	gin.SetMode(gin.ReleaseMode)

	router := gin.Default()

	// Enable CORS
	router.Use(corsMiddleware())

	cfg := config.Get()
	s := &Server{
		router:  router,
		store:   st,
		deps:    deps,
		limiter: newRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow),
		port:    port,
	}

	s.setupRoutes()

	return s
}

// corsMiddleware CORS middleware
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	}
}

// setupRoutes Setup routes
func (s *Server) setupRoutes() {
	// API route group
	api := s.router.Group("/api")
	api.Use(s.limiter.middleware())
	{
		// Health check (exempt from rate limiting)
		api.Any("/health", s.handleHealth)

		// System config (no authentication required, for frontend to
		// determine registration status)
		api.GET("/config", s.handleGetSystemConfig)

		// Authentication related routes (no authentication required)
		api.POST("/register", s.handleRegister)
		api.POST("/login", s.handleLogin)
		api.POST("/verify-otp", s.handleVerifyOTP)
		api.POST("/complete-registration", s.handleCompleteRegistration)
		api.POST("/reset-password", s.handleResetPassword)

		// Routes requiring authentication
		protected := api.Group("/", s.authMiddleware())
		{
			// Logout (add to blacklist)
			protected.POST("/logout", s.handleLogout)

			// Alerts
			protected.GET("/alerts", s.handleListAlerts)
			protected.POST("/alerts", s.handleCreateAlert)
			protected.POST("/alerts/test", s.handleTestAlert)
			protected.GET("/alerts/:id", s.handleGetAlert)
			protected.PUT("/alerts/:id", s.handleUpdateAlert)
			protected.DELETE("/alerts/:id", s.handleDeleteAlert)
			protected.POST("/alerts/:id/enable", s.handleEnableAlert)
			protected.POST("/alerts/:id/disable", s.handleDisableAlert)
			protected.GET("/alerts/:id/history", s.handleAlertHistory)

			// Watchlists
			protected.GET("/watchlists", s.handleListWatchlists)
			protected.POST("/watchlists", s.handleCreateWatchlist)
			protected.GET("/watchlists/:id", s.handleGetWatchlist)
			protected.PUT("/watchlists/:id", s.handleRenameWatchlist)
			protected.DELETE("/watchlists/:id", s.handleDeleteWatchlist)
			protected.POST("/watchlists/:id/items", s.handleAddWatchlistItem)
			protected.DELETE("/watchlists/:id/items/:marketId", s.handleRemoveWatchlistItem)
			protected.PUT("/watchlists/:id/reorder", s.handleReorderWatchlist)

			// Workspaces
			protected.GET("/workspaces", s.handleListWorkspaces)
			protected.POST("/workspaces", s.handleCreateWorkspace)
			protected.GET("/workspaces/:id", s.handleGetWorkspace)
			protected.PUT("/workspaces/:id", s.handleRenameWorkspace)
			protected.DELETE("/workspaces/:id", s.handleDeleteWorkspace)
			protected.PUT("/workspaces/:id/layout", s.handleUpdateWorkspaceLayout)
			protected.POST("/workspaces/:id/activate", s.handleActivateWorkspace)

			// Layout templates
			protected.GET("/templates", s.handleListTemplates)
			protected.POST("/templates", s.handleCreateTemplate)
			protected.GET("/templates/:id", s.handleGetTemplate)
			protected.DELETE("/templates/:id", s.handleDeleteTemplate)
			protected.POST("/templates/:id/apply", s.handleApplyTemplate)

			// Themes
			protected.GET("/themes", s.handleListThemes)
			protected.POST("/themes", s.handleCreateTheme)
			protected.PUT("/themes/:id", s.handleUpdateTheme)
			protected.DELETE("/themes/:id", s.handleDeleteTheme)
			protected.POST("/themes/:id/activate", s.handleActivateTheme)

			// Teams
			protected.GET("/teams", s.handleListTeams)
			protected.POST("/teams", s.handleCreateTeam)
			protected.GET("/teams/:id", s.handleGetTeam)
			protected.PUT("/teams/:id", s.handleRenameTeam)
			protected.DELETE("/teams/:id", s.handleDeleteTeam)
			protected.POST("/teams/:id/members", s.handleAddTeamMember)
			protected.PUT("/teams/:id/members/:userId", s.handleUpdateTeamMember)
			protected.DELETE("/teams/:id/members/:userId", s.handleRemoveTeamMember)
			protected.POST("/teams/:id/transfer-ownership", s.handleTransferOwnership)
			protected.POST("/teams/:id/leave", s.handleLeaveTeam)

			// Market comments
			protected.GET("/comments", s.handleListComments)
			protected.POST("/comments", s.handleCreateComment)
			protected.DELETE("/comments/:id", s.handleDeleteComment)

			// Transactions
			protected.GET("/transactions", s.handleListTransactions)
			protected.POST("/transactions", s.handleCreateTransaction)
			protected.GET("/transactions/summary", s.handleTransactionSummary)
			protected.POST("/transactions/sync", s.handleSyncTransactions)
			protected.DELETE("/transactions/:id", s.handleDeleteTransaction)

			// Notifications
			protected.GET("/notifications", s.handleListNotifications)
			protected.POST("/notifications/read-all", s.handleMarkAllNotificationsRead)
			protected.POST("/notifications/:id/read", s.handleMarkNotificationRead)

			// Position sizing calculator
			protected.POST("/kelly", s.handleKelly)

			// Anomaly heat board
			protected.GET("/anomalies", s.handleListAnomalies)

			// Polymarket proxy
			protected.GET("/polymarket/markets", s.handleProxyMarkets)
			protected.GET("/polymarket/markets/:slug", s.handleProxyMarket)
			protected.GET("/polymarket/events", s.handleProxyEvents)
			protected.GET("/polymarket/events/:slug", s.handleProxyEvent)
			protected.GET("/polymarket/book/:tokenId", s.handleProxyBook)
			protected.GET("/polymarket/price/:tokenId", s.handleProxyPrice)
			protected.GET("/polymarket/midpoint/:tokenId", s.handleProxyMidpoint)
			protected.GET("/polymarket/spread/:tokenId", s.handleProxySpread)
			protected.GET("/polymarket/trades", s.handleProxyTrades)
			protected.GET("/polymarket/positions", s.handleProxyPositions)
			protected.GET("/polymarket/holders/:conditionId", s.handleProxyHolders)

			// News proxy
			protected.GET("/newsapi-ai", s.handleNewsSearch)
			protected.GET("/adjacent-news", s.handleAdjacentNews)
		}
	}
}

// handleHealth Health check
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleGetSystemConfig Get system configuration (configuration that client needs to know)
func (s *Server) handleGetSystemConfig(c *gin.Context) {
	cfg := config.Get()

	c.JSON(http.StatusOK, gin.H{
		"registration_enabled": cfg.RegistrationEnabled,
		"telegram_enabled":     cfg.TelegramBotToken != "",
		"clob_authed":          s.deps.CLOB != nil && s.deps.CLOB.HasCreds(),
	})
}

// authMiddleware JWT authentication middleware
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing Authorization header"})
			c.Abort()
			return
		}

		// Check Bearer token format
		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid Authorization format"})
			c.Abort()
			return
		}

		tokenString := tokenParts[1]

		// Blacklist check
		if auth.IsTokenBlacklisted(tokenString) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Token expired, please login again"})
			c.Abort()
			return
		}

		// Validate JWT token
		claims, err := auth.ValidateJWT(tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token: " + err.Error()})
			c.Abort()
			return
		}

		// Store user information in context
		c.Set("user_id", claims.UserID)
		c.Set("email", claims.Email)
		c.Next()
	}
}

// handleLogout Add current token to blacklist
func (s *Server) handleLogout(c *gin.Context) {
	authHeader := c.GetHeader("Authorization")
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid Authorization format"})
		return
	}
	tokenString := parts[1]
	claims, err := auth.ValidateJWT(tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return
	}
	var exp time.Time
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	} else {
		exp = time.Now().Add(24 * time.Hour)
	}
	auth.BlacklistToken(tokenString, exp)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// handleRegister Handle user registration request
func (s *Server) handleRegister(c *gin.Context) {
	// Check if registration is allowed
	if !config.Get().RegistrationEnabled {
		c.JSON(http.StatusForbidden, gin.H{"error": "Registration is disabled"})
		return
	}

	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=6"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Re-registration with an unverified account re-issues the OTP setup;
	// a verified account is a hard conflict
	if existing, err := s.store.User().GetByEmail(req.Email); err == nil {
		if existing.OTPVerified {
			c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"user_id":     existing.ID,
			"email":       existing.Email,
			"otp_secret":  existing.OTPSecret,
			"qr_code_url": auth.GetOTPQRCodeURL(existing.OTPSecret, existing.Email),
			"message":     "Registration pending, please complete OTP setup",
		})
		return
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Password processing failed"})
		return
	}

	otpSecret, err := auth.GenerateOTPSecret()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "OTP secret generation failed"})
		return
	}

	// Create user (unverified OTP status)
	userID := uuid.New().String()
	user := &store.User{
		ID:           userID,
		Email:        req.Email,
		PasswordHash: passwordHash,
		OTPSecret:    otpSecret,
		OTPVerified:  false,
	}

	if err := s.store.User().Create(user); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user", "details": err.Error()})
		return
	}

	qrCodeURL := auth.GetOTPQRCodeURL(otpSecret, req.Email)
	c.JSON(http.StatusOK, gin.H{
		"user_id":     userID,
		"email":       req.Email,
		"otp_secret":  otpSecret,
		"qr_code_url": qrCodeURL,
		"message":     "Please scan the QR code with an authenticator app and verify OTP",
	})
}

// handleCompleteRegistration Complete registration (verify OTP)
func (s *Server) handleCompleteRegistration(c *gin.Context) {
	var req struct {
		UserID  string `json:"user_id" binding:"required"`
		OTPCode string `json:"otp_code" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := s.store.User().GetByID(req.UserID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User does not exist"})
		return
	}

	if !auth.VerifyOTP(user.OTPSecret, req.OTPCode) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "OTP code error"})
		return
	}

	if err := s.store.User().UpdateOTPVerified(req.UserID, true); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user status"})
		return
	}

	token, err := auth.GenerateJWT(user.ID, user.Email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":   token,
		"user_id": user.ID,
		"email":   user.Email,
		"message": "Registration completed",
	})
}

// handleLogin Handle user login request
func (s *Server) handleLogin(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := s.store.User().GetByEmail(req.Email)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Email or password incorrect"})
		return
	}

	if !auth.CheckPassword(req.Password, user.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Email or password incorrect"})
		return
	}

	// Check if OTP is verified
	if !user.OTPVerified {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":              "Account has not completed OTP setup",
			"user_id":            user.ID,
			"requires_otp_setup": true,
		})
		return
	}

	// Password accepted; the session token is only issued after OTP
	c.JSON(http.StatusOK, gin.H{
		"user_id":      user.ID,
		"email":        user.Email,
		"message":      "Please enter your authenticator code",
		"requires_otp": true,
	})
}

// handleVerifyOTP Verify OTP and complete login
func (s *Server) handleVerifyOTP(c *gin.Context) {
	var req struct {
		UserID  string `json:"user_id" binding:"required"`
		OTPCode string `json:"otp_code" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := s.store.User().GetByID(req.UserID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User does not exist"})
		return
	}

	if !auth.VerifyOTP(user.OTPSecret, req.OTPCode) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Verification code error"})
		return
	}

	token, err := auth.GenerateJWT(user.ID, user.Email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":   token,
		"user_id": user.ID,
		"email":   user.Email,
		"message": "Login successful",
	})
}

// handleResetPassword Reset password (via email + OTP verification)
func (s *Server) handleResetPassword(c *gin.Context) {
	var req struct {
		Email       string `json:"email" binding:"required,email"`
		NewPassword string `json:"new_password" binding:"required,min=6"`
		OTPCode     string `json:"otp_code" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := s.store.User().GetByEmail(req.Email)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Email does not exist"})
		return
	}

	if !auth.VerifyOTP(user.OTPSecret, req.OTPCode) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Authenticator code error"})
		return
	}

	newPasswordHash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Password processing failed"})
		return
	}

	if err := s.store.User().UpdatePassword(user.ID, newPasswordHash); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Password update failed"})
		return
	}

	logger.Infof("✓ User %s password has been reset", user.Email)
	c.JSON(http.StatusOK, gin.H{"message": "Password reset successful, please login with new password"})
}

// notFoundOrError maps sql.ErrNoRows to 404 and everything else to 500
func notFoundOrError(c *gin.Context, err error, what string) {
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": what + " not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to access " + what, "details": err.Error()})
}

// Start Start server
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	logger.Infof("🌐 API server starting at http://localhost%s", addr)
	logger.Infof("  • GET  /api/health                 - Health check")
	logger.Infof("  • POST /api/register               - Register (email + password, then OTP)")
	logger.Infof("  • POST /api/login                  - Login (OTP code follows)")
	logger.Infof("  • GET  /api/alerts                 - Price/volume alerts")
	logger.Infof("  • GET  /api/watchlists             - Watchlists")
	logger.Infof("  • GET  /api/workspaces             - Terminal workspaces")
	logger.Infof("  • POST /api/kelly                  - Position sizing calculator")
	logger.Infof("  • GET  /api/anomalies              - Anomaly heat board")
	logger.Infof("  • GET  /api/polymarket/markets     - Market proxy (Gamma)")
	logger.Infof("  • GET  /api/polymarket/book/:token - Order book proxy (CLOB)")
	logger.Infof("  • GET  /api/newsapi-ai             - News search proxy")

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown Gracefully shutdown server
func (s *Server) Shutdown() error {
	s.limiter.stop()
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
