package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"polyterm/logger"
	"polyterm/store"
)

func (s *Server) handleListTransactions(c *gin.Context) {
	userID := c.GetString("user_id")
	marketID := c.Query("market_id")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	list, err := s.store.Transaction().List(userID, marketID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list transactions", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleCreateTransaction(c *gin.Context) {
	var req struct {
		MarketID   string  `json:"market_id" binding:"required"`
		TokenID    string  `json:"token_id"`
		Outcome    string  `json:"outcome"`
		Side       string  `json:"side" binding:"required,oneof=BUY SELL"`
		Price      float64 `json:"price" binding:"required,gt=0,lt=1"`
		Size       float64 `json:"size" binding:"required,gt=0"`
		TxHash     string  `json:"tx_hash"`
		ExecutedAt string  `json:"executed_at"` // RFC3339, defaults to now
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	executedAt := time.Now().UTC()
	if req.ExecutedAt != "" {
		t, err := time.Parse(time.RFC3339, req.ExecutedAt)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "executed_at must be RFC3339"})
			return
		}
		executedAt = t.UTC()
	}

	userID := c.GetString("user_id")
	if req.TxHash != "" {
		exists, err := s.store.Transaction().ExistsByTxHash(userID, req.TxHash)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check tx hash", "details": err.Error()})
			return
		}
		if exists {
			c.JSON(http.StatusConflict, gin.H{"error": "Transaction already recorded"})
			return
		}
	}

	tx := &store.Transaction{
		ID:         uuid.New().String(),
		UserID:     userID,
		MarketID:   req.MarketID,
		TokenID:    req.TokenID,
		Outcome:    req.Outcome,
		Side:       req.Side,
		Price:      req.Price,
		Size:       req.Size,
		TxHash:     req.TxHash,
		Source:     "manual",
		ExecutedAt: executedAt,
	}
	if err := s.store.Transaction().Create(tx); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record transaction", "details": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, tx)
}

func (s *Server) handleTransactionSummary(c *gin.Context) {
	summary, err := s.store.Transaction().Summary(c.GetString("user_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build summary", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleDeleteTransaction(c *gin.Context) {
	if err := s.store.Transaction().Delete(c.GetString("user_id"), c.Param("id")); err != nil {
		notFoundOrError(c, err, "transaction")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Transaction deleted"})
}

// handleSyncTransactions pulls the authenticated wallet's fill history from
// the CLOB and records any fill not yet seen (dedup by transaction hash).
func (s *Server) handleSyncTransactions(c *gin.Context) {
	if s.deps.CLOB == nil || !s.deps.CLOB.HasCreds() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "CLOB credentials are not configured"})
		return
	}

	fills, err := s.deps.CLOB.GetTrades(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch fills from CLOB", "details": err.Error()})
		return
	}

	userID := c.GetString("user_id")
	imported := 0
	for _, fill := range fills {
		if fill.TransactionHash == "" {
			continue
		}
		exists, err := s.store.Transaction().ExistsByTxHash(userID, fill.TransactionHash)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check tx hash", "details": err.Error()})
			return
		}
		if exists {
			continue
		}

		price, err := strconv.ParseFloat(fill.Price, 64)
		if err != nil {
			logger.Warnf("⚠️ Skipping fill %s with unparseable price %q", fill.ID, fill.Price)
			continue
		}
		size, err := strconv.ParseFloat(fill.Size, 64)
		if err != nil {
			logger.Warnf("⚠️ Skipping fill %s with unparseable size %q", fill.ID, fill.Size)
			continue
		}

		executedAt := time.Now().UTC()
		if secs, err := strconv.ParseInt(fill.MatchTime, 10, 64); err == nil {
			executedAt = time.Unix(secs, 0).UTC()
		}

		tx := &store.Transaction{
			ID:         uuid.New().String(),
			UserID:     userID,
			MarketID:   fill.Market,
			TokenID:    fill.AssetID,
			Outcome:    fill.Outcome,
			Side:       fill.Side,
			Price:      price,
			Size:       size,
			TxHash:     fill.TransactionHash,
			Source:     "clob_sync",
			ExecutedAt: executedAt,
		}
		if err := s.store.Transaction().Create(tx); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record fill", "details": err.Error()})
			return
		}
		imported++
	}

	logger.Infof("✓ Synced %d new fills for user %s (%d total fetched)", imported, userID, len(fills))
	c.JSON(http.StatusOK, gin.H{"imported": imported, "fetched": len(fills)})
}
