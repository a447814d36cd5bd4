package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"polyterm/alerts"
	"polyterm/kelly"
	"polyterm/notify"
	"polyterm/store"
)

type alertRequest struct {
	Name            string                `json:"name" binding:"required"`
	MarketID        string                `json:"market_id" binding:"required"`
	Conditions      store.AlertConditions `json:"conditions" binding:"required"`
	Channels        store.AlertChannels   `json:"channels"`
	Enabled         *bool                 `json:"enabled"`
	CooldownSeconds int                   `json:"cooldown_seconds"`
}

func validateConditions(cond *store.AlertConditions) error {
	if len(cond.Rules) == 0 {
		return fmt.Errorf("conditions need at least one rule")
	}
	if cond.Mode != "" && cond.Mode != "all" && cond.Mode != "any" {
		return fmt.Errorf("mode must be \"all\" or \"any\"")
	}
	for _, r := range cond.Rules {
		switch r.Metric {
		case alerts.MetricPrice, alerts.MetricVolume24h, alerts.MetricSpread,
			alerts.MetricLiquidity, alerts.MetricHeatScore:
		default:
			return fmt.Errorf("unknown metric: %s", r.Metric)
		}
		switch r.Op {
		case alerts.OpAbove, alerts.OpBelow, alerts.OpCrossesAbove, alerts.OpCrossesBelow:
		default:
			return fmt.Errorf("unknown operator: %s", r.Op)
		}
	}
	return nil
}

func (s *Server) handleListAlerts(c *gin.Context) {
	userID := c.GetString("user_id")
	list, err := s.store.Alert().List(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list alerts", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleCreateAlert(c *gin.Context) {
	userID := c.GetString("user_id")

	var req alertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.Conditions.MarketID = req.MarketID
	if err := validateConditions(&req.Conditions); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	condJSON, _ := json.Marshal(req.Conditions)
	chJSON, _ := json.Marshal(req.Channels)

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	a := &store.Alert{
		ID:              uuid.New().String(),
		UserID:          userID,
		Name:            req.Name,
		MarketID:        req.MarketID,
		Conditions:      string(condJSON),
		Channels:        string(chJSON),
		Enabled:         enabled,
		CooldownSeconds: req.CooldownSeconds,
	}
	if err := s.store.Alert().Create(a); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create alert", "details": err.Error()})
		return
	}
	created, err := s.store.Alert().Get(userID, a.ID)
	if err != nil {
		notFoundOrError(c, err, "alert")
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) handleGetAlert(c *gin.Context) {
	a, err := s.store.Alert().Get(c.GetString("user_id"), c.Param("id"))
	if err != nil {
		notFoundOrError(c, err, "alert")
		return
	}
	c.JSON(http.StatusOK, a)
}

func (s *Server) handleUpdateAlert(c *gin.Context) {
	userID := c.GetString("user_id")
	a, err := s.store.Alert().Get(userID, c.Param("id"))
	if err != nil {
		notFoundOrError(c, err, "alert")
		return
	}

	var req alertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.Conditions.MarketID = req.MarketID
	if err := validateConditions(&req.Conditions); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	condJSON, _ := json.Marshal(req.Conditions)
	chJSON, _ := json.Marshal(req.Channels)

	a.Name = req.Name
	a.MarketID = req.MarketID
	a.Conditions = string(condJSON)
	a.Channels = string(chJSON)
	if req.Enabled != nil {
		a.Enabled = *req.Enabled
	}
	if req.CooldownSeconds > 0 {
		a.CooldownSeconds = req.CooldownSeconds
	}
	if err := s.store.Alert().Update(a); err != nil {
		notFoundOrError(c, err, "alert")
		return
	}
	c.JSON(http.StatusOK, a)
}

func (s *Server) handleDeleteAlert(c *gin.Context) {
	if err := s.store.Alert().Delete(c.GetString("user_id"), c.Param("id")); err != nil {
		notFoundOrError(c, err, "alert")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Alert deleted"})
}

func (s *Server) handleEnableAlert(c *gin.Context)  { s.setAlertEnabled(c, true) }
func (s *Server) handleDisableAlert(c *gin.Context) { s.setAlertEnabled(c, false) }

func (s *Server) setAlertEnabled(c *gin.Context, enabled bool) {
	if err := s.store.Alert().SetEnabled(c.GetString("user_id"), c.Param("id"), enabled); err != nil {
		notFoundOrError(c, err, "alert")
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": enabled})
}

// handleTestAlert fires an alert's channels with a sample payload so users
// can verify their Telegram / webhook wiring before the real thing.
func (s *Server) handleTestAlert(c *gin.Context) {
	userID := c.GetString("user_id")

	var req struct {
		AlertID string `json:"alert_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	a, err := s.store.Alert().Get(userID, req.AlertID)
	if err != nil {
		notFoundOrError(c, err, "alert")
		return
	}
	channels, err := a.ParseChannels()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Alert has invalid channels", "details": err.Error()})
		return
	}

	reason := "Test firing requested by user"
	delivered := []string{}

	if channels.InApp {
		n := &store.Notification{
			ID:       uuid.New().String(),
			UserID:   userID,
			Kind:     "alert",
			Title:    a.Name + " (test)",
			Body:     reason,
			MarketID: a.MarketID,
		}
		if err := s.store.Notification().Create(n); err == nil {
			delivered = append(delivered, "in_app")
		}
	}
	if channels.Telegram && s.deps.Telegram != nil && s.deps.Telegram.Enabled() {
		msg := notify.FormatAlert(a.Name+" (test)", a.MarketID, 0, reason)
		if err := s.deps.Telegram.Send(channels.TelegramChatID, msg); err == nil {
			delivered = append(delivered, "telegram")
		}
	}
	if channels.WebhookURL != "" && s.deps.Webhook != nil {
		payload := notify.WebhookPayload{
			Event:     "alert_test",
			AlertID:   a.ID,
			AlertName: a.Name,
			MarketID:  a.MarketID,
			Message:   reason,
		}
		if err := s.deps.Webhook.Post(c.Request.Context(), channels.WebhookURL, payload); err == nil {
			delivered = append(delivered, "webhook")
		}
	}

	c.JSON(http.StatusOK, gin.H{"delivered": delivered})
}

func (s *Server) handleAlertHistory(c *gin.Context) {
	userID := c.GetString("user_id")
	alertID := c.Param("id")

	// ownership check before reading history
	if _, err := s.store.Alert().Get(userID, alertID); err != nil {
		notFoundOrError(c, err, "alert")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	history, err := s.store.Alert().History(alertID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load history", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, history)
}

// --- notifications ---

func (s *Server) handleListNotifications(c *gin.Context) {
	userID := c.GetString("user_id")
	unreadOnly := c.Query("unread") == "true"
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	list, err := s.store.Notification().List(userID, unreadOnly, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list notifications", "details": err.Error()})
		return
	}
	unread, err := s.store.Notification().UnreadCount(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count notifications", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list, "unread_count": unread})
}

func (s *Server) handleMarkNotificationRead(c *gin.Context) {
	if err := s.store.Notification().MarkRead(c.GetString("user_id"), c.Param("id")); err != nil {
		notFoundOrError(c, err, "notification")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Marked read"})
}

func (s *Server) handleMarkAllNotificationsRead(c *gin.Context) {
	if err := s.store.Notification().MarkAllRead(c.GetString("user_id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark notifications", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "All marked read"})
}

// --- position sizing ---

func (s *Server) handleKelly(c *gin.Context) {
	var in kelly.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := kelly.Calculate(in)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// --- anomaly heat board ---

func (s *Server) handleListAnomalies(c *gin.Context) {
	if s.deps.Detector == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Anomaly detection is not running"})
		return
	}
	c.JSON(http.StatusOK, s.deps.Detector.Signals())
}
