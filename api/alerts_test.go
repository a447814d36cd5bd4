package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polyterm/alerts"
	"polyterm/market"
	"polyterm/store"
)

func alertBody(name string) gin.H {
	return gin.H{
		"name":      name,
		"market_id": "m1",
		"conditions": gin.H{
			"rules": []gin.H{
				{"metric": "price", "op": "above", "value": 0.5},
			},
		},
		"channels": gin.H{"in_app": true},
	}
}

func TestAlertCRUDOverHTTP(t *testing.T) {
	s, st := newTestServer(t, Deps{})
	_, token := newTestUser(t, st, "alerts@example.com")
	_, otherToken := newTestUser(t, st, "other@example.com")

	// create
	w := doJSON(s, http.MethodPost, "/api/alerts", token, alertBody("btc above 50c"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created store.Alert
	decodeBody(t, w, &created)
	assert.Equal(t, "btc above 50c", created.Name)
	assert.Equal(t, 300, created.CooldownSeconds) // default cooldown
	assert.True(t, created.Enabled)

	// list
	w = doJSON(s, http.MethodGet, "/api/alerts", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []store.Alert
	decodeBody(t, w, &list)
	assert.Len(t, list, 1)

	// another user cannot see or touch it
	w = doJSON(s, http.MethodGet, "/api/alerts/"+created.ID, otherToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = doJSON(s, http.MethodDelete, "/api/alerts/"+created.ID, otherToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// update
	body := alertBody("renamed")
	body["cooldown_seconds"] = 600
	w = doJSON(s, http.MethodPut, "/api/alerts/"+created.ID, token, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated store.Alert
	decodeBody(t, w, &updated)
	assert.Equal(t, "renamed", updated.Name)
	assert.Equal(t, 600, updated.CooldownSeconds)

	// disable / enable
	w = doJSON(s, http.MethodPost, "/api/alerts/"+created.ID+"/disable", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	a, err := st.Alert().Get(created.UserID, created.ID)
	require.NoError(t, err)
	assert.False(t, a.Enabled)
	w = doJSON(s, http.MethodPost, "/api/alerts/"+created.ID+"/enable", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// history (empty but owned)
	w = doJSON(s, http.MethodGet, "/api/alerts/"+created.ID+"/history", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// delete
	w = doJSON(s, http.MethodDelete, "/api/alerts/"+created.ID, token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = doJSON(s, http.MethodGet, "/api/alerts/"+created.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateAlertValidation(t *testing.T) {
	s, st := newTestServer(t, Deps{})
	_, token := newTestUser(t, st, "val@example.com")

	// no rules
	body := gin.H{
		"name":       "empty",
		"market_id":  "m1",
		"conditions": gin.H{"rules": []gin.H{}},
	}
	w := doJSON(s, http.MethodPost, "/api/alerts", token, body)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// bogus metric
	body = alertBody("bad metric")
	body["conditions"] = gin.H{"rules": []gin.H{{"metric": "temperature", "op": "above", "value": 1}}}
	w = doJSON(s, http.MethodPost, "/api/alerts", token, body)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// bogus operator
	body = alertBody("bad op")
	body["conditions"] = gin.H{"rules": []gin.H{{"metric": "price", "op": "near", "value": 1}}}
	w = doJSON(s, http.MethodPost, "/api/alerts", token, body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTestAlertFiresInAppChannel(t *testing.T) {
	s, st := newTestServer(t, Deps{})
	userID, token := newTestUser(t, st, "fire@example.com")

	w := doJSON(s, http.MethodPost, "/api/alerts", token, alertBody("wired"))
	require.Equal(t, http.StatusCreated, w.Code)
	var created store.Alert
	decodeBody(t, w, &created)

	w = doJSON(s, http.MethodPost, "/api/alerts/test", token, gin.H{"alert_id": created.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Delivered []string `json:"delivered"`
	}
	decodeBody(t, w, &resp)
	assert.Contains(t, resp.Delivered, "in_app")

	notes, err := st.Notification().List(userID, true, 10)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0].Title, "(test)")
}

func TestNotificationReadFlow(t *testing.T) {
	s, st := newTestServer(t, Deps{})
	userID, token := newTestUser(t, st, "notes@example.com")

	for i := 0; i < 3; i++ {
		require.NoError(t, st.Notification().Create(&store.Notification{
			ID:     "n" + string(rune('1'+i)),
			UserID: userID,
			Kind:   "alert",
			Title:  "t",
			Body:   "b",
		}))
	}

	w := doJSON(s, http.MethodGet, "/api/notifications", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Notifications []store.Notification `json:"notifications"`
		UnreadCount   int                  `json:"unread_count"`
	}
	decodeBody(t, w, &resp)
	assert.Equal(t, 3, resp.UnreadCount)

	w = doJSON(s, http.MethodPost, "/api/notifications/n1/read", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// unknown id is a 404
	w = doJSON(s, http.MethodPost, "/api/notifications/bogus/read", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(s, http.MethodPost, "/api/notifications/read-all", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	count, err := st.Notification().UnreadCount(userID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestKellyEndpoint(t *testing.T) {
	s, st := newTestServer(t, Deps{})
	_, token := newTestUser(t, st, "kelly@example.com")

	w := doJSON(s, http.MethodPost, "/api/kelly", token, gin.H{
		"probability": "0.6",
		"price":       "0.5",
		"bankroll":    "1000",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Fraction string `json:"fraction"`
		Stake    string `json:"stake"`
	}
	decodeBody(t, w, &resp)
	assert.Equal(t, "0.1", resp.Fraction) // half-Kelly on a 0.2 full fraction
	assert.Equal(t, "100", resp.Stake)

	// price at 1 is uninvestable
	w = doJSON(s, http.MethodPost, "/api/kelly", token, gin.H{
		"probability": "0.6",
		"price":       "1",
		"bankroll":    "1000",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnomaliesEndpoint(t *testing.T) {
	// without a detector the board is unavailable
	s, st := newTestServer(t, Deps{})
	_, token := newTestUser(t, st, "anom@example.com")
	w := doJSON(s, http.MethodGet, "/api/anomalies", token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	// with a detector it serves current signals
	detector := alerts.NewDetector(nil, nil, alerts.DefaultDetectorConfig())
	for i := 0; i < 50; i++ {
		mid := "0.500"
		if i%2 == 0 {
			mid = "0.502"
		}
		detector.Observe(market.BookSnapshot{
			AssetID:   "tok1",
			Mid:       decimal.RequireFromString(mid),
			BidDepth:  decimal.NewFromInt(1000),
			AskDepth:  decimal.NewFromInt(1000),
			UpdatedAt: time.Now(),
		})
	}
	detector.Observe(market.BookSnapshot{
		AssetID:   "tok1",
		Mid:       decimal.RequireFromString("0.70"),
		BidDepth:  decimal.NewFromInt(1000),
		AskDepth:  decimal.NewFromInt(1000),
		UpdatedAt: time.Now(),
	})

	s2, st2 := newTestServer(t, Deps{Detector: detector})
	_, token2 := newTestUser(t, st2, "anom2@example.com")
	w = doJSON(s2, http.MethodGet, "/api/anomalies", token2, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var signals []alerts.Signal
	decodeBody(t, w, &signals)
	require.NotEmpty(t, signals)
	assert.Equal(t, "tok1", signals[0].AssetID)
}
