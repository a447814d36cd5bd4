package store

import (
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAlert(id, userID, marketID string) *Alert {
	conditions, _ := json.Marshal(AlertConditions{
		MarketID: marketID,
		Rules:    []AlertRule{{Metric: "price", Op: "above", Value: 0.65}},
	})
	channels, _ := json.Marshal(AlertChannels{InApp: true})
	return &Alert{
		ID:         id,
		UserID:     userID,
		Name:       "price watch",
		MarketID:   marketID,
		Conditions: string(conditions),
		Channels:   string(channels),
		Enabled:    true,
	}
}

func TestAlertCRUD(t *testing.T) {
	st := newTestStore(t)

	a := newAlert("al1", "u1", "mkt-1")
	require.NoError(t, st.Alert().Create(a))
	assert.Equal(t, 300, a.CooldownSeconds) // default cooldown applied

	got, err := st.Alert().Get("u1", "al1")
	require.NoError(t, err)
	assert.Equal(t, "price watch", got.Name)
	assert.True(t, got.Enabled)
	assert.Nil(t, got.LastTriggeredAt)

	// other users cannot see it
	_, err = st.Alert().Get("u2", "al1")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	got.Name = "renamed"
	require.NoError(t, st.Alert().Update(got))
	got, err = st.Alert().Get("u1", "al1")
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)

	require.NoError(t, st.Alert().Delete("u1", "al1"))
	_, err = st.Alert().Get("u1", "al1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestAlertConditionsCarryMarketID(t *testing.T) {
	st := newTestStore(t)

	// conditions blob without market_id falls back to the row's market_id
	a := &Alert{
		ID: "al2", UserID: "u1", Name: "n", MarketID: "mkt-9",
		Conditions: `{"rules":[{"metric":"price","op":"below","value":0.2}]}`,
		Channels:   `{"in_app":true}`,
		Enabled:    true,
	}
	require.NoError(t, st.Alert().Create(a))

	got, err := st.Alert().Get("u1", "al2")
	require.NoError(t, err)
	cond, err := got.ParseConditions()
	require.NoError(t, err)
	assert.Equal(t, "mkt-9", cond.MarketID)
	assert.Equal(t, "all", cond.Mode)
	require.Len(t, cond.Rules, 1)
}

func TestAlertTriggerHistory(t *testing.T) {
	st := newTestStore(t)

	require.NoError(t, st.Alert().Create(newAlert("al3", "u1", "mkt-1")))

	require.NoError(t, st.Alert().RecordTrigger("al3", 0.71, "price above 0.65"))
	require.NoError(t, st.Alert().RecordTrigger("al3", 0.74, "price above 0.65"))

	got, err := st.Alert().Get("u1", "al3")
	require.NoError(t, err)
	assert.Equal(t, 2, got.TriggerCount)
	require.NotNil(t, got.LastTriggeredAt)

	history, err := st.Alert().History("al3", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 0.74, history[0].Price) // newest first
}

func TestAlertListEnabled(t *testing.T) {
	st := newTestStore(t)

	require.NoError(t, st.Alert().Create(newAlert("al4", "u1", "mkt-1")))
	require.NoError(t, st.Alert().Create(newAlert("al5", "u2", "mkt-2")))
	require.NoError(t, st.Alert().SetEnabled("u2", "al5", false))

	enabled, err := st.Alert().ListEnabled()
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	assert.Equal(t, "al4", enabled[0].ID)
}
