package api

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polyterm/store"
)

func TestWatchlistEndpoints(t *testing.T) {
	s, st := newTestServer(t, Deps{})
	_, token := newTestUser(t, st, "wl@example.com")
	_, otherToken := newTestUser(t, st, "wl-other@example.com")

	w := doJSON(s, http.MethodPost, "/api/watchlists", token, gin.H{"name": "Elections"})
	require.Equal(t, http.StatusCreated, w.Code)
	var created store.Watchlist
	decodeBody(t, w, &created)

	// add items
	for _, marketID := range []string{"m1", "m2", "m3"} {
		w = doJSON(s, http.MethodPost, "/api/watchlists/"+created.ID+"/items", token, gin.H{
			"market_id": marketID,
			"note":      "watch " + marketID,
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	// ownership: another user gets 404, not 403
	w = doJSON(s, http.MethodPost, "/api/watchlists/"+created.ID+"/items", otherToken, gin.H{"market_id": "mx"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	// reorder
	w = doJSON(s, http.MethodPut, "/api/watchlists/"+created.ID+"/reorder", token, gin.H{
		"market_ids": []string{"m3", "m1", "m2"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(s, http.MethodGet, "/api/watchlists/"+created.ID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got store.Watchlist
	decodeBody(t, w, &got)
	require.Len(t, got.Items, 3)
	assert.Equal(t, "m3", got.Items[0].MarketID)
	assert.Equal(t, "m1", got.Items[1].MarketID)

	// remove an item
	w = doJSON(s, http.MethodDelete, "/api/watchlists/"+created.ID+"/items/m1", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// rename and delete
	w = doJSON(s, http.MethodPut, "/api/watchlists/"+created.ID, token, gin.H{"name": "US Elections"})
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(s, http.MethodDelete, "/api/watchlists/"+created.ID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(s, http.MethodGet, "/api/watchlists/"+created.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWorkspaceEndpoints(t *testing.T) {
	s, st := newTestServer(t, Deps{})
	_, token := newTestUser(t, st, "ws@example.com")

	w := doJSON(s, http.MethodPost, "/api/workspaces", token, gin.H{"name": "Trading"})
	require.Equal(t, http.StatusCreated, w.Code)
	var first store.Workspace
	decodeBody(t, w, &first)
	assert.Equal(t, "{}", first.Layout)

	w = doJSON(s, http.MethodPost, "/api/workspaces", token, gin.H{
		"name":   "Research",
		"layout": `{"cards":[{"type":"news"}]}`,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var second store.Workspace
	decodeBody(t, w, &second)

	// layout overwrite
	w = doJSON(s, http.MethodPut, "/api/workspaces/"+first.ID+"/layout", token, gin.H{
		"layout": `{"cards":[{"type":"book"}]}`,
	})
	require.Equal(t, http.StatusOK, w.Code)

	// activation is exclusive
	w = doJSON(s, http.MethodPost, "/api/workspaces/"+first.ID+"/activate", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(s, http.MethodPost, "/api/workspaces/"+second.ID+"/activate", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(s, http.MethodGet, "/api/workspaces", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []store.Workspace
	decodeBody(t, w, &list)
	active := 0
	for _, ws := range list {
		if ws.IsActive {
			active++
			assert.Equal(t, second.ID, ws.ID)
		}
	}
	assert.Equal(t, 1, active)
}

func TestTemplateEndpoints(t *testing.T) {
	s, st := newTestServer(t, Deps{})
	_, token := newTestUser(t, st, "tpl@example.com")

	// seeded defaults are visible
	w := doJSON(s, http.MethodGet, "/api/templates", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []store.Template
	decodeBody(t, w, &list)
	require.NotEmpty(t, list)
	var defaultID string
	for _, tmpl := range list {
		if tmpl.IsDefault {
			defaultID = tmpl.ID
		}
	}
	require.NotEmpty(t, defaultID)

	// defaults cannot be deleted
	w = doJSON(s, http.MethodDelete, "/api/templates/"+defaultID, token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// apply creates a workspace carrying the template layout
	w = doJSON(s, http.MethodPost, "/api/templates/"+defaultID+"/apply", token, gin.H{"name": "From template"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var ws store.Workspace
	decodeBody(t, w, &ws)
	assert.Equal(t, "From template", ws.Name)
	assert.NotEmpty(t, ws.Layout)

	// custom template lifecycle
	w = doJSON(s, http.MethodPost, "/api/templates", token, gin.H{
		"name":   "My grid",
		"layout": `{"cards":[]}`,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var custom store.Template
	decodeBody(t, w, &custom)
	w = doJSON(s, http.MethodDelete, "/api/templates/"+custom.ID, token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestThemeEndpoints(t *testing.T) {
	s, st := newTestServer(t, Deps{})
	_, token := newTestUser(t, st, "theme@example.com")

	w := doJSON(s, http.MethodPost, "/api/themes", token, gin.H{
		"name":   "Midnight",
		"colors": `{"bg":"#000"}`,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var custom store.Theme
	decodeBody(t, w, &custom)

	w = doJSON(s, http.MethodPost, "/api/themes/"+custom.ID+"/activate", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(s, http.MethodGet, "/api/themes", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []store.Theme
	decodeBody(t, w, &list)
	activeCount := 0
	for _, th := range list {
		if th.IsActive {
			activeCount++
			assert.Equal(t, custom.ID, th.ID)
		}
	}
	assert.Equal(t, 1, activeCount)

	w = doJSON(s, http.MethodPut, "/api/themes/"+custom.ID, token, gin.H{
		"name":   "Midnight v2",
		"colors": `{"bg":"#111"}`,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(s, http.MethodDelete, "/api/themes/"+custom.ID, token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
