package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polyterm/polymarket"
	"polyterm/store"
)

func txBody(marketID, side string, price, size float64, txHash string) gin.H {
	return gin.H{
		"market_id": marketID,
		"side":      side,
		"price":     price,
		"size":      size,
		"tx_hash":   txHash,
	}
}

func TestTransactionEndpoints(t *testing.T) {
	s, st := newTestServer(t, Deps{})
	_, token := newTestUser(t, st, "tx@example.com")

	w := doJSON(s, http.MethodPost, "/api/transactions", token, txBody("m1", "BUY", 0.40, 100, "0xaaa"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// same hash again is a conflict
	w = doJSON(s, http.MethodPost, "/api/transactions", token, txBody("m1", "BUY", 0.40, 100, "0xaaa"))
	assert.Equal(t, http.StatusConflict, w.Code)

	// validation: side and price bounds
	w = doJSON(s, http.MethodPost, "/api/transactions", token, txBody("m1", "HOLD", 0.40, 100, ""))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = doJSON(s, http.MethodPost, "/api/transactions", token, txBody("m1", "BUY", 1.40, 100, ""))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// sells against the position realize pnl in the summary
	w = doJSON(s, http.MethodPost, "/api/transactions", token, txBody("m1", "SELL", 0.60, 50, "0xbbb"))
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(s, http.MethodGet, "/api/transactions?market_id=m1", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []store.Transaction
	decodeBody(t, w, &list)
	assert.Len(t, list, 2)

	w = doJSON(s, http.MethodGet, "/api/transactions/summary", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var summary []store.MarketSummary
	decodeBody(t, w, &summary)
	require.Len(t, summary, 1)
	assert.Equal(t, "m1", summary[0].MarketID)
	assert.InDelta(t, 50.0, summary[0].NetSize, 1e-9)
	assert.InDelta(t, 50*(0.60-0.40), summary[0].RealizedPL, 1e-9)

	// delete
	w = doJSON(s, http.MethodDelete, "/api/transactions/"+list[0].ID, token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSyncTransactionsFromCLOB(t *testing.T) {
	fills := `{"data":[
		{"id":"f1","market":"cond-1","asset_id":"tok1","side":"BUY","size":"100","price":"0.40","outcome":"Yes","match_time":"1718000000","transaction_hash":"0xf1"},
		{"id":"f2","market":"cond-1","asset_id":"tok1","side":"SELL","size":"50","price":"0.55","outcome":"Yes","match_time":"1718000600","transaction_hash":"0xf2"},
		{"id":"f3","market":"cond-2","asset_id":"tok9","side":"BUY","size":"10","price":"not-a-number","outcome":"No","match_time":"0","transaction_hash":"0xf3"}
	]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(fills))
	}))
	defer srv.Close()

	clob, err := polymarket.NewCLOBClient(srv.URL, "key-1", "c2VjcmV0LWJ5dGVz", "pass-1", "")
	require.NoError(t, err)

	s, st := newTestServer(t, Deps{CLOB: clob})
	userID, token := newTestUser(t, st, "sync@example.com")

	w := doJSON(s, http.MethodPost, "/api/transactions/sync", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Imported int `json:"imported"`
		Fetched  int `json:"fetched"`
	}
	decodeBody(t, w, &resp)
	assert.Equal(t, 2, resp.Imported) // the unparseable fill is skipped
	assert.Equal(t, 3, resp.Fetched)

	// idempotent: a second sync imports nothing new
	w = doJSON(s, http.MethodPost, "/api/transactions/sync", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &resp)
	assert.Zero(t, resp.Imported)

	list, err := st.Transaction().List(userID, "", 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, tx := range list {
		assert.Equal(t, "clob_sync", tx.Source)
	}
}

func TestSyncWithoutCredsIsUnavailable(t *testing.T) {
	clob, err := polymarket.NewCLOBClient("http://127.0.0.1:0", "", "", "", "")
	require.NoError(t, err)

	s, st := newTestServer(t, Deps{CLOB: clob})
	_, token := newTestUser(t, st, "nocreds@example.com")

	w := doJSON(s, http.MethodPost, "/api/transactions/sync", token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
