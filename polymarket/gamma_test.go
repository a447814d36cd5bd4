package polymarket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gammaMarketFixture = `[{
	"id": "501234",
	"question": "Will the proposal pass?",
	"conditionId": "0xcond",
	"slug": "will-the-proposal-pass",
	"outcomes": "[\"Yes\",\"No\"]",
	"outcomePrices": "[\"0.62\",\"0.38\"]",
	"clobTokenIds": "[\"111\",\"222\"]",
	"volume": "125000.5",
	"volume24hr": 8000.25,
	"liquidity": "40000",
	"active": true,
	"closed": false,
	"bestBid": 0.61,
	"bestAsk": 0.63
}]`

func TestGammaListMarkets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/markets", r.URL.Path)
		assert.Equal(t, "20", r.URL.Query().Get("limit"))
		assert.Equal(t, "true", r.URL.Query().Get("active"))
		assert.Equal(t, "politics", r.URL.Query().Get("tag_slug"))
		w.Write([]byte(gammaMarketFixture))
	}))
	defer srv.Close()

	active := true
	c := NewGammaClient(srv.URL)
	markets, err := c.ListMarkets(context.Background(), MarketQuery{Limit: 20, Active: &active, Tag: "politics"})
	require.NoError(t, err)
	require.Len(t, markets, 1)

	m := markets[0]
	assert.Equal(t, "will-the-proposal-pass", m.Slug)
	assert.Equal(t, StringList{"Yes", "No"}, m.Outcomes)
	assert.Equal(t, StringList{"0.62", "0.38"}, m.OutcomePrices)
	assert.Equal(t, "111", m.TokenID("Yes"))
}

func TestGammaListMarketsSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "proposal", r.URL.Query().Get("slug_contains"))
		w.Write([]byte(gammaMarketFixture))
	}))
	defer srv.Close()

	c := NewGammaClient(srv.URL)
	markets, err := c.ListMarkets(context.Background(), MarketQuery{Search: "proposal"})
	require.NoError(t, err)
	assert.Len(t, markets, 1)
}

func TestGammaGetMarketBySlug(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("slug") == "will-the-proposal-pass" {
			w.Write([]byte(gammaMarketFixture))
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewGammaClient(srv.URL)
	m, err := c.GetMarketBySlug(context.Background(), "will-the-proposal-pass")
	require.NoError(t, err)
	assert.Equal(t, "501234", m.ID)

	_, err = c.GetMarketBySlug(context.Background(), "nope")
	assert.Error(t, err)
}

func TestGammaGetEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/events", r.URL.Path)
		w.Write([]byte(`[{"id":"9","slug":"election-2026","title":"Election 2026","markets":` + gammaMarketFixture + `}]`))
	}))
	defer srv.Close()

	c := NewGammaClient(srv.URL)
	ev, err := c.GetEvent(context.Background(), "election-2026")
	require.NoError(t, err)
	assert.Equal(t, "Election 2026", ev.Title)
	require.Len(t, ev.Markets, 1)
	assert.Equal(t, "0xcond", ev.Markets[0].ConditionID)
}

func TestGammaUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewGammaClient(srv.URL)
	_, err := c.ListMarkets(context.Background(), MarketQuery{})
	assert.Error(t, err)
}

func TestDataClientPositions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/positions", r.URL.Path)
		assert.Equal(t, "0xwallet", r.URL.Query().Get("user"))
		w.Write([]byte(`[{"proxyWallet":"0xwallet","asset":"111","size":250,"avgPrice":0.42,"curPrice":0.61,"cashPnl":47.5,"title":"Will the proposal pass?","outcome":"Yes"}]`))
	}))
	defer srv.Close()

	c := NewDataClient(srv.URL)
	positions, err := c.Positions(context.Background(), "0xwallet", 0.01)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, 250.0, positions[0].Size)
	assert.Equal(t, "Yes", positions[0].Outcome)

	_, err = c.Positions(context.Background(), "", 0)
	assert.Error(t, err)
}

func TestDataClientTradesAndHolders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/trades":
			assert.Equal(t, "0xcond", r.URL.Query().Get("market"))
			w.Write([]byte(`[{"proxyWallet":"0xw","side":"BUY","asset":"111","size":100,"price":0.62,"timestamp":1735689600,"outcome":"Yes"}]`))
		case "/holders":
			w.Write([]byte(`[{"token":"111","holders":[{"proxyWallet":"0xbig","amount":5000,"name":"whale"}]}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewDataClient(srv.URL)
	trades, err := c.Trades(context.Background(), "0xcond", "", 50)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, 0.62, trades[0].Price)

	holders, err := c.Holders(context.Background(), "0xcond", 10)
	require.NoError(t, err)
	require.Len(t, holders, 1)
	assert.Equal(t, 5000.0, holders[0].Amount)
}
