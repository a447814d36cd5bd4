package store

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchlistItemsOrdering(t *testing.T) {
	st := newTestStore(t)

	require.NoError(t, st.Watchlist().Create(&Watchlist{ID: "w1", UserID: "u1", Name: "politics"}))
	for _, m := range []string{"mkt-a", "mkt-b", "mkt-c"} {
		require.NoError(t, st.Watchlist().AddItem(&WatchlistItem{WatchlistID: "w1", MarketID: m}))
	}

	got, err := st.Watchlist().Get("u1", "w1")
	require.NoError(t, err)
	require.Len(t, got.Items, 3)
	assert.Equal(t, "mkt-a", got.Items[0].MarketID)
	assert.Equal(t, "mkt-c", got.Items[2].MarketID)

	require.NoError(t, st.Watchlist().Reorder("w1", []string{"mkt-c", "mkt-a", "mkt-b"}))
	got, err = st.Watchlist().Get("u1", "w1")
	require.NoError(t, err)
	assert.Equal(t, "mkt-c", got.Items[0].MarketID)
	assert.Equal(t, "mkt-a", got.Items[1].MarketID)
	assert.Equal(t, "mkt-b", got.Items[2].MarketID)
}

func TestWatchlistAddItemUpsertsNote(t *testing.T) {
	st := newTestStore(t)

	require.NoError(t, st.Watchlist().Create(&Watchlist{ID: "w1", UserID: "u1", Name: "crypto"}))
	require.NoError(t, st.Watchlist().AddItem(&WatchlistItem{WatchlistID: "w1", MarketID: "mkt-a"}))
	require.NoError(t, st.Watchlist().AddItem(&WatchlistItem{WatchlistID: "w1", MarketID: "mkt-a", Note: "resolves friday"}))

	items, err := st.Watchlist().Items("w1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "resolves friday", items[0].Note)
}

func TestWatchlistDeleteRemovesItems(t *testing.T) {
	st := newTestStore(t)

	require.NoError(t, st.Watchlist().Create(&Watchlist{ID: "w1", UserID: "u1", Name: "tmp"}))
	require.NoError(t, st.Watchlist().AddItem(&WatchlistItem{WatchlistID: "w1", MarketID: "mkt-a"}))
	require.NoError(t, st.Watchlist().Delete("u1", "w1"))

	_, err := st.Watchlist().Get("u1", "w1")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	items, err := st.Watchlist().Items("w1")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestWatchlistAllMarketIDsDeduplicates(t *testing.T) {
	st := newTestStore(t)

	require.NoError(t, st.Watchlist().Create(&Watchlist{ID: "w1", UserID: "u1", Name: "a"}))
	require.NoError(t, st.Watchlist().Create(&Watchlist{ID: "w2", UserID: "u2", Name: "b"}))
	require.NoError(t, st.Watchlist().AddItem(&WatchlistItem{WatchlistID: "w1", MarketID: "mkt-a"}))
	require.NoError(t, st.Watchlist().AddItem(&WatchlistItem{WatchlistID: "w2", MarketID: "mkt-a"}))
	require.NoError(t, st.Watchlist().AddItem(&WatchlistItem{WatchlistID: "w2", MarketID: "mkt-b"}))

	ids, err := st.Watchlist().AllMarketIDs()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"mkt-a", "mkt-b"}, ids)
}
