package polymarket

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBook() *OrderBook {
	return &OrderBook{
		AssetID: "123",
		Bids: []BookLevel{
			{Price: "0.40", Size: "100"},
			{Price: "0.45", Size: "50"},
			{Price: "0.44", Size: "10"},
		},
		Asks: []BookLevel{
			{Price: "0.55", Size: "200"},
			{Price: "0.47", Size: "30"},
			{Price: "0.50", Size: "25"},
		},
	}
}

func TestBookBestPrices(t *testing.T) {
	b := sampleBook()
	assert.True(t, b.BestBid().Equal(decimal.RequireFromString("0.45")))
	assert.True(t, b.BestAsk().Equal(decimal.RequireFromString("0.47")))
	assert.True(t, b.Mid().Equal(decimal.RequireFromString("0.46")))
	assert.True(t, b.SpreadValue().Equal(decimal.RequireFromString("0.02")))
}

func TestBookEmptySides(t *testing.T) {
	b := &OrderBook{Bids: []BookLevel{{Price: "0.40", Size: "1"}}}
	assert.True(t, b.BestAsk().IsZero())
	assert.True(t, b.Mid().IsZero())
	assert.True(t, b.SpreadValue().IsZero())
}

func TestBookDepth(t *testing.T) {
	b := sampleBook()
	// mid 0.46, 10% band = [0.414, 0.506]: bids 0.45+0.44, asks 0.47+0.50
	depth := b.Depth(decimal.RequireFromString("0.1"))
	assert.True(t, depth.Equal(decimal.NewFromInt(50+10+30+25)), "depth %s", depth)
}

func TestStringListDecoding(t *testing.T) {
	var m Market
	raw := `{
		"id": "1",
		"question": "Will it happen?",
		"outcomes": "[\"Yes\",\"No\"]",
		"clobTokenIds": "[\"111\",\"222\"]"
	}`
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	assert.Equal(t, StringList{"Yes", "No"}, m.Outcomes)
	assert.Equal(t, "111", m.TokenID("yes"))
	assert.Equal(t, "222", m.TokenID("No"))
	assert.Equal(t, "", m.TokenID("Maybe"))
}

func TestStringListCommaFallback(t *testing.T) {
	var l StringList
	require.NoError(t, json.Unmarshal([]byte(`"111, 222"`), &l))
	assert.Equal(t, StringList{"111", "222"}, l)
}

func TestStringListRealArray(t *testing.T) {
	var l StringList
	require.NoError(t, json.Unmarshal([]byte(`["a","b"]`), &l))
	assert.Equal(t, StringList{"a", "b"}, l)
}
