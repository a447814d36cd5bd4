// Package polymarket provides REST clients for the three Polymarket APIs:
// Gamma (market metadata), CLOB (order book + authed account data) and the
// Data API (public prints, positions, holders).
//
// Reference: https://docs.polymarket.com/
package polymarket

import (
	"encoding/json"
	"strings"
)

// StringList decodes fields the Gamma API returns as JSON-encoded strings,
// e.g. outcomes: "[\"Yes\",\"No\"]" and clobTokenIds. Some older rows are
// plain comma-separated strings.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		// already a real array
		var arr []string
		if err2 := json.Unmarshal(data, &arr); err2 != nil {
			return err
		}
		*l = arr
		return nil
	}
	if raw == "" {
		*l = nil
		return nil
	}
	var arr []string
	if err := json.Unmarshal([]byte(raw), &arr); err != nil {
		for _, part := range strings.Split(raw, ",") {
			arr = append(arr, strings.TrimSpace(part))
		}
	}
	*l = arr
	return nil
}

// Market as returned by the Gamma API
type Market struct {
	ID            string     `json:"id"`
	Question      string     `json:"question"`
	ConditionID   string     `json:"conditionId"`
	Slug          string     `json:"slug"`
	Description   string     `json:"description,omitempty"`
	Outcomes      StringList `json:"outcomes"`
	OutcomePrices StringList `json:"outcomePrices"`
	ClobTokenIDs  StringList `json:"clobTokenIds"`
	Volume        string     `json:"volume"`
	Volume24hr    float64    `json:"volume24hr"`
	Liquidity     string     `json:"liquidity"`
	Active        bool       `json:"active"`
	Closed        bool       `json:"closed"`
	EndDate       string     `json:"endDate,omitempty"`
	Image         string     `json:"image,omitempty"`
	Icon          string     `json:"icon,omitempty"`
	NegRisk       bool       `json:"negRisk"`
	BestBid       float64    `json:"bestBid"`
	BestAsk       float64    `json:"bestAsk"`
	LastPrice     float64    `json:"lastTradePrice"`
	Spread        float64    `json:"spread"`
}

// TokenID returns the CLOB token id for an outcome label ("Yes"/"No"),
// empty string if the market does not carry one.
func (m *Market) TokenID(outcome string) string {
	for i, o := range m.Outcomes {
		if strings.EqualFold(o, outcome) && i < len(m.ClobTokenIDs) {
			return m.ClobTokenIDs[i]
		}
	}
	return ""
}

// Event groups related markets under one slug
type Event struct {
	ID          string   `json:"id"`
	Ticker      string   `json:"ticker"`
	Slug        string   `json:"slug"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Volume      float64  `json:"volume"`
	Volume24hr  float64  `json:"volume24hr"`
	Liquidity   float64  `json:"liquidity"`
	Active      bool     `json:"active"`
	Closed      bool     `json:"closed"`
	EndDate     string   `json:"endDate,omitempty"`
	Image       string   `json:"image,omitempty"`
	Markets     []Market `json:"markets,omitempty"`
	Tags        []Tag    `json:"tags,omitempty"`
}

// Tag Gamma taxonomy label
type Tag struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Slug  string `json:"slug"`
}

// BookLevel one price level of a CLOB book
type BookLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// OrderBook CLOB book snapshot for one token
type OrderBook struct {
	Market    string      `json:"market"`
	AssetID   string      `json:"asset_id"`
	Timestamp string      `json:"timestamp"`
	Hash      string      `json:"hash"`
	Bids      []BookLevel `json:"bids"`
	Asks      []BookLevel `json:"asks"`
}

// TradeRecord authed fill from the CLOB trade history
type TradeRecord struct {
	ID              string `json:"id"`
	TakerOrderID    string `json:"taker_order_id"`
	Market          string `json:"market"`
	AssetID         string `json:"asset_id"`
	Side            string `json:"side"`
	Size            string `json:"size"`
	FeeRateBps      string `json:"fee_rate_bps"`
	Price           string `json:"price"`
	Status          string `json:"status"`
	MatchTime       string `json:"match_time"`
	Outcome         string `json:"outcome"`
	Owner           string `json:"owner"`
	MakerAddress    string `json:"maker_address"`
	TransactionHash string `json:"transaction_hash"`
	TraderSide      string `json:"trader_side"`
}

// OpenOrder resting order from /data/orders
type OpenOrder struct {
	ID           string `json:"id"`
	AssetID      string `json:"asset_id"`
	Market       string `json:"market"`
	Side         string `json:"side"`
	Price        string `json:"price"`
	OriginalSize string `json:"original_size"`
	SizeMatched  string `json:"size_matched"`
	Status       string `json:"status"`
	Outcome      string `json:"outcome"`
	CreatedAt    int64  `json:"created_at"`
}

// PublicTrade print from the Data API /trades feed
type PublicTrade struct {
	ProxyWallet     string  `json:"proxyWallet"`
	Side            string  `json:"side"`
	AssetID         string  `json:"asset"`
	ConditionID     string  `json:"conditionId"`
	Size            float64 `json:"size"`
	Price           float64 `json:"price"`
	Timestamp       int64   `json:"timestamp"`
	Title           string  `json:"title"`
	Slug            string  `json:"slug"`
	Outcome         string  `json:"outcome"`
	OutcomeIndex    int     `json:"outcomeIndex"`
	TransactionHash string  `json:"transactionHash"`
}

// Position holding row from the Data API /positions endpoint
type Position struct {
	ProxyWallet  string  `json:"proxyWallet"`
	AssetID      string  `json:"asset"`
	ConditionID  string  `json:"conditionId"`
	Size         float64 `json:"size"`
	AvgPrice     float64 `json:"avgPrice"`
	InitialValue float64 `json:"initialValue"`
	CurrentValue float64 `json:"currentValue"`
	CurPrice     float64 `json:"curPrice"`
	CashPnL      float64 `json:"cashPnl"`
	PercentPnL   float64 `json:"percentPnl"`
	Redeemable   bool    `json:"redeemable"`
	Title        string  `json:"title"`
	Slug         string  `json:"slug"`
	EventSlug    string  `json:"eventSlug"`
	Outcome      string  `json:"outcome"`
	OutcomeIndex int     `json:"outcomeIndex"`
	EndDate      string  `json:"endDate"`
}

// Holder top holder of an outcome token
type Holder struct {
	ProxyWallet  string  `json:"proxyWallet"`
	Amount       float64 `json:"amount"`
	OutcomeIndex int     `json:"outcomeIndex"`
	Name         string  `json:"name"`
	Pseudonym    string  `json:"pseudonym"`
}

// APICreds derived CLOB API credentials
type APICreds struct {
	APIKey     string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}
