package polymarket

import (
	"github.com/shopspring/decimal"
)

// BestBid returns the highest bid, zero on an empty side. CLOB books arrive
// sorted worst-to-best, so scan rather than trust position.
func (b *OrderBook) BestBid() decimal.Decimal {
	best := decimal.Zero
	for _, lvl := range b.Bids {
		p, err := decimal.NewFromString(lvl.Price)
		if err != nil {
			continue
		}
		if p.GreaterThan(best) {
			best = p
		}
	}
	return best
}

// BestAsk returns the lowest ask, zero on an empty side
func (b *OrderBook) BestAsk() decimal.Decimal {
	best := decimal.Zero
	for _, lvl := range b.Asks {
		p, err := decimal.NewFromString(lvl.Price)
		if err != nil {
			continue
		}
		if best.IsZero() || p.LessThan(best) {
			best = p
		}
	}
	return best
}

// Mid returns the book midpoint, zero when either side is empty
func (b *OrderBook) Mid() decimal.Decimal {
	bid, ask := b.BestBid(), b.BestAsk()
	if bid.IsZero() || ask.IsZero() {
		return decimal.Zero
	}
	return bid.Add(ask).Div(decimal.NewFromInt(2))
}

// SpreadValue returns ask minus bid, zero when either side is empty
func (b *OrderBook) SpreadValue() decimal.Decimal {
	bid, ask := b.BestBid(), b.BestAsk()
	if bid.IsZero() || ask.IsZero() {
		return decimal.Zero
	}
	return ask.Sub(bid)
}

// Depth sums the size resting within pct of the midpoint on both sides;
// a rough liquidity gauge for the heat board.
func (b *OrderBook) Depth(pct decimal.Decimal) decimal.Decimal {
	mid := b.Mid()
	if mid.IsZero() {
		return decimal.Zero
	}
	band := mid.Mul(pct)
	lo, hi := mid.Sub(band), mid.Add(band)

	total := decimal.Zero
	for _, side := range [][]BookLevel{b.Bids, b.Asks} {
		for _, lvl := range side {
			p, err := decimal.NewFromString(lvl.Price)
			if err != nil {
				continue
			}
			if p.LessThan(lo) || p.GreaterThan(hi) {
				continue
			}
			sz, err := decimal.NewFromString(lvl.Size)
			if err != nil {
				continue
			}
			total = total.Add(sz)
		}
	}
	return total
}
