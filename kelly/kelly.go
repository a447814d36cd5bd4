// Package kelly implements closed-form Kelly position sizing for
// binary-outcome markets. A YES share bought at price c pays 1 on a win, so
// the net odds are b = (1-c)/c and the optimal fraction reduces to
// (p - c) / (1 - c).
package kelly

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

var (
	one = decimal.NewFromInt(1)

	// DefaultMultiplier is half-Kelly. Full Kelly assumes the probability
	// estimate is exact; halving gives most of the growth at a fraction of
	// the variance.
	DefaultMultiplier = decimal.NewFromFloat(0.5)
)

// Input parameters for a sizing calculation.
type Input struct {
	Probability decimal.Decimal `json:"probability"` // estimated win probability, [0,1]
	Price       decimal.Decimal `json:"price"`       // market price of the YES share, (0,1)
	Bankroll    decimal.Decimal `json:"bankroll"`
	Multiplier  decimal.Decimal `json:"multiplier"` // fractional-Kelly scaler; zero means DefaultMultiplier
}

// Result of a sizing calculation. FullFraction is the unscaled Kelly fraction
// clamped to [0,1]; Fraction and Stake apply the multiplier.
type Result struct {
	FullFraction  decimal.Decimal `json:"full_fraction"`
	Fraction      decimal.Decimal `json:"fraction"`
	Stake         decimal.Decimal `json:"stake"`
	Shares        decimal.Decimal `json:"shares"`
	Edge          decimal.Decimal `json:"edge"`           // p - price
	ExpectedValue decimal.Decimal `json:"expected_value"` // EV of the stake at resolution
	LogGrowth     float64         `json:"log_growth"`     // expected log growth per bet
}

// Fraction returns the full Kelly fraction for buying YES at price with win
// probability p, clamped to [0,1]. Negative edge clamps to zero rather than
// suggesting the opposite side; callers size NO positions by passing 1-p and
// 1-price.
func Fraction(p, price decimal.Decimal) (decimal.Decimal, error) {
	if price.LessThanOrEqual(decimal.Zero) || price.GreaterThanOrEqual(one) {
		return decimal.Zero, fmt.Errorf("price must be in (0,1), got %s", price)
	}
	if p.LessThan(decimal.Zero) || p.GreaterThan(one) {
		return decimal.Zero, fmt.Errorf("probability must be in [0,1], got %s", p)
	}
	f := p.Sub(price).Div(one.Sub(price))
	if f.LessThan(decimal.Zero) {
		return decimal.Zero, nil
	}
	if f.GreaterThan(one) {
		return one, nil
	}
	return f, nil
}

// Calculate runs the full sizing: fraction, stake, shares, edge, EV and
// expected log growth.
func Calculate(in Input) (*Result, error) {
	full, err := Fraction(in.Probability, in.Price)
	if err != nil {
		return nil, err
	}
	if in.Bankroll.LessThan(decimal.Zero) {
		return nil, fmt.Errorf("bankroll must be non-negative, got %s", in.Bankroll)
	}

	mult := in.Multiplier
	if mult.IsZero() {
		mult = DefaultMultiplier
	}
	if mult.LessThan(decimal.Zero) || mult.GreaterThan(one) {
		return nil, fmt.Errorf("multiplier must be in (0,1], got %s", mult)
	}

	frac := full.Mul(mult)
	stake := in.Bankroll.Mul(frac)
	shares := decimal.Zero
	if !stake.IsZero() {
		shares = stake.Div(in.Price)
	}

	// EV at resolution: shares pay 1 each with probability p, stake is sunk.
	ev := shares.Mul(in.Probability).Sub(stake)

	res := &Result{
		FullFraction:  full,
		Fraction:      frac,
		Stake:         stake,
		Shares:        shares,
		Edge:          in.Probability.Sub(in.Price),
		ExpectedValue: ev,
		LogGrowth:     logGrowth(in.Probability, in.Price, frac),
	}
	return res, nil
}

// logGrowth computes E[log wealth] per bet: p*ln(1+f*b) + (1-p)*ln(1-f) with
// b the net odds (1-c)/c. Decimal has no logarithm so this stays float; the
// value is informational, not used for sizing.
func logGrowth(p, price, f decimal.Decimal) float64 {
	pf, _ := p.Float64()
	cf, _ := price.Float64()
	ff, _ := f.Float64()
	if ff <= 0 || ff >= 1 {
		if ff >= 1 {
			return math.Inf(-1)
		}
		return 0
	}
	b := (1 - cf) / cf
	return pf*math.Log(1+ff*b) + (1-pf)*math.Log(1-ff)
}
