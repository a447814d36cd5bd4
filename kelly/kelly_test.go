package kelly

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestFraction(t *testing.T) {
	tests := []struct {
		name    string
		p       string
		price   string
		want    string
		wantErr bool
	}{
		{name: "positive edge", p: "0.6", price: "0.5", want: "0.2"},
		{name: "no edge", p: "0.5", price: "0.5", want: "0"},
		{name: "negative edge clamps to zero", p: "0.4", price: "0.5", want: "0"},
		{name: "certainty", p: "1", price: "0.5", want: "1"},
		{name: "cheap longshot", p: "0.1", price: "0.02", want: "0.0816326530612245"},
		{name: "price zero rejected", p: "0.5", price: "0", wantErr: true},
		{name: "price one rejected", p: "0.5", price: "1", wantErr: true},
		{name: "price above one rejected", p: "0.5", price: "1.2", wantErr: true},
		{name: "probability negative rejected", p: "-0.1", price: "0.5", wantErr: true},
		{name: "probability above one rejected", p: "1.1", price: "0.5", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Fraction(d(tt.p), d(tt.price))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(d(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestCalculateHalfKellyDefault(t *testing.T) {
	res, err := Calculate(Input{
		Probability: d("0.6"),
		Price:       d("0.5"),
		Bankroll:    d("1000"),
	})
	require.NoError(t, err)

	assert.True(t, res.FullFraction.Equal(d("0.2")))
	assert.True(t, res.Fraction.Equal(d("0.1"))) // half-Kelly by default
	assert.True(t, res.Stake.Equal(d("100")))
	assert.True(t, res.Shares.Equal(d("200")))
	assert.True(t, res.Edge.Equal(d("0.1")))
	// EV = 200 shares * 0.6 - 100 staked = 20
	assert.True(t, res.ExpectedValue.Equal(d("20")), "ev %s", res.ExpectedValue)
	assert.Greater(t, res.LogGrowth, 0.0)
}

func TestCalculateExplicitMultiplier(t *testing.T) {
	res, err := Calculate(Input{
		Probability: d("0.6"),
		Price:       d("0.5"),
		Bankroll:    d("1000"),
		Multiplier:  d("0.25"),
	})
	require.NoError(t, err)
	assert.True(t, res.Fraction.Equal(d("0.05")))
	assert.True(t, res.Stake.Equal(d("50")))
}

func TestCalculateNoEdgeZeroStake(t *testing.T) {
	res, err := Calculate(Input{
		Probability: d("0.4"),
		Price:       d("0.5"),
		Bankroll:    d("1000"),
	})
	require.NoError(t, err)
	assert.True(t, res.Stake.IsZero())
	assert.True(t, res.Shares.IsZero())
	assert.Equal(t, 0.0, res.LogGrowth)
}

func TestCalculateRejectsBadInputs(t *testing.T) {
	_, err := Calculate(Input{Probability: d("0.6"), Price: d("0.5"), Bankroll: d("-1")})
	assert.Error(t, err)

	_, err = Calculate(Input{Probability: d("0.6"), Price: d("0.5"), Bankroll: d("100"), Multiplier: d("1.5")})
	assert.Error(t, err)
}
