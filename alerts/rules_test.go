package alerts

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"polyterm/store"
)

func TestEvaluateRule(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		value   float64
		current float64
		prev    float64
		hasPrev bool
		want    bool
	}{
		{"above hit", OpAbove, 0.5, 0.6, 0, false, true},
		{"above miss", OpAbove, 0.5, 0.5, 0, false, false},
		{"below hit", OpBelow, 0.5, 0.4, 0, false, true},
		{"below miss", OpBelow, 0.5, 0.5, 0, false, false},
		{"crosses_above fires on crossing", OpCrossesAbove, 0.5, 0.55, 0.45, true, true},
		{"crosses_above quiet without prev", OpCrossesAbove, 0.5, 0.55, 0, false, false},
		{"crosses_above quiet when already past", OpCrossesAbove, 0.5, 0.6, 0.55, true, false},
		{"crosses_below fires on crossing", OpCrossesBelow, 0.5, 0.45, 0.55, true, true},
		{"crosses_below quiet when already past", OpCrossesBelow, 0.5, 0.4, 0.45, true, false},
		{"unknown op", "between", 0.5, 0.6, 0, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := store.AlertRule{Metric: MetricPrice, Op: tt.op, Value: tt.value}
			assert.Equal(t, tt.want, EvaluateRule(rule, tt.current, tt.prev, tt.hasPrev))
		})
	}
}

func TestEvaluateConditionsAllMode(t *testing.T) {
	cond := &store.AlertConditions{
		MarketID: "m1",
		Rules: []store.AlertRule{
			{Metric: MetricPrice, Op: OpAbove, Value: 0.5},
			{Metric: MetricVolume24h, Op: OpAbove, Value: 10000},
		},
	}

	fired, reason := EvaluateConditions(cond, map[string]float64{
		MetricPrice:     0.62,
		MetricVolume24h: 50000,
	}, nil)
	assert.True(t, fired)
	assert.Contains(t, reason, "price above 0.5")
	assert.Contains(t, reason, "volume_24h above 10000")

	// one rule failing kills the whole thing in "all" mode
	fired, _ = EvaluateConditions(cond, map[string]float64{
		MetricPrice:     0.62,
		MetricVolume24h: 5000,
	}, nil)
	assert.False(t, fired)

	// a missing metric also fails "all" mode
	fired, _ = EvaluateConditions(cond, map[string]float64{
		MetricPrice: 0.62,
	}, nil)
	assert.False(t, fired)
}

func TestEvaluateConditionsAnyMode(t *testing.T) {
	cond := &store.AlertConditions{
		MarketID: "m1",
		Mode:     "any",
		Rules: []store.AlertRule{
			{Metric: MetricPrice, Op: OpAbove, Value: 0.9},
			{Metric: MetricSpread, Op: OpBelow, Value: 0.02},
		},
	}

	fired, reason := EvaluateConditions(cond, map[string]float64{
		MetricPrice:  0.7,
		MetricSpread: 0.01,
	}, nil)
	assert.True(t, fired)
	assert.Contains(t, reason, "spread below 0.02")
	assert.NotContains(t, reason, "price")

	// missing metrics are skipped, not fatal
	fired, _ = EvaluateConditions(cond, map[string]float64{
		MetricSpread: 0.01,
	}, nil)
	assert.True(t, fired)

	fired, _ = EvaluateConditions(cond, map[string]float64{
		MetricPrice: 0.7,
	}, nil)
	assert.False(t, fired)
}

func TestEvaluateConditionsEmptyRules(t *testing.T) {
	fired, _ := EvaluateConditions(&store.AlertConditions{MarketID: "m1"}, map[string]float64{MetricPrice: 1}, nil)
	assert.False(t, fired)
}
