// Package alerts evaluates user price/volume alerts against live market data
// and runs anomaly detection over book snapshots.
package alerts

import (
	"fmt"
	"strings"

	"polyterm/store"
)

// Metric names an alert rule can reference
const (
	MetricPrice     = "price"
	MetricVolume24h = "volume_24h"
	MetricSpread    = "spread"
	MetricLiquidity = "liquidity"
	MetricHeatScore = "heat_score"
)

// Operators
const (
	OpAbove        = "above"
	OpBelow        = "below"
	OpCrossesAbove = "crosses_above"
	OpCrossesBelow = "crosses_below"
)

// EvaluateRule checks one rule against the current metric value. Crossing
// operators additionally need the previous value; they fire only on the tick
// where the threshold is actually crossed, so an alert that starts already
// past the line stays quiet until the value dips back and crosses again.
func EvaluateRule(rule store.AlertRule, current float64, prev float64, hasPrev bool) bool {
	switch rule.Op {
	case OpAbove:
		return current > rule.Value
	case OpBelow:
		return current < rule.Value
	case OpCrossesAbove:
		return hasPrev && prev <= rule.Value && current > rule.Value
	case OpCrossesBelow:
		return hasPrev && prev >= rule.Value && current < rule.Value
	default:
		return false
	}
}

// EvaluateConditions runs the whole condition tree. metrics holds the current
// values keyed by metric name; prev the previous tick's values for the same
// alert. Returns whether it fired and a human-readable reason.
func EvaluateConditions(cond *store.AlertConditions, metrics map[string]float64, prev map[string]float64) (bool, string) {
	if len(cond.Rules) == 0 {
		return false, ""
	}
	anyMode := cond.Mode == "any"

	var matched []string
	for _, rule := range cond.Rules {
		current, ok := metrics[rule.Metric]
		if !ok {
			if anyMode {
				continue
			}
			return false, ""
		}
		prevVal, hasPrev := prev[rule.Metric]
		hit := EvaluateRule(rule, current, prevVal, hasPrev)
		if hit {
			matched = append(matched, fmt.Sprintf("%s %s %g (now %g)", rule.Metric, rule.Op, rule.Value, current))
		} else if !anyMode {
			return false, ""
		}
	}
	if len(matched) == 0 {
		return false, ""
	}
	return true, strings.Join(matched, "; ")
}
