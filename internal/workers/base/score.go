package base

import (
	"math"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// WeightedScore returns sum(m*w)/sum(w) over the metrics that have a weight,
// clamped to [0,100]. A zero weight sum yields 0.
func WeightedScore(metrics, weights map[string]float64) float64 {
	var total, weightSum float64
	for name, weight := range weights {
		value, ok := metrics[name]
		if !ok {
			continue
		}
		total += value * weight
		weightSum += weight
	}
	if weightSum == 0 {
		return 0
	}
	return Clamp(total / weightSum)
}

// Clamp bounds v to [0,100]. NaN maps to 0.
func Clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(100, v))
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ToFindings converts a typed metrics struct into the generic findings map
// stored with the output. Field names come from mapstructure tags.
func ToFindings(v interface{}) map[string]interface{} {
	findings := map[string]interface{}{}
	if err := mapstructure.Decode(v, &findings); err != nil {
		return map[string]interface{}{}
	}
	return findings
}

// CountWords splits on whitespace like strings.Fields.
func CountWords(text string) int {
	return len(strings.Fields(text))
}
