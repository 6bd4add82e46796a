// Copyright 2025 Matthew Gall <me@matthewgall.dev>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// DeviationAggregation selects how absolute deviations from the median are combined
// into the spread statistic. The two choices differ in sensitivity and are not
// interchangeable.
type DeviationAggregation int

const (
	// MeanAbsoluteDeviation averages |v - median|; used for cumulative meter deltas
	MeanAbsoluteDeviation DeviationAggregation = iota
	// MedianAbsoluteDeviation takes the median of |v - median|; used for regression residuals
	MedianAbsoluteDeviation
)

func (a DeviationAggregation) String() string {
	switch a {
	case MeanAbsoluteDeviation:
		return "mean"
	case MedianAbsoluteDeviation:
		return "median"
	default:
		return fmt.Sprintf("DeviationAggregation(%d)", int(a))
	}
}

// MADDetector flags values that sit too far from the median of their series
type MADDetector struct {
	aggregation DeviationAggregation
	threshold   float64
}

// MADResult holds the statistics and per-value verdicts of a detection run
type MADResult struct {
	Median    float64
	Deviation float64
	Verdicts  []AnomalyVerdict
}

// NewMADDetector creates a detector; threshold is the multiple of the deviation
// a value may stray from the median before it is anomalous
func NewMADDetector(aggregation DeviationAggregation, threshold float64) (*MADDetector, error) {
	if !(threshold > 0) {
		return nil, &ValidationError{
			Field:   "threshold",
			Value:   fmt.Sprintf("%g", threshold),
			Message: "must be greater than zero",
		}
	}
	if aggregation != MeanAbsoluteDeviation && aggregation != MedianAbsoluteDeviation {
		return nil, &ValidationError{
			Field:   "aggregation",
			Value:   aggregation.String(),
			Message: "unknown deviation aggregation",
		}
	}

	return &MADDetector{
		aggregation: aggregation,
		threshold:   threshold,
	}, nil
}

// Detect classifies every value. An empty input yields an empty result.
// With a zero deviation every value that differs from the median is anomalous.
func (d *MADDetector) Detect(values []float64) MADResult {
	result := MADResult{
		Verdicts: make([]AnomalyVerdict, len(values)),
	}
	if len(values) == 0 {
		return result
	}

	result.Median = Median(values)

	absDeviations := make([]float64, len(values))
	for i, v := range values {
		absDeviations[i] = math.Abs(v - result.Median)
	}

	switch d.aggregation {
	case MedianAbsoluteDeviation:
		result.Deviation = Median(absDeviations)
	default:
		result.Deviation = stat.Mean(absDeviations, nil)
	}

	limit := d.threshold * result.Deviation
	for i, v := range values {
		if absDeviations[i] > limit {
			result.Verdicts[i] = AnomalyVerdict{IsAnomalous: true, Direction: directionOf(v - result.Median)}
		} else {
			result.Verdicts[i] = AnomalyVerdict{Direction: DirectionNormal}
		}
	}

	return result
}

// Median returns the median of values, averaging the two middle values for even
// lengths. The input is not modified. Median of an empty slice is 0.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// directionOf maps the sign of a deviation to a direction
func directionOf(deviation float64) Direction {
	switch {
	case deviation > 0:
		return DirectionExcess
	case deviation < 0:
		return DirectionDeficit
	default:
		return DirectionNormal
	}
}
