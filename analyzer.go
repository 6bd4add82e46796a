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
	"math"
	"slices"
	"time"
)

// ConsumptionPipeline finds unusual intervals in cumulative meter readings
type ConsumptionPipeline struct {
	minYear int
	logger  *Logger
}

// NewConsumptionPipeline creates a new consumption pipeline. Readings dated
// before minYear are discarded as parse noise.
func NewConsumptionPipeline(logger *Logger, minYear int) *ConsumptionPipeline {
	return &ConsumptionPipeline{
		minYear: minYear,
		logger:  logger.WithComponent("consumption"),
	}
}

// Run analyses one calendar date of readings. An empty date selects the earliest
// date present. Readings are cleaned first (see CleanReadings) and the number
// discarded is reported in the result.
func (p *ConsumptionPipeline) Run(readings []Reading, date string, threshold float64) (*ConsumptionResult, error) {
	detector, err := NewMADDetector(MeanAbsoluteDeviation, threshold)
	if err != nil {
		return nil, err
	}

	readings, dropped := CleanReadings(readings, p.minYear)
	p.logger.LogRowsDropped("invalid_reading", dropped)

	if len(readings) == 0 {
		return nil, &MissingDataError{
			Field:   "timestamp",
			Message: "no readings with a valid timestamp and numeric value were found",
		}
	}

	sorted := SortReadings(readings)
	dates := GroupDates(sorted)

	if date == "" {
		date = dates[0]
	} else if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, &ValidationError{
			Field:   "date",
			Value:   date,
			Message: "must be formatted as YYYY-MM-DD",
		}
	}
	if !slices.Contains(dates, date) {
		return nil, &MissingDataError{
			Field:   "date",
			Message: "no readings on " + date,
		}
	}

	result := &ConsumptionResult{
		Date:            date,
		Threshold:       threshold,
		AvailableDates:  dates,
		RangeStart:      sorted[0].Timestamp,
		RangeEnd:        sorted[len(sorted)-1].Timestamp,
		DroppedReadings: dropped,
	}

	p.logger.LogAnalysisStage("reconstruct")
	var usable []Interval
	negatives := 0
	for _, interval := range ReconstructSeries(sorted) {
		if interval.GroupKey != date {
			continue
		}
		if !interval.Usable() {
			negatives++
			continue
		}
		usable = append(usable, interval)
	}
	p.logger.LogRowsDropped("negative_delta", negatives)

	values := make([]float64, len(usable))
	for i, interval := range usable {
		values[i] = interval.Delta
	}

	detection := detector.Detect(values)
	p.logger.LogAnalysisStage("detect")

	result.Intervals = make([]AnnotatedInterval, len(usable))
	statuses := make(map[time.Time]PointStatus, len(usable))
	for i, interval := range usable {
		verdict := detection.Verdicts[i]
		result.Intervals[i] = AnnotatedInterval{Interval: interval, Verdict: verdict}

		status := StatusNormal
		if verdict.IsAnomalous {
			status = StatusAnomalous
			p.logger.LogAnomalyDetected(interval.Timestamp.Format("2006-01-02 15:04:05"), verdict.Direction, interval.Delta)
		}
		statuses[interval.Timestamp] = status
	}

	result.Points = buildSeriesPoints(sorted, date, statuses)
	result.Summary = summarizeConsumption(values, detection)
	for _, point := range result.Points {
		if point.Status == StatusNoRecord {
			result.Summary.NoRecord++
		}
	}

	p.logger.Info("Consumption analysis completed",
		"date", date,
		"intervals", result.Summary.Count,
		"anomalies", result.Summary.AnomalyCount,
	)

	return result, nil
}

// buildSeriesPoints lists every reading of the day for display. Readings without
// a usable interval are marked as having no record.
func buildSeriesPoints(sorted []Reading, date string, statuses map[time.Time]PointStatus) []SeriesPoint {
	var points []SeriesPoint
	var previous *Reading

	for i := range sorted {
		r := sorted[i]
		if GroupKey(r.Timestamp) != date {
			continue
		}

		point := SeriesPoint{
			Timestamp:  r.Timestamp,
			Cumulative: r.Value,
			Status:     StatusNoRecord,
		}
		if previous != nil {
			delta := r.Value - previous.Value
			point.Delta = &delta
		}
		if status, ok := statuses[r.Timestamp]; ok {
			point.Status = status
		}

		points = append(points, point)
		previous = &sorted[i]
	}

	return points
}

// summarizeConsumption computes the day statistics; an empty sample yields zeros
func summarizeConsumption(values []float64, detection MADResult) ConsumptionSummary {
	summary := ConsumptionSummary{
		Count:     len(values),
		Median:    detection.Median,
		Deviation: detection.Deviation,
	}
	if len(values) == 0 {
		return summary
	}

	summary.Min = math.Inf(1)
	summary.Max = math.Inf(-1)
	for _, v := range values {
		summary.Total += v
		summary.Min = math.Min(summary.Min, v)
		summary.Max = math.Max(summary.Max, v)
	}
	summary.Mean = summary.Total / float64(len(values))

	for _, verdict := range detection.Verdicts {
		if verdict.IsAnomalous {
			summary.AnomalyCount++
		}
	}

	return summary
}

// YieldPowerPipeline compares consumption against what production volume predicts
type YieldPowerPipeline struct {
	logger *Logger
}

// NewYieldPowerPipeline creates a new yield/power pipeline
func NewYieldPowerPipeline(logger *Logger) *YieldPowerPipeline {
	return &YieldPowerPipeline{
		logger: logger.WithComponent("yield_power"),
	}
}

// Run fits consumption against production and flags periods whose residual is
// far from the median residual
func (p *YieldPowerPipeline) Run(samples []RegressionSample, threshold float64) (*YieldPowerResult, error) {
	detector, err := NewMADDetector(MedianAbsoluteDeviation, threshold)
	if err != nil {
		return nil, err
	}

	fit, err := FitRegression(samples)
	if err != nil {
		return nil, err
	}
	p.logger.LogAnalysisStage("regression")
	p.logger.Debug("Regression fitted",
		"intercept", fit.Intercept,
		"slope", fit.Slope,
		"r_squared", fit.RSquared,
	)

	result := &YieldPowerResult{
		Threshold: threshold,
		Fit:       fit,
		Samples:   make([]AnnotatedSample, len(samples)),
	}

	residuals := make([]float64, len(samples))
	for i, s := range samples {
		predicted := Predict(fit, s.ProductionVolume)
		residuals[i] = s.ActualConsumption - predicted

		annotated := AnnotatedSample{
			RegressionSample: s,
			Predicted:        predicted,
			Residual:         residuals[i],
			EnergySaved:      residuals[i] < 0,
		}
		if predicted != 0 {
			annotated.ResidualPercent = residuals[i] / predicted * 100
			annotated.SavingsPercent = -annotated.ResidualPercent
		}
		result.Samples[i] = annotated
	}

	detection := detector.Detect(residuals)
	p.logger.LogAnalysisStage("detect")

	result.Summary = YieldPowerSummary{
		Count:          len(samples),
		MedianResidual: detection.Median,
		Deviation:      detection.Deviation,
	}

	for i := range result.Samples {
		sample := &result.Samples[i]
		sample.Verdict = AnomalyVerdict{Direction: DirectionNormal}
		if detection.Verdicts[i].IsAnomalous {
			// Direction follows the sign of the residual itself, not its offset from the median
			sample.Verdict = AnomalyVerdict{IsAnomalous: true, Direction: directionOf(sample.Residual)}
			result.Summary.AnomalyCount++
			switch sample.Verdict.Direction {
			case DirectionExcess:
				result.Summary.ExcessCount++
			case DirectionDeficit:
				result.Summary.DeficitCount++
			}
			p.logger.LogAnomalyDetected(sample.Period, sample.Verdict.Direction, sample.Residual)
		}
		if sample.EnergySaved {
			result.Summary.SavingsCount++
		}
	}

	p.logger.Info("Yield/power analysis completed",
		"samples", result.Summary.Count,
		"anomalies", result.Summary.AnomalyCount,
		"savings", result.Summary.SavingsCount,
		"r_squared", fit.RSquared,
	)

	return result, nil
}
