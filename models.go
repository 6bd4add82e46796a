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
	"time"
)

// Reading is a single cumulative meter value
type Reading struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"` // Cumulative kWh
}

// Interval is the consumption between two adjacent readings of the same day
type Interval struct {
	Timestamp time.Time `json:"timestamp"`
	Delta     float64   `json:"delta"`    // kWh consumed since the previous reading
	GroupKey  string    `json:"groupKey"` // YYYY-MM-DD
}

// Usable reports whether the interval can take part in anomaly statistics.
// Negative deltas are meter glitches and are kept for display only.
func (i Interval) Usable() bool {
	return i.Delta >= 0
}

// ProductionRow is one column of the production workbook layout
type ProductionRow struct {
	Period     string  `json:"period"`
	Production float64 `json:"production"` // NaN when the cell was not numeric
	PowerIndex float64 `json:"powerIndex"` // NaN when the cell was not numeric
}

// RegressionSample pairs production volume with the energy consumed in the same period
type RegressionSample struct {
	Period            string  `json:"period"`
	ProductionVolume  float64 `json:"productionVolume"`
	ActualConsumption float64 `json:"actualConsumption"` // kWh
}

// RegressionFit holds an ordinary least squares fit of consumption against production
type RegressionFit struct {
	Intercept float64 `json:"intercept"` // Base load, kWh
	Slope     float64 `json:"slope"`     // kWh per unit of production
	RSquared  float64 `json:"rSquared"`
}

// Direction classifies which side of the expected value an anomaly falls on
type Direction string

const (
	DirectionNormal  Direction = "normal"
	DirectionExcess  Direction = "excess"  // Higher consumption than expected
	DirectionDeficit Direction = "deficit" // Lower consumption than expected
)

// AnomalyVerdict is the detector outcome for a single value
type AnomalyVerdict struct {
	IsAnomalous bool      `json:"isAnomalous"`
	Direction   Direction `json:"direction"`
}

// PointStatus is the display status of a reading in the selected day
type PointStatus string

const (
	StatusNormal    PointStatus = "normal"
	StatusAnomalous PointStatus = "anomalous"
	StatusNoRecord  PointStatus = "no_record" // First reading of the day or negative delta
)

// AnnotatedInterval is a usable interval with its verdict
type AnnotatedInterval struct {
	Interval
	Verdict AnomalyVerdict `json:"verdict"`
}

// SeriesPoint is one reading of the selected day as shown to the user
type SeriesPoint struct {
	Timestamp  time.Time   `json:"timestamp"`
	Cumulative float64     `json:"cumulative"`
	Delta      *float64    `json:"delta,omitempty"` // nil for the first reading of the day
	Status     PointStatus `json:"status"`
}

// ConsumptionSummary holds the statistics of the selected day
type ConsumptionSummary struct {
	Count        int     `json:"count"`
	Total        float64 `json:"total"` // kWh
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Mean         float64 `json:"mean"`
	Median       float64 `json:"median"`
	Deviation    float64 `json:"deviation"`
	AnomalyCount int     `json:"anomalyCount"`
	NoRecord     int     `json:"noRecord"`
}

// ConsumptionResult is the output of the consumption pipeline for one day
type ConsumptionResult struct {
	Date            string              `json:"date"`
	Threshold       float64             `json:"threshold"`
	AvailableDates  []string            `json:"availableDates"`
	RangeStart      time.Time           `json:"rangeStart"`
	RangeEnd        time.Time           `json:"rangeEnd"`
	DroppedReadings int                 `json:"droppedReadings"` // Discarded by CleanReadings
	Intervals       []AnnotatedInterval `json:"intervals"`
	Points          []SeriesPoint       `json:"points"`
	Summary         ConsumptionSummary  `json:"summary"`
}

// Anomalies returns the anomalous intervals sorted by time
func (r *ConsumptionResult) Anomalies() []AnnotatedInterval {
	var anomalies []AnnotatedInterval
	for _, interval := range r.Intervals {
		if interval.Verdict.IsAnomalous {
			anomalies = append(anomalies, interval)
		}
	}
	return anomalies
}

// AnnotatedSample is a regression sample with its prediction and verdict
type AnnotatedSample struct {
	RegressionSample
	Predicted       float64        `json:"predicted"` // kWh
	Residual        float64        `json:"residual"`  // Actual minus predicted
	ResidualPercent float64        `json:"residualPercent"`
	SavingsPercent  float64        `json:"savingsPercent"` // Positive when less energy was used than predicted
	EnergySaved     bool           `json:"energySaved"`
	Verdict         AnomalyVerdict `json:"verdict"`
}

// YieldPowerSummary aggregates the yield/power verdicts
type YieldPowerSummary struct {
	Count          int     `json:"count"`
	AnomalyCount   int     `json:"anomalyCount"`
	ExcessCount    int     `json:"excessCount"`
	DeficitCount   int     `json:"deficitCount"`
	SavingsCount   int     `json:"savingsCount"`
	MedianResidual float64 `json:"medianResidual"`
	Deviation      float64 `json:"deviation"`
}

// YieldPowerResult is the output of the yield/power pipeline
type YieldPowerResult struct {
	Threshold float64           `json:"threshold"`
	Fit       RegressionFit     `json:"fit"`
	Samples   []AnnotatedSample `json:"samples"`
	Summary   YieldPowerSummary `json:"summary"`
}

// AnalysisRun is a stored record of one pipeline invocation
type AnalysisRun struct {
	ID          string             `json:"id"`
	GeneratedAt time.Time          `json:"generatedAt"`
	Mode        string             `json:"mode"` // consumption or yield
	Source      string             `json:"source"`
	Sheet       string             `json:"sheet,omitempty"`
	DroppedRows int                `json:"droppedRows"`
	Consumption *ConsumptionResult `json:"consumption,omitempty"`
	YieldPower  *YieldPowerResult  `json:"yieldPower,omitempty"`
	// Charts (base64 encoded PNG images)
	Chart string `json:"chart,omitempty"`
}
