// Copyright 2025 Matthew Gall <me@matthewgall.dev>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"encoding/base64"
	"fmt"

	charts "github.com/vicanso/go-charts/v2"
)

// ChartGenerator handles chart generation
type ChartGenerator struct {
	theme string
}

// NewChartGenerator creates a new chart generator
func NewChartGenerator() *ChartGenerator {
	return &ChartGenerator{
		theme: "dark", // Match our HTML report dark theme
	}
}

// GenerateConsumptionChart plots the usable intervals of the selected day
// against the anomaly limit
func (cg *ChartGenerator) GenerateConsumptionChart(result *ConsumptionResult) (string, error) {
	if len(result.Intervals) == 0 {
		return "", fmt.Errorf("no usable intervals on %s", result.Date)
	}

	limit := result.Summary.Median + result.Threshold*result.Summary.Deviation

	var labels []string
	var deltas []float64
	var limits []float64
	for _, interval := range result.Intervals {
		labels = append(labels, interval.Timestamp.Format("15:04"))
		deltas = append(deltas, interval.Delta)
		limits = append(limits, limit)
	}

	return cg.render(
		fmt.Sprintf("Consumption on %s", result.Date),
		labels,
		[][]float64{deltas, limits},
		[]string{"Consumption (kWh)", "Anomaly limit (kWh)"},
	)
}

// GenerateYieldPowerChart plots actual against predicted consumption per period
func (cg *ChartGenerator) GenerateYieldPowerChart(result *YieldPowerResult) (string, error) {
	if len(result.Samples) == 0 {
		return "", fmt.Errorf("no samples available")
	}

	var labels []string
	var actual []float64
	var predicted []float64
	for _, sample := range result.Samples {
		labels = append(labels, sample.Period)
		actual = append(actual, sample.ActualConsumption)
		predicted = append(predicted, sample.Predicted)
	}

	return cg.render(
		"Consumption vs Production",
		labels,
		[][]float64{actual, predicted},
		[]string{"Actual (kWh)", "Predicted (kWh)"},
	)
}

// render draws a line chart and returns it as base64 PNG for embedding in HTML
func (cg *ChartGenerator) render(title string, labels []string, values [][]float64, legend []string) (string, error) {
	p, err := charts.LineRender(
		values,
		charts.TitleTextOptionFunc(title),
		charts.XAxisDataOptionFunc(labels),
		charts.LegendLabelsOptionFunc(legend, charts.PositionRight),
		charts.ThemeOptionFunc(cg.getTheme()),
		charts.WidthOptionFunc(1200),
		charts.HeightOptionFunc(400),
		charts.PaddingOptionFunc(charts.Box{
			Top:    20,
			Right:  20,
			Bottom: 20,
			Left:   20,
		}),
	)
	if err != nil {
		return "", fmt.Errorf("failed to render chart: %w", err)
	}

	buf, err := p.Bytes()
	if err != nil {
		return "", fmt.Errorf("failed to generate chart bytes: %w", err)
	}

	return base64.StdEncoding.EncodeToString(buf), nil
}

// getTheme returns the chart theme name
func (cg *ChartGenerator) getTheme() string {
	return cg.theme
}
