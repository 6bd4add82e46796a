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
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// spikeDay has tight deltas around 10 kWh, one 140 kWh spike and a final meter glitch
func spikeDay() []Reading {
	return readingsFromDeltas(1, 1000, 10, 11, 9, 10, 10, 12, 140, 10, -120)
}

func TestConsumptionPipelineFlagsSpike(t *testing.T) {
	readings := append(spikeDay(), readingsFromDeltas(2, 2000, 5, 5)...)
	pipeline := NewConsumptionPipeline(newTestLogger(), DefaultMinYear)

	result, err := pipeline.Run(readings, "2024-03-01", 3.0)
	require.NoError(t, err)

	assert.Equal(t, []string{"2024-03-01", "2024-03-02"}, result.AvailableDates)
	assert.Equal(t, at(1, 0, 0), result.RangeStart)
	require.Len(t, result.Intervals, 8)

	anomalies := result.Anomalies()
	require.Len(t, anomalies, 1)
	assert.Equal(t, 140.0, anomalies[0].Delta)
	assert.Equal(t, DirectionExcess, anomalies[0].Verdict.Direction)

	summary := result.Summary
	assert.Equal(t, 8, summary.Count)
	assert.Equal(t, 212.0, summary.Total)
	assert.Equal(t, 9.0, summary.Min)
	assert.Equal(t, 140.0, summary.Max)
	assert.Equal(t, 26.5, summary.Mean)
	assert.Equal(t, 10.0, summary.Median)
	assert.InDelta(t, 16.75, summary.Deviation, 1e-9)
	assert.Equal(t, 1, summary.AnomalyCount)
	assert.Equal(t, 2, summary.NoRecord)
}

func TestConsumptionPipelineKeepsNegativeDeltaForDisplay(t *testing.T) {
	pipeline := NewConsumptionPipeline(newTestLogger(), DefaultMinYear)

	result, err := pipeline.Run(spikeDay(), "", 3.0)
	require.NoError(t, err)

	require.Len(t, result.Points, 10)

	first := result.Points[0]
	assert.Equal(t, StatusNoRecord, first.Status)
	assert.Nil(t, first.Delta)

	last := result.Points[9]
	assert.Equal(t, StatusNoRecord, last.Status)
	require.NotNil(t, last.Delta)
	assert.Equal(t, -120.0, *last.Delta)

	assert.Equal(t, StatusAnomalous, result.Points[7].Status)
	assert.Equal(t, StatusNormal, result.Points[1].Status)
}

func TestConsumptionPipelineDefaultsToEarliestDate(t *testing.T) {
	readings := append(readingsFromDeltas(4, 10, 1), readingsFromDeltas(2, 10, 1)...)
	pipeline := NewConsumptionPipeline(newTestLogger(), DefaultMinYear)

	result, err := pipeline.Run(readings, "", 3.0)
	require.NoError(t, err)

	assert.Equal(t, "2024-03-02", result.Date)
}

func TestConsumptionPipelineSingleReadingDay(t *testing.T) {
	readings := append(readingsFromDeltas(1, 10, 1, 2), Reading{Timestamp: at(2, 6, 0), Value: 99})
	pipeline := NewConsumptionPipeline(newTestLogger(), DefaultMinYear)

	result, err := pipeline.Run(readings, "2024-03-02", 3.0)
	require.NoError(t, err)

	assert.Empty(t, result.Intervals)
	assert.Equal(t, ConsumptionSummary{NoRecord: 1}, result.Summary)
	require.Len(t, result.Points, 1)
}

func TestConsumptionPipelineErrors(t *testing.T) {
	pipeline := NewConsumptionPipeline(newTestLogger(), DefaultMinYear)

	t.Run("no readings", func(t *testing.T) {
		_, err := pipeline.Run(nil, "", 3.0)
		var missingErr *MissingDataError
		assert.True(t, errors.As(err, &missingErr))
	})

	t.Run("unknown date", func(t *testing.T) {
		_, err := pipeline.Run(spikeDay(), "2024-04-01", 3.0)
		var missingErr *MissingDataError
		assert.True(t, errors.As(err, &missingErr))
	})

	t.Run("malformed date", func(t *testing.T) {
		_, err := pipeline.Run(spikeDay(), "01/03/2024", 3.0)
		var validationErr *ValidationError
		assert.True(t, errors.As(err, &validationErr))
	})

	t.Run("bad threshold", func(t *testing.T) {
		_, err := pipeline.Run(spikeDay(), "", 0)
		var validationErr *ValidationError
		assert.True(t, errors.As(err, &validationErr))
	})
}

func yieldSamples() []RegressionSample {
	return BuildRegressionSamples([]ProductionRow{
		{Period: "2024-01", Production: 10, PowerIndex: 1},
		{Period: "2024-02", Production: 20, PowerIndex: 3},
		{Period: "2024-03", Production: 30, PowerIndex: 7},
		{Period: "2024-04", Production: 40, PowerIndex: 8},
	}, DefaultIndexMultiplier)
}

func TestConsumptionPipelineCleansInput(t *testing.T) {
	pipeline := NewConsumptionPipeline(newTestLogger(), DefaultMinYear)

	clean, err := pipeline.Run(spikeDay(), "", 3.0)
	require.NoError(t, err)

	noisy := append(spikeDay(),
		Reading{Timestamp: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC), Value: 5},
		Reading{Timestamp: at(1, 0, 45), Value: 9999},
		Reading{Timestamp: at(1, 5, 0), Value: math.NaN()},
		Reading{Timestamp: at(1, 6, 0), Value: math.Inf(1)},
	)
	result, err := pipeline.Run(noisy, "", 3.0)
	require.NoError(t, err)

	assert.Equal(t, 4, result.DroppedReadings)
	assert.Equal(t, 0, clean.DroppedReadings)
	assert.Equal(t, []string{"2024-03-01"}, result.AvailableDates)
	assert.Equal(t, clean.Summary, result.Summary)
	assert.Equal(t, clean.Points, result.Points)
	assert.Equal(t, at(1, 0, 0), result.RangeStart)
}

func TestYieldPowerPipeline(t *testing.T) {
	pipeline := NewYieldPowerPipeline(newTestLogger())

	result, err := pipeline.Run(yieldSamples(), 3.0)
	require.NoError(t, err)

	assert.InDelta(t, -400.0, result.Fit.Slope, 1e-6)
	assert.InDelta(t, 30666.6667, result.Fit.Intercept, 1e-3)
	require.Len(t, result.Samples, 3)

	// The March residual sits furthest from the median residual
	march := result.Samples[1]
	assert.InDelta(t, 13333.3333, march.Residual, 1e-3)
	assert.True(t, march.Verdict.IsAnomalous)
	assert.Equal(t, DirectionExcess, march.Verdict.Direction)
	assert.False(t, march.EnergySaved)

	feb := result.Samples[0]
	assert.InDelta(t, 22666.6667, feb.Predicted, 1e-3)
	assert.InDelta(t, -6666.6667, feb.Residual, 1e-3)
	assert.True(t, feb.EnergySaved)
	assert.InDelta(t, -29.4118, feb.ResidualPercent, 1e-3)
	assert.InDelta(t, 29.4118, feb.SavingsPercent, 1e-3)

	assert.Equal(t, 3, result.Summary.Count)
	assert.Equal(t, 2, result.Summary.SavingsCount)
	assert.GreaterOrEqual(t, result.Summary.AnomalyCount, 1)
	assert.GreaterOrEqual(t, result.Summary.ExcessCount, 1)
}

func TestYieldPowerPipelineSavingsSign(t *testing.T) {
	pipeline := NewYieldPowerPipeline(newTestLogger())

	result, err := pipeline.Run(yieldSamples(), 3.0)
	require.NoError(t, err)

	for _, sample := range result.Samples {
		if sample.Residual < 0 {
			assert.Greater(t, sample.SavingsPercent, 0.0)
			assert.True(t, sample.EnergySaved)
		} else {
			assert.LessOrEqual(t, sample.SavingsPercent, 0.0)
			assert.False(t, sample.EnergySaved)
		}
	}
}

func TestYieldPowerPipelineNormalSamples(t *testing.T) {
	samples := []RegressionSample{
		{Period: "a", ProductionVolume: 1, ActualConsumption: 3.1},
		{Period: "b", ProductionVolume: 2, ActualConsumption: 4.9},
		{Period: "c", ProductionVolume: 3, ActualConsumption: 7.2},
		{Period: "d", ProductionVolume: 4, ActualConsumption: 8.8},
		{Period: "e", ProductionVolume: 5, ActualConsumption: 11.0},
	}
	pipeline := NewYieldPowerPipeline(newTestLogger())

	result, err := pipeline.Run(samples, 1e6)
	require.NoError(t, err)

	assert.Zero(t, result.Summary.AnomalyCount)
	for _, sample := range result.Samples {
		assert.Equal(t, DirectionNormal, sample.Verdict.Direction)
	}
}

func TestYieldPowerPipelineInsufficientSamples(t *testing.T) {
	pipeline := NewYieldPowerPipeline(newTestLogger())

	_, err := pipeline.Run(yieldSamples()[:1], 3.0)

	var samplesErr *InsufficientSamplesError
	assert.True(t, errors.As(err, &samplesErr))
}
