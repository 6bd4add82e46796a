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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitRegressionPerfectLine(t *testing.T) {
	var samples []RegressionSample
	for x := 1.0; x <= 5; x++ {
		samples = append(samples, RegressionSample{ProductionVolume: x, ActualConsumption: 2*x + 1})
	}

	fit, err := FitRegression(samples)
	require.NoError(t, err)

	assert.InDelta(t, 2.0, fit.Slope, 1e-9)
	assert.InDelta(t, 1.0, fit.Intercept, 1e-9)
	assert.InDelta(t, 1.0, fit.RSquared, 1e-9)
	assert.InDelta(t, 21.0, Predict(fit, 10), 1e-9)
}

func TestFitRegressionInsufficientSamples(t *testing.T) {
	for _, samples := range [][]RegressionSample{
		nil,
		{{ProductionVolume: 1, ActualConsumption: 2}},
	} {
		_, err := FitRegression(samples)

		var samplesErr *InsufficientSamplesError
		require.True(t, errors.As(err, &samplesErr))
		assert.Equal(t, 2, samplesErr.Required)
		assert.Equal(t, len(samples), samplesErr.Got)
	}
}

func TestFitRegressionConstantProduction(t *testing.T) {
	samples := []RegressionSample{
		{ProductionVolume: 10, ActualConsumption: 100},
		{ProductionVolume: 10, ActualConsumption: 300},
	}

	_, err := FitRegression(samples)

	var samplesErr *InsufficientSamplesError
	require.True(t, errors.As(err, &samplesErr))
	assert.Equal(t, 2, samplesErr.Got)
	assert.Contains(t, err.Error(), "zero variance")
	assert.NotContains(t, err.Error(), "need")
}

func TestFitRegressionConstantConsumption(t *testing.T) {
	samples := []RegressionSample{
		{ProductionVolume: 1, ActualConsumption: 50},
		{ProductionVolume: 2, ActualConsumption: 50},
		{ProductionVolume: 3, ActualConsumption: 50},
	}

	fit, err := FitRegression(samples)
	require.NoError(t, err)

	assert.InDelta(t, 0.0, fit.Slope, 1e-9)
	assert.InDelta(t, 50.0, fit.Intercept, 1e-9)
	assert.Equal(t, 1.0, fit.RSquared)
}

func TestBuildRegressionSamples(t *testing.T) {
	rows := []ProductionRow{
		{Period: "2024-01", Production: 10, PowerIndex: 1},
		{Period: "2024-02", Production: 20, PowerIndex: 3},
		{Period: "2024-03", Production: 30, PowerIndex: 7},
		{Period: "2024-04", Production: 40, PowerIndex: 8},
	}

	samples := BuildRegressionSamples(rows, DefaultIndexMultiplier)

	assert.Equal(t, []RegressionSample{
		{Period: "2024-02", ProductionVolume: 20, ActualConsumption: 16000},
		{Period: "2024-03", ProductionVolume: 30, ActualConsumption: 32000},
		{Period: "2024-04", ProductionVolume: 40, ActualConsumption: 8000},
	}, samples)
}

func TestBuildRegressionSamplesSkipsMissingValues(t *testing.T) {
	rows := []ProductionRow{
		{Period: "a", Production: 10, PowerIndex: 1},
		{Period: "b", Production: math.NaN(), PowerIndex: 2},
		{Period: "c", Production: 30, PowerIndex: math.NaN()},
		{Period: "d", Production: 40, PowerIndex: 5},
		{Period: "e", Production: 50, PowerIndex: 6},
	}

	samples := BuildRegressionSamples(rows, 1)

	// b lacks production, c lacks an index, and d has no usable predecessor
	require.Len(t, samples, 1)
	assert.Equal(t, "e", samples[0].Period)
	assert.Equal(t, 1.0, samples[0].ActualConsumption)
}
