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

	"gonum.org/v1/gonum/stat"
)

// DefaultIndexMultiplier converts one power index unit into kWh
const DefaultIndexMultiplier = 8000.0

// minRegressionSamples is the fewest samples an OLS line can be fitted through
const minRegressionSamples = 2

// BuildRegressionSamples turns production rows into regression samples. Each
// period's consumption is the change in power index since the previous row,
// scaled by multiplier. The first row has no predecessor, and rows with a
// missing production or consumption value are skipped.
func BuildRegressionSamples(rows []ProductionRow, multiplier float64) []RegressionSample {
	samples := make([]RegressionSample, 0, len(rows))

	for i := 1; i < len(rows); i++ {
		consumption := (rows[i].PowerIndex - rows[i-1].PowerIndex) * multiplier
		if math.IsNaN(rows[i].Production) || math.IsNaN(consumption) {
			continue
		}
		samples = append(samples, RegressionSample{
			Period:            rows[i].Period,
			ProductionVolume:  rows[i].Production,
			ActualConsumption: consumption,
		})
	}

	return samples
}

// FitRegression fits actual consumption = intercept + slope * production volume
func FitRegression(samples []RegressionSample) (RegressionFit, error) {
	if len(samples) < minRegressionSamples {
		return RegressionFit{}, &InsufficientSamplesError{
			Required: minRegressionSamples,
			Got:      len(samples),
		}
	}

	x := make([]float64, len(samples))
	y := make([]float64, len(samples))
	for i, s := range samples {
		x[i] = s.ProductionVolume
		y[i] = s.ActualConsumption
	}

	if stat.Variance(x, nil) == 0 {
		return RegressionFit{}, &InsufficientSamplesError{
			Required: minRegressionSamples,
			Got:      len(samples),
			Message:  "production volume has zero variance, slope is undefined",
		}
	}

	intercept, slope := stat.LinearRegression(x, y, nil, false)
	fit := RegressionFit{
		Intercept: intercept,
		Slope:     slope,
		RSquared:  1,
	}

	// R² is undefined for a constant response; an exact fit is reported as 1
	if stat.Variance(y, nil) > 0 {
		fit.RSquared = stat.RSquared(x, y, nil, intercept, slope)
	}

	return fit, nil
}

// Predict returns the expected consumption for a production volume
func Predict(fit RegressionFit, productionVolume float64) float64 {
	return fit.Intercept + fit.Slope*productionVolume
}
