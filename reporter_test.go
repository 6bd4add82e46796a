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
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func consumptionRun(t *testing.T) *AnalysisRun {
	t.Helper()

	result, err := NewConsumptionPipeline(newTestLogger(), DefaultMinYear).Run(spikeDay(), "", 3)
	require.NoError(t, err)

	run := NewAnalysisRun(ModeConsumption, "meters.xlsx")
	run.Sheet = "Sheet1"
	run.Consumption = result
	return run
}

func yieldRun(t *testing.T) *AnalysisRun {
	t.Helper()

	result, err := NewYieldPowerPipeline(newTestLogger()).Run(yieldSamples(), 3)
	require.NoError(t, err)

	run := NewAnalysisRun(ModeYield, "production.xlsx")
	run.YieldPower = result
	return run
}

func TestReporterConsumption(t *testing.T) {
	run := consumptionRun(t)

	var buf bytes.Buffer
	NewReporter(newTestLogger()).WriteReport(&buf, run)
	report := buf.String()

	assert.Contains(t, report, "# Meter Anomaly Report")
	assert.Contains(t, report, "(sheet Sheet1)")
	assert.Contains(t, report, run.ID)
	assert.Contains(t, report, "## 📆 2024-03-01")
	assert.Contains(t, report, "| Total consumption | 212.00 kWh |")
	assert.Contains(t, report, "| Readings without a record | 2 |")
	assert.Contains(t, report, "1. 2024-03-01 01:45:00 (consumption: 140.00 kWh, excess)")
	assert.NotContains(t, report, "Prediction Model")
}

func TestReporterYieldPower(t *testing.T) {
	var buf bytes.Buffer
	NewReporter(newTestLogger()).WriteReport(&buf, yieldRun(t))
	report := buf.String()

	assert.Contains(t, report, "## 📌 Prediction Model")
	assert.Contains(t, report, "predicted kWh = 30,667.00 + -400.00 × production")
	assert.Contains(t, report, "| 2024-03 | 30.00 | 32,000.00 kWh |")
	assert.NotContains(t, report, "Anomalous Intervals")
}

func TestGenerateReportToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.md")

	require.NoError(t, NewReporter(newTestLogger()).GenerateReport(consumptionRun(t), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Generated by meterscope")
}

func TestHTMLReporter(t *testing.T) {
	run := consumptionRun(t)
	run.Source = "<meters>.xlsx"
	run.Chart = "aGVsbG8="

	var buf bytes.Buffer
	NewHTMLReporter(newTestLogger()).WriteHTMLReport(&buf, run)
	page := buf.String()

	assert.Contains(t, page, "<!DOCTYPE html>")
	assert.Contains(t, page, "&lt;meters&gt;.xlsx")
	assert.Contains(t, page, `class="status-anomalous"`)
	assert.Contains(t, page, `class="status-no_record"`)
	assert.Contains(t, page, "data:image/png;base64,aGVsbG8=")
	assert.Contains(t, page, "</html>")

	buf.Reset()
	NewHTMLReporter(newTestLogger()).WriteHTMLReport(&buf, yieldRun(t))
	assert.Contains(t, buf.String(), "Prediction model")
	assert.NotContains(t, buf.String(), "data:image/png")
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "1,234.50", FormatNumber(1234.5))
	assert.Equal(t, "0.00", FormatNumber(0))
	assert.Equal(t, "-6,666.67", FormatNumber(-6666.666))
	assert.Equal(t, "29.4%", FormatPercentage(29.41))
}
