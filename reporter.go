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
	"io"
	"math"
	"os"
	"sort"

	"github.com/dustin/go-humanize"
)

// Reporter generates markdown reports from analysis runs
type Reporter struct {
	logger *Logger
}

// NewReporter creates a new report generator
func NewReporter(logger *Logger) *Reporter {
	return &Reporter{
		logger: logger,
	}
}

// GenerateReport writes a markdown report to outputPath, or stdout when empty
func (r *Reporter) GenerateReport(run *AnalysisRun, outputPath string) error {
	r.logger.Info("Generating report")

	var writer io.Writer
	if outputPath == "" {
		writer = os.Stdout
	} else {
		file, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("failed to create report file: %w", err)
		}
		defer file.Close()
		writer = file
	}

	r.WriteReport(writer, run)

	if outputPath != "" {
		r.logger.Info("Report saved", "path", outputPath)
	}

	return nil
}

// WriteReport writes the markdown report for a run
func (r *Reporter) WriteReport(w io.Writer, run *AnalysisRun) {
	r.writeHeader(w, run)
	if run.Consumption != nil {
		r.writeConsumptionSummary(w, run.Consumption)
		r.writeConsumptionAnomalies(w, run.Consumption)
	}
	if run.YieldPower != nil {
		r.writeYieldPowerModel(w, run.YieldPower)
		r.writeYieldPowerSamples(w, run.YieldPower)
	}
	r.writeFooter(w)
}

// writeHeader writes the report header
func (r *Reporter) writeHeader(w io.Writer, run *AnalysisRun) {
	fmt.Fprintf(w, "# Meter Anomaly Report\n\n")
	fmt.Fprintf(w, "**Generated:** %s\n\n", run.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "**Source:** %s", run.Source)
	if run.Sheet != "" {
		fmt.Fprintf(w, " (sheet %s)", run.Sheet)
	}
	fmt.Fprintf(w, "\n\n")
	fmt.Fprintf(w, "**Run ID:** %s\n\n", run.ID)
	fmt.Fprintf(w, "**meterscope version:** %s\n\n", GetVersion())
	fmt.Fprintf(w, "---\n\n")
}

func (r *Reporter) writeConsumptionSummary(w io.Writer, result *ConsumptionResult) {
	summary := result.Summary

	fmt.Fprintf(w, "## 📆 %s\n\n", result.Date)
	fmt.Fprintf(w, "**Data range:** %s to %s\n\n",
		result.RangeStart.Format("2006-01-02 15:04:05"),
		result.RangeEnd.Format("2006-01-02 15:04:05"),
	)

	fmt.Fprintf(w, "| Metric | Value |\n")
	fmt.Fprintf(w, "|--------|-------|\n")
	fmt.Fprintf(w, "| Total consumption | %s kWh |\n", FormatNumber(summary.Total))
	fmt.Fprintf(w, "| Minimum interval | %s kWh |\n", FormatNumber(summary.Min))
	fmt.Fprintf(w, "| Maximum interval | %s kWh |\n", FormatNumber(summary.Max))
	fmt.Fprintf(w, "| Average interval | %s kWh |\n", FormatNumber(summary.Mean))
	fmt.Fprintf(w, "| Median | %s kWh |\n", FormatNumber(summary.Median))
	fmt.Fprintf(w, "| Mean absolute deviation | %s kWh |\n", FormatNumber(summary.Deviation))
	fmt.Fprintf(w, "| Anomalies | %d |\n", summary.AnomalyCount)
	fmt.Fprintf(w, "| Readings without a record | %d |\n", summary.NoRecord)
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Threshold: %.1f × deviation\n\n", result.Threshold)
}

func (r *Reporter) writeConsumptionAnomalies(w io.Writer, result *ConsumptionResult) {
	fmt.Fprintf(w, "### ⏱️ Anomalous Intervals\n\n")

	anomalies := result.Anomalies()
	if len(anomalies) == 0 {
		fmt.Fprintf(w, "No anomalous intervals were detected on this day.\n\n")
		return
	}

	for i, anomaly := range anomalies {
		fmt.Fprintf(w, "%d. %s (consumption: %.2f kWh, %s)\n",
			i+1,
			anomaly.Timestamp.Format("2006-01-02 15:04:05"),
			anomaly.Delta,
			anomaly.Verdict.Direction,
		)
	}
	fmt.Fprintf(w, "\n")
}

func (r *Reporter) writeYieldPowerModel(w io.Writer, result *YieldPowerResult) {
	fmt.Fprintf(w, "## 📌 Prediction Model\n\n")
	fmt.Fprintf(w, "```\npredicted kWh = %s + %.2f × production\n```\n\n", FormatNumber(math.Round(result.Fit.Intercept)), result.Fit.Slope)
	fmt.Fprintf(w, "Model fit R² = **%.3f**\n\n", result.Fit.RSquared)
	fmt.Fprintf(w, "Detected **%d** anomalies (%d excess, %d deficit); energy saved in **%d** of %d periods.\n\n",
		result.Summary.AnomalyCount,
		result.Summary.ExcessCount,
		result.Summary.DeficitCount,
		result.Summary.SavingsCount,
		result.Summary.Count,
	)
}

func (r *Reporter) writeYieldPowerSamples(w io.Writer, result *YieldPowerResult) {
	fmt.Fprintf(w, "### 📋 Periods\n\n")
	fmt.Fprintf(w, "| Period | Production | Actual | Predicted | Residual | Savings | Status |\n")
	fmt.Fprintf(w, "|--------|------------|--------|-----------|----------|---------|--------|\n")

	// Largest residuals first
	samples := make([]AnnotatedSample, len(result.Samples))
	copy(samples, result.Samples)
	sort.SliceStable(samples, func(i, j int) bool {
		return math.Abs(samples[i].Residual) > math.Abs(samples[j].Residual)
	})

	for _, sample := range samples {
		status := "✅ normal"
		if sample.Verdict.IsAnomalous {
			status = "⚠️ " + string(sample.Verdict.Direction)
		}
		fmt.Fprintf(w, "| %s | %.2f | %s kWh | %s kWh | %s kWh | %s | %s |\n",
			sample.Period,
			sample.ProductionVolume,
			FormatNumber(sample.ActualConsumption),
			FormatNumber(sample.Predicted),
			FormatNumber(sample.Residual),
			FormatPercentage(sample.SavingsPercent),
			status,
		)
	}
	fmt.Fprintf(w, "\n")
}

// writeFooter writes the report footer
func (r *Reporter) writeFooter(w io.Writer) {
	fmt.Fprintf(w, "---\n\n")
	fmt.Fprintf(w, "*Anomalies are flagged with a median absolute deviation test and indicate intervals worth reviewing, not confirmed faults.*\n\n")
	fmt.Fprintf(w, "*Generated by meterscope*\n")
}

// FormatNumber formats a value with two decimals and thousands separators
func FormatNumber(value float64) string {
	return humanize.FormatFloat("#,###.##", value)
}

// FormatPercentage formats a value as a percentage
func FormatPercentage(value float64) string {
	return fmt.Sprintf("%.1f%%", value)
}
