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
	"html"
	"io"
	"os"
)

// HTMLReporter generates HTML reports from analysis runs
type HTMLReporter struct {
	logger *Logger
}

// NewHTMLReporter creates a new HTML report generator
func NewHTMLReporter(logger *Logger) *HTMLReporter {
	return &HTMLReporter{
		logger: logger,
	}
}

// GenerateHTMLReport writes an HTML report to outputPath, or stdout when empty
func (r *HTMLReporter) GenerateHTMLReport(run *AnalysisRun, outputPath string) error {
	r.logger.Info("Generating HTML report")

	var writer io.Writer
	if outputPath == "" {
		writer = os.Stdout
	} else {
		file, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("failed to create HTML report file: %w", err)
		}
		defer file.Close()
		writer = file
	}

	r.WriteHTMLReport(writer, run)

	if outputPath != "" {
		r.logger.Info("HTML report saved", "path", outputPath)
	}

	return nil
}

// WriteHTMLReport writes the HTML report for a run
func (r *HTMLReporter) WriteHTMLReport(w io.Writer, run *AnalysisRun) {
	r.writeHTMLHeader(w, run)
	if run.Consumption != nil {
		r.writeHTMLConsumption(w, run.Consumption)
	}
	if run.YieldPower != nil {
		r.writeHTMLYieldPower(w, run.YieldPower)
	}
	r.writeHTMLChart(w, run)
	r.writeHTMLFooter(w)
}

func (r *HTMLReporter) writeHTMLHeader(w io.Writer, run *AnalysisRun) {
	fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Meter Anomaly Report</title>
    <style>
        :root {
            --primary-color: #2F80ED;
            --secondary-color: #27AE60;
            --danger-color: #EB5757;
            --muted-color: #828282;
            --bg-color: #0B1320;
            --card-bg: #16213A;
            --text-color: #E8EAF6;
            --text-muted: #9FA8DA;
            --border-color: #2A3550;
        }

        * {
            margin: 0;
            padding: 0;
            box-sizing: border-box;
        }

        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Oxygen, Ubuntu, Cantarell, sans-serif;
            background: var(--bg-color);
            color: var(--text-color);
            line-height: 1.6;
            padding: 20px;
        }

        .container {
            max-width: 1200px;
            margin: 0 auto;
        }

        header {
            background: linear-gradient(135deg, var(--primary-color), var(--secondary-color));
            padding: 40px;
            border-radius: 16px;
            margin-bottom: 30px;
        }

        .subtitle {
            color: rgba(255, 255, 255, 0.9);
        }

        .card {
            background: var(--card-bg);
            border-radius: 12px;
            padding: 30px;
            margin-bottom: 30px;
            border: 1px solid var(--border-color);
        }

        h2 {
            color: var(--primary-color);
            margin-bottom: 20px;
            border-bottom: 2px solid var(--border-color);
            padding-bottom: 10px;
        }

        table {
            width: 100%%;
            border-collapse: collapse;
            margin: 20px 0;
        }

        th, td {
            padding: 12px;
            text-align: left;
            border-bottom: 1px solid var(--border-color);
        }

        .metric-grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(180px, 1fr));
            gap: 20px;
        }

        .metric-card {
            border: 1px solid var(--border-color);
            border-radius: 8px;
            padding: 20px;
            text-align: center;
        }

        .metric-value {
            font-size: 1.6em;
            font-weight: bold;
            color: var(--secondary-color);
        }

        .metric-label {
            color: var(--text-muted);
            font-size: 0.9em;
        }

        .status-normal { color: var(--primary-color); }
        .status-anomalous { color: var(--danger-color); font-weight: 600; }
        .status-no_record { color: var(--muted-color); }

        img.chart {
            width: 100%%;
            border-radius: 8px;
        }

        footer {
            text-align: center;
            padding: 30px;
            color: var(--text-muted);
        }
    </style>
</head>
<body>
    <div class="container">
        <header>
            <h1>📊 Meter Anomaly Report</h1>
            <div class="subtitle">Generated: %s</div>
            <div class="subtitle">Source: %s %s</div>
            <div class="subtitle" style="opacity: 0.7; font-size: 0.9em; margin-top: 10px;">meterscope %s · run %s</div>
        </header>
`,
		run.GeneratedAt.Format("Monday, 2 January 2006 at 15:04"),
		html.EscapeString(run.Source),
		html.EscapeString(run.Sheet),
		GetVersion(),
		html.EscapeString(run.ID),
	)
}

func (r *HTMLReporter) writeMetric(w io.Writer, label, value string) {
	fmt.Fprintf(w, `
                <div class="metric-card">
                    <div class="metric-label">%s</div>
                    <div class="metric-value">%s</div>
                </div>`, html.EscapeString(label), html.EscapeString(value))
}

func (r *HTMLReporter) writeHTMLConsumption(w io.Writer, result *ConsumptionResult) {
	summary := result.Summary

	fmt.Fprintf(w, `
        <div class="card">
            <h2>📆 %s statistics</h2>
            <div class="metric-grid">`, html.EscapeString(result.Date))
	r.writeMetric(w, "Total (kWh)", FormatNumber(summary.Total))
	r.writeMetric(w, "Minimum", FormatNumber(summary.Min))
	r.writeMetric(w, "Maximum", FormatNumber(summary.Max))
	r.writeMetric(w, "Average", FormatNumber(summary.Mean))
	r.writeMetric(w, "Anomalies", fmt.Sprintf("%d", summary.AnomalyCount))
	fmt.Fprintf(w, `
            </div>
            <table>
                <thead>
                    <tr><th>Time</th><th>Cumulative</th><th>Consumption (kWh)</th><th>Status</th></tr>
                </thead>
                <tbody>
`)

	for _, point := range result.Points {
		delta := "-"
		if point.Delta != nil {
			delta = FormatNumber(*point.Delta)
		}
		fmt.Fprintf(w, `                    <tr class="status-%s"><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>
`,
			point.Status,
			point.Timestamp.Format("2006-01-02 15:04:05"),
			FormatNumber(point.Cumulative),
			delta,
			point.Status,
		)
	}

	fmt.Fprintf(w, `                </tbody>
            </table>
        </div>
`)
}

func (r *HTMLReporter) writeHTMLYieldPower(w io.Writer, result *YieldPowerResult) {
	fmt.Fprintf(w, `
        <div class="card">
            <h2>📌 Prediction model</h2>
            <p><code>predicted kWh = %s + %.2f × production</code></p>
            <p>Model fit R² = <strong>%.3f</strong></p>
            <div class="metric-grid">`,
		FormatNumber(result.Fit.Intercept),
		result.Fit.Slope,
		result.Fit.RSquared,
	)
	r.writeMetric(w, "Anomalies", fmt.Sprintf("%d", result.Summary.AnomalyCount))
	r.writeMetric(w, "Excess", fmt.Sprintf("%d", result.Summary.ExcessCount))
	r.writeMetric(w, "Deficit", fmt.Sprintf("%d", result.Summary.DeficitCount))
	r.writeMetric(w, "Energy saved", fmt.Sprintf("%d / %d", result.Summary.SavingsCount, result.Summary.Count))
	fmt.Fprintf(w, `
            </div>
            <table>
                <thead>
                    <tr><th>Period</th><th>Production</th><th>Actual</th><th>Predicted</th><th>Residual</th><th>Savings</th><th>Direction</th></tr>
                </thead>
                <tbody>
`)

	for _, sample := range result.Samples {
		class := "status-normal"
		if sample.Verdict.IsAnomalous {
			class = "status-anomalous"
		}
		fmt.Fprintf(w, `                    <tr class="%s"><td>%s</td><td>%.2f</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>
`,
			class,
			html.EscapeString(sample.Period),
			sample.ProductionVolume,
			FormatNumber(sample.ActualConsumption),
			FormatNumber(sample.Predicted),
			FormatNumber(sample.Residual),
			FormatPercentage(sample.SavingsPercent),
			sample.Verdict.Direction,
		)
	}

	fmt.Fprintf(w, `                </tbody>
            </table>
        </div>
`)
}

func (r *HTMLReporter) writeHTMLChart(w io.Writer, run *AnalysisRun) {
	if run.Chart == "" {
		return
	}

	fmt.Fprintf(w, `
        <div class="card">
            <h2>📈 Chart</h2>
            <img class="chart" src="data:image/png;base64,%s" alt="analysis chart">
        </div>
`, run.Chart)
}

func (r *HTMLReporter) writeHTMLFooter(w io.Writer) {
	fmt.Fprintf(w, `
        <footer>
            <p><em>Anomalies are flagged with a median absolute deviation test and indicate intervals worth reviewing, not confirmed faults.</em></p>
            <p style="margin-top: 10px;">Generated by meterscope</p>
        </footer>
    </div>
</body>
</html>
`)
}
