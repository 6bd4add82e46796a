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
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	// Define command-line flags
	configPath := flag.String("config", "", "Path to configuration file")
	inputPath := flag.String("input", "", "Excel workbook (.xlsx) to analyse")
	sheet := flag.String("sheet", "", "Sheet to analyse (default: first sheet)")
	mode := flag.String("mode", "", "Analysis mode: consumption or yield (overrides config)")
	date := flag.String("date", "", "Date to analyse in consumption mode, YYYY-MM-DD (default: earliest)")
	threshold := flag.Float64("threshold", 0, "MAD threshold multiplier (overrides config)")
	outputPath := flag.String("output", "", "Output file for report (default: stdout)")
	htmlOutput := flag.Bool("html", false, "Generate HTML report instead of Markdown")
	jsonOutput := flag.Bool("json", false, "Write the analysis result as JSON")
	listSheets := flag.Bool("list-sheets", false, "List workbook sheets and exit")
	serve := flag.Bool("serve", false, "Run the HTTP analysis API")
	runID := flag.String("run", "", "Render a stored run by ID (\"latest\" for the newest) instead of analysing")
	listRuns := flag.Bool("list-runs", false, "List stored run IDs and exit")
	debug := flag.Bool("debug", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Show version and exit")

	flag.Parse()

	// Show version and exit
	if *showVersion {
		fmt.Printf("meterscope %s\n", GetVersion())
		os.Exit(0)
	}

	// Load configuration
	config, err := LoadConfig(*configPath)
	if err != nil {
		NewLogger(*debug).Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Override with command-line flags
	if *mode != "" {
		config.Mode = *mode
	}
	if *threshold != 0 {
		config.AnomalyThreshold = *threshold
	}
	if *debug {
		config.Debug = true
	}

	logger := NewLogger(config.Debug)
	if config.LogFormat == "json" {
		logger = NewJSONLogger(config.Debug)
	}
	logger.Info("Starting meterscope", "version", GetVersion())

	// Validate configuration
	if err := config.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *serve {
		server, err := NewServer(config, logger)
		if err != nil {
			logger.Error("Failed to create HTTP server", "error", err)
			os.Exit(1)
		}
		if err := server.Run(ctx); err != nil {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if *listRuns || *runID != "" {
		storage, err := NewStorage(config.StoragePath, logger)
		if err != nil {
			logger.Error("Failed to initialize storage", "error", err)
			os.Exit(1)
		}

		if *listRuns {
			files, err := storage.ListStoredFiles()
			if err != nil {
				logger.Error("Failed to list stored runs", "error", err)
				os.Exit(1)
			}
			for _, name := range files {
				if id, ok := RunIDFromFilename(name); ok {
					logger.UserMessage("%s", id)
				}
			}
			return
		}

		run, err := loadStoredRun(storage, *runID)
		if err != nil {
			logger.Error("Failed to load stored run", "run_id", *runID, "error", err)
			os.Exit(1)
		}
		if err := writeRunOutput(run, logger.WithRunID(run.ID), *outputPath, *jsonOutput, *htmlOutput); err != nil {
			os.Exit(1)
		}
		return
	}

	if *inputPath == "" {
		logger.Error("An input workbook is required", "flag", "-input")
		os.Exit(1)
	}

	collector := NewCollector(config, logger)

	if *listSheets {
		sheets, err := collector.ListSheets(*inputPath)
		if err != nil {
			logger.Error("Failed to list sheets", "error", err)
			os.Exit(1)
		}
		for _, name := range sheets {
			logger.UserMessage("%s", name)
		}
		return
	}

	// Perform analysis
	run, err := AnalyzeWorkbook(collector, config, logger, *inputPath, *sheet, *date)
	if err != nil {
		logger.Error("Failed to perform analysis", "error", err)
		os.Exit(1)
	}
	runLogger := logger.WithRunID(run.ID)

	// Save analysis results
	if config.SaveResults {
		storage, err := NewStorage(config.StoragePath, runLogger)
		if err != nil {
			runLogger.Warn("Failed to initialize storage", "error", err)
		} else if _, err := storage.SaveRun(run); err != nil {
			runLogger.Warn("Failed to save analysis results", "error", err)
		}
	}

	// Export to InfluxDB
	if config.InfluxDB.Enabled() {
		exportCtx, cancel := context.WithTimeout(ctx, exportTimeout)
		exporter, err := NewInfluxExporter(exportCtx, config.InfluxDB, runLogger)
		if err != nil {
			runLogger.Warn("Failed to connect to InfluxDB", "error", err)
		} else {
			if err := exporter.ExportRun(exportCtx, run); err != nil {
				runLogger.Warn("Failed to export results", "error", err)
			}
			exporter.Close()
		}
		cancel()
	}

	if err := writeRunOutput(run, runLogger, *outputPath, *jsonOutput, *htmlOutput); err != nil {
		os.Exit(1)
	}

	runLogger.Info("Analysis completed successfully")
}

// writeRunOutput renders the run as JSON, HTML or Markdown
func writeRunOutput(run *AnalysisRun, logger *Logger, outputPath string, jsonOutput, htmlOutput bool) error {
	switch {
	case jsonOutput:
		if err := writeJSONResult(run, outputPath); err != nil {
			logger.Error("Failed to write JSON result", "error", err)
			return err
		}
	case htmlOutput:
		logger.Info("Generating HTML report")
		htmlReporter := NewHTMLReporter(logger)
		if err := htmlReporter.GenerateHTMLReport(run, outputPath); err != nil {
			logger.Error("Failed to generate HTML report", "error", err)
			return err
		}
	default:
		logger.Info("Generating Markdown report")
		reporter := NewReporter(logger)
		if err := reporter.GenerateReport(run, outputPath); err != nil {
			logger.Error("Failed to generate report", "error", err)
			return err
		}
	}
	return nil
}

// loadStoredRun loads a run by ID, or the newest run for "latest"
func loadStoredRun(storage *Storage, id string) (*AnalysisRun, error) {
	if id != "latest" {
		return storage.LoadRun(id)
	}

	run, err := storage.LoadLatestRun()
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, &StorageError{
			Operation: "load_latest_run",
			Path:      storage.basePath,
			Err:       os.ErrNotExist,
		}
	}
	return run, nil
}

// AnalyzeWorkbook reads the workbook and runs the pipeline selected by config.Mode
func AnalyzeWorkbook(collector *Collector, config *Config, logger *Logger, inputPath, sheet, date string) (*AnalysisRun, error) {
	run := NewAnalysisRun(config.Mode, inputPath)

	switch config.Mode {
	case ModeConsumption:
		set, err := collector.CollectReadings(inputPath, sheet)
		if err != nil {
			return nil, err
		}
		run.Sheet = set.Sheet
		run.DroppedRows = set.Dropped

		result, err := NewConsumptionPipeline(logger, config.MinYear).Run(set.Readings, date, config.AnomalyThreshold)
		if err != nil {
			return nil, err
		}
		run.Consumption = result

		if chart, err := NewChartGenerator().GenerateConsumptionChart(result); err != nil {
			logger.Warn("Failed to generate chart", "error", err)
		} else {
			run.Chart = chart
		}

	case ModeYield:
		set, err := collector.CollectProduction(inputPath, sheet)
		if err != nil {
			return nil, err
		}
		run.Sheet = set.Sheet

		samples := BuildRegressionSamples(set.Rows, config.IndexMultiplier)
		run.DroppedRows = len(set.Rows) - len(samples)

		result, err := NewYieldPowerPipeline(logger).Run(samples, config.AnomalyThreshold)
		if err != nil {
			return nil, err
		}
		run.YieldPower = result

		if chart, err := NewChartGenerator().GenerateYieldPowerChart(result); err != nil {
			logger.Warn("Failed to generate chart", "error", err)
		} else {
			run.Chart = chart
		}

	default:
		return nil, &ValidationError{
			Field:   "mode",
			Value:   config.Mode,
			Message: "must be 'consumption' or 'yield'",
		}
	}

	return run, nil
}

// writeJSONResult writes the run as indented JSON to outputPath, or stdout when empty
func writeJSONResult(run *AnalysisRun, outputPath string) error {
	out := os.Stdout
	if outputPath != "" {
		file, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer file.Close()
		out = file
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(run)
}
