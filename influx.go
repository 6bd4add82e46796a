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
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
)

// InfluxExporter writes annotated analysis results to InfluxDB
type InfluxExporter struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	logger   *Logger
}

// NewInfluxExporter connects to InfluxDB and verifies the server is healthy
func NewInfluxExporter(ctx context.Context, cfg InfluxDBConfig, logger *Logger) (*InfluxExporter, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	health, err := client.Health(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to InfluxDB: %w", err)
	}
	if health.Status != domain.HealthCheckStatusPass {
		client.Close()
		return nil, fmt.Errorf("InfluxDB is not healthy: %s", health.Status)
	}

	logger.Debug("InfluxDB connection verified", "url", cfg.URL, "bucket", cfg.Bucket)

	return &InfluxExporter{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		logger:   logger.WithComponent("influxdb"),
	}, nil
}

// ExportRun writes every point of a run
func (e *InfluxExporter) ExportRun(ctx context.Context, run *AnalysisRun) error {
	points := RunPoints(run)
	if len(points) == 0 {
		return nil
	}

	if err := e.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("failed to write points to InfluxDB: %w", err)
	}

	e.logger.Info("Exported run to InfluxDB", "run_id", run.ID, "points", len(points))
	return nil
}

// Close closes the InfluxDB client
func (e *InfluxExporter) Close() {
	e.client.Close()
}

// RunPoints converts a run into InfluxDB points: one per usable interval for
// consumption runs, one per sample for yield/power runs
func RunPoints(run *AnalysisRun) []*write.Point {
	var points []*write.Point

	if run.Consumption != nil {
		for _, interval := range run.Consumption.Intervals {
			points = append(points, write.NewPoint(
				"meter_interval",
				map[string]string{
					"run_id":    run.ID,
					"date":      interval.GroupKey,
					"direction": string(interval.Verdict.Direction),
				},
				map[string]interface{}{
					"delta_kwh": interval.Delta,
					"anomalous": interval.Verdict.IsAnomalous,
				},
				interval.Timestamp,
			))
		}
	}

	if run.YieldPower != nil {
		for _, sample := range run.YieldPower.Samples {
			points = append(points, write.NewPoint(
				"yield_power_sample",
				map[string]string{
					"run_id":    run.ID,
					"period":    sample.Period,
					"direction": string(sample.Verdict.Direction),
				},
				map[string]interface{}{
					"production":      sample.ProductionVolume,
					"actual_kwh":      sample.ActualConsumption,
					"predicted_kwh":   sample.Predicted,
					"residual_kwh":    sample.Residual,
					"savings_percent": sample.SavingsPercent,
					"anomalous":       sample.Verdict.IsAnomalous,
				},
				run.GeneratedAt,
			))
		}
	}

	return points
}

// exportTimeout bounds a single export from the CLI
const exportTimeout = 30 * time.Second
