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
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunPoints(t *testing.T) {
	consumption := consumptionRun(t)
	points := RunPoints(consumption)

	require.Len(t, points, len(consumption.Consumption.Intervals))
	for _, point := range points {
		assert.Equal(t, "meter_interval", point.Name())
	}

	yield := yieldRun(t)
	points = RunPoints(yield)

	require.Len(t, points, 3)
	assert.Equal(t, "yield_power_sample", points[0].Name())
	assert.Equal(t, yield.GeneratedAt, points[0].Time())

	assert.Empty(t, RunPoints(NewAnalysisRun(ModeConsumption, "empty.xlsx")))
}

// fakeInflux answers the health and write endpoints of an InfluxDB 2 server
type fakeInflux struct {
	mu     sync.Mutex
	writes []string
}

func (f *fakeInflux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/health":
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"name":"influxdb","message":"ready for queries and writes","status":"pass","checks":[],"version":"2.7.0","commit":"test"}`)
	case r.URL.Path == "/api/v2/write":
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.writes = append(f.writes, string(body))
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

func TestInfluxExporterExportRun(t *testing.T) {
	fake := &fakeInflux{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	cfg := InfluxDBConfig{URL: srv.URL, Token: "token", Org: "plant", Bucket: "meterscope"}
	exporter, err := NewInfluxExporter(context.Background(), cfg, newTestLogger())
	require.NoError(t, err)
	defer exporter.Close()

	run := consumptionRun(t)
	require.NoError(t, exporter.ExportRun(context.Background(), run))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.NotEmpty(t, fake.writes)
	body := strings.Join(fake.writes, "\n")
	assert.Contains(t, body, "meter_interval")
	assert.Contains(t, body, "run_id="+run.ID)
	assert.Contains(t, body, "direction=excess")
}

func TestInfluxExporterUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	_, err := NewInfluxExporter(context.Background(), InfluxDBConfig{URL: srv.URL, Org: "plant", Bucket: "meterscope"}, newTestLogger())
	assert.Error(t, err)
}
