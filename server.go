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
	"errors"
	"math"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
)

// apiSource is recorded as the source of runs submitted over HTTP
const apiSource = "api"

// ConsumptionRequest is the body of a consumption analysis request
type ConsumptionRequest struct {
	Readings  []Reading `json:"readings" binding:"required"`
	Date      string    `json:"date"`
	Threshold *float64  `json:"threshold"`
}

// ProductionRowRequest is one period of a yield/power request; null cells are missing values
type ProductionRowRequest struct {
	Period     string   `json:"period"`
	Production *float64 `json:"production"`
	PowerIndex *float64 `json:"powerIndex"`
}

// YieldPowerRequest is the body of a yield/power analysis request
type YieldPowerRequest struct {
	Rows      []ProductionRowRequest `json:"rows" binding:"required"`
	Threshold *float64               `json:"threshold"`
}

// Server exposes the analysis pipelines over HTTP. Every request is analysed
// independently, so handlers share nothing but read-only configuration and the
// run archive.
type Server struct {
	config      *Config
	logger      *Logger
	consumption *ConsumptionPipeline
	yieldPower  *YieldPowerPipeline
	storage     *Storage // nil unless save_results is set
	engine      *gin.Engine
}

// NewServer creates the HTTP server and its routes
func NewServer(config *Config, logger *Logger) (*Server, error) {
	s := &Server{
		config:      config,
		logger:      logger.WithComponent("server"),
		consumption: NewConsumptionPipeline(logger, config.MinYear),
		yieldPower:  NewYieldPowerPipeline(logger),
	}

	if config.SaveResults {
		storage, err := NewStorage(config.StoragePath, s.logger)
		if err != nil {
			return nil, err
		}
		s.storage = storage
	}

	s.engine = s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLogger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "meterscope",
			"version": GetVersion(),
			"module":  ModulePath(),
		})
	})

	v1 := r.Group("/api/v1")
	{
		analysis := v1.Group("/analysis")
		{
			analysis.POST("/consumption", s.handleConsumption)
			analysis.POST("/yield-power", s.handleYieldPower)
		}

		runs := v1.Group("/runs")
		{
			runs.GET("", s.handleListRuns)
			runs.GET("/:id", s.handleGetRun) // "latest" selects the newest run
		}
	}

	return r
}

// Handler returns the HTTP handler, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Server.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleConsumption(c *gin.Context) {
	var req ConsumptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.consumption.Run(req.Readings, req.Date, s.threshold(req.Threshold))
	if err != nil {
		s.writeError(c, err)
		return
	}

	run := NewAnalysisRun(ModeConsumption, apiSource)
	run.DroppedRows = result.DroppedReadings
	run.Consumption = result
	s.respondRun(c, run)
}

func (s *Server) handleYieldPower(c *gin.Context) {
	var req YieldPowerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rows := make([]ProductionRow, len(req.Rows))
	for i, row := range req.Rows {
		rows[i] = ProductionRow{
			Period:     row.Period,
			Production: valueOrNaN(row.Production),
			PowerIndex: valueOrNaN(row.PowerIndex),
		}
	}

	samples := BuildRegressionSamples(rows, s.config.IndexMultiplier)
	result, err := s.yieldPower.Run(samples, s.threshold(req.Threshold))
	if err != nil {
		s.writeError(c, err)
		return
	}

	run := NewAnalysisRun(ModeYield, apiSource)
	run.DroppedRows = len(rows) - len(samples)
	run.YieldPower = result
	s.respondRun(c, run)
}

// respondRun archives the run when storage is enabled and writes it to the client
func (s *Server) respondRun(c *gin.Context, run *AnalysisRun) {
	if s.storage != nil {
		if _, err := s.storage.SaveRun(run); err != nil {
			s.logger.Warn("Failed to save analysis results", "run_id", run.ID, "error", err)
		}
	}
	c.JSON(http.StatusOK, run)
}

func (s *Server) handleListRuns(c *gin.Context) {
	if s.storage == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run archive is disabled"})
		return
	}

	files, err := s.storage.ListStoredFiles()
	if err != nil {
		s.writeError(c, err)
		return
	}

	ids := make([]string, 0, len(files))
	for _, name := range files {
		if id, ok := RunIDFromFilename(name); ok {
			ids = append(ids, id)
		}
	}

	c.JSON(http.StatusOK, gin.H{"runs": ids})
}

func (s *Server) handleGetRun(c *gin.Context) {
	if s.storage == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run archive is disabled"})
		return
	}

	var run *AnalysisRun
	var err error
	if id := c.Param("id"); id == "latest" {
		run, err = s.storage.LoadLatestRun()
	} else {
		run, err = s.storage.LoadRun(id)
	}
	if err != nil {
		s.writeError(c, err)
		return
	}
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no runs stored"})
		return
	}

	c.JSON(http.StatusOK, run)
}

func (s *Server) threshold(requested *float64) float64 {
	if requested != nil {
		return *requested
	}
	return s.config.AnomalyThreshold
}

// writeError maps pipeline errors to HTTP status codes
func (s *Server) writeError(c *gin.Context, err error) {
	var validationErr *ValidationError
	var missingErr *MissingDataError
	var samplesErr *InsufficientSamplesError

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &validationErr):
		status = http.StatusBadRequest
	case errors.As(err, &missingErr), errors.As(err, &samplesErr):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, os.ErrNotExist):
		status = http.StatusNotFound
	default:
		s.logger.Error("Analysis failed", "error", err)
	}

	c.JSON(status, gin.H{"error": err.Error()})
}

// requestLogger logs each request through the application logger
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func valueOrNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
