// Copyright 2025 Matthew Gall <me@matthewgall.dev>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	ModeConsumption = "consumption"
	ModeYield       = "yield"
)

// Config holds the application configuration
type Config struct {
	// Analysis settings
	Mode             string  `yaml:"mode"`
	AnomalyThreshold float64 `yaml:"anomaly_threshold"`
	IndexMultiplier  float64 `yaml:"index_multiplier"`
	MinYear          int     `yaml:"min_year"`

	// Storage
	StoragePath string `yaml:"storage_path"`
	SaveResults bool   `yaml:"save_results"`

	Server   ServerConfig   `yaml:"server"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`

	// Logging
	Debug     bool   `yaml:"debug"`
	LogFormat string `yaml:"log_format"` // text or json
}

// ServerConfig holds the HTTP API settings
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// InfluxDBConfig holds the optional InfluxDB export settings
type InfluxDBConfig struct {
	URL    string `yaml:"url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
}

// Enabled reports whether results should be exported to InfluxDB
func (c InfluxDBConfig) Enabled() bool {
	return c.URL != ""
}

// DefaultConfig returns the configuration used when no file is given
func DefaultConfig() *Config {
	return &Config{
		Mode:             ModeConsumption,
		AnomalyThreshold: 3.0,
		IndexMultiplier:  DefaultIndexMultiplier,
		MinYear:          DefaultMinYear,
		StoragePath:      getDefaultStoragePath(),
		Server: ServerConfig{
			Addr: ":8080",
		},
		InfluxDB: InfluxDBConfig{
			Bucket: "meterscope",
		},
		LogFormat: "text",
	}
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	// If no path provided, return defaults with env var overrides
	if path == "" {
		if err := config.applyEnvironmentVariables(); err != nil {
			return nil, err
		}
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.applyEnvironmentVariables(); err != nil {
		return nil, err
	}

	return config, nil
}

// getDefaultStoragePath returns the default storage path
func getDefaultStoragePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".meterscope"
	}
	return filepath.Join(home, ".config", "meterscope")
}

// applyEnvironmentVariables overrides config with environment variables
func (c *Config) applyEnvironmentVariables() error {
	if val := os.Getenv("METERSCOPE_MODE"); val != "" {
		c.Mode = val
	}
	if val := os.Getenv("METERSCOPE_THRESHOLD"); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return &ConfigError{Field: "METERSCOPE_THRESHOLD", Message: "must be a number, got " + val}
		}
		c.AnomalyThreshold = f
	}
	if val := os.Getenv("METERSCOPE_STORAGE_PATH"); val != "" {
		c.StoragePath = val
	}
	if val := os.Getenv("METERSCOPE_SERVER_ADDR"); val != "" {
		c.Server.Addr = val
	}
	if val := os.Getenv("METERSCOPE_INFLUXDB_URL"); val != "" {
		c.InfluxDB.URL = val
	}
	if val := os.Getenv("METERSCOPE_INFLUXDB_TOKEN"); val != "" {
		c.InfluxDB.Token = val
	}
	if val := os.Getenv("METERSCOPE_INFLUXDB_ORG"); val != "" {
		c.InfluxDB.Org = val
	}
	if val := os.Getenv("METERSCOPE_INFLUXDB_BUCKET"); val != "" {
		c.InfluxDB.Bucket = val
	}
	if val := os.Getenv("METERSCOPE_DEBUG"); val == "true" || val == "1" {
		c.Debug = true
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errors []string

	if c.Mode != ModeConsumption && c.Mode != ModeYield {
		errors = append(errors, "mode must be 'consumption' or 'yield'")
	}

	if !(c.AnomalyThreshold > 0) {
		errors = append(errors, "anomaly_threshold must be greater than 0")
	}

	if !(c.IndexMultiplier > 0) {
		errors = append(errors, "index_multiplier must be greater than 0")
	}

	if c.MinYear < 1900 || c.MinYear > 9999 {
		errors = append(errors, "min_year must be between 1900 and 9999")
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, "log_format must be 'text' or 'json'")
	}

	if c.InfluxDB.Enabled() {
		if c.InfluxDB.Org == "" {
			errors = append(errors, "influxdb.org is required when influxdb.url is set")
		}
		if c.InfluxDB.Bucket == "" {
			errors = append(errors, "influxdb.bucket is required when influxdb.url is set")
		}
	}

	// Set default storage path if empty
	if c.StoragePath == "" {
		c.StoragePath = getDefaultStoragePath()
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}
