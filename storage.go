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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Storage keeps an archive of analysis runs as JSON files
type Storage struct {
	basePath string
	logger   *Logger
}

// NewStorage creates a new storage handler
func NewStorage(basePath string, logger *Logger) (*Storage, error) {
	// Ensure storage directory exists
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, &StorageError{
			Operation: "create_directory",
			Path:      basePath,
			Err:       err,
		}
	}

	logger.Debug("Storage initialized", "path", basePath)

	return &Storage{
		basePath: basePath,
		logger:   logger,
	}, nil
}

// NewAnalysisRun creates an empty run record with a fresh ID
func NewAnalysisRun(mode, source string) *AnalysisRun {
	return &AnalysisRun{
		ID:          uuid.NewString(),
		GeneratedAt: time.Now(),
		Mode:        mode,
		Source:      source,
	}
}

// SaveRun saves an analysis run and returns the file path
func (s *Storage) SaveRun(run *AnalysisRun) (string, error) {
	filename := fmt.Sprintf("run_%s_%s.json", run.GeneratedAt.Format(runTimeLayout), run.ID)
	path := filepath.Join(s.basePath, filename)

	s.logger.LogStorageOperation("save_run", path)

	return path, s.saveJSON(path, run)
}

// runTimeLayout is the timestamp embedded in run file names
const runTimeLayout = "2006-01-02_15-04-05"

// RunIDFromFilename extracts the run ID from a stored run file name
func RunIDFromFilename(name string) (string, bool) {
	rest, ok := strings.CutPrefix(name, "run_")
	if !ok {
		return "", false
	}
	rest, ok = strings.CutSuffix(rest, ".json")
	if !ok || len(rest) <= len(runTimeLayout)+1 {
		return "", false
	}
	return rest[len(runTimeLayout)+1:], true
}

// LoadRun loads a stored run by ID. IDs that are not UUIDs are rejected before
// they reach the file system.
func (s *Storage) LoadRun(id string) (*AnalysisRun, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, &ValidationError{
			Field:   "run_id",
			Value:   id,
			Message: "must be a UUID",
		}
	}

	pattern := filepath.Join(s.basePath, fmt.Sprintf("run_*_%s.json", parsed.String()))
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, &StorageError{
			Operation: "glob_run",
			Path:      pattern,
			Err:       err,
		}
	}
	if len(matches) == 0 {
		return nil, &StorageError{
			Operation: "load_run",
			Path:      pattern,
			Err:       os.ErrNotExist,
		}
	}

	s.logger.LogStorageOperation("load_run", matches[0])

	var run AnalysisRun
	if err := s.loadJSON(matches[0], &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// LoadLatestRun loads the most recent stored run, or nil when there is none
func (s *Storage) LoadLatestRun() (*AnalysisRun, error) {
	pattern := filepath.Join(s.basePath, "run_*.json")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, &StorageError{
			Operation: "glob_run",
			Path:      pattern,
			Err:       err,
		}
	}

	if len(matches) == 0 {
		return nil, nil // No previous run found
	}

	// File names start with the run time, so lexical order is chronological
	sort.Strings(matches)
	latestFile := matches[len(matches)-1]

	s.logger.LogStorageOperation("load_latest_run", latestFile)

	var run AnalysisRun
	if err := s.loadJSON(latestFile, &run); err != nil {
		return nil, err
	}

	return &run, nil
}

// saveJSON saves data as JSON to a file
func (s *Storage) saveJSON(path string, data interface{}) error {
	file, err := os.Create(path)
	if err != nil {
		return &StorageError{
			Operation: "create_file",
			Path:      path,
			Err:       err,
		}
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(data); err != nil {
		return &StorageError{
			Operation: "encode_json",
			Path:      path,
			Err:       err,
		}
	}

	return nil
}

// loadJSON loads data from a JSON file
func (s *Storage) loadJSON(path string, target interface{}) error {
	file, err := os.Open(path)
	if err != nil {
		return &StorageError{
			Operation: "open_file",
			Path:      path,
			Err:       err,
		}
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	if err := decoder.Decode(target); err != nil {
		return &StorageError{
			Operation: "decode_json",
			Path:      path,
			Err:       err,
		}
	}

	return nil
}

// ListStoredFiles lists all files in the storage directory
func (s *Storage) ListStoredFiles() ([]string, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, &StorageError{
			Operation: "list_directory",
			Path:      s.basePath,
			Err:       err,
		}
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() {
			files = append(files, entry.Name())
		}
	}

	return files, nil
}
