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
	"io"
	"log/slog"
	"time"
)

// newTestLogger returns a logger that discards all output
func newTestLogger() *Logger {
	return &Logger{slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// at builds a UTC timestamp on the given day
func at(day, hour, minute int) time.Time {
	return time.Date(2024, time.March, day, hour, minute, 0, 0, time.UTC)
}

// readingsFromDeltas builds cumulative readings 15 minutes apart on one day,
// starting at start and applying each delta in turn
func readingsFromDeltas(day int, start float64, deltas ...float64) []Reading {
	readings := []Reading{{Timestamp: at(day, 0, 0), Value: start}}
	value := start
	for i, d := range deltas {
		value += d
		ts := at(day, 0, 0).Add(time.Duration(i+1) * 15 * time.Minute)
		readings = append(readings, Reading{Timestamp: ts, Value: value})
	}
	return readings
}
