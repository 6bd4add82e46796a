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
	"math"
	"sort"
	"time"
)

// DefaultMinYear is the earliest year accepted for a reading timestamp. Earlier
// dates come from numeric cells that were never timestamps.
const DefaultMinYear = 2000

// GroupKey returns the calendar date a timestamp belongs to
func GroupKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// CleanReadings drops readings without a usable timestamp or value and removes
// duplicate timestamps, keeping the first occurrence. It returns the kept
// readings and the number dropped.
func CleanReadings(readings []Reading, minYear int) ([]Reading, int) {
	clean := make([]Reading, 0, len(readings))
	seen := make(map[time.Time]bool, len(readings))
	dropped := 0

	for _, r := range readings {
		if r.Timestamp.IsZero() || r.Timestamp.Year() < minYear {
			dropped++
			continue
		}
		if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
			dropped++
			continue
		}
		key := r.Timestamp.UTC()
		if seen[key] {
			dropped++
			continue
		}
		seen[key] = true
		clean = append(clean, r)
	}

	return clean, dropped
}

// SortReadings returns a copy of readings ordered by timestamp, then value
func SortReadings(readings []Reading) []Reading {
	sorted := make([]Reading, len(readings))
	copy(sorted, readings)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Timestamp.Equal(sorted[j].Timestamp) {
			return sorted[i].Value < sorted[j].Value
		}
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	return sorted
}

// ReconstructSeries converts cumulative readings into per-interval consumption.
// Readings are grouped by calendar date and differenced within each day; the
// first reading of a day has no predecessor and produces no interval. Negative
// deltas are returned as-is so callers can show them; see Interval.Usable.
// Input is expected to have passed CleanReadings: duplicate timestamps would
// produce zero-length intervals and pre-2000 noise would be differenced.
func ReconstructSeries(readings []Reading) []Interval {
	sorted := SortReadings(readings)
	intervals := make([]Interval, 0, len(sorted))

	for start := 0; start < len(sorted); {
		key := GroupKey(sorted[start].Timestamp)
		end := start + 1
		for end < len(sorted) && GroupKey(sorted[end].Timestamp) == key {
			end++
		}

		for i := start; i < end; i++ {
			if i == start {
				continue
			}
			intervals = append(intervals, Interval{
				Timestamp: sorted[i].Timestamp,
				Delta:     sorted[i].Value - sorted[i-1].Value,
				GroupKey:  key,
			})
		}

		start = end
	}

	return intervals
}

// GroupDates returns the sorted distinct calendar dates present in readings
func GroupDates(readings []Reading) []string {
	set := make(map[string]bool)
	for _, r := range readings {
		set[GroupKey(r.Timestamp)] = true
	}

	dates := make([]string, 0, len(set))
	for date := range set {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates
}
