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
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// timestampLayouts are the textual timestamp forms accepted from workbook cells
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"1/2/06 15:04",
	"1/2/06 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006 15:04:05",
	"01-02-06 15:04",
	"2006-01-02",
	"2006/01/02",
}

// ReadingSet is the cumulative meter data read from one sheet
type ReadingSet struct {
	Sheet    string
	Readings []Reading
	Dropped  int
}

// ProductionSet is the production/power index data read from one sheet
type ProductionSet struct {
	Sheet string
	Rows  []ProductionRow
}

// Collector reads analysis input from Excel workbooks
type Collector struct {
	minYear int
	logger  *Logger
}

// NewCollector creates a new workbook collector
func NewCollector(config *Config, logger *Logger) *Collector {
	return &Collector{
		minYear: config.MinYear,
		logger:  logger.WithComponent("collector"),
	}
}

// ListSheets returns the sheet names of a workbook in order
func (c *Collector) ListSheets(path string) ([]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &InputError{Path: path, Err: err}
	}
	defer f.Close()

	return f.GetSheetList(), nil
}

// CollectReadings reads (timestamp, cumulative value) pairs from a sheet. An
// empty sheet name selects the first sheet.
func (c *Collector) CollectReadings(path, sheet string) (*ReadingSet, error) {
	rows, sheet, err := c.readSheet(path, sheet)
	if err != nil {
		return nil, err
	}

	parsed, rejected := ParseReadingRows(rows)
	readings, dropped := CleanReadings(parsed, c.minYear)
	c.logger.LogRowsDropped("unparseable_cell", rejected)
	c.logger.LogRowsDropped("invalid_timestamp", dropped)
	c.logger.LogInputLoaded(path, sheet, len(readings), rejected+dropped)

	if len(readings) == 0 {
		return nil, &MissingDataError{
			Field:   "timestamp",
			Message: "no valid timestamp column was found in sheet " + sheet,
		}
	}

	return &ReadingSet{
		Sheet:    sheet,
		Readings: readings,
		Dropped:  rejected + dropped,
	}, nil
}

// CollectProduction reads the production layout from a sheet: period labels on
// the first row, production volume on the second and the power index on the
// third, starting from the second column
func (c *Collector) CollectProduction(path, sheet string) (*ProductionSet, error) {
	rows, sheet, err := c.readSheet(path, sheet)
	if err != nil {
		return nil, err
	}

	production, err := ParseProductionRows(rows)
	if err != nil {
		return nil, err
	}
	c.logger.LogInputLoaded(path, sheet, len(production), 0)

	return &ProductionSet{
		Sheet: sheet,
		Rows:  production,
	}, nil
}

func (c *Collector) readSheet(path, sheet string) ([][]string, string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, "", &InputError{Path: path, Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if sheet == "" {
		if len(sheets) == 0 {
			return nil, "", &MissingDataError{Field: "sheet", Message: "workbook has no sheets"}
		}
		sheet = sheets[0]
	}
	if !slices.Contains(sheets, sheet) {
		return nil, "", &MissingDataError{Field: "sheet", Message: "sheet " + sheet + " does not exist"}
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, "", &InputError{Path: path, Err: err}
	}
	if err := normalizeDateCells(f, sheet, rows); err != nil {
		return nil, "", &InputError{Path: path, Err: err}
	}
	c.logger.Debug("Sheet read", "sheet", sheet, "rows", len(rows))

	return rows, sheet, nil
}

// cellTimeLayout is the text form date-styled cells are rewritten to. The first
// entry of timestampLayouts parses it, fractional seconds included.
const cellTimeLayout = "2006-01-02 15:04:05.999999999"

// normalizeDateCells rewrites raw serial numbers of date-styled cells as
// timestamps in place. Unstyled numbers are left alone so meter values are
// never mistaken for dates.
func normalizeDateCells(f *excelize.File, sheet string, rows [][]string) error {
	date1904 := false
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}

	dateStyles := make(map[int]bool)
	for r, row := range rows {
		for col, value := range row {
			serial, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
			if err != nil {
				continue
			}

			cell, err := excelize.CoordinatesToCellName(col+1, r+1)
			if err != nil {
				return err
			}
			styleID, err := f.GetCellStyle(sheet, cell)
			if err != nil {
				return err
			}
			isDate, ok := dateStyles[styleID]
			if !ok {
				isDate = isDateStyle(f, styleID)
				dateStyles[styleID] = isDate
			}
			if !isDate {
				continue
			}

			t, err := excelize.ExcelDateToTime(serial, date1904)
			if err != nil {
				continue
			}
			// Excel stores times to the millisecond
			row[col] = t.Round(time.Millisecond).Format(cellTimeLayout)
		}
	}

	return nil
}

// isDateStyle reports whether a cell style formats numbers as a date or time
func isDateStyle(f *excelize.File, styleID int) bool {
	if styleID == 0 {
		return false
	}
	style, err := f.GetStyle(styleID)
	if err != nil || style == nil {
		return false
	}
	if style.CustomNumFmt != nil {
		return isDateFormatCode(*style.CustomNumFmt)
	}
	return isBuiltInDateFormat(style.NumFmt)
}

// isBuiltInDateFormat reports whether a built-in number format ID is a date or time format
func isBuiltInDateFormat(id int) bool {
	switch {
	case id >= 14 && id <= 22:
		return true
	case id >= 27 && id <= 36:
		return true
	case id >= 45 && id <= 47:
		return true
	case id >= 50 && id <= 58:
		return true
	}
	return false
}

// isDateFormatCode reports whether a custom number format contains date or time
// tokens outside quoted literals, escapes and bracketed sections
func isDateFormatCode(code string) bool {
	inQuote, inBracket := false, false
	for i := 0; i < len(code); i++ {
		ch := code[i]
		switch {
		case inQuote:
			inQuote = ch != '"'
		case inBracket:
			inBracket = ch != ']'
		case ch == '"':
			inQuote = true
		case ch == '[':
			inBracket = true
		case ch == '\\':
			i++
		case strings.IndexByte("ymdhsYMDHS", ch) >= 0:
			return true
		}
	}
	return false
}

// ParseReadingRows tries every pair of adjacent columns as (timestamp, value)
// for every row. Cells that are not a timestamp or not numeric are skipped and
// counted as rejected.
func ParseReadingRows(rows [][]string) ([]Reading, int) {
	width := 0
	for _, row := range rows {
		width = max(width, len(row))
	}

	var readings []Reading
	rejected := 0
	for col := 0; col < width-1; col++ {
		for _, row := range rows {
			timeCell := cellAt(row, col)
			valueCell := cellAt(row, col+1)
			if timeCell == "" && valueCell == "" {
				continue
			}

			timestamp, ok := parseTimestamp(timeCell)
			if !ok {
				rejected++
				continue
			}
			value, ok := parseNumber(valueCell)
			if !ok {
				rejected++
				continue
			}

			readings = append(readings, Reading{Timestamp: timestamp, Value: value})
		}
	}

	return readings, rejected
}

// ParseProductionRows reads the three-row production layout. Missing or non
// numeric cells become NaN and are dropped later by BuildRegressionSamples.
func ParseProductionRows(rows [][]string) ([]ProductionRow, error) {
	if len(rows) < 3 {
		return nil, &MissingDataError{
			Field:   "power_index",
			Message: "expected period, production and power index rows",
		}
	}

	width := max(len(rows[0]), len(rows[1]), len(rows[2]))
	production := make([]ProductionRow, 0, width)
	for col := 1; col < width; col++ {
		row := ProductionRow{
			Period:     strings.TrimSpace(cellAt(rows[0], col)),
			Production: math.NaN(),
			PowerIndex: math.NaN(),
		}
		if v, ok := parseNumber(cellAt(rows[1], col)); ok {
			row.Production = v
		}
		if v, ok := parseNumber(cellAt(rows[2], col)); ok {
			row.PowerIndex = v
		}
		production = append(production, row)
	}

	return production, nil
}

func cellAt(row []string, col int) string {
	if col < len(row) {
		return strings.TrimSpace(row[col])
	}
	return ""
}

// parseTimestamp accepts textual timestamps only; bare numbers are meter
// values, not dates
func parseTimestamp(cell string) (time.Time, bool) {
	if cell == "" {
		return time.Time{}, false
	}
	if _, ok := parseNumber(cell); ok {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, cell); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseNumber(cell string) (float64, bool) {
	if cell == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(cell, ",", ""), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
