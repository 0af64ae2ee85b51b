package md

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"smabt/internal/backtest"
)

// CSVSource reads <dir>/<SYMBOL>.csv files with a header row naming a date
// (or time) column and a close column.
type CSVSource struct {
	Dir string
}

func NewCSVSource(dir string) *CSVSource {
	return &CSVSource{Dir: dir}
}

func (s *CSVSource) Fetch(ctx context.Context, symbol string, start, end time.Time) (backtest.PriceSeries, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(s.Dir, strings.ToUpper(symbol)+".csv")
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", symbol, ErrEmptyResult)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	points, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	inWindow := points[:0]
	for _, p := range points {
		if inRange(p.Time, start, end) {
			inWindow = append(inWindow, p)
		}
	}
	series := Clean(inWindow)
	if len(series) == 0 {
		return nil, fmt.Errorf("%s %s..%s: %w", symbol, start.Format(time.DateOnly), end.Format(time.DateOnly), ErrEmptyResult)
	}
	return series, nil
}

// ReadCSV parses price rows. Rows with a blank or non-numeric close are
// kept as NaN so Clean drops them; an unparsable date is an error.
func ReadCSV(r io.Reader) ([]backtest.PricePoint, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	timeCol, closeCol := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "date", "time", "timestamp", "datetime":
			timeCol = i
		case "close":
			if closeCol == -1 {
				closeCol = i
			}
		case "adj close", "adj_close":
			closeCol = i
		}
	}
	if timeCol == -1 || closeCol == -1 {
		return nil, fmt.Errorf("header %v needs a date and a close column", header)
	}

	var points []backtest.PricePoint
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if timeCol >= len(row) {
			continue
		}
		ts, err := parseTime(row[timeCol])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		closePrice := math.NaN()
		if closeCol < len(row) {
			if v, err := strconv.ParseFloat(strings.TrimSpace(row[closeCol]), 64); err == nil {
				closePrice = v
			}
		}
		points = append(points, backtest.PricePoint{Time: ts, Close: closePrice})
	}
	return points, nil
}

func parseTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range []string{time.DateOnly, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", value)
}
