// Package filesource replays readings stored in CSV or JSON files so they
// can be pushed through the same batching pipeline as a serial stream.
package filesource

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/NotCoffee418/telem_cli/pkg/types"
	"github.com/NotCoffee418/telem_cli/pkg/units"
)

type Format string

const (
	FormatAuto Format = ""
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

var ErrUnknownFormat = errors.New("unknown file format")

type FileSource struct {
	Path   string
	Format Format
	// Used for rows that carry only a value
	DefaultUnit *units.Unit
	Logger      *slog.Logger

	skipped int
}

// Skipped is the number of rows ignored as malformed during Stream.
func (s *FileSource) Skipped() int {
	return s.skipped
}

func (s *FileSource) Stream(ctx context.Context, out chan<- types.Reading) error {
	readings, err := s.Load()
	if err != nil {
		return err
	}
	for _, reading := range readings {
		select {
		case out <- reading:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Load parses the whole file.
func (s *FileSource) Load() ([]types.Reading, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s.skipped = 0
	switch s.format() {
	case FormatCSV:
		return s.parseCSV(f)
	case FormatJSON:
		return s.parseJSON(f)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, s.Format)
	}
}

func (s *FileSource) format() Format {
	if s.Format != FormatAuto {
		return Format(strings.ToLower(string(s.Format)))
	}
	switch strings.ToLower(filepath.Ext(s.Path)) {
	case ".csv", ".txt":
		return FormatCSV
	case ".json":
		return FormatJSON
	}
	return FormatAuto
}

func (s *FileSource) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// CSV rows are either `value` or `unit,value`. A header row simply fails
// to parse as a number and is skipped like any other malformed row.
func (s *FileSource) parseCSV(r io.Reader) ([]types.Reading, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var readings []types.Reading
	for row := 1; ; row++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", s.Path, err)
		}

		var unitField, valueField string
		switch len(record) {
		case 1:
			valueField = record[0]
		case 2:
			unitField, valueField = record[0], record[1]
		default:
			s.skip(row, "expected 1 or 2 columns")
			continue
		}

		value, ok := parseValue(valueField)
		if !ok {
			s.skip(row, "not a number")
			continue
		}
		unit, err := s.resolveUnit(strings.TrimSpace(unitField))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", s.Path, row, err)
		}
		readings = append(readings, types.Reading{Unit: unit.Symbol, Value: value})
	}
	return readings, nil
}

type jsonReading struct {
	Unit  string          `json:"unit"`
	Value json.RawMessage `json:"value"`
}

// JSON is either an array of readings or {"readings": [...]}.
func (s *FileSource) parseJSON(r io.Reader) ([]types.Reading, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var rows []jsonReading
	if err := json.Unmarshal(data, &rows); err != nil {
		var wrapped struct {
			Readings []jsonReading `json:"readings"`
		}
		if err2 := json.Unmarshal(data, &wrapped); err2 != nil {
			return nil, fmt.Errorf("decoding %s: %w", s.Path, err)
		}
		rows = wrapped.Readings
	}

	readings := make([]types.Reading, 0, len(rows))
	for i, row := range rows {
		value, ok := parseValue(strings.Trim(string(row.Value), `"`))
		if !ok {
			s.skip(i+1, "not a number")
			continue
		}
		unit, err := s.resolveUnit(row.Unit)
		if err != nil {
			return nil, fmt.Errorf("%s entry %d: %w", s.Path, i+1, err)
		}
		readings = append(readings, types.Reading{Unit: unit.Symbol, Value: value})
	}
	return readings, nil
}

func (s *FileSource) resolveUnit(nameOrSymbol string) (units.Unit, error) {
	if nameOrSymbol == "" {
		if s.DefaultUnit == nil {
			return units.Unit{}, fmt.Errorf("row has no unit and no default unit was given")
		}
		return *s.DefaultUnit, nil
	}
	return units.Resolve(nameOrSymbol)
}

func (s *FileSource) skip(row int, reason string) {
	s.skipped++
	s.logger().Debug("skipping row", "file", s.Path, "row", row, "reason", reason)
}

func parseValue(field string) (float64, bool) {
	value, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	return value, true
}
