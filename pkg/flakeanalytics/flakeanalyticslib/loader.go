package flakeanalyticslib

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/flakeanalyticsapi"
)

// timestampLayouts are tried in order; layouts without a zone are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as a timestamp", value)
}

// LoadRunDataset reads a run history from a .csv, .json (array of objects) or
// .ndjson (one object per line) file. The schema holds the columns the file
// provided; a history without executed_at is rejected.
func LoadRunDataset(fs afero.Fs, path string) (flakeanalyticsapi.RunDataset, error) {
	var load func(io.Reader) ([]string, []map[string]string, error)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		load = readCSV
	case ".json":
		load = readJSONArray
	case ".ndjson", ".jsonl":
		load = readNDJSON
	default:
		return flakeanalyticsapi.RunDataset{}, fmt.Errorf("unsupported run history format %q for %s", ext, path)
	}

	f, err := fs.Open(path)
	if err != nil {
		return flakeanalyticsapi.RunDataset{}, fmt.Errorf("failed to open run history: %w", err)
	}
	defer f.Close()

	columns, rows, err := load(f)
	if err != nil {
		return flakeanalyticsapi.RunDataset{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	dataset, err := toDataset(columns, rows)
	if err != nil {
		return flakeanalyticsapi.RunDataset{}, fmt.Errorf("invalid run history %s: %w", path, err)
	}
	return dataset, nil
}

func toDataset(columns []string, rows []map[string]string) (flakeanalyticsapi.RunDataset, error) {
	known := map[string]flakeanalyticsapi.Column{}
	for _, column := range flakeanalyticsapi.KnownColumns {
		if column != flakeanalyticsapi.ColumnFailed {
			known[string(column)] = column
		}
	}
	var present []flakeanalyticsapi.Column
	for _, name := range columns {
		if column, ok := known[strings.TrimSpace(name)]; ok {
			present = append(present, column)
		}
	}
	schema := flakeanalyticsapi.NewSchema(present...)
	if err := schema.Require("loading run history", flakeanalyticsapi.ColumnExecutedAt); err != nil {
		return flakeanalyticsapi.RunDataset{}, err
	}

	records := make([]flakeanalyticsapi.RunRecord, 0, len(rows))
	for i, row := range rows {
		executedAt, err := ParseTimestamp(row[string(flakeanalyticsapi.ColumnExecutedAt)])
		if err != nil {
			return flakeanalyticsapi.RunDataset{}, fmt.Errorf("row %d: %w", i+1, err)
		}
		records = append(records, flakeanalyticsapi.RunRecord{
			TestName:       row[string(flakeanalyticsapi.ColumnTestName)],
			ExecutedAt:     executedAt,
			Status:         row[string(flakeanalyticsapi.ColumnStatus)],
			FailureReason:  row[string(flakeanalyticsapi.ColumnFailureReason)],
			StackTraceHash: row[string(flakeanalyticsapi.ColumnStackTraceHash)],
			ErrorCode:      row[string(flakeanalyticsapi.ColumnErrorCode)],
			Platform:       row[string(flakeanalyticsapi.ColumnPlatform)],
			Team:           row[string(flakeanalyticsapi.ColumnTeam)],
			RunID:          row[string(flakeanalyticsapi.ColumnRunID)],
			RunURL:         row[string(flakeanalyticsapi.ColumnRunURL)],
			LogPath:        row[string(flakeanalyticsapi.ColumnLogPath)],
		})
	}
	return flakeanalyticsapi.RunDataset{Schema: schema, Records: records}, nil
}

func readCSV(r io.Reader) ([]string, []map[string]string, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, errors.New("file is empty")
	}
	if err != nil {
		return nil, nil, err
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	var rows []map[string]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		row := make(map[string]string, len(header))
		for i, name := range header {
			row[name] = record[i]
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

func readJSONArray(r io.Reader) ([]string, []map[string]string, error) {
	var objects []map[string]interface{}
	if err := json.NewDecoder(r).Decode(&objects); err != nil {
		return nil, nil, fmt.Errorf("expected a JSON array of objects: %w", err)
	}
	return fromObjects(objects)
}

func readNDJSON(r io.Reader) ([]string, []map[string]string, error) {
	var objects []map[string]interface{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		object := map[string]interface{}{}
		if err := json.Unmarshal(raw, &object); err != nil {
			return nil, nil, fmt.Errorf("line %d: %w", line, err)
		}
		objects = append(objects, object)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}
	return fromObjects(objects)
}

// fromObjects flattens JSON objects to strings; null becomes the empty string.
// The columns are the union of every object's keys.
func fromObjects(objects []map[string]interface{}) ([]string, []map[string]string, error) {
	seen := map[string]bool{}
	var columns []string
	rows := make([]map[string]string, 0, len(objects))
	for _, object := range objects {
		row := make(map[string]string, len(object))
		for key, value := range object {
			if !seen[key] {
				seen[key] = true
				columns = append(columns, key)
			}
			switch v := value.(type) {
			case nil:
				row[key] = ""
			case string:
				row[key] = v
			case float64:
				row[key] = strconv.FormatFloat(v, 'f', -1, 64)
			case bool:
				row[key] = strconv.FormatBool(v)
			default:
				return nil, nil, fmt.Errorf("unsupported value for %q: %v", key, value)
			}
		}
		rows = append(rows, row)
	}
	return columns, rows, nil
}
