package flakeanalyticsapi

import (
	"fmt"
	"sort"
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"
)

// Column names a field of a run-history dataset.
type Column string

const (
	ColumnTestName       Column = "test_name"
	ColumnExecutedAt     Column = "executed_at"
	ColumnStatus         Column = "status"
	ColumnFailed         Column = "failed"
	ColumnFailureReason  Column = "failure_reason"
	ColumnStackTraceHash Column = "stack_trace_hash"
	ColumnErrorCode      Column = "error_code"
	ColumnPlatform       Column = "platform"
	ColumnTeam           Column = "team"
	ColumnRunID          Column = "run_id"
	ColumnRunURL         Column = "run_url"
	ColumnLogPath        Column = "log_path"
)

// RootCauseColumns are hashed, in this order, into a failure signature.
var RootCauseColumns = []Column{ColumnFailureReason, ColumnStackTraceHash, ColumnErrorCode}

// KnownColumns lists every column a RunRecord can carry.
var KnownColumns = []Column{
	ColumnTestName,
	ColumnExecutedAt,
	ColumnStatus,
	ColumnFailed,
	ColumnFailureReason,
	ColumnStackTraceHash,
	ColumnErrorCode,
	ColumnPlatform,
	ColumnTeam,
	ColumnRunID,
	ColumnRunURL,
	ColumnLogPath,
}

// Schema records which columns are structurally present in a dataset. A column
// that is present may still hold empty values on individual records.
type Schema struct {
	columns sets.Set[Column]
}

func NewSchema(columns ...Column) Schema {
	return Schema{columns: sets.New[Column](columns...)}
}

// FullSchema has every known column except the derived failed flag.
func FullSchema() Schema {
	s := NewSchema(KnownColumns...)
	s.columns.Delete(ColumnFailed)
	return s
}

func (s Schema) Has(column Column) bool {
	return s.columns != nil && s.columns.Has(column)
}

// With returns a copy of the schema that also carries the given columns.
func (s Schema) With(columns ...Column) Schema {
	ret := sets.New[Column](columns...)
	if s.columns != nil {
		ret = ret.Union(s.columns)
	}
	return Schema{columns: ret}
}

func (s Schema) Columns() []Column {
	if s.columns == nil {
		return nil
	}
	ret := s.columns.UnsortedList()
	sort.Slice(ret, func(i, j int) bool { return ret[i] < ret[j] })
	return ret
}

// Require returns a MissingColumnsError naming every absent column, or nil.
func (s Schema) Require(operation string, columns ...Column) error {
	var missing []Column
	for _, column := range columns {
		if !s.Has(column) {
			missing = append(missing, column)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	return &MissingColumnsError{Operation: operation, Columns: missing}
}

// MissingColumnsError is returned when a dataset lacks a column an operation
// requires. Empty values on individual records never produce it.
type MissingColumnsError struct {
	Operation string
	Columns   []Column
}

func (e *MissingColumnsError) Error() string {
	names := make([]string, 0, len(e.Columns))
	for _, column := range e.Columns {
		names = append(names, string(column))
	}
	return fmt.Sprintf("missing required columns for %s: %s", e.Operation, strings.Join(names, ", "))
}
