package flakeanalyticsapi

import (
	"strings"
	"time"

	"k8s.io/apimachinery/pkg/util/sets"
)

// failureStatuses are the lower-cased statuses counted as failed runs.
var failureStatuses = sets.New[string]("failed", "error", "flake", "flaky")

// IsFailureStatus reports whether a run status counts as a failure for rate purposes.
func IsFailureStatus(status string) bool {
	return failureStatuses.Has(strings.ToLower(status))
}

// RunRecord is one execution of one test. Optional metadata is the empty string
// when the source had no value for it.
type RunRecord struct {
	TestName   string    `json:"test_name"`
	ExecutedAt time.Time `json:"executed_at"`
	Status     string    `json:"status"`
	// Failed is only meaningful when the dataset schema carries ColumnFailed.
	Failed bool `json:"failed,omitempty"`

	FailureReason  string `json:"failure_reason,omitempty"`
	StackTraceHash string `json:"stack_trace_hash,omitempty"`
	ErrorCode      string `json:"error_code,omitempty"`

	Platform string `json:"platform,omitempty"`
	Team     string `json:"team,omitempty"`
	RunID    string `json:"run_id,omitempty"`
	RunURL   string `json:"run_url,omitempty"`
	LogPath  string `json:"log_path,omitempty"`
}

// RunDataset is a run history together with the columns its source provided.
// Records are owned by the caller; operations never modify them.
type RunDataset struct {
	Schema  Schema
	Records []RunRecord
}

// WithFailureFlag returns a new dataset whose records carry Failed derived from
// their status. The receiver is left untouched.
func (d RunDataset) WithFailureFlag() RunDataset {
	records := make([]RunRecord, len(d.Records))
	for i, record := range d.Records {
		record.Failed = IsFailureStatus(record.Status)
		records[i] = record
	}
	return RunDataset{
		Schema:  d.Schema.With(ColumnFailed),
		Records: records,
	}
}

// FailedRecords returns copies of the records flagged as failed, in input order.
func (d RunDataset) FailedRecords() []RunRecord {
	var ret []RunRecord
	for _, record := range d.Records {
		if record.Failed {
			ret = append(ret, record)
		}
	}
	return ret
}
