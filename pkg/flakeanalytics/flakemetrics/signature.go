package flakemetrics

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"

	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/flakeanalyticsapi"
)

const signatureSeparator = "||"

// RootCauseSignature hashes the failure metadata of a run. Records with the same
// trimmed (reason, stack trace hash, error code) always share a signature; absent
// values hash as empty segments rather than being skipped.
func RootCauseSignature(record flakeanalyticsapi.RunRecord) string {
	signature := strings.Join([]string{
		strings.TrimSpace(record.FailureReason),
		strings.TrimSpace(record.StackTraceHash),
		strings.TrimSpace(record.ErrorCode),
	}, signatureSeparator)
	sum := sha1.Sum([]byte(signature))
	return hex.EncodeToString(sum[:])
}

// AssignRootCauseGroupIDs returns the signature of every record, index-aligned
// with dataset.Records.
func AssignRootCauseGroupIDs(dataset flakeanalyticsapi.RunDataset) ([]string, error) {
	if err := dataset.Schema.Require("root cause grouping", flakeanalyticsapi.RootCauseColumns...); err != nil {
		return nil, err
	}
	ret := make([]string, 0, len(dataset.Records))
	for _, record := range dataset.Records {
		ret = append(ret, RootCauseSignature(record))
	}
	return ret, nil
}
