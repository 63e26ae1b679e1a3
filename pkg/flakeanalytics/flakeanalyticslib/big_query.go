package flakeanalyticslib

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"reflect"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/spf13/pflag"

	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/flakeanalyticsapi"
)

const (
	BigQueryProjectID = "openshift-ci-data-analysis"
	FlakeDataSetID    = "flake_analytics"
)

type BigQueryDataCoordinates struct {
	ProjectID string
	DataSetID string
}

func NewBigQueryDataCoordinates() *BigQueryDataCoordinates {
	return &BigQueryDataCoordinates{
		ProjectID: BigQueryProjectID,
		DataSetID: FlakeDataSetID,
	}
}

func (f *BigQueryDataCoordinates) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&f.ProjectID, "google-project-id", f.ProjectID, "project ID where data is stored")
	fs.StringVar(&f.DataSetID, "bigquery-dataset", f.DataSetID, "bigquery dataset where data is stored")
}

func (f *BigQueryDataCoordinates) Validate() error {
	if len(f.ProjectID) == 0 {
		return fmt.Errorf("--google-project-id must be specified")
	}
	if len(f.DataSetID) == 0 {
		return fmt.Errorf("--bigquery-dataset must be specified")
	}
	return nil
}

func (f *BigQueryDataCoordinates) SubstituteDataSetLocation(query string) string {
	return strings.ReplaceAll(query, "DATA_SET_LOCATION", f.ProjectID+"."+f.DataSetID)
}

type BigQueryInserter interface {
	Put(ctx context.Context, src interface{}) (err error)
}

// NewBigQueryInserter streams rows into a table of the coordinates' dataset.
func NewBigQueryInserter(client *bigquery.Client, coordinates BigQueryDataCoordinates, table string) BigQueryInserter {
	return client.Dataset(coordinates.DataSetID).Table(table).Inserter()
}

type dryRunInserter struct {
	table string
	out   io.Writer
}

func NewDryRunInserter(out io.Writer, table string) BigQueryInserter {
	return dryRunInserter{
		table: table,
		out:   out,
	}
}

func (d dryRunInserter) Put(ctx context.Context, src interface{}) (err error) {
	srcVal := reflect.ValueOf(src)
	if srcVal.Kind() != reflect.Slice {
		fmt.Fprintf(d.out, "INSERT into %v: %v\n", d.table, src)
		return
	}

	if srcVal.Len() == 0 {
		return
	}

	buf := &bytes.Buffer{}
	fmt.Fprintf(buf, "BULK INSERT into %v\n", d.table)
	for i := 0; i < srcVal.Len(); i++ {
		switch s := srcVal.Index(i).Interface().(type) {
		case *flakeanalyticsapi.PerTestFlakeMetricRow:
			fmt.Fprintf(buf, "\tINSERT into %v: test=%v, total=%v, failed=%v, flake_rate=%.6f\n", d.table, s.TestName, s.TotalRuns, s.FailedRuns, s.FlakeRate)

		case *flakeanalyticsapi.FailureGroupRow:
			fmt.Fprintf(buf, "\tINSERT into %v: group=%v, platform=%v, team=%v, failures=%v\n", d.table, s.RootCauseGroupID, s.Platform, s.Team, s.FailureCount)

		case *flakeanalyticsapi.FailureGroupRunRow:
			fmt.Fprintf(buf, "\tINSERT into %v: group=%v, test=%v, run=%v\n", d.table, s.RootCauseGroupID, s.TestName, s.RunID.StringVal)

		default:
			fmt.Fprintf(buf, "\tINSERT into %v: %#v\n", d.table, s)
		}
	}
	fmt.Fprint(d.out, buf.String())

	return nil
}
