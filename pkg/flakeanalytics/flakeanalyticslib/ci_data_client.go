package flakeanalyticslib

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/flakeanalyticsapi"
)

// CIDataClient reads run history and weekly aggregates from BigQuery.
type CIDataClient interface {
	// ListRunRecordsSince returns every run executed at or after since. The
	// dataset carries every run-history column; absent values are empty.
	ListRunRecordsSince(ctx context.Context, since time.Time) (flakeanalyticsapi.RunDataset, error)

	// ListWeeklyFlakeSamples aggregates runs executed at or after since into ISO
	// weeks, in chronological order.
	ListWeeklyFlakeSamples(ctx context.Context, since time.Time) ([]flakeanalyticsapi.WeeklyFlakeSample, error)
}

type ciDataClient struct {
	dataCoordinates BigQueryDataCoordinates
	client          *bigquery.Client
}

func NewCIDataClient(dataCoordinates BigQueryDataCoordinates, client *bigquery.Client) CIDataClient {
	return &ciDataClient{
		dataCoordinates: dataCoordinates,
		client:          client,
	}
}

func (c *ciDataClient) ListRunRecordsSince(ctx context.Context, since time.Time) (flakeanalyticsapi.RunDataset, error) {
	queryString := c.dataCoordinates.SubstituteDataSetLocation(
		`SELECT *
FROM DATA_SET_LOCATION.` + flakeanalyticsapi.RunRecordsTableName + `
WHERE executed_at >= @Since
ORDER BY executed_at ASC
`)

	query := c.client.Query(queryString)
	query.QueryConfig.Parameters = []bigquery.QueryParameter{
		{Name: "Since", Value: since},
	}
	rows, err := query.Read(ctx)
	if err != nil {
		return flakeanalyticsapi.RunDataset{}, fmt.Errorf("failed to query run records with %q: %w", queryString, err)
	}
	ret := flakeanalyticsapi.RunDataset{Schema: flakeanalyticsapi.FullSchema()}
	for {
		row := &flakeanalyticsapi.RunRecordRow{}
		err = rows.Next(row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return flakeanalyticsapi.RunDataset{}, err
		}
		ret.Records = append(ret.Records, row.ToRunRecord())
	}

	return ret, nil
}

func (c *ciDataClient) ListWeeklyFlakeSamples(ctx context.Context, since time.Time) ([]flakeanalyticsapi.WeeklyFlakeSample, error) {
	queryString := c.dataCoordinates.SubstituteDataSetLocation(
		`SELECT
  TIMESTAMP(DATE_TRUNC(DATE(executed_at), ISOWEEK)) AS week_start,
  COUNT(*) AS test_runs,
  COUNTIF(LOWER(status) IN ('failed', 'error', 'flake', 'flaky')) AS flake_failures
FROM DATA_SET_LOCATION.` + flakeanalyticsapi.RunRecordsTableName + `
WHERE executed_at >= @Since
GROUP BY week_start
ORDER BY week_start ASC
`)

	query := c.client.Query(queryString)
	query.QueryConfig.Parameters = []bigquery.QueryParameter{
		{Name: "Since", Value: since},
	}
	rows, err := query.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query weekly samples with %q: %w", queryString, err)
	}
	ret := []flakeanalyticsapi.WeeklyFlakeSample{}
	for {
		row := &flakeanalyticsapi.WeeklyFlakeSampleRow{}
		err = rows.Next(row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		ret = append(ret, row.ToSample())
	}

	return ret, nil
}
