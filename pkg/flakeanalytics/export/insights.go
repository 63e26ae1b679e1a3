package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/flakeanalyticsapi"
)

// WriteInsightsCSV writes one row per insight, in the given order. Floats are
// rounded to six decimals, missing values are empty and anomalies are 0/1.
func WriteInsightsCSV(w io.Writer, insights []flakeanalyticsapi.WeeklyFlakeInsight) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(flakeanalyticsapi.WeeklyFlakeInsightColumns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, insight := range insights {
		row := []string{
			insight.WeekStart.UTC().Format(dateLayout),
			strconv.Itoa(insight.TestRuns),
			strconv.Itoa(insight.FlakeFailures),
			formatFloat(insight.FlakeRate),
			formatOptionalFloat(insight.WowDelta),
			formatOptionalFloat(insight.ZScore),
			formatBool(insight.IsAnomalous),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write week %s: %w", row[0], err)
		}
	}
	writer.Flush()
	return writer.Error()
}

type insightDocument struct {
	WeekStart     string     `json:"week_start"`
	TestRuns      int        `json:"test_runs"`
	FlakeFailures int        `json:"flake_failures"`
	FlakeRate     jsonFloat  `json:"flake_rate"`
	WowDelta      *jsonFloat `json:"wow_delta"`
	ZScore        *jsonFloat `json:"z_score"`
	IsAnomalous   bool       `json:"is_anomalous"`
}

func insightDocuments(insights []flakeanalyticsapi.WeeklyFlakeInsight) []insightDocument {
	documents := make([]insightDocument, 0, len(insights))
	for _, insight := range insights {
		documents = append(documents, insightDocument{
			WeekStart:     insight.WeekStart.UTC().Format(dateLayout),
			TestRuns:      insight.TestRuns,
			FlakeFailures: insight.FlakeFailures,
			FlakeRate:     jsonFloat(insight.FlakeRate),
			WowDelta:      optionalJSONFloat(insight.WowDelta),
			ZScore:        optionalJSONFloat(insight.ZScore),
			IsAnomalous:   insight.IsAnomalous,
		})
	}
	return documents
}

// WriteInsightsJSON writes the insights as a JSON array. Missing values are
// null and an infinite week-over-week delta is the string "Infinity".
func WriteInsightsJSON(w io.Writer, insights []flakeanalyticsapi.WeeklyFlakeInsight) error {
	return writeJSON(w, insightDocuments(insights))
}

func writeJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode json: %w", err)
	}
	return nil
}
