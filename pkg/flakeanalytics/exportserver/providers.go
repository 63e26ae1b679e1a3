package exportserver

import (
	"context"
	"fmt"

	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/flakeanalyticsapi"
	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/flakemetrics"
	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/weeklyinsights"
)

// DatasetLoader returns the run history the exports are computed from.
type DatasetLoader func(ctx context.Context) (flakeanalyticsapi.RunDataset, error)

// DatasetProvider recomputes every export from a freshly loaded run history.
type DatasetProvider struct {
	Load            DatasetLoader
	ZScoreThreshold float64
}

var _ InsightsProvider = &DatasetProvider{}
var _ EngineOutputsProvider = &DatasetProvider{}

func (p *DatasetProvider) WeeklyInsights(ctx context.Context) ([]flakeanalyticsapi.WeeklyFlakeInsight, error) {
	dataset, err := p.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load run history: %w", err)
	}
	samples, err := weeklyinsights.AggregateWeeklySamples(dataset)
	if err != nil {
		return nil, err
	}
	return weeklyinsights.EnrichWeeklySamples(samples, p.ZScoreThreshold), nil
}

func (p *DatasetProvider) EngineOutputs(ctx context.Context) (flakeanalyticsapi.EngineOutputs, error) {
	dataset, err := p.Load(ctx)
	if err != nil {
		return flakeanalyticsapi.EngineOutputs{}, fmt.Errorf("failed to load run history: %w", err)
	}
	return flakemetrics.ComputeEngineOutputs(dataset)
}
