package flakeanalyticslib

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/util/retry"

	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/flakeanalyticsapi"
)

type retryingCIDataClient struct {
	delegate CIDataClient
	backoff  wait.Backoff
}

var _ CIDataClient = &retryingCIDataClient{}

func NewRetryingCIDataClient(delegate CIDataClient) CIDataClient {
	return &retryingCIDataClient{
		delegate: delegate,
		backoff:  slowBackoff,
	}
}

func (c *retryingCIDataClient) ListRunRecordsSince(ctx context.Context, since time.Time) (flakeanalyticsapi.RunDataset, error) {
	var ret flakeanalyticsapi.RunDataset
	err := retry.OnError(c.backoff, isReadQuotaError, func() error {
		var innerErr error
		ret, innerErr = c.delegate.ListRunRecordsSince(ctx, since)
		return innerErr
	})
	return ret, err
}

func (c *retryingCIDataClient) ListWeeklyFlakeSamples(ctx context.Context, since time.Time) ([]flakeanalyticsapi.WeeklyFlakeSample, error) {
	var ret []flakeanalyticsapi.WeeklyFlakeSample
	err := retry.OnError(c.backoff, isReadQuotaError, func() error {
		var innerErr error
		ret, innerErr = c.delegate.ListWeeklyFlakeSamples(ctx, since)
		return innerErr
	})
	return ret, err
}

var slowBackoff = wait.Backoff{
	Steps:    4,
	Duration: 10 * time.Second,
	Factor:   2.0,
	Jitter:   0.1,
	Cap:      200 * time.Second,
}

func isReadQuotaError(err error) bool {
	if err == nil {
		return false
	}
	if strings.Contains(err.Error(), "exceeded quota for concurrent queries") {
		logrus.WithError(err).Warn("hit a read quota error")
		return true
	}
	return false
}
