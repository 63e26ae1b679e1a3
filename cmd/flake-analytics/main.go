// flake-analytics computes per-test flake metrics, root-cause failure groups and
// weekly flake insights from CI run history, and alerts and escalates on them.
package main

import (
	goflag "flag"
	"os"

	"github.com/spf13/pflag"

	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics"
)

func main() {
	cmd := flakeanalytics.NewFlakeAnalyticsCommand()
	pflag.CommandLine.AddGoFlagSet(goflag.CommandLine)

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
