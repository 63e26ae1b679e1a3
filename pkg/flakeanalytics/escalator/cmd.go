package escalator

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"k8s.io/utils/clock"

	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/escalation"
	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/flakeanalyticslib"
	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/groupstore"
)

const defaultResolveAfter = 7 * 24 * time.Hour

type EscalateFlags struct {
	Jira *escalation.JiraFlags

	GroupStorePath string
	ResolveAfter   time.Duration
}

func NewEscalateFlags() *EscalateFlags {
	return &EscalateFlags{
		Jira:         escalation.NewJiraFlags(),
		ResolveAfter: defaultResolveAfter,
	}
}

func (f *EscalateFlags) BindFlags(fs *pflag.FlagSet) {
	f.Jira.BindFlags(fs)

	fs.StringVar(&f.GroupStorePath, "group-store", f.GroupStorePath, "SQLite database written by compute-metrics --group-store")
	fs.DurationVar(&f.ResolveAfter, "resolve-after", f.ResolveAfter, "groups not observed for this long are marked resolved; 0 disables resolution")
}

func NewEscalateCommand() *cobra.Command {
	f := NewEscalateFlags()

	cmd := &cobra.Command{
		Use: "escalate",
		Long: `File Jira tickets for root-cause groups that stayed unresolved past the SLA.

Groups come from the registry compute-metrics maintains. Groups that were not
observed for --resolve-after are resolved first; ticket references are stored
back in the registry so every group is filed at most once.`,
		Example: `./flake-analytics escalate --group-store=groups.db --jira-endpoint=https://issues.example.com --jira-username=bot --jira-password-file=/etc/jira/token`,

		SilenceUsage: true,

		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			if err := f.Validate(); err != nil {
				logrus.WithError(err).Fatal("Flags are invalid")
			}
			o, err := f.ToOptions(ctx)
			if err != nil {
				logrus.WithError(err).Fatal("Failed to build runtime options")
			}
			defer o.Close()

			if err := o.Run(ctx); err != nil {
				logrus.WithError(err).Fatal("Command failed")
			}

			return nil
		},

		Args: flakeanalyticslib.NoArgs,
	}

	f.BindFlags(cmd.Flags())

	return cmd
}

// Validate checks to see if the user-input is likely to produce functional runtime options
func (f *EscalateFlags) Validate() error {
	if len(f.GroupStorePath) == 0 {
		return fmt.Errorf("missing --group-store")
	}
	if !f.Jira.Configured() {
		return fmt.Errorf("missing --jira-endpoint")
	}
	if f.ResolveAfter < 0 {
		return fmt.Errorf("--resolve-after must not be negative")
	}
	return f.Jira.Validate()
}

func (f *EscalateFlags) ToOptions(ctx context.Context) (*EscalateOptions, error) {
	realClock := clock.RealClock{}
	escalator, err := f.Jira.ToEscalator(realClock, logrus.WithField("component", "escalation"))
	if err != nil {
		return nil, err
	}
	store, err := groupstore.Open(ctx, f.GroupStorePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open group store %s: %w", f.GroupStorePath, err)
	}
	return &EscalateOptions{
		store:        store,
		escalator:    escalator,
		clock:        realClock,
		resolveAfter: f.ResolveAfter,
	}, nil
}
