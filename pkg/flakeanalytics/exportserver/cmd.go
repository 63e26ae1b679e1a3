package exportserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"k8s.io/utils/clock"

	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/escalation"
	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/flakeanalyticslib"
	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/groupstore"
	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/weeklyinsights"
)

const shutdownGracePeriod = 10 * time.Second

type ServeFlags struct {
	RunHistory *flakeanalyticslib.RunHistoryFlags
	Jira       *escalation.JiraFlags

	Address         string
	GroupStorePath  string
	ZScoreThreshold float64
}

func NewServeFlags() *ServeFlags {
	return &ServeFlags{
		RunHistory:      flakeanalyticslib.NewRunHistoryFlags(),
		Jira:            escalation.NewJiraFlags(),
		Address:         ":8080",
		ZScoreThreshold: weeklyinsights.DefaultZScoreThreshold,
	}
}

func (f *ServeFlags) BindFlags(fs *pflag.FlagSet) {
	f.RunHistory.BindFlags(fs)
	f.Jira.BindFlags(fs)

	fs.StringVar(&f.Address, "address", f.Address, "address the export server listens on")
	fs.StringVar(&f.GroupStorePath, "group-store", f.GroupStorePath, "SQLite database written by compute-metrics --group-store, required with --jira-endpoint")
	fs.Float64Var(&f.ZScoreThreshold, "zscore-threshold", f.ZScoreThreshold, "absolute Z-score from which a week is flagged as anomalous")
}

func NewServeCommand() *cobra.Command {
	f := NewServeFlags()

	cmd := &cobra.Command{
		Use: "serve",
		Long: `Serve weekly insights, per-test metrics and failure groups over HTTP.

Every request recomputes its export from the run history. With Jira configured,
POST /integrations/jira/ensure files tickets for groups past the SLA.`,
		Example: `./flake-analytics serve --input=runs.csv --address=:8080`,

		SilenceUsage: true,

		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

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
func (f *ServeFlags) Validate() error {
	if len(f.Address) == 0 {
		return fmt.Errorf("missing --address")
	}
	if f.Jira.Configured() && len(f.GroupStorePath) == 0 {
		return fmt.Errorf("--jira-endpoint requires --group-store")
	}
	if err := f.Jira.Validate(); err != nil {
		return err
	}
	return f.RunHistory.Validate()
}

func (f *ServeFlags) ToOptions(ctx context.Context) (*ServeOptions, error) {
	fs := afero.NewOsFs()
	realClock := clock.RealClock{}
	source, err := f.RunHistory.ToSource(ctx, fs, realClock)
	if err != nil {
		return nil, err
	}
	provider := &DatasetProvider{Load: source.LoadRunDataset, ZScoreThreshold: f.ZScoreThreshold}

	o := &ServeOptions{address: f.Address}
	var registry escalation.GroupRegistry
	var tickets escalation.TicketEnsurer
	if len(f.GroupStorePath) > 0 {
		store, err := groupstore.Open(ctx, f.GroupStorePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open group store %s: %w", f.GroupStorePath, err)
		}
		o.store = store
		registry = store
	}
	if f.Jira.Configured() {
		escalator, err := f.Jira.ToEscalator(realClock, logrus.WithField("component", "escalation"))
		if err != nil {
			o.Close()
			return nil, err
		}
		tickets = escalator
	}
	o.server = NewServer(provider, provider, registry, tickets, logrus.WithField("component", "export-server"))
	return o, nil
}

type ServeOptions struct {
	address string
	server  *Server
	store   *groupstore.Store
}

// Run serves until ctx is done and then shuts down gracefully.
func (o *ServeOptions) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              o.address,
		Handler:           o.server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errs := make(chan error, 1)
	go func() {
		logrus.WithField("address", o.address).Info("Serving exports.")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
		close(errs)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}

func (o *ServeOptions) Close() {
	if o.store == nil {
		return
	}
	if err := o.store.Close(); err != nil {
		logrus.WithError(err).Warn("Failed to close group store.")
	}
}
