package exportserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/escalation"
	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/export"
	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/flakeanalyticsapi"
)

// InsightsProvider supplies the enriched weekly insights served by the
// flake-metrics exports.
type InsightsProvider interface {
	WeeklyInsights(ctx context.Context) ([]flakeanalyticsapi.WeeklyFlakeInsight, error)
}

// EngineOutputsProvider supplies the per-test metrics and failure groups.
type EngineOutputsProvider interface {
	EngineOutputs(ctx context.Context) (flakeanalyticsapi.EngineOutputs, error)
}

type Server struct {
	insights InsightsProvider
	outputs  EngineOutputsProvider
	groups   escalation.GroupRegistry
	// tickets is nil when Jira is not configured
	tickets escalation.TicketEnsurer
	logger  *logrus.Entry
}

func NewServer(insights InsightsProvider, outputs EngineOutputsProvider, groups escalation.GroupRegistry, tickets escalation.TicketEnsurer, logger *logrus.Entry) *Server {
	return &Server{
		insights: insights,
		outputs:  outputs,
		groups:   groups,
		tickets:  tickets,
		logger:   logger,
	}
}

func (s *Server) Handler() http.Handler {
	router := newInstrumentedRouter(s.logger)
	router.GET("/healthz", healthHandler)
	router.GET("/exports/flake-metrics.csv", s.insightsHandler("text/csv", export.WriteInsightsCSV))
	router.GET("/exports/flake-metrics.json", s.insightsHandler("application/json", export.WriteInsightsJSON))
	router.GET("/exports/per-test-metrics.json", s.outputsHandler(func(w io.Writer, outputs flakeanalyticsapi.EngineOutputs) error {
		return export.WritePerTestMetricsJSON(w, outputs.PerTest)
	}))
	router.GET("/exports/failure-groups.json", s.outputsHandler(func(w io.Writer, outputs flakeanalyticsapi.EngineOutputs) error {
		return export.WriteFailureGroupsJSON(w, outputs.FailureGroups)
	}))
	router.POST("/integrations/jira/ensure", s.ensureJiraHandler)
	router.Router.Handler(http.MethodGet, "/metrics", promhttp.Handler())
	return router
}

func healthHandler(_ *logrus.Entry, w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) insightsHandler(contentType string, write func(io.Writer, []flakeanalyticsapi.WeeklyFlakeInsight) error) handler {
	return func(l *logrus.Entry, w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		insights, err := s.insights.WeeklyInsights(r.Context())
		if err != nil {
			l.WithError(err).Error("Failed to get weekly insights.")
			writeError(w, http.StatusInternalServerError, "failed to get weekly insights")
			return
		}
		respond(l, w, contentType, func(out io.Writer) error { return write(out, insights) })
	}
}

func (s *Server) outputsHandler(write func(io.Writer, flakeanalyticsapi.EngineOutputs) error) handler {
	return func(l *logrus.Entry, w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		outputs, err := s.outputs.EngineOutputs(r.Context())
		if err != nil {
			l.WithError(err).Error("Failed to get engine outputs.")
			writeError(w, http.StatusInternalServerError, "failed to get flake metrics")
			return
		}
		respond(l, w, "application/json", func(out io.Writer) error { return write(out, outputs) })
	}
}

type ensureResponse struct {
	Tickets []string `json:"tickets"`
}

func (s *Server) ensureJiraHandler(l *logrus.Entry, w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if s.tickets == nil {
		writeError(w, http.StatusBadRequest, "Jira integration not configured")
		return
	}
	tickets, err := escalation.EnsureRecordedTickets(r.Context(), s.groups, s.tickets)
	if err != nil {
		l.WithError(err).Error("Failed to ensure Jira tickets.")
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	response := ensureResponse{Tickets: []string{}}
	for _, ticket := range tickets {
		response.Tickets = append(response.Tickets, ticket.Key)
	}
	respond(l, w, "application/json", func(out io.Writer) error { return json.NewEncoder(out).Encode(response) })
}

// respond serializes the whole body before writing so a serialization failure
// can still be reported with a status code.
func respond(l *logrus.Entry, w http.ResponseWriter, contentType string, write func(io.Writer) error) {
	buf := &bytes.Buffer{}
	if err := write(buf); err != nil {
		l.WithError(err).Error("Failed to serialize response.")
		writeError(w, http.StatusInternalServerError, "failed to serialize response")
		return
	}
	w.Header().Set("Content-Type", contentType)
	if _, err := w.Write(buf.Bytes()); err != nil {
		l.WithError(err).Debug("Failed to write response.")
	}
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func writeError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Detail: detail})
}
