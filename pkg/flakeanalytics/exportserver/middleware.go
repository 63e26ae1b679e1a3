package exportserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	uuid "github.com/satori/go.uuid"
	"github.com/sirupsen/logrus"
)

// traceResponseWriter captures the status code and body size of a response.
type traceResponseWriter struct {
	http.ResponseWriter
	wroteHeader bool
	statusCode  int
	size        int
}

func (w *traceResponseWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.statusCode = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *traceResponseWriter) Write(data []byte) (int, error) {
	w.wroteHeader = true
	size, err := w.ResponseWriter.Write(data)
	w.size += size
	return size, err
}

var (
	requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "flake_analytics_http_request_duration_seconds",
		Help:    "http request duration in seconds",
		Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
	}, []string{"method", "path", "status"})

	responseSize = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "flake_analytics_http_response_size_bytes",
		Help:    "http response size in bytes",
		Buckets: []float64{256, 512, 1024, 2048, 4096, 8192, 16384, 32768, 65536, 131072},
	}, []string{"method", "path", "status"})
)

func init() {
	// Must happen in init(), otherwise running unittests with count > 1 fails
	// due to duplicate registration
	prometheus.MustRegister(requestDuration)
	prometheus.MustRegister(responseSize)
}

type handler func(*logrus.Entry, http.ResponseWriter, *http.Request, httprouter.Params)

// instrumentedRouter registers handlers with per-request logging and metrics,
// labelled by the route pattern rather than the requested path.
type instrumentedRouter struct {
	*httprouter.Router
	logger    *logrus.Entry
	timeSince func(time.Time) time.Duration
}

func newInstrumentedRouter(logger *logrus.Entry) *instrumentedRouter {
	return &instrumentedRouter{
		Router:    httprouter.New(),
		logger:    logger,
		timeSince: time.Since,
	}
}

func (ir *instrumentedRouter) wrap(method, path string, upstream handler) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		logger := ir.logger.WithFields(logrus.Fields{"UID": uuid.NewV1().String(), "path": r.URL.Path, "method": r.Method})
		trw := &traceResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		start := time.Now()
		upstream(logger, trw, r, p)
		latency := ir.timeSince(start)

		status := strconv.Itoa(trw.statusCode)
		requestDuration.WithLabelValues(method, path, status).Observe(latency.Seconds())
		responseSize.WithLabelValues(method, path, status).Observe(float64(trw.size))

		logger = logger.WithFields(logrus.Fields{"status": trw.statusCode, "duration": latency.String()})
		logFunc := logger.Debug
		if trw.statusCode > 499 {
			logFunc = logger.Error
		}
		logFunc("responded")
	}
}

func (ir *instrumentedRouter) GET(path string, upstream handler) {
	ir.Router.GET(path, ir.wrap(http.MethodGet, path, upstream))
}

func (ir *instrumentedRouter) POST(path string, upstream handler) {
	ir.Router.POST(path, ir.wrap(http.MethodPost, path, upstream))
}
