package alerting

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	resultSuccess = "success"
	resultFailure = "failure"
)

var (
	notificationsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flake_analytics_notifications_total",
		Help: "The number of alert notifications sent, by channel and result",
	}, []string{"channel", "result"})

	evaluationsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flake_analytics_alert_evaluations_total",
		Help: "The number of weekly insight evaluations, by whether an alert fired",
	}, []string{"fired"})
)

func init() {
	prometheus.MustRegister(notificationsCounter)
	prometheus.MustRegister(evaluationsCounter)
}

func countDelivery(channel string, err error) {
	result := resultSuccess
	if err != nil {
		result = resultFailure
	}
	notificationsCounter.WithLabelValues(channel, result).Inc()
}
