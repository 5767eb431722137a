package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

var (
	// Audit is the structured moderation audit logger; the event worker
	// writes every moderation outcome through it.
	Audit *zap.Logger

	floodActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flood_actions_total",
			Help: "Total number of flood control actions taken",
		},
		[]string{"mode"},
	)

	challengeOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "challenge_outcomes_total",
			Help: "Total number of captcha challenge outcomes",
		},
		[]string{"outcome"},
	)

	fedActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "federation_actions_total",
			Help: "Total number of federation-wide ban/unban chat attempts",
		},
		[]string{"action", "result"},
	)

	warnEscalationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "warn_escalations_total",
			Help: "Total number of warning-threshold escalation bans",
		},
	)
)

func Init(ctx context.Context, metricsAddr string) error {
	var err error
	Audit, err = zap.NewProduction()
	if err != nil {
		return err
	}

	prometheus.MustRegister(floodActionsTotal)
	prometheus.MustRegister(challengeOutcomesTotal)
	prometheus.MustRegister(fedActionsTotal)
	prometheus.MustRegister(warnEscalationsTotal)

	tp := trace.NewTracerProvider()
	otel.SetTracerProvider(tp)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			log.WithError(err).Error("metrics server failed")
		}
	}()

	return nil
}

func RecordFloodAction(mode string) {
	floodActionsTotal.WithLabelValues(mode).Inc()
}

func RecordChallengeOutcome(outcome string) {
	challengeOutcomesTotal.WithLabelValues(outcome).Inc()
}

func RecordFedAction(action string, succeeded bool) {
	result := "ok"
	if !succeeded {
		result = "failed"
	}
	fedActionsTotal.WithLabelValues(action, result).Inc()
}

func RecordWarnEscalation() {
	warnEscalationsTotal.Inc()
}
