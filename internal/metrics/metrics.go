// Package metrics exports controller telemetry to Prometheus.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/teslashibe/handsfree/pkg/backoff"
	"github.com/teslashibe/handsfree/pkg/command"
	"github.com/teslashibe/handsfree/pkg/controller"
	"github.com/teslashibe/handsfree/pkg/engine"
)

const namespace = "handsfree"

// Recorder implements controller.Metrics on a Prometheus registerer.
type Recorder struct {
	transitions *prometheus.CounterVec
	state       *prometheus.GaugeVec
	errors      *prometheus.CounterVec
	retries     *prometheus.CounterVec
	retryDelay  prometheus.Histogram
	intents     *prometheus.CounterVec
	utterances  *prometheus.CounterVec
}

var _ controller.Metrics = (*Recorder)(nil)

var states = []controller.State{
	controller.StateIdle,
	controller.StateListening,
	controller.StateSpeaking,
	controller.StateErrorRecovery,
	controller.StateDisabled,
}

// New registers the handsfree collectors on reg.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)

	r := &Recorder{
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Controller state transitions.",
		}, []string{"from", "to"}),
		state: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "state",
			Help:      "1 for the current controller state, 0 otherwise.",
		}, []string{"state"}),
		errors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognition_errors_total",
			Help:      "Recognition errors by code and class.",
		}, []string{"code", "class"}),
		retries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_scheduled_total",
			Help:      "Recognition restarts scheduled, by attempt number.",
		}, []string{"attempt"}),
		retryDelay: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retry_delay_seconds",
			Help:      "Backoff delay before a recognition restart.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 8),
		}),
		intents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intents_total",
			Help:      "Voice commands dispatched by intent.",
		}, []string{"intent"}),
		utterances: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "utterances_total",
			Help:      "Spoken utterances by outcome.",
		}, []string{"outcome"}),
	}

	for _, s := range states {
		r.state.WithLabelValues(string(s)).Set(0)
	}
	r.state.WithLabelValues(string(controller.StateIdle)).Set(1)
	return r
}

func (r *Recorder) StateChanged(from, to controller.State) {
	r.transitions.WithLabelValues(string(from), string(to)).Inc()
	r.state.WithLabelValues(string(from)).Set(0)
	r.state.WithLabelValues(string(to)).Set(1)
}

func (r *Recorder) RecognitionError(code engine.ErrorCode, class backoff.Class) {
	r.errors.WithLabelValues(string(code), class.String()).Inc()
}

func (r *Recorder) RetryScheduled(attempt int, delay time.Duration) {
	// Attempts past the cap share a label.
	label := strconv.Itoa(attempt)
	if attempt > 7 {
		label = "8+"
	}
	r.retries.WithLabelValues(label).Inc()
	r.retryDelay.Observe(delay.Seconds())
}

func (r *Recorder) IntentDispatched(kind command.Kind) {
	r.intents.WithLabelValues(string(kind)).Inc()
}

func (r *Recorder) UtteranceFinished(outcome controller.Outcome) {
	r.utterances.WithLabelValues(string(outcome)).Inc()
}
