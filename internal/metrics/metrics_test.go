package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/teslashibe/handsfree/pkg/backoff"
	"github.com/teslashibe/handsfree/pkg/command"
	"github.com/teslashibe/handsfree/pkg/controller"
	"github.com/teslashibe/handsfree/pkg/engine"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.StateChanged(controller.StateIdle, controller.StateListening)
	r.StateChanged(controller.StateListening, controller.StateErrorRecovery)
	r.RecognitionError(engine.CodeNetwork, backoff.Recoverable)
	r.RetryScheduled(1, time.Second)
	r.RetryScheduled(12, 30*time.Second)
	r.IntentDispatched(command.OpenNavigation)
	r.UtteranceFinished(controller.OutcomeInterrupted)

	if got := testutil.ToFloat64(r.transitions.WithLabelValues("idle", "listening")); got != 1 {
		t.Errorf("transitions = %v", got)
	}
	if got := testutil.ToFloat64(r.state.WithLabelValues("error_recovery")); got != 1 {
		t.Errorf("error_recovery gauge = %v", got)
	}
	if got := testutil.ToFloat64(r.state.WithLabelValues("listening")); got != 0 {
		t.Errorf("listening gauge = %v", got)
	}
	if got := testutil.ToFloat64(r.errors.WithLabelValues("network", "recoverable")); got != 1 {
		t.Errorf("errors = %v", got)
	}
	if got := testutil.ToFloat64(r.retries.WithLabelValues("8+")); got != 1 {
		t.Errorf("capped retry label = %v", got)
	}
	if got := testutil.ToFloat64(r.intents.WithLabelValues("open_navigation")); got != 1 {
		t.Errorf("intents = %v", got)
	}
	if got := testutil.ToFloat64(r.utterances.WithLabelValues("interrupted")); got != 1 {
		t.Errorf("utterances = %v", got)
	}

	if n, err := testutil.GatherAndCount(reg, "handsfree_retry_delay_seconds"); err != nil || n != 1 {
		t.Errorf("retry histogram count = %d, %v", n, err)
	}
}

func TestNewTwiceOnSameRegistryPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	defer func() {
		if recover() == nil {
			t.Error("expected duplicate registration to panic")
		}
	}()
	New(reg)
}
