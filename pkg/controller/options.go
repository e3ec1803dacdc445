package controller

import (
	"log/slog"
	"time"

	"github.com/teslashibe/handsfree/pkg/backoff"
	"github.com/teslashibe/handsfree/pkg/command"
	"github.com/teslashibe/handsfree/pkg/engine"
)

// Metrics receives controller telemetry. Calls happen on the event loop.
type Metrics interface {
	StateChanged(from, to State)
	RecognitionError(code engine.ErrorCode, class backoff.Class)
	RetryScheduled(attempt int, delay time.Duration)
	IntentDispatched(kind command.Kind)
	UtteranceFinished(outcome Outcome)
}

type nopMetrics struct{}

func (nopMetrics) StateChanged(State, State)                        {}
func (nopMetrics) RecognitionError(engine.ErrorCode, backoff.Class) {}
func (nopMetrics) RetryScheduled(int, time.Duration)                {}
func (nopMetrics) IntentDispatched(command.Kind)                    {}
func (nopMetrics) UtteranceFinished(Outcome)                        {}

type options struct {
	logger  *slog.Logger
	metrics Metrics
	backoff []backoff.Option
}

// Option configures a Controller.
type Option func(*options)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics sets the telemetry sink.
func WithMetrics(m Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithClock sets the clock used for retry timers.
func WithClock(c backoff.Clock) Option {
	return func(o *options) {
		o.backoff = append(o.backoff, backoff.WithClock(c))
	}
}

// WithJitter overrides the retry jitter source.
func WithJitter(fn func(max time.Duration) time.Duration) Option {
	return func(o *options) {
		o.backoff = append(o.backoff, backoff.WithJitter(fn))
	}
}
