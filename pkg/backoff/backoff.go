// Package backoff classifies recognition failures and schedules the retry
// that follows a recoverable one.
//
// A Scheduler holds at most one pending timer. Arming always clears the
// previous timer first, and every timer carries a Token so a firing that
// raced a Clear can be recognized and dropped by the owner.
//
// Scheduler is not safe for concurrent use; the voice controller calls it
// from its event loop only. Timer callbacks run on the clock's goroutine and
// must hand the token back to the owner rather than touch the Scheduler.
package backoff

import (
	"math/rand"
	"time"

	"github.com/teslashibe/handsfree/pkg/engine"
)

// Default policy values.
const (
	DefaultBase      = 500 * time.Millisecond
	DefaultMax       = 30 * time.Second
	DefaultMaxJitter = 250 * time.Millisecond
)

// Class is the recovery class of a recognition error.
type Class int

const (
	// Recoverable errors are retried with backoff.
	Recoverable Class = iota

	// Ignored errors need no action; the session end restarts recognition.
	Ignored

	// Fatal errors disable voice control until it is re-enabled externally.
	Fatal
)

// String returns the class name.
func (c Class) String() string {
	switch c {
	case Ignored:
		return "ignored"
	case Fatal:
		return "fatal"
	default:
		return "recoverable"
	}
}

// Classify returns the recovery class of a recognition error code.
func Classify(code engine.ErrorCode) Class {
	switch code {
	case engine.CodeAborted, engine.CodeNoSpeech:
		return Ignored
	case engine.CodeNotAllowed, engine.CodeServiceNotAllowed, engine.CodeAudioCapture:
		return Fatal
	default:
		return Recoverable
	}
}

// Policy describes the delay curve.
type Policy struct {
	Base      time.Duration
	Max       time.Duration
	MaxJitter time.Duration
}

// DefaultPolicy returns min(30s, 500ms×2^n) + [0, 250ms).
func DefaultPolicy() Policy {
	return Policy{Base: DefaultBase, Max: DefaultMax, MaxJitter: DefaultMaxJitter}
}

// Delay returns the deterministic part of the delay for the given attempt.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := p.Base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= p.Max {
			return p.Max
		}
	}
	if d > p.Max {
		return p.Max
	}
	return d
}

// Token identifies one armed timer.
type Token uint64

// Scheduler arms a single delayed retry and counts consecutive failures.
type Scheduler struct {
	clock  Clock
	policy Policy
	jitter func(max time.Duration) time.Duration

	attempts int
	pending  Timer
	token    Token
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the clock used to arm timers.
func WithClock(c Clock) Option {
	return func(s *Scheduler) {
		s.clock = c
	}
}

// WithPolicy overrides the delay curve.
func WithPolicy(p Policy) Option {
	return func(s *Scheduler) {
		s.policy = p
	}
}

// WithJitter overrides the random source. fn must return a value in [0, max).
func WithJitter(fn func(max time.Duration) time.Duration) Option {
	return func(s *Scheduler) {
		s.jitter = fn
	}
}

// New creates a Scheduler using the real clock and DefaultPolicy.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:  RealClock(),
		policy: DefaultPolicy(),
		jitter: uniformJitter,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func uniformJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(max)))
}

// Schedule records a failure, clears any pending timer and arms a new one.
// fire is called with the new timer's token when it elapses.
func (s *Scheduler) Schedule(fire func(Token)) (attempt int, delay time.Duration) {
	s.attempts++
	delay = s.policy.Delay(s.attempts) + s.jitter(s.policy.MaxJitter)

	s.Clear()
	s.token++
	token := s.token
	s.pending = s.clock.AfterFunc(delay, func() { fire(token) })
	return s.attempts, delay
}

// Fired reports whether token belongs to the pending timer and, if so,
// marks it as no longer pending.
func (s *Scheduler) Fired(token Token) bool {
	if s.pending == nil || token != s.token {
		return false
	}
	s.pending = nil
	return true
}

// Clear cancels the pending timer, if any.
func (s *Scheduler) Clear() {
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
	// Invalidate a callback that already left the clock.
	s.token++
}

// Pending reports whether a timer is armed.
func (s *Scheduler) Pending() bool {
	return s.pending != nil
}

// Reset zeroes the attempt counter. The pending timer is left alone.
func (s *Scheduler) Reset() {
	s.attempts = 0
}

// Attempts returns the number of consecutive failures.
func (s *Scheduler) Attempts() int {
	return s.attempts
}
