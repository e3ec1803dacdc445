package backoff_test

import (
	"testing"
	"time"

	"github.com/teslashibe/handsfree/pkg/backoff"
	"github.com/teslashibe/handsfree/pkg/engine"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		code engine.ErrorCode
		want backoff.Class
	}{
		{engine.CodeAborted, backoff.Ignored},
		{engine.CodeNoSpeech, backoff.Ignored},
		{engine.CodeNotAllowed, backoff.Fatal},
		{engine.CodeServiceNotAllowed, backoff.Fatal},
		{engine.CodeAudioCapture, backoff.Fatal},
		{engine.CodeNetwork, backoff.Recoverable},
		{engine.CodeStartFailed, backoff.Recoverable},
		{engine.ErrorCode("something-new"), backoff.Recoverable},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := backoff.Classify(tt.code); got != tt.want {
				t.Errorf("Classify(%q) = %s, want %s", tt.code, got, tt.want)
			}
		})
	}
}

func TestPolicyDelay(t *testing.T) {
	p := backoff.DefaultPolicy()
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{5, 16 * time.Second},
		{6, 30 * time.Second},
		{40, 30 * time.Second},
		{1000, 30 * time.Second},
	}
	for _, tt := range tests {
		if got := p.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestScheduleDelayBounds(t *testing.T) {
	s := backoff.New(backoff.WithClock(backoff.NewManualClock()))
	p := backoff.DefaultPolicy()

	for n := 1; n <= 12; n++ {
		attempt, delay := s.Schedule(func(backoff.Token) {})
		if attempt != n {
			t.Fatalf("expected attempt %d, got %d", n, attempt)
		}
		lo := p.Delay(n)
		hi := lo + backoff.DefaultMaxJitter
		if delay < lo || delay >= hi {
			t.Errorf("attempt %d: delay %v outside [%v, %v)", n, delay, lo, hi)
		}
	}
}

func TestScheduleSingleTimer(t *testing.T) {
	clock := backoff.NewManualClock()
	s := backoff.New(
		backoff.WithClock(clock),
		backoff.WithJitter(func(time.Duration) time.Duration { return 0 }),
	)

	var fired []backoff.Token
	fire := func(tok backoff.Token) { fired = append(fired, tok) }

	s.Schedule(fire)
	s.Schedule(fire)
	s.Schedule(fire)

	if clock.Pending() != 1 {
		t.Fatalf("expected exactly 1 pending timer, got %d", clock.Pending())
	}
	if d, _ := clock.NextDelay(); d != 4*time.Second {
		t.Errorf("expected 4s delay for third attempt, got %v", d)
	}

	clock.Advance(time.Minute)
	if len(fired) != 1 {
		t.Fatalf("expected 1 firing, got %d", len(fired))
	}
	if !s.Fired(fired[0]) {
		t.Error("expected latest token to be accepted")
	}
	if s.Fired(fired[0]) {
		t.Error("expected token to be accepted only once")
	}
	if s.Pending() {
		t.Error("expected no pending timer after firing")
	}
}

func TestClearInvalidatesToken(t *testing.T) {
	clock := backoff.NewManualClock()
	s := backoff.New(backoff.WithClock(clock))

	var tok backoff.Token
	s.Schedule(func(t backoff.Token) { tok = t })

	// Capture the token by firing, then clear before the owner handles it.
	clock.Advance(time.Minute)
	s.Clear()
	if s.Fired(tok) {
		t.Error("expected stale token to be rejected after Clear")
	}
}

func TestResetKeepsTimer(t *testing.T) {
	clock := backoff.NewManualClock()
	s := backoff.New(backoff.WithClock(clock))

	s.Schedule(func(backoff.Token) {})
	s.Schedule(func(backoff.Token) {})
	s.Reset()

	if s.Attempts() != 0 {
		t.Errorf("expected 0 attempts after reset, got %d", s.Attempts())
	}
	if !s.Pending() {
		t.Error("expected reset to leave the armed timer")
	}

	attempt, _ := s.Schedule(func(backoff.Token) {})
	if attempt != 1 {
		t.Errorf("expected attempt 1 after reset, got %d", attempt)
	}
}

func TestCustomPolicy(t *testing.T) {
	clock := backoff.NewManualClock()
	s := backoff.New(
		backoff.WithClock(clock),
		backoff.WithPolicy(backoff.Policy{Base: 100 * time.Millisecond, Max: 300 * time.Millisecond}),
	)

	for _, want := range []time.Duration{200 * time.Millisecond, 300 * time.Millisecond, 300 * time.Millisecond} {
		if _, delay := s.Schedule(func(backoff.Token) {}); delay != want {
			t.Errorf("delay = %v, want %v", delay, want)
		}
	}
	if d, _ := clock.NextDelay(); d != 300*time.Millisecond {
		t.Errorf("expected armed timer at 300ms, got %v", d)
	}
}
