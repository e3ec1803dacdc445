package engine_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/teslashibe/handsfree/pkg/engine"
)

func next(t *testing.T, events <-chan engine.Event) engine.Event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return engine.Event{}
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want engine.ErrorCode
	}{
		{"plain error", errors.New("boom"), engine.CodeStartFailed},
		{"session active", engine.ErrSessionActive, engine.CodeStartFailed},
		{"code error", &engine.CodeError{Code: engine.CodeNotAllowed}, engine.CodeNotAllowed},
		{"wrapped code error", fmt.Errorf("start: %w", &engine.CodeError{Code: engine.CodeAudioCapture}), engine.CodeAudioCapture},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := engine.CodeOf(tt.err); got != tt.want {
				t.Errorf("CodeOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCodeErrorUnwrap(t *testing.T) {
	inner := errors.New("denied")
	err := &engine.CodeError{Code: engine.CodeNotAllowed, Err: inner}
	if !errors.Is(err, inner) {
		t.Error("expected CodeError to unwrap to inner error")
	}
	if !strings.Contains(err.Error(), "not-allowed") {
		t.Errorf("expected code in message, got %q", err.Error())
	}
}

func TestResolve(t *testing.T) {
	t.Run("skips unavailable candidates", func(t *testing.T) {
		got, name, err := engine.Resolve(nil,
			engine.Candidate[string]{Name: "a", Available: func() bool { return false }, Open: func() (string, error) { return "A", nil }},
			engine.Candidate[string]{Name: "b", Open: func() (string, error) { return "B", nil }},
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "B" || name != "b" {
			t.Errorf("expected b, got %q (%s)", got, name)
		}
	})

	t.Run("falls back when open fails", func(t *testing.T) {
		_, name, err := engine.Resolve(nil,
			engine.Candidate[int]{Name: "broken", Open: func() (int, error) { return 0, errors.New("no device") }},
			engine.Candidate[int]{Name: "ok", Open: func() (int, error) { return 1, nil }},
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if name != "ok" {
			t.Errorf("expected ok, got %s", name)
		}
	})

	t.Run("reports no engine", func(t *testing.T) {
		_, _, err := engine.Resolve[int](nil,
			engine.Candidate[int]{Name: "broken", Open: func() (int, error) { return 0, errors.New("no device") }},
		)
		if !errors.Is(err, engine.ErrNoEngine) {
			t.Errorf("expected ErrNoEngine, got %v", err)
		}

		_, _, err = engine.Resolve[int](nil)
		if !errors.Is(err, engine.ErrNoEngine) {
			t.Errorf("expected ErrNoEngine for empty list, got %v", err)
		}
	})
}

func TestLineRecognizer(t *testing.T) {
	t.Run("one line per session", func(t *testing.T) {
		r := engine.NewLineRecognizer(strings.NewReader("open navigation\n\nread text\n"))
		defer r.Close()

		for _, want := range []string{"open navigation", "read text"} {
			if err := r.Start(engine.SessionOptions{Language: "en-US"}); err != nil {
				t.Fatalf("start: %v", err)
			}
			if ev := next(t, r.Events()); ev.Kind != engine.EventSessionStarted {
				t.Fatalf("expected session started, got %s", ev.Kind)
			}
			ev := next(t, r.Events())
			if ev.Kind != engine.EventResult || ev.Transcript != want {
				t.Fatalf("expected result %q, got %+v", want, ev)
			}
			if ev := next(t, r.Events()); ev.Kind != engine.EventSessionEnded {
				t.Fatalf("expected session ended, got %s", ev.Kind)
			}
		}
	})

	t.Run("eof is an audio capture error", func(t *testing.T) {
		r := engine.NewLineRecognizer(strings.NewReader(""))
		defer r.Close()

		if err := r.Start(engine.SessionOptions{}); err != nil {
			t.Fatalf("start: %v", err)
		}
		next(t, r.Events())
		ev := next(t, r.Events())
		if ev.Kind != engine.EventError || ev.Code != engine.CodeAudioCapture {
			t.Fatalf("expected audio-capture error, got %+v", ev)
		}
	})

	t.Run("abort and double start", func(t *testing.T) {
		block := &blockingReader{release: make(chan struct{})}
		defer close(block.release)
		r := engine.NewLineRecognizer(block)
		defer r.Close()

		if err := r.Start(engine.SessionOptions{}); err != nil {
			t.Fatalf("start: %v", err)
		}
		if err := r.Start(engine.SessionOptions{}); !errors.Is(err, engine.ErrSessionActive) {
			t.Fatalf("expected ErrSessionActive, got %v", err)
		}
		next(t, r.Events())

		r.Abort()
		ev := next(t, r.Events())
		if ev.Kind != engine.EventError || ev.Code != engine.CodeAborted {
			t.Fatalf("expected aborted error, got %+v", ev)
		}
		if ev := next(t, r.Events()); ev.Kind != engine.EventSessionEnded {
			t.Fatalf("expected session ended, got %s", ev.Kind)
		}
		if err := r.Start(engine.SessionOptions{}); err != nil {
			t.Fatalf("restart after abort: %v", err)
		}
	})

	t.Run("silence timeout", func(t *testing.T) {
		block := &blockingReader{release: make(chan struct{})}
		defer close(block.release)
		r := engine.NewLineRecognizer(block, engine.WithSilenceTimeout(10*time.Millisecond))
		defer r.Close()

		r.Start(engine.SessionOptions{})
		next(t, r.Events())
		ev := next(t, r.Events())
		if ev.Code != engine.CodeNoSpeech {
			t.Fatalf("expected no-speech, got %+v", ev)
		}
	})

	t.Run("start after close", func(t *testing.T) {
		r := engine.NewLineRecognizer(strings.NewReader(""))
		r.Close()
		if err := r.Start(engine.SessionOptions{}); !errors.Is(err, engine.ErrClosed) {
			t.Errorf("expected ErrClosed, got %v", err)
		}
	})
}

type blockingReader struct {
	release chan struct{}
}

func (b *blockingReader) Read(p []byte) (int, error) {
	<-b.release
	return 0, errors.New("closed")
}

func TestMockSynthesizer(t *testing.T) {
	m := engine.NewMockSynthesizer()

	t.Run("finish releases speak", func(t *testing.T) {
		done := make(chan error, 1)
		go func() { done <- m.Speak(context.Background(), engine.Utterance{Text: "hello"}) }()

		waitPending(t, m, 1)
		m.Finish()
		if err := <-done; err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("cancel interrupts speak", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- m.Speak(ctx, engine.Utterance{Text: "bye"}) }()

		waitPending(t, m, 1)
		cancel()
		if err := <-done; !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if m.Pending() != 0 {
			t.Errorf("expected no pending utterances, got %d", m.Pending())
		}
	})

	if m.CallCount("Speak") != 2 {
		t.Errorf("expected 2 Speak calls, got %d", m.CallCount("Speak"))
	}
	if calls := m.Calls(); len(calls) != 2 || calls[0].Text != "hello" || calls[1].Text != "bye" {
		t.Errorf("unexpected calls %+v", calls)
	}
}

func waitPending(t *testing.T, m *engine.MockSynthesizer, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for m.Pending() != n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d pending utterances", n)
		}
		time.Sleep(time.Millisecond)
	}
}
