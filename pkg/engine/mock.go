package engine

import (
	"context"
	"sync"
	"time"
)

// MockCall records a method invocation for verification.
type MockCall struct {
	Method string
	Text   string
	Time   time.Time
}

type mockCalls struct {
	mu    sync.Mutex
	calls []MockCall
}

func (m *mockCalls) record(method, text string) {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Method: method, Text: text, Time: time.Now()})
	m.mu.Unlock()
}

// Calls returns a copy of all recorded calls.
func (m *mockCalls) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of calls to the given method.
func (m *mockCalls) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Reset clears recorded calls.
func (m *mockCalls) Reset() {
	m.mu.Lock()
	m.calls = nil
	m.mu.Unlock()
}

// MockRecognizer implements Recognizer for testing. Sessions behave like a
// browser recognizer: Abort reports CodeAborted then ends, and every session
// delivers at most one result.
type MockRecognizer struct {
	mockCalls

	mu       sync.Mutex
	events   chan Event
	active   bool
	startErr error
	lastOpts SessionOptions
}

// NewMockRecognizer creates an idle mock recognizer.
func NewMockRecognizer() *MockRecognizer {
	return &MockRecognizer{events: make(chan Event, 256)}
}

// SetStartErr makes subsequent Start calls fail with err. Nil restores success.
func (m *MockRecognizer) SetStartErr(err error) {
	m.mu.Lock()
	m.startErr = err
	m.mu.Unlock()
}

// Start records the call and opens a session.
func (m *MockRecognizer) Start(opts SessionOptions) error {
	m.record("Start", opts.Language)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		return m.startErr
	}
	if m.active {
		return ErrSessionActive
	}
	m.active = true
	m.lastOpts = opts
	m.events <- Event{Kind: EventSessionStarted}
	return nil
}

// Stop records the call and ends any session.
func (m *MockRecognizer) Stop() error {
	m.record("Stop", "")

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active {
		m.active = false
		m.events <- Event{Kind: EventSessionEnded}
	}
	return nil
}

// Abort records the call and aborts any session.
func (m *MockRecognizer) Abort() error {
	m.record("Abort", "")

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active {
		m.active = false
		m.events <- Event{Kind: EventError, Code: CodeAborted}
		m.events <- Event{Kind: EventSessionEnded}
	}
	return nil
}

// Events returns the event stream.
func (m *MockRecognizer) Events() <-chan Event {
	return m.events
}

// Close records the call.
func (m *MockRecognizer) Close() error {
	m.record("Close", "")
	return nil
}

// Say delivers a transcript and ends the session. It reports false when no
// session is active.
func (m *MockRecognizer) Say(transcript string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active {
		return false
	}
	m.active = false
	m.events <- Event{Kind: EventResult, Transcript: transcript}
	m.events <- Event{Kind: EventSessionEnded}
	return true
}

// Fail delivers an error and ends the session. It reports false when no
// session is active.
func (m *MockRecognizer) Fail(code ErrorCode) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active {
		return false
	}
	m.active = false
	m.events <- Event{Kind: EventError, Code: code}
	m.events <- Event{Kind: EventSessionEnded}
	return true
}

// Emit pushes a raw event regardless of session state.
func (m *MockRecognizer) Emit(ev Event) {
	m.events <- ev
}

// Active reports whether a session is running.
func (m *MockRecognizer) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// LastOptions returns the options of the most recent successful Start.
func (m *MockRecognizer) LastOptions() SessionOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastOpts
}

// MockSynthesizer implements Synthesizer for testing. Unless Immediate is
// set, each Speak blocks until Finish or FailNext releases it or its context
// is cancelled.
type MockSynthesizer struct {
	mockCalls

	// Immediate completes every Speak as soon as it is called.
	Immediate bool

	mu      sync.Mutex
	pending []*mockSpeech
	spoken  []Utterance
}

type mockSpeech struct {
	u    Utterance
	done chan error
}

// NewMockSynthesizer creates a mock synthesizer that holds utterances until released.
func NewMockSynthesizer() *MockSynthesizer {
	return &MockSynthesizer{}
}

// Speak records the utterance and waits for release or cancellation.
func (m *MockSynthesizer) Speak(ctx context.Context, u Utterance) error {
	m.record("Speak", u.Text)

	m.mu.Lock()
	m.spoken = append(m.spoken, u)
	if m.Immediate {
		m.mu.Unlock()
		return nil
	}
	s := &mockSpeech{u: u, done: make(chan error, 1)}
	m.pending = append(m.pending, s)
	m.mu.Unlock()

	select {
	case err := <-s.done:
		return err
	case <-ctx.Done():
		m.remove(s)
		return ctx.Err()
	}
}

func (m *MockSynthesizer) remove(s *mockSpeech) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.pending {
		if p == s {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			return
		}
	}
}

func (m *MockSynthesizer) release(err error) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pending) == 0 {
		return false
	}
	s := m.pending[0]
	m.pending = m.pending[1:]
	s.done <- err
	return true
}

// Finish completes the oldest pending utterance. It reports false when none is pending.
func (m *MockSynthesizer) Finish() bool {
	return m.release(nil)
}

// FailNext fails the oldest pending utterance with err.
func (m *MockSynthesizer) FailNext(err error) bool {
	return m.release(err)
}

// Pending returns the number of utterances still playing.
func (m *MockSynthesizer) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Spoken returns every utterance passed to Speak, in order.
func (m *MockSynthesizer) Spoken() []Utterance {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Utterance, len(m.spoken))
	copy(out, m.spoken)
	return out
}

// Close records the call.
func (m *MockSynthesizer) Close() error {
	m.record("Close", "")
	return nil
}
