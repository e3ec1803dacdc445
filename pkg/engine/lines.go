package engine

import (
	"bufio"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// LineRecognizer treats each non-empty line read from an io.Reader as the
// transcript of one session. It backs the terminal mode of the CLI and is
// handy for driving the controller from scripts.
type LineRecognizer struct {
	lines   chan string
	events  chan Event
	silence time.Duration
	logger  *slog.Logger

	mu      sync.Mutex
	session *lineSession
	closed  bool
	done    chan struct{}
}

type lineSession struct {
	abort chan struct{}
	stop  chan struct{}
	once  sync.Once
}

func (s *lineSession) end(ch chan struct{}) {
	s.once.Do(func() { close(ch) })
}

// LineOption configures a LineRecognizer.
type LineOption func(*LineRecognizer)

// WithSilenceTimeout ends a session with CodeNoSpeech when no line arrives in time.
// Zero disables the timeout.
func WithSilenceTimeout(d time.Duration) LineOption {
	return func(r *LineRecognizer) {
		r.silence = d
	}
}

// WithLineLogger sets the logger.
func WithLineLogger(logger *slog.Logger) LineOption {
	return func(r *LineRecognizer) {
		r.logger = logger
	}
}

// NewLineRecognizer starts reading lines from src.
func NewLineRecognizer(src io.Reader, opts ...LineOption) *LineRecognizer {
	r := &LineRecognizer{
		lines:  make(chan string),
		events: make(chan Event, 16),
		logger: slog.Default(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "engine.lines")

	go r.read(src)
	return r
}

func (r *LineRecognizer) read(src io.Reader) {
	defer close(r.lines)

	scanner := bufio.NewScanner(src)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		select {
		case r.lines <- line:
		case <-r.done:
			return
		}
	}
	if err := scanner.Err(); err != nil {
		r.logger.Warn("input read failed", "error", err)
	}
}

// Start begins a session that waits for the next line.
func (r *LineRecognizer) Start(opts SessionOptions) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	if r.session != nil {
		return ErrSessionActive
	}

	sess := &lineSession{
		abort: make(chan struct{}),
		stop:  make(chan struct{}),
	}
	r.session = sess
	go r.run(sess, opts)
	return nil
}

func (r *LineRecognizer) run(sess *lineSession, opts SessionOptions) {
	r.emit(Event{Kind: EventSessionStarted, Detail: opts.Language})

	var timeout <-chan time.Time
	if r.silence > 0 {
		timer := time.NewTimer(r.silence)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case line, ok := <-r.lines:
		if ok {
			r.emit(Event{Kind: EventResult, Transcript: line})
		} else {
			r.emit(Event{Kind: EventError, Code: CodeAudioCapture, Detail: "input closed"})
		}
	case <-sess.abort:
		r.emit(Event{Kind: EventError, Code: CodeAborted})
	case <-sess.stop:
	case <-timeout:
		r.emit(Event{Kind: EventError, Code: CodeNoSpeech})
	case <-r.done:
		return
	}

	r.mu.Lock()
	if r.session == sess {
		r.session = nil
	}
	r.mu.Unlock()

	r.emit(Event{Kind: EventSessionEnded})
}

func (r *LineRecognizer) emit(ev Event) {
	select {
	case r.events <- ev:
	case <-r.done:
	}
}

// Stop ends the current session without a result.
func (r *LineRecognizer) Stop() error {
	r.mu.Lock()
	sess := r.session
	r.mu.Unlock()
	if sess != nil {
		sess.end(sess.stop)
	}
	return nil
}

// Abort ends the current session with CodeAborted.
func (r *LineRecognizer) Abort() error {
	r.mu.Lock()
	sess := r.session
	r.mu.Unlock()
	if sess != nil {
		sess.end(sess.abort)
	}
	return nil
}

// Events returns the event stream.
func (r *LineRecognizer) Events() <-chan Event {
	return r.events
}

// Close stops reading input. Sessions in flight end without further events.
func (r *LineRecognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	close(r.done)
	return nil
}
