// Package engine defines the recognition and synthesis capabilities the voice
// controller drives, and resolves which concrete implementation the host offers.
//
// A Recognizer runs non-continuous sessions: each Start yields at most one
// transcript followed by an end event. Events are delivered on a buffered
// channel; Start, Stop and Abort never wait for them to be consumed.
//
// A Synthesizer speaks one utterance per call. Speak blocks until playback
// finishes and returns the context error when the context is cancelled, which
// is how the controller interrupts speech.
package engine

import (
	"context"
	"errors"
	"fmt"
)

// Common errors returned by engines.
var (
	// ErrSessionActive is returned by Start when a session is already running.
	ErrSessionActive = errors.New("engine: recognizer session already active")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("engine: closed")

	// ErrNoEngine is returned by Resolve when no candidate is available.
	ErrNoEngine = errors.New("engine: no engine available")

	// ErrNotConnected is returned by remote engines with no peer attached.
	ErrNotConnected = errors.New("engine: remote peer not connected")
)

// ErrorCode identifies a recognition failure. Values follow the Web Speech API
// error names so browser-backed engines can pass them through untouched.
type ErrorCode string

const (
	CodeAborted           ErrorCode = "aborted"
	CodeNoSpeech          ErrorCode = "no-speech"
	CodeNotAllowed        ErrorCode = "not-allowed"
	CodeServiceNotAllowed ErrorCode = "service-not-allowed"
	CodeAudioCapture      ErrorCode = "audio-capture"
	CodeNetwork           ErrorCode = "network"
	CodeLanguage          ErrorCode = "language-not-supported"

	// CodeStartFailed is raised by the controller when Start itself fails,
	// typically because it raced a session that had not ended yet.
	CodeStartFailed ErrorCode = "start-failed"
)

// CodeError carries a recognition error code out of Start.
type CodeError struct {
	Code ErrorCode
	Err  error
}

// Error implements the error interface.
func (e *CodeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("engine: %s", e.Code)
	}
	return fmt.Sprintf("engine: %s: %v", e.Code, e.Err)
}

// Unwrap returns the underlying error.
func (e *CodeError) Unwrap() error {
	return e.Err
}

// CodeOf extracts the error code from err. Errors without one map to
// CodeStartFailed.
func CodeOf(err error) ErrorCode {
	var ce *CodeError
	if errors.As(err, &ce) && ce.Code != "" {
		return ce.Code
	}
	return CodeStartFailed
}

// EventKind identifies a recognizer event.
type EventKind string

const (
	EventSessionStarted EventKind = "session_started"
	EventResult         EventKind = "result"
	EventSessionEnded   EventKind = "session_ended"
	EventError          EventKind = "error"
)

// Event is emitted by a Recognizer.
type Event struct {
	Kind       EventKind
	Transcript string    // set for EventResult
	Code       ErrorCode // set for EventError
	Detail     string
}

// SessionOptions configures one recognition session.
type SessionOptions struct {
	// Language is a BCP 47 locale tag such as "en-US".
	Language string
}

// Recognizer is a speech recognition capability.
type Recognizer interface {
	// Start begins a session. It returns ErrSessionActive if one is running.
	Start(opts SessionOptions) error

	// Stop ends the current session gracefully; a pending result may still arrive.
	Stop() error

	// Abort ends the current session immediately, discarding any result.
	// Engines report the abort as a CodeAborted error followed by an end event.
	Abort() error

	// Events returns the event stream. It stays open for the engine's lifetime.
	Events() <-chan Event

	// Close releases the engine.
	Close() error
}

// Utterance is one spoken-feedback request.
type Utterance struct {
	ID       string
	Text     string
	Language string
}

// Synthesizer is a speech synthesis capability.
type Synthesizer interface {
	// Speak plays the utterance and returns once it has finished.
	// Cancelling ctx interrupts playback; Speak then returns ctx.Err().
	Speak(ctx context.Context, u Utterance) error

	// Close releases the engine.
	Close() error
}
