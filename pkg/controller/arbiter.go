package controller

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/teslashibe/handsfree/pkg/engine"
)

// utterance is the single "currently speaking" slot.
type utterance struct {
	id     string
	handle chan Outcome
	cancel context.CancelFunc

	// resume restarts recognition when the utterance ends.
	resume bool

	// restore is the state to return to when recognition does not resume.
	restore State
}

// arbiter owns the in-flight utterance. Its methods run on the event loop;
// only the synthesizer call runs on its own goroutine.
type arbiter struct {
	synth   engine.Synthesizer
	post    func(func()) bool
	current *utterance
	done    func(u *utterance, outcome Outcome)
}

func newArbiter(synth engine.Synthesizer, post func(func()) bool, done func(*utterance, Outcome)) *arbiter {
	return &arbiter{synth: synth, post: post, done: done}
}

// interrupt cancels the in-flight utterance and resolves its handle at once.
// It returns the interrupted utterance so the caller can inherit its flags.
func (a *arbiter) interrupt() *utterance {
	u := a.current
	if u == nil {
		return nil
	}
	a.current = nil
	u.cancel()
	resolve(u.handle, OutcomeInterrupted)
	return u
}

// begin starts speaking text. The handle resolves when the utterance ends.
func (a *arbiter) begin(text, language string, resume bool, restore State, handle chan Outcome) *utterance {
	ctx, cancel := context.WithCancel(context.Background())
	u := &utterance{
		id:      uuid.NewString(),
		handle:  handle,
		cancel:  cancel,
		resume:  resume,
		restore: restore,
	}
	a.current = u

	go func() {
		err := a.synth.Speak(ctx, engine.Utterance{ID: u.id, Text: text, Language: language})
		a.post(func() { a.finish(u, err) })
	}()
	return u
}

func (a *arbiter) finish(u *utterance, err error) {
	u.cancel()
	if a.current != u {
		// Already interrupted; its handle was resolved then.
		return
	}
	a.current = nil

	outcome := OutcomeFinished
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		outcome = OutcomeInterrupted
	default:
		outcome = OutcomeFailed
	}
	resolve(u.handle, outcome)
	a.done(u, outcome)
}
