// Package controller runs the hands-free voice command loop.
//
// A Controller owns one recognizer and one synthesizer and guarantees they
// never run at the same time. Recognized transcripts are parsed into intents
// that fire application callbacks and, when feedback is on, a spoken
// confirmation. Recognition failures are classified: ignored ones heal through
// the normal end-of-session restart, recoverable ones are retried with
// exponential backoff and fatal ones disable the loop until it is re-enabled.
//
// All state lives on a single event-loop goroutine. The public methods post
// work to it and return immediately, so they are safe to call from any
// goroutine, including from the callbacks the controller itself fires.
package controller

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/teslashibe/handsfree/pkg/backoff"
	"github.com/teslashibe/handsfree/pkg/command"
	"github.com/teslashibe/handsfree/pkg/engine"
)

// Controller is the voice interaction state machine.
type Controller struct {
	rec     engine.Recognizer
	synth   engine.Synthesizer
	logger  *slog.Logger
	metrics Metrics
	sched   *backoff.Scheduler
	arb     *arbiter
	mb      *mailbox
	done    chan struct{}

	// Owned by the event loop.
	cfg       Config
	state     State
	destroyed bool

	// sessionOpen is true from a successful Start until the engine reports the
	// session ended. restartOnEnd defers a start until that end arrives.
	sessionOpen  bool
	restartOnEnd bool

	// disabledStatus is the message published when the loop was disabled.
	disabledStatus string

	statusMu sync.RWMutex
	status   Status
}

// New creates a controller and starts its event loop. Either engine may be
// nil when the host offers none; a nil recognizer keeps the controller idle
// and a nil synthesizer skips every utterance. With cfg.AutoStart set the
// first session starts right away.
func New(rec engine.Recognizer, synth engine.Synthesizer, cfg Config, opts ...Option) *Controller {
	o := options{
		logger:  slog.Default(),
		metrics: nopMetrics{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Controller{
		rec:     rec,
		synth:   synth,
		logger:  o.logger.With("component", "controller"),
		metrics: o.metrics,
		sched:   backoff.New(o.backoff...),
		mb:      newMailbox(),
		done:    make(chan struct{}),
		cfg:     cfg,
		state:   StateIdle,
	}
	c.arb = newArbiter(synth, c.mb.post, c.speechDone)
	c.status = Status{
		State:     StateIdle,
		Language:  cfg.Language,
		AutoStart: cfg.AutoStart,
		Feedback:  cfg.ProvideFeedback,
	}

	go c.run()

	if cfg.AutoStart {
		c.Start()
	}
	return c
}

// Start begins listening unless a session is already running. While speech
// plays, it asks for recognition to resume once the speech ends. After a fatal
// error it only works once AutoStart has been re-enabled.
func (c *Controller) Start() {
	c.mb.post(c.start)
}

// Stop clears pending retries and aborts the running session. Speech in
// progress finishes but recognition will not resume after it. AutoStart is
// left untouched.
func (c *Controller) Stop() {
	c.mb.post(c.stop)
}

// Speak plays text as spoken feedback. The returned channel receives exactly
// one Outcome and is then closed.
func (c *Controller) Speak(text string) <-chan Outcome {
	h := make(chan Outcome, 1)
	if !c.mb.post(func() { c.speak(text, h) }) {
		resolve(h, OutcomeSkipped)
	}
	return h
}

// UpdateConfig merges p into the configuration.
func (c *Controller) UpdateConfig(p Patch) {
	c.mb.post(func() { c.applyConfig(p.Apply(c.cfg)) })
}

// ReplaceConfig swaps the whole configuration.
func (c *Controller) ReplaceConfig(cfg Config) {
	c.mb.post(func() { c.applyConfig(cfg) })
}

// Destroy shuts the controller down for good: AutoStart off, timers cleared,
// session aborted, speech cancelled. Done closes once the loop has exited.
func (c *Controller) Destroy() {
	c.mb.post(c.destroy)
}

// Done is closed when the event loop has exited after Destroy.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Status returns the last published status.
func (c *Controller) Status() Status {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	return c.status
}

func (c *Controller) run() {
	defer close(c.done)

	var events <-chan engine.Event
	if c.rec != nil {
		events = c.rec.Events()
	}

	for {
		select {
		case <-c.mb.notify:
			for _, fn := range c.mb.drain() {
				fn()
			}
		case ev := <-events:
			c.handleEvent(ev)
		}

		if c.destroyed {
			for _, fn := range c.mb.close() {
				fn()
			}
			c.logger.Debug("event loop stopped")
			return
		}
	}
}

func (c *Controller) handleEvent(ev engine.Event) {
	if ev.Kind == engine.EventSessionEnded {
		c.sessionOpen = false
		if c.restartOnEnd {
			c.restartOnEnd = false
			if c.state == StateListening && !c.destroyed {
				c.startSession()
			}
			return
		}
	}

	// Anything else arriving outside a live session is the echo of an abort.
	if c.state != StateListening || c.restartOnEnd {
		c.logger.Debug("ignoring recognizer event", "event", ev.Kind, "code", ev.Code, "state", c.state)
		return
	}

	switch ev.Kind {
	case engine.EventSessionStarted:
		c.publish(StatusListening, true)

	case engine.EventResult:
		c.sched.Reset()
		c.handleTranscript(ev.Transcript)

	case engine.EventError:
		c.fail(ev.Code, ev.Detail)

	case engine.EventSessionEnded:
		c.setState(StateIdle)
		if c.cfg.AutoStart {
			c.listen()
			return
		}
		c.publish(StatusIdle, false)
	}
}

func (c *Controller) start() {
	if c.destroyed {
		return
	}

	switch c.state {
	case StateListening:
		return
	case StateDisabled:
		if !c.cfg.AutoStart {
			c.logger.Info("start ignored while disabled; re-enable auto start first")
			return
		}
	case StateSpeaking:
		if u := c.arb.current; u != nil {
			if u.restore == StateDisabled && !c.cfg.AutoStart {
				return
			}
			u.resume = true
		}
		return
	}

	c.listen()
}

// listen moves to StateListening and starts a session, or defers the start
// until the previous session has ended.
func (c *Controller) listen() {
	if c.rec == nil {
		c.setState(StateIdle)
		c.publish(StatusUnsupported, false)
		return
	}

	c.sched.Clear()
	c.setState(StateListening)
	if c.sessionOpen {
		c.restartOnEnd = true
		return
	}
	c.startSession()
}

func (c *Controller) startSession() {
	c.sessionOpen = true
	err := c.rec.Start(engine.SessionOptions{Language: c.cfg.Language})
	if err == nil {
		return
	}

	c.sessionOpen = false
	code := engine.CodeOf(err)
	if backoff.Classify(code) == backoff.Ignored {
		// No end event follows a failed start, so nothing would restart it.
		code = engine.CodeStartFailed
	}
	c.logger.Warn("recognizer start failed", "code", code, "error", err)
	c.fail(code, err.Error())
}

func (c *Controller) fail(code engine.ErrorCode, detail string) {
	class := backoff.Classify(code)
	c.metrics.RecognitionError(code, class)

	switch class {
	case backoff.Ignored:
		c.logger.Debug("recognition error ignored", "code", code)
		c.markNotListening()

	case backoff.Fatal:
		c.logger.Error("recognition disabled", "code", code, "detail", detail)
		c.sched.Clear()
		c.cfg.AutoStart = false
		c.setState(StateDisabled)
		c.disabledStatus = StatusPermission
		if code == engine.CodeAudioCapture {
			c.disabledStatus = StatusNoMicrophone
		}
		c.publish(c.disabledStatus, false)

	default:
		c.setState(StateErrorRecovery)
		attempt, delay := c.sched.Schedule(func(tok backoff.Token) {
			c.mb.post(func() { c.retry(tok) })
		})
		c.metrics.RetryScheduled(attempt, delay)
		c.logger.Warn("recognition error, retrying",
			"code", code,
			"detail", detail,
			"attempt", attempt,
			"delay", delay,
		)
		c.publish(fmt.Sprintf(statusRetryingFormat, code, delay.Seconds()), false)
	}
}

func (c *Controller) retry(tok backoff.Token) {
	if !c.sched.Fired(tok) {
		return
	}
	if c.destroyed || c.state != StateErrorRecovery {
		return
	}
	c.listen()
}

func (c *Controller) handleTranscript(raw string) {
	text := command.Normalize(raw)
	intent, ok := command.Parse(text)
	if !ok {
		c.logger.Debug("no intent", "transcript", text)
		return
	}

	c.logger.Info("intent", "kind", intent.Kind, "setting", intent.Setting, "transcript", text)
	c.metrics.IntentDispatched(intent.Kind)

	confirmation := c.dispatch(intent)
	if confirmation != "" && c.cfg.ProvideFeedback {
		c.speak(confirmation, make(chan Outcome, 1))
	}
}

func (c *Controller) speak(text string, h chan Outcome) {
	if c.destroyed || c.synth == nil || !c.cfg.ProvideFeedback || strings.TrimSpace(text) == "" {
		resolve(h, OutcomeSkipped)
		return
	}

	resume := false
	restore := StateIdle
	if prev := c.arb.interrupt(); prev != nil {
		c.metrics.UtteranceFinished(OutcomeInterrupted)
		resume, restore = prev.resume, prev.restore
	}

	switch c.state {
	case StateListening:
		resume = resume || c.cfg.AutoStart
		c.restartOnEnd = false
		if c.sessionOpen {
			c.rec.Abort()
		}
	case StateErrorRecovery:
		resume = resume || c.cfg.AutoStart
		c.sched.Clear()
	case StateDisabled:
		restore = StateDisabled
	}

	c.setState(StateSpeaking)
	c.publish(StatusSpeaking, false)
	u := c.arb.begin(text, c.cfg.Language, resume, restore, h)
	c.logger.Debug("speaking", "utterance", u.id, "resume", resume)
}

func (c *Controller) speechDone(u *utterance, outcome Outcome) {
	c.metrics.UtteranceFinished(outcome)
	c.logger.Debug("utterance ended", "utterance", u.id, "outcome", outcome)

	if c.destroyed || c.state != StateSpeaking {
		return
	}
	if u.resume && c.rec != nil {
		c.sched.Clear()
		c.listen()
		return
	}

	c.setState(u.restore)
	switch u.restore {
	case StateIdle:
		c.publish(StatusIdle, false)
	case StateDisabled:
		c.publish(c.disabledStatus, false)
	}
}

func (c *Controller) stop() {
	if c.destroyed {
		return
	}

	c.sched.Clear()
	c.restartOnEnd = false
	if c.rec != nil && c.sessionOpen {
		c.rec.Abort()
	}

	switch c.state {
	case StateSpeaking:
		if u := c.arb.current; u != nil {
			u.resume = false
		}
	case StateDisabled:
	default:
		c.setState(StateIdle)
	}
	c.publish(StatusPaused, false)
}

func (c *Controller) destroy() {
	if c.destroyed {
		return
	}
	c.destroyed = true
	c.cfg.AutoStart = false
	c.sched.Clear()
	c.restartOnEnd = false

	if c.rec != nil && c.sessionOpen {
		c.rec.Abort()
	}
	if c.arb.interrupt() != nil {
		c.metrics.UtteranceFinished(OutcomeInterrupted)
	}

	c.setState(StateIdle)
	c.publish(StatusStopped, false)
	c.logger.Info("voice control destroyed")
}

func (c *Controller) applyConfig(next Config) {
	if c.destroyed {
		next.AutoStart = false
	}
	if next.Language != c.cfg.Language {
		c.logger.Info("language changed; applies to the next session", "language", next.Language)
	}
	c.cfg = next

	c.statusMu.Lock()
	c.status.Language = next.Language
	c.status.AutoStart = next.AutoStart
	c.status.Feedback = next.ProvideFeedback
	c.statusMu.Unlock()
}

func (c *Controller) setState(s State) {
	if s == c.state {
		return
	}
	c.metrics.StateChanged(c.state, s)
	c.logger.Debug("state", "from", c.state, "to", s)
	c.state = s

	c.statusMu.Lock()
	c.status.State = s
	c.status.Attempts = c.sched.Attempts()
	c.status.AutoStart = c.cfg.AutoStart
	c.statusMu.Unlock()
}

// markNotListening republishes the current message with listening cleared.
func (c *Controller) markNotListening() {
	c.statusMu.RLock()
	message, listening := c.status.Message, c.status.Listening
	c.statusMu.RUnlock()
	if listening {
		c.publish(message, false)
	}
}

func (c *Controller) publish(message string, listening bool) {
	c.statusMu.Lock()
	c.status.State = c.state
	c.status.Message = message
	c.status.Listening = listening
	c.status.Attempts = c.sched.Attempts()
	c.status.AutoStart = c.cfg.AutoStart
	c.statusMu.Unlock()

	if cb := c.cfg.Callbacks.OnVoiceStatusChange; cb != nil {
		cb(message, listening)
	}
}
