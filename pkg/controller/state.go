package controller

// State is the controller's position in the voice interaction lifecycle.
type State string

const (
	// StateIdle - no recognition session and no speech.
	StateIdle State = "idle"

	// StateListening - a recognition session is running or about to start.
	StateListening State = "listening"

	// StateSpeaking - spoken feedback is playing; recognition is suspended.
	StateSpeaking State = "speaking"

	// StateErrorRecovery - waiting for the retry timer after a recoverable error.
	StateErrorRecovery State = "error_recovery"

	// StateDisabled - a fatal error occurred; only reconfiguration and an
	// explicit start leave this state.
	StateDisabled State = "disabled"
)

// Outcome is the terminal result of a Speak call.
type Outcome string

const (
	// OutcomeFinished - the utterance played to the end.
	OutcomeFinished Outcome = "finished"

	// OutcomeInterrupted - a later Speak, Destroy or engine cancellation cut it short.
	OutcomeInterrupted Outcome = "interrupted"

	// OutcomeSkipped - nothing was spoken: empty text, feedback disabled,
	// no synthesizer, or the controller was destroyed.
	OutcomeSkipped Outcome = "skipped"

	// OutcomeFailed - the synthesizer returned an error.
	OutcomeFailed Outcome = "failed"
)

// Human-readable status messages passed to OnVoiceStatusChange.
const (
	StatusListening      = "Listening for commands"
	StatusIdle           = "Voice control idle"
	StatusSpeaking       = "Speaking"
	StatusPaused         = "Voice control paused"
	StatusStopped        = "Voice control stopped"
	StatusUnsupported    = "Voice recognition is not available on this device"
	StatusPermission     = "Microphone permission denied. Voice control disabled"
	StatusNoMicrophone   = "No microphone available. Voice control disabled"
	statusRetryingFormat = "Voice recognition error (%s). Retrying in %.1f seconds"
)

// Status is a snapshot of the controller, safe to read from any goroutine.
type Status struct {
	State     State  `json:"state"`
	Message   string `json:"message"`
	Listening bool   `json:"listening"`
	Attempts  int    `json:"attempts"`
	Language  string `json:"language"`
	AutoStart bool   `json:"auto_start"`
	Feedback  bool   `json:"provide_feedback"`
}

func resolve(h chan Outcome, o Outcome) {
	h <- o
	close(h)
}
