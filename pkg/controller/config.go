package controller

// Callbacks are the application hooks fired by the controller. All of them
// run on the controller's event loop; they may call back into the controller
// but must not block.
type Callbacks struct {
	OnNavigationOpen func()
	OnTextReadOpen   func()
	OnSettingsOpen   func()
	OnModeClose      func()

	// OnVoiceStatusChange fires on every observable state change.
	OnVoiceStatusChange func(status string, listening bool)

	// OnToggleSetting fires on a matched toggle intent.
	OnToggleSetting func(name string, value bool)

	// OnCheckBattery is called for a battery intent; the result is spoken.
	OnCheckBattery func() string
}

// Config is the controller configuration. The controller keeps its own copy;
// change it through UpdateConfig or ReplaceConfig.
type Config struct {
	// AutoStart restarts recognition after a session ends, after speech and
	// after a retry. A fatal error clears it.
	AutoStart bool

	// Language is applied to the next recognition session.
	Language string

	// ProvideFeedback gates spoken confirmations and Speak.
	ProvideFeedback bool

	Callbacks Callbacks
}

// DefaultConfig returns a listening, talking configuration in US English.
func DefaultConfig() Config {
	return Config{
		AutoStart:       true,
		Language:        "en-US",
		ProvideFeedback: true,
	}
}

// Patch is a partial Config. Nil fields are left unchanged; a non-nil
// Callbacks replaces the whole callback table.
type Patch struct {
	AutoStart       *bool
	Language        *string
	ProvideFeedback *bool
	Callbacks       *Callbacks
}

// Apply returns cfg with the patch merged in.
func (p Patch) Apply(cfg Config) Config {
	if p.AutoStart != nil {
		cfg.AutoStart = *p.AutoStart
	}
	if p.Language != nil {
		cfg.Language = *p.Language
	}
	if p.ProvideFeedback != nil {
		cfg.ProvideFeedback = *p.ProvideFeedback
	}
	if p.Callbacks != nil {
		cfg.Callbacks = *p.Callbacks
	}
	return cfg
}

// Bool returns a pointer to v, for building a Patch.
func Bool(v bool) *bool {
	return &v
}

// String returns a pointer to v, for building a Patch.
func String(v string) *string {
	return &v
}
