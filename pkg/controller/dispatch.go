package controller

import (
	"fmt"

	"github.com/teslashibe/handsfree/pkg/command"
)

const batteryUnavailable = "Battery status is not available"

var settingLabels = map[string]string{
	"haptic":        "Haptic feedback",
	"voice":         "Voice feedback",
	"contrast":      "High contrast",
	"announcements": "Announcements",
}

// dispatch fires the callback for intent and returns the confirmation to speak.
func (c *Controller) dispatch(intent command.Intent) string {
	cb := c.cfg.Callbacks

	switch intent.Kind {
	case command.ModeClose:
		call(cb.OnModeClose)
		return "Closing"

	case command.OpenNavigation:
		call(cb.OnNavigationOpen)
		return "Opening navigation"

	case command.OpenTextReader:
		call(cb.OnTextReadOpen)
		return "Opening text reader"

	case command.OpenSettings:
		call(cb.OnSettingsOpen)
		return "Opening settings"

	case command.ToggleSetting:
		if cb.OnToggleSetting != nil {
			cb.OnToggleSetting(intent.Setting, intent.Value)
		}
		label, ok := settingLabels[intent.Setting]
		if !ok {
			label = intent.Setting
		}
		state := "off"
		if intent.Value {
			state = "on"
		}
		return fmt.Sprintf("%s %s", label, state)

	case command.CheckBattery:
		if cb.OnCheckBattery == nil {
			return batteryUnavailable
		}
		return cb.OnCheckBattery()
	}
	return ""
}

func call(fn func()) {
	if fn != nil {
		fn()
	}
}
