package app

import (
	"fmt"

	"github.com/teslashibe/handsfree/pkg/command"
	"github.com/teslashibe/handsfree/pkg/controller"
	"github.com/teslashibe/handsfree/pkg/hub"
)

// callbacks logs each dispatched intent and mirrors it to the activity feed.
// The host screens this would drive live in the client, which follows the
// feed over /ws/status.
func (a *App) callbacks() controller.Callbacks {
	intent := func(kind command.Kind) func() {
		return func() {
			a.logger.Info("intent", "kind", kind)
			a.server.Record(hub.TypeIntent, string(kind))
		}
	}

	return controller.Callbacks{
		OnNavigationOpen: intent(command.OpenNavigation),
		OnTextReadOpen:   intent(command.OpenTextReader),
		OnSettingsOpen:   intent(command.OpenSettings),
		OnModeClose:      intent(command.ModeClose),
		OnToggleSetting: func(name string, value bool) {
			a.logger.Info("intent", "kind", command.ToggleSetting, "setting", name, "value", value)
			a.server.Record(hub.TypeIntent, fmt.Sprintf("%s %s=%t", command.ToggleSetting, name, value))
		},
		OnCheckBattery: func() string {
			msg := a.battery.Announce()
			a.logger.Info("intent", "kind", command.CheckBattery, "battery", msg)
			a.server.Record(hub.TypeIntent, string(command.CheckBattery))
			return msg
		},
		OnVoiceStatusChange: func(status string, listening bool) {
			a.logger.Info("voice status", "status", status, "listening", listening)
			a.server.Record(hub.TypeStatus, status)
		},
	}
}
