// Package command maps recognized transcripts to application intents.
//
// Matching is keyword based and ordered: the first rule that matches wins.
// Parse never fails; a transcript that matches nothing yields no intent.
package command

import (
	"regexp"
	"strings"
)

// Kind identifies an intent.
type Kind string

const (
	ModeClose      Kind = "mode_close"
	OpenNavigation Kind = "open_navigation"
	OpenTextReader Kind = "open_text_reader"
	OpenSettings   Kind = "open_settings"
	ToggleSetting  Kind = "toggle_setting"
	CheckBattery   Kind = "check_battery"
)

// Intent is the action parsed from a transcript.
type Intent struct {
	Kind Kind

	// Setting and Value are set for ToggleSetting.
	Setting string
	Value   bool
}

type keywordRule struct {
	kind     Kind
	keywords []string
}

type toggleRule struct {
	setting string
	keyword *regexp.Regexp
}

// Rules 1-4, tested in order by substring containment.
var intentTable = []keywordRule{
	{ModeClose, []string{"close", "go home", "home screen", "exit", "go back"}},
	{OpenNavigation, []string{"navigat", "directions", "guide me"}},
	{OpenTextReader, []string{"read text", "read this", "text reader", "read the"}},
	{OpenSettings, []string{"settings", "preferences", "options"}},
}

// Toggleable settings, tested in order once a modifier is present.
var toggleTable = []toggleRule{
	{"haptic", regexp.MustCompile(`\b(haptic|haptics|vibration|vibrate)\b`)},
	{"voice", regexp.MustCompile(`\b(voice feedback|spoken feedback|speech|voice)\b`)},
	{"contrast", regexp.MustCompile(`\b(high contrast|contrast)\b`)},
	{"announcements", regexp.MustCompile(`\b(announcements?|auto read|scene description)\b`)},
}

var (
	modifierPattern = regexp.MustCompile(`\b(on|off|enable|enabled|disable|disabled|activate|deactivate)\b`)
	batteryKeyword  = "battery"
)

// Settings returns the names of the toggleable settings, in match order.
func Settings() []string {
	names := make([]string, len(toggleTable))
	for i, r := range toggleTable {
		names[i] = r.setting
	}
	return names
}

// Normalize lower-cases and trims a raw transcript.
func Normalize(transcript string) string {
	return strings.ToLower(strings.TrimSpace(transcript))
}

// Parse returns the intent for a normalized transcript.
func Parse(transcript string) (Intent, bool) {
	if transcript == "" {
		return Intent{}, false
	}

	for _, rule := range intentTable {
		if containsAny(transcript, rule.keywords) {
			return Intent{Kind: rule.kind}, true
		}
	}

	if value, ok := modifier(transcript); ok {
		for _, rule := range toggleTable {
			if rule.keyword.MatchString(transcript) {
				return Intent{Kind: ToggleSetting, Setting: rule.setting, Value: value}, true
			}
		}
	}

	if strings.Contains(transcript, batteryKeyword) {
		return Intent{Kind: CheckBattery}, true
	}

	return Intent{}, false
}

// modifier resolves the first on/off word in the transcript.
func modifier(transcript string) (bool, bool) {
	m := modifierPattern.FindString(transcript)
	switch m {
	case "":
		return false, false
	case "on", "enable", "enabled", "activate":
		return true, true
	default:
		return false, true
	}
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
