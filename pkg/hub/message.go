// Package hub fans controller events out to websocket subscribers through a
// single goroutine that owns the client set.
package hub

import (
	"encoding/json"
	"time"
)

// Event types published by handsfree.
const (
	TypeStatus = "status"
	TypeIntent = "intent"
	TypeSpeech = "speech"
)

// Event is the JSON envelope sent to every subscriber.
type Event struct {
	Type string          `json:"type"`
	Time int64           `json:"ts"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEvent encodes data into an envelope stamped with the current time.
func NewEvent(typ string, data any) (Event, error) {
	ev := Event{Type: typ, Time: time.Now().UnixMilli()}
	if data == nil {
		return ev, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return ev, err
	}
	ev.Data = raw
	return ev, nil
}
