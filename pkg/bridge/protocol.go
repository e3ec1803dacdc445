package bridge

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies a bridge websocket message.
type MessageType string

const (
	// Server → client
	TypeRecognizeStart MessageType = "recognize.start"
	TypeRecognizeStop  MessageType = "recognize.stop"
	TypeRecognizeAbort MessageType = "recognize.abort"
	TypeSpeak          MessageType = "speak"
	TypeSpeakCancel    MessageType = "speak.cancel"
	TypePong           MessageType = "pong"

	// Client → server
	TypeRecognizeStarted MessageType = "recognize.started"
	TypeRecognizeResult  MessageType = "recognize.result"
	TypeRecognizeEnd     MessageType = "recognize.end"
	TypeRecognizeError   MessageType = "recognize.error"
	TypeSpeakEnd         MessageType = "speak.end"
	TypePing             MessageType = "ping"
)

// Message is the envelope for every bridge frame.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage wraps data in an envelope stamped with the current time.
func NewMessage(t MessageType, data any) (*Message, error) {
	var raw json.RawMessage
	if data != nil {
		var err error
		if raw, err = json.Marshal(data); err != nil {
			return nil, fmt.Errorf("bridge: marshal %s: %w", t, err)
		}
	}
	return &Message{Type: t, Timestamp: time.Now().UnixMilli(), Data: raw}, nil
}

// ParseMessage decodes one frame.
func ParseMessage(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("bridge: parse message: %w", err)
	}
	if m.Type == "" {
		return nil, fmt.Errorf("bridge: message without type")
	}
	return &m, nil
}

// Decode unmarshals the payload into v. An empty payload leaves v untouched.
func (m *Message) Decode(v any) error {
	if len(m.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("bridge: decode %s: %w", m.Type, err)
	}
	return nil
}

// StartData asks the client to open a recognition session.
type StartData struct {
	Language string `json:"language"`
}

// ResultData carries a final transcript.
type ResultData struct {
	Transcript string `json:"transcript"`
}

// ErrorData carries a recognition error code such as "no-speech".
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// SpeakData asks the client to speak an utterance.
type SpeakData struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
}

// SpeakCancelData cancels an utterance by ID.
type SpeakCancelData struct {
	ID string `json:"id"`
}

// SpeakEndData reports that an utterance stopped. A non-empty Error means it
// failed.
type SpeakEndData struct {
	ID    string `json:"id"`
	Error string `json:"error,omitempty"`
}

// PongData answers a ping.
type PongData struct {
	PingTS   int64 `json:"ping_ts"`
	ServerTS int64 `json:"server_ts"`
}
