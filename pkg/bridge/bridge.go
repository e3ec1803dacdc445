// Package bridge runs speech engines in a remote browser page. The page opens
// a websocket, drives the Web Speech API on the server's behalf and reports
// back; the Bridge presents that page as an engine.Recognizer and an
// engine.Synthesizer.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/handsfree/pkg/engine"
)

// ErrSpeechFailed wraps failures reported by the client's synthesizer.
var ErrSpeechFailed = errors.New("bridge: speech failed")

// Bridge is both engines backed by one websocket client at a time.
type Bridge struct {
	logger *slog.Logger
	events chan engine.Event
	done   chan struct{}

	mu      sync.Mutex
	peer    *peer
	session bool
	pending map[string]chan error
	closed  bool

	received atomic.Uint64
	sent     atomic.Uint64
}

var (
	_ engine.Recognizer  = (*Bridge)(nil)
	_ engine.Synthesizer = (*Bridge)(nil)
)

type peer struct {
	id        string
	conn      *websocket.Conn
	connected time.Time

	wmu sync.Mutex
}

func (p *peer) send(msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	p.wmu.Lock()
	defer p.wmu.Unlock()
	return p.conn.WriteMessage(websocket.TextMessage, data)
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) {
		b.logger = logger
	}
}

// New creates a bridge with no client attached.
func New(opts ...Option) *Bridge {
	b := &Bridge{
		logger:  slog.Default(),
		events:  make(chan engine.Event, 64),
		done:    make(chan struct{}),
		pending: make(map[string]chan error),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("component", "bridge")
	return b
}

// RegisterRoutes mounts the engine endpoint. The caller installs the
// websocket upgrade check on the /ws prefix.
func (b *Bridge) RegisterRoutes(r fiber.Router) {
	r.Get("/ws/engine", websocket.New(b.handle))
}

// Info describes the attached client.
type Info struct {
	Connected bool      `json:"connected"`
	ClientID  string    `json:"client_id,omitempty"`
	Since     time.Time `json:"since,omitempty"`
	Session   bool      `json:"session"`
	Pending   int       `json:"pending_utterances"`
	Received  uint64    `json:"messages_received"`
	Sent      uint64    `json:"messages_sent"`
}

// Info returns a snapshot of the connection.
func (b *Bridge) Info() Info {
	b.mu.Lock()
	defer b.mu.Unlock()

	info := Info{
		Session:  b.session,
		Pending:  len(b.pending),
		Received: b.received.Load(),
		Sent:     b.sent.Load(),
	}
	if b.peer != nil {
		info.Connected = true
		info.ClientID = b.peer.id
		info.Since = b.peer.connected
	}
	return info
}

// Connected reports whether a client is attached.
func (b *Bridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.peer != nil
}

func (b *Bridge) handle(conn *websocket.Conn) {
	p := &peer{id: uuid.NewString(), conn: conn, connected: time.Now()}
	if !b.attach(p) {
		conn.Close()
		return
	}
	defer b.detach(p, "client disconnected")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			b.logger.Debug("read ended", "client", p.id, "error", err)
			return
		}
		b.received.Add(1)

		msg, err := ParseMessage(data)
		if err != nil {
			b.logger.Warn("bad message", "client", p.id, "error", err)
			continue
		}
		b.handleMessage(p, msg)
	}
}

// attach makes p the current client, replacing any older one.
func (b *Bridge) attach(p *peer) bool {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return false
	}
	old := b.peer
	b.peer = p
	evs := b.resetLocked()
	b.mu.Unlock()

	if old != nil {
		b.logger.Info("client replaced", "old", old.id, "new", p.id)
		old.conn.Close()
	} else {
		b.logger.Info("client connected", "client", p.id)
	}
	b.emit(evs...)
	return true
}

// detach drops p if it is still the current client.
func (b *Bridge) detach(p *peer, reason string) {
	b.mu.Lock()
	if b.peer != p {
		b.mu.Unlock()
		return
	}
	b.peer = nil
	evs := b.resetLocked()
	b.mu.Unlock()

	b.logger.Info(reason, "client", p.id)
	b.emit(evs...)
}

// resetLocked ends the running session and fails pending utterances. It
// returns the events to emit once the lock is released.
func (b *Bridge) resetLocked() []engine.Event {
	for id, ch := range b.pending {
		ch <- engine.ErrNotConnected
		delete(b.pending, id)
	}
	if !b.session {
		return nil
	}
	b.session = false
	return []engine.Event{
		{Kind: engine.EventError, Code: engine.CodeNetwork, Detail: "engine client disconnected"},
		{Kind: engine.EventSessionEnded},
	}
}

func (b *Bridge) handleMessage(p *peer, msg *Message) {
	switch msg.Type {
	case TypeRecognizeStarted:
		if b.current(p) {
			b.emit(engine.Event{Kind: engine.EventSessionStarted})
		}

	case TypeRecognizeResult:
		var d ResultData
		if err := msg.Decode(&d); err != nil {
			b.logger.Warn("bad result", "error", err)
			return
		}
		if b.current(p) {
			b.emit(engine.Event{Kind: engine.EventResult, Transcript: d.Transcript})
		}

	case TypeRecognizeError:
		var d ErrorData
		if err := msg.Decode(&d); err != nil {
			b.logger.Warn("bad error report", "error", err)
			return
		}
		if b.current(p) {
			b.emit(engine.Event{Kind: engine.EventError, Code: engine.ErrorCode(d.Code), Detail: d.Message})
		}

	case TypeRecognizeEnd:
		b.mu.Lock()
		ok := b.peer == p && b.session
		if ok {
			b.session = false
		}
		b.mu.Unlock()
		if ok {
			b.emit(engine.Event{Kind: engine.EventSessionEnded})
		}

	case TypeSpeakEnd:
		var d SpeakEndData
		if err := msg.Decode(&d); err != nil {
			b.logger.Warn("bad speak.end", "error", err)
			return
		}
		var result error
		if d.Error != "" {
			result = fmt.Errorf("%w: %s", ErrSpeechFailed, d.Error)
		}
		b.mu.Lock()
		if ch, ok := b.pending[d.ID]; ok {
			ch <- result
			delete(b.pending, d.ID)
		}
		b.mu.Unlock()

	case TypePing:
		pong, err := NewMessage(TypePong, PongData{PingTS: msg.Timestamp, ServerTS: time.Now().UnixMilli()})
		if err == nil {
			b.write(p, pong)
		}

	default:
		b.logger.Debug("ignoring message", "type", msg.Type)
	}
}

func (b *Bridge) current(p *peer) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.peer == p && b.session
}

func (b *Bridge) emit(evs ...engine.Event) {
	for _, ev := range evs {
		select {
		case b.events <- ev:
		case <-b.done:
			return
		}
	}
}

func (b *Bridge) write(p *peer, msg *Message) error {
	if err := p.send(msg); err != nil {
		return fmt.Errorf("bridge: send %s: %w", msg.Type, err)
	}
	b.sent.Add(1)
	return nil
}

// command sends a message to the current client.
func (b *Bridge) command(t MessageType, data any) error {
	msg, err := NewMessage(t, data)
	if err != nil {
		return err
	}
	b.mu.Lock()
	p := b.peer
	b.mu.Unlock()
	if p == nil {
		return engine.ErrNotConnected
	}
	return b.write(p, msg)
}

// Start asks the client to begin a recognition session.
func (b *Bridge) Start(opts engine.SessionOptions) error {
	msg, err := NewMessage(TypeRecognizeStart, StartData{Language: opts.Language})
	if err != nil {
		return err
	}

	b.mu.Lock()
	switch {
	case b.closed:
		b.mu.Unlock()
		return engine.ErrClosed
	case b.peer == nil:
		b.mu.Unlock()
		return &engine.CodeError{Code: engine.CodeNetwork, Err: engine.ErrNotConnected}
	case b.session:
		b.mu.Unlock()
		return engine.ErrSessionActive
	}
	p := b.peer
	b.session = true
	b.mu.Unlock()

	if err := b.write(p, msg); err != nil {
		b.mu.Lock()
		if b.peer == p {
			b.session = false
		}
		b.mu.Unlock()
		return &engine.CodeError{Code: engine.CodeNetwork, Err: err}
	}
	return nil
}

// Stop asks the client to end the session, keeping any pending result.
func (b *Bridge) Stop() error {
	if !b.inSession() {
		return nil
	}
	return b.command(TypeRecognizeStop, nil)
}

// Abort asks the client to drop the session. The client reports "aborted".
func (b *Bridge) Abort() error {
	if !b.inSession() {
		return nil
	}
	return b.command(TypeRecognizeAbort, nil)
}

func (b *Bridge) inSession() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session && b.peer != nil
}

// Events returns the recognition event stream.
func (b *Bridge) Events() <-chan engine.Event {
	return b.events
}

// Speak sends u to the client and waits for its speak.end. Cancelling ctx
// sends speak.cancel and returns ctx.Err().
func (b *Bridge) Speak(ctx context.Context, u engine.Utterance) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	msg, err := NewMessage(TypeSpeak, SpeakData{ID: u.ID, Text: u.Text, Language: u.Language})
	if err != nil {
		return err
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return engine.ErrClosed
	}
	p := b.peer
	if p == nil {
		b.mu.Unlock()
		return engine.ErrNotConnected
	}
	ch := make(chan error, 1)
	b.pending[u.ID] = ch
	b.mu.Unlock()

	if err := b.write(p, msg); err != nil {
		b.forget(u.ID)
		return err
	}

	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		if b.forget(u.ID) {
			if err := b.command(TypeSpeakCancel, SpeakCancelData{ID: u.ID}); err != nil {
				b.logger.Debug("cancel not delivered", "id", u.ID, "error", err)
			}
		}
		return ctx.Err()
	}
}

// forget drops a pending utterance, reporting whether it was still pending.
func (b *Bridge) forget(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.pending[id]; !ok {
		return false
	}
	delete(b.pending, id)
	return true
}

// Close disconnects the client and fails pending work. Events stays open.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	p := b.peer
	b.peer = nil
	b.resetLocked()
	close(b.done)
	b.mu.Unlock()

	if p != nil {
		p.conn.Close()
	}
	return nil
}
