package hub

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
)

func serve(t *testing.T, h *Hub, onConnect func() (string, any)) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use("/ws", Upgrade)
	app.Get("/ws/status", h.Handler(onConnect))
	go app.Listener(ln)
	t.Cleanup(func() { _ = app.Shutdown() })

	return "ws://" + ln.Addr().String() + "/ws/status"
}

func readEvent(t *testing.T, ws *websocket.Conn) Event {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("decode %q: %v", data, err)
	}
	return ev
}

func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, have %d", n, h.ClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNewEvent(t *testing.T) {
	ev, err := NewEvent(TypeIntent, map[string]string{"kind": "open_navigation"})
	if err != nil {
		t.Fatal(err)
	}
	if ev.Type != TypeIntent || ev.Time == 0 {
		t.Errorf("unexpected envelope %+v", ev)
	}
	if string(ev.Data) != `{"kind":"open_navigation"}` {
		t.Errorf("unexpected data %s", ev.Data)
	}

	if _, err := NewEvent(TypeStatus, make(chan int)); err == nil {
		t.Error("expected encoding error")
	}
}

func TestBroadcast(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := New(nil)
	go h.Run(ctx)
	url := serve(t, h, func() (string, any) {
		return TypeStatus, map[string]string{"state": "idle"}
	})

	a, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer a.Close()
	b, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer b.Close()

	for _, ws := range []*websocket.Conn{a, b} {
		if ev := readEvent(t, ws); ev.Type != TypeStatus {
			t.Errorf("expected snapshot, got %+v", ev)
		}
	}
	waitClients(t, h, 2)

	if err := h.Publish(TypeIntent, map[string]string{"kind": "check_battery"}); err != nil {
		t.Fatal(err)
	}
	for _, ws := range []*websocket.Conn{a, b} {
		ev := readEvent(t, ws)
		if ev.Type != TypeIntent || string(ev.Data) != `{"kind":"check_battery"}` {
			t.Errorf("unexpected event %+v", ev)
		}
	}

	a.Close()
	waitClients(t, h, 1)
}

func TestRunStopDisconnects(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := New(nil)
	go h.Run(ctx)
	url := serve(t, h, nil)

	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()
	waitClients(t, h, 1)

	cancel()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := ws.ReadMessage(); err == nil {
		t.Error("expected the connection to close")
	}
	waitClients(t, h, 0)
}

func TestUpgradeRequired(t *testing.T) {
	h := New(nil)
	app := fiber.New()
	app.Use("/ws", Upgrade)
	app.Get("/ws/status", h.Handler(nil))

	req, _ := http.NewRequest("GET", "/ws/status", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusUpgradeRequired {
		t.Errorf("expected 426, got %d", resp.StatusCode)
	}
}
