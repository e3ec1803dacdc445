// Package server exposes the voice controller over HTTP and websockets.
package server

import (
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teslashibe/handsfree/pkg/bridge"
	"github.com/teslashibe/handsfree/pkg/controller"
	"github.com/teslashibe/handsfree/pkg/hub"
)

const activitySize = 200

// Controller is the subset of *controller.Controller the server drives.
type Controller interface {
	Start()
	Stop()
	Speak(text string) <-chan controller.Outcome
	UpdateConfig(p controller.Patch)
	Status() controller.Status
}

// Activity is one entry in the recent-activity log.
type Activity struct {
	Time    string `json:"time"`
	Type    string `json:"type"` // status, intent, speech
	Message string `json:"message"`
}

// Server is the handsfree HTTP surface.
type Server struct {
	app      *fiber.App
	ctrl     Controller
	hub      *hub.Hub
	bridge   *bridge.Bridge
	gatherer prometheus.Gatherer
	logger   *slog.Logger

	speakTimeout time.Duration

	activity   []Activity
	activityMu sync.RWMutex
}

// Option configures a Server.
type Option func(*Server)

// WithBridge mounts the engine bridge endpoint.
func WithBridge(b *bridge.Bridge) Option {
	return func(s *Server) { s.bridge = b }
}

// WithGatherer serves the given registry on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithSpeakTimeout bounds how long POST /api/speak waits when asked to.
func WithSpeakTimeout(d time.Duration) Option {
	return func(s *Server) { s.speakTimeout = d }
}

// New builds the fiber app. h carries status events to websocket subscribers.
func New(ctrl Controller, h *hub.Hub, opts ...Option) *Server {
	s := &Server{
		ctrl:         ctrl,
		hub:          h,
		gatherer:     prometheus.DefaultGatherer,
		logger:       slog.Default(),
		speakTimeout: 30 * time.Second,
		activity:     make([]Activity, 0, activitySize),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "server")

	app := fiber.New(fiber.Config{
		AppName:               "handsfree",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(cors.New())

	app.Get("/healthz", s.handleHealth)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Post("/start", s.handleStart)
	api.Post("/stop", s.handleStop)
	api.Post("/speak", s.handleSpeak)
	api.Patch("/config", s.handleConfig)
	api.Get("/activity", s.handleActivity)
	if s.bridge != nil {
		api.Get("/bridge", s.handleBridge)
	}

	app.Use("/ws", hub.Upgrade)
	app.Get("/ws/status", h.Handler(func() (string, any) {
		return hub.TypeStatus, s.ctrl.Status()
	}))
	if s.bridge != nil {
		s.bridge.RegisterRoutes(app)
	}

	s.app = app
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Serve serves on an existing listener until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("listening", "addr", ln.Addr().String())
	return s.app.Listener(ln)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// Record appends to the activity log and broadcasts the entry.
func (s *Server) Record(typ, message string) {
	entry := Activity{
		Time:    time.Now().Format("15:04:05"),
		Type:    typ,
		Message: message,
	}

	s.activityMu.Lock()
	s.activity = append(s.activity, entry)
	if len(s.activity) > activitySize {
		s.activity = s.activity[1:]
	}
	s.activityMu.Unlock()

	if err := s.hub.Publish(typ, entry); err != nil {
		s.logger.Warn("publish failed", "type", typ, "error", err)
	}
}
