// Package app wires engines, the voice controller, metrics and the HTTP
// surface into one process.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/afero"

	"github.com/teslashibe/handsfree/internal/battery"
	"github.com/teslashibe/handsfree/internal/config"
	"github.com/teslashibe/handsfree/internal/metrics"
	"github.com/teslashibe/handsfree/pkg/bridge"
	"github.com/teslashibe/handsfree/pkg/controller"
	"github.com/teslashibe/handsfree/pkg/engine"
	"github.com/teslashibe/handsfree/pkg/hub"
	"github.com/teslashibe/handsfree/pkg/server"
)

// App is a running handsfree instance.
type App struct {
	cfg    config.Config
	logger *slog.Logger
	input  io.Reader
	fs     afero.Fs
	reg    *prometheus.Registry

	bridge  *bridge.Bridge
	rec     engine.Recognizer
	synth   engine.Synthesizer
	recName string
	synName string

	hub     *hub.Hub
	ctrl    *controller.Controller
	server  *server.Server
	battery *battery.Reader
}

// Option configures an App.
type Option func(*App)

// WithInput feeds the stdin recognizer from r.
func WithInput(r io.Reader) Option {
	return func(a *App) { a.input = r }
}

// WithFs sets the filesystem used for battery readings.
func WithFs(fs afero.Fs) Option {
	return func(a *App) { a.fs = fs }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) { a.logger = logger }
}

// WithRegistry sets the Prometheus registry served on /metrics.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(a *App) { a.reg = reg }
}

// New validates cfg and prepares an App. Call Init before Run.
func New(cfg config.Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{
		cfg:    cfg,
		logger: slog.Default(),
		fs:     afero.NewOsFs(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.reg == nil {
		a.reg = prometheus.NewRegistry()
		a.reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	return a, nil
}

// Init resolves engines and builds the controller and server. Recognition
// starts here when auto start is configured.
func (a *App) Init() error {
	a.battery = battery.NewReader(a.fs, a.cfg.Battery.Root)
	a.hub = hub.New(a.logger)

	if a.cfg.Server.Bridge {
		a.bridge = bridge.New(bridge.WithLogger(a.logger))
	}

	var err error
	a.rec, a.recName, err = engine.Resolve(a.logger, a.recognizers()...)
	if err != nil && !errors.Is(err, engine.ErrNoEngine) {
		return fmt.Errorf("app: recognizer: %w", err)
	}
	a.synth, a.synName, err = engine.Resolve(a.logger, a.synthesizers()...)
	if err != nil && !errors.Is(err, engine.ErrNoEngine) {
		return fmt.Errorf("app: synthesizer: %w", err)
	}
	if a.rec == nil {
		a.logger.Warn("no speech recognizer available; voice control stays idle")
	}
	if a.synth == nil {
		a.logger.Warn("no speech synthesizer available; feedback is silent")
	}

	var srvOpts []server.Option
	srvOpts = append(srvOpts, server.WithGatherer(a.reg), server.WithLogger(a.logger))
	if a.bridge != nil {
		srvOpts = append(srvOpts, server.WithBridge(a.bridge))
	}

	// The server needs the controller and the controller's callbacks need
	// the server, so the server is built against a late-bound proxy.
	proxy := &controllerProxy{}
	a.server = server.New(proxy, a.hub, srvOpts...)

	cfg := controller.Config{
		AutoStart:       a.cfg.Voice.AutoStart,
		Language:        a.cfg.Voice.Language,
		ProvideFeedback: a.cfg.Voice.ProvideFeedback,
		Callbacks:       a.callbacks(),
	}
	a.ctrl = controller.New(a.rec, a.synth, cfg,
		controller.WithLogger(a.logger),
		controller.WithMetrics(metrics.New(a.reg)),
	)
	proxy.Controller = a.ctrl

	a.logger.Info("voice control ready",
		"recognizer", nameOr(a.recName),
		"synthesizer", nameOr(a.synName),
		"language", cfg.Language,
		"auto_start", cfg.AutoStart,
	)
	return nil
}

// controllerProxy forwards to a controller assigned after construction.
type controllerProxy struct {
	*controller.Controller
}

func nameOr(name string) string {
	if name == "" {
		return config.EngineNone
	}
	return name
}

// Run serves HTTP and the status hub until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("app: listen: %w", err)
	}
	return a.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	go a.hub.Run(ctx)

	errc := make(chan error, 1)
	go func() { errc <- a.server.Serve(ln) }()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errc:
		return err
	}
}

// Controller returns the voice controller.
func (a *App) Controller() *controller.Controller {
	return a.ctrl
}

// Server returns the HTTP server.
func (a *App) Server() *server.Server {
	return a.server
}

// Shutdown stops the controller, the server and the engines.
func (a *App) Shutdown() {
	if a.ctrl != nil {
		a.ctrl.Destroy()
		<-a.ctrl.Done()
	}
	if a.server != nil {
		if err := a.server.Shutdown(); err != nil {
			a.logger.Warn("server shutdown", "error", err)
		}
	}
	if a.rec != nil {
		a.rec.Close()
	}
	if a.synth != nil {
		a.synth.Close()
	}
	if a.bridge != nil {
		a.bridge.Close()
	}
	a.logger.Info("voice control shut down")
}
