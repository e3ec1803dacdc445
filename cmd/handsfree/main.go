// handsfree - hands-free voice control for an accessibility app.
// Listens continuously, maps short commands to app actions and confirms them
// aloud.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"

	"github.com/teslashibe/handsfree/internal/config"
	"github.com/teslashibe/handsfree/internal/log"
	"github.com/teslashibe/handsfree/pkg/app"
)

func main() {
	cfg, stdin := parseFlags()
	logger := log.Init(cfg.Log.Level, cfg.Log.Format)
	log.Info("starting handsfree", "addr", cfg.Server.Addr, "bridge", cfg.Server.Bridge, "stdin", stdin)

	var opts []app.Option
	opts = append(opts, app.WithLogger(logger))
	if stdin {
		opts = append(opts, app.WithInput(os.Stdin))
	}

	a, err := app.New(cfg, opts...)
	if err != nil {
		log.Error("configuration error", "error", err)
		os.Exit(1)
	}
	if err := a.Init(); err != nil {
		log.Error("initialization failed", "error", err)
		os.Exit(1)
	}
	defer a.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := a.Run(ctx); err != nil {
		log.Error("runtime error", "error", err)
		os.Exit(1)
	}
}

// parseFlags loads the config file and environment, then applies flags.
func parseFlags() (config.Config, bool) {
	path := flag.String("config", os.Getenv(config.EnvPrefix+"CONFIG"), "YAML config file")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	lang := flag.String("lang", "", "Recognition language, e.g. en-US")
	noFeedback := flag.Bool("no-feedback", false, "Disable spoken confirmations")
	noAutoStart := flag.Bool("no-autostart", false, "Do not start listening on launch")
	bridge := flag.Bool("bridge", false, "Accept a browser engine client on /ws/engine")
	stdin := flag.Bool("stdin", true, "Read transcripts from standard input")
	flag.Parse()

	cfg, err := config.Load(afero.NewOsFs(), *path)
	if err != nil {
		log.Error("config", "error", err)
		os.Exit(1)
	}

	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *debug {
		cfg.Log.Level = "debug"
	}
	if *lang != "" {
		cfg.Voice.Language = *lang
	}
	if *noFeedback {
		cfg.Voice.ProvideFeedback = false
	}
	if *noAutoStart {
		cfg.Voice.AutoStart = false
	}
	if *bridge {
		cfg.Server.Bridge = true
	}
	return cfg, *stdin
}
