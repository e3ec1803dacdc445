package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
)

// CommandSynthesizer speaks through a host text-to-speech binary.
type CommandSynthesizer struct {
	name   string
	binary string
	args   func(u Utterance) []string
	goos   string
	logger *slog.Logger
}

// CommandOptions tunes the voice of the host synthesizer.
type CommandOptions struct {
	Voice  string // engine-specific voice name; empty uses the default
	Rate   int    // words per minute; zero uses the default
	Logger *slog.Logger
}

// NewSay returns a synthesizer backed by the macOS say command.
func NewSay(opts CommandOptions) *CommandSynthesizer {
	return newCommand("say", "say", "darwin", opts, func(u Utterance) []string {
		var args []string
		if opts.Voice != "" {
			args = append(args, "-v", opts.Voice)
		}
		if opts.Rate > 0 {
			args = append(args, "-r", strconv.Itoa(opts.Rate))
		}
		return append(args, u.Text)
	})
}

// NewEspeak returns a synthesizer backed by espeak-ng.
func NewEspeak(opts CommandOptions) *CommandSynthesizer {
	return newCommand("espeak", "espeak-ng", "", opts, func(u Utterance) []string {
		var args []string
		switch {
		case opts.Voice != "":
			args = append(args, "-v", opts.Voice)
		case u.Language != "":
			args = append(args, "-v", espeakVoice(u.Language))
		}
		if opts.Rate > 0 {
			args = append(args, "-s", strconv.Itoa(opts.Rate))
		}
		return append(args, "--", u.Text)
	})
}

// NewSpdSay returns a synthesizer backed by speech-dispatcher's spd-say.
func NewSpdSay(opts CommandOptions) *CommandSynthesizer {
	return newCommand("spd-say", "spd-say", "linux", opts, func(u Utterance) []string {
		args := []string{"--wait"}
		if u.Language != "" {
			args = append(args, "-l", espeakVoice(u.Language))
		}
		if opts.Voice != "" {
			args = append(args, "-y", opts.Voice)
		}
		return append(args, "--", u.Text)
	})
}

func newCommand(name, binary, goos string, opts CommandOptions, args func(Utterance) []string) *CommandSynthesizer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandSynthesizer{
		name:   name,
		binary: binary,
		args:   args,
		goos:   goos,
		logger: logger.With("component", "engine.command", "engine", name),
	}
}

// espeakVoice maps "en-US" to "en-us".
func espeakVoice(lang string) string {
	return strings.ToLower(lang)
}

// Name returns the engine name.
func (c *CommandSynthesizer) Name() string {
	return c.name
}

// Available reports whether the binary exists on this host.
func (c *CommandSynthesizer) Available() bool {
	if c.goos != "" && runtime.GOOS != c.goos {
		return false
	}
	_, err := exec.LookPath(c.binary)
	return err == nil
}

// Speak runs the binary and waits for it to exit.
func (c *CommandSynthesizer) Speak(ctx context.Context, u Utterance) error {
	cmd := exec.CommandContext(ctx, c.binary, c.args(u)...)
	c.logger.Debug("speaking", "utterance", u.ID, "chars", len(u.Text))

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("engine [%s]: %w", c.name, err)
	}
	return nil
}

// Close is a no-op.
func (c *CommandSynthesizer) Close() error {
	return nil
}
