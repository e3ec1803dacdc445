// Package config loads handsfree settings from an optional YAML file and
// HANDSFREE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "HANDSFREE_"

// Engine names accepted in the engines section.
const (
	EngineBridge = "bridge"
	EngineStdin  = "stdin"
	EngineSay    = "say"
	EngineEspeak = "espeak"
	EngineSpdSay = "spd-say"
	EngineNone   = "none"
)

var (
	recognizerNames  = []string{EngineBridge, EngineStdin, EngineNone}
	synthesizerNames = []string{EngineBridge, EngineSay, EngineEspeak, EngineSpdSay, EngineNone}
)

// Errors returned by Load and Validate.
var (
	ErrUnknownEngine = errors.New("config: unknown engine")
	ErrEmptyAddr     = errors.New("config: listen address is empty")
	ErrLanguage      = errors.New("config: language is empty")
)

// Config is the full handsfree configuration.
type Config struct {
	Log     LogConfig     `yaml:"log"`
	Server  ServerConfig  `yaml:"server"`
	Voice   VoiceConfig   `yaml:"voice"`
	Engines EnginesConfig `yaml:"engines"`
	Battery BatteryConfig `yaml:"battery"`
}

// LogConfig selects level and handler format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ServerConfig controls the HTTP surface.
type ServerConfig struct {
	Addr   string `yaml:"addr"`
	Bridge bool   `yaml:"bridge"`
}

// VoiceConfig seeds the controller configuration.
type VoiceConfig struct {
	AutoStart       bool   `yaml:"auto_start"`
	Language        string `yaml:"language"`
	ProvideFeedback bool   `yaml:"provide_feedback"`
}

// EnginesConfig lists engine preferences in resolution order.
type EnginesConfig struct {
	Recognizers    []string      `yaml:"recognizers"`
	Synthesizers   []string      `yaml:"synthesizers"`
	Voice          string        `yaml:"voice"`
	Rate           int           `yaml:"rate"`
	SilenceTimeout time.Duration `yaml:"silence_timeout"`
}

// BatteryConfig points at the power-supply class directory.
type BatteryConfig struct {
	Root string `yaml:"root"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Log:    LogConfig{Level: "info", Format: "text"},
		Server: ServerConfig{Addr: ":8085"},
		Voice: VoiceConfig{
			AutoStart:       true,
			Language:        "en-US",
			ProvideFeedback: true,
		},
		Engines: EnginesConfig{
			Recognizers:    []string{EngineBridge, EngineStdin},
			Synthesizers:   []string{EngineBridge, EngineSay, EngineEspeak, EngineSpdSay},
			SilenceTimeout: 8 * time.Second,
		},
		Battery: BatteryConfig{Root: "/sys/class/power_supply"},
	}
}

// Load reads path from fs over the defaults, then applies environment
// overrides. An empty path skips the file.
func Load(fs afero.Fs, path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := afero.ReadFile(fs, path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = splitList(v)
		}
	}
	boolean := func(key string, dst *bool) error {
		v, ok := lookup(EnvPrefix + key)
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: %s%s: %w", EnvPrefix, key, err)
		}
		*dst = b
		return nil
	}

	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("ADDR", &c.Server.Addr)
	str("LANGUAGE", &c.Voice.Language)
	str("VOICE", &c.Engines.Voice)
	str("BATTERY_ROOT", &c.Battery.Root)
	list("RECOGNIZERS", &c.Engines.Recognizers)
	list("SYNTHESIZERS", &c.Engines.Synthesizers)

	for key, dst := range map[string]*bool{
		"BRIDGE":           &c.Server.Bridge,
		"AUTO_START":       &c.Voice.AutoStart,
		"PROVIDE_FEEDBACK": &c.Voice.ProvideFeedback,
	} {
		if err := boolean(key, dst); err != nil {
			return err
		}
	}

	if v, ok := lookup(EnvPrefix + "SILENCE_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: %sSILENCE_TIMEOUT: %w", EnvPrefix, err)
		}
		c.Engines.SilenceTimeout = d
	}
	if v, ok := lookup(EnvPrefix + "RATE"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %sRATE: %w", EnvPrefix, err)
		}
		c.Engines.Rate = n
	}
	return nil
}

// Validate checks engine names, the listen address and the language.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return ErrEmptyAddr
	}
	if strings.TrimSpace(c.Voice.Language) == "" {
		return ErrLanguage
	}
	for _, name := range c.Engines.Recognizers {
		if !contains(recognizerNames, name) {
			return fmt.Errorf("%w: recognizer %q", ErrUnknownEngine, name)
		}
	}
	for _, name := range c.Engines.Synthesizers {
		if !contains(synthesizerNames, name) {
			return fmt.Errorf("%w: synthesizer %q", ErrUnknownEngine, name)
		}
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
