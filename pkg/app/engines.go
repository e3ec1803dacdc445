package app

import (
	"github.com/teslashibe/handsfree/internal/config"
	"github.com/teslashibe/handsfree/pkg/engine"
)

func (a *App) recognizers() []engine.Candidate[engine.Recognizer] {
	var out []engine.Candidate[engine.Recognizer]
	for _, name := range a.cfg.Engines.Recognizers {
		switch name {
		case config.EngineBridge:
			out = append(out, engine.Candidate[engine.Recognizer]{
				Name:      name,
				Available: func() bool { return a.bridge != nil },
				Open:      func() (engine.Recognizer, error) { return a.bridge, nil },
			})
		case config.EngineStdin:
			out = append(out, engine.Candidate[engine.Recognizer]{
				Name:      name,
				Available: func() bool { return a.input != nil },
				Open: func() (engine.Recognizer, error) {
					return engine.NewLineRecognizer(a.input,
						engine.WithSilenceTimeout(a.cfg.Engines.SilenceTimeout),
						engine.WithLineLogger(a.logger),
					), nil
				},
			})
		case config.EngineNone:
			return out
		}
	}
	return out
}

func (a *App) synthesizers() []engine.Candidate[engine.Synthesizer] {
	opts := engine.CommandOptions{
		Voice:  a.cfg.Engines.Voice,
		Rate:   a.cfg.Engines.Rate,
		Logger: a.logger,
	}

	var out []engine.Candidate[engine.Synthesizer]
	command := func(s *engine.CommandSynthesizer) engine.Candidate[engine.Synthesizer] {
		return engine.Candidate[engine.Synthesizer]{
			Name:      s.Name(),
			Available: s.Available,
			Open:      func() (engine.Synthesizer, error) { return s, nil },
		}
	}

	for _, name := range a.cfg.Engines.Synthesizers {
		switch name {
		case config.EngineBridge:
			out = append(out, engine.Candidate[engine.Synthesizer]{
				Name:      name,
				Available: func() bool { return a.bridge != nil },
				Open:      func() (engine.Synthesizer, error) { return a.bridge, nil },
			})
		case config.EngineSay:
			out = append(out, command(engine.NewSay(opts)))
		case config.EngineEspeak:
			out = append(out, command(engine.NewEspeak(opts)))
		case config.EngineSpdSay:
			out = append(out, command(engine.NewSpdSay(opts)))
		case config.EngineNone:
			return out
		}
	}
	return out
}
