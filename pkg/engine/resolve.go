package engine

import (
	"fmt"
	"log/slog"
)

// Candidate is one engine implementation the host may offer.
type Candidate[T any] struct {
	// Name identifies the engine in configuration and logs.
	Name string

	// Available reports whether the engine can run on this host.
	// A nil Available is treated as always available.
	Available func() bool

	// Open constructs the engine.
	Open func() (T, error)
}

// Resolve returns the first available candidate that opens successfully,
// along with its name. Candidates are tried in order.
func Resolve[T any](logger *slog.Logger, candidates ...Candidate[T]) (T, string, error) {
	var zero T
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "engine.resolve")

	var lastErr error
	for _, c := range candidates {
		if c.Open == nil {
			continue
		}
		if c.Available != nil && !c.Available() {
			logger.Debug("engine unavailable", "engine", c.Name)
			continue
		}
		e, err := c.Open()
		if err != nil {
			lastErr = err
			logger.Warn("engine failed to open, trying next", "engine", c.Name, "error", err)
			continue
		}
		logger.Info("engine selected", "engine", c.Name)
		return e, c.Name, nil
	}

	if lastErr != nil {
		return zero, "", fmt.Errorf("%w: %v", ErrNoEngine, lastErr)
	}
	return zero, "", ErrNoEngine
}
