package bootstrap

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"

	"jrm/internal/config"
	"jrm/internal/logger"
)

type closer struct {
	name string
	fn   func(ctx context.Context) error
}

// Base owns the configuration, logger and every resource that must be
// released on shutdown.
type Base struct {
	Config *config.Config
	Logger logger.Logger

	mu      sync.Mutex
	closers []closer
}

func NewBase(cfg *config.Config, log logger.Logger) *Base {
	return &Base{
		Config: cfg,
		Logger: log,
	}
}

// OnShutdown registers fn to run during Shutdown. Resources are released
// in reverse registration order.
func (b *Base) OnShutdown(name string, fn func(ctx context.Context) error) {
	b.mu.Lock()
	b.closers = append(b.closers, closer{name: name, fn: fn})
	b.mu.Unlock()
}

func (b *Base) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	closers := b.closers
	b.closers = nil
	b.mu.Unlock()

	var err error
	for i := len(closers) - 1; i >= 0; i-- {
		c := closers[i]
		if closeErr := c.fn(ctx); closeErr != nil {
			err = multierr.Append(err, fmt.Errorf("%s close error: %w", c.name, closeErr))
		}
	}
	if err != nil {
		return err
	}

	b.Logger.Debug("Application resources released")
	return nil
}
