// Package watcher keeps a local copy of the manager's rule set current.
package watcher

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"jrm/internal/config"
	"jrm/internal/logger"
	pkgerrors "jrm/pkg/errors"
	"jrm/pkg/metrics"
	"jrm/pkg/retry"
	"jrm/pkg/rules"
)

const (
	defaultInterval        = 30 * time.Second
	defaultInitialInterval = time.Second
	defaultMultiplier      = 2.0
)

// RuleSetFetcher is satisfied by *manager.Client.
type RuleSetFetcher interface {
	GetRuleSet(ctx context.Context) (rules.RuleSet, error)
}

type ChangeFunc func(prev, next rules.RuleSet)

type Watcher struct {
	fetcher RuleSetFetcher
	cfg     config.WatcherConfig
	logger  logger.Logger

	interval time.Duration

	mu      sync.RWMutex
	current rules.RuleSet
	loaded  bool

	listenersMu sync.Mutex
	listeners   []ChangeFunc
}

func New(fetcher RuleSetFetcher, cfg config.WatcherConfig, log logger.Logger) *Watcher {
	if log == nil {
		log = logger.NopLogger()
	}
	interval := time.Duration(cfg.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Watcher{
		fetcher:  fetcher,
		cfg:      cfg,
		logger:   log,
		interval: interval,
	}
}

// Current returns the latest snapshot; ok is false until a reload succeeded.
func (w *Watcher) Current() (rules.RuleSet, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current, w.loaded
}

// OnChange registers fn to run after every reload that changed the
// snapshot, including the first one. Callbacks run synchronously on the
// reloading goroutine; a panicking callback is logged and skipped.
func (w *Watcher) OnChange(fn ChangeFunc) {
	w.listenersMu.Lock()
	w.listeners = append(w.listeners, fn)
	w.listenersMu.Unlock()
}

// Reload fetches the rule set once and swaps it in. The previous snapshot
// is kept when the fetch fails.
func (w *Watcher) Reload(ctx context.Context) error {
	rs, err := w.fetcher.GetRuleSet(ctx)
	if err != nil {
		metrics.IncWatcherReload("error")
		return err
	}
	metrics.IncWatcherReload("success")

	w.mu.Lock()
	old, wasLoaded := w.current, w.loaded
	w.current = rs
	w.loaded = true
	w.mu.Unlock()

	metrics.SetWatcherRuleSet(len(rs.Rules), rs.Timestamp)

	if wasLoaded && old.Equal(rs) {
		w.logger.DebugwCtx(ctx, "Rule set unchanged", "timestamp", rs.Timestamp)
		return nil
	}

	w.logger.InfowCtx(ctx, "Rule set updated",
		"rules_count", len(rs.Rules),
		"timestamp", rs.Timestamp,
	)
	w.notify(ctx, old, rs)
	return nil
}

func (w *Watcher) notify(ctx context.Context, prev, next rules.RuleSet) {
	w.listenersMu.Lock()
	listeners := append([]ChangeFunc(nil), w.listeners...)
	w.listenersMu.Unlock()

	for _, fn := range listeners {
		w.invoke(ctx, fn, prev, next)
	}
}

func (w *Watcher) invoke(ctx context.Context, fn ChangeFunc, prev, next rules.RuleSet) {
	defer func() {
		if r := recover(); r != nil {
			pkgerrors.RecoverPanicWithCallback(r, func(err error) {
				w.logger.WarnwCtx(ctx, "Rule set change callback panicked", "error", err)
			})
		}
	}()
	fn(prev, next)
}

// Start reloads immediately and then every interval until ctx is done.
// Failed reloads are retried with exponential backoff capped at the
// interval; failures that cannot heal on their own wait a full interval.
func (w *Watcher) Start(ctx context.Context) error {
	bo := retry.ExponentialBackoff(w.initialBackoff(), w.maxBackoff(), w.multiplier())

	err := w.reloadLogged(ctx)
	for {
		wait := w.interval
		if err != nil && retry.IsRetryable(err) {
			wait = bo.NextBackOff()
		} else {
			bo.Reset()
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if err == nil {
			if jitterErr := w.applyJitter(ctx); jitterErr != nil {
				return jitterErr
			}
		}
		err = w.reloadLogged(ctx)
	}
}

func (w *Watcher) reloadLogged(ctx context.Context) error {
	err := w.Reload(ctx)
	if err != nil && ctx.Err() == nil {
		w.logger.WarnwCtx(ctx, "Failed to reload rule set",
			"error", err,
			"retryable", retry.IsRetryable(err),
		)
	}
	return err
}

func (w *Watcher) applyJitter(ctx context.Context) error {
	if w.cfg.JitterMaxMilliseconds <= 0 {
		return nil
	}

	jitter := time.Duration(rand.Intn(w.cfg.JitterMaxMilliseconds)) * time.Millisecond
	w.logger.DebugwCtx(ctx, "Reload scheduled with jitter", "jitter_ms", jitter.Milliseconds())

	select {
	case <-time.After(jitter):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Watcher) initialBackoff() time.Duration {
	if w.cfg.Backoff.InitialInterval > 0 {
		return w.cfg.Backoff.InitialInterval
	}
	return defaultInitialInterval
}

func (w *Watcher) maxBackoff() time.Duration {
	if max := w.cfg.Backoff.MaxInterval; max > 0 && max < w.interval {
		return max
	}
	return w.interval
}

func (w *Watcher) multiplier() float64 {
	if w.cfg.Backoff.Multiplier > 1 {
		return w.cfg.Backoff.Multiplier
	}
	return defaultMultiplier
}
