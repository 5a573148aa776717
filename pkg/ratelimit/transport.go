package ratelimit

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"jrm/internal/config"
	"jrm/pkg/metrics"
)

type Config struct {
	RPS   float64
	Burst int
}

func DefaultConfig() Config {
	return Config{
		RPS:   10.0,
		Burst: 20,
	}
}

func FromConfig(cfg config.RateLimitConfig) Config {
	c := DefaultConfig()
	if cfg.RPS > 0 {
		c.RPS = cfg.RPS
	}
	if cfg.Burst > 0 {
		c.Burst = cfg.Burst
	}
	return c
}

// Transport keeps a client under the manager's request budget. Requests
// wait for a token instead of failing; the wait ends early when the
// request context is done.
type Transport struct {
	limiter *rate.Limiter
	next    http.RoundTripper
}

func NewTransport(cfg Config, next http.RoundTripper) *Transport {
	if next == nil {
		next = http.DefaultTransport
	}
	return &Transport{
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		next:    next,
	}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	if err := t.limiter.Wait(req.Context()); err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	metrics.ObserveRateLimitWait(time.Since(start))
	return t.next.RoundTrip(req)
}
