package manager

import (
	"net/http"

	"jrm/internal/config"
	"jrm/internal/logger"
	"jrm/pkg/cache"
	"jrm/pkg/circuitbreaker"
	"jrm/pkg/ratelimit"
)

type Option func(*options)

type options struct {
	transport  http.RoundTripper
	httpClient *http.Client
	cache      cache.Cache
	logger     logger.Logger
	rateLimit  *ratelimit.Config
	breaker    *circuitbreaker.Config
	tracing    bool
	userAgent  string
}

func defaultOptions() options {
	return options{
		cache:  cache.NewMemory(),
		logger: logger.NopLogger(),
	}
}

// WithTransport replaces the network round tripper at the bottom of the
// chain. Auth, caching and instrumentation still apply on top of it.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

// WithHTTPClient uses hc's settings (timeout, redirects, jar). Its
// Transport, if set, becomes the base round tripper.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithCache selects the response cache. nil disables caching.
func WithCache(c cache.Cache) Option {
	return func(o *options) { o.cache = c }
}

func WithLogger(log logger.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.logger = log
		}
	}
}

// WithRateLimit caps outgoing requests. Non-positive values fall back to
// the ratelimit defaults.
func WithRateLimit(rps float64, burst int) Option {
	return func(o *options) {
		cfg := ratelimit.FromConfig(config.RateLimitConfig{Enabled: true, RPS: rps, Burst: burst})
		o.rateLimit = &cfg
	}
}

func WithCircuitBreaker(cfg circuitbreaker.Config) Option {
	return func(o *options) { o.breaker = &cfg }
}

// WithTracing creates a client span per request using the global
// OpenTelemetry provider.
func WithTracing() Option {
	return func(o *options) { o.tracing = true }
}

func WithUserAgent(ua string) Option {
	return func(o *options) { o.userAgent = ua }
}
