// Package transport holds the instrumentation layer of the manager client's
// round-tripper chain.
package transport

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"jrm/internal/constants"
	"jrm/internal/logger"
	"jrm/pkg/logging"
	"jrm/pkg/metrics"
)

type endpointKey struct{}

// WithEndpoint labels requests made with ctx for metrics and logs. Labels
// are route templates such as "rules/{id}", never raw paths.
func WithEndpoint(ctx context.Context, endpoint string) context.Context {
	return context.WithValue(ctx, endpointKey{}, endpoint)
}

// EndpointOf returns the label set by WithEndpoint, or "other".
func EndpointOf(ctx context.Context) string {
	if v, ok := ctx.Value(endpointKey{}).(string); ok && v != "" {
		return v
	}
	return "other"
}

// Instrumented sets the standard request headers and records every
// exchange that gets past the cache. Cache hits never reach it; CacheHits
// counts those.
type Instrumented struct {
	next      http.RoundTripper
	logger    logger.Logger
	userAgent string
}

func NewInstrumented(next http.RoundTripper, log logger.Logger, userAgent string) *Instrumented {
	if next == nil {
		next = http.DefaultTransport
	}
	if log == nil {
		log = logger.NopLogger()
	}
	if userAgent == "" {
		userAgent = constants.DefaultUserAgent
	}
	return &Instrumented{next: next, logger: log, userAgent: userAgent}
}

func (t *Instrumented) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	endpoint := EndpointOf(ctx)

	requestID := req.Header.Get(constants.HeaderRequestID)
	if requestID == "" {
		requestID = logging.GetRequestID(ctx)
	}
	if requestID == "" {
		requestID = uuid.New().String()
	}

	out := req.Clone(logging.WithRequestID(ctx, requestID))
	out.Header.Set(constants.HeaderRequestID, requestID)
	out.Header.Set("User-Agent", t.userAgent)
	if out.Header.Get("Accept") == "" {
		out.Header.Set("Accept", constants.ContentTypeJSON)
	}

	start := time.Now()
	resp, err := t.next.RoundTrip(out)
	duration := time.Since(start)

	metrics.ObserveClientRequestDuration(req.Method, endpoint, duration)
	if err != nil {
		metrics.IncClientRequest(req.Method, endpoint, 0)
		t.logger.DebugwCtx(out.Context(), "Manager request failed",
			"method", req.Method,
			"endpoint", endpoint,
			"duration_ms", duration.Milliseconds(),
			"error", err,
		)
		return nil, err
	}

	metrics.IncClientRequest(req.Method, endpoint, resp.StatusCode)
	t.logger.DebugwCtx(out.Context(), "Manager request",
		"method", req.Method,
		"endpoint", endpoint,
		"status", resp.StatusCode,
		"duration_ms", duration.Milliseconds(),
	)
	return resp, nil
}

// CacheHits counts responses the cache layer served without reaching the
// manager. It sits directly above the cache transport.
type CacheHits struct {
	next http.RoundTripper
}

func NewCacheHits(next http.RoundTripper) *CacheHits {
	return &CacheHits{next: next}
}

func (t *CacheHits) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err == nil && resp.Header.Get(constants.HeaderFromCache) != "" {
		metrics.IncCacheHit(EndpointOf(req.Context()))
	}
	return resp, err
}
