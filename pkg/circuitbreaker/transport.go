package circuitbreaker

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sony/gobreaker"

	pkgerrors "jrm/pkg/errors"
)

// Transport fails fast while the manager is unhealthy. Transport errors and
// 5xx responses count as failures; 4xx responses are the caller's problem
// and count as successes, as do requests cancelled by the caller.
type Transport struct {
	breaker *Wrapper
	next    http.RoundTripper
}

func NewTransport(cfg Config, next http.RoundTripper) *Transport {
	if next == nil {
		next = http.DefaultTransport
	}
	cfg.IsSuccessful = func(err error) bool {
		var c *cancelled
		return err == nil || errors.As(err, &c)
	}
	return &Transport{breaker: NewWrapper(cfg), next: next}
}

func (t *Transport) Breaker() *Wrapper {
	return t.breaker
}

type serverError struct {
	resp *http.Response
}

func (e *serverError) Error() string {
	return fmt.Sprintf("manager returned %d", e.resp.StatusCode)
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	result, err := t.breaker.cb.Execute(func() (interface{}, error) {
		resp, err := t.next.RoundTrip(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, &cancelled{err: err}
			}
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, &serverError{resp: resp}
		}
		return resp, nil
	})
	t.breaker.record(t.breaker.successful(err))

	var srvErr *serverError
	var cancelErr *cancelled
	switch {
	case err == nil:
		return result.(*http.Response), nil
	case errors.As(err, &srvErr):
		return srvErr.resp, nil
	case errors.As(err, &cancelErr):
		return nil, cancelErr.err
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, pkgerrors.ErrCircuitOpen.WithCause(err).WithDetail("breaker", t.breaker.Name())
	default:
		return nil, err
	}
}

type cancelled struct {
	err error
}

func (c *cancelled) Error() string { return c.err.Error() }
func (c *cancelled) Unwrap() error { return c.err }
