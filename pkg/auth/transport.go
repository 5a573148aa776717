package auth

import (
	"io"
	"net/http"

	pkgerrors "jrm/pkg/errors"
	"jrm/pkg/metrics"
)

// Transport attaches "Authorization: Bearer <token>" to every request.
// On a 401 it asks Tokens for a refreshed token and retries exactly once.
// A nil Tokens sends requests unauthenticated.
type Transport struct {
	Tokens TokenProvider
	Next   http.RoundTripper
}

func NewTransport(tokens TokenProvider, next http.RoundTripper) *Transport {
	return &Transport{Tokens: tokens, Next: next}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Tokens == nil {
		return t.next().RoundTrip(req)
	}

	ctx := req.Context()
	token, err := t.Tokens.Token(ctx)
	if err != nil {
		return nil, tokenError(err)
	}

	first, err := authorize(req, token)
	if err != nil {
		return nil, err
	}
	resp, err := t.next().RoundTrip(first)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	// A body that cannot be replayed cannot be retried.
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		return resp, nil
	}

	refreshed, err := t.Tokens.Refresh(ctx, token)
	if err != nil {
		metrics.IncTokenRefresh("error")
		discard(resp)
		return nil, tokenError(err)
	}
	metrics.IncTokenRefresh("ok")

	second, err := authorize(req, refreshed)
	if err != nil {
		return resp, nil
	}
	discard(resp)
	return t.next().RoundTrip(second)
}

func (t *Transport) next() http.RoundTripper {
	if t.Next != nil {
		return t.Next
	}
	return http.DefaultTransport
}

// authorize clones req with a fresh body and the bearer header set.
func authorize(req *http.Request, token string) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.GetBody != nil && req.Body != nil && req.Body != http.NoBody {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		clone.Body = body
	}
	clone.Header.Set("Authorization", "Bearer "+token)
	return clone, nil
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

func tokenError(err error) error {
	if pkgerrors.IsTokenUnavailable(err) {
		return err
	}
	return pkgerrors.ErrTokenUnavailable.WithCause(err)
}
