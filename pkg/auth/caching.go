package auth

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	pkgerrors "jrm/pkg/errors"
)

// CachingProvider caches the token returned by fetch and refetches it when
// the JWT exp claim is within skew of now, or when the manager rejected it.
// Tokens that are not JWTs are cached until rejected.
type CachingProvider struct {
	fetch TokenFunc
	skew  time.Duration
	now   func() time.Time

	mu     sync.RWMutex
	token  string
	expiry time.Time

	group singleflight.Group
}

func NewCachingProvider(fetch TokenFunc, skew time.Duration) *CachingProvider {
	return &CachingProvider{
		fetch: fetch,
		skew:  skew,
		now:   time.Now,
	}
}

func (p *CachingProvider) Token(ctx context.Context) (string, error) {
	p.mu.RLock()
	token, expiry := p.token, p.expiry
	p.mu.RUnlock()

	if token != "" && !p.expiring(expiry) {
		return token, nil
	}
	return p.load(ctx)
}

func (p *CachingProvider) Refresh(ctx context.Context, rejected string) (string, error) {
	p.mu.RLock()
	token := p.token
	p.mu.RUnlock()

	// Another caller already replaced the rejected token.
	if token != "" && token != rejected {
		return token, nil
	}
	return p.load(ctx)
}

// Invalidate drops the cached token.
func (p *CachingProvider) Invalidate() {
	p.mu.Lock()
	p.token = ""
	p.expiry = time.Time{}
	p.mu.Unlock()
}

func (p *CachingProvider) expiring(expiry time.Time) bool {
	if expiry.IsZero() {
		return false
	}
	return !p.now().Add(p.skew).Before(expiry)
}

// load shares one fetch between concurrent callers. The fetch runs detached
// from any single caller's cancellation; each caller stops waiting when its
// own ctx is done.
func (p *CachingProvider) load(ctx context.Context) (string, error) {
	fetchCtx := context.WithoutCancel(ctx)
	ch := p.group.DoChan("token", func() (interface{}, error) {
		token, err := p.fetch(fetchCtx)
		if err != nil {
			return "", err
		}
		if token == "" {
			return "", pkgerrors.ErrTokenUnavailable.WithMessage("token source returned an empty token")
		}

		p.mu.Lock()
		p.token = token
		p.expiry = expiryOf(token)
		p.mu.Unlock()
		return token, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// expiryOf reads exp without verifying the signature; the manager is the
// party that verifies.
func expiryOf(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
