package auth

import (
	"context"
	"os"
	"strings"

	pkgerrors "jrm/pkg/errors"
)

// TokenProvider supplies bearer tokens for manager requests.
//
// Token is called before every request and may return a cached value.
// Refresh is called once after the manager answered 401 to the token
// passed as rejected; it returns the token to retry with.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
	Refresh(ctx context.Context, rejected string) (string, error)
}

type staticToken string

// StaticToken always hands out the same token. Refresh returns it again,
// so a persistent 401 surfaces after the single retry.
func StaticToken(token string) TokenProvider {
	return staticToken(token)
}

func (s staticToken) Token(context.Context) (string, error) {
	if s == "" {
		return "", pkgerrors.ErrTokenUnavailable.WithMessage("static token is empty")
	}
	return string(s), nil
}

func (s staticToken) Refresh(ctx context.Context, _ string) (string, error) {
	return s.Token(ctx)
}

// TokenFunc adapts a plain function. Refresh invokes it again.
type TokenFunc func(ctx context.Context) (string, error)

func (f TokenFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

func (f TokenFunc) Refresh(ctx context.Context, _ string) (string, error) {
	return f(ctx)
}

// EnvToken reads the token from the named environment variable on every call.
func EnvToken(name string) TokenProvider {
	return TokenFunc(func(context.Context) (string, error) {
		token := strings.TrimSpace(os.Getenv(name))
		if token == "" {
			return "", pkgerrors.ErrTokenUnavailable.WithMessage("environment variable " + name + " is not set")
		}
		return token, nil
	})
}
