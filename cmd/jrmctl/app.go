package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"jrm/internal/config"
	"jrm/internal/constants"
	"jrm/internal/logger"
	"jrm/pkg/auth"
	"jrm/pkg/bootstrap"
	"jrm/pkg/cache"
	"jrm/pkg/circuitbreaker"
	"jrm/pkg/health"
	"jrm/pkg/manager"
	"jrm/pkg/tracing"
	"jrm/pkg/watcher"
)

type App struct {
	*bootstrap.Base

	client *manager.Client
	health *health.CheckerRegistry
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{
		Base:   bootstrap.NewBase(cfg, log),
		health: health.NewCheckerRegistry(),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	opts := []manager.Option{
		manager.WithLogger(a.Logger),
		manager.WithUserAgent(a.Config.Manager.UserAgent),
	}

	respCache, redisClient, err := cache.FromConfig(a.Config.Cache, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	opts = append(opts, manager.WithCache(respCache))
	if redisClient != nil {
		a.OnShutdown("redis", func(context.Context) error { return redisClient.Close() })
		a.health.Register(health.NewRedisChecker(redisClient))
	}

	if a.Config.RateLimit.Enabled {
		opts = append(opts, manager.WithRateLimit(a.Config.RateLimit.RPS, a.Config.RateLimit.Burst))
		a.Logger.DebugwCtx(ctx, "Rate limiting enabled", "rps", a.Config.RateLimit.RPS, "burst", a.Config.RateLimit.Burst)
	}
	if a.Config.CircuitBreaker.Enabled {
		opts = append(opts, manager.WithCircuitBreaker(circuitbreaker.FromConfig("manager", a.Config.CircuitBreaker)))
	}
	if a.Config.Tracing.Enabled {
		tp, err := tracing.Init(a.Config.Tracing, constants.ServiceName)
		if err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		a.OnShutdown("tracing", tp.Shutdown)
		opts = append(opts, manager.WithTracing())
	}

	client, err := manager.New(a.Config.Manager.URL, a.tokenProvider(ctx), opts...)
	if err != nil {
		return fmt.Errorf("failed to create manager client: %w", err)
	}
	a.client = client

	a.health.Register(health.NewManagerChecker(client))
	if breaker := client.Breaker(); breaker != nil {
		a.health.Register(health.NewBreakerChecker(breaker))
	}
	return nil
}

// tokenProvider prefers an explicit token, then the configured environment
// variable. Without either, requests go out unauthenticated.
func (a *App) tokenProvider(ctx context.Context) auth.TokenProvider {
	if token := strings.TrimSpace(a.Config.Auth.Token); token != "" {
		return auth.StaticToken(token)
	}

	name := a.Config.Auth.TokenEnv
	if name == "" {
		name = constants.DefaultTokenEnv
	}
	if os.Getenv(name) == "" {
		a.Logger.DebugwCtx(ctx, "No access token configured, sending unauthenticated requests", "token_env", name)
		return nil
	}
	return auth.NewCachingProvider(auth.EnvToken(name).Token, a.Config.Auth.RefreshSkew)
}

func (a *App) Client() *manager.Client {
	return a.client
}

func (a *App) NewWatcher() *watcher.Watcher {
	return watcher.New(a.client, a.Config.Watcher, a.Logger)
}

func (a *App) Health(ctx context.Context) health.Health {
	return a.health.Check(ctx)
}
