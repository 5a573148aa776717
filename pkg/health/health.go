package health

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"jrm/internal/constants"
	"jrm/pkg/rules"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

type Checker interface {
	Check(ctx context.Context) error
	Name() string
}

type Health struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

type CheckResult struct {
	Status    Status    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type degradedError struct {
	err error
}

func (e *degradedError) Error() string { return e.err.Error() }
func (e *degradedError) Unwrap() error { return e.err }

// Degraded marks a failure of an optional dependency. It lowers the overall
// status to degraded instead of unhealthy.
func Degraded(err error) error {
	if err == nil {
		return nil
	}
	return &degradedError{err: err}
}

type CheckerRegistry struct {
	checkers []Checker
}

func NewCheckerRegistry() *CheckerRegistry {
	return &CheckerRegistry{
		checkers: make([]Checker, 0),
	}
}

func (r *CheckerRegistry) Register(checker Checker) {
	r.checkers = append(r.checkers, checker)
}

func (r *CheckerRegistry) Check(ctx context.Context) Health {
	results := make(map[string]CheckResult)
	allHealthy := true
	anyDegraded := false

	for _, checker := range r.checkers {
		err := checker.Check(ctx)
		result := CheckResult{
			Timestamp: time.Now(),
		}

		var degraded *degradedError
		switch {
		case err == nil:
			result.Status = StatusHealthy
		case errors.As(err, &degraded):
			result.Status = StatusDegraded
			result.Message = err.Error()
			anyDegraded = true
		default:
			result.Status = StatusUnhealthy
			result.Message = err.Error()
			allHealthy = false
		}

		results[checker.Name()] = result
	}

	overallStatus := StatusHealthy
	if !allHealthy {
		overallStatus = StatusUnhealthy
	} else if anyDegraded {
		overallStatus = StatusDegraded
	}

	return Health{
		Status:    overallStatus,
		Timestamp: time.Now(),
		Checks:    results,
	}
}

// RuleSetFetcher is satisfied by *manager.Client.
type RuleSetFetcher interface {
	GetRuleSet(ctx context.Context) (rules.RuleSet, error)
}

// ManagerChecker fetches the rule set. A cached fresh copy counts as
// healthy, as evaluators would be served the same way.
type ManagerChecker struct {
	fetcher RuleSetFetcher
}

func NewManagerChecker(fetcher RuleSetFetcher) *ManagerChecker {
	return &ManagerChecker{fetcher: fetcher}
}

func (c *ManagerChecker) Name() string {
	return "manager"
}

func (c *ManagerChecker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, constants.HealthCheckTimeout)
	defer cancel()

	if _, err := c.fetcher.GetRuleSet(ctx); err != nil {
		return fmt.Errorf("manager rule set fetch failed: %w", err)
	}
	return nil
}

// RedisChecker pings the shared response cache. The client falls back to
// the manager when Redis is down, so failures are reported as degraded.
type RedisChecker struct {
	client redis.UniversalClient
}

func NewRedisChecker(client redis.UniversalClient) *RedisChecker {
	return &RedisChecker{client: client}
}

func (c *RedisChecker) Name() string {
	return "redis"
}

func (c *RedisChecker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, constants.HealthCheckTimeout)
	defer cancel()

	if err := c.client.Ping(ctx).Err(); err != nil {
		return Degraded(fmt.Errorf("redis ping failed: %w", err))
	}
	return nil
}

type BreakerState interface {
	Name() string
	State() gobreaker.State
}

// BreakerChecker reports an open circuit as unhealthy and a half-open one
// as degraded.
type BreakerChecker struct {
	breaker BreakerState
}

func NewBreakerChecker(breaker BreakerState) *BreakerChecker {
	return &BreakerChecker{breaker: breaker}
}

func (c *BreakerChecker) Name() string {
	return "circuit_breaker"
}

func (c *BreakerChecker) Check(context.Context) error {
	switch c.breaker.State() {
	case gobreaker.StateOpen:
		return fmt.Errorf("circuit %s is open", c.breaker.Name())
	case gobreaker.StateHalfOpen:
		return Degraded(fmt.Errorf("circuit %s is half-open", c.breaker.Name()))
	}
	return nil
}
