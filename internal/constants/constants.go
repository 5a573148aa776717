package constants

import "time"

const (
	ServiceName      = "jrmctl"
	DefaultUserAgent = "jrm-client/1"
)

const (
	DefaultTokenEnv    = "JRM_ACCESS_TOKEN"
	DefaultRefreshSkew = 30 * time.Second
)

const (
	CacheTypeMemory = "memory"
	CacheTypeRedis  = "redis"
	CacheTypeNone   = "none"

	CacheKeyPrefix    = "jrm:httpcache:"
	DefaultTTLSeconds = 3600
)

const (
	PathRuleSet = "ruleset"
	PathRules   = "rules"

	QueryLimit  = "limit"
	QueryCursor = "cursor"
)

const (
	HeaderRequestID = "X-Request-ID"
	HeaderFromCache = "X-From-Cache"
	ContentTypeJSON = "application/json"
)

const (
	// MaxErrorBodyBytes bounds how much of an unexpected response is kept for diagnostics.
	MaxErrorBodyBytes = 4096
)

const (
	ShutdownTimeout      = 5 * time.Second
	HealthCheckTimeout   = 5 * time.Second
	DefaultListPageLimit = 100
)
