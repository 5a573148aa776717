// Package managertest runs an in-memory revocation manager for tests.
package managertest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"jrm/internal/constants"
	"jrm/internal/logger"
	pkgerrors "jrm/pkg/errors"
	"jrm/pkg/middleware"
	"jrm/pkg/rules"
)

const (
	RouteRuleSet   = "GET /ruleset"
	RouteListRules = "GET /rules"
	RouteGetRule   = "GET /rules/:id"
	RouteCreate    = "POST /rules"
	RouteDelete    = "DELETE /rules/:id"
)

type Option func(*Manager)

// WithToken requires "Authorization: Bearer <token>" on every request.
func WithToken(token string) Option {
	return func(m *Manager) { m.token = token }
}

// WithRuleSetCacheControl sets the Cache-Control header sent with /ruleset.
func WithRuleSetCacheControl(value string) Option {
	return func(m *Manager) { m.cacheControl = value }
}

// WithIDs makes the manager assign the given ids to created rules in order,
// falling back to random UUIDs once exhausted.
func WithIDs(ids ...string) Option {
	return func(m *Manager) { m.ids = append([]string(nil), ids...) }
}

// WithBasePath mounts the API under prefix, e.g. "/jwt-revocation-manager".
func WithBasePath(prefix string) Option {
	return func(m *Manager) { m.basePath = prefix }
}

func WithPageLimit(limit int) Option {
	return func(m *Manager) { m.pageLimit = limit }
}

func WithLogger(log logger.Logger) Option {
	return func(m *Manager) { m.logger = log }
}

// Manager is a fake revocation manager served over a real HTTP listener.
type Manager struct {
	server *httptest.Server
	store  *store

	mu           sync.Mutex
	token        string
	cacheControl string
	ids          []string
	basePath     string
	pageLimit    int
	hits         map[string]int
	logger       logger.Logger
}

// Start serves a fresh manager until the test ends.
func Start(t testing.TB, opts ...Option) *Manager {
	t.Helper()
	m := New(opts...)
	t.Cleanup(m.Close)
	return m
}

func New(opts ...Option) *Manager {
	m := &Manager{
		store:     newStore(time.Now),
		pageLimit: constants.DefaultListPageLimit,
		hits:      make(map[string]int),
		logger:    logger.NopLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}

	gin.SetMode(gin.TestMode)
	router := gin.New()
	// Route on the escaped path so ids containing "/" stay one segment.
	router.UseRawPath = true
	router.Use(middleware.RecoveryMiddleware(m.logger))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(m.logger))
	m.registerRoutes(router)

	m.server = httptest.NewServer(router)
	return m
}

func (m *Manager) registerRoutes(router *gin.Engine) {
	api := router.Group(m.basePath)
	api.Use(m.countHits(), middleware.BearerAuthMiddleware(m.currentToken))
	{
		api.GET("/ruleset", m.getRuleSet)
		api.GET("/rules", m.listRules)
		api.POST("/rules", m.createRule)
		api.GET("/rules/:id", m.getRule)
		api.DELETE("/rules/:id", m.deleteRule)
	}
}

// URL is the base URL clients should be configured with.
func (m *Manager) URL() string {
	return m.server.URL + m.basePath
}

func (m *Manager) Close() {
	m.server.Close()
}

// SetToken rotates the accepted bearer token.
func (m *Manager) SetToken(token string) {
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
}

func (m *Manager) currentToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// Hits reports how many requests reached route, e.g. RouteRuleSet.
// Requests answered from a client-side cache never arrive here.
func (m *Manager) Hits(route string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits[route]
}

// Seed stores rules directly, keeping their ids.
func (m *Manager) Seed(rs ...rules.Rule) {
	for _, r := range rs {
		m.store.put(r)
	}
}

// Len is the number of stored rules.
func (m *Manager) Len() int {
	return m.store.len()
}

func (m *Manager) countHits() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.Request.Method + " " + c.FullPath()[len(m.basePath):]
		m.mu.Lock()
		m.hits[route]++
		m.mu.Unlock()
		c.Next()
	}
}

func (m *Manager) nextID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.ids) > 0 {
		id := m.ids[0]
		m.ids = m.ids[1:]
		return id
	}
	return uuid.New().String()
}

func (m *Manager) getRuleSet(c *gin.Context) {
	m.mu.Lock()
	cacheControl := m.cacheControl
	m.mu.Unlock()

	if cacheControl != "" {
		c.Header("Cache-Control", cacheControl)
	}
	c.JSON(http.StatusOK, m.store.ruleSet())
}

func (m *Manager) listRules(c *gin.Context) {
	limit := m.pageLimit
	if raw, ok := c.GetQuery(constants.QueryLimit); ok {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			m.badRequest(c, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	offset := 0
	if raw, ok := c.GetQuery(constants.QueryCursor); ok {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			m.badRequest(c, "invalid cursor")
			return
		}
		offset = parsed
	}

	list, cursor := m.store.page(offset, limit)
	c.JSON(http.StatusOK, rules.PartialList[rules.Rule]{List: list, Cursor: cursor})
}

func (m *Manager) getRule(c *gin.Context) {
	rule, ok := m.store.get(c.Param("id"))
	if !ok {
		m.notFound(c)
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (m *Manager) createRule(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		m.badRequest(c, err.Error())
		return
	}

	var rule rules.Rule
	if err := json.Unmarshal(body, &rule); err != nil {
		m.badRequest(c, err.Error())
		return
	}
	if err := rules.ValidateNew(rule); err != nil {
		m.badRequest(c, err.Error())
		return
	}

	rule = rule.WithID(m.nextID())
	m.store.put(rule)
	c.JSON(http.StatusCreated, rule)
}

func (m *Manager) deleteRule(c *gin.Context) {
	rule, ok := m.store.remove(c.Param("id"))
	if !ok {
		m.notFound(c)
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (m *Manager) notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, pkgerrors.ToErrorResponse(pkgerrors.ErrNotFound))
}

func (m *Manager) badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, pkgerrors.ToErrorResponse(pkgerrors.ErrInvalidArgument.WithMessage(message)))
}
