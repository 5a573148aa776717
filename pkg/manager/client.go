// Package manager is a client for the JWT revocation manager REST API.
package manager

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"jrm/internal/constants"
	"jrm/internal/logger"
	"jrm/pkg/auth"
	"jrm/pkg/cache"
	"jrm/pkg/circuitbreaker"
	pkgerrors "jrm/pkg/errors"
	"jrm/pkg/logging"
	"jrm/pkg/ratelimit"
	"jrm/pkg/rules"
	"jrm/pkg/tracing"
	"jrm/pkg/transport"
)

const (
	endpointRuleSet = "ruleset"
	endpointRules   = "rules"
	endpointRule    = "rules/{id}"
)

// ListParams selects a page of the rule inventory. A zero Limit leaves the
// page size to the manager; an empty Cursor requests the first page.
type ListParams struct {
	Limit  int
	Cursor string
}

// Client talks to one manager. It is safe for concurrent use.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	logger  logger.Logger
	breaker *circuitbreaker.Wrapper
}

// New builds a client for the manager at baseURL, which may carry a path
// prefix. tokens may be nil for managers that do not require auth.
func New(baseURL string, tokens auth.TokenProvider, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, pkgerrors.ErrInvalidArgument.WithMessage("invalid manager URL").WithCause(err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, pkgerrors.ErrInvalidArgument.WithMessage("manager URL must be an absolute http(s) URL")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	c := &Client{baseURL: u, logger: o.logger}

	base := o.transport
	if base == nil && o.httpClient != nil {
		base = o.httpClient.Transport
	}
	if base == nil {
		base = http.DefaultTransport
	}

	rt := base
	if o.tracing {
		rt = tracing.Transport(rt)
	}
	if o.breaker != nil {
		cb := circuitbreaker.NewTransport(*o.breaker, rt)
		c.breaker = cb.Breaker()
		rt = cb
	}
	if o.rateLimit != nil {
		rt = ratelimit.NewTransport(*o.rateLimit, rt)
	}
	rt = transport.NewInstrumented(rt, o.logger, o.userAgent)
	if o.cache != nil {
		rt = transport.NewCacheHits(cache.NewTransport(o.cache, rt))
	}
	rt = auth.NewTransport(tokens, rt)

	if o.httpClient != nil {
		hc := *o.httpClient
		hc.Transport = rt
		c.http = &hc
	} else {
		c.http = &http.Client{Transport: rt}
	}

	return c, nil
}

// BaseURL returns the manager URL the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Breaker returns the circuit breaker, or nil when none is configured.
func (c *Client) Breaker() *circuitbreaker.Wrapper {
	return c.breaker
}

// GetRuleSet fetches every active rule. Fresh responses are served from the
// cache according to the manager's Cache-Control headers.
func (c *Client) GetRuleSet(ctx context.Context) (rules.RuleSet, error) {
	var rs rules.RuleSet
	status, body, err := c.send(ctx, http.MethodGet, endpointRuleSet, c.resolve(constants.PathRuleSet), nil)
	if err != nil {
		return rs, err
	}
	if status != http.StatusOK {
		return rs, statusError(status, body)
	}
	if err := decode(endpointRuleSet, body, &rs); err != nil {
		return rs, err
	}
	return rs, nil
}

// ListRules fetches one page of the rule inventory.
func (c *Client) ListRules(ctx context.Context, params ListParams) (rules.PartialList[rules.Rule], error) {
	var page rules.PartialList[rules.Rule]
	if params.Limit < 0 {
		return page, pkgerrors.ErrInvalidArgument.WithMessage("limit must not be negative")
	}

	u := c.resolve(constants.PathRules)
	q := url.Values{}
	if params.Limit > 0 {
		q.Set(constants.QueryLimit, strconv.Itoa(params.Limit))
	}
	if params.Cursor != "" {
		q.Set(constants.QueryCursor, params.Cursor)
	}
	u.RawQuery = q.Encode()

	status, body, err := c.send(ctx, http.MethodGet, endpointRules, u, nil)
	if err != nil {
		return page, err
	}
	if status != http.StatusOK {
		return page, statusError(status, body)
	}
	if err := decode(endpointRules, body, &page); err != nil {
		return page, err
	}
	if page.List == nil {
		page.List = []rules.Rule{}
	}
	return page, nil
}

// GetRule fetches a rule by id. ok is false when the manager has no such rule.
func (c *Client) GetRule(ctx context.Context, id string) (rule rules.Rule, ok bool, err error) {
	return c.ruleByID(ctx, http.MethodGet, id)
}

// DeleteRule deletes a rule and returns it as it was stored. ok is false
// when the manager had no such rule, so deleting twice is harmless.
func (c *Client) DeleteRule(ctx context.Context, id string) (rule rules.Rule, ok bool, err error) {
	return c.ruleByID(ctx, http.MethodDelete, id)
}

func (c *Client) ruleByID(ctx context.Context, method, id string) (rules.Rule, bool, error) {
	if err := validateID(id); err != nil {
		return rules.Rule{}, false, err
	}
	ctx = logging.WithRuleID(ctx, id)

	status, body, err := c.send(ctx, method, endpointRule, c.resolve(constants.PathRules, url.PathEscape(id)), nil)
	if err != nil {
		return rules.Rule{}, false, err
	}
	switch status {
	case http.StatusOK:
	case http.StatusNotFound:
		return rules.Rule{}, false, nil
	default:
		return rules.Rule{}, false, statusError(status, body)
	}

	var rule rules.Rule
	if err := decode(endpointRule, body, &rule); err != nil {
		return rules.Rule{}, false, err
	}
	return rule, true, nil
}

// CreateRule submits a new rule and returns it with the id the manager
// assigned. The input must not carry an id.
func (c *Client) CreateRule(ctx context.Context, rule rules.Rule) (rules.Rule, error) {
	if err := rules.ValidateNew(rule); err != nil {
		return rules.Rule{}, pkgerrors.ErrInvalidArgument.WithMessage(err.Error()).WithCause(err)
	}

	payload, err := json.Marshal(rule)
	if err != nil {
		return rules.Rule{}, pkgerrors.ErrInvalidArgument.WithCause(err)
	}

	status, body, err := c.send(ctx, http.MethodPost, endpointRules, c.resolve(constants.PathRules), payload)
	if err != nil {
		return rules.Rule{}, err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return rules.Rule{}, statusError(status, body)
	}

	var created rules.Rule
	if err := decode(endpointRules, body, &created); err != nil {
		return rules.Rule{}, err
	}
	if err := rules.ValidatePersisted(created); err != nil {
		return rules.Rule{}, pkgerrors.ErrMalformedResponse.WithMessage(err.Error()).WithCause(err).WithDetail("endpoint", endpointRules)
	}
	return created, nil
}

func (c *Client) resolve(segments ...string) *url.URL {
	return c.baseURL.JoinPath(segments...)
}

// send performs one exchange and returns the status and the full body.
// Reading to EOF lets the cache layer store the response.
func (c *Client) send(ctx context.Context, method, endpoint string, u *url.URL, payload []byte) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(transport.WithEndpoint(ctx, endpoint), method, u.String(), reader)
	if err != nil {
		return 0, nil, pkgerrors.ErrInvalidArgument.WithCause(err)
	}
	req.Header.Set("Accept", constants.ContentTypeJSON)
	if payload != nil {
		req.Header.Set("Content-Type", constants.ContentTypeJSON)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, transportError(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, transportError(ctx, err)
	}
	return resp.StatusCode, body, nil
}

func transportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var appErr *pkgerrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return pkgerrors.ErrTransport.WithCause(err)
}

func statusError(status int, body []byte) error {
	if len(body) > constants.MaxErrorBodyBytes {
		body = body[:constants.MaxErrorBodyBytes]
	}
	if status == http.StatusUnauthorized {
		return pkgerrors.ErrUnauthorized.WithBody(string(body))
	}
	return pkgerrors.ErrUnexpectedStatus.WithStatus(status).WithBody(string(body))
}

func decode(endpoint string, body []byte, v interface{}) error {
	if err := json.Unmarshal(body, v); err != nil {
		return pkgerrors.ErrMalformedResponse.WithCause(err).WithDetail("endpoint", endpoint)
	}
	return nil
}

func validateID(id string) error {
	switch id {
	case "":
		return pkgerrors.ErrInvalidArgument.WithMessage("rule id must not be empty")
	case ".", "..":
		return pkgerrors.ErrInvalidArgument.WithMessage("rule id must not be a dot segment")
	}
	return nil
}
