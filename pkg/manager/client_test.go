package manager

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jrm/internal/managertest"
	"jrm/pkg/auth"
	"jrm/pkg/cache"
	"jrm/pkg/circuitbreaker"
	pkgerrors "jrm/pkg/errors"
	"jrm/pkg/ratelimit"
	"jrm/pkg/rules"
)

const testToken = "test-token"

func newClient(t *testing.T, m *managertest.Manager, opts ...Option) *Client {
	t.Helper()
	c, err := New(m.URL(), auth.StaticToken(testToken), opts...)
	require.NoError(t, err)
	return c
}

func sampleRule(expires int64) rules.Rule {
	return rules.NewRuleBuilder(expires).
		Issuer("https://idp.example.com").
		Audience("api", "admin").
		ExpiresAfter(1686433017).
		Build()
}

func TestNewRejectsInvalidBaseURL(t *testing.T) {
	for _, raw := range []string{"", "not a url", "ftp://host/", "/relative/path", "http://"} {
		_, err := New(raw, nil)
		assert.True(t, pkgerrors.IsInvalidArgument(err), raw)
	}
}

func TestCreateThenGet(t *testing.T) {
	m := managertest.Start(t, managertest.WithToken(testToken))
	c := newClient(t, m)
	ctx := context.Background()

	input := sampleRule(1_900_000_000)
	created, err := c.CreateRule(ctx, input)
	require.NoError(t, err)

	require.True(t, created.HasID())
	assert.True(t, created.WithoutID().Equal(input), "create must preserve every field except the id")

	fetched, ok, err := c.GetRule(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, fetched.Equal(created))
}

func TestCreateAssignsServerID(t *testing.T) {
	m := managertest.Start(t, managertest.WithToken(testToken), managertest.WithIDs("r-1"))
	c := newClient(t, m)

	created, err := c.CreateRule(context.Background(), rules.Rule{Expires: 1700000000})
	require.NoError(t, err)
	assert.Equal(t, "r-1", created.ID)
	assert.Equal(t, int64(1700000000), created.Expires)
}

func TestCreateRejectsRuleWithID(t *testing.T) {
	m := managertest.Start(t)
	c := newClient(t, m)

	_, err := c.CreateRule(context.Background(), rules.Rule{ID: "taken", Expires: 1})
	assert.True(t, pkgerrors.IsInvalidArgument(err))
	assert.Equal(t, 0, m.Hits(managertest.RouteCreate))
}

func TestGetUnknownRuleIsAbsent(t *testing.T) {
	m := managertest.Start(t, managertest.WithToken(testToken))
	c := newClient(t, m)

	rule, ok, err := c.GetRule(context.Background(), "does-not-exist")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, rule.Equal(rules.Rule{}))
}

func TestDeleteReturnsRuleAndIsIdempotent(t *testing.T) {
	m := managertest.Start(t, managertest.WithToken(testToken))
	c := newClient(t, m)
	ctx := context.Background()

	created, err := c.CreateRule(ctx, sampleRule(1_900_000_000))
	require.NoError(t, err)

	deleted, ok, err := c.DeleteRule(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, deleted.Equal(created))

	_, ok, err = c.DeleteRule(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = c.GetRule(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRuleIDsAreEscaped(t *testing.T) {
	m := managertest.Start(t)
	m.Seed(rules.Rule{ID: "a b/c?d", Expires: 5})
	c := newClient(t, m)

	rule, ok, err := c.GetRule(context.Background(), "a b/c?d")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a b/c?d", rule.ID)
}

func TestInvalidIDs(t *testing.T) {
	m := managertest.Start(t)
	c := newClient(t, m)

	for _, id := range []string{"", ".", ".."} {
		_, _, err := c.GetRule(context.Background(), id)
		assert.True(t, pkgerrors.IsInvalidArgument(err), id)
		_, _, err = c.DeleteRule(context.Background(), id)
		assert.True(t, pkgerrors.IsInvalidArgument(err), id)
	}
	assert.Equal(t, 0, m.Hits(managertest.RouteGetRule))
}

func TestListScenario(t *testing.T) {
	m := managertest.Start(t, managertest.WithToken(testToken))
	m.Seed(
		rules.Rule{ID: "A", Expires: 1},
		rules.Rule{ID: "B", Expires: 2},
		rules.Rule{ID: "C", Expires: 3},
	)
	c := newClient(t, m)
	ctx := context.Background()

	first, err := c.ListRules(ctx, ListParams{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, ids(first.List))
	require.NotNil(t, first.Cursor)
	assert.Equal(t, "2", *first.Cursor)

	second, err := c.ListRules(ctx, ListParams{Limit: 2, Cursor: *first.Cursor})
	require.NoError(t, err)
	assert.Equal(t, []string{"C"}, ids(second.List))
	assert.Nil(t, second.Cursor)
}

func TestListRejectsNegativeLimit(t *testing.T) {
	m := managertest.Start(t)
	c := newClient(t, m)

	_, err := c.ListRules(context.Background(), ListParams{Limit: -1})
	assert.True(t, pkgerrors.IsInvalidArgument(err))
	assert.Equal(t, 0, m.Hits(managertest.RouteListRules))
}

func TestListQueryParameters(t *testing.T) {
	tests := []struct {
		name   string
		params ListParams
		query  string
	}{
		{name: "defaults", params: ListParams{}, query: ""},
		{name: "limit only", params: ListParams{Limit: 5}, query: "limit=5"},
		{name: "cursor only", params: ListParams{Cursor: "abc"}, query: "cursor=abc"},
		{name: "both", params: ListParams{Limit: 1, Cursor: "x y"}, query: "cursor=x+y&limit=1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/rules", r.URL.Path)
				assert.Equal(t, tt.query, r.URL.RawQuery)
				fmt.Fprint(w, `{"list":[],"cursor":null}`)
			}))
			defer srv.Close()

			c, err := New(srv.URL, nil)
			require.NoError(t, err)
			page, err := c.ListRules(context.Background(), tt.params)
			require.NoError(t, err)
			assert.Empty(t, page.List)
			assert.NotNil(t, page.List)
		})
	}
}

func TestPaginationIsExhaustive(t *testing.T) {
	const n = 7
	m := managertest.Start(t, managertest.WithToken(testToken))
	c := newClient(t, m)
	ctx := context.Background()

	want := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		created, err := c.CreateRule(ctx, rules.Rule{Expires: int64(1000 + i)})
		require.NoError(t, err)
		want[created.ID] = true
	}

	for limit := 1; limit <= n+1; limit++ {
		t.Run(fmt.Sprintf("limit=%d", limit), func(t *testing.T) {
			all, err := c.CollectRules(ctx, limit)
			require.NoError(t, err)
			require.Len(t, all, n)

			seen := make(map[string]bool, n)
			for _, r := range all {
				assert.False(t, seen[r.ID], "duplicate %s", r.ID)
				seen[r.ID] = true
			}
			assert.Equal(t, want, seen)
		})
	}
}

func TestAllRulesStopsEarly(t *testing.T) {
	m := managertest.Start(t)
	for i := 0; i < 5; i++ {
		m.Seed(rules.Rule{ID: fmt.Sprintf("r-%d", i), Expires: 1})
	}
	c := newClient(t, m)

	count := 0
	for _, err := range c.AllRules(context.Background(), 2) {
		require.NoError(t, err)
		count++
		if count == 3 {
			break
		}
	}
	assert.Equal(t, 3, count)
	assert.Equal(t, 2, m.Hits(managertest.RouteListRules))
}

func TestAllRulesDetectsStuckCursor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"list":[{"ruleId":"a","ruleExpires":1}],"cursor":"same"}`)
	}))
	defer srv.Close()

	c, err := New(srv.URL, nil)
	require.NoError(t, err)

	_, err = c.CollectRules(context.Background(), 1)
	assert.True(t, pkgerrors.IsMalformed(err))
}

func TestRuleSetReflectsMutations(t *testing.T) {
	m := managertest.Start(t, managertest.WithToken(testToken))
	c := newClient(t, m)
	ctx := context.Background()

	created, err := c.CreateRule(ctx, sampleRule(1_900_000_000))
	require.NoError(t, err)

	rs, err := c.GetRuleSet(ctx)
	require.NoError(t, err)
	assert.True(t, rs.Contains(created))
	assert.NotZero(t, rs.Timestamp)

	_, ok, err := c.DeleteRule(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, ok)

	rs, err = c.GetRuleSet(ctx)
	require.NoError(t, err)
	assert.False(t, rs.Contains(created))
}

func TestRuleSetServedFromCacheWhileFresh(t *testing.T) {
	m := managertest.Start(t,
		managertest.WithToken(testToken),
		managertest.WithRuleSetCacheControl("max-age=604800"),
	)
	c := newClient(t, m)
	ctx := context.Background()

	first, err := c.GetRuleSet(ctx)
	require.NoError(t, err)
	second, err := c.GetRuleSet(ctx)
	require.NoError(t, err)

	assert.True(t, first.Equal(second))
	assert.Equal(t, 1, m.Hits(managertest.RouteRuleSet))
}

func TestRuleSetRefetchedAfterExpiry(t *testing.T) {
	m := managertest.Start(t,
		managertest.WithToken(testToken),
		managertest.WithRuleSetCacheControl("max-age=2"),
	)
	c := newClient(t, m)
	ctx := context.Background()

	_, err := c.GetRuleSet(ctx)
	require.NoError(t, err)
	_, err = c.GetRuleSet(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Hits(managertest.RouteRuleSet))

	time.Sleep(3100 * time.Millisecond)
	_, err = c.GetRuleSet(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Hits(managertest.RouteRuleSet))
}

func TestRuleSetWithoutCacheAlwaysFetches(t *testing.T) {
	m := managertest.Start(t, managertest.WithRuleSetCacheControl("max-age=604800"))
	c := newClient(t, m, WithCache(nil))

	for i := 0; i < 3; i++ {
		_, err := c.GetRuleSet(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 3, m.Hits(managertest.RouteRuleSet))
}

func TestRetriesOnceWithRefreshedToken(t *testing.T) {
	m := managertest.Start(t, managertest.WithToken("fresh"))

	var refreshes int32
	tokens := &rotatingProvider{current: "stale", next: "fresh", refreshes: &refreshes}
	c, err := New(m.URL(), tokens)
	require.NoError(t, err)

	created, err := c.CreateRule(context.Background(), sampleRule(1_900_000_000))
	require.NoError(t, err)
	assert.True(t, created.HasID())
	assert.Equal(t, int32(1), atomic.LoadInt32(&refreshes))
	assert.Equal(t, 2, m.Hits(managertest.RouteCreate))
	assert.Equal(t, 1, m.Len())
}

func TestPersistentUnauthorized(t *testing.T) {
	m := managertest.Start(t, managertest.WithToken("expected"))
	c, err := New(m.URL(), auth.StaticToken("wrong"))
	require.NoError(t, err)

	_, err = c.GetRuleSet(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, pkgerrors.ErrUnauthorized)
	assert.Equal(t, 2, m.Hits(managertest.RouteRuleSet))

	_, _, err = c.GetRule(context.Background(), "x")
	assert.True(t, pkgerrors.IsUnauthorized(err))
}

func TestMissingTokenSendsNoAuthorization(t *testing.T) {
	m := managertest.Start(t, managertest.WithToken("required"))
	c, err := New(m.URL(), nil)
	require.NoError(t, err)

	_, err = c.GetRuleSet(context.Background())
	assert.True(t, pkgerrors.IsUnauthorized(err))
	assert.Equal(t, 1, m.Hits(managertest.RouteRuleSet))
}

func TestTokenProviderFailure(t *testing.T) {
	m := managertest.Start(t)
	c, err := New(m.URL(), auth.TokenFunc(func(context.Context) (string, error) {
		return "", fmt.Errorf("vault sealed")
	}))
	require.NoError(t, err)

	_, err = c.GetRuleSet(context.Background())
	assert.ErrorIs(t, err, pkgerrors.ErrTokenUnavailable)
	assert.Equal(t, 0, m.Hits(managertest.RouteRuleSet))
}

func TestUnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "maintenance")
	}))
	defer srv.Close()

	c, err := New(srv.URL, nil)
	require.NoError(t, err)

	_, err = c.GetRuleSet(context.Background())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsUnexpectedStatus(err))
	assert.Equal(t, http.StatusServiceUnavailable, pkgerrors.StatusOf(err))

	var appErr *pkgerrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "maintenance", appErr.Body)
	assert.Contains(t, err.Error(), "503")
}

func TestNotFoundOnCollectionIsUnexpected(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c, err := New(srv.URL, nil)
	require.NoError(t, err)

	_, err = c.ListRules(context.Background(), ListParams{})
	assert.True(t, pkgerrors.IsUnexpectedStatus(err))
	_, err = c.GetRuleSet(context.Background())
	assert.True(t, pkgerrors.IsUnexpectedStatus(err))
}

func TestErrorBodyIsTruncated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write(make([]byte, 10_000))
	}))
	defer srv.Close()

	c, err := New(srv.URL, nil)
	require.NoError(t, err)

	_, _, err = c.GetRule(context.Background(), "x")
	var appErr *pkgerrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Len(t, appErr.Body, 4096)
}

func TestMalformedResponses(t *testing.T) {
	tests := []struct {
		name string
		body string
		call func(c *Client) error
	}{
		{
			name: "ruleset not json",
			body: `<html>`,
			call: func(c *Client) error { _, err := c.GetRuleSet(context.Background()); return err },
		},
		{
			name: "ruleset missing timestamp",
			body: `{"rules":[]}`,
			call: func(c *Client) error { _, err := c.GetRuleSet(context.Background()); return err },
		},
		{
			name: "list wrong shape",
			body: `{"list":{}}`,
			call: func(c *Client) error { _, err := c.ListRules(context.Background(), ListParams{}); return err },
		},
		{
			name: "rule missing expires",
			body: `{"ruleId":"x"}`,
			call: func(c *Client) error { _, _, err := c.GetRule(context.Background(), "x"); return err },
		},
		{
			name: "created rule without id",
			body: `{"ruleExpires":5}`,
			call: func(c *Client) error { _, err := c.CreateRule(context.Background(), rules.Rule{Expires: 5}); return err },
		},
		{
			name: "empty body",
			body: ``,
			call: func(c *Client) error { _, _, err := c.DeleteRule(context.Background(), "x"); return err },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			c, err := New(srv.URL, nil)
			require.NoError(t, err)
			assert.True(t, pkgerrors.IsMalformed(tt.call(c)))
		})
	}
}

func TestConcurrentOperations(t *testing.T) {
	m := managertest.Start(t,
		managertest.WithToken(testToken),
		managertest.WithRuleSetCacheControl("max-age=604800"),
	)
	seeded := []rules.Rule{
		sampleRule(1_800_000_001).WithID("seed-1"),
		sampleRule(1_800_000_002).WithID("seed-2"),
		sampleRule(1_800_000_003).WithID("seed-3"),
	}
	m.Seed(seeded...)

	var fetches int32
	tokens := auth.NewCachingProvider(func(context.Context) (string, error) {
		atomic.AddInt32(&fetches, 1)
		return testToken, nil
	}, time.Second)

	c, err := New(m.URL(), tokens, WithCache(cache.NewMemory()))
	require.NoError(t, err)

	const workers = 8
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		sets     = make([]rules.RuleSet, workers)
		setErrs  = make([]error, workers)
		created  = make([]rules.Rule, workers)
		creErrs  = make([]error, workers)
		pages    = make([]rules.PartialList[rules.Rule], workers)
		listErrs = make([]error, workers)
		got      = make([]rules.Rule, workers)
		found    = make([]bool, workers)
		getErrs  = make([]error, workers)
	)
	for i := 0; i < workers; i++ {
		wg.Add(4)
		go func(i int) {
			defer wg.Done()
			sets[i], setErrs[i] = c.GetRuleSet(ctx)
		}(i)
		go func(i int) {
			defer wg.Done()
			created[i], creErrs[i] = c.CreateRule(ctx, sampleRule(int64(1_900_000_000+i)))
		}(i)
		go func(i int) {
			defer wg.Done()
			pages[i], listErrs[i] = c.ListRules(ctx, ListParams{Limit: 3})
		}(i)
		go func(i int) {
			defer wg.Done()
			got[i], found[i], getErrs[i] = c.GetRule(ctx, seeded[i%len(seeded)].ID)
		}(i)
	}
	wg.Wait()

	createdIDs := make(map[string]bool, workers)
	for i := 0; i < workers; i++ {
		require.NoError(t, setErrs[i])
		assert.GreaterOrEqual(t, len(sets[i].Rules), len(seeded))

		require.NoError(t, creErrs[i])
		require.True(t, created[i].HasID())
		assert.Equal(t, int64(1_900_000_000+i), created[i].Expires)
		assert.False(t, createdIDs[created[i].ID], "duplicate id %s", created[i].ID)
		createdIDs[created[i].ID] = true

		require.NoError(t, listErrs[i])
		assert.Equal(t, ids(seeded), ids(pages[i].List))

		require.NoError(t, getErrs[i])
		require.True(t, found[i])
		assert.True(t, seeded[i%len(seeded)].Equal(got[i]))
	}

	assert.Equal(t, len(seeded)+workers, m.Len())
	assert.GreaterOrEqual(t, atomic.LoadInt32(&fetches), int32(1))
	assert.Equal(t, workers, m.Hits(managertest.RouteCreate))
	assert.LessOrEqual(t, m.Hits(managertest.RouteRuleSet), workers)
}

func TestCreatedRuleWithoutIDReportsField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ruleExpires":5}`)
	}))
	defer srv.Close()

	c, err := New(srv.URL, nil)
	require.NoError(t, err)

	_, err = c.CreateRule(context.Background(), rules.Rule{Expires: 5})
	require.True(t, pkgerrors.IsMalformed(err))

	var verr *rules.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "ruleId", verr.Field)
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(url, nil)
	require.NoError(t, err)

	_, err = c.GetRuleSet(context.Background())
	assert.True(t, pkgerrors.IsTransport(err))
}

func TestCancellation(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c, err := New(srv.URL, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err = c.GetRuleSet(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, pkgerrors.IsTransport(err))
}

func TestDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c, err := New(srv.URL, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, _, err = c.GetRule(ctx, "x")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBasePathPrefixIsPreserved(t *testing.T) {
	m := managertest.Start(t, managertest.WithBasePath("/jwt-revocation-manager"))
	m.Seed(rules.Rule{ID: "kept", Expires: 9})

	for _, base := range []string{m.URL(), m.URL() + "/"} {
		c, err := New(base, nil)
		require.NoError(t, err)

		rule, ok, err := c.GetRule(context.Background(), "kept")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, int64(9), rule.Expires)
	}
}

func TestRequestHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))
		assert.Equal(t, "evaluator/2", r.Header.Get("User-Agent"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		if r.Method == http.MethodPost {
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		}
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"ruleId":"n","ruleExpires":1}`)
	}))
	defer srv.Close()

	c, err := New(srv.URL, auth.StaticToken("abc"), WithUserAgent("evaluator/2"))
	require.NoError(t, err)

	_, err = c.CreateRule(context.Background(), rules.Rule{Expires: 1})
	require.NoError(t, err)
}

func TestOptionalTransportLayers(t *testing.T) {
	m := managertest.Start(t)
	m.Seed(rules.Rule{ID: "a", Expires: 1})

	base := &countingTransport{next: http.DefaultTransport}
	c, err := New(m.URL(), nil,
		WithHTTPClient(&http.Client{Timeout: 5 * time.Second}),
		WithTransport(base),
		WithRateLimit(100, 10),
		WithCircuitBreaker(circuitbreakerConfig()),
		WithTracing(),
	)
	require.NoError(t, err)
	require.NotNil(t, c.Breaker())

	_, ok, err := c.GetRule(context.Background(), "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(1), atomic.LoadInt32(&base.calls))
}

func TestWithRateLimitFallsBackToDefaults(t *testing.T) {
	o := defaultOptions()
	WithRateLimit(0, -1)(&o)
	require.NotNil(t, o.rateLimit)
	assert.Equal(t, ratelimit.DefaultConfig(), *o.rateLimit)

	WithRateLimit(2.5, 4)(&o)
	assert.Equal(t, ratelimit.Config{RPS: 2.5, Burst: 4}, *o.rateLimit)
}

func circuitbreakerConfig() circuitbreaker.Config {
	return circuitbreaker.DefaultConfig("manager-test")
}

type countingTransport struct {
	calls int32
	next  http.RoundTripper
}

func (c *countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	atomic.AddInt32(&c.calls, 1)
	return c.next.RoundTrip(req)
}

type rotatingProvider struct {
	current   string
	next      string
	refreshes *int32
}

func (p *rotatingProvider) Token(context.Context) (string, error) {
	return p.current, nil
}

func (p *rotatingProvider) Refresh(_ context.Context, rejected string) (string, error) {
	atomic.AddInt32(p.refreshes, 1)
	if rejected == p.current {
		p.current = p.next
	}
	return p.current, nil
}

func ids(list []rules.Rule) []string {
	out := make([]string, 0, len(list))
	for _, r := range list {
		out = append(out, r.ID)
	}
	return out
}
