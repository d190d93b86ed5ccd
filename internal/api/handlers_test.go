package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio-proxy/internal/cache/memory"
	"portfolio-proxy/internal/github"
	"portfolio-proxy/internal/httpx"
	"portfolio-proxy/internal/roblox"
	"portfolio-proxy/internal/upstream"
)

type fakeFetcher struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeFetcher) FetchContributions(_ context.Context, username string) (*github.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &github.Stats{
		User: github.User{Login: username, Name: username},
		FunMetrics: github.Metrics{
			TotalStars:     10,
			LanguagesCount: 2,
			YearsActive:    4,
			YearlyCommits:  200,
			TotalForks:     1,
		},
		RecentRepositories: []github.RepoSummary{},
	}, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeFetcher) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type fakeCatalog struct {
	mu           sync.Mutex
	resolveCalls int
	catalogCalls int
	failIDs      map[string]bool
	failCatalog  bool
}

func (f *fakeCatalog) ResolveUniverse(_ context.Context, gameID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolveCalls++
	if f.failIDs[gameID] {
		return 0, upstream.Errorf(404, "no universe for game %s", gameID)
	}
	n, err := strconv.ParseInt(gameID, 10, 64)
	if err != nil {
		return 0, upstream.Errorf(400, "bad game id %s", gameID)
	}
	return 9000 + n, nil
}

func (f *fakeCatalog) FetchCatalog(_ context.Context, universeIDs []int64) (*roblox.Catalog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.catalogCalls++
	if f.failCatalog {
		return nil, upstream.Errorf(503, "catalog unavailable")
	}
	ids, _ := json.Marshal(universeIDs)
	details := fmt.Sprintf(`{"data":%s}`, ids)
	return &roblox.Catalog{
		Details:    json.RawMessage(details),
		Thumbnails: json.RawMessage(`{"data":[]}`),
	}, nil
}

func (f *fakeCatalog) counts() (resolves, catalogs int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resolveCalls, f.catalogCalls
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	ts      *httpx.TestServer
	clock   *fakeClock
	fetcher *fakeFetcher
	catalog *fakeCatalog
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()

	clock := newFakeClock()
	store := memory.NewStore(memory.WithClock(clock.Now))
	fetcher := &fakeFetcher{}
	catalog := &fakeCatalog{}

	handler := NewHandler(store, fetcher, catalog, opts...)

	server := httpx.NewServer(httpx.WithMiddlewares(httpx.RecoverMiddleware()))
	server.RegisterRoutes(Routes(handler))

	ts := httpx.NewTestServer(server.Handler())
	t.Cleanup(ts.Close)

	return &harness{ts: ts, clock: clock, fetcher: fetcher, catalog: catalog}
}

func (h *harness) get(t *testing.T, path string, query url.Values) (int, map[string]json.RawMessage) {
	t.Helper()
	u := h.ts.BaseURL() + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	resp, err := http.Get(u)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &body), "body must always be parseable JSON: %s", raw)
	return resp.StatusCode, body
}

func metricsOf(t *testing.T, body map[string]json.RawMessage) github.Metrics {
	t.Helper()
	var m github.Metrics
	require.Contains(t, body, "fun_metrics")
	require.NoError(t, json.Unmarshal(body["fun_metrics"], &m))
	return m
}

func isFallback(t *testing.T, body map[string]json.RawMessage) bool {
	t.Helper()
	require.Contains(t, body, "is_fallback")
	var b bool
	require.NoError(t, json.Unmarshal(body["is_fallback"], &b))
	return b
}

func TestContributionsMissingUsername(t *testing.T) {
	h := newHarness(t)

	status, body := h.get(t, "/api/github-contributions", nil)

	assert.Equal(t, http.StatusBadRequest, status)
	assert.JSONEq(t, `"Missing username parameter"`, string(body["error"]))
	assert.Equal(t, 0, h.fetcher.callCount(), "no upstream call for a client error")
}

func TestContributionsSuccess(t *testing.T) {
	h := newHarness(t)

	status, body := h.get(t, "/api/github-contributions", url.Values{"username": {"octo"}})

	assert.Equal(t, http.StatusOK, status)
	assert.False(t, isFallback(t, body))

	m := metricsOf(t, body)
	assert.Equal(t, github.Metrics{TotalStars: 10, LanguagesCount: 2, YearsActive: 4, YearlyCommits: 200, TotalForks: 1}, m)
}

func TestContributionsFunMetricsFieldSet(t *testing.T) {
	h := newHarness(t)

	_, body := h.get(t, "/api/github-contributions", url.Values{"username": {"octo"}})

	var fields map[string]json.Number
	require.NoError(t, json.Unmarshal(body["fun_metrics"], &fields))
	assert.ElementsMatch(t,
		[]string{"total_stars", "languages_count", "years_active", "yearly_commits", "total_forks"},
		keysOf(fields))
}

func keysOf(m map[string]json.Number) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestContributionsCacheIdempotence(t *testing.T) {
	h := newHarness(t)
	q := url.Values{"username": {"octo"}}

	status1, body1 := h.get(t, "/api/github-contributions", q)
	status2, body2 := h.get(t, "/api/github-contributions", q)

	assert.Equal(t, http.StatusOK, status1)
	assert.Equal(t, http.StatusOK, status2)
	assert.Equal(t, body1, body2)
	assert.Equal(t, 1, h.fetcher.callCount(), "second request must be served from cache")
}

func TestContributionsCacheExpiry(t *testing.T) {
	h := newHarness(t, WithTTLs(time.Hour, time.Hour))
	q := url.Values{"username": {"octo"}}

	h.get(t, "/api/github-contributions", q)
	h.clock.Advance(61 * time.Minute)
	h.get(t, "/api/github-contributions", q)

	assert.Equal(t, 2, h.fetcher.callCount(), "expired entry must trigger a fresh upstream call")
}

func TestContributionsCacheKeyedByUsername(t *testing.T) {
	h := newHarness(t)

	h.get(t, "/api/github-contributions", url.Values{"username": {"octo"}})
	h.get(t, "/api/github-contributions", url.Values{"username": {"hexo"}})

	assert.Equal(t, 2, h.fetcher.callCount())
}

func TestContributionsFallbackOnUpstreamFailure(t *testing.T) {
	h := newHarness(t)
	h.fetcher.setErr(upstream.Errorf(429, "rate limited"))

	status, body := h.get(t, "/api/github-contributions", url.Values{"username": {"octo"}})

	assert.Equal(t, http.StatusOK, status, "upstream failure must not surface as an error status")
	assert.True(t, isFallback(t, body))

	m := metricsOf(t, body)
	assert.Equal(t, 127, m.TotalStars)
	assert.Equal(t, 78, m.YearlyCommits)
	assert.Equal(t, 3, m.YearsActive)

	var user github.User
	require.NoError(t, json.Unmarshal(body["user"], &user))
	assert.Equal(t, "octo", user.Login, "fallback must echo the requested identifier")
}

func TestContributionsFallbackNotCached(t *testing.T) {
	h := newHarness(t)
	q := url.Values{"username": {"octo"}}

	h.fetcher.setErr(upstream.Errorf(503, "outage"))
	_, body := h.get(t, "/api/github-contributions", q)
	require.True(t, isFallback(t, body))

	h.fetcher.setErr(nil)
	_, body = h.get(t, "/api/github-contributions", q)

	assert.False(t, isFallback(t, body), "recovered upstream must serve genuine data, not a cached fallback")
	assert.Equal(t, 2, h.fetcher.callCount())
}

func TestGamesMissingParameter(t *testing.T) {
	h := newHarness(t)

	status, body := h.get(t, "/api/roblox/games", nil)

	assert.Equal(t, http.StatusBadRequest, status)
	assert.JSONEq(t, `"Missing gameIds parameter"`, string(body["error"]))
	resolves, catalogs := h.catalog.counts()
	assert.Zero(t, resolves)
	assert.Zero(t, catalogs)
}

func TestGamesSuccess(t *testing.T) {
	h := newHarness(t)

	status, body := h.get(t, "/api/roblox/games", url.Values{"gameIds": {"101,102"}})

	assert.Equal(t, http.StatusOK, status)
	assert.False(t, isFallback(t, body))
	assert.JSONEq(t, `{"data":[9101,9102]}`, string(body["details"]))
	assert.Contains(t, body, "thumbnails")
}

func TestGamesPartialResolutionFailure(t *testing.T) {
	h := newHarness(t)
	h.catalog.failIDs = map[string]bool{"666": true}

	status, body := h.get(t, "/api/roblox/games", url.Values{"gameIds": {"101,666"}})

	assert.Equal(t, http.StatusOK, status, "one resolvable id is enough")
	assert.JSONEq(t, `{"data":[9101]}`, string(body["details"]))
}

func TestGamesTotalResolutionFailure(t *testing.T) {
	h := newHarness(t)
	h.catalog.failIDs = map[string]bool{"666": true, "667": true}

	status, body := h.get(t, "/api/roblox/games", url.Values{"gameIds": {"666,667"}})

	assert.Equal(t, http.StatusNotFound, status)
	assert.JSONEq(t, `"Failed to retrieve any valid universeIds"`, string(body["error"]))

	_, catalogs := h.catalog.counts()
	assert.Zero(t, catalogs, "no batch call without a resolved universe")
}

func TestGamesCacheIdempotence(t *testing.T) {
	h := newHarness(t)
	q := url.Values{"gameIds": {"101,102"}}

	h.get(t, "/api/roblox/games", q)
	h.get(t, "/api/roblox/games", q)

	resolves, catalogs := h.catalog.counts()
	assert.Equal(t, 2, resolves, "one resolution per id, once")
	assert.Equal(t, 1, catalogs)
}

func TestGamesUniverseResolutionReused(t *testing.T) {
	h := newHarness(t)

	h.get(t, "/api/roblox/games", url.Values{"gameIds": {"101"}})
	h.get(t, "/api/roblox/games", url.Values{"gameIds": {"101,102"}})

	resolves, catalogs := h.catalog.counts()
	assert.Equal(t, 2, resolves, "101 resolved once, 102 resolved once")
	assert.Equal(t, 2, catalogs, "different composite keys are distinct cache entries")
}

func TestGamesFallbackOnBatchFailure(t *testing.T) {
	h := newHarness(t)
	h.catalog.failCatalog = true

	status, body := h.get(t, "/api/roblox/games", url.Values{"gameIds": {"101"}})

	assert.Equal(t, http.StatusOK, status)
	assert.True(t, isFallback(t, body))

	var details struct {
		Data []struct {
			ID int64 `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body["details"], &details))
	require.Len(t, details.Data, 1)
	assert.Equal(t, int64(9101), details.Data[0].ID, "fallback echoes the resolved universe id")
}

func TestGamesFallbackNotCached(t *testing.T) {
	h := newHarness(t)
	q := url.Values{"gameIds": {"101"}}

	h.catalog.failCatalog = true
	_, body := h.get(t, "/api/roblox/games", q)
	require.True(t, isFallback(t, body))

	h.catalog.mu.Lock()
	h.catalog.failCatalog = false
	h.catalog.mu.Unlock()

	_, body = h.get(t, "/api/roblox/games", q)
	assert.False(t, isFallback(t, body))
}

func TestGamesCatalogShapeCongruence(t *testing.T) {
	h := newHarness(t)

	_, genuine := h.get(t, "/api/roblox/games", url.Values{"gameIds": {"101"}})

	h2 := newHarness(t)
	h2.catalog.failCatalog = true
	_, fallback := h2.get(t, "/api/roblox/games", url.Values{"gameIds": {"101"}})

	assert.ElementsMatch(t, rawKeys(genuine), rawKeys(fallback))
}

func rawKeys(m map[string]json.RawMessage) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
