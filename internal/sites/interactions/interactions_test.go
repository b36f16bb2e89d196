package interactions

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"pillscan/internal/config"
	"pillscan/internal/httpx"
	"pillscan/internal/scraper"
)

func TestOrdinal(t *testing.T) {
	cases := map[int]string{
		1: "1st", 2: "2nd", 3: "3rd", 4: "4th", 10: "10th",
		11: "11th", 12: "12th", 13: "13th", 20: "20th",
		21: "21st", 22: "22nd", 23: "23rd", 101: "101st",
		111: "111th", 112: "112th", 120: "120th", 121: "121st",
	}
	for n, want := range cases {
		assert.Equal(t, want, Ordinal(n), "n=%d", n)
	}
}

func TestParseReport_NoHeading(t *testing.T) {
	r, err := ParseReport(strings.NewReader(`<html><body><h2>Drug interactions</h2></body></html>`))
	require.NoError(t, err)
	assert.Equal(t, MsgNoSection, r.Message)
	assert.Empty(t, r.Interactions)

	out, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"message": "No 'Drug and food interactions' section found on the page."}`, string(out))
}

func TestParseReport_NoWrapper(t *testing.T) {
	doc := `<div><div class="interactions-reference-wrapper"></div><h2>DRUG AND FOOD INTERACTIONS</h2><p>none</p></div>`
	r, err := ParseReport(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, MsgNoWrapper, r.Message)
}

func TestParseReport_NoInstances(t *testing.T) {
	doc := `<div><h2>Drug and Food Interactions</h2><div class="interactions-reference-wrapper"><p>empty</p></div></div>`
	r, err := ParseReport(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, MsgNoInstances, r.Message)
}

func TestParseReport_SingleBlockExcludesDisclaimer(t *testing.T) {
	doc := `<div>
		<h2>Drug and food interactions</h2>
		<div class="interactions-reference-wrapper">
			<div class="interactions-reference">
				<div class="interactions-reference-header">
					<h3>Moderate <span>alcohol</span></h3>
					<p>Applies to: ibuprofen</p>
				</div>
				<p>Avoid alcohol.</p>
				<p>Switch to professional interaction data</p>
			</div>
		</div>
	</div>`

	r, err := ParseReport(strings.NewReader(doc))
	require.NoError(t, err)
	require.Empty(t, r.Message)
	require.Len(t, r.Interactions, 1)
	assert.Equal(t, Interaction{
		Title:       "Moderate alcohol",
		AppliesTo:   "Applies to: ibuprofen",
		Description: "Avoid alcohol.",
	}, r.Interactions[0])

	out, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"1st interaction": {
		"title": "Moderate alcohol",
		"applies_to": "Applies to: ibuprofen",
		"description": "Avoid alcohol."
	}}`, string(out))
}

func TestParseReport_Fixture(t *testing.T) {
	f, err := os.Open(filepath.Join("testdata", "check.html"))
	require.NoError(t, err)
	defer f.Close()

	r, err := ParseReport(f)
	require.NoError(t, err)
	require.Len(t, r.Interactions, 2)

	assert.Equal(t, Interaction{
		Title:       "Moderate warfarin food",
		AppliesTo:   "Applies to:warfarin",
		Description: "Vitamin K can reduce the effects of warfarin. Keep your diet consistent.",
	}, r.Interactions[0])
	assert.Equal(t, Interaction{
		Title:       "Minor aspirin food",
		AppliesTo:   "Applies to: aspirin",
		Description: "Take with food.",
	}, r.Interactions[1])

	out, err := json.Marshal(r)
	require.NoError(t, err)
	assert.True(t, strings.Index(string(out), `"1st interaction"`) < strings.Index(string(out), `"2nd interaction"`))
}

func TestParseReport_BlockWithoutHeader(t *testing.T) {
	doc := `<h2>Drug and food interactions</h2>
		<div class="interactions-reference-wrapper">
			<div class="interactions-reference"></div>
		</div>`
	r, err := ParseReport(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, r.Interactions, 1)
	assert.Equal(t, Interaction{}, r.Interactions[0])

	out, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"1st interaction": {}}`, string(out))
}

// fakeSession serves URLs from a script: the first URL() call returns the
// search URL, later calls return after.
type fakeSession struct {
	after     string
	navigated string
	calls     int
	closed    bool
}

func (f *fakeSession) Navigate(_ context.Context, url string) error {
	f.navigated = url
	return nil
}

func (f *fakeSession) URL() (string, error) {
	f.calls++
	if f.calls == 1 || f.after == "" {
		return f.navigated, nil
	}
	return f.after, nil
}

func (f *fakeSession) Close() error {
	f.closed = true
	return nil
}

type sessionScript struct {
	sessions []*fakeSession
	redirect map[int]string // attempt number -> URL after the wait
}

func (s *sessionScript) open(context.Context) (Navigator, error) {
	fs := &fakeSession{after: s.redirect[len(s.sessions)+1]}
	s.sessions = append(s.sessions, fs)
	return fs, nil
}

func newTestResolver(t *testing.T, script *sessionScript, delays *[]time.Duration, opts ...ResolverOption) *Resolver {
	r := NewResolver(script.open, "https://drugs.test", append([]ResolverOption{WithLogger(zaptest.NewLogger(t))}, opts...)...)
	r.sleep = func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
	return r
}

func TestResolver_SucceedsWhenURLChanges(t *testing.T) {
	script := &sessionScript{redirect: map[int]string{
		3: "https://drugs.test/interaction/list/?drug_list=1234-0",
	}}
	var delays []time.Duration
	r := newTestResolver(t, script, &delays)

	id, err := r.Resolve(context.Background(), "warfarin")
	require.NoError(t, err)
	assert.Equal(t, "1234-0", id)

	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}, delays)
	require.Len(t, script.sessions, 3)
	for _, s := range script.sessions {
		assert.True(t, s.closed)
		assert.Equal(t, "https://drugs.test/interaction/list/?searchterm=warfarin", s.navigated)
	}
}

func TestResolver_TimesOutAfterMaxAttempts(t *testing.T) {
	script := &sessionScript{}
	var delays []time.Duration
	r := newTestResolver(t, script, &delays, WithRetryPolicy(RetryPolicy{
		InitialDelay: 10 * time.Millisecond,
		Step:         5 * time.Millisecond,
		MaxAttempts:  3,
	}))

	_, err := r.Resolve(context.Background(), "unknown")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrResolveTimeout))
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 15 * time.Millisecond, 20 * time.Millisecond}, delays)
	require.Len(t, script.sessions, 3)
	for _, s := range script.sessions {
		assert.True(t, s.closed)
	}
}

func TestResolver_ChangedURLWithoutMarker(t *testing.T) {
	script := &sessionScript{redirect: map[int]string{1: "https://drugs.test/search.php?searchterm=x"}}
	var delays []time.Duration
	r := newTestResolver(t, script, &delays)

	_, err := r.Resolve(context.Background(), "x")
	assert.True(t, errors.Is(err, ErrNoDrugID))
	assert.Len(t, script.sessions, 1)
}

func TestResolver_ContextCancelledDuringWait(t *testing.T) {
	script := &sessionScript{}
	r := NewResolver(script.open, "https://drugs.test")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Resolve(ctx, "warfarin")
	assert.True(t, errors.Is(err, context.Canceled))
	require.Len(t, script.sessions, 1)
	assert.True(t, script.sessions[0].closed)
}

func TestResolver_OpenFailure(t *testing.T) {
	r := NewResolver(func(context.Context) (Navigator, error) {
		return nil, errors.New("no chrome")
	}, "https://drugs.test")

	_, err := r.Resolve(context.Background(), "warfarin")
	assert.ErrorContains(t, err, "no chrome")
}

func TestResolver_UsesCache(t *testing.T) {
	script := &sessionScript{redirect: map[int]string{1: "https://drugs.test/x?drug_list=77-0"}}
	var delays []time.Duration
	cache := NewMemoryCache(time.Hour)
	r := newTestResolver(t, script, &delays, WithCache(cache))

	id, err := r.Resolve(context.Background(), "Aspirin")
	require.NoError(t, err)
	assert.Equal(t, "77-0", id)

	id, err = r.Resolve(context.Background(), " aspirin ")
	require.NoError(t, err)
	assert.Equal(t, "77-0", id)
	assert.Len(t, script.sessions, 1)
}

func TestMemoryCache_Expiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache(time.Minute)
	c.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "warfarin", "1"))

	id, ok, err := c.Get(ctx, "WARFARIN")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", id)

	now = now.Add(2 * time.Minute)
	_, ok, err = c.Get(ctx, "warfarin")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCache_EvictKeepsRefreshedEntry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache(time.Minute)
	c.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "warfarin", "1"))
	now = now.Add(2 * time.Minute)

	// A Set lands between a reader seeing the stale entry and evicting it.
	require.NoError(t, c.Set(ctx, "warfarin", "2"))
	c.evict(cacheKey("warfarin"))

	id, ok, err := c.Get(ctx, "warfarin")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2", id)
}

func TestMemoryCache_Prune(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache(time.Minute)
	c.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "warfarin", "1"))
	now = now.Add(30 * time.Second)
	require.NoError(t, c.Set(ctx, "aspirin", "2"))
	now = now.Add(45 * time.Second)

	c.Prune()
	c.mu.RLock()
	defer c.mu.RUnlock()
	assert.Len(t, c.entries, 1)
	assert.Contains(t, c.entries, "aspirin")
}

func TestRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewRedisCache(client, time.Hour)
	defer c.Close()

	ctx := context.Background()
	_, ok, err := c.Get(ctx, "warfarin")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "Warfarin", "2345-0"))
	assert.True(t, mr.Exists("pillscan:drugid:warfarin"))

	id, ok, err := c.Get(ctx, "warfarin")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2345-0", id)

	mr.FastForward(2 * time.Hour)
	_, ok, err = c.Get(ctx, "warfarin")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDialRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := DialRedisCache(context.Background(), "redis://"+mr.Addr()+"/0", time.Minute)
	require.NoError(t, err)
	defer c.Close()

	_, err = DialRedisCache(context.Background(), "not a url", time.Minute)
	assert.Error(t, err)
}

type staticResolver map[string]string

func (s staticResolver) Resolve(_ context.Context, name string) (string, error) {
	id, ok := s[name]
	if !ok {
		return "", ErrResolveTimeout
	}
	return id, nil
}

func TestClient_Check(t *testing.T) {
	fixture, err := os.ReadFile(filepath.Join("testdata", "check.html"))
	require.NoError(t, err)

	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/interactions-check.php", r.URL.Path)
		gotQuery = r.URL.RawQuery
		w.Write(fixture)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, staticResolver{"warfarin": "2311-0", "aspirin": "243-0"}, nil)
	report, u, err := c.Check(context.Background(), "warfarin", "aspirin")
	require.NoError(t, err)

	assert.Equal(t, "drug_list=2311-0,243-0", gotQuery)
	assert.Equal(t, srv.URL+"/interactions-check.php?drug_list=2311-0,243-0", u)
	assert.Len(t, report.Interactions, 2)
}

func TestClient_Check_NonSuccessIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, staticResolver{"a": "1", "b": "2"}, nil)
	_, _, err := c.Check(context.Background(), "a", "b")

	var statusErr *httpx.HTTPStatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
}

func TestClient_Check_ResolveFailure(t *testing.T) {
	c := NewClient(nil, "https://drugs.test", staticResolver{"a": "1"}, nil)
	_, _, err := c.Check(context.Background(), "a", "missing")
	assert.True(t, errors.Is(err, ErrResolveTimeout))
}

func TestInteractionsScraper(t *testing.T) {
	fixture, err := os.ReadFile(filepath.Join("testdata", "check.html"))
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(fixture)
	}))
	defer srv.Close()

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.DrugsBaseURL = srv.URL
	cfg.ResolveInitialDelay = time.Millisecond
	cfg.ResolveDelayStep = time.Millisecond

	redirects := []string{"2311-0", "243-0"}
	var sessions []*fakeSession
	s := &InteractionsScraper{Open: func(context.Context) (Navigator, error) {
		fs := &fakeSession{after: srv.URL + "/interaction/list/?drug_list=" + redirects[len(sessions)]}
		sessions = append(sessions, fs)
		return fs, nil
	}}

	cache := NewMemoryCache(0)
	content, err := s.Scrape(context.Background(), "warfarin", scraper.Options{
		Config:  cfg,
		Extra:   map[string]string{"with": "aspirin"},
		IDCache: cache,
	})
	require.NoError(t, err)
	assert.Len(t, sessions, 2)

	id, ok, _ := cache.Get(context.Background(), "aspirin")
	assert.True(t, ok)
	assert.Equal(t, "243-0", id)

	text, err := content.ToText()
	require.NoError(t, err)
	assert.Contains(t, text, "[1st interaction]")
	assert.Contains(t, text, "Minor aspirin food")

	csvOut, err := content.ToCSV()
	require.NoError(t, err)
	assert.Contains(t, csvOut, "2nd interaction,Minor aspirin food,Applies to: aspirin,Take with food.")

	_, err = s.Scrape(context.Background(), "warfarin", scraper.Options{Config: cfg})
	assert.Error(t, err)
}

func TestRegistered(t *testing.T) {
	s, ok := scraper.Get("drugs.interactions")
	require.True(t, ok)
	assert.Equal(t, "drugs.interactions", s.Name())
}
