package erp

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/unitrack-hub/attendance-engine/internal/domain/shared"
)

// fakeBrowser is a scripted Browser for exercising the browser-driven
// strategies without a rendering engine.
type fakeBrowser struct {
	mu       sync.Mutex
	current  string
	navs     chan NavigationEvent
	msgs     chan string
	cookies  []*http.Cookie
	injected []string
	closed   bool
}

func newFakeBrowser(currentURL string) *fakeBrowser {
	return &fakeBrowser{
		current: currentURL,
		navs:    make(chan NavigationEvent, 8),
		msgs:    make(chan string, 8),
	}
}

func (f *fakeBrowser) Navigate(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = url
	return nil
}

func (f *fakeBrowser) CurrentURL() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *fakeBrowser) Navigations() <-chan NavigationEvent { return f.navs }

func (f *fakeBrowser) InjectScript(_ context.Context, script string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.injected = append(f.injected, script)
	return nil
}

func (f *fakeBrowser) Messages() <-chan string { return f.msgs }

func (f *fakeBrowser) Cookies(_ context.Context) ([]*http.Cookie, error) {
	return f.cookies, nil
}

func (f *fakeBrowser) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func testConfig(strategy Strategy) Config {
	cfg := DefaultConfig("https://erp.example.edu")
	cfg.Strategy = strategy
	cfg.LoginWait = 200 * time.Millisecond
	return cfg
}

// ══════════════════════════════════════════════════════════════════════════════
// STRATEGY FACTORY
// ══════════════════════════════════════════════════════════════════════════════

func TestNewAcquirer_SelectsStrategy(t *testing.T) {
	browser := newFakeBrowser("")

	a, err := NewAcquirer(testConfig(StrategyCredential), nil)
	assert.NoError(t, err)
	assert.IsType(t, &CredentialAcquirer{}, a)

	a, err = NewAcquirer(testConfig(StrategyCookieHarvest), browser)
	assert.NoError(t, err)
	assert.IsType(t, &CookieHarvestAcquirer{}, a)

	a, err = NewAcquirer(testConfig(StrategyScriptInject), browser)
	assert.NoError(t, err)
	assert.IsType(t, &ScriptInjectAcquirer{}, a)
}

func TestNewAcquirer_BrowserStrategiesRequireBrowser(t *testing.T) {
	_, err := NewAcquirer(testConfig(StrategyCookieHarvest), nil)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = NewAcquirer(testConfig(StrategyScriptInject), nil)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestNewAcquirer_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(StrategyCredential)
	cfg.BaseURL = ""
	_, err := NewAcquirer(cfg, nil)
	assert.ErrorIs(t, err, shared.ErrEmptyValue)

	cfg = testConfig("oauth")
	_, err = NewAcquirer(cfg, nil)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

// ══════════════════════════════════════════════════════════════════════════════
// LOGIN-SUCCESS HEURISTIC
// ══════════════════════════════════════════════════════════════════════════════

func TestMarkerHeuristic(t *testing.T) {
	ok := MarkerHeuristic(DefaultLoginMarkers())

	assert.False(t, ok("https://erp.example.edu/login.htm"))
	assert.False(t, ok("https://erp.example.edu/j_spring_security_check"))
	assert.False(t, ok("https://erp.example.edu/login.htm?authfailed=true"))
	assert.False(t, ok("https://erp.example.edu/SignIn"))

	assert.True(t, ok("https://erp.example.edu/studentHome.htm"))
	assert.True(t, ok("https://erp.example.edu/dashboard"))
}

func TestConfig_SuccessFuncOverride(t *testing.T) {
	cfg := testConfig(StrategyCredential)
	cfg.SuccessFunc = func(url string) bool { return url == "https://erp.example.edu/ok" }

	ok := cfg.successFunc()
	assert.True(t, ok("https://erp.example.edu/ok"))
	// The override fully replaces the marker heuristic.
	assert.False(t, ok("https://erp.example.edu/dashboard"))
}

// ══════════════════════════════════════════════════════════════════════════════
// LOGIN WAIT CLASSIFICATION
// ══════════════════════════════════════════════════════════════════════════════

func TestAwaitLogin_AlreadyLoggedIn(t *testing.T) {
	b := newFakeBrowser("https://erp.example.edu/studentHome.htm")
	err := awaitLogin(context.Background(), b, MarkerHeuristic(DefaultLoginMarkers()), 100*time.Millisecond)
	assert.NoError(t, err)
}

func TestAwaitLogin_SucceedsOnNavigation(t *testing.T) {
	b := newFakeBrowser("https://erp.example.edu/login.htm")
	b.navs <- NavigationEvent{URL: "https://erp.example.edu/studentHome.htm"}

	err := awaitLogin(context.Background(), b, MarkerHeuristic(DefaultLoginMarkers()), 100*time.Millisecond)
	assert.NoError(t, err)
}

func TestAwaitLogin_TimeoutWithNoActivity(t *testing.T) {
	b := newFakeBrowser("https://erp.example.edu/login.htm")

	err := awaitLogin(context.Background(), b, MarkerHeuristic(DefaultLoginMarkers()), 50*time.Millisecond)
	assert.ErrorIs(t, err, shared.ErrAuthTimeout)
}

func TestAwaitLogin_AmbiguousAfterNavigation(t *testing.T) {
	b := newFakeBrowser("https://erp.example.edu/login.htm")
	// Navigated somewhere, but the destination still looks like the login
	// surface when the deadline hits.
	b.navs <- NavigationEvent{URL: "https://erp.example.edu/login.htm?authfailed=true"}

	err := awaitLogin(context.Background(), b, MarkerHeuristic(DefaultLoginMarkers()), 50*time.Millisecond)
	assert.ErrorIs(t, err, shared.ErrAuthAmbiguous)
}

func TestAwaitLogin_CancelledWhenBrowserCloses(t *testing.T) {
	b := newFakeBrowser("https://erp.example.edu/login.htm")
	close(b.navs)

	err := awaitLogin(context.Background(), b, MarkerHeuristic(DefaultLoginMarkers()), time.Second)
	assert.ErrorIs(t, err, shared.ErrAuthCancelled)
}

func TestAwaitLogin_CancelledOnContext(t *testing.T) {
	b := newFakeBrowser("https://erp.example.edu/login.htm")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := awaitLogin(ctx, b, MarkerHeuristic(DefaultLoginMarkers()), time.Second)
	assert.ErrorIs(t, err, shared.ErrAuthCancelled)
}

// ══════════════════════════════════════════════════════════════════════════════
// COOKIE HARVEST
// ══════════════════════════════════════════════════════════════════════════════

func TestCookieHarvest_HappyPath(t *testing.T) {
	b := newFakeBrowser("")
	b.cookies = []*http.Cookie{{Name: "JSESSIONID", Value: "abc123"}}
	b.navs <- NavigationEvent{URL: "https://erp.example.edu/studentHome.htm"}

	a := NewCookieHarvestAcquirer(testConfig(StrategyCookieHarvest), b)
	session, err := a.Acquire(context.Background(), Credentials{})

	assert.NoError(t, err)
	assert.Len(t, session.Cookies, 1)
	assert.False(t, session.HasPayload())
	assert.False(t, b.closed)
}

func TestCookieHarvest_AmbiguousWhenNoCookies(t *testing.T) {
	b := newFakeBrowser("")
	b.navs <- NavigationEvent{URL: "https://erp.example.edu/studentHome.htm"}

	a := NewCookieHarvestAcquirer(testConfig(StrategyCookieHarvest), b)
	_, err := a.Acquire(context.Background(), Credentials{})

	assert.ErrorIs(t, err, shared.ErrAuthAmbiguous)
	assert.True(t, b.closed)
}

// ══════════════════════════════════════════════════════════════════════════════
// SCRIPT INJECTION
// ══════════════════════════════════════════════════════════════════════════════

func TestScriptInject_HappyPath(t *testing.T) {
	b := newFakeBrowser("")
	b.navs <- NavigationEvent{URL: "https://erp.example.edu/studentHome.htm"}
	b.msgs <- `[{"subject":"Mathematics","presentCount":26,"absentCount":14}]`

	a := NewScriptInjectAcquirer(testConfig(StrategyScriptInject), b)
	session, err := a.Acquire(context.Background(), Credentials{Username: "student", Password: "secret"})

	assert.NoError(t, err)
	assert.True(t, session.HasPayload())
	assert.Len(t, session.Payload, 1)
	assert.Equal(t, "Mathematics", session.Payload[0]["subject"])
	// One login script, one fetch script.
	assert.Len(t, b.injected, 2)
	assert.Contains(t, b.injected[0], "student")
	assert.Contains(t, b.injected[1], "stu_getSubjectOnChangeWithSemId1.json")
}

func TestScriptInject_RequiresCredentials(t *testing.T) {
	a := NewScriptInjectAcquirer(testConfig(StrategyScriptInject), newFakeBrowser(""))
	_, err := a.Acquire(context.Background(), Credentials{Username: "student"})
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestScriptInject_BounceBackMeansInvalidCredentials(t *testing.T) {
	b := newFakeBrowser("https://erp.example.edu/login.htm")
	// The scripted submit navigates, but only back to the login surface.
	b.navs <- NavigationEvent{URL: "https://erp.example.edu/login.htm?authfailed=true"}

	a := NewScriptInjectAcquirer(testConfig(StrategyScriptInject), b)
	_, err := a.Acquire(context.Background(), Credentials{Username: "student", Password: "wrong"})

	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
	assert.True(t, b.closed)
}

func TestScriptInject_NonArrayPayload(t *testing.T) {
	b := newFakeBrowser("")
	b.navs <- NavigationEvent{URL: "https://erp.example.edu/studentHome.htm"}
	b.msgs <- `<html>session expired</html>`

	a := NewScriptInjectAcquirer(testConfig(StrategyScriptInject), b)
	_, err := a.Acquire(context.Background(), Credentials{Username: "student", Password: "secret"})

	assert.ErrorIs(t, err, shared.ErrNotJSONArray)
}

func TestScriptInject_InPageFetchError(t *testing.T) {
	b := newFakeBrowser("")
	b.navs <- NavigationEvent{URL: "https://erp.example.edu/studentHome.htm"}
	b.msgs <- "ERROR:TypeError: Failed to fetch"

	a := NewScriptInjectAcquirer(testConfig(StrategyScriptInject), b)
	_, err := a.Acquire(context.Background(), Credentials{Username: "student", Password: "secret"})

	assert.ErrorIs(t, err, shared.ErrAuthAmbiguous)
}
