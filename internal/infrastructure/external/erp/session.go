// Package erp implements session acquisition and attendance fetching against
// arbitrary university ERP systems. ERPs are wildly non-uniform: some take a
// plain credential POST, some need a human to log in through an embedded
// browser, some only give up their data to a script running inside the page.
// Each mechanism is a strategy behind the single Acquirer capability; the
// orchestrator never learns which one ran.
package erp

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/unitrack-hub/attendance-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STRATEGY SELECTION
// ══════════════════════════════════════════════════════════════════════════════

// Strategy names a session-acquisition mechanism. The set is closed; new ERPs
// pick one of these in configuration rather than adding subclasses.
type Strategy string

const (
	// StrategyCredential posts username/password to the login endpoint.
	StrategyCredential Strategy = "credential"
	// StrategyCookieHarvest lets a human log in via an embedded browser and
	// harvests the resulting cookie jar.
	StrategyCookieHarvest Strategy = "cookie"
	// StrategyScriptInject drives the embedded browser with injected scripts
	// that log in and fetch the payload in-page.
	StrategyScriptInject Strategy = "script"
)

// IsValid reports whether the strategy is one of the known variants.
func (s Strategy) IsValid() bool {
	return s == StrategyCredential || s == StrategyCookieHarvest || s == StrategyScriptInject
}

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config describes one ERP deployment. Endpoints are configuration, never
// hard-coded: every university points the engine somewhere else.
type Config struct {
	// BaseURL is the ERP origin, e.g. "https://erp.university.edu".
	BaseURL string

	// LoginPath is the login page / form action path.
	LoginPath string

	// ProbePath is an authenticated page used to verify a credential login.
	ProbePath string

	// AttendancePath is the attendance JSON endpoint.
	AttendancePath string

	// Strategy selects the session-acquisition mechanism.
	Strategy Strategy

	// UsernameField and PasswordField are the login form field names.
	// Defaults cover Spring Security style ERPs (j_username/j_password).
	UsernameField string
	PasswordField string

	// LoginMarkers are URL substrings that mark the login surface. A URL
	// containing none of them is considered authenticated. The heuristic is
	// deliberately replaceable; see SuccessFunc.
	LoginMarkers []string

	// SuccessFunc overrides the marker heuristic when set.
	SuccessFunc LoginSuccessFunc

	// FieldOverrides maps canonical record fields ("present", "subject", ...)
	// to this vendor's field names. Tried before the built-in probe lists.
	FieldOverrides map[string]string

	// LoginWait bounds the embedded-browser login wait.
	LoginWait time.Duration

	// Timeout bounds each HTTP round trip.
	Timeout time.Duration
}

// DefaultConfig returns a Config with the defaults observed across Spring
// Security based ERPs.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:        strings.TrimRight(baseURL, "/"),
		LoginPath:      "/login.htm",
		ProbePath:      "/studentHome.htm",
		AttendancePath: "/stu_getSubjectOnChangeWithSemId1.json",
		Strategy:       StrategyCredential,
		UsernameField:  "j_username",
		PasswordField:  "j_password",
		LoginMarkers:   DefaultLoginMarkers(),
		LoginWait:      30 * time.Second,
		Timeout:        20 * time.Second,
	}
}

// Validate checks that the config is usable.
func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return shared.NewDomainError("erp", "Validate", shared.ErrEmptyValue, "base URL is required")
	}
	if !c.Strategy.IsValid() {
		return shared.NewDomainError("erp", "Validate", shared.ErrInvalidInput, "unknown auth strategy")
	}
	return nil
}

// loginURL joins the base URL and login path.
func (c Config) loginURL() string { return c.BaseURL + c.LoginPath }

// successFunc returns the login-success predicate for this deployment.
func (c Config) successFunc() LoginSuccessFunc {
	if c.SuccessFunc != nil {
		return c.SuccessFunc
	}
	markers := c.LoginMarkers
	if len(markers) == 0 {
		markers = DefaultLoginMarkers()
	}
	return MarkerHeuristic(markers)
}

// ══════════════════════════════════════════════════════════════════════════════
// LOGIN-SUCCESS HEURISTIC
// ══════════════════════════════════════════════════════════════════════════════

// LoginSuccessFunc reports whether a browser URL looks authenticated.
// URL-based detection is inherently fuzzy, so the predicate is pluggable:
// deployments that key on the presence of "dashboard" instead of the absence
// of "login" supply their own.
type LoginSuccessFunc func(url string) bool

// DefaultLoginMarkers returns the login-surface substrings observed across
// ERP vendors.
func DefaultLoginMarkers() []string {
	return []string{"login", "signin", "j_spring_security", "authfailed"}
}

// MarkerHeuristic builds a predicate that accepts any URL containing none of
// the given markers.
func MarkerHeuristic(markers []string) LoginSuccessFunc {
	lowered := make([]string, len(markers))
	for i, m := range markers {
		lowered[i] = strings.ToLower(m)
	}
	return func(url string) bool {
		u := strings.ToLower(url)
		for _, m := range lowered {
			if m != "" && strings.Contains(u, m) {
				return false
			}
		}
		return true
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSION
// ══════════════════════════════════════════════════════════════════════════════

// Credentials are passed by value into a single acquisition and discarded.
// The engine never stores them.
type Credentials struct {
	Username string
	Password string
}

// Session is the opaque authenticated context produced by an Acquirer and
// consumed exactly once by the Fetcher within the same sync. It is never
// persisted.
type Session struct {
	// Cookies is the authenticated cookie jar (credential and cookie-harvest
	// strategies).
	Cookies []*http.Cookie

	// Payload is set by the script-injection strategy, which fetches the
	// attendance data in-page instead of handing back a reusable session.
	Payload []RawRecord
}

// HasPayload reports whether the session already carries the attendance
// payload, making a fetch round trip unnecessary.
func (s *Session) HasPayload() bool {
	return s != nil && s.Payload != nil
}

// Acquirer establishes an authenticated context against one ERP instance.
type Acquirer interface {
	// Acquire authenticates and returns a Session, or a classified auth
	// error: shared.ErrInvalidCredentials, shared.ErrAuthTimeout,
	// shared.ErrAuthAmbiguous, shared.ErrAuthCancelled.
	Acquire(ctx context.Context, creds Credentials) (*Session, error)
}

// NewAcquirer builds the Acquirer selected by the config. The embedded
// browser is only required by the browser-driven strategies.
func NewAcquirer(cfg Config, browser Browser) (Acquirer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Strategy {
	case StrategyCredential:
		return NewCredentialAcquirer(cfg), nil
	case StrategyCookieHarvest:
		if browser == nil {
			return nil, shared.NewDomainError("session", "New", shared.ErrInvalidInput, "cookie-harvest strategy requires an embedded browser")
		}
		return NewCookieHarvestAcquirer(cfg, browser), nil
	case StrategyScriptInject:
		if browser == nil {
			return nil, shared.NewDomainError("session", "New", shared.ErrInvalidInput, "script-injection strategy requires an embedded browser")
		}
		return NewScriptInjectAcquirer(cfg, browser), nil
	default:
		return nil, shared.NewDomainError("session", "New", shared.ErrInvalidInput, "unknown auth strategy")
	}
}
