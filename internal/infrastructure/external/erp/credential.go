package erp

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"github.com/unitrack-hub/attendance-engine/internal/domain/shared"
)

// CredentialAcquirer logs in by posting the credential form directly, the way
// the ERP's own login page would. It needs no browser: a cookie jar on a
// plain HTTP client carries the authenticated state.
type CredentialAcquirer struct {
	config Config
	logger *slog.Logger
}

// NewCredentialAcquirer creates a credential-POST acquirer.
func NewCredentialAcquirer(cfg Config) *CredentialAcquirer {
	return &CredentialAcquirer{config: cfg, logger: slog.Default()}
}

// WithLogger replaces the logger.
func (a *CredentialAcquirer) WithLogger(l *slog.Logger) *CredentialAcquirer {
	a.logger = l
	return a
}

// Acquire posts the login form and probes a known authenticated page. The ERP
// answers a bad login by bouncing the probe back to the login surface, so the
// probe's final URL is the verdict.
func (a *CredentialAcquirer) Acquire(ctx context.Context, creds Credentials) (*Session, error) {
	if creds.Username == "" || creds.Password == "" {
		return nil, shared.NewDomainError("session", "Acquire", shared.ErrInvalidCredentials, "username and password are required")
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, shared.WrapError("session", "Acquire", shared.ErrValidation, "create cookie jar", err)
	}
	client := &http.Client{Jar: jar, Timeout: a.config.Timeout}

	form := url.Values{}
	form.Set(a.config.UsernameField, creds.Username)
	form.Set(a.config.PasswordField, creds.Password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.loginURL(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, shared.WrapError("session", "Acquire", shared.ErrValidation, "build login request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return nil, classifyTransportErr("Acquire", "login request failed", err)
	}
	resp.Body.Close()

	// Probe an authenticated page. An unauthenticated session is redirected
	// back to the login surface.
	probeURL := a.config.BaseURL + a.config.ProbePath
	probeReq, err := http.NewRequestWithContext(ctx, http.MethodGet, probeURL, nil)
	if err != nil {
		return nil, shared.WrapError("session", "Acquire", shared.ErrValidation, "build probe request", err)
	}

	probeResp, err := client.Do(probeReq)
	if err != nil {
		return nil, classifyTransportErr("Acquire", "probe request failed", err)
	}
	probeResp.Body.Close()

	finalURL := probeResp.Request.URL.String()
	if !a.config.successFunc()(finalURL) {
		a.logger.Debug("credential login rejected", "final_url", finalURL)
		return nil, shared.NewDomainError("session", "Acquire", shared.ErrInvalidCredentials, "probe redirected back to login surface")
	}

	base, err := url.Parse(a.config.BaseURL)
	if err != nil {
		return nil, shared.WrapError("session", "Acquire", shared.ErrValidation, "parse base URL", err)
	}

	a.logger.Debug("credential login accepted", "final_url", finalURL)
	return &Session{Cookies: jar.Cookies(base)}, nil
}

// classifyTransportErr folds transport failures into the auth taxonomy.
func classifyTransportErr(op, msg string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return shared.WrapError("session", op, shared.ErrAuthTimeout, msg, err)
	}
	if errors.Is(err, context.Canceled) {
		return shared.WrapError("session", op, shared.ErrAuthCancelled, msg, err)
	}
	return shared.WrapError("session", op, shared.ErrAuthAmbiguous, msg, err)
}
