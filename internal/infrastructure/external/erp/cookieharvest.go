package erp

import (
	"context"
	"log/slog"

	"github.com/unitrack-hub/attendance-engine/internal/domain/shared"
)

// CookieHarvestAcquirer drives the embedded browser to the ERP's own login
// page and waits for a human to complete the login. Success is detected by
// the URL heuristic; the browser's cookie jar then becomes the session.
// Used for ERPs behind captchas or SSO flows the engine cannot script.
type CookieHarvestAcquirer struct {
	config  Config
	browser Browser
	logger  *slog.Logger
}

// NewCookieHarvestAcquirer creates a cookie-harvest acquirer.
func NewCookieHarvestAcquirer(cfg Config, browser Browser) *CookieHarvestAcquirer {
	return &CookieHarvestAcquirer{config: cfg, browser: browser, logger: slog.Default()}
}

// WithLogger replaces the logger.
func (a *CookieHarvestAcquirer) WithLogger(l *slog.Logger) *CookieHarvestAcquirer {
	a.logger = l
	return a
}

// Acquire opens the login page, waits (bounded) for the human to finish, and
// extracts the cookie jar. Credentials are unused: the human types them into
// the ERP's page, never into the engine.
func (a *CookieHarvestAcquirer) Acquire(ctx context.Context, _ Credentials) (*Session, error) {
	if err := a.browser.Navigate(ctx, a.config.loginURL()); err != nil {
		return nil, shared.WrapError("session", "Acquire", shared.ErrAuthAmbiguous, "open login page", err)
	}

	if err := awaitLogin(ctx, a.browser, a.config.successFunc(), a.config.LoginWait); err != nil {
		a.teardown()
		return nil, err
	}

	cookies, err := a.browser.Cookies(ctx)
	if err != nil {
		a.teardown()
		return nil, shared.WrapError("session", "Acquire", shared.ErrAuthAmbiguous, "extract cookie jar", err)
	}
	if len(cookies) == 0 {
		a.teardown()
		return nil, shared.NewDomainError("session", "Acquire", shared.ErrAuthAmbiguous, "login looked successful but no cookies were set")
	}

	a.logger.Debug("cookie harvest complete", "cookies", len(cookies))
	return &Session{Cookies: cookies}, nil
}

// teardown closes the browser session on failure so the next sync starts
// clean. Close errors are not actionable here.
func (a *CookieHarvestAcquirer) teardown() {
	if err := a.browser.Close(); err != nil {
		a.logger.Debug("browser close failed", "error", err)
	}
}
