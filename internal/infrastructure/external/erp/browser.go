package erp

import (
	"context"
	"net/http"
	"time"

	"github.com/unitrack-hub/attendance-engine/internal/domain/shared"
)

// NavigationEvent is emitted by the embedded browser whenever the page URL
// changes.
type NavigationEvent struct {
	URL string
}

// Browser is the embedded-browser capability supplied by the host
// application. The engine drives it; it never owns the rendering surface.
// Navigation events and injected-script messages are delivered over channels
// because the underlying engine is callback-driven, not blocking.
type Browser interface {
	// Navigate loads the URL.
	Navigate(ctx context.Context, url string) error

	// CurrentURL returns the URL of the page currently displayed.
	CurrentURL() string

	// Navigations delivers URL-change events. The channel is closed when the
	// user closes the browser surface.
	Navigations() <-chan NavigationEvent

	// InjectScript evaluates the script on the current page.
	InjectScript(ctx context.Context, script string) error

	// Messages delivers out-of-band strings posted by injected scripts. The
	// channel is closed when the user closes the browser surface.
	Messages() <-chan string

	// Cookies returns the cookie jar contents for the current origin.
	Cookies(ctx context.Context) ([]*http.Cookie, error)

	// Close tears down the browser session.
	Close() error
}

// awaitLogin blocks until the success predicate accepts the browser URL, with
// a hard deadline. Each sync gets exactly one bounded wait - there is no
// long-lived subscription, so a sync can never hang on a stalled login page.
//
// Classification at the deadline: if the page never navigated at all the wait
// timed out (shared.ErrAuthTimeout); if it navigated but the predicate never
// confirmed, the login state is ambiguous (shared.ErrAuthAmbiguous). A closed
// event channel means the user dismissed the browser (shared.ErrAuthCancelled).
func awaitLogin(ctx context.Context, b Browser, ok LoginSuccessFunc, wait time.Duration) error {
	if ok(b.CurrentURL()) {
		return nil
	}

	if wait <= 0 {
		wait = 30 * time.Second
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	navigated := false
	for {
		select {
		case <-ctx.Done():
			return shared.WrapError("session", "AwaitLogin", shared.ErrAuthCancelled, "context cancelled during login", ctx.Err())

		case ev, open := <-b.Navigations():
			if !open {
				return shared.NewDomainError("session", "AwaitLogin", shared.ErrAuthCancelled, "browser closed before login completed")
			}
			navigated = true
			if ok(ev.URL) {
				return nil
			}

		case <-timer.C:
			if navigated {
				return shared.NewDomainError("session", "AwaitLogin", shared.ErrAuthAmbiguous, "login state unconfirmed within wait window")
			}
			return shared.NewDomainError("session", "AwaitLogin", shared.ErrAuthTimeout, "no login activity within wait window")
		}
	}
}

// awaitMessage blocks for a single out-of-band message from an injected
// script, with a hard deadline.
func awaitMessage(ctx context.Context, b Browser, wait time.Duration) (string, error) {
	if wait <= 0 {
		wait = 30 * time.Second
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return "", shared.WrapError("session", "AwaitMessage", shared.ErrAuthCancelled, "context cancelled awaiting script result", ctx.Err())
	case msg, open := <-b.Messages():
		if !open {
			return "", shared.NewDomainError("session", "AwaitMessage", shared.ErrAuthCancelled, "browser closed before script responded")
		}
		return msg, nil
	case <-timer.C:
		return "", shared.NewDomainError("session", "AwaitMessage", shared.ErrAuthTimeout, "injected script did not respond within wait window")
	}
}
