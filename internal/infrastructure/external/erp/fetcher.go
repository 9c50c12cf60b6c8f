package erp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/unitrack-hub/attendance-engine/internal/domain/shared"
	"github.com/unitrack-hub/attendance-engine/pkg/circuitbreaker"
)

// ══════════════════════════════════════════════════════════════════════════════
// FETCHER
// ══════════════════════════════════════════════════════════════════════════════

// Fetcher retrieves the raw attendance payload with an acquired session. Each
// round trip goes through a circuit breaker so a degraded ERP fails fast
// instead of tying up every sync in timeouts.
type Fetcher struct {
	config  Config
	client  *http.Client
	breaker *circuitbreaker.Breaker
	logger  *slog.Logger
}

// NewFetcher creates a fetcher for one ERP deployment.
func NewFetcher(cfg Config) *Fetcher {
	return &Fetcher{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		breaker: circuitbreaker.New(circuitbreaker.Config{
			Name:             "erp-fetch",
			FailureThreshold: 5,
			SuccessThreshold: 2,
			Cooldown:         30 * time.Second,
		}),
		logger: slog.Default(),
	}
}

// WithLogger replaces the logger.
func (f *Fetcher) WithLogger(l *slog.Logger) *Fetcher {
	f.logger = l
	return f
}

// Fetch performs one GET against the attendance endpoint using the session's
// cookies and decodes the JSON array. Sessions produced by the
// script-injection strategy already carry the payload, in which case no round
// trip happens at all.
func (f *Fetcher) Fetch(ctx context.Context, session *Session) ([]RawRecord, error) {
	if session.HasPayload() {
		return session.Payload, nil
	}
	if session == nil || len(session.Cookies) == 0 {
		// Reached for credential/cookie sessions that somehow carry no jar.
		return nil, shared.NewDomainError("fetcher", "Fetch", shared.ErrInvalidInput, "session carries neither cookies nor payload")
	}

	if err := f.breaker.Allow(); err != nil {
		return nil, shared.WrapError("fetcher", "Fetch", shared.ErrFetchTimeout, "circuit open, skipping ERP round trip", err)
	}

	records, err := f.roundTrip(ctx, session)
	if err != nil {
		f.breaker.RecordFailure()
		return nil, err
	}
	f.breaker.RecordSuccess()
	return records, nil
}

func (f *Fetcher) roundTrip(ctx context.Context, session *Session) ([]RawRecord, error) {
	url := f.config.BaseURL + f.config.AttendancePath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, shared.WrapError("fetcher", "Fetch", shared.ErrValidation, "build attendance request", err)
	}
	for _, c := range session.Cookies {
		req.AddCookie(c)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return nil, shared.WrapError("fetcher", "Fetch", shared.ErrFetchTimeout, "attendance request timed out", err)
		}
		return nil, shared.WrapError("fetcher", "Fetch", shared.ErrFetchTimeout, "attendance request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, shared.NewDomainError("fetcher", "Fetch", &shared.StatusError{Code: resp.StatusCode}, "attendance endpoint returned non-200")
	}

	var records []RawRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		// ERPs answer expired sessions with an HTML login page and a 200, so a
		// decode failure usually means the session died, not that the vendor
		// changed its schema.
		return nil, shared.WrapError("fetcher", "Fetch", shared.ErrNotJSONArray, "attendance response is not a JSON array", err)
	}

	f.logger.Debug("attendance payload fetched",
		"records", len(records),
		"latency", time.Since(start).String())
	return records, nil
}
