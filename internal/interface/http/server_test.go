package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/unitrack-hub/attendance-engine/internal/application/command"
	"github.com/unitrack-hub/attendance-engine/internal/application/query"
	"github.com/unitrack-hub/attendance-engine/internal/domain/attendance"
	"github.com/unitrack-hub/attendance-engine/internal/domain/shared"
	"github.com/unitrack-hub/attendance-engine/internal/infrastructure/external/erp"
	"github.com/unitrack-hub/attendance-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// TEST DOUBLES
// ══════════════════════════════════════════════════════════════════════════════

type stubAcquirer struct {
	err error
}

func (a *stubAcquirer) Acquire(context.Context, erp.Credentials) (*erp.Session, error) {
	if a.err != nil {
		return nil, a.err
	}
	return &erp.Session{Payload: []erp.RawRecord{
		{"subject": "Mathematics", "presentCount": float64(26), "absentCount": float64(14)},
		{"subject": "Physics", "presentCount": float64(38), "absentCount": float64(2)},
	}}, nil
}

type payloadPassthrough struct{}

func (payloadPassthrough) Fetch(_ context.Context, s *erp.Session) ([]erp.RawRecord, error) {
	return s.Payload, nil
}

type memoryStore struct {
	mu         sync.Mutex
	snapshot   *attendance.SyncResult
	thresholds *attendance.ThresholdConfig
}

func (m *memoryStore) LoadSnapshot(context.Context) (*attendance.SyncResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snapshot == nil {
		return nil, shared.NewDomainError("cache", "LoadSnapshot", shared.ErrNeverSynced, "empty")
	}
	return m.snapshot, nil
}

func (m *memoryStore) SaveSnapshot(_ context.Context, r *attendance.SyncResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot = r
	return nil
}

func (m *memoryStore) LoadThresholds(context.Context) (attendance.ThresholdConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.thresholds == nil {
		return attendance.DefaultThresholdConfig(), nil
	}
	return *m.thresholds, nil
}

func (m *memoryStore) SaveThresholds(_ context.Context, cfg attendance.ThresholdConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.thresholds = &cfg
	return nil
}

func (m *memoryStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot = nil
	m.thresholds = nil
	return nil
}

type historyStub struct {
	records []attendance.SyncRecord
}

func (h *historyStub) Record(context.Context, attendance.SyncRecord) error { return nil }

func (h *historyStub) Recent(context.Context, int) ([]attendance.SyncRecord, error) {
	return h.records, nil
}

func (h *historyStub) Trend(_ context.Context, since time.Time) ([]attendance.SyncRecord, error) {
	var out []attendance.SyncRecord
	for _, r := range h.records {
		if !r.FetchedAt.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func newTestServer(acq erp.Acquirer, store *memoryStore, history attendance.SyncHistory) *Server {
	log := logger.Default()

	deps := Dependencies{
		SyncHandler:          command.NewSyncAttendanceHandler(acq, payloadPassthrough{}, erp.NewNormalizer(nil), store, history, nil, log),
		ThresholdsHandler:    command.NewUpdateThresholdsHandler(store, log),
		ClearCacheHandler:    command.NewClearCacheHandler(store, log),
		StatusHandler:        query.NewGetStatusHandler(store, 0, log),
		GetThresholdsHandler: query.NewGetThresholdsHandler(store),
		TrendHandler:         query.NewGetTrendHandler(history),
		Logger:               log,
	}

	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0
	return NewServer(cfg, deps)
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) JSONResponse {
	t.Helper()
	var resp JSONResponse
	assert.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

// ══════════════════════════════════════════════════════════════════════════════
// TESTS
// ══════════════════════════════════════════════════════════════════════════════

func TestHandleRoot_ListsEndpoints(t *testing.T) {
	s := newTestServer(&stubAcquirer{}, &memoryStore{}, &historyStub{})

	rec := doRequest(s, http.MethodGet, "/", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.True(t, resp.Success)
}

func TestHandleHealth_DefaultsHealthy(t *testing.T) {
	s := newTestServer(&stubAcquirer{}, &memoryStore{}, &historyStub{})

	rec := doRequest(s, http.MethodGet, "/api/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
}

type unhealthyChecker struct{}

func (unhealthyChecker) Check(context.Context) HealthStatus {
	return HealthStatus{Healthy: false, Message: "redis unreachable"}
}

func TestHandleHealth_ReportsDependencyFailure(t *testing.T) {
	s := newTestServer(&stubAcquirer{}, &memoryStore{}, &historyStub{})
	s.deps.HealthChecker = unhealthyChecker{}

	rec := doRequest(s, http.MethodGet, "/api/health", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleFetch_RunsSyncAndCachesSnapshot(t *testing.T) {
	store := &memoryStore{}
	s := newTestServer(&stubAcquirer{}, store, &historyStub{})

	rec := doRequest(s, http.MethodPost, "/api/fetch", `{"username":"student","password":"secret"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.True(t, resp.Success)
	assert.NotNil(t, store.snapshot)
	assert.Equal(t, 80.0, store.snapshot.Summary.OverallPercentage)
}

func TestHandleFetch_InvalidCredentialsReturn401(t *testing.T) {
	acq := &stubAcquirer{err: shared.NewDomainError("session", "Acquire", shared.ErrInvalidCredentials, "bad password")}
	s := newTestServer(acq, &memoryStore{}, &historyStub{})

	rec := doRequest(s, http.MethodPost, "/api/fetch", `{"username":"student","password":"wrong"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Equal(t, "invalid_credentials", resp.Error.Code)
}

func TestHandleFetch_ERPFailureReturns502(t *testing.T) {
	acq := &stubAcquirer{err: shared.NewDomainError("fetcher", "Fetch", shared.ErrNotJSONArray, "html login page")}
	s := newTestServer(acq, &memoryStore{}, &historyStub{})

	rec := doRequest(s, http.MethodPost, "/api/fetch", `{"username":"u","password":"p"}`)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Equal(t, "erp_error", resp.Error.Code)
}

func TestHandleFetch_MalformedBodyReturns400(t *testing.T) {
	s := newTestServer(&stubAcquirer{}, &memoryStore{}, &historyStub{})

	rec := doRequest(s, http.MethodPost, "/api/fetch", `{"username":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleStatus_NeverSyncedReturns404(t *testing.T) {
	s := newTestServer(&stubAcquirer{}, &memoryStore{}, &historyStub{})

	rec := doRequest(s, http.MethodGet, "/api/status", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Equal(t, "never_synced", resp.Error.Code)
}

func TestHandleStatus_ServesCachedSnapshotAfterFetch(t *testing.T) {
	s := newTestServer(&stubAcquirer{}, &memoryStore{}, &historyStub{})

	doRequest(s, http.MethodPost, "/api/fetch", `{"username":"u","password":"p"}`)
	rec := doRequest(s, http.MethodGet, "/api/status?top=1", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.True(t, resp.Success)

	view, ok := resp.Data.(map[string]interface{})
	assert.True(t, ok)
	priority, ok := view["priority"].([]interface{})
	assert.True(t, ok)
	assert.Len(t, priority, 1)
}

func TestThresholds_RoundTrip(t *testing.T) {
	s := newTestServer(&stubAcquirer{}, &memoryStore{}, &historyStub{})

	rec := doRequest(s, http.MethodGet, "/api/thresholds", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(s, http.MethodPut, "/api/thresholds", `{"defaultThreshold":80,"safeBuffer":5}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(s, http.MethodGet, "/api/thresholds", "")
	resp := decodeResponse(t, rec)
	cfg, ok := resp.Data.(map[string]interface{})
	assert.True(t, ok)
	assert.Equal(t, 80.0, cfg["defaultThreshold"])
}

func TestPutThresholds_RejectsOutOfRangeValues(t *testing.T) {
	s := newTestServer(&stubAcquirer{}, &memoryStore{}, &historyStub{})

	rec := doRequest(s, http.MethodPut, "/api/thresholds", `{"defaultThreshold":140,"safeBuffer":10}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandleTrend_ServesArchive(t *testing.T) {
	now := time.Now()
	history := &historyStub{records: []attendance.SyncRecord{
		{FetchedAt: now.Add(-40 * 24 * time.Hour), OverallPercentage: 70.0, OverallTier: attendance.TierLow},
		{FetchedAt: now.Add(-24 * time.Hour), OverallPercentage: 82.0, OverallTier: attendance.TierCritical},
	}}
	s := newTestServer(&stubAcquirer{}, &memoryStore{}, history)

	rec := doRequest(s, http.MethodGet, "/api/trend?days=30", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	data, ok := resp.Data.(map[string]interface{})
	assert.True(t, ok)
	points, ok := data["points"].([]interface{})
	assert.True(t, ok)
	assert.Len(t, points, 1)
}

func TestHandleClearCache_ResetsSnapshot(t *testing.T) {
	store := &memoryStore{}
	s := newTestServer(&stubAcquirer{}, store, &historyStub{})

	doRequest(s, http.MethodPost, "/api/fetch", `{"username":"u","password":"p"}`)
	assert.NotNil(t, store.snapshot)

	rec := doRequest(s, http.MethodDelete, "/api/cache", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(s, http.MethodGet, "/api/status", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimiter_BlocksAfterLimit(t *testing.T) {
	rl := newRateLimiter(2, time.Minute)

	assert.True(t, rl.Allow("1.2.3.4"))
	assert.True(t, rl.Allow("1.2.3.4"))
	assert.False(t, rl.Allow("1.2.3.4"))
	assert.True(t, rl.Allow("5.6.7.8"))
}
