package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/unitrack-hub/attendance-engine/internal/application/command"
	"github.com/unitrack-hub/attendance-engine/internal/application/query"
	"github.com/unitrack-hub/attendance-engine/internal/domain/attendance"
	"github.com/unitrack-hub/attendance-engine/internal/domain/shared"
	"github.com/unitrack-hub/attendance-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & ROOT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":    "Attendance Engine API",
		"version": "v1",
		"endpoints": map[string]string{
			"health":     "/api/health",
			"fetch":      "/api/fetch",
			"status":     "/api/status",
			"thresholds": "/api/thresholds",
			"trend":      "/api/trend",
		},
	}

	writeJSON(w, http.StatusOK, info)
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"uptime": s.Uptime().String(),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// FETCH HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// fetchRequest carries per-request ERP credentials. They live for this one
// request; nothing here is stored.
type fetchRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleFetch handles POST /api/fetch - runs a full sync.
func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	if s.deps.SyncHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Sync handler not configured")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Failed to read request body")
		return
	}
	defer r.Body.Close()

	var req fetchRequest
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
			return
		}
	}

	out, err := s.deps.SyncHandler.Handle(r.Context(), command.SyncAttendanceCommand{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		s.writeSyncError(w, err)
		return
	}

	resp := map[string]interface{}{
		"result":         out.Result,
		"correlation_id": out.CorrelationID,
	}
	if out.StorageErr != nil {
		// Fresh data that could not be cached; the caller gets it anyway.
		resp["warning"] = shared.UserGuidance(out.StorageErr)
	}

	writeJSON(w, http.StatusOK, resp)
}

// writeSyncError maps the sync error taxonomy onto HTTP status codes.
func (s *Server) writeSyncError(w http.ResponseWriter, err error) {
	s.logger.Warn("sync failed", logger.Err(err))

	status := http.StatusInternalServerError
	code := "sync_failed"

	switch {
	case errors.Is(err, shared.ErrInvalidCredentials):
		status, code = http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, shared.ErrSyncInProgress):
		status, code = http.StatusConflict, "sync_in_progress"
	case errors.Is(err, shared.ErrAuthCancelled):
		status, code = http.StatusBadRequest, "auth_cancelled"
	case errors.Is(err, shared.ErrAuthTimeout), errors.Is(err, shared.ErrFetchTimeout):
		status, code = http.StatusGatewayTimeout, "erp_timeout"
	case errors.Is(err, shared.ErrAuthAmbiguous),
		errors.Is(err, shared.ErrHTTPStatus),
		errors.Is(err, shared.ErrNotJSONArray),
		errors.Is(err, shared.ErrEmptyPayload):
		status, code = http.StatusBadGateway, "erp_error"
	}

	writeJSONError(w, status, code, shared.UserGuidance(err))
}

// ══════════════════════════════════════════════════════════════════════════════
// STATUS HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// handleStatus handles GET /api/status - the cached snapshot view.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.deps.StatusHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Status handler not configured")
		return
	}

	q := query.GetStatusQuery{TopN: getQueryParamInt(r, "top", 0)}

	view, err := s.deps.StatusHandler.Handle(r.Context(), q)
	if err != nil {
		if errors.Is(err, shared.ErrNeverSynced) {
			writeJSONError(w, http.StatusNotFound, "never_synced", "No attendance data yet. Run a fetch first.")
			return
		}
		s.logger.Error("failed to load status", logger.Err(err))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", shared.UserGuidance(err))
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// ══════════════════════════════════════════════════════════════════════════════
// THRESHOLD HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetThresholds handles GET /api/thresholds.
func (s *Server) handleGetThresholds(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetThresholdsHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Thresholds handler not configured")
		return
	}

	cfg, err := s.deps.GetThresholdsHandler.Handle(r.Context())
	if err != nil {
		s.logger.Error("failed to load thresholds", logger.Err(err))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", shared.UserGuidance(err))
		return
	}

	writeJSON(w, http.StatusOK, cfg)
}

// handlePutThresholds handles PUT /api/thresholds.
func (s *Server) handlePutThresholds(w http.ResponseWriter, r *http.Request) {
	if s.deps.ThresholdsHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Thresholds handler not configured")
		return
	}

	var cfg attendance.ThresholdConfig
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&cfg); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}
	defer r.Body.Close()

	if err := s.deps.ThresholdsHandler.Handle(r.Context(), command.UpdateThresholdsCommand{Config: cfg}); err != nil {
		if errors.Is(err, shared.ErrValidation) || errors.Is(err, shared.ErrValueOutOfRange) || errors.Is(err, shared.ErrEmptyValue) {
			writeJSONError(w, http.StatusUnprocessableEntity, "invalid_thresholds", err.Error())
			return
		}
		s.logger.Error("failed to save thresholds", logger.Err(err))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", shared.UserGuidance(err))
		return
	}

	writeJSON(w, http.StatusOK, cfg)
}

// ══════════════════════════════════════════════════════════════════════════════
// TREND HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// handleTrend handles GET /api/trend?days=30.
func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	if s.deps.TrendHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Trend handler not configured")
		return
	}

	days := getQueryParamInt(r, "days", 30)
	if days <= 0 {
		days = 30
	}
	since := time.Now().AddDate(0, 0, -days)

	points, err := s.deps.TrendHandler.Handle(r.Context(), since)
	if err != nil {
		s.logger.Error("failed to load trend", logger.Err(err))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", shared.UserGuidance(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"days":   days,
		"points": points,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// CACHE HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// handleClearCache handles DELETE /api/cache.
func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	if s.deps.ClearCacheHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Cache handler not configured")
		return
	}

	if err := s.deps.ClearCacheHandler.Handle(r.Context()); err != nil {
		s.logger.Error("failed to clear cache", logger.Err(err))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", shared.UserGuidance(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}
