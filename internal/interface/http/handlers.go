package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/campus-hub/attendance-hub/internal/application/command"
	"github.com/campus-hub/attendance-hub/internal/application/query"
	"github.com/campus-hub/attendance-hub/internal/domain/session"
	"github.com/campus-hub/attendance-hub/internal/domain/shared"
	"github.com/campus-hub/attendance-hub/pkg/timeutil"
)

// validate checks request DTOs against their struct tags.
var validate = validator.New(validator.WithRequiredStructEnabled())

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST DTOs
// ══════════════════════════════════════════════════════════════════════════════

type createSessionRequest struct {
	TeacherID string `json:"teacherId" validate:"required"`
	Year      int    `json:"year" validate:"required,min=1,max=4"`
	Division  string `json:"division" validate:"required,len=1,uppercase"`
	Subject   string `json:"subject" validate:"required"`
}

type scanRequest struct {
	Identity string `json:"identity" validate:"required"`
	Token    string `json:"token" validate:"required"`
}

type editRequest struct {
	Identity string `json:"identity" validate:"required"`
}

type deleteSessionRequest struct {
	TeacherID string `json:"teacherId"`
}

type identitySummaryRequest struct {
	Identity string `json:"identity" validate:"required"`

	// Subjects optionally adds subjects to the report, e.g. to ask about one
	// the identity never enrolled in.
	Subjects []string `json:"subjects"`
}

type cohortSummaryRequest struct {
	// Cohort is the compact label, e.g. "3A". Alternative to year+division.
	Cohort   string `json:"cohort"`
	Year     int    `json:"year"`
	Division string `json:"division"`
}

// decodeBody decodes and validates a JSON request body. A false return means
// the error response has already been written.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Failed to read request body")
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_json", "Request body is not valid JSON")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "validation_error", err.Error())
		return false
	}
	return true
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSONError(w, http.StatusNotFound, "not_found", "Unknown endpoint")
		return
	}

	info := map[string]interface{}{
		"name":    "Attendance Hub API",
		"version": "v1",
		"endpoints": map[string]string{
			"health":   "/health",
			"sessions": "/api/v1/sessions",
			"summary":  "/api/v1/attendance/summary",
		},
	}

	writeJSON(w, http.StatusOK, info)
}

// handleHealth serves the full health check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.deps.HealthChecker.Check(r.Context())

	data := map[string]interface{}{
		"status": status,
		"uptime": s.Uptime().Round(time.Second).String(),
	}
	if s.deps.ScanStats != nil {
		data["scans"] = s.deps.ScanStats.Stats()
	}

	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, data)
}

// handleReady serves the readiness probe.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := s.deps.HealthChecker.Check(r.Context())
	if !status.Ready {
		writeJSONError(w, http.StatusServiceUnavailable, "not_ready", status.Message)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive serves the liveness probe.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSION LIFECYCLE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleCreateSession opens a new attendance session and starts token rotation.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := s.deps.CreateSessionHandler.Handle(r.Context(), command.CreateSessionCommand{
		TeacherID: req.TeacherID,
		Year:      shared.Year(req.Year),
		Division:  shared.Division(req.Division),
		Subject:   req.Subject,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	view := query.NewSessionView(result.Session, time.Now())
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"session": view,
		"token":   result.Token,
	})
}

// handleGetSession returns the session view.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	view, err := s.deps.GetSessionHandler.Handle(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleDeleteSession removes a session. Safe to repeat.
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	var req deleteSessionRequest
	// The body is optional; an empty one means no owner check.
	if body, err := io.ReadAll(r.Body); err == nil && len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_json", "Request body is not valid JSON")
			return
		}
	}

	result, err := s.deps.DeleteSessionHandler.Handle(r.Context(), command.DeleteSessionCommand{
		SessionID: r.PathValue("id"),
		TeacherID: req.TeacherID,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleCurrentToken returns the freshest token for the session screen.
func (s *Server) handleCurrentToken(w http.ResponseWriter, r *http.Request) {
	view, err := s.deps.CurrentTokenHandler.Handle(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ══════════════════════════════════════════════════════════════════════════════
// SCAN & EDIT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleScan validates a scanned token and records presence.
// 202 on acceptance (including duplicates), 409 for out-of-window tokens.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := s.deps.ValidateScanHandler.Handle(r.Context(), command.ValidateScanCommand{
		SessionID: r.PathValue("id"),
		Identity:  req.Identity,
		Token:     session.Token(req.Token),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, result)
}

// handleSetPresent marks one identity present.
func (s *Server) handleSetPresent(w http.ResponseWriter, r *http.Request) {
	s.handleManualEdit(w, r, command.OpSetPresent, true)
}

// handleSetAbsent removes one identity from the present-set.
func (s *Server) handleSetAbsent(w http.ResponseWriter, r *http.Request) {
	s.handleManualEdit(w, r, command.OpSetAbsent, true)
}

// handleMarkAllPresent fills the present-set from the roster.
func (s *Server) handleMarkAllPresent(w http.ResponseWriter, r *http.Request) {
	s.handleManualEdit(w, r, command.OpMarkAllPresent, false)
}

// handleMarkAllAbsent empties the present-set.
func (s *Server) handleMarkAllAbsent(w http.ResponseWriter, r *http.Request) {
	s.handleManualEdit(w, r, command.OpMarkAllAbsent, false)
}

// handleManualEdit runs one manual edit operation against a session.
func (s *Server) handleManualEdit(w http.ResponseWriter, r *http.Request, op command.EditOperation, needsIdentity bool) {
	var identity string
	if needsIdentity {
		var req editRequest
		if !decodeBody(w, r, &req) {
			return
		}
		identity = req.Identity
	}

	result, err := s.deps.ManualEditHandler.Handle(r.Context(), command.ManualEditCommand{
		SessionID: r.PathValue("id"),
		Identity:  identity,
		Operation: op,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// LISTING HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRecentSessions lists a teacher's recently opened sessions.
func (s *Server) handleRecentSessions(w http.ResponseWriter, r *http.Request) {
	within, err := time.ParseDuration(getQueryParam(r, "within", "1h"))
	if err != nil || within <= 0 {
		writeJSONError(w, http.StatusBadRequest, "invalid_within", "within must be a positive duration, e.g. 1h")
		return
	}

	views, err := s.deps.RecentSessionsHandler.Handle(r.Context(), query.RecentSessionsQuery{
		TeacherID: r.PathValue("id"),
		Within:    within,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": views})
}

// handleDayListing lists a teacher's sessions for one campus calendar day.
func (s *Server) handleDayListing(w http.ResponseWriter, r *http.Request) {
	var day time.Time
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := timeutil.ParseDate(raw)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_date", "date must be formatted YYYY-MM-DD")
			return
		}
		day = parsed
	}

	views, err := s.deps.DayListingHandler.Handle(r.Context(), query.DayListingQuery{
		TeacherID: r.PathValue("id"),
		Day:       day,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": views})
}

// ══════════════════════════════════════════════════════════════════════════════
// SUMMARY HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleIdentitySummary returns per-subject attendance for one identity.
func (s *Server) handleIdentitySummary(w http.ResponseWriter, r *http.Request) {
	var req identitySummaryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	view, err := s.deps.IdentitySummary.Handle(r.Context(), query.IdentitySummaryQuery{
		Identity: req.Identity,
		Subjects: req.Subjects,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleCohortSummary returns the cohort register.
func (s *Server) handleCohortSummary(w http.ResponseWriter, r *http.Request) {
	var req cohortSummaryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	cohort, err := resolveCohort(req)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_cohort", err.Error())
		return
	}

	view, err := s.deps.CohortSummary.Handle(r.Context(), cohort)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// resolveCohort accepts either the compact label or the year+division pair.
func resolveCohort(req cohortSummaryRequest) (shared.Cohort, error) {
	if req.Cohort != "" {
		return shared.ParseCohort(req.Cohort)
	}

	cohort := shared.NewCohort(shared.Year(req.Year), shared.Division(req.Division))
	if !cohort.IsValid() {
		return shared.Cohort{}, errors.New("cohort requires year 1-4 and a single uppercase division letter")
	}
	return cohort, nil
}
