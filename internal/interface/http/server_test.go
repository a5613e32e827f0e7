package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-hub/attendance-hub/config"
	"github.com/campus-hub/attendance-hub/internal/application/command"
	"github.com/campus-hub/attendance-hub/internal/application/eventhandler"
	"github.com/campus-hub/attendance-hub/internal/application/query"
	domainroster "github.com/campus-hub/attendance-hub/internal/domain/roster"
	"github.com/campus-hub/attendance-hub/internal/domain/session"
	"github.com/campus-hub/attendance-hub/internal/domain/shared"
	"github.com/campus-hub/attendance-hub/internal/infrastructure/persistence/memory"
	"github.com/campus-hub/attendance-hub/internal/infrastructure/tokens"
)

// ══════════════════════════════════════════════════════════════════════════════
// TEST FIXTURE
// ══════════════════════════════════════════════════════════════════════════════

// rosterStub serves a fixed cohort roster without touching the network.
type rosterStub struct {
	entries []domainroster.Entry
	records map[string]domainroster.IdentityRecord
}

func (s *rosterStub) GetRoster(_ context.Context, _ shared.Cohort) ([]domainroster.Entry, error) {
	return s.entries, nil
}

func (s *rosterStub) GetIdentityRecord(_ context.Context, identity string) (domainroster.IdentityRecord, error) {
	record, ok := s.records[identity]
	if !ok {
		return domainroster.IdentityRecord{}, shared.ErrIdentityNotFound
	}
	return record, nil
}

func testRoster() *rosterStub {
	return &rosterStub{
		entries: []domainroster.Entry{
			{Identity: "21CS042", Name: "Asel", Subjects: []string{"Mathematics", "Physics"}},
			{Identity: "21CS043", Name: "Bauyrzhan", Subjects: []string{"Mathematics"}},
		},
		records: map[string]domainroster.IdentityRecord{
			"21CS042": {
				Identity: "21CS042",
				Name:     "Asel",
				Year:     shared.Year(3),
				Division: shared.Division("A"),
				Subjects: []string{"Mathematics", "Physics"},
			},
		},
	}
}

type fixture struct {
	server *Server
	repo   *memory.SessionRepository
	issuer *tokens.Issuer
}

// newFixture wires a server over an in-memory store and a slow-ticking issuer
// so no token rotates mid-test. mutate may adjust the config and dependencies
// before the server is built.
func newFixture(t *testing.T, mutate func(*Config, *Dependencies)) *fixture {
	t.Helper()

	repo := memory.NewSessionRepository()
	issuer := tokens.NewIssuer(tokens.Config{Period: time.Hour, WindowSize: 3})
	t.Cleanup(issuer.Shutdown)
	provider := testRoster()

	deps := Dependencies{
		CreateSessionHandler:  command.NewCreateSessionHandler(repo, issuer, nil, nil),
		ValidateScanHandler:   command.NewValidateScanHandler(repo, issuer, provider, nil, nil),
		ManualEditHandler:     command.NewManualEditHandler(repo, provider, nil, nil),
		DeleteSessionHandler:  command.NewDeleteSessionHandler(repo, issuer, nil, nil),
		GetSessionHandler:     query.NewGetSessionHandler(repo),
		CurrentTokenHandler:   query.NewCurrentTokenHandler(repo, issuer),
		RecentSessionsHandler: query.NewRecentSessionsHandler(repo),
		DayListingHandler:     query.NewDayListingHandler(repo),
		IdentitySummary:       query.NewIdentitySummaryHandler(repo, provider, nil),
		CohortSummary:         query.NewCohortSummaryHandler(repo, provider, nil),
	}

	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0

	if mutate != nil {
		mutate(&cfg, &deps)
	}

	return &fixture{
		server: NewServer(cfg, deps),
		repo:   repo,
		issuer: issuer,
	}
}

// envelope mirrors the response wrapper with the payload left raw.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}, headers map[string]string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		_ = json.Unmarshal(rec.Body.Bytes(), &env)
	}
	return rec, env
}

// createSession opens a session over the API and returns its id and the
// first issued token.
func (f *fixture) createSession(t *testing.T) (string, string) {
	t.Helper()

	rec, env := f.do(t, http.MethodPost, "/api/v1/sessions", map[string]interface{}{
		"teacherId": "teacher-1",
		"year":      3,
		"division":  "A",
		"subject":   "Mathematics",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		Session query.SessionView `json:"session"`
		Token   string            `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.NotEmpty(t, created.Session.ID)
	require.NotEmpty(t, created.Token)
	return created.Session.ID, created.Token
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSION LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

func TestServer_CreateSession(t *testing.T) {
	f := newFixture(t, nil)

	rec, env := f.do(t, http.MethodPost, "/api/v1/sessions", map[string]interface{}{
		"teacherId": "teacher-1",
		"year":      3,
		"division":  "A",
		"subject":   "Mathematics",
	}, nil)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, env.Success)

	var created struct {
		Session query.SessionView `json:"session"`
		Token   string            `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "teacher-1", created.Session.TeacherID)
	assert.Equal(t, 3, created.Session.Year)
	assert.Equal(t, "A", created.Session.Division)
	assert.Equal(t, "Mathematics", created.Session.Subject)
	assert.True(t, created.Session.Editable)

	payload, err := session.DecodeToken(session.Token(created.Token))
	require.NoError(t, err)
	assert.Equal(t, created.Session.ID, payload.SessionID)
}

func TestServer_CreateSession_Validation(t *testing.T) {
	f := newFixture(t, nil)

	cases := []map[string]interface{}{
		{"teacherId": "teacher-1", "year": 3, "division": "A"},                               // no subject
		{"teacherId": "teacher-1", "year": 5, "division": "A", "subject": "Maths"},           // year out of range
		{"teacherId": "teacher-1", "year": 3, "division": "a", "subject": "Maths"},           // lowercase division
		{"year": 3, "division": "A", "subject": "Maths"},                                     // no teacher
	}
	for _, body := range cases {
		rec, env := f.do(t, http.MethodPost, "/api/v1/sessions", body, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "validation_error", env.Error.Code)
	}

	// Not even JSON.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader("{nope"))
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_GetSession(t *testing.T) {
	f := newFixture(t, nil)
	id, _ := f.createSession(t)

	rec, env := f.do(t, http.MethodGet, "/api/v1/sessions/"+id, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var view query.SessionView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, id, view.ID)
	assert.Empty(t, view.Present)

	rec, env = f.do(t, http.MethodGet, "/api/v1/sessions/no-such-session", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "not_found", env.Error.Code)
}

func TestServer_DeleteSession_Idempotent(t *testing.T) {
	f := newFixture(t, nil)
	id, _ := f.createSession(t)

	rec, env := f.do(t, http.MethodDelete, "/api/v1/sessions/"+id, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var result command.DeleteSessionResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.False(t, result.AlreadyGone)

	// Repeating the delete reports the session as already gone.
	rec, env = f.do(t, http.MethodDelete, "/api/v1/sessions/"+id, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.True(t, result.AlreadyGone)
}

func TestServer_DeleteSession_OwnerCheck(t *testing.T) {
	f := newFixture(t, nil)
	id, _ := f.createSession(t)

	rec, env := f.do(t, http.MethodDelete, "/api/v1/sessions/"+id,
		map[string]string{"teacherId": "someone-else"}, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "forbidden", env.Error.Code)
}

// ══════════════════════════════════════════════════════════════════════════════
// TOKEN ENDPOINT
// ══════════════════════════════════════════════════════════════════════════════

func TestServer_CurrentToken_NoCache(t *testing.T) {
	f := newFixture(t, nil)
	id, token := f.createSession(t)

	rec, env := f.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/token", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var view struct {
		SessionID string `json:"sessionId"`
		Token     string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, id, view.SessionID)
	assert.Equal(t, token, view.Token)

	// The rendered code rotates; the response must never be cached.
	assert.Contains(t, rec.Header().Get("Cache-Control"), "no-store")
}

func TestServer_TokenRotatesAfterCreateRequestReturns(t *testing.T) {
	repo := memory.NewSessionRepository()
	issuer := tokens.NewIssuer(tokens.Config{Period: 10 * time.Millisecond, WindowSize: 3})
	t.Cleanup(issuer.Shutdown)

	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0
	f := &fixture{
		server: NewServer(cfg, Dependencies{
			CreateSessionHandler: command.NewCreateSessionHandler(repo, issuer, nil, nil),
			CurrentTokenHandler:  query.NewCurrentTokenHandler(repo, issuer),
		}),
		repo:   repo,
		issuer: issuer,
	}

	// The create request has fully returned by the time createSession gives
	// back; its context is dead. Rotation must continue regardless.
	id, first := f.createSession(t)

	require.Eventually(t, func() bool {
		cur, err := issuer.CurrentToken(id)
		return err == nil && string(cur) != first
	}, time.Second, 5*time.Millisecond, "token stopped rotating once the request context ended")

	rec, env := f.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/token", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.NotEqual(t, first, view.Token)
}

func TestServer_CurrentToken_AfterDelete(t *testing.T) {
	f := newFixture(t, nil)
	id, _ := f.createSession(t)

	rec, _ := f.do(t, http.MethodDelete, "/api/v1/sessions/"+id, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env := f.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/token", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)
}

// ══════════════════════════════════════════════════════════════════════════════
// SCANS
// ══════════════════════════════════════════════════════════════════════════════

func TestServer_Scan_AcceptedAndDuplicate(t *testing.T) {
	f := newFixture(t, nil)
	id, token := f.createSession(t)

	rec, env := f.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/scan",
		map[string]string{"identity": "21CS042", "token": token}, nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var result command.ValidateScanResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, "21CS042", result.Identity)
	assert.False(t, result.AlreadyKnown)

	// A second scan with a still-valid token is acknowledged, not duplicated.
	rec, env = f.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/scan",
		map[string]string{"identity": "21CS042", "token": token}, nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.True(t, result.AlreadyKnown)

	stored, err := f.repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, []string{"21CS042"}, stored.PresentIDs())
}

func TestServer_Scan_MalformedToken(t *testing.T) {
	f := newFixture(t, nil)
	id, _ := f.createSession(t)

	rec, env := f.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/scan",
		map[string]string{"identity": "21CS042", "token": "not-a-token"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "token_malformed", env.Error.Code)
}

func TestServer_Scan_StaleToken(t *testing.T) {
	f := newFixture(t, nil)
	id, _ := f.createSession(t)

	// A well-formed token minted outside the live window is stale.
	stale := session.NewTokenPayload(id, "teacher-1", time.Now().Add(-time.Hour)).Encode()

	rec, env := f.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/scan",
		map[string]string{"identity": "21CS042", "token": string(stale)}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "token_expired", env.Error.Code)
}

func TestServer_Scan_TokenForOtherSession(t *testing.T) {
	f := newFixture(t, nil)
	id, _ := f.createSession(t)
	_, otherToken := f.createSession(t)

	rec, env := f.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/scan",
		map[string]string{"identity": "21CS042", "token": otherToken}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "token_expired", env.Error.Code)
}

func TestServer_Scan_UnknownSession(t *testing.T) {
	f := newFixture(t, nil)

	token := session.NewTokenPayload("ghost", "teacher-1", time.Now()).Encode()
	rec, env := f.do(t, http.MethodPost, "/api/v1/sessions/ghost/scan",
		map[string]string{"identity": "21CS042", "token": string(token)}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)
}

func TestServer_Scan_NotEnrolled(t *testing.T) {
	f := newFixture(t, nil)
	id, token := f.createSession(t)

	rec, env := f.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/scan",
		map[string]string{"identity": "intruder", "token": token}, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "not_enrolled", env.Error.Code)

	stored, err := f.repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, stored.PresentIDs())
}

// ══════════════════════════════════════════════════════════════════════════════
// MANUAL EDITS
// ══════════════════════════════════════════════════════════════════════════════

func TestServer_ManualEdit(t *testing.T) {
	f := newFixture(t, nil)
	id, _ := f.createSession(t)

	rec, env := f.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/present",
		map[string]string{"identity": "21CS042"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result command.ManualEditResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, 1, result.Affected)

	rec, env = f.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/absent",
		map[string]string{"identity": "21CS042"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, 1, result.Affected)
}

func TestServer_ManualEdit_MarkAll(t *testing.T) {
	f := newFixture(t, nil)
	id, _ := f.createSession(t)

	// mark-all-present fills from the enrolled roster, no body required.
	rec, env := f.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/mark-all-present", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result command.ManualEditResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, 2, result.Affected)

	stored, err := f.repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, []string{"21CS042", "21CS043"}, stored.PresentIDs())

	rec, env = f.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/mark-all-absent", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, 2, result.Affected)
}

func TestServer_ManualEdit_LockedSession(t *testing.T) {
	f := newFixture(t, nil)

	// Seed a session whose edit window closed an hour ago.
	past := time.Now().Add(-2 * time.Hour)
	s, err := session.New("locked", "teacher-1", shared.Year(3), shared.Division("A"), "Mathematics", past)
	require.NoError(t, err)
	require.NoError(t, f.repo.Create(context.Background(), s))

	rec, env := f.do(t, http.MethodPost, "/api/v1/sessions/locked/present",
		map[string]string{"identity": "21CS042"}, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "edit_locked", env.Error.Code)
}

// ══════════════════════════════════════════════════════════════════════════════
// LISTINGS AND SUMMARIES
// ══════════════════════════════════════════════════════════════════════════════

func TestServer_RecentSessions(t *testing.T) {
	f := newFixture(t, nil)
	id, _ := f.createSession(t)

	rec, env := f.do(t, http.MethodGet, "/api/v1/teachers/teacher-1/sessions/recent", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var listing struct {
		Sessions []query.SessionView `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &listing))
	require.Len(t, listing.Sessions, 1)
	assert.Equal(t, id, listing.Sessions[0].ID)

	rec, _ = f.do(t, http.MethodGet, "/api/v1/teachers/teacher-1/sessions/recent?within=bogus", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_DayListing(t *testing.T) {
	f := newFixture(t, nil)
	f.createSession(t)

	rec, env := f.do(t, http.MethodGet, "/api/v1/teachers/teacher-1/sessions/day", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var listing struct {
		Sessions []query.SessionView `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &listing))
	assert.Len(t, listing.Sessions, 1)

	rec, _ = f.do(t, http.MethodGet, "/api/v1/teachers/teacher-1/sessions/day?date=not-a-date", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_IdentitySummary(t *testing.T) {
	f := newFixture(t, nil)
	id, token := f.createSession(t)
	rec, _ := f.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/scan",
		map[string]string{"identity": "21CS042", "token": token}, nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec, env := f.do(t, http.MethodPost, "/api/v1/attendance/summary",
		map[string]string{"identity": "21CS042"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var view query.IdentitySummaryView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, "21CS042", view.Identity)
	assert.NotEmpty(t, view.Subjects)

	rec, env = f.do(t, http.MethodPost, "/api/v1/attendance/summary",
		map[string]string{"identity": "nobody"}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)
}

func TestServer_CohortSummary(t *testing.T) {
	f := newFixture(t, nil)
	f.createSession(t)

	rec, env := f.do(t, http.MethodPost, "/api/v1/attendance/cohort-summary",
		map[string]string{"cohort": "3A"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var view query.CohortSummaryView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Len(t, view.Rows, 2)

	rec, env = f.do(t, http.MethodPost, "/api/v1/attendance/cohort-summary",
		map[string]interface{}{"year": 9, "division": "zz"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "invalid_cohort", env.Error.Code)
}

func TestServer_FeatureFlags_GateOptionalEndpoints(t *testing.T) {
	flags := config.LoadFeatureFlags()
	flags.SetEnabled(config.FeatureDayListing, false)
	flags.SetEnabled(config.FeatureCohortSummary, false)

	f := newFixture(t, func(_ *Config, deps *Dependencies) {
		deps.Features = flags
	})

	rec, _ := f.do(t, http.MethodGet, "/api/v1/teachers/teacher-1/sessions/day", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = f.do(t, http.MethodPost, "/api/v1/attendance/cohort-summary",
		map[string]string{"cohort": "3A"}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// The core endpoints are not gated.
	f.createSession(t)
}

// ══════════════════════════════════════════════════════════════════════════════
// AUTH, HEALTH, AND MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

func TestServer_APIKeyProtection(t *testing.T) {
	f := newFixture(t, func(cfg *Config, _ *Dependencies) {
		cfg.APIKeys = []string{"secret-key"}
	})
	id, token := f.createSession(t)

	// Mutating the record without a key is rejected.
	rec, _ := f.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/present",
		map[string]string{"identity": "21CS042"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = f.do(t, http.MethodDelete, "/api/v1/sessions/"+id, nil,
		map[string]string{"X-API-Key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Scanning stays open; students hold no key.
	rec, _ = f.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/scan",
		map[string]string{"identity": "21CS042", "token": token}, nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec, _ = f.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/absent",
		map[string]string{"identity": "21CS042"},
		map[string]string{"X-API-Key": "secret-key"})
	assert.Equal(t, http.StatusOK, rec.Code)

	// Bearer form is accepted too.
	rec, _ = f.do(t, http.MethodDelete, "/api/v1/sessions/"+id, nil,
		map[string]string{"Authorization": "Bearer secret-key"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_Health(t *testing.T) {
	scanStats := eventhandler.NewOnScanAcceptedHandler(nil)
	f := newFixture(t, func(_ *Config, deps *Dependencies) {
		deps.ScanStats = scanStats
	})

	rec, env := f.do(t, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.Contains(t, string(env.Data), "scans")

	rec, _ = f.do(t, http.MethodGet, "/live", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = f.do(t, http.MethodGet, "/ready", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_Root(t *testing.T) {
	f := newFixture(t, nil)

	rec, env := f.do(t, http.MethodGet, "/", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), "Attendance Hub API")

	rec, _ = f.do(t, http.MethodGet, "/no/such/path", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_SecurityAndRequestIDHeaders(t *testing.T) {
	f := newFixture(t, nil)

	rec, _ := f.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	// A caller-supplied request id is echoed back.
	rec, _ = f.do(t, http.MethodGet, "/health", nil, map[string]string{"X-Request-ID": "req-42"})
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}

func TestServer_CORSPreflight(t *testing.T) {
	f := newFixture(t, nil)

	rec, _ := f.do(t, http.MethodOptions, "/api/v1/sessions", nil,
		map[string]string{"Origin": "https://campus.example"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://campus.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_RateLimit(t *testing.T) {
	f := newFixture(t, func(cfg *Config, _ *Dependencies) {
		cfg.RateLimitPerMinute = 2
	})

	headers := map[string]string{"X-Forwarded-For": "10.0.0.9"}
	for i := 0; i < 2; i++ {
		rec, _ := f.do(t, http.MethodGet, "/health", nil, headers)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec, env := f.do(t, http.MethodGet, "/health", nil, headers)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	require.NotNil(t, env.Error)
	assert.Equal(t, "rate_limit_exceeded", env.Error.Code)
}

func TestServer_RequestSizeLimit(t *testing.T) {
	f := newFixture(t, func(cfg *Config, _ *Dependencies) {
		cfg.MaxBodyBytes = 32
	})

	big := strings.Repeat("x", 1024)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader(big))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
