// Package tokens implements the token generator: per-session issuance of
// rotating attendance tokens on a fixed period, with a bounded acceptance
// window. Token history lives only in memory - nothing here is persisted,
// so validity is always derived from recency against the live window.
package tokens

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/campus-hub/attendance-hub/internal/domain/session"
	"github.com/campus-hub/attendance-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ISSUER
// ══════════════════════════════════════════════════════════════════════════════

// Config contains issuer settings.
type Config struct {
	// Period is the interval between token issuances (default 5s).
	Period time.Duration

	// WindowSize is the acceptance window W (default 3).
	WindowSize int

	// Logger for structured logging.
	Logger *slog.Logger

	// Clock returns the current time. Defaults to time.Now; injectable for
	// tests.
	Clock func() time.Time
}

// DefaultConfig returns the reference protocol settings.
func DefaultConfig() Config {
	return Config{
		Period:     session.DefaultTokenPeriod,
		WindowSize: session.DefaultWindowSize,
	}
}

// Issuer manages one issuing context per open session: a ticker goroutine
// that appends a fresh token to the session's window every period.
//
// The generator is push-only - it never blocks on, or knows about, validator
// activity. Stopping an issuing context drops the whole window, so a closed
// session cannot be scanned into even with a replayed token.
type Issuer struct {
	mu     sync.RWMutex
	active map[string]*issuing

	period time.Duration
	size   int
	logger *slog.Logger
	clock  func() time.Time

	closed bool
	wg     sync.WaitGroup
}

// issuing is the per-session issuing state. Token generation is single-writer
// (one goroutine per session); reads share the mutex.
type issuing struct {
	mu        sync.Mutex
	teacherID string
	window    *session.TokenWindow
	cancel    context.CancelFunc
	startedAt time.Time
}

// NewIssuer creates an Issuer with the given configuration.
func NewIssuer(cfg Config) *Issuer {
	if cfg.Period <= 0 {
		cfg.Period = session.DefaultTokenPeriod
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = session.DefaultWindowSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Issuer{
		active: make(map[string]*issuing),
		period: cfg.Period,
		size:   cfg.WindowSize,
		logger: cfg.Logger,
		clock:  cfg.Clock,
	}
}

// StartIssuing opens an issuing context for the session and issues the first
// token immediately. Calling it for a session that is already issuing is a
// no-op.
//
// The caller's context does not bound the issuing lifetime: sessions are
// usually opened from an HTTP request whose context dies as soon as the
// response is written, and the ticker must keep rotating for the whole class.
// Issuing ends only through StopIssuing or Shutdown.
func (i *Issuer) StartIssuing(ctx context.Context, sessionID, teacherID string) error {
	if sessionID == "" {
		return shared.ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return shared.ErrInvalidState
	}
	if _, ok := i.active[sessionID]; ok {
		i.mu.Unlock()
		return nil
	}

	tickCtx, cancel := context.WithCancel(context.Background())
	st := &issuing{
		teacherID: teacherID,
		window:    session.NewTokenWindow(i.size),
		cancel:    cancel,
		startedAt: i.clock(),
	}
	i.active[sessionID] = st
	i.mu.Unlock()

	st.issue(sessionID, i.clock())
	i.logger.Debug("token issuing started", "session_id", sessionID, "teacher_id", teacherID)

	i.wg.Add(1)
	go i.run(tickCtx, sessionID, st)
	return nil
}

// run drives the per-session ticker until the issuing context ends. On exit
// it tears down its own registration: a session whose ticker has died must
// never sit in the registry accepting a frozen window.
func (i *Issuer) run(ctx context.Context, sessionID string, st *issuing) {
	defer i.wg.Done()

	ticker := time.NewTicker(i.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			i.mu.Lock()
			if cur, ok := i.active[sessionID]; ok && cur == st {
				delete(i.active, sessionID)
			}
			i.mu.Unlock()
			st.mu.Lock()
			st.window.Clear()
			st.mu.Unlock()
			return
		case <-ticker.C:
			st.issue(sessionID, i.clock())
		}
	}
}

// issue appends a fresh token, dropping the oldest once the window is full.
func (st *issuing) issue(sessionID string, now time.Time) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.window.Append(session.NewTokenPayload(sessionID, st.teacherID, now).Encode())
}

// IssueNow forces issuance of a fresh token outside the timer. Deterministic
// hook for tests exercising window rotation.
func (i *Issuer) IssueNow(sessionID string) error {
	st, err := i.state(sessionID)
	if err != nil {
		return err
	}
	st.issue(sessionID, i.clock())
	return nil
}

// StopIssuing ends the session's issuing context and drops its window.
// Stopping a session that is not issuing is a no-op.
func (i *Issuer) StopIssuing(sessionID string) {
	i.mu.Lock()
	st, ok := i.active[sessionID]
	if ok {
		delete(i.active, sessionID)
	}
	i.mu.Unlock()

	if !ok {
		return
	}
	st.cancel()
	st.mu.Lock()
	st.window.Clear()
	st.mu.Unlock()
	i.logger.Debug("token issuing stopped", "session_id", sessionID)
}

// CurrentToken returns the most recently issued token for the session.
// Returns ErrSessionClosed if the session is not issuing.
func (i *Issuer) CurrentToken(sessionID string) (session.Token, error) {
	st, err := i.state(sessionID)
	if err != nil {
		return "", err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.window.Len() == 0 {
		return "", shared.ErrSessionClosed
	}
	return st.window.Current(), nil
}

// Accepts checks a token against the session's acceptance window.
// Returns nil when the token is one of the last W issued; ErrSessionClosed
// when the session has no live issuing context; ErrTokenExpired when the
// token is well-formed but outside the window.
func (i *Issuer) Accepts(sessionID string, t session.Token) error {
	st, err := i.state(sessionID)
	if err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.window.Len() == 0 {
		return shared.ErrSessionClosed
	}
	if !st.window.Contains(t) {
		return shared.ErrTokenExpired
	}
	return nil
}

// IsIssuing reports whether the session has a live issuing context.
func (i *Issuer) IsIssuing(sessionID string) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	_, ok := i.active[sessionID]
	return ok
}

// ActiveSessions returns the IDs of all sessions currently issuing.
// Used by the stale-issuer reaper job.
func (i *Issuer) ActiveSessions() []string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	ids := make([]string, 0, len(i.active))
	for id := range i.active {
		ids = append(ids, id)
	}
	return ids
}

// StartedAt returns when the session's issuing context opened.
func (i *Issuer) StartedAt(sessionID string) (time.Time, error) {
	st, err := i.state(sessionID)
	if err != nil {
		return time.Time{}, err
	}
	return st.startedAt, nil
}

// Shutdown stops every issuing context and waits for the tickers to exit.
// No orphaned tickers survive a shutdown.
func (i *Issuer) Shutdown() {
	i.mu.Lock()
	i.closed = true
	states := make([]*issuing, 0, len(i.active))
	for _, st := range i.active {
		states = append(states, st)
	}
	i.active = make(map[string]*issuing)
	i.mu.Unlock()

	for _, st := range states {
		st.cancel()
	}
	i.wg.Wait()
}

func (i *Issuer) state(sessionID string) (*issuing, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	st, ok := i.active[sessionID]
	if !ok {
		return nil, shared.ErrSessionClosed
	}
	return st, nil
}
