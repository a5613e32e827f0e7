// Package jobs contains implementations of scheduled jobs for Attendance Hub.
// They keep the runtime state tidy: token issuers are stopped once their
// session can no longer change, and hot rosters are kept warm in the cache.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/campus-hub/attendance-hub/internal/domain/session"
	"github.com/campus-hub/attendance-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CLOSE STALE ISSUERS JOB
// ══════════════════════════════════════════════════════════════════════════════

// TokenIssuer is the slice of the issuer consumed by this job.
type TokenIssuer interface {
	// ActiveSessions returns the IDs of sessions with a live token rotation.
	ActiveSessions() []string

	// StartedAt returns when rotation started for a session.
	StartedAt(sessionID string) (time.Time, error)

	// StopIssuing stops rotation and clears the token window for a session.
	StopIssuing(sessionID string)
}

// CloseStaleIssuersJob stops token rotation for sessions that no longer need
// it: the session was deleted, or it has aged past the edit lock and no scan
// can be accepted anymore. Without this reaper an abandoned session would
// rotate tokens forever.
type CloseStaleIssuersJob struct {
	issuer      TokenIssuer
	sessionRepo session.Repository
	eventBus    shared.EventBus
	logger      *slog.Logger

	lastStats atomic.Value // *ReapStats
}

// ReapStats contains statistics from a reap run.
type ReapStats struct {
	StartedAt time.Time
	Duration  time.Duration
	Checked   int
	Stopped   int
	Orphaned  int
	Failed    int
}

// NewCloseStaleIssuersJob creates the reaper job. The event bus may be nil.
func NewCloseStaleIssuersJob(
	issuer TokenIssuer,
	sessionRepo session.Repository,
	eventBus shared.EventBus,
	logger *slog.Logger,
) *CloseStaleIssuersJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &CloseStaleIssuersJob{
		issuer:      issuer,
		sessionRepo: sessionRepo,
		eventBus:    eventBus,
		logger:      logger,
	}
}

// Name returns the job name.
func (j *CloseStaleIssuersJob) Name() string {
	return "close_stale_issuers"
}

// Description returns a human-readable description.
func (j *CloseStaleIssuersJob) Description() string {
	return "Stops token rotation for deleted or edit-locked sessions"
}

// Run executes the reap.
func (j *CloseStaleIssuersJob) Run(ctx context.Context) error {
	startedAt := time.Now()
	stats := &ReapStats{StartedAt: startedAt}

	for _, sessionID := range j.issuer.ActiveSessions() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		stats.Checked++

		stop, orphaned, err := j.shouldStop(ctx, sessionID, startedAt)
		if err != nil {
			stats.Failed++
			j.logger.Warn("stale issuer check failed", "session_id", sessionID, "error", err)
			continue
		}
		if !stop {
			continue
		}

		j.issuer.StopIssuing(sessionID)
		stats.Stopped++
		if orphaned {
			stats.Orphaned++
		}

		j.logger.Info("stopped stale issuer",
			"session_id", sessionID,
			"orphaned", orphaned,
		)
		j.publishStopped(sessionID)
	}

	stats.Duration = time.Since(startedAt)
	j.lastStats.Store(stats)

	if stats.Stopped > 0 || stats.Failed > 0 {
		j.logger.Info("stale issuer reap completed",
			"checked", stats.Checked,
			"stopped", stats.Stopped,
			"orphaned", stats.Orphaned,
			"failed", stats.Failed,
			"duration", stats.Duration.String(),
		)
	}

	return nil
}

// shouldStop decides whether rotation for a session must end. A session that
// vanished from the store is an orphan; one past its edit deadline can never
// accept another scan.
func (j *CloseStaleIssuersJob) shouldStop(ctx context.Context, sessionID string, now time.Time) (stop, orphaned bool, err error) {
	s, err := j.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, shared.ErrSessionNotFound) {
			return true, true, nil
		}
		return false, false, fmt.Errorf("load session: %w", err)
	}

	if !s.Editable(now) {
		return true, false, nil
	}
	return false, false, nil
}

// publishStopped emits the issuer stopped event if a bus is wired.
func (j *CloseStaleIssuersJob) publishStopped(sessionID string) {
	if j.eventBus == nil {
		return
	}
	event := issuerStoppedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventIssuerStopped, sessionID),
	}
	if err := j.eventBus.Publish(event); err != nil {
		j.logger.Warn("failed to publish issuer stopped event",
			"session_id", sessionID,
			"error", err,
		)
	}
}

// LastStats returns statistics from the last reap run.
func (j *CloseStaleIssuersJob) LastStats() *ReapStats {
	stats := j.lastStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*ReapStats)
}

// issuerStoppedEvent notifies subscribers that a session stopped rotating.
type issuerStoppedEvent struct {
	shared.BaseEvent
}

// Payload implements shared.Event.
func (e issuerStoppedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"session_id": e.AggregateID(),
	}
}
