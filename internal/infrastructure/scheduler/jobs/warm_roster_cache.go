package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/campus-hub/attendance-hub/internal/domain/roster"
	"github.com/campus-hub/attendance-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// WARM ROSTER CACHE JOB
// ══════════════════════════════════════════════════════════════════════════════

// RosterWarmer is the slice of the cached roster provider consumed here.
// Invalidating before fetching forces a fresh read-through from the store.
type RosterWarmer interface {
	GetRoster(ctx context.Context, cohort shared.Cohort) ([]roster.Entry, error)
	Invalidate(ctx context.Context, cohort shared.Cohort) error
}

// WarmRosterCacheJob periodically refreshes the cached rosters for the
// configured cohorts. A classroom of phones scanning at 9am should never pay
// the roster store round trip; by then the cache is already warm.
type WarmRosterCacheJob struct {
	warmer   RosterWarmer
	eventBus shared.EventBus
	logger   *slog.Logger
	config   WarmRosterCacheConfig

	lastStats atomic.Value // *WarmStats
}

// WarmRosterCacheConfig contains configuration for the warm job.
type WarmRosterCacheConfig struct {
	// Cohorts to keep warm.
	Cohorts []shared.Cohort

	// Concurrency is the number of cohorts refreshed in parallel.
	Concurrency int

	// Timeout bounds the whole run.
	Timeout time.Duration
}

// DefaultWarmRosterCacheConfig returns sensible defaults.
func DefaultWarmRosterCacheConfig(cohorts []shared.Cohort) WarmRosterCacheConfig {
	return WarmRosterCacheConfig{
		Cohorts:     cohorts,
		Concurrency: 3,
		Timeout:     2 * time.Minute,
	}
}

// WarmStats contains statistics from a warm run.
type WarmStats struct {
	StartedAt time.Time
	Duration  time.Duration
	Cohorts   int
	Warmed    int
	Failed    int
	Entries   int
}

// NewWarmRosterCacheJob creates the cache warming job. The event bus may be nil.
func NewWarmRosterCacheJob(
	warmer RosterWarmer,
	eventBus shared.EventBus,
	logger *slog.Logger,
	config WarmRosterCacheConfig,
) *WarmRosterCacheJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 3
	}

	return &WarmRosterCacheJob{
		warmer:   warmer,
		eventBus: eventBus,
		logger:   logger,
		config:   config,
	}
}

// Name returns the job name.
func (j *WarmRosterCacheJob) Name() string {
	return "warm_roster_cache"
}

// Description returns a human-readable description.
func (j *WarmRosterCacheJob) Description() string {
	return "Refreshes cached cohort rosters from the roster store"
}

// Run executes the warm-up.
func (j *WarmRosterCacheJob) Run(ctx context.Context) error {
	startedAt := time.Now()
	stats := &WarmStats{
		StartedAt: startedAt,
		Cohorts:   len(j.config.Cohorts),
	}

	if len(j.config.Cohorts) == 0 {
		j.lastStats.Store(stats)
		return nil
	}

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	var (
		wg        sync.WaitGroup
		semaphore = make(chan struct{}, j.config.Concurrency)
		mu        sync.Mutex
	)

	for _, cohort := range j.config.Cohorts {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		wg.Add(1)
		semaphore <- struct{}{}

		go func(c shared.Cohort) {
			defer wg.Done()
			defer func() { <-semaphore }()

			count, err := j.warmCohort(ctx, c)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				stats.Failed++
				j.logger.Warn("roster warm failed", "cohort", c.String(), "error", err)
				return
			}
			stats.Warmed++
			stats.Entries += count
		}(cohort)
	}

	wg.Wait()

	stats.Duration = time.Since(startedAt)
	j.lastStats.Store(stats)

	j.logger.Info("roster cache warmed",
		"cohorts", stats.Cohorts,
		"warmed", stats.Warmed,
		"failed", stats.Failed,
		"entries", stats.Entries,
		"duration", stats.Duration.String(),
	)
	j.publishRefreshed(stats)

	// A fully failed run means the roster store is down.
	if stats.Failed == stats.Cohorts {
		return fmt.Errorf("all %d cohort refreshes failed", stats.Cohorts)
	}

	return nil
}

// warmCohort drops and re-fetches one cohort roster.
func (j *WarmRosterCacheJob) warmCohort(ctx context.Context, cohort shared.Cohort) (int, error) {
	if err := j.warmer.Invalidate(ctx, cohort); err != nil {
		// Stale cache is still usable; the fetch below overwrites it anyway.
		j.logger.Debug("roster invalidate failed", "cohort", cohort.String(), "error", err)
	}

	entries, err := j.warmer.GetRoster(ctx, cohort)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// publishRefreshed emits the roster refreshed event if a bus is wired.
func (j *WarmRosterCacheJob) publishRefreshed(stats *WarmStats) {
	if j.eventBus == nil {
		return
	}
	event := rosterRefreshedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventRosterRefreshed, "system"),
		warmed:    stats.Warmed,
		failed:    stats.Failed,
	}
	if err := j.eventBus.Publish(event); err != nil {
		j.logger.Warn("failed to publish roster refreshed event", "error", err)
	}
}

// LastStats returns statistics from the last warm run.
func (j *WarmRosterCacheJob) LastStats() *WarmStats {
	stats := j.lastStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*WarmStats)
}

// rosterRefreshedEvent notifies subscribers that rosters were refreshed.
type rosterRefreshedEvent struct {
	shared.BaseEvent
	warmed int
	failed int
}

// Payload implements shared.Event.
func (e rosterRefreshedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"warmed": e.warmed,
		"failed": e.failed,
	}
}
