package query

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/campus-hub/attendance-hub/internal/domain/roster"
	"github.com/campus-hub/attendance-hub/internal/domain/session"
	"github.com/campus-hub/attendance-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COHORT SUMMARY QUERY
// The register view: every identity in a cohort crossed with every subject
// taught to it. Sessions are fetched once per subject, not once per identity,
// so the cost is O(subjects) repository calls for the whole cohort.
// ══════════════════════════════════════════════════════════════════════════════

// CohortRow is the summary for one identity within the cohort view.
type CohortRow struct {
	Identity string           `json:"identity"`
	Name     string           `json:"name"`
	Subjects []SubjectSummary `json:"subjects"`
}

// CohortSummaryView is the full cohort register.
type CohortSummaryView struct {
	Year     int         `json:"year"`
	Division string      `json:"division"`
	Subjects []string    `json:"subjects"`
	Rows     []CohortRow `json:"rows"`
}

// CohortSummaryHandler answers cohort-wide attendance summaries.
type CohortSummaryHandler struct {
	sessionRepo    session.Repository
	rosterProvider roster.Provider
	logger         *slog.Logger
}

// NewCohortSummaryHandler creates a new CohortSummaryHandler.
func NewCohortSummaryHandler(
	sessionRepo session.Repository,
	rosterProvider roster.Provider,
	logger *slog.Logger,
) *CohortSummaryHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CohortSummaryHandler{
		sessionRepo:    sessionRepo,
		rosterProvider: rosterProvider,
		logger:         logger,
	}
}

// Handle builds the register for a cohort. Roster entries already carry each
// identity's enrolled subjects, so the roster is fetched exactly once.
func (h *CohortSummaryHandler) Handle(ctx context.Context, cohort shared.Cohort) (*CohortSummaryView, error) {
	if !cohort.IsValid() {
		return nil, shared.ErrInvalidInput
	}
	if h.rosterProvider == nil {
		return nil, shared.ErrRosterUnavailable
	}

	entries, err := h.rosterProvider.GetRoster(ctx, cohort)
	if err != nil {
		return nil, err
	}

	taught, err := h.sessionRepo.ListCohortSubjects(ctx, cohort)
	if err != nil {
		return nil, err
	}

	subjects := cohortSubjects(entries, taught)

	// One session fetch per subject; rows are computed from these in memory.
	sessionsBySubject := make(map[string][]*session.Session, len(subjects))
	for _, subject := range subjects {
		sessions, err := h.sessionRepo.ListByCohortSubject(ctx, cohort, subject)
		if err != nil {
			h.logger.Warn("cohort summary: subject fetch failed, zeroing column",
				"cohort", cohort.String(),
				"subject", subject,
				"error", err,
			)
			sessions = nil
		}
		sessionsBySubject[subject] = sessions
	}

	view := &CohortSummaryView{
		Year:     cohort.Year.Int(),
		Division: cohort.Division.String(),
		Subjects: subjects,
		Rows:     make([]CohortRow, 0, len(entries)),
	}

	for _, entry := range entries {
		view.Rows = append(view.Rows, h.buildRow(entry, subjects, sessionsBySubject))
	}

	sort.Slice(view.Rows, func(i, j int) bool {
		a, b := view.Rows[i], view.Rows[j]
		if !strings.EqualFold(a.Name, b.Name) {
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		}
		return a.Identity < b.Identity
	})

	return view, nil
}

// buildRow crosses one roster entry with the subject columns.
func (h *CohortSummaryHandler) buildRow(entry roster.Entry, subjects []string, sessionsBySubject map[string][]*session.Session) CohortRow {
	row := CohortRow{
		Identity: entry.Identity,
		Name:     entry.Name,
		Subjects: make([]SubjectSummary, 0, len(subjects)),
	}

	for _, subject := range subjects {
		if !entry.EnrolledIn(subject) {
			row.Subjects = append(row.Subjects, SubjectSummary{
				Subject:       subject,
				NotApplicable: true,
			})
			continue
		}
		row.Subjects = append(row.Subjects, summarize(subject, sessionsBySubject[subject], entry.Identity))
	}

	return row
}

// cohortSubjects merges every enrolled subject across the roster with every
// subject taught to the cohort.
func cohortSubjects(entries []roster.Entry, taught []string) []string {
	enrolled := make([]string, 0, len(taught))
	for _, entry := range entries {
		enrolled = append(enrolled, entry.Subjects...)
	}
	return unionSubjects(enrolled, taught)
}
