package query

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/campus-hub/attendance-hub/internal/domain/roster"
	"github.com/campus-hub/attendance-hub/internal/domain/session"
	"github.com/campus-hub/attendance-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// IDENTITY SUMMARY QUERY
// Per-subject attendance for one identity, reconciled against the roster.
// Percentages never lie: a subject the identity is not enrolled in is
// reported as not-applicable, and a subject with no sessions yet reports
// HasData=false rather than a fake 0%.
// ══════════════════════════════════════════════════════════════════════════════

// SubjectSummary is the aggregate for one (identity, subject) pair.
type SubjectSummary struct {
	Subject string `json:"subject"`

	// NotApplicable is true when the identity is not enrolled in the subject
	// even though it was taught to the cohort.
	NotApplicable bool `json:"notApplicable,omitempty"`

	// HasData is false when no sessions exist for the subject yet; the
	// percentage is meaningless in that case and must not render as 0%.
	HasData bool `json:"hasData"`

	Attended   int `json:"attended"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// IdentitySummaryQuery asks for one identity's reconciliation view.
type IdentitySummaryQuery struct {
	// Identity is the identity to summarize.
	Identity string

	// Subjects optionally extends the subject axis. A requested subject the
	// identity is not enrolled in still gets a row, flagged not-applicable,
	// even when it was never taught to the cohort.
	Subjects []string
}

// IdentitySummaryView is the full reconciliation view for one identity.
type IdentitySummaryView struct {
	Identity string           `json:"identity"`
	Name     string           `json:"name"`
	Year     int              `json:"year"`
	Division string           `json:"division"`
	Subjects []SubjectSummary `json:"subjects"`
}

// IdentitySummaryHandler answers per-identity attendance summaries.
type IdentitySummaryHandler struct {
	sessionRepo    session.Repository
	rosterProvider roster.Provider
	logger         *slog.Logger
}

// NewIdentitySummaryHandler creates a new IdentitySummaryHandler.
func NewIdentitySummaryHandler(
	sessionRepo session.Repository,
	rosterProvider roster.Provider,
	logger *slog.Logger,
) *IdentitySummaryHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &IdentitySummaryHandler{
		sessionRepo:    sessionRepo,
		rosterProvider: rosterProvider,
		logger:         logger,
	}
}

// Handle builds the summary. The subject axis is the union of the identity's
// enrolled subjects, every subject ever taught to the cohort, and any
// subjects the caller asked about, so a stray session in a subject the
// identity never took still shows up, flagged not-applicable.
func (h *IdentitySummaryHandler) Handle(ctx context.Context, q IdentitySummaryQuery) (*IdentitySummaryView, error) {
	if q.Identity == "" {
		return nil, shared.ErrInvalidIdentity
	}
	if h.rosterProvider == nil {
		return nil, shared.ErrRosterUnavailable
	}

	record, err := h.rosterProvider.GetIdentityRecord(ctx, q.Identity)
	if err != nil {
		return nil, err
	}

	cohort := shared.NewCohort(record.Year, record.Division)
	taught, err := h.sessionRepo.ListCohortSubjects(ctx, cohort)
	if err != nil {
		return nil, err
	}

	subjects := unionSubjects(record.Subjects, taught, q.Subjects)

	view := &IdentitySummaryView{
		Identity: record.Identity,
		Name:     record.Name,
		Year:     record.Year.Int(),
		Division: record.Division.String(),
		Subjects: make([]SubjectSummary, 0, len(subjects)),
	}

	for _, subject := range subjects {
		if !record.EnrolledIn(subject) {
			view.Subjects = append(view.Subjects, SubjectSummary{
				Subject:       subject,
				NotApplicable: true,
			})
			continue
		}

		summary, err := h.subjectSummary(ctx, cohort, subject, q.Identity)
		if err != nil {
			return nil, err
		}
		view.Subjects = append(view.Subjects, summary)
	}

	return view, nil
}

// subjectSummary aggregates one subject for one identity.
func (h *IdentitySummaryHandler) subjectSummary(ctx context.Context, cohort shared.Cohort, subject, identity string) (SubjectSummary, error) {
	sessions, err := h.sessionRepo.ListByCohortSubject(ctx, cohort, subject)
	if err != nil {
		return SubjectSummary{}, err
	}

	return summarize(subject, sessions, identity), nil
}

// summarize computes the (attended, total, percentage) triple for an identity
// over a subject's sessions.
func summarize(subject string, sessions []*session.Session, identity string) SubjectSummary {
	summary := SubjectSummary{
		Subject: subject,
		Total:   len(sessions),
	}

	if len(sessions) == 0 {
		return summary
	}

	for _, s := range sessions {
		if s.IsPresent(identity) {
			summary.Attended++
		}
	}

	summary.HasData = true
	summary.Percentage = roundPercent(summary.Attended, summary.Total)
	return summary
}

// roundPercent computes round(attended/total*100), half away from zero.
func roundPercent(attended, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(attended) / float64(total) * 100))
}

// unionSubjects merges subject lists, case-insensitively deduplicated,
// sorted for stable output. The first spelling seen wins.
func unionSubjects(lists ...[]string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0)

	for _, list := range lists {
		for _, subject := range list {
			key := strings.ToLower(subject)
			if subject == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, subject)
		}
	}

	sort.Strings(out)
	return out
}
