package query

import (
	"context"

	"github.com/campus-hub/attendance-hub/internal/domain/roster"
	"github.com/campus-hub/attendance-hub/internal/domain/session"
	"github.com/campus-hub/attendance-hub/internal/domain/shared"
)

// stubProvider is a roster.Provider test double serving fixed data.
type stubProvider struct {
	entries   []roster.Entry
	rosterErr error
	records   map[string]roster.IdentityRecord
}

func (p *stubProvider) GetRoster(_ context.Context, _ shared.Cohort) ([]roster.Entry, error) {
	if p.rosterErr != nil {
		return nil, p.rosterErr
	}
	return p.entries, nil
}

func (p *stubProvider) GetIdentityRecord(_ context.Context, identity string) (roster.IdentityRecord, error) {
	rec, ok := p.records[identity]
	if !ok {
		return roster.IdentityRecord{}, shared.ErrIdentityNotFound
	}
	return rec, nil
}

// stubTokens is a TokenSource test double.
type stubTokens struct {
	token session.Token
	err   error
}

func (s *stubTokens) CurrentToken(string) (session.Token, error) {
	return s.token, s.err
}

// flakyRepo wraps a repository and fails subject listings for one subject.
type flakyRepo struct {
	session.Repository
	failSubject string
	failErr     error
}

func (r *flakyRepo) ListByCohortSubject(ctx context.Context, cohort shared.Cohort, subject string) ([]*session.Session, error) {
	if subject == r.failSubject {
		return nil, r.failErr
	}
	return r.Repository.ListByCohortSubject(ctx, cohort, subject)
}
