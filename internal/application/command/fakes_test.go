package command

import (
	"context"
	"sync"

	"github.com/campus-hub/attendance-hub/internal/domain/roster"
	"github.com/campus-hub/attendance-hub/internal/domain/session"
	"github.com/campus-hub/attendance-hub/internal/domain/shared"
)

// stubIssuer is a TokenIssuer test double with scriptable failures.
type stubIssuer struct {
	mu       sync.Mutex
	started  []string
	stopped  []string
	startErr error

	current    session.Token
	currentErr error
	acceptsErr error
}

func (i *stubIssuer) StartIssuing(_ context.Context, sessionID, _ string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.startErr != nil {
		return i.startErr
	}
	i.started = append(i.started, sessionID)
	return nil
}

func (i *stubIssuer) StopIssuing(sessionID string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.stopped = append(i.stopped, sessionID)
}

func (i *stubIssuer) CurrentToken(_ string) (session.Token, error) {
	return i.current, i.currentErr
}

func (i *stubIssuer) Accepts(_ string, _ session.Token) error {
	return i.acceptsErr
}

// stubProvider is a roster.Provider test double serving fixed data.
type stubProvider struct {
	entries   []roster.Entry
	rosterErr error

	records     map[string]roster.IdentityRecord
	identityErr error
}

func (p *stubProvider) GetRoster(_ context.Context, _ shared.Cohort) ([]roster.Entry, error) {
	if p.rosterErr != nil {
		return nil, p.rosterErr
	}
	return p.entries, nil
}

func (p *stubProvider) GetIdentityRecord(_ context.Context, identity string) (roster.IdentityRecord, error) {
	if p.identityErr != nil {
		return roster.IdentityRecord{}, p.identityErr
	}
	rec, ok := p.records[identity]
	if !ok {
		return roster.IdentityRecord{}, shared.ErrIdentityNotFound
	}
	return rec, nil
}

// captureBus records every published event.
type captureBus struct {
	mu     sync.Mutex
	events []shared.Event
}

func (b *captureBus) Publish(event shared.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return nil
}

func (b *captureBus) Subscribe(shared.EventType, shared.EventHandler) error { return nil }
func (b *captureBus) SubscribeAll(shared.EventHandler) error                { return nil }
func (b *captureBus) Close() error                                          { return nil }

func (b *captureBus) published() []shared.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]shared.Event(nil), b.events...)
}
