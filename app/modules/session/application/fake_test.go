package sessionservice

import (
	"context"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	gamelogservice "github.com/Hollow-Moon-Club/gloamhall/app/modules/gamelog/application"
	gamelogdb "github.com/Hollow-Moon-Club/gloamhall/app/modules/gamelog/infrastructure/repositories"
	sessiondomain "github.com/Hollow-Moon-Club/gloamhall/app/modules/session/domain"
	sessiondb "github.com/Hollow-Moon-Club/gloamhall/app/modules/session/infrastructure/repositories"
	"github.com/Hollow-Moon-Club/gloamhall/app/shared"
)

// ------------------------
// Fake Session Repo
// ------------------------

type FakeSessionRepo struct {
	mu           sync.Mutex
	sessions     map[shared.SessionID]*sessiondb.Session
	participants map[shared.SessionID][]sessiondb.Participant

	UpdateStatusFunc    func(ctx context.Context, id shared.SessionID, from, to sessiondomain.Status, round shared.RoundNumber, phase sessiondomain.Phase) (*sessiondb.Session, error)
	ActiveSummariesFunc func(ctx context.Context) ([]sessiondb.SessionSummary, error)
	SetRoundInputsFunc  func(ctx context.Context, sessionID shared.SessionID, number shared.ParticipantNumber, desired *shared.Slot, priority *int) error
}

func NewFakeSessionRepo() *FakeSessionRepo {
	return &FakeSessionRepo{
		sessions:     make(map[shared.SessionID]*sessiondb.Session),
		participants: make(map[shared.SessionID][]sessiondb.Participant),
	}
}

func (f *FakeSessionRepo) Seed(session *sessiondb.Session) *sessiondb.Session {
	_ = session.BeforeInsert(context.Background(), nil)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[session.ID] = session
	return session
}

func (f *FakeSessionRepo) CreateSession(ctx context.Context, session *sessiondb.Session) error {
	f.Seed(session)
	return nil
}

func (f *FakeSessionRepo) GetSession(ctx context.Context, id shared.SessionID) (*sessiondb.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[id]
	if !ok {
		return nil, sessiondb.ErrNotFound
	}
	copied := *session
	return &copied, nil
}

func (f *FakeSessionRepo) UpdateStatus(ctx context.Context, id shared.SessionID, from, to sessiondomain.Status, round shared.RoundNumber, phase sessiondomain.Phase) (*sessiondb.Session, error) {
	if f.UpdateStatusFunc != nil {
		return f.UpdateStatusFunc(ctx, id, from, to, round, phase)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[id]
	if !ok {
		return nil, sessiondb.ErrNotFound
	}
	if session.Status != from {
		return nil, sessiondb.ErrStaleStatus
	}
	session.Status = to
	session.CurrentRound = round
	session.CurrentPhase = phase
	if to.Terminal() {
		now := time.Now()
		session.EndedAt = &now
	}
	copied := *session
	return &copied, nil
}

func (f *FakeSessionRepo) SetActiveDuel(ctx context.Context, id shared.SessionID, duelID *shared.DuelID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[id]
	if !ok {
		return sessiondb.ErrNotFound
	}
	session.ActiveDuelID = duelID
	return nil
}

func (f *FakeSessionRepo) AddParticipant(ctx context.Context, participant *sessiondb.Participant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[participant.SessionID]; !ok {
		return sessiondb.ErrNotFound
	}
	participant.Number = shared.ParticipantNumber(len(f.participants[participant.SessionID]) + 1)
	f.participants[participant.SessionID] = append(f.participants[participant.SessionID], *participant)
	return nil
}

func (f *FakeSessionRepo) GetParticipants(ctx context.Context, sessionID shared.SessionID) ([]sessiondb.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sessiondb.Participant(nil), f.participants[sessionID]...), nil
}

func (f *FakeSessionRepo) SetRoundInputs(ctx context.Context, sessionID shared.SessionID, number shared.ParticipantNumber, desired *shared.Slot, priority *int) error {
	if f.SetRoundInputsFunc != nil {
		return f.SetRoundInputsFunc(ctx, sessionID, number, desired, priority)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	seats := f.participants[sessionID]
	for i := range seats {
		if seats[i].Number == number {
			seats[i].DesiredSlot = desired
			seats[i].PriorityRank = priority
			return nil
		}
	}
	return sessiondb.ErrParticipantNotFound
}

func (f *FakeSessionRepo) ActiveSummaries(ctx context.Context) ([]sessiondb.SessionSummary, error) {
	if f.ActiveSummariesFunc != nil {
		return f.ActiveSummariesFunc(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var summaries []sessiondb.SessionSummary
	for _, session := range f.sessions {
		if session.Status.Terminal() {
			continue
		}
		summaries = append(summaries, sessiondb.SessionSummary{
			ID:               session.ID,
			Name:             session.Name,
			Status:           session.Status,
			CurrentRound:     session.CurrentRound,
			ParticipantCount: len(f.participants[session.ID]),
		})
	}
	return summaries, nil
}

func (f *FakeSessionRepo) EndedBefore(ctx context.Context, cutoff time.Time) ([]sessiondb.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ended []sessiondb.Session
	for _, session := range f.sessions {
		if session.EndedAt != nil && session.EndedAt.Before(cutoff) {
			ended = append(ended, *session)
		}
	}
	return ended, nil
}

func (f *FakeSessionRepo) Archive(ctx context.Context, id shared.SessionID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, id)
	delete(f.participants, id)
	return nil
}

// ------------------------
// Fake Event Bus
// ------------------------

type FakeEventBus struct {
	mu        sync.Mutex
	published map[string][]*message.Message
}

func NewFakeEventBus() *FakeEventBus {
	return &FakeEventBus{published: make(map[string][]*message.Message)}
}

func (f *FakeEventBus) Publish(ctx context.Context, topic string, msg *message.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published[topic] = append(f.published[topic], msg)
	return nil
}

func (f *FakeEventBus) Subscribe(ctx context.Context, topic string, handler func(ctx context.Context, msg *message.Message) error) error {
	return nil
}

func (f *FakeEventBus) CreateStream(ctx context.Context, streamName string, subject string) error {
	return nil
}

func (f *FakeEventBus) Close() error { return nil }

func (f *FakeEventBus) Published(topic string) []*message.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*message.Message(nil), f.published[topic]...)
}

// ------------------------
// Fake Game Log
// ------------------------

type FakeGameLog struct {
	mu      sync.Mutex
	entries []gamelogservice.Entry
}

func (f *FakeGameLog) Append(ctx context.Context, entry gamelogservice.Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
}

func (f *FakeGameLog) AppendBatch(ctx context.Context, entries []gamelogservice.Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entries...)
}

func (f *FakeGameLog) List(ctx context.Context, filter gamelogdb.Filter) ([]gamelogdb.Event, error) {
	return nil, nil
}

func (f *FakeGameLog) Entries() []gamelogservice.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]gamelogservice.Entry(nil), f.entries...)
}
