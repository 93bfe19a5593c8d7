package duelservice

import (
	"context"
	"time"

	dueldomain "github.com/Hollow-Moon-Club/gloamhall/app/modules/duel/domain"
	dueldb "github.com/Hollow-Moon-Club/gloamhall/app/modules/duel/infrastructure/repositories"
	gamelogservice "github.com/Hollow-Moon-Club/gloamhall/app/modules/gamelog/application"
	gamelogdb "github.com/Hollow-Moon-Club/gloamhall/app/modules/gamelog/infrastructure/repositories"
	"github.com/Hollow-Moon-Club/gloamhall/app/shared"
)

// ------------------------
// Fake Duel Repo
// ------------------------

type FakeDuelRepo struct {
	duels map[shared.DuelID]*dueldb.Duel

	CreateDuelFunc   func(ctx context.Context, duel *dueldb.Duel) error
	GetDuelFunc      func(ctx context.Context, id shared.DuelID) (*dueldb.Duel, error)
	SetDecisionFunc  func(ctx context.Context, id shared.DuelID, side dueldomain.Side, decision string) (*dueldb.Duel, error)
	UpdateStatusFunc func(ctx context.Context, id shared.DuelID, to dueldomain.Status) (*dueldb.Duel, error)
}

func NewFakeDuelRepo() *FakeDuelRepo {
	return &FakeDuelRepo{duels: make(map[shared.DuelID]*dueldb.Duel)}
}

func (f *FakeDuelRepo) Seed(duel *dueldb.Duel) *dueldb.Duel {
	_ = duel.BeforeInsert(context.Background(), nil)
	f.duels[duel.ID] = duel
	return duel
}

func (f *FakeDuelRepo) CreateDuel(ctx context.Context, duel *dueldb.Duel) error {
	if f.CreateDuelFunc != nil {
		return f.CreateDuelFunc(ctx, duel)
	}
	f.Seed(duel)
	return nil
}

func (f *FakeDuelRepo) GetDuel(ctx context.Context, id shared.DuelID) (*dueldb.Duel, error) {
	if f.GetDuelFunc != nil {
		return f.GetDuelFunc(ctx, id)
	}
	duel, ok := f.duels[id]
	if !ok {
		return nil, dueldb.ErrNotFound
	}
	copied := *duel
	return &copied, nil
}

func (f *FakeDuelRepo) SetDecision(ctx context.Context, id shared.DuelID, side dueldomain.Side, decision string) (*dueldb.Duel, error) {
	if f.SetDecisionFunc != nil {
		return f.SetDecisionFunc(ctx, id, side, decision)
	}
	duel, ok := f.duels[id]
	if !ok {
		return nil, dueldb.ErrNotFound
	}
	if duel.Status != dueldomain.StatusActive {
		return nil, dueldb.ErrNotActive
	}
	if side == dueldomain.SideChallenger {
		duel.ChallengerDecision = decision
	} else {
		duel.DefenderDecision = decision
	}
	copied := *duel
	return &copied, nil
}

func (f *FakeDuelRepo) UpdateStatus(ctx context.Context, id shared.DuelID, to dueldomain.Status) (*dueldb.Duel, error) {
	if f.UpdateStatusFunc != nil {
		return f.UpdateStatusFunc(ctx, id, to)
	}
	duel, ok := f.duels[id]
	if !ok {
		return nil, dueldb.ErrNotFound
	}
	if duel.Status != dueldomain.StatusActive {
		return nil, dueldb.ErrNotActive
	}
	duel.Status = to
	if to == dueldomain.StatusResolved {
		now := time.Now()
		duel.ResolvedAt = &now
	}
	copied := *duel
	return &copied, nil
}

// ------------------------
// Fake Session Attacher
// ------------------------

type FakeSessionAttacher struct {
	ActiveDuels map[shared.SessionID]*shared.DuelID

	SetActiveDuelFunc func(ctx context.Context, id shared.SessionID, duelID *shared.DuelID) error
}

func NewFakeSessionAttacher() *FakeSessionAttacher {
	return &FakeSessionAttacher{ActiveDuels: make(map[shared.SessionID]*shared.DuelID)}
}

func (f *FakeSessionAttacher) SetActiveDuel(ctx context.Context, id shared.SessionID, duelID *shared.DuelID) error {
	if f.SetActiveDuelFunc != nil {
		return f.SetActiveDuelFunc(ctx, id, duelID)
	}
	f.ActiveDuels[id] = duelID
	return nil
}

// ------------------------
// Fake Game Log
// ------------------------

type FakeGameLog struct {
	Entries []gamelogservice.Entry
}

func (f *FakeGameLog) Append(ctx context.Context, entry gamelogservice.Entry) {
	f.Entries = append(f.Entries, entry)
}

func (f *FakeGameLog) AppendBatch(ctx context.Context, entries []gamelogservice.Entry) {
	f.Entries = append(f.Entries, entries...)
}

func (f *FakeGameLog) List(ctx context.Context, filter gamelogdb.Filter) ([]gamelogdb.Event, error) {
	return nil, nil
}
