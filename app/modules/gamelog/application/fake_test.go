package gamelogservice

import (
	"context"

	gamelogdb "github.com/Hollow-Moon-Club/gloamhall/app/modules/gamelog/infrastructure/repositories"
)

// ------------------------
// Fake GameLog Repo
// ------------------------

type FakeGameLogRepo struct {
	Inserted []*gamelogdb.Event

	InsertEventFunc  func(ctx context.Context, event *gamelogdb.Event) error
	InsertEventsFunc func(ctx context.Context, events []*gamelogdb.Event) error
	ListEventsFunc   func(ctx context.Context, filter gamelogdb.Filter) ([]gamelogdb.Event, error)
}

func NewFakeGameLogRepo() *FakeGameLogRepo {
	return &FakeGameLogRepo{}
}

func (f *FakeGameLogRepo) InsertEvent(ctx context.Context, event *gamelogdb.Event) error {
	if f.InsertEventFunc != nil {
		if err := f.InsertEventFunc(ctx, event); err != nil {
			return err
		}
	}
	f.Inserted = append(f.Inserted, event)
	return nil
}

func (f *FakeGameLogRepo) InsertEvents(ctx context.Context, events []*gamelogdb.Event) error {
	if f.InsertEventsFunc != nil {
		if err := f.InsertEventsFunc(ctx, events); err != nil {
			return err
		}
	}
	f.Inserted = append(f.Inserted, events...)
	return nil
}

func (f *FakeGameLogRepo) ListEvents(ctx context.Context, filter gamelogdb.Filter) ([]gamelogdb.Event, error) {
	if f.ListEventsFunc != nil {
		return f.ListEventsFunc(ctx, filter)
	}
	out := make([]gamelogdb.Event, 0, len(f.Inserted))
	for _, event := range f.Inserted {
		if event.SessionID != filter.SessionID {
			continue
		}
		if filter.Visibility != nil && event.Visibility != *filter.Visibility {
			continue
		}
		out = append(out, *event)
	}
	return out, nil
}
