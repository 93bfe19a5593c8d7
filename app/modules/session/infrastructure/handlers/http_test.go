package sessionhandlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	gamelogservice "github.com/Hollow-Moon-Club/gloamhall/app/modules/gamelog/application"
	gamelogdb "github.com/Hollow-Moon-Club/gloamhall/app/modules/gamelog/infrastructure/repositories"
	sessionservice "github.com/Hollow-Moon-Club/gloamhall/app/modules/session/application"
	sessiondomain "github.com/Hollow-Moon-Club/gloamhall/app/modules/session/domain"
	sessiondb "github.com/Hollow-Moon-Club/gloamhall/app/modules/session/infrastructure/repositories"
	"github.com/Hollow-Moon-Club/gloamhall/app/shared"
	"github.com/Hollow-Moon-Club/gloamhall/pkg/jwt"
)

type fakeSessionService struct {
	createFunc     func(ctx context.Context, name string) (*sessiondb.Session, error)
	joinFunc       func(ctx context.Context, id shared.SessionID, accountID, name string) (*sessiondb.Participant, error)
	transitionFunc func(ctx context.Context, id shared.SessionID, to sessiondomain.Status, phase sessiondomain.Phase) (*sessiondb.Session, error)
}

func (f *fakeSessionService) CreateSession(ctx context.Context, name string) (*sessiondb.Session, error) {
	return f.createFunc(ctx, name)
}

func (f *fakeSessionService) GetSession(ctx context.Context, id shared.SessionID) (*sessiondb.Session, error) {
	panic("not used")
}

func (f *fakeSessionService) JoinSession(ctx context.Context, id shared.SessionID, accountID, name string) (*sessiondb.Participant, error) {
	return f.joinFunc(ctx, id, accountID, name)
}

func (f *fakeSessionService) SetRoundInputs(ctx context.Context, id shared.SessionID, number shared.ParticipantNumber, desired *shared.Slot, priority *int) error {
	panic("not used")
}

func (f *fakeSessionService) TransitionPhase(ctx context.Context, id shared.SessionID, to sessiondomain.Status, phase sessiondomain.Phase) (*sessiondb.Session, error) {
	return f.transitionFunc(ctx, id, to, phase)
}

func (f *fakeSessionService) SetActiveDuel(ctx context.Context, id shared.SessionID, duelID *shared.DuelID) error {
	panic("not used")
}

type fakeGameLog struct {
	events []gamelogdb.Event
}

func (f *fakeGameLog) Append(ctx context.Context, entry gamelogservice.Entry)        {}
func (f *fakeGameLog) AppendBatch(ctx context.Context, entries []gamelogservice.Entry) {}
func (f *fakeGameLog) List(ctx context.Context, filter gamelogdb.Filter) ([]gamelogdb.Event, error) {
	return f.events, nil
}

type handlerDeps struct {
	svc     *fakeSessionService
	gameLog *fakeGameLog
	jwtSvc  jwt.Service
}

func newTestHandlers(deps handlerDeps) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	if deps.svc == nil {
		deps.svc = &fakeSessionService{}
	}
	if deps.gameLog == nil {
		deps.gameLog = &fakeGameLog{}
	}
	if deps.jwtSvc == nil {
		deps.jwtSvc = jwt.NewService("test-secret", time.Hour)
	}

	// The directory reads through an empty repo here; directory behavior
	// has its own tests.
	directory := sessionservice.NewDirectory(&emptySessionDB{}, logger, time.Second, time.Hour, time.Millisecond)

	handlers := NewSessionHandlers(deps.svc, directory, deps.gameLog, deps.jwtSvc, logger)
	r := chi.NewRouter()
	handlers.RegisterRoutes(r)
	return r
}

type emptySessionDB struct{}

func (emptySessionDB) CreateSession(ctx context.Context, session *sessiondb.Session) error {
	return nil
}
func (emptySessionDB) GetSession(ctx context.Context, id shared.SessionID) (*sessiondb.Session, error) {
	return nil, sessiondb.ErrNotFound
}
func (emptySessionDB) UpdateStatus(ctx context.Context, id shared.SessionID, from, to sessiondomain.Status, round shared.RoundNumber, phase sessiondomain.Phase) (*sessiondb.Session, error) {
	return nil, sessiondb.ErrNotFound
}
func (emptySessionDB) SetActiveDuel(ctx context.Context, id shared.SessionID, duelID *shared.DuelID) error {
	return nil
}
func (emptySessionDB) AddParticipant(ctx context.Context, participant *sessiondb.Participant) error {
	return nil
}
func (emptySessionDB) GetParticipants(ctx context.Context, sessionID shared.SessionID) ([]sessiondb.Participant, error) {
	return nil, nil
}
func (emptySessionDB) SetRoundInputs(ctx context.Context, sessionID shared.SessionID, number shared.ParticipantNumber, desired *shared.Slot, priority *int) error {
	return nil
}
func (emptySessionDB) ActiveSummaries(ctx context.Context) ([]sessiondb.SessionSummary, error) {
	return nil, nil
}
func (emptySessionDB) EndedBefore(ctx context.Context, cutoff time.Time) ([]sessiondb.Session, error) {
	return nil, nil
}
func (emptySessionDB) Archive(ctx context.Context, id shared.SessionID) error { return nil }

func TestDirectoryEndpoint(t *testing.T) {
	router := newTestHandlers(handlerDeps{})

	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var snapshot sessionservice.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snapshot); err != nil {
		t.Fatalf("failed to decode snapshot: %v", err)
	}
}

func TestCreateSessionEndpoint(t *testing.T) {
	svc := &fakeSessionService{
		createFunc: func(ctx context.Context, name string) (*sessiondb.Session, error) {
			if name == "" {
				return nil, shared.NewValidationError("session name must not be empty")
			}
			return &sessiondb.Session{Name: name, Status: sessiondomain.StatusLobby}, nil
		},
	}
	router := newTestHandlers(handlerDeps{svc: svc})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sessions", bytes.NewReader([]byte(`{"name":"friday"}`))))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sessions", bytes.NewReader([]byte(`{}`))))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty name, got %d", rec.Code)
	}
}

func TestTransitionPhaseRequiresModeratorToken(t *testing.T) {
	called := false
	svc := &fakeSessionService{
		transitionFunc: func(ctx context.Context, id shared.SessionID, to sessiondomain.Status, phase sessiondomain.Phase) (*sessiondb.Session, error) {
			called = true
			return &sessiondb.Session{ID: id, Status: to}, nil
		},
	}
	jwtSvc := jwt.NewService("test-secret", time.Hour)
	router := newTestHandlers(handlerDeps{svc: svc, jwtSvc: jwtSvc})

	url := "/sessions/" + uuid.NewString() + "/phase"
	body := `{"status":"IN_GAME"}`

	// No token.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, url, bytes.NewReader([]byte(body))))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	// Participant token.
	participantToken, err := jwtSvc.GenerateToken("3", uuid.NewString(), jwt.RoleParticipant, 0)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, url, bytes.NewReader([]byte(body)))
	req.Header.Set("Authorization", "Bearer "+participantToken)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for participant token, got %d", rec.Code)
	}
	if called {
		t.Fatalf("service must not be reached without moderator role")
	}

	// Moderator token.
	moderatorToken, err := jwtSvc.GenerateToken("mod-1", uuid.NewString(), jwt.RoleModerator, 0)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	req = httptest.NewRequest(http.MethodPost, url, bytes.NewReader([]byte(body)))
	req.Header.Set("Authorization", "Bearer "+moderatorToken)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for moderator token, got %d: %s", rec.Code, rec.Body.String())
	}
	if !called {
		t.Fatalf("expected service call for moderator token")
	}
}

func TestListEventsVisibilityTiers(t *testing.T) {
	seat := shared.ParticipantNumber(2)
	otherSeat := shared.ParticipantNumber(3)
	gameLog := &fakeGameLog{events: []gamelogdb.Event{
		{Visibility: gamelogdb.VisibilityPublic, EventType: "phase_transition"},
		{Visibility: gamelogdb.VisibilityModerator, EventType: "duel_decision"},
		{Visibility: gamelogdb.VisibilityPrivate, EventType: "secret_for_2", ParticipantNumber: &seat},
		{Visibility: gamelogdb.VisibilityPrivate, EventType: "secret_for_3", ParticipantNumber: &otherSeat},
	}}
	jwtSvc := jwt.NewService("test-secret", time.Hour)
	router := newTestHandlers(handlerDeps{gameLog: gameLog, jwtSvc: jwtSvc})

	url := "/sessions/" + uuid.NewString() + "/events"

	list := func(token string) []gamelogdb.Event {
		req := httptest.NewRequest(http.MethodGet, url, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var events []gamelogdb.Event
		if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
			t.Fatalf("failed to decode events: %v", err)
		}
		return events
	}

	// Anonymous: public only.
	if got := list(""); len(got) != 1 {
		t.Errorf("anonymous caller: expected 1 event, got %d", len(got))
	}

	// Participant 2: public plus their private record.
	participantToken, err := jwtSvc.GenerateToken("2", uuid.NewString(), jwt.RoleParticipant, 0)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if got := list(participantToken); len(got) != 2 {
		t.Errorf("participant caller: expected 2 events, got %d", len(got))
	}

	// Moderator: everything.
	moderatorToken, err := jwtSvc.GenerateToken("mod-1", uuid.NewString(), jwt.RoleModerator, 0)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if got := list(moderatorToken); len(got) != 4 {
		t.Errorf("moderator caller: expected 4 events, got %d", len(got))
	}
}

func TestJoinSessionEndpoint(t *testing.T) {
	svc := &fakeSessionService{
		joinFunc: func(ctx context.Context, id shared.SessionID, accountID, name string) (*sessiondb.Participant, error) {
			return &sessiondb.Participant{SessionID: id, Number: 1, Name: name}, nil
		},
	}
	router := newTestHandlers(handlerDeps{svc: svc})

	url := "/sessions/" + uuid.NewString() + "/join"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, url, bytes.NewReader([]byte(`{"name":"Wren"}`))))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	// A malformed session identifier never reaches the service.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sessions/not-a-uuid/join", bytes.NewReader([]byte(`{"name":"Wren"}`))))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad session id, got %d", rec.Code)
	}
}
