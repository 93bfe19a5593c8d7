package duelintegrationtests

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"github.com/Hollow-Moon-Club/gloamhall/app/eventbus"
	dueldomain "github.com/Hollow-Moon-Club/gloamhall/app/modules/duel/domain"
	dueldb "github.com/Hollow-Moon-Club/gloamhall/app/modules/duel/infrastructure/repositories"
	duelmigrations "github.com/Hollow-Moon-Club/gloamhall/app/modules/duel/infrastructure/repositories/migrations"
	gamelogmigrations "github.com/Hollow-Moon-Club/gloamhall/app/modules/gamelog/infrastructure/repositories/migrations"
	sessiondomain "github.com/Hollow-Moon-Club/gloamhall/app/modules/session/domain"
	sessiondb "github.com/Hollow-Moon-Club/gloamhall/app/modules/session/infrastructure/repositories"
	sessionmigrations "github.com/Hollow-Moon-Club/gloamhall/app/modules/session/infrastructure/repositories/migrations"
	"github.com/Hollow-Moon-Club/gloamhall/app/shared"
	"github.com/Hollow-Moon-Club/gloamhall/integration_tests/containers"
	"github.com/Hollow-Moon-Club/gloamhall/internal/pgnotify"
)

// setupDB starts a Postgres container, applies every module's migrations
// and returns a connected bun.DB plus the container DSN.
func setupDB(t *testing.T) (*bun.DB, string) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	pgContainer, dsn, err := containers.SetupPostgresContainer(ctx)
	if err != nil {
		t.Fatalf("failed to set up postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := pgContainer.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	t.Cleanup(func() { db.Close() })

	// Order matters: the duel schema references sessions and reuses the
	// session module's notify trigger function.
	for _, migrations := range []*migrate.Migrations{
		sessionmigrations.Migrations,
		duelmigrations.Migrations,
		gamelogmigrations.Migrations,
	} {
		migrator := migrate.NewMigrator(db, migrations)
		if err := migrator.Init(ctx); err != nil {
			t.Fatalf("failed to init migrations: %v", err)
		}
		if _, err := migrator.Migrate(ctx); err != nil {
			t.Fatalf("failed to apply migrations: %v", err)
		}
	}

	return db, dsn
}

func seedSession(t *testing.T, repo sessiondb.SessionDB, seats int) *sessiondb.Session {
	t.Helper()
	ctx := context.Background()

	session := &sessiondb.Session{
		Name:   "integration",
		Status: sessiondomain.StatusLobby,
	}
	if err := repo.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	for i := 0; i < seats; i++ {
		participant := &sessiondb.Participant{
			SessionID: session.ID,
			Name:      "seat",
		}
		if err := repo.AddParticipant(ctx, participant); err != nil {
			t.Fatalf("AddParticipant failed: %v", err)
		}
	}
	return session
}

func TestDuelDecisionsAndResolution(t *testing.T) {
	db, _ := setupDB(t)
	ctx := context.Background()

	sessionRepo := &sessiondb.SessionDBImpl{DB: db}
	duelRepo := &dueldb.DuelDBImpl{DB: db}

	session := seedSession(t, sessionRepo, 2)

	duel := &dueldb.Duel{
		SessionID:        session.ID,
		ChallengerNumber: 1,
		DefenderNumber:   2,
	}
	if err := duelRepo.CreateDuel(ctx, duel); err != nil {
		t.Fatalf("CreateDuel failed: %v", err)
	}

	if _, err := duelRepo.SetDecision(ctx, duel.ID, dueldomain.SideChallenger, "strike"); err != nil {
		t.Fatalf("challenger SetDecision failed: %v", err)
	}
	// Same-side resubmission overwrites.
	if _, err := duelRepo.SetDecision(ctx, duel.ID, dueldomain.SideChallenger, "parry"); err != nil {
		t.Fatalf("challenger resubmission failed: %v", err)
	}
	updated, err := duelRepo.SetDecision(ctx, duel.ID, dueldomain.SideDefender, "strike")
	if err != nil {
		t.Fatalf("defender SetDecision failed: %v", err)
	}
	if updated.ChallengerDecision != "parry" || updated.DefenderDecision != "strike" {
		t.Errorf("decisions = %q/%q, want parry/strike", updated.ChallengerDecision, updated.DefenderDecision)
	}

	resolved, err := duelRepo.UpdateStatus(ctx, duel.ID, dueldomain.StatusResolved)
	if err != nil {
		t.Fatalf("UpdateStatus to RESOLVED failed: %v", err)
	}
	if resolved.ResolvedAt == nil {
		t.Error("expected ResolvedAt to be set")
	}

	if _, err := duelRepo.UpdateStatus(ctx, duel.ID, dueldomain.StatusResolved); !errors.Is(err, dueldb.ErrNotActive) {
		t.Errorf("second resolution error = %v, want ErrNotActive", err)
	}
	if _, err := duelRepo.SetDecision(ctx, duel.ID, dueldomain.SideDefender, "late"); !errors.Is(err, dueldb.ErrNotActive) {
		t.Errorf("decision after resolution error = %v, want ErrNotActive", err)
	}
	if updated.DecisionFor(dueldomain.SideDefender) != "strike" {
		t.Errorf("defender decision changed after resolution")
	}

	if _, err := duelRepo.GetDuel(ctx, shared.DuelID(uuid.New())); !errors.Is(err, dueldb.ErrNotFound) {
		t.Errorf("unknown duel error = %v, want ErrNotFound", err)
	}
}

func TestSessionGuardedStatusAndRoundInputs(t *testing.T) {
	db, _ := setupDB(t)
	ctx := context.Background()

	repo := &sessiondb.SessionDBImpl{DB: db}
	session := seedSession(t, repo, 2)

	if _, err := repo.UpdateStatus(ctx, session.ID, sessiondomain.StatusLobby, sessiondomain.StatusInGame, 0, ""); err != nil {
		t.Fatalf("LOBBY to IN_GAME failed: %v", err)
	}
	// The same guarded write again must see a stale from-status.
	if _, err := repo.UpdateStatus(ctx, session.ID, sessiondomain.StatusLobby, sessiondomain.StatusInGame, 0, ""); !errors.Is(err, sessiondb.ErrStaleStatus) {
		t.Errorf("stale update error = %v, want ErrStaleStatus", err)
	}

	slot := shared.Slot(3)
	priority := 1
	if err := repo.SetRoundInputs(ctx, session.ID, 1, &slot, &priority); err != nil {
		t.Fatalf("SetRoundInputs failed: %v", err)
	}
	if err := repo.SetRoundInputs(ctx, session.ID, 99, &slot, &priority); !errors.Is(err, sessiondb.ErrParticipantNotFound) {
		t.Errorf("unknown seat error = %v, want ErrParticipantNotFound", err)
	}

	participants, err := repo.GetParticipants(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetParticipants failed: %v", err)
	}
	if len(participants) != 2 {
		t.Fatalf("got %d participants, want 2", len(participants))
	}
	if participants[0].DesiredSlot == nil || *participants[0].DesiredSlot != slot {
		t.Errorf("seat 1 desired slot not persisted: %v", participants[0].DesiredSlot)
	}
}

func TestArchiveEndedSession(t *testing.T) {
	db, _ := setupDB(t)
	ctx := context.Background()

	repo := &sessiondb.SessionDBImpl{DB: db}
	session := seedSession(t, repo, 3)

	if err := repo.Archive(ctx, session.ID); err == nil {
		t.Fatal("expected archival of a live session to fail")
	}

	if _, err := repo.UpdateStatus(ctx, session.ID, sessiondomain.StatusLobby, sessiondomain.StatusEnded, 0, ""); err != nil {
		t.Fatalf("ending session failed: %v", err)
	}

	ended, err := repo.EndedBefore(ctx, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("EndedBefore failed: %v", err)
	}
	if len(ended) != 1 {
		t.Fatalf("got %d ended sessions, want 1", len(ended))
	}

	if err := repo.Archive(ctx, session.ID); err != nil {
		t.Fatalf("Archive failed: %v", err)
	}

	if _, err := repo.GetSession(ctx, session.ID); !errors.Is(err, sessiondb.ErrNotFound) {
		t.Errorf("archived session lookup error = %v, want ErrNotFound", err)
	}

	archived := new(sessiondb.ArchivedSession)
	if err := db.NewSelect().Model(archived).Where("arch.id = ?", session.ID).Scan(ctx); err != nil {
		t.Fatalf("archive snapshot lookup failed: %v", err)
	}
	if archived.ParticipantCount != 3 {
		t.Errorf("archived participant count = %d, want 3", archived.ParticipantCount)
	}
}

func TestChangeNotificationsReachTheBus(t *testing.T) {
	db, dsn := setupDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := eventbus.NewInProcessBus(logger)
	t.Cleanup(func() { bus.Close() })

	received := make(chan eventbus.ChangeNotification, 1)
	err := bus.Subscribe(ctx, eventbus.ChangeTopic(eventbus.TableSessions), func(ctx context.Context, msg *message.Message) error {
		change, err := eventbus.ParseChangeNotification(msg)
		if err != nil {
			return err
		}
		received <- change
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	listener := pgnotify.New(dsn, bus, logger)
	go func() {
		_ = listener.Run(ctx)
	}()
	// Give the LISTEN connection a moment before firing the trigger.
	time.Sleep(500 * time.Millisecond)

	repo := &sessiondb.SessionDBImpl{DB: db}
	session := seedSession(t, repo, 0)

	select {
	case change := <-received:
		if change.Table != eventbus.TableSessions {
			t.Errorf("change table = %q, want %q", change.Table, eventbus.TableSessions)
		}
		if change.SessionID != session.ID.String() {
			t.Errorf("change session id = %q, want %q", change.SessionID, session.ID)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for a change notification")
	}
}
