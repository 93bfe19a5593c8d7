package sessiondb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	sessiondomain "github.com/Hollow-Moon-Club/gloamhall/app/modules/session/domain"
	"github.com/Hollow-Moon-Club/gloamhall/app/shared"
)

// SessionDBImpl handles database operations for sessions.
type SessionDBImpl struct {
	DB *bun.DB
}

var _ SessionDB = (*SessionDBImpl)(nil)

// CreateSession inserts a new session row.
func (db *SessionDBImpl) CreateSession(ctx context.Context, session *Session) error {
	if _, err := db.DB.NewInsert().Model(session).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by ID.
func (db *SessionDBImpl) GetSession(ctx context.Context, id shared.SessionID) (*Session, error) {
	session := new(Session)

	err := db.DB.NewSelect().
		Model(session).
		Where("s.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

// UpdateStatus transitions a session's lifecycle state with a guard on the
// expected current status.
func (db *SessionDBImpl) UpdateStatus(ctx context.Context, id shared.SessionID, from, to sessiondomain.Status, round shared.RoundNumber, phase sessiondomain.Phase) (*Session, error) {
	query := db.DB.NewUpdate().
		Model((*Session)(nil)).
		Set("status = ?", to).
		Set("current_round = ?", round).
		Set("current_phase = ?", phase).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("status = ?", from)

	if to.Terminal() {
		query = query.Set("ended_at = ?", time.Now())
	}

	result, err := query.Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to update session status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		// Either the session is gone or another writer moved it first.
		if _, err := db.GetSession(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrStaleStatus
	}

	return db.GetSession(ctx, id)
}

// SetActiveDuel records (or clears, with nil) the session's active
// sub-session.
func (db *SessionDBImpl) SetActiveDuel(ctx context.Context, id shared.SessionID, duelID *shared.DuelID) error {
	result, err := db.DB.NewUpdate().
		Model((*Session)(nil)).
		Set("active_duel_id = ?", duelID).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set active duel: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// AddParticipant seats a participant, assigning the next participant
// number within the session's transaction.
func (db *SessionDBImpl) AddParticipant(ctx context.Context, participant *Participant) error {
	return db.DB.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var maxNumber int
		err := tx.NewSelect().
			Model((*Participant)(nil)).
			ColumnExpr("COALESCE(MAX(participant_number), 0)").
			Where("session_id = ?", participant.SessionID).
			Scan(ctx, &maxNumber)
		if err != nil {
			return fmt.Errorf("failed to find next participant number: %w", err)
		}

		participant.Number = shared.ParticipantNumber(maxNumber + 1)

		if _, err := tx.NewInsert().Model(participant).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert participant: %w", err)
		}
		return nil
	})
}

// GetParticipants lists a session's seats ordered by participant number.
func (db *SessionDBImpl) GetParticipants(ctx context.Context, sessionID shared.SessionID) ([]Participant, error) {
	var participants []Participant

	err := db.DB.NewSelect().
		Model(&participants).
		Where("session_id = ?", sessionID).
		Order("participant_number ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	return participants, nil
}

// SetRoundInputs records a seat's desired slot and priority rank for the
// current round.
func (db *SessionDBImpl) SetRoundInputs(ctx context.Context, sessionID shared.SessionID, number shared.ParticipantNumber, desired *shared.Slot, priority *int) error {
	result, err := db.DB.NewUpdate().
		Model((*Participant)(nil)).
		Set("desired_slot = ?", desired).
		Set("priority_rank = ?", priority).
		Where("session_id = ?", sessionID).
		Where("participant_number = ?", number).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set round inputs: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return ErrParticipantNotFound
	}
	return nil
}

// ActiveSummaries returns every non-ended session with its seat count.
func (db *SessionDBImpl) ActiveSummaries(ctx context.Context) ([]SessionSummary, error) {
	var summaries []SessionSummary

	err := db.DB.NewSelect().
		Model((*Session)(nil)).
		ColumnExpr("s.id, s.name, s.status, s.current_round").
		ColumnExpr("COUNT(p.id) AS participant_count").
		Join("LEFT JOIN participants AS p ON p.session_id = s.id").
		Where("s.status NOT IN (?)", bun.In([]sessiondomain.Status{sessiondomain.StatusEnded, sessiondomain.StatusFinished})).
		GroupExpr("s.id, s.name, s.status, s.current_round").
		OrderExpr("s.created_at ASC").
		Scan(ctx, &summaries)
	if err != nil {
		return nil, fmt.Errorf("failed to list active sessions: %w", err)
	}
	return summaries, nil
}

// EndedBefore returns ended sessions whose end time is older than cutoff.
func (db *SessionDBImpl) EndedBefore(ctx context.Context, cutoff time.Time) ([]Session, error) {
	var sessions []Session

	err := db.DB.NewSelect().
		Model(&sessions).
		Where("status IN (?)", bun.In([]sessiondomain.Status{sessiondomain.StatusEnded, sessiondomain.StatusFinished})).
		Where("ended_at IS NOT NULL").
		Where("ended_at < ?", cutoff).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list ended sessions: %w", err)
	}
	return sessions, nil
}

// Archive snapshots an ended session into archived_sessions and removes
// the live rows in one transaction.
func (db *SessionDBImpl) Archive(ctx context.Context, id shared.SessionID) error {
	return db.DB.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		session := new(Session)
		err := tx.NewSelect().Model(session).Where("s.id = ?", id).Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to load session for archival: %w", err)
		}

		if !session.Status.Terminal() {
			return fmt.Errorf("refusing to archive session %s in status %s", id, session.Status)
		}

		var participantCount int
		err = tx.NewSelect().
			Model((*Participant)(nil)).
			ColumnExpr("COUNT(*)").
			Where("session_id = ?", id).
			Scan(ctx, &participantCount)
		if err != nil {
			return fmt.Errorf("failed to count participants for archival: %w", err)
		}

		archived := &ArchivedSession{
			ID:               session.ID,
			Name:             session.Name,
			FinalRound:       session.CurrentRound,
			ParticipantCount: participantCount,
			EndedAt:          session.EndedAt,
		}
		if _, err := tx.NewInsert().Model(archived).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert archive snapshot: %w", err)
		}

		if _, err := tx.NewDelete().Model((*Participant)(nil)).Where("session_id = ?", id).Exec(ctx); err != nil {
			return fmt.Errorf("failed to delete participants: %w", err)
		}
		if _, err := tx.NewDelete().Model((*Session)(nil)).Where("id = ?", id).Exec(ctx); err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}
		return nil
	})
}
