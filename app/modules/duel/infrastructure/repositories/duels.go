package dueldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	dueldomain "github.com/Hollow-Moon-Club/gloamhall/app/modules/duel/domain"
	"github.com/Hollow-Moon-Club/gloamhall/app/shared"
)

// DuelDB handles database operations for duels.
type DuelDB interface {
	CreateDuel(ctx context.Context, duel *Duel) error
	GetDuel(ctx context.Context, id shared.DuelID) (*Duel, error)

	// SetDecision writes one side's decision, guarded on ACTIVE status at
	// the row level. Last write wins for same-side resubmission.
	SetDecision(ctx context.Context, id shared.DuelID, side dueldomain.Side, decision string) (*Duel, error)

	// UpdateStatus transitions ACTIVE → RESOLVED|CANCELLED, guarded on the
	// row still being ACTIVE.
	UpdateStatus(ctx context.Context, id shared.DuelID, to dueldomain.Status) (*Duel, error)
}

// DuelDBImpl implements DuelDB on bun.
type DuelDBImpl struct {
	DB *bun.DB
}

var _ DuelDB = (*DuelDBImpl)(nil)

// CreateDuel inserts a new ACTIVE duel.
func (db *DuelDBImpl) CreateDuel(ctx context.Context, duel *Duel) error {
	if _, err := db.DB.NewInsert().Model(duel).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create duel: %w", err)
	}
	return nil
}

// GetDuel retrieves a duel by ID.
func (db *DuelDBImpl) GetDuel(ctx context.Context, id shared.DuelID) (*Duel, error) {
	duel := new(Duel)

	err := db.DB.NewSelect().
		Model(duel).
		Where("d.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get duel: %w", err)
	}
	return duel, nil
}

// SetDecision writes the decision into the slot belonging to side. The
// WHERE status = 'ACTIVE' guard makes ACTIVE-before-decision hold at the
// row level even against concurrent resolution.
func (db *DuelDBImpl) SetDecision(ctx context.Context, id shared.DuelID, side dueldomain.Side, decision string) (*Duel, error) {
	column := "challenger_decision"
	if side == dueldomain.SideDefender {
		column = "defender_decision"
	}

	result, err := db.DB.NewUpdate().
		Model((*Duel)(nil)).
		Set("? = ?", bun.Ident(column), decision).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("status = ?", dueldomain.StatusActive).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to set %s decision: %w", side, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		// Distinguish a missing duel from one that left ACTIVE.
		if _, err := db.GetDuel(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrNotActive
	}

	return db.GetDuel(ctx, id)
}

// UpdateStatus moves an ACTIVE duel to a terminal state.
func (db *DuelDBImpl) UpdateStatus(ctx context.Context, id shared.DuelID, to dueldomain.Status) (*Duel, error) {
	query := db.DB.NewUpdate().
		Model((*Duel)(nil)).
		Set("status = ?", to).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("status = ?", dueldomain.StatusActive)

	if to == dueldomain.StatusResolved {
		query = query.Set("resolved_at = ?", time.Now())
	}

	result, err := query.Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to update duel status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		if _, err := db.GetDuel(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrNotActive
	}

	return db.GetDuel(ctx, id)
}
