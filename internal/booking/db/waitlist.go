package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ms-booking/internal/models"
)

// ---------------- WAITLIST ----------------

func (d *DB) GetWaitlistEntry(ctx context.Context, id string) (*models.WaitlistEntry, error) {
	var e models.WaitlistEntry
	err := d.Bun.NewSelect().
		Model(&e).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, "waitlist entry", id)
	}
	return &e, nil
}

// FindWaitlistEntry returns the user's entry for the session in any status,
// or nil.
func (d *DB) FindWaitlistEntry(ctx context.Context, sessionID, userID string) (*models.WaitlistEntry, error) {
	var e models.WaitlistEntry
	err := d.Bun.NewSelect().
		Model(&e).
		Where("session_id = ?", sessionID).
		Where("user_id = ?", userID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (d *DB) InsertWaitlistEntry(ctx context.Context, e *models.WaitlistEntry) error {
	_, err := d.Bun.NewInsert().Model(e).Exec(ctx)
	return err
}

func (d *DB) UpdateWaitlistEntry(ctx context.Context, e *models.WaitlistEntry) error {
	res, err := d.Bun.NewUpdate().
		Model(e).
		Column("position", "status", "notes", "notified_at", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	return checkAffected(res, "waitlist entry", e.ID)
}

func (d *DB) DeleteWaitlistEntry(ctx context.Context, id string) error {
	res, err := d.Bun.NewDelete().
		Model((*models.WaitlistEntry)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return checkAffected(res, "waitlist entry", id)
}

func (d *DB) WaitingEntries(ctx context.Context, sessionID string, limit int) ([]models.WaitlistEntry, error) {
	var entries []models.WaitlistEntry
	q := d.Bun.NewSelect().
		Model(&entries).
		Where("session_id = ?", sessionID).
		Where("status = ?", models.WaitlistWaiting).
		Order("position ASC", "joined_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return entries, nil
}

func (d *DB) CountWaiting(ctx context.Context, sessionID string) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.WaitlistEntry)(nil)).
		Where("session_id = ?", sessionID).
		Where("status = ?", models.WaitlistWaiting).
		Count(ctx)
}

// MaxWaitlistPosition is the highest position among WAITING entries, zero
// for an empty queue.
func (d *DB) MaxWaitlistPosition(ctx context.Context, sessionID string) (int, error) {
	var max int
	err := d.Bun.NewSelect().
		Table("waitlist_entries").
		ColumnExpr("COALESCE(MAX(position), 0)").
		Where("session_id = ?", sessionID).
		Where("status = ?", models.WaitlistWaiting).
		Scan(ctx, &max)
	if err != nil {
		return 0, err
	}
	return max, nil
}

func (d *DB) CancelWaiting(ctx context.Context, sessionID string) (int, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.WaitlistEntry)(nil)).
		Set("status = ?", models.WaitlistCancelled).
		Set("updated_at = ?", time.Now().UTC()).
		Where("session_id = ?", sessionID).
		Where("status = ?", models.WaitlistWaiting).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
