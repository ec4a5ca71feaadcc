package db

import (
	"context"

	"ms-booking/internal/models"
)

// ---------------- SESSIONS ----------------

func (d *DB) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var s models.Session
	err := d.Bun.NewSelect().
		Model(&s).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, "session", id)
	}
	return &s, nil
}

// LockSession reads the session row with FOR UPDATE on PostgreSQL. SQLite
// serializes writers on its own, so the plain read is enough there.
func (d *DB) LockSession(ctx context.Context, id string) (*models.Session, error) {
	var s models.Session
	q := d.Bun.NewSelect().
		Model(&s).
		Where("id = ?", id).
		Limit(1)
	if d.isPostgres() {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		return nil, notFound(err, "session", id)
	}
	return &s, nil
}

func (d *DB) InsertSession(ctx context.Context, s *models.Session) error {
	_, err := d.Bun.NewInsert().Model(s).Exec(ctx)
	return err
}

func (d *DB) UpdateSession(ctx context.Context, s *models.Session) error {
	res, err := d.Bun.NewUpdate().
		Model(s).
		Column("code", "title", "status", "starts_at", "total_seats", "available_seats", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	return checkAffected(res, "session", s.ID)
}
