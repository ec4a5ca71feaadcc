package db

import (
	"context"
	"database/sql"
	"errors"

	"ms-booking/internal/models"

	"github.com/uptrace/bun"
)

// ---------------- BOOKINGS ----------------

func (d *DB) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	var b models.Booking
	err := d.Bun.NewSelect().
		Model(&b).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, "booking", id)
	}
	return &b, nil
}

func (d *DB) InsertBooking(ctx context.Context, b *models.Booking) error {
	_, err := d.Bun.NewInsert().Model(b).Exec(ctx)
	return err
}

func (d *DB) UpdateBooking(ctx context.Context, b *models.Booking) error {
	res, err := d.Bun.NewUpdate().
		Model(b).
		ExcludeColumn("id", "reference", "session_id", "user_id", "created_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	return checkAffected(res, "booking", b.ID)
}

// DeleteBooking is only used when legacy waitlisted rows move to the
// waitlist table.
func (d *DB) DeleteBooking(ctx context.Context, id string) error {
	_, err := d.Bun.NewDelete().
		Model((*models.Booking)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// FindActiveBooking returns the user's booking for the session that is
// neither cancelled nor rejected, or nil.
func (d *DB) FindActiveBooking(ctx context.Context, sessionID, userID string) (*models.Booking, error) {
	var b models.Booking
	err := d.Bun.NewSelect().
		Model(&b).
		Where("session_id = ?", sessionID).
		Where("user_id = ?", userID).
		Where("status NOT IN (?)", bun.In(models.InactiveStatuses)).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// FindSeatHolder returns the active booking holding seat, or nil.
func (d *DB) FindSeatHolder(ctx context.Context, sessionID string, seat int) (*models.Booking, error) {
	var b models.Booking
	err := d.Bun.NewSelect().
		Model(&b).
		Where("session_id = ?", sessionID).
		Where("seat_number = ?", seat).
		Where("status NOT IN (?)", bun.In(models.InactiveStatuses)).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ListBookings returns the session's bookings in booking order, filtered by
// status when statuses are given.
func (d *DB) ListBookings(ctx context.Context, sessionID string, statuses ...models.BookingStatus) ([]models.Booking, error) {
	var bookings []models.Booking
	q := d.Bun.NewSelect().
		Model(&bookings).
		Where("session_id = ?", sessionID)
	if len(statuses) > 0 {
		q = q.Where("status IN (?)", bun.In(statuses))
	}
	err := q.Order("booking_date ASC", "id ASC").Scan(ctx)
	if err != nil {
		return nil, err
	}
	return bookings, nil
}
