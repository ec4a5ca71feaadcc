package booking

import (
	"context"
	"fmt"
	"sort"

	"ms-booking/internal/models"
)

// SelectSeat confirms a PENDING booking on the chosen seat.
func (e *Engine) SelectSeat(ctx context.Context, bookingID string, seat int) (*models.Booking, error) {
	b, err := e.withBooking(ctx, bookingID, func(ctx context.Context, uow *unitOfWork, b *models.Booking) error {
		if err := transition(b, models.EventSelectSeat); err != nil {
			return err
		}
		if err := validateSeat(ctx, uow, seat, b.ID); err != nil {
			return err
		}
		if !uow.session.DecrementAvailable() {
			return fmt.Errorf("%w: session %s", ErrNoSeatsAvailable, uow.session.ID)
		}
		if err := uow.saveSession(ctx); err != nil {
			return err
		}

		b.SeatNumber = &seat
		b.ConfirmationDate = uow.now
		if err := uow.saveBooking(ctx, b); err != nil {
			return err
		}
		uow.notify(models.NotifyBookingConfirmed, b.UserID, b.ID, "", fmt.Sprintf("Your booking is confirmed on seat %d", seat))
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.Logger.LogBooking("SELECT_SEAT", b.ID, fmt.Sprintf("seat %d", seat))
	return b, nil
}

// ChangeSeat moves a CONFIRMED booking to another free seat. Capacity does
// not change.
func (e *Engine) ChangeSeat(ctx context.Context, bookingID string, seat int) (*models.Booking, error) {
	b, err := e.withBooking(ctx, bookingID, func(ctx context.Context, uow *unitOfWork, b *models.Booking) error {
		if err := transition(b, models.EventChangeSeat); err != nil {
			return err
		}
		if b.SeatNumber != nil && *b.SeatNumber == seat {
			return nil
		}
		if err := validateSeat(ctx, uow, seat, b.ID); err != nil {
			return err
		}

		b.SeatNumber = &seat
		if err := uow.saveBooking(ctx, b); err != nil {
			return err
		}
		uow.notify(models.NotifySeatChanged, b.UserID, b.ID, "", fmt.Sprintf("Your seat is now %d", seat))
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.Logger.LogBooking("CHANGE_SEAT", b.ID, fmt.Sprintf("seat %d", seat))
	return b, nil
}

// SeatMap lists the occupied seats of a session in seat order.
func (e *Engine) SeatMap(ctx context.Context, sessionID string) ([]models.SeatAssignment, error) {
	if _, err := e.Store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	bookings, err := e.Store.ListBookings(ctx, sessionID, models.ActiveStatuses...)
	if err != nil {
		return nil, err
	}

	seats := make([]models.SeatAssignment, 0, len(bookings))
	for _, b := range bookings {
		if !b.HasSeat() {
			continue
		}
		seats = append(seats, models.SeatAssignment{
			SeatNumber: *b.SeatNumber,
			BookingID:  b.ID,
			UserID:     b.UserID,
			Status:     b.Status,
		})
	}
	sort.Slice(seats, func(i, j int) bool { return seats[i].SeatNumber < seats[j].SeatNumber })
	return seats, nil
}

// lowestFreeSeat returns the first seat number no active booking holds, or
// nil when the session has no seat total or every seat is held.
func lowestFreeSeat(ctx context.Context, uow *unitOfWork) (*int, error) {
	if uow.session.TotalSeats == nil {
		return nil, nil
	}
	bookings, err := uow.st.ListBookings(ctx, uow.session.ID, models.ActiveStatuses...)
	if err != nil {
		return nil, err
	}
	taken := make(map[int]bool, len(bookings))
	for _, b := range bookings {
		if b.HasSeat() {
			taken[*b.SeatNumber] = true
		}
	}
	for seat := 1; seat <= *uow.session.TotalSeats; seat++ {
		if !taken[seat] {
			s := seat
			return &s, nil
		}
	}
	return nil, nil
}
