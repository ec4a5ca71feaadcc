package booking

import (
	"context"
	"fmt"

	"ms-booking/internal/models"
)

type CreateBookingInput struct {
	UserID     string
	SessionID  string
	SeatNumber *int
	Notes      string
}

// Outcome of a booking request: either a booking, or a waitlist entry when
// the session was full.
type Outcome struct {
	Booking    *models.Booking       `json:"booking,omitempty"`
	Waitlisted *models.WaitlistEntry `json:"waitlist_entry,omitempty"`
}

func (o *Outcome) IsWaitlisted() bool {
	return o != nil && o.Waitlisted != nil
}

// CreateBooking books a seat for the user, or queues them when no seat is
// free. Users with a manager land in PENDING_APPROVAL with the seat held.
func (e *Engine) CreateBooking(ctx context.Context, in CreateBookingInput) (*Outcome, error) {
	if in.UserID == "" || in.SessionID == "" {
		return nil, fmt.Errorf("%w: user and session are required", ErrValidation)
	}

	session, err := e.Store.GetSession(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}
	if err := e.checkEligible(ctx, in.UserID, session); err != nil {
		return nil, err
	}
	manager, err := e.managerOf(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	out := &Outcome{}
	err = e.inSession(ctx, in.SessionID, func(ctx context.Context, uow *unitOfWork) error {
		if err := ensureNoActiveBooking(ctx, uow, in.UserID); err != nil {
			return err
		}
		if !uow.session.IsBookable(uow.now) {
			return fmt.Errorf("%w: session %s is %s starting %s", ErrSessionNotBookable, uow.session.ID, uow.session.Status, uow.session.StartsAt.Format("2006-01-02 15:04"))
		}
		if in.SeatNumber != nil {
			if err := validateSeat(ctx, uow, *in.SeatNumber, ""); err != nil {
				return err
			}
		}

		if !uow.session.HasAvailableSeats() {
			entry, err := e.enqueue(ctx, uow, in.UserID, in.Notes)
			if err != nil {
				return err
			}
			out.Waitlisted = entry
			return nil
		}

		uow.session.DecrementAvailable()
		if err := uow.saveSession(ctx); err != nil {
			return err
		}

		b := e.newBooking(uow, in.UserID, in.SeatNumber)
		b.Notes = in.Notes
		if manager != "" {
			b.Status = models.BookingPendingApproval
			b.ManagerNotified = false
		} else {
			b.Status = models.BookingConfirmed
			b.ConfirmationDate = uow.now
		}
		if err := uow.st.InsertBooking(ctx, b); err != nil {
			return err
		}
		if err := e.consumeWaitlistEntry(ctx, uow, in.UserID); err != nil {
			return err
		}

		if manager != "" {
			uow.notify(models.NotifyBookingPending, b.UserID, b.ID, "", "Your booking is awaiting manager approval")
			uow.notify(models.NotifyApprovalRequested, manager, b.ID, "", fmt.Sprintf("%s requested a seat", b.UserID))
		} else {
			uow.notify(models.NotifyBookingConfirmed, b.UserID, b.ID, "", "Your booking is confirmed")
		}
		out.Booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	if out.IsWaitlisted() {
		e.Logger.LogWaitlist("JOIN", in.SessionID, fmt.Sprintf("session full, %s queued at position %d", in.UserID, out.Waitlisted.Position))
	} else {
		e.Logger.LogBooking("CREATE", out.Booking.ID, fmt.Sprintf("%s booked session %s (%s)", in.UserID, in.SessionID, out.Booking.Status))
	}
	return out, nil
}

func ensureNoActiveBooking(ctx context.Context, uow *unitOfWork, userID string) error {
	existing, err := uow.st.FindActiveBooking(ctx, uow.session.ID, userID)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("%w: %s (%s)", ErrDuplicateBooking, existing.Reference, existing.Status)
	}
	return nil
}

// validateSeat checks range and that no other active booking holds seat.
func validateSeat(ctx context.Context, uow *unitOfWork, seat int, exceptBookingID string) error {
	if !uow.session.SeatInRange(seat) {
		if uow.session.TotalSeats != nil {
			return fmt.Errorf("%w: seat %d, valid seats are 1-%d", ErrInvalidSeat, seat, *uow.session.TotalSeats)
		}
		return fmt.Errorf("%w: seat %d", ErrInvalidSeat, seat)
	}
	holder, err := uow.st.FindSeatHolder(ctx, uow.session.ID, seat)
	if err != nil {
		return err
	}
	if holder != nil && holder.ID != exceptBookingID {
		return fmt.Errorf("%w: seat %d", ErrSeatTaken, seat)
	}
	return nil
}

// consumeWaitlistEntry drops the user's WAITING entry once they hold a
// booking by other means.
func (e *Engine) consumeWaitlistEntry(ctx context.Context, uow *unitOfWork, userID string) error {
	entry, err := uow.st.FindWaitlistEntry(ctx, uow.session.ID, userID)
	if err != nil {
		return err
	}
	if entry == nil || entry.Status != models.WaitlistWaiting {
		return nil
	}
	if err := uow.st.DeleteWaitlistEntry(ctx, entry.ID); err != nil {
		return err
	}
	return densify(ctx, uow)
}
