package booking

import (
	"context"
	"fmt"

	"ms-booking/internal/models"
)

// CreateMandatoryBooking nominates a user onto a session. The booking is
// confirmed on the lowest free seat without approval or eligibility checks.
func (e *Engine) CreateMandatoryBooking(ctx context.Context, sessionID, userID, notes string) (*models.Booking, error) {
	if sessionID == "" || userID == "" {
		return nil, fmt.Errorf("%w: user and session are required", ErrValidation)
	}

	var b *models.Booking
	err := e.inSession(ctx, sessionID, func(ctx context.Context, uow *unitOfWork) error {
		if err := ensureNoActiveBooking(ctx, uow, userID); err != nil {
			return err
		}
		if !uow.session.IsBookable(uow.now) {
			return fmt.Errorf("%w: session %s", ErrSessionNotBookable, uow.session.ID)
		}
		if !uow.session.HasAvailableSeats() {
			return fmt.Errorf("%w: session %s", ErrNoSeatsAvailable, uow.session.ID)
		}

		seat, err := lowestFreeSeat(ctx, uow)
		if err != nil {
			return err
		}
		uow.session.DecrementAvailable()
		if err := uow.saveSession(ctx); err != nil {
			return err
		}

		b = e.newBooking(uow, userID, seat)
		b.Status = models.BookingConfirmed
		b.NominationType = models.NominationMandatory
		b.ConfirmationDate = uow.now
		b.Notes = notes
		if err := uow.st.InsertBooking(ctx, b); err != nil {
			return err
		}
		if err := e.consumeWaitlistEntry(ctx, uow, userID); err != nil {
			return err
		}
		uow.notify(models.NotifyBookingConfirmed, userID, b.ID, "", "You were nominated for this session")
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.Logger.LogBooking("NOMINATE", b.ID, fmt.Sprintf("mandatory booking for %s", userID))
	return b, nil
}

// AcceptRecommendation books a recommended session as PENDING. No seat is
// taken until the user selects one or the booking is approved.
func (e *Engine) AcceptRecommendation(ctx context.Context, sessionID, userID string) (*models.Booking, error) {
	if sessionID == "" || userID == "" {
		return nil, fmt.Errorf("%w: user and session are required", ErrValidation)
	}
	session, err := e.Store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := e.checkEligible(ctx, userID, session); err != nil {
		return nil, err
	}

	var b *models.Booking
	err = e.inSession(ctx, sessionID, func(ctx context.Context, uow *unitOfWork) error {
		if err := ensureNoActiveBooking(ctx, uow, userID); err != nil {
			return err
		}
		if !uow.session.IsBookable(uow.now) {
			return fmt.Errorf("%w: session %s", ErrSessionNotBookable, uow.session.ID)
		}
		if !uow.session.HasAvailableSeats() {
			return fmt.Errorf("%w: session %s", ErrNoSeatsAvailable, uow.session.ID)
		}

		b = e.newBooking(uow, userID, nil)
		b.Status = models.BookingPending
		b.NominationType = models.NominationRecommended
		return uow.st.InsertBooking(ctx, b)
	})
	if err != nil {
		return nil, err
	}
	e.Logger.LogBooking("RECOMMEND", b.ID, fmt.Sprintf("%s accepted a recommendation", userID))
	return b, nil
}
