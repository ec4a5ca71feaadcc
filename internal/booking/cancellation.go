package booking

import (
	"context"
	"fmt"

	"ms-booking/internal/models"
)

// Cancel cancels a booking outright. A seat it held goes back to the session
// and the waitlist is promoted in the same unit of work.
func (e *Engine) Cancel(ctx context.Context, bookingID, reason string) (*models.Booking, error) {
	b, err := e.withBooking(ctx, bookingID, func(ctx context.Context, uow *unitOfWork, b *models.Booking) error {
		return e.cancelBooking(ctx, uow, b, reason)
	})
	if err != nil {
		return nil, err
	}
	e.Logger.LogBooking("CANCEL", b.ID, reason)
	return b, nil
}

func (e *Engine) cancelBooking(ctx context.Context, uow *unitOfWork, b *models.Booking, reason string) error {
	prior := b.Status
	if err := transition(b, models.EventCancel); err != nil {
		return err
	}
	b.CancellationDate = uow.now
	b.CancellationReason = reason
	if err := uow.saveBooking(ctx, b); err != nil {
		return err
	}
	uow.notify(models.NotifyBookingCancelled, b.UserID, b.ID, "", "Your booking was cancelled")

	return e.releaseSeat(ctx, uow, prior)
}

// RequestCancellation is the user-facing cancel. A confirmed mandatory
// booking of a user with a manager needs that manager's approval and moves
// to PENDING_CANCELLATION; everything else is cancelled at once.
func (e *Engine) RequestCancellation(ctx context.Context, bookingID, userID, reason string) (*models.Booking, error) {
	var pending bool
	b, err := e.withBooking(ctx, bookingID, func(ctx context.Context, uow *unitOfWork, b *models.Booking) error {
		if b.UserID != userID {
			return fmt.Errorf("%w: booking %s belongs to another user", ErrUnauthorized, b.ID)
		}
		manager, err := e.managerOf(ctx, b.UserID)
		if err != nil {
			return err
		}

		if b.NominationType != models.NominationMandatory || b.Status != models.BookingConfirmed || manager == "" {
			return e.cancelBooking(ctx, uow, b, reason)
		}

		if err := transition(b, models.EventRequestCancellation); err != nil {
			return err
		}
		pending = true
		b.CancellationDate = uow.now
		b.CancellationReason = reason
		b.RejectedBy = ""
		b.RejectionDate = zeroTime
		b.RejectionReason = ""
		if err := uow.saveBooking(ctx, b); err != nil {
			return err
		}
		uow.notify(models.NotifyCancellationRequested, b.UserID, b.ID, "", "Your cancellation is waiting for manager approval")
		uow.notify(models.NotifyCancellationRequested, manager, b.ID, "", fmt.Sprintf("%s asked to cancel a mandatory booking", b.UserID))
		return nil
	})
	if err != nil {
		return nil, err
	}
	if pending {
		e.Logger.LogBooking("REQUEST_CANCELLATION", b.ID, fmt.Sprintf("waiting on manager of %s", userID))
	} else {
		e.Logger.LogBooking("CANCEL", b.ID, reason)
	}
	return b, nil
}

// ApproveCancellation completes a pending cancellation and frees the seat.
func (e *Engine) ApproveCancellation(ctx context.Context, bookingID, managerID string) (*models.Booking, error) {
	b, err := e.withBooking(ctx, bookingID, func(ctx context.Context, uow *unitOfWork, b *models.Booking) error {
		prior := b.Status
		if err := transition(b, models.EventApproveCancellation); err != nil {
			return err
		}
		if err := e.requireManager(ctx, b.UserID, managerID); err != nil {
			return err
		}

		b.CancellationDate = uow.now
		if err := uow.saveBooking(ctx, b); err != nil {
			return err
		}
		uow.notify(models.NotifyCancellationApproved, b.UserID, b.ID, "", "Your cancellation was approved")

		return e.releaseSeat(ctx, uow, prior)
	})
	if err != nil {
		return nil, err
	}
	e.Logger.LogBooking("APPROVE_CANCELLATION", b.ID, fmt.Sprintf("approved by %s", managerID))
	return b, nil
}

// RejectCancellation returns a pending cancellation to CONFIRMED. The seat
// was never released so capacity is untouched.
func (e *Engine) RejectCancellation(ctx context.Context, bookingID, managerID, reason string) (*models.Booking, error) {
	b, err := e.withBooking(ctx, bookingID, func(ctx context.Context, uow *unitOfWork, b *models.Booking) error {
		if err := transition(b, models.EventRejectCancellation); err != nil {
			return err
		}
		if err := e.requireManager(ctx, b.UserID, managerID); err != nil {
			return err
		}

		b.CancellationDate = zeroTime
		b.CancellationReason = ""
		b.RejectedBy = managerID
		b.RejectionDate = uow.now
		b.RejectionReason = reason
		if err := uow.saveBooking(ctx, b); err != nil {
			return err
		}
		uow.notify(models.NotifyCancellationRejected, b.UserID, b.ID, "", rejectionMessage("Your cancellation was declined", reason))
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.Logger.LogBooking("REJECT_CANCELLATION", b.ID, fmt.Sprintf("declined by %s", managerID))
	return b, nil
}

// releaseSeat returns the seat of a booking that held one and promotes the
// waitlist. Promotion problems are logged; they never undo the release.
func (e *Engine) releaseSeat(ctx context.Context, uow *unitOfWork, prior models.BookingStatus) error {
	if !prior.HoldsCapacity() {
		return nil
	}
	if !uow.session.IncrementAvailable() {
		e.Logger.Warn("CAPACITY", fmt.Sprintf("Session %s already at full availability, seat not returned", uow.session.ID))
	}
	if err := uow.saveSession(ctx); err != nil {
		return err
	}

	if err := uow.isolated(ctx, e.migrateLegacyWaitlisted); err != nil {
		e.Logger.Error("WAITLIST", fmt.Sprintf("Legacy waitlist migration for session %s failed: %v", uow.session.ID, err))
	}
	var result *PromotionResult
	err := uow.isolated(ctx, func(ctx context.Context, child *unitOfWork) error {
		var err error
		result, err = e.promote(ctx, child)
		return err
	})
	if err != nil {
		e.Logger.Error("WAITLIST", fmt.Sprintf("Promotion for session %s failed: %v", uow.session.ID, err))
		return nil
	}
	e.logPromotion(uow.session.ID, result)
	return nil
}
