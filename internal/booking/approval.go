package booking

import (
	"context"
	"fmt"

	"ms-booking/internal/models"
)

// Approve confirms a PENDING_APPROVAL or PENDING booking. A user's direct
// manager is the only approver when one exists. Approving a PENDING booking
// takes a seat from the session.
func (e *Engine) Approve(ctx context.Context, bookingID, approverID string) (*models.Booking, error) {
	b, err := e.withBooking(ctx, bookingID, func(ctx context.Context, uow *unitOfWork, b *models.Booking) error {
		prior := b.Status
		if err := transition(b, models.EventApprove); err != nil {
			return err
		}

		manager, err := e.managerOf(ctx, b.UserID)
		if err != nil {
			return err
		}
		if manager != "" && manager != approverID {
			return fmt.Errorf("%w: only the direct manager of %s may approve", ErrUnauthorized, b.UserID)
		}

		if prior == models.BookingPending {
			if !uow.session.DecrementAvailable() {
				return fmt.Errorf("%w: session %s", ErrNoSeatsAvailable, uow.session.ID)
			}
			if err := uow.saveSession(ctx); err != nil {
				return err
			}
		}

		b.ApprovedBy = approverID
		b.ApprovalDate = uow.now
		b.ConfirmationDate = uow.now
		if err := uow.saveBooking(ctx, b); err != nil {
			return err
		}
		uow.notify(models.NotifyBookingApproved, b.UserID, b.ID, "", "Your booking was approved")
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.Logger.LogBooking("APPROVE", b.ID, fmt.Sprintf("approved by %s", approverID))
	return b, nil
}

// Reject turns down a PENDING_APPROVAL booking and gives its seat back to
// the waitlist. Like Approve, only the direct manager may decide when the
// user has one.
func (e *Engine) Reject(ctx context.Context, bookingID, managerID, reason string) (*models.Booking, error) {
	b, err := e.withBooking(ctx, bookingID, func(ctx context.Context, uow *unitOfWork, b *models.Booking) error {
		prior := b.Status
		if err := transition(b, models.EventReject); err != nil {
			return err
		}

		manager, err := e.managerOf(ctx, b.UserID)
		if err != nil {
			return err
		}
		if manager != "" && manager != managerID {
			return fmt.Errorf("%w: only the direct manager of %s may reject", ErrUnauthorized, b.UserID)
		}

		b.RejectedBy = managerID
		b.RejectionDate = uow.now
		b.RejectionReason = reason
		if err := uow.saveBooking(ctx, b); err != nil {
			return err
		}
		uow.notify(models.NotifyBookingRejected, b.UserID, b.ID, "", rejectionMessage("Your booking was rejected", reason))

		return e.releaseSeat(ctx, uow, prior)
	})
	if err != nil {
		return nil, err
	}
	e.Logger.LogBooking("REJECT", b.ID, fmt.Sprintf("rejected by %s", managerID))
	return b, nil
}

func rejectionMessage(base, reason string) string {
	if reason == "" {
		return base
	}
	return base + ": " + reason
}
