package booking

import (
	"context"
	"fmt"

	"ms-booking/internal/models"
)

func requireAttended(b *models.Booking) error {
	switch b.Status {
	case models.BookingConfirmed, models.BookingNoShow, models.BookingCompleted:
		return nil
	}
	return fmt.Errorf("%w: booking %s is %s", ErrInvalidTransition, b.ID, b.Status)
}

// MarkAttendance records attendance. ABSENT on a confirmed booking makes it
// a NO_SHOW.
func (e *Engine) MarkAttendance(ctx context.Context, bookingID string, status models.AttendanceStatus) (*models.Booking, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: attendance status %q", ErrValidation, status)
	}
	b, err := e.withBooking(ctx, bookingID, func(ctx context.Context, uow *unitOfWork, b *models.Booking) error {
		if err := requireAttended(b); err != nil {
			return err
		}
		if status == models.AttendanceAbsent && b.Status == models.BookingConfirmed {
			if err := transition(b, models.EventMarkAbsent); err != nil {
				return err
			}
		}
		b.AttendanceStatus = status
		b.AttendanceMarkedAt = uow.now
		return uow.saveBooking(ctx, b)
	})
	if err != nil {
		return nil, err
	}
	e.Logger.LogBooking("ATTENDANCE", b.ID, string(status))
	return b, nil
}

// MarkCompletion records learning completion. COMPLETED on a confirmed
// booking closes its lifecycle.
func (e *Engine) MarkCompletion(ctx context.Context, bookingID string, status models.CompletionStatus) (*models.Booking, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: completion status %q", ErrValidation, status)
	}
	b, err := e.withBooking(ctx, bookingID, func(ctx context.Context, uow *unitOfWork, b *models.Booking) error {
		if err := requireAttended(b); err != nil {
			return err
		}
		if status == models.CompletionCompleted {
			switch b.Status {
			case models.BookingConfirmed:
				if err := transition(b, models.EventComplete); err != nil {
					return err
				}
				b.CompletionDate = uow.now
			case models.BookingNoShow:
				return fmt.Errorf("%w: a no-show cannot complete", ErrInvalidTransition)
			}
		}
		b.CompletionStatus = status
		return uow.saveBooking(ctx, b)
	})
	if err != nil {
		return nil, err
	}
	e.Logger.LogBooking("COMPLETION", b.ID, string(status))
	return b, nil
}

// SubmitFeedback stores a 1-5 rating with optional comments.
func (e *Engine) SubmitFeedback(ctx context.Context, bookingID string, rating int, comments string) (*models.Booking, error) {
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", ErrValidation)
	}
	return e.withBooking(ctx, bookingID, func(ctx context.Context, uow *unitOfWork, b *models.Booking) error {
		if b.Status != models.BookingConfirmed && b.Status != models.BookingCompleted {
			return fmt.Errorf("%w: feedback needs a confirmed or completed booking, got %s", ErrInvalidTransition, b.Status)
		}
		b.FeedbackRating = &rating
		b.FeedbackComments = comments
		return uow.saveBooking(ctx, b)
	})
}

// MarkManagerNotified flags that the approval request reached the manager.
func (e *Engine) MarkManagerNotified(ctx context.Context, bookingID string) (*models.Booking, error) {
	return e.withBooking(ctx, bookingID, func(ctx context.Context, uow *unitOfWork, b *models.Booking) error {
		if b.ManagerNotified {
			return nil
		}
		b.ManagerNotified = true
		b.ManagerNotifiedDate = uow.now
		return uow.saveBooking(ctx, b)
	})
}
