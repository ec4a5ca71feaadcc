package booking

import (
	"context"
	"fmt"

	"ms-booking/internal/models"

	"github.com/google/uuid"
)

// migrateLegacyWaitlisted turns WAITLISTED bookings, written before the
// waitlist table existed, into queue entries behind the current tail in
// booking order. The bookings themselves are removed.
func (e *Engine) migrateLegacyWaitlisted(ctx context.Context, uow *unitOfWork) error {
	legacy, err := uow.st.ListBookings(ctx, uow.session.ID, models.BookingWaitlisted)
	if err != nil || len(legacy) == 0 {
		return err
	}

	last, err := uow.st.MaxWaitlistPosition(ctx, uow.session.ID)
	if err != nil {
		return err
	}
	moved := 0
	for _, b := range legacy {
		existing, err := uow.st.FindWaitlistEntry(ctx, uow.session.ID, b.UserID)
		if err != nil {
			return err
		}
		if existing == nil {
			last++
			entry := &models.WaitlistEntry{
				ID:        uuid.NewString(),
				SessionID: uow.session.ID,
				UserID:    b.UserID,
				Position:  last,
				Status:    models.WaitlistWaiting,
				Notes:     "Migrated from booking " + b.Reference,
				JoinedAt:  b.BookingDate,
				CreatedAt: uow.now,
				UpdatedAt: uow.now,
			}
			if err := uow.st.InsertWaitlistEntry(ctx, entry); err != nil {
				return err
			}
			moved++
		}
		if err := uow.st.DeleteBooking(ctx, b.ID); err != nil {
			return err
		}
	}

	e.Logger.LogWaitlist("MIGRATE", uow.session.ID, fmt.Sprintf("%d legacy bookings moved to the waitlist", moved))
	return nil
}
