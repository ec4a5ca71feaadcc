package booking

import (
	"context"
	"fmt"

	"ms-booking/internal/models"
)

type PromotionResult struct {
	Promoted []models.Booking `json:"promoted"`
	Expired  []string         `json:"expired_entries,omitempty"`
	Failed   []string         `json:"failed_entries,omitempty"`
}

// ProcessPromotion fills free seats of the session from the head of its
// waitlist.
func (e *Engine) ProcessPromotion(ctx context.Context, sessionID string) (*PromotionResult, error) {
	var result *PromotionResult
	err := e.inSession(ctx, sessionID, func(ctx context.Context, uow *unitOfWork) error {
		if err := uow.isolated(ctx, e.migrateLegacyWaitlisted); err != nil {
			e.Logger.Error("WAITLIST", fmt.Sprintf("Legacy waitlist migration for session %s failed: %v", sessionID, err))
		}
		var err error
		result, err = e.promote(ctx, uow)
		return err
	})
	if err != nil {
		return nil, err
	}
	e.logPromotion(sessionID, result)
	return result, nil
}

// promote takes min(free seats, waiting) entries from the head of the queue.
// Each entry is promoted in its own savepoint so one failure leaves the rest
// of the batch and the caller's transaction intact. Entries whose user
// already holds a booking are expired and the freed slots retried.
func (e *Engine) promote(ctx context.Context, uow *unitOfWork) (*PromotionResult, error) {
	result := &PromotionResult{Promoted: []models.Booking{}}
	failed := make(map[string]bool)

	for uow.session.HasAvailableSeats() {
		waiting, err := uow.st.CountWaiting(ctx, uow.session.ID)
		if err != nil {
			return result, err
		}
		n := min(uow.session.Available(), waiting)
		if n == 0 {
			break
		}
		entries, err := uow.st.WaitingEntries(ctx, uow.session.ID, n+len(failed))
		if err != nil {
			return result, err
		}

		expired := 0
		for i := range entries {
			entry := entries[i]
			if failed[entry.ID] {
				continue
			}
			if !uow.session.HasAvailableSeats() {
				break
			}

			var promoted *models.Booking
			var stale bool
			err := uow.isolated(ctx, func(ctx context.Context, child *unitOfWork) error {
				var err error
				promoted, stale, err = e.promoteEntry(ctx, child, &entry)
				return err
			})
			switch {
			case err != nil:
				failed[entry.ID] = true
				result.Failed = append(result.Failed, entry.ID)
				e.Logger.Error("WAITLIST", fmt.Sprintf("Failed to promote %s from session %s: %v", entry.UserID, uow.session.ID, err))
			case stale:
				expired++
				result.Expired = append(result.Expired, entry.ID)
			default:
				result.Promoted = append(result.Promoted, *promoted)
			}
		}
		if expired == 0 {
			break
		}
	}

	if err := densify(ctx, uow); err != nil {
		return result, err
	}
	return result, nil
}

func (e *Engine) promoteEntry(ctx context.Context, uow *unitOfWork, entry *models.WaitlistEntry) (*models.Booking, bool, error) {
	existing, err := uow.st.FindActiveBooking(ctx, uow.session.ID, entry.UserID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		entry.Status = models.WaitlistExpired
		entry.UpdatedAt = uow.now
		if err := uow.st.UpdateWaitlistEntry(ctx, entry); err != nil {
			return nil, false, err
		}
		return nil, true, nil
	}

	manager, err := e.managerOf(ctx, entry.UserID)
	if err != nil {
		return nil, false, err
	}
	if !uow.session.DecrementAvailable() {
		return nil, false, fmt.Errorf("%w: session %s", ErrNoSeatsAvailable, uow.session.ID)
	}
	if err := uow.saveSession(ctx); err != nil {
		return nil, false, err
	}

	b := e.newBooking(uow, entry.UserID, nil)
	b.Notes = fmt.Sprintf("Promoted from waitlist position %d", entry.Position)
	if manager != "" {
		b.Status = models.BookingPendingApproval
		b.ManagerNotified = false
	} else {
		b.Status = models.BookingConfirmed
		b.ConfirmationDate = uow.now
	}
	if err := uow.st.InsertBooking(ctx, b); err != nil {
		return nil, false, err
	}
	if err := uow.st.DeleteWaitlistEntry(ctx, entry.ID); err != nil {
		return nil, false, err
	}

	if b.Status == models.BookingConfirmed {
		uow.notify(models.NotifyWaitlistPromoted, b.UserID, b.ID, entry.ID, "A seat opened up and your booking is confirmed")
	}
	return b, false, nil
}

func (e *Engine) logPromotion(sessionID string, result *PromotionResult) {
	if result == nil || len(result.Promoted)+len(result.Expired)+len(result.Failed) == 0 {
		return
	}
	e.Logger.LogWaitlist("PROMOTE", sessionID, fmt.Sprintf("%d promoted, %d expired, %d failed",
		len(result.Promoted), len(result.Expired), len(result.Failed)))
}
