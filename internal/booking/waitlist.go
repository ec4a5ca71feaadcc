package booking

import (
	"context"
	"fmt"

	"ms-booking/internal/models"

	"github.com/google/uuid"
)

// JoinWaitlist queues the user on a full session.
func (e *Engine) JoinWaitlist(ctx context.Context, sessionID, userID, notes string) (*models.WaitlistEntry, error) {
	if sessionID == "" || userID == "" {
		return nil, fmt.Errorf("%w: user and session are required", ErrValidation)
	}

	var entry *models.WaitlistEntry
	err := e.inSession(ctx, sessionID, func(ctx context.Context, uow *unitOfWork) error {
		if !uow.session.IsBookable(uow.now) {
			return fmt.Errorf("%w: session %s", ErrSessionNotBookable, uow.session.ID)
		}
		if uow.session.HasAvailableSeats() {
			return fmt.Errorf("%w: %d free", ErrSeatsAvailable, uow.session.Available())
		}
		var err error
		entry, err = e.enqueue(ctx, uow, userID, notes)
		return err
	})
	if err != nil {
		return nil, err
	}
	e.Logger.LogWaitlist("JOIN", sessionID, fmt.Sprintf("%s at position %d", userID, entry.Position))
	return entry, nil
}

func (e *Engine) enqueue(ctx context.Context, uow *unitOfWork, userID, notes string) (*models.WaitlistEntry, error) {
	existing, err := uow.st.FindWaitlistEntry(ctx, uow.session.ID, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: entry %s is %s", ErrAlreadyWaitlisted, existing.ID, existing.Status)
	}
	if err := ensureNoActiveBooking(ctx, uow, userID); err != nil {
		return nil, err
	}

	last, err := uow.st.MaxWaitlistPosition(ctx, uow.session.ID)
	if err != nil {
		return nil, err
	}
	entry := &models.WaitlistEntry{
		ID:        uuid.NewString(),
		SessionID: uow.session.ID,
		UserID:    userID,
		Position:  last + 1,
		Status:    models.WaitlistWaiting,
		Notes:     notes,
		JoinedAt:  uow.now,
		CreatedAt: uow.now,
		UpdatedAt: uow.now,
	}
	if err := uow.st.InsertWaitlistEntry(ctx, entry); err != nil {
		return nil, err
	}
	uow.notify(models.NotifyWaitlistJoined, userID, "", entry.ID, fmt.Sprintf("You are number %d on the waitlist", entry.Position))
	return entry, nil
}

// RemoveFromWaitlist lets a user leave the queue; everyone behind moves up.
func (e *Engine) RemoveFromWaitlist(ctx context.Context, entryID, userID string) (*models.WaitlistEntry, error) {
	current, err := e.Store.GetWaitlistEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}

	var entry *models.WaitlistEntry
	err = e.inSession(ctx, current.SessionID, func(ctx context.Context, uow *unitOfWork) error {
		var err error
		entry, err = uow.st.GetWaitlistEntry(ctx, entryID)
		if err != nil {
			return err
		}
		if entry.UserID != userID {
			return fmt.Errorf("%w: waitlist entry %s belongs to another user", ErrUnauthorized, entryID)
		}
		if entry.Status != models.WaitlistWaiting {
			return fmt.Errorf("%w: waitlist entry is %s", ErrInvalidTransition, entry.Status)
		}
		entry.Status = models.WaitlistRemoved
		entry.UpdatedAt = uow.now
		if err := uow.st.UpdateWaitlistEntry(ctx, entry); err != nil {
			return err
		}
		return densify(ctx, uow)
	})
	if err != nil {
		return nil, err
	}
	e.Logger.LogWaitlist("REMOVE", current.SessionID, fmt.Sprintf("%s left the queue", userID))
	return entry, nil
}

// CancelWaitlistForSession cancels every WAITING entry of the session.
func (e *Engine) CancelWaitlistForSession(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := e.inSession(ctx, sessionID, func(ctx context.Context, uow *unitOfWork) error {
		var err error
		n, err = uow.st.CancelWaiting(ctx, sessionID)
		return err
	})
	if err != nil {
		return 0, err
	}
	e.Logger.LogWaitlist("CANCEL_ALL", sessionID, fmt.Sprintf("%d entries cancelled", n))
	return n, nil
}

// Waitlist returns the WAITING entries of a session in queue order.
func (e *Engine) Waitlist(ctx context.Context, sessionID string) ([]models.WaitlistEntry, error) {
	if _, err := e.Store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return e.Store.WaitingEntries(ctx, sessionID, 0)
}

// WaitlistPosition returns the user's WAITING entry for the session.
func (e *Engine) WaitlistPosition(ctx context.Context, sessionID, userID string) (*models.WaitlistEntry, error) {
	entry, err := e.Store.FindWaitlistEntry(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if entry == nil || entry.Status != models.WaitlistWaiting {
		return nil, fmt.Errorf("%w: %s is not waiting for session %s", ErrNotFound, userID, sessionID)
	}
	return entry, nil
}

// densify renumbers WAITING entries 1..N keeping their order.
func densify(ctx context.Context, uow *unitOfWork) error {
	entries, err := uow.st.WaitingEntries(ctx, uow.session.ID, 0)
	if err != nil {
		return err
	}
	for i := range entries {
		if entries[i].Position == i+1 {
			continue
		}
		entries[i].Position = i + 1
		entries[i].UpdatedAt = uow.now
		if err := uow.st.UpdateWaitlistEntry(ctx, &entries[i]); err != nil {
			return err
		}
	}
	return nil
}
