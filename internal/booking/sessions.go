package booking

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"ms-booking/internal/models"
)

// RegisterSession creates a session or updates an existing one. On update,
// empty fields keep their stored value and a cancelled session stays
// cancelled. A new TotalSeats may not drop below the seats already held or
// the highest assigned seat number; freed seats are handed to the waitlist.
func (e *Engine) RegisterSession(ctx context.Context, in models.Session) (*models.Session, error) {
	if in.ID == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrValidation)
	}
	if in.Status != "" && !in.Status.Valid() {
		return nil, fmt.Errorf("%w: session status %q", ErrValidation, in.Status)
	}
	if in.TotalSeats != nil && *in.TotalSeats < 0 {
		return nil, fmt.Errorf("%w: total seats cannot be negative", ErrValidation)
	}

	var outbox []models.Notification
	var saved *models.Session
	var result *PromotionResult
	err := e.Locker.WithLock(ctx, sessionLockKey(in.ID), func(ctx context.Context) error {
		return e.Store.InTx(ctx, func(ctx context.Context, st Store) error {
			now := e.Now()
			session, err := st.LockSession(ctx, in.ID)
			if errors.Is(err, ErrNotFound) {
				if in.Status == "" {
					in.Status = models.SessionScheduled
				}
				in.AvailableSeats = copyInt(in.TotalSeats)
				in.CreatedAt = now
				in.UpdatedAt = now
				saved = &in
				return st.InsertSession(ctx, saved)
			}
			if err != nil {
				return err
			}

			if session.Status == models.SessionCancelled && in.Status != "" && in.Status != models.SessionCancelled {
				return fmt.Errorf("%w: session %s is cancelled and cannot move to %s", ErrValidation, session.ID, in.Status)
			}
			if err := resizeSeats(ctx, st, session, in.TotalSeats); err != nil {
				return err
			}
			if in.Code != "" {
				session.Code = in.Code
			}
			if in.Title != "" {
				session.Title = in.Title
			}
			if in.Status != "" {
				session.Status = in.Status
			}
			if !in.StartsAt.IsZero() {
				session.StartsAt = in.StartsAt
			}

			uow := &unitOfWork{st: st, session: session, now: now}
			if err := uow.saveSession(ctx); err != nil {
				return err
			}
			if session.HasAvailableSeats() && session.Status == models.SessionScheduled {
				err := uow.isolated(ctx, func(ctx context.Context, child *unitOfWork) error {
					var err error
					result, err = e.promote(ctx, child)
					return err
				})
				if err != nil {
					e.Logger.Error("WAITLIST", fmt.Sprintf("Promotion for session %s failed: %v", session.ID, err))
				}
			}
			saved = session
			outbox = uow.outbox
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	e.dispatch(ctx, outbox)
	e.logPromotion(saved.ID, result)
	e.Logger.Info("SESSION", fmt.Sprintf("Registered session %s (%s, %d/%d seats free)", saved.ID, saved.Status, saved.Available(), intOr(saved.TotalSeats, 0)))
	return saved, nil
}

// seatHoldingStatuses are the statuses whose bookings occupy one unit of
// the session's capacity. Attended and missed bookings keep theirs.
var seatHoldingStatuses = []models.BookingStatus{
	models.BookingPendingApproval, models.BookingConfirmed, models.BookingPendingCancellation,
	models.BookingNoShow, models.BookingCompleted,
}

// resizeSeats recomputes availability from the bookings on record. It must
// run under the session lock.
func resizeSeats(ctx context.Context, st Store, s *models.Session, total *int) error {
	if total == nil {
		return nil
	}
	bookings, err := st.ListBookings(ctx, s.ID, models.ActiveStatuses...)
	if err != nil {
		return err
	}
	held, highest := 0, 0
	for _, b := range bookings {
		if slices.Contains(seatHoldingStatuses, b.Status) {
			held++
		}
		if b.HasSeat() {
			highest = max(highest, *b.SeatNumber)
		}
	}
	if *total < held {
		return fmt.Errorf("%w: session %s has %d seats taken, cannot shrink to %d", ErrValidation, s.ID, held, *total)
	}
	if *total < highest {
		return fmt.Errorf("%w: seat %d of session %s is assigned, cannot shrink to %d", ErrValidation, highest, s.ID, *total)
	}

	available := *total - held
	s.TotalSeats = copyInt(total)
	s.AvailableSeats = &available
	return nil
}

type SessionCancellation struct {
	Session         *models.Session `json:"session"`
	Bookings        int             `json:"bookings_cancelled"`
	WaitlistEntries int             `json:"waitlist_entries_cancelled"`
}

// CancelSessionBookings cancels the session, every live booking on it and its
// waitlist. Seats are returned but nobody is promoted.
func (e *Engine) CancelSessionBookings(ctx context.Context, sessionID, reason string) (*SessionCancellation, error) {
	out := &SessionCancellation{}
	err := e.inSession(ctx, sessionID, func(ctx context.Context, uow *unitOfWork) error {
		bookings, err := uow.st.ListBookings(ctx, sessionID,
			models.BookingPending, models.BookingPendingApproval, models.BookingConfirmed,
			models.BookingPendingCancellation, models.BookingWaitlisted)
		if err != nil {
			return err
		}
		for i := range bookings {
			b := &bookings[i]
			prior := b.Status
			if err := transition(b, models.EventCancel); err != nil {
				return err
			}
			b.CancellationDate = uow.now
			b.CancellationReason = reason
			if err := uow.saveBooking(ctx, b); err != nil {
				return err
			}
			if prior.HoldsCapacity() {
				uow.session.IncrementAvailable()
			}
			uow.notify(models.NotifySessionCancelled, b.UserID, b.ID, "", rejectionMessage("The session was cancelled", reason))
			out.Bookings++
		}

		waiting, err := uow.st.WaitingEntries(ctx, sessionID, 0)
		if err != nil {
			return err
		}
		for _, entry := range waiting {
			uow.notify(models.NotifySessionCancelled, entry.UserID, "", entry.ID, rejectionMessage("The session was cancelled", reason))
		}
		if out.WaitlistEntries, err = uow.st.CancelWaiting(ctx, sessionID); err != nil {
			return err
		}

		uow.session.Status = models.SessionCancelled
		if err := uow.saveSession(ctx); err != nil {
			return err
		}
		out.Session = uow.session
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.Logger.Info("SESSION", fmt.Sprintf("Cancelled session %s: %d bookings, %d waitlist entries", sessionID, out.Bookings, out.WaitlistEntries))
	return out, nil
}

func (e *Engine) GetSession(ctx context.Context, id string) (*models.Session, error) {
	return e.Store.GetSession(ctx, id)
}

func (e *Engine) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	return e.Store.GetBooking(ctx, id)
}

// SessionBookings lists a session's bookings, optionally by status.
func (e *Engine) SessionBookings(ctx context.Context, sessionID string, statuses ...models.BookingStatus) ([]models.Booking, error) {
	if _, err := e.Store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return e.Store.ListBookings(ctx, sessionID, statuses...)
}

// IsOwnerOrManager reports whether actorID booked b or manages whoever did.
func (e *Engine) IsOwnerOrManager(ctx context.Context, b *models.Booking, actorID string) (bool, error) {
	if actorID == "" {
		return false, nil
	}
	if b.UserID == actorID {
		return true, nil
	}
	manager, err := e.managerOf(ctx, b.UserID)
	if err != nil {
		return false, err
	}
	return manager != "" && manager == actorID, nil
}

type Report struct {
	Session       *models.Session                 `json:"session"`
	ByStatus      map[models.BookingStatus]int    `json:"by_status"`
	ByAttendance  map[models.AttendanceStatus]int `json:"by_attendance"`
	ByCompletion  map[models.CompletionStatus]int `json:"by_completion"`
	SeatsAssigned int                             `json:"seats_assigned"`
	Waiting       int                             `json:"waiting"`
	Ratings       int                             `json:"ratings"`
	AverageRating float64                         `json:"average_rating"`
}

// SessionReport summarises bookings, attendance and feedback of a session.
func (e *Engine) SessionReport(ctx context.Context, sessionID string) (*Report, error) {
	session, err := e.Store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	bookings, err := e.Store.ListBookings(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	waiting, err := e.Store.CountWaiting(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Session:      session,
		ByStatus:     make(map[models.BookingStatus]int),
		ByAttendance: make(map[models.AttendanceStatus]int),
		ByCompletion: make(map[models.CompletionStatus]int),
		Waiting:      waiting,
	}
	total := 0
	for _, b := range bookings {
		report.ByStatus[b.Status]++
		if !b.Status.IsActive() {
			continue
		}
		report.ByAttendance[b.AttendanceStatus]++
		report.ByCompletion[b.CompletionStatus]++
		if b.HasSeat() {
			report.SeatsAssigned++
		}
		if b.FeedbackRating != nil {
			report.Ratings++
			total += *b.FeedbackRating
		}
	}
	if report.Ratings > 0 {
		report.AverageRating = float64(total) / float64(report.Ratings)
	}
	return report, nil
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}
