package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ms-booking/internal/logger"
	"ms-booking/internal/models"

	"github.com/google/uuid"
)

// Engine runs every booking, waitlist and capacity change for a session as
// one unit of work: per-session lock, then a transaction that re-reads the
// session row. Notifications go out only after the transaction commits.
type Engine struct {
	Store       Store
	Locker      SessionLocker
	Eligibility Eligibility
	Managers    ManagerLookup
	Notifier    Notifier
	Logger      *logger.Logger
	Now         func() time.Time
}

func NewEngine(store Store, locker SessionLocker, eligibility Eligibility, managers ManagerLookup, notifier Notifier, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Discard()
	}
	return &Engine{
		Store:       store,
		Locker:      locker,
		Eligibility: eligibility,
		Managers:    managers,
		Notifier:    notifier,
		Logger:      log,
		Now:         func() time.Time { return time.Now().UTC() },
	}
}

var zeroTime time.Time

type unitOfWork struct {
	st      Store
	session *models.Session
	now     time.Time
	outbox  []models.Notification
}

func (u *unitOfWork) notify(kind models.NotificationKind, userID, bookingID, entryID, message string) {
	u.outbox = append(u.outbox, models.Notification{
		ID:        uuid.NewString(),
		Kind:      kind,
		UserID:    userID,
		SessionID: u.session.ID,
		BookingID: bookingID,
		EntryID:   entryID,
		Message:   message,
		CreatedAt: u.now,
	})
}

func (u *unitOfWork) saveSession(ctx context.Context) error {
	u.session.UpdatedAt = u.now
	return u.st.UpdateSession(ctx, u.session)
}

func (u *unitOfWork) saveBooking(ctx context.Context, b *models.Booking) error {
	b.UpdatedAt = u.now
	return u.st.UpdateBooking(ctx, b)
}

// isolated runs fn in a savepoint. When fn fails its writes are rolled back,
// the in-memory session is restored and its notifications are dropped.
func (u *unitOfWork) isolated(ctx context.Context, fn func(ctx context.Context, child *unitOfWork) error) error {
	available := copyInt(u.session.AvailableSeats)
	status := u.session.Status

	child := &unitOfWork{session: u.session, now: u.now}
	err := u.st.InTx(ctx, func(ctx context.Context, sp Store) error {
		child.st = sp
		return fn(ctx, child)
	})
	if err != nil {
		u.session.AvailableSeats = available
		u.session.Status = status
		return err
	}
	u.outbox = append(u.outbox, child.outbox...)
	return nil
}

func sessionLockKey(sessionID string) string {
	return "session:" + sessionID
}

func (e *Engine) inSession(ctx context.Context, sessionID string, fn func(ctx context.Context, uow *unitOfWork) error) error {
	var outbox []models.Notification

	err := e.Locker.WithLock(ctx, sessionLockKey(sessionID), func(ctx context.Context) error {
		return e.Store.InTx(ctx, func(ctx context.Context, st Store) error {
			session, err := st.LockSession(ctx, sessionID)
			if err != nil {
				return err
			}
			uow := &unitOfWork{st: st, session: session, now: e.Now()}
			if err := fn(ctx, uow); err != nil {
				return err
			}
			outbox = uow.outbox
			return nil
		})
	})
	if err != nil {
		return err
	}

	e.dispatch(ctx, outbox)
	return nil
}

// withBooking loads the booking again inside its session's unit of work and
// hands it to fn.
func (e *Engine) withBooking(ctx context.Context, bookingID string, fn func(ctx context.Context, uow *unitOfWork, b *models.Booking) error) (*models.Booking, error) {
	current, err := e.Store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	var result *models.Booking
	err = e.inSession(ctx, current.SessionID, func(ctx context.Context, uow *unitOfWork) error {
		b, err := uow.st.GetBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if err := fn(ctx, uow, b); err != nil {
			return err
		}
		result = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (e *Engine) dispatch(ctx context.Context, outbox []models.Notification) {
	if e.Notifier == nil || len(outbox) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, n := range outbox {
		if err := e.Notifier.Notify(ctx, n); err != nil {
			e.Logger.Warn("NOTIFY", fmt.Sprintf("Failed to deliver %s to %s: %v", n.Kind, n.UserID, err))
		}
	}
}

func (e *Engine) managerOf(ctx context.Context, userID string) (string, error) {
	if e.Managers == nil {
		return "", nil
	}
	manager, err := e.Managers.ManagerOf(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("manager lookup for %s: %w", userID, err)
	}
	return manager, nil
}

// requireManager checks that actorID is userID's direct manager.
func (e *Engine) requireManager(ctx context.Context, userID, actorID string) error {
	manager, err := e.managerOf(ctx, userID)
	if err != nil {
		return err
	}
	if manager == "" {
		return fmt.Errorf("%w: user %s has no manager", ErrUnauthorized, userID)
	}
	if manager != actorID {
		return fmt.Errorf("%w: only the direct manager of %s may decide", ErrUnauthorized, userID)
	}
	return nil
}

func (e *Engine) checkEligible(ctx context.Context, userID string, session *models.Session) error {
	if e.Eligibility == nil {
		return nil
	}
	ok, err := e.Eligibility.IsEligible(ctx, userID, session)
	if err != nil {
		return fmt.Errorf("eligibility check for %s: %w", userID, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s for session %s", ErrIneligibleUser, userID, session.ID)
	}
	return nil
}

func transition(b *models.Booking, event models.BookingEvent) error {
	to, ok := models.NextStatus(b.Status, event)
	if !ok {
		return fmt.Errorf("%w: %s is not allowed from %s", ErrInvalidTransition, strings.ToLower(string(event)), b.Status)
	}
	b.Status = to
	return nil
}

func (e *Engine) newBooking(uow *unitOfWork, userID string, seat *int) *models.Booking {
	return &models.Booking{
		ID:               uuid.NewString(),
		Reference:        newReference(),
		SessionID:        uow.session.ID,
		UserID:           userID,
		SeatNumber:       copyInt(seat),
		BookingDate:      uow.now,
		AttendanceStatus: models.AttendanceNotMarked,
		CompletionStatus: models.CompletionNotStarted,
		CreatedAt:        uow.now,
		UpdatedAt:        uow.now,
	}
}

func newReference() string {
	return "BK-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
