package booking

import (
	"context"

	"ms-booking/internal/models"
)

// Store is the persistence the engine needs. Lookups that find nothing
// return an error wrapping ErrNotFound, except the Find* methods which return
// nil, nil.
type Store interface {
	// InTx runs fn in a transaction. Called on a Store that is already inside
	// a transaction it opens a savepoint, so fn's writes can be rolled back
	// without aborting the outer unit of work.
	InTx(ctx context.Context, fn func(ctx context.Context, st Store) error) error

	GetSession(ctx context.Context, id string) (*models.Session, error)
	// LockSession reads the session row for update within the current
	// transaction.
	LockSession(ctx context.Context, id string) (*models.Session, error)
	InsertSession(ctx context.Context, s *models.Session) error
	UpdateSession(ctx context.Context, s *models.Session) error

	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	InsertBooking(ctx context.Context, b *models.Booking) error
	UpdateBooking(ctx context.Context, b *models.Booking) error
	DeleteBooking(ctx context.Context, id string) error
	FindActiveBooking(ctx context.Context, sessionID, userID string) (*models.Booking, error)
	FindSeatHolder(ctx context.Context, sessionID string, seat int) (*models.Booking, error)
	ListBookings(ctx context.Context, sessionID string, statuses ...models.BookingStatus) ([]models.Booking, error)

	GetWaitlistEntry(ctx context.Context, id string) (*models.WaitlistEntry, error)
	FindWaitlistEntry(ctx context.Context, sessionID, userID string) (*models.WaitlistEntry, error)
	InsertWaitlistEntry(ctx context.Context, e *models.WaitlistEntry) error
	UpdateWaitlistEntry(ctx context.Context, e *models.WaitlistEntry) error
	DeleteWaitlistEntry(ctx context.Context, id string) error
	// WaitingEntries returns WAITING entries in position order, at most limit
	// of them when limit > 0.
	WaitingEntries(ctx context.Context, sessionID string, limit int) ([]models.WaitlistEntry, error)
	CountWaiting(ctx context.Context, sessionID string) (int, error)
	MaxWaitlistPosition(ctx context.Context, sessionID string) (int, error)
	// CancelWaiting moves every WAITING entry of the session to CANCELLED.
	CancelWaiting(ctx context.Context, sessionID string) (int, error)
}

// SessionLocker serializes work on one session across goroutines and, for
// the Redis implementation, across service replicas.
type SessionLocker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// Eligibility decides whether a user may book a session.
type Eligibility interface {
	IsEligible(ctx context.Context, userID string, session *models.Session) (bool, error)
}

// ManagerLookup resolves a user's direct manager. An empty id means the user
// has none and needs no approval.
type ManagerLookup interface {
	ManagerOf(ctx context.Context, userID string) (string, error)
}

// Notifier receives events after the transition that produced them has
// committed. Errors are logged and otherwise ignored.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}
