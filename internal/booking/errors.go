package booking

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation failed")
	ErrIneligibleUser     = errors.New("user is not eligible for this session")
	ErrDuplicateBooking   = errors.New("user already has an active booking for this session")
	ErrSessionNotBookable = errors.New("session is not open for booking")
	ErrSeatTaken          = errors.New("seat is already taken")
	ErrInvalidSeat        = errors.New("seat number is out of range")
	ErrInvalidTransition  = errors.New("invalid booking status transition")
	ErrUnauthorized       = errors.New("not authorized for this booking")
	ErrNoSeatsAvailable   = errors.New("no seats available")
	ErrSeatsAvailable     = errors.New("session still has available seats, book instead")
	ErrAlreadyWaitlisted  = errors.New("user already has a waitlist entry for this session")
)

// IsConflict reports whether err is a state conflict the caller may resolve
// by re-reading and retrying with a different intent.
func IsConflict(err error) bool {
	for _, target := range []error{
		ErrDuplicateBooking, ErrSessionNotBookable, ErrSeatTaken, ErrInvalidTransition,
		ErrNoSeatsAvailable, ErrSeatsAvailable, ErrAlreadyWaitlisted,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
