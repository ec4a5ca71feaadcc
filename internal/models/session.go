package models

import (
	"time"

	"github.com/uptrace/bun"
)

type SessionStatus string

const (
	SessionScheduled  SessionStatus = "SCHEDULED"
	SessionInProgress SessionStatus = "IN_PROGRESS"
	SessionCompleted  SessionStatus = "COMPLETED"
	SessionCancelled  SessionStatus = "CANCELLED"
	SessionPostponed  SessionStatus = "POSTPONED"
)

func (s SessionStatus) Valid() bool {
	switch s {
	case SessionScheduled, SessionInProgress, SessionCompleted, SessionCancelled, SessionPostponed:
		return true
	}
	return false
}

// Session is the capacity aggregate of a learning session. AvailableSeats is
// only ever changed through DecrementAvailable and IncrementAvailable.
type Session struct {
	bun.BaseModel `bun:"table:learning_sessions,alias:ls"`

	ID             string        `bun:"id,pk" json:"id"`
	Code           string        `bun:"code,nullzero" json:"code,omitempty"`
	Title          string        `bun:"title,nullzero" json:"title,omitempty"`
	Status         SessionStatus `bun:"status,notnull" json:"status"`
	StartsAt       time.Time     `bun:"starts_at,notnull" json:"starts_at"`
	TotalSeats     *int          `bun:"total_seats" json:"total_seats"`
	AvailableSeats *int          `bun:"available_seats" json:"available_seats"`
	CreatedAt      time.Time     `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt      time.Time     `bun:"updated_at,notnull" json:"updated_at"`
}

// DecrementAvailable takes one seat. At zero, or when the counter is unset,
// it does nothing and reports false.
func (s *Session) DecrementAvailable() bool {
	if s.AvailableSeats == nil || *s.AvailableSeats <= 0 {
		return false
	}
	n := *s.AvailableSeats - 1
	s.AvailableSeats = &n
	return true
}

// IncrementAvailable gives one seat back, capped at TotalSeats. Without a
// total the increment is unconditional.
func (s *Session) IncrementAvailable() bool {
	if s.AvailableSeats == nil {
		n := 1
		if s.TotalSeats != nil && *s.TotalSeats < n {
			n = *s.TotalSeats
		}
		s.AvailableSeats = &n
		return n > 0
	}
	if s.TotalSeats != nil && *s.AvailableSeats >= *s.TotalSeats {
		return false
	}
	n := *s.AvailableSeats + 1
	s.AvailableSeats = &n
	return true
}

func (s *Session) HasAvailableSeats() bool {
	return s.AvailableSeats != nil && *s.AvailableSeats > 0
}

// Available returns the free seat count, zero when unset.
func (s *Session) Available() int {
	if s.AvailableSeats == nil {
		return 0
	}
	return *s.AvailableSeats
}

// SeatInRange reports whether seat is a valid seat number for the session.
func (s *Session) SeatInRange(seat int) bool {
	if seat < 1 {
		return false
	}
	return s.TotalSeats == nil || seat <= *s.TotalSeats
}

// IsBookable reports whether new bookings may be taken at now.
func (s *Session) IsBookable(now time.Time) bool {
	return s.Status == SessionScheduled && s.StartsAt.After(now)
}

// Seats is a helper for building optional seat counts.
func Seats(n int) *int {
	return &n
}
