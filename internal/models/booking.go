package models

import (
	"time"

	"github.com/uptrace/bun"
)

type BookingStatus string

const (
	BookingPending             BookingStatus = "PENDING"
	BookingPendingApproval     BookingStatus = "PENDING_APPROVAL"
	BookingConfirmed           BookingStatus = "CONFIRMED"
	BookingPendingCancellation BookingStatus = "PENDING_CANCELLATION"
	// BookingWaitlisted only exists on rows written before the waitlist
	// table; new bookings never use it.
	BookingWaitlisted BookingStatus = "WAITLISTED"
	BookingCancelled  BookingStatus = "CANCELLED"
	BookingRejected   BookingStatus = "REJECTED"
	BookingNoShow     BookingStatus = "NO_SHOW"
	BookingCompleted  BookingStatus = "COMPLETED"
)

// IsTerminal reports whether no further lifecycle transition is possible.
func (s BookingStatus) IsTerminal() bool {
	switch s {
	case BookingCancelled, BookingRejected, BookingCompleted, BookingNoShow:
		return true
	}
	return false
}

// IsActive reports whether the booking still counts against the user's single
// booking per session and keeps its seat number reserved. Cancelled and
// rejected bookings are history and never block a rebooking.
func (s BookingStatus) IsActive() bool {
	return s != BookingCancelled && s != BookingRejected
}

// HoldsCapacity reports whether a booking in this status has consumed one
// unit of the session's available seats.
func (s BookingStatus) HoldsCapacity() bool {
	switch s {
	case BookingPendingApproval, BookingConfirmed, BookingPendingCancellation:
		return true
	}
	return false
}

// InactiveStatuses lists statuses excluded from the active booking set.
var InactiveStatuses = []BookingStatus{BookingCancelled, BookingRejected}

var ActiveStatuses = []BookingStatus{
	BookingPending, BookingPendingApproval, BookingConfirmed, BookingPendingCancellation,
	BookingWaitlisted, BookingNoShow, BookingCompleted,
}

type NominationType string

const (
	NominationNone        NominationType = ""
	NominationMandatory   NominationType = "MANDATORY"
	NominationRecommended NominationType = "RECOMMENDED"
)

type AttendanceStatus string

const (
	AttendanceNotMarked AttendanceStatus = "NOT_MARKED"
	AttendancePresent   AttendanceStatus = "PRESENT"
	AttendanceAbsent    AttendanceStatus = "ABSENT"
	AttendancePartial   AttendanceStatus = "PARTIAL"
)

func (a AttendanceStatus) Valid() bool {
	switch a {
	case AttendanceNotMarked, AttendancePresent, AttendanceAbsent, AttendancePartial:
		return true
	}
	return false
}

type CompletionStatus string

const (
	CompletionNotStarted CompletionStatus = "NOT_STARTED"
	CompletionInProgress CompletionStatus = "IN_PROGRESS"
	CompletionCompleted  CompletionStatus = "COMPLETED"
	CompletionIncomplete CompletionStatus = "INCOMPLETE"
)

func (c CompletionStatus) Valid() bool {
	switch c {
	case CompletionNotStarted, CompletionInProgress, CompletionCompleted, CompletionIncomplete:
		return true
	}
	return false
}

type Booking struct {
	bun.BaseModel `bun:"table:bookings,alias:b"`

	ID             string         `bun:"id,pk" json:"id"`
	Reference      string         `bun:"reference,notnull" json:"reference"`
	SessionID      string         `bun:"session_id,notnull" json:"session_id"`
	UserID         string         `bun:"user_id,notnull" json:"user_id"`
	Status         BookingStatus  `bun:"status,notnull" json:"status"`
	SeatNumber     *int           `bun:"seat_number" json:"seat_number,omitempty"`
	NominationType NominationType `bun:"nomination_type,nullzero" json:"nomination_type,omitempty"`
	Notes          string         `bun:"notes,nullzero" json:"notes,omitempty"`

	BookingDate        time.Time `bun:"booking_date,notnull" json:"booking_date"`
	ConfirmationDate   time.Time `bun:"confirmation_date,nullzero" json:"confirmation_date,omitempty"`
	CancellationDate   time.Time `bun:"cancellation_date,nullzero" json:"cancellation_date,omitempty"`
	CancellationReason string    `bun:"cancellation_reason,nullzero" json:"cancellation_reason,omitempty"`

	ApprovedBy      string    `bun:"approved_by,nullzero" json:"approved_by,omitempty"`
	ApprovalDate    time.Time `bun:"approval_date,nullzero" json:"approval_date,omitempty"`
	RejectedBy      string    `bun:"rejected_by,nullzero" json:"rejected_by,omitempty"`
	RejectionDate   time.Time `bun:"rejection_date,nullzero" json:"rejection_date,omitempty"`
	RejectionReason string    `bun:"rejection_reason,nullzero" json:"rejection_reason,omitempty"`

	ManagerNotified     bool      `bun:"manager_notified,notnull" json:"manager_notified"`
	ManagerNotifiedDate time.Time `bun:"manager_notified_date,nullzero" json:"manager_notified_date,omitempty"`

	AttendanceStatus   AttendanceStatus `bun:"attendance_status,notnull" json:"attendance_status"`
	AttendanceMarkedAt time.Time        `bun:"attendance_marked_at,nullzero" json:"attendance_marked_at,omitempty"`
	CompletionStatus   CompletionStatus `bun:"completion_status,notnull" json:"completion_status"`
	CompletionDate     time.Time        `bun:"completion_date,nullzero" json:"completion_date,omitempty"`
	FeedbackRating     *int             `bun:"feedback_rating" json:"feedback_rating,omitempty"`
	FeedbackComments   string           `bun:"feedback_comments,nullzero" json:"feedback_comments,omitempty"`

	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

// HasSeat reports whether a seat number is assigned.
func (b *Booking) HasSeat() bool {
	return b.SeatNumber != nil
}

// SeatAssignment is one occupied seat of a session's seat map.
type SeatAssignment struct {
	SeatNumber int           `json:"seat_number"`
	BookingID  string        `json:"booking_id"`
	UserID     string        `json:"user_id"`
	Status     BookingStatus `json:"status"`
}
