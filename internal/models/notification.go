package models

import "time"

type NotificationKind string

const (
	NotifyBookingConfirmed      NotificationKind = "BOOKING_CONFIRMED"
	NotifyBookingPending        NotificationKind = "BOOKING_PENDING_APPROVAL"
	NotifyApprovalRequested     NotificationKind = "APPROVAL_REQUESTED"
	NotifyBookingApproved       NotificationKind = "BOOKING_APPROVED"
	NotifyBookingRejected       NotificationKind = "BOOKING_REJECTED"
	NotifyBookingCancelled      NotificationKind = "BOOKING_CANCELLED"
	NotifySeatChanged           NotificationKind = "SEAT_CHANGED"
	NotifyCancellationRequested NotificationKind = "CANCELLATION_REQUESTED"
	NotifyCancellationApproved  NotificationKind = "CANCELLATION_APPROVED"
	NotifyCancellationRejected  NotificationKind = "CANCELLATION_REJECTED"
	NotifyWaitlistJoined        NotificationKind = "WAITLIST_JOINED"
	NotifyWaitlistPromoted      NotificationKind = "WAITLIST_PROMOTED"
	NotifySessionCancelled      NotificationKind = "SESSION_CANCELLED"
)

// Notification is the fire-and-forget event handed to notifiers after a
// booking transition commits.
type Notification struct {
	ID        string           `json:"id"`
	Kind      NotificationKind `json:"kind"`
	UserID    string           `json:"user_id"`
	SessionID string           `json:"session_id"`
	BookingID string           `json:"booking_id,omitempty"`
	EntryID   string           `json:"waitlist_entry_id,omitempty"`
	Message   string           `json:"message,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}
