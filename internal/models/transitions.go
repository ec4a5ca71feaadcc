package models

type BookingEvent string

const (
	EventApprove             BookingEvent = "APPROVE"
	EventReject              BookingEvent = "REJECT"
	EventSelectSeat          BookingEvent = "SELECT_SEAT"
	EventChangeSeat          BookingEvent = "CHANGE_SEAT"
	EventCancel              BookingEvent = "CANCEL"
	EventRequestCancellation BookingEvent = "REQUEST_CANCELLATION"
	EventApproveCancellation BookingEvent = "APPROVE_CANCELLATION"
	EventRejectCancellation  BookingEvent = "REJECT_CANCELLATION"
	EventMarkAbsent          BookingEvent = "MARK_ABSENT"
	EventComplete            BookingEvent = "COMPLETE"
)

type transitionKey struct {
	from  BookingStatus
	event BookingEvent
}

// transitions is the complete set of legal booking moves. Anything missing
// here is rejected.
var transitions = map[transitionKey]BookingStatus{
	{BookingPending, EventApprove}:         BookingConfirmed,
	{BookingPendingApproval, EventApprove}: BookingConfirmed,
	{BookingPendingApproval, EventReject}:  BookingRejected,
	{BookingPending, EventSelectSeat}:      BookingConfirmed,
	{BookingConfirmed, EventChangeSeat}:    BookingConfirmed,

	{BookingPending, EventCancel}:             BookingCancelled,
	{BookingPendingApproval, EventCancel}:     BookingCancelled,
	{BookingConfirmed, EventCancel}:           BookingCancelled,
	{BookingPendingCancellation, EventCancel}: BookingCancelled,
	{BookingWaitlisted, EventCancel}:          BookingCancelled,

	{BookingConfirmed, EventRequestCancellation}:           BookingPendingCancellation,
	{BookingPendingCancellation, EventApproveCancellation}: BookingCancelled,
	{BookingPendingCancellation, EventRejectCancellation}:  BookingConfirmed,

	{BookingConfirmed, EventMarkAbsent}: BookingNoShow,
	{BookingConfirmed, EventComplete}:   BookingCompleted,
}

// NextStatus returns the status a booking moves to when event happens in
// status from.
func NextStatus(from BookingStatus, event BookingEvent) (BookingStatus, bool) {
	to, ok := transitions[transitionKey{from: from, event: event}]
	return to, ok
}
