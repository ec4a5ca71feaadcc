package booking_api

import (
	"context"
	"fmt"
	"net/http"

	"ms-booking/internal/auth"
	"ms-booking/internal/booking"
	"ms-booking/internal/models"
	"ms-booking/internal/utils"

	"github.com/go-chi/chi/v5"
)

type createBookingRequest struct {
	SessionID  string `json:"session_id"`
	UserID     string `json:"user_id,omitempty"`
	SeatNumber *int   `json:"seat_number,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

type seatRequest struct {
	SeatNumber int `json:"seat_number"`
}

func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	const op = "CreateBooking"
	caller := auth.UserID(r.Context())

	var req createBookingRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.badRequest(w, op, err)
		return
	}
	if req.UserID == "" {
		req.UserID = caller
	}
	if req.UserID != caller && !h.isAdmin(caller) {
		h.forbidden(w, op, caller)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("%s: user=%s session=%s", op, req.UserID, req.SessionID))

	out, err := h.Engine.CreateBooking(r.Context(), booking.CreateBookingInput{
		UserID:     req.UserID,
		SessionID:  req.SessionID,
		SeatNumber: req.SeatNumber,
		Notes:      req.Notes,
	})
	if err != nil {
		h.writeError(w, op, err)
		return
	}
	if out.IsWaitlisted() {
		utils.WriteJSON(w, http.StatusAccepted, utils.SuccessResponse("Session is full, added to waitlist", out))
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Booking created", out))
}

func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	b, _, ok := h.loadBooking(w, r, "GetBooking")
	if !ok {
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Booking found", b))
}

func (h *Handler) ApproveBooking(w http.ResponseWriter, r *http.Request) {
	const op = "ApproveBooking"
	b, caller, ok := h.loadBooking(w, r, op)
	if !ok {
		return
	}
	updated, err := h.Engine.Approve(r.Context(), b.ID, caller)
	h.respond(w, op, "Booking approved", updated, err)
}

func (h *Handler) RejectBooking(w http.ResponseWriter, r *http.Request) {
	const op = "RejectBooking"
	var req reasonRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.badRequest(w, op, err)
		return
	}
	b, caller, ok := h.loadBooking(w, r, op)
	if !ok {
		return
	}
	updated, err := h.Engine.Reject(r.Context(), b.ID, caller, req.Reason)
	h.respond(w, op, "Booking rejected", updated, err)
}

// CancelBooking is the direct cancellation used by the booking user's
// manager or an admin. Users go through the cancellation request.
func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	const op = "CancelBooking"
	var req reasonRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.badRequest(w, op, err)
		return
	}
	b, caller, ok := h.loadBooking(w, r, op)
	if !ok {
		return
	}
	staff, err := h.isStaff(r.Context(), b, caller)
	if err != nil {
		h.writeError(w, op, err)
		return
	}
	if !staff {
		h.forbidden(w, op, caller)
		return
	}
	updated, err := h.Engine.Cancel(r.Context(), b.ID, req.Reason)
	h.respond(w, op, "Booking cancelled", updated, err)
}

func (h *Handler) SelectSeat(w http.ResponseWriter, r *http.Request) {
	h.seatChange(w, r, "SelectSeat", h.Engine.SelectSeat)
}

func (h *Handler) ChangeSeat(w http.ResponseWriter, r *http.Request) {
	h.seatChange(w, r, "ChangeSeat", h.Engine.ChangeSeat)
}

func (h *Handler) seatChange(w http.ResponseWriter, r *http.Request, op string, fn func(ctx context.Context, bookingID string, seat int) (*models.Booking, error)) {
	var req seatRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.badRequest(w, op, err)
		return
	}
	b, caller, ok := h.loadBooking(w, r, op)
	if !ok {
		return
	}
	if caller != b.UserID && !h.isAdmin(caller) {
		h.forbidden(w, op, caller)
		return
	}
	updated, err := fn(r.Context(), b.ID, req.SeatNumber)
	h.respond(w, op, "Seat updated", updated, err)
}

func (h *Handler) RequestCancellation(w http.ResponseWriter, r *http.Request) {
	const op = "RequestCancellation"
	var req reasonRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.badRequest(w, op, err)
		return
	}
	caller := auth.UserID(r.Context())
	updated, err := h.Engine.RequestCancellation(r.Context(), chi.URLParam(r, "bookingId"), caller, req.Reason)
	if err == nil && updated.Status == models.BookingPendingCancellation {
		utils.WriteJSON(w, http.StatusAccepted, utils.SuccessResponse("Cancellation sent for approval", updated))
		return
	}
	h.respond(w, op, "Booking cancelled", updated, err)
}

func (h *Handler) ApproveCancellation(w http.ResponseWriter, r *http.Request) {
	caller := auth.UserID(r.Context())
	updated, err := h.Engine.ApproveCancellation(r.Context(), chi.URLParam(r, "bookingId"), caller)
	h.respond(w, "ApproveCancellation", "Cancellation approved", updated, err)
}

func (h *Handler) RejectCancellation(w http.ResponseWriter, r *http.Request) {
	const op = "RejectCancellation"
	var req reasonRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.badRequest(w, op, err)
		return
	}
	caller := auth.UserID(r.Context())
	updated, err := h.Engine.RejectCancellation(r.Context(), chi.URLParam(r, "bookingId"), caller, req.Reason)
	h.respond(w, op, "Cancellation rejected", updated, err)
}

func (h *Handler) MarkAttendance(w http.ResponseWriter, r *http.Request) {
	const op = "MarkAttendance"
	var req struct {
		Status models.AttendanceStatus `json:"status"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.badRequest(w, op, err)
		return
	}
	b, ok := h.staffBooking(w, r, op)
	if !ok {
		return
	}
	updated, err := h.Engine.MarkAttendance(r.Context(), b.ID, req.Status)
	h.respond(w, op, "Attendance recorded", updated, err)
}

func (h *Handler) MarkCompletion(w http.ResponseWriter, r *http.Request) {
	const op = "MarkCompletion"
	var req struct {
		Status models.CompletionStatus `json:"status"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.badRequest(w, op, err)
		return
	}
	b, ok := h.staffBooking(w, r, op)
	if !ok {
		return
	}
	updated, err := h.Engine.MarkCompletion(r.Context(), b.ID, req.Status)
	h.respond(w, op, "Completion recorded", updated, err)
}

func (h *Handler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	const op = "SubmitFeedback"
	var req struct {
		Rating   int    `json:"rating"`
		Comments string `json:"comments,omitempty"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.badRequest(w, op, err)
		return
	}
	b, caller, ok := h.loadBooking(w, r, op)
	if !ok {
		return
	}
	if caller != b.UserID {
		h.forbidden(w, op, caller)
		return
	}
	updated, err := h.Engine.SubmitFeedback(r.Context(), b.ID, req.Rating, req.Comments)
	h.respond(w, op, "Feedback recorded", updated, err)
}

func (h *Handler) MarkManagerNotified(w http.ResponseWriter, r *http.Request) {
	const op = "MarkManagerNotified"
	if _, ok := h.requireAdmin(w, r, op); !ok {
		return
	}
	updated, err := h.Engine.MarkManagerNotified(r.Context(), chi.URLParam(r, "bookingId"))
	h.respond(w, op, "Manager notification recorded", updated, err)
}

func (h *Handler) staffBooking(w http.ResponseWriter, r *http.Request, op string) (*models.Booking, bool) {
	b, caller, ok := h.loadBooking(w, r, op)
	if !ok {
		return nil, false
	}
	staff, err := h.isStaff(r.Context(), b, caller)
	if err != nil {
		h.writeError(w, op, err)
		return nil, false
	}
	if !staff {
		h.forbidden(w, op, caller)
		return nil, false
	}
	return b, true
}

func (h *Handler) respond(w http.ResponseWriter, op, message string, data any, err error) {
	if err != nil {
		h.writeError(w, op, err)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("%s: %s", op, message))
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse(message, data))
}
