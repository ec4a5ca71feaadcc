package booking_api

import (
	"fmt"
	"net/http"
	"time"

	"ms-booking/internal/auth"
	"ms-booking/internal/models"
	"ms-booking/internal/utils"

	"github.com/go-chi/chi/v5"
)

type sessionRequest struct {
	Code       string               `json:"code,omitempty"`
	Title      string               `json:"title,omitempty"`
	Status     models.SessionStatus `json:"status,omitempty"`
	StartsAt   time.Time            `json:"starts_at"`
	TotalSeats *int                 `json:"total_seats"`
}

// RegisterSession upserts a session from the learning catalog.
func (h *Handler) RegisterSession(w http.ResponseWriter, r *http.Request) {
	const op = "RegisterSession"
	if _, ok := h.requireAdmin(w, r, op); !ok {
		return
	}
	var req sessionRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.badRequest(w, op, err)
		return
	}

	session, err := h.Engine.RegisterSession(r.Context(), models.Session{
		ID:         chi.URLParam(r, "sessionId"),
		Code:       req.Code,
		Title:      req.Title,
		Status:     req.Status,
		StartsAt:   req.StartsAt,
		TotalSeats: req.TotalSeats,
	})
	h.respond(w, op, "Session registered", session, err)
}

func (h *Handler) SeatMap(w http.ResponseWriter, r *http.Request) {
	seats, err := h.Engine.SeatMap(r.Context(), chi.URLParam(r, "sessionId"))
	h.respond(w, "SeatMap", "Seat map", seats, err)
}

func (h *Handler) SessionBookings(w http.ResponseWriter, r *http.Request) {
	const op = "SessionBookings"
	if _, ok := h.requireAdmin(w, r, op); !ok {
		return
	}
	var statuses []models.BookingStatus
	for _, s := range r.URL.Query()["status"] {
		statuses = append(statuses, models.BookingStatus(s))
	}
	bookings, err := h.Engine.SessionBookings(r.Context(), chi.URLParam(r, "sessionId"), statuses...)
	h.respond(w, op, fmt.Sprintf("%d bookings", len(bookings)), bookings, err)
}

func (h *Handler) SessionReport(w http.ResponseWriter, r *http.Request) {
	const op = "SessionReport"
	if _, ok := h.requireAdmin(w, r, op); !ok {
		return
	}
	report, err := h.Engine.SessionReport(r.Context(), chi.URLParam(r, "sessionId"))
	h.respond(w, op, "Session report", report, err)
}

func (h *Handler) CancelSession(w http.ResponseWriter, r *http.Request) {
	const op = "CancelSession"
	if _, ok := h.requireAdmin(w, r, op); !ok {
		return
	}
	var req reasonRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.badRequest(w, op, err)
		return
	}
	out, err := h.Engine.CancelSessionBookings(r.Context(), chi.URLParam(r, "sessionId"), req.Reason)
	h.respond(w, op, "Session cancelled", out, err)
}

func (h *Handler) GetWaitlist(w http.ResponseWriter, r *http.Request) {
	const op = "GetWaitlist"
	if _, ok := h.requireAdmin(w, r, op); !ok {
		return
	}
	entries, err := h.Engine.Waitlist(r.Context(), chi.URLParam(r, "sessionId"))
	h.respond(w, op, fmt.Sprintf("%d waiting", len(entries)), entries, err)
}

func (h *Handler) JoinWaitlist(w http.ResponseWriter, r *http.Request) {
	const op = "JoinWaitlist"
	var req struct {
		Notes string `json:"notes,omitempty"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.badRequest(w, op, err)
		return
	}
	entry, err := h.Engine.JoinWaitlist(r.Context(), chi.URLParam(r, "sessionId"), auth.UserID(r.Context()), req.Notes)
	if err != nil {
		h.writeError(w, op, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse(fmt.Sprintf("Joined waitlist at position %d", entry.Position), entry))
}

func (h *Handler) WaitlistPosition(w http.ResponseWriter, r *http.Request) {
	entry, err := h.Engine.WaitlistPosition(r.Context(), chi.URLParam(r, "sessionId"), auth.UserID(r.Context()))
	h.respond(w, "WaitlistPosition", "Waitlist position", entry, err)
}

func (h *Handler) CancelWaitlist(w http.ResponseWriter, r *http.Request) {
	const op = "CancelWaitlist"
	if _, ok := h.requireAdmin(w, r, op); !ok {
		return
	}
	n, err := h.Engine.CancelWaitlistForSession(r.Context(), chi.URLParam(r, "sessionId"))
	h.respond(w, op, "Waitlist cancelled", map[string]int{"cancelled": n}, err)
}

func (h *Handler) ProcessWaitlist(w http.ResponseWriter, r *http.Request) {
	const op = "ProcessWaitlist"
	if _, ok := h.requireAdmin(w, r, op); !ok {
		return
	}
	result, err := h.Engine.ProcessPromotion(r.Context(), chi.URLParam(r, "sessionId"))
	h.respond(w, op, "Waitlist processed", result, err)
}

func (h *Handler) RemoveFromWaitlist(w http.ResponseWriter, r *http.Request) {
	entry, err := h.Engine.RemoveFromWaitlist(r.Context(), chi.URLParam(r, "entryId"), auth.UserID(r.Context()))
	h.respond(w, "RemoveFromWaitlist", "Removed from waitlist", entry, err)
}

type nominationRequest struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

func (h *Handler) CreateMandatoryBooking(w http.ResponseWriter, r *http.Request) {
	const op = "CreateMandatoryBooking"
	if _, ok := h.requireAdmin(w, r, op); !ok {
		return
	}
	var req nominationRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.badRequest(w, op, err)
		return
	}
	b, err := h.Engine.CreateMandatoryBooking(r.Context(), req.SessionID, req.UserID, req.Notes)
	if err != nil {
		h.writeError(w, op, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Nomination booked", b))
}

func (h *Handler) AcceptRecommendation(w http.ResponseWriter, r *http.Request) {
	const op = "AcceptRecommendation"
	var req nominationRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.badRequest(w, op, err)
		return
	}
	b, err := h.Engine.AcceptRecommendation(r.Context(), req.SessionID, auth.UserID(r.Context()))
	if err != nil {
		h.writeError(w, op, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Recommendation accepted", b))
}
