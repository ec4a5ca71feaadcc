package booking_api

import (
	"fmt"
	"net/http"
	"time"

	"ms-booking/internal/booking"
	"ms-booking/internal/checkin"
	"ms-booking/internal/models"
	"ms-booking/internal/utils"
)

// GetCheckinQR returns the PNG check-in pass of a confirmed booking to its user.
func (h *Handler) GetCheckinQR(w http.ResponseWriter, r *http.Request) {
	const op = "GetCheckinQR"
	b, caller, ok := h.loadBooking(w, r, op)
	if !ok {
		return
	}
	if caller != b.UserID {
		h.forbidden(w, op, caller)
		return
	}
	if b.Status != models.BookingConfirmed {
		utils.WriteJSON(w, http.StatusConflict, utils.ErrorResponse(op+" failed", fmt.Sprintf("booking is %s, only confirmed bookings get a pass", b.Status)))
		return
	}

	png, err := h.Passes.GenerateEncryptedQR(checkin.PassFor(b, time.Now()))
	if err != nil {
		h.writeError(w, op, err)
		return
	}
	h.Logger.LogBooking("QR", b.ID, "check-in pass issued")
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// CheckIn reads a scanned pass and records the attendee as present.
func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	const op = "CheckIn"
	if _, ok := h.requireAdmin(w, r, op); !ok {
		return
	}
	var req struct {
		Token string `json:"token"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.badRequest(w, op, err)
		return
	}

	pass, err := h.Passes.Open(req.Token)
	if err != nil {
		h.writeError(w, op, err)
		return
	}
	b, err := h.Engine.GetBooking(r.Context(), pass.BookingID)
	if err != nil {
		h.writeError(w, op, err)
		return
	}
	if b.SessionID != pass.SessionID || b.UserID != pass.UserID {
		h.writeError(w, op, fmt.Errorf("%w: pass does not match booking %s", checkin.ErrInvalidPass, b.ID))
		return
	}
	if b.Status != models.BookingConfirmed {
		h.writeError(w, op, fmt.Errorf("%w: booking is %s", booking.ErrInvalidTransition, b.Status))
		return
	}

	updated, err := h.Engine.MarkAttendance(r.Context(), b.ID, models.AttendancePresent)
	h.respond(w, op, "Checked in", updated, err)
}

// GetPassPDF returns a printable pass with the QR code for a confirmed booking.
func (h *Handler) GetPassPDF(w http.ResponseWriter, r *http.Request) {
	const op = "GetPassPDF"
	if h.PDF == nil {
		utils.WriteJSON(w, http.StatusServiceUnavailable, utils.ErrorResponse(op+" failed", checkin.ErrNoFont.Error()))
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
	if b.Status != models.BookingConfirmed {
		utils.WriteJSON(w, http.StatusConflict, utils.ErrorResponse(op+" failed", fmt.Sprintf("booking is %s, only confirmed bookings get a pass", b.Status)))
		return
	}
	session, err := h.Engine.GetSession(r.Context(), b.SessionID)
	if err != nil {
		h.writeError(w, op, err)
		return
	}

	pass := checkin.PassFor(b, time.Now())
	png, err := h.Passes.GenerateEncryptedQR(pass)
	if err != nil {
		h.writeError(w, op, err)
		return
	}
	pdf, err := h.PDF.Render(checkin.PassDetails{
		Pass:         pass,
		Reference:    b.Reference,
		SessionCode:  session.Code,
		SessionTitle: session.Title,
		StartsAt:     session.StartsAt,
	}, png)
	if err != nil {
		h.writeError(w, op, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", b.Reference+".pdf"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}
