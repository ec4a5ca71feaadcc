package booking_api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"ms-booking/internal/auth"
	"ms-booking/internal/booking"
	"ms-booking/internal/checkin"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/sse"
	"ms-booking/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Admins answers whether a user runs sessions for the whole organization.
type Admins interface {
	IsAdmin(userID string) bool
}

type Handler struct {
	Engine   *booking.Engine
	Admins   Admins
	Passes   *checkin.QRGenerator
	PDF      *checkin.PDFRenderer
	Events   *sse.BookingEventEmitter
	Verifier auth.Verifier
	Logger   *logger.Logger
}

func NewHandler(engine *booking.Engine, admins Admins, passes *checkin.QRGenerator, events *sse.BookingEventEmitter, verifier auth.Verifier, log *logger.Logger) *Handler {
	return &Handler{
		Engine:   engine,
		Admins:   admins,
		Passes:   passes,
		Events:   events,
		Verifier: verifier,
		Logger:   log,
	}
}

// Routes returns the authenticated /api router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)
	r.Use(auth.Middleware(h.Verifier, h.Logger))

	r.Route("/api", func(r chi.Router) {
		r.Route("/bookings", func(r chi.Router) {
			r.Post("/", h.CreateBooking)
			r.Route("/{bookingId}", func(r chi.Router) {
				r.Get("/", h.GetBooking)
				r.Post("/approve", h.ApproveBooking)
				r.Post("/reject", h.RejectBooking)
				r.Post("/cancel", h.CancelBooking)
				r.Post("/seat", h.SelectSeat)
				r.Put("/seat", h.ChangeSeat)
				r.Post("/cancellation-request", h.RequestCancellation)
				r.Post("/cancellation/approve", h.ApproveCancellation)
				r.Post("/cancellation/reject", h.RejectCancellation)
				r.Post("/attendance", h.MarkAttendance)
				r.Post("/completion", h.MarkCompletion)
				r.Post("/feedback", h.SubmitFeedback)
				r.Post("/manager-notified", h.MarkManagerNotified)
				r.Get("/qr", h.GetCheckinQR)
				r.Get("/pass.pdf", h.GetPassPDF)
			})
		})

		r.Route("/sessions/{sessionId}", func(r chi.Router) {
			r.Put("/", h.RegisterSession)
			r.Get("/seats", h.SeatMap)
			r.Get("/bookings", h.SessionBookings)
			r.Get("/report", h.SessionReport)
			r.Post("/cancel", h.CancelSession)
			r.Get("/waitlist", h.GetWaitlist)
			r.Post("/waitlist", h.JoinWaitlist)
			r.Delete("/waitlist", h.CancelWaitlist)
			r.Get("/waitlist/position", h.WaitlistPosition)
			r.Post("/waitlist/process", h.ProcessWaitlist)
		})

		r.Delete("/waitlist/{entryId}", h.RemoveFromWaitlist)

		r.Post("/nominations/mandatory", h.CreateMandatoryBooking)
		r.Post("/nominations/recommended/accept", h.AcceptRecommendation)

		r.Post("/checkin", h.CheckIn)
		r.Get("/events", h.StreamEvents)
	})
	return r
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.Logger.LogAPI(r.Method, r.URL.Path, strconv.Itoa(ww.Status()), time.Since(start).String())
	})
}

// writeError maps engine errors onto HTTP status codes.
func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, booking.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, booking.ErrValidation), errors.Is(err, booking.ErrInvalidSeat), errors.Is(err, checkin.ErrInvalidPass):
		status = http.StatusBadRequest
	case errors.Is(err, booking.ErrUnauthorized), errors.Is(err, booking.ErrIneligibleUser):
		status = http.StatusForbidden
	case booking.IsConflict(err):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
		utils.WriteJSON(w, status, utils.ErrorResponse(op+" failed", "internal error"))
		return
	}
	h.Logger.Warn("API", fmt.Sprintf("%s: %v", op, err))
	utils.WriteJSON(w, status, utils.ErrorResponse(op+" failed", err.Error()))
}

func (h *Handler) forbidden(w http.ResponseWriter, op, caller string) {
	h.Logger.LogSecurity("FORBIDDEN", fmt.Sprintf("%s denied for %s", op, caller))
	utils.WriteJSON(w, http.StatusForbidden, utils.ErrorResponse(op+" failed", booking.ErrUnauthorized.Error()))
}

func (h *Handler) badRequest(w http.ResponseWriter, op string, err error) {
	h.Logger.Warn("API", fmt.Sprintf("%s: %v", op, err))
	utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse(op+" failed", err.Error()))
}

func (h *Handler) isAdmin(userID string) bool {
	return h.Admins != nil && h.Admins.IsAdmin(userID)
}

// loadBooking fetches the path booking and checks the caller may see it:
// the booking user, their manager or an admin.
func (h *Handler) loadBooking(w http.ResponseWriter, r *http.Request, op string) (*models.Booking, string, bool) {
	caller := auth.UserID(r.Context())
	b, err := h.Engine.GetBooking(r.Context(), chi.URLParam(r, "bookingId"))
	if err != nil {
		h.writeError(w, op, err)
		return nil, "", false
	}
	if h.isAdmin(caller) {
		return b, caller, true
	}
	ok, err := h.Engine.IsOwnerOrManager(r.Context(), b, caller)
	if err != nil {
		h.writeError(w, op, err)
		return nil, "", false
	}
	if !ok {
		h.forbidden(w, op, caller)
		return nil, "", false
	}
	return b, caller, true
}

// isStaff reports whether caller is an admin or the manager of the booking user.
func (h *Handler) isStaff(ctx context.Context, b *models.Booking, caller string) (bool, error) {
	if h.isAdmin(caller) {
		return true, nil
	}
	if caller == b.UserID {
		return false, nil
	}
	return h.Engine.IsOwnerOrManager(ctx, b, caller)
}

func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request, op string) (string, bool) {
	caller := auth.UserID(r.Context())
	if !h.isAdmin(caller) {
		h.forbidden(w, op, caller)
		return "", false
	}
	return caller, true
}
