package booking_api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ms-booking/internal/auth"
	"ms-booking/internal/booking"
	"ms-booking/internal/booking/db"
	"ms-booking/internal/checkin"
	"ms-booking/internal/database"
	"ms-booking/internal/directory"
	"ms-booking/internal/lock"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/sse"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("handler-test-secret")

const testDirectory = `
users:
  - id: alice
    manager: maria
  - id: bob
  - id: carol
  - id: maria
  - id: root
    admin: true
`

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type apiFixture struct {
	handler *Handler
	router  http.Handler
	events  *sse.BookingEventEmitter
}

func setupAPI(t *testing.T) *apiFixture {
	bunDB, err := database.OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { bunDB.Close() })

	dir, err := directory.Parse([]byte(testDirectory))
	require.NoError(t, err)
	events := sse.NewBookingEventEmitter()
	engine := booking.NewEngine(db.New(bunDB), lock.NewKeyedMutex(), dir, dir, events, logger.Discard())
	passes, err := checkin.NewQRGenerator("qr-test-secret")
	require.NoError(t, err)

	h := NewHandler(engine, dir, passes, events, &auth.HMACVerifier{Secret: testSecret}, logger.Discard())
	return &apiFixture{handler: h, router: h.Routes(), events: events}
}

func token(t *testing.T, userID string) string {
	tok, err := auth.IssueToken(testSecret, userID, time.Hour)
	require.NoError(t, err)
	return tok
}

func (f *apiFixture) do(t *testing.T, method, path, userID string, body any) (*httptest.ResponseRecorder, envelope) {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, userID))
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func (f *apiFixture) session(t *testing.T, id string, seats int) {
	rec, env := f.do(t, http.MethodPut, "/api/sessions/"+id, "root", map[string]any{
		"code":        "GO-101",
		"title":       "Go basics",
		"starts_at":   time.Now().UTC().Add(48 * time.Hour),
		"total_seats": seats,
	})
	require.Equal(t, http.StatusOK, rec.Code, env.Error)
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestRequestsWithoutTokenAreRejected(t *testing.T) {
	f := setupAPI(t)
	rec, env := f.do(t, http.MethodGet, "/api/bookings/x", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, env.Success)
}

func TestOnlyAdminsRegisterSessions(t *testing.T) {
	f := setupAPI(t)
	rec, _ := f.do(t, http.MethodPut, "/api/sessions/s1", "bob", map[string]any{"total_seats": 3})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestBookingApprovalAndCheckIn(t *testing.T) {
	f := setupAPI(t)
	f.session(t, "s1", 2)

	rec, env := f.do(t, http.MethodPost, "/api/bookings", "alice", map[string]any{"session_id": "s1"})
	require.Equal(t, http.StatusCreated, rec.Code, env.Error)
	out := decode[booking.Outcome](t, env.Data)
	require.NotNil(t, out.Booking)
	assert.Equal(t, models.BookingPendingApproval, out.Booking.Status)
	path := "/api/bookings/" + out.Booking.ID

	rec, _ = f.do(t, http.MethodGet, path, "bob", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, "other users cannot read the booking")

	rec, _ = f.do(t, http.MethodPost, path+"/approve", "bob", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, env = f.do(t, http.MethodPost, path+"/approve", "maria", nil)
	require.Equal(t, http.StatusOK, rec.Code, env.Error)
	approved := decode[models.Booking](t, env.Data)
	assert.Equal(t, models.BookingConfirmed, approved.Status)
	assert.Equal(t, "maria", approved.ApprovedBy)

	rec, _ = f.do(t, http.MethodGet, path+"/qr", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))

	pass, err := f.handler.Passes.Seal(checkin.PassFor(&approved, time.Now()))
	require.NoError(t, err)

	rec, _ = f.do(t, http.MethodPost, "/api/checkin", "maria", map[string]string{"token": pass})
	assert.Equal(t, http.StatusForbidden, rec.Code, "only admins scan passes")

	rec, _ = f.do(t, http.MethodPost, "/api/checkin", "root", map[string]string{"token": "garbage"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = f.do(t, http.MethodPost, "/api/checkin", "root", map[string]string{"token": pass})
	require.Equal(t, http.StatusOK, rec.Code, env.Error)
	assert.Equal(t, models.AttendancePresent, decode[models.Booking](t, env.Data).AttendanceStatus)
}

func TestQRNeedsConfirmedBooking(t *testing.T) {
	f := setupAPI(t)
	f.session(t, "s1", 2)

	_, env := f.do(t, http.MethodPost, "/api/bookings", "alice", map[string]any{"session_id": "s1"})
	out := decode[booking.Outcome](t, env.Data)

	rec, _ := f.do(t, http.MethodGet, "/api/bookings/"+out.Booking.ID+"/qr", "alice", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestFullSessionWaitlistsAndPromotes(t *testing.T) {
	f := setupAPI(t)
	f.session(t, "s1", 1)

	rec, env := f.do(t, http.MethodPost, "/api/bookings", "bob", map[string]any{"session_id": "s1"})
	require.Equal(t, http.StatusCreated, rec.Code, env.Error)
	bobBooking := decode[booking.Outcome](t, env.Data).Booking

	rec, env = f.do(t, http.MethodPost, "/api/bookings", "carol", map[string]any{"session_id": "s1"})
	require.Equal(t, http.StatusAccepted, rec.Code, env.Error)
	queued := decode[booking.Outcome](t, env.Data)
	assert.True(t, queued.IsWaitlisted())

	rec, env = f.do(t, http.MethodGet, "/api/sessions/s1/waitlist/position", "carol", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[models.WaitlistEntry](t, env.Data).Position)

	rec, _ = f.do(t, http.MethodPost, "/api/bookings/"+bobBooking.ID+"/cancel", "bob", map[string]string{"reason": "x"})
	assert.Equal(t, http.StatusForbidden, rec.Code, "users request cancellation instead")

	rec, env = f.do(t, http.MethodPost, "/api/bookings/"+bobBooking.ID+"/cancellation-request", "bob", map[string]string{"reason": "clash"})
	require.Equal(t, http.StatusOK, rec.Code, env.Error)
	assert.Equal(t, models.BookingCancelled, decode[models.Booking](t, env.Data).Status)

	rec, env = f.do(t, http.MethodGet, "/api/sessions/s1/bookings?status=CONFIRMED", "root", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	confirmed := decode[[]models.Booking](t, env.Data)
	require.Len(t, confirmed, 1)
	assert.Equal(t, "carol", confirmed[0].UserID)

	rec, _ = f.do(t, http.MethodGet, "/api/sessions/s1/waitlist/position", "carol", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestErrorStatusMapping(t *testing.T) {
	f := setupAPI(t)
	f.session(t, "s1", 3)

	rec, _ := f.do(t, http.MethodPost, "/api/bookings", "bob", map[string]any{"session_id": "missing"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = f.do(t, http.MethodPost, "/api/bookings", "bob", map[string]any{"session_id": "s1", "seat_number": 9})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.do(t, http.MethodPost, "/api/bookings", "bob", map[string]any{"session_id": "s1", "unknown": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.do(t, http.MethodPost, "/api/bookings", "bob", map[string]any{"session_id": "s1", "user_id": "carol"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = f.do(t, http.MethodPost, "/api/bookings", "bob", map[string]any{"session_id": "s1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec, env := f.do(t, http.MethodPost, "/api/bookings", "bob", map[string]any{"session_id": "s1"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, env.Error, "active booking")

	rec, _ = f.do(t, http.MethodPost, "/api/sessions/s1/waitlist", "carol", nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "seats are still free")
}

func TestSessionCancellationAndReport(t *testing.T) {
	f := setupAPI(t)
	f.session(t, "s1", 2)
	f.do(t, http.MethodPost, "/api/bookings", "bob", map[string]any{"session_id": "s1"})

	rec, env := f.do(t, http.MethodGet, "/api/sessions/s1/report", "root", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[booking.Report](t, env.Data)
	assert.Equal(t, 1, report.ByStatus[models.BookingConfirmed])

	rec, env = f.do(t, http.MethodPost, "/api/sessions/s1/cancel", "root", map[string]string{"reason": "trainer ill"})
	require.Equal(t, http.StatusOK, rec.Code, env.Error)
	out := decode[booking.SessionCancellation](t, env.Data)
	assert.Equal(t, 1, out.Bookings)
	assert.Equal(t, models.SessionCancelled, out.Session.Status)
}

func TestStreamEventsDeliversUserNotifications(t *testing.T) {
	f := setupAPI(t)
	f.session(t, "s1", 2)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events?access_token="+token(t, "bob"), nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewReader(resp.Body)
	line, err := lines.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: connected\n", line)

	require.Eventually(t, func() bool { return f.events.UserClientCount("bob") == 1 }, time.Second, 10*time.Millisecond)
	rec, _ := f.do(t, http.MethodPost, "/api/bookings", "bob", map[string]any{"session_id": "s1"})
	require.Equal(t, http.StatusCreated, rec.Code)

	for {
		line, err = lines.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "event: BOOKING_") {
			break
		}
	}
	assert.Equal(t, "event: BOOKING_CONFIRMED\n", line)
}

func TestSessionStreamIsAdminOnly(t *testing.T) {
	f := setupAPI(t)
	rec, _ := f.do(t, http.MethodGet, "/api/events?session_id=s1", "bob", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPassPDFUnavailableWithoutFont(t *testing.T) {
	f := setupAPI(t)
	rec, env := f.do(t, http.MethodGet, "/api/bookings/any/pass.pdf", "bob", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, checkin.ErrNoFont.Error(), env.Error)
}
