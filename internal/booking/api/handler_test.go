package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"startickets/internal/auth"
	"startickets/internal/booking"
	"startickets/internal/booking/api"
	"startickets/internal/booking/db"
	"startickets/internal/booking/db/dbtest"
	"startickets/internal/logger"
	"startickets/internal/models"
	"startickets/internal/tickets/qr"
)

const secret = "handler-secret"

var now = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

type envelope struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	ErrorKind string          `json:"error_kind"`
}

func setup(t *testing.T) (http.Handler, *bun.DB) {
	t.Helper()
	bunDB := dbtest.Open(t)
	log := logger.NewDiscard()
	svc := booking.NewService(db.New(bunDB), log, booking.WithClock(func() time.Time { return now }))

	r := chi.NewRouter()
	api.NewHandler(svc, qr.NewGenerator(64), log).RegisterRoutes(r, auth.NewHMACVerifier(secret, ""))
	return r, bunDB
}

func token(t *testing.T, userID int64, role models.Role) string {
	t.Helper()
	tok, err := auth.SignHMAC(secret, "", userID, role, time.Hour)
	require.NoError(t, err)
	return tok
}

func call(t *testing.T, h http.Handler, method, path, tok string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var env envelope
	if w.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func TestCheckoutFlow(t *testing.T) {
	h, bunDB := setup(t)
	event := dbtest.Event(t, bunDB, now.Add(72*time.Hour))
	general := dbtest.Category(t, bunDB, event.ID, "General", 20, 100)
	customer := token(t, 7, models.RoleCustomer)

	w, env := call(t, h, http.MethodPost, "/api/checkout", customer, models.CheckoutRequest{
		EventID: event.ID,
		Lines:   []models.CheckoutLine{{CategoryID: general.ID, Quantity: 3}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var result models.CheckoutResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, 60.0, result.FinalAmount)
	assert.NotEmpty(t, result.BookingReference)

	w, env = call(t, h, http.MethodGet, fmt.Sprintf("/api/bookings/%d", result.BookingID), customer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var confirmation models.BookingConfirmation
	require.NoError(t, json.Unmarshal(env.Data, &confirmation))
	require.Len(t, confirmation.Details, 1)
	assert.Equal(t, "General", confirmation.Details[0].CategoryName)
	require.Len(t, confirmation.Details[0].Tickets, 3)
	assert.Empty(t, confirmation.Details[0].Tickets[0].QRImage)

	w, env = call(t, h, http.MethodGet, fmt.Sprintf("/api/bookings/%d?include_qr=true", result.BookingID), customer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &confirmation))
	assert.Contains(t, confirmation.Details[0].Tickets[0].QRImage, "data:image/png;base64,")

	ticketNumber := confirmation.Details[0].Tickets[0].TicketNumber
	w, _ = call(t, h, http.MethodGet, fmt.Sprintf("/api/bookings/%d/tickets/%s/qr", result.BookingID, ticketNumber), customer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))

	other := token(t, 8, models.RoleCustomer)
	w, env = call(t, h, http.MethodGet, fmt.Sprintf("/api/bookings/%d", result.BookingID), other, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, string(booking.KindForbidden), env.ErrorKind)

	w, _ = call(t, h, http.MethodPost, fmt.Sprintf("/api/bookings/%d/cancel", result.BookingID), customer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 100, dbtest.Available(t, bunDB, general.ID))

	w, env = call(t, h, http.MethodPost, fmt.Sprintf("/api/bookings/%d/cancel", result.BookingID), customer, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, string(booking.KindBookingNotCancellable), env.ErrorKind)
}

func TestCheckoutFailureReturnsAvailability(t *testing.T) {
	h, bunDB := setup(t)
	event := dbtest.Event(t, bunDB, now.Add(72*time.Hour))
	general := dbtest.Category(t, bunDB, event.ID, "General", 20, 2)

	w, env := call(t, h, http.MethodPost, "/api/checkout", token(t, 7, models.RoleCustomer), models.CheckoutRequest{
		EventID: event.ID,
		Lines:   []models.CheckoutLine{{CategoryID: general.ID, Quantity: 3}},
	})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.False(t, env.Success)
	assert.Equal(t, string(booking.KindInsufficientStock), env.ErrorKind)
	assert.Contains(t, env.Message, "2")

	var payload struct {
		Availability []models.CategoryAvailability `json:"availability"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	require.Len(t, payload.Availability, 1)
	assert.Equal(t, 2, payload.Availability[0].Available)
}

func TestCheckoutRequiresCustomer(t *testing.T) {
	h, bunDB := setup(t)
	event := dbtest.Event(t, bunDB, now.Add(72*time.Hour))
	req := models.CheckoutRequest{EventID: event.ID}

	w, _ := call(t, h, http.MethodPost, "/api/checkout", "", req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = call(t, h, http.MethodPost, "/api/checkout", token(t, 3, models.RoleEventOrganizer), req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env := call(t, h, http.MethodPost, "/api/checkout", token(t, 3, models.RoleCustomer), req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(booking.KindNoLinesSelected), env.ErrorKind)
}

func TestValidatePromoCodeEndpoint(t *testing.T) {
	h, bunDB := setup(t)
	dbtest.Promotion(t, bunDB, "SAVE10", models.DiscountPercentage, 10, nil, now)
	customer := token(t, 7, models.RoleCustomer)

	w, env := call(t, h, http.MethodPost, "/api/promotions/validate", customer, models.PromoPreviewRequest{Code: "SAVE10", Subtotal: 60})
	require.Equal(t, http.StatusOK, w.Code)
	var preview models.PromoPreview
	require.NoError(t, json.Unmarshal(env.Data, &preview))
	assert.True(t, preview.Valid)
	assert.Equal(t, 54.0, preview.FinalAmount)

	w, _ = call(t, h, http.MethodPost, "/api/promotions/validate", customer, models.PromoPreviewRequest{Subtotal: 60})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = call(t, h, http.MethodPost, "/api/promotions/validate", customer, models.PromoPreviewRequest{Code: "SAVE10", Subtotal: -5})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, string(booking.KindInvalidPromotion), env.ErrorKind)
}

func TestAvailabilityEndpoint(t *testing.T) {
	h, bunDB := setup(t)
	event := dbtest.Event(t, bunDB, now.Add(72*time.Hour))
	dbtest.Category(t, bunDB, event.ID, "VIP", 100, 5)

	w, env := call(t, h, http.MethodGet, fmt.Sprintf("/api/events/%d/availability", event.ID), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var availability []models.CategoryAvailability
	require.NoError(t, json.Unmarshal(env.Data, &availability))
	require.Len(t, availability, 1)
	assert.Equal(t, 5, availability[0].Available)

	w, _ = call(t, h, http.MethodGet, "/api/events/abc/availability", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = call(t, h, http.MethodGet, "/api/events/9999/availability", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, api.StatusFor(booking.KindEventNotFound))
	assert.Equal(t, http.StatusConflict, api.StatusFor(booking.KindCheckoutInProgress))
	assert.Equal(t, http.StatusUnprocessableEntity, api.StatusFor(booking.KindEventNotBookable))
	assert.Equal(t, http.StatusServiceUnavailable, api.StatusFor(booking.KindPersistenceFailure))
	assert.Equal(t, http.StatusInternalServerError, api.StatusFor(booking.ErrorKind("Unknown")))
}
