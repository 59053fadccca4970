package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"startickets/internal/auth"
	"startickets/internal/booking"
	"startickets/internal/logger"
	"startickets/internal/models"
	"startickets/internal/tickets/qr"
	"startickets/internal/utils"
)

type Handler struct {
	Service *booking.Service
	QR      *qr.Generator
	Logger  *logger.Logger
}

func NewHandler(service *booking.Service, qrGen *qr.Generator, log *logger.Logger) *Handler {
	return &Handler{Service: service, QR: qrGen, Logger: log}
}

// RegisterRoutes mounts the booking API. Checkout and promo preview are for
// customers; booking reads and cancellation are checked against ownership.
func (h *Handler) RegisterRoutes(r chi.Router, verifier auth.Verifier) {
	r.Get("/api/events/{eventId}/availability", h.GetAvailability)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(verifier, h.Logger))

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(h.Logger, models.RoleCustomer))
			r.Post("/api/checkout", h.SubmitCheckout)
			r.Post("/api/promotions/validate", h.ValidatePromoCode)
		})

		r.Get("/api/bookings/{bookingId}", h.GetBooking)
		r.Get("/api/bookings/{bookingId}/tickets/{ticketNumber}/qr", h.GetTicketQR)
		r.Post("/api/bookings/{bookingId}/cancel", h.CancelBooking)
	})
}

func (h *Handler) SubmitCheckout(w http.ResponseWriter, r *http.Request) {
	authCtx, _ := auth.FromContext(r.Context())

	var req models.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	result, err := h.Service.SubmitCheckout(r.Context(), authCtx, req)
	if err != nil {
		// re-present the cart with what is left right now
		var payload interface{}
		if availability, aerr := h.Service.GetAvailability(r.Context(), req.EventID); aerr == nil {
			payload = map[string]interface{}{"availability": availability}
		}
		h.writeError(w, err, payload)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Booking confirmed", result))
}

func (h *Handler) ValidatePromoCode(w http.ResponseWriter, r *http.Request) {
	var req models.PromoPreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}
	if req.Code == "" {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Promo code cannot be empty", "missing code"))
		return
	}

	preview, err := h.Service.ValidatePromoCode(r.Context(), req.Code, req.Subtotal)
	if err != nil {
		h.writeError(w, err, nil)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse(preview.Message, preview))
}

func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	authCtx, _ := auth.FromContext(r.Context())
	bookingID, ok := h.pathID(w, r, "bookingId")
	if !ok {
		return
	}

	b, err := h.Service.GetBooking(r.Context(), authCtx, bookingID)
	if err != nil {
		h.writeError(w, err, nil)
		return
	}

	confirmation := models.NewBookingConfirmation(b)
	if r.URL.Query().Get("include_qr") == "true" {
		for i := range confirmation.Details {
			for j := range confirmation.Details[i].Tickets {
				t := &confirmation.Details[i].Tickets[j]
				uri, err := h.QR.DataURI(t.QRCode)
				if err != nil {
					h.Logger.Error("API", fmt.Sprintf("GetBooking: qr for %s failed: %v", t.TicketNumber, err))
					continue
				}
				t.QRImage = uri
			}
		}
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Booking retrieved", confirmation))
}

func (h *Handler) GetTicketQR(w http.ResponseWriter, r *http.Request) {
	authCtx, _ := auth.FromContext(r.Context())
	bookingID, ok := h.pathID(w, r, "bookingId")
	if !ok {
		return
	}

	ticket, err := h.Service.GetTicket(r.Context(), authCtx, bookingID, chi.URLParam(r, "ticketNumber"))
	if err != nil {
		h.writeError(w, err, nil)
		return
	}

	png, err := h.QR.PNG(ticket.QRCode)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetTicketQR: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("QR code could not be generated", err.Error()))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	authCtx, _ := auth.FromContext(r.Context())
	bookingID, ok := h.pathID(w, r, "bookingId")
	if !ok {
		return
	}

	b, err := h.Service.CancelBooking(r.Context(), authCtx, bookingID)
	if err != nil {
		h.writeError(w, err, nil)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Booking cancelled", map[string]interface{}{
		"booking_id":        b.ID,
		"booking_reference": b.BookingReference,
		"status":            b.Status,
		"cancelled_at":      b.CancelledAt,
	}))
}

func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	eventID, ok := h.pathID(w, r, "eventId")
	if !ok {
		return
	}

	availability, err := h.Service.GetAvailability(r.Context(), eventID)
	if err != nil {
		h.writeError(w, err, nil)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Availability retrieved", availability))
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid "+name, chi.URLParam(r, name)))
		return 0, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error, data interface{}) {
	var ce *booking.CheckoutError
	if !errors.As(err, &ce) {
		h.Logger.Error("API", fmt.Sprintf("unexpected error: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Internal server error", "unexpected error"))
		return
	}

	status := StatusFor(ce.Kind)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("API", ce.Error())
	}
	utils.WriteJSON(w, status, utils.KindErrorResponse(string(ce.Kind), ce.Message, data))
}

// StatusFor maps a booking error kind to its HTTP status.
func StatusFor(kind booking.ErrorKind) int {
	switch kind {
	case booking.KindEventNotFound, booking.KindCategoryNotFound, booking.KindBookingNotFound:
		return http.StatusNotFound
	case booking.KindInsufficientStock, booking.KindCheckoutInProgress, booking.KindBookingNotCancellable:
		return http.StatusConflict
	case booking.KindEventNotBookable, booking.KindInvalidPromotion:
		return http.StatusUnprocessableEntity
	case booking.KindNoLinesSelected, booking.KindInvalidQuantity:
		return http.StatusBadRequest
	case booking.KindForbidden:
		return http.StatusForbidden
	case booking.KindPersistenceFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
