package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/masala-table/api/internal/domain"
	"github.com/masala-table/api/internal/platform/auth"
	"github.com/masala-table/api/internal/platform/httpx"
	"github.com/masala-table/api/internal/services"
)

const maxBookingBodySize = 16 * 1024

// BookingHandlers exposes authenticated table-reservation endpoints, plus the
// public table listing.
type BookingHandlers struct {
	verifier auth.AccessTokenVerifier
	bookings services.BookingService
	tables   services.TableService
}

// NewBookingHandlers constructs handlers backed by the booking and table
// services.
func NewBookingHandlers(verifier auth.AccessTokenVerifier, bookings services.BookingService, tables services.TableService) *BookingHandlers {
	return &BookingHandlers{verifier: verifier, bookings: bookings, tables: tables}
}

// Routes wires the /bookings endpoints onto the provided router.
func (h *BookingHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.verifier != nil {
		r.Use(auth.RequireAuth(h.verifier))
	}
	r.Post("/", h.createBooking)
	r.Get("/", h.listMyBookings)
	r.Post("/{bookingID}/cancel", h.cancelBooking)
}

// TableRoutes wires the public /tables listing onto the provided router.
func (h *BookingHandlers) TableRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listTables)
}

type createBookingRequest struct {
	TableID         string `json:"table_id"`
	BookingDate     string `json:"booking_date"`
	NumberOfGuests  int    `json:"number_of_guests"`
	SpecialRequests string `json:"special_requests,omitempty"`
}

func (h *BookingHandlers) createBooking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := callerFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	var req createBookingRequest
	if err := decodeJSONBody(r, maxBookingBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	date, err := parseRFC3339(strings.TrimSpace(req.BookingDate))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "booking_date must be an RFC3339 timestamp", http.StatusBadRequest))
		return
	}

	booking, err := h.bookings.Create(ctx, caller, services.BookingInput{
		TableID:         req.TableID,
		BookingDate:     date,
		NumberOfGuests:  req.NumberOfGuests,
		SpecialRequests: req.SpecialRequests,
	})
	if err != nil {
		writeBookingError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, bookingResponse{Booking: buildBookingPayload(booking)})
}

func (h *BookingHandlers) listMyBookings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := callerFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	bookings, err := h.bookings.ListMine(ctx, caller)
	if err != nil {
		writeBookingError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildBookingsResponse(bookings))
}

func (h *BookingHandlers) cancelBooking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := callerFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	booking, err := h.bookings.Cancel(ctx, caller, chi.URLParam(r, "bookingID"))
	if err != nil {
		writeBookingError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, bookingResponse{Booking: buildBookingPayload(booking)})
}

func (h *BookingHandlers) listTables(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	onlyAvailable := !strings.EqualFold(r.URL.Query().Get("include_unavailable"), "true")
	tables, err := h.tables.List(ctx, onlyAvailable)
	if err != nil {
		writeTableError(ctx, w, err)
		return
	}

	payload := make([]tablePayload, 0, len(tables))
	for _, table := range tables {
		payload = append(payload, buildTablePayload(table))
	}
	writeJSONResponse(w, http.StatusOK, tablesResponse{Tables: payload, Count: len(payload)})
}

func writeBookingError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrBookingInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrBookingNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("booking_not_found", "booking not found", http.StatusNotFound))
	case errors.Is(err, services.ErrBookingForbidden):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "you may not act on this booking", http.StatusForbidden))
	case errors.Is(err, services.ErrBookingConflict):
		httpx.WriteError(ctx, w, httpx.NewError("booking_conflict", "booking was modified concurrently; retry", http.StatusConflict))
	case errors.Is(err, services.ErrBookingUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("booking_service_unavailable", "booking service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("booking_error", "failed to process booking", http.StatusInternalServerError))
	}
}

func writeTableError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrTableInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrTableNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("table_not_found", "table not found", http.StatusNotFound))
	case errors.Is(err, services.ErrTableForbidden):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "insufficient permissions", http.StatusForbidden))
	case errors.Is(err, services.ErrTableConflict):
		httpx.WriteError(ctx, w, httpx.NewError("table_conflict", "table was modified concurrently; retry", http.StatusConflict))
	case errors.Is(err, services.ErrTableUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("table_service_unavailable", "table service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("table_error", "failed to process request", http.StatusInternalServerError))
	}
}

type bookingResponse struct {
	Booking bookingPayload `json:"booking"`
}

type bookingsResponse struct {
	Bookings []bookingPayload `json:"bookings"`
	Count    int              `json:"count"`
}

type bookingPayload struct {
	ID              string `json:"id"`
	UserID          string `json:"user_id"`
	TableID         string `json:"table_id"`
	BookingDate     string `json:"booking_date"`
	NumberOfGuests  int    `json:"number_of_guests"`
	SpecialRequests string `json:"special_requests,omitempty"`
	Status          string `json:"status"`
	CreatedAt       string `json:"created_at"`
}

func buildBookingPayload(booking domain.Booking) bookingPayload {
	return bookingPayload{
		ID:              booking.ID,
		UserID:          booking.UserID,
		TableID:         booking.TableID,
		BookingDate:     formatTime(booking.BookingDate),
		NumberOfGuests:  booking.NumberOfGuests,
		SpecialRequests: booking.SpecialRequests,
		Status:          booking.Status,
		CreatedAt:       formatTime(booking.CreatedAt),
	}
}

func buildBookingsResponse(bookings []domain.Booking) bookingsResponse {
	payload := make([]bookingPayload, 0, len(bookings))
	for _, booking := range bookings {
		payload = append(payload, buildBookingPayload(booking))
	}
	return bookingsResponse{Bookings: payload, Count: len(payload)}
}

type tablesResponse struct {
	Tables []tablePayload `json:"tables"`
	Count  int            `json:"count"`
}

type tablePayload struct {
	ID          string `json:"id"`
	TableNumber int    `json:"table_number"`
	Capacity    int    `json:"capacity"`
	Available   bool   `json:"available"`
}

func buildTablePayload(table domain.Table) tablePayload {
	return tablePayload{
		ID:          table.ID,
		TableNumber: table.TableNumber,
		Capacity:    table.Capacity,
		Available:   table.Available,
	}
}
