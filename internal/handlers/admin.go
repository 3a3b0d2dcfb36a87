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

const maxAdminBodySize = 32 * 1024

// AdminHandlers exposes the back-office surface: fulfilment, catalog and
// table management, the booking ledger, the contact mailbox, and the
// dashboard. Every route requires the admin role.
type AdminHandlers struct {
	verifier  auth.AccessTokenVerifier
	orders    services.OrderService
	menu      services.MenuService
	tables    services.TableService
	bookings  services.BookingService
	contact   services.ContactService
	dashboard services.DashboardService
}

// AdminHandlersDeps bundles the services backing the admin surface.
type AdminHandlersDeps struct {
	Verifier  auth.AccessTokenVerifier
	Orders    services.OrderService
	Menu      services.MenuService
	Tables    services.TableService
	Bookings  services.BookingService
	Contact   services.ContactService
	Dashboard services.DashboardService
}

// NewAdminHandlers constructs the admin handlers.
func NewAdminHandlers(deps AdminHandlersDeps) *AdminHandlers {
	return &AdminHandlers{
		verifier:  deps.Verifier,
		orders:    deps.Orders,
		menu:      deps.Menu,
		tables:    deps.Tables,
		bookings:  deps.Bookings,
		contact:   deps.Contact,
		dashboard: deps.Dashboard,
	}
}

// Routes wires the /admin endpoints onto the provided router.
func (h *AdminHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.verifier != nil {
		r.Use(auth.RequireAuth(h.verifier, auth.RoleAdmin))
	}

	r.Get("/dashboard", h.getDashboard)

	r.Post("/menu", h.createMenuItem)
	r.Put("/menu/{itemID}", h.updateMenuItem)
	r.Delete("/menu/{itemID}", h.deleteMenuItem)

	r.Post("/tables", h.createTable)
	r.Put("/tables/{tableID}", h.updateTable)
	r.Delete("/tables/{tableID}", h.deleteTable)

	r.Post("/orders/{orderID}/status", h.advanceOrder)
	r.Post("/orders/{orderID}/payment-status", h.setPaymentStatus)

	r.Get("/bookings", h.listAllBookings)

	r.Get("/messages", h.listMessages)
	r.Post("/messages/{messageID}/resolve", h.resolveMessage)
	r.Delete("/messages/{messageID}", h.deleteMessage)
}

func (h *AdminHandlers) getDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := callerFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	summary, err := h.dashboard.Summary(ctx, caller)
	if err != nil {
		writeDashboardError(ctx, w, err)
		return
	}
	byStatus := make(map[string]int, len(summary.OrdersByStatus))
	for status, count := range summary.OrdersByStatus {
		byStatus[string(status)] = count
	}
	payload := dashboardResponse{
		TotalUsers:        summary.TotalUsers,
		OrdersToday:       summary.OrdersToday,
		OrdersByStatus:    byStatus,
		RevenueToday:      summary.RevenueToday,
		RevenueTodayLabel: summary.RevenueTodayLabel,
		PendingOrders:     summary.PendingOrders,
		PendingMessages:   summary.PendingMessages,
		BookingsToday:     summary.BookingsToday,
		GeneratedAt:       formatTime(summary.GeneratedAt),
	}
	if summary.TopItem != nil {
		payload.TopItem = &topItemPayload{
			MenuItemID: summary.TopItem.MenuItemID,
			Name:       summary.TopItem.Name,
			Quantity:   summary.TopItem.Quantity,
		}
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

type menuItemRequest struct {
	Name        string `json:"name"`
	Price       int64  `json:"price"`
	Category    string `json:"category"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	Available   bool   `json:"available"`
}

func (req menuItemRequest) toInput() services.MenuItemInput {
	return services.MenuItemInput{
		Name:        req.Name,
		Price:       req.Price,
		Category:    req.Category,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		Available:   req.Available,
	}
}

func (h *AdminHandlers) createMenuItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := callerFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	var req menuItemRequest
	if err := decodeJSONBody(r, maxAdminBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	item, err := h.menu.Create(ctx, caller, req.toInput())
	if err != nil {
		writeMenuError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, menuItemResponse{Item: buildMenuItemPayload(item)})
}

func (h *AdminHandlers) updateMenuItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := callerFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	var req menuItemRequest
	if err := decodeJSONBody(r, maxAdminBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	item, err := h.menu.Update(ctx, caller, chi.URLParam(r, "itemID"), req.toInput())
	if err != nil {
		writeMenuError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, menuItemResponse{Item: buildMenuItemPayload(item)})
}

func (h *AdminHandlers) deleteMenuItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := callerFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	if err := h.menu.Delete(ctx, caller, chi.URLParam(r, "itemID")); err != nil {
		writeMenuError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type tableRequest struct {
	TableNumber int  `json:"table_number"`
	Capacity    int  `json:"capacity"`
	Available   bool `json:"available"`
}

func (req tableRequest) toInput() services.TableInput {
	return services.TableInput{
		TableNumber: req.TableNumber,
		Capacity:    req.Capacity,
		Available:   req.Available,
	}
}

func (h *AdminHandlers) createTable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := callerFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	var req tableRequest
	if err := decodeJSONBody(r, maxAdminBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	table, err := h.tables.Create(ctx, caller, req.toInput())
	if err != nil {
		writeTableError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, map[string]tablePayload{"table": buildTablePayload(table)})
}

func (h *AdminHandlers) updateTable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := callerFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	var req tableRequest
	if err := decodeJSONBody(r, maxAdminBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	table, err := h.tables.Update(ctx, caller, chi.URLParam(r, "tableID"), req.toInput())
	if err != nil {
		writeTableError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]tablePayload{"table": buildTablePayload(table)})
}

func (h *AdminHandlers) deleteTable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := callerFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	if err := h.tables.Delete(ctx, caller, chi.URLParam(r, "tableID")); err != nil {
		writeTableError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type advanceOrderRequest struct {
	Status string `json:"status"`
}

func (h *AdminHandlers) advanceOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := callerFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	var req advanceOrderRequest
	if err := decodeJSONBody(r, maxAdminBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	order, err := h.orders.Advance(ctx, caller, chi.URLParam(r, "orderID"), domain.OrderStatus(strings.TrimSpace(req.Status)))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

type paymentStatusRequest struct {
	PaymentStatus string `json:"payment_status"`
}

func (h *AdminHandlers) setPaymentStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := callerFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	var req paymentStatusRequest
	if err := decodeJSONBody(r, maxAdminBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	order, err := h.orders.SetPaymentStatus(ctx, caller, chi.URLParam(r, "orderID"), domain.PaymentStatus(strings.TrimSpace(req.PaymentStatus)))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *AdminHandlers) listAllBookings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := callerFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	bookings, err := h.bookings.ListAll(ctx, caller)
	if err != nil {
		writeBookingError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildBookingsResponse(bookings))
}

func (h *AdminHandlers) listMessages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := callerFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	messages, err := h.contact.List(ctx, caller)
	if err != nil {
		writeContactError(ctx, w, err)
		return
	}

	payload := make([]contactPayload, 0, len(messages))
	for _, msg := range messages {
		payload = append(payload, buildContactPayload(msg))
	}
	writeJSONResponse(w, http.StatusOK, contactMessagesResponse{Messages: payload, Count: len(payload)})
}

func (h *AdminHandlers) resolveMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := callerFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	msg, err := h.contact.Resolve(ctx, caller, chi.URLParam(r, "messageID"))
	if err != nil {
		writeContactError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, contactMessageResponse{Message: buildContactPayload(msg)})
}

func (h *AdminHandlers) deleteMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := callerFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	if err := h.contact.Delete(ctx, caller, chi.URLParam(r, "messageID")); err != nil {
		writeContactError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeDashboardError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrDashboardForbidden):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "insufficient permissions", http.StatusForbidden))
	case errors.Is(err, services.ErrDashboardUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("dashboard_unavailable", "dashboard is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("dashboard_error", "failed to build dashboard", http.StatusInternalServerError))
	}
}

type dashboardResponse struct {
	TotalUsers        int64           `json:"total_users"`
	OrdersToday       int             `json:"orders_today"`
	OrdersByStatus    map[string]int  `json:"orders_by_status"`
	RevenueToday      int64           `json:"revenue_today"`
	RevenueTodayLabel string          `json:"revenue_today_label"`
	PendingOrders     int             `json:"pending_orders"`
	PendingMessages   int             `json:"pending_messages"`
	BookingsToday     int             `json:"bookings_today"`
	TopItem           *topItemPayload `json:"top_item,omitempty"`
	GeneratedAt       string          `json:"generated_at"`
}

type topItemPayload struct {
	MenuItemID string `json:"menu_item_id"`
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
}
