package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/masala-table/api/internal/domain"
	"github.com/masala-table/api/internal/platform/auth"
	"github.com/masala-table/api/internal/services"
)

var handlerNow = time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)

// stubVerifier authenticates any request carrying "Bearer good" as the
// configured identity.
type stubVerifier struct {
	identity auth.Identity
}

func (s *stubVerifier) VerifyAccessToken(token string) (auth.Identity, error) {
	if token != "good" {
		return auth.Identity{}, auth.ErrInvalidToken
	}
	return s.identity, nil
}

type stubOrderService struct {
	createOrder domain.Order
	createErr   error
	getOrder    domain.Order
	getErr      error
	listOrders  []domain.Order
	listErr     error
	cancelErr   error

	lastCreateInput services.CreateOrderInput
	lastCaller      services.Caller
}

func (s *stubOrderService) Create(_ context.Context, caller services.Caller, input services.CreateOrderInput) (domain.Order, error) {
	s.lastCaller = caller
	s.lastCreateInput = input
	return s.createOrder, s.createErr
}

func (s *stubOrderService) Get(_ context.Context, caller services.Caller, _ string) (domain.Order, error) {
	s.lastCaller = caller
	return s.getOrder, s.getErr
}

func (s *stubOrderService) List(_ context.Context, caller services.Caller, _ services.ListOrdersInput) ([]domain.Order, error) {
	s.lastCaller = caller
	return s.listOrders, s.listErr
}

func (s *stubOrderService) Advance(_ context.Context, _ services.Caller, _ string, _ domain.OrderStatus) (domain.Order, error) {
	return domain.Order{}, nil
}

func (s *stubOrderService) Cancel(_ context.Context, _ services.Caller, _ string) (domain.Order, error) {
	return s.getOrder, s.cancelErr
}

func (s *stubOrderService) SetPaymentStatus(_ context.Context, _ services.Caller, _ string, _ domain.PaymentStatus) (domain.Order, error) {
	return s.getOrder, nil
}

func sampleOrder() domain.Order {
	return domain.Order{
		ID:            "ord_1",
		Channel:       domain.ChannelDelivery,
		OwnerID:       "usr_alice",
		Items:         []domain.OrderItem{{MenuItemID: "itm_1", Name: "Samosa", Quantity: 2, UnitPrice: 40}},
		TotalAmount:   80,
		Status:        domain.StatusPending,
		PaymentMethod: domain.PaymentCashOnDelivery,
		PaymentStatus: domain.PaymentStatusPending,
		CreatedAt:     handlerNow,
		UpdatedAt:     handlerNow,
	}
}

func newOrderRouter(service services.OrderService) chi.Router {
	verifier := &stubVerifier{identity: auth.Identity{UserID: "usr_alice", Role: auth.RoleCustomer}}
	return NewRouter(WithOrderRoutes(NewOrderHandlers(verifier, service).Routes))
}

func authedRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	req.Header.Set("Authorization", "Bearer good")
	return req
}

func TestCreateOrderEndpoint(t *testing.T) {
	service := &stubOrderService{createOrder: sampleOrder()}
	router := newOrderRouter(service)

	body := `{
		"channel": "delivery",
		"items": [{"menu_item_id": "itm_1", "quantity": 2}],
		"payment_method": "cash_on_delivery",
		"delivery_address": "12 MG Road"
	}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/orders/", body))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var payload orderResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload.Order.ID != "ord_1" || payload.Order.TotalAmount != 80 {
		t.Fatalf("payload = %+v", payload.Order)
	}
	if len(payload.Order.Items) != 1 || payload.Order.Items[0].LineTotal != 80 {
		t.Fatalf("items = %+v", payload.Order.Items)
	}

	if service.lastCaller.UserID != "usr_alice" {
		t.Fatalf("caller = %+v", service.lastCaller)
	}
	if service.lastCreateInput.Channel != domain.ChannelDelivery || len(service.lastCreateInput.Items) != 1 {
		t.Fatalf("input = %+v", service.lastCreateInput)
	}
}

func TestCreateOrderRequiresAuth(t *testing.T) {
	router := newOrderRouter(&stubOrderService{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/", strings.NewReader(`{}`))
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token status = %d, want 401", rec.Code)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/orders/", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer forged")
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token status = %d, want 401", rec.Code)
	}
}

func TestCreateOrderRejectsMalformedBody(t *testing.T) {
	router := newOrderRouter(&stubOrderService{})

	cases := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"invalid json", "{"},
		{"unknown field", `{"channel": "delivery", "surprise": true}`},
		{"bad pickup time", `{"channel": "takeaway", "items": [], "payment_method": "online", "pickup_time": "tomorrow"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/orders/", tc.body))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestOrderErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid input", services.ErrOrderInvalidInput, http.StatusBadRequest},
		{"not found", services.ErrOrderNotFound, http.StatusNotFound},
		{"forbidden", services.ErrOrderForbidden, http.StatusForbidden},
		{"invalid transition", services.ErrOrderInvalidTransition, http.StatusConflict},
		{"conflict", services.ErrOrderConflict, http.StatusConflict},
		{"unavailable", services.ErrOrderUnavailable, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newOrderRouter(&stubOrderService{getErr: tc.err})
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/orders/ord_1", ""))
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
		})
	}
}

func TestListOrdersQueryValidation(t *testing.T) {
	router := newOrderRouter(&stubOrderService{listOrders: []domain.Order{sampleOrder()}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/orders/?channel=delivery&limit=10", ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var payload ordersResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload.Count != 1 {
		t.Fatalf("count = %d, want 1", payload.Count)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/orders/?channel=dine_in", ""))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad channel status = %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/orders/?limit=-3", ""))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad limit status = %d, want 400", rec.Code)
	}
}
