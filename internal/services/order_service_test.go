package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/masala-table/api/internal/domain"
)

var testNow = time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)

type orderFixture struct {
	service  OrderService
	orders   *fakeOrderRepo
	users    *fakeUserRepo
	catalog  *fakeMenuRepo
	audit    *recordingAudit
	notifier *fakeNotifier
}

// failingLoyalty simulates an outage in the points ledger.
type failingLoyalty struct{}

func (failingLoyalty) Earn(context.Context, string, int64) (int64, int64, error) {
	return 0, 0, errors.New("ledger down")
}

func (failingLoyalty) Redeem(context.Context, Caller, string, int64) (RedeemResult, error) {
	return RedeemResult{}, errors.New("ledger down")
}

func (failingLoyalty) Balance(context.Context, Caller) (int64, error) {
	return 0, errors.New("ledger down")
}

func newOrderFixture(t *testing.T, loyalty LoyaltyService) *orderFixture {
	t.Helper()

	orders := newFakeOrderRepo()
	users := newFakeUserRepo()
	catalog := newTestCatalog()
	audit := &recordingAudit{}
	notifier := &fakeNotifier{}

	users.users["usr_alice"] = domain.User{ID: "usr_alice", Email: "alice@example.com", Role: domain.RoleCustomer}

	if loyalty == nil {
		ledger := newFakeLedgerRepo(orders, users)
		var err error
		loyalty, err = NewLoyaltyService(LoyaltyServiceDeps{
			Ledger:      ledger,
			Users:       users,
			EarnRate:    100,
			RedeemValue: 1,
			Clock:       fixedClock(testNow),
		})
		if err != nil {
			t.Fatalf("NewLoyaltyService: %v", err)
		}
	}

	pricing, err := NewCatalogPricingEngine(CatalogPricingEngineDeps{Menu: catalog})
	if err != nil {
		t.Fatalf("NewCatalogPricingEngine: %v", err)
	}

	service, err := NewOrderService(OrderServiceDeps{
		Orders:      orders,
		Pricing:     pricing,
		Loyalty:     loyalty,
		Audit:       audit,
		Notifier:    notifier,
		Clock:       fixedClock(testNow),
		IDGenerator: sequentialIDs(""),
	})
	if err != nil {
		t.Fatalf("NewOrderService: %v", err)
	}

	return &orderFixture{
		service:  service,
		orders:   orders,
		users:    users,
		catalog:  catalog,
		audit:    audit,
		notifier: notifier,
	}
}

func deliveryInput() CreateOrderInput {
	return CreateOrderInput{
		Channel:         domain.ChannelDelivery,
		Items:           []domain.OrderItemInput{{MenuItemID: "itm_biryani", Quantity: 1}, {MenuItemID: "itm_samosa", Quantity: 2}},
		PaymentMethod:   domain.PaymentCashOnDelivery,
		DeliveryAddress: "12 MG Road, Bengaluru",
	}
}

func TestCreateDeliveryOrderComputesServerSideTotal(t *testing.T) {
	fx := newOrderFixture(t, nil)
	caller := Caller{UserID: "usr_alice", Role: domain.RoleCustomer}

	order, err := fx.service.Create(context.Background(), caller, deliveryInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if order.TotalAmount != 400 {
		t.Fatalf("TotalAmount = %d, want 400", order.TotalAmount)
	}
	if order.Status != domain.StatusPending {
		t.Fatalf("Status = %q, want pending", order.Status)
	}
	if order.PaymentStatus != domain.PaymentStatusPending {
		t.Fatalf("PaymentStatus = %q, want pending", order.PaymentStatus)
	}
	if order.OwnerID != "usr_alice" {
		t.Fatalf("OwnerID = %q", order.OwnerID)
	}

	stored, err := fx.orders.FindByID(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if stored.TotalAmount != 400 {
		t.Fatalf("stored TotalAmount = %d", stored.TotalAmount)
	}

	// 400 rupees at 100 per point earns 4 points.
	user, _ := fx.users.FindByID(context.Background(), "usr_alice")
	if user.PointsBalance != 4 {
		t.Fatalf("PointsBalance = %d, want 4", user.PointsBalance)
	}

	if events := fx.notifier.events(); len(events) != 1 || events[0] != "order.created" {
		t.Fatalf("notifications = %v", events)
	}
	if actions := fx.audit.actions(); len(actions) != 1 || actions[0] != "order.create" {
		t.Fatalf("audit actions = %v", actions)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	fx := newOrderFixture(t, nil)
	caller := Caller{UserID: "usr_alice", Role: domain.RoleCustomer}

	past := testNow.Add(-time.Hour)
	future := testNow.Add(time.Hour)

	cases := []struct {
		name   string
		mutate func(*CreateOrderInput)
	}{
		{"missing delivery address", func(in *CreateOrderInput) { in.DeliveryAddress = "  " }},
		{"unknown channel", func(in *CreateOrderInput) { in.Channel = "dine_in" }},
		{"unknown payment method", func(in *CreateOrderInput) { in.PaymentMethod = "card_swipe" }},
		{"takeaway without pickup time", func(in *CreateOrderInput) {
			in.Channel = domain.ChannelTakeaway
			in.PickupTime = nil
		}},
		{"takeaway pickup in the past", func(in *CreateOrderInput) {
			in.Channel = domain.ChannelTakeaway
			in.PickupTime = &past
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := deliveryInput()
			tc.mutate(&input)
			if _, err := fx.service.Create(context.Background(), caller, input); !errors.Is(err, ErrOrderInvalidInput) {
				t.Fatalf("err = %v, want ErrOrderInvalidInput", err)
			}
		})
	}

	t.Run("unknown menu item is not found", func(t *testing.T) {
		input := deliveryInput()
		input.Items = []domain.OrderItemInput{{MenuItemID: "itm_ghost", Quantity: 1}}
		if _, err := fx.service.Create(context.Background(), caller, input); !errors.Is(err, ErrOrderNotFound) {
			t.Fatalf("err = %v, want ErrOrderNotFound", err)
		}
	})

	t.Run("takeaway with future pickup succeeds", func(t *testing.T) {
		input := deliveryInput()
		input.Channel = domain.ChannelTakeaway
		input.DeliveryAddress = ""
		input.PickupTime = &future
		input.PaymentMethod = domain.PaymentCashAtShop
		if _, err := fx.service.Create(context.Background(), caller, input); err != nil {
			t.Fatalf("Create: %v", err)
		}
	})
}

func TestCreateOrderSurvivesSideEffectFailures(t *testing.T) {
	fx := newOrderFixture(t, failingLoyalty{})
	fx.notifier.err = errors.New("broker down")
	caller := Caller{UserID: "usr_alice", Role: domain.RoleCustomer}

	order, err := fx.service.Create(context.Background(), caller, deliveryInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := fx.orders.FindByID(context.Background(), order.ID); err != nil {
		t.Fatalf("order was not persisted: %v", err)
	}
}

func TestGetOrderEnforcesOwnership(t *testing.T) {
	fx := newOrderFixture(t, nil)
	owner := Caller{UserID: "usr_alice", Role: domain.RoleCustomer}
	order, err := fx.service.Create(context.Background(), owner, deliveryInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := fx.service.Get(context.Background(), owner, order.ID); err != nil {
		t.Fatalf("owner Get: %v", err)
	}
	if _, err := fx.service.Get(context.Background(), Caller{UserID: "usr_bob", Role: domain.RoleCustomer}, order.ID); !errors.Is(err, ErrOrderForbidden) {
		t.Fatalf("stranger Get err = %v, want ErrOrderForbidden", err)
	}
	if _, err := fx.service.Get(context.Background(), Caller{UserID: "usr_staff", Role: domain.RoleAdmin}, order.ID); err != nil {
		t.Fatalf("admin Get: %v", err)
	}
	if _, err := fx.service.Get(context.Background(), owner, "ord_missing"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("missing Get err = %v, want ErrOrderNotFound", err)
	}
}

func TestListScopesCustomersToTheirOwnOrders(t *testing.T) {
	fx := newOrderFixture(t, nil)
	alice := Caller{UserID: "usr_alice", Role: domain.RoleCustomer}
	if _, err := fx.service.Create(context.Background(), alice, deliveryInput()); err != nil {
		t.Fatalf("Create: %v", err)
	}
	fx.orders.orders["ord_other"] = domain.Order{
		ID: "ord_other", OwnerID: "usr_bob", Channel: domain.ChannelDelivery,
		Status: domain.StatusPending, CreatedAt: testNow,
	}

	mine, err := fx.service.List(context.Background(), alice, ListOrdersInput{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(mine) != 1 || mine[0].OwnerID != "usr_alice" {
		t.Fatalf("customer listing = %+v", mine)
	}

	all, err := fx.service.List(context.Background(), Caller{UserID: "usr_staff", Role: domain.RoleAdmin}, ListOrdersInput{})
	if err != nil {
		t.Fatalf("admin List: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("admin listing length = %d, want 2", len(all))
	}
}

func TestAdvanceFollowsTheChannelFlow(t *testing.T) {
	fx := newOrderFixture(t, nil)
	owner := Caller{UserID: "usr_alice", Role: domain.RoleCustomer}
	admin := Caller{UserID: "usr_staff", Role: domain.RoleAdmin}

	order, err := fx.service.Create(context.Background(), owner, deliveryInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := fx.service.Advance(context.Background(), owner, order.ID, domain.StatusPreparing); !errors.Is(err, ErrOrderForbidden) {
		t.Fatalf("customer Advance err = %v, want ErrOrderForbidden", err)
	}

	if _, err := fx.service.Advance(context.Background(), admin, order.ID, domain.StatusDelivered); !errors.Is(err, ErrOrderInvalidTransition) {
		t.Fatalf("skip-ahead err = %v, want ErrOrderInvalidTransition", err)
	}
	if _, err := fx.service.Advance(context.Background(), admin, order.ID, domain.StatusReadyForPickup); !errors.Is(err, ErrOrderInvalidTransition) {
		t.Fatalf("takeaway status on delivery order err = %v, want ErrOrderInvalidTransition", err)
	}

	for _, next := range []domain.OrderStatus{domain.StatusPreparing, domain.StatusOutForDelivery, domain.StatusDelivered} {
		updated, err := fx.service.Advance(context.Background(), admin, order.ID, next)
		if err != nil {
			t.Fatalf("Advance to %s: %v", next, err)
		}
		if updated.Status != next {
			t.Fatalf("Status = %q, want %q", updated.Status, next)
		}
	}

	// Delivered is terminal.
	if _, err := fx.service.Advance(context.Background(), admin, order.ID, domain.StatusCancelled); !errors.Is(err, ErrOrderInvalidTransition) {
		t.Fatalf("advance out of terminal err = %v, want ErrOrderInvalidTransition", err)
	}
}

func TestCancelByOwnerOrAdminUntilTerminal(t *testing.T) {
	fx := newOrderFixture(t, nil)
	owner := Caller{UserID: "usr_alice", Role: domain.RoleCustomer}
	admin := Caller{UserID: "usr_staff", Role: domain.RoleAdmin}

	order, err := fx.service.Create(context.Background(), owner, deliveryInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := fx.service.Cancel(context.Background(), Caller{UserID: "usr_bob", Role: domain.RoleCustomer}, order.ID); !errors.Is(err, ErrOrderForbidden) {
		t.Fatalf("stranger Cancel err = %v, want ErrOrderForbidden", err)
	}

	cancelled, err := fx.service.Cancel(context.Background(), owner, order.ID)
	if err != nil {
		t.Fatalf("owner Cancel: %v", err)
	}
	if cancelled.Status != domain.StatusCancelled || cancelled.CancelledAt == nil {
		t.Fatalf("cancelled order = %+v", cancelled)
	}

	// Owners can still cancel after preparation has started.
	second, err := fx.service.Create(context.Background(), owner, deliveryInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := fx.service.Advance(context.Background(), admin, second.ID, domain.StatusPreparing); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if _, err := fx.service.Cancel(context.Background(), owner, second.ID); err != nil {
		t.Fatalf("owner Cancel of preparing: %v", err)
	}

	// Cancelled is terminal for everyone.
	if _, err := fx.service.Cancel(context.Background(), admin, second.ID); !errors.Is(err, ErrOrderInvalidTransition) {
		t.Fatalf("double Cancel err = %v, want ErrOrderInvalidTransition", err)
	}

	// So is delivered.
	third, err := fx.service.Create(context.Background(), owner, deliveryInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, next := range []domain.OrderStatus{domain.StatusPreparing, domain.StatusOutForDelivery, domain.StatusDelivered} {
		if _, err := fx.service.Advance(context.Background(), admin, third.ID, next); err != nil {
			t.Fatalf("Advance to %s: %v", next, err)
		}
	}
	if _, err := fx.service.Cancel(context.Background(), owner, third.ID); !errors.Is(err, ErrOrderInvalidTransition) {
		t.Fatalf("owner Cancel of delivered err = %v, want ErrOrderInvalidTransition", err)
	}
	if _, err := fx.service.Cancel(context.Background(), admin, third.ID); !errors.Is(err, ErrOrderInvalidTransition) {
		t.Fatalf("admin Cancel of delivered err = %v, want ErrOrderInvalidTransition", err)
	}
}

func TestSetPaymentStatusAdminOnly(t *testing.T) {
	fx := newOrderFixture(t, nil)
	owner := Caller{UserID: "usr_alice", Role: domain.RoleCustomer}
	admin := Caller{UserID: "usr_staff", Role: domain.RoleAdmin}

	order, err := fx.service.Create(context.Background(), owner, deliveryInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := fx.service.SetPaymentStatus(context.Background(), owner, order.ID, domain.PaymentStatusPaid); !errors.Is(err, ErrOrderForbidden) {
		t.Fatalf("customer SetPaymentStatus err = %v, want ErrOrderForbidden", err)
	}
	if _, err := fx.service.SetPaymentStatus(context.Background(), admin, order.ID, "refunded"); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("unknown status err = %v, want ErrOrderInvalidInput", err)
	}

	updated, err := fx.service.SetPaymentStatus(context.Background(), admin, order.ID, domain.PaymentStatusPaid)
	if err != nil {
		t.Fatalf("SetPaymentStatus: %v", err)
	}
	if updated.PaymentStatus != domain.PaymentStatusPaid {
		t.Fatalf("PaymentStatus = %q, want paid", updated.PaymentStatus)
	}
}
