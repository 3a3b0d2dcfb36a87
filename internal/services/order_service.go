package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	domain "github.com/masala-table/api/internal/domain"
	"github.com/masala-table/api/internal/repositories"
)

const (
	orderEventCreated       = "order.created"
	orderEventStatusChanged = "order.status.changed"
	orderEventCancelled     = "order.cancelled"

	orderIDPrefix = "ord_"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderForbidden indicates the caller may not act on this order.
	ErrOrderForbidden = errors.New("order: forbidden")
	// ErrOrderInvalidTransition indicates a status move the flow does not
	// permit, including any move out of a terminal state.
	ErrOrderInvalidTransition = errors.New("order: invalid status transition")
	// ErrOrderConflict indicates a concurrent writer won the race; the
	// caller should re-read and retry.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrOrderUnavailable indicates a transient backend outage.
	ErrOrderUnavailable = errors.New("order: store unavailable")
)

var amountPrinter = message.NewPrinter(language.English)

// OrderServiceDeps bundles collaborators required to construct the order
// service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Pricing     PricingEngine
	Loyalty     LoyaltyService
	Audit       AuditLogService
	Notifier    Notifier
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders   repositories.OrderRepository
	pricing  PricingEngine
	loyalty  LoyaltyService
	audit    AuditLogService
	notifier Notifier
	clock    func() time.Time
	newID    func() string
	logger   func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Pricing == nil {
		return nil, errors.New("order service: pricing engine is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:   deps.Orders,
		pricing:  deps.Pricing,
		loyalty:  deps.Loyalty,
		audit:    deps.Audit,
		notifier: deps.Notifier,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

// Create prices the submission, persists the order in its initial status, and
// runs the best-effort side effects: loyalty earn, audit entry, notification.
func (s *orderService) Create(ctx context.Context, caller Caller, input CreateOrderInput) (domain.Order, error) {
	if strings.TrimSpace(caller.UserID) == "" {
		return domain.Order{}, fmt.Errorf("%w: caller is required", ErrOrderInvalidInput)
	}

	switch input.Channel {
	case domain.ChannelDelivery:
		if strings.TrimSpace(input.DeliveryAddress) == "" {
			return domain.Order{}, fmt.Errorf("%w: delivery address is required", ErrOrderInvalidInput)
		}
	case domain.ChannelTakeaway:
		if input.PickupTime == nil {
			return domain.Order{}, fmt.Errorf("%w: pickup time is required", ErrOrderInvalidInput)
		}
		if input.PickupTime.Before(s.clock()) {
			return domain.Order{}, fmt.Errorf("%w: pickup time must be in the future", ErrOrderInvalidInput)
		}
	default:
		return domain.Order{}, fmt.Errorf("%w: unknown channel %q", ErrOrderInvalidInput, input.Channel)
	}

	switch input.PaymentMethod {
	case domain.PaymentCashOnDelivery, domain.PaymentCashAtShop, domain.PaymentOnline:
	default:
		return domain.Order{}, fmt.Errorf("%w: unknown payment method %q", ErrOrderInvalidInput, input.PaymentMethod)
	}

	lines, total, err := s.pricing.PriceItems(ctx, input.Items)
	if err != nil {
		if errors.Is(err, ErrPricingInvalidInput) {
			return domain.Order{}, fmt.Errorf("%w: %v", ErrOrderInvalidInput, err)
		}
		if errors.Is(err, ErrPricingNotFound) {
			return domain.Order{}, fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		}
		if errors.Is(err, ErrPricingUnavailable) {
			return domain.Order{}, fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
		}
		return domain.Order{}, s.mapRepositoryError(err)
	}

	now := s.clock()
	order := domain.Order{
		ID:              orderIDPrefix + s.newID(),
		Channel:         input.Channel,
		OwnerID:         caller.UserID,
		Items:           lines,
		TotalAmount:     total,
		Status:          domain.FlowFor(input.Channel).Initial,
		PaymentMethod:   input.PaymentMethod,
		PaymentStatus:   domain.PaymentStatusPending,
		DeliveryAddress: strings.TrimSpace(input.DeliveryAddress),
		PickupTime:      input.PickupTime,
		Notes:           strings.TrimSpace(input.Notes),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.orders.Insert(ctx, order); err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}

	// Side effects run only for persisted orders; a failed insert never
	// credits points. The balance update itself is transactional, so no
	// other flow can observe a partial credit.
	s.earnPoints(ctx, order)
	s.recordAudit(ctx, caller, "order.create", order.ID, map[string]any{
		"channel": string(order.Channel),
		"total":   order.TotalAmount,
	})
	s.notify(ctx, Notification{
		Event:   orderEventCreated,
		OrderID: order.ID,
		UserID:  order.OwnerID,
		Subject: "Order received",
		Body:    amountPrinter.Sprintf("Your order for ₹%d has been received and is being prepared.", order.TotalAmount),
	})

	return order, nil
}

// Get returns the order when the caller owns it or is an admin.
func (s *orderService) Get(ctx context.Context, caller Caller, orderID string) (domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}
	if !caller.IsAdmin() && order.OwnerID != caller.UserID {
		return domain.Order{}, ErrOrderForbidden
	}
	return order, nil
}

// List returns orders, newest first. Customers only ever see their own.
func (s *orderService) List(ctx context.Context, caller Caller, input ListOrdersInput) ([]domain.Order, error) {
	filter := repositories.OrderListFilter{
		Status: input.Status,
		From:   input.From,
		To:     input.To,
		Limit:  input.Limit,
	}
	if input.Channel != nil {
		filter.Channel = repositories.OrderChannelFilter{Channel: *input.Channel, Set: true}
	}
	if !caller.IsAdmin() {
		filter.OwnerID = caller.UserID
	}

	orders, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	return orders, nil
}

// Advance moves the order one step along its channel's status flow. Only
// admins drive fulfilment.
func (s *orderService) Advance(ctx context.Context, caller Caller, orderID string, next domain.OrderStatus) (domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if next == "" {
		return domain.Order{}, fmt.Errorf("%w: target status is required", ErrOrderInvalidInput)
	}
	if !caller.IsAdmin() {
		return domain.Order{}, ErrOrderForbidden
	}

	var previous domain.OrderStatus
	order, err := s.orders.Transition(ctx, orderID, func(order *domain.Order) error {
		flow := domain.FlowFor(order.Channel)
		if !flow.Knows(next) {
			return fmt.Errorf("%w: status %q does not exist for %s orders", ErrOrderInvalidTransition, next, order.Channel)
		}
		if !flow.CanTransition(order.Status, next) {
			return fmt.Errorf("%w: cannot move from %q to %q", ErrOrderInvalidTransition, order.Status, next)
		}
		previous = order.Status
		order.Status = next
		if next == domain.StatusCancelled {
			at := s.clock()
			order.CancelledAt = &at
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}

	s.recordAudit(ctx, caller, "order.status.change", order.ID, map[string]any{
		"from": string(previous),
		"to":   string(order.Status),
	})
	s.notify(ctx, Notification{
		Event:   orderEventStatusChanged,
		OrderID: order.ID,
		UserID:  order.OwnerID,
		Subject: "Order update",
		Body:    fmt.Sprintf("Your order is now %s.", statusLabel(order.Status)),
		Metadata: map[string]string{
			"from": string(previous),
			"to":   string(order.Status),
		},
	})

	return order, nil
}

// Cancel moves the order to cancelled. The owner or an admin may cancel from
// any non-terminal status.
func (s *orderService) Cancel(ctx context.Context, caller Caller, orderID string) (domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	var previous domain.OrderStatus
	order, err := s.orders.Transition(ctx, orderID, func(order *domain.Order) error {
		if !caller.IsAdmin() && order.OwnerID != caller.UserID {
			return ErrOrderForbidden
		}
		flow := domain.FlowFor(order.Channel)
		if flow.IsTerminal(order.Status) {
			return fmt.Errorf("%w: order is already %q", ErrOrderInvalidTransition, order.Status)
		}
		previous = order.Status
		order.Status = domain.StatusCancelled
		at := s.clock()
		order.CancelledAt = &at
		return nil
	})
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}

	s.recordAudit(ctx, caller, "order.cancel", order.ID, map[string]any{
		"from": string(previous),
	})
	s.notify(ctx, Notification{
		Event:   orderEventCancelled,
		OrderID: order.ID,
		UserID:  order.OwnerID,
		Subject: "Order cancelled",
		Body:    "Your order has been cancelled.",
	})

	return order, nil
}

// SetPaymentStatus updates the informational payment label. Admin only; no
// gateway reconciliation happens here.
func (s *orderService) SetPaymentStatus(ctx context.Context, caller Caller, orderID string, status domain.PaymentStatus) (domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if !caller.IsAdmin() {
		return domain.Order{}, ErrOrderForbidden
	}
	switch status {
	case domain.PaymentStatusPending, domain.PaymentStatusPaid:
	default:
		return domain.Order{}, fmt.Errorf("%w: unknown payment status %q", ErrOrderInvalidInput, status)
	}

	order, err := s.orders.Transition(ctx, orderID, func(order *domain.Order) error {
		order.PaymentStatus = status
		return nil
	})
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}

	s.recordAudit(ctx, caller, "order.payment_status.change", order.ID, map[string]any{
		"status": string(status),
	})
	return order, nil
}

// earnPoints credits loyalty points for a freshly created order. Failures are
// logged, never propagated; the order stands regardless.
func (s *orderService) earnPoints(ctx context.Context, order domain.Order) {
	if s.loyalty == nil {
		return
	}
	points, _, err := s.loyalty.Earn(ctx, order.OwnerID, order.TotalAmount)
	if err != nil {
		s.logger(ctx, "order.loyalty.earn.failed", map[string]any{
			"order": order.ID,
			"user":  order.OwnerID,
			"error": err.Error(),
		})
		return
	}
	if points > 0 {
		s.logger(ctx, "order.loyalty.earned", map[string]any{
			"order":  order.ID,
			"user":   order.OwnerID,
			"points": points,
		})
	}
}

func (s *orderService) recordAudit(ctx context.Context, caller Caller, action, orderID string, metadata map[string]any) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, AuditEvent{
		ActorID:      caller.UserID,
		Action:       action,
		ResourceType: "order",
		ResourceID:   orderID,
		Metadata:     metadata,
	})
}

func (s *orderService) notify(ctx context.Context, notification Notification) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.Publish(ctx, notification); err != nil {
		s.logger(ctx, "order.notification.failed", map[string]any{
			"event": notification.Event,
			"order": notification.OrderID,
			"error": err.Error(),
		})
	}
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrOrderInvalidInput) ||
		errors.Is(err, ErrOrderForbidden) ||
		errors.Is(err, ErrOrderInvalidTransition) {
		return err
	}
	if repoErr, ok := repoError(err); ok {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
		}
	}
	return err
}

func statusLabel(status domain.OrderStatus) string {
	return strings.ReplaceAll(string(status), "_", " ")
}
