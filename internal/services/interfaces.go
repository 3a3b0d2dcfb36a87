package services

import (
	"context"
	"errors"
	"time"

	domain "github.com/masala-table/api/internal/domain"
	"github.com/masala-table/api/internal/repositories"
)

// Caller identifies the authenticated principal invoking a service operation.
type Caller struct {
	UserID string
	Role   string
}

// IsAdmin reports whether the caller holds the admin role.
func (c Caller) IsAdmin() bool {
	return c.Role == domain.RoleAdmin
}

// Notification is the payload handed to the notification sink. Delivery is
// best effort; a failed publish never fails the operation that produced it.
type Notification struct {
	Event     string            `json:"event"`
	OrderID   string            `json:"orderId,omitempty"`
	UserID    string            `json:"userId,omitempty"`
	Recipient string            `json:"recipient,omitempty"`
	Subject   string            `json:"subject"`
	Body      string            `json:"body"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Notifier publishes notifications for downstream delivery.
type Notifier interface {
	Publish(ctx context.Context, notification Notification) (string, error)
}

// PricingEngine converts unpriced item references into priced order lines
// using the current catalog.
type PricingEngine interface {
	PriceItems(ctx context.Context, items []domain.OrderItemInput) ([]domain.OrderItem, int64, error)
}

// CreateOrderInput captures a caller's order submission. Prices are never
// accepted from the caller; the pricing engine computes them.
type CreateOrderInput struct {
	Channel         domain.OrderChannel
	Items           []domain.OrderItemInput
	PaymentMethod   domain.PaymentMethod
	DeliveryAddress string
	PickupTime      *time.Time
	Notes           string
}

// ListOrdersInput narrows an order listing.
type ListOrdersInput struct {
	Channel *domain.OrderChannel
	Status  []domain.OrderStatus
	From    *time.Time
	To      *time.Time
	Limit   int
}

// OrderService owns order lifecycle operations.
type OrderService interface {
	Create(ctx context.Context, caller Caller, input CreateOrderInput) (domain.Order, error)
	Get(ctx context.Context, caller Caller, orderID string) (domain.Order, error)
	List(ctx context.Context, caller Caller, input ListOrdersInput) ([]domain.Order, error)
	Advance(ctx context.Context, caller Caller, orderID string, next domain.OrderStatus) (domain.Order, error)
	Cancel(ctx context.Context, caller Caller, orderID string) (domain.Order, error)
	SetPaymentStatus(ctx context.Context, caller Caller, orderID string, status domain.PaymentStatus) (domain.Order, error)
}

// RedeemResult reports the outcome of a successful redemption.
type RedeemResult struct {
	Order           domain.Order
	PointsRedeemed  int64
	DiscountApplied int64
	NewTotal        int64
	RemainingPoints int64
}

// LoyaltyService owns the points ledger. Earn is called by the order flow;
// Redeem is caller-facing and exactly-once per order.
type LoyaltyService interface {
	// Earn converts an order total into points and credits them to the
	// user. It returns the points awarded and the resulting balance.
	Earn(ctx context.Context, userID string, orderTotal int64) (int64, int64, error)
	Redeem(ctx context.Context, caller Caller, orderID string, points int64) (RedeemResult, error)
	Balance(ctx context.Context, caller Caller) (int64, error)
}

// TokenPair is an access/refresh token pair issued on login and refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// RegisterInput captures a signup submission.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// AuthService owns account registration and the refresh-token lifecycle.
type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (domain.User, TokenPair, error)
	Login(ctx context.Context, email, password string) (domain.User, TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	Me(ctx context.Context, caller Caller) (domain.User, error)
	ChangePassword(ctx context.Context, caller Caller, currentPassword, newPassword string) error
}

// MenuItemInput captures a catalog create or update submission.
type MenuItemInput struct {
	Name        string
	Price       int64
	Category    string
	Description string
	ImageURL    string
	Available   bool
}

// MenuService owns the catalog.
type MenuService interface {
	Create(ctx context.Context, caller Caller, input MenuItemInput) (domain.MenuItem, error)
	Update(ctx context.Context, caller Caller, itemID string, input MenuItemInput) (domain.MenuItem, error)
	Delete(ctx context.Context, caller Caller, itemID string) error
	Get(ctx context.Context, itemID string) (domain.MenuItem, error)
	List(ctx context.Context, onlyAvailable bool) ([]domain.MenuItem, error)
}

// CartLine is a priced view of one cart entry.
type CartLine struct {
	MenuItemID string
	Name       string
	Quantity   int
	UnitPrice  int64
	LineTotal  int64
	Available  bool
}

// CartView is the priced rendering of a user's cart.
type CartView struct {
	Lines     []CartLine
	Subtotal  int64
	UpdatedAt time.Time
}

// CheckoutInput finalises a cart into a takeaway order.
type CheckoutInput struct {
	PaymentMethod domain.PaymentMethod
	PickupTime    *time.Time
	Notes         string
}

// CartService owns the takeaway cart and its conversion into an order.
type CartService interface {
	Get(ctx context.Context, caller Caller) (CartView, error)
	SetItem(ctx context.Context, caller Caller, itemID string, quantity int) (CartView, error)
	RemoveItem(ctx context.Context, caller Caller, itemID string) (CartView, error)
	Clear(ctx context.Context, caller Caller) error
	Checkout(ctx context.Context, caller Caller, input CheckoutInput) (domain.Order, error)
}

// TableInput captures a table create or update submission.
type TableInput struct {
	TableNumber int
	Capacity    int
	Available   bool
}

// TableService owns dining-table management.
type TableService interface {
	Create(ctx context.Context, caller Caller, input TableInput) (domain.Table, error)
	Update(ctx context.Context, caller Caller, tableID string, input TableInput) (domain.Table, error)
	Delete(ctx context.Context, caller Caller, tableID string) error
	List(ctx context.Context, onlyAvailable bool) ([]domain.Table, error)
}

// BookingInput captures a reservation submission.
type BookingInput struct {
	TableID         string
	BookingDate     time.Time
	NumberOfGuests  int
	SpecialRequests string
}

// BookingService owns table reservations.
type BookingService interface {
	Create(ctx context.Context, caller Caller, input BookingInput) (domain.Booking, error)
	Cancel(ctx context.Context, caller Caller, bookingID string) (domain.Booking, error)
	ListMine(ctx context.Context, caller Caller) ([]domain.Booking, error)
	ListAll(ctx context.Context, caller Caller) ([]domain.Booking, error)
}

// ContactInput captures a contact-form submission.
type ContactInput struct {
	Name    string
	Email   string
	Phone   string
	Subject string
	Message string
}

// ContactService owns contact-form messages.
type ContactService interface {
	Submit(ctx context.Context, input ContactInput) (domain.ContactMessage, error)
	List(ctx context.Context, caller Caller) ([]domain.ContactMessage, error)
	Resolve(ctx context.Context, caller Caller, msgID string) (domain.ContactMessage, error)
	Delete(ctx context.Context, caller Caller, msgID string) error
}

// AuditEvent describes a mutation worth recording.
type AuditEvent struct {
	ActorID      string
	Action       string
	ResourceType string
	ResourceID   string
	Metadata     map[string]any
	IP           string
}

// AuditLogService records audit entries. Recording is best effort and never
// fails the operation being audited.
type AuditLogService interface {
	Record(ctx context.Context, event AuditEvent)
}

// TopItem is the best selling menu item in the summarised window.
type TopItem struct {
	MenuItemID string
	Name       string
	Quantity   int
}

// DashboardSummary aggregates the figures shown on the admin dashboard.
type DashboardSummary struct {
	TotalUsers        int64
	OrdersToday       int
	OrdersByStatus    map[domain.OrderStatus]int
	RevenueToday      int64
	PendingOrders     int
	PendingMessages   int
	BookingsToday     int
	TopItem           *TopItem
	GeneratedAt       time.Time
	RevenueTodayLabel string
}

// DashboardService aggregates admin-facing figures.
type DashboardService interface {
	Summary(ctx context.Context, caller Caller) (DashboardSummary, error)
}

// repoError extracts repository error categorisation when present.
func repoError(err error) (repositories.RepositoryError, bool) {
	if err == nil {
		return nil, false
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr, true
	}
	return nil, false
}
