package domain

import "time"

// Role values assigned to user accounts.
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// OrderChannel distinguishes the two fulfilment flows served by the kitchen.
type OrderChannel string

const (
	ChannelDelivery OrderChannel = "delivery"
	ChannelTakeaway OrderChannel = "takeaway"
)

// PaymentMethod labels how the customer intends to pay. The label is
// informational only; no gateway reconciliation happens here.
type PaymentMethod string

const (
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentCashAtShop     PaymentMethod = "cash_at_shop"
	PaymentOnline         PaymentMethod = "online"
)

// PaymentStatus is a label set by a trusted caller, never derived from a
// payment processor.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
)

// OrderItem is a priced line on an order. UnitPrice and Name are snapshotted
// from the menu at creation time so later catalog edits never change an
// existing order's total.
type OrderItem struct {
	MenuItemID string
	Name       string
	Quantity   int
	UnitPrice  int64
}

// OrderItemInput is the unpriced item reference submitted by a caller.
type OrderItemInput struct {
	MenuItemID string
	Quantity   int
}

// Redemption records the one-time conversion of loyalty points into a
// discount on this order. Present at most once; absence means never redeemed.
type Redemption struct {
	PointsRedeemed  int64
	DiscountApplied int64
	RedeemedAt      time.Time
}

// Order is the persisted order document. TotalAmount is always computed
// server-side in whole rupees.
type Order struct {
	ID              string
	Channel         OrderChannel
	OwnerID         string
	Items           []OrderItem
	TotalAmount     int64
	Status          OrderStatus
	Redemption      *Redemption
	PaymentMethod   PaymentMethod
	PaymentStatus   PaymentStatus
	DeliveryAddress string
	PickupTime      *time.Time
	Notes           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CancelledAt     *time.Time
}

// RefreshToken is one entry in a user's bounded active-token list.
type RefreshToken struct {
	Token     string
	CreatedAt time.Time
}

// User is the account document. PointsBalance is mutated only by the loyalty
// ledger and never goes negative.
type User struct {
	ID            string
	Username      string
	Email         string
	PasswordHash  string
	Role          string
	PointsBalance int64
	RefreshTokens []RefreshToken
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// AddRefreshToken appends a refresh token and evicts the oldest entries once
// the list exceeds max. The list is kept in insertion order, oldest first.
func (u *User) AddRefreshToken(token string, at time.Time, max int) {
	u.RefreshTokens = append(u.RefreshTokens, RefreshToken{Token: token, CreatedAt: at})
	if max > 0 && len(u.RefreshTokens) > max {
		u.RefreshTokens = u.RefreshTokens[len(u.RefreshTokens)-max:]
	}
}

// RemoveRefreshToken drops the given token from the active list. It reports
// whether the token was present.
func (u *User) RemoveRefreshToken(token string) bool {
	for i, rt := range u.RefreshTokens {
		if rt.Token == token {
			u.RefreshTokens = append(u.RefreshTokens[:i], u.RefreshTokens[i+1:]...)
			return true
		}
	}
	return false
}

// HasRefreshToken reports whether the token is in the active list.
func (u *User) HasRefreshToken(token string) bool {
	for _, rt := range u.RefreshTokens {
		if rt.Token == token {
			return true
		}
	}
	return false
}

// MenuItem is a purchasable catalog entry with an authoritative price.
type MenuItem struct {
	ID          string
	Name        string
	Price       int64
	Category    string
	Description string
	ImageURL    string
	Available   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CartItem is an unpriced entry in a takeaway cart.
type CartItem struct {
	MenuItemID string
	Quantity   int
}

// Cart holds a user's pending takeaway selection. One cart per user.
type Cart struct {
	UserID    string
	Items     []CartItem
	UpdatedAt time.Time
}

// Table is a bookable dining table.
type Table struct {
	ID          string
	TableNumber int
	Capacity    int
	Available   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// BookingStatus values for table bookings.
const (
	BookingConfirmed = "confirmed"
	BookingCancelled = "cancelled"
)

// Booking is a dine-in table reservation.
type Booking struct {
	ID              string
	UserID          string
	TableID         string
	BookingDate     time.Time
	NumberOfGuests  int
	SpecialRequests string
	Status          string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ContactStatus values for contact-form messages.
const (
	ContactPending  = "pending"
	ContactResolved = "resolved"
)

// ContactMessage is a contact-form submission.
type ContactMessage struct {
	ID          string
	Name        string
	Email       string
	Phone       string
	Subject     string
	Message     string
	Status      string
	RespondedBy string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AuditLogEntry is an append-only record of a significant mutation. Entries
// are never updated or deleted by the application.
type AuditLogEntry struct {
	ID           string
	ActorID      string
	Action       string
	ResourceType string
	ResourceID   string
	Metadata     map[string]any
	IP           string
	CreatedAt    time.Time
}
