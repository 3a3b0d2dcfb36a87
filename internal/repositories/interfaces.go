package repositories

import (
	"context"
	"time"

	domain "github.com/masala-table/api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation
// used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// OrderListFilter narrows order listings.
type OrderListFilter struct {
	Channel OrderChannelFilter
	OwnerID string
	Status  []domain.OrderStatus
	From    *time.Time
	To      *time.Time
	Limit   int
}

// OrderChannelFilter optionally restricts a listing to one channel.
type OrderChannelFilter struct {
	Channel domain.OrderChannel
	Set     bool
}

// TransitionFunc mutates an order inside a transaction. Returning an error
// aborts the write and leaves the document untouched.
type TransitionFunc func(order *domain.Order) error

// OrderRepository persists order documents. Transition executes its callback
// against the current document state inside a transaction so concurrent
// writers serialise on the document.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) ([]domain.Order, error)
	Transition(ctx context.Context, orderID string, apply TransitionFunc) (domain.Order, error)
}

// RedeemFunc applies the redemption rules to an order and its owner as of the
// same transactional read. Returning an error aborts both writes.
type RedeemFunc func(order *domain.Order, user *domain.User) error

// LedgerRepository owns the loyalty-points mutations. Both operations run as
// single Firestore transactions so concurrent earns and redeems on the same
// user never lose an update.
type LedgerRepository interface {
	// EarnPoints atomically adds delta points to the user's balance and
	// returns the new balance.
	EarnPoints(ctx context.Context, userID string, delta int64) (int64, error)
	// Redeem reads the order and the user in one transaction, applies the
	// callback, and writes both documents back only if the callback accepts.
	Redeem(ctx context.Context, orderID, userID string, apply RedeemFunc) (domain.Order, domain.User, error)
}

// UserRepository persists account documents.
type UserRepository interface {
	Insert(ctx context.Context, user domain.User) error
	FindByID(ctx context.Context, userID string) (domain.User, error)
	FindByEmail(ctx context.Context, email string) (domain.User, error)
	Update(ctx context.Context, user domain.User) error
	Count(ctx context.Context) (int64, error)
}

// MenuRepository persists catalog entries and serves as the authoritative
// price source for the pricing engine.
type MenuRepository interface {
	Insert(ctx context.Context, item domain.MenuItem) error
	Update(ctx context.Context, item domain.MenuItem) error
	Delete(ctx context.Context, itemID string) error
	FindByID(ctx context.Context, itemID string) (domain.MenuItem, error)
	FindByIDs(ctx context.Context, itemIDs []string) (map[string]domain.MenuItem, error)
	List(ctx context.Context, onlyAvailable bool) ([]domain.MenuItem, error)
}

// CartRepository persists the per-user takeaway cart.
type CartRepository interface {
	Get(ctx context.Context, userID string) (domain.Cart, error)
	Put(ctx context.Context, cart domain.Cart) error
	Delete(ctx context.Context, userID string) error
}

// TableRepository persists dining tables.
type TableRepository interface {
	Insert(ctx context.Context, table domain.Table) error
	Update(ctx context.Context, table domain.Table) error
	Delete(ctx context.Context, tableID string) error
	FindByID(ctx context.Context, tableID string) (domain.Table, error)
	List(ctx context.Context, onlyAvailable bool) ([]domain.Table, error)
}

// BookingRepository persists table bookings.
type BookingRepository interface {
	Insert(ctx context.Context, booking domain.Booking) error
	Update(ctx context.Context, booking domain.Booking) error
	FindByID(ctx context.Context, bookingID string) (domain.Booking, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Booking, error)
	ListAll(ctx context.Context) ([]domain.Booking, error)
}

// ContactRepository persists contact-form messages.
type ContactRepository interface {
	Insert(ctx context.Context, msg domain.ContactMessage) error
	Update(ctx context.Context, msg domain.ContactMessage) error
	Delete(ctx context.Context, msgID string) error
	FindByID(ctx context.Context, msgID string) (domain.ContactMessage, error)
	List(ctx context.Context) ([]domain.ContactMessage, error)
}

// AuditLogRepository appends audit entries. The collection is append-only;
// there is no update or delete.
type AuditLogRepository interface {
	Append(ctx context.Context, entry domain.AuditLogEntry) error
}
