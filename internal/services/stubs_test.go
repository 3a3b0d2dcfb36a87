package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	domain "github.com/masala-table/api/internal/domain"
	"github.com/masala-table/api/internal/repositories"
)

// fakeRepoError implements repositories.RepositoryError for the in-memory
// fakes below.
type fakeRepoError struct {
	msg         string
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *fakeRepoError) Error() string       { return e.msg }
func (e *fakeRepoError) IsNotFound() bool    { return e.notFound }
func (e *fakeRepoError) IsConflict() bool    { return e.conflict }
func (e *fakeRepoError) IsUnavailable() bool { return e.unavailable }

func notFound(resource, id string) error {
	return &fakeRepoError{msg: fmt.Sprintf("%s %s not found", resource, id), notFound: true}
}

func conflict(resource, id string) error {
	return &fakeRepoError{msg: fmt.Sprintf("%s %s conflict", resource, id), conflict: true}
}

type fakeOrderRepo struct {
	mu     sync.Mutex
	orders map[string]domain.Order
	// insertErr and transitionErr force failures when set.
	insertErr     error
	transitionErr error
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[string]domain.Order)}
}

func (f *fakeOrderRepo) Insert(_ context.Context, order domain.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	if _, ok := f.orders[order.ID]; ok {
		return conflict("order", order.ID)
	}
	f.orders[order.ID] = order
	return nil
}

func (f *fakeOrderRepo) FindByID(_ context.Context, orderID string) (domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderID]
	if !ok {
		return domain.Order{}, notFound("order", orderID)
	}
	return order, nil
}

func (f *fakeOrderRepo) List(_ context.Context, filter repositories.OrderListFilter) ([]domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Order
	for _, order := range f.orders {
		if filter.Channel.Set && order.Channel != filter.Channel.Channel {
			continue
		}
		if filter.OwnerID != "" && order.OwnerID != filter.OwnerID {
			continue
		}
		if len(filter.Status) > 0 {
			match := false
			for _, status := range filter.Status {
				if order.Status == status {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		if filter.From != nil && order.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !order.CreatedAt.Before(*filter.To) {
			continue
		}
		out = append(out, order)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (f *fakeOrderRepo) Transition(_ context.Context, orderID string, apply repositories.TransitionFunc) (domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.transitionErr != nil {
		return domain.Order{}, f.transitionErr
	}
	order, ok := f.orders[orderID]
	if !ok {
		return domain.Order{}, notFound("order", orderID)
	}
	if err := apply(&order); err != nil {
		return domain.Order{}, err
	}
	order.UpdatedAt = time.Now().UTC()
	f.orders[orderID] = order
	return order, nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]domain.User)}
}

func (f *fakeUserRepo) Insert(_ context.Context, user domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[user.ID]; ok {
		return conflict("user", user.ID)
	}
	f.users[user.ID] = user
	return nil
}

func (f *fakeUserRepo) FindByID(_ context.Context, userID string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return domain.User{}, notFound("user", userID)
	}
	return user, nil
}

func (f *fakeUserRepo) FindByEmail(_ context.Context, email string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return domain.User{}, notFound("user", email)
}

func (f *fakeUserRepo) Update(_ context.Context, user domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[user.ID]; !ok {
		return notFound("user", user.ID)
	}
	f.users[user.ID] = user
	return nil
}

func (f *fakeUserRepo) Count(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.users)), nil
}

// fakeLedgerRepo applies callbacks against the backing fakes under one lock,
// mirroring the serialisation a real transaction provides.
type fakeLedgerRepo struct {
	mu     sync.Mutex
	orders *fakeOrderRepo
	users  *fakeUserRepo
}

func newFakeLedgerRepo(orders *fakeOrderRepo, users *fakeUserRepo) *fakeLedgerRepo {
	return &fakeLedgerRepo{orders: orders, users: users}
}

func (f *fakeLedgerRepo) EarnPoints(_ context.Context, userID string, delta int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users.mu.Lock()
	defer f.users.mu.Unlock()
	user, ok := f.users.users[userID]
	if !ok {
		return 0, notFound("user", userID)
	}
	user.PointsBalance += delta
	f.users.users[userID] = user
	return user.PointsBalance, nil
}

func (f *fakeLedgerRepo) Redeem(_ context.Context, orderID, userID string, apply repositories.RedeemFunc) (domain.Order, domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders.mu.Lock()
	defer f.orders.mu.Unlock()
	f.users.mu.Lock()
	defer f.users.mu.Unlock()

	order, ok := f.orders.orders[orderID]
	if !ok {
		return domain.Order{}, domain.User{}, notFound("order", orderID)
	}
	user, ok := f.users.users[userID]
	if !ok {
		return domain.Order{}, domain.User{}, notFound("user", userID)
	}

	if err := apply(&order, &user); err != nil {
		return domain.Order{}, domain.User{}, err
	}

	now := time.Now().UTC()
	order.UpdatedAt = now
	user.UpdatedAt = now
	f.orders.orders[orderID] = order
	f.users.users[userID] = user
	return order, user, nil
}

type fakeMenuRepo struct {
	mu    sync.Mutex
	items map[string]domain.MenuItem
}

func newFakeMenuRepo(items ...domain.MenuItem) *fakeMenuRepo {
	repo := &fakeMenuRepo{items: make(map[string]domain.MenuItem)}
	for _, item := range items {
		repo.items[item.ID] = item
	}
	return repo
}

func (f *fakeMenuRepo) Insert(_ context.Context, item domain.MenuItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[item.ID]; ok {
		return conflict("menu item", item.ID)
	}
	f.items[item.ID] = item
	return nil
}

func (f *fakeMenuRepo) Update(_ context.Context, item domain.MenuItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[item.ID] = item
	return nil
}

func (f *fakeMenuRepo) Delete(_ context.Context, itemID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, itemID)
	return nil
}

func (f *fakeMenuRepo) FindByID(_ context.Context, itemID string) (domain.MenuItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[itemID]
	if !ok {
		return domain.MenuItem{}, notFound("menu item", itemID)
	}
	return item, nil
}

func (f *fakeMenuRepo) FindByIDs(_ context.Context, itemIDs []string) (map[string]domain.MenuItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]domain.MenuItem, len(itemIDs))
	for _, id := range itemIDs {
		if item, ok := f.items[id]; ok {
			out[id] = item
		}
	}
	return out, nil
}

func (f *fakeMenuRepo) List(_ context.Context, onlyAvailable bool) ([]domain.MenuItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.MenuItem
	for _, item := range f.items {
		if onlyAvailable && !item.Available {
			continue
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type fakeCartRepo struct {
	mu    sync.Mutex
	carts map[string]domain.Cart
	// deleteErr forces clear failures when set.
	deleteErr error
}

func newFakeCartRepo() *fakeCartRepo {
	return &fakeCartRepo{carts: make(map[string]domain.Cart)}
}

func (f *fakeCartRepo) Get(_ context.Context, userID string) (domain.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cart, ok := f.carts[userID]
	if !ok {
		return domain.Cart{}, notFound("cart", userID)
	}
	return cart, nil
}

func (f *fakeCartRepo) Put(_ context.Context, cart domain.Cart) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.carts[cart.UserID] = cart
	return nil
}

func (f *fakeCartRepo) Delete(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.carts, userID)
	return nil
}

type fakeTableRepo struct {
	mu     sync.Mutex
	tables map[string]domain.Table
}

func newFakeTableRepo(tables ...domain.Table) *fakeTableRepo {
	repo := &fakeTableRepo{tables: make(map[string]domain.Table)}
	for _, table := range tables {
		repo.tables[table.ID] = table
	}
	return repo
}

func (f *fakeTableRepo) Insert(_ context.Context, table domain.Table) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tables[table.ID]; ok {
		return conflict("table", table.ID)
	}
	f.tables[table.ID] = table
	return nil
}

func (f *fakeTableRepo) Update(_ context.Context, table domain.Table) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables[table.ID] = table
	return nil
}

func (f *fakeTableRepo) Delete(_ context.Context, tableID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tables, tableID)
	return nil
}

func (f *fakeTableRepo) FindByID(_ context.Context, tableID string) (domain.Table, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	table, ok := f.tables[tableID]
	if !ok {
		return domain.Table{}, notFound("table", tableID)
	}
	return table, nil
}

func (f *fakeTableRepo) List(_ context.Context, onlyAvailable bool) ([]domain.Table, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Table
	for _, table := range f.tables {
		if onlyAvailable && !table.Available {
			continue
		}
		out = append(out, table)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TableNumber < out[j].TableNumber })
	return out, nil
}

type fakeBookingRepo struct {
	mu       sync.Mutex
	bookings map[string]domain.Booking
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{bookings: make(map[string]domain.Booking)}
}

func (f *fakeBookingRepo) Insert(_ context.Context, booking domain.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.bookings[booking.ID]; ok {
		return conflict("booking", booking.ID)
	}
	f.bookings[booking.ID] = booking
	return nil
}

func (f *fakeBookingRepo) Update(_ context.Context, booking domain.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bookings[booking.ID] = booking
	return nil
}

func (f *fakeBookingRepo) FindByID(_ context.Context, bookingID string) (domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	booking, ok := f.bookings[bookingID]
	if !ok {
		return domain.Booking{}, notFound("booking", bookingID)
	}
	return booking, nil
}

func (f *fakeBookingRepo) ListByUser(_ context.Context, userID string) ([]domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Booking
	for _, booking := range f.bookings {
		if booking.UserID == userID {
			out = append(out, booking)
		}
	}
	return out, nil
}

func (f *fakeBookingRepo) ListAll(_ context.Context) ([]domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Booking
	for _, booking := range f.bookings {
		out = append(out, booking)
	}
	return out, nil
}

type fakeContactRepo struct {
	mu       sync.Mutex
	messages map[string]domain.ContactMessage
}

func newFakeContactRepo() *fakeContactRepo {
	return &fakeContactRepo{messages: make(map[string]domain.ContactMessage)}
}

func (f *fakeContactRepo) Insert(_ context.Context, msg domain.ContactMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.messages[msg.ID]; ok {
		return conflict("contact message", msg.ID)
	}
	f.messages[msg.ID] = msg
	return nil
}

func (f *fakeContactRepo) Update(_ context.Context, msg domain.ContactMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[msg.ID] = msg
	return nil
}

func (f *fakeContactRepo) Delete(_ context.Context, msgID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.messages, msgID)
	return nil
}

func (f *fakeContactRepo) FindByID(_ context.Context, msgID string) (domain.ContactMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[msgID]
	if !ok {
		return domain.ContactMessage{}, notFound("contact message", msgID)
	}
	return msg, nil
}

func (f *fakeContactRepo) List(_ context.Context) ([]domain.ContactMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ContactMessage
	for _, msg := range f.messages {
		out = append(out, msg)
	}
	return out, nil
}

type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []domain.AuditLogEntry
	err     error
}

func (f *fakeAuditRepo) Append(_ context.Context, entry domain.AuditLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entry)
	return nil
}

// recordingAudit captures audit events without persistence.
type recordingAudit struct {
	mu     sync.Mutex
	events []AuditEvent
}

func (r *recordingAudit) Record(_ context.Context, event AuditEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingAudit) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, event := range r.events {
		out = append(out, event.Action)
	}
	return out
}

// fakeNotifier captures published notifications and optionally fails.
type fakeNotifier struct {
	mu            sync.Mutex
	notifications []Notification
	err           error
}

func (f *fakeNotifier) Publish(_ context.Context, notification Notification) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.notifications = append(f.notifications, notification)
	return fmt.Sprintf("msg-%d", len(f.notifications)), nil
}

func (f *fakeNotifier) events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.notifications))
	for _, n := range f.notifications {
		out = append(out, n.Event)
	}
	return out
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func sequentialIDs(prefix string) func() string {
	var n int
	var mu sync.Mutex
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s%03d", prefix, n)
	}
}
