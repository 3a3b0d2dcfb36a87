package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/masala-table/api/internal/domain"
	"github.com/masala-table/api/internal/repositories"
)

const maxCartQuantity = 50

var (
	// ErrCartInvalidInput signals the caller provided invalid data.
	ErrCartInvalidInput = errors.New("cart: invalid input")
	// ErrCartEmpty indicates a checkout was attempted on an empty cart.
	ErrCartEmpty = errors.New("cart: empty")
	// ErrCartUnavailable indicates a transient backend outage.
	ErrCartUnavailable = errors.New("cart: store unavailable")
)

// CartServiceDeps bundles collaborators for the cart service.
type CartServiceDeps struct {
	Carts  repositories.CartRepository
	Menu   repositories.MenuRepository
	Orders OrderService
	Clock  func() time.Time
	Logger func(ctx context.Context, event string, fields map[string]any)
}

type cartService struct {
	carts  repositories.CartRepository
	menu   repositories.MenuRepository
	orders OrderService
	clock  func() time.Time
	logger func(context.Context, string, map[string]any)
}

// NewCartService wires dependencies into a concrete CartService.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Carts == nil {
		return nil, errors.New("cart service: cart repository is required")
	}
	if deps.Menu == nil {
		return nil, errors.New("cart service: menu repository is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("cart service: order service is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &cartService{
		carts:  deps.Carts,
		menu:   deps.Menu,
		orders: deps.Orders,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// Get returns the caller's cart priced against the current catalog. Entries
// whose catalog item has vanished are shown as unavailable but kept.
func (s *cartService) Get(ctx context.Context, caller Caller) (CartView, error) {
	cart, err := s.loadCart(ctx, caller)
	if err != nil {
		return CartView{}, err
	}
	return s.renderCart(ctx, cart)
}

// SetItem sets the quantity for one item, adding or replacing the entry.
// Quantity zero removes it.
func (s *cartService) SetItem(ctx context.Context, caller Caller, itemID string, quantity int) (CartView, error) {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return CartView{}, fmt.Errorf("%w: item id is required", ErrCartInvalidInput)
	}
	if quantity < 0 || quantity > maxCartQuantity {
		return CartView{}, fmt.Errorf("%w: quantity must be between 0 and %d", ErrCartInvalidInput, maxCartQuantity)
	}
	if quantity == 0 {
		return s.RemoveItem(ctx, caller, itemID)
	}

	item, err := s.menu.FindByID(ctx, itemID)
	if err != nil {
		if repoErr, ok := repoError(err); ok && repoErr.IsNotFound() {
			return CartView{}, fmt.Errorf("%w: unknown item %s", ErrCartInvalidInput, itemID)
		}
		return CartView{}, s.mapRepositoryError(err)
	}
	if !item.Available {
		return CartView{}, fmt.Errorf("%w: item %s is not available", ErrCartInvalidInput, itemID)
	}

	cart, err := s.loadCart(ctx, caller)
	if err != nil {
		return CartView{}, err
	}

	replaced := false
	for i := range cart.Items {
		if cart.Items[i].MenuItemID == itemID {
			cart.Items[i].Quantity = quantity
			replaced = true
			break
		}
	}
	if !replaced {
		cart.Items = append(cart.Items, domain.CartItem{MenuItemID: itemID, Quantity: quantity})
	}

	cart.UpdatedAt = s.clock()
	if err := s.carts.Put(ctx, cart); err != nil {
		return CartView{}, s.mapRepositoryError(err)
	}
	return s.renderCart(ctx, cart)
}

// RemoveItem drops the entry for one item.
func (s *cartService) RemoveItem(ctx context.Context, caller Caller, itemID string) (CartView, error) {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return CartView{}, fmt.Errorf("%w: item id is required", ErrCartInvalidInput)
	}

	cart, err := s.loadCart(ctx, caller)
	if err != nil {
		return CartView{}, err
	}

	kept := cart.Items[:0]
	for _, entry := range cart.Items {
		if entry.MenuItemID != itemID {
			kept = append(kept, entry)
		}
	}
	cart.Items = kept

	cart.UpdatedAt = s.clock()
	if err := s.carts.Put(ctx, cart); err != nil {
		return CartView{}, s.mapRepositoryError(err)
	}
	return s.renderCart(ctx, cart)
}

// Clear removes the caller's cart entirely.
func (s *cartService) Clear(ctx context.Context, caller Caller) error {
	if strings.TrimSpace(caller.UserID) == "" {
		return fmt.Errorf("%w: caller is required", ErrCartInvalidInput)
	}
	if err := s.carts.Delete(ctx, caller.UserID); err != nil {
		return s.mapRepositoryError(err)
	}
	return nil
}

// Checkout converts the cart into a takeaway order. The order flow re-prices
// every line against the catalog; the cart is cleared only after the order
// is committed.
func (s *cartService) Checkout(ctx context.Context, caller Caller, input CheckoutInput) (domain.Order, error) {
	cart, err := s.loadCart(ctx, caller)
	if err != nil {
		return domain.Order{}, err
	}
	if len(cart.Items) == 0 {
		return domain.Order{}, ErrCartEmpty
	}

	items := make([]domain.OrderItemInput, 0, len(cart.Items))
	for _, entry := range cart.Items {
		items = append(items, domain.OrderItemInput{MenuItemID: entry.MenuItemID, Quantity: entry.Quantity})
	}

	order, err := s.orders.Create(ctx, caller, CreateOrderInput{
		Channel:       domain.ChannelTakeaway,
		Items:         items,
		PaymentMethod: input.PaymentMethod,
		PickupTime:    input.PickupTime,
		Notes:         input.Notes,
	})
	if err != nil {
		return domain.Order{}, err
	}

	if err := s.carts.Delete(ctx, caller.UserID); err != nil {
		// The order is already committed; a stale cart is an annoyance,
		// not a failure.
		s.logger(ctx, "cart.clear.failed", map[string]any{
			"user":  caller.UserID,
			"order": order.ID,
			"error": err.Error(),
		})
	}
	return order, nil
}

func (s *cartService) loadCart(ctx context.Context, caller Caller) (domain.Cart, error) {
	if strings.TrimSpace(caller.UserID) == "" {
		return domain.Cart{}, fmt.Errorf("%w: caller is required", ErrCartInvalidInput)
	}
	cart, err := s.carts.Get(ctx, caller.UserID)
	if err != nil {
		if repoErr, ok := repoError(err); ok && repoErr.IsNotFound() {
			return domain.Cart{UserID: caller.UserID}, nil
		}
		return domain.Cart{}, s.mapRepositoryError(err)
	}
	return cart, nil
}

func (s *cartService) renderCart(ctx context.Context, cart domain.Cart) (CartView, error) {
	view := CartView{UpdatedAt: cart.UpdatedAt}
	if len(cart.Items) == 0 {
		return view, nil
	}

	ids := make([]string, 0, len(cart.Items))
	for _, entry := range cart.Items {
		ids = append(ids, entry.MenuItemID)
	}
	catalog, err := s.menu.FindByIDs(ctx, ids)
	if err != nil {
		return CartView{}, s.mapRepositoryError(err)
	}

	for _, entry := range cart.Items {
		line := CartLine{
			MenuItemID: entry.MenuItemID,
			Quantity:   entry.Quantity,
		}
		if item, ok := catalog[entry.MenuItemID]; ok {
			line.Name = item.Name
			line.UnitPrice = item.Price
			line.LineTotal = item.Price * int64(entry.Quantity)
			line.Available = item.Available
			if item.Available {
				view.Subtotal += line.LineTotal
			}
		}
		view.Lines = append(view.Lines, line)
	}
	return view, nil
}

func (s *cartService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	if repoErr, ok := repoError(err); ok && repoErr.IsUnavailable() {
		return fmt.Errorf("%w: %v", ErrCartUnavailable, err)
	}
	return err
}
