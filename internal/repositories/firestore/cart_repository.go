package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/masala-table/api/internal/domain"
	pfirestore "github.com/masala-table/api/internal/platform/firestore"
)

const cartCollection = "carts"

// CartRepository persists takeaway carts, one document per user keyed by the
// user id.
type CartRepository struct {
	base *pfirestore.BaseRepository[cartDocument]
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	return &CartRepository{
		base: pfirestore.NewBaseRepository[cartDocument](provider, cartCollection),
	}, nil
}

// Get loads the user's cart.
func (r *CartRepository) Get(ctx context.Context, userID string) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	doc, err := r.base.Get(ctx, userID)
	if err != nil {
		return domain.Cart{}, err
	}
	return toDomainCart(doc.ID, doc.Data), nil
}

// Put upserts the user's cart.
func (r *CartRepository) Put(ctx context.Context, cart domain.Cart) error {
	if r == nil || r.base == nil {
		return errors.New("cart repository not initialised")
	}
	if strings.TrimSpace(cart.UserID) == "" {
		return errors.New("cart user id is required")
	}
	return r.base.Set(ctx, cart.UserID, fromDomainCart(cart))
}

// Delete removes the user's cart. Deleting a missing cart is not an error.
func (r *CartRepository) Delete(ctx context.Context, userID string) error {
	if r == nil || r.base == nil {
		return errors.New("cart repository not initialised")
	}
	return r.base.Delete(ctx, userID)
}

type cartDocument struct {
	Items     []cartItemDocument `firestore:"items"`
	UpdatedAt time.Time          `firestore:"updated_at"`
}

type cartItemDocument struct {
	MenuItemID string `firestore:"menu_item_id"`
	Quantity   int    `firestore:"quantity"`
}

func fromDomainCart(cart domain.Cart) cartDocument {
	items := make([]cartItemDocument, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, cartItemDocument{MenuItemID: item.MenuItemID, Quantity: item.Quantity})
	}
	return cartDocument{Items: items, UpdatedAt: cart.UpdatedAt}
}

func toDomainCart(userID string, doc cartDocument) domain.Cart {
	items := make([]domain.CartItem, 0, len(doc.Items))
	for _, item := range doc.Items {
		items = append(items, domain.CartItem{MenuItemID: item.MenuItemID, Quantity: item.Quantity})
	}
	return domain.Cart{UserID: userID, Items: items, UpdatedAt: doc.UpdatedAt}
}
