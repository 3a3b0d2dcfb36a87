package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/masala-table/api/internal/domain"
	pfirestore "github.com/masala-table/api/internal/platform/firestore"
	"github.com/masala-table/api/internal/repositories"
)

const orderCollection = "orders"

// OrderRepository persists orders in Firestore. All status and redemption
// mutations go through transactions so concurrent writers serialise on the
// document.
type OrderRepository struct {
	base     *pfirestore.BaseRepository[orderDocument]
	provider *pfirestore.Provider
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		base:     pfirestore.NewBaseRepository[orderDocument](provider, orderCollection),
		provider: provider,
	}, nil
}

// Insert creates the order document, failing if the id already exists.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order id is required")
	}
	return r.base.Create(ctx, order.ID, fromDomainOrder(order))
}

// FindByID loads a single order.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	doc, err := r.base.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return toDomainOrder(doc.ID, doc.Data), nil
}

// List returns orders matching the filter, newest first.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) ([]domain.Order, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("order repository not initialised")
	}

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		if filter.Channel.Set {
			query = query.Where("channel", "==", string(filter.Channel.Channel))
		}
		if strings.TrimSpace(filter.OwnerID) != "" {
			query = query.Where("owner_id", "==", filter.OwnerID)
		}
		if len(filter.Status) > 0 {
			statuses := make([]string, 0, len(filter.Status))
			for _, s := range filter.Status {
				statuses = append(statuses, string(s))
			}
			query = query.Where("status", "in", statuses)
		}
		if filter.From != nil {
			query = query.Where("created_at", ">=", filter.From.UTC())
		}
		if filter.To != nil {
			query = query.Where("created_at", "<", filter.To.UTC())
		}
		query = query.OrderBy("created_at", firestore.Desc)
		if filter.Limit > 0 {
			query = query.Limit(filter.Limit)
		}
		return query
	})
	if err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, toDomainOrder(doc.ID, doc.Data))
	}
	return orders, nil
}

// Transition applies the callback to the current document state inside a
// transaction and writes the result back. Callback errors abort the write and
// surface unchanged.
func (r *OrderRepository) Transition(ctx context.Context, orderID string, apply repositories.TransitionFunc) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	if apply == nil {
		return domain.Order{}, errors.New("order transition callback is required")
	}

	ref, err := r.base.DocumentRef(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	var updated domain.Order
	err = r.provider.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		snapshot, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var doc orderDocument
		if err := snapshot.DataTo(&doc); err != nil {
			return fmt.Errorf("decode order %s: %w", orderID, err)
		}

		order := toDomainOrder(snapshot.Ref.ID, doc)
		if err := apply(&order); err != nil {
			return err
		}
		order.UpdatedAt = time.Now().UTC()

		updated = order
		return tx.Set(ref, fromDomainOrder(order))
	})
	if err != nil {
		return domain.Order{}, err
	}
	return updated, nil
}

type orderDocument struct {
	Channel         string              `firestore:"channel"`
	OwnerID         string              `firestore:"owner_id"`
	Items           []orderItemDocument `firestore:"items"`
	TotalAmount     int64               `firestore:"total_amount"`
	Status          string              `firestore:"status"`
	Redemption      *redemptionDocument `firestore:"redemption,omitempty"`
	PaymentMethod   string              `firestore:"payment_method"`
	PaymentStatus   string              `firestore:"payment_status"`
	DeliveryAddress string              `firestore:"delivery_address,omitempty"`
	PickupTime      *time.Time          `firestore:"pickup_time,omitempty"`
	Notes           string              `firestore:"notes,omitempty"`
	CreatedAt       time.Time           `firestore:"created_at"`
	UpdatedAt       time.Time           `firestore:"updated_at"`
	CancelledAt     *time.Time          `firestore:"cancelled_at,omitempty"`
}

type orderItemDocument struct {
	MenuItemID string `firestore:"menu_item_id"`
	Name       string `firestore:"name"`
	Quantity   int    `firestore:"quantity"`
	UnitPrice  int64  `firestore:"unit_price"`
}

type redemptionDocument struct {
	PointsRedeemed  int64     `firestore:"points_redeemed"`
	DiscountApplied int64     `firestore:"discount_applied"`
	RedeemedAt      time.Time `firestore:"redeemed_at"`
}

func fromDomainOrder(order domain.Order) orderDocument {
	items := make([]orderItemDocument, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemDocument{
			MenuItemID: item.MenuItemID,
			Name:       item.Name,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
		})
	}

	doc := orderDocument{
		Channel:         string(order.Channel),
		OwnerID:         order.OwnerID,
		Items:           items,
		TotalAmount:     order.TotalAmount,
		Status:          string(order.Status),
		PaymentMethod:   string(order.PaymentMethod),
		PaymentStatus:   string(order.PaymentStatus),
		DeliveryAddress: order.DeliveryAddress,
		PickupTime:      order.PickupTime,
		Notes:           order.Notes,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
		CancelledAt:     order.CancelledAt,
	}
	if order.Redemption != nil {
		doc.Redemption = &redemptionDocument{
			PointsRedeemed:  order.Redemption.PointsRedeemed,
			DiscountApplied: order.Redemption.DiscountApplied,
			RedeemedAt:      order.Redemption.RedeemedAt,
		}
	}
	return doc
}

func toDomainOrder(id string, doc orderDocument) domain.Order {
	items := make([]domain.OrderItem, 0, len(doc.Items))
	for _, item := range doc.Items {
		items = append(items, domain.OrderItem{
			MenuItemID: item.MenuItemID,
			Name:       item.Name,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
		})
	}

	order := domain.Order{
		ID:              id,
		Channel:         domain.OrderChannel(doc.Channel),
		OwnerID:         doc.OwnerID,
		Items:           items,
		TotalAmount:     doc.TotalAmount,
		Status:          domain.OrderStatus(doc.Status),
		PaymentMethod:   domain.PaymentMethod(doc.PaymentMethod),
		PaymentStatus:   domain.PaymentStatus(doc.PaymentStatus),
		DeliveryAddress: doc.DeliveryAddress,
		PickupTime:      doc.PickupTime,
		Notes:           doc.Notes,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
		CancelledAt:     doc.CancelledAt,
	}
	if doc.Redemption != nil {
		order.Redemption = &domain.Redemption{
			PointsRedeemed:  doc.Redemption.PointsRedeemed,
			DiscountApplied: doc.Redemption.DiscountApplied,
			RedeemedAt:      doc.Redemption.RedeemedAt,
		}
	}
	return order
}
