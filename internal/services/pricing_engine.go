package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	domain "github.com/masala-table/api/internal/domain"
	"github.com/masala-table/api/internal/repositories"
)

var (
	// ErrPricingInvalidInput signals an unpriceable submission, such as an
	// empty item list or a non-positive quantity.
	ErrPricingInvalidInput = errors.New("pricing: invalid input")
	// ErrPricingNotFound indicates the catalog does not carry, or does not
	// currently sell, a submitted item.
	ErrPricingNotFound = errors.New("pricing: unknown item")
	// ErrPricingUnavailable indicates the catalog could not be consulted.
	ErrPricingUnavailable = errors.New("pricing: catalog unavailable")
)

// UnknownItemsError lists every submitted item id the catalog does not carry
// or does not currently sell.
type UnknownItemsError struct {
	ItemIDs []string
}

func (e *UnknownItemsError) Error() string {
	return fmt.Sprintf("pricing: unknown or unavailable items: %s", strings.Join(e.ItemIDs, ", "))
}

// Is lets callers match the error family without inspecting the ids.
func (e *UnknownItemsError) Is(target error) bool {
	return target == ErrPricingNotFound
}

// CatalogPricingEngineDeps bundles collaborators for the pricing engine.
type CatalogPricingEngineDeps struct {
	Menu repositories.MenuRepository
}

type catalogPricingEngine struct {
	menu repositories.MenuRepository
}

// NewCatalogPricingEngine wires the catalog-backed pricing engine. Every
// price on a resulting line comes from the menu document, never the caller.
func NewCatalogPricingEngine(deps CatalogPricingEngineDeps) (PricingEngine, error) {
	if deps.Menu == nil {
		return nil, errors.New("pricing engine: menu repository is required")
	}
	return &catalogPricingEngine{menu: deps.Menu}, nil
}

// PriceItems validates and prices the submitted items. Duplicate item ids are
// merged by summing their quantities. Name and unit price are snapshotted so
// later catalog edits never change the resulting order.
func (e *catalogPricingEngine) PriceItems(ctx context.Context, items []domain.OrderItemInput) ([]domain.OrderItem, int64, error) {
	if len(items) == 0 {
		return nil, 0, fmt.Errorf("%w: at least one item is required", ErrPricingInvalidInput)
	}

	quantities := make(map[string]int, len(items))
	order := make([]string, 0, len(items))
	for _, item := range items {
		id := strings.TrimSpace(item.MenuItemID)
		if id == "" {
			return nil, 0, fmt.Errorf("%w: item id is required", ErrPricingInvalidInput)
		}
		if item.Quantity <= 0 {
			return nil, 0, fmt.Errorf("%w: quantity for %s must be positive", ErrPricingInvalidInput, id)
		}
		if _, seen := quantities[id]; !seen {
			order = append(order, id)
		}
		quantities[id] += item.Quantity
	}

	catalog, err := e.menu.FindByIDs(ctx, order)
	if err != nil {
		if repoErr, ok := repoError(err); ok && repoErr.IsUnavailable() {
			return nil, 0, fmt.Errorf("%w: %v", ErrPricingUnavailable, err)
		}
		return nil, 0, err
	}

	var unknown []string
	for _, id := range order {
		entry, ok := catalog[id]
		if !ok || !entry.Available {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, 0, &UnknownItemsError{ItemIDs: unknown}
	}

	lines := make([]domain.OrderItem, 0, len(order))
	var total int64
	for _, id := range order {
		entry := catalog[id]
		quantity := quantities[id]
		lines = append(lines, domain.OrderItem{
			MenuItemID: id,
			Name:       entry.Name,
			Quantity:   quantity,
			UnitPrice:  entry.Price,
		})
		total += entry.Price * int64(quantity)
	}
	return lines, total, nil
}
