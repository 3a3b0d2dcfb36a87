package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/masala-table/api/internal/domain"
	pfirestore "github.com/masala-table/api/internal/platform/firestore"
)

const menuCollection = "menu_items"

// MenuRepository persists catalog entries. It is the authoritative price
// source consulted by the pricing engine.
type MenuRepository struct {
	base     *pfirestore.BaseRepository[menuItemDocument]
	provider *pfirestore.Provider
}

// NewMenuRepository constructs a Firestore-backed menu repository.
func NewMenuRepository(provider *pfirestore.Provider) (*MenuRepository, error) {
	if provider == nil {
		return nil, errors.New("menu repository requires firestore provider")
	}
	return &MenuRepository{
		base:     pfirestore.NewBaseRepository[menuItemDocument](provider, menuCollection),
		provider: provider,
	}, nil
}

// Insert creates the catalog entry, failing if the id already exists.
func (r *MenuRepository) Insert(ctx context.Context, item domain.MenuItem) error {
	if r == nil || r.base == nil {
		return errors.New("menu repository not initialised")
	}
	if strings.TrimSpace(item.ID) == "" {
		return errors.New("menu item id is required")
	}
	return r.base.Create(ctx, item.ID, fromDomainMenuItem(item))
}

// Update overwrites the catalog entry.
func (r *MenuRepository) Update(ctx context.Context, item domain.MenuItem) error {
	if r == nil || r.base == nil {
		return errors.New("menu repository not initialised")
	}
	if strings.TrimSpace(item.ID) == "" {
		return errors.New("menu item id is required")
	}
	return r.base.Set(ctx, item.ID, fromDomainMenuItem(item))
}

// Delete removes the catalog entry.
func (r *MenuRepository) Delete(ctx context.Context, itemID string) error {
	if r == nil || r.base == nil {
		return errors.New("menu repository not initialised")
	}
	return r.base.Delete(ctx, itemID)
}

// FindByID loads a single catalog entry.
func (r *MenuRepository) FindByID(ctx context.Context, itemID string) (domain.MenuItem, error) {
	if r == nil || r.base == nil {
		return domain.MenuItem{}, errors.New("menu repository not initialised")
	}
	doc, err := r.base.Get(ctx, itemID)
	if err != nil {
		return domain.MenuItem{}, err
	}
	return toDomainMenuItem(doc.ID, doc.Data), nil
}

// FindByIDs batch-loads catalog entries. Missing ids are simply absent from
// the returned map; the caller decides whether that is an error.
func (r *MenuRepository) FindByIDs(ctx context.Context, itemIDs []string) (map[string]domain.MenuItem, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("menu repository not initialised")
	}

	items := make(map[string]domain.MenuItem, len(itemIDs))
	if len(itemIDs) == 0 {
		return items, nil
	}

	refs := make([]*firestore.DocumentRef, 0, len(itemIDs))
	for _, id := range itemIDs {
		ref, err := r.base.DocumentRef(ctx, id)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	snapshots, err := client.GetAll(ctx, refs)
	if err != nil {
		return nil, pfirestore.WrapError("menu_items.batch_get", err)
	}

	for _, snapshot := range snapshots {
		if !snapshot.Exists() {
			continue
		}
		var doc menuItemDocument
		if err := snapshot.DataTo(&doc); err != nil {
			return nil, pfirestore.WrapError("menu_items.batch_get", err)
		}
		items[snapshot.Ref.ID] = toDomainMenuItem(snapshot.Ref.ID, doc)
	}
	return items, nil
}

// List returns catalog entries ordered by category then name.
func (r *MenuRepository) List(ctx context.Context, onlyAvailable bool) ([]domain.MenuItem, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("menu repository not initialised")
	}

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		if onlyAvailable {
			query = query.Where("available", "==", true)
		}
		return query.OrderBy("category", firestore.Asc).OrderBy("name", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}

	items := make([]domain.MenuItem, 0, len(docs))
	for _, doc := range docs {
		items = append(items, toDomainMenuItem(doc.ID, doc.Data))
	}
	return items, nil
}

type menuItemDocument struct {
	Name        string    `firestore:"name"`
	Price       int64     `firestore:"price"`
	Category    string    `firestore:"category"`
	Description string    `firestore:"description,omitempty"`
	ImageURL    string    `firestore:"image_url,omitempty"`
	Available   bool      `firestore:"available"`
	CreatedAt   time.Time `firestore:"created_at"`
	UpdatedAt   time.Time `firestore:"updated_at"`
}

func fromDomainMenuItem(item domain.MenuItem) menuItemDocument {
	return menuItemDocument{
		Name:        item.Name,
		Price:       item.Price,
		Category:    item.Category,
		Description: item.Description,
		ImageURL:    item.ImageURL,
		Available:   item.Available,
		CreatedAt:   item.CreatedAt,
		UpdatedAt:   item.UpdatedAt,
	}
}

func toDomainMenuItem(id string, doc menuItemDocument) domain.MenuItem {
	return domain.MenuItem{
		ID:          id,
		Name:        doc.Name,
		Price:       doc.Price,
		Category:    doc.Category,
		Description: doc.Description,
		ImageURL:    doc.ImageURL,
		Available:   doc.Available,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
}
