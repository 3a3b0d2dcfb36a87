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

const tableCollection = "tables"

// TableRepository persists dining tables.
type TableRepository struct {
	base *pfirestore.BaseRepository[tableDocument]
}

// NewTableRepository constructs a Firestore-backed table repository.
func NewTableRepository(provider *pfirestore.Provider) (*TableRepository, error) {
	if provider == nil {
		return nil, errors.New("table repository requires firestore provider")
	}
	return &TableRepository{
		base: pfirestore.NewBaseRepository[tableDocument](provider, tableCollection),
	}, nil
}

// Insert creates the table document, failing if the id already exists.
func (r *TableRepository) Insert(ctx context.Context, table domain.Table) error {
	if r == nil || r.base == nil {
		return errors.New("table repository not initialised")
	}
	if strings.TrimSpace(table.ID) == "" {
		return errors.New("table id is required")
	}
	return r.base.Create(ctx, table.ID, fromDomainTable(table))
}

// Update overwrites the table document.
func (r *TableRepository) Update(ctx context.Context, table domain.Table) error {
	if r == nil || r.base == nil {
		return errors.New("table repository not initialised")
	}
	if strings.TrimSpace(table.ID) == "" {
		return errors.New("table id is required")
	}
	return r.base.Set(ctx, table.ID, fromDomainTable(table))
}

// Delete removes the table document.
func (r *TableRepository) Delete(ctx context.Context, tableID string) error {
	if r == nil || r.base == nil {
		return errors.New("table repository not initialised")
	}
	return r.base.Delete(ctx, tableID)
}

// FindByID loads a single table.
func (r *TableRepository) FindByID(ctx context.Context, tableID string) (domain.Table, error) {
	if r == nil || r.base == nil {
		return domain.Table{}, errors.New("table repository not initialised")
	}
	doc, err := r.base.Get(ctx, tableID)
	if err != nil {
		return domain.Table{}, err
	}
	return toDomainTable(doc.ID, doc.Data), nil
}

// List returns tables ordered by table number.
func (r *TableRepository) List(ctx context.Context, onlyAvailable bool) ([]domain.Table, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("table repository not initialised")
	}

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		if onlyAvailable {
			query = query.Where("available", "==", true)
		}
		return query.OrderBy("table_number", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}

	tables := make([]domain.Table, 0, len(docs))
	for _, doc := range docs {
		tables = append(tables, toDomainTable(doc.ID, doc.Data))
	}
	return tables, nil
}

type tableDocument struct {
	TableNumber int       `firestore:"table_number"`
	Capacity    int       `firestore:"capacity"`
	Available   bool      `firestore:"available"`
	CreatedAt   time.Time `firestore:"created_at"`
	UpdatedAt   time.Time `firestore:"updated_at"`
}

func fromDomainTable(table domain.Table) tableDocument {
	return tableDocument{
		TableNumber: table.TableNumber,
		Capacity:    table.Capacity,
		Available:   table.Available,
		CreatedAt:   table.CreatedAt,
		UpdatedAt:   table.UpdatedAt,
	}
}

func toDomainTable(id string, doc tableDocument) domain.Table {
	return domain.Table{
		ID:          id,
		TableNumber: doc.TableNumber,
		Capacity:    doc.Capacity,
		Available:   doc.Available,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
}
