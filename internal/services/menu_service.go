package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/masala-table/api/internal/domain"
	"github.com/masala-table/api/internal/repositories"
)

const menuItemIDPrefix = "itm_"

var (
	// ErrMenuInvalidInput signals the caller provided invalid data.
	ErrMenuInvalidInput = errors.New("menu: invalid input")
	// ErrMenuNotFound indicates the catalog entry could not be located.
	ErrMenuNotFound = errors.New("menu: not found")
	// ErrMenuForbidden indicates a non-admin attempted a catalog mutation.
	ErrMenuForbidden = errors.New("menu: forbidden")
	// ErrMenuConflict indicates a duplicate id or a lost write race.
	ErrMenuConflict = errors.New("menu: conflict")
	// ErrMenuUnavailable indicates a transient backend outage.
	ErrMenuUnavailable = errors.New("menu: store unavailable")
)

// MenuServiceDeps bundles collaborators for the menu service.
type MenuServiceDeps struct {
	Menu        repositories.MenuRepository
	Audit       AuditLogService
	Clock       func() time.Time
	IDGenerator func() string
}

type menuService struct {
	menu  repositories.MenuRepository
	audit AuditLogService
	clock func() time.Time
	newID func() string
}

// NewMenuService wires dependencies into a concrete MenuService.
func NewMenuService(deps MenuServiceDeps) (MenuService, error) {
	if deps.Menu == nil {
		return nil, errors.New("menu service: menu repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	return &menuService{
		menu:  deps.Menu,
		audit: deps.Audit,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID: idGen,
	}, nil
}

// Create adds a catalog entry. Admin only.
func (s *menuService) Create(ctx context.Context, caller Caller, input MenuItemInput) (domain.MenuItem, error) {
	if !caller.IsAdmin() {
		return domain.MenuItem{}, ErrMenuForbidden
	}
	if err := validateMenuInput(input); err != nil {
		return domain.MenuItem{}, err
	}

	now := s.clock()
	item := domain.MenuItem{
		ID:          menuItemIDPrefix + s.newID(),
		Name:        strings.TrimSpace(input.Name),
		Price:       input.Price,
		Category:    strings.TrimSpace(input.Category),
		Description: strings.TrimSpace(input.Description),
		ImageURL:    strings.TrimSpace(input.ImageURL),
		Available:   input.Available,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.menu.Insert(ctx, item); err != nil {
		return domain.MenuItem{}, s.mapRepositoryError(err)
	}

	s.recordAudit(ctx, caller, "menu.create", item.ID, map[string]any{"name": item.Name, "price": item.Price})
	return item, nil
}

// Update overwrites a catalog entry. Admin only. Existing orders keep their
// snapshotted prices.
func (s *menuService) Update(ctx context.Context, caller Caller, itemID string, input MenuItemInput) (domain.MenuItem, error) {
	if !caller.IsAdmin() {
		return domain.MenuItem{}, ErrMenuForbidden
	}
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return domain.MenuItem{}, fmt.Errorf("%w: item id is required", ErrMenuInvalidInput)
	}
	if err := validateMenuInput(input); err != nil {
		return domain.MenuItem{}, err
	}

	item, err := s.menu.FindByID(ctx, itemID)
	if err != nil {
		return domain.MenuItem{}, s.mapRepositoryError(err)
	}

	item.Name = strings.TrimSpace(input.Name)
	item.Price = input.Price
	item.Category = strings.TrimSpace(input.Category)
	item.Description = strings.TrimSpace(input.Description)
	item.ImageURL = strings.TrimSpace(input.ImageURL)
	item.Available = input.Available
	item.UpdatedAt = s.clock()

	if err := s.menu.Update(ctx, item); err != nil {
		return domain.MenuItem{}, s.mapRepositoryError(err)
	}

	s.recordAudit(ctx, caller, "menu.update", item.ID, map[string]any{"name": item.Name, "price": item.Price})
	return item, nil
}

// Delete removes a catalog entry. Admin only.
func (s *menuService) Delete(ctx context.Context, caller Caller, itemID string) error {
	if !caller.IsAdmin() {
		return ErrMenuForbidden
	}
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return fmt.Errorf("%w: item id is required", ErrMenuInvalidInput)
	}

	if _, err := s.menu.FindByID(ctx, itemID); err != nil {
		return s.mapRepositoryError(err)
	}
	if err := s.menu.Delete(ctx, itemID); err != nil {
		return s.mapRepositoryError(err)
	}

	s.recordAudit(ctx, caller, "menu.delete", itemID, nil)
	return nil
}

// Get loads a single catalog entry.
func (s *menuService) Get(ctx context.Context, itemID string) (domain.MenuItem, error) {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return domain.MenuItem{}, fmt.Errorf("%w: item id is required", ErrMenuInvalidInput)
	}
	item, err := s.menu.FindByID(ctx, itemID)
	if err != nil {
		return domain.MenuItem{}, s.mapRepositoryError(err)
	}
	return item, nil
}

// List returns catalog entries, optionally restricted to available ones.
func (s *menuService) List(ctx context.Context, onlyAvailable bool) ([]domain.MenuItem, error) {
	items, err := s.menu.List(ctx, onlyAvailable)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	return items, nil
}

func (s *menuService) recordAudit(ctx context.Context, caller Caller, action, itemID string, metadata map[string]any) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, AuditEvent{
		ActorID:      caller.UserID,
		Action:       action,
		ResourceType: "menu_item",
		ResourceID:   itemID,
		Metadata:     metadata,
	})
}

func (s *menuService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	if repoErr, ok := repoError(err); ok {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrMenuNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrMenuConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrMenuUnavailable, err)
		}
	}
	return err
}

func validateMenuInput(input MenuItemInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrMenuInvalidInput)
	}
	if input.Price <= 0 {
		return fmt.Errorf("%w: price must be positive", ErrMenuInvalidInput)
	}
	if strings.TrimSpace(input.Category) == "" {
		return fmt.Errorf("%w: category is required", ErrMenuInvalidInput)
	}
	return nil
}
