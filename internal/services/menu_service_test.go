package services

import (
	"context"
	"errors"
	"testing"

	domain "github.com/masala-table/api/internal/domain"
)

func newMenuService(t *testing.T, catalog *fakeMenuRepo) MenuService {
	t.Helper()
	service, err := NewMenuService(MenuServiceDeps{
		Menu:        catalog,
		Audit:       &recordingAudit{},
		Clock:       fixedClock(testNow),
		IDGenerator: sequentialIDs("m"),
	})
	if err != nil {
		t.Fatalf("NewMenuService: %v", err)
	}
	return service
}

func TestMenuMutationsAreAdminOnly(t *testing.T) {
	service := newMenuService(t, newTestCatalog())
	customer := Caller{UserID: "usr_alice", Role: domain.RoleCustomer}
	input := MenuItemInput{Name: "Dal Makhani", Price: 240, Category: "mains", Available: true}

	if _, err := service.Create(context.Background(), customer, input); !errors.Is(err, ErrMenuForbidden) {
		t.Fatalf("Create err = %v, want ErrMenuForbidden", err)
	}
	if _, err := service.Update(context.Background(), customer, "itm_samosa", input); !errors.Is(err, ErrMenuForbidden) {
		t.Fatalf("Update err = %v, want ErrMenuForbidden", err)
	}
	if err := service.Delete(context.Background(), customer, "itm_samosa"); !errors.Is(err, ErrMenuForbidden) {
		t.Fatalf("Delete err = %v, want ErrMenuForbidden", err)
	}
}

func TestMenuCreateUpdateDelete(t *testing.T) {
	catalog := newTestCatalog()
	service := newMenuService(t, catalog)
	admin := Caller{UserID: "usr_staff", Role: domain.RoleAdmin}

	created, err := service.Create(context.Background(), admin, MenuItemInput{
		Name: " Dal Makhani ", Price: 240, Category: "mains", Available: true,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Name != "Dal Makhani" {
		t.Fatalf("Name = %q, want trimmed", created.Name)
	}

	updated, err := service.Update(context.Background(), admin, created.ID, MenuItemInput{
		Name: "Dal Makhani", Price: 260, Category: "mains", Available: false,
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Price != 260 || updated.Available {
		t.Fatalf("updated = %+v", updated)
	}

	if err := service.Delete(context.Background(), admin, created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := service.Get(context.Background(), created.ID); !errors.Is(err, ErrMenuNotFound) {
		t.Fatalf("Get after delete err = %v, want ErrMenuNotFound", err)
	}
	if err := service.Delete(context.Background(), admin, created.ID); !errors.Is(err, ErrMenuNotFound) {
		t.Fatalf("double Delete err = %v, want ErrMenuNotFound", err)
	}
}

func TestMenuValidation(t *testing.T) {
	service := newMenuService(t, newTestCatalog())
	admin := Caller{UserID: "usr_staff", Role: domain.RoleAdmin}

	cases := []struct {
		name  string
		input MenuItemInput
	}{
		{"blank name", MenuItemInput{Price: 100, Category: "mains"}},
		{"zero price", MenuItemInput{Name: "Dal", Category: "mains"}},
		{"negative price", MenuItemInput{Name: "Dal", Price: -5, Category: "mains"}},
		{"blank category", MenuItemInput{Name: "Dal", Price: 100}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := service.Create(context.Background(), admin, tc.input); !errors.Is(err, ErrMenuInvalidInput) {
				t.Fatalf("err = %v, want ErrMenuInvalidInput", err)
			}
		})
	}
}

func TestMenuListFiltersAvailability(t *testing.T) {
	service := newMenuService(t, newTestCatalog())

	all, err := service.List(context.Background(), false)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len(all) = %d, want 3", len(all))
	}

	available, err := service.List(context.Background(), true)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(available) != 2 {
		t.Fatalf("len(available) = %d, want 2", len(available))
	}
	for _, item := range available {
		if !item.Available {
			t.Fatalf("unavailable item in filtered listing: %+v", item)
		}
	}
}
