package services

import (
	"context"
	"errors"
	"testing"

	domain "github.com/masala-table/api/internal/domain"
)

func newTableService(t *testing.T, tables *fakeTableRepo) TableService {
	t.Helper()
	service, err := NewTableService(TableServiceDeps{
		Tables:      tables,
		Audit:       &recordingAudit{},
		Clock:       fixedClock(testNow),
		IDGenerator: sequentialIDs("t"),
	})
	if err != nil {
		t.Fatalf("NewTableService: %v", err)
	}
	return service
}

func TestTableMutationsAreAdminOnly(t *testing.T) {
	service := newTableService(t, newFakeTableRepo())
	customer := Caller{UserID: "usr_alice", Role: domain.RoleCustomer}
	input := TableInput{TableNumber: 1, Capacity: 4, Available: true}

	if _, err := service.Create(context.Background(), customer, input); !errors.Is(err, ErrTableForbidden) {
		t.Fatalf("Create err = %v, want ErrTableForbidden", err)
	}
	if _, err := service.Update(context.Background(), customer, "tbl_1", input); !errors.Is(err, ErrTableForbidden) {
		t.Fatalf("Update err = %v, want ErrTableForbidden", err)
	}
	if err := service.Delete(context.Background(), customer, "tbl_1"); !errors.Is(err, ErrTableForbidden) {
		t.Fatalf("Delete err = %v, want ErrTableForbidden", err)
	}
}

func TestTableLifecycle(t *testing.T) {
	tables := newFakeTableRepo()
	service := newTableService(t, tables)
	admin := Caller{UserID: "usr_staff", Role: domain.RoleAdmin}

	created, err := service.Create(context.Background(), admin, TableInput{TableNumber: 7, Capacity: 6, Available: true})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.TableNumber != 7 || created.Capacity != 6 {
		t.Fatalf("created = %+v", created)
	}

	updated, err := service.Update(context.Background(), admin, created.ID, TableInput{TableNumber: 7, Capacity: 6, Available: false})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Available {
		t.Fatal("table should be unavailable after update")
	}

	available, err := service.List(context.Background(), true)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(available) != 0 {
		t.Fatalf("available tables = %d, want 0", len(available))
	}

	if err := service.Delete(context.Background(), admin, created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	all, err := service.List(context.Background(), false)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("tables after delete = %d, want 0", len(all))
	}
}

func TestTableValidation(t *testing.T) {
	service := newTableService(t, newFakeTableRepo())
	admin := Caller{UserID: "usr_staff", Role: domain.RoleAdmin}

	cases := []struct {
		name  string
		input TableInput
	}{
		{"zero table number", TableInput{Capacity: 4}},
		{"zero capacity", TableInput{TableNumber: 1}},
		{"negative capacity", TableInput{TableNumber: 1, Capacity: -2}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := service.Create(context.Background(), admin, tc.input); !errors.Is(err, ErrTableInvalidInput) {
				t.Fatalf("err = %v, want ErrTableInvalidInput", err)
			}
		})
	}
}
