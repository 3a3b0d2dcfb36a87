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

const tableIDPrefix = "tbl_"

var (
	// ErrTableInvalidInput signals the caller provided invalid data.
	ErrTableInvalidInput = errors.New("table: invalid input")
	// ErrTableNotFound indicates the table could not be located.
	ErrTableNotFound = errors.New("table: not found")
	// ErrTableForbidden indicates a non-admin attempted a table mutation.
	ErrTableForbidden = errors.New("table: forbidden")
	// ErrTableConflict indicates a duplicate id or a lost write race.
	ErrTableConflict = errors.New("table: conflict")
	// ErrTableUnavailable indicates a transient backend outage.
	ErrTableUnavailable = errors.New("table: store unavailable")
)

// TableServiceDeps bundles collaborators for the table service.
type TableServiceDeps struct {
	Tables      repositories.TableRepository
	Audit       AuditLogService
	Clock       func() time.Time
	IDGenerator func() string
}

type tableService struct {
	tables repositories.TableRepository
	audit  AuditLogService
	clock  func() time.Time
	newID  func() string
}

// NewTableService wires dependencies into a concrete TableService.
func NewTableService(deps TableServiceDeps) (TableService, error) {
	if deps.Tables == nil {
		return nil, errors.New("table service: table repository is required")
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

	return &tableService{
		tables: deps.Tables,
		audit:  deps.Audit,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID: idGen,
	}, nil
}

// Create adds a dining table. Admin only.
func (s *tableService) Create(ctx context.Context, caller Caller, input TableInput) (domain.Table, error) {
	if !caller.IsAdmin() {
		return domain.Table{}, ErrTableForbidden
	}
	if err := validateTableInput(input); err != nil {
		return domain.Table{}, err
	}

	now := s.clock()
	table := domain.Table{
		ID:          tableIDPrefix + s.newID(),
		TableNumber: input.TableNumber,
		Capacity:    input.Capacity,
		Available:   input.Available,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.tables.Insert(ctx, table); err != nil {
		return domain.Table{}, s.mapRepositoryError(err)
	}

	s.recordAudit(ctx, caller, "table.create", table.ID, map[string]any{"number": table.TableNumber})
	return table, nil
}

// Update overwrites a dining table. Admin only.
func (s *tableService) Update(ctx context.Context, caller Caller, tableID string, input TableInput) (domain.Table, error) {
	if !caller.IsAdmin() {
		return domain.Table{}, ErrTableForbidden
	}
	tableID = strings.TrimSpace(tableID)
	if tableID == "" {
		return domain.Table{}, fmt.Errorf("%w: table id is required", ErrTableInvalidInput)
	}
	if err := validateTableInput(input); err != nil {
		return domain.Table{}, err
	}

	table, err := s.tables.FindByID(ctx, tableID)
	if err != nil {
		return domain.Table{}, s.mapRepositoryError(err)
	}

	table.TableNumber = input.TableNumber
	table.Capacity = input.Capacity
	table.Available = input.Available
	table.UpdatedAt = s.clock()

	if err := s.tables.Update(ctx, table); err != nil {
		return domain.Table{}, s.mapRepositoryError(err)
	}

	s.recordAudit(ctx, caller, "table.update", table.ID, map[string]any{"number": table.TableNumber})
	return table, nil
}

// Delete removes a dining table. Admin only.
func (s *tableService) Delete(ctx context.Context, caller Caller, tableID string) error {
	if !caller.IsAdmin() {
		return ErrTableForbidden
	}
	tableID = strings.TrimSpace(tableID)
	if tableID == "" {
		return fmt.Errorf("%w: table id is required", ErrTableInvalidInput)
	}

	if _, err := s.tables.FindByID(ctx, tableID); err != nil {
		return s.mapRepositoryError(err)
	}
	if err := s.tables.Delete(ctx, tableID); err != nil {
		return s.mapRepositoryError(err)
	}

	s.recordAudit(ctx, caller, "table.delete", tableID, nil)
	return nil
}

// List returns dining tables, optionally restricted to available ones.
func (s *tableService) List(ctx context.Context, onlyAvailable bool) ([]domain.Table, error) {
	tables, err := s.tables.List(ctx, onlyAvailable)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	return tables, nil
}

func (s *tableService) recordAudit(ctx context.Context, caller Caller, action, tableID string, metadata map[string]any) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, AuditEvent{
		ActorID:      caller.UserID,
		Action:       action,
		ResourceType: "table",
		ResourceID:   tableID,
		Metadata:     metadata,
	})
}

func (s *tableService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	if repoErr, ok := repoError(err); ok {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrTableNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrTableConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrTableUnavailable, err)
		}
	}
	return err
}

func validateTableInput(input TableInput) error {
	if input.TableNumber <= 0 {
		return fmt.Errorf("%w: table number must be positive", ErrTableInvalidInput)
	}
	if input.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be positive", ErrTableInvalidInput)
	}
	return nil
}
