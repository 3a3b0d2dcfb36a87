package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/masala-table/api/internal/domain"
	"github.com/masala-table/api/internal/repositories"
)

const auditEntryIDPrefix = "aud_"

// AuditLogServiceDeps bundles collaborators for the audit log service.
type AuditLogServiceDeps struct {
	Entries     repositories.AuditLogRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type auditLogService struct {
	entries repositories.AuditLogRepository
	clock   func() time.Time
	newID   func() string
	logger  func(context.Context, string, map[string]any)
}

// NewAuditLogService wires dependencies into a concrete AuditLogService.
func NewAuditLogService(deps AuditLogServiceDeps) (AuditLogService, error) {
	if deps.Entries == nil {
		return nil, errors.New("audit log service: audit repository is required")
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
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &auditLogService{
		entries: deps.Entries,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

// Record appends an audit entry. Failures are logged and swallowed; auditing
// never fails the mutation being recorded.
func (s *auditLogService) Record(ctx context.Context, event AuditEvent) {
	if strings.TrimSpace(event.Action) == "" {
		return
	}

	entry := domain.AuditLogEntry{
		ID:           auditEntryIDPrefix + s.newID(),
		ActorID:      event.ActorID,
		Action:       event.Action,
		ResourceType: event.ResourceType,
		ResourceID:   event.ResourceID,
		Metadata:     event.Metadata,
		IP:           event.IP,
		CreatedAt:    s.clock(),
	}

	if err := s.entries.Append(ctx, entry); err != nil {
		s.logger(ctx, "audit.append.failed", map[string]any{
			"action":   event.Action,
			"resource": event.ResourceID,
			"error":    err.Error(),
		})
	}
}
