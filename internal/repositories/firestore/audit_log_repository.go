package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/masala-table/api/internal/domain"
	pfirestore "github.com/masala-table/api/internal/platform/firestore"
)

const auditLogCollection = "audit_logs"

// AuditLogRepository appends audit entries. The collection is append-only.
type AuditLogRepository struct {
	base *pfirestore.BaseRepository[auditLogDocument]
}

// NewAuditLogRepository constructs a Firestore-backed audit log repository.
func NewAuditLogRepository(provider *pfirestore.Provider) (*AuditLogRepository, error) {
	if provider == nil {
		return nil, errors.New("audit log repository requires firestore provider")
	}
	return &AuditLogRepository{
		base: pfirestore.NewBaseRepository[auditLogDocument](provider, auditLogCollection),
	}, nil
}

// Append writes a new audit entry. Entries are never updated or deleted.
func (r *AuditLogRepository) Append(ctx context.Context, entry domain.AuditLogEntry) error {
	if r == nil || r.base == nil {
		return errors.New("audit log repository not initialised")
	}
	if strings.TrimSpace(entry.ID) == "" {
		return errors.New("audit entry id is required")
	}
	return r.base.Create(ctx, entry.ID, fromDomainAuditEntry(entry))
}

type auditLogDocument struct {
	ActorID      string         `firestore:"actor_id,omitempty"`
	Action       string         `firestore:"action"`
	ResourceType string         `firestore:"resource_type"`
	ResourceID   string         `firestore:"resource_id"`
	Metadata     map[string]any `firestore:"metadata,omitempty"`
	IP           string         `firestore:"ip,omitempty"`
	CreatedAt    time.Time      `firestore:"created_at"`
}

func fromDomainAuditEntry(entry domain.AuditLogEntry) auditLogDocument {
	return auditLogDocument{
		ActorID:      entry.ActorID,
		Action:       entry.Action,
		ResourceType: entry.ResourceType,
		ResourceID:   entry.ResourceID,
		Metadata:     entry.Metadata,
		IP:           entry.IP,
		CreatedAt:    entry.CreatedAt,
	}
}
