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

const contactCollection = "contact_messages"

// ContactRepository persists contact-form messages.
type ContactRepository struct {
	base *pfirestore.BaseRepository[contactMessageDocument]
}

// NewContactRepository constructs a Firestore-backed contact repository.
func NewContactRepository(provider *pfirestore.Provider) (*ContactRepository, error) {
	if provider == nil {
		return nil, errors.New("contact repository requires firestore provider")
	}
	return &ContactRepository{
		base: pfirestore.NewBaseRepository[contactMessageDocument](provider, contactCollection),
	}, nil
}

// Insert creates the message document, failing if the id already exists.
func (r *ContactRepository) Insert(ctx context.Context, msg domain.ContactMessage) error {
	if r == nil || r.base == nil {
		return errors.New("contact repository not initialised")
	}
	if strings.TrimSpace(msg.ID) == "" {
		return errors.New("contact message id is required")
	}
	return r.base.Create(ctx, msg.ID, fromDomainContactMessage(msg))
}

// Update overwrites the message document.
func (r *ContactRepository) Update(ctx context.Context, msg domain.ContactMessage) error {
	if r == nil || r.base == nil {
		return errors.New("contact repository not initialised")
	}
	if strings.TrimSpace(msg.ID) == "" {
		return errors.New("contact message id is required")
	}
	return r.base.Set(ctx, msg.ID, fromDomainContactMessage(msg))
}

// Delete removes the message document.
func (r *ContactRepository) Delete(ctx context.Context, msgID string) error {
	if r == nil || r.base == nil {
		return errors.New("contact repository not initialised")
	}
	return r.base.Delete(ctx, msgID)
}

// FindByID loads a single message.
func (r *ContactRepository) FindByID(ctx context.Context, msgID string) (domain.ContactMessage, error) {
	if r == nil || r.base == nil {
		return domain.ContactMessage{}, errors.New("contact repository not initialised")
	}
	doc, err := r.base.Get(ctx, msgID)
	if err != nil {
		return domain.ContactMessage{}, err
	}
	return toDomainContactMessage(doc.ID, doc.Data), nil
}

// List returns every message, newest first.
func (r *ContactRepository) List(ctx context.Context) ([]domain.ContactMessage, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("contact repository not initialised")
	}

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.OrderBy("created_at", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}

	messages := make([]domain.ContactMessage, 0, len(docs))
	for _, doc := range docs {
		messages = append(messages, toDomainContactMessage(doc.ID, doc.Data))
	}
	return messages, nil
}

type contactMessageDocument struct {
	Name        string    `firestore:"name"`
	Email       string    `firestore:"email"`
	Phone       string    `firestore:"phone,omitempty"`
	Subject     string    `firestore:"subject"`
	Message     string    `firestore:"message"`
	Status      string    `firestore:"status"`
	RespondedBy string    `firestore:"responded_by,omitempty"`
	CreatedAt   time.Time `firestore:"created_at"`
	UpdatedAt   time.Time `firestore:"updated_at"`
}

func fromDomainContactMessage(msg domain.ContactMessage) contactMessageDocument {
	return contactMessageDocument{
		Name:        msg.Name,
		Email:       msg.Email,
		Phone:       msg.Phone,
		Subject:     msg.Subject,
		Message:     msg.Message,
		Status:      msg.Status,
		RespondedBy: msg.RespondedBy,
		CreatedAt:   msg.CreatedAt,
		UpdatedAt:   msg.UpdatedAt,
	}
}

func toDomainContactMessage(id string, doc contactMessageDocument) domain.ContactMessage {
	return domain.ContactMessage{
		ID:          id,
		Name:        doc.Name,
		Email:       doc.Email,
		Phone:       doc.Phone,
		Subject:     doc.Subject,
		Message:     doc.Message,
		Status:      doc.Status,
		RespondedBy: doc.RespondedBy,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
}
