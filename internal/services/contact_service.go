package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	domain "github.com/masala-table/api/internal/domain"
	"github.com/masala-table/api/internal/repositories"
)

const (
	contactIDPrefix = "msg_"

	contactEventReceived = "contact.received"

	maxContactMessageLength = 4000
)

var (
	// ErrContactInvalidInput signals the caller provided invalid data.
	ErrContactInvalidInput = errors.New("contact: invalid input")
	// ErrContactNotFound indicates the message could not be located.
	ErrContactNotFound = errors.New("contact: not found")
	// ErrContactForbidden indicates a non-admin attempted a mailbox action.
	ErrContactForbidden = errors.New("contact: forbidden")
	// ErrContactUnavailable indicates a transient backend outage.
	ErrContactUnavailable = errors.New("contact: store unavailable")
)

// ContactServiceDeps bundles collaborators for the contact service.
type ContactServiceDeps struct {
	Messages repositories.ContactRepository
	Notifier Notifier
	// AdminEmail receives the new-message notification.
	AdminEmail  string
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type contactService struct {
	messages   repositories.ContactRepository
	notifier   Notifier
	adminEmail string
	sanitizer  *bluemonday.Policy
	clock      func() time.Time
	newID      func() string
	logger     func(context.Context, string, map[string]any)
}

// NewContactService wires dependencies into a concrete ContactService.
// Submissions come from an unauthenticated form, so every free-text field is
// stripped of markup before persisting.
func NewContactService(deps ContactServiceDeps) (ContactService, error) {
	if deps.Messages == nil {
		return nil, errors.New("contact service: contact repository is required")
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

	return &contactService{
		messages:   deps.Messages,
		notifier:   deps.Notifier,
		adminEmail: strings.TrimSpace(deps.AdminEmail),
		sanitizer:  bluemonday.StrictPolicy(),
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

// Submit stores a sanitised contact-form message and notifies the admin
// mailbox best effort.
func (s *contactService) Submit(ctx context.Context, input ContactInput) (domain.ContactMessage, error) {
	name := s.sanitize(input.Name)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	subject := s.sanitize(input.Subject)
	body := s.sanitize(input.Message)

	if name == "" {
		return domain.ContactMessage{}, fmt.Errorf("%w: name is required", ErrContactInvalidInput)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return domain.ContactMessage{}, fmt.Errorf("%w: invalid email address", ErrContactInvalidInput)
	}
	if subject == "" {
		return domain.ContactMessage{}, fmt.Errorf("%w: subject is required", ErrContactInvalidInput)
	}
	if body == "" {
		return domain.ContactMessage{}, fmt.Errorf("%w: message is required", ErrContactInvalidInput)
	}
	if len(body) > maxContactMessageLength {
		return domain.ContactMessage{}, fmt.Errorf("%w: message exceeds %d characters", ErrContactInvalidInput, maxContactMessageLength)
	}

	now := s.clock()
	msg := domain.ContactMessage{
		ID:        contactIDPrefix + s.newID(),
		Name:      name,
		Email:     email,
		Phone:     s.sanitize(input.Phone),
		Subject:   subject,
		Message:   body,
		Status:    domain.ContactPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.messages.Insert(ctx, msg); err != nil {
		return domain.ContactMessage{}, s.mapRepositoryError(err)
	}

	if s.notifier != nil && s.adminEmail != "" {
		if _, err := s.notifier.Publish(ctx, Notification{
			Event:     contactEventReceived,
			Recipient: s.adminEmail,
			Subject:   fmt.Sprintf("New contact message: %s", msg.Subject),
			Body:      fmt.Sprintf("%s <%s> wrote:\n\n%s", msg.Name, msg.Email, msg.Message),
			Metadata:  map[string]string{"messageId": msg.ID},
		}); err != nil {
			s.logger(ctx, "contact.notification.failed", map[string]any{
				"message": msg.ID,
				"error":   err.Error(),
			})
		}
	}

	return msg, nil
}

// List returns every message, newest first. Admin only.
func (s *contactService) List(ctx context.Context, caller Caller) ([]domain.ContactMessage, error) {
	if !caller.IsAdmin() {
		return nil, ErrContactForbidden
	}
	messages, err := s.messages.List(ctx)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	return messages, nil
}

// Resolve marks the message handled by the calling admin.
func (s *contactService) Resolve(ctx context.Context, caller Caller, msgID string) (domain.ContactMessage, error) {
	if !caller.IsAdmin() {
		return domain.ContactMessage{}, ErrContactForbidden
	}
	msgID = strings.TrimSpace(msgID)
	if msgID == "" {
		return domain.ContactMessage{}, fmt.Errorf("%w: message id is required", ErrContactInvalidInput)
	}

	msg, err := s.messages.FindByID(ctx, msgID)
	if err != nil {
		return domain.ContactMessage{}, s.mapRepositoryError(err)
	}

	msg.Status = domain.ContactResolved
	msg.RespondedBy = caller.UserID
	msg.UpdatedAt = s.clock()
	if err := s.messages.Update(ctx, msg); err != nil {
		return domain.ContactMessage{}, s.mapRepositoryError(err)
	}
	return msg, nil
}

// Delete removes a message. Admin only.
func (s *contactService) Delete(ctx context.Context, caller Caller, msgID string) error {
	if !caller.IsAdmin() {
		return ErrContactForbidden
	}
	msgID = strings.TrimSpace(msgID)
	if msgID == "" {
		return fmt.Errorf("%w: message id is required", ErrContactInvalidInput)
	}

	if _, err := s.messages.FindByID(ctx, msgID); err != nil {
		return s.mapRepositoryError(err)
	}
	if err := s.messages.Delete(ctx, msgID); err != nil {
		return s.mapRepositoryError(err)
	}
	return nil
}

func (s *contactService) sanitize(value string) string {
	return strings.TrimSpace(s.sanitizer.Sanitize(value))
}

func (s *contactService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	if repoErr, ok := repoError(err); ok {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrContactNotFound, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrContactUnavailable, err)
		}
	}
	return err
}
