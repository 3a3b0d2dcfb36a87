package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	domain "github.com/masala-table/api/internal/domain"
	"github.com/masala-table/api/internal/platform/httpx"
	"github.com/masala-table/api/internal/services"
)

const maxContactBodySize = 16 * 1024

// ContactHandlers exposes the public contact-form submission endpoint. The
// admin mailbox lives under /admin.
type ContactHandlers struct {
	contact services.ContactService
}

// NewContactHandlers constructs the public contact handlers.
func NewContactHandlers(contact services.ContactService) *ContactHandlers {
	return &ContactHandlers{contact: contact}
}

// Routes wires the /contact endpoints onto the provided router.
func (h *ContactHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.submit)
}

type contactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

func (h *ContactHandlers) submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req contactRequest
	if err := decodeJSONBody(r, maxContactBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	msg, err := h.contact.Submit(ctx, services.ContactInput{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Subject: req.Subject,
		Message: req.Message,
	})
	if err != nil {
		writeContactError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, contactMessageResponse{Message: buildContactPayload(msg)})
}

func writeContactError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrContactInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrContactNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("message_not_found", "message not found", http.StatusNotFound))
	case errors.Is(err, services.ErrContactForbidden):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "insufficient permissions", http.StatusForbidden))
	case errors.Is(err, services.ErrContactUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("contact_service_unavailable", "contact service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("contact_error", "failed to process request", http.StatusInternalServerError))
	}
}

type contactMessageResponse struct {
	Message contactPayload `json:"message"`
}

type contactMessagesResponse struct {
	Messages []contactPayload `json:"messages"`
	Count    int              `json:"count"`
}

type contactPayload struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone,omitempty"`
	Subject     string `json:"subject"`
	Message     string `json:"message"`
	Status      string `json:"status"`
	RespondedBy string `json:"responded_by,omitempty"`
	CreatedAt   string `json:"created_at"`
}

func buildContactPayload(msg domain.ContactMessage) contactPayload {
	return contactPayload{
		ID:          msg.ID,
		Name:        msg.Name,
		Email:       msg.Email,
		Phone:       msg.Phone,
		Subject:     msg.Subject,
		Message:     msg.Message,
		Status:      msg.Status,
		RespondedBy: msg.RespondedBy,
		CreatedAt:   formatTime(msg.CreatedAt),
	}
}
