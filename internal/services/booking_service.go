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

const (
	bookingIDPrefix = "bkg_"

	bookingEventConfirmed = "booking.confirmed"
	bookingEventCancelled = "booking.cancelled"
)

var (
	// ErrBookingInvalidInput signals the caller provided invalid data.
	ErrBookingInvalidInput = errors.New("booking: invalid input")
	// ErrBookingNotFound indicates the booking could not be located.
	ErrBookingNotFound = errors.New("booking: not found")
	// ErrBookingForbidden indicates the caller may not act on this booking.
	ErrBookingForbidden = errors.New("booking: forbidden")
	// ErrBookingConflict indicates a lost write race.
	ErrBookingConflict = errors.New("booking: conflict")
	// ErrBookingUnavailable indicates a transient backend outage.
	ErrBookingUnavailable = errors.New("booking: store unavailable")
)

// BookingServiceDeps bundles collaborators for the booking service.
type BookingServiceDeps struct {
	Bookings    repositories.BookingRepository
	Tables      repositories.TableRepository
	Audit       AuditLogService
	Notifier    Notifier
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type bookingService struct {
	bookings repositories.BookingRepository
	tables   repositories.TableRepository
	audit    AuditLogService
	notifier Notifier
	clock    func() time.Time
	newID    func() string
	logger   func(context.Context, string, map[string]any)
}

// NewBookingService wires dependencies into a concrete BookingService.
func NewBookingService(deps BookingServiceDeps) (BookingService, error) {
	if deps.Bookings == nil {
		return nil, errors.New("booking service: booking repository is required")
	}
	if deps.Tables == nil {
		return nil, errors.New("booking service: table repository is required")
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

	return &bookingService{
		bookings: deps.Bookings,
		tables:   deps.Tables,
		audit:    deps.Audit,
		notifier: deps.Notifier,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

// Create reserves a table for the caller. The table must exist, be marked
// available, and seat the whole party.
func (s *bookingService) Create(ctx context.Context, caller Caller, input BookingInput) (domain.Booking, error) {
	if strings.TrimSpace(caller.UserID) == "" {
		return domain.Booking{}, fmt.Errorf("%w: caller is required", ErrBookingInvalidInput)
	}
	tableID := strings.TrimSpace(input.TableID)
	if tableID == "" {
		return domain.Booking{}, fmt.Errorf("%w: table id is required", ErrBookingInvalidInput)
	}
	if input.NumberOfGuests <= 0 {
		return domain.Booking{}, fmt.Errorf("%w: number of guests must be positive", ErrBookingInvalidInput)
	}
	if input.BookingDate.Before(s.clock()) {
		return domain.Booking{}, fmt.Errorf("%w: booking date must be in the future", ErrBookingInvalidInput)
	}

	table, err := s.tables.FindByID(ctx, tableID)
	if err != nil {
		return domain.Booking{}, s.mapRepositoryError(err)
	}
	if !table.Available {
		return domain.Booking{}, fmt.Errorf("%w: table %d is not bookable", ErrBookingInvalidInput, table.TableNumber)
	}
	if input.NumberOfGuests > table.Capacity {
		return domain.Booking{}, fmt.Errorf("%w: table %d seats %d guests", ErrBookingInvalidInput, table.TableNumber, table.Capacity)
	}

	now := s.clock()
	booking := domain.Booking{
		ID:              bookingIDPrefix + s.newID(),
		UserID:          caller.UserID,
		TableID:         table.ID,
		BookingDate:     input.BookingDate.UTC(),
		NumberOfGuests:  input.NumberOfGuests,
		SpecialRequests: strings.TrimSpace(input.SpecialRequests),
		Status:          domain.BookingConfirmed,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.bookings.Insert(ctx, booking); err != nil {
		return domain.Booking{}, s.mapRepositoryError(err)
	}

	s.recordAudit(ctx, caller, "booking.create", booking.ID, map[string]any{
		"table":  table.TableNumber,
		"guests": booking.NumberOfGuests,
	})
	s.notify(ctx, Notification{
		Event:   bookingEventConfirmed,
		UserID:  booking.UserID,
		Subject: "Booking confirmed",
		Body: fmt.Sprintf("Table %d is reserved for %d guests on %s.",
			table.TableNumber, booking.NumberOfGuests, booking.BookingDate.Format("Mon, 2 Jan 2006 at 15:04")),
	})

	return booking, nil
}

// Cancel marks the booking cancelled. Owners may cancel their own bookings;
// admins may cancel any.
func (s *bookingService) Cancel(ctx context.Context, caller Caller, bookingID string) (domain.Booking, error) {
	bookingID = strings.TrimSpace(bookingID)
	if bookingID == "" {
		return domain.Booking{}, fmt.Errorf("%w: booking id is required", ErrBookingInvalidInput)
	}

	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return domain.Booking{}, s.mapRepositoryError(err)
	}
	if !caller.IsAdmin() && booking.UserID != caller.UserID {
		return domain.Booking{}, ErrBookingForbidden
	}
	if booking.Status == domain.BookingCancelled {
		return booking, nil
	}

	booking.Status = domain.BookingCancelled
	booking.UpdatedAt = s.clock()
	if err := s.bookings.Update(ctx, booking); err != nil {
		return domain.Booking{}, s.mapRepositoryError(err)
	}

	s.recordAudit(ctx, caller, "booking.cancel", booking.ID, nil)
	s.notify(ctx, Notification{
		Event:   bookingEventCancelled,
		UserID:  booking.UserID,
		Subject: "Booking cancelled",
		Body:    "Your table reservation has been cancelled.",
	})

	return booking, nil
}

// ListMine returns the caller's bookings.
func (s *bookingService) ListMine(ctx context.Context, caller Caller) ([]domain.Booking, error) {
	if strings.TrimSpace(caller.UserID) == "" {
		return nil, fmt.Errorf("%w: caller is required", ErrBookingInvalidInput)
	}
	bookings, err := s.bookings.ListByUser(ctx, caller.UserID)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	return bookings, nil
}

// ListAll returns every booking. Admin only.
func (s *bookingService) ListAll(ctx context.Context, caller Caller) ([]domain.Booking, error) {
	if !caller.IsAdmin() {
		return nil, ErrBookingForbidden
	}
	bookings, err := s.bookings.ListAll(ctx)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	return bookings, nil
}

func (s *bookingService) recordAudit(ctx context.Context, caller Caller, action, bookingID string, metadata map[string]any) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, AuditEvent{
		ActorID:      caller.UserID,
		Action:       action,
		ResourceType: "booking",
		ResourceID:   bookingID,
		Metadata:     metadata,
	})
}

func (s *bookingService) notify(ctx context.Context, notification Notification) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.Publish(ctx, notification); err != nil {
		s.logger(ctx, "booking.notification.failed", map[string]any{
			"event": notification.Event,
			"error": err.Error(),
		})
	}
}

func (s *bookingService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	if repoErr, ok := repoError(err); ok {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrBookingNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrBookingConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrBookingUnavailable, err)
		}
	}
	return err
}
