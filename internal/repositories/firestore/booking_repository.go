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

const bookingCollection = "bookings"

// BookingRepository persists table bookings.
type BookingRepository struct {
	base *pfirestore.BaseRepository[bookingDocument]
}

// NewBookingRepository constructs a Firestore-backed booking repository.
func NewBookingRepository(provider *pfirestore.Provider) (*BookingRepository, error) {
	if provider == nil {
		return nil, errors.New("booking repository requires firestore provider")
	}
	return &BookingRepository{
		base: pfirestore.NewBaseRepository[bookingDocument](provider, bookingCollection),
	}, nil
}

// Insert creates the booking document, failing if the id already exists.
func (r *BookingRepository) Insert(ctx context.Context, booking domain.Booking) error {
	if r == nil || r.base == nil {
		return errors.New("booking repository not initialised")
	}
	if strings.TrimSpace(booking.ID) == "" {
		return errors.New("booking id is required")
	}
	return r.base.Create(ctx, booking.ID, fromDomainBooking(booking))
}

// Update overwrites the booking document.
func (r *BookingRepository) Update(ctx context.Context, booking domain.Booking) error {
	if r == nil || r.base == nil {
		return errors.New("booking repository not initialised")
	}
	if strings.TrimSpace(booking.ID) == "" {
		return errors.New("booking id is required")
	}
	return r.base.Set(ctx, booking.ID, fromDomainBooking(booking))
}

// FindByID loads a single booking.
func (r *BookingRepository) FindByID(ctx context.Context, bookingID string) (domain.Booking, error) {
	if r == nil || r.base == nil {
		return domain.Booking{}, errors.New("booking repository not initialised")
	}
	doc, err := r.base.Get(ctx, bookingID)
	if err != nil {
		return domain.Booking{}, err
	}
	return toDomainBooking(doc.ID, doc.Data), nil
}

// ListByUser returns a user's bookings, most recent booking date first.
func (r *BookingRepository) ListByUser(ctx context.Context, userID string) ([]domain.Booking, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("booking repository not initialised")
	}
	if strings.TrimSpace(userID) == "" {
		return nil, errors.New("user id is required")
	}
	return r.list(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("user_id", "==", userID).OrderBy("booking_date", firestore.Desc)
	})
}

// ListAll returns every booking, most recent booking date first.
func (r *BookingRepository) ListAll(ctx context.Context) ([]domain.Booking, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("booking repository not initialised")
	}
	return r.list(ctx, func(query firestore.Query) firestore.Query {
		return query.OrderBy("booking_date", firestore.Desc)
	})
}

func (r *BookingRepository) list(ctx context.Context, build pfirestore.QueryBuilder) ([]domain.Booking, error) {
	docs, err := r.base.Query(ctx, build)
	if err != nil {
		return nil, err
	}
	bookings := make([]domain.Booking, 0, len(docs))
	for _, doc := range docs {
		bookings = append(bookings, toDomainBooking(doc.ID, doc.Data))
	}
	return bookings, nil
}

type bookingDocument struct {
	UserID          string    `firestore:"user_id"`
	TableID         string    `firestore:"table_id"`
	BookingDate     time.Time `firestore:"booking_date"`
	NumberOfGuests  int       `firestore:"number_of_guests"`
	SpecialRequests string    `firestore:"special_requests,omitempty"`
	Status          string    `firestore:"status"`
	CreatedAt       time.Time `firestore:"created_at"`
	UpdatedAt       time.Time `firestore:"updated_at"`
}

func fromDomainBooking(booking domain.Booking) bookingDocument {
	return bookingDocument{
		UserID:          booking.UserID,
		TableID:         booking.TableID,
		BookingDate:     booking.BookingDate,
		NumberOfGuests:  booking.NumberOfGuests,
		SpecialRequests: booking.SpecialRequests,
		Status:          booking.Status,
		CreatedAt:       booking.CreatedAt,
		UpdatedAt:       booking.UpdatedAt,
	}
}

func toDomainBooking(id string, doc bookingDocument) domain.Booking {
	return domain.Booking{
		ID:              id,
		UserID:          doc.UserID,
		TableID:         doc.TableID,
		BookingDate:     doc.BookingDate,
		NumberOfGuests:  doc.NumberOfGuests,
		SpecialRequests: doc.SpecialRequests,
		Status:          doc.Status,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
	}
}
