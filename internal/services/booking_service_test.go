package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/masala-table/api/internal/domain"
)

type bookingFixture struct {
	service  BookingService
	bookings *fakeBookingRepo
	tables   *fakeTableRepo
	notifier *fakeNotifier
}

func newBookingFixture(t *testing.T) *bookingFixture {
	t.Helper()

	tables := newFakeTableRepo(
		domain.Table{ID: "tbl_1", TableNumber: 1, Capacity: 4, Available: true},
		domain.Table{ID: "tbl_2", TableNumber: 2, Capacity: 2, Available: false},
	)
	bookings := newFakeBookingRepo()
	notifier := &fakeNotifier{}

	service, err := NewBookingService(BookingServiceDeps{
		Bookings:    bookings,
		Tables:      tables,
		Audit:       &recordingAudit{},
		Notifier:    notifier,
		Clock:       fixedClock(testNow),
		IDGenerator: sequentialIDs("b"),
	})
	if err != nil {
		t.Fatalf("NewBookingService: %v", err)
	}
	return &bookingFixture{service: service, bookings: bookings, tables: tables, notifier: notifier}
}

func bookingInput() BookingInput {
	return BookingInput{
		TableID:        "tbl_1",
		BookingDate:    testNow.Add(48 * time.Hour),
		NumberOfGuests: 3,
	}
}

func TestCreateBookingReservesTheTable(t *testing.T) {
	fx := newBookingFixture(t)
	caller := Caller{UserID: "usr_alice", Role: domain.RoleCustomer}

	booking, err := fx.service.Create(context.Background(), caller, bookingInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if booking.Status != domain.BookingConfirmed {
		t.Fatalf("Status = %q, want confirmed", booking.Status)
	}
	if booking.UserID != "usr_alice" || booking.TableID != "tbl_1" {
		t.Fatalf("booking = %+v", booking)
	}
	if events := fx.notifier.events(); len(events) != 1 || events[0] != "booking.confirmed" {
		t.Fatalf("notifications = %v", events)
	}
}

func TestCreateBookingValidation(t *testing.T) {
	fx := newBookingFixture(t)
	caller := Caller{UserID: "usr_alice", Role: domain.RoleCustomer}

	cases := []struct {
		name   string
		mutate func(*BookingInput)
		want   error
	}{
		{"blank table id", func(in *BookingInput) { in.TableID = " " }, ErrBookingInvalidInput},
		{"zero guests", func(in *BookingInput) { in.NumberOfGuests = 0 }, ErrBookingInvalidInput},
		{"date in the past", func(in *BookingInput) { in.BookingDate = testNow.Add(-time.Hour) }, ErrBookingInvalidInput},
		{"unknown table", func(in *BookingInput) { in.TableID = "tbl_ghost" }, ErrBookingNotFound},
		{"unavailable table", func(in *BookingInput) { in.TableID = "tbl_2" }, ErrBookingInvalidInput},
		{"party exceeds capacity", func(in *BookingInput) { in.NumberOfGuests = 5 }, ErrBookingInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := bookingInput()
			tc.mutate(&input)
			if _, err := fx.service.Create(context.Background(), caller, input); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestCancelBookingOwnershipRules(t *testing.T) {
	fx := newBookingFixture(t)
	owner := Caller{UserID: "usr_alice", Role: domain.RoleCustomer}

	booking, err := fx.service.Create(context.Background(), owner, bookingInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := fx.service.Cancel(context.Background(), Caller{UserID: "usr_bob", Role: domain.RoleCustomer}, booking.ID); !errors.Is(err, ErrBookingForbidden) {
		t.Fatalf("stranger Cancel err = %v, want ErrBookingForbidden", err)
	}

	cancelled, err := fx.service.Cancel(context.Background(), owner, booking.ID)
	if err != nil {
		t.Fatalf("owner Cancel: %v", err)
	}
	if cancelled.Status != domain.BookingCancelled {
		t.Fatalf("Status = %q, want cancelled", cancelled.Status)
	}

	// Cancelling twice is a no-op.
	again, err := fx.service.Cancel(context.Background(), owner, booking.ID)
	if err != nil {
		t.Fatalf("second Cancel: %v", err)
	}
	if again.Status != domain.BookingCancelled {
		t.Fatalf("Status = %q, want cancelled", again.Status)
	}

	// Admins may cancel anyone's booking.
	second, err := fx.service.Create(context.Background(), owner, bookingInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := fx.service.Cancel(context.Background(), Caller{UserID: "usr_staff", Role: domain.RoleAdmin}, second.ID); err != nil {
		t.Fatalf("admin Cancel: %v", err)
	}
}

func TestBookingListings(t *testing.T) {
	fx := newBookingFixture(t)
	alice := Caller{UserID: "usr_alice", Role: domain.RoleCustomer}
	bob := Caller{UserID: "usr_bob", Role: domain.RoleCustomer}

	if _, err := fx.service.Create(context.Background(), alice, bookingInput()); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := fx.service.Create(context.Background(), bob, bookingInput()); err != nil {
		t.Fatalf("Create: %v", err)
	}

	mine, err := fx.service.ListMine(context.Background(), alice)
	if err != nil {
		t.Fatalf("ListMine: %v", err)
	}
	if len(mine) != 1 || mine[0].UserID != "usr_alice" {
		t.Fatalf("ListMine = %+v", mine)
	}

	if _, err := fx.service.ListAll(context.Background(), alice); !errors.Is(err, ErrBookingForbidden) {
		t.Fatalf("customer ListAll err = %v, want ErrBookingForbidden", err)
	}
	all, err := fx.service.ListAll(context.Background(), Caller{UserID: "usr_staff", Role: domain.RoleAdmin})
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("ListAll length = %d, want 2", len(all))
	}
}
