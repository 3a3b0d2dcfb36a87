package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/masala-table/api/internal/domain"
)

func TestDashboardSummaryAggregatesToday(t *testing.T) {
	orders := newFakeOrderRepo()
	users := newFakeUserRepo()
	bookings := newFakeBookingRepo()
	messages := newFakeContactRepo()

	users.users["usr_alice"] = domain.User{ID: "usr_alice"}
	users.users["usr_bob"] = domain.User{ID: "usr_bob"}

	orders.orders["ord_1"] = domain.Order{
		ID: "ord_1", OwnerID: "usr_alice", TotalAmount: 300,
		Status: domain.StatusPending, CreatedAt: testNow,
		Items: []domain.OrderItem{
			{MenuItemID: "itm_paneer", Name: "Paneer Tikka", Quantity: 2, UnitPrice: 100},
			{MenuItemID: "itm_samosa", Name: "Samosa", Quantity: 1, UnitPrice: 40},
		},
	}
	orders.orders["ord_2"] = domain.Order{
		ID: "ord_2", OwnerID: "usr_bob", TotalAmount: 500,
		Status: domain.StatusDelivered, CreatedAt: testNow.Add(-2 * time.Hour),
		Items: []domain.OrderItem{
			{MenuItemID: "itm_samosa", Name: "Samosa", Quantity: 3, UnitPrice: 40},
		},
	}
	// Cancelled orders contribute to the status breakdown but nothing else.
	orders.orders["ord_3"] = domain.Order{
		ID: "ord_3", OwnerID: "usr_bob", TotalAmount: 900,
		Status: domain.StatusCancelled, CreatedAt: testNow.Add(-time.Hour),
		Items: []domain.OrderItem{
			{MenuItemID: "itm_paneer", Name: "Paneer Tikka", Quantity: 10, UnitPrice: 100},
		},
	}
	// Yesterday's order stays out of every figure.
	orders.orders["ord_old"] = domain.Order{
		ID: "ord_old", OwnerID: "usr_alice", TotalAmount: 9999,
		Status: domain.StatusDelivered, CreatedAt: testNow.Add(-36 * time.Hour),
	}

	bookings.bookings["bkg_1"] = domain.Booking{
		ID: "bkg_1", UserID: "usr_alice", Status: domain.BookingConfirmed,
		BookingDate: testNow.Add(2 * time.Hour),
	}
	bookings.bookings["bkg_2"] = domain.Booking{
		ID: "bkg_2", UserID: "usr_bob", Status: domain.BookingCancelled,
		BookingDate: testNow.Add(3 * time.Hour),
	}
	bookings.bookings["bkg_3"] = domain.Booking{
		ID: "bkg_3", UserID: "usr_bob", Status: domain.BookingConfirmed,
		BookingDate: testNow.Add(72 * time.Hour),
	}

	messages.messages["msg_1"] = domain.ContactMessage{ID: "msg_1", Status: domain.ContactPending}
	messages.messages["msg_2"] = domain.ContactMessage{ID: "msg_2", Status: domain.ContactResolved}

	service, err := NewDashboardService(DashboardServiceDeps{
		Orders:   orders,
		Users:    users,
		Bookings: bookings,
		Messages: messages,
		Clock:    fixedClock(testNow),
	})
	if err != nil {
		t.Fatalf("NewDashboardService: %v", err)
	}

	summary, err := service.Summary(context.Background(), Caller{UserID: "usr_staff", Role: domain.RoleAdmin})
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}

	if summary.TotalUsers != 2 {
		t.Fatalf("TotalUsers = %d, want 2", summary.TotalUsers)
	}
	if summary.OrdersToday != 3 {
		t.Fatalf("OrdersToday = %d, want 3", summary.OrdersToday)
	}
	if summary.RevenueToday != 800 {
		t.Fatalf("RevenueToday = %d, want 800", summary.RevenueToday)
	}
	if summary.PendingOrders != 1 {
		t.Fatalf("PendingOrders = %d, want 1", summary.PendingOrders)
	}
	if summary.PendingMessages != 1 {
		t.Fatalf("PendingMessages = %d, want 1", summary.PendingMessages)
	}
	if summary.BookingsToday != 1 {
		t.Fatalf("BookingsToday = %d, want 1", summary.BookingsToday)
	}
	if summary.RevenueTodayLabel != "₹800" {
		t.Fatalf("RevenueTodayLabel = %q", summary.RevenueTodayLabel)
	}

	wantByStatus := map[domain.OrderStatus]int{
		domain.StatusPending:   1,
		domain.StatusDelivered: 1,
		domain.StatusCancelled: 1,
	}
	if len(summary.OrdersByStatus) != len(wantByStatus) {
		t.Fatalf("OrdersByStatus = %v, want %v", summary.OrdersByStatus, wantByStatus)
	}
	for status, count := range wantByStatus {
		if summary.OrdersByStatus[status] != count {
			t.Fatalf("OrdersByStatus[%s] = %d, want %d", status, summary.OrdersByStatus[status], count)
		}
	}

	if summary.TopItem == nil {
		t.Fatal("TopItem = nil, want samosa")
	}
	if summary.TopItem.MenuItemID != "itm_samosa" || summary.TopItem.Quantity != 4 {
		t.Fatalf("TopItem = %+v, want itm_samosa with quantity 4", summary.TopItem)
	}
}

func TestDashboardSummaryAdminOnly(t *testing.T) {
	service, err := NewDashboardService(DashboardServiceDeps{
		Orders:   newFakeOrderRepo(),
		Users:    newFakeUserRepo(),
		Bookings: newFakeBookingRepo(),
		Messages: newFakeContactRepo(),
		Clock:    fixedClock(testNow),
	})
	if err != nil {
		t.Fatalf("NewDashboardService: %v", err)
	}

	if _, err := service.Summary(context.Background(), Caller{UserID: "usr_alice", Role: domain.RoleCustomer}); !errors.Is(err, ErrDashboardForbidden) {
		t.Fatalf("err = %v, want ErrDashboardForbidden", err)
	}
}
