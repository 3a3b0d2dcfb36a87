package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/masala-table/api/internal/domain"
	"github.com/masala-table/api/internal/repositories"
)

var (
	// ErrDashboardForbidden indicates a non-admin requested the summary.
	ErrDashboardForbidden = errors.New("dashboard: forbidden")
	// ErrDashboardUnavailable indicates a transient backend outage.
	ErrDashboardUnavailable = errors.New("dashboard: store unavailable")
)

// DashboardServiceDeps bundles collaborators for the dashboard service.
type DashboardServiceDeps struct {
	Orders   repositories.OrderRepository
	Users    repositories.UserRepository
	Bookings repositories.BookingRepository
	Messages repositories.ContactRepository
	Clock    func() time.Time
}

type dashboardService struct {
	orders   repositories.OrderRepository
	users    repositories.UserRepository
	bookings repositories.BookingRepository
	messages repositories.ContactRepository
	clock    func() time.Time
}

// NewDashboardService wires dependencies into a concrete DashboardService.
func NewDashboardService(deps DashboardServiceDeps) (DashboardService, error) {
	if deps.Orders == nil {
		return nil, errors.New("dashboard service: order repository is required")
	}
	if deps.Users == nil {
		return nil, errors.New("dashboard service: user repository is required")
	}
	if deps.Bookings == nil {
		return nil, errors.New("dashboard service: booking repository is required")
	}
	if deps.Messages == nil {
		return nil, errors.New("dashboard service: contact repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	return &dashboardService{
		orders:   deps.Orders,
		users:    deps.Users,
		bookings: deps.Bookings,
		messages: deps.Messages,
		clock: func() time.Time {
			return clock().UTC()
		},
	}, nil
}

// Summary aggregates today's figures for the admin dashboard. Revenue counts
// orders placed today that were not cancelled, at their current totals.
func (s *dashboardService) Summary(ctx context.Context, caller Caller) (DashboardSummary, error) {
	if !caller.IsAdmin() {
		return DashboardSummary{}, ErrDashboardForbidden
	}

	now := s.clock()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	totalUsers, err := s.users.Count(ctx)
	if err != nil {
		return DashboardSummary{}, s.mapRepositoryError(err)
	}

	orders, err := s.orders.List(ctx, repositories.OrderListFilter{From: &startOfDay})
	if err != nil {
		return DashboardSummary{}, s.mapRepositoryError(err)
	}

	var revenue int64
	pending := 0
	byStatus := make(map[domain.OrderStatus]int, len(orders))
	sold := make(map[string]*TopItem)
	for _, order := range orders {
		byStatus[order.Status]++
		if order.Status == domain.StatusCancelled {
			continue
		}
		revenue += order.TotalAmount
		if order.Status == domain.StatusPending || order.Status == domain.StatusPreparing {
			pending++
		}
		for _, item := range order.Items {
			entry, ok := sold[item.MenuItemID]
			if !ok {
				entry = &TopItem{MenuItemID: item.MenuItemID, Name: item.Name}
				sold[item.MenuItemID] = entry
			}
			entry.Quantity += item.Quantity
		}
	}

	var top *TopItem
	for _, entry := range sold {
		if top == nil || entry.Quantity > top.Quantity ||
			(entry.Quantity == top.Quantity && entry.MenuItemID < top.MenuItemID) {
			top = entry
		}
	}

	messages, err := s.messages.List(ctx)
	if err != nil {
		return DashboardSummary{}, s.mapRepositoryError(err)
	}
	pendingMessages := 0
	for _, msg := range messages {
		if msg.Status == domain.ContactPending {
			pendingMessages++
		}
	}

	bookings, err := s.bookings.ListAll(ctx)
	if err != nil {
		return DashboardSummary{}, s.mapRepositoryError(err)
	}
	bookingsToday := 0
	for _, booking := range bookings {
		if booking.Status == domain.BookingConfirmed &&
			!booking.BookingDate.Before(startOfDay) &&
			booking.BookingDate.Before(startOfDay.Add(24*time.Hour)) {
			bookingsToday++
		}
	}

	return DashboardSummary{
		TotalUsers:        totalUsers,
		OrdersToday:       len(orders),
		OrdersByStatus:    byStatus,
		RevenueToday:      revenue,
		PendingOrders:     pending,
		PendingMessages:   pendingMessages,
		BookingsToday:     bookingsToday,
		TopItem:           top,
		GeneratedAt:       now,
		RevenueTodayLabel: amountPrinter.Sprintf("₹%d", revenue),
	}, nil
}

func (s *dashboardService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	if repoErr, ok := repoError(err); ok && repoErr.IsUnavailable() {
		return fmt.Errorf("%w: %v", ErrDashboardUnavailable, err)
	}
	return err
}
