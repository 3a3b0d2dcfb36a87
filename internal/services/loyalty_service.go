package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/masala-table/api/internal/domain"
	"github.com/masala-table/api/internal/repositories"
)

var (
	// ErrLoyaltyInvalidInput signals the caller provided invalid data.
	ErrLoyaltyInvalidInput = errors.New("loyalty: invalid input")
	// ErrLoyaltyNotFound indicates the order or user could not be located.
	ErrLoyaltyNotFound = errors.New("loyalty: not found")
	// ErrLoyaltyForbidden indicates the caller does not own the order.
	ErrLoyaltyForbidden = errors.New("loyalty: forbidden")
	// ErrLoyaltyAlreadyRedeemed indicates points were already redeemed
	// against this order. Redemption is exactly-once per order.
	ErrLoyaltyAlreadyRedeemed = errors.New("loyalty: order already redeemed")
	// ErrLoyaltyInsufficientPoints indicates the balance cannot cover the
	// requested redemption.
	ErrLoyaltyInsufficientPoints = errors.New("loyalty: insufficient points")
	// ErrLoyaltyConflict indicates a concurrent writer won the race; the
	// caller should retry.
	ErrLoyaltyConflict = errors.New("loyalty: conflict")
	// ErrLoyaltyUnavailable indicates a transient backend outage.
	ErrLoyaltyUnavailable = errors.New("loyalty: store unavailable")
)

// LoyaltyServiceDeps bundles collaborators for the loyalty service.
type LoyaltyServiceDeps struct {
	Ledger repositories.LedgerRepository
	Users  repositories.UserRepository
	Audit  AuditLogService
	// EarnRate is the number of currency units that earn one point.
	EarnRate int64
	// RedeemValue is the currency value of one redeemed point.
	RedeemValue int64
	Clock       func() time.Time
}

type loyaltyService struct {
	ledger      repositories.LedgerRepository
	users       repositories.UserRepository
	audit       AuditLogService
	earnRate    int64
	redeemValue int64
	clock       func() time.Time
}

// NewLoyaltyService wires dependencies into a concrete LoyaltyService.
func NewLoyaltyService(deps LoyaltyServiceDeps) (LoyaltyService, error) {
	if deps.Ledger == nil {
		return nil, errors.New("loyalty service: ledger repository is required")
	}
	if deps.Users == nil {
		return nil, errors.New("loyalty service: user repository is required")
	}
	if deps.EarnRate <= 0 {
		return nil, errors.New("loyalty service: earn rate must be positive")
	}
	if deps.RedeemValue <= 0 {
		return nil, errors.New("loyalty service: redeem value must be positive")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	return &loyaltyService{
		ledger:      deps.Ledger,
		users:       deps.Users,
		audit:       deps.Audit,
		earnRate:    deps.EarnRate,
		redeemValue: deps.RedeemValue,
		clock: func() time.Time {
			return clock().UTC()
		},
	}, nil
}

// Earn credits floor(orderTotal / earnRate) points to the user and returns
// the points awarded with the resulting balance. A total below the earn rate
// awards nothing and touches no document.
func (s *loyaltyService) Earn(ctx context.Context, userID string, orderTotal int64) (int64, int64, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, 0, fmt.Errorf("%w: user id is required", ErrLoyaltyInvalidInput)
	}
	if orderTotal < 0 {
		return 0, 0, fmt.Errorf("%w: order total must not be negative", ErrLoyaltyInvalidInput)
	}

	points := orderTotal / s.earnRate
	if points == 0 {
		return 0, 0, nil
	}

	balance, err := s.ledger.EarnPoints(ctx, userID, points)
	if err != nil {
		return 0, 0, s.mapRepositoryError(err)
	}
	return points, balance, nil
}

// Redeem converts points into a discount on the given order. The order and
// the caller's balance are read and written in one transaction, so two
// concurrent redeems against the same order cannot both succeed.
func (s *loyaltyService) Redeem(ctx context.Context, caller Caller, orderID string, points int64) (RedeemResult, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return RedeemResult{}, fmt.Errorf("%w: order id is required", ErrLoyaltyInvalidInput)
	}
	if strings.TrimSpace(caller.UserID) == "" {
		return RedeemResult{}, fmt.Errorf("%w: caller is required", ErrLoyaltyInvalidInput)
	}
	if points <= 0 {
		return RedeemResult{}, fmt.Errorf("%w: points must be positive", ErrLoyaltyInvalidInput)
	}

	var applied int64
	order, user, err := s.ledger.Redeem(ctx, orderID, caller.UserID, func(order *domain.Order, user *domain.User) error {
		if order.OwnerID != caller.UserID {
			return ErrLoyaltyForbidden
		}
		if order.Redemption != nil {
			return ErrLoyaltyAlreadyRedeemed
		}
		if order.Status == domain.StatusCancelled {
			return fmt.Errorf("%w: cancelled orders cannot be redeemed against", ErrLoyaltyInvalidInput)
		}
		if user.PointsBalance < points {
			return fmt.Errorf("%w: balance %d, requested %d", ErrLoyaltyInsufficientPoints, user.PointsBalance, points)
		}

		// The discount is the full value of the points spent; only the
		// order total clamps at zero.
		applied = points * s.redeemValue
		newTotal := order.TotalAmount - applied
		if newTotal < 0 {
			newTotal = 0
		}

		order.TotalAmount = newTotal
		order.Redemption = &domain.Redemption{
			PointsRedeemed:  points,
			DiscountApplied: applied,
			RedeemedAt:      s.clock(),
		}
		user.PointsBalance -= points
		return nil
	})
	if err != nil {
		return RedeemResult{}, s.mapRepositoryError(err)
	}

	if s.audit != nil {
		s.audit.Record(ctx, AuditEvent{
			ActorID:      caller.UserID,
			Action:       "loyalty.redeem",
			ResourceType: "order",
			ResourceID:   order.ID,
			Metadata: map[string]any{
				"points":   points,
				"discount": applied,
			},
		})
	}

	return RedeemResult{
		Order:           order,
		PointsRedeemed:  points,
		DiscountApplied: applied,
		NewTotal:        order.TotalAmount,
		RemainingPoints: user.PointsBalance,
	}, nil
}

// Balance returns the caller's current points balance.
func (s *loyaltyService) Balance(ctx context.Context, caller Caller) (int64, error) {
	if strings.TrimSpace(caller.UserID) == "" {
		return 0, fmt.Errorf("%w: caller is required", ErrLoyaltyInvalidInput)
	}
	user, err := s.users.FindByID(ctx, caller.UserID)
	if err != nil {
		return 0, s.mapRepositoryError(err)
	}
	return user.PointsBalance, nil
}

func (s *loyaltyService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrLoyaltyInvalidInput) ||
		errors.Is(err, ErrLoyaltyForbidden) ||
		errors.Is(err, ErrLoyaltyAlreadyRedeemed) ||
		errors.Is(err, ErrLoyaltyInsufficientPoints) {
		return err
	}
	if repoErr, ok := repoError(err); ok {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrLoyaltyNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrLoyaltyConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrLoyaltyUnavailable, err)
		}
	}
	return err
}
