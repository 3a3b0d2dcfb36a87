package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/masala-table/api/internal/domain"
	pfirestore "github.com/masala-table/api/internal/platform/firestore"
	"github.com/masala-table/api/internal/repositories"
)

// LedgerRepository owns loyalty-point mutations. Earning touches the user
// document; redeeming spans the order and the user document in one
// transaction so the two writes commit or fail together.
type LedgerRepository struct {
	orders   *pfirestore.BaseRepository[orderDocument]
	users    *pfirestore.BaseRepository[userDocument]
	provider *pfirestore.Provider
}

// NewLedgerRepository constructs a Firestore-backed loyalty ledger.
func NewLedgerRepository(provider *pfirestore.Provider) (*LedgerRepository, error) {
	if provider == nil {
		return nil, errors.New("ledger repository requires firestore provider")
	}
	return &LedgerRepository{
		orders:   pfirestore.NewBaseRepository[orderDocument](provider, orderCollection),
		users:    pfirestore.NewBaseRepository[userDocument](provider, userCollection),
		provider: provider,
	}, nil
}

// EarnPoints atomically adds delta points to the user's balance and returns
// the new balance.
func (r *LedgerRepository) EarnPoints(ctx context.Context, userID string, delta int64) (int64, error) {
	if r == nil || r.provider == nil {
		return 0, errors.New("ledger repository not initialised")
	}
	if delta < 0 {
		return 0, errors.New("earn delta must not be negative")
	}

	ref, err := r.users.DocumentRef(ctx, userID)
	if err != nil {
		return 0, err
	}

	var balance int64
	err = r.provider.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		snapshot, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var doc userDocument
		if err := snapshot.DataTo(&doc); err != nil {
			return fmt.Errorf("decode user %s: %w", userID, err)
		}

		doc.PointsBalance += delta
		doc.UpdatedAt = time.Now().UTC()
		balance = doc.PointsBalance
		return tx.Set(ref, doc)
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// Redeem reads the order and its owner in one transaction, applies the
// callback, and writes both documents back only if the callback accepts.
// Callback errors abort both writes and surface unchanged.
func (r *LedgerRepository) Redeem(ctx context.Context, orderID, userID string, apply repositories.RedeemFunc) (domain.Order, domain.User, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, domain.User{}, errors.New("ledger repository not initialised")
	}
	if apply == nil {
		return domain.Order{}, domain.User{}, errors.New("redeem callback is required")
	}
	if strings.TrimSpace(orderID) == "" || strings.TrimSpace(userID) == "" {
		return domain.Order{}, domain.User{}, errors.New("order id and user id are required")
	}

	orderRef, err := r.orders.DocumentRef(ctx, orderID)
	if err != nil {
		return domain.Order{}, domain.User{}, err
	}
	userRef, err := r.users.DocumentRef(ctx, userID)
	if err != nil {
		return domain.Order{}, domain.User{}, err
	}

	var (
		updatedOrder domain.Order
		updatedUser  domain.User
	)
	err = r.provider.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		orderSnapshot, err := tx.Get(orderRef)
		if err != nil {
			return err
		}
		userSnapshot, err := tx.Get(userRef)
		if err != nil {
			return err
		}

		var orderDoc orderDocument
		if err := orderSnapshot.DataTo(&orderDoc); err != nil {
			return fmt.Errorf("decode order %s: %w", orderID, err)
		}
		var userDoc userDocument
		if err := userSnapshot.DataTo(&userDoc); err != nil {
			return fmt.Errorf("decode user %s: %w", userID, err)
		}

		order := toDomainOrder(orderSnapshot.Ref.ID, orderDoc)
		user := toDomainUser(userSnapshot.Ref.ID, userDoc)
		if err := apply(&order, &user); err != nil {
			return err
		}

		now := time.Now().UTC()
		order.UpdatedAt = now
		user.UpdatedAt = now

		if err := tx.Set(orderRef, fromDomainOrder(order)); err != nil {
			return err
		}
		if err := tx.Set(userRef, fromDomainUser(user)); err != nil {
			return err
		}

		updatedOrder = order
		updatedUser = user
		return nil
	})
	if err != nil {
		return domain.Order{}, domain.User{}, err
	}
	return updatedOrder, updatedUser, nil
}
