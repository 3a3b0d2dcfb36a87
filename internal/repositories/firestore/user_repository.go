package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"

	domain "github.com/masala-table/api/internal/domain"
	pfirestore "github.com/masala-table/api/internal/platform/firestore"
)

const userCollection = "users"

// UserRepository persists account documents in Firestore.
type UserRepository struct {
	base     *pfirestore.BaseRepository[userDocument]
	provider *pfirestore.Provider
}

// NewUserRepository constructs a Firestore-backed user repository.
func NewUserRepository(provider *pfirestore.Provider) (*UserRepository, error) {
	if provider == nil {
		return nil, errors.New("user repository requires firestore provider")
	}
	return &UserRepository{
		base:     pfirestore.NewBaseRepository[userDocument](provider, userCollection),
		provider: provider,
	}, nil
}

// Insert creates the account document, failing if the id already exists.
func (r *UserRepository) Insert(ctx context.Context, user domain.User) error {
	if r == nil || r.base == nil {
		return errors.New("user repository not initialised")
	}
	if strings.TrimSpace(user.ID) == "" {
		return errors.New("user id is required")
	}
	return r.base.Create(ctx, user.ID, fromDomainUser(user))
}

// FindByID loads the account by id.
func (r *UserRepository) FindByID(ctx context.Context, userID string) (domain.User, error) {
	if r == nil || r.base == nil {
		return domain.User{}, errors.New("user repository not initialised")
	}
	doc, err := r.base.Get(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	return toDomainUser(doc.ID, doc.Data), nil
}

// FindByEmail loads the account registered under the given email. Emails are
// stored lowercased, one account per address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	if r == nil || r.base == nil {
		return domain.User{}, errors.New("user repository not initialised")
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return domain.User{}, errors.New("email is required")
	}

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("email", "==", email).Limit(1)
	})
	if err != nil {
		return domain.User{}, err
	}
	if len(docs) == 0 {
		return domain.User{}, &notFoundError{resource: "user", id: email}
	}
	return toDomainUser(docs[0].ID, docs[0].Data), nil
}

// Update overwrites the account document.
func (r *UserRepository) Update(ctx context.Context, user domain.User) error {
	if r == nil || r.base == nil {
		return errors.New("user repository not initialised")
	}
	if strings.TrimSpace(user.ID) == "" {
		return errors.New("user id is required")
	}
	return r.base.Set(ctx, user.ID, fromDomainUser(user))
}

// Count returns the number of registered accounts.
func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	if r == nil || r.base == nil {
		return 0, errors.New("user repository not initialised")
	}
	coll, err := r.base.CollectionRef(ctx)
	if err != nil {
		return 0, err
	}
	return countDocuments(ctx, coll.Query)
}

func countDocuments(ctx context.Context, query firestore.Query) (int64, error) {
	results, err := query.NewAggregationQuery().WithCount("total").Get(ctx)
	if err != nil {
		return 0, pfirestore.WrapError("count", err)
	}
	value, ok := results["total"]
	if !ok {
		return 0, errors.New("firestore: aggregation result missing count")
	}
	count, ok := value.(*firestorepb.Value)
	if !ok {
		return 0, errors.New("firestore: unexpected aggregation result type")
	}
	return count.GetIntegerValue(), nil
}

type userDocument struct {
	Username      string                 `firestore:"username"`
	Email         string                 `firestore:"email"`
	PasswordHash  string                 `firestore:"password_hash"`
	Role          string                 `firestore:"role"`
	PointsBalance int64                  `firestore:"points_balance"`
	RefreshTokens []refreshTokenDocument `firestore:"refresh_tokens,omitempty"`
	CreatedAt     time.Time              `firestore:"created_at"`
	UpdatedAt     time.Time              `firestore:"updated_at"`
}

type refreshTokenDocument struct {
	Token     string    `firestore:"token"`
	CreatedAt time.Time `firestore:"created_at"`
}

func fromDomainUser(user domain.User) userDocument {
	tokens := make([]refreshTokenDocument, 0, len(user.RefreshTokens))
	for _, rt := range user.RefreshTokens {
		tokens = append(tokens, refreshTokenDocument{Token: rt.Token, CreatedAt: rt.CreatedAt})
	}
	return userDocument{
		Username:      user.Username,
		Email:         strings.ToLower(strings.TrimSpace(user.Email)),
		PasswordHash:  user.PasswordHash,
		Role:          user.Role,
		PointsBalance: user.PointsBalance,
		RefreshTokens: tokens,
		CreatedAt:     user.CreatedAt,
		UpdatedAt:     user.UpdatedAt,
	}
}

func toDomainUser(id string, doc userDocument) domain.User {
	tokens := make([]domain.RefreshToken, 0, len(doc.RefreshTokens))
	for _, rt := range doc.RefreshTokens {
		tokens = append(tokens, domain.RefreshToken{Token: rt.Token, CreatedAt: rt.CreatedAt})
	}
	return domain.User{
		ID:            id,
		Username:      doc.Username,
		Email:         doc.Email,
		PasswordHash:  doc.PasswordHash,
		Role:          doc.Role,
		PointsBalance: doc.PointsBalance,
		RefreshTokens: tokens,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}
}
