package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/bcrypt"

	domain "github.com/masala-table/api/internal/domain"
	"github.com/masala-table/api/internal/platform/auth"
	"github.com/masala-table/api/internal/repositories"
)

const (
	userIDPrefix      = "usr_"
	minPasswordLength = 8
)

var (
	// ErrAuthInvalidInput signals the caller provided invalid data.
	ErrAuthInvalidInput = errors.New("auth: invalid input")
	// ErrAuthEmailTaken indicates the email already has an account.
	ErrAuthEmailTaken = errors.New("auth: email already registered")
	// ErrAuthInvalidCredentials indicates a failed login. The message never
	// reveals whether the email or the password was wrong.
	ErrAuthInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrAuthInvalidToken indicates the refresh token is expired, forged,
	// or no longer in the account's active list.
	ErrAuthInvalidToken = errors.New("auth: invalid refresh token")
	// ErrAuthNotFound indicates the account could not be located.
	ErrAuthNotFound = errors.New("auth: account not found")
	// ErrAuthUnavailable indicates a transient backend outage.
	ErrAuthUnavailable = errors.New("auth: store unavailable")
)

// AuthServiceDeps bundles collaborators for the auth service.
type AuthServiceDeps struct {
	Users  repositories.UserRepository
	Tokens *auth.TokenManager
	Audit  AuditLogService
	// MaxRefreshTokens bounds the per-account active refresh-token list;
	// the oldest entry is evicted when the bound is exceeded.
	MaxRefreshTokens int
	BcryptCost       int
	Clock            func() time.Time
	IDGenerator      func() string
}

type authService struct {
	users      repositories.UserRepository
	tokens     *auth.TokenManager
	audit      AuditLogService
	maxTokens  int
	bcryptCost int
	clock      func() time.Time
	newID      func() string
}

// NewAuthService wires dependencies into a concrete AuthService.
func NewAuthService(deps AuthServiceDeps) (AuthService, error) {
	if deps.Users == nil {
		return nil, errors.New("auth service: user repository is required")
	}
	if deps.Tokens == nil {
		return nil, errors.New("auth service: token manager is required")
	}
	if deps.MaxRefreshTokens <= 0 {
		return nil, errors.New("auth service: max refresh tokens must be positive")
	}

	cost := deps.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
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

	return &authService{
		users:      deps.Users,
		tokens:     deps.Tokens,
		audit:      deps.Audit,
		maxTokens:  deps.MaxRefreshTokens,
		bcryptCost: cost,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID: idGen,
	}, nil
}

// Register creates an account and issues the first token pair. The very
// first account on an empty store becomes the admin.
func (s *authService) Register(ctx context.Context, input RegisterInput) (domain.User, TokenPair, error) {
	username := strings.TrimSpace(input.Username)
	email := strings.ToLower(strings.TrimSpace(input.Email))

	if username == "" {
		return domain.User{}, TokenPair{}, fmt.Errorf("%w: username is required", ErrAuthInvalidInput)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return domain.User{}, TokenPair{}, fmt.Errorf("%w: invalid email address", ErrAuthInvalidInput)
	}
	if len(input.Password) < minPasswordLength {
		return domain.User{}, TokenPair{}, fmt.Errorf("%w: password must be at least %d characters", ErrAuthInvalidInput, minPasswordLength)
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return domain.User{}, TokenPair{}, ErrAuthEmailTaken
	} else if repoErr, ok := repoError(err); !ok || !repoErr.IsNotFound() {
		return domain.User{}, TokenPair{}, s.mapRepositoryError(err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.bcryptCost)
	if err != nil {
		return domain.User{}, TokenPair{}, fmt.Errorf("auth: hash password: %w", err)
	}

	role := domain.RoleCustomer
	if count, err := s.users.Count(ctx); err == nil && count == 0 {
		role = domain.RoleAdmin
	}

	now := s.clock()
	user := domain.User{
		ID:           userIDPrefix + s.newID(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	pair, err := s.issuePair(user)
	if err != nil {
		return domain.User{}, TokenPair{}, err
	}
	user.AddRefreshToken(pair.RefreshToken, now, s.maxTokens)

	if err := s.users.Insert(ctx, user); err != nil {
		if repoErr, ok := repoError(err); ok && repoErr.IsConflict() {
			return domain.User{}, TokenPair{}, ErrAuthEmailTaken
		}
		return domain.User{}, TokenPair{}, s.mapRepositoryError(err)
	}

	if s.audit != nil {
		s.audit.Record(ctx, AuditEvent{
			ActorID:      user.ID,
			Action:       "auth.register",
			ResourceType: "user",
			ResourceID:   user.ID,
		})
	}

	return user, pair, nil
}

// Login verifies credentials and issues a fresh token pair, adding the
// refresh token to the account's bounded active list.
func (s *authService) Login(ctx context.Context, email, password string) (domain.User, TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return domain.User{}, TokenPair{}, fmt.Errorf("%w: email and password are required", ErrAuthInvalidInput)
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if repoErr, ok := repoError(err); ok && repoErr.IsNotFound() {
			return domain.User{}, TokenPair{}, ErrAuthInvalidCredentials
		}
		return domain.User{}, TokenPair{}, s.mapRepositoryError(err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return domain.User{}, TokenPair{}, ErrAuthInvalidCredentials
	}

	pair, err := s.issuePair(user)
	if err != nil {
		return domain.User{}, TokenPair{}, err
	}

	now := s.clock()
	user.AddRefreshToken(pair.RefreshToken, now, s.maxTokens)
	user.UpdatedAt = now
	if err := s.users.Update(ctx, user); err != nil {
		return domain.User{}, TokenPair{}, s.mapRepositoryError(err)
	}

	return user, pair, nil
}

// Refresh rotates a refresh token: the presented token is verified, removed
// from the active list, and replaced by a new pair. A verified token that is
// no longer in the list is rejected.
func (s *authService) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return TokenPair{}, fmt.Errorf("%w: refresh token is required", ErrAuthInvalidInput)
	}

	userID, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return TokenPair{}, fmt.Errorf("%w: %v", ErrAuthInvalidToken, err)
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return TokenPair{}, s.mapRepositoryError(err)
	}
	if !user.RemoveRefreshToken(refreshToken) {
		return TokenPair{}, fmt.Errorf("%w: token not in active list", ErrAuthInvalidToken)
	}

	pair, err := s.issuePair(user)
	if err != nil {
		return TokenPair{}, err
	}

	now := s.clock()
	user.AddRefreshToken(pair.RefreshToken, now, s.maxTokens)
	user.UpdatedAt = now
	if err := s.users.Update(ctx, user); err != nil {
		return TokenPair{}, s.mapRepositoryError(err)
	}

	return pair, nil
}

// Logout removes the refresh token from the account's active list. Unknown
// or already-removed tokens are not an error.
func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return fmt.Errorf("%w: refresh token is required", ErrAuthInvalidInput)
	}

	userID, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if repoErr, ok := repoError(err); ok && repoErr.IsNotFound() {
			return nil
		}
		return s.mapRepositoryError(err)
	}

	if user.RemoveRefreshToken(refreshToken) {
		user.UpdatedAt = s.clock()
		if err := s.users.Update(ctx, user); err != nil {
			return s.mapRepositoryError(err)
		}
	}
	return nil
}

// Me returns the caller's account.
func (s *authService) Me(ctx context.Context, caller Caller) (domain.User, error) {
	if strings.TrimSpace(caller.UserID) == "" {
		return domain.User{}, fmt.Errorf("%w: caller is required", ErrAuthInvalidInput)
	}
	user, err := s.users.FindByID(ctx, caller.UserID)
	if err != nil {
		return domain.User{}, s.mapRepositoryError(err)
	}
	return user, nil
}

// ChangePassword verifies the current password, stores the new hash, and
// revokes every active refresh token so other sessions must log in again.
func (s *authService) ChangePassword(ctx context.Context, caller Caller, currentPassword, newPassword string) error {
	if strings.TrimSpace(caller.UserID) == "" {
		return fmt.Errorf("%w: caller is required", ErrAuthInvalidInput)
	}
	if len(newPassword) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrAuthInvalidInput, minPasswordLength)
	}

	user, err := s.users.FindByID(ctx, caller.UserID)
	if err != nil {
		return s.mapRepositoryError(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)) != nil {
		return ErrAuthInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("auth: hash password: %w", err)
	}

	user.PasswordHash = string(hash)
	user.RefreshTokens = nil
	user.UpdatedAt = s.clock()
	if err := s.users.Update(ctx, user); err != nil {
		return s.mapRepositoryError(err)
	}

	if s.audit != nil {
		s.audit.Record(ctx, AuditEvent{
			ActorID:      caller.UserID,
			Action:       "auth.password.change",
			ResourceType: "user",
			ResourceID:   caller.UserID,
		})
	}
	return nil
}

func (s *authService) issuePair(user domain.User) (TokenPair, error) {
	access, err := s.tokens.IssueAccessToken(auth.Identity{
		UserID: user.ID,
		Email:  user.Email,
		Role:   auth.Role(user.Role),
	})
	if err != nil {
		return TokenPair{}, fmt.Errorf("auth: issue access token: %w", err)
	}
	refresh, err := s.tokens.IssueRefreshToken(user.ID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("auth: issue refresh token: %w", err)
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *authService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	if repoErr, ok := repoError(err); ok {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrAuthNotFound, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrAuthUnavailable, err)
		}
	}
	return err
}
