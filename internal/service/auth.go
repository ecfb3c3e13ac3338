// Package service implements the mutation services of the chat API. Each
// mutation validates, persists, and then publishes exactly one realtime event
// from its success branch.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/Tyrowin/livechat/internal/apperrors"
	"github.com/Tyrowin/livechat/internal/auth"
	"github.com/Tyrowin/livechat/internal/chat"
	"github.com/Tyrowin/livechat/internal/realtime"
)

const wrongCredentials = "Wrong username or password"

// LoginResult is returned by a successful login.
type LoginResult struct {
	UserID    string
	Token     string
	ExpiresAt time.Time
}

// AuthService registers users, issues tokens, and resolves bearer tokens.
type AuthService struct {
	users     chat.UserRepository
	hasher    *auth.PasswordHasher
	tokens    *auth.TokenManager
	cache     *UserCache
	publisher realtime.Publisher
	clock     clockwork.Clock
	logger    *zap.Logger
}

// NewAuthService wires an AuthService. cache may be nil.
func NewAuthService(
	users chat.UserRepository,
	hasher *auth.PasswordHasher,
	tokens *auth.TokenManager,
	cache *UserCache,
	publisher realtime.Publisher,
	clock clockwork.Clock,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		hasher:    hasher,
		tokens:    tokens,
		cache:     cache,
		publisher: publisher,
		clock:     clock,
		logger:    logger.Named("auth"),
	}
}

// Register creates an account. It publishes nothing.
func (s *AuthService) Register(ctx context.Context, username, password string) (chat.PublicUser, error) {
	var v validator
	v.length("username", username, UsernameMinLength, UsernameMaxLength)
	v.password("password", password)
	if err := v.result(); err != nil {
		return chat.PublicUser{}, err
	}

	if _, err := s.users.FindByUsername(ctx, username); err == nil {
		return chat.PublicUser{}, apperrors.Conflict("Username is already taken")
	} else if !errors.Is(err, chat.ErrNotFound) {
		return chat.PublicUser{}, apperrors.Internal("Failed to look up user", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return chat.PublicUser{}, apperrors.Internal("Failed to hash password", err)
	}

	ts := timestamp(s.clock)
	user, err := s.users.Create(ctx, chat.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    ts,
		UpdatedAt:    ts,
	})
	if errors.Is(err, chat.ErrUsernameTaken) {
		return chat.PublicUser{}, apperrors.Conflict("Username is already taken")
	}
	if err != nil {
		return chat.PublicUser{}, apperrors.Internal("Failed to create user", err)
	}

	s.logger.Info("User registered", zap.String("user_id", user.ID))
	return user.Public(), nil
}

// Login verifies credentials, issues a token and publishes new_login.
func (s *AuthService) Login(ctx context.Context, username, password string) (LoginResult, error) {
	var v validator
	v.required("username", username)
	v.required("password", password)
	if err := v.result(); err != nil {
		return LoginResult{}, err
	}

	user, err := s.users.FindByUsername(ctx, username)
	if errors.Is(err, chat.ErrNotFound) {
		return LoginResult{}, apperrors.Unauthorized(wrongCredentials)
	}
	if err != nil {
		return LoginResult{}, apperrors.Internal("Failed to look up user", err)
	}

	if !s.hasher.Compare(user.PasswordHash, password) {
		return LoginResult{}, apperrors.Unauthorized(wrongCredentials)
	}

	if err := s.users.TouchActivity(ctx, user.ID, timestamp(s.clock)); err != nil {
		return LoginResult{}, touchError(err)
	}

	token, expiresAt, err := s.tokens.Issue(user.ID)
	if err != nil {
		return LoginResult{}, apperrors.Internal("Failed to issue token", err)
	}

	s.publisher.Broadcast(realtime.UserLoggedIn{Username: user.Username})

	return LoginResult{UserID: user.ID, Token: token, ExpiresAt: expiresAt}, nil
}

// Logout records the user's activity and publishes new_logout. Tokens are
// stateless, so the token itself stays valid until it expires.
func (s *AuthService) Logout(ctx context.Context, user chat.PublicUser) error {
	if err := s.users.TouchActivity(ctx, user.ID, timestamp(s.clock)); err != nil {
		return touchError(err)
	}

	s.publisher.Broadcast(realtime.UserLoggedOut{Username: user.Username})
	return nil
}

// Authenticate resolves a bearer token to its user.
func (s *AuthService) Authenticate(ctx context.Context, token string) (chat.PublicUser, error) {
	if token == "" {
		return chat.PublicUser{}, apperrors.Unauthorized("No token provided")
	}

	claims, err := s.tokens.Parse(token)
	if errors.Is(err, auth.ErrTokenExpired) {
		return chat.PublicUser{}, apperrors.Unauthorized("Token expired")
	}
	if err != nil {
		return chat.PublicUser{}, apperrors.Unauthorized("Invalid token")
	}

	user, err := s.lookup(ctx, claims.UserID)
	if err != nil {
		return chat.PublicUser{}, err
	}

	err = s.users.TouchActivity(ctx, user.ID, timestamp(s.clock))
	if errors.Is(err, chat.ErrNotFound) {
		// Deleted after the lookup; the row may have been cached meanwhile.
		if s.cache != nil {
			s.cache.Forget(user.ID)
		}
		return chat.PublicUser{}, apperrors.Unauthorized("User not found")
	}
	if err != nil {
		s.logger.Debug("Failed to record user activity", zap.String("user_id", user.ID), zap.Error(err))
	}
	return user, nil
}

func (s *AuthService) lookup(ctx context.Context, id string) (chat.PublicUser, error) {
	if s.cache != nil {
		if user, ok := s.cache.Get(id); ok {
			return user, nil
		}
	}

	if _, err := uuid.Parse(id); err != nil {
		return chat.PublicUser{}, apperrors.Unauthorized("User not found")
	}

	var generation uint64
	if s.cache != nil {
		generation = s.cache.Generation()
	}
	user, err := s.users.FindByID(ctx, id)
	if errors.Is(err, chat.ErrNotFound) {
		return chat.PublicUser{}, apperrors.Unauthorized("User not found")
	}
	if err != nil {
		return chat.PublicUser{}, apperrors.Internal("Failed to look up user", err)
	}

	public := user.Public()
	if s.cache != nil {
		s.cache.AddIfCurrent(public, generation)
	}
	return public, nil
}

func touchError(err error) error {
	if errors.Is(err, chat.ErrNotFound) {
		return apperrors.NotFound("User not found")
	}
	return apperrors.Internal("Failed to record user activity", err)
}

// timestamp returns the clock's time at the precision Postgres stores.
func timestamp(clock clockwork.Clock) time.Time {
	return clock.Now().UTC().Truncate(time.Microsecond)
}
