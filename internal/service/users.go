package service

import (
	"context"
	"errors"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/Tyrowin/livechat/internal/apperrors"
	"github.com/Tyrowin/livechat/internal/auth"
	"github.com/Tyrowin/livechat/internal/chat"
	"github.com/Tyrowin/livechat/internal/realtime"
)

const userNotFound = "User not found"

// UserUpdateInput holds the optional profile fields a user may change.
type UserUpdateInput struct {
	Username *string
	Password *string
}

// UserService manages user profiles.
type UserService struct {
	users     chat.UserRepository
	hasher    *auth.PasswordHasher
	cache     *UserCache
	publisher realtime.Publisher
	clock     clockwork.Clock
	logger    *zap.Logger
}

// NewUserService wires a UserService. cache may be nil.
func NewUserService(
	users chat.UserRepository,
	hasher *auth.PasswordHasher,
	cache *UserCache,
	publisher realtime.Publisher,
	clock clockwork.Clock,
	logger *zap.Logger,
) *UserService {
	return &UserService{
		users:     users,
		hasher:    hasher,
		cache:     cache,
		publisher: publisher,
		clock:     clock,
		logger:    logger.Named("users"),
	}
}

func (s *UserService) List(ctx context.Context) ([]chat.PublicUser, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, apperrors.Internal("Failed to list users", err)
	}

	public := make([]chat.PublicUser, 0, len(users))
	for _, u := range users {
		public = append(public, u.Public())
	}
	return public, nil
}

func (s *UserService) Get(ctx context.Context, id string) (chat.PublicUser, error) {
	user, err := s.find(ctx, id)
	if err != nil {
		return chat.PublicUser{}, err
	}
	return user.Public(), nil
}

// Update changes requester's own profile and publishes changed_user.
func (s *UserService) Update(ctx context.Context, id string, requester chat.PublicUser, input UserUpdateInput) (chat.PublicUser, error) {
	var v validator
	if input.Username != nil {
		v.length("username", *input.Username, UsernameMinLength, UsernameMaxLength)
	}
	if input.Password != nil {
		v.password("password", *input.Password)
	}
	if err := v.result(); err != nil {
		return chat.PublicUser{}, err
	}

	current, err := s.find(ctx, id)
	if err != nil {
		return chat.PublicUser{}, err
	}
	if current.ID != requester.ID {
		return chat.PublicUser{}, apperrors.Forbidden("You can only update your own profile")
	}

	update := chat.UserUpdate{UpdatedAt: timestamp(s.clock)}
	if input.Username != nil && *input.Username != current.Username {
		update.Username = input.Username
	}
	if input.Password != nil {
		hash, err := s.hasher.Hash(*input.Password)
		if err != nil {
			return chat.PublicUser{}, apperrors.Internal("Failed to hash password", err)
		}
		update.PasswordHash = &hash
	}

	updated, err := s.users.Update(ctx, id, update)
	switch {
	case errors.Is(err, chat.ErrUsernameTaken):
		return chat.PublicUser{}, apperrors.Conflict("Username is already taken")
	case errors.Is(err, chat.ErrNotFound):
		return chat.PublicUser{}, apperrors.NotFound(userNotFound)
	case err != nil:
		return chat.PublicUser{}, apperrors.Internal("Failed to update user", err)
	}

	s.forget(id)
	public := updated.Public()
	s.publisher.Broadcast(realtime.UserChanged{User: public})
	return public, nil
}

// Delete removes requester's own account and publishes deleted_user.
func (s *UserService) Delete(ctx context.Context, id string, requester chat.PublicUser) error {
	current, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if current.ID != requester.ID {
		return apperrors.Forbidden("You can only delete your own account")
	}

	deleted, err := s.users.Delete(ctx, id)
	if errors.Is(err, chat.ErrNotFound) {
		return apperrors.NotFound(userNotFound)
	}
	if err != nil {
		return apperrors.Internal("Failed to delete user", err)
	}

	s.forget(id)
	s.publisher.Broadcast(realtime.UserDeleted{User: deleted.Public()})
	return nil
}

func (s *UserService) find(ctx context.Context, id string) (chat.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if errors.Is(err, chat.ErrNotFound) {
		return chat.User{}, apperrors.NotFound(userNotFound)
	}
	if err != nil {
		return chat.User{}, apperrors.Internal("Failed to get user", err)
	}
	return user, nil
}

func (s *UserService) forget(id string) {
	if s.cache != nil {
		s.cache.Forget(id)
	}
}
