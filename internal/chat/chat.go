// Package chat holds the domain entities of the chat service and the
// persistence ports the services depend on.
package chat

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by repositories when the requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUsernameTaken is returned when a username collides with an existing user.
	ErrUsernameTaken = errors.New("username already taken")
)

// User is a stored account. PasswordHash never leaves the service layer;
// anything published or returned to clients is a PublicUser.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PublicUser is the client-facing projection of a User.
type PublicUser struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Public strips credentials from u.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Username:  u.Username,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// Message is a chat message. Username is the author at the time of writing.
type Message struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UserUpdate lists the fields to change; nil pointers are left untouched.
type UserUpdate struct {
	Username     *string
	PasswordHash *string
	UpdatedAt    time.Time
}

// UserRepository persists users.
type UserRepository interface {
	Create(ctx context.Context, user User) (User, error)
	FindByID(ctx context.Context, id string) (User, error)
	FindByUsername(ctx context.Context, username string) (User, error)
	List(ctx context.Context) ([]User, error)
	Update(ctx context.Context, id string, update UserUpdate) (User, error)
	Delete(ctx context.Context, id string) (User, error)
	// TouchActivity records the user's last activity time.
	TouchActivity(ctx context.Context, id string, at time.Time) error
}

// MessageRepository persists chat messages. List returns messages oldest first.
type MessageRepository interface {
	Create(ctx context.Context, msg Message) (Message, error)
	FindByID(ctx context.Context, id string) (Message, error)
	List(ctx context.Context) ([]Message, error)
	Update(ctx context.Context, id, text string, at time.Time) (Message, error)
	Delete(ctx context.Context, id string) (Message, error)
}
