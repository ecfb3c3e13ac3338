// Package store implements the chat repositories: an in-memory store for
// development and tests, and a PostgreSQL store for production.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Tyrowin/livechat/internal/chat"
)

// Memory keeps users and messages in process memory.
type Memory struct {
	mu       sync.RWMutex
	users    map[string]chat.User
	messages map[string]chat.Message
	order    map[string]uint64
	seq      uint64
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		users:    make(map[string]chat.User),
		messages: make(map[string]chat.Message),
		order:    make(map[string]uint64),
	}
}

// Users returns the store's user repository.
func (m *Memory) Users() *MemoryUsers { return &MemoryUsers{m: m} }

// Messages returns the store's message repository.
func (m *Memory) Messages() *MemoryMessages { return &MemoryMessages{m: m} }

// Ping always succeeds.
func (m *Memory) Ping(context.Context) error { return nil }

// Close is a no-op.
func (m *Memory) Close() {}

// MemoryUsers implements chat.UserRepository.
type MemoryUsers struct{ m *Memory }

var _ chat.UserRepository = (*MemoryUsers)(nil)

func (r *MemoryUsers) Create(_ context.Context, user chat.User) (chat.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if r.usernameTakenLocked(user.Username, "") {
		return chat.User{}, chat.ErrUsernameTaken
	}
	r.m.users[user.ID] = user
	r.m.seq++
	r.m.order[user.ID] = r.m.seq
	return user, nil
}

func (r *MemoryUsers) FindByID(_ context.Context, id string) (chat.User, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	user, ok := r.m.users[id]
	if !ok {
		return chat.User{}, chat.ErrNotFound
	}
	return user, nil
}

func (r *MemoryUsers) FindByUsername(_ context.Context, username string) (chat.User, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	for _, user := range r.m.users {
		if user.Username == username {
			return user, nil
		}
	}
	return chat.User{}, chat.ErrNotFound
}

func (r *MemoryUsers) List(_ context.Context) ([]chat.User, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	users := make([]chat.User, 0, len(r.m.users))
	for _, user := range r.m.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool {
		return r.m.order[users[i].ID] < r.m.order[users[j].ID]
	})
	return users, nil
}

func (r *MemoryUsers) Update(_ context.Context, id string, update chat.UserUpdate) (chat.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	user, ok := r.m.users[id]
	if !ok {
		return chat.User{}, chat.ErrNotFound
	}
	if update.Username != nil {
		if r.usernameTakenLocked(*update.Username, id) {
			return chat.User{}, chat.ErrUsernameTaken
		}
		user.Username = *update.Username
	}
	if update.PasswordHash != nil {
		user.PasswordHash = *update.PasswordHash
	}
	user.UpdatedAt = update.UpdatedAt
	r.m.users[id] = user
	return user, nil
}

func (r *MemoryUsers) Delete(_ context.Context, id string) (chat.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	user, ok := r.m.users[id]
	if !ok {
		return chat.User{}, chat.ErrNotFound
	}
	delete(r.m.users, id)
	delete(r.m.order, id)
	return user, nil
}

func (r *MemoryUsers) TouchActivity(_ context.Context, id string, at time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	user, ok := r.m.users[id]
	if !ok {
		return chat.ErrNotFound
	}
	user.UpdatedAt = at
	r.m.users[id] = user
	return nil
}

func (r *MemoryUsers) usernameTakenLocked(username, exceptID string) bool {
	for id, user := range r.m.users {
		if id != exceptID && user.Username == username {
			return true
		}
	}
	return false
}

// MemoryMessages implements chat.MessageRepository.
type MemoryMessages struct{ m *Memory }

var _ chat.MessageRepository = (*MemoryMessages)(nil)

func (r *MemoryMessages) Create(_ context.Context, msg chat.Message) (chat.Message, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	r.m.messages[msg.ID] = msg
	r.m.seq++
	r.m.order[msg.ID] = r.m.seq
	return msg, nil
}

func (r *MemoryMessages) FindByID(_ context.Context, id string) (chat.Message, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	msg, ok := r.m.messages[id]
	if !ok {
		return chat.Message{}, chat.ErrNotFound
	}
	return msg, nil
}

// List returns messages by creation time, ties broken by insertion order.
func (r *MemoryMessages) List(_ context.Context) ([]chat.Message, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	messages := make([]chat.Message, 0, len(r.m.messages))
	for _, msg := range r.m.messages {
		messages = append(messages, msg)
	}
	sort.Slice(messages, func(i, j int) bool {
		if !messages[i].CreatedAt.Equal(messages[j].CreatedAt) {
			return messages[i].CreatedAt.Before(messages[j].CreatedAt)
		}
		return r.m.order[messages[i].ID] < r.m.order[messages[j].ID]
	})
	return messages, nil
}

func (r *MemoryMessages) Update(_ context.Context, id, text string, at time.Time) (chat.Message, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	msg, ok := r.m.messages[id]
	if !ok {
		return chat.Message{}, chat.ErrNotFound
	}
	msg.Message = text
	msg.UpdatedAt = at
	r.m.messages[id] = msg
	return msg, nil
}

func (r *MemoryMessages) Delete(_ context.Context, id string) (chat.Message, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	msg, ok := r.m.messages[id]
	if !ok {
		return chat.Message{}, chat.ErrNotFound
	}
	delete(r.m.messages, id)
	delete(r.m.order, id)
	return msg, nil
}
