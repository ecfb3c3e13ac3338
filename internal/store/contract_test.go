package store

import (
	"context"
	"testing"
	"time"

	"github.com/go-faker/faker/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/livechat/internal/chat"
)

// baseTime is truncated to microseconds so values round-trip through Postgres unchanged.
var baseTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newUser(username string) chat.User {
	return chat.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: "$2a$04$hash",
		CreatedAt:    baseTime,
		UpdatedAt:    baseTime,
	}
}

func newMessage(username, text string, at time.Time) chat.Message {
	return chat.Message{
		ID:        uuid.NewString(),
		Username:  username,
		Message:   text,
		CreatedAt: at,
		UpdatedAt: at,
	}
}

// runUserRepositoryContract exercises behavior every chat.UserRepository must share.
func runUserRepositoryContract(t *testing.T, repo chat.UserRepository) {
	ctx := context.Background()

	t.Run("create and find", func(t *testing.T) {
		user := newUser(faker.Username())

		created, err := repo.Create(ctx, user)
		require.NoError(t, err)
		assert.Equal(t, user.ID, created.ID)

		byID, err := repo.FindByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, user.Username, byID.Username)
		assert.Equal(t, user.PasswordHash, byID.PasswordHash)
		assert.True(t, byID.CreatedAt.Equal(baseTime))

		byName, err := repo.FindByUsername(ctx, user.Username)
		require.NoError(t, err)
		assert.Equal(t, user.ID, byName.ID)
	})

	t.Run("duplicate username", func(t *testing.T) {
		name := faker.Username()
		_, err := repo.Create(ctx, newUser(name))
		require.NoError(t, err)

		_, err = repo.Create(ctx, newUser(name))
		assert.ErrorIs(t, err, chat.ErrUsernameTaken)
	})

	t.Run("missing user", func(t *testing.T) {
		missing := uuid.NewString()

		_, err := repo.FindByID(ctx, missing)
		assert.ErrorIs(t, err, chat.ErrNotFound)
		_, err = repo.FindByUsername(ctx, "nobody-"+missing)
		assert.ErrorIs(t, err, chat.ErrNotFound)
		_, err = repo.Update(ctx, missing, chat.UserUpdate{UpdatedAt: baseTime})
		assert.ErrorIs(t, err, chat.ErrNotFound)
		_, err = repo.Delete(ctx, missing)
		assert.ErrorIs(t, err, chat.ErrNotFound)
		assert.ErrorIs(t, repo.TouchActivity(ctx, missing, baseTime), chat.ErrNotFound)
	})

	t.Run("partial update", func(t *testing.T) {
		user := newUser(faker.Username())
		_, err := repo.Create(ctx, user)
		require.NoError(t, err)

		renamed := user.Username + "-renamed"
		later := baseTime.Add(time.Minute)
		updated, err := repo.Update(ctx, user.ID, chat.UserUpdate{Username: &renamed, UpdatedAt: later})
		require.NoError(t, err)

		assert.Equal(t, renamed, updated.Username)
		assert.Equal(t, user.PasswordHash, updated.PasswordHash)
		assert.True(t, updated.UpdatedAt.Equal(later))
	})

	t.Run("rename onto taken username", func(t *testing.T) {
		first := newUser(faker.Username())
		second := newUser(faker.Username() + "2")
		_, err := repo.Create(ctx, first)
		require.NoError(t, err)
		_, err = repo.Create(ctx, second)
		require.NoError(t, err)

		_, err = repo.Update(ctx, second.ID, chat.UserUpdate{Username: &first.Username, UpdatedAt: baseTime})
		assert.ErrorIs(t, err, chat.ErrUsernameTaken)
	})

	t.Run("touch and delete", func(t *testing.T) {
		user := newUser(faker.Username())
		_, err := repo.Create(ctx, user)
		require.NoError(t, err)

		later := baseTime.Add(time.Hour)
		require.NoError(t, repo.TouchActivity(ctx, user.ID, later))

		found, err := repo.FindByID(ctx, user.ID)
		require.NoError(t, err)
		assert.True(t, found.UpdatedAt.Equal(later))

		deleted, err := repo.Delete(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, user.ID, deleted.ID)

		_, err = repo.FindByID(ctx, user.ID)
		assert.ErrorIs(t, err, chat.ErrNotFound)
	})

	t.Run("list contains created users", func(t *testing.T) {
		user := newUser(faker.Username())
		_, err := repo.Create(ctx, user)
		require.NoError(t, err)

		users, err := repo.List(ctx)
		require.NoError(t, err)

		ids := make([]string, 0, len(users))
		for _, u := range users {
			ids = append(ids, u.ID)
		}
		assert.Contains(t, ids, user.ID)
	})
}

// runMessageRepositoryContract exercises behavior every chat.MessageRepository must share.
// repo must start empty.
func runMessageRepositoryContract(t *testing.T, repo chat.MessageRepository) {
	ctx := context.Background()

	t.Run("list orders by creation time", func(t *testing.T) {
		later := newMessage("bob", faker.Sentence(), baseTime.Add(time.Minute))
		earlier := newMessage("alice", faker.Sentence(), baseTime)
		sameTime := newMessage("carol", faker.Sentence(), baseTime)

		for _, msg := range []chat.Message{later, earlier, sameTime} {
			_, err := repo.Create(ctx, msg)
			require.NoError(t, err)
		}

		messages, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, messages, 3)
		assert.Equal(t, earlier.ID, messages[0].ID)
		assert.Equal(t, sameTime.ID, messages[1].ID)
		assert.Equal(t, later.ID, messages[2].ID)
	})

	t.Run("update and delete", func(t *testing.T) {
		msg := newMessage("alice", "hi", baseTime)
		_, err := repo.Create(ctx, msg)
		require.NoError(t, err)

		edited := baseTime.Add(time.Second)
		updated, err := repo.Update(ctx, msg.ID, "hello", edited)
		require.NoError(t, err)
		assert.Equal(t, "hello", updated.Message)
		assert.Equal(t, "alice", updated.Username)
		assert.True(t, updated.CreatedAt.Equal(baseTime))
		assert.True(t, updated.UpdatedAt.Equal(edited))

		deleted, err := repo.Delete(ctx, msg.ID)
		require.NoError(t, err)
		assert.Equal(t, "hello", deleted.Message)

		_, err = repo.FindByID(ctx, msg.ID)
		assert.ErrorIs(t, err, chat.ErrNotFound)
	})

	t.Run("missing message", func(t *testing.T) {
		missing := uuid.NewString()

		_, err := repo.FindByID(ctx, missing)
		assert.ErrorIs(t, err, chat.ErrNotFound)
		_, err = repo.Update(ctx, missing, "x", baseTime)
		assert.ErrorIs(t, err, chat.ErrNotFound)
		_, err = repo.Delete(ctx, missing)
		assert.ErrorIs(t, err, chat.ErrNotFound)
	})
}
