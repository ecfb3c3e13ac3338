package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/Tyrowin/livechat/internal/apperrors"
	"github.com/Tyrowin/livechat/internal/auth"
	"github.com/Tyrowin/livechat/internal/chat"
	"github.com/Tyrowin/livechat/internal/realtime"
	"github.com/Tyrowin/livechat/internal/store"
)

const testSecret = "0123456789abcdef0123456789abcdef"

var errStoreDown = errors.New("store unavailable")

// recordingPublisher captures every event instead of fanning it out.
type recordingPublisher struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (p *recordingPublisher) Broadcast(event realtime.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) Events() []realtime.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]realtime.Event(nil), p.events...)
}

func (p *recordingPublisher) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

// failingMessages wraps a repository and fails every write.
type failingMessages struct {
	chat.MessageRepository
}

func (failingMessages) Create(context.Context, chat.Message) (chat.Message, error) {
	return chat.Message{}, errStoreDown
}

func (failingMessages) Update(context.Context, string, string, time.Time) (chat.Message, error) {
	return chat.Message{}, errStoreDown
}

func (failingMessages) Delete(context.Context, string) (chat.Message, error) {
	return chat.Message{}, errStoreDown
}

type failingUsers struct {
	chat.UserRepository
}

func (failingUsers) Update(context.Context, string, chat.UserUpdate) (chat.User, error) {
	return chat.User{}, errStoreDown
}

func (failingUsers) Delete(context.Context, string) (chat.User, error) {
	return chat.User{}, errStoreDown
}

type fixture struct {
	store     *store.Memory
	publisher *recordingPublisher
	clock     *clockwork.FakeClock
	cache     *UserCache
	tokens    *auth.TokenManager
	auth      *AuthService
	messages  *MessageService
	users     *UserService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mem := store.NewMemory()
	f := &fixture{
		store:     mem,
		publisher: &recordingPublisher{},
		clock:     clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)),
	}

	cache, err := NewUserCache(16)
	require.NoError(t, err)
	f.cache = cache

	logger := zaptest.NewLogger(t)
	hasher := auth.NewPasswordHasher(bcrypt.MinCost)
	f.tokens = auth.NewTokenManager(testSecret, "livechat", time.Hour, f.clock)
	f.auth = NewAuthService(mem.Users(), hasher, f.tokens, cache, f.publisher, f.clock, logger)
	f.messages = NewMessageService(mem.Messages(), f.publisher, f.clock, logger)
	f.users = NewUserService(mem.Users(), hasher, cache, f.publisher, f.clock, logger)
	return f
}

// register creates an account and returns it without recording any event.
func (f *fixture) register(t *testing.T, username string) chat.PublicUser {
	t.Helper()
	user, err := f.auth.Register(context.Background(), username, "password123")
	require.NoError(t, err)
	return user
}

func requireAppError(t *testing.T, err error, want apperrors.Type, message string) {
	t.Helper()
	require.Error(t, err)
	appErr := apperrors.AsStructuredError(err)
	require.Equal(t, want, appErr.Type, "unexpected error: %v", err)
	if message != "" {
		require.Equal(t, message, appErr.Message)
	}
}
