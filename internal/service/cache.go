package service

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Tyrowin/livechat/internal/chat"
)

// UserCache keeps recently authenticated users so bearer-token requests skip
// the user lookup. Entries are dropped when the user changes.
//
// Every Forget bumps a generation counter. A reader that loaded a user from
// the store adds it with AddIfCurrent, so a rename or delete that committed
// while the read was in flight cannot put the stale row back.
type UserCache struct {
	mu         sync.Mutex
	generation uint64
	entries    *lru.Cache[string, chat.PublicUser]
}

// NewUserCache creates a cache holding at most size users.
func NewUserCache(size int) (*UserCache, error) {
	entries, err := lru.New[string, chat.PublicUser](size)
	if err != nil {
		return nil, fmt.Errorf("create user cache: %w", err)
	}
	return &UserCache{entries: entries}, nil
}

func (c *UserCache) Get(id string) (chat.PublicUser, bool) {
	return c.entries.Get(id)
}

func (c *UserCache) Add(user chat.PublicUser) {
	c.entries.Add(user.ID, user)
}

// Generation returns the current invalidation counter. Capture it before
// reading from the store and hand it to AddIfCurrent afterwards.
func (c *UserCache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// AddIfCurrent stores user only if nothing was forgotten since generation
// was taken. It reports whether the entry was stored.
func (c *UserCache) AddIfCurrent(user chat.PublicUser, generation uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != generation {
		return false
	}
	c.entries.Add(user.ID, user)
	return true
}

func (c *UserCache) Forget(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.entries.Remove(id)
}

func (c *UserCache) Len() int {
	return c.entries.Len()
}
