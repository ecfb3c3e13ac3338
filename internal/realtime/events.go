package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/Tyrowin/livechat/internal/chat"
)

// Kind is the "type" discriminator of a broadcast envelope.
type Kind string

const (
	KindNewMessage     Kind = "new_message"
	KindChangedMessage Kind = "changed_message"
	KindDeletedMessage Kind = "deleted_message"
	KindNewLogin       Kind = "new_login"
	KindNewLogout      Kind = "new_logout"
	KindChangedUser    Kind = "changed_user"
	KindDeletedUser    Kind = "deleted_user"
)

// Kinds lists every envelope type clients may receive.
var Kinds = []Kind{
	KindNewMessage,
	KindChangedMessage,
	KindDeletedMessage,
	KindNewLogin,
	KindNewLogout,
	KindChangedUser,
	KindDeletedUser,
}

// Event is a state change that can be broadcast. The set of implementations
// is closed: only the types in this file satisfy it.
type Event interface {
	Kind() Kind
	payload() any
}

// MessageCreated is published after a chat message is stored.
type MessageCreated struct{ Message chat.Message }

// MessageChanged is published after a chat message's text is updated.
type MessageChanged struct{ Message chat.Message }

// MessageDeleted carries the message as it was before deletion.
type MessageDeleted struct{ Message chat.Message }

// UserLoggedIn is published after a successful login.
type UserLoggedIn struct{ Username string }

// UserLoggedOut is published after a logout.
type UserLoggedOut struct{ Username string }

// UserChanged carries the updated public profile.
type UserChanged struct{ User chat.PublicUser }

// UserDeleted carries the public profile of the removed user.
type UserDeleted struct{ User chat.PublicUser }

type usernamePayload struct {
	Username string `json:"username"`
}

func (MessageCreated) Kind() Kind { return KindNewMessage }
func (MessageChanged) Kind() Kind { return KindChangedMessage }
func (MessageDeleted) Kind() Kind { return KindDeletedMessage }
func (UserLoggedIn) Kind() Kind   { return KindNewLogin }
func (UserLoggedOut) Kind() Kind  { return KindNewLogout }
func (UserChanged) Kind() Kind    { return KindChangedUser }
func (UserDeleted) Kind() Kind    { return KindDeletedUser }

func (e MessageCreated) payload() any { return e.Message }
func (e MessageChanged) payload() any { return e.Message }
func (e MessageDeleted) payload() any { return e.Message }
func (e UserLoggedIn) payload() any   { return usernamePayload{Username: e.Username} }
func (e UserLoggedOut) payload() any  { return usernamePayload{Username: e.Username} }
func (e UserChanged) payload() any    { return e.User }
func (e UserDeleted) payload() any    { return e.User }

// Envelope is the wire form of every frame sent to clients.
type Envelope struct {
	Type Kind `json:"type"`
	Data any  `json:"data"`
}

// NewEnvelope wraps event in its wire envelope.
func NewEnvelope(event Event) Envelope {
	return Envelope{Type: event.Kind(), Data: event.payload()}
}

// Marshal serializes event's envelope.
func Marshal(event Event) ([]byte, error) {
	data, err := json.Marshal(NewEnvelope(event))
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", event.Kind(), err)
	}
	return data, nil
}
