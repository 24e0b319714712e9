package channel

import (
	"strings"

	"go.uber.org/zap"

	"github.com/cory-johannsen/lobby/internal/lobby/protocol"
	"github.com/cory-johannsen/lobby/internal/lobby/session"
)

// Registry tracks all live chat channels, keyed case-insensitively.
// Channels are created lazily on first join and removed the moment their
// last member leaves; an empty channel never persists.
//
// Registry is not safe for concurrent use. The lobby dispatcher serializes
// all access.
type Registry struct {
	logger   *zap.Logger
	channels map[string]*Channel
}

// NewRegistry creates an empty channel registry.
//
// Precondition: logger must be non-nil.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		logger:   logger,
		channels: make(map[string]*Channel),
	}
}

// Key returns the case-insensitive registry key for a channel name.
func Key(name string) string { return strings.ToLower(name) }

// Join moves the session into the named channel, detaching it from any
// channel it currently occupies first. The channel is created if it does
// not exist, and the name is recorded as the session's last active channel
// for later reattachment.
//
// Precondition: The session must not be in a game; the dispatcher enforces
// the channel/game mutual exclusion before calling.
// Postcondition: sess.CurrentChannel is the key of the joined channel.
func (r *Registry) Join(sess *session.Session, name string) *Channel {
	r.Leave(sess)

	key := Key(name)
	ch, ok := r.channels[key]
	if !ok {
		ch = newChannel(name)
		r.channels[key] = ch
		r.logger.Debug("channel created", zap.String("channel", name))
	}

	ch.add(sess)
	sess.CurrentChannel = key
	sess.LastChannel = ch.Name
	return ch
}

// Leave removes the session from its current channel, deleting the channel
// if it becomes empty. A session in no channel is a no-op.
func (r *Registry) Leave(sess *session.Session) {
	if sess.CurrentChannel == "" {
		return
	}

	if ch, ok := r.channels[sess.CurrentChannel]; ok {
		ch.remove(sess)
		if ch.Empty() {
			delete(r.channels, sess.CurrentChannel)
			r.logger.Debug("channel removed", zap.String("channel", ch.Name))
		}
	}
	sess.CurrentChannel = ""
}

// Get returns the channel for the given name, or nil.
func (r *Registry) Get(name string) *Channel {
	return r.channels[Key(name)]
}

// BroadcastMessage delivers a chat message to every member of the channel.
// Per-member delivery failures are logged and isolated.
func (r *Registry) BroadcastMessage(ch *Channel, sender, text string) {
	ch.Broadcast(r.logger, func(n protocol.Notifier) error {
		return n.ChannelMessage(sender, text)
	})
}

// BroadcastEmote delivers an emote to every member of the channel.
func (r *Registry) BroadcastEmote(ch *Channel, sender, text string) {
	ch.Broadcast(r.logger, func(n protocol.Notifier) error {
		return n.ChannelEmote(sender, text)
	})
}

// Count returns the number of live channels.
func (r *Registry) Count() int { return len(r.channels) }
