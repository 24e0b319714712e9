// Package channel implements named chat broadcast groups with
// case-insensitive keys and exclusive per-session membership.
package channel

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/lobby/internal/lobby/protocol"
	"github.com/cory-johannsen/lobby/internal/lobby/session"
)

// Channel is one named broadcast group. The display name keeps the casing
// of the first join; the registry key is lowercase.
type Channel struct {
	// Name is the display name with original casing preserved.
	Name string

	members map[*session.Session]struct{}
}

func newChannel(name string) *Channel {
	return &Channel{
		Name:    name,
		members: make(map[*session.Session]struct{}),
	}
}

func (c *Channel) add(sess *session.Session)    { c.members[sess] = struct{}{} }
func (c *Channel) remove(sess *session.Session) { delete(c.members, sess) }

// Empty reports whether the channel has no members.
func (c *Channel) Empty() bool { return len(c.members) == 0 }

// Size returns the member count.
func (c *Channel) Size() int { return len(c.members) }

// Broadcast delivers a notification to every member via fn. A failed
// delivery to one member is logged and never aborts delivery to the rest.
func (c *Channel) Broadcast(logger *zap.Logger, fn func(protocol.Notifier) error) {
	for sess := range c.members {
		if sess.Notifier == nil {
			continue
		}
		if err := fn(sess.Notifier); err != nil {
			logger.Warn("channel delivery failed",
				zap.String("channel", c.Name),
				zap.String("recipient", sess.Username),
				zap.Error(err),
			)
		}
	}
}
