// Package session implements the session directory: one record per
// authenticated, connected user, keyed by an opaque login token.
package session

import (
	"time"

	"github.com/cory-johannsen/lobby/internal/lobby/protocol"
)

// Session tracks one authenticated, connected user.
//
// CurrentChannel and CurrentGame hold lowercase registry keys and are
// mutually exclusive: a session is in a chat channel or in a game lobby,
// never both. The empty string means "none".
type Session struct {
	// UserID is the account identity that owns this session.
	UserID int64
	// Username is the account display name used in chat and notices.
	Username string
	// Token is the opaque credential issued at login.
	Token protocol.Token
	// CreatedAt is the login time.
	CreatedAt time.Time
	// LastActive is refreshed on every successfully resolved request.
	LastActive time.Time
	// CurrentChannel is the lowercase key of the occupied chat channel.
	CurrentChannel string
	// CurrentGame is the lowercase key of the occupied game lobby.
	CurrentGame string
	// LastChannel is the display name of the most recently joined chat
	// channel, used to reattach the session after its game closes.
	LastChannel string
	// Notifier is the most recent live connection handle.
	Notifier protocol.Notifier
}

// InGame reports whether the session currently occupies a game lobby.
func (s *Session) InGame() bool { return s.CurrentGame != "" }

// InChannel reports whether the session currently occupies a chat channel.
func (s *Session) InChannel() bool { return s.CurrentChannel != "" }
