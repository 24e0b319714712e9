// Package protocol defines the outcome types and the outbound notification
// interface shared between the lobby core and the connection layer.
package protocol

import "github.com/google/uuid"

// Token is the opaque credential a client presents on every request after
// login. It is a random 128-bit value, unguessable and stable for the
// session's lifetime.
type Token = uuid.UUID

// HandshakeDenialReason explains a rejected handshake.
type HandshakeDenialReason uint8

const (
	// HandshakeDeniedBadVersion means the (game id, version) pair is not in
	// the accepted set.
	HandshakeDeniedBadVersion HandshakeDenialReason = iota + 1
)

// AccountCreationFailureReason explains a failed account creation.
type AccountCreationFailureReason uint8

const (
	// AccountCreationFailedUsernameTaken means the username already exists.
	AccountCreationFailedUsernameTaken AccountCreationFailureReason = iota + 1
	// AccountCreationFailedInternal means a server-side error occurred.
	AccountCreationFailedInternal
)

// LoginFailureReason explains a failed login.
type LoginFailureReason uint8

const (
	// LoginFailedUnknownUser means no account exists for the username.
	LoginFailedUnknownUser LoginFailureReason = iota + 1
	// LoginFailedInvalidCredentials means the password check failed.
	LoginFailedInvalidCredentials
	// LoginFailedInternal means a server-side error occurred.
	LoginFailedInternal
)

// GameCreationFailureReason explains a failed game creation.
type GameCreationFailureReason uint8

const (
	// GameCreationFailedNameTaken means the game name is already in use.
	GameCreationFailedNameTaken GameCreationFailureReason = iota + 1
)

// JoinGameFailureReason explains a failed game join.
type JoinGameFailureReason uint8

const (
	// JoinGameFailedAlreadyInGame means the session is already in a game.
	JoinGameFailedAlreadyInGame JoinGameFailureReason = iota + 1
	// JoinGameFailedNoSuchGame means no game exists with the given name.
	JoinGameFailedNoSuchGame
	// JoinGameFailedGameFull means the game has no free slots.
	JoinGameFailedGameFull
)

// ServerErrorKind classifies generic server-side request failures.
type ServerErrorKind uint8

const (
	// ServerErrorBadRequest means the request made no sense in the session's
	// current state, e.g. uploading map data with no current game.
	ServerErrorBadRequest ServerErrorKind = iota + 1
	// ServerErrorMapUploadFailed means the map upload did not validate and
	// the hosting game was closed.
	ServerErrorMapUploadFailed
)

// ServerNoticeKind classifies server-generated notices broadcast to a
// channel or game lobby.
type ServerNoticeKind uint8

const (
	// NoticeJoinGame announces a member joining a game lobby.
	NoticeJoinGame ServerNoticeKind = iota + 1
	// NoticeLeaveGame announces a member leaving a game lobby.
	NoticeLeaveGame
)

// GameSpeed is the declared speed setting of a hosted game.
type GameSpeed uint8

const (
	SpeedSlower GameSpeed = iota
	SpeedNormal
	SpeedFaster
)

// Visibility controls whether a hosted game appears in the public listing.
type Visibility uint8

const (
	VisibilityPublic Visibility = iota
	VisibilityPrivate
)

// GameListItem is one entry of a games-list snapshot.
type GameListItem struct {
	Name       string
	UsedSlots  int
	TotalSlots int
}

// Notifier is the outbound notification interface for one client
// connection. The lobby core treats delivery as fire-and-forget:
// implementations must not block on network I/O beyond a bounded write
// timeout, and errors are logged by the caller, never escalated.
type Notifier interface {
	HandshakeAccepted() error
	HandshakeDenied(reason HandshakeDenialReason) error

	AccountCreationOk() error
	AccountCreationFailed(reason AccountCreationFailureReason) error

	LoginOk(token Token, welcomeMessage string) error
	LoginFailed(reason LoginFailureReason) error

	JoinedChannel(name string) error
	ChannelMessage(sender, text string) error
	ChannelEmote(sender, text string) error
	ChannelServerNotice(sender string, kind ServerNoticeKind) error

	GameCreationOk() error
	GameCreationFailed(reason GameCreationFailureReason) error
	JoinedGame(name, mapName string, mapChecksum uint64) error
	JoinGameFailed(reason JoinGameFailureReason) error

	BeginGamesList() error
	GamesListItem(item GameListItem) error
	EndGamesList() error

	BeginMapTransfer() error
	MapChunk(sequenceNumber uint32, data []byte) error
	EndMapTransfer(totalChunks uint32) error

	BadSession() error
	ServerError(kind ServerErrorKind) error
	Disconnected() error
}
