package testutil

import (
	"errors"
	"fmt"

	"github.com/cory-johannsen/lobby/internal/lobby/protocol"
)

// RecordingNotifier captures every outbound notification as a formatted
// event string, so tests can assert on the exact sequence a client saw.
// The zero value is ready to use.
type RecordingNotifier struct {
	// Events is the ordered log of notifications received.
	Events []string
	// FailAll makes every notification return an error, for exercising the
	// best-effort delivery paths.
	FailAll bool
	// LastToken is the token from the most recent LoginOk.
	LastToken protocol.Token
	// Chunks collects MapChunk payloads in arrival order.
	Chunks [][]byte
}

func (r *RecordingNotifier) record(format string, args ...any) error {
	if r.FailAll {
		return errors.New("connection closed")
	}
	r.Events = append(r.Events, fmt.Sprintf(format, args...))
	return nil
}

func (r *RecordingNotifier) HandshakeAccepted() error {
	return r.record("handshake-accepted")
}

func (r *RecordingNotifier) HandshakeDenied(reason protocol.HandshakeDenialReason) error {
	return r.record("handshake-denied(%d)", reason)
}

func (r *RecordingNotifier) AccountCreationOk() error {
	return r.record("account-ok")
}

func (r *RecordingNotifier) AccountCreationFailed(reason protocol.AccountCreationFailureReason) error {
	return r.record("account-failed(%d)", reason)
}

func (r *RecordingNotifier) LoginOk(token protocol.Token, welcomeMessage string) error {
	if r.FailAll {
		return errors.New("connection closed")
	}
	r.LastToken = token
	r.Events = append(r.Events, fmt.Sprintf("login-ok(%s)", welcomeMessage))
	return nil
}

func (r *RecordingNotifier) LoginFailed(reason protocol.LoginFailureReason) error {
	return r.record("login-failed(%d)", reason)
}

func (r *RecordingNotifier) JoinedChannel(name string) error {
	return r.record("joined-channel(%s)", name)
}

func (r *RecordingNotifier) ChannelMessage(sender, text string) error {
	return r.record("message(%s: %s)", sender, text)
}

func (r *RecordingNotifier) ChannelEmote(sender, text string) error {
	return r.record("emote(%s: %s)", sender, text)
}

func (r *RecordingNotifier) ChannelServerNotice(sender string, kind protocol.ServerNoticeKind) error {
	return r.record("notice(%s, %d)", sender, kind)
}

func (r *RecordingNotifier) GameCreationOk() error {
	return r.record("game-created")
}

func (r *RecordingNotifier) GameCreationFailed(reason protocol.GameCreationFailureReason) error {
	return r.record("game-create-failed(%d)", reason)
}

func (r *RecordingNotifier) JoinedGame(name, mapName string, mapChecksum uint64) error {
	return r.record("joined-game(%s, %s, %d)", name, mapName, mapChecksum)
}

func (r *RecordingNotifier) JoinGameFailed(reason protocol.JoinGameFailureReason) error {
	return r.record("join-game-failed(%d)", reason)
}

func (r *RecordingNotifier) BeginGamesList() error {
	return r.record("games-list-begin")
}

func (r *RecordingNotifier) GamesListItem(item protocol.GameListItem) error {
	return r.record("games-list-item(%s, %d/%d)", item.Name, item.UsedSlots, item.TotalSlots)
}

func (r *RecordingNotifier) EndGamesList() error {
	return r.record("games-list-end")
}

func (r *RecordingNotifier) BeginMapTransfer() error {
	return r.record("map-begin")
}

func (r *RecordingNotifier) MapChunk(sequenceNumber uint32, data []byte) error {
	if r.FailAll {
		return errors.New("connection closed")
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	r.Chunks = append(r.Chunks, buf)
	r.Events = append(r.Events, fmt.Sprintf("map-chunk(%d, %d bytes)", sequenceNumber, len(data)))
	return nil
}

func (r *RecordingNotifier) EndMapTransfer(totalChunks uint32) error {
	return r.record("map-end(%d)", totalChunks)
}

func (r *RecordingNotifier) BadSession() error {
	return r.record("bad-session")
}

func (r *RecordingNotifier) ServerError(kind protocol.ServerErrorKind) error {
	return r.record("server-error(%d)", kind)
}

func (r *RecordingNotifier) Disconnected() error {
	return r.record("disconnected")
}

// Has reports whether an event equal to s was recorded.
func (r *RecordingNotifier) Has(s string) bool {
	for _, e := range r.Events {
		if e == s {
			return true
		}
	}
	return false
}

// Last returns the most recent event, or "" when none were recorded.
func (r *RecordingNotifier) Last() string {
	if len(r.Events) == 0 {
		return ""
	}
	return r.Events[len(r.Events)-1]
}

// MapBytes returns the concatenation of all received map chunks.
func (r *RecordingNotifier) MapBytes() []byte {
	var out []byte
	for _, c := range r.Chunks {
		out = append(out, c...)
	}
	return out
}
