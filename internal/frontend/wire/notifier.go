package wire

import (
	"github.com/cory-johannsen/lobby/internal/lobby/protocol"
)

// Notifier delivers lobby notifications to one client as outbound frames.
// Each connection owns exactly one Notifier; the lobby uses its identity to
// map a dropped connection back to its session.
type Notifier struct {
	conn *Conn
}

// NewNotifier binds a notifier to a connection.
func NewNotifier(conn *Conn) *Notifier {
	return &Notifier{conn: conn}
}

var _ protocol.Notifier = (*Notifier)(nil)

func (n *Notifier) HandshakeAccepted() error {
	return n.conn.WriteFrame(MsgHandshakeAccepted, nil)
}

func (n *Notifier) HandshakeDenied(reason protocol.HandshakeDenialReason) error {
	return n.conn.WriteFrame(MsgHandshakeDenied, appendU8(nil, uint8(reason)))
}

func (n *Notifier) AccountCreationOk() error {
	return n.conn.WriteFrame(MsgAccountCreationOk, nil)
}

func (n *Notifier) AccountCreationFailed(reason protocol.AccountCreationFailureReason) error {
	return n.conn.WriteFrame(MsgAccountCreationFailed, appendU8(nil, uint8(reason)))
}

func (n *Notifier) LoginOk(token protocol.Token, welcomeMessage string) error {
	payload := appendToken(nil, token)
	payload = appendString(payload, welcomeMessage)
	return n.conn.WriteFrame(MsgLoginOk, payload)
}

func (n *Notifier) LoginFailed(reason protocol.LoginFailureReason) error {
	return n.conn.WriteFrame(MsgLoginFailed, appendU8(nil, uint8(reason)))
}

func (n *Notifier) JoinedChannel(name string) error {
	return n.conn.WriteFrame(MsgJoinedChannel, appendString(nil, name))
}

func (n *Notifier) ChannelMessage(sender, text string) error {
	payload := appendString(nil, sender)
	payload = appendString(payload, text)
	return n.conn.WriteFrame(MsgChannelMessage, payload)
}

func (n *Notifier) ChannelEmote(sender, text string) error {
	payload := appendString(nil, sender)
	payload = appendString(payload, text)
	return n.conn.WriteFrame(MsgChannelEmote, payload)
}

func (n *Notifier) ChannelServerNotice(sender string, kind protocol.ServerNoticeKind) error {
	payload := appendString(nil, sender)
	payload = appendU8(payload, uint8(kind))
	return n.conn.WriteFrame(MsgChannelServerNotice, payload)
}

func (n *Notifier) GameCreationOk() error {
	return n.conn.WriteFrame(MsgGameCreationOk, nil)
}

func (n *Notifier) GameCreationFailed(reason protocol.GameCreationFailureReason) error {
	return n.conn.WriteFrame(MsgGameCreationFailed, appendU8(nil, uint8(reason)))
}

func (n *Notifier) JoinedGame(name, mapName string, mapChecksum uint64) error {
	payload := appendString(nil, name)
	payload = appendString(payload, mapName)
	payload = appendU64(payload, mapChecksum)
	return n.conn.WriteFrame(MsgJoinedGame, payload)
}

func (n *Notifier) JoinGameFailed(reason protocol.JoinGameFailureReason) error {
	return n.conn.WriteFrame(MsgJoinGameFailed, appendU8(nil, uint8(reason)))
}

func (n *Notifier) BeginGamesList() error {
	return n.conn.WriteFrame(MsgBeginGamesList, nil)
}

func (n *Notifier) GamesListItem(item protocol.GameListItem) error {
	payload := appendString(nil, item.Name)
	payload = appendU32(payload, uint32(item.UsedSlots))
	payload = appendU32(payload, uint32(item.TotalSlots))
	return n.conn.WriteFrame(MsgGamesListItem, payload)
}

func (n *Notifier) EndGamesList() error {
	return n.conn.WriteFrame(MsgEndGamesList, nil)
}

func (n *Notifier) BeginMapTransfer() error {
	return n.conn.WriteFrame(MsgBeginMapTransfer, nil)
}

func (n *Notifier) MapChunk(sequenceNumber uint32, data []byte) error {
	payload := appendU32(nil, sequenceNumber)
	payload = append(payload, data...)
	return n.conn.WriteFrame(MsgMapChunk, payload)
}

func (n *Notifier) EndMapTransfer(totalChunks uint32) error {
	return n.conn.WriteFrame(MsgEndMapTransfer, appendU32(nil, totalChunks))
}

func (n *Notifier) BadSession() error {
	return n.conn.WriteFrame(MsgBadSession, nil)
}

func (n *Notifier) ServerError(kind protocol.ServerErrorKind) error {
	return n.conn.WriteFrame(MsgServerError, appendU8(nil, uint8(kind)))
}

func (n *Notifier) Disconnected() error {
	return n.conn.WriteFrame(MsgDisconnected, nil)
}
