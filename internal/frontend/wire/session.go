package wire

import (
	"context"
	"errors"
	"fmt"

	"github.com/cory-johannsen/lobby/internal/lobby/protocol"
)

// Dispatcher is the lobby surface the wire layer drives. Every inbound
// frame decodes into exactly one dispatcher call.
type Dispatcher interface {
	Handshake(notifier protocol.Notifier, gameID, version uint32) bool
	CreateAccount(ctx context.Context, notifier protocol.Notifier, username, password string)
	Login(ctx context.Context, notifier protocol.Notifier, username, password string)
	Disconnected(notifier protocol.Notifier)

	JoinChannel(token protocol.Token, notifier protocol.Notifier, name string)
	ChatMessage(token protocol.Token, notifier protocol.Notifier, text string)
	EmoteMessage(token protocol.Token, notifier protocol.Notifier, text string)

	CreateGame(token protocol.Token, notifier protocol.Notifier, name, mapName string, totalSlots int, speed protocol.GameSpeed, visibility protocol.Visibility, mapChecksum uint64)
	JoinGame(token protocol.Token, notifier protocol.Notifier, name string)
	LeaveGame(token protocol.Token, notifier protocol.Notifier)

	UploadMapData(token protocol.Token, notifier protocol.Notifier, sequenceNumber uint32, data []byte)
	MapDone(token protocol.Token, notifier protocol.Notifier, finalSequenceNumber uint32)
	RequestMap(token protocol.Token, notifier protocol.Notifier)
	QueryGamesList(token protocol.Token, notifier protocol.Notifier)
}

// errHandshakeRequired closes connections that send anything before a
// successful handshake.
var errHandshakeRequired = errors.New("frame received before handshake")

// session drives one connection's inbound frame loop.
type session struct {
	conn       *Conn
	notifier   *Notifier
	dispatcher Dispatcher
	handshaken bool
}

func newSession(conn *Conn, dispatcher Dispatcher) *session {
	return &session{
		conn:       conn,
		notifier:   NewNotifier(conn),
		dispatcher: dispatcher,
	}
}

// run reads frames until the connection drops, the context is cancelled, or
// a protocol violation occurs. The lobby is always told about the
// disconnect so the session can be reaped.
func (s *session) run(ctx context.Context) error {
	defer s.dispatcher.Disconnected(s.notifier)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		kind, payload, err := s.conn.ReadFrame()
		if err != nil {
			return err
		}
		if err := s.dispatch(ctx, kind, payload); err != nil {
			return err
		}
	}
}

// dispatch decodes one frame and routes it. Until the handshake succeeds,
// only handshake frames are allowed.
func (s *session) dispatch(ctx context.Context, kind Kind, payload []byte) error {
	p := newPayloadReader(payload)

	if !s.handshaken && kind != MsgHandshake {
		return errHandshakeRequired
	}

	switch kind {
	case MsgHandshake:
		gameID := p.U32()
		version := p.U32()
		if err := p.Err(); err != nil {
			return err
		}
		s.handshaken = s.dispatcher.Handshake(s.notifier, gameID, version)
		if !s.handshaken {
			return errors.New("handshake denied")
		}
		return nil

	case MsgCreateAccount:
		username := p.String()
		password := p.String()
		if err := p.Err(); err != nil {
			return err
		}
		s.dispatcher.CreateAccount(ctx, s.notifier, username, password)
		return nil

	case MsgLogin:
		username := p.String()
		password := p.String()
		if err := p.Err(); err != nil {
			return err
		}
		s.dispatcher.Login(ctx, s.notifier, username, password)
		return nil

	case MsgJoinChannel:
		token := p.Token()
		name := p.String()
		if err := p.Err(); err != nil {
			return err
		}
		s.dispatcher.JoinChannel(token, s.notifier, name)
		return nil

	case MsgChatMessage:
		token := p.Token()
		text := p.String()
		if err := p.Err(); err != nil {
			return err
		}
		s.dispatcher.ChatMessage(token, s.notifier, text)
		return nil

	case MsgEmoteMessage:
		token := p.Token()
		text := p.String()
		if err := p.Err(); err != nil {
			return err
		}
		s.dispatcher.EmoteMessage(token, s.notifier, text)
		return nil

	case MsgCreateGame:
		token := p.Token()
		name := p.String()
		mapName := p.String()
		totalSlots := p.U32()
		speed := p.U8()
		visibility := p.U8()
		checksum := p.U64()
		if err := p.Err(); err != nil {
			return err
		}
		s.dispatcher.CreateGame(token, s.notifier, name, mapName, int(totalSlots),
			protocol.GameSpeed(speed), protocol.Visibility(visibility), checksum)
		return nil

	case MsgJoinGame:
		token := p.Token()
		name := p.String()
		if err := p.Err(); err != nil {
			return err
		}
		s.dispatcher.JoinGame(token, s.notifier, name)
		return nil

	case MsgLeaveGame:
		token := p.Token()
		if err := p.Err(); err != nil {
			return err
		}
		s.dispatcher.LeaveGame(token, s.notifier)
		return nil

	case MsgUploadMapData:
		token := p.Token()
		sequenceNumber := p.U32()
		data := p.Rest()
		if err := p.Err(); err != nil {
			return err
		}
		s.dispatcher.UploadMapData(token, s.notifier, sequenceNumber, data)
		return nil

	case MsgMapDone:
		token := p.Token()
		finalSequenceNumber := p.U32()
		if err := p.Err(); err != nil {
			return err
		}
		s.dispatcher.MapDone(token, s.notifier, finalSequenceNumber)
		return nil

	case MsgRequestMap:
		token := p.Token()
		if err := p.Err(); err != nil {
			return err
		}
		s.dispatcher.RequestMap(token, s.notifier)
		return nil

	case MsgQueryGamesList:
		token := p.Token()
		if err := p.Err(); err != nil {
			return err
		}
		s.dispatcher.QueryGamesList(token, s.notifier)
		return nil

	default:
		return fmt.Errorf("unknown frame kind 0x%02x", uint8(kind))
	}
}
