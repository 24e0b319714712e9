// Package wire implements the TCP connection layer: a length-prefixed binary
// frame protocol, the per-connection outbound notifier, and the acceptor
// that drives inbound frames into the lobby dispatcher.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/cory-johannsen/lobby/internal/lobby/protocol"
)

// Kind identifies a frame's message type. Client-originated kinds occupy
// the low range, server-originated kinds have the high bit set.
type Kind uint8

// Client-to-server frame kinds.
const (
	MsgHandshake Kind = iota + 0x01
	MsgCreateAccount
	MsgLogin
	MsgJoinChannel
	MsgChatMessage
	MsgEmoteMessage
	MsgCreateGame
	MsgJoinGame
	MsgLeaveGame
	MsgUploadMapData
	MsgMapDone
	MsgRequestMap
	MsgQueryGamesList
)

// Server-to-client frame kinds.
const (
	MsgHandshakeAccepted Kind = iota + 0x81
	MsgHandshakeDenied
	MsgAccountCreationOk
	MsgAccountCreationFailed
	MsgLoginOk
	MsgLoginFailed
	MsgJoinedChannel
	MsgChannelMessage
	MsgChannelEmote
	MsgChannelServerNotice
	MsgGameCreationOk
	MsgGameCreationFailed
	MsgJoinedGame
	MsgJoinGameFailed
	MsgBeginGamesList
	MsgGamesListItem
	MsgEndGamesList
	MsgBeginMapTransfer
	MsgMapChunk
	MsgEndMapTransfer
	MsgBadSession
	MsgServerError
	MsgDisconnected
)

// MaxFrameSize bounds a frame's kind+payload length. Map chunks are the
// largest legitimate payload and fit comfortably.
const MaxFrameSize = 64 * 1024

// ErrFrameTooLarge is returned for frames exceeding MaxFrameSize.
var ErrFrameTooLarge = errors.New("frame exceeds maximum size")

// ErrMalformedPayload is returned when a payload is shorter than its
// declared fields require.
var ErrMalformedPayload = errors.New("malformed frame payload")

// WriteFrame writes one frame as [u32 length][u8 kind][payload], big-endian.
// The length covers the kind byte and the payload.
func WriteFrame(w io.Writer, kind Kind, payload []byte) error {
	if len(payload)+1 > MaxFrameSize {
		return ErrFrameTooLarge
	}

	buf := make([]byte, 5+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(payload)+1))
	buf[4] = byte(kind)
	copy(buf[5:], payload)

	_, err := w.Write(buf)
	return err
}

// ReadFrame reads one frame, returning its kind and payload.
//
// Postcondition: Returns io.EOF untouched on a clean close at a frame
// boundary, so callers can distinguish it from a mid-frame truncation.
func ReadFrame(r io.Reader) (Kind, []byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, nil, err
	}

	length := binary.BigEndian.Uint32(header[:])
	if length == 0 {
		return 0, nil, errors.New("zero-length frame")
	}
	if length > MaxFrameSize {
		return 0, nil, ErrFrameTooLarge
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, fmt.Errorf("reading frame body: %w", err)
	}
	return Kind(body[0]), body[1:], nil
}

// Payload append helpers. Strings are u16-length-prefixed UTF-8.

func appendU8(buf []byte, v uint8) []byte   { return append(buf, v) }
func appendU32(buf []byte, v uint32) []byte { return binary.BigEndian.AppendUint32(buf, v) }
func appendU64(buf []byte, v uint64) []byte { return binary.BigEndian.AppendUint64(buf, v) }

func appendString(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(s)))
	return append(buf, s...)
}

func appendToken(buf []byte, token protocol.Token) []byte {
	return append(buf, token[:]...)
}

// payloadReader decodes a payload field by field with a sticky error, so
// decoders can read a whole message and check once.
type payloadReader struct {
	buf []byte
	off int
	err error
}

func newPayloadReader(payload []byte) *payloadReader {
	return &payloadReader{buf: payload}
}

func (p *payloadReader) take(n int) []byte {
	if p.err != nil {
		return nil
	}
	if p.off+n > len(p.buf) {
		p.err = ErrMalformedPayload
		return nil
	}
	out := p.buf[p.off : p.off+n]
	p.off += n
	return out
}

func (p *payloadReader) U8() uint8 {
	b := p.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (p *payloadReader) U32() uint32 {
	b := p.take(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (p *payloadReader) U64() uint64 {
	b := p.take(8)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func (p *payloadReader) String() string {
	b := p.take(2)
	if b == nil {
		return ""
	}
	return string(p.take(int(binary.BigEndian.Uint16(b))))
}

func (p *payloadReader) Token() protocol.Token {
	var token protocol.Token
	b := p.take(len(token))
	if b != nil {
		copy(token[:], b)
	}
	return token
}

// Rest consumes and returns all remaining bytes.
func (p *payloadReader) Rest() []byte {
	if p.err != nil {
		return nil
	}
	out := p.buf[p.off:]
	p.off = len(p.buf)
	return out
}

// Err returns the first decode failure, or an error if trailing bytes
// remain unconsumed.
func (p *payloadReader) Err() error {
	if p.err != nil {
		return p.err
	}
	if p.off != len(p.buf) {
		return ErrMalformedPayload
	}
	return nil
}
