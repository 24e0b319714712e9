package wire

import (
	"net"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/lobby/internal/lobby/protocol"
)

// readOneFrame reads a single frame written by fn through a synchronous
// pipe.
func readOneFrame(t *testing.T, fn func(n *Notifier) error) (Kind, *payloadReader) {
	t.Helper()
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	notifier := NewNotifier(NewConn(server, 0, 0))
	errCh := make(chan error, 1)
	go func() { errCh <- fn(notifier) }()

	kind, payload, err := ReadFrame(client)
	require.NoError(t, err)
	require.NoError(t, <-errCh)
	return kind, newPayloadReader(payload)
}

func TestNotifier_LoginOk(t *testing.T) {
	token := uuid.New()
	kind, p := readOneFrame(t, func(n *Notifier) error {
		return n.LoginOk(token, "welcome aboard")
	})

	assert.Equal(t, MsgLoginOk, kind)
	assert.Equal(t, token, p.Token())
	assert.Equal(t, "welcome aboard", p.String())
	assert.NoError(t, p.Err())
}

func TestNotifier_ChannelMessage(t *testing.T) {
	kind, p := readOneFrame(t, func(n *Notifier) error {
		return n.ChannelMessage("alice", "hello there")
	})

	assert.Equal(t, MsgChannelMessage, kind)
	assert.Equal(t, "alice", p.String())
	assert.Equal(t, "hello there", p.String())
	assert.NoError(t, p.Err())
}

func TestNotifier_JoinedGame(t *testing.T) {
	kind, p := readOneFrame(t, func(n *Notifier) error {
		return n.JoinedGame("Arena", "echo isles", 0xfeed)
	})

	assert.Equal(t, MsgJoinedGame, kind)
	assert.Equal(t, "Arena", p.String())
	assert.Equal(t, "echo isles", p.String())
	assert.Equal(t, uint64(0xfeed), p.U64())
	assert.NoError(t, p.Err())
}

func TestNotifier_GamesListItem(t *testing.T) {
	kind, p := readOneFrame(t, func(n *Notifier) error {
		return n.GamesListItem(protocol.GameListItem{Name: "Arena", UsedSlots: 2, TotalSlots: 8})
	})

	assert.Equal(t, MsgGamesListItem, kind)
	assert.Equal(t, "Arena", p.String())
	assert.Equal(t, uint32(2), p.U32())
	assert.Equal(t, uint32(8), p.U32())
	assert.NoError(t, p.Err())
}

func TestNotifier_MapChunk(t *testing.T) {
	data := []byte("map bytes")
	kind, p := readOneFrame(t, func(n *Notifier) error {
		return n.MapChunk(7, data)
	})

	assert.Equal(t, MsgMapChunk, kind)
	assert.Equal(t, uint32(7), p.U32())
	assert.Equal(t, data, p.Rest())
	assert.NoError(t, p.Err())
}

func TestNotifier_ServerError(t *testing.T) {
	kind, p := readOneFrame(t, func(n *Notifier) error {
		return n.ServerError(protocol.ServerErrorMapUploadFailed)
	})

	assert.Equal(t, MsgServerError, kind)
	assert.Equal(t, uint8(protocol.ServerErrorMapUploadFailed), p.U8())
	assert.NoError(t, p.Err())
}
