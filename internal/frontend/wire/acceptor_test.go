package wire

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/lobby/internal/config"
	"github.com/cory-johannsen/lobby/internal/lobby/protocol"
)

// fakeDispatcher accepts game 1 handshakes and acknowledges account
// creation, recording disconnects.
type fakeDispatcher struct {
	disconnects atomic.Int32
	chats       atomic.Int32
}

func (d *fakeDispatcher) Handshake(n protocol.Notifier, gameID, version uint32) bool {
	if gameID != 1 {
		_ = n.HandshakeDenied(protocol.HandshakeDeniedBadVersion)
		return false
	}
	_ = n.HandshakeAccepted()
	return true
}

func (d *fakeDispatcher) CreateAccount(_ context.Context, n protocol.Notifier, _, _ string) {
	_ = n.AccountCreationOk()
}

func (d *fakeDispatcher) Login(_ context.Context, n protocol.Notifier, _, _ string) {
	_ = n.LoginOk(uuid.New(), "welcome")
}

func (d *fakeDispatcher) Disconnected(protocol.Notifier) { d.disconnects.Add(1) }

func (d *fakeDispatcher) JoinChannel(_ protocol.Token, _ protocol.Notifier, _ string) {}
func (d *fakeDispatcher) ChatMessage(_ protocol.Token, _ protocol.Notifier, _ string) {
	d.chats.Add(1)
}
func (d *fakeDispatcher) EmoteMessage(_ protocol.Token, _ protocol.Notifier, _ string) {}
func (d *fakeDispatcher) CreateGame(_ protocol.Token, _ protocol.Notifier, _, _ string, _ int, _ protocol.GameSpeed, _ protocol.Visibility, _ uint64) {
}
func (d *fakeDispatcher) JoinGame(_ protocol.Token, _ protocol.Notifier, _ string) {}
func (d *fakeDispatcher) LeaveGame(_ protocol.Token, _ protocol.Notifier)          {}
func (d *fakeDispatcher) UploadMapData(_ protocol.Token, _ protocol.Notifier, _ uint32, _ []byte) {
}
func (d *fakeDispatcher) MapDone(_ protocol.Token, _ protocol.Notifier, _ uint32) {}
func (d *fakeDispatcher) RequestMap(_ protocol.Token, _ protocol.Notifier)        {}
func (d *fakeDispatcher) QueryGamesList(_ protocol.Token, _ protocol.Notifier)    {}

func startAcceptor(t *testing.T, dispatcher Dispatcher) *Acceptor {
	t.Helper()
	cfg := config.ServerConfig{
		Host:         "127.0.0.1",
		Port:         0, // random port
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	acc := NewAcceptor(cfg, dispatcher, zaptest.NewLogger(t))

	errCh := make(chan error, 1)
	go func() { errCh <- acc.ListenAndServe() }()
	t.Cleanup(func() {
		acc.Stop()
		select {
		case err := <-errCh:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("acceptor did not stop in time")
		}
	})

	deadline := time.After(2 * time.Second)
	for {
		if acc.IsRunning() && acc.Addr() != "" {
			return acc
		}
		select {
		case <-deadline:
			t.Fatal("acceptor did not start in time")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func dial(t *testing.T, addr string) net.Conn {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func handshakePayload(gameID, version uint32) []byte {
	return appendU32(appendU32(nil, gameID), version)
}

func TestAcceptorSessionFlow(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	acc := startAcceptor(t, dispatcher)
	conn := dial(t, acc.Addr())

	require.NoError(t, WriteFrame(conn, MsgHandshake, handshakePayload(1, 31)))
	kind, _, err := ReadFrame(conn)
	require.NoError(t, err)
	assert.Equal(t, MsgHandshakeAccepted, kind)

	payload := appendString(nil, "alice")
	payload = appendString(payload, "hunter2")
	require.NoError(t, WriteFrame(conn, MsgCreateAccount, payload))
	kind, _, err = ReadFrame(conn)
	require.NoError(t, err)
	assert.Equal(t, MsgAccountCreationOk, kind)

	token := uuid.New()
	chat := appendToken(nil, token)
	chat = appendString(chat, "hello")
	require.NoError(t, WriteFrame(conn, MsgChatMessage, chat))

	conn.Close()
	require.Eventually(t, func() bool {
		return dispatcher.disconnects.Load() == 1
	}, 2*time.Second, 10*time.Millisecond, "lobby must hear about the disconnect")
	assert.Equal(t, int32(1), dispatcher.chats.Load())
}

func TestAcceptor_FrameBeforeHandshakeCloses(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	acc := startAcceptor(t, dispatcher)
	conn := dial(t, acc.Addr())

	payload := appendString(nil, "alice")
	payload = appendString(payload, "hunter2")
	require.NoError(t, WriteFrame(conn, MsgLogin, payload))

	// The server closes without replying.
	_, _, err := ReadFrame(conn)
	assert.Error(t, err)
	require.Eventually(t, func() bool {
		return dispatcher.disconnects.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAcceptor_HandshakeDeniedCloses(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	acc := startAcceptor(t, dispatcher)
	conn := dial(t, acc.Addr())

	require.NoError(t, WriteFrame(conn, MsgHandshake, handshakePayload(99, 31)))
	kind, payload, err := ReadFrame(conn)
	require.NoError(t, err)
	assert.Equal(t, MsgHandshakeDenied, kind)
	assert.Equal(t, uint8(protocol.HandshakeDeniedBadVersion), newPayloadReader(payload).U8())

	_, _, err = ReadFrame(conn)
	assert.Error(t, err, "connection is closed after a denied handshake")
}

func TestAcceptor_MultipleClients(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	acc := startAcceptor(t, dispatcher)

	const numClients = 3
	for i := 0; i < numClients; i++ {
		conn := dial(t, acc.Addr())
		require.NoError(t, WriteFrame(conn, MsgHandshake, handshakePayload(1, 31)))
		kind, _, err := ReadFrame(conn)
		require.NoError(t, err)
		assert.Equal(t, MsgHandshakeAccepted, kind)
		conn.Close()
	}

	require.Eventually(t, func() bool {
		return dispatcher.disconnects.Load() == numClients
	}, 2*time.Second, 10*time.Millisecond)
}
