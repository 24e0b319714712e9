package game_test

import (
	"testing"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/lobby/internal/lobby/game"
	"github.com/cory-johannsen/lobby/internal/lobby/protocol"
	"github.com/cory-johannsen/lobby/internal/lobby/session"
	"github.com/cory-johannsen/lobby/internal/testutil"
)

func newSession(userID int64, username string, n *testutil.RecordingNotifier) *session.Session {
	return &session.Session{
		UserID:     userID,
		Username:   username,
		CreatedAt:  time.Now(),
		LastActive: time.Now(),
		Notifier:   n,
	}
}

func createGame(t *testing.T, r *game.Registry, host *session.Session, name string, slots int) *game.HostedGame {
	t.Helper()
	g, err := r.Create(host, name, "echo isles", slots, protocol.SpeedNormal, protocol.VisibilityPublic, 42)
	require.NoError(t, err)
	return g
}

func TestRegistry_CreateMakesHostSoleMember(t *testing.T) {
	r := game.NewRegistry(zaptest.NewLogger(t))
	host := newSession(1, "alice", &testutil.RecordingNotifier{})

	g := createGame(t, r, host, "My Game", 4)
	assert.Equal(t, "My Game", g.Name)
	assert.Equal(t, "my game", g.Key)
	assert.Equal(t, 1, g.UsedSlots())
	assert.Equal(t, "my game", host.CurrentGame)
	assert.Equal(t, int64(1), g.HostUserID)
}

func TestRegistry_CreateNameTakenCaseInsensitive(t *testing.T) {
	r := game.NewRegistry(zaptest.NewLogger(t))
	a := newSession(1, "alice", &testutil.RecordingNotifier{})
	b := newSession(2, "bob", &testutil.RecordingNotifier{})

	createGame(t, r, a, "Duel Arena", 2)
	_, err := r.Create(b, "DUEL ARENA", "other map", 2, protocol.SpeedNormal, protocol.VisibilityPublic, 7)
	assert.ErrorIs(t, err, game.ErrNameTaken)
	assert.Equal(t, "", b.CurrentGame)
}

func TestRegistry_CreateWhileInGameFails(t *testing.T) {
	r := game.NewRegistry(zaptest.NewLogger(t))
	host := newSession(1, "alice", &testutil.RecordingNotifier{})

	createGame(t, r, host, "First", 4)
	_, err := r.Create(host, "Second", "map", 4, protocol.SpeedNormal, protocol.VisibilityPublic, 1)
	assert.ErrorIs(t, err, game.ErrAlreadyInGame)
}

func TestRegistry_JoinOutcomes(t *testing.T) {
	r := game.NewRegistry(zaptest.NewLogger(t))
	host := newSession(1, "alice", &testutil.RecordingNotifier{})
	joiner := newSession(2, "bob", &testutil.RecordingNotifier{})
	third := newSession(3, "carol", &testutil.RecordingNotifier{})

	createGame(t, r, host, "Arena", 2)

	_, err := r.Join(joiner, "nonexistent")
	assert.ErrorIs(t, err, game.ErrNoSuchGame)

	g, err := r.Join(joiner, "arena")
	require.NoError(t, err)
	assert.Equal(t, 2, g.UsedSlots())

	// Full: third is refused and membership must not change.
	_, err = r.Join(third, "Arena")
	assert.ErrorIs(t, err, game.ErrGameFull)
	assert.Equal(t, 2, g.UsedSlots())
	assert.Equal(t, "", third.CurrentGame)

	// A session in one game cannot join another.
	_, err = r.Join(joiner, "Arena")
	assert.ErrorIs(t, err, game.ErrAlreadyInGame)
}

func TestRegistry_LeaveEmptyGameDeleted(t *testing.T) {
	r := game.NewRegistry(zaptest.NewLogger(t))
	host := newSession(1, "alice", &testutil.RecordingNotifier{})

	createGame(t, r, host, "Solo", 4)
	g, evicted := r.Leave(host)
	require.NotNil(t, g)
	assert.Empty(t, evicted)
	assert.Nil(t, r.Get("Solo"))
	assert.Equal(t, "", host.CurrentGame)
	assert.Equal(t, 0, r.Count())
}

func TestRegistry_HostDepartureClosesGame(t *testing.T) {
	r := game.NewRegistry(zaptest.NewLogger(t))
	host := newSession(1, "alice", &testutil.RecordingNotifier{})
	b := newSession(2, "bob", &testutil.RecordingNotifier{})
	c := newSession(3, "carol", &testutil.RecordingNotifier{})

	createGame(t, r, host, "Arena", 4)
	_, err := r.Join(b, "Arena")
	require.NoError(t, err)
	_, err = r.Join(c, "Arena")
	require.NoError(t, err)

	_, evicted := r.Leave(host)
	assert.Len(t, evicted, 2)
	for _, m := range evicted {
		assert.Equal(t, "", m.CurrentGame)
	}
	assert.Nil(t, r.Get("Arena"))
}

func TestRegistry_NonHostLeaveBroadcastsNotice(t *testing.T) {
	r := game.NewRegistry(zaptest.NewLogger(t))
	hn := &testutil.RecordingNotifier{}
	host := newSession(1, "alice", hn)
	b := newSession(2, "bob", &testutil.RecordingNotifier{})

	createGame(t, r, host, "Arena", 4)
	_, err := r.Join(b, "Arena")
	require.NoError(t, err)

	g, evicted := r.Leave(b)
	require.NotNil(t, g)
	assert.Empty(t, evicted)
	assert.NotNil(t, r.Get("Arena"), "game survives a non-host departure")
	assert.True(t, hn.Has("notice(bob, 2)"))
}

func TestRegistry_ListPublicOnly(t *testing.T) {
	r := game.NewRegistry(zaptest.NewLogger(t))
	a := newSession(1, "alice", &testutil.RecordingNotifier{})
	b := newSession(2, "bob", &testutil.RecordingNotifier{})

	createGame(t, r, a, "Open Game", 4)
	_, err := r.Create(b, "Secret Game", "map", 4, protocol.SpeedNormal, protocol.VisibilityPrivate, 9)
	require.NoError(t, err)

	items := r.List()
	require.Len(t, items, 1)
	assert.Equal(t, "Open Game", items[0].Name)
	assert.Equal(t, 1, items[0].UsedSlots)
	assert.Equal(t, 4, items[0].TotalSlots)
}

func TestHostedGame_MapUploadLifecycle(t *testing.T) {
	r := game.NewRegistry(zaptest.NewLogger(t))
	host := newSession(1, "alice", &testutil.RecordingNotifier{})

	payload := []byte("war3map bytes")
	g, err := r.Create(host, "Arena", "map", 4, protocol.SpeedNormal, protocol.VisibilityPublic, xxhash.Sum64(payload))
	require.NoError(t, err)

	spool := t.TempDir()
	require.NoError(t, g.WriteMapChunk(spool, 0, payload))
	assert.False(t, g.MapReady())

	assert.True(t, g.FinishMap(1))
	assert.True(t, g.MapReady())
}

func TestHostedGame_AwaitingQueueDrainedOnValidation(t *testing.T) {
	r := game.NewRegistry(zaptest.NewLogger(t))
	host := newSession(1, "alice", &testutil.RecordingNotifier{})
	wn := &testutil.RecordingNotifier{}
	waiter := newSession(2, "bob", wn)

	payload := []byte("map contents here")
	g, err := r.Create(host, "Arena", "map", 4, protocol.SpeedNormal, protocol.VisibilityPublic, xxhash.Sum64(payload))
	require.NoError(t, err)
	_, err = r.Join(waiter, "Arena")
	require.NoError(t, err)

	g.AwaitMap(waiter)

	spool := t.TempDir()
	require.NoError(t, g.WriteMapChunk(spool, 0, payload))
	require.True(t, g.FinishMap(1))

	g.DrainAwaiting(zaptest.NewLogger(t), 1300)
	assert.Equal(t, payload, wn.MapBytes())
	assert.True(t, wn.Has("map-end(1)"))
}

func TestRegistry_CloseEvictsAndReleasesSpool(t *testing.T) {
	r := game.NewRegistry(zaptest.NewLogger(t))
	host := newSession(1, "alice", &testutil.RecordingNotifier{})
	b := newSession(2, "bob", &testutil.RecordingNotifier{})

	g := createGame(t, r, host, "Arena", 4)
	_, err := r.Join(b, "Arena")
	require.NoError(t, err)

	require.NoError(t, g.WriteMapChunk(t.TempDir(), 0, []byte("junk")))

	evicted := r.Close(g)
	assert.Len(t, evicted, 2)
	assert.Nil(t, r.Get("Arena"))
	assert.Equal(t, 0, r.Count())
}
