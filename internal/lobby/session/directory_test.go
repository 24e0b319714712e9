package session_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/lobby/internal/lobby/session"
	"github.com/cory-johannsen/lobby/internal/testutil"
)

func newDirectory(t *testing.T) *session.Directory {
	t.Helper()
	return session.NewDirectory(time.Hour, zaptest.NewLogger(t))
}

func TestDirectory_CreateAndResolve(t *testing.T) {
	d := newDirectory(t)
	n := &testutil.RecordingNotifier{}

	sess := d.Create(1, "alice", n)
	require.NotNil(t, sess)
	assert.Equal(t, "alice", sess.Username)

	got := d.Resolve(sess.Token, n)
	require.NotNil(t, got)
	assert.Same(t, sess, got)
	assert.Equal(t, 1, d.Count())
}

func TestDirectory_ReloginEvictsPriorSession(t *testing.T) {
	d := newDirectory(t)
	first := &testutil.RecordingNotifier{}
	second := &testutil.RecordingNotifier{}

	old := d.Create(1, "alice", first)
	fresh := d.Create(1, "alice", second)

	assert.Equal(t, 1, d.Count())
	assert.NotEqual(t, old.Token, fresh.Token)

	// The old token must no longer resolve.
	assert.Nil(t, d.Resolve(old.Token, first))
	assert.NotNil(t, d.Resolve(fresh.Token, second))

	// The displaced connection was told it was terminated.
	assert.True(t, first.Has("disconnected"))
}

func TestDirectory_ResolveUnknownToken(t *testing.T) {
	d := newDirectory(t)
	n := &testutil.RecordingNotifier{}
	d.Create(1, "alice", n)

	other := session.NewDirectory(time.Hour, zaptest.NewLogger(t)).Create(2, "bob", n)
	assert.Nil(t, d.Resolve(other.Token, n))
}

func TestDirectory_StalenessEviction(t *testing.T) {
	d := newDirectory(t)
	n := &testutil.RecordingNotifier{}

	now := time.Now()
	d.SetNowFunc(func() time.Time { return now })
	sess := d.Create(1, "alice", n)

	// Just inside the window: still resolvable, activity refreshed.
	now = now.Add(59 * time.Minute)
	require.NotNil(t, d.Resolve(sess.Token, n))

	// Another 61 minutes of silence pushes it past the timeout.
	now = now.Add(61 * time.Minute)
	assert.Nil(t, d.Resolve(sess.Token, n))
	assert.Equal(t, 0, d.Count())
}

func TestDirectory_ResolveRefreshesNotifier(t *testing.T) {
	d := newDirectory(t)
	first := &testutil.RecordingNotifier{}
	second := &testutil.RecordingNotifier{}

	sess := d.Create(1, "alice", first)
	got := d.Resolve(sess.Token, second)
	require.NotNil(t, got)
	assert.Same(t, second, got.Notifier)
}

func TestDirectory_EvictRunsDetachHooks(t *testing.T) {
	d := newDirectory(t)
	n := &testutil.RecordingNotifier{}

	var detachedChannel, detachedGame *session.Session
	d.SetDetachHooks(
		func(s *session.Session) { detachedChannel = s },
		func(s *session.Session) { detachedGame = s },
	)

	sess := d.Create(1, "alice", n)
	d.Evict(sess)

	assert.Same(t, sess, detachedChannel)
	assert.Same(t, sess, detachedGame)
	assert.Equal(t, 0, d.Count())
}

func TestDirectory_EvictNotifyFailureIsSwallowed(t *testing.T) {
	d := newDirectory(t)
	n := &testutil.RecordingNotifier{FailAll: true}

	sess := d.Create(1, "alice", n)
	// Must not panic or propagate the delivery error.
	d.Evict(sess)
	assert.Equal(t, 0, d.Count())
}

func TestDirectory_FindByNotifier(t *testing.T) {
	d := newDirectory(t)
	a := &testutil.RecordingNotifier{}
	b := &testutil.RecordingNotifier{}

	sessA := d.Create(1, "alice", a)
	d.Create(2, "bob", b)

	assert.Same(t, sessA, d.FindByNotifier(a))
	assert.Nil(t, d.FindByNotifier(&testutil.RecordingNotifier{}))
}

func TestDirectory_EvictIdle(t *testing.T) {
	d := newDirectory(t)
	now := time.Now()
	d.SetNowFunc(func() time.Time { return now })

	d.Create(1, "alice", &testutil.RecordingNotifier{})
	now = now.Add(2 * time.Hour)
	fresh := d.Create(2, "bob", &testutil.RecordingNotifier{})

	evicted := d.EvictIdle()
	assert.Equal(t, 1, evicted)
	assert.Equal(t, 1, d.Count())
	assert.NotNil(t, d.Resolve(fresh.Token, nil))
}

// Property: no matter how logins interleave, each user has at most one live
// session, and only the most recently issued token resolves.
func TestPropertySingleSessionPerUser(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		d := session.NewDirectory(time.Hour, zap.NewNop())

		latest := make(map[int64]*session.Session)
		numLogins := rapid.IntRange(1, 40).Draw(t, "num_logins")
		for i := 0; i < numLogins; i++ {
			user := int64(rapid.IntRange(1, 5).Draw(t, "user"))
			latest[user] = d.Create(user, "user", &testutil.RecordingNotifier{})
		}

		if d.Count() != len(latest) {
			t.Fatalf("expected %d sessions, got %d", len(latest), d.Count())
		}
		for _, sess := range latest {
			if d.Resolve(sess.Token, nil) == nil {
				t.Fatalf("latest token for user %d did not resolve", sess.UserID)
			}
		}
	})
}
