package session

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/lobby/internal/lobby/protocol"
)

// DetachFunc removes a session from a membership registry (chat channel or
// game lobby) before the session is destroyed.
type DetachFunc func(*Session)

// Directory owns session lifecycle, token issuance, and staleness eviction.
//
// Directory is not safe for concurrent use. The lobby dispatcher serializes
// all access behind a single lock, per the single-writer discipline the
// registries share.
type Directory struct {
	timeout time.Duration
	logger  *zap.Logger
	now     func() time.Time

	byToken map[protocol.Token]*Session
	byUser  map[int64]*Session

	// Eviction hooks, set by the dispatcher. Eviction is the single choke
	// point for all disconnect, timeout, and re-login paths: membership in
	// the channel and game registries must never outlive the session.
	detachChannel DetachFunc
	detachGame    DetachFunc
}

// NewDirectory creates an empty session directory.
//
// Precondition: timeout must be positive; logger must be non-nil.
func NewDirectory(timeout time.Duration, logger *zap.Logger) *Directory {
	return &Directory{
		timeout: timeout,
		logger:  logger,
		now:     time.Now,
		byToken: make(map[protocol.Token]*Session),
		byUser:  make(map[int64]*Session),
	}
}

// SetDetachHooks wires the channel and game detach callbacks invoked during
// eviction.
//
// Precondition: Must be called before any session is created or evicted.
func (d *Directory) SetDetachHooks(channel, game DetachFunc) {
	d.detachChannel = channel
	d.detachGame = game
}

// SetNowFunc overrides the clock, for tests.
func (d *Directory) SetNowFunc(now func() time.Time) {
	d.now = now
}

// Create mints a session for the given user. If the user already has a live
// session it is evicted first, so at most one session per user exists.
//
// Postcondition: The returned session is resolvable by its token.
func (d *Directory) Create(userID int64, username string, notifier protocol.Notifier) *Session {
	if existing, ok := d.byUser[userID]; ok {
		d.logger.Info("evicting prior session on re-login",
			zap.String("username", username),
		)
		d.Evict(existing)
	}

	now := d.now()
	sess := &Session{
		UserID:     userID,
		Username:   username,
		Token:      uuid.New(),
		CreatedAt:  now,
		LastActive: now,
		Notifier:   notifier,
	}
	d.byToken[sess.Token] = sess
	d.byUser[userID] = sess
	return sess
}

// Resolve looks up a session by token, applying the staleness check. A
// session idle longer than the directory timeout is evicted and reported as
// unknown. On success the session's activity time and connection handle are
// refreshed.
//
// Postcondition: Returns nil when the token is unknown or expired.
func (d *Directory) Resolve(token protocol.Token, notifier protocol.Notifier) *Session {
	sess, ok := d.byToken[token]
	if !ok {
		return nil
	}

	now := d.now()
	if now.Sub(sess.LastActive) > d.timeout {
		d.logger.Info("evicting stale session",
			zap.String("username", sess.Username),
			zap.Duration("idle", now.Sub(sess.LastActive)),
		)
		d.Evict(sess)
		return nil
	}

	sess.LastActive = now
	if notifier != nil {
		sess.Notifier = notifier
	}
	return sess
}

// Evict destroys a session: it is detached from any channel or game it
// occupies, removed from all directory indices, and its connection is
// notified best-effort. A failed termination notice is logged, never
// propagated.
func (d *Directory) Evict(sess *Session) {
	if d.detachChannel != nil {
		d.detachChannel(sess)
	}
	if d.detachGame != nil {
		d.detachGame(sess)
	}

	delete(d.byToken, sess.Token)
	delete(d.byUser, sess.UserID)

	if sess.Notifier != nil {
		if err := sess.Notifier.Disconnected(); err != nil {
			d.logger.Warn("failed to notify session of termination",
				zap.String("username", sess.Username),
				zap.Error(err),
			)
		}
	}
}

// FindByNotifier returns the session whose live connection handle is the
// given notifier, for transport-level disconnects that carry no token.
//
// Postcondition: Returns nil when no session uses the notifier.
func (d *Directory) FindByNotifier(notifier protocol.Notifier) *Session {
	for _, sess := range d.byToken {
		if sess.Notifier == notifier {
			return sess
		}
	}
	return nil
}

// EvictIdle evicts every session idle longer than the directory timeout and
// returns the number evicted. Staleness is also checked lazily on Resolve;
// this sweep exists for proactive cleanup.
func (d *Directory) EvictIdle() int {
	now := d.now()
	var stale []*Session
	for _, sess := range d.byToken {
		if now.Sub(sess.LastActive) > d.timeout {
			stale = append(stale, sess)
		}
	}
	for _, sess := range stale {
		d.logger.Info("idle sweep evicting session",
			zap.String("username", sess.Username),
		)
		d.Evict(sess)
	}
	return len(stale)
}

// Count returns the number of live sessions.
func (d *Directory) Count() int {
	return len(d.byToken)
}
