// Package lobby implements the dispatcher that routes inbound client events
// to the session directory, chat channels, hosted games, and map transfer
// machinery, translating outcomes into outbound notifications.
package lobby

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/lobby/internal/config"
	"github.com/cory-johannsen/lobby/internal/lobby/channel"
	"github.com/cory-johannsen/lobby/internal/lobby/game"
	"github.com/cory-johannsen/lobby/internal/lobby/maptransfer"
	"github.com/cory-johannsen/lobby/internal/lobby/protocol"
	"github.com/cory-johannsen/lobby/internal/lobby/session"
	"github.com/cory-johannsen/lobby/internal/storage/postgres"
)

// AccountStore is the credential capability the lobby consumes. The postgres
// account repository is the production implementation.
type AccountStore interface {
	Create(ctx context.Context, username, password string) (postgres.Account, error)
	Authenticate(ctx context.Context, username, password string) (postgres.Account, error)
}

// Lobby is the dispatcher facade over all mutable lobby state. The session,
// channel, and game registries are not individually thread-safe; every
// state-mutating operation runs under the single lobby mutex, which is the
// serialization discipline the registries require.
type Lobby struct {
	mu sync.Mutex

	cfg      config.LobbyConfig
	welcome  string
	logger   *zap.Logger
	accounts AccountStore
	versions *AcceptedVersions

	sessions *session.Directory
	channels *channel.Registry
	games    *game.Registry
}

// New wires the dispatcher and its registries. The session directory's
// detach hooks are pointed back at the channel and game registries so that
// every eviction path detaches membership through one choke point.
//
// Precondition: accounts, versions, and logger must be non-nil.
func New(cfg config.LobbyConfig, welcome string, accounts AccountStore, versions *AcceptedVersions, logger *zap.Logger) *Lobby {
	l := &Lobby{
		cfg:      cfg,
		welcome:  welcome,
		logger:   logger,
		accounts: accounts,
		versions: versions,
		sessions: session.NewDirectory(cfg.SessionTimeout, logger),
		channels: channel.NewRegistry(logger),
		games:    game.NewRegistry(logger),
	}
	l.sessions.SetDetachHooks(l.detachChannel, l.detachGame)
	return l
}

func (l *Lobby) detachChannel(sess *session.Session) {
	l.channels.Leave(sess)
}

// detachGame removes an evicted session from its game. If it was hosting,
// the game closes and the survivors go back to chat.
func (l *Lobby) detachGame(sess *session.Session) {
	_, evicted := l.games.Leave(sess)
	for _, member := range evicted {
		l.reattachToChat(member)
	}
}

// reattachToChat returns a session to its last active channel, falling back
// to the configured default channel.
func (l *Lobby) reattachToChat(sess *session.Session) {
	name := sess.LastChannel
	if name == "" {
		name = l.cfg.DefaultChannel
	}
	ch := l.channels.Join(sess, name)
	l.deliver("joined-channel", sess.Notifier.JoinedChannel(ch.Name))
}

// deliver logs a failed outbound notification. Delivery is fire-and-forget:
// a dead connection never affects lobby state here, it is reaped when the
// connection layer reports the disconnect.
func (l *Lobby) deliver(event string, err error) {
	if err != nil {
		l.logger.Warn("outbound delivery failed",
			zap.String("event", event),
			zap.Error(err))
	}
}

// resolveLocked resolves a token to a live session, notifying bad-session on
// failure. Callers must hold l.mu.
func (l *Lobby) resolveLocked(token protocol.Token, notifier protocol.Notifier) *session.Session {
	sess := l.sessions.Resolve(token, notifier)
	if sess == nil {
		l.deliver("bad-session", notifier.BadSession())
	}
	return sess
}

// Handshake checks the client's (game, version) pair against the accept set.
// It returns true when the handshake is accepted; the connection layer uses
// the result to gate all further inbound events.
func (l *Lobby) Handshake(notifier protocol.Notifier, gameID, version uint32) bool {
	if !l.versions.Accepted(gameID, version) {
		l.logger.Info("handshake denied",
			zap.Uint32("game_id", gameID),
			zap.Uint32("version", version))
		l.deliver("handshake-denied", notifier.HandshakeDenied(protocol.HandshakeDeniedBadVersion))
		return false
	}
	l.deliver("handshake-accepted", notifier.HandshakeAccepted())
	return true
}

// CreateAccount registers a new account. The store call runs outside the
// lobby mutex; account creation touches no lobby state.
func (l *Lobby) CreateAccount(ctx context.Context, notifier protocol.Notifier, username, password string) {
	if _, err := l.accounts.Create(ctx, username, password); err != nil {
		reason := protocol.AccountCreationFailedInternal
		if errors.Is(err, postgres.ErrAccountExists) {
			reason = protocol.AccountCreationFailedUsernameTaken
		} else {
			l.logger.Error("account creation failed",
				zap.String("username", username),
				zap.Error(err))
		}
		l.deliver("account-creation-failed", notifier.AccountCreationFailed(reason))
		return
	}
	l.logger.Info("account created", zap.String("username", username))
	l.deliver("account-creation-ok", notifier.AccountCreationOk())
}

// Login authenticates the user and mints a session. A prior session for the
// same user is evicted first, so at most one token per user is ever valid.
func (l *Lobby) Login(ctx context.Context, notifier protocol.Notifier, username, password string) {
	acct, err := l.accounts.Authenticate(ctx, username, password)
	if err != nil {
		var reason protocol.LoginFailureReason
		switch {
		case errors.Is(err, postgres.ErrAccountNotFound):
			reason = protocol.LoginFailedUnknownUser
		case errors.Is(err, postgres.ErrInvalidCredentials):
			reason = protocol.LoginFailedInvalidCredentials
		default:
			reason = protocol.LoginFailedInternal
			l.logger.Error("login failed",
				zap.String("username", username),
				zap.Error(err))
		}
		l.deliver("login-failed", notifier.LoginFailed(reason))
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	sess := l.sessions.Create(acct.ID, acct.Username, notifier)
	l.logger.Info("session created",
		zap.String("username", acct.Username),
		zap.Int64("user_id", acct.ID))
	l.deliver("login-ok", notifier.LoginOk(sess.Token, l.welcome))
}

// Disconnected reaps the session bound to a dropped connection, if any.
func (l *Lobby) Disconnected(notifier protocol.Notifier) {
	l.mu.Lock()
	defer l.mu.Unlock()

	sess := l.sessions.FindByNotifier(notifier)
	if sess == nil {
		return
	}
	l.sessions.Evict(sess)
}

// JoinChannel moves the session into the named chat channel. A session in a
// game leaves it first, with the usual host-departure consequences.
func (l *Lobby) JoinChannel(token protocol.Token, notifier protocol.Notifier, name string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	sess := l.resolveLocked(token, notifier)
	if sess == nil {
		return
	}

	if sess.InGame() {
		_, evicted := l.games.Leave(sess)
		for _, member := range evicted {
			l.reattachToChat(member)
		}
	}

	ch := l.channels.Join(sess, name)
	l.deliver("joined-channel", sess.Notifier.JoinedChannel(ch.Name))
}

// ChatMessage broadcasts a chat line to the session's current group: the
// game lobby when in a game, otherwise the chat channel.
func (l *Lobby) ChatMessage(token protocol.Token, notifier protocol.Notifier, text string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	sess := l.resolveLocked(token, notifier)
	if sess == nil {
		return
	}

	switch {
	case sess.InGame():
		if g := l.games.Get(sess.CurrentGame); g != nil {
			g.Broadcast(l.logger, func(n protocol.Notifier) error {
				return n.ChannelMessage(sess.Username, text)
			})
		}
	case sess.InChannel():
		l.channels.BroadcastMessage(l.channels.Get(sess.CurrentChannel), sess.Username, text)
	default:
		l.deliver("server-error", sess.Notifier.ServerError(protocol.ServerErrorBadRequest))
	}
}

// EmoteMessage broadcasts an emote to the session's current group.
func (l *Lobby) EmoteMessage(token protocol.Token, notifier protocol.Notifier, text string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	sess := l.resolveLocked(token, notifier)
	if sess == nil {
		return
	}

	switch {
	case sess.InGame():
		if g := l.games.Get(sess.CurrentGame); g != nil {
			g.Broadcast(l.logger, func(n protocol.Notifier) error {
				return n.ChannelEmote(sess.Username, text)
			})
		}
	case sess.InChannel():
		l.channels.BroadcastEmote(l.channels.Get(sess.CurrentChannel), sess.Username, text)
	default:
		l.deliver("server-error", sess.Notifier.ServerError(protocol.ServerErrorBadRequest))
	}
}

// CreateGame opens a new hosted game with the session as host and sole
// member. Failure leaves the session's channel membership untouched.
func (l *Lobby) CreateGame(token protocol.Token, notifier protocol.Notifier, name, mapName string, totalSlots int, speed protocol.GameSpeed, visibility protocol.Visibility, mapChecksum uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	sess := l.resolveLocked(token, notifier)
	if sess == nil {
		return
	}
	if sess.InGame() {
		l.deliver("server-error", sess.Notifier.ServerError(protocol.ServerErrorBadRequest))
		return
	}
	if l.games.Get(name) != nil {
		l.deliver("game-creation-failed", sess.Notifier.GameCreationFailed(protocol.GameCreationFailedNameTaken))
		return
	}

	l.channels.Leave(sess)
	g, err := l.games.Create(sess, name, mapName, totalSlots, speed, visibility, mapChecksum)
	if err != nil {
		l.logger.Error("game creation failed", zap.String("game", name), zap.Error(err))
		l.deliver("server-error", sess.Notifier.ServerError(protocol.ServerErrorBadRequest))
		l.reattachToChat(sess)
		return
	}

	l.logger.Info("game created",
		zap.String("game", g.Name),
		zap.String("host", sess.Username),
		zap.Int("slots", g.TotalSlots))
	l.deliver("game-creation-ok", sess.Notifier.GameCreationOk())
	l.deliver("joined-game", sess.Notifier.JoinedGame(g.Name, g.MapName, g.MapChecksum))
	g.Broadcast(l.logger, func(n protocol.Notifier) error {
		return n.ChannelServerNotice(sess.Username, protocol.NoticeJoinGame)
	})
}

// JoinGame adds the session to an existing game if a slot is free. Slots are
// granted first-come-first-served; failure leaves all state untouched.
func (l *Lobby) JoinGame(token protocol.Token, notifier protocol.Notifier, name string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	sess := l.resolveLocked(token, notifier)
	if sess == nil {
		return
	}
	if sess.InGame() {
		l.deliver("join-game-failed", sess.Notifier.JoinGameFailed(protocol.JoinGameFailedAlreadyInGame))
		return
	}
	g := l.games.Get(name)
	if g == nil {
		l.deliver("join-game-failed", sess.Notifier.JoinGameFailed(protocol.JoinGameFailedNoSuchGame))
		return
	}
	if g.Full() {
		l.deliver("join-game-failed", sess.Notifier.JoinGameFailed(protocol.JoinGameFailedGameFull))
		return
	}

	l.channels.Leave(sess)
	if _, err := l.games.Join(sess, name); err != nil {
		l.logger.Error("game join failed", zap.String("game", name), zap.Error(err))
		l.deliver("server-error", sess.Notifier.ServerError(protocol.ServerErrorBadRequest))
		l.reattachToChat(sess)
		return
	}

	l.deliver("joined-game", sess.Notifier.JoinedGame(g.Name, g.MapName, g.MapChecksum))
	g.Broadcast(l.logger, func(n protocol.Notifier) error {
		return n.ChannelServerNotice(sess.Username, protocol.NoticeJoinGame)
	})
}

// LeaveGame returns the session to chat. A departing host closes the game
// and sends every remaining member back to chat with it.
func (l *Lobby) LeaveGame(token protocol.Token, notifier protocol.Notifier) {
	l.mu.Lock()
	defer l.mu.Unlock()

	sess := l.resolveLocked(token, notifier)
	if sess == nil {
		return
	}
	if !sess.InGame() {
		l.deliver("server-error", sess.Notifier.ServerError(protocol.ServerErrorBadRequest))
		return
	}

	_, evicted := l.games.Leave(sess)
	l.reattachToChat(sess)
	for _, member := range evicted {
		l.reattachToChat(member)
	}
}

// UploadMapData appends one chunk of the host's map upload. Sequencing
// violations are recorded silently and surface when the upload finishes.
func (l *Lobby) UploadMapData(token protocol.Token, notifier protocol.Notifier, sequenceNumber uint32, data []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()

	sess := l.resolveLocked(token, notifier)
	if sess == nil {
		return
	}
	g := l.hostedGame(sess)
	if g == nil {
		return
	}

	if err := g.WriteMapChunk(l.cfg.MapSpoolDir, sequenceNumber, data); err != nil {
		l.logger.Error("map chunk write failed",
			zap.String("game", g.Name),
			zap.Uint32("sequence", sequenceNumber),
			zap.Error(err))
		l.failUpload(g)
	}
}

// MapDone finalizes the host's map upload. On validation the awaiting
// download queue is drained; on failure the game is force-closed.
func (l *Lobby) MapDone(token protocol.Token, notifier protocol.Notifier, finalSequenceNumber uint32) {
	l.mu.Lock()
	defer l.mu.Unlock()

	sess := l.resolveLocked(token, notifier)
	if sess == nil {
		return
	}
	g := l.hostedGame(sess)
	if g == nil {
		return
	}

	if !g.FinishMap(finalSequenceNumber) {
		l.logger.Warn("map upload failed validation",
			zap.String("game", g.Name),
			zap.String("host", sess.Username))
		l.failUpload(g)
		return
	}

	l.logger.Info("map validated", zap.String("game", g.Name))
	g.DrainAwaiting(l.logger, l.cfg.MapChunkSize)
}

// hostedGame returns the session's current game when the session is its
// host, notifying a bad-request error otherwise. Upload frames from anyone
// but the host make no sense in this protocol.
func (l *Lobby) hostedGame(sess *session.Session) *game.HostedGame {
	g := l.games.Get(sess.CurrentGame)
	if g == nil || sess.UserID != g.HostUserID {
		l.deliver("server-error", sess.Notifier.ServerError(protocol.ServerErrorBadRequest))
		return nil
	}
	return g
}

// failUpload force-closes a game whose map transfer cannot complete. The
// hosting uploader gets an explicit failure notice; everyone returns to chat.
func (l *Lobby) failUpload(g *game.HostedGame) {
	evicted := l.games.Close(g)
	for _, member := range evicted {
		if member.UserID == g.HostUserID {
			l.deliver("server-error", member.Notifier.ServerError(protocol.ServerErrorMapUploadFailed))
		}
		l.reattachToChat(member)
	}
}

// RequestMap streams the game's map to the session, or queues the session
// until the host's upload validates.
func (l *Lobby) RequestMap(token protocol.Token, notifier protocol.Notifier) {
	l.mu.Lock()
	defer l.mu.Unlock()

	sess := l.resolveLocked(token, notifier)
	if sess == nil {
		return
	}
	if !sess.InGame() {
		l.deliver("server-error", sess.Notifier.ServerError(protocol.ServerErrorBadRequest))
		return
	}
	g := l.games.Get(sess.CurrentGame)
	if g == nil {
		l.deliver("server-error", sess.Notifier.ServerError(protocol.ServerErrorBadRequest))
		return
	}

	if !g.MapReady() {
		g.AwaitMap(sess)
		return
	}
	if err := maptransfer.Send(sess.Notifier, g.MapPath(), l.cfg.MapChunkSize); err != nil {
		l.logger.Warn("map send failed",
			zap.String("game", g.Name),
			zap.String("recipient", sess.Username),
			zap.Error(err))
	}
}

// QueryGamesList sends a snapshot of the public game listing. The snapshot
// is copied under the mutex and delivered after release so a slow recipient
// cannot stall the lobby.
func (l *Lobby) QueryGamesList(token protocol.Token, notifier protocol.Notifier) {
	l.mu.Lock()
	sess := l.resolveLocked(token, notifier)
	var items []protocol.GameListItem
	if sess != nil {
		items = l.games.List()
		notifier = sess.Notifier
	}
	l.mu.Unlock()

	if sess == nil {
		return
	}
	l.deliver("begin-games-list", notifier.BeginGamesList())
	for _, item := range items {
		l.deliver("games-list-item", notifier.GamesListItem(item))
	}
	l.deliver("end-games-list", notifier.EndGamesList())
}

// SessionCount reports the number of live sessions.
func (l *Lobby) SessionCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sessions.Count()
}

// IdleSweeper proactively evicts idle sessions on a fixed interval. Stale
// sessions are evicted lazily on resolve regardless; the sweeper just keeps
// abandoned sessions from pinning channels and games until then.
type IdleSweeper struct {
	lobby    *Lobby
	interval time.Duration
	done     chan struct{}
}

// NewIdleSweeper builds the sweeper from the lobby's configured interval.
// A non-positive interval disables sweeping; Start then blocks until Stop.
func (l *Lobby) NewIdleSweeper() *IdleSweeper {
	return &IdleSweeper{
		lobby:    l,
		interval: l.cfg.IdleSweepInterval,
		done:     make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop is called.
func (s *IdleSweeper) Start() error {
	if s.interval <= 0 {
		<-s.done
		return nil
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return nil
		case <-ticker.C:
			s.sweep()
		}
	}
}

// Stop terminates the sweep loop.
func (s *IdleSweeper) Stop() {
	close(s.done)
}

func (s *IdleSweeper) sweep() {
	s.lobby.mu.Lock()
	evicted := s.lobby.sessions.EvictIdle()
	s.lobby.mu.Unlock()

	if evicted > 0 {
		s.lobby.logger.Info("idle sessions evicted", zap.Int("count", evicted))
	}
}
