package game

import (
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/cory-johannsen/lobby/internal/lobby/protocol"
	"github.com/cory-johannsen/lobby/internal/lobby/session"
)

// ErrNameTaken is returned when creating a game whose name is in use.
var ErrNameTaken = errors.New("game name already used")

// ErrNoSuchGame is returned when joining a game that does not exist.
var ErrNoSuchGame = errors.New("no such game")

// ErrGameFull is returned when joining a game with no free slots.
var ErrGameFull = errors.New("game full")

// ErrAlreadyInGame is returned when a session in a game tries to create or
// join another.
var ErrAlreadyInGame = errors.New("session already in a game")

// Registry tracks all hosted games, keyed case-insensitively. A game with
// zero members is removed immediately; a game whose host departs while
// other members remain is closed outright, never host-migrated.
//
// Registry is not safe for concurrent use. The lobby dispatcher serializes
// all access.
type Registry struct {
	logger *zap.Logger
	games  map[string]*HostedGame
}

// NewRegistry creates an empty game registry.
//
// Precondition: logger must be non-nil.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		logger: logger,
		games:  make(map[string]*HostedGame),
	}
}

// Key returns the case-insensitive registry key for a game name.
func Key(name string) string { return strings.ToLower(name) }

// Create registers a new game with the creator as host and sole member.
//
// Precondition: The dispatcher must have detached sess from its chat
// channel already.
// Postcondition: Returns ErrAlreadyInGame or ErrNameTaken without any
// state change, or the created game with sess attached as host.
func (r *Registry) Create(sess *session.Session, name, mapName string, totalSlots int, speed protocol.GameSpeed, visibility protocol.Visibility, mapChecksum uint64) (*HostedGame, error) {
	if sess.InGame() {
		return nil, ErrAlreadyInGame
	}

	key := Key(name)
	if _, taken := r.games[key]; taken {
		return nil, ErrNameTaken
	}

	g := &HostedGame{
		Name:         name,
		Key:          key,
		HostUserID:   sess.UserID,
		HostUsername: sess.Username,
		MapName:      mapName,
		MapChecksum:  mapChecksum,
		TotalSlots:   totalSlots,
		Speed:        speed,
		Visibility:   visibility,
		members:      make(map[*session.Session]struct{}),
	}
	r.games[key] = g

	g.add(sess)
	sess.CurrentGame = key

	r.logger.Info("game created",
		zap.String("game", name),
		zap.String("host", sess.Username),
		zap.String("map", mapName),
		zap.Int("slots", totalSlots),
	)
	return g, nil
}

// Join adds the session to the named game if it exists and has a free
// slot. First-come-first-served on capacity.
//
// Postcondition: On error, membership is unchanged.
func (r *Registry) Join(sess *session.Session, name string) (*HostedGame, error) {
	if sess.InGame() {
		return nil, ErrAlreadyInGame
	}

	g, ok := r.games[Key(name)]
	if !ok {
		return nil, ErrNoSuchGame
	}
	if g.Full() {
		return nil, ErrGameFull
	}

	g.add(sess)
	sess.CurrentGame = g.Key
	return g, nil
}

// Leave removes the session from its current game.
//
// Three outcomes: the game became empty and was deleted; the departing
// member was the host, so the game was closed and every remaining member
// force-evicted (returned in evicted, their CurrentGame cleared); or a
// non-host member left and a leave notice was broadcast to the remainder.
// Closure in any form releases the game's map spool storage.
//
// Postcondition: sess.CurrentGame is "". A session in no game returns
// (nil, nil).
func (r *Registry) Leave(sess *session.Session) (g *HostedGame, evicted []*session.Session) {
	if sess.CurrentGame == "" {
		return nil, nil
	}

	g, ok := r.games[sess.CurrentGame]
	sess.CurrentGame = ""
	if !ok {
		return nil, nil
	}
	g.remove(sess)

	switch {
	case g.Empty():
		r.close(g)
	case sess.UserID == g.HostUserID:
		// Host left a non-empty game: no host migration, the whole game
		// comes down and the remainder goes back to chat.
		evicted = g.Members()
		for _, member := range evicted {
			member.CurrentGame = ""
		}
		r.close(g)
	default:
		g.Broadcast(r.logger, func(n protocol.Notifier) error {
			return n.ChannelServerNotice(sess.Username, protocol.NoticeLeaveGame)
		})
	}
	return g, evicted
}

// Close force-closes a game, evicting every member. Used for fatal map
// transfer failures.
//
// Postcondition: Returns the evicted members with CurrentGame cleared; the
// game and its spool storage are gone.
func (r *Registry) Close(g *HostedGame) []*session.Session {
	evicted := g.Members()
	for _, member := range evicted {
		member.CurrentGame = ""
	}
	r.close(g)
	return evicted
}

func (r *Registry) close(g *HostedGame) {
	delete(r.games, g.Key)
	g.releaseStorage()
	r.logger.Info("game closed", zap.String("game", g.Name))
}

// Get returns the game for the given name, or nil.
func (r *Registry) Get(name string) *HostedGame {
	return r.games[Key(name)]
}

// List returns a snapshot of all public games. Callers poll; there is no
// live subscription.
func (r *Registry) List() []protocol.GameListItem {
	items := make([]protocol.GameListItem, 0, len(r.games))
	for _, g := range r.games {
		if g.Visibility != protocol.VisibilityPublic {
			continue
		}
		items = append(items, protocol.GameListItem{
			Name:       g.Name,
			UsedSlots:  g.UsedSlots(),
			TotalSlots: g.TotalSlots,
		})
	}
	return items
}

// Count returns the number of live games.
func (r *Registry) Count() int { return len(r.games) }
