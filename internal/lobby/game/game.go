// Package game implements named hosted game lobbies: capacity and
// visibility rules, host-authority semantics, and per-game map
// distribution state.
package game

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/lobby/internal/lobby/maptransfer"
	"github.com/cory-johannsen/lobby/internal/lobby/protocol"
	"github.com/cory-johannsen/lobby/internal/lobby/session"
)

// HostedGame is one game lobby plus its map-distribution state. The lobby
// doubles as a chat group for its members. The game exclusively owns its
// upload spool storage, which is released when the game closes for any
// reason.
type HostedGame struct {
	// Name is the display name with original casing preserved.
	Name string
	// Key is the lowercase registry key.
	Key string
	// HostUserID identifies the host; the host is always a member while
	// the game exists.
	HostUserID int64
	// HostUsername is the host's display name.
	HostUsername string
	// MapName is the declared map display name.
	MapName string
	// MapChecksum is the checksum declared at creation, verified after the
	// host's upload completes.
	MapChecksum uint64
	// TotalSlots caps membership.
	TotalSlots int
	// Speed is the declared game speed setting.
	Speed protocol.GameSpeed
	// Visibility controls presence in the public listing.
	Visibility protocol.Visibility

	members     map[*session.Session]struct{}
	awaitingMap []*session.Session
	upload      *maptransfer.Upload
	mapReady    bool
}

func (g *HostedGame) add(sess *session.Session)    { g.members[sess] = struct{}{} }
func (g *HostedGame) remove(sess *session.Session) { delete(g.members, sess) }

// Empty reports whether the game has no members.
func (g *HostedGame) Empty() bool { return len(g.members) == 0 }

// UsedSlots returns the current member count.
func (g *HostedGame) UsedSlots() int { return len(g.members) }

// Full reports whether the game has no free slots.
func (g *HostedGame) Full() bool { return len(g.members) >= g.TotalSlots }

// Members returns a snapshot of the current member set.
func (g *HostedGame) Members() []*session.Session {
	out := make([]*session.Session, 0, len(g.members))
	for sess := range g.members {
		out = append(out, sess)
	}
	return out
}

// Broadcast delivers a notification to every member via fn. A failed
// delivery to one member is logged and never aborts delivery to the rest.
func (g *HostedGame) Broadcast(logger *zap.Logger, fn func(protocol.Notifier) error) {
	for sess := range g.members {
		if sess.Notifier == nil {
			continue
		}
		if err := fn(sess.Notifier); err != nil {
			logger.Warn("game delivery failed",
				zap.String("game", g.Name),
				zap.String("recipient", sess.Username),
				zap.Error(err),
			)
		}
	}
}

// WriteMapChunk feeds one upload chunk into the game's transfer state,
// allocating spool storage on the first chunk.
//
// Postcondition: Returns a non-nil error only for spool allocation or I/O
// failures; sequencing violations are recorded silently and surface at
// FinishMap.
func (g *HostedGame) WriteMapChunk(spoolDir string, sequenceNumber uint32, data []byte) error {
	if g.upload == nil {
		u, err := maptransfer.NewUpload(spoolDir)
		if err != nil {
			return err
		}
		g.upload = u
	}
	return g.upload.WriteChunk(sequenceNumber, data)
}

// FinishMap finalizes the upload against the declared checksum.
//
// Postcondition: Returns true and marks the map ready iff the transfer
// validated; a game with no upload in progress never validates.
func (g *HostedGame) FinishMap(finalSequenceNumber uint32) bool {
	if g.upload == nil {
		return false
	}
	g.mapReady = g.upload.Finish(finalSequenceNumber, g.MapChecksum)
	return g.mapReady
}

// MapReady reports whether the map upload has fully validated.
func (g *HostedGame) MapReady() bool { return g.mapReady }

// MapPath returns the spool file path of the received map bytes, or ""
// when no upload has started.
func (g *HostedGame) MapPath() string {
	if g.upload == nil {
		return ""
	}
	return g.upload.Path()
}

// AwaitMap queues a session to receive the map once validation completes.
func (g *HostedGame) AwaitMap(sess *session.Session) {
	g.awaitingMap = append(g.awaitingMap, sess)
}

// DrainAwaiting streams the validated map to every queued session and
// clears the queue. Per-recipient failures are logged and isolated.
//
// Precondition: MapReady must be true.
func (g *HostedGame) DrainAwaiting(logger *zap.Logger, chunkSize int) {
	for _, sess := range g.awaitingMap {
		if sess.Notifier == nil {
			continue
		}
		if err := maptransfer.Send(sess.Notifier, g.upload.Path(), chunkSize); err != nil {
			logger.Warn("queued map delivery failed",
				zap.String("game", g.Name),
				zap.String("recipient", sess.Username),
				zap.Error(err),
			)
		}
	}
	g.awaitingMap = nil
}

// releaseStorage discards the upload spool file, if any.
func (g *HostedGame) releaseStorage() {
	if g.upload != nil {
		g.upload.Discard()
		g.upload = nil
	}
	g.mapReady = false
}
