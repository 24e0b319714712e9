package lobby

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// VersionKey identifies one accepted (game, version) pair.
type VersionKey struct {
	GameID  uint32 `yaml:"game_id"`
	Version uint32 `yaml:"version"`
}

// AcceptedVersions is the static accept set consulted during handshake.
// It is immutable after construction and safe for concurrent reads.
type AcceptedVersions struct {
	set map[VersionKey]struct{}
}

// NewAcceptedVersions builds an accept set from explicit keys.
func NewAcceptedVersions(keys ...VersionKey) *AcceptedVersions {
	set := make(map[VersionKey]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return &AcceptedVersions{set: set}
}

// LoadAcceptedVersions reads the accept set from a YAML file of the form:
//
//	accepted:
//	  - game_id: 1
//	    version: 31
//
// Precondition: path names a readable YAML file.
// Postcondition: Returns an error if the file lists no versions; an empty
// accept set would silently refuse every client.
func LoadAcceptedVersions(path string) (*AcceptedVersions, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading accepted versions: %w", err)
	}

	var doc struct {
		Accepted []VersionKey `yaml:"accepted"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing accepted versions %s: %w", path, err)
	}
	if len(doc.Accepted) == 0 {
		return nil, errors.New("accepted versions file lists no versions")
	}
	return NewAcceptedVersions(doc.Accepted...), nil
}

// Accepted reports whether the (game, version) pair may connect.
func (a *AcceptedVersions) Accepted(gameID, version uint32) bool {
	_, ok := a.set[VersionKey{GameID: gameID, Version: version}]
	return ok
}

// Count returns the number of accepted pairs.
func (a *AcceptedVersions) Count() int { return len(a.set) }
