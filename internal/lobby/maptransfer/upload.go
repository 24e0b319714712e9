// Package maptransfer implements the chunked map upload state machine and
// the chunked download stream served to joining clients.
package maptransfer

import (
	"fmt"
	"os"

	"github.com/cespare/xxhash/v2"
)

// State is the upload lifecycle: Receiving until finalized, then exactly
// one of Validated or Failed.
type State uint8

const (
	// StateReceiving means chunks are still being accepted.
	StateReceiving State = iota
	// StateValidated means the byte stream checksummed clean against the
	// declared value with unbroken sequence numbering.
	StateValidated
	// StateFailed means the checksum mismatched or sequencing was violated.
	StateFailed
)

// Upload reconstructs a map byte stream from sequenced chunks spooled to a
// temporary file. The file is exclusively owned by the hosting game and
// must be discarded when the game closes for any reason.
type Upload struct {
	file    *os.File
	path    string
	digest  *xxhash.Digest
	nextSeq uint32
	written int64

	violated bool
	state    State
}

// NewUpload allocates spool storage for a fresh transfer.
//
// Precondition: spoolDir must be an existing directory, or empty for the
// OS temp directory.
// Postcondition: Returns an Upload in StateReceiving, or a non-nil error.
func NewUpload(spoolDir string) (*Upload, error) {
	f, err := os.CreateTemp(spoolDir, "mapupload-*.dat")
	if err != nil {
		return nil, fmt.Errorf("allocating map spool file: %w", err)
	}
	return &Upload{
		file:   f,
		path:   f.Name(),
		digest: xxhash.New(),
		state:  StateReceiving,
	}, nil
}

// WriteChunk appends one sequenced chunk. Chunks must arrive in strictly
// increasing order starting at zero; an out-of-order or duplicate sequence
// number poisons the transfer silently and the failure surfaces at Finish.
//
// Postcondition: Returns a non-nil error only for spool I/O failures.
func (u *Upload) WriteChunk(sequenceNumber uint32, data []byte) error {
	if u.state != StateReceiving || u.violated {
		return nil
	}

	if sequenceNumber != u.nextSeq {
		u.violated = true
		return nil
	}
	u.nextSeq++

	if _, err := u.file.Write(data); err != nil {
		u.violated = true
		return fmt.Errorf("writing map chunk %d: %w", sequenceNumber, err)
	}
	_, _ = u.digest.Write(data)
	u.written += int64(len(data))
	return nil
}

// Finish finalizes the transfer. The upload validates only when the
// computed checksum equals the declared checksum, sequence numbering was
// never violated, and the uploader's final sequence number matches the
// number of chunks received.
//
// Postcondition: State() is StateValidated or StateFailed.
func (u *Upload) Finish(finalSequenceNumber uint32, declaredChecksum uint64) bool {
	if u.state != StateReceiving {
		return u.state == StateValidated
	}

	_ = u.file.Sync()
	ok := !u.violated &&
		finalSequenceNumber == u.nextSeq &&
		u.digest.Sum64() == declaredChecksum
	if ok {
		u.state = StateValidated
	} else {
		u.state = StateFailed
	}
	return ok
}

// State returns the current transfer state.
func (u *Upload) State() State { return u.state }

// Path returns the spool file path holding the received bytes.
func (u *Upload) Path() string { return u.path }

// Size returns the number of bytes received so far.
func (u *Upload) Size() int64 { return u.written }

// Discard closes and deletes the spool file. Safe to call more than once.
func (u *Upload) Discard() {
	if u.file != nil {
		_ = u.file.Close()
		u.file = nil
	}
	if u.path != "" {
		_ = os.Remove(u.path)
		u.path = ""
	}
}
