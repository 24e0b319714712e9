package maptransfer

import (
	"fmt"
	"io"
	"os"

	"github.com/cory-johannsen/lobby/internal/lobby/protocol"
)

// DefaultChunkSize is the payload size of each download chunk when the
// configuration does not override it.
const DefaultChunkSize = 1300

// Send streams the validated map file to one client as bounded chunks with
// monotonically increasing sequence numbers starting at zero, terminated by
// an end marker carrying the total chunk count.
//
// Precondition: path must name a readable file; chunkSize must be positive.
// Postcondition: Returns a non-nil error if reading the file or writing to
// the client fails; the caller treats this as a per-recipient delivery
// failure.
func Send(notifier protocol.Notifier, path string, chunkSize int) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening map file: %w", err)
	}
	defer f.Close()

	if err := notifier.BeginMapTransfer(); err != nil {
		return fmt.Errorf("beginning map transfer: %w", err)
	}

	buf := make([]byte, chunkSize)
	var seq uint32
	for {
		n, err := f.Read(buf)
		if n > 0 {
			if sendErr := notifier.MapChunk(seq, buf[:n]); sendErr != nil {
				return fmt.Errorf("sending map chunk %d: %w", seq, sendErr)
			}
			seq++
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading map file: %w", err)
		}
	}

	if err := notifier.EndMapTransfer(seq); err != nil {
		return fmt.Errorf("ending map transfer: %w", err)
	}
	return nil
}
