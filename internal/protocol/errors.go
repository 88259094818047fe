package protocol

import "errors"

// Error taxonomy shared by the wire and SysEx codecs.
var (
	ErrFraming         = errors.New("protocol: framing error")
	ErrChecksum        = errors.New("protocol: checksum mismatch")
	ErrLengthMismatch  = errors.New("protocol: length mismatch")
	ErrUnknownCommand  = errors.New("protocol: unknown command")
	ErrProtocolTimeout = errors.New("protocol: timeout")

	// ErrOverCapacity is returned by Buffer.Append. Receivers report it
	// wrapped together with ErrLengthMismatch.
	ErrOverCapacity = errors.New("protocol: buffer over capacity")
)

// IsRecoverable reports whether err is one of the codec errors a receiver
// handles by discarding bytes and resynchronizing.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrFraming) ||
		errors.Is(err, ErrChecksum) ||
		errors.Is(err, ErrLengthMismatch)
}
