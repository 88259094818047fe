// Package protocol holds what the pushclone link codecs share: the error
// taxonomy and the bounded accumulation buffer.
//
// The codecs themselves live in sub-packages:
//   - wire: the binary sync-framed protocol spoken on the grid-board and GUI
//     links
//   - sysex: the 7-bit safe protocol spoken on the DAW link over USB-MIDI
//
// # Wire Frame Format
//
// Grid-board and GUI frames have this structure:
//   - Sync byte: 0xAA
//   - Command: 1 byte
//   - Payload length: 1 byte (0-255)
//   - Payload: Variable length
//   - Checksum: 1 byte (XOR of command, length and payload)
//
// # SysEx Frame Format
//
// DAW frames are SysEx messages in the extended form:
//
//	F0 7D 00 7F CMD SEQ LEN_MSB LEN_LSB PAYLOAD... CHK F7
//
// where CHK is the XOR of CMD, SEQ and the payload masked to 7 bits. Older
// peers also send the vendor form (F0 7D 00 CMD DATA F7) and the short form
// (F0 CMD DATA F7).
//
// # Error Handling
//
// Every codec failure wraps one of the sentinel errors below so callers can
// classify it with errors.Is:
//   - ErrFraming: bad start or terminator byte
//   - ErrChecksum: checksum disagreement
//   - ErrLengthMismatch: declared length disagrees with the received byte
//     count or exceeds buffer capacity
//   - ErrUnknownCommand: valid frame, unrecognized opcode
//   - ErrProtocolTimeout: handshake or keepalive expired
//
// Framing, checksum and length errors are recovered by the receivers, which
// discard the offending bytes and resynchronize on the next start marker.
//
// # Thread Safety
//
// Encoding and decoding functions are stateless and safe for concurrent use.
// Buffer and the wire Receiver are not; each link owns its own.
package protocol
