// Package capture records link traffic as JSON Lines for offline analysis.
//
// Each record holds one frame as it crossed a link, with the raw bytes and
// a decoded summary. The decode-capture tool reads the files back.
package capture

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/logging"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/protocol/sysex"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/protocol/wire"
	"go.uber.org/zap"
)

// Directions
const (
	In  = "in"
	Out = "out"
)

// Codec names the framing a record was captured with.
type Codec string

const (
	CodecWire  Codec = "wire"
	CodecSysEx Codec = "sysex"
)

// Record is one captured frame.
type Record struct {
	Timestamp    time.Time `json:"timestamp"`
	Seq          int       `json:"seq"`
	Link         string    `json:"link"`
	Direction    string    `json:"direction"`
	Codec        Codec     `json:"codec"`
	Command      string    `json:"command"`
	Opcode       byte      `json:"opcode"`
	PayloadLen   int       `json:"payload_length"`
	PayloadHex   string    `json:"payload_hex"`
	PayloadASCII string    `json:"payload_ascii"`
	RawHex       string    `json:"raw_hex"`
	Error        string    `json:"error,omitempty"`
}

// Writer appends records to one capture file. A nil Writer discards
// everything, so callers need no capture-enabled checks.
type Writer struct {
	mu   sync.Mutex
	f    *os.File
	enc  *json.Encoder
	seq  int
	path string
	now  func() time.Time
}

// Open creates capture-<timestamp>.jsonl in dir.
func Open(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create capture directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("capture-%s.jsonl", time.Now().Format("20060102-150405")))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture file: %w", err)
	}
	logging.Info("Capturing link traffic", zap.String("filename", path))
	return &Writer{f: f, enc: json.NewEncoder(f), path: path, now: time.Now}, nil
}

// Path returns the capture file path.
func (w *Writer) Path() string {
	if w == nil {
		return ""
	}
	return w.path
}

// Wire records a wire frame.
func (w *Writer) Wire(link, direction string, f wire.Frame) {
	if w == nil {
		return
	}
	raw, err := wire.EncodeFrame(f.Command, f.Payload)
	rec := Record{
		Link:      link,
		Direction: direction,
		Codec:     CodecWire,
		Command:   f.Command.String(),
		Opcode:    byte(f.Command),
		RawHex:    hex.EncodeToString(raw),
	}
	setPayload(&rec, f.Payload)
	if err != nil {
		rec.Error = err.Error()
	}
	w.write(rec)
}

// Raw records bytes exactly as written to or read from a link. The bytes
// are decoded with codec for the summary fields; undecodable data is kept
// with the decode error.
func (w *Writer) Raw(link, direction string, codec Codec, raw []byte) {
	if w == nil {
		return
	}
	rec := Record{
		Link:      link,
		Direction: direction,
		Codec:     codec,
		RawHex:    hex.EncodeToString(raw),
	}
	switch codec {
	case CodecSysEx:
		m, err := sysex.Decode(raw)
		if err != nil {
			rec.Error = err.Error()
			break
		}
		rec.Command = m.Command.String()
		rec.Opcode = byte(m.Command)
		setPayload(&rec, m.Payload)
	default:
		f, err := wire.ParseFrame(raw)
		if err != nil {
			rec.Error = err.Error()
			break
		}
		rec.Command = f.Command.String()
		rec.Opcode = byte(f.Command)
		setPayload(&rec, f.Payload)
	}
	w.write(rec)
}

// Tap returns a writer that records every Write to dst as one outbound
// frame. Links write whole frames, so one Write is one record.
func (w *Writer) Tap(link string, codec Codec, dst io.Writer) io.Writer {
	if w == nil {
		return dst
	}
	return &tap{w: w, link: link, codec: codec, dst: dst}
}

// Close flushes and closes the capture file.
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}

func (w *Writer) write(rec Record) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.seq++
	rec.Seq = w.seq
	rec.Timestamp = w.now()
	if err := w.enc.Encode(rec); err != nil {
		logging.Error("Failed to write capture record",
			zap.String("filename", w.path),
			zap.Error(err),
		)
	}
}

type tap struct {
	w     *Writer
	link  string
	codec Codec
	dst   io.Writer
}

func (t *tap) Write(p []byte) (int, error) {
	n, err := t.dst.Write(p)
	if n > 0 {
		t.w.Raw(t.link, Out, t.codec, p[:n])
	}
	return n, err
}

func setPayload(rec *Record, payload []byte) {
	rec.PayloadLen = len(payload)
	rec.PayloadHex = hex.EncodeToString(payload)
	rec.PayloadASCII = toASCII(payload)
}

// toASCII converts bytes to ASCII string (non-printable chars become '.')
func toASCII(data []byte) string {
	result := make([]byte, len(data))
	for i, b := range data {
		if b >= 32 && b <= 126 {
			result[i] = b
		} else {
			result[i] = '.'
		}
	}
	return string(result)
}

// Read decodes every record in a capture stream. Lines that fail to parse
// are reported with their line number and skipped.
func Read(r io.Reader) ([]Record, []error) {
	var (
		records []Record
		errs    []error
	)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", line, err))
			continue
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		errs = append(errs, err)
	}
	return records, errs
}

// Raw returns the decoded raw bytes of a record.
func (r Record) Raw() ([]byte, error) {
	return hex.DecodeString(r.RawHex)
}
