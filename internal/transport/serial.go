package transport

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/logging"
	"go.bug.st/serial"
	"go.uber.org/zap"
)

// DefaultBaud is the grid-board link rate.
const DefaultBaud = 1000000

// readTimeout bounds each blocking read so Close is noticed promptly.
const readTimeout = 50 * time.Millisecond

// SerialConfig configures a serial stream.
type SerialConfig struct {
	Port      string
	Baud      int
	QueueSize int
}

// Serial is a Stream over a serial port.
type Serial struct {
	*Queue
	name string
	port serial.Port

	wg     sync.WaitGroup
	closed atomic.Bool
	err    atomic.Value // error
}

// OpenSerial opens a port in 8N1 and starts its reader.
func OpenSerial(cfg SerialConfig) (*Serial, error) {
	if cfg.Baud <= 0 {
		cfg.Baud = DefaultBaud
	}
	mode := &serial.Mode{
		BaudRate: cfg.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.Port, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", cfg.Port, err)
	}

	s := &Serial{Queue: NewQueue(cfg.QueueSize), name: cfg.Port, port: port}
	s.wg.Add(1)
	go s.readLoop()

	logging.Info("Serial port opened", zap.String("port", cfg.Port), zap.Int("baud", cfg.Baud))
	return s, nil
}

func (s *Serial) readLoop() {
	defer s.wg.Done()
	buf := make([]byte, 512)
	for !s.closed.Load() {
		n, err := s.port.Read(buf)
		if err != nil {
			if !s.closed.Load() {
				s.err.Store(err)
				logging.Warn("Serial read failed", zap.String("port", s.name), zap.Error(err))
			}
			return
		}
		if n > 0 && !s.Push(buf[:n]) {
			logging.Debug("Serial queue full, chunk dropped", zap.String("port", s.name), zap.Int("bytes", n))
		}
	}
}

// Name returns the port name.
func (s *Serial) Name() string { return s.name }

// Write sends p and waits until the port has transmitted it, so a frame is
// never left half-queued in the driver when the next tick runs.
func (s *Serial) Write(p []byte) (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	n, err := s.port.Write(p)
	if err != nil {
		return n, err
	}
	if err := s.port.Drain(); err != nil {
		return n, fmt.Errorf("drain %s: %w", s.name, err)
	}
	return n, nil
}

// Poll returns every byte read since the last call.
func (s *Serial) Poll() []byte { return s.Bytes() }

// Err returns the error that stopped the reader, if any.
func (s *Serial) Err() error {
	if err, ok := s.err.Load().(error); ok {
		return err
	}
	return nil
}

func (s *Serial) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	err := s.port.Close()
	s.wg.Wait()
	return err
}

// SerialPorts lists the serial ports present on the system.
func SerialPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	return ports, nil
}
