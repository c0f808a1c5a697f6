package display

import (
	"fmt"
	"io"
	"sync"

	"go.bug.st/serial"

	"github.com/dougsko/microfm/pkg/logging"
)

// Frame layout sent to the UART display board:
//
//	0x02 d0 d1 d2 d3 flag xor
//
// xor covers the four digits and the flag.
const (
	frameStart = 0x02
	FrameLen   = 7
)

// Encode builds the UART frame for b.
func Encode(b Buffer) []byte {
	frame := make([]byte, 0, FrameLen)
	frame = append(frame, frameStart)
	frame = append(frame, b.Digits[:]...)
	frame = append(frame, b.DecimalFlag())

	var sum byte
	for _, v := range frame[1:] {
		sum ^= v
	}
	return append(frame, sum)
}

// SerialSink drives a display board over a serial line. Unchanged buffers
// are not re-sent.
type SerialSink struct {
	mu   sync.Mutex
	port io.WriteCloser
	last *Buffer
}

// NewSerialSink wraps an open port.
func NewSerialSink(port io.WriteCloser) *SerialSink {
	return &SerialSink{port: port}
}

// OpenSerialSink opens path at baud, 8N1.
func OpenSerialSink(path string, baud int) (*SerialSink, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("display: failed to open %s: %w", path, err)
	}
	logging.For("display").Infof("opened %s at %d baud", path, baud)
	return NewSerialSink(port), nil
}

func (s *SerialSink) Show(b Buffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last != nil && *s.last == b {
		return nil
	}
	if _, err := s.port.Write(Encode(b)); err != nil {
		return fmt.Errorf("display: write: %w", err)
	}
	s.last = &b
	return nil
}

// Close closes the port.
func (s *SerialSink) Close() error {
	return s.port.Close()
}
