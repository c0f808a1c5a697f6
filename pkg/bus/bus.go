// Package bus carries register frames between the tuner driver and the chip.
//
// Two levels are modelled. Transport is the raw two-wire master: start and
// stop conditions plus single-byte transfers with explicit ACK/NACK. Bus is
// the frame-level view the driver uses: one addressed write or read per
// call. ByteBus turns any Transport into a Bus, and PeriphBus maps a Bus
// straight onto a kernel I2C controller.
package bus

import (
	"errors"
	"fmt"

	"github.com/dougsko/microfm/pkg/logging"
)

var (
	// ErrNoAck is returned when no device acknowledges an address or byte.
	ErrNoAck = errors.New("bus: no acknowledge")
	// ErrEmptyFrame is returned for zero-length reads or writes.
	ErrEmptyFrame = errors.New("bus: empty frame")
)

// Transport is a byte-level two-wire bus master.
type Transport interface {
	Start() error
	// WriteByte clocks one byte out and fails with ErrNoAck if the target
	// does not acknowledge it.
	WriteByte(b byte) error
	// Receive clocks one byte in, answering with ACK when ack is true and
	// NACK otherwise. A master NACKs the final byte of a read.
	Receive(ack bool) (byte, error)
	Stop() error
}

// Bus is a frame-level view of the two-wire bus. Addresses are 8-bit
// (7-bit device address shifted left, R/W in bit 0).
type Bus interface {
	Write(addr uint8, frame []byte) error
	Read(addr uint8, frame []byte) error
}

// ByteBus adapts a Transport to Bus.
type ByteBus struct {
	t Transport
}

// NewByteBus wraps t.
func NewByteBus(t Transport) *ByteBus {
	return &ByteBus{t: t}
}

// Write sends frame to addr in one start/stop transaction.
func (b *ByteBus) Write(addr uint8, frame []byte) (err error) {
	if len(frame) == 0 {
		return ErrEmptyFrame
	}
	if err := b.t.Start(); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	defer func() {
		if stopErr := b.t.Stop(); stopErr != nil && err == nil {
			err = fmt.Errorf("stop: %w", stopErr)
		}
	}()

	if err := b.t.WriteByte(addr); err != nil {
		return fmt.Errorf("address 0x%02x: %w", addr, err)
	}
	for i, v := range frame {
		if err := b.t.WriteByte(v); err != nil {
			return fmt.Errorf("byte %d: %w", i, err)
		}
	}
	return nil
}

// Read fills frame from addr, acknowledging every byte except the last.
func (b *ByteBus) Read(addr uint8, frame []byte) (err error) {
	if len(frame) == 0 {
		return ErrEmptyFrame
	}
	if err := b.t.Start(); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	defer func() {
		if stopErr := b.t.Stop(); stopErr != nil && err == nil {
			err = fmt.Errorf("stop: %w", stopErr)
		}
	}()

	if err := b.t.WriteByte(addr); err != nil {
		return fmt.Errorf("address 0x%02x: %w", addr, err)
	}
	last := len(frame) - 1
	for i := range frame {
		v, err := b.t.Receive(i < last)
		if err != nil {
			return fmt.Errorf("byte %d: %w", i, err)
		}
		frame[i] = v
	}
	return nil
}

// Traced logs every frame at debug level before handing it on.
type Traced struct {
	next Bus
	log  *logging.Component
}

// NewTraced wraps next with frame logging.
func NewTraced(next Bus, log *logging.Component) *Traced {
	return &Traced{next: next, log: log}
}

func (t *Traced) Write(addr uint8, frame []byte) error {
	err := t.next.Write(addr, frame)
	t.log.Debugf("W 0x%02x % X (err=%v)", addr, frame, err)
	return err
}

func (t *Traced) Read(addr uint8, frame []byte) error {
	err := t.next.Read(addr, frame)
	t.log.Debugf("R 0x%02x % X (err=%v)", addr, frame, err)
	return err
}
