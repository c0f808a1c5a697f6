package bus

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// PeriphBus drives the tuner through a kernel I2C controller. The
// controller generates start/stop and the final-byte NACK itself.
type PeriphBus struct {
	bus i2c.Bus
	c   i2c.BusCloser
}

// NewPeriphBus wraps an already opened periph bus.
func NewPeriphBus(b i2c.Bus) *PeriphBus {
	return &PeriphBus{bus: b}
}

// OpenI2C initialises the host drivers and opens the named bus
// ("1", "I2C1", or "" for the first one found).
func OpenI2C(name string) (*PeriphBus, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize host drivers: %w", err)
	}
	c, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open i2c bus %q: %w", name, err)
	}
	return &PeriphBus{bus: c, c: c}, nil
}

func (p *PeriphBus) Write(addr uint8, frame []byte) error {
	if len(frame) == 0 {
		return ErrEmptyFrame
	}
	return p.bus.Tx(uint16(addr>>1), frame, nil)
}

func (p *PeriphBus) Read(addr uint8, frame []byte) error {
	if len(frame) == 0 {
		return ErrEmptyFrame
	}
	return p.bus.Tx(uint16(addr>>1), nil, frame)
}

// String names the underlying bus.
func (p *PeriphBus) String() string {
	return p.bus.String()
}

// Close releases the bus if this PeriphBus opened it.
func (p *PeriphBus) Close() error {
	if p.c == nil {
		return nil
	}
	return p.c.Close()
}
