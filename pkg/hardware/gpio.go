package hardware

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// PeriphGPIO implements GPIOInterface with periph.io pin drivers. Pins are
// looked up by name ("GPIO17", "P1_11") and configured on first use.
type PeriphGPIO struct {
	pull    gpio.Pull
	inputs  map[string]gpio.PinIO
	outputs map[string]gpio.PinIO
	mutex   sync.Mutex
}

// NewPeriphGPIO creates a periph GPIO backend. Buttons wired active low get
// pull-ups, otherwise pull-downs.
func NewPeriphGPIO(activeLow bool) *PeriphGPIO {
	pull := gpio.PullDown
	if activeLow {
		pull = gpio.PullUp
	}
	return &PeriphGPIO{
		pull:    pull,
		inputs:  make(map[string]gpio.PinIO),
		outputs: make(map[string]gpio.PinIO),
	}
}

// Initialize loads the host drivers
func (g *PeriphGPIO) Initialize() error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize host drivers: %w", err)
	}
	logger.Debugf("periph host drivers loaded")
	return nil
}

// Close drives every output low
func (g *PeriphGPIO) Close() error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	for name, p := range g.outputs {
		if err := p.Out(gpio.Low); err != nil {
			logger.Warnf("failed to release %s: %v", name, err)
		}
	}
	logger.Debugf("periph gpio closed")
	return nil
}

func lookupPin(name string) (gpio.PinIO, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("unknown GPIO pin %q", name)
	}
	return p, nil
}

// SetPin sets a GPIO pin value
func (g *PeriphGPIO) SetPin(name string, value bool) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	p, ok := g.outputs[name]
	if !ok {
		var err error
		if p, err = lookupPin(name); err != nil {
			return err
		}
		g.outputs[name] = p
	}

	if err := p.Out(gpio.Level(value)); err != nil {
		return fmt.Errorf("failed to set pin %s: %w", name, err)
	}
	return nil
}

// GetPin gets a GPIO pin value
func (g *PeriphGPIO) GetPin(name string) (bool, error) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	p, ok := g.inputs[name]
	if !ok {
		var err error
		if p, err = lookupPin(name); err != nil {
			return false, err
		}
		if err := p.In(g.pull, gpio.NoEdge); err != nil {
			return false, fmt.Errorf("failed to configure pin %s as input: %w", name, err)
		}
		g.inputs[name] = p
		logger.Debugf("%s configured as input (%s)", name, g.pull)
	}

	return p.Read() == gpio.High, nil
}
