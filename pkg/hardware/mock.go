package hardware

import "sync"

// MockGPIO implements GPIOInterface for testing and for running without a
// front panel
type MockGPIO struct {
	pins   map[string]bool
	writes map[string]int
	mu     sync.RWMutex
}

// NewMockGPIO creates a new mock GPIO interface
func NewMockGPIO() *MockGPIO {
	return &MockGPIO{
		pins:   make(map[string]bool),
		writes: make(map[string]int),
	}
}

// Initialize initializes the mock GPIO
func (g *MockGPIO) Initialize() error {
	logger.Debugf("mock gpio initialized")
	return nil
}

// Close closes the mock GPIO
func (g *MockGPIO) Close() error {
	logger.Debugf("mock gpio closed")
	return nil
}

// SetPin sets a GPIO pin value
func (g *MockGPIO) SetPin(pin string, value bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.pins[pin] = value
	g.writes[pin]++
	return nil
}

// GetPin gets a GPIO pin value
func (g *MockGPIO) GetPin(pin string) (bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.pins[pin], nil
}

// Writes returns how many times pin has been set
func (g *MockGPIO) Writes(pin string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.writes[pin]
}
