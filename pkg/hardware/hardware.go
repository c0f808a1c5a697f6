package hardware

import (
	"fmt"
	"sync"

	"github.com/dougsko/microfm/pkg/controller"
	"github.com/dougsko/microfm/pkg/display"
	"github.com/dougsko/microfm/pkg/logging"
)

var logger = logging.For("hardware")

// HardwareConfig represents hardware configuration
type HardwareConfig struct {
	GPIO          string // "none" or "periph"
	ActiveLow     bool
	SeekUpPin     string
	SeekDownPin   string
	VolumeUpPin   string
	VolumeDownPin string
	MemoryPin     string
	StereoLEDPin  string
	PresetLEDPin  string
	DisplayTTY    string
	DisplayBaud   int
}

// GPIOInterface defines GPIO operations on named pins
type GPIOInterface interface {
	Initialize() error
	Close() error
	SetPin(pin string, value bool) error
	GetPin(pin string) (bool, error)
}

// HardwareManager owns the front panel: five buttons, two lamps and the
// display. It implements controller.Indicators and display.Sink.
type HardwareManager struct {
	config HardwareConfig
	mutex  sync.RWMutex

	gpio    GPIOInterface
	sink    display.Sink
	closer  func() error
	virtual *VirtualButtons

	stereo, preset           bool
	stereoKnown, presetKnown bool

	initialized bool
}

// NewHardwareManager creates a new hardware manager
func NewHardwareManager(config HardwareConfig) *HardwareManager {
	return &HardwareManager{
		config:  config,
		virtual: NewVirtualButtons(),
	}
}

// NewHardwareManagerWith creates a manager around an existing GPIO backend
// and display sink. Either may be nil.
func NewHardwareManagerWith(config HardwareConfig, gpio GPIOInterface, sink display.Sink) *HardwareManager {
	h := NewHardwareManager(config)
	h.gpio = gpio
	h.sink = sink
	return h
}

// Initialize initializes all hardware interfaces
func (h *HardwareManager) Initialize() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.initialized {
		return nil
	}

	logger.Infof("initializing front panel")

	if h.gpio == nil {
		switch h.config.GPIO {
		case "periph":
			h.gpio = NewPeriphGPIO(h.config.ActiveLow)
		default:
			h.gpio = NewMockGPIO()
		}
	}
	if err := h.gpio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize GPIO: %w", err)
	}

	if h.sink == nil && h.config.DisplayTTY != "" {
		serialSink, err := display.OpenSerialSink(h.config.DisplayTTY, h.config.DisplayBaud)
		if err != nil {
			h.gpio.Close()
			return fmt.Errorf("failed to open display: %w", err)
		}
		h.sink = serialSink
		h.closer = serialSink.Close
	}

	h.initialized = true
	logger.Infof("front panel initialized (gpio=%s, display=%q)", h.config.GPIO, h.config.DisplayTTY)
	return nil
}

// Close shuts down all hardware interfaces
func (h *HardwareManager) Close() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if !h.initialized {
		return nil
	}

	logger.Infof("shutting down front panel")

	h.setLampLocked(h.config.StereoLEDPin, false)
	h.setLampLocked(h.config.PresetLEDPin, false)

	if h.closer != nil {
		if err := h.closer(); err != nil {
			logger.Warnf("error closing display: %v", err)
		}
	}
	if err := h.gpio.Close(); err != nil {
		logger.Warnf("error closing GPIO: %v", err)
	}

	h.initialized = false
	logger.Infof("front panel shut down")
	return nil
}

// Virtual returns the queue used to inject remote button presses.
func (h *HardwareManager) Virtual() *VirtualButtons {
	return h.virtual
}

// Sample reads every configured button and merges any pending remote press.
func (h *HardwareManager) Sample() (controller.Buttons, error) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	b := h.virtual.Next()
	if !h.initialized {
		return b, nil
	}

	pins := []struct {
		pin    string
		button controller.Buttons
	}{
		{h.config.SeekUpPin, controller.SeekUp},
		{h.config.SeekDownPin, controller.SeekDown},
		{h.config.VolumeUpPin, controller.VolumeUp},
		{h.config.VolumeDownPin, controller.VolumeDown},
		{h.config.MemoryPin, controller.Memory},
	}
	for _, p := range pins {
		if p.pin == "" {
			continue
		}
		level, err := h.gpio.GetPin(p.pin)
		if err != nil {
			return b, fmt.Errorf("failed to read %s: %w", p.button, err)
		}
		if level != h.config.ActiveLow {
			b |= p.button
		}
	}
	return b, nil
}

// SetStereo drives the stereo lamp.
func (h *HardwareManager) SetStereo(on bool) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.stereoKnown && h.stereo == on {
		return nil
	}
	h.stereo, h.stereoKnown = on, true
	return h.setLampLocked(h.config.StereoLEDPin, on)
}

// SetPreset drives the preset lamp.
func (h *HardwareManager) SetPreset(on bool) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.presetKnown && h.preset == on {
		return nil
	}
	h.preset, h.presetKnown = on, true
	return h.setLampLocked(h.config.PresetLEDPin, on)
}

// setLampLocked sets a lamp pin (must be called with lock held)
func (h *HardwareManager) setLampLocked(pin string, on bool) error {
	if !h.initialized || pin == "" {
		return nil
	}
	if err := h.gpio.SetPin(pin, on); err != nil {
		return fmt.Errorf("failed to set lamp %s: %w", pin, err)
	}
	return nil
}

// Lamps returns the last commanded stereo and preset lamp states.
func (h *HardwareManager) Lamps() (stereo, preset bool) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.stereo, h.preset
}

// Show forwards a display buffer to the display board, if any.
func (h *HardwareManager) Show(b display.Buffer) error {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if h.sink == nil {
		return nil
	}
	return h.sink.Show(b)
}

// IsInitialized returns whether hardware is initialized
func (h *HardwareManager) IsInitialized() bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.initialized
}

// GetConfig returns the hardware configuration
func (h *HardwareManager) GetConfig() HardwareConfig {
	return h.config
}
