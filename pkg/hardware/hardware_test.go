package hardware

import (
	"bytes"
	"testing"

	"github.com/dougsko/microfm/pkg/controller"
	"github.com/dougsko/microfm/pkg/display"
	"github.com/dougsko/microfm/pkg/logging"
)

func testConfig() HardwareConfig {
	return HardwareConfig{
		GPIO:          "none",
		ActiveLow:     true,
		SeekUpPin:     "GPIO5",
		SeekDownPin:   "GPIO6",
		VolumeUpPin:   "GPIO13",
		VolumeDownPin: "GPIO19",
		MemoryPin:     "GPIO26",
		StereoLEDPin:  "GPIO20",
		PresetLEDPin:  "GPIO21",
	}
}

// released drives every button pin to its idle level.
func released(g *MockGPIO, cfg HardwareConfig) {
	for _, pin := range []string{cfg.SeekUpPin, cfg.SeekDownPin, cfg.VolumeUpPin, cfg.VolumeDownPin, cfg.MemoryPin} {
		g.SetPin(pin, cfg.ActiveLow)
	}
}

func TestNewHardwareManager(t *testing.T) {
	manager := NewHardwareManager(testConfig())

	if manager == nil {
		t.Fatal("Expected non-nil hardware manager")
	}
	if manager.IsInitialized() {
		t.Error("Expected manager to not be initialized initially")
	}
	if manager.Virtual() == nil {
		t.Error("Expected virtual buttons to be available")
	}
}

func TestHardwareManagerInitialization(t *testing.T) {
	manager := NewHardwareManager(testConfig())

	t.Run("Successful Initialization", func(t *testing.T) {
		if err := manager.Initialize(); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if !manager.IsInitialized() {
			t.Error("Expected manager to be initialized")
		}
	})

	t.Run("Double Initialization", func(t *testing.T) {
		if err := manager.Initialize(); err != nil {
			t.Errorf("Expected no error on double initialization, got: %v", err)
		}
	})

	t.Run("Close", func(t *testing.T) {
		if err := manager.Close(); err != nil {
			t.Errorf("Expected no error on close, got: %v", err)
		}
		if manager.IsInitialized() {
			t.Error("Expected manager to be closed")
		}
	})
}

func TestSample(t *testing.T) {
	cfg := testConfig()
	gpio := NewMockGPIO()
	released(gpio, cfg)
	manager := NewHardwareManagerWith(cfg, gpio, nil)
	if err := manager.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer manager.Close()

	t.Run("Idle Panel", func(t *testing.T) {
		b, err := manager.Sample()
		if err != nil {
			t.Fatalf("Sample failed: %v", err)
		}
		if b != 0 {
			t.Errorf("Expected no buttons, got %s", b)
		}
	})

	t.Run("Active Low Press", func(t *testing.T) {
		gpio.SetPin(cfg.VolumeUpPin, false)
		gpio.SetPin(cfg.MemoryPin, false)
		defer released(gpio, cfg)

		b, err := manager.Sample()
		if err != nil {
			t.Fatalf("Sample failed: %v", err)
		}
		if b != controller.VolumeUp|controller.Memory {
			t.Errorf("Expected volume-up+memory, got %s", b)
		}
	})

	t.Run("Virtual Press Merged", func(t *testing.T) {
		manager.Virtual().Press(controller.SeekDown)
		gpio.SetPin(cfg.SeekUpPin, false)
		defer released(gpio, cfg)

		b, _ := manager.Sample()
		if b != controller.SeekUp|controller.SeekDown {
			t.Errorf("Expected seek-up+seek-down, got %s", b)
		}
	})
}

func TestLamps(t *testing.T) {
	cfg := testConfig()
	gpio := NewMockGPIO()
	sink := &display.Memory{}
	manager := NewHardwareManagerWith(cfg, gpio, sink)
	if err := manager.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	manager.SetStereo(true)
	manager.SetStereo(true)
	manager.SetPreset(false)
	manager.SetPreset(false)

	if on, _ := gpio.GetPin(cfg.StereoLEDPin); !on {
		t.Error("Expected stereo lamp on")
	}
	if n := gpio.Writes(cfg.StereoLEDPin); n != 1 {
		t.Errorf("Expected one stereo lamp write, got %d", n)
	}
	if n := gpio.Writes(cfg.PresetLEDPin); n != 1 {
		t.Errorf("Expected one preset lamp write, got %d", n)
	}
	if stereo, preset := manager.Lamps(); !stereo || preset {
		t.Errorf("Expected lamps (true,false), got (%t,%t)", stereo, preset)
	}

	if err := manager.Show(display.Volume(7)); err != nil {
		t.Fatalf("Show failed: %v", err)
	}
	if sink.Current() != display.Volume(7) {
		t.Errorf("Expected display to receive volume buffer, got %v", sink.Current())
	}

	manager.Close()
	if on, _ := gpio.GetPin(cfg.StereoLEDPin); on {
		t.Error("Expected stereo lamp off after close")
	}
}

func TestVirtualButtons(t *testing.T) {
	v := NewVirtualButtons()
	v.Press(controller.VolumeUp)
	v.Press(controller.VolumeUp)

	samples := []controller.Buttons{v.Next(), v.Next(), v.Next(), v.Next(), v.Next()}
	expected := []controller.Buttons{controller.VolumeUp, 0, controller.VolumeUp, 0, 0}
	for i := range expected {
		if samples[i] != expected[i] {
			t.Errorf("Sample %d: expected %s, got %s", i, expected[i], samples[i])
		}
	}

	var prev, edges controller.Buttons
	v.Press(controller.Memory)
	v.Press(controller.Memory)
	for i := 0; i < 6; i++ {
		cur := v.Next()
		if cur.Rising(prev).Has(controller.Memory) {
			edges++
		}
		prev = cur
	}
	if edges != 2 {
		t.Errorf("Expected 2 memory edges, got %d", edges)
	}

	for i := 0; i < maxQueuedPresses; i++ {
		v.Press(controller.SeekUp)
	}
	if v.Press(controller.SeekUp) {
		t.Error("Expected full queue to reject press")
	}
	if v.Pending() != maxQueuedPresses {
		t.Errorf("Expected %d pending, got %d", maxQueuedPresses, v.Pending())
	}
}

func TestLoggingFollowsGlobalLogger(t *testing.T) {
	prev := logging.GetGlobalLogger()
	defer logging.SetGlobalLogger(prev)

	var buf bytes.Buffer
	logging.SetGlobalLogger(logging.NewWriterLogger(&buf, logging.LevelDebug, false))

	manager := NewHardwareManager(testConfig())
	if err := manager.Initialize(); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	manager.Close()

	for _, want := range []string{"hardware: front panel initialized", "hardware: mock gpio initialized", "hardware: front panel shut down"} {
		if !bytes.Contains(buf.Bytes(), []byte(want)) {
			t.Errorf("Expected %q in log output:\n%s", want, buf.String())
		}
	}

	buf.Reset()
	logging.SetGlobalLogger(logging.NewWriterLogger(&buf, logging.LevelWarn, false))
	manager = NewHardwareManager(testConfig())
	manager.Initialize()
	manager.Close()
	if buf.Len() != 0 {
		t.Errorf("Expected info lines to be filtered at warn level, got:\n%s", buf.String())
	}
}
