package engine

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/dougsko/microfm/pkg/bus"
	"github.com/dougsko/microfm/pkg/config"
	"github.com/dougsko/microfm/pkg/controller"
	"github.com/dougsko/microfm/pkg/display"
	"github.com/dougsko/microfm/pkg/hardware"
	"github.com/dougsko/microfm/pkg/nvram"
	"github.com/dougsko/microfm/pkg/protocol"
	"github.com/dougsko/microfm/pkg/tuner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Storage.Backend = "memory"
	cfg.Storage.Size = 64
	cfg.Controller.TickInterval = 1
	return cfg
}

type testRig struct {
	engine *CoreEngine
	sim    *tuner.SimChip
	mem    *nvram.Memory
	panel  *display.Memory
}

func newTestRig(t *testing.T, stations ...tuner.SimStation) *testRig {
	t.Helper()
	sim := tuner.NewSimChip(stations...)
	mem := nvram.NewMemory(64, 0xFF)
	panel := &display.Memory{}
	parts := &Parts{
		Bus:      bus.NewByteBus(sim),
		Storage:  mem,
		Hardware: hardware.NewHardwareManagerWith(hardware.HardwareConfig{GPIO: "none"}, hardware.NewMockGPIO(), panel),
		Sim:      sim,
	}
	socketPath := filepath.Join(t.TempDir(), "fm.sock")
	return &testRig{
		engine: NewCoreEngine(testConfig(), socketPath, parts),
		sim:    sim,
		mem:    mem,
		panel:  panel,
	}
}

// boot brings the radio up without starting the tick loop, so tests can
// drive ticks one at a time.
func (r *testRig) boot(t *testing.T) {
	t.Helper()
	require.NoError(t, r.engine.hardware.Initialize())
	require.NoError(t, r.engine.boot())
}

// press queues b and runs the press and release ticks.
func (r *testRig) press(t *testing.T, b controller.Buttons) {
	t.Helper()
	require.NoError(t, r.engine.Press(b))
	r.engine.step()
	r.engine.step()
}

func TestNewCoreEngine(t *testing.T) {
	rig := newTestRig(t)
	e := rig.engine

	if e.driver == nil || e.controller == nil || e.hardware == nil {
		t.Fatal("Expected driver, controller and hardware to be wired")
	}
	if e.Snapshot() != nil {
		t.Error("Expected no snapshot before boot")
	}
	if resp := e.handleCommand(&protocol.Command{Type: protocol.CmdStatus}); resp.Success {
		t.Error("Expected STATUS to fail before boot")
	}
}

func TestBootPublishesSnapshot(t *testing.T) {
	rig := newTestRig(t)
	rig.boot(t)

	s := rig.engine.Snapshot()
	require.NotNil(t, s)
	assert.Equal(t, uint64(0), s.Ticks)
	assert.Equal(t, tuner.Channel(0), s.Tuner.Channel)
	assert.Equal(t, controller.ModeFrequency, s.Controller.Mode)
	w := s.Write
	assert.False(t, w.Flag(tuner.SoftReset))
	assert.True(t, w.Flag(tuner.Enable))

	require.Len(t, s.Presets, 10)
	for _, slot := range s.Presets {
		assert.True(t, slot.Empty, "slot %d", slot.Number)
	}
	require.NotNil(t, s.Wear)
	assert.Equal(t, rig.mem.TotalWrites(), s.Wear.TotalWrites)

	assert.Equal(t, display.Frequency(tuner.Channel(0).Digits()), rig.panel.Current())
}

func TestStepVolumePress(t *testing.T) {
	rig := newTestRig(t)
	rig.boot(t)
	before := rig.engine.Snapshot()

	rig.press(t, controller.VolumeUp)

	s := rig.engine.Snapshot()
	assert.Equal(t, uint64(2), s.Ticks)
	assert.Equal(t, controller.ModeVolume, s.Controller.Mode)
	assert.Equal(t, controller.Volume(1), s.Controller.Volume)
	assert.Equal(t, display.Volume(1), rig.panel.Current())

	// Published snapshots are never touched again.
	assert.Equal(t, uint64(0), before.Ticks)
	assert.Equal(t, controller.ModeFrequency, before.Controller.Mode)
}

func TestPresetListFollowsStorageWrites(t *testing.T) {
	rig := newTestRig(t, tuner.SimStation{Channel: 120, Stereo: true, RSSI: 40})
	rig.boot(t)

	rig.press(t, controller.SeekUp)
	s := rig.engine.Snapshot()
	require.Equal(t, tuner.Channel(120), s.Tuner.Channel)
	assert.True(t, s.Lamps.Stereo)
	assert.False(t, s.Lamps.Preset)

	rig.press(t, controller.Memory)
	assert.True(t, rig.engine.Snapshot().Controller.InMemory)
	assert.Equal(t, display.Station(1), rig.panel.Current())

	rig.press(t, controller.VolumeUp)
	s = rig.engine.Snapshot()
	assert.False(t, s.Controller.InMemory)
	require.Len(t, s.Presets, 10)
	assert.False(t, s.Presets[0].Empty)
	assert.Equal(t, tuner.Channel(120), s.Presets[0].Channel)
	assert.True(t, s.Presets[1].Empty)
	assert.True(t, s.Lamps.Preset)
}

func TestPressErrors(t *testing.T) {
	rig := newTestRig(t)

	assert.Error(t, rig.engine.Press(0))

	for i := 0; i < 32; i++ {
		require.NoError(t, rig.engine.Press(controller.SeekUp))
	}
	assert.Error(t, rig.engine.Press(controller.SeekUp))
}

func TestTickErrorsAreReported(t *testing.T) {
	rig := newTestRig(t)
	rig.boot(t)

	rig.sim.FailNext(bus.ErrNoAck)
	rig.engine.step()
	assert.NotEmpty(t, rig.engine.lastErr)

	rig.engine.step()
	assert.Empty(t, rig.engine.lastErr)
	assert.Equal(t, uint64(2), rig.engine.Snapshot().Ticks)
}

// flakyGPIO fails the next fail pin reads.
type flakyGPIO struct {
	*hardware.MockGPIO
	fail int
}

func (f *flakyGPIO) GetPin(pin string) (bool, error) {
	if f.fail > 0 {
		f.fail--
		return false, errors.New("read glitch")
	}
	return f.MockGPIO.GetPin(pin)
}

func TestButtonReadGlitch(t *testing.T) {
	sim := tuner.NewSimChip()
	gpio := &flakyGPIO{MockGPIO: hardware.NewMockGPIO()}
	hw := hardware.NewHardwareManagerWith(hardware.HardwareConfig{GPIO: "none", VolumeUpPin: "VU"}, gpio, nil)
	parts := &Parts{Bus: bus.NewByteBus(sim), Storage: nvram.NewMemory(64, 0xFF), Hardware: hw, Sim: sim}
	e := NewCoreEngine(testConfig(), filepath.Join(t.TempDir(), "fm.sock"), parts)
	require.NoError(t, hw.Initialize())
	require.NoError(t, e.boot())

	t.Run("Held Button Is One Press", func(t *testing.T) {
		require.NoError(t, gpio.SetPin("VU", true))
		e.step()
		gpio.fail = 1
		e.step()
		assert.NotEmpty(t, e.lastErr)
		e.step()
		assert.Empty(t, e.lastErr)
		assert.Equal(t, controller.Volume(1), e.Snapshot().Controller.Volume)
	})

	t.Run("Remote Press Survives Glitch", func(t *testing.T) {
		require.NoError(t, gpio.SetPin("VU", false))
		e.step()

		require.NoError(t, e.Press(controller.VolumeUp))
		gpio.fail = 1
		e.step()
		e.step()
		assert.Equal(t, controller.Volume(2), e.Snapshot().Controller.Volume)
	})
}

func TestCountingDevice(t *testing.T) {
	mem := nvram.NewMemory(4, 0xFF)
	dev := &countingDevice{Device: mem}

	require.NoError(t, dev.Write(0, 1))
	require.NoError(t, dev.Write(0, 2))
	assert.Error(t, dev.Write(100, 3))
	assert.Equal(t, uint64(2), dev.writes)
}

type plainDevice struct{ nvram.Device }

func TestSummariseWear(t *testing.T) {
	mem := nvram.NewMemory(16, 0xFF)
	for i := 0; i < 3; i++ {
		require.NoError(t, mem.Write(5, byte(i)))
	}
	require.NoError(t, mem.Write(2, 0))

	w, err := summariseWear(mem)
	require.NoError(t, err)
	assert.Equal(t, &protocol.Wear{TotalWrites: 4, HottestCell: 5, HottestWrites: 3}, w)

	w, err = summariseWear(plainDevice{mem})
	require.NoError(t, err)
	assert.Nil(t, w)
}

func TestOpenParts(t *testing.T) {
	t.Run("Mock Bus And Memory Storage", func(t *testing.T) {
		cfg := testConfig()
		cfg.Tuner.MockStations = []int{120, 400}

		parts, err := OpenParts(cfg)
		require.NoError(t, err)
		defer parts.Close()

		require.NotNil(t, parts.Sim)
		assert.IsType(t, &nvram.Memory{}, parts.Storage)
		assert.NotNil(t, parts.Hardware)

		d := tuner.NewDriver(parts.Bus)
		require.NoError(t, d.Initialize(5, 0))
		require.NoError(t, d.Seek(tuner.Up))
		require.NoError(t, d.PollStatus(tuner.ReadFrameLen))
		assert.Equal(t, tuner.Channel(120), d.Channel())
	})

	t.Run("SQLite Storage", func(t *testing.T) {
		cfg := testConfig()
		cfg.Storage.Backend = "sqlite"
		cfg.Storage.DatabasePath = filepath.Join(t.TempDir(), "nvram.db")

		parts, err := OpenParts(cfg)
		require.NoError(t, err)
		assert.IsType(t, &nvram.SQLiteDevice{}, parts.Storage)
		assert.NoError(t, parts.Close())
	})
}

func TestSocketProtocol(t *testing.T) {
	rig := newTestRig(t)
	e := rig.engine
	require.NoError(t, e.Start())
	defer e.Stop()

	conn, err := net.Dial("unix", e.socketPath)
	require.NoError(t, err)
	defer conn.Close()
	reader := bufio.NewScanner(conn)

	send := func(t *testing.T, line string) protocol.Response {
		t.Helper()
		_, err := conn.Write([]byte(line + "\n"))
		require.NoError(t, err)
		require.True(t, reader.Scan(), "no response to %s", line)
		var resp protocol.Response
		require.NoError(t, json.Unmarshal(reader.Bytes(), &resp))
		return resp
	}

	t.Run("PING", func(t *testing.T) {
		resp := send(t, "PING")
		assert.True(t, resp.Success)
		assert.Contains(t, resp.Data, "pong")
	})

	t.Run("PRESS", func(t *testing.T) {
		resp := send(t, "PRESS:volume_up")
		require.True(t, resp.Success, resp.Error)
		assert.Equal(t, "volume-up", resp.Data["button"])

		assert.Eventually(t, func() bool {
			return e.Snapshot().Controller.Mode == controller.ModeVolume
		}, 2*time.Second, 5*time.Millisecond)
	})

	t.Run("PRESS Unknown Button", func(t *testing.T) {
		resp := send(t, "PRESS:power")
		assert.False(t, resp.Success)
		assert.NotEmpty(t, resp.Error)
	})

	t.Run("STATUS", func(t *testing.T) {
		resp := send(t, "STATUS")
		require.True(t, resp.Success, resp.Error)
		var status protocol.Status
		require.NoError(t, resp.Decode("status", &status))
		assert.Equal(t, Version, status.Version)
		assert.Equal(t, controller.Volume(1), status.Controller.Volume)
	})

	t.Run("PRESETS", func(t *testing.T) {
		resp := send(t, "PRESETS")
		require.True(t, resp.Success, resp.Error)
		var list protocol.Presets
		require.NoError(t, resp.Decode("presets", &list))
		assert.Len(t, list.Slots, 10)
	})

	t.Run("MIRROR", func(t *testing.T) {
		resp := send(t, "MIRROR")
		require.True(t, resp.Success, resp.Error)
		var m protocol.Mirror
		require.NoError(t, resp.Decode("mirror", &m))
		assert.Equal(t, uint16(1), m.WriteFields["ENABLE"])
		assert.Equal(t, uint16(0), m.WriteFields["SOFT_RESET"])
	})

	t.Run("Parse Error", func(t *testing.T) {
		resp := send(t, "PRESS")
		assert.False(t, resp.Success)
	})

	t.Run("QUIT", func(t *testing.T) {
		resp := send(t, "QUIT")
		assert.True(t, resp.Success)
		assert.False(t, reader.Scan(), "expected connection to close after QUIT")
	})
}
