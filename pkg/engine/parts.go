package engine

import (
	"fmt"
	"io"
	"sort"

	"github.com/dougsko/microfm/pkg/bus"
	"github.com/dougsko/microfm/pkg/config"
	"github.com/dougsko/microfm/pkg/hardware"
	"github.com/dougsko/microfm/pkg/logging"
	"github.com/dougsko/microfm/pkg/nvram"
	"github.com/dougsko/microfm/pkg/protocol"
	"github.com/dougsko/microfm/pkg/tuner"
)

// Simulated stations are strong stereo signals.
const mockStationRSSI = 45

// Parts are the devices the engine drives. OpenParts builds them from
// configuration; tests assemble them directly.
type Parts struct {
	Bus      bus.Bus
	Storage  nvram.Device
	Hardware *hardware.HardwareManager

	// Sim is the simulated chip behind Bus when tuner.bus is "mock".
	Sim *tuner.SimChip

	closers []io.Closer
}

// Close releases everything OpenParts opened.
func (p *Parts) Close() error {
	var first error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	p.closers = nil
	return first
}

// OpenParts opens the tuner bus, the settings storage and the front panel
// described by cfg.
func OpenParts(cfg *config.Config) (*Parts, error) {
	p := &Parts{}

	switch cfg.Tuner.Bus {
	case "i2c":
		pb, err := bus.OpenI2C(cfg.Tuner.I2CBus)
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, pb)
		p.Bus = pb
		logging.Infof("engine", "tuner on i2c bus %s", pb)
	default:
		stations := make([]tuner.SimStation, 0, len(cfg.Tuner.MockStations))
		for _, ch := range cfg.Tuner.MockStations {
			stations = append(stations, tuner.SimStation{
				Channel: tuner.Channel(ch),
				Stereo:  true,
				RSSI:    mockStationRSSI,
			})
		}
		p.Sim = tuner.NewSimChip(stations...)
		p.Bus = bus.NewByteBus(p.Sim)
		logging.Infof("engine", "tuner simulated with %d stations", len(stations))
	}
	p.Bus = bus.NewTraced(p.Bus, logging.For("bus"))

	erased := byte(cfg.Storage.ErasedValue)
	switch cfg.Storage.Backend {
	case "memory":
		p.Storage = nvram.NewMemory(cfg.Storage.Size, erased)
	default:
		dev, err := nvram.NewSQLiteDevice(cfg.Storage.DatabasePath, cfg.Storage.Size, erased)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to open storage: %w", err)
		}
		p.closers = append(p.closers, dev)
		p.Storage = dev
		logging.Infof("engine", "storage in %s (%d bytes)", cfg.Storage.DatabasePath, cfg.Storage.Size)
	}

	p.Hardware = hardware.NewHardwareManager(hardware.HardwareConfig{
		GPIO:          cfg.Hardware.GPIO,
		ActiveLow:     cfg.Hardware.ActiveLow,
		SeekUpPin:     cfg.Hardware.SeekUpPin,
		SeekDownPin:   cfg.Hardware.SeekDnPin,
		VolumeUpPin:   cfg.Hardware.VolUpPin,
		VolumeDownPin: cfg.Hardware.VolDnPin,
		MemoryPin:     cfg.Hardware.MemoryPin,
		StereoLEDPin:  cfg.Hardware.StereoLED,
		PresetLEDPin:  cfg.Hardware.PresetLED,
		DisplayTTY:    cfg.Hardware.DisplayTTY,
		DisplayBaud:   cfg.Hardware.DisplayBaud,
	})

	return p, nil
}

// countingDevice counts successful writes so the engine knows when the
// preset list and wear figures need refreshing.
type countingDevice struct {
	nvram.Device
	writes uint64
}

func (c *countingDevice) Write(addr uint16, v byte) error {
	if err := c.Device.Write(addr, v); err != nil {
		return err
	}
	c.writes++
	return nil
}

// summariseWear reduces per-cell counters to totals and the most written
// cell. It returns nil when dev keeps no counters.
func summariseWear(dev nvram.Device) (*protocol.Wear, error) {
	wr, ok := dev.(nvram.WearReporter)
	if !ok {
		return nil, nil
	}
	cells, err := wr.Wear()
	if err != nil {
		return nil, err
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Writes != cells[j].Writes {
			return cells[i].Writes > cells[j].Writes
		}
		return cells[i].Address < cells[j].Address
	})

	w := &protocol.Wear{}
	for _, c := range cells {
		w.TotalWrites += c.Writes
	}
	if len(cells) > 0 && cells[0].Writes > 0 {
		w.HottestCell = cells[0].Address
		w.HottestWrites = cells[0].Writes
	}
	return w, nil
}
