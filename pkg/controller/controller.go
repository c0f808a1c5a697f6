// Package controller runs the radio's main loop: it turns button edges into
// tuner commands, switches the display between frequency, volume and memory
// views, and defers saving volume and channel until input settles.
package controller

import (
	"errors"
	"fmt"
	"time"

	"github.com/dougsko/microfm/pkg/display"
	"github.com/dougsko/microfm/pkg/logging"
	"github.com/dougsko/microfm/pkg/nvram"
	"github.com/dougsko/microfm/pkg/presets"
	"github.com/dougsko/microfm/pkg/tuner"
)

// Mode is the outer display mode.
type Mode int

const (
	ModeFrequency Mode = iota
	ModeVolume
)

func (m Mode) String() string {
	if m == ModeVolume {
		return "volume"
	}
	return "frequency"
}

// Volume is an output level, 0 (muted) to MaxVolume.
type Volume uint8

const MaxVolume Volume = Volume(tuner.MaxVolume)

// Tuner is the part of the receiver driver the controller uses.
type Tuner interface {
	Initialize(volume uint8, ch tuner.Channel) error
	SetFrequency(ch tuner.Channel) error
	Seek(dir tuner.Direction) error
	SetVolume(level uint8) error
	PollStatus(n int) error
	Channel() tuner.Channel
	FrequencyDigits() [4]uint8
	IsStation() bool
	IsStereo() bool
}

// Indicators drives the two status lamps.
type Indicators interface {
	SetStereo(on bool) error
	SetPreset(on bool) error
}

type noIndicators struct{}

func (noIndicators) SetStereo(bool) error { return nil }
func (noIndicators) SetPreset(bool) error { return nil }

// Settings holds the loop's thresholds, counted in ticks.
type Settings struct {
	VolumeSaveTicks  int
	ChannelSaveTicks int
	MemoryIdleTicks  int
	RecallSettle     time.Duration
	FormatOnBoot     bool
	Sleep            func(time.Duration)
}

// DefaultSettings returns the stock thresholds.
func DefaultSettings() Settings {
	return Settings{
		VolumeSaveTicks:  350,
		ChannelSaveTicks: 1000,
		MemoryIdleTicks:  2000,
		RecallSettle:     50 * time.Millisecond,
		FormatOnBoot:     true,
		Sleep:            time.Sleep,
	}
}

// State is the controller's observable state.
type State struct {
	Mode     Mode           `json:"mode"`
	Volume   Volume         `json:"volume"`
	Pending  int            `json:"pending"`
	Display  display.Buffer `json:"display"`
	Station  int            `json:"station"`
	InMemory bool           `json:"in_memory"`
	Stereo   bool           `json:"stereo"`
	Preset   bool           `json:"preset"`
}

// Controller owns the mode state machine. It is not safe for concurrent use;
// one goroutine calls Boot once and then Tick periodically.
type Controller struct {
	tuner  Tuner
	dev    nvram.Device
	layout nvram.Layout
	store  *presets.Store
	ind    Indicators
	set    Settings
	log    *logging.Component

	state   State
	prev    Buttons
	session *presets.Session
}

// New wires a controller. ind may be nil.
func New(t Tuner, dev nvram.Device, layout nvram.Layout, ind Indicators, set Settings) *Controller {
	if ind == nil {
		ind = noIndicators{}
	}
	if set.Sleep == nil {
		set.Sleep = time.Sleep
	}
	return &Controller{
		tuner:  t,
		dev:    dev,
		layout: layout,
		store:  presets.NewStore(dev, layout),
		ind:    ind,
		set:    set,
		log:    logging.For("controller"),
		state:  State{Station: presets.MinSlot},
	}
}

// Presets returns the preset store the controller uses.
func (c *Controller) Presets() *presets.Store { return c.store }

// State returns a copy of the current state.
func (c *Controller) State() State { return c.state }

// LoadSettings reads the saved volume and channel. Out-of-range values,
// including erased storage, load as 0.
func LoadSettings(dev nvram.Device, layout nvram.Layout) (Volume, tuner.Channel, error) {
	v, err := dev.Read(layout.Volume())
	if err != nil {
		return 0, 0, fmt.Errorf("load volume: %w", err)
	}
	vol := Volume(v)
	if vol > MaxVolume {
		vol = 0
	}

	raw, err := nvram.ReadUint16(dev, layout.Channel())
	if err != nil {
		return 0, 0, fmt.Errorf("load channel: %w", err)
	}
	ch := tuner.Channel(raw)
	if raw > uint16(tuner.MaxChannel) {
		ch = 0
	}
	return vol, ch, nil
}

// Boot loads the saved settings, programs the tuner and takes the first
// status reading. sample is the button state at power-on, so buttons held
// during boot do not count as presses.
func (c *Controller) Boot(sample Buttons) error {
	if c.set.FormatOnBoot {
		formatted, err := c.store.Formatted()
		if err != nil {
			return fmt.Errorf("boot: %w", err)
		}
		if !formatted {
			c.log.Infof("preset area not formatted, marking all slots empty")
			if err := c.store.Format(); err != nil {
				return fmt.Errorf("boot: %w", err)
			}
		}
	}

	vol, ch, err := LoadSettings(c.dev, c.layout)
	if err != nil {
		return fmt.Errorf("boot: %w", err)
	}
	if err := c.tuner.Initialize(uint8(vol), ch); err != nil {
		return fmt.Errorf("boot: %w", err)
	}

	c.state = State{
		Mode:    ModeFrequency,
		Volume:  vol,
		Station: presets.MinSlot,
	}
	c.prev = sample
	c.session = nil

	if err := c.tuner.PollStatus(tuner.ReadFrameLen); err != nil {
		c.log.Warnf("initial status poll failed: %v", err)
	}
	c.state.Display = display.Frequency(c.tuner.FrequencyDigits())
	c.log.Infof("booted at %s, volume %d", ch, vol)
	return nil
}

// Tick runs one iteration of the main loop with the current button sample.
// Errors from the bus or storage are collected and returned; the loop state
// stays consistent and the next tick proceeds normally.
func (c *Controller) Tick(sample Buttons) error {
	edges := sample.Rising(c.prev)
	c.prev = sample

	var errs []error
	note := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if c.session != nil {
		done := c.stepSession(edges, note)
		if !done {
			return errors.Join(errs...)
		}
	} else if c.handleEdges(edges, note) {
		return errors.Join(errs...)
	}

	note(c.tuner.PollStatus(tuner.ReadFrameLen))
	c.updateIndicators(note)

	switch c.state.Mode {
	case ModeVolume:
		c.state.Pending++
		if c.state.Pending > c.set.VolumeSaveTicks {
			note(c.flushVolume())
			c.state.Pending = 0
			c.state.Mode = ModeFrequency
			c.state.Display = display.Frequency(c.tuner.FrequencyDigits())
		}
	default:
		c.state.Display = display.Frequency(c.tuner.FrequencyDigits())
		if c.state.Pending > 0 {
			c.state.Pending++
			if c.state.Pending > c.set.ChannelSaveTicks {
				c.state.Pending = 0
				note(c.flushChannel())
			}
		}
	}
	return errors.Join(errs...)
}

// handleEdges applies outer-loop edges in panel order. It reports whether
// the memory manager was entered, which ends the tick.
func (c *Controller) handleEdges(edges Buttons, note func(error)) bool {
	if edges.Has(SeekUp) {
		c.seek(tuner.Up, note)
	}
	if edges.Has(SeekDown) {
		c.seek(tuner.Down, note)
	}
	if edges.Has(VolumeUp) {
		c.changeVolume(+1, note)
	}
	if edges.Has(VolumeDown) {
		c.changeVolume(-1, note)
	}
	if edges.Has(Memory) {
		c.enterMemory(note)
		return true
	}
	return false
}

func (c *Controller) seek(dir tuner.Direction, note func(error)) {
	if c.state.Mode == ModeVolume {
		note(c.flushVolume())
	}
	c.state.Mode = ModeFrequency
	c.state.Display.Decimal = true
	c.state.Pending = 1
	note(c.tuner.Seek(dir))
	c.log.Debugf("seek %s", dir)
}

func (c *Controller) changeVolume(delta int, note func(error)) {
	if c.state.Mode == ModeFrequency && c.state.Pending > 0 {
		c.state.Pending = 0
		note(c.flushChannel())
	}

	v := int(c.state.Volume) + delta
	if v < 0 {
		v = 0
	}
	if v > int(MaxVolume) {
		v = int(MaxVolume)
	}
	c.state.Volume = Volume(v)
	c.state.Mode = ModeVolume
	c.state.Pending = 0
	c.state.Display = display.Volume(uint8(c.state.Volume))
	note(c.tuner.SetVolume(uint8(c.state.Volume)))
}

func (c *Controller) enterMemory(note func(error)) {
	if c.state.Mode == ModeFrequency && c.state.Pending > 0 {
		c.state.Pending = 0
		note(c.flushChannel())
	} else {
		note(c.flushVolume())
	}
	c.state.Pending = 0

	cfg := presets.DefaultSessionConfig()
	cfg.IdleTicks = c.set.MemoryIdleTicks
	cfg.Sleep = c.set.Sleep
	c.session = presets.NewSession(c.store, c.state.Station, c.tuner.Channel(), cfg)
	c.state.InMemory = true
	c.state.Display = c.session.Display()
}

// stepSession runs one memory-manager tick. It reports true once the
// session has finished and the outer loop has been restored.
func (c *Controller) stepSession(edges Buttons, note func(error)) bool {
	out, done, err := c.session.Step(presets.Keys{
		Next:   edges.Has(SeekUp),
		Prev:   edges.Has(SeekDown),
		Store:  edges.Has(VolumeUp),
		Recall: edges.Has(VolumeDown),
		Cancel: edges.Has(Memory),
	})
	note(err)
	c.state.Station = c.session.Station()

	if !done {
		c.state.Display = c.session.Display()
		note(c.tuner.PollStatus(tuner.ReadFrameLen))
		c.state.Stereo = c.tuner.IsStereo()
		note(c.ind.SetStereo(c.state.Stereo))
		return false
	}

	c.log.Infof("memory manager %s at station %d", out.Exit, out.Station)
	c.session = nil
	c.state.InMemory = false

	if out.Recalled() {
		note(c.tuner.SetFrequency(out.Channel))
		c.set.Sleep(c.set.RecallSettle)
		c.state.Pending = 1
	}

	c.store.Invalidate()
	note(c.tuner.PollStatus(tuner.ReadFrameLen))
	c.state.Display = display.Frequency(c.tuner.FrequencyDigits())
	c.state.Mode = ModeFrequency
	return true
}

func (c *Controller) updateIndicators(note func(error)) {
	c.state.Stereo = c.tuner.IsStereo()
	note(c.ind.SetStereo(c.state.Stereo))

	preset := false
	if c.tuner.IsStation() {
		match, err := c.store.Contains(c.tuner.Channel())
		if err != nil {
			note(err)
			return
		}
		preset = match
	}
	c.state.Preset = preset
	note(c.ind.SetPreset(preset))
}

// flushVolume saves the volume if it differs from the stored byte.
func (c *Controller) flushVolume() error {
	stored, err := c.dev.Read(c.layout.Volume())
	if err != nil {
		return fmt.Errorf("flush volume: %w", err)
	}
	if stored == byte(c.state.Volume) {
		return nil
	}
	if err := c.dev.Write(c.layout.Volume(), byte(c.state.Volume)); err != nil {
		return fmt.Errorf("flush volume: %w", err)
	}
	c.log.Debugf("volume %d saved", c.state.Volume)
	return nil
}

// flushChannel saves the decoded channel if it differs from the stored one.
func (c *Controller) flushChannel() error {
	ch := c.tuner.Channel()
	stored, err := nvram.ReadUint16(c.dev, c.layout.Channel())
	if err != nil {
		return fmt.Errorf("flush channel: %w", err)
	}
	if stored == uint16(ch) {
		return nil
	}
	if err := nvram.WriteUint16(c.dev, c.layout.Channel(), uint16(ch)); err != nil {
		return fmt.Errorf("flush channel: %w", err)
	}
	c.log.Debugf("channel %s saved", ch)
	return nil
}
