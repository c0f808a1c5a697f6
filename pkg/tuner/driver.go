// Package tuner drives an RDA5807M-class FM receiver over a two-wire bus.
//
// The driver never reads back the chip's writable registers. It keeps a
// write mirror of 02H..07H and a read mirror of 0AH..0BH; every write-side
// change is made in the mirror first and then flushed as a prefix of the
// write frame. Tune and seek are one-shot bits: the driver sets them, flushes,
// and clears them locally so they are not re-sent by the next flush.
package tuner

import (
	"errors"
	"fmt"
	"time"

	"github.com/dougsko/microfm/pkg/bus"
)

const (
	// DefaultWriteAddress is the chip's sequential-access address.
	DefaultWriteAddress uint8 = 0x20
	// DefaultSettleDelay is the pause between the two initialization frames.
	DefaultSettleDelay = 5 * time.Millisecond
	// MaxVolume is the loudest level; 0 mutes.
	MaxVolume uint8 = 16
)

// ErrFrameLength is returned for flush or poll lengths outside the frame.
var ErrFrameLength = errors.New("tuner: frame length out of range")

// Direction selects the seek direction.
type Direction int

const (
	Down Direction = iota
	Up
)

func (d Direction) String() string {
	if d == Up {
		return "up"
	}
	return "down"
}

// Status is a decoded view of the read mirror.
type Status struct {
	Channel      Channel  `json:"channel"`
	FrequencyKHz int      `json:"frequency_khz"`
	Digits       [4]uint8 `json:"digits"`
	Station      bool     `json:"station"`
	Stereo       bool     `json:"stereo"`
	RSSI         uint8    `json:"rssi"`
	SeekComplete bool     `json:"seek_complete"`
	SeekFailed   bool     `json:"seek_failed"`
}

// Driver owns the register mirrors and the bus.
type Driver struct {
	bus       bus.Bus
	writeAddr uint8
	settle    time.Duration
	sleep     func(time.Duration)

	w WriteMirror
	r ReadMirror
}

// Option configures a Driver.
type Option func(*Driver)

// WithAddress sets the 8-bit write address; reads use addr|1.
func WithAddress(addr uint8) Option {
	return func(d *Driver) { d.writeAddr = addr &^ 1 }
}

// WithSettleDelay sets the pause between the initialization frames.
func WithSettleDelay(delay time.Duration) Option {
	return func(d *Driver) { d.settle = delay }
}

// WithSleeper replaces time.Sleep, mainly for tests.
func WithSleeper(sleep func(time.Duration)) Option {
	return func(d *Driver) { d.sleep = sleep }
}

// NewDriver returns a driver whose write mirror holds PowerOnImage.
func NewDriver(b bus.Bus, opts ...Option) *Driver {
	d := &Driver{
		bus:       b,
		writeAddr: DefaultWriteAddress,
		settle:    DefaultSettleDelay,
		sleep:     time.Sleep,
		w:         PowerOnImage,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Flush writes the first n bytes of the write mirror.
func (d *Driver) Flush(n int) error {
	if n < 1 || n > WriteFrameLen {
		return fmt.Errorf("%w: flush %d", ErrFrameLength, n)
	}
	frame := make([]byte, n)
	copy(frame, d.w[:n])
	if err := d.bus.Write(d.writeAddr, frame); err != nil {
		return fmt.Errorf("flush %d bytes: %w", n, err)
	}
	return nil
}

// Initialize programs the power-on image with the given volume and channel,
// waits for the chip to settle, then releases soft reset.
func (d *Driver) Initialize(volume uint8, ch Channel) error {
	d.w = PowerOnImage
	d.applyVolume(volume)
	d.armTune(ch)
	defer d.releaseTune()

	if err := d.Flush(FlushAll); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	d.sleep(d.settle)

	d.w.SetFlag(SoftReset, false)
	if err := d.Flush(FlushAll); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	return nil
}

// SetFrequency tunes to ch, cancelling any seek in progress.
func (d *Driver) SetFrequency(ch Channel) error {
	d.w.SetFlag(Seek, false)
	d.armTune(ch)
	defer d.releaseTune()

	if err := d.Flush(FlushTune); err != nil {
		return fmt.Errorf("set frequency %s: %w", ch, err)
	}
	return nil
}

// Seek starts a hardware seek in dir.
func (d *Driver) Seek(dir Direction) error {
	d.w.SetFlag(Seek, true)
	d.w.SetFlag(SeekUp, dir == Up)
	defer func() {
		d.w.SetFlag(Seek, false)
		d.w.SetFlag(SeekUp, false)
	}()

	if err := d.Flush(FlushTune); err != nil {
		return fmt.Errorf("seek %s: %w", dir, err)
	}
	return nil
}

// SetVolume sets the output level. 0 mutes; 1..16 map to gain 0..15 with
// audio on. Levels above MaxVolume are clamped.
func (d *Driver) SetVolume(level uint8) error {
	d.applyVolume(level)
	if err := d.Flush(FlushVolume); err != nil {
		return fmt.Errorf("set volume %d: %w", level, err)
	}
	return nil
}

// PollStatus reads n status bytes into the read mirror. On failure the
// mirror keeps its previous contents.
func (d *Driver) PollStatus(n int) error {
	if n < 1 || n > ReadFrameLen {
		return fmt.Errorf("%w: poll %d", ErrFrameLength, n)
	}
	frame := make([]byte, n)
	if err := d.bus.Read(d.writeAddr|1, frame); err != nil {
		return fmt.Errorf("poll status: %w", err)
	}
	copy(d.r[:], frame)
	return nil
}

func (d *Driver) applyVolume(level uint8) {
	if level > MaxVolume {
		level = MaxVolume
	}
	if level == 0 {
		d.w.SetFlag(DMUTE, false)
		return
	}
	d.w.SetFlag(DMUTE, true)
	d.w.Set(Volume, uint16(level-1))
}

func (d *Driver) armTune(ch Channel) {
	d.w.Set(Chan, uint16(NormalizeChannel(uint16(ch))))
	d.w.SetFlag(Tune, true)
}

func (d *Driver) releaseTune() {
	d.w.Set(Chan, 0)
	d.w.SetFlag(Tune, false)
}

// Channel decodes the current channel from the read mirror.
func (d *Driver) Channel() Channel {
	return NormalizeChannel(d.r.Get(ReadChan))
}

// FrequencyDigits returns the display digits of the current channel.
func (d *Driver) FrequencyDigits() [4]uint8 {
	return d.Channel().Digits()
}

// IsStation reports whether the chip considers the current channel a station.
func (d *Driver) IsStation() bool {
	return d.r.Flag(FMTrue)
}

// IsStereo reports a station received in stereo.
func (d *Driver) IsStereo() bool {
	return d.IsStation() && d.r.Flag(Stereo)
}

// RSSI returns the 7-bit signal strength.
func (d *Driver) RSSI() uint8 {
	return uint8(d.r.Get(RSSI))
}

// SeekComplete reports the seek/tune-complete flag.
func (d *Driver) SeekComplete() bool {
	return d.r.Flag(SeekTuneDone)
}

// SeekFailed reports that the last seek found no station.
func (d *Driver) SeekFailed() bool {
	return d.r.Flag(SeekFail)
}

// Status decodes the whole read mirror.
func (d *Driver) Status() Status {
	ch := d.Channel()
	return Status{
		Channel:      ch,
		FrequencyKHz: ch.FrequencyKHz(),
		Digits:       ch.Digits(),
		Station:      d.IsStation(),
		Stereo:       d.IsStereo(),
		RSSI:         d.RSSI(),
		SeekComplete: d.SeekComplete(),
		SeekFailed:   d.SeekFailed(),
	}
}

// Mirror returns copies of both register mirrors.
func (d *Driver) Mirror() (WriteMirror, ReadMirror) {
	return d.w, d.r
}
