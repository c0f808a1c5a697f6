// Package presets manages the ten station memories and the memory-manager
// interaction used to store and recall them.
package presets

import (
	"errors"
	"fmt"

	"github.com/dougsko/microfm/pkg/nvram"
	"github.com/dougsko/microfm/pkg/tuner"
)

const (
	MinSlot = 1
	MaxSlot = nvram.MaxSlot

	// EmptySlot is written to every slot by Format.
	EmptySlot uint16 = 0xFFFF
	// FormatMarker is stored at the layout base once the slots are formatted.
	FormatMarker byte = 0xA5

	noScan uint16 = 0xFFFF
)

// ErrInvalidSlot is returned for slot numbers outside MinSlot..MaxSlot.
var ErrInvalidSlot = errors.New("presets: invalid slot")

// Slot is one preset as listed by List.
type Slot struct {
	Number       int           `json:"slot"`
	Channel      tuner.Channel `json:"channel"`
	FrequencyKHz int           `json:"frequency_khz"`
	Empty        bool          `json:"empty"`
}

// Store reads and writes preset slots. It also answers whether a channel is
// stored anywhere, remembering the answer for the last channel asked about.
type Store struct {
	dev    nvram.Device
	layout nvram.Layout

	lastScanned uint16
	lastMatch   bool
	scans       int
}

// NewStore returns a store over dev using layout.
func NewStore(dev nvram.Device, layout nvram.Layout) *Store {
	return &Store{dev: dev, layout: layout, lastScanned: noScan}
}

func checkSlot(slot int) error {
	if slot < MinSlot || slot > MaxSlot {
		return fmt.Errorf("%w: %d", ErrInvalidSlot, slot)
	}
	return nil
}

// Store saves ch into slot.
func (s *Store) Store(slot int, ch tuner.Channel) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	s.Invalidate()
	if err := nvram.WriteUint16(s.dev, s.layout.Preset(slot), uint16(tuner.NormalizeChannel(uint16(ch)))); err != nil {
		return fmt.Errorf("store slot %d: %w", slot, err)
	}
	return nil
}

// Recall returns the channel in slot. Values above the channel range,
// including empty slots, recall as channel 0.
func (s *Store) Recall(slot int) (tuner.Channel, error) {
	raw, err := s.raw(slot)
	if err != nil {
		return 0, err
	}
	if raw > uint16(tuner.MaxChannel) {
		return 0, nil
	}
	return tuner.Channel(raw), nil
}

func (s *Store) raw(slot int) (uint16, error) {
	if err := checkSlot(slot); err != nil {
		return 0, err
	}
	v, err := nvram.ReadUint16(s.dev, s.layout.Preset(slot))
	if err != nil {
		return 0, fmt.Errorf("recall slot %d: %w", slot, err)
	}
	return v, nil
}

// Contains reports whether any slot holds ch. The slots are scanned from
// MaxSlot down, stopping at the first match; asking again about the same
// channel reuses the previous answer until Invalidate.
func (s *Store) Contains(ch tuner.Channel) (bool, error) {
	key := uint16(tuner.NormalizeChannel(uint16(ch)))
	if key == s.lastScanned {
		return s.lastMatch, nil
	}

	s.scans++
	match := false
	for slot := MaxSlot; slot >= MinSlot; slot-- {
		raw, err := s.raw(slot)
		if err != nil {
			return false, err
		}
		if raw == key {
			match = true
			break
		}
	}

	s.lastScanned = key
	s.lastMatch = match
	return match, nil
}

// Invalidate forces the next Contains call to rescan.
func (s *Store) Invalidate() {
	s.lastScanned = noScan
	s.lastMatch = false
}

// Scans returns how many full or partial slot scans Contains has performed.
func (s *Store) Scans() int {
	return s.scans
}

// Format marks every slot empty and writes the format marker.
func (s *Store) Format() error {
	s.Invalidate()
	for slot := MinSlot; slot <= MaxSlot; slot++ {
		if err := nvram.WriteUint16(s.dev, s.layout.Preset(slot), EmptySlot); err != nil {
			return fmt.Errorf("format slot %d: %w", slot, err)
		}
	}
	if err := s.dev.Write(s.layout.Marker(), FormatMarker); err != nil {
		return fmt.Errorf("format marker: %w", err)
	}
	return nil
}

// Formatted reports whether the format marker is present.
func (s *Store) Formatted() (bool, error) {
	v, err := s.dev.Read(s.layout.Marker())
	if err != nil {
		return false, fmt.Errorf("read format marker: %w", err)
	}
	return v == FormatMarker, nil
}

// List returns every slot in order.
func (s *Store) List() ([]Slot, error) {
	slots := make([]Slot, 0, MaxSlot)
	for n := MinSlot; n <= MaxSlot; n++ {
		raw, err := s.raw(n)
		if err != nil {
			return nil, err
		}
		slot := Slot{Number: n, Empty: raw > uint16(tuner.MaxChannel)}
		if !slot.Empty {
			slot.Channel = tuner.Channel(raw)
			slot.FrequencyKHz = slot.Channel.FrequencyKHz()
		}
		slots = append(slots, slot)
	}
	return slots, nil
}
