// Package nvram provides byte-addressed non-volatile storage for the radio's
// settings and presets, plus the fixed layout used inside it.
package nvram

import (
	"errors"
	"fmt"
	"sync"
)

// ErrAddressRange is returned for addresses outside the device.
var ErrAddressRange = errors.New("nvram: address out of range")

// Device is single-byte read/write storage. Cells that were never written
// read back as the device's erased value.
type Device interface {
	Read(addr uint16) (byte, error)
	Write(addr uint16, v byte) error
}

// Cell describes one storage byte and how often it has been written.
type Cell struct {
	Address uint16 `json:"address"`
	Value   byte   `json:"value"`
	Writes  int    `json:"writes"`
}

// WearReporter is implemented by devices that track per-cell write counts.
type WearReporter interface {
	Wear() ([]Cell, error)
}

// Layout offsets, relative to the base address.
const (
	MarkerOffset  = 0
	VolumeOffset  = 1
	ChannelOffset = 2
	PresetOffset  = 4

	// MaxSlot is the highest preset slot. Slot 0 is never assigned but its
	// two bytes are still reserved.
	MaxSlot = 10

	// LayoutSize is the number of bytes the layout occupies from the base.
	LayoutSize = PresetOffset + (MaxSlot+1)*2
)

// Layout places settings and presets at fixed offsets from Base.
type Layout struct {
	Base uint16
}

// Marker is the address of the preset format marker.
func (l Layout) Marker() uint16 { return l.Base + MarkerOffset }

// Volume is the address of the saved volume byte.
func (l Layout) Volume() uint16 { return l.Base + VolumeOffset }

// Channel is the address of the saved big-endian channel.
func (l Layout) Channel() uint16 { return l.Base + ChannelOffset }

// Preset is the address of preset slot's big-endian channel.
func (l Layout) Preset(slot int) uint16 { return l.Base + PresetOffset + uint16(slot)*2 }

// ReadUint16 reads a big-endian value from two consecutive cells.
func ReadUint16(d Device, addr uint16) (uint16, error) {
	hi, err := d.Read(addr)
	if err != nil {
		return 0, err
	}
	lo, err := d.Read(addr + 1)
	if err != nil {
		return 0, err
	}
	return uint16(hi)<<8 | uint16(lo), nil
}

// WriteUint16 writes a big-endian value, high byte first.
func WriteUint16(d Device, addr uint16, v uint16) error {
	if err := d.Write(addr, byte(v>>8)); err != nil {
		return err
	}
	return d.Write(addr+1, byte(v))
}

// Memory is an in-process Device. It is used for tests and for running the
// daemon without persistence.
type Memory struct {
	mu     sync.Mutex
	data   []byte
	writes []int
}

// NewMemory returns a device of size bytes, all set to erased.
func NewMemory(size int, erased byte) *Memory {
	m := &Memory{
		data:   make([]byte, size),
		writes: make([]int, size),
	}
	for i := range m.data {
		m.data[i] = erased
	}
	return m
}

func (m *Memory) Read(addr uint16) (byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if int(addr) >= len(m.data) {
		return 0, fmt.Errorf("%w: read 0x%04x", ErrAddressRange, addr)
	}
	return m.data[addr], nil
}

func (m *Memory) Write(addr uint16, v byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if int(addr) >= len(m.data) {
		return fmt.Errorf("%w: write 0x%04x", ErrAddressRange, addr)
	}
	m.data[addr] = v
	m.writes[addr]++
	return nil
}

// Writes returns how many times addr has been written.
func (m *Memory) Writes(addr uint16) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if int(addr) >= len(m.writes) {
		return 0
	}
	return m.writes[addr]
}

// TotalWrites returns the number of writes across all cells.
func (m *Memory) TotalWrites() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.writes {
		total += n
	}
	return total
}

// Wear lists every cell that has been written at least once.
func (m *Memory) Wear() ([]Cell, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var cells []Cell
	for i, n := range m.writes {
		if n > 0 {
			cells = append(cells, Cell{Address: uint16(i), Value: m.data[i], Writes: n})
		}
	}
	return cells, nil
}
