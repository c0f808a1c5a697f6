// Package display holds the four-digit value buffer shown on the front panel
// and the sinks that render it.
package display

import (
	"strings"
	"sync"
)

// Blank turns a digit off.
const Blank byte = 0xFF

// Decimal flag values as carried on the wire.
const (
	DecimalOn  byte = 0x80
	DecimalOff byte = 0x00
)

// Buffer is the display value: four digit values (0..9 or Blank) and the
// decimal point shown after the third digit.
type Buffer struct {
	Digits  [4]byte `json:"digits"`
	Decimal bool    `json:"decimal"`
}

// Frequency shows the tuned frequency in 100 kHz units with the decimal on.
func Frequency(digits [4]uint8) Buffer {
	return Buffer{Digits: [4]byte{digits[0], digits[1], digits[2], digits[3]}, Decimal: true}
}

// Volume shows a 0..16 level on the two rightmost digits.
func Volume(level uint8) Buffer {
	b := Buffer{Digits: [4]byte{Blank, Blank, Blank, level % 10}}
	if level/10 != 0 {
		b.Digits[2] = 1
	}
	return b
}

// Station shows the memory manager's station number as "5 n", where the 5
// reads as an S.
func Station(n int) Buffer {
	b := Buffer{Digits: [4]byte{5, Blank, Blank, byte(n % 10)}}
	if n == 10 {
		b.Digits[2] = 1
	}
	return b
}

// DecimalFlag returns the wire form of the decimal point.
func (b Buffer) DecimalFlag() byte {
	if b.Decimal {
		return DecimalOn
	}
	return DecimalOff
}

// String renders the buffer as the panel would show it. A leading zero is
// suppressed.
func (b Buffer) String() string {
	var sb strings.Builder
	for i, d := range b.Digits {
		switch {
		case i == 0 && d == 0:
			sb.WriteByte(' ')
		case d <= 9:
			sb.WriteByte('0' + d)
		default:
			sb.WriteByte(' ')
		}
		if i == 2 && b.Decimal {
			sb.WriteByte('.')
		}
	}
	return sb.String()
}

// Sink receives every display update.
type Sink interface {
	Show(b Buffer) error
}

// Memory keeps the most recent buffer and counts updates.
type Memory struct {
	mu      sync.Mutex
	current Buffer
	updates int
}

func (m *Memory) Show(b Buffer) error {
	m.mu.Lock()
	m.current = b
	m.updates++
	m.mu.Unlock()
	return nil
}

// Current returns the last buffer shown.
func (m *Memory) Current() Buffer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Updates returns how many buffers have been shown.
func (m *Memory) Updates() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updates
}
