package controller

import (
	"fmt"
	"strings"
)

// Buttons is a sampled set of front-panel inputs, one bit per button.
type Buttons uint8

const (
	SeekUp Buttons = 1 << iota
	SeekDown
	VolumeUp
	VolumeDown
	Memory

	AllButtons = SeekUp | SeekDown | VolumeUp | VolumeDown | Memory
)

var buttonNames = []struct {
	b    Buttons
	name string
}{
	{SeekUp, "seek-up"},
	{SeekDown, "seek-down"},
	{VolumeUp, "volume-up"},
	{VolumeDown, "volume-down"},
	{Memory, "memory"},
}

// Rising returns the buttons pressed in b but not in prev.
func (b Buttons) Rising(prev Buttons) Buttons {
	return b &^ prev
}

// Has reports whether every bit of x is set.
func (b Buttons) Has(x Buttons) bool {
	return b&x == x && x != 0
}

func (b Buttons) String() string {
	var names []string
	for _, bn := range buttonNames {
		if b&bn.b != 0 {
			names = append(names, bn.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "+")
}

// ParseButton maps a button name such as "volume-up" to its bit. Underscores
// and case are accepted.
func ParseButton(name string) (Buttons, error) {
	n := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-")
	for _, bn := range buttonNames {
		if bn.name == n {
			return bn.b, nil
		}
	}
	return 0, fmt.Errorf("unknown button %q", name)
}

// ButtonNames lists the accepted button names.
func ButtonNames() []string {
	names := make([]string, len(buttonNames))
	for i, bn := range buttonNames {
		names[i] = bn.name
	}
	return names
}
