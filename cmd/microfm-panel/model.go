package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dougsko/microfm/pkg/presets"
	"github.com/dougsko/microfm/pkg/protocol"
)

// radio is the part of the socket client the panel needs.
type radio interface {
	GetStatus() (*protocol.Status, error)
	GetPresets() ([]presets.Slot, error)
	Press(button string) error
}

// keyButtons maps keys to front panel buttons.
var keyButtons = map[string]string{
	"up":    "seek-up",
	"k":     "seek-up",
	"down":  "seek-down",
	"j":     "seek-down",
	"+":     "volume-up",
	"=":     "volume-up",
	"-":     "volume-down",
	"m":     "memory",
	" ":     "memory",
	"enter": "memory",
}

type pollMsg struct {
	status  *protocol.Status
	presets []presets.Slot
	err     error
}

type pressedMsg struct {
	button string
	err    error
}

type tickMsg time.Time

type model struct {
	radio    radio
	interval time.Duration

	status  *protocol.Status
	presets []presets.Slot
	last    string
	err     error
	width   int
}

func newModel(r radio, interval time.Duration) model {
	return model{radio: r, interval: interval}
}

func (m model) Init() tea.Cmd {
	return poll(m.radio)
}

func poll(r radio) tea.Cmd {
	return func() tea.Msg {
		status, err := r.GetStatus()
		if err != nil {
			return pollMsg{err: err}
		}
		slots, err := r.GetPresets()
		return pollMsg{status: status, presets: slots, err: err}
	}
}

func press(r radio, button string) tea.Cmd {
	return func() tea.Msg {
		return pressedMsg{button: button, err: r.Press(button)}
	}
}

func tick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		key := msg.String()
		if key == "q" || key == "ctrl+c" || key == "esc" {
			return m, tea.Quit
		}
		if button, ok := keyButtons[key]; ok {
			return m, press(m.radio, button)
		}
		return m, nil

	case pressedMsg:
		m.last = msg.button
		m.err = msg.err
		return m, poll(m.radio)

	case pollMsg:
		m.err = msg.err
		if msg.status != nil {
			m.status = msg.status
		}
		if msg.presets != nil {
			m.presets = msg.presets
		}
		return m, tick(m.interval)

	case tickMsg:
		return m, poll(m.radio)
	}
	return m, nil
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	digitsStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214")).Padding(0, 2).Border(lipgloss.RoundedBorder())
	lampOnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	lampOffStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func lamp(name string, on bool) string {
	if on {
		return lampOnStyle.Render("● " + name)
	}
	return lampOffStyle.Render("○ " + name)
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("microfm front panel") + "\n\n")

	if m.status == nil {
		b.WriteString("waiting for radio...\n")
	} else {
		s := m.status
		b.WriteString(digitsStyle.Render(s.Controller.Display.String()) + "\n")
		b.WriteString(lamp("STEREO", s.Lamps.Stereo) + "  " + lamp("PRESET", s.Lamps.Preset) + "\n\n")

		mode := s.Controller.Mode.String()
		if s.Controller.InMemory {
			mode = fmt.Sprintf("memory (station %d)", s.Controller.Station)
		}
		b.WriteString(fmt.Sprintf("tuned   %s  rssi %d\n", s.Tuner.Channel, s.Tuner.RSSI))
		b.WriteString(fmt.Sprintf("volume  %d   mode %s\n", s.Controller.Volume, mode))
	}

	if len(m.presets) > 0 {
		b.WriteString("\npresets\n")
		for _, slot := range m.presets {
			text := "empty"
			if !slot.Empty {
				text = slot.Channel.String()
			}
			b.WriteString(fmt.Sprintf("  %2d  %s\n", slot.Number, text))
		}
	}

	if m.err != nil {
		b.WriteString("\n" + errStyle.Render("error: "+m.err.Error()) + "\n")
	} else if m.last != "" {
		b.WriteString("\nlast press: " + m.last + "\n")
	}

	b.WriteString("\n" + helpStyle.Render("↑/k seek up  ↓/j seek down  +/- volume  m memory  q quit") + "\n")
	return b.String()
}
