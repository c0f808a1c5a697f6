package main

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dougsko/microfm/pkg/controller"
	"github.com/dougsko/microfm/pkg/display"
	"github.com/dougsko/microfm/pkg/presets"
	"github.com/dougsko/microfm/pkg/protocol"
	"github.com/dougsko/microfm/pkg/tuner"
)

type fakeRadio struct {
	status  protocol.Status
	slots   []presets.Slot
	pressed []string
	err     error
}

func (f *fakeRadio) GetStatus() (*protocol.Status, error) {
	if f.err != nil {
		return nil, f.err
	}
	s := f.status
	return &s, nil
}

func (f *fakeRadio) GetPresets() ([]presets.Slot, error) { return f.slots, nil }

func (f *fakeRadio) Press(button string) error {
	f.pressed = append(f.pressed, button)
	return f.err
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestKeysPressButtons(t *testing.T) {
	r := &fakeRadio{}
	m := newModel(r, time.Millisecond)

	keys := []tea.KeyMsg{
		{Type: tea.KeyUp},
		runes("j"),
		runes("+"),
		runes("-"),
		runes("m"),
	}
	for _, k := range keys {
		_, cmd := m.Update(k)
		require.NotNil(t, cmd, "key %s", k)
		msg := cmd()
		_, ok := msg.(pressedMsg)
		assert.True(t, ok, "key %s produced %T", k, msg)
	}

	assert.Equal(t, []string{"seek-up", "seek-down", "volume-up", "volume-down", "memory"}, r.pressed)
	for _, name := range r.pressed {
		_, err := controller.ParseButton(name)
		assert.NoError(t, err)
	}

	_, cmd := m.Update(runes("x"))
	assert.Nil(t, cmd)
}

func TestQuit(t *testing.T) {
	m := newModel(&fakeRadio{}, time.Millisecond)
	_, cmd := m.Update(runes("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestPollAndView(t *testing.T) {
	r := &fakeRadio{}
	r.status.Tuner.Channel = 120
	r.status.Controller.Display = display.Frequency(tuner.Channel(120).Digits())
	r.status.Controller.Volume = 7
	r.status.Lamps.Stereo = true
	r.slots = []presets.Slot{{Number: 1, Channel: 120}, {Number: 2, Empty: true}}

	var m tea.Model = newModel(r, time.Millisecond)
	assert.Contains(t, m.View(), "waiting for radio")

	msg := m.Init()()
	m, cmd := m.Update(msg)
	assert.NotNil(t, cmd)

	view := m.View()
	assert.Contains(t, view, r.status.Controller.Display.String())
	assert.Contains(t, view, "90.000 MHz")
	assert.Contains(t, view, "volume  7")
	assert.Contains(t, view, "empty")
	assert.False(t, strings.Contains(view, "error:"))
}

func TestPressErrorShown(t *testing.T) {
	r := &fakeRadio{err: errors.New("button queue full")}
	var m tea.Model = newModel(r, time.Millisecond)

	m, _ = m.Update(pressedMsg{button: "memory", err: r.err})
	assert.Contains(t, m.View(), "button queue full")
}
