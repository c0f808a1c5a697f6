package bus

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/dougsko/microfm/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is a Transport that logs every bus event.
type recorder struct {
	events  []string
	rx      []byte
	failOn  string
	stopErr error
}

func (r *recorder) event(e string) error {
	r.events = append(r.events, e)
	if r.failOn == e {
		return ErrNoAck
	}
	return nil
}

func (r *recorder) Start() error { return r.event("S") }

func (r *recorder) WriteByte(b byte) error { return r.event(fmt.Sprintf("W%02X", b)) }

func (r *recorder) Receive(ack bool) (byte, error) {
	tag := "N"
	if ack {
		tag = "A"
	}
	if err := r.event("R" + tag); err != nil {
		return 0, err
	}
	v := r.rx[0]
	r.rx = r.rx[1:]
	return v, nil
}

func (r *recorder) Stop() error {
	r.events = append(r.events, "P")
	return r.stopErr
}

func TestByteBusWrite(t *testing.T) {
	t.Run("Frame Sequencing", func(t *testing.T) {
		r := &recorder{}
		b := NewByteBus(r)

		require.NoError(t, b.Write(0x20, []byte{0xD0, 0x07, 0x00}))
		assert.Equal(t, []string{"S", "W20", "WD0", "W07", "W00", "P"}, r.events)
	})

	t.Run("Empty Frame", func(t *testing.T) {
		r := &recorder{}
		err := NewByteBus(r).Write(0x20, nil)
		assert.ErrorIs(t, err, ErrEmptyFrame)
		assert.Empty(t, r.events)
	})

	t.Run("Address Not Acknowledged Still Stops", func(t *testing.T) {
		r := &recorder{failOn: "W22"}
		err := NewByteBus(r).Write(0x22, []byte{1})
		assert.ErrorIs(t, err, ErrNoAck)
		assert.Equal(t, []string{"S", "W22", "P"}, r.events)
	})

	t.Run("Stop Error Reported", func(t *testing.T) {
		r := &recorder{stopErr: errors.New("line stuck")}
		err := NewByteBus(r).Write(0x20, []byte{1})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "stop")
	})
}

func TestByteBusRead(t *testing.T) {
	t.Run("Last Byte Is Nacked", func(t *testing.T) {
		r := &recorder{rx: []byte{0x41, 0x2C, 0x3D, 0x80}}
		frame := make([]byte, 4)

		require.NoError(t, NewByteBus(r).Read(0x21, frame))
		assert.Equal(t, []byte{0x41, 0x2C, 0x3D, 0x80}, frame)
		assert.Equal(t, []string{"S", "W21", "RA", "RA", "RA", "RN", "P"}, r.events)
	})

	t.Run("Single Byte Read", func(t *testing.T) {
		r := &recorder{rx: []byte{0x7F}}
		frame := make([]byte, 1)

		require.NoError(t, NewByteBus(r).Read(0x21, frame))
		assert.Equal(t, []string{"S", "W21", "RN", "P"}, r.events)
	})

	t.Run("Receive Failure", func(t *testing.T) {
		r := &recorder{rx: []byte{1, 2}, failOn: "RN"}
		err := NewByteBus(r).Read(0x21, make([]byte, 2))
		assert.ErrorIs(t, err, ErrNoAck)
		assert.Contains(t, err.Error(), "byte 1")
	})
}

type nopBus struct{ err error }

func (n nopBus) Write(uint8, []byte) error { return n.err }
func (n nopBus) Read(uint8, []byte) error  { return n.err }

func TestTraced(t *testing.T) {
	var buf bytes.Buffer
	l := logging.NewWriterLogger(&buf, logging.LevelDebug, false)
	tr := NewTraced(nopBus{}, l.For("bus"))

	require.NoError(t, tr.Write(0x20, []byte{0xC0, 0x01}))
	require.NoError(t, tr.Read(0x21, []byte{0x00}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "W 0x20 C0 01")
	assert.Contains(t, lines[1], "R 0x21 00")
}
