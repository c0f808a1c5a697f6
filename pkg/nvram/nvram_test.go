package nvram

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayout(t *testing.T) {
	l := Layout{Base: 0x10}
	assert.Equal(t, uint16(0x10), l.Marker())
	assert.Equal(t, uint16(0x11), l.Volume())
	assert.Equal(t, uint16(0x12), l.Channel())
	assert.Equal(t, uint16(0x16), l.Preset(1))
	assert.Equal(t, uint16(0x28), l.Preset(MaxSlot))
	assert.Equal(t, 26, LayoutSize)
}

func TestMemory(t *testing.T) {
	m := NewMemory(8, 0xFF)

	t.Run("Erased Reads", func(t *testing.T) {
		v, err := m.Read(3)
		require.NoError(t, err)
		assert.Equal(t, byte(0xFF), v)
	})

	t.Run("Big Endian Round Trip", func(t *testing.T) {
		require.NoError(t, WriteUint16(m, 2, 0x03FF))
		hi, _ := m.Read(2)
		lo, _ := m.Read(3)
		assert.Equal(t, byte(0x03), hi)
		assert.Equal(t, byte(0xFF), lo)

		v, err := ReadUint16(m, 2)
		require.NoError(t, err)
		assert.Equal(t, uint16(0x03FF), v)
	})

	t.Run("Write Counting", func(t *testing.T) {
		require.NoError(t, m.Write(1, 7))
		require.NoError(t, m.Write(1, 7))
		assert.Equal(t, 2, m.Writes(1))
		assert.Equal(t, 4, m.TotalWrites())

		cells, err := m.Wear()
		require.NoError(t, err)
		assert.Equal(t, []Cell{
			{Address: 1, Value: 7, Writes: 2},
			{Address: 2, Value: 0x03, Writes: 1},
			{Address: 3, Value: 0xFF, Writes: 1},
		}, cells)
	})

	t.Run("Out Of Range", func(t *testing.T) {
		_, err := m.Read(8)
		assert.ErrorIs(t, err, ErrAddressRange)
		assert.ErrorIs(t, m.Write(100, 1), ErrAddressRange)
		_, err = ReadUint16(m, 7)
		assert.ErrorIs(t, err, ErrAddressRange)
	})
}

func TestSQLiteDevice(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "microfm-nvram-test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	dbPath := filepath.Join(tempDir, "nested", "nvram.db")

	t.Run("Erased Until Written", func(t *testing.T) {
		dev, err := NewSQLiteDevice(dbPath, 64, 0xFF)
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		defer dev.Close()

		v, err := dev.Read(5)
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if v != 0xFF {
			t.Errorf("Expected erased value 0xFF, got 0x%02x", v)
		}
	})

	t.Run("Values Survive Reopen", func(t *testing.T) {
		dev, err := NewSQLiteDevice(dbPath, 64, 0xFF)
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if err := WriteUint16(dev, 2, 612); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		if err := dev.Write(2, 0x02); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		dev.Close()

		dev, err = NewSQLiteDevice(dbPath, 64, 0xFF)
		if err != nil {
			t.Fatalf("Reopen failed: %v", err)
		}
		defer dev.Close()

		v, err := ReadUint16(dev, 2)
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if v != 612 {
			t.Errorf("Expected 612, got %d", v)
		}

		cells, err := dev.Wear()
		if err != nil {
			t.Fatalf("Wear failed: %v", err)
		}
		if len(cells) != 2 {
			t.Fatalf("Expected 2 written cells, got %d", len(cells))
		}
		if cells[0].Address != 2 || cells[0].Writes != 2 {
			t.Errorf("Expected address 2 written twice, got %+v", cells[0])
		}
	})

	t.Run("Erase", func(t *testing.T) {
		dev, err := NewSQLiteDevice(dbPath, 64, 0x00)
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		defer dev.Close()

		if err := dev.Erase(); err != nil {
			t.Fatalf("Erase failed: %v", err)
		}
		v, _ := dev.Read(2)
		if v != 0x00 {
			t.Errorf("Expected erased value 0x00, got 0x%02x", v)
		}
	})

	t.Run("Out Of Range", func(t *testing.T) {
		dev, err := NewSQLiteDevice(dbPath, 16, 0xFF)
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		defer dev.Close()

		if err := dev.Write(16, 1); err == nil {
			t.Error("Expected range error, got nil")
		}
	})
}
