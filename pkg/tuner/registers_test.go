package tuner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFieldsDoNotOverlap(t *testing.T) {
	for name, fields := range map[string][]Field{"write": WriteFields, "read": ReadFields} {
		used := map[Register]uint16{}
		for _, f := range fields {
			if used[f.Reg]&f.mask() != 0 {
				t.Errorf("%s field %s overlaps another field in %02XH", name, f, uint8(f.Reg))
			}
			used[f.Reg] |= f.mask()
		}
	}
}

func TestPowerOnImageDecode(t *testing.T) {
	img := PowerOnImage
	fields := img.Decode()

	assert.Len(t, fields, len(WriteFields))
	assert.Equal(t, uint16(1), fields["DMUTE"])
	assert.Equal(t, uint16(1), fields["SOFT_RESET"])
	assert.Equal(t, uint16(1), fields["ENABLE"])
	assert.Equal(t, uint16(0), fields["SEEK"])
	assert.Equal(t, uint16(3), fields["SPACE"])
	assert.Equal(t, uint16(8), fields["SEEKTH"])
	assert.Equal(t, uint16(2), fields["LNA_PORT_SEL"])
	assert.Equal(t, uint16(15), fields["VOLUME"])
}

func TestMirrorSetTruncates(t *testing.T) {
	var m WriteMirror
	m.Set(Volume, 0x1F)
	assert.Equal(t, uint16(0xF), m.Get(Volume))
	assert.Equal(t, uint16(0), m.Get(SeekThresh))

	m.Set(Chan, 0x3FF)
	m.SetFlag(Tune, true)
	assert.Equal(t, byte(0xFF), m[2])
	assert.Equal(t, byte(0xD0), m[3])

	var r ReadMirror
	r.Set(RSSI, 0x55)
	r.Set(FMTrue, 1)
	assert.Equal(t, map[string]uint16{
		"RDSR": 0, "STC": 0, "SF": 0, "RDSS": 0, "BLK_E": 0, "ST": 0, "READCHAN": 0,
		"RSSI": 0x55, "FM_TRUE": 1, "FM_READY": 0,
	}, r.Decode())
}

func TestFieldOutsideBlockPanics(t *testing.T) {
	var r ReadMirror
	assert.Panics(t, func() { r.Get(Volume) })
}
