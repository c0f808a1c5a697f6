package tuner

import "fmt"

// Register is a 16-bit chip register address.
type Register uint8

const (
	RegPower   Register = 0x02
	RegChannel Register = 0x03
	RegConfig4 Register = 0x04
	RegVolume  Register = 0x05
	RegConfig6 Register = 0x06
	RegConfig7 Register = 0x07
	RegStatusA Register = 0x0A
	RegStatusB Register = 0x0B
)

// Frame sizes. Writes start at 02H and reads at 0AH; the chip advances its
// register pointer one byte at a time, high byte first.
const (
	WriteFrameLen = 12
	ReadFrameLen  = 4

	writeBase = RegPower
	readBase  = RegStatusA
)

// Prefix lengths used by the driver's partial flushes.
const (
	FlushTune   = 4  // 02H..03H: seek/tune control and channel
	FlushVolume = 8  // 02H..05H: adds volume
	FlushAll    = 12 // 02H..07H
)

// Field is a named bit range inside one register.
type Field struct {
	Name  string
	Reg   Register
	Shift uint8
	Width uint8
}

func (f Field) mask() uint16 {
	return uint16(1<<f.Width-1) << f.Shift
}

func (f Field) String() string {
	return fmt.Sprintf("%s(%02XH[%d:%d])", f.Name, uint8(f.Reg), f.Shift+f.Width-1, f.Shift)
}

// Write-side fields.
var (
	DHIZ       = Field{"DHIZ", RegPower, 15, 1}
	DMUTE      = Field{"DMUTE", RegPower, 14, 1} // 1 = audio on
	Mono       = Field{"MONO", RegPower, 13, 1}
	Bass       = Field{"BASS", RegPower, 12, 1}
	RCLKNonCal = Field{"RCLK_NON_CAL", RegPower, 11, 1}
	RCLKDirect = Field{"RCLK_DIRECT", RegPower, 10, 1}
	SeekUp     = Field{"SEEKUP", RegPower, 9, 1}
	Seek       = Field{"SEEK", RegPower, 8, 1} // one-shot
	SeekMode   = Field{"SKMODE", RegPower, 7, 1}
	ClkMode    = Field{"CLK_MODE", RegPower, 4, 3}
	RDSEnable  = Field{"RDS_EN", RegPower, 3, 1}
	NewMethod  = Field{"NEW_METHOD", RegPower, 2, 1}
	SoftReset  = Field{"SOFT_RESET", RegPower, 1, 1}
	Enable     = Field{"ENABLE", RegPower, 0, 1}

	Chan       = Field{"CHAN", RegChannel, 6, 10}
	DirectMode = Field{"DIRECT_MODE", RegChannel, 5, 1}
	Tune       = Field{"TUNE", RegChannel, 4, 1} // one-shot
	Band       = Field{"BAND", RegChannel, 2, 2}
	Space      = Field{"SPACE", RegChannel, 0, 2}

	STCIntEnable = Field{"STCIEN", RegConfig4, 14, 1}
	DeEmphasis   = Field{"DE", RegConfig4, 11, 1}
	SoftMute     = Field{"SOFTMUTE_EN", RegConfig4, 9, 1}
	AFCDisable   = Field{"AFCD", RegConfig4, 8, 1}

	IntMode    = Field{"INT_MODE", RegVolume, 15, 1}
	SeekThresh = Field{"SEEKTH", RegVolume, 8, 4}
	LNAPortSel = Field{"LNA_PORT_SEL", RegVolume, 6, 2}
	LNAICSel   = Field{"LNA_ICSEL_BIT", RegVolume, 4, 2}
	Volume     = Field{"VOLUME", RegVolume, 0, 4}
)

// Read-side fields.
var (
	RDSReady     = Field{"RDSR", RegStatusA, 15, 1}
	SeekTuneDone = Field{"STC", RegStatusA, 14, 1}
	SeekFail     = Field{"SF", RegStatusA, 13, 1}
	RDSSync      = Field{"RDSS", RegStatusA, 12, 1}
	BlockE       = Field{"BLK_E", RegStatusA, 11, 1}
	Stereo       = Field{"ST", RegStatusA, 10, 1}
	ReadChan     = Field{"READCHAN", RegStatusA, 0, 10}

	RSSI    = Field{"RSSI", RegStatusB, 9, 7}
	FMTrue  = Field{"FM_TRUE", RegStatusB, 8, 1} // current channel is a station
	FMReady = Field{"FM_READY", RegStatusB, 7, 1}
)

// WriteFields and ReadFields list the named fields of each block in
// register order, most significant bit first.
var (
	WriteFields = []Field{
		DHIZ, DMUTE, Mono, Bass, RCLKNonCal, RCLKDirect, SeekUp, Seek, SeekMode,
		ClkMode, RDSEnable, NewMethod, SoftReset, Enable,
		Chan, DirectMode, Tune, Band, Space,
		STCIntEnable, DeEmphasis, SoftMute, AFCDisable,
		IntMode, SeekThresh, LNAPortSel, LNAICSel, Volume,
	}
	ReadFields = []Field{
		RDSReady, SeekTuneDone, SeekFail, RDSSync, BlockE, Stereo, ReadChan,
		RSSI, FMTrue, FMReady,
	}
)

// PowerOnImage is the write frame programmed at startup: audio output
// enabled, muted, bass boost, new demodulation method, soft reset, 87–108
// MHz band at 25 kHz spacing, seek threshold 8, LNA input 2, full gain.
var PowerOnImage = WriteMirror{
	0xD0, 0x07,
	0x00, 0x03,
	0x04, 0x00,
	0x88, 0x8F,
	0x00, 0x00,
	0x42, 0x02,
}

func getField(b []byte, base Register, f Field) uint16 {
	off := fieldOffset(b, base, f)
	word := uint16(b[off])<<8 | uint16(b[off+1])
	return (word & f.mask()) >> f.Shift
}

func setField(b []byte, base Register, f Field, v uint16) {
	off := fieldOffset(b, base, f)
	word := uint16(b[off])<<8 | uint16(b[off+1])
	word = word&^f.mask() | (v<<f.Shift)&f.mask()
	b[off] = byte(word >> 8)
	b[off+1] = byte(word)
}

func fieldOffset(b []byte, base Register, f Field) int {
	off := int(f.Reg-base) * 2
	if f.Reg < base || off+1 >= len(b) {
		panic(fmt.Sprintf("tuner: field %s outside register block starting at %02XH", f, uint8(base)))
	}
	return off
}

// WriteMirror shadows the chip's writable registers 02H..07H in wire order.
type WriteMirror [WriteFrameLen]byte

// Get returns the value of f.
func (m *WriteMirror) Get(f Field) uint16 { return getField(m[:], writeBase, f) }

// Set stores v into f, truncating to the field width.
func (m *WriteMirror) Set(f Field, v uint16) { setField(m[:], writeBase, f, v) }

// SetFlag sets a one-bit field.
func (m *WriteMirror) SetFlag(f Field, on bool) {
	var v uint16
	if on {
		v = 1
	}
	m.Set(f, v)
}

// Flag reports whether a one-bit field is set.
func (m *WriteMirror) Flag(f Field) bool { return m.Get(f) != 0 }

// Decode returns every field in WriteFields keyed by name.
func (m *WriteMirror) Decode() map[string]uint16 {
	out := make(map[string]uint16, len(WriteFields))
	for _, f := range WriteFields {
		out[f.Name] = m.Get(f)
	}
	return out
}

// ReadMirror shadows the chip's status registers 0AH..0BH in wire order.
type ReadMirror [ReadFrameLen]byte

// Get returns the value of f.
func (m *ReadMirror) Get(f Field) uint16 { return getField(m[:], readBase, f) }

// Set stores v into f. Only the chip simulation writes read-side fields.
func (m *ReadMirror) Set(f Field, v uint16) { setField(m[:], readBase, f, v) }

// Flag reports whether a one-bit field is set.
func (m *ReadMirror) Flag(f Field) bool { return m.Get(f) != 0 }

// Decode returns every field in ReadFields keyed by name.
func (m *ReadMirror) Decode() map[string]uint16 {
	out := make(map[string]uint16, len(ReadFields))
	for _, f := range ReadFields {
		out[f.Name] = m.Get(f)
	}
	return out
}
