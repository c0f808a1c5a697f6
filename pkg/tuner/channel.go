package tuner

import "fmt"

// Channel is a 10-bit channel index on the 87–108 MHz band at 25 kHz
// spacing: frequency = 87000 kHz + 25 kHz * channel.
type Channel uint16

const (
	MaxChannel   Channel = 0x3FF
	BandBottomKHz        = 87000
	SpacingKHz           = 25

	// BandTopChannel is the highest channel inside the 108 MHz band edge.
	BandTopChannel Channel = (108000 - BandBottomKHz) / SpacingKHz
)

// NormalizeChannel returns raw as a channel, or 0 when raw does not fit
// the 10-bit channel field.
func NormalizeChannel(raw uint16) Channel {
	if raw > uint16(MaxChannel) {
		return 0
	}
	return Channel(raw)
}

// FrequencyKHz returns the carrier frequency of c.
func (c Channel) FrequencyKHz() int {
	return BandBottomKHz + SpacingKHz*int(c&MaxChannel)
}

// Digits returns the four display digits of the frequency in units of
// 100 kHz: 87.0 MHz is 0,8,7,0 and 102.5 MHz is 1,0,2,5. Four adjacent
// channels share one 100 kHz step, so distinct channels may show the same
// digits.
func (c Channel) Digits() [4]uint8 {
	tenths := c.FrequencyKHz() / 100
	return [4]uint8{
		uint8(tenths / 1000 % 10),
		uint8(tenths / 100 % 10),
		uint8(tenths / 10 % 10),
		uint8(tenths % 10),
	}
}

func (c Channel) String() string {
	khz := c.FrequencyKHz()
	return fmt.Sprintf("%d.%03d MHz", khz/1000, khz%1000)
}

// ChannelForKHz returns the channel whose frequency is khz. ok is false when
// khz is off the 25 kHz grid or outside the 10-bit range.
func ChannelForKHz(khz int) (c Channel, ok bool) {
	off := khz - BandBottomKHz
	if off < 0 || off%SpacingKHz != 0 {
		return 0, false
	}
	n := off / SpacingKHz
	if n > int(MaxChannel) {
		return 0, false
	}
	return Channel(n), true
}
