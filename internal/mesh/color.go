package mesh

import "github.com/chewxy/math32"

// Color is a linear RGB color with channels in [0, 1].
type Color struct {
	R, G, B float32
}

// RGB8 truncates each channel to a byte with floor(channel*255).
// Channels outside [0, 1] are clamped first.
func (c Color) RGB8() [3]byte {
	return [3]byte{channelByte(c.R), channelByte(c.G), channelByte(c.B)}
}

func channelByte(v float32) byte {
	if !(v > 0) { // also catches NaN
		return 0
	}
	if v >= 1 {
		return 255
	}
	return byte(math32.Floor(v * 255))
}
