/*
	Package stacktile provides the core types shared by the tile export,
	resampling, and scale pyramid packages: packed ARGB pixels, fixed-size
	tile buffers, volume geometry, and leveled logging.
*/
package stacktile

// Pixel is a packed 32-bit ARGB color value with 8 bits per channel,
// alpha in the high byte.  It is the unit of all pixel buffers in this
// repository.
type Pixel uint32

const rgbMask = 0x00FFFFFF

// ARGB packs the given channel values into a Pixel.
func ARGB(a, r, g, b uint8) Pixel {
	return Pixel(uint32(a)<<24 | uint32(r)<<16 | uint32(g)<<8 | uint32(b))
}

// Background returns the pixel used for missing or padded data: an RGB
// gray of the given value with zero alpha, matching how background is
// compared during emptiness detection.
func Background(value uint8) Pixel {
	return ARGB(0, value, value, value)
}

// RGB returns the pixel with the alpha channel masked off.  Emptiness
// tests compare RGB only.
func (p Pixel) RGB() uint32 {
	return uint32(p) & rgbMask
}

func (p Pixel) Alpha() uint8 {
	return uint8(p >> 24)
}

func (p Pixel) Red() uint8 {
	return uint8(p >> 16)
}

func (p Pixel) Green() uint8 {
	return uint8(p >> 8)
}

func (p Pixel) Blue() uint8 {
	return uint8(p)
}

// Gray returns the 8-bit luma of the pixel using the BT.601 weights,
// the conversion applied when tiles are exported with a grayscale pixel
// type.
func (p Pixel) Gray() uint8 {
	r := uint32(p.Red())
	g := uint32(p.Green())
	b := uint32(p.Blue())
	return uint8((299*r + 587*g + 114*b + 500) / 1000)
}
