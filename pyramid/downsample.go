/*
	Package pyramid derives the scale pyramid of an existing scale level
	0 tile set.  Each level s tile is the 2:1 box-filtered reduction of a
	2 x 2 block of level s-1 tiles.  Sections are processed
	independently, so pyramid generation can be partitioned by z-range
	once the level 0 export of a section is complete.
*/
package pyramid

import (
	"github.com/janelia-flyem/stacktile/stacktile"
)

// downsample reduces src, which must be exactly twice the target's size
// in both axes, into dst with a 2 x 2 box filter per channel, alpha
// included.  It returns true if any result pixel's RGB differs from the
// background.
func downsample(src, dst *stacktile.Tile, bg stacktile.Pixel) bool {
	bgRGB := bg.RGB()
	notEmpty := false
	for y := 0; y < dst.Height; y++ {
		row0 := src.Pix[2*y*src.Width:]
		row1 := src.Pix[(2*y+1)*src.Width:]
		out := dst.Pix[y*dst.Width:]
		for x := 0; x < dst.Width; x++ {
			p0 := row0[2*x]
			p1 := row0[2*x+1]
			p2 := row1[2*x]
			p3 := row1[2*x+1]
			a := (uint32(p0.Alpha()) + uint32(p1.Alpha()) + uint32(p2.Alpha()) + uint32(p3.Alpha()) + 2) >> 2
			r := (uint32(p0.Red()) + uint32(p1.Red()) + uint32(p2.Red()) + uint32(p3.Red()) + 2) >> 2
			g := (uint32(p0.Green()) + uint32(p1.Green()) + uint32(p2.Green()) + uint32(p3.Green()) + 2) >> 2
			b := (uint32(p0.Blue()) + uint32(p1.Blue()) + uint32(p2.Blue()) + uint32(p3.Blue()) + 2) >> 2
			p := stacktile.ARGB(uint8(a), uint8(r), uint8(g), uint8(b))
			out[x] = p
			if p.RGB() != bgRGB {
				notEmpty = true
			}
		}
	}
	return notEmpty
}
