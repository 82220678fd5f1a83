/*
	Package resample exposes a source volume as an isotropic, cropped
	view.  The view applies the inverse of an affine that shifts the crop
	origin to zero and stretches z by the stack's resolution anisotropy,
	then rasterizes at integer view coordinates with the configured
	interpolation.
*/
package resample

import (
	"fmt"
	"math"

	"github.com/janelia-flyem/stacktile/stacktile"
)

// Config describes how a source volume is resampled.  Width, Height, and
// Depth are the full stack dimensions in scale level 0 pixels; OffsetX,
// OffsetY, and OffsetZ give the crop origin in the same coordinates.
type Config struct {
	Source stacktile.VoxelSource

	Width, Height, Depth int64

	// ScaleLevel is the pyramid level the source is read at.
	ScaleLevel int

	// ResXY and ResZ are the stack resolutions.  Only their ratio
	// matters: z is stretched by ResZ / ResXY so resliced exports come
	// out isotropic.  Zero values default to 1.
	ResXY, ResZ float64

	OffsetX, OffsetY, OffsetZ int64

	Interpolation stacktile.Interpolation
}

// View is a resampled, cropped window over a source volume.  It
// satisfies stacktile.VoxelSource; view coordinates start at zero.
type View struct {
	src    stacktile.VoxelSource
	bounds stacktile.Bounds
	interp stacktile.Interpolation

	// Inverse transform: source = (x + offX, y + offY, (z + offZ) / scaleZ).
	offX, offY, offZ float64
	scaleZ           float64
}

// NewView returns a resampled view per the config.
func NewView(c Config) (*View, error) {
	if c.Source == nil {
		return nil, fmt.Errorf("resample view requires a source volume")
	}
	if c.Width <= 0 || c.Height <= 0 || c.Depth <= 0 {
		return nil, fmt.Errorf("bad view source dimensions %d x %d x %d", c.Width, c.Height, c.Depth)
	}
	resXY := c.ResXY
	if resXY == 0 {
		resXY = 1
	}
	resZ := c.ResZ
	if resZ == 0 {
		resZ = 1
	}
	scaleXY := 1.0 / float64(int64(1)<<uint(c.ScaleLevel))
	scaleZ := resZ / resXY * scaleXY

	v := &View{
		src:    c.Source,
		interp: c.Interpolation,
		offX:   float64(c.OffsetX) * scaleXY,
		offY:   float64(c.OffsetY) * scaleXY,
		offZ:   float64(c.OffsetZ) * scaleZ,
		scaleZ: scaleZ,
	}
	v.bounds = stacktile.Bounds{
		Max: [3]int64{
			int64(scaleXY*float64(c.Width)-v.offX) - 1,
			int64(scaleXY*float64(c.Height)-v.offY) - 1,
			int64(scaleZ*float64(c.Depth)-v.offZ) - 1,
		},
	}
	return v, nil
}

// Bounds returns the view extent: zero-origin, clipped to the
// transformed source stack.
func (v *View) Bounds() stacktile.Bounds {
	return v.bounds
}

// Access returns an access handle sampling with the view's
// interpolation.  The interpolation choice is made here, once, so the
// per-pixel path carries no dispatch.
func (v *View) Access() stacktile.VoxelAccess {
	if v.interp == stacktile.Linear {
		return &linearAccess{view: v, src: v.src.Access(), srcMax: v.src.Bounds().Max}
	}
	return &nearestAccess{view: v, src: v.src.Access(), srcMax: v.src.Bounds().Max}
}

// source maps a view coordinate to continuous source coordinates.
func (v *View) source(x, y, z int64) (sx, sy, sz float64) {
	return float64(x) + v.offX, float64(y) + v.offY, (float64(z) + v.offZ) / v.scaleZ
}

func clamp(v, max int64) int64 {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}

// nearestAccess samples the nearest source pixel.  Positions update
// lazily: stepping only moves the view coordinate, and the source access
// is repositioned on Get, where the source's own tile residency check
// keeps sequential scans cheap.
type nearestAccess struct {
	view   *View
	src    stacktile.VoxelAccess
	srcMax [3]int64
	pos    [3]int64
}

func (a *nearestAccess) SetPosition(x, y, z int64) {
	a.pos[0], a.pos[1], a.pos[2] = x, y, z
}

func (a *nearestAccess) Fwd(axis int) {
	a.pos[axis]++
}

func (a *nearestAccess) Get() stacktile.Pixel {
	sx, sy, sz := a.view.source(a.pos[0], a.pos[1], a.pos[2])
	a.src.SetPosition(
		clamp(int64(math.Floor(sx+0.5)), a.srcMax[0]),
		clamp(int64(math.Floor(sy+0.5)), a.srcMax[1]),
		clamp(int64(math.Floor(sz+0.5)), a.srcMax[2]))
	return a.src.Get()
}

func (a *nearestAccess) Err() error {
	return a.src.Err()
}

// linearAccess blends the eight neighboring source pixels per channel,
// alpha included.
type linearAccess struct {
	view   *View
	src    stacktile.VoxelAccess
	srcMax [3]int64
	pos    [3]int64
}

func (a *linearAccess) SetPosition(x, y, z int64) {
	a.pos[0], a.pos[1], a.pos[2] = x, y, z
}

func (a *linearAccess) Fwd(axis int) {
	a.pos[axis]++
}

func (a *linearAccess) sample(x, y, z int64) stacktile.Pixel {
	a.src.SetPosition(clamp(x, a.srcMax[0]), clamp(y, a.srcMax[1]), clamp(z, a.srcMax[2]))
	return a.src.Get()
}

func (a *linearAccess) Get() stacktile.Pixel {
	sx, sy, sz := a.view.source(a.pos[0], a.pos[1], a.pos[2])
	x0 := int64(math.Floor(sx))
	y0 := int64(math.Floor(sy))
	z0 := int64(math.Floor(sz))
	fx := sx - float64(x0)
	fy := sy - float64(y0)
	fz := sz - float64(z0)

	var acc [4]float64
	for dz := int64(0); dz < 2; dz++ {
		wz := 1 - fz
		if dz == 1 {
			wz = fz
		}
		if wz == 0 {
			continue
		}
		for dy := int64(0); dy < 2; dy++ {
			wy := 1 - fy
			if dy == 1 {
				wy = fy
			}
			if wy == 0 {
				continue
			}
			for dx := int64(0); dx < 2; dx++ {
				wx := 1 - fx
				if dx == 1 {
					wx = fx
				}
				if wx == 0 {
					continue
				}
				w := wx * wy * wz
				p := a.sample(x0+dx, y0+dy, z0+dz)
				acc[0] += w * float64(p.Alpha())
				acc[1] += w * float64(p.Red())
				acc[2] += w * float64(p.Green())
				acc[3] += w * float64(p.Blue())
			}
		}
	}
	return stacktile.ARGB(
		uint8(acc[0]+0.5),
		uint8(acc[1]+0.5),
		uint8(acc[2]+0.5),
		uint8(acc[3]+0.5))
}

func (a *linearAccess) Err() error {
	return a.src.Err()
}
