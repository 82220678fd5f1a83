package stacktile

import (
	"fmt"
	"strings"
)

// Bounds is an axis-aligned 3d box with inclusive minimum and maximum
// coordinates per axis, in the order x, y, z.
type Bounds struct {
	Min, Max [3]int64
}

// NewBounds returns bounds from an origin and a size per axis.
func NewBounds(minX, minY, minZ, width, height, depth int64) Bounds {
	return Bounds{
		Min: [3]int64{minX, minY, minZ},
		Max: [3]int64{minX + width - 1, minY + height - 1, minZ + depth - 1},
	}
}

// Dim returns the extent of the bounds along the given axis.
func (b Bounds) Dim(axis int) int64 {
	return b.Max[axis] - b.Min[axis] + 1
}

func (b Bounds) String() string {
	return fmt.Sprintf("[%d,%d,%d] -> [%d,%d,%d]", b.Min[0], b.Min[1], b.Min[2],
		b.Max[0], b.Max[1], b.Max[2])
}

// Contains returns true if the point lies within the bounds.
func (b Bounds) Contains(x, y, z int64) bool {
	return x >= b.Min[0] && x <= b.Max[0] &&
		y >= b.Min[1] && y <= b.Max[1] &&
		z >= b.Min[2] && z <= b.Max[2]
}

// Orientation selects which permutation of the world axes (x, y, z) maps
// to a tile's (column, row, section) extent.
type Orientation uint8

const (
	// XY is the untransformed orientation: x across, y down, z as section.
	XY Orientation = iota

	// XZ swaps the y and z axes: x across, z down, y as section.
	XZ

	// ZY swaps the x and z axes: z across, y down, x as section.
	ZY
)

func (o Orientation) String() string {
	switch o {
	case XY:
		return "xy"
	case XZ:
		return "xz"
	case ZY:
		return "zy"
	default:
		return fmt.Sprintf("orientation %d", uint8(o))
	}
}

// ParseOrientation accepts the plane names used by CATMAID stacks.  The
// reversed spellings denote the same permutation.
func ParseOrientation(s string) (Orientation, error) {
	switch strings.ToLower(s) {
	case "xy", "yx", "":
		return XY, nil
	case "xz", "zx":
		return XZ, nil
	case "zy", "yz":
		return ZY, nil
	default:
		return XY, fmt.Errorf("unknown orientation %q (expected xy, xz, or zy)", s)
	}
}

// Permute maps world axis indices to view axis indices for this
// orientation.  The permutation is its own inverse.
func (o Orientation) Permute(x, y, z int64) (int64, int64, int64) {
	switch o {
	case XZ:
		return x, z, y
	case ZY:
		return z, y, x
	default:
		return x, y, z
	}
}

// PermuteBounds applies the axis permutation to a box.
func (o Orientation) PermuteBounds(b Bounds) Bounds {
	var p Bounds
	p.Min[0], p.Min[1], p.Min[2] = o.Permute(b.Min[0], b.Min[1], b.Min[2])
	p.Max[0], p.Max[1], p.Max[2] = o.Permute(b.Max[0], b.Max[1], b.Max[2])
	return p
}

// Interpolation selects the sampling rule applied at non-integer source
// coordinates during resampling.
type Interpolation uint8

const (
	// NearestNeighbor samples the nearest integer-coordinate source pixel.
	NearestNeighbor Interpolation = iota

	// Linear blends the neighboring integer-coordinate samples per channel.
	Linear
)

func (i Interpolation) String() string {
	switch i {
	case NearestNeighbor:
		return "nearest-neighbor"
	case Linear:
		return "linear"
	default:
		return fmt.Sprintf("interpolation %d", uint8(i))
	}
}

// ParseInterpolation accepts the historical "nn" and "nl" names as well
// as the spelled-out ones.
func ParseInterpolation(s string) (Interpolation, error) {
	switch strings.ToLower(s) {
	case "nn", "nearest", "nearest-neighbor", "":
		return NearestNeighbor, nil
	case "nl", "linear", "trilinear":
		return Linear, nil
	default:
		return NearestNeighbor, fmt.Errorf("unknown interpolation %q (expected nn or nl)", s)
	}
}

// VoxelAccess is a positioned random-access handle over a 3d pixel
// volume.  Sequential scans should use Fwd, which steps one pixel along
// an axis and lets implementations amortize tile address computation;
// SetPosition may jump anywhere within the volume's bounds.
//
// Implementations absorb transient fetch failures by substituting
// background pixels; Err reports only fatal conditions (see the volume
// package), and once set it is sticky.
type VoxelAccess interface {
	// SetPosition jumps to an absolute coordinate.
	SetPosition(x, y, z int64)

	// Fwd advances the position one pixel along the given axis (0=x,
	// 1=y, 2=z).
	Fwd(axis int)

	// Get returns the pixel at the current position.
	Get() Pixel

	// Err returns the first fatal error encountered, if any.
	Err() error
}

// VoxelSource is a coordinate-addressable read-only volume.
type VoxelSource interface {
	// Bounds returns the inclusive extent of addressable coordinates.
	Bounds() Bounds

	// Access returns a new independent access handle.
	Access() VoxelAccess
}
