/*
	This file implements the positioned cursor over a cached volume.  The
	cursor keeps the tile containing its current position resident and
	tracks the position's offset within it, so stepping along a scan line
	costs one increment per pixel and one tile fetch per tile crossed.
*/

package volume

import (
	"github.com/janelia-flyem/stacktile/stacktile"
)

// Cursor is a positioned access handle over a Volume.  It satisfies
// stacktile.VoxelAccess.  Not safe for concurrent use; create one per
// goroutine via Volume.Access.
type Cursor struct {
	v    *Volume
	pos  [3]int64
	row  int64
	col  int64
	xMod int
	yMod int
	tile *stacktile.Tile
}

func newCursor(v *Volume) *Cursor {
	c := &Cursor{v: v}
	c.tile = v.fetchTile(0, 0, 0)
	return c
}

func (c *Cursor) fetch() {
	c.tile = c.v.fetchTile(c.row, c.col, c.pos[2])
}

// Position returns the cursor's current coordinate.
func (c *Cursor) Position() (x, y, z int64) {
	return c.pos[0], c.pos[1], c.pos[2]
}

// SetPosition jumps to an absolute coordinate.  The resident tile is
// refetched only if the coordinate lies in a different tile.
func (c *Cursor) SetPosition(x, y, z int64) {
	update := false

	c.pos[0] = x
	col := x / int64(c.v.tileWidth)
	c.xMod = int(x - col*int64(c.v.tileWidth))
	if col != c.col {
		c.col = col
		update = true
	}

	c.pos[1] = y
	row := y / int64(c.v.tileHeight)
	c.yMod = int(y - row*int64(c.v.tileHeight))
	if row != c.row {
		c.row = row
		update = true
	}

	if z != c.pos[2] {
		c.pos[2] = z
		update = true
	}

	if update {
		c.fetch()
	}
}

// Fwd steps one pixel forward along the given axis.
func (c *Cursor) Fwd(axis int) {
	c.pos[axis]++
	switch axis {
	case 0:
		c.xMod++
		if c.xMod == c.v.tileWidth {
			c.col++
			c.xMod = 0
			c.fetch()
		}
	case 1:
		c.yMod++
		if c.yMod == c.v.tileHeight {
			c.row++
			c.yMod = 0
			c.fetch()
		}
	default:
		c.fetch()
	}
}

// Bck steps one pixel backward along the given axis.
func (c *Cursor) Bck(axis int) {
	c.pos[axis]--
	switch axis {
	case 0:
		c.xMod--
		if c.xMod == -1 {
			c.col--
			c.xMod = c.v.tileWidth - 1
			c.fetch()
		}
	case 1:
		c.yMod--
		if c.yMod == -1 {
			c.row--
			c.yMod = c.v.tileHeight - 1
			c.fetch()
		}
	default:
		c.fetch()
	}
}

// Move shifts the position by a signed distance along the given axis.
// Movement within the resident tile adjusts the offset without a fetch.
func (c *Cursor) Move(distance int64, axis int) {
	c.pos[axis] += distance
	switch axis {
	case 0:
		col := c.pos[0] / int64(c.v.tileWidth)
		if col == c.col {
			c.xMod += int(distance)
		} else {
			c.col = col
			c.xMod = int(c.pos[0] - col*int64(c.v.tileWidth))
			c.fetch()
		}
	case 1:
		row := c.pos[1] / int64(c.v.tileHeight)
		if row == c.row {
			c.yMod += int(distance)
		} else {
			c.row = row
			c.yMod = int(c.pos[1] - row*int64(c.v.tileHeight))
			c.fetch()
		}
	default:
		if distance != 0 {
			c.fetch()
		}
	}
}

// Get returns the pixel at the current position.
func (c *Cursor) Get() stacktile.Pixel {
	return c.tile.Pix[c.yMod*c.v.tileWidth+c.xMod]
}

// Err reports the volume's first fatal fetch error, if any.
func (c *Cursor) Err() error {
	return c.v.Err()
}
