/*
	This file implements the pyramid build scan.  Without explicit
	bounds, the extent of a tile set is probed from the tiles themselves:
	a missing tile to the right ends the row, a missing tile below ends
	the scale, and a missing first tile ends the section range.  Bounded
	scans skip the probing and walk the configured window only.
*/

package pyramid

import (
	"fmt"
	"math"

	"github.com/janelia-flyem/stacktile/stacktile"
	"github.com/janelia-flyem/stacktile/storage"
)

// Config describes one pyramid build over an existing level 0 tile set.
type Config struct {
	Store   *storage.Store
	Pattern storage.Pattern

	TileWidth, TileHeight int

	// MinX, MinY, Width, and Height bound the scanned window in level 0
	// pixels.  Width or Height <= 0 leaves that axis unbounded, to be
	// probed from tile existence.  Bounds are snapped outward to tile
	// boundaries.
	MinX, MinY    int64
	Width, Height int64

	// MinZ and MaxZ bound the section range, inclusive.  A negative
	// MaxZ selects an open range ended by the first missing section.
	MinZ, MaxZ int64

	Write storage.WriteOptions

	// IgnoreEmpty skips writing tiles whose RGB is uniformly the
	// background value.  Requires bounded Width and Height, since the
	// existence probing cannot distinguish a skipped tile from the tile
	// set's edge.
	IgnoreEmpty bool

	// Background fills missing source quadrants and is the reference
	// for emptiness.
	Background stacktile.Pixel
}

// Stats reports what a pyramid build did.
type Stats struct {
	Sections int64
	Written  int64
	Skipped  int64
}

// Builder generates scale pyramid tiles.
type Builder struct {
	store      *storage.Store
	pattern    storage.Pattern
	tileWidth  int64
	tileHeight int64
	minX, minY int64
	maxX, maxY int64 // exclusive scan limits, -1 if unbounded
	minZ, maxZ int64

	write       storage.WriteOptions
	ignoreEmpty bool
	bg          stacktile.Pixel
	fallback    *stacktile.Tile
}

// NewBuilder validates the config and returns a builder.  All
// validation happens here, before any tile I/O.
func NewBuilder(c Config) (*Builder, error) {
	if c.Pattern.Empty() {
		return nil, fmt.Errorf("pyramid build requires a tile naming pattern")
	}
	if c.TileWidth <= 0 || c.TileHeight <= 0 {
		return nil, fmt.Errorf("bad tile size %d x %d", c.TileWidth, c.TileHeight)
	}
	if c.IgnoreEmpty {
		if c.Width <= 0 {
			return nil, fmt.Errorf("width must be bounded when empty tiles are skipped")
		}
		if c.MinX+c.Width < 0 {
			return nil, fmt.Errorf("x range overflows")
		}
		if c.Height <= 0 {
			return nil, fmt.Errorf("height must be bounded when empty tiles are skipped")
		}
		if c.MinY+c.Height < 0 {
			return nil, fmt.Errorf("y range overflows")
		}
	}
	maxZ := c.MaxZ
	if maxZ < 0 {
		maxZ = math.MaxInt64
	}
	if maxZ < c.MinZ {
		return nil, fmt.Errorf("bad section range [%d, %d]", c.MinZ, maxZ)
	}
	store := c.Store
	if store == nil {
		store = storage.NewStore()
	}

	minX := adjustStart(c.MinX, int64(c.TileWidth))
	minY := adjustStart(c.MinY, int64(c.TileHeight))
	width := adjustSize(c.Width, int64(c.TileWidth))
	height := adjustSize(c.Height, int64(c.TileHeight))
	maxX := int64(-1)
	if width > 0 {
		maxX = minX + width
	}
	maxY := int64(-1)
	if height > 0 {
		maxY = minY + height
	}

	return &Builder{
		store:       store,
		pattern:     c.Pattern,
		tileWidth:   int64(c.TileWidth),
		tileHeight:  int64(c.TileHeight),
		minX:        minX,
		minY:        minY,
		maxX:        maxX,
		maxY:        maxY,
		minZ:        c.MinZ,
		maxZ:        maxZ,
		write:       c.Write,
		ignoreEmpty: c.IgnoreEmpty,
		bg:          c.Background,
		fallback:    stacktile.FilledTile(c.TileWidth, c.TileHeight, c.Background),
	}, nil
}

// adjustStart snaps an index to the start of its tile.
func adjustStart(index, tileSize int64) int64 {
	return index / tileSize * tileSize
}

// adjustSize pads a bounded size to a whole number of tiles.
func adjustSize(size, tileSize int64) int64 {
	if size > 0 && size%tileSize > 0 {
		return size + tileSize - size%tileSize
	}
	return size
}

func (b *Builder) readTile(scaleLevel int, scale float64, x, y, z, iScale, row, col int64) *stacktile.Tile {
	loc := b.pattern.Resolve(storage.Fields{
		ScaleLevel: scaleLevel,
		Scale:      scale,
		X:          x * iScale,
		Y:          y * iScale,
		Z:          z,
		Width:      int(b.tileWidth * iScale),
		Height:     int(b.tileHeight * iScale),
		Row:        row,
		Col:        col,
	})
	return b.store.ReadTile(loc, int(b.tileWidth), int(b.tileHeight), b.fallback)
}

// merge copies a quadrant tile into the 2 x 2 merge buffer at the given
// tile offsets.
func merge(buf, tile *stacktile.Tile, dx, dy int) {
	for y := 0; y < tile.Height; y++ {
		src := tile.Pix[y*tile.Width : (y+1)*tile.Width]
		off := (dy*tile.Height+y)*buf.Width + dx*tile.Width
		copy(buf.Pix[off:off+tile.Width], src)
	}
}

// Build scans the section range and writes every pyramid tile derivable
// from the level 0 set.  The first write failure aborts the build;
// missing source tiles are not errors, they bound the scan.
func (b *Builder) Build() (Stats, error) {
	var stats Stats

	tw, th := int(b.tileWidth), int(b.tileHeight)
	buf := stacktile.NewTile(2*tw, 2*th)
	target := stacktile.NewTile(tw, th)

zLoop:
	for z := b.minZ; z <= b.maxZ; z++ {
		stacktile.Infof("Scaling section %d\n", z)
		stats.Sections++
		proceedY := true
		proceedX := true
	sLoop:
		for s := 1; proceedX || proceedY; s++ {
			stacktile.Debugf("Section %d scale level %d\n", z, s)
			iScale := int64(1) << uint(s)
			scale := 1.0 / float64(iScale)
			s1 := s - 1
			iScale1 := int64(1) << uint(s1)
			scale1 := 1.0 / float64(iScale1)
			nResultTiles := 0

			proceedY = true
		yLoop:
			for y := b.minY / iScale1; proceedY; y += 2 * b.tileHeight {
				if b.maxY > 0 && y >= b.maxY/iScale1 {
					break
				}
				proceedX = true
				yt := y / (2 * b.tileHeight)
				for x := b.minX / iScale1; proceedX; x += 2 * b.tileWidth {
					if b.maxX > 0 && x >= b.maxX/iScale1 {
						break
					}
					nResultTiles++
					xt := x / (2 * b.tileWidth)

					tile1 := b.readTile(s1, scale1, x, y, z, iScale1, 2*yt, 2*xt)
					if b.maxX < 0 && tile1 == b.fallback {
						// The top-left quadrant bounds the unbounded
						// scan: missing at the row start ends the
						// scale, missing at the scale start ends the
						// section range.
						if x == b.minX/iScale1 {
							if y == b.minY/iScale1 {
								stats.Sections--
								break zLoop
							}
							continue sLoop
						}
						continue yLoop
					}
					tile2 := b.readTile(s1, scale1, x+b.tileWidth, y, z, iScale1, 2*yt, 2*xt+1)
					proceedX = b.maxX >= 0 || tile2 != b.fallback
					tile3 := b.readTile(s1, scale1, x, y+b.tileHeight, z, iScale1, 2*yt+1, 2*xt)
					proceedY = b.maxY >= 0 || tile3 != b.fallback
					if !proceedX && !proceedY && x == b.minX/iScale1 && y == b.minY/iScale1 {
						break sLoop
					}
					tile4 := b.readTile(s1, scale1, x+b.tileWidth, y+b.tileHeight, z, iScale1, 2*yt+1, 2*xt+1)

					if tile1 == b.fallback && tile2 == b.fallback &&
						tile3 == b.fallback && tile4 == b.fallback {
						continue
					}

					// Refill the merge buffer so undersized edge tiles
					// do not leak pixels from the previous block.
					buf.Fill(b.bg)
					merge(buf, tile1, 0, 0)
					merge(buf, tile2, 1, 0)
					merge(buf, tile3, 0, 1)
					merge(buf, tile4, 1, 1)

					notEmpty := downsample(buf, target, b.bg)
					if !notEmpty && b.ignoreEmpty {
						stats.Skipped++
						continue
					}
					loc := b.pattern.Resolve(storage.Fields{
						ScaleLevel: s,
						Scale:      scale,
						X:          x * iScale,
						Y:          y * iScale,
						Z:          z,
						Width:      int(b.tileWidth * iScale),
						Height:     int(b.tileHeight * iScale),
						Row:        yt,
						Col:        xt,
					})
					if err := b.store.WriteTile(target, loc, b.write); err != nil {
						return stats, fmt.Errorf("pyramid build aborted at z=%d s=%d: %v", z, s, err)
					}
					stats.Written++
				}
			}
			if nResultTiles <= 1 {
				proceedX = false
				proceedY = false
			}
		}
	}
	return stats, nil
}
