/*
	Package export walks a source volume tile by tile and writes the
	scale level 0 tile set.  Exports may be resliced by orientation and
	restricted to a window and a tile subset, so large jobs can be
	partitioned by z-section across workers.
*/
package export

import (
	"fmt"

	"github.com/janelia-flyem/stacktile/stacktile"
	"github.com/janelia-flyem/stacktile/storage"
)

// Config describes one export job over a source volume.
type Config struct {
	Source stacktile.VoxelSource

	// Window is the source-oriented box to export.  The zero value
	// exports the source's full bounds.
	Window stacktile.Bounds

	// Orientation reslices the export: the written tiles raster the
	// permuted axes, with the third axis as section index.
	Orientation stacktile.Orientation

	TileWidth, TileHeight int

	Store   *storage.Store
	Pattern storage.Pattern
	Write   storage.WriteOptions

	// IgnoreEmpty skips writing tiles whose RGB is uniformly the
	// background value.
	IgnoreEmpty bool

	// Background fills pixels outside the window and is the reference
	// for emptiness.  Alpha is ignored in both roles.
	Background stacktile.Pixel
}

// Range restricts an export to a subset of sections and tiles.  All
// limits are inclusive; rows and columns count tiles, not pixels.
type Range struct {
	MinZ, MaxZ     int64
	MinRow, MaxRow int64
	MinCol, MaxCol int64
}

// Stats reports what an export did.
type Stats struct {
	Written int64
	Skipped int64
}

// Exporter writes scale level 0 tiles from a source volume.
type Exporter struct {
	src         stacktile.VoxelSource
	window      stacktile.Bounds // oriented
	orientation stacktile.Orientation
	tileWidth   int
	tileHeight  int
	store       *storage.Store
	pattern     storage.Pattern
	write       storage.WriteOptions
	ignoreEmpty bool
	bg          stacktile.Pixel
}

// NewExporter returns an exporter for the given job.
func NewExporter(c Config) (*Exporter, error) {
	if c.Source == nil {
		return nil, fmt.Errorf("export requires a source volume")
	}
	if c.TileWidth <= 0 || c.TileHeight <= 0 {
		return nil, fmt.Errorf("bad export tile size %d x %d", c.TileWidth, c.TileHeight)
	}
	if c.Pattern.Empty() {
		return nil, fmt.Errorf("export requires a tile naming pattern")
	}
	window := c.Window
	if window == (stacktile.Bounds{}) {
		window = c.Source.Bounds()
	}
	store := c.Store
	if store == nil {
		store = storage.NewStore()
	}
	return &Exporter{
		src:         c.Source,
		window:      c.Orientation.PermuteBounds(window),
		orientation: c.Orientation,
		tileWidth:   c.TileWidth,
		tileHeight:  c.TileHeight,
		store:       store,
		pattern:     c.Pattern,
		write:       c.Write,
		ignoreEmpty: c.IgnoreEmpty,
		bg:          c.Background,
	}, nil
}

// FullRange returns the range covering the whole window: every section,
// and enough tile rows and columns for the oriented extent.
func (e *Exporter) FullRange() Range {
	return Range{
		MaxZ:   e.window.Dim(2) - 1,
		MaxRow: ceilDiv(e.window.Dim(1), int64(e.tileHeight)) - 1,
		MaxCol: ceilDiv(e.window.Dim(0), int64(e.tileWidth)) - 1,
	}
}

func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}

// Export writes the tiles of the given range.  Tiles overlapping the
// window's edge are padded with background; tiles fully outside it are
// uniformly background and subject to IgnoreEmpty like any other.  The
// first write failure or fatal source error aborts the export.
func (e *Exporter) Export(r Range) (Stats, error) {
	var stats Stats
	access := e.src.Access()
	tile := stacktile.NewTile(e.tileWidth, e.tileHeight)

	for z := r.MinZ; z <= r.MaxZ; z++ {
		sect := z + e.window.Min[2]
		for row := r.MinRow; row <= r.MaxRow; row++ {
			minY := row*int64(e.tileHeight) + e.window.Min[1]
			maxY := minInt64(e.window.Max[1], minY+int64(e.tileHeight)-1)
			for col := r.MinCol; col <= r.MaxCol; col++ {
				minX := col*int64(e.tileWidth) + e.window.Min[0]
				maxX := minInt64(e.window.Max[0], minX+int64(e.tileWidth)-1)

				hasInfo := e.copyTile(access, tile, minX, minY, sect, maxX, maxY)
				if err := access.Err(); err != nil {
					return stats, fmt.Errorf("export aborted at z=%d r=%d c=%d: %v", z, row, col, err)
				}
				if !hasInfo && e.ignoreEmpty {
					stats.Skipped++
					continue
				}
				loc := e.pattern.Resolve(storage.Fields{
					Scale:  1,
					X:      minX,
					Y:      minY,
					Z:      z,
					Width:  e.tileWidth,
					Height: e.tileHeight,
					Row:    row,
					Col:    col,
				})
				if err := e.store.WriteTile(tile, loc, e.write); err != nil {
					return stats, err
				}
				stats.Written++
				stacktile.Debugf("Wrote tile z=%d r=%d c=%d to %s\n", z, row, col, loc)
			}
		}
	}
	return stats, nil
}

// copyTile rasters the window [minX, maxX] x [minY, maxY] of section
// sect into the tile buffer, returning true if any pixel differs from
// background.  Undersized or out-of-window regions leave background in
// the remainder.  For ZY reslices the inner loop runs along y, since
// the source's tile-resident axis is the view's second axis there.
func (e *Exporter) copyTile(access stacktile.VoxelAccess, tile *stacktile.Tile, minX, minY, sect, maxX, maxY int64) bool {
	width := maxX - minX + 1
	height := maxY - minY + 1
	partial := width < int64(e.tileWidth) || height < int64(e.tileHeight)
	if partial {
		tile.Fill(e.bg)
	}
	if width <= 0 || height <= 0 {
		// Fully outside the window: the fill above already ran since
		// such a tile is necessarily undersized.
		return false
	}

	bgRGB := e.bg.RGB()
	hasInfo := false

	if e.orientation == stacktile.ZY {
		for x := int64(0); x < width; x++ {
			sx, sy, sz := e.orientation.Permute(minX+x, minY, sect)
			access.SetPosition(sx, sy, sz)
			for y := int64(0); y < height; y++ {
				p := access.Get()
				if p.RGB() != bgRGB {
					hasInfo = true
				}
				tile.Set(int(x), int(y), p)
				access.Fwd(1)
			}
		}
		return hasInfo
	}

	for y := int64(0); y < height; y++ {
		sx, sy, sz := e.orientation.Permute(minX, minY+y, sect)
		access.SetPosition(sx, sy, sz)
		for x := int64(0); x < width; x++ {
			p := access.Get()
			if p.RGB() != bgRGB {
				hasInfo = true
			}
			tile.Set(int(x), int(y), p)
			access.Fwd(0)
		}
	}
	return hasInfo
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
