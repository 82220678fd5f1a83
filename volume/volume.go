/*
	Package volume provides read-only, coordinate-addressable access to a
	remote tile set.  Pixels are materialized per tile on demand, cached
	in a bounded LRU, and fetched at most once per tile even under
	concurrent access.
*/
package volume

import (
	"fmt"
	"sync"

	"github.com/golang/groupcache/lru"
	"golang.org/x/sync/singleflight"

	"github.com/janelia-flyem/stacktile/stacktile"
	"github.com/janelia-flyem/stacktile/storage"
)

// DefaultCacheSize bounds the tile cache when no explicit size is given.
const DefaultCacheSize = 2048

// Config describes a remote tile set at one scale level.  Width, Height,
// and Depth are the full-resolution stack dimensions in pixels and
// sections; the addressable extent at the configured scale level is
// derived from them.
type Config struct {
	// Pattern resolves tile coordinates to storage locations.
	Pattern storage.Pattern

	// Store retrieves tiles from their resolved locations.  If nil, a
	// default store is used.
	Store *storage.Store

	Width, Height, Depth int64

	// ScaleLevel is the pyramid level of the source tiles.  Level s has
	// scale 1 / 2^s.
	ScaleLevel int

	TileWidth, TileHeight int

	// Background fills pixels of missing or unreadable tiles.
	Background stacktile.Pixel

	// CacheSize bounds the number of cached tiles.  Zero selects
	// DefaultCacheSize.
	CacheSize int
}

// Volume is a cached view of a remote tile set.  It is safe for
// concurrent use; access handles created by Access are not.
type Volume struct {
	pattern    storage.Pattern
	store      *storage.Store
	scaleLevel int
	scale      float64
	tileWidth  int
	tileHeight int
	rows, cols int64
	bounds     stacktile.Bounds

	// fallback is the shared background tile substituted for failed
	// fetches.  Never written after construction.
	fallback *stacktile.Tile

	mu    sync.Mutex
	cache *lru.Cache
	err   error

	flight singleflight.Group
}

// NewVolume returns a volume over the tile set described by the config.
func NewVolume(c Config) (*Volume, error) {
	if c.Pattern.Empty() {
		return nil, fmt.Errorf("volume requires a tile naming pattern")
	}
	if c.Width <= 0 || c.Height <= 0 || c.Depth <= 0 {
		return nil, fmt.Errorf("bad volume dimensions %d x %d x %d", c.Width, c.Height, c.Depth)
	}
	if c.TileWidth <= 0 || c.TileHeight <= 0 {
		return nil, fmt.Errorf("bad tile size %d x %d", c.TileWidth, c.TileHeight)
	}
	if c.ScaleLevel < 0 || c.ScaleLevel > 62 {
		return nil, fmt.Errorf("bad scale level %d", c.ScaleLevel)
	}
	store := c.Store
	if store == nil {
		store = storage.NewStore()
	}
	cacheSize := c.CacheSize
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	scale := 1.0 / float64(int64(1)<<uint(c.ScaleLevel))
	v := &Volume{
		pattern:    c.Pattern,
		store:      store,
		scaleLevel: c.ScaleLevel,
		scale:      scale,
		tileWidth:  c.TileWidth,
		tileHeight: c.TileHeight,
		cols:       int64(ceilDiv(scale*float64(c.Width), c.TileWidth)),
		rows:       int64(ceilDiv(scale*float64(c.Height), c.TileHeight)),
		fallback:   stacktile.FilledTile(c.TileWidth, c.TileHeight, c.Background),
		cache:      lru.New(cacheSize),
	}
	v.bounds = stacktile.Bounds{
		Max: [3]int64{
			int64(float64(c.Width)*scale) - 1,
			int64(float64(c.Height)*scale) - 1,
			c.Depth - 1,
		},
	}
	return v, nil
}

func ceilDiv(scaled float64, tileDim int) float64 {
	d := scaled / float64(tileDim)
	n := float64(int64(d))
	if d > n {
		n++
	}
	return n
}

// Bounds returns the inclusive pixel extent addressable at the volume's
// scale level.
func (v *Volume) Bounds() stacktile.Bounds {
	return v.bounds
}

// Rows returns the number of tile rows covering the volume.
func (v *Volume) Rows() int64 {
	return v.rows
}

// Cols returns the number of tile columns covering the volume.
func (v *Volume) Cols() int64 {
	return v.cols
}

// TileSize returns the tile dimensions in pixels.
func (v *Volume) TileSize() (width, height int) {
	return v.tileWidth, v.tileHeight
}

// Background returns the pixel substituted for missing data.
func (v *Volume) Background() stacktile.Pixel {
	return v.fallback.Pix[0]
}

// Err returns the first fatal error encountered by any fetch, if any.
func (v *Volume) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.err
}

func (v *Volume) setErr(err error) {
	v.mu.Lock()
	if v.err == nil {
		v.err = err
	}
	v.mu.Unlock()
}

// Reclaim drops all cached tiles, letting the garbage collector reclaim
// their buffers.  Called automatically when a fetch runs out of memory.
func (v *Volume) Reclaim() {
	v.mu.Lock()
	v.cache.Clear()
	v.mu.Unlock()
}

func (v *Volume) cached(key stacktile.TileKey) *stacktile.Tile {
	v.mu.Lock()
	defer v.mu.Unlock()
	if t, found := v.cache.Get(key); found {
		return t.(*stacktile.Tile)
	}
	return nil
}

func (v *Volume) addToCache(key stacktile.TileKey, t *stacktile.Tile) {
	v.mu.Lock()
	v.cache.Add(key, t)
	v.mu.Unlock()
}

// fetchTile returns the tile at the given tile coordinate, loading and
// caching it if necessary.  Concurrent requests for the same tile share
// one load.  Failed loads return the shared background tile, which is
// cached like any other result.
func (v *Volume) fetchTile(row, col, z int64) *stacktile.Tile {
	key := stacktile.TileKey{Row: row, Col: col, Z: z}
	if t := v.cached(key); t != nil {
		return t
	}
	res, _, _ := v.flight.Do(key.String(), func() (interface{}, error) {
		if t := v.cached(key); t != nil {
			return t, nil
		}
		t := v.loadTile(key)
		v.addToCache(key, t)
		return t, nil
	})
	return res.(*stacktile.Tile)
}

// loadTile reads one tile, retrying once after an allocation failure.
// A second failure is fatal: the volume's error is set and background
// is substituted so in-flight scans can finish.
func (v *Volume) loadTile(key stacktile.TileKey) *stacktile.Tile {
	t, err := v.tryLoad(key)
	if err == nil {
		return t
	}
	stacktile.Errorf("Tile load %s failed: %v.  Reclaiming cache and retrying.\n", key, err)
	v.Reclaim()
	t, err = v.tryLoad(key)
	if err == nil {
		return t
	}
	v.setErr(fmt.Errorf("tile load %s failed after cache reclaim: %v", key, err))
	return v.fallback
}

func (v *Volume) tryLoad(key stacktile.TileKey) (t *stacktile.Tile, err error) {
	defer func() {
		if e := recover(); e != nil {
			err = fmt.Errorf("panic: %v", e)
		}
	}()
	loc := v.pattern.Resolve(storage.Fields{
		ScaleLevel: v.scaleLevel,
		Scale:      v.scale,
		X:          key.Col * int64(v.tileWidth),
		Y:          key.Row * int64(v.tileHeight),
		Z:          key.Z,
		Width:      v.tileWidth,
		Height:     v.tileHeight,
		Row:        key.Row,
		Col:        key.Col,
	})
	stacktile.Debugf("Loading tile %s from %s\n", key, loc)
	return v.store.ReadTile(loc, v.tileWidth, v.tileHeight, v.fallback), nil
}

// Sample returns the pixel at an absolute coordinate.  Scans should use
// a cursor from Access instead, which amortizes tile addressing.
func (v *Volume) Sample(x, y, z int64) stacktile.Pixel {
	col := x / int64(v.tileWidth)
	row := y / int64(v.tileHeight)
	t := v.fetchTile(row, col, z)
	xMod := int(x - col*int64(v.tileWidth))
	yMod := int(y - row*int64(v.tileHeight))
	return t.Pix[yMod*v.tileWidth+xMod]
}

// Access returns a new cursor positioned at the volume origin.  Each
// cursor is independent and must be confined to one goroutine.
func (v *Volume) Access() stacktile.VoxelAccess {
	return newCursor(v)
}
