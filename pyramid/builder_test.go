package pyramid

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/janelia-flyem/stacktile/stacktile"
	"github.com/janelia-flyem/stacktile/storage"
)

func TestDownsampleConstant(t *testing.T) {
	v := stacktile.ARGB(0xFF, 40, 80, 120)
	src := stacktile.FilledTile(64, 64, v)
	dst := stacktile.NewTile(32, 32)
	if !downsample(src, dst, stacktile.Background(0)) {
		t.Errorf("Non-background constant tile reported empty\n")
	}
	for i, p := range dst.Pix {
		if p != v {
			t.Fatalf("Box filter should preserve constant color: pixel %d is %08x\n", i, uint32(p))
		}
	}

	bg := stacktile.Background(40)
	src = stacktile.FilledTile(64, 64, stacktile.ARGB(0, 40, 40, 40))
	if downsample(src, dst, bg) {
		t.Errorf("Uniform background tile reported not empty\n")
	}
}

func TestDownsampleAverages(t *testing.T) {
	src := stacktile.NewTile(2, 2)
	src.Set(0, 0, stacktile.ARGB(0xFF, 0, 0, 0))
	src.Set(1, 0, stacktile.ARGB(0xFF, 100, 0, 0))
	src.Set(0, 1, stacktile.ARGB(0xFF, 100, 0, 0))
	src.Set(1, 1, stacktile.ARGB(0xFF, 200, 0, 0))
	dst := stacktile.NewTile(1, 1)
	downsample(src, dst, stacktile.Background(0))
	if got := dst.At(0, 0).Red(); got != 100 {
		t.Errorf("Box filter average: got %d, expected 100\n", got)
	}
	if got := dst.At(0, 0).Alpha(); got != 0xFF {
		t.Errorf("Alpha should be filtered too: got %d\n", got)
	}
}

// writeLevel0 writes a constant-color level 0 tile.
func writeLevel0(t *testing.T, store *storage.Store, pattern storage.Pattern, row, col, z int64, value stacktile.Pixel) {
	tile := stacktile.FilledTile(256, 256, value)
	loc := pattern.Resolve(storage.Fields{Scale: 1, Z: z, Row: row, Col: col,
		X: col * 256, Y: row * 256, Width: 256, Height: 256})
	if err := store.WriteTile(tile, loc, storage.WriteOptions{Format: storage.PNG}); err != nil {
		t.Fatalf("Unable to write level 0 tile: %v\n", err)
	}
}

func quadColor(q uint8) stacktile.Pixel {
	return stacktile.ARGB(0xFF, 40*q, 40*q, 40*q)
}

func TestBuildTwoByTwo(t *testing.T) {
	dir := t.TempDir()
	pattern := storage.DefaultPattern(dir, storage.PNG)
	store := storage.NewStore()
	// One section of 2 x 2 level 0 tiles, each a distinct constant.
	for r := int64(0); r < 2; r++ {
		for c := int64(0); c < 2; c++ {
			writeLevel0(t, store, pattern, r, c, 0, quadColor(uint8(1+2*r+c)))
		}
	}

	b, err := NewBuilder(Config{
		Store: store, Pattern: pattern,
		TileWidth: 256, TileHeight: 256,
		MaxZ: -1,
	})
	if err != nil {
		t.Fatalf("Unable to create builder: %v\n", err)
	}
	stats, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v\n", err)
	}
	// The four level 0 tiles reduce to one level 1 tile, the apex; the
	// open z range ends at the first missing section.
	if stats.Written != 1 || stats.Sections != 1 {
		t.Fatalf("Expected 1 written tile in 1 section, got %+v\n", stats)
	}

	fallback := stacktile.NewTile(256, 256)
	tile := store.ReadTile(filepath.Join(dir, "0", "0_0_1.png"), 256, 256, fallback)
	if tile == fallback {
		t.Fatalf("Level 1 tile missing\n")
	}
	// Each quadrant of the level 1 tile is the constant of its source
	// tile, exactly preserved by the box filter.
	for _, tc := range []struct {
		x, y int
		want stacktile.Pixel
	}{
		{10, 10, quadColor(1)}, {200, 10, quadColor(2)},
		{10, 200, quadColor(3)}, {200, 200, quadColor(4)},
	} {
		if got := tile.At(tc.x, tc.y); got.RGB() != tc.want.RGB() {
			t.Errorf("Level 1 pixel (%d, %d): got %08x, expected %08x\n",
				tc.x, tc.y, got.RGB(), tc.want.RGB())
		}
	}
}

func TestBuildDeepPyramid(t *testing.T) {
	dir := t.TempDir()
	pattern := storage.DefaultPattern(dir, storage.PNG)
	store := storage.NewStore()
	v := stacktile.ARGB(0xFF, 99, 99, 99)
	for r := int64(0); r < 4; r++ {
		for c := int64(0); c < 4; c++ {
			writeLevel0(t, store, pattern, r, c, 0, v)
		}
	}

	b, err := NewBuilder(Config{
		Store: store, Pattern: pattern,
		TileWidth: 256, TileHeight: 256,
		MaxZ: -1,
	})
	if err != nil {
		t.Fatalf("Unable to create builder: %v\n", err)
	}
	stats, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v\n", err)
	}
	// 4 x 4 level 0 tiles yield 2 x 2 at level 1 and 1 at level 2.
	if stats.Written != 5 {
		t.Errorf("Expected 5 pyramid tiles, got %+v\n", stats)
	}
	for _, p := range []string{"0/0_0_1.png", "0/0_1_1.png", "0/1_0_1.png", "0/1_1_1.png", "0/0_0_2.png"} {
		if _, err := os.Stat(filepath.Join(dir, p)); err != nil {
			t.Errorf("Expected pyramid tile %s: %v\n", p, err)
		}
	}
}

func TestBuildSingleTileStops(t *testing.T) {
	dir := t.TempDir()
	pattern := storage.DefaultPattern(dir, storage.PNG)
	store := storage.NewStore()
	writeLevel0(t, store, pattern, 0, 0, 0, stacktile.ARGB(0xFF, 50, 50, 50))

	b, err := NewBuilder(Config{
		Store: store, Pattern: pattern,
		TileWidth: 256, TileHeight: 256,
		MaxZ: -1,
	})
	if err != nil {
		t.Fatalf("Unable to create builder: %v\n", err)
	}
	stats, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v\n", err)
	}
	// A single tile is already the apex.
	if stats.Written != 0 {
		t.Errorf("Single-tile set should produce no pyramid tiles, got %+v\n", stats)
	}
}

func TestBuildBoundedWithGaps(t *testing.T) {
	dir := t.TempDir()
	pattern := storage.DefaultPattern(dir, storage.PNG)
	store := storage.NewStore()
	bg := stacktile.Background(0)
	// Sparse 2 x 2 grid: only the left column exists.
	writeLevel0(t, store, pattern, 0, 0, 0, quadColor(1))
	writeLevel0(t, store, pattern, 1, 0, 0, quadColor(3))

	b, err := NewBuilder(Config{
		Store: store, Pattern: pattern,
		TileWidth: 256, TileHeight: 256,
		Width: 512, Height: 512,
		Background: bg,
	})
	if err != nil {
		t.Fatalf("Unable to create builder: %v\n", err)
	}
	stats, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v\n", err)
	}
	if stats.Written != 1 {
		t.Fatalf("Expected 1 written tile, got %+v\n", stats)
	}
	fallback := stacktile.NewTile(256, 256)
	tile := store.ReadTile(filepath.Join(dir, "0", "0_0_1.png"), 256, 256, fallback)
	if tile == fallback {
		t.Fatalf("Level 1 tile missing\n")
	}
	// Missing quadrants come out as background.
	if got := tile.At(200, 10); got.RGB() != bg.RGB() {
		t.Errorf("Missing quadrant should be background: got %08x\n", got.RGB())
	}
	if got := tile.At(10, 10); got.RGB() != quadColor(1).RGB() {
		t.Errorf("Present quadrant wrong: got %08x\n", got.RGB())
	}
}

func TestBuildIgnoreEmptyValidation(t *testing.T) {
	pattern := storage.DefaultPattern("/tiles", storage.PNG)
	_, err := NewBuilder(Config{
		Pattern:     pattern,
		TileWidth:   256,
		TileHeight:  256,
		IgnoreEmpty: true,
		Width:       512,
		// Height unbounded: existence probing cannot coexist with
		// skipped empty tiles.
	})
	if err == nil {
		t.Errorf("Expected validation error for unbounded ignore-empty build\n")
	}
}

func TestAdjustBounds(t *testing.T) {
	if got := adjustStart(300, 256); got != 256 {
		t.Errorf("adjustStart(300, 256): got %d, expected 256\n", got)
	}
	if got := adjustStart(256, 256); got != 256 {
		t.Errorf("adjustStart(256, 256): got %d, expected 256\n", got)
	}
	if got := adjustSize(500, 256); got != 512 {
		t.Errorf("adjustSize(500, 256): got %d, expected 512\n", got)
	}
	if got := adjustSize(512, 256); got != 512 {
		t.Errorf("adjustSize(512, 256): got %d, expected 512\n", got)
	}
	if got := adjustSize(-1, 256); got != -1 {
		t.Errorf("adjustSize(-1, 256): got %d, expected -1\n", got)
	}
}
