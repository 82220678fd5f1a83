package stacktile

import "fmt"

// TileKey identifies one stored tile within a tile set at a fixed scale
// level.  It is the tile cache key.
type TileKey struct {
	Row, Col, Z int64
}

func (k TileKey) String() string {
	return fmt.Sprintf("(r=%d, c=%d, z=%d)", k.Row, k.Col, k.Z)
}

// Tile is an owned pixel buffer of fixed width and height.  Cached tiles
// are shared read-only between concurrent readers and must not be written
// after construction.
type Tile struct {
	Width, Height int
	Pix           []Pixel
}

// NewTile allocates a zeroed tile buffer.
func NewTile(width, height int) *Tile {
	return &Tile{
		Width:  width,
		Height: height,
		Pix:    make([]Pixel, width*height),
	}
}

// FilledTile allocates a tile buffer with every pixel set to the given
// value.  Used for background fallback tiles.
func FilledTile(width, height int, value Pixel) *Tile {
	t := NewTile(width, height)
	for i := range t.Pix {
		t.Pix[i] = value
	}
	return t
}

// At returns the pixel at (x, y).  No bounds checking is done beyond the
// slice access itself.
func (t *Tile) At(x, y int) Pixel {
	return t.Pix[y*t.Width+x]
}

// Set stores a pixel at (x, y).
func (t *Tile) Set(x, y int, p Pixel) {
	t.Pix[y*t.Width+x] = p
}

// Fill sets every pixel of the tile to the given value.
func (t *Tile) Fill(value Pixel) {
	for i := range t.Pix {
		t.Pix[i] = value
	}
}

// IsBackground returns true if every pixel's RGB equals the background
// RGB.  Alpha is ignored.
func (t *Tile) IsBackground(bg Pixel) bool {
	want := bg.RGB()
	for _, p := range t.Pix {
		if p.RGB() != want {
			return false
		}
	}
	return true
}
