package storage

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	_ "image/gif"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/janelia-flyem/stacktile/stacktile"
)

// Format identifies the image encoding of stored tiles.
type Format uint8

const (
	JPG Format = iota
	PNG
	TIFF
	BMP
)

// DefaultJPGQuality is used when an explicit quality is omitted.
const DefaultJPGQuality = 85

func (f Format) String() string {
	switch f {
	case JPG:
		return "jpg"
	case PNG:
		return "png"
	case TIFF:
		return "tiff"
	case BMP:
		return "bmp"
	default:
		return fmt.Sprintf("format %d", uint8(f))
	}
}

// Ext returns the file extension conventionally used for the format.
func (f Format) Ext() string {
	return f.String()
}

// Lossy returns true if encoding discards pixel data.  Quality settings
// apply only to lossy formats.
func (f Format) Lossy() bool {
	return f == JPG
}

// ParseFormat accepts the format names usable in job configurations.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "jpg", "jpeg", "":
		return JPG, nil
	case "png":
		return PNG, nil
	case "tif", "tiff":
		return TIFF, nil
	case "bmp":
		return BMP, nil
	default:
		return JPG, fmt.Errorf("unknown tile format %q (expected jpg, png, tiff, or bmp)", s)
	}
}

// PixelType selects the color model of written tiles.
type PixelType uint8

const (
	RGB PixelType = iota
	Gray
)

// ParsePixelType accepts "rgb", "gray", and the British spelling.
func ParsePixelType(s string) (PixelType, error) {
	switch strings.ToLower(s) {
	case "rgb", "":
		return RGB, nil
	case "gray", "grey":
		return Gray, nil
	default:
		return RGB, fmt.Errorf("unknown pixel type %q (expected rgb or gray)", s)
	}
}

// gzip streams begin with 0x1f 0x8b.
func isGzip(data []byte) bool {
	return len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b
}

// decodeTile decodes encoded image bytes into a width x height tile.
// Gzipped payloads are unwrapped transparently.  The decoded image is
// drawn onto a background-filled canvas so that undersized edge tiles
// are padded deterministically and indexed or gray source images are
// normalized to packed ARGB.
func decodeTile(data []byte, width, height int, bg stacktile.Pixel) (*stacktile.Tile, error) {
	if isGzip(data) {
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("bad gzip header on tile data: %v", err)
		}
		unzipped, err := io.ReadAll(zr)
		zr.Close()
		if err != nil {
			return nil, fmt.Errorf("unable to gunzip tile data: %v", err)
		}
		data = unzipped
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	canvas := image.NewNRGBA(image.Rect(0, 0, width, height))
	bgColor := color.NRGBA{R: bg.Red(), G: bg.Green(), B: bg.Blue(), A: bg.Alpha()}
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(bgColor), image.Point{}, draw.Src)
	draw.Draw(canvas, src.Bounds().Sub(src.Bounds().Min), src, src.Bounds().Min, draw.Src)

	tile := stacktile.NewTile(width, height)
	for y := 0; y < height; y++ {
		row := canvas.Pix[y*canvas.Stride : y*canvas.Stride+width*4]
		for x := 0; x < width; x++ {
			tile.Pix[y*width+x] = stacktile.ARGB(row[x*4+3], row[x*4], row[x*4+1], row[x*4+2])
		}
	}
	return tile, nil
}

// toImage converts a tile to a standard Go image in the requested color
// model.  Alpha is dropped: stored tiles are opaque, matching the RGB
// rasters written by the viewer stack.
func toImage(t *stacktile.Tile, ptype PixelType) image.Image {
	if ptype == Gray {
		img := image.NewGray(image.Rect(0, 0, t.Width, t.Height))
		for i, p := range t.Pix {
			img.Pix[i] = p.Gray()
		}
		return img
	}
	img := image.NewNRGBA(image.Rect(0, 0, t.Width, t.Height))
	for i, p := range t.Pix {
		img.Pix[i*4] = p.Red()
		img.Pix[i*4+1] = p.Green()
		img.Pix[i*4+2] = p.Blue()
		img.Pix[i*4+3] = 0xFF
	}
	return img
}

// WriteOptions control tile encoding on the write path.
type WriteOptions struct {
	Format    Format
	Quality   int // 1-100, JPG only; 0 selects DefaultJPGQuality
	PixelType PixelType

	// Gzip wraps the encoded tile in a gzip stream.  Mostly useful for
	// losslessly stored tile sets served by dumb file servers.
	Gzip bool
}

// encodeTile encodes a tile according to the write options.
func encodeTile(t *stacktile.Tile, opts WriteOptions) ([]byte, error) {
	img := toImage(t, opts.PixelType)
	var buf bytes.Buffer
	var out io.Writer = &buf
	var zw *gzip.Writer
	if opts.Gzip {
		zw = gzip.NewWriter(&buf)
		out = zw
	}
	var err error
	switch opts.Format {
	case JPG:
		quality := opts.Quality
		if quality <= 0 {
			quality = DefaultJPGQuality
		}
		err = jpeg.Encode(out, img, &jpeg.Options{Quality: quality})
	case PNG:
		err = png.Encode(out, img)
	case TIFF:
		err = tiff.Encode(out, img, nil)
	case BMP:
		err = bmp.Encode(out, img)
	default:
		err = fmt.Errorf("unknown tile format: %s", opts.Format)
	}
	if err != nil {
		return nil, err
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
