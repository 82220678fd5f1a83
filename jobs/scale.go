/*
	This file holds the parameters of a pyramid build job over an
	existing scale level 0 tile set.
*/

package jobs

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/janelia-flyem/stacktile/pyramid"
	"github.com/janelia-flyem/stacktile/stacktile"
	"github.com/janelia-flyem/stacktile/storage"
)

// ScaleParams describe a pyramid build.  The tile set is addressed by
// TilePattern (or the conventional layout under BasePath) for both
// reads and writes.
type ScaleParams struct {
	BasePath    string `toml:"base_path"`
	TilePattern string `toml:"tile_pattern"`

	TileWidth  int `toml:"tile_width" validate:"gt=0"`
	TileHeight int `toml:"tile_height" validate:"gt=0"`

	// Window in level 0 pixels.  Width or Height <= 0 leaves that axis
	// unbounded, probed from tile existence.
	MinX   int64 `toml:"min_x"`
	Width  int64 `toml:"width"`
	MinY   int64 `toml:"min_y"`
	Height int64 `toml:"height"`

	// Section range, inclusive.  A negative MaxZ scans until the first
	// missing section.
	MinZ int64 `toml:"min_z" validate:"gte=0"`
	MaxZ int64 `toml:"max_z"`

	Format      string `toml:"format"`
	Quality     int    `toml:"quality" validate:"gte=0,lte=100"`
	PixelType   string `toml:"pixel_type" validate:"omitempty,oneof=rgb gray grey"`
	GzipTiles   bool   `toml:"gzip_tiles"`
	IgnoreEmpty bool   `toml:"ignore_empty_tiles"`
	BGValue     uint8  `toml:"bg_value"`
}

// DefaultScaleParams returns the pyramid build defaults: 256 pixel
// tiles, jpg output, unbounded window, open section range.
func DefaultScaleParams() ScaleParams {
	return ScaleParams{
		TileWidth:  256,
		TileHeight: 256,
		Width:      -1,
		Height:     -1,
		MaxZ:       -1,
		Format:     "jpg",
		Quality:    storage.DefaultJPGQuality,
	}
}

// LoadScaleParams reads pyramid build parameters from a TOML file on
// top of the defaults.
func LoadScaleParams(path string) (ScaleParams, error) {
	p := DefaultScaleParams()
	if _, err := toml.DecodeFile(path, &p); err != nil {
		return p, fmt.Errorf("unable to load scale config %s: %v", path, err)
	}
	return p, nil
}

// Builder validates the parameters and wires a pyramid builder.
func (p ScaleParams) Builder() (*pyramid.Builder, error) {
	if err := validate.Struct(p); err != nil {
		return nil, fmt.Errorf("bad scale parameters: %v", err)
	}
	format, err := storage.ParseFormat(p.Format)
	if err != nil {
		return nil, err
	}
	ptype, err := storage.ParsePixelType(p.PixelType)
	if err != nil {
		return nil, err
	}
	var pattern storage.Pattern
	if p.TilePattern != "" {
		if pattern, err = storage.ParsePattern(p.TilePattern); err != nil {
			return nil, err
		}
	} else {
		pattern = storage.DefaultPattern(p.BasePath, format)
	}
	return pyramid.NewBuilder(pyramid.Config{
		Pattern:    pattern,
		TileWidth:  p.TileWidth,
		TileHeight: p.TileHeight,
		MinX:       p.MinX,
		Width:      p.Width,
		MinY:       p.MinY,
		Height:     p.Height,
		MinZ:       p.MinZ,
		MaxZ:       p.MaxZ,
		Write: storage.WriteOptions{
			Format:    format,
			Quality:   p.Quality,
			PixelType: ptype,
			Gzip:      p.GzipTiles,
		},
		IgnoreEmpty: p.IgnoreEmpty,
		Background:  stacktile.Background(p.BGValue),
	})
}
