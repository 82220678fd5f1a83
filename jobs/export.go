/*
	Package jobs turns declarative job parameters, loaded from TOML files
	or assembled by the command line tools, into configured exporters and
	pyramid builders.  All validation happens here, before any tile I/O
	begins.
*/
package jobs

import (
	"fmt"
	"math"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"

	"github.com/janelia-flyem/stacktile/export"
	"github.com/janelia-flyem/stacktile/resample"
	"github.com/janelia-flyem/stacktile/stacktile"
	"github.com/janelia-flyem/stacktile/storage"
	"github.com/janelia-flyem/stacktile/volume"
)

var validate = validator.New()

// ExportParams describe a scale level 0 export job: the source tile
// stack, an optional crop box, the export orientation and tiling, and
// an optional subset of the output tiles so jobs can be split across
// workers.
type ExportParams struct {
	// Source stack.  SourcePattern defaults to the conventional CATMAID
	// layout under SourceBaseURL.
	SourceBaseURL    string  `toml:"source_base_url"`
	SourcePattern    string  `toml:"source_pattern"`
	SourceWidth      int64   `toml:"source_width" validate:"gt=0"`
	SourceHeight     int64   `toml:"source_height" validate:"gt=0"`
	SourceDepth      int64   `toml:"source_depth" validate:"gt=0"`
	SourceScaleLevel int     `toml:"source_scale_level" validate:"gte=0,lte=62"`
	SourceTileWidth  int     `toml:"source_tile_width" validate:"gt=0"`
	SourceTileHeight int     `toml:"source_tile_height" validate:"gt=0"`
	SourceResXY      float64 `toml:"source_res_xy" validate:"gt=0"`
	SourceResZ       float64 `toml:"source_res_z" validate:"gt=0"`
	TileCacheSize    int     `toml:"tile_cache_size" validate:"gte=0"`

	// Crop box in scale level 0 pixels of the source stack.  Zero sizes
	// select the full extent.
	MinX   int64 `toml:"min_x" validate:"gte=0"`
	MinY   int64 `toml:"min_y" validate:"gte=0"`
	MinZ   int64 `toml:"min_z" validate:"gte=0"`
	Width  int64 `toml:"width" validate:"gte=0"`
	Height int64 `toml:"height" validate:"gte=0"`
	Depth  int64 `toml:"depth" validate:"gte=0"`

	Orientation   string `toml:"orientation" validate:"omitempty,oneof=xy yx xz zx zy yz"`
	Interpolation string `toml:"interpolation" validate:"omitempty,oneof=nn nl nearest nearest-neighbor linear trilinear"`
	TileWidth     int    `toml:"tile_width" validate:"gt=0"`
	TileHeight    int    `toml:"tile_height" validate:"gt=0"`

	// Export subset in crop box pixels; zero maxima select the full
	// crop extent.  Row and column limits, when set, take precedence
	// over the pixel limits on their axis.
	ExportMinX int64  `toml:"export_min_x" validate:"gte=0"`
	ExportMaxX int64  `toml:"export_max_x" validate:"gte=0"`
	ExportMinY int64  `toml:"export_min_y" validate:"gte=0"`
	ExportMaxY int64  `toml:"export_max_y" validate:"gte=0"`
	ExportMinZ int64  `toml:"export_min_z" validate:"gte=0"`
	ExportMaxZ int64  `toml:"export_max_z" validate:"gte=0"`
	ExportMinR *int64 `toml:"export_min_r"`
	ExportMaxR *int64 `toml:"export_max_r"`
	ExportMinC *int64 `toml:"export_min_c"`
	ExportMaxC *int64 `toml:"export_max_c"`

	// Output tile set.
	ExportBasePath string  `toml:"export_base_path"`
	TilePattern    string  `toml:"tile_pattern"`
	Format         string  `toml:"format"`
	Quality        int     `toml:"quality" validate:"gte=0,lte=100"`
	PixelType      string  `toml:"pixel_type" validate:"omitempty,oneof=rgb gray grey"`
	GzipTiles      bool    `toml:"gzip_tiles"`
	IgnoreEmpty    bool    `toml:"ignore_empty_tiles"`
	BGValue        uint8   `toml:"bg_value"`
}

// DefaultExportParams returns the export defaults: 256 pixel tiles,
// isotropic resolution, nearest-neighbor sampling, jpg output.
func DefaultExportParams() ExportParams {
	return ExportParams{
		SourceTileWidth:  256,
		SourceTileHeight: 256,
		SourceResXY:      1,
		SourceResZ:       1,
		TileWidth:        256,
		TileHeight:       256,
		Format:           "jpg",
		Quality:          storage.DefaultJPGQuality,
	}
}

// LoadExportParams reads export parameters from a TOML file on top of
// the defaults.
func LoadExportParams(path string) (ExportParams, error) {
	p := DefaultExportParams()
	if _, err := toml.DecodeFile(path, &p); err != nil {
		return p, fmt.Errorf("unable to load export config %s: %v", path, err)
	}
	return p, nil
}

// ExportJob is a fully wired export: the exporter plus the tile range
// it should run.
type ExportJob struct {
	Exporter *export.Exporter
	Range    export.Range
}

// scaleDown converts a level 0 coordinate to the working scale by the
// given divisor.
func scaleDown(v int64, div float64) int64 {
	return int64(float64(v) / div)
}

// Job validates the parameters and wires the source volume, resampled
// view, and exporter.
func (p ExportParams) Job() (*ExportJob, error) {
	if err := validate.Struct(p); err != nil {
		return nil, fmt.Errorf("bad export parameters: %v", err)
	}
	orientation, err := stacktile.ParseOrientation(p.Orientation)
	if err != nil {
		return nil, err
	}
	interp, err := stacktile.ParseInterpolation(p.Interpolation)
	if err != nil {
		return nil, err
	}
	format, err := storage.ParseFormat(p.Format)
	if err != nil {
		return nil, err
	}
	ptype, err := storage.ParsePixelType(p.PixelType)
	if err != nil {
		return nil, err
	}

	var srcPattern storage.Pattern
	if p.SourcePattern != "" {
		if srcPattern, err = storage.ParsePattern(p.SourcePattern); err != nil {
			return nil, err
		}
	} else {
		srcPattern = storage.DefaultPattern(p.SourceBaseURL, storage.JPG)
	}
	var outPattern storage.Pattern
	if p.TilePattern != "" {
		if outPattern, err = storage.ParsePattern(p.TilePattern); err != nil {
			return nil, err
		}
	} else {
		outPattern = storage.DefaultPattern(p.ExportBasePath, format)
	}

	// Crop box, full stack when unset.
	width := p.Width
	if width == 0 {
		width = p.SourceWidth - p.MinX
	}
	height := p.Height
	if height == 0 {
		height = p.SourceHeight - p.MinY
	}
	depth := p.Depth
	if depth == 0 {
		depth = p.SourceDepth - p.MinZ
	}

	vol, err := volume.NewVolume(volume.Config{
		Pattern:    srcPattern,
		Width:      p.SourceWidth,
		Height:     p.SourceHeight,
		Depth:      p.SourceDepth,
		ScaleLevel: p.SourceScaleLevel,
		TileWidth:  p.SourceTileWidth,
		TileHeight: p.SourceTileHeight,
		Background: stacktile.Background(p.BGValue),
		CacheSize:  p.TileCacheSize,
	})
	if err != nil {
		return nil, err
	}
	view, err := resample.NewView(resample.Config{
		Source:        vol,
		Width:         p.SourceWidth,
		Height:        p.SourceHeight,
		Depth:         p.SourceDepth,
		ScaleLevel:    p.SourceScaleLevel,
		ResXY:         p.SourceResXY,
		ResZ:          p.SourceResZ,
		OffsetX:       p.MinX,
		OffsetY:       p.MinY,
		OffsetZ:       p.MinZ,
		Interpolation: interp,
	})
	if err != nil {
		return nil, err
	}

	// The exported window is the crop box rescaled to the working
	// scale, isotropic in z.
	scaleXYDiv := float64(int64(1) << uint(p.SourceScaleLevel))
	scaleZDiv := scaleXYDiv * p.SourceResXY / p.SourceResZ
	window := stacktile.NewBounds(0, 0, 0,
		scaleDown(width, scaleXYDiv),
		scaleDown(height, scaleXYDiv),
		scaleDown(depth, scaleZDiv))

	exporter, err := export.NewExporter(export.Config{
		Source:      view,
		Window:      window,
		Orientation: orientation,
		TileWidth:   p.TileWidth,
		TileHeight:  p.TileHeight,
		Pattern:     outPattern,
		Write: storage.WriteOptions{
			Format:    format,
			Quality:   p.Quality,
			PixelType: ptype,
			Gzip:      p.GzipTiles,
		},
		IgnoreEmpty: p.IgnoreEmpty,
		Background:  stacktile.Background(p.BGValue),
	})
	if err != nil {
		return nil, err
	}

	rng, err := p.exportRange(window, orientation)
	if err != nil {
		return nil, err
	}
	return &ExportJob{Exporter: exporter, Range: rng}, nil
}

// exportRange derives the tile range from the pixel limits, rescaled to
// the working scale and permuted to the export orientation.  Explicit
// row and column limits take precedence over the derived ones.
func (p ExportParams) exportRange(window stacktile.Bounds, orientation stacktile.Orientation) (export.Range, error) {
	scaleXYDiv := float64(int64(1) << uint(p.SourceScaleLevel))
	scaleZDiv := scaleXYDiv * p.SourceResXY / p.SourceResZ

	scaled := stacktile.Bounds{
		Min: [3]int64{
			scaleDown(p.ExportMinX, scaleXYDiv),
			scaleDown(p.ExportMinY, scaleXYDiv),
			scaleDown(p.ExportMinZ, scaleZDiv),
		},
		// Unset maxima cover the full window, whose dimensions are
		// already at the working scale.
		Max: [3]int64{window.Dim(0), window.Dim(1), window.Dim(2)},
	}
	if p.ExportMaxX != 0 {
		scaled.Max[0] = scaleDown(p.ExportMaxX, scaleXYDiv)
	}
	if p.ExportMaxY != 0 {
		scaled.Max[1] = scaleDown(p.ExportMaxY, scaleXYDiv)
	}
	if p.ExportMaxZ != 0 {
		scaled.Max[2] = scaleDown(p.ExportMaxZ, scaleZDiv)
	}
	for axis := 0; axis < 3; axis++ {
		if scaled.Max[axis] < scaled.Min[axis] {
			return export.Range{}, fmt.Errorf("export range end before start on axis %d: [%d, %d]",
				axis, scaled.Min[axis], scaled.Max[axis])
		}
	}
	oriented := orientation.PermuteBounds(scaled)
	sections := orientation.PermuteBounds(window).Dim(2)

	r := export.Range{
		MinZ:   oriented.Min[2],
		MaxZ:   oriented.Max[2],
		MinRow: oriented.Min[1] / int64(p.TileHeight),
		MaxRow: int64(math.Ceil(float64(oriented.Max[1])/float64(p.TileHeight) - 1)),
		MinCol: oriented.Min[0] / int64(p.TileWidth),
		MaxCol: int64(math.Ceil(float64(oriented.Max[0])/float64(p.TileWidth) - 1)),
	}
	if p.ExportMinR != nil {
		r.MinRow = *p.ExportMinR
	}
	if p.ExportMaxR != nil {
		r.MaxRow = *p.ExportMaxR
	}
	if p.ExportMinC != nil {
		r.MinCol = *p.ExportMinC
	}
	if p.ExportMaxC != nil {
		r.MaxCol = *p.ExportMaxC
	}
	// Sections past the window would only ever raster background.
	if r.MaxZ > sections-1 {
		r.MaxZ = sections - 1
	}
	if r.MaxRow < r.MinRow || r.MaxCol < r.MinCol || r.MaxZ < r.MinZ {
		return export.Range{}, fmt.Errorf("empty export tile range %+v", r)
	}
	return r, nil
}
