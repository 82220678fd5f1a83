package jobs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/janelia-flyem/stacktile/export"
)

func i64(v int64) *int64 {
	return &v
}

func testExportParams() ExportParams {
	p := DefaultExportParams()
	p.SourceBaseURL = "http://example.com/stack/"
	p.SourceWidth = 512
	p.SourceHeight = 512
	p.SourceDepth = 4
	p.ExportBasePath = "/tmp/out"
	return p
}

func TestLoadExportParams(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "export.toml")
	config := `
source_base_url = "http://example.com/stack/"
source_width = 2048
source_height = 1024
source_depth = 16
source_scale_level = 1
source_res_xy = 4.0
source_res_z = 40.0
orientation = "zy"
interpolation = "nl"
format = "png"
ignore_empty_tiles = true
export_min_r = 2
`
	if err := os.WriteFile(path, []byte(config), 0644); err != nil {
		t.Fatalf("Unable to write config: %v\n", err)
	}
	p, err := LoadExportParams(path)
	if err != nil {
		t.Fatalf("Unable to load export params: %v\n", err)
	}
	if p.SourceWidth != 2048 || p.SourceDepth != 16 || p.SourceScaleLevel != 1 {
		t.Errorf("Source geometry not loaded: %+v\n", p)
	}
	if p.Orientation != "zy" || p.Interpolation != "nl" || p.Format != "png" {
		t.Errorf("Export options not loaded: %+v\n", p)
	}
	if !p.IgnoreEmpty {
		t.Errorf("ignore_empty_tiles not loaded\n")
	}
	if p.ExportMinR == nil || *p.ExportMinR != 2 {
		t.Errorf("export_min_r not loaded: %v\n", p.ExportMinR)
	}
	// Defaults survive underneath the file.
	if p.TileWidth != 256 || p.Quality != 85 {
		t.Errorf("Defaults lost during load: %+v\n", p)
	}
}

func TestExportJobValidation(t *testing.T) {
	p := DefaultExportParams()
	// Missing source dimensions.
	if _, err := p.Job(); err == nil {
		t.Errorf("Expected validation error for missing source dimensions\n")
	}

	p = testExportParams()
	p.Orientation = "diagonal"
	if _, err := p.Job(); err == nil {
		t.Errorf("Expected validation error for unknown orientation\n")
	}

	p = testExportParams()
	p.ExportMinX = 400
	p.ExportMaxX = 100
	if _, err := p.Job(); err == nil {
		t.Errorf("Expected validation error for inverted x range\n")
	}
}

func TestExportRangeDerivation(t *testing.T) {
	p := testExportParams()
	job, err := p.Job()
	if err != nil {
		t.Fatalf("Unable to build export job: %v\n", err)
	}
	want := export.Range{MaxZ: 3, MaxRow: 1, MaxCol: 1}
	if job.Range != want {
		t.Errorf("Default range: got %+v, expected %+v\n", job.Range, want)
	}

	// Pixel limits narrow the derived tile range.
	p = testExportParams()
	p.ExportMaxX = 256
	job, err = p.Job()
	if err != nil {
		t.Fatalf("Unable to build export job: %v\n", err)
	}
	if job.Range.MaxCol != 0 {
		t.Errorf("export_max_x=256 should bound to column 0, got %+v\n", job.Range)
	}

	// Explicit row limits take precedence over pixel limits.
	p = testExportParams()
	p.ExportMinY = 300
	p.ExportMinR = i64(0)
	job, err = p.Job()
	if err != nil {
		t.Fatalf("Unable to build export job: %v\n", err)
	}
	if job.Range.MinRow != 0 {
		t.Errorf("export_min_r should override export_min_y, got %+v\n", job.Range)
	}
}

func TestExportRangeResliced(t *testing.T) {
	p := testExportParams()
	p.SourceDepth = 8
	p.TileWidth = 64
	p.TileHeight = 64
	p.Orientation = "zy"
	job, err := p.Job()
	if err != nil {
		t.Fatalf("Unable to build export job: %v\n", err)
	}
	// ZY: z across (8 pixels, one 64-tile column), y down (512, 8
	// rows), x as section (512 sections).
	want := export.Range{MaxZ: 511, MaxRow: 7, MaxCol: 0}
	if job.Range != want {
		t.Errorf("ZY range: got %+v, expected %+v\n", job.Range, want)
	}
}

func TestScaleParamsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scale.toml")
	config := `
base_path = "/data/tiles"
min_z = 10
max_z = 20
width = 4096
height = 4096
ignore_empty_tiles = true
quality = 90
`
	if err := os.WriteFile(path, []byte(config), 0644); err != nil {
		t.Fatalf("Unable to write config: %v\n", err)
	}
	p, err := LoadScaleParams(path)
	if err != nil {
		t.Fatalf("Unable to load scale params: %v\n", err)
	}
	if p.MinZ != 10 || p.MaxZ != 20 || p.Width != 4096 || p.Quality != 90 {
		t.Errorf("Scale params not loaded: %+v\n", p)
	}
	if _, err := p.Builder(); err != nil {
		t.Errorf("Unable to build pyramid builder: %v\n", err)
	}
}

func TestScaleParamsUnboundedIgnoreEmpty(t *testing.T) {
	p := DefaultScaleParams()
	p.IgnoreEmpty = true
	if _, err := p.Builder(); err == nil {
		t.Errorf("Expected error for unbounded ignore-empty build\n")
	}
}
