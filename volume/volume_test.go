package volume

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/janelia-flyem/stacktile/stacktile"
	"github.com/janelia-flyem/stacktile/storage"
)

// pngTile encodes a tile whose pixel at (x, y) is rgb(value(x,y), row,
// col), so tests can verify tile addressing from decoded pixels.
func pngTile(t *testing.T, width, height int, row, col int64) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := img.PixOffset(x, y)
			img.Pix[i] = uint8(x ^ y)
			img.Pix[i+1] = uint8(row)
			img.Pix[i+2] = uint8(col)
			img.Pix[i+3] = 0xFF
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Unable to encode test tile: %v\n", err)
	}
	return buf.Bytes()
}

func testServer(t *testing.T, tileW, tileH int, hits *int64) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt64(hits, 1)
		}
		var z, row, col int64
		var s int
		if n, err := fmt.Sscanf(r.URL.Path, "/%d/%d_%d_%d.png", &z, &row, &col, &s); n != 4 || err != nil {
			http.NotFound(w, r)
			return
		}
		w.Write(pngTile(t, tileW, tileH, row, col))
	}))
}

func testConfig(baseURL string) Config {
	return Config{
		Pattern:    storage.DefaultPattern(baseURL, storage.PNG),
		Width:      1024,
		Height:     768,
		Depth:      4,
		TileWidth:  64,
		TileHeight: 64,
		Background: stacktile.Background(0),
	}
}

func TestVolumeBounds(t *testing.T) {
	v, err := NewVolume(Config{
		Pattern:    storage.DefaultPattern("/tiles", storage.PNG),
		Width:      1021,
		Height:     513,
		Depth:      10,
		ScaleLevel: 1,
		TileWidth:  256,
		TileHeight: 256,
	})
	if err != nil {
		t.Fatalf("Unable to create volume: %v\n", err)
	}
	b := v.Bounds()
	// floor(0.5 * 1021) - 1 = 509, floor(0.5 * 513) - 1 = 255
	if b.Max[0] != 509 || b.Max[1] != 255 || b.Max[2] != 9 {
		t.Errorf("Bad bounds at scale level 1: %s\n", b)
	}
	// ceil(510.5 / 256) = 2, ceil(256.5 / 256) = 2
	if v.Cols() != 2 || v.Rows() != 2 {
		t.Errorf("Bad tile grid: %d cols x %d rows, expected 2 x 2\n", v.Cols(), v.Rows())
	}
}

func TestVolumeSample(t *testing.T) {
	srv := testServer(t, 64, 64, nil)
	defer srv.Close()

	v, err := NewVolume(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Unable to create volume: %v\n", err)
	}
	// (100, 70) lies in tile row 1, col 1 at offset (36, 6).
	p := v.Sample(100, 70, 2)
	if p.Red() != uint8(36^6) || p.Green() != 1 || p.Blue() != 1 {
		t.Errorf("Bad sample at (100, 70, 2): %08x\n", uint32(p))
	}
	if v.Err() != nil {
		t.Errorf("Unexpected volume error: %v\n", v.Err())
	}
}

func TestSingleFlightFetch(t *testing.T) {
	var hits int64
	srv := testServer(t, 64, 64, &hits)
	defer srv.Close()

	v, err := NewVolume(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Unable to create volume: %v\n", err)
	}

	// All goroutines sample within tile (0, 0, 0), which the access
	// handles also fetch at construction.
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(n int64) {
			defer wg.Done()
			v.Sample(n%64, n%64, 0)
		}(int64(i))
	}
	wg.Wait()

	if got := atomic.LoadInt64(&hits); got != 1 {
		t.Errorf("Tile fetched %d times under concurrent access, expected 1\n", got)
	}
}

func TestMissingTileIsBackground(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Background = stacktile.Background(127)
	v, err := NewVolume(cfg)
	if err != nil {
		t.Fatalf("Unable to create volume: %v\n", err)
	}
	p := v.Sample(10, 10, 0)
	if p.RGB() != stacktile.Background(127).RGB() {
		t.Errorf("Missing tile should sample as background: got %08x\n", uint32(p))
	}
	if v.Err() != nil {
		t.Errorf("Missing tiles are not fatal: %v\n", v.Err())
	}
}

func TestCursorMatchesSample(t *testing.T) {
	srv := testServer(t, 64, 64, nil)
	defer srv.Close()

	v, err := NewVolume(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Unable to create volume: %v\n", err)
	}

	// Scan a window crossing tile boundaries with the incremental
	// cursor and check every pixel against division addressing.
	access := v.Access()
	for z := int64(0); z < 2; z++ {
		for y := int64(60); y < 70; y++ {
			access.SetPosition(60, y, z)
			for x := int64(60); x < 132; x++ {
				if got, want := access.Get(), v.Sample(x, y, z); got != want {
					t.Fatalf("Cursor differs at (%d, %d, %d): got %08x, expected %08x\n",
						x, y, z, uint32(got), uint32(want))
				}
				access.Fwd(0)
			}
		}
	}
	if access.Err() != nil {
		t.Errorf("Unexpected cursor error: %v\n", access.Err())
	}
}

func TestCursorMove(t *testing.T) {
	srv := testServer(t, 64, 64, nil)
	defer srv.Close()

	v, err := NewVolume(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Unable to create volume: %v\n", err)
	}
	c := v.Access().(*Cursor)
	c.SetPosition(10, 10, 0)
	c.Move(30, 0)   // still tile col 0
	c.Move(100, 1)  // crosses into tile row 1
	if got, want := c.Get(), v.Sample(40, 110, 0); got != want {
		t.Errorf("Cursor after moves: got %08x, expected %08x\n", uint32(got), uint32(want))
	}
	c.Bck(0)
	c.Bck(1)
	if got, want := c.Get(), v.Sample(39, 109, 0); got != want {
		t.Errorf("Cursor after backward steps: got %08x, expected %08x\n", uint32(got), uint32(want))
	}
	c.Fwd(2)
	if got, want := c.Get(), v.Sample(39, 109, 1); got != want {
		t.Errorf("Cursor after z step: got %08x, expected %08x\n", uint32(got), uint32(want))
	}
}

func TestReclaimRefetches(t *testing.T) {
	var hits int64
	srv := testServer(t, 64, 64, &hits)
	defer srv.Close()

	v, err := NewVolume(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Unable to create volume: %v\n", err)
	}
	v.Sample(0, 0, 0)
	v.Sample(1, 1, 0)
	if got := atomic.LoadInt64(&hits); got != 1 {
		t.Fatalf("Expected 1 fetch before reclaim, got %d\n", got)
	}
	v.Reclaim()
	v.Sample(2, 2, 0)
	if got := atomic.LoadInt64(&hits); got != 2 {
		t.Errorf("Expected refetch after reclaim, got %d fetches\n", got)
	}
}
