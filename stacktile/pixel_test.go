package stacktile

import (
	"testing"
)

func TestPixelChannels(t *testing.T) {
	p := ARGB(0x12, 0x34, 0x56, 0x78)
	if uint32(p) != 0x12345678 {
		t.Errorf("Bad packing: %08x\n", uint32(p))
	}
	if p.Alpha() != 0x12 || p.Red() != 0x34 || p.Green() != 0x56 || p.Blue() != 0x78 {
		t.Errorf("Bad channel extraction from %08x\n", uint32(p))
	}
	if p.RGB() != 0x345678 {
		t.Errorf("RGB should mask alpha: got %08x\n", p.RGB())
	}
}

func TestBackgroundComparesByRGB(t *testing.T) {
	bg := Background(30)
	if bg.Alpha() != 0 {
		t.Errorf("Background alpha should be zero: %08x\n", uint32(bg))
	}
	opaque := ARGB(0xFF, 30, 30, 30)
	if opaque.RGB() != bg.RGB() {
		t.Errorf("Opaque gray should match background by RGB\n")
	}
}

func TestGrayLuma(t *testing.T) {
	if got := ARGB(0xFF, 255, 255, 255).Gray(); got != 255 {
		t.Errorf("White luma: got %d\n", got)
	}
	if got := ARGB(0xFF, 0, 0, 0).Gray(); got != 0 {
		t.Errorf("Black luma: got %d\n", got)
	}
	// BT.601: 0.299*100 + 0.587*150 + 0.114*200, rounded.
	if got := ARGB(0xFF, 100, 150, 200).Gray(); got != 141 {
		t.Errorf("Mixed luma: got %d, expected 141\n", got)
	}
}

func TestTileIsBackground(t *testing.T) {
	bg := Background(10)
	tile := FilledTile(8, 8, ARGB(0x80, 10, 10, 10))
	if !tile.IsBackground(bg) {
		t.Errorf("Alpha must not affect emptiness\n")
	}
	tile.Set(3, 4, ARGB(0, 10, 11, 10))
	if tile.IsBackground(bg) {
		t.Errorf("Single differing pixel should defeat emptiness\n")
	}
}
