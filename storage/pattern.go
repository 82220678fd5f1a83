/*
	This file supports the tile naming pattern shared by the fetch and
	write paths.  A pattern maps a tile's coordinates and geometry to a
	storage location: a filesystem path or an HTTP URL.
*/

package storage

import (
	"fmt"
	"strconv"
	"strings"
)

// Fields are the values substituted into a naming pattern.  X, Y give the
// pixel-space origin of the tile and Width, Height its pixel dimensions,
// in whatever space the tile set's naming convention uses.
type Fields struct {
	ScaleLevel int
	Scale      float64 // 1 / 2^ScaleLevel
	X, Y, Z    int64
	Width      int
	Height     int
	Row, Col   int64
}

// Placeholder names recognized in a pattern, in the canonical field order.
var patternFields = []string{"s", "scale", "x", "y", "z", "width", "height", "row", "col"}

type segment struct {
	literal string
	field   int // index into patternFields, or -1 for a literal
}

// Pattern is a parsed tile naming pattern.  Placeholders are written in
// braces, e.g. "{z}/{row}_{col}_{s}.jpg".  All nine fields are available
// to any custom pattern; unrecognized placeholders are rejected at parse
// time, before any tile work begins.
type Pattern struct {
	src  string
	segs []segment
}

// ParsePattern compiles a naming pattern.
func ParsePattern(s string) (Pattern, error) {
	if s == "" {
		return Pattern{}, fmt.Errorf("empty tile naming pattern")
	}
	p := Pattern{src: s}
	rest := s
	for len(rest) > 0 {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			p.segs = append(p.segs, segment{literal: rest, field: -1})
			break
		}
		if open > 0 {
			p.segs = append(p.segs, segment{literal: rest[:open], field: -1})
		}
		closing := strings.IndexByte(rest[open:], '}')
		if closing < 0 {
			return Pattern{}, fmt.Errorf("unterminated placeholder in tile pattern %q", s)
		}
		name := rest[open+1 : open+closing]
		field := -1
		for i, known := range patternFields {
			if name == known {
				field = i
				break
			}
		}
		if field < 0 {
			return Pattern{}, fmt.Errorf("unknown placeholder {%s} in tile pattern %q", name, s)
		}
		p.segs = append(p.segs, segment{field: field})
		rest = rest[open+closing+1:]
	}
	return p, nil
}

// MustParsePattern is ParsePattern for patterns known good at compile time.
func MustParsePattern(s string) Pattern {
	p, err := ParsePattern(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Pattern) String() string {
	return p.src
}

// Empty returns true for the zero pattern.
func (p Pattern) Empty() bool {
	return len(p.segs) == 0
}

// Resolve substitutes the fields into the pattern and returns the tile
// location.  Scale is formatted with the shortest decimal representation,
// so level 0 yields "1" and level 2 yields "0.25".
func (p Pattern) Resolve(f Fields) string {
	var b strings.Builder
	b.Grow(len(p.src) + 16)
	for _, seg := range p.segs {
		if seg.field < 0 {
			b.WriteString(seg.literal)
			continue
		}
		switch patternFields[seg.field] {
		case "s":
			b.WriteString(strconv.Itoa(f.ScaleLevel))
		case "scale":
			b.WriteString(strconv.FormatFloat(f.Scale, 'f', -1, 64))
		case "x":
			b.WriteString(strconv.FormatInt(f.X, 10))
		case "y":
			b.WriteString(strconv.FormatInt(f.Y, 10))
		case "z":
			b.WriteString(strconv.FormatInt(f.Z, 10))
		case "width":
			b.WriteString(strconv.Itoa(f.Width))
		case "height":
			b.WriteString(strconv.Itoa(f.Height))
		case "row":
			b.WriteString(strconv.FormatInt(f.Row, 10))
		case "col":
			b.WriteString(strconv.FormatInt(f.Col, 10))
		}
	}
	return b.String()
}

// DefaultPattern returns the conventional tile layout used by CATMAID
// stacks, "{z}/{row}_{col}_{s}" plus the format extension, rooted at the
// given base path.
func DefaultPattern(basePath string, format Format) Pattern {
	var prefix string
	if basePath != "" {
		prefix = strings.TrimSuffix(basePath, "/") + "/"
	}
	return MustParsePattern(prefix + "{z}/{row}_{col}_{s}." + format.Ext())
}
