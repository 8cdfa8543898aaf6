// Package fontinfo reads what the catalog needs from a font binary: a style
// label taken from the file name and the set of characters the font renders.
package fontinfo

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/image/font/sfnt"
)

// ErrParse marks a font binary whose tables could not be read.
var ErrParse = errors.New("font binary unparseable")

// GlyphSet returns the printable characters a font binary maps to glyphs,
// ordered by code point.
func GlyphSet(data []byte) ([]string, error) {
	f, err := sfnt.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	cmap, err := findTable(data, "cmap")
	if err != nil {
		return nil, err
	}
	chars, err := CmapCharacters(cmap, f.NumGlyphs())
	if err != nil {
		return nil, err
	}
	return Printable(chars), nil
}

// Printable converts code points to strings, keeping the space character and
// every graphic character that is not whitespace.
func Printable(chars []rune) []string {
	out := make([]string, 0, len(chars))
	for _, r := range chars {
		s := string(r)
		if s == " " {
			out = append(out, s)
			continue
		}
		if strings.TrimSpace(s) == "" || !unicode.IsGraphic(r) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// findTable locates a table in the sfnt table directory.
func findTable(data []byte, tag string) ([]byte, error) {
	if len(data) < 12 {
		return nil, fmt.Errorf("%w: table directory truncated", ErrParse)
	}
	numTables := int(binary.BigEndian.Uint16(data[4:]))
	if 12+16*numTables > len(data) {
		return nil, fmt.Errorf("%w: table records truncated", ErrParse)
	}
	for i := 0; i < numTables; i++ {
		rec := data[12+16*i:]
		if string(rec[:4]) != tag {
			continue
		}
		offset := int64(binary.BigEndian.Uint32(rec[8:]))
		length := int64(binary.BigEndian.Uint32(rec[12:]))
		if offset+length > int64(len(data)) {
			return nil, fmt.Errorf("%w: %s table out of bounds", ErrParse, tag)
		}
		return data[offset : offset+length], nil
	}
	return nil, fmt.Errorf("%w: no %s table", ErrParse, tag)
}
