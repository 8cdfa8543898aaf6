package fontinfo

import (
	"encoding/binary"
	"fmt"
	"math/bits"
)

const maxCodePoint = 0x10FFFF

type encodingRecord struct {
	platformID uint16
	encodingID uint16
	format     uint16
	offset     uint32
}

// rank orders the usable Unicode subtables. Zero means unusable.
func (r encodingRecord) rank() int {
	switch r.format {
	case 12:
		switch {
		case r.platformID == 3 && r.encodingID == 10:
			return 4
		case r.platformID == 0:
			return 3
		}
	case 4:
		switch {
		case r.platformID == 3 && r.encodingID == 1:
			return 2
		case r.platformID == 0:
			return 1
		}
	}
	return 0
}

// CmapCharacters walks a raw cmap table and returns every code point that maps
// onto a glyph, sorted ascending. When numGlyphs is positive, mappings onto
// glyph ids outside the font are dropped.
func CmapCharacters(cmap []byte, numGlyphs int) ([]rune, error) {
	if len(cmap) < 4 {
		return nil, fmt.Errorf("%w: cmap header truncated", ErrParse)
	}
	numTables := int(binary.BigEndian.Uint16(cmap[2:]))
	if 4+numTables*8 > len(cmap) {
		return nil, fmt.Errorf("%w: cmap encoding records truncated", ErrParse)
	}

	var best encodingRecord
	for i := 0; i < numTables; i++ {
		rec := cmap[4+i*8:]
		r := encodingRecord{
			platformID: binary.BigEndian.Uint16(rec[0:]),
			encodingID: binary.BigEndian.Uint16(rec[2:]),
			offset:     binary.BigEndian.Uint32(rec[4:]),
		}
		if int64(r.offset)+2 > int64(len(cmap)) {
			continue
		}
		r.format = binary.BigEndian.Uint16(cmap[r.offset:])
		if r.rank() > best.rank() {
			best = r
		}
	}
	if best.rank() == 0 {
		return nil, fmt.Errorf("%w: no supported unicode cmap subtable", ErrParse)
	}

	sub := cmap[best.offset:]
	maxGlyph := uint32(0xFFFF)
	if numGlyphs > 0 && numGlyphs <= 0xFFFF {
		maxGlyph = uint32(numGlyphs - 1)
	}
	var set charSet
	var err error
	switch best.format {
	case 4:
		err = walkFormat4(sub, maxGlyph, &set)
	case 12:
		err = walkFormat12(sub, maxGlyph, &set)
	}
	if err != nil {
		return nil, err
	}
	return set.runes(), nil
}

// charSet is a bitset over the whole Unicode code space.
type charSet [(maxCodePoint + 1) / 64]uint64

func (s *charSet) add(c uint32) { s[c/64] |= 1 << (c % 64) }

// runes lists the members in ascending order.
func (s *charSet) runes() []rune {
	var out []rune
	for w, word := range s {
		for word != 0 {
			bit := bits.TrailingZeros64(word)
			out = append(out, rune(w*64+bit))
			word &^= 1 << bit
		}
	}
	return out
}

// walkFormat4 decodes a segment mapping to delta values subtable. Segments
// must be sorted by end code; a segment overlapping its predecessor is
// clipped, so every code point is visited at most once.
func walkFormat4(b []byte, maxGlyph uint32, set *charSet) error {
	const headerSize = 14
	if len(b) < headerSize {
		return fmt.Errorf("%w: cmap format 4 header truncated", ErrParse)
	}
	length := int(binary.BigEndian.Uint16(b[2:]))
	if length < headerSize || length > len(b) {
		length = len(b)
	}
	b = b[:length]

	segCountX2 := int(binary.BigEndian.Uint16(b[6:]))
	if segCountX2%2 != 0 {
		return fmt.Errorf("%w: cmap format 4 odd segment count", ErrParse)
	}
	segCount := segCountX2 / 2
	endCodes := headerSize
	startCodes := endCodes + segCountX2 + 2 // reservedPad
	deltas := startCodes + segCountX2
	rangeOffsets := deltas + segCountX2
	if rangeOffsets+segCountX2 > len(b) {
		return fmt.Errorf("%w: cmap format 4 segments truncated", ErrParse)
	}

	next := uint32(0)
	for i := 0; i < segCount; i++ {
		end := uint32(binary.BigEndian.Uint16(b[endCodes+2*i:]))
		start := uint32(binary.BigEndian.Uint16(b[startCodes+2*i:]))
		delta := binary.BigEndian.Uint16(b[deltas+2*i:])
		rangeOffsetPos := rangeOffsets + 2*i
		rangeOffset := int(binary.BigEndian.Uint16(b[rangeOffsetPos:]))
		segStart := start
		if start < next {
			start = next
		}
		if start > end {
			continue
		}
		next = end + 1
		for c := start; c <= end && c < 0xFFFF; c++ {
			var gid uint16
			if rangeOffset == 0 {
				gid = uint16(c) + delta
			} else {
				addr := rangeOffsetPos + rangeOffset + 2*int(c-segStart)
				if addr+2 > len(b) {
					continue
				}
				gid = binary.BigEndian.Uint16(b[addr:])
				if gid != 0 {
					gid += delta
				}
			}
			if gid != 0 && uint32(gid) <= maxGlyph {
				set.add(c)
			}
		}
	}
	return nil
}

// walkFormat12 decodes a segmented coverage subtable. Groups must be sorted
// by start code; overlaps are clipped like in format 4. Only the part of a
// group whose glyph ids fall in 1..maxGlyph is walked.
func walkFormat12(b []byte, maxGlyph uint32, set *charSet) error {
	const headerSize = 16
	if len(b) < headerSize {
		return fmt.Errorf("%w: cmap format 12 header truncated", ErrParse)
	}
	numGroups := int64(binary.BigEndian.Uint32(b[12:]))
	if headerSize+12*numGroups > int64(len(b)) {
		return fmt.Errorf("%w: cmap format 12 groups truncated", ErrParse)
	}

	next := int64(0)
	for i := int64(0); i < numGroups; i++ {
		g := b[headerSize+12*i:]
		start := int64(binary.BigEndian.Uint32(g[0:]))
		end := int64(binary.BigEndian.Uint32(g[4:]))
		startGlyph := int64(binary.BigEndian.Uint32(g[8:]))
		if end > maxCodePoint {
			end = maxCodePoint
		}
		if start > end {
			continue
		}
		// glyph(c) = startGlyph + c - start must lie in 1..maxGlyph.
		lo := max(start, next, start+1-startGlyph)
		hi := min(end, start+int64(maxGlyph)-startGlyph)
		if end+1 > next {
			next = end + 1
		}
		for c := lo; c <= hi; c++ {
			set.add(uint32(c))
		}
	}
	return nil
}
