// Package page turns a decoded Teletext page grid into the single-line
// JSON datagram the UDP emitter sends downstream (spec §4.G). Field order
// and byte layout are assembled literally rather than through
// encoding/json, because the datagram's exact shape is a spec invariant,
// not an incidental serialization detail.
package page

import (
	"strconv"
	"unicode/utf8"
)

// maxDatagramSize bounds the buffer the serialiser builds into. Spec §4.G
// "Size bound" notes the worst case (25*40*3 + framing) is under 4 KiB;
// 8 KiB leaves ample headroom without ever truncating a valid 40x25 page.
const maxDatagramSize = 8192

// softHyphen and mosaicBase are the two non-attribute codepoint ranges
// spec §4.G step 2 requires scrubbing to space alongside control codes.
const (
	softHyphen = 0x00AD
	mosaicBase = 0xEE00
)

// Cells is the minimal view of a decoded page grid the serialiser needs;
// internal/vbi.Grid satisfies it.
type Cells struct {
	Columns int
	Rows    int
	Data    []rune
}

// Serialize builds the datagram for one completed page (spec §4.G). ts is
// the Unix second to embed — callers pass wall-clock time at event delivery
// (spec §9 "Open question — PTS vs wall-clock": wall-clock, not PTS).
//
// Serialize returns (nil, false) if the grid does not have exactly 25 rows
// or would not fit the buffer — spec §4.G/§7 "Serialisation truncation"
// requires dropping the page rather than sending a truncated datagram.
func Serialize(page, subpage int, ts int64, grid Cells) ([]byte, bool) {
	if grid.Rows != 25 {
		return nil, false
	}

	buf := make([]byte, 0, maxDatagramSize)
	buf = append(buf, `{"page":`...)
	buf = strconv.AppendInt(buf, int64(page), 10)
	buf = append(buf, `,"subpage":`...)
	buf = strconv.AppendInt(buf, int64(subpage), 10)
	buf = append(buf, `,"ts":`...)
	buf = strconv.AppendInt(buf, ts, 10)
	buf = append(buf, `,"lines":[`...)

	var rowBuf [256]byte
	for row := 0; row < grid.Rows; row++ {
		if row > 0 {
			buf = append(buf, ',')
		}

		line := rowBuf[:0]
		for col := 0; col < grid.Columns; col++ {
			u := scrub(grid.Data[row*grid.Columns+col])
			var enc [4]byte
			n := utf8.EncodeRune(enc[:], u)
			line = append(line, enc[:n]...)
		}
		line = trimTrailingSpaces(line)

		buf = append(buf, '"')
		buf = appendJSONEscaped(buf, line)
		buf = append(buf, '"')

		if len(buf) > maxDatagramSize-8 {
			return nil, false
		}
	}

	buf = append(buf, `]}`...)
	buf = append(buf, '\n')

	if len(buf) > maxDatagramSize {
		return nil, false
	}
	return buf, true
}

// scrub substitutes space for Teletext attribute cells, the soft hyphen,
// and the decoder's private-use mosaic range (spec §4.G step 2).
func scrub(u rune) rune {
	if u < 0x20 || u == softHyphen || u >= mosaicBase {
		return ' '
	}
	return u
}

func trimTrailingSpaces(line []byte) []byte {
	n := len(line)
	for n > 0 && line[n-1] == ' ' {
		n--
	}
	return line[:n]
}

// appendJSONEscaped appends line to dst with the five mandatory JSON
// escapes plus \u00XX for any other control byte; everything else
// (including UTF-8 continuation bytes) passes through verbatim (spec
// §4.G step 4).
func appendJSONEscaped(dst, line []byte) []byte {
	for _, c := range line {
		switch c {
		case '"':
			dst = append(dst, '\\', '"')
		case '\\':
			dst = append(dst, '\\', '\\')
		case '\n':
			dst = append(dst, '\\', 'n')
		case '\r':
			dst = append(dst, '\\', 'r')
		case '\t':
			dst = append(dst, '\\', 't')
		default:
			if c < 0x20 {
				dst = append(dst, '\\', 'u', '0', '0', hexDigit(c>>4), hexDigit(c&0xF))
			} else {
				dst = append(dst, c)
			}
		}
	}
	return dst
}

func hexDigit(n byte) byte {
	if n < 10 {
		return '0' + n
	}
	return 'a' + n - 10
}
