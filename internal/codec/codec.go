// Package codec converts between the 8-bit byte stream spoken by BBSes
// and Unicode text.
//
// Remote bytes are interpreted as CP437: bytes 0x00-0x7F keep their
// ASCII/control meaning, so ANSI escape sequences pass through untouched,
// while bytes 0x80-0xFF map to the box-drawing glyphs, accented letters,
// and symbols BBS art depends on. Decoding is total: every byte value has
// a mapping, so it can never fail and input may be chunked arbitrarily.
package codec

import (
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// highTable maps bytes 0x80-0xFF to their CP437 code points.
// Built once at startup from the x/text CP437 charmap.
var highTable [128]rune

func init() {
	for i := range highTable {
		highTable[i] = charmap.CodePage437.DecodeByte(byte(0x80 + i))
	}
}

// Decode converts raw bytes from the remote into displayable text.
// Total over all byte values; stateless, so callers may split the
// stream at any boundary.
func Decode(data []byte) string {
	var sb strings.Builder
	sb.Grow(len(data))
	for _, b := range data {
		if b < 0x80 {
			sb.WriteByte(b)
		} else {
			sb.WriteRune(highTable[b-0x80])
		}
	}
	return sb.String()
}

// EncodeASCII converts outbound text to wire bytes. User input is
// constrained to printable ASCII plus control codes, so runes 0-127 map
// to themselves; anything outside that range becomes '?'.
func EncodeASCII(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r < 0x80 {
			out = append(out, byte(r))
		} else {
			out = append(out, '?')
		}
	}
	return out
}
