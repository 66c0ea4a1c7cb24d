package codec

import "testing"

func TestDecodeASCIIIdentity(t *testing.T) {
	data := make([]byte, 128)
	for i := range data {
		data[i] = byte(i)
	}

	got := Decode(data)
	for i, r := range []rune(got) {
		if r != rune(i) {
			t.Fatalf("byte %d decoded to %U, want %U", i, r, rune(i))
		}
	}
}

func TestDecodeEscapeSequencePassthrough(t *testing.T) {
	// A typical ANSI color sequence must survive decoding byte for byte.
	seq := "\x1b[1;33mHello\x1b[0m"
	if got := Decode([]byte(seq)); got != seq {
		t.Errorf("Decode(%q) = %q", seq, got)
	}
}

func TestDecodeHighBytes(t *testing.T) {
	tests := []struct {
		b    byte
		want rune
	}{
		{0xB0, '░'}, // light shade
		{0xB1, '▒'}, // medium shade
		{0xB2, '▓'}, // dark shade
		{0xC4, '─'}, // box-drawing horizontal
		{0xB3, '│'}, // box-drawing vertical
		{0xDA, '┌'}, // box-drawing corner
		{0x82, 'é'}, // accented Latin
		{0xE0, 'α'}, // math/Greek
		{0xFB, '√'},
		{0xFF, ' '}, // non-breaking space
	}

	for _, tt := range tests {
		if got := Decode([]byte{tt.b}); got != string(tt.want) {
			t.Errorf("Decode(0x%02X) = %q, want %q", tt.b, got, string(tt.want))
		}
	}
}

func TestDecodeIsTotal(t *testing.T) {
	for i := 0; i < 256; i++ {
		got := Decode([]byte{byte(i)})
		if len(got) == 0 {
			t.Fatalf("byte 0x%02X decoded to empty string", i)
		}
	}
}

func TestDecodeChunkingIndependence(t *testing.T) {
	data := []byte("line one\r\n\xB0\xB1\xB2 art \x1b[2J")

	whole := Decode(data)
	var pieces string
	for _, b := range data {
		pieces += Decode([]byte{b})
	}

	if whole != pieces {
		t.Errorf("chunked decode differs: %q vs %q", whole, pieces)
	}
}

func TestEncodeASCIIRoundTrip(t *testing.T) {
	// Decoding then re-encoding the ASCII subrange is the identity.
	data := make([]byte, 128)
	for i := range data {
		data[i] = byte(i)
	}

	got := EncodeASCII(Decode(data))
	if len(got) != len(data) {
		t.Fatalf("round trip length = %d, want %d", len(got), len(data))
	}
	for i := range data {
		if got[i] != data[i] {
			t.Errorf("round trip byte %d = 0x%02X, want 0x%02X", i, got[i], data[i])
		}
	}
}

func TestEncodeASCIIReplacesNonASCII(t *testing.T) {
	if got := EncodeASCII("a░b"); string(got) != "a?b" {
		t.Errorf("EncodeASCII(\"a░b\") = %q, want \"a?b\"", got)
	}
}
