package vm

import "testing"

func assert(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatalf(format, args...)
	}
}

func TestDecodeUintSingleByte(t *testing.T) {
	v, next, ok := decodeUint([]byte{0x02}, 0)
	assert(t, ok, "expected ok")
	assert(t, v == 2, "got %d, want 2", v)
	assert(t, next == 1, "got next %d, want 1", next)
}

func TestDecodeUintMultiByte(t *testing.T) {
	// 256 encodes as 0x80 0x02, per the IMMEDIATE 128 example.
	v, next, ok := decodeUint([]byte{0x80, 0x02}, 0)
	assert(t, ok, "expected ok")
	assert(t, v == 256, "got %d, want 256", v)
	assert(t, next == 2, "got next %d, want 2", next)
}

func TestDecodeUintTruncated(t *testing.T) {
	_, _, ok := decodeUint([]byte{0x80, 0x80, 0x80}, 0)
	assert(t, !ok, "expected truncated varint to fail")
}

func TestDecodeUintOverflow(t *testing.T) {
	// Continuation bit set on every one of 11 bytes never terminates within
	// a 64-bit shift budget; the 11th byte is present, so the failure is the
	// shift limit rather than running off the end of the input.
	buf := make([]byte, 11)
	for i := range buf {
		buf[i] = 0x80
	}
	_, _, ok := decodeUint(buf, 0)
	assert(t, !ok, "expected shift overflow to fail")
}

func TestDecodeSintRoundTrip(t *testing.T) {
	cases := []int{0, 1, -1, 2, -2, 30, -30, 128, -128, 1000000, -1000000}
	for _, want := range cases {
		enc := encodeSint(nil, want)
		got, next, ok := decodeSint(enc, 0)
		assert(t, ok, "decode failed for %d", want)
		assert(t, got == want, "round trip %d -> %v -> %d", want, enc, got)
		assert(t, next == len(enc), "next %d != len(enc) %d", next, len(enc))
	}
}

func TestEncodeSintMatchesSpecExamples(t *testing.T) {
	// IMMEDIATE 128 encodes as 0x80 0x02 (zig-zag of 128 is 256).
	enc := encodeSint(nil, 128)
	assert(t, len(enc) == 2 && enc[0] == 0x80 && enc[1] == 0x02, "got % x", enc)

	// IMMEDIATE 30 encodes as a single byte 0x3C (zig-zag of 30 is 60).
	enc = encodeSint(nil, 30)
	assert(t, len(enc) == 1 && enc[0] == 0x3C, "got % x", enc)

	// IMMEDIATE -1 encodes as 0x01.
	enc = encodeSint(nil, -1)
	assert(t, len(enc) == 1 && enc[0] == 0x01, "got % x", enc)
}

func TestPadVarint(t *testing.T) {
	enc := encodeSint(nil, 4)
	padded := padVarint(enc, 5)
	assert(t, len(padded) == 5, "got len %d", len(padded))
	v, next, ok := decodeSint(padded, 0)
	assert(t, ok, "expected ok")
	assert(t, v == 4, "got %d, want 4", v)
	assert(t, next == 5, "got next %d, want 5", next)
}
