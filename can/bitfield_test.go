package can

import (
	"encoding/binary"
	"math"
	"testing"
)

var (
	msgLE = [8]byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88}
	msgBE = [8]byte{0x88, 0x77, 0x66, 0x55, 0x44, 0x33, 0x22, 0x11}
)

func near(a, b float32) bool {
	return math.Abs(float64(a-b)) <= 1e-3*math.Max(1, math.Abs(float64(b)))
}

func TestDecodeArray_EngineSpeed(t *testing.T) {
	v, ok := DecodeArray(24, 16, true, 0.125, 0, &msgLE)
	if !ok || v != 2728.5 {
		t.Errorf("little endian = %v, %v; want 2728.5", v, ok)
	}

	v, ok = DecodeArray(24, 16, false, 0.125, 0, &msgBE)
	if !ok || v != 2728.5 {
		t.Errorf("big endian = %v, %v; want 2728.5", v, ok)
	}
}

func TestDecodeSlice_EngineSpeed(t *testing.T) {
	v, ok := DecodeSlice(24, 16, true, 0.125, 0, msgLE[:])
	if !ok || v != 2728.5 {
		t.Errorf("got %v, %v; want 2728.5", v, ok)
	}
}

// placeRaw writes raw at startBit of the 64-bit word in the given order.
func placeRaw(raw uint64, startBit int, littleEndian bool) [8]byte {
	var b [8]byte
	w := raw << uint(startBit)
	if littleEndian {
		binary.LittleEndian.PutUint64(b[:], w)
	} else {
		binary.BigEndian.PutUint64(b[:], w)
	}
	return b
}

func TestDecode_RawTimesScalePlusOffset(t *testing.T) {
	tests := []struct {
		startBit, bitLen int
		raw              uint64
		scale, offset    float32
	}{
		{0, 1, 1, 1, 0},
		{0, 8, 0xAB, 0.5, -10},
		{3, 5, 0x1F, 2, 1},
		{7, 12, 0xABC, 0.1, 0},
		{8, 16, 0xBEEF, 0.125, -40},
		{32, 20, 0xFFFFF, 0.001, 3},
		{40, 24, 0x123456, 1, 0},
		{1, 63, 0x1234, 1, 0},
	}

	for _, tt := range tests {
		for _, le := range []bool{true, false} {
			want := float32(tt.raw)*tt.scale + tt.offset
			msg := placeRaw(tt.raw, tt.startBit, le)

			got, ok := DecodeArray(tt.startBit, tt.bitLen, le, tt.scale, tt.offset, &msg)
			if !ok || !near(got, want) {
				t.Errorf("DecodeArray(%d,%d,le=%v) = %v,%v want %v", tt.startBit, tt.bitLen, le, got, ok, want)
			}

			// the slice path only sees the same word when no bytes are skipped
			if tt.startBit < 8 {
				got, ok = DecodeSlice(tt.startBit, tt.bitLen, le, tt.scale, tt.offset, msg[:])
				if !ok || !near(got, want) {
					t.Errorf("DecodeSlice(%d,%d,le=%v) = %v,%v want %v", tt.startBit, tt.bitLen, le, got, ok, want)
				}
			}
		}
	}
}

func TestDecodeSlice_SkipsWholeBytes(t *testing.T) {
	// raw 0x0155 at bit 2 of byte 3, little endian
	msg := []byte{0xFF, 0xFF, 0xFF, 0, 0, 0, 0, 0, 0xFF, 0xFF}
	msg[3] = byte(0x155 << 2 & 0xFF)
	msg[4] = byte(0x155 << 2 >> 8)

	got, ok := DecodeSlice(26, 9, true, 1, 0, msg)
	if !ok || got != 0x155 {
		t.Errorf("got %v, %v; want %v", got, ok, float32(0x155))
	}
}

func TestDecodeSlice_ShortBufferZeroPadded(t *testing.T) {
	short := []byte{0x34, 0x12, 0x56}
	padded := []byte{0x34, 0x12, 0x56, 0, 0, 0, 0, 0}

	for _, le := range []bool{true, false} {
		for _, sb := range []int{0, 4, 8, 12, 16} {
			a, okA := DecodeSlice(sb, 12, le, 0.5, 1, short)
			b, okB := DecodeSlice(sb, 12, le, 0.5, 1, padded)
			if okA != okB || a != b {
				t.Errorf("le=%v start=%d: short %v,%v padded %v,%v", le, sb, a, okA, b, okB)
			}
		}
	}

	// start beyond the payload has no value
	if v, ok := DecodeSlice(40, 8, true, 1, 7, short); ok {
		t.Errorf("beyond payload = %v, %v; want no value", v, ok)
	}
	if v, ok := DecodeSlice(80, 8, true, 1, 5, []byte{0x01, 0x02}); ok {
		t.Errorf("start 80 on 2 bytes = %v, %v; want no value", v, ok)
	}
	// the last byte is still in range
	if v, ok := DecodeSlice(16, 8, true, 1, 0, short); !ok || v != 0x56 {
		t.Errorf("last byte = %v, %v; want %v", v, ok, float32(0x56))
	}
}

func TestDecode_RangeViolations(t *testing.T) {
	if _, ok := DecodeArray(0, 64, true, 1, 0, &msgLE); ok {
		t.Error("DecodeArray bitLen 64 should fail")
	}
	if _, ok := DecodeArray(64, 8, true, 1, 0, &msgLE); ok {
		t.Error("DecodeArray startBit 64 should fail")
	}
	if _, ok := DecodeSlice(0, 64, true, 1, 0, msgLE[:]); ok {
		t.Error("DecodeSlice bitLen 64 should fail")
	}
	if _, ok := DecodeSlice(65, 70, false, 1, 0, msgLE[:]); ok {
		t.Error("DecodeSlice bitLen 70 should fail")
	}
	if _, ok := DecodeSlice(-1, 8, true, 1, 0, msgLE[:]); ok {
		t.Error("DecodeSlice negative start should fail")
	}
	// 65 reduces to bit 1 of byte 8, which is past the payload
	if v, ok := DecodeSlice(65, 16, true, 0.125, 0, msgLE[:]); ok {
		t.Errorf("DecodeSlice(65) = %v, %v; want no value", v, ok)
	}
}

func TestDecode_Idempotent(t *testing.T) {
	a, _ := DecodeArray(24, 16, true, 0.125, 0, &msgLE)
	b, _ := DecodeArray(24, 16, true, 0.125, 0, &msgLE)
	c, _ := DecodeSlice(24, 16, true, 0.125, 0, msgLE[:])
	d, _ := DecodeSlice(24, 16, true, 0.125, 0, msgLE[:])
	if a != b || c != d {
		t.Errorf("decode not idempotent: %v %v %v %v", a, b, c, d)
	}
	if msgLE != [8]byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88} {
		t.Error("decode mutated the payload")
	}
}

func BenchmarkDecodeSlice(b *testing.B) {
	for i := 0; i < b.N; i++ {
		DecodeSlice(24, 16, true, 0.125, 0, msgLE[:])
	}
}
