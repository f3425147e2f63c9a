package can

import (
	"encoding/binary"
)

// MaxBits is the width of the window a signal is read from.
const MaxBits = 64

// DecodeArray reads a signal from a full 8-byte payload: the payload is
// taken as one 64-bit word in the requested byte order, shifted right by
// startBit and masked to bitLen bits. The raw value is scaled in float32.
// ok is false when startBit or bitLen do not fit the 64-bit window.
func DecodeArray(startBit, bitLen int, littleEndian bool, scale, offset float32, msg *[8]byte) (float32, bool) {
	if !fits(startBit, bitLen) {
		return 0, false
	}
	return physical(word(msg[:], littleEndian), startBit, bitLen, scale, offset), true
}

// DecodeSlice reads a signal from a payload of any length. Whole bytes
// before the signal are skipped first, the next (up to) 8 bytes are copied
// into a zero-padded window, then decoding proceeds as in DecodeArray.
// A signal starting past the end of msg has no value.
func DecodeSlice(startBit, bitLen int, littleEndian bool, scale, offset float32, msg []byte) (float32, bool) {
	if startBit < 0 {
		return 0, false
	}

	skip := startBit / 8
	startBit %= 8
	if !fits(startBit, bitLen) {
		log.Debugf("signal does not fit the decode window: startBit(%d) bitLen(%d)", startBit, bitLen)
		return 0, false
	}

	if skip >= len(msg) {
		log.Debugf("signal starts past the payload: startByte(%d) len(%d)", skip, len(msg))
		return 0, false
	}

	var buf [8]byte
	copy(buf[:], msg[skip:])
	return physical(word(buf[:], littleEndian), startBit, bitLen, scale, offset), true
}

func fits(startBit, bitLen int) bool {
	return startBit >= 0 && startBit < MaxBits && bitLen >= 0 && bitLen < MaxBits
}

func word(b []byte, littleEndian bool) uint64 {
	if littleEndian {
		return binary.LittleEndian.Uint64(b)
	}
	return binary.BigEndian.Uint64(b)
}

// mask is 2^bitLen - 1; bitLen must be below 64.
func mask(bitLen int) uint64 {
	return uint64(1)<<uint(bitLen) - 1
}

func physical(w uint64, startBit, bitLen int, scale, offset float32) float32 {
	raw := (w >> uint(startBit)) & mask(bitLen)
	return float32(raw)*scale + offset
}
