package cpu

import "github.com/embermoth/dmgcore/internal/bit"

// Flag is one of the four flags packed into the high nibble of F.
type Flag uint8

const (
	flagZ Flag = 0x80
	flagN Flag = 0x40
	flagH Flag = 0x20
	flagC Flag = 0x10
)

// registers is the SM83 register file: eight 8-bit halves viewable as four
// 16-bit pairs (AF, BC, DE, HL) plus the dedicated SP and PC.
//
// The low nibble of F is always zero; only bits 7..4 (Z, N, H, C) are live.
type registers struct {
	a, f byte
	b, c byte
	d, e byte
	h, l byte
	sp   uint16
	pc   uint16
}

func (r *registers) reset() {
	*r = registers{}
}

func (r *registers) af() uint16 { return bit.Combine(r.a, r.f) }
func (r *registers) bc() uint16 { return bit.Combine(r.b, r.c) }
func (r *registers) de() uint16 { return bit.Combine(r.d, r.e) }
func (r *registers) hl() uint16 { return bit.Combine(r.h, r.l) }

func (r *registers) setAF(v uint16) {
	r.a = bit.High(v)
	r.f = bit.Low(v) & 0xF0 // low nibble of F is always zero
}
func (r *registers) setBC(v uint16) { r.b, r.c = bit.High(v), bit.Low(v) }
func (r *registers) setDE(v uint16) { r.d, r.e = bit.High(v), bit.Low(v) }
func (r *registers) setHL(v uint16) { r.h, r.l = bit.High(v), bit.Low(v) }

func (r *registers) flag(f Flag) bool {
	return r.f&uint8(f) != 0
}

func (r *registers) setFlag(f Flag, on bool) {
	if on {
		r.f |= uint8(f)
	} else {
		r.f &^= uint8(f)
	}
}

func (r *registers) flagBit(f Flag) uint8 {
	if r.flag(f) {
		return 1
	}
	return 0
}

// flagString renders the Z/N/H/C flags, e.g. "Z-HC", for debug output.
func (r *registers) flagString() string {
	chars := [4]byte{'-', '-', '-', '-'}
	if r.flag(flagZ) {
		chars[0] = 'Z'
	}
	if r.flag(flagN) {
		chars[1] = 'N'
	}
	if r.flag(flagH) {
		chars[2] = 'H'
	}
	if r.flag(flagC) {
		chars[3] = 'C'
	}
	return string(chars[:])
}
