// Package opl3 holds the fixed, pure facts about the YMF262 register map
// that every other layer of the bridge addresses against: channel/operator
// coordinates, 4-op pairing, and the MIDI-note to (f-num, block) table.
// Nothing here is mutable state; NoteTable is computed once at init.
package opl3

// NumChannels is the total channel count across both I/O ports (9 each).
const NumChannels = 18

// opOffset holds the modulator/carrier register offsets for one local
// (port-relative) channel, per the fixed YMF262 layout.
type opOffset struct {
	Mod, Car uint8
}

var localOpOffsets = [9]opOffset{
	{0x00, 0x03},
	{0x01, 0x04},
	{0x02, 0x05},
	{0x08, 0x0B},
	{0x09, 0x0C},
	{0x0A, 0x0D},
	{0x10, 0x13},
	{0x11, 0x14},
	{0x12, 0x15},
}

// Port returns 0 or 1 for global channel ch (0-17).
func Port(ch int) int { return ch / 9 }

// Local returns the port-relative channel index (0-8) for global channel ch.
func Local(ch int) int { return ch % 9 }

// OpOffsets returns the modulator and carrier operator register offsets
// for global channel ch.
func OpOffsets(ch int) (mod, car uint8) {
	o := localOpOffsets[Local(ch)]
	return o.Mod, o.Car
}

// ChanReg builds the full 9-bit shadow address for one of the per-channel
// registers (0xA0, 0xB0 or 0xC0 family) on channel ch.
func ChanReg(ch int, base uint8) uint16 {
	return uint16(Port(ch))<<8 | uint16(base)+uint16(Local(ch))
}

// OpReg builds the full 9-bit shadow address for an operator register
// (0x20, 0x40, 0x60, 0x80 or 0xE0 family) at the given operator offset.
func OpReg(ch int, base uint8, opOffset uint8) uint16 {
	return uint16(Port(ch))<<8 | uint16(base)+uint16(opOffset)
}

// Pairable reports whether ch is one of the twelve channels that can form
// a 4-op pair (local 0,1,2 or 3,4,5 on either port).
func Pairable(ch int) bool {
	l := Local(ch)
	return l <= 5
}

// Pair returns the 4-op partner of ch and whether ch is pairable at all.
// Local 0<->3, 1<->4, 2<->5, mirrored per port; 6,7,8 have no partner.
func Pair(ch int) (partner int, ok bool) {
	l := Local(ch)
	port := Port(ch)
	switch {
	case l < 3:
		return port*9 + l + 3, true
	case l < 6:
		return port*9 + l - 3, true
	default:
		return 0, false
	}
}

// IsPrimary reports whether ch is the primary (lower-numbered) half of its
// 4-op pair, i.e. local 0,1,2.
func IsPrimary(ch int) bool {
	return Local(ch) < 3
}
