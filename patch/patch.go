// Package patch describes an OPL3 timbre: the operator and connection
// register values SysEx 0x11 carries, independent of any particular
// channel. It supplies the "default patch" applied on a full reset and
// the nibble codec SysEx 0x10/0x11 use to dump and reload one.
package patch

// OpRegs holds the five meaningful operator registers a patch carries;
// the wire format reserves six more nibble-pairs per operator that are
// always zero on encode and ignored on decode.
type OpRegs struct {
	AttackDecay   uint8 // 0x60: attack(7:4) / decay(3:0)
	SustainRelease uint8 // 0x80: sustain(7:4) / release(3:0)
	AMVibEgtKsrMult uint8 // 0x20: AM(7) vib(6) EGT(5) KSR(4) mult(3:0)
	KslTl         uint8 // 0x40: KSL(7:6) / TL(5:0)
	Waveform      uint8 // 0xE0: bits 2:0
}

// Patch is a full 2-op or 4-op instrument: operator registers for the
// primary channel (and, if FourOp, its paired channel), plus each half's
// 0xC0 connection/feedback/pan byte.
type Patch struct {
	FourOp bool
	Op     [4]OpRegs // mod, car, partner-mod, partner-car (last two unused in 2-op)
	Conn   [2]uint8  // this channel's 0xC0, partner's 0xC0 (second unused in 2-op)
}
