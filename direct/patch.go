package direct

import (
	"retrowave/log"
	"retrowave/opl3"
	"retrowave/patch"
)

func (m *Mode) readOpRegs(ch int, opOffset uint8) patch.OpRegs {
	return patch.OpRegs{
		AttackDecay:     m.shadow.Read(opl3.OpReg(ch, 0x60, opOffset)),
		SustainRelease:  m.shadow.Read(opl3.OpReg(ch, 0x80, opOffset)),
		AMVibEgtKsrMult: m.shadow.Read(opl3.OpReg(ch, 0x20, opOffset)),
		KslTl:           m.shadow.Read(opl3.OpReg(ch, 0x40, opOffset)),
		Waveform:        m.shadow.Read(opl3.OpReg(ch, 0xE0, opOffset)),
	}
}

func (m *Mode) writeOpRegs(ch int, opOffset uint8, r patch.OpRegs) {
	m.shadow.Write(opl3.OpReg(ch, 0x60, opOffset), r.AttackDecay)
	m.shadow.Write(opl3.OpReg(ch, 0x80, opOffset), r.SustainRelease)
	m.shadow.Write(opl3.OpReg(ch, 0x20, opOffset), r.AMVibEgtKsrMult)
	m.shadow.Write(opl3.OpReg(ch, 0x40, opOffset), r.KslTl)
	m.shadow.Write(opl3.OpReg(ch, 0xE0, opOffset), r.Waveform&0x07)
}

// DumpPatch reads ch's current operator and connection registers (and,
// if the pair is in 4-op mode, its partner's) and builds a replayable
// SysEx patch-load frame (§4.4.7, command reuse between dump and load).
func (m *Mode) DumpPatch(ch int) []byte {
	mod, car := opl3.OpOffsets(ch)
	p := patch.Patch{
		Op:   [4]patch.OpRegs{m.readOpRegs(ch, mod), m.readOpRegs(ch, car), {}, {}},
		Conn: [2]uint8{m.shadow.Read(opl3.ChanReg(ch, 0xC0)), 0},
	}

	if m.IsFourOp(ch) {
		if partner, ok := opl3.Pair(ch); ok {
			pmod, pcar := opl3.OpOffsets(partner)
			p.FourOp = true
			p.Op[2] = m.readOpRegs(partner, pmod)
			p.Op[3] = m.readOpRegs(partner, pcar)
			p.Conn[1] = m.shadow.Read(opl3.ChanReg(partner, 0xC0))
		}
	}

	nibbles := patch.Encode(p)
	out := make([]byte, 0, len(nibbles)+6)
	out = append(out, 0xF0, sysexManufacturer, m.deviceID, cmdPatchLoad, uint8(ch))
	out = append(out, nibbles...)
	out = append(out, 0xF7)
	return out
}

// LoadPatch decodes a nibble-encoded patch payload (without the leading
// midi_ch byte, already consumed by the caller) and writes it to ch.
// A 4-op-length payload presented to an unpairable channel is rejected
// outright rather than silently applying only its first two operators.
func (m *Mode) LoadPatch(ch int, nibbles []byte) bool {
	p, ok := patch.Decode(nibbles, opl3.Pairable(ch))
	if !ok {
		log.ModSysEx.WarnZ("patch load rejected").Int("ch", ch).Int("len", len(nibbles)).End()
		return false
	}
	m.applyPatchFull(ch, p)
	return true
}

// applyPatchFull writes every register a patch carries: this channel's
// operators and connection byte, and, only when the patch says it's a
// 4-op patch and the channel can pair, its partner's too. It never
// touches the 0x104 four-op-enable bit; that's reached only via the NRPN
// channel-parameter path (§4.4.6 MSB=4 LSB=4), per the patch-format open
// question.
func (m *Mode) applyPatchFull(ch int, p patch.Patch) {
	mod, car := opl3.OpOffsets(ch)
	m.writeOpRegs(ch, mod, p.Op[0])
	m.writeOpRegs(ch, car, p.Op[1])
	m.shadow.Write(opl3.ChanReg(ch, 0xC0), p.Conn[0])

	if p.FourOp && opl3.Pairable(ch) {
		if partner, ok := opl3.Pair(ch); ok {
			pmod, pcar := opl3.OpOffsets(partner)
			m.writeOpRegs(partner, pmod, p.Op[2])
			m.writeOpRegs(partner, pcar, p.Op[3])
			m.shadow.Write(opl3.ChanReg(partner, 0xC0), p.Conn[1])
		}
	}
}
