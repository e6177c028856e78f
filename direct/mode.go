// Package direct implements the MIDI-to-OPL3-register translation layer:
// one OPL3 channel per MIDI channel, channel-voice and NRPN/SysEx parameter
// handling, and the percussion-mode register writes the voice allocator
// drives on top.
package direct

import (
	"math"

	"retrowave/bitutil"
	"retrowave/hw"
	"retrowave/log"
	"retrowave/opl3"
)

// Mode owns the 18 independent OPL3 channel states and the shadow
// register mirror they write through. MIDI channels 0-15 reach it via
// Process; channels 16-17 (and 0-15 again, when fronted by the voice
// allocator) are reached through its direct per-channel API, which takes
// an OPL3 channel index rather than parsing MIDI status bytes.
type Mode struct {
	shadow   *hw.Shadow
	chans    [opl3.NumChannels]*ChannelState
	deviceID uint8
	sysex    *sysexHandler
}

// NewMode constructs a Direct Mode instance writing through shadow.
// deviceID is the SysEx device-id filter (0x7F matches any incoming id,
// and an incoming 0x7F matches any configured id). replySink receives
// any SysEx reply frames (patch dump, voice/percussion query echoes sent
// up through the voice allocator); pass a no-op sink if replies aren't
// needed.
func NewMode(shadow *hw.Shadow, deviceID uint8, replySink func([]byte)) *Mode {
	m := &Mode{shadow: shadow, deviceID: deviceID}
	for i := range m.chans {
		m.chans[i] = newChannelState()
	}
	if replySink == nil {
		replySink = func([]byte) {}
	}
	m.sysex = &sysexHandler{mode: m, reply: replySink}
	return m
}

func (m *Mode) state(ch int) *ChannelState {
	return m.chans[ch]
}

// Process dispatches one complete MIDI message. Returns true if the
// status byte was recognised (note on/off, CC, pitch bend, SysEx), false
// if it was silently ignored.
func (m *Mode) Process(b []byte) bool {
	if len(b) == 0 {
		return false
	}

	status := b[0]
	if status == 0xF0 {
		return m.sysex.process(b)
	}

	if status < 0x80 || status >= 0xF0 {
		return false
	}

	ch := int(status & 0x0F)
	switch status & 0xF0 {
	case 0x80:
		if len(b) < 3 {
			log.ModDirect.WarnZ("short note-off frame").End()
			return false
		}
		m.NoteOff(ch, int(b[1]))
		return true
	case 0x90:
		if len(b) < 3 {
			log.ModDirect.WarnZ("short note-on frame").End()
			return false
		}
		m.NoteOn(ch, int(b[1]), int(b[2]))
		return true
	case 0xB0:
		if len(b) < 3 {
			log.ModDirect.WarnZ("short CC frame").End()
			return false
		}
		m.ApplyCC(ch, int(b[1]), int(b[2]))
		return true
	case 0xE0:
		if len(b) < 3 {
			log.ModDirect.WarnZ("short bend frame").End()
			return false
		}
		bend := int(b[1]) | int(b[2])<<7
		m.ApplyBend(ch, bend)
		return true
	}
	return false
}

// NoteOn drives OPL3 channel ch's key-on per §4.4.1. Velocity 0 is
// treated as a note off.
func (m *Mode) NoteOn(ch, note, velocity int) {
	if velocity <= 0 {
		m.NoteOff(ch, note)
		return
	}
	cs := m.state(ch)

	if cs.Note >= 0 {
		m.clearKeyOn(ch)
	}

	cs.Note = note
	cs.Velocity = velocity
	cs.HeldBySustain = false

	fc := opl3.NoteTable[note]
	m.writeCarrierLevel(ch, cs, velocity)
	m.writeFreq(ch, fc, true)
}

// NoteOff releases the note if it's the one currently sounding; a
// mismatched or already-silent note is a no-op per §7.
func (m *Mode) NoteOff(ch, note int) {
	cs := m.state(ch)
	if cs.Note != note {
		return
	}
	if cs.Sustain {
		cs.HeldBySustain = true
		return
	}
	m.clearKeyOn(ch)
	cs.Note = -1
}

func (m *Mode) clearKeyOn(ch int) {
	m.shadow.ModifyBits(opl3.ChanReg(ch, 0xB0), 0x20, 0x00)
}

// writeFreq writes the f-num/block pair, setting or clearing the key-on
// bit as requested.
func (m *Mode) writeFreq(ch int, fc opl3.FreqCode, keyOn bool) {
	m.shadow.Write(opl3.ChanReg(ch, 0xA0), uint8(fc.FNum&0xFF))
	b0 := uint8(fc.FNum>>8&0x03) | fc.Block<<2
	if keyOn {
		b0 |= 0x20
	}
	m.shadow.Write(opl3.ChanReg(ch, 0xB0), b0)
}

// WriteFreqPreserveKeyOn is the pitch-bend/detune write path: it keeps
// whatever key-on state the channel is currently in rather than forcing
// it, so a sustained note doesn't re-trigger its envelope on every bend
// update (§4.4.5).
func (m *Mode) WriteFreqPreserveKeyOn(ch int, fc opl3.FreqCode) {
	keyOn := bitutil.Bit8(m.shadow.Read(opl3.ChanReg(ch, 0xB0)), 5)
	m.writeFreq(ch, fc, keyOn)
}

func (m *Mode) writeCarrierLevel(ch int, cs *ChannelState, velocity int) {
	base := opl3.Attenuation(cs.Volume, cs.Expression)
	atten := opl3.ClampAtten(int(base) + opl3.VelocityAttenuation(velocity))
	m.writeOperatorLevel(ch, carrierOffset(ch), atten)
}

func (m *Mode) writeModulatorLevel(ch int, cs *ChannelState) {
	atten := opl3.Attenuation(cs.ModWheel, cs.Brightness)
	m.writeOperatorLevel(ch, modulatorOffset(ch), atten)
}

// writeOperatorLevel writes the total-level bits (5:0) of 0x40+op while
// preserving the key-scale-level bits (7:6).
func (m *Mode) writeOperatorLevel(ch int, opOffset uint8, atten uint8) {
	addr := opl3.OpReg(ch, 0x40, opOffset)
	m.shadow.ModifyBits(addr, 0x3F, atten)
}

func modulatorOffset(ch int) uint8 { mod, _ := opl3.OpOffsets(ch); return mod }
func carrierOffset(ch int) uint8   { _, car := opl3.OpOffsets(ch); return car }

// ApplyCC applies one control-change to OPL3 channel ch per §4.4.4.
func (m *Mode) ApplyCC(ch, cc, val int) {
	cs := m.state(ch)
	switch cc {
	case 1:
		cs.ModWheel = val
		m.writeModulatorLevel(ch, cs)
	case 7:
		cs.Volume = val
		m.writeCarrierLevel(ch, cs, velocityOrFull(cs))
	case 10:
		cs.Pan = val
		m.applyPan(ch, val)
	case 11:
		cs.Expression = val
		m.writeCarrierLevel(ch, cs, velocityOrFull(cs))
	case 64:
		m.applySustain(ch, cs, val)
	case 74:
		cs.Brightness = val
		m.writeModulatorLevel(ch, cs)
	case 98:
		cs.NRPNLSB = val
		cs.RPNMSB, cs.RPNLSB = nullParam, nullParam
	case 99:
		cs.NRPNMSB = val
		cs.RPNMSB, cs.RPNLSB = nullParam, nullParam
	case 100:
		cs.RPNLSB = val
		cs.NRPNMSB, cs.NRPNLSB = nullParam, nullParam
	case 101:
		cs.RPNMSB = val
		cs.NRPNMSB, cs.NRPNLSB = nullParam, nullParam
	case 6:
		m.dataEntryMSB(ch, cs, val)
	case 38:
		m.dataEntryLSB(cs, val)
	case 120:
		m.allSoundOff(ch, cs)
	case 123:
		m.NoteOff(ch, cs.Note)
		m.clearKeyOn(ch)
		cs.Note = -1
	}
}

// velocityOrFull recomputes attenuation against the last known velocity,
// or full-strength if nothing has sounded yet on this channel.
func velocityOrFull(cs *ChannelState) int {
	if cs.Note < 0 && cs.Velocity == 0 {
		return 127
	}
	return cs.Velocity
}

func (m *Mode) applyPan(ch, val int) {
	var code uint8
	switch {
	case val <= 42:
		code = 0x10
	case val >= 85:
		code = 0x20
	default:
		code = 0x30
	}
	m.shadow.ModifyBits(opl3.ChanReg(ch, 0xC0), 0x30, code)
}

func (m *Mode) applySustain(ch int, cs *ChannelState, val int) {
	down := val >= 64
	wasDown := cs.Sustain
	cs.Sustain = down
	if wasDown && !down && cs.HeldBySustain {
		m.clearKeyOn(ch)
		cs.HeldBySustain = false
		cs.Note = -1
	}
}

func (m *Mode) dataEntryMSB(ch int, cs *ChannelState, val int) {
	if cs.nrpnActive() {
		m.ApplyNRPN(ch, cs.NRPNMSB, cs.NRPNLSB, val)
		return
	}
	if cs.rpnIsBendRange() {
		cs.BendRangeSemi = val
	}
}

func (m *Mode) dataEntryLSB(cs *ChannelState, val int) {
	if cs.rpnIsBendRange() {
		cs.BendRangeCents = val
	}
}

func (m *Mode) allSoundOff(ch int, cs *ChannelState) {
	m.clearKeyOn(ch)
	cs.Note = -1
	mod, car := opl3.OpOffsets(ch)
	m.shadow.ModifyBits(opl3.OpReg(ch, 0x80, mod), 0x0F, 0x0F)
	m.shadow.ModifyBits(opl3.OpReg(ch, 0x80, car), 0x0F, 0x0F)
}

// ApplyBend recomputes and writes this channel's frequency for a 14-bit
// pitch bend value, using the channel's own stored note and bend range.
func (m *Mode) ApplyBend(ch, bend int) {
	cs := m.state(ch)
	cs.Bend = bend
	if cs.Note < 0 {
		return
	}
	semis := cs.BendSemitones()
	hz := opl3.NoteHz(cs.Note) * math.Pow(2, semis/12.0)
	m.WriteFreqPreserveKeyOn(ch, opl3.FreqForHz(hz))
}

// ApplyNRPN applies one NRPN (MSB/LSB, Data Entry MSB value) to its
// target OPL3 bitfield per §4.4.6. It addresses raw registers directly
// and does not touch per-channel NRPN/RPN selection state, which is why
// the voice allocator uses it as its bypass path for OPL3 channels 16-17.
func (m *Mode) ApplyNRPN(ch, msb, lsb, val int) {
	switch {
	case msb >= 0 && msb <= 3:
		m.applyOperatorNRPN(ch, msb, lsb, val)
	case msb == 4:
		m.applyChannelNRPN(ch, lsb, val)
	case msb == 5:
		m.applyGlobalNRPN(lsb, val)
	}
}

func (m *Mode) applyOperatorNRPN(ch, msb, lsb, val int) {
	targetCh := ch
	var opOffset uint8
	mod, car := opl3.OpOffsets(ch)
	switch msb {
	case 0:
		opOffset = mod
	case 1:
		opOffset = car
	case 2, 3:
		partner, ok := opl3.Pair(ch)
		if !ok {
			log.ModSysEx.WarnZ("NRPN partner-operator on unpairable channel").Int("ch", ch).End()
			return
		}
		targetCh = partner
		pmod, pcar := opl3.OpOffsets(partner)
		if msb == 2 {
			opOffset = pmod
		} else {
			opOffset = pcar
		}
	}
	applyOperatorBitfield(m.shadow, targetCh, opOffset, lsb, val)
}

func applyOperatorBitfield(shadow *hw.Shadow, ch int, opOffset uint8, lsb, val int) {
	flag := func(addr uint16, mask uint8) {
		var v uint8
		if val >= 64 {
			v = mask
		}
		shadow.ModifyBits(addr, mask, v)
	}
	switch lsb {
	case 0:
		shadow.ModifyBits(opl3.OpReg(ch, 0x60, opOffset), 0xF0, uint8(val>>3)<<4)
	case 1:
		shadow.ModifyBits(opl3.OpReg(ch, 0x60, opOffset), 0x0F, uint8(val>>3))
	case 2:
		shadow.ModifyBits(opl3.OpReg(ch, 0x80, opOffset), 0xF0, uint8(val>>3)<<4)
	case 3:
		shadow.ModifyBits(opl3.OpReg(ch, 0x80, opOffset), 0x0F, uint8(val>>3))
	case 4:
		shadow.ModifyBits(opl3.OpReg(ch, 0xE0, opOffset), 0x07, uint8(val>>4))
	case 5:
		shadow.ModifyBits(opl3.OpReg(ch, 0x20, opOffset), 0x0F, uint8(val>>3))
	case 6:
		shadow.ModifyBits(opl3.OpReg(ch, 0x40, opOffset), 0x3F, uint8(val>>1))
	case 7:
		shadow.ModifyBits(opl3.OpReg(ch, 0x40, opOffset), 0xC0, uint8(val>>5)<<6)
	case 8:
		flag(opl3.OpReg(ch, 0x20, opOffset), 0x80)
	case 9:
		flag(opl3.OpReg(ch, 0x20, opOffset), 0x40)
	case 10:
		flag(opl3.OpReg(ch, 0x20, opOffset), 0x20)
	case 11:
		flag(opl3.OpReg(ch, 0x20, opOffset), 0x10)
	}
}

func (m *Mode) applyChannelNRPN(ch, lsb, val int) {
	flag := func(addr uint16, mask uint8) {
		var v uint8
		if val >= 64 {
			v = mask
		}
		m.shadow.ModifyBits(addr, mask, v)
	}
	switch lsb {
	case 0:
		m.shadow.ModifyBits(opl3.ChanReg(ch, 0xC0), 0x0E, uint8(val>>4)<<1)
	case 1:
		flag(opl3.ChanReg(ch, 0xC0), 0x01)
	case 2:
		flag(opl3.ChanReg(ch, 0xC0), 0x10)
	case 3:
		flag(opl3.ChanReg(ch, 0xC0), 0x20)
	case 4:
		if !opl3.Pairable(ch) {
			log.ModSysEx.WarnZ("4-op enable NRPN on unpairable channel").Int("ch", ch).End()
			return
		}
		pairIdx := opl3.Local(ch) % 3
		bit := uint(pairIdx + opl3.Port(ch)*3)
		mask := uint8(1) << bit
		var v uint8
		if val >= 64 {
			v = mask
		}
		m.shadow.ModifyBits(0x104, mask, v)
	case 5:
		partner, ok := opl3.Pair(ch)
		if !ok {
			return
		}
		flag(opl3.ChanReg(partner, 0xC0), 0x01)
	}
}

func (m *Mode) applyGlobalNRPN(lsb, val int) {
	flag := func(mask uint8) {
		var v uint8
		if val >= 64 {
			v = mask
		}
		m.shadow.ModifyBits(0x0BD, mask, v)
	}
	switch lsb {
	case 0:
		flag(0x80)
	case 1:
		flag(0x40)
	case 2:
		flag(0x20)
	}
}

// IsFourOp reports whether ch's pair currently has the 4-op connection
// bit set in register 0x104.
func (m *Mode) IsFourOp(ch int) bool {
	if !opl3.Pairable(ch) {
		return false
	}
	pairIdx := uint(opl3.Local(ch)%3) + uint(opl3.Port(ch)*3)
	return bitutil.Bit8(m.shadow.Read(0x104), pairIdx)
}

// Shadow exposes the underlying register mirror for callers (the voice
// allocator, SysEx raw-register commands) that need direct read/write
// access alongside the channel-level API.
func (m *Mode) Shadow() *hw.Shadow { return m.shadow }
