package voice

import (
	"retrowave/opl3"
)

type drum int

const (
	drumBD drum = iota
	drumSD
	drumTT
	drumCY
	drumHH
	drumCount
)

// drumInfo gives the fixed chip binding for each percussion voice (§4.5.7).
type drumInfo struct {
	FreqCh  int
	Carrier bool
	Bit     uint8
}

var drumTable = [drumCount]drumInfo{
	drumBD: {FreqCh: 6, Carrier: true, Bit: 0x10},
	drumSD: {FreqCh: 7, Carrier: true, Bit: 0x08},
	drumTT: {FreqCh: 8, Carrier: false, Bit: 0x04},
	drumCY: {FreqCh: 8, Carrier: true, Bit: 0x02},
	drumHH: {FreqCh: 7, Carrier: false, Bit: 0x01},
}

func (d drumInfo) opOffset(ch int) uint8 {
	mod, car := opl3.OpOffsets(ch)
	if d.Carrier {
		return car
	}
	return mod
}

// percussion tracks whether percussion mode is on, the fixed MIDI-channel
// bindings, and which drums are currently sounding (and which note, so a
// note-off only clears a bit when it matches).
type percussion struct {
	enabled bool
	bound   [drumCount]int // midi channel bound to this drum, or -1
	sound   [drumCount]bool
	note    [drumCount]int
}

func newPercussion() percussion {
	p := percussion{}
	for i := range p.bound {
		p.bound[i] = -1
	}
	return p
}

func (p *percussion) drumFor(midiCh int) (drum, bool) {
	for d, bound := range p.bound {
		if bound == midiCh {
			return drum(d), true
		}
	}
	return 0, false
}

func (a *Allocator) setPercussion(enabled bool) {
	a.perc.enabled = enabled
	if enabled {
		a.mode.ApplyNRPN(0, 5, 2, 127)
		return
	}
	for d := drum(0); d < drumCount; d++ {
		a.releaseDrum(d)
	}
	a.mode.ApplyNRPN(0, 5, 2, 0)
}

// SetPercussion installs bindings (MIDI channel bound to each drum, or -1
// for unbound) and switches percussion mode on or off, per §4.5.7's apply
// semantics: bindings always take effect; the percussion-mode NRPN
// (MSB 5, LSB 2) follows enabled, releasing every sounding drum first when
// turning it off.
func (a *Allocator) SetPercussion(enabled bool, bindings [drumCount]int) {
	a.perc.bound = bindings
	a.setPercussion(enabled)
}

// PercussionState returns whether percussion mode is on and the current
// drum-to-MIDI-channel bindings, for persisting alongside the voice pools.
func (a *Allocator) PercussionState() (enabled bool, bindings [drumCount]int) {
	return a.perc.enabled, a.perc.bound
}

func (a *Allocator) percussionNoteOn(midiCh, note, velocity int) bool {
	d, ok := a.perc.drumFor(midiCh)
	if !ok || !a.perc.enabled {
		return false
	}
	info := drumTable[d]
	shadow := a.mode.Shadow()

	if a.perc.sound[d] {
		shadow.ModifyBits(0x0BD, info.Bit, 0)
	}

	fc := opl3.NoteTable[note]
	shadow.Write(opl3.ChanReg(info.FreqCh, 0xA0), uint8(fc.FNum&0xFF))
	b0 := uint8(fc.FNum>>8&0x03) | fc.Block<<2
	shadow.Write(opl3.ChanReg(info.FreqCh, 0xB0), b0)

	atten := opl3.ClampAtten((127 - velocity) / 2)
	shadow.ModifyBits(opl3.OpReg(info.FreqCh, 0x40, info.opOffset(info.FreqCh)), 0x3F, atten)

	shadow.ModifyBits(0x0BD, info.Bit, info.Bit)
	a.perc.sound[d] = true
	a.perc.note[d] = note
	return true
}

func (a *Allocator) percussionNoteOff(midiCh, note int) bool {
	d, ok := a.perc.drumFor(midiCh)
	if !ok || !a.perc.enabled {
		return false
	}
	if !a.perc.sound[d] || a.perc.note[d] != note {
		return true
	}
	a.releaseDrum(d)
	return true
}

func (a *Allocator) releaseDrum(d drum) {
	if !a.perc.sound[d] {
		return
	}
	a.mode.Shadow().ModifyBits(0x0BD, drumTable[d].Bit, 0)
	a.perc.sound[d] = false
}
