package voice

import (
	"math"

	"retrowave/direct"
	"retrowave/log"
	"retrowave/opl3"
)

const numMIDIChannels = 16

// Allocator sits in front of a Direct Mode instance, giving each MIDI
// channel a configurable pool of OPL3 channels instead of the 1:1 mapping
// Direct Mode uses standalone.
type Allocator struct {
	mode   *direct.Mode
	pools  [numMIDIChannels]Config
	slots  [numMIDIChannels][]Slot
	shadow [numMIDIChannels]channelShadow
	nextTS uint64
	perc   percussion
	sysex  *allocSysex
}

// NewAllocator builds an allocator fronting mode, with every MIDI channel
// defaulting to a singleton pool (MIDI channel i -> OPL3 channel i).
func NewAllocator(mode *direct.Mode, deviceID uint8, replySink func([]byte)) *Allocator {
	a := &Allocator{mode: mode, perc: newPercussion()}
	for i := range a.pools {
		a.pools[i] = defaultConfig(i)
		a.shadow[i] = newChannelShadow()
	}
	if replySink == nil {
		replySink = func([]byte) {}
	}
	a.sysex = &allocSysex{alloc: a, deviceID: deviceID, reply: replySink}
	return a
}

// Process dispatches one MIDI message the same way Direct Mode does, but
// intercepts note/CC/bend/voice-owned SysEx instead of forwarding them.
func (a *Allocator) Process(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	if b[0] == 0xF0 {
		return a.sysex.process(b)
	}
	if b[0] < 0x80 || b[0] >= 0xF0 {
		return false
	}

	ch := int(b[0] & 0x0F)
	switch b[0] & 0xF0 {
	case 0x80:
		if len(b) < 3 {
			return false
		}
		a.NoteOff(ch, int(b[1]))
		return true
	case 0x90:
		if len(b) < 3 {
			return false
		}
		a.NoteOn(ch, int(b[1]), int(b[2]))
		return true
	case 0xB0:
		if len(b) < 3 {
			return false
		}
		a.ApplyCC(ch, int(b[1]), int(b[2]))
		return true
	case 0xE0:
		if len(b) < 3 {
			return false
		}
		a.ApplyBend(ch, int(b[1])|int(b[2])<<7)
		return true
	}
	return false
}

// voiceFreq computes the per-voice frequency for one unison slot: base
// note plus bend plus this slot's detune cents (§4.5.2/§4.5.5).
func voiceFreq(note int, cs *channelShadow, centsOffset float64) opl3.FreqCode {
	semis := float64(cs.Bend-8192) * (float64(cs.BendRangeSemi) + float64(cs.BendRangeCents)/100.0) / 8192.0
	hz := 440.0 * math.Pow(2, (float64(note-69)+semis+centsOffset/100.0)/12.0)
	return opl3.FreqForHz(hz)
}

func unisonCents(idx, unison, detune int) float64 {
	if unison <= 1 {
		return 0
	}
	return (float64(idx) - float64(unison-1)/2) * float64(detune) / float64(unison-1)
}

func panSplitValue(idx, unison int) int {
	if unison <= 1 {
		return 64
	}
	if unison%2 == 0 {
		return idx * 127 / (unison - 1)
	}
	mid := unison / 2
	if idx == mid {
		return 64
	}
	return idx * 127 / (unison - 1)
}

// ensurePool makes a.slots[midiCh] match the pool's channel list 1:1:
// slots[i].OPL3Ch == a.pools[midiCh].OPL3Chans[i] always. This keeps the
// slot-to-channel mapping fixed and guarantees no OPL3 channel is ever
// assigned to two live slots within one pool. A slot's unison index is its
// position, in pool order, among the slots sharing its note and timestamp.
func (a *Allocator) ensurePool(midiCh int) {
	cfg := a.pools[midiCh]
	slots := a.slots[midiCh]
	if len(slots) == len(cfg.OPL3Chans) {
		ok := true
		for i, ch := range cfg.OPL3Chans {
			if slots[i].OPL3Ch != ch {
				ok = false
				break
			}
		}
		if ok {
			return
		}
	}
	slots = make([]Slot, len(cfg.OPL3Chans))
	for i, ch := range cfg.OPL3Chans {
		slots[i] = Slot{OPL3Ch: ch, Note: -1}
	}
	a.slots[midiCh] = slots
}

// NoteOn implements §4.5.2.
func (a *Allocator) NoteOn(midiCh, note, velocity int) {
	if velocity <= 0 {
		a.NoteOff(midiCh, note)
		return
	}
	if a.percussionNoteOn(midiCh, note, velocity) {
		return
	}

	a.ensurePool(midiCh)
	a.releaseMatching(midiCh, note)

	cfg := a.pools[midiCh]
	unison := cfg.Unison
	if unison < 1 {
		unison = 1
	}
	idxs := a.allocateSlots(midiCh, unison)
	if len(idxs) == 0 {
		log.ModVoice.WarnZ("note dropped: empty pool").Int("midi_ch", midiCh).End()
		return
	}

	a.nextTS++
	ts := a.nextTS
	cs := &a.shadow[midiCh]
	slots := a.slots[midiCh]

	for i, slotIdx := range idxs {
		opl3Ch := slots[slotIdx].OPL3Ch
		slots[slotIdx] = Slot{OPL3Ch: opl3Ch, Note: note, Timestamp: ts}

		cents := unisonCents(i, unison, cfg.DetuneCents)
		fc := voiceFreq(note, cs, cents)
		a.mode.NoteOn(opl3Ch, note, velocity)
		if cents != 0 || cs.Bend != 8192 {
			a.mode.WriteFreqPreserveKeyOn(opl3Ch, fc)
		}
		if cfg.PanSplit && unison > 1 {
			a.mode.ApplyCC(opl3Ch, 10, panSplitValue(i, unison))
		}
	}
}

// releaseMatching releases any existing voices on midiCh that already
// hold this exact note, per step 2 of §4.5.2.
func (a *Allocator) releaseMatching(midiCh, note int) {
	slots := a.slots[midiCh]
	for i := range slots {
		if slots[i].Note == note {
			a.mode.NoteOff(slots[i].OPL3Ch, note)
			slots[i].Note = -1
		}
	}
}

// allocateSlots returns `want` slot indices into a.slots[midiCh] in pool
// order, stealing the oldest sounding note-group one at a time until
// enough are free. Returns fewer than want (possibly zero) if the pool
// itself has fewer channels than want.
func (a *Allocator) allocateSlots(midiCh, want int) []int {
	slots := a.slots[midiCh]
	if len(slots) == 0 {
		return nil
	}
	collectFree := func() []int {
		var free []int
		for i := range slots {
			if slots[i].Note < 0 {
				free = append(free, i)
			}
		}
		return free
	}
	free := collectFree()
	for len(free) < want {
		if len(a.stealOldestGroup(midiCh)) == 0 {
			break
		}
		free = collectFree()
	}
	if len(free) > want {
		free = free[:want]
	}
	return free
}

// stealOldestGroup frees every slot sharing the lowest timestamp present
// on midiCh (§4.5.8), key-releasing their OPL3 channels first.
func (a *Allocator) stealOldestGroup(midiCh int) []int {
	slots := a.slots[midiCh]
	oldest := uint64(0)
	found := false
	for i := range slots {
		if slots[i].Note < 0 {
			continue
		}
		if !found || slots[i].Timestamp < oldest {
			oldest = slots[i].Timestamp
			found = true
		}
	}
	if !found {
		return nil
	}
	var freed []int
	for i := range slots {
		if slots[i].Note >= 0 && slots[i].Timestamp == oldest {
			a.mode.NoteOff(slots[i].OPL3Ch, slots[i].Note)
			slots[i].Note = -1
			slots[i].HeldBySustain = false
			freed = append(freed, i)
		}
	}
	return freed
}

// NoteOff implements §4.5.3.
func (a *Allocator) NoteOff(midiCh, note int) {
	if a.percussionNoteOff(midiCh, note) {
		return
	}
	cs := &a.shadow[midiCh]
	slots := a.slots[midiCh]
	for i := range slots {
		if slots[i].Note != note {
			continue
		}
		if cs.Sustain {
			slots[i].HeldBySustain = true
			continue
		}
		a.mode.NoteOff(slots[i].OPL3Ch, note)
		slots[i].Note = -1
		slots[i].HeldBySustain = false
	}
}

// ApplyCC implements §4.5.4.
func (a *Allocator) ApplyCC(midiCh, cc, val int) {
	cs := &a.shadow[midiCh]
	switch cc {
	case 1:
		cs.ModWheel = val
		a.broadcastCC(midiCh, cc, val)
	case 7:
		cs.Volume = val
		a.broadcastCC(midiCh, cc, val)
	case 10:
		cs.Pan = val
		a.broadcastCC(midiCh, cc, val)
	case 11:
		cs.Expression = val
		a.broadcastCC(midiCh, cc, val)
	case 74:
		cs.Brightness = val
		a.broadcastCC(midiCh, cc, val)
	case 64:
		a.applySustain(midiCh, cs, val)
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
		a.dataEntryMSB(midiCh, cs, val)
	case 38:
		if cs.rpnIsBendRange() {
			cs.BendRangeCents = val
		}
	default:
		a.broadcastCC(midiCh, cc, val)
	}
}

func (a *Allocator) broadcastCC(midiCh, cc, val int) {
	for _, opl3Ch := range a.pools[midiCh].OPL3Chans {
		a.mode.ApplyCC(opl3Ch, cc, val)
	}
}

func (a *Allocator) applySustain(midiCh int, cs *channelShadow, val int) {
	down := val >= 64
	wasDown := cs.Sustain
	cs.Sustain = down
	a.broadcastCC(midiCh, 64, val)
	if wasDown && !down {
		slots := a.slots[midiCh]
		for i := range slots {
			if slots[i].Note >= 0 && slots[i].HeldBySustain {
				a.mode.NoteOff(slots[i].OPL3Ch, slots[i].Note)
				slots[i].Note = -1
				slots[i].HeldBySustain = false
			}
		}
	}
}

func (a *Allocator) dataEntryMSB(midiCh int, cs *channelShadow, val int) {
	if cs.nrpnActive() {
		for _, opl3Ch := range a.pools[midiCh].OPL3Chans {
			a.mode.ApplyNRPN(opl3Ch, cs.NRPNMSB, cs.NRPNLSB, val)
		}
		return
	}
	if cs.rpnIsBendRange() {
		cs.BendRangeSemi = val
	}
}

// ApplyBend implements §4.5.5.
func (a *Allocator) ApplyBend(midiCh, bend int) {
	cs := &a.shadow[midiCh]
	cs.Bend = bend
	cfg := a.pools[midiCh]
	unison := cfg.Unison
	if unison < 1 {
		unison = 1
	}
	slots := a.slots[midiCh]
	for i := range slots {
		if slots[i].Note < 0 {
			continue
		}
		idx := 0
		for j := 0; j < i; j++ {
			if slots[j].Note == slots[i].Note && slots[j].Timestamp == slots[i].Timestamp {
				idx++
			}
		}
		cents := unisonCents(idx, unison, cfg.DetuneCents)
		fc := voiceFreq(slots[i].Note, cs, cents)
		a.mode.WriteFreqPreserveKeyOn(slots[i].OPL3Ch, fc)
	}
}

// Reset implements §4.5.9.
func (a *Allocator) Reset() {
	for midiCh := range a.slots {
		slots := a.slots[midiCh]
		for i := range slots {
			if slots[i].Note >= 0 {
				a.mode.NoteOff(slots[i].OPL3Ch, slots[i].Note)
			}
			slots[i].Note = -1
			slots[i].HeldBySustain = false
		}
	}
	for d := drum(0); d < drumCount; d++ {
		a.releaseDrum(d)
	}
	a.nextTS = 0
}
