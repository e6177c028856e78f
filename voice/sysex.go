package voice

import (
	"retrowave/log"
	"retrowave/opl3"
)

const sysexManufacturer = 0x7D
const broadcastID = 0x7F

const (
	cmdResetAll         = 0x20
	cmdVoiceConfig      = 0x30
	cmdVoiceQuery       = 0x31
	cmdPercussionConfig = 0x32
	cmdPercussionQuery  = 0x33
)

// allocSysex parses the F0 7D <dev> <cmd> ... F7 frames the allocator owns
// (§4.5.6/§4.5.7) and forwards everything else to Direct Mode.
type allocSysex struct {
	alloc    *Allocator
	deviceID uint8
	reply    func([]byte)
}

func (s *allocSysex) process(b []byte) bool {
	if len(b) < 4 || b[len(b)-1] != 0xF7 {
		return false
	}
	if b[1] != sysexManufacturer {
		return s.alloc.mode.Process(b)
	}
	devID := b[2]
	if devID != broadcastID && s.deviceID != broadcastID && devID != s.deviceID {
		return s.alloc.mode.Process(b)
	}

	switch b[3] {
	case cmdResetAll:
		s.alloc.Reset()
		return s.alloc.mode.Process(b)
	case cmdVoiceConfig:
		s.voiceConfig(b[4 : len(b)-1])
		return true
	case cmdVoiceQuery:
		s.voiceQuery(b[4 : len(b)-1])
		return true
	case cmdPercussionConfig:
		s.percussionConfig(b[4 : len(b)-1])
		return true
	case cmdPercussionQuery:
		s.percussionQuery()
		return true
	default:
		return s.alloc.mode.Process(b)
	}
}

// voiceConfig implements the apply side of §4.5.6.
func (s *allocSysex) voiceConfig(p []byte) {
	if len(p) < 2 {
		return
	}
	midiCh := int(p[0])
	if midiCh < 0 || midiCh >= numMIDIChannels {
		return
	}
	count := int(p[1])
	p = p[2:]
	if len(p) < count+2 {
		log.ModVoice.WarnZ("short voice-config sysex").Int("midi_ch", midiCh).End()
		return
	}

	var chans []int
	for i := 0; i < count; i++ {
		ch := int(p[i])
		if ch < 0 || ch >= opl3.NumChannels {
			log.ModVoice.WarnZ("voice-config channel out of range").Int("ch", ch).End()
			continue
		}
		chans = append(chans, ch)
	}
	unison := int(p[count])
	detune := int(p[count+1])
	var flags byte
	if len(p) > count+2 {
		flags = p[count+2]
	}

	s.alloc.SetPool(midiCh, Config{
		OPL3Chans:   chans,
		Unison:      unison,
		DetuneCents: detune,
		FourOp:      flags&0x01 != 0,
		PanSplit:    flags&0x02 != 0,
	})
}

// SetPool installs cfg as midiCh's voice pool, per the apply semantics of
// §4.5.6: release the old pool's sounding notes, strip the newly claimed
// OPL3 channels out of every other MIDI channel's pool (releasing their
// notes first), install cfg, then replay the channel's shadow CCs onto
// each newly assigned OPL3 channel.
func (a *Allocator) SetPool(midiCh int, cfg Config) {
	if midiCh < 0 || midiCh >= numMIDIChannels {
		return
	}
	a.releaseAllOn(midiCh)
	for other := 0; other < numMIDIChannels; other++ {
		if other == midiCh {
			continue
		}
		a.stripChannels(other, cfg.OPL3Chans)
	}

	a.pools[midiCh] = cfg
	a.ensurePool(midiCh)

	cs := &a.shadow[midiCh]
	for _, ch := range cfg.OPL3Chans {
		cs.applyTo(a.mode, ch)
	}
}

// Pool returns midiCh's current voice pool configuration.
func (a *Allocator) Pool(midiCh int) Config {
	if midiCh < 0 || midiCh >= numMIDIChannels {
		return Config{}
	}
	return a.pools[midiCh]
}

func (a *Allocator) releaseAllOn(midiCh int) {
	slots := a.slots[midiCh]
	for i := range slots {
		if slots[i].Note >= 0 {
			a.mode.NoteOff(slots[i].OPL3Ch, slots[i].Note)
			slots[i].Note = -1
		}
	}
}

// stripChannels releases and removes any of claimed from midiCh's pool.
func (a *Allocator) stripChannels(midiCh int, claimed []int) {
	cfg := a.pools[midiCh]
	claim := make(map[int]bool, len(claimed))
	for _, c := range claimed {
		claim[c] = true
	}
	var remaining []int
	removed := false
	for _, ch := range cfg.OPL3Chans {
		if claim[ch] {
			removed = true
			continue
		}
		remaining = append(remaining, ch)
	}
	if !removed {
		return
	}
	a.releaseAllOn(midiCh)
	a.pools[midiCh].OPL3Chans = remaining
	a.ensurePool(midiCh)
}

func (s *allocSysex) voiceQuery(p []byte) {
	if len(p) < 1 {
		return
	}
	midiCh := int(p[0])
	if midiCh < 0 || midiCh >= numMIDIChannels {
		return
	}
	cfg := s.alloc.pools[midiCh]

	out := make([]byte, 0, 8+len(cfg.OPL3Chans))
	out = append(out, 0xF0, sysexManufacturer, s.deviceID, cmdVoiceConfig, byte(midiCh), byte(len(cfg.OPL3Chans)))
	for _, ch := range cfg.OPL3Chans {
		out = append(out, byte(ch))
	}
	var flags byte
	if cfg.FourOp {
		flags |= 0x01
	}
	if cfg.PanSplit {
		flags |= 0x02
	}
	out = append(out, byte(cfg.Unison), byte(cfg.DetuneCents), flags, 0xF7)
	s.reply(out)
}

func (s *allocSysex) percussionConfig(p []byte) {
	if len(p) < 6 {
		return
	}
	a := s.alloc
	enabled := p[0] >= 64
	bindings := a.perc.bound
	raw := [drumCount]int{int(p[1]), int(p[2]), int(p[3]), int(p[4]), int(p[5])}
	for d, ch := range raw {
		if ch == broadcastID {
			bindings[d] = -1
		} else if ch >= 0 && ch < numMIDIChannels {
			bindings[d] = ch
		}
	}
	a.SetPercussion(enabled, bindings)
}

func (s *allocSysex) percussionQuery() {
	encode := func(ch int) byte {
		if ch < 0 {
			return broadcastID
		}
		return byte(ch)
	}
	a := s.alloc
	var perc byte
	if a.perc.enabled {
		perc = 127
	}
	out := []byte{
		0xF0, sysexManufacturer, s.deviceID, cmdPercussionConfig,
		perc,
		encode(a.perc.bound[drumBD]), encode(a.perc.bound[drumSD]), encode(a.perc.bound[drumTT]),
		encode(a.perc.bound[drumCY]), encode(a.perc.bound[drumHH]),
		0xF7,
	}
	s.reply(out)
}
