package voice

import (
	"testing"

	"retrowave/direct"
	"retrowave/hw"
	"retrowave/opl3"
)

func newTestAllocator() (*Allocator, *hw.Shadow) {
	shadow := hw.NewShadow(hw.NewBuffer())
	mode := direct.NewMode(shadow, 0x7F, nil)
	return NewAllocator(mode, 0x7F, nil), shadow
}

func TestDefaultPoolIsOneToOne(t *testing.T) {
	a, shadow := newTestAllocator()
	a.NoteOn(5, 60, 100)

	if b0 := shadow.Read(opl3.ChanReg(5, 0xB0)); b0&0x20 == 0 {
		t.Fatal("expected OPL3 channel 5 to key on for MIDI channel 5's default pool")
	}
}

func TestUnisonAllocatesAllPoolChannelsWithDetune(t *testing.T) {
	a, shadow := newTestAllocator()
	a.pools[0] = Config{OPL3Chans: []int{0, 1, 2}, Unison: 3, DetuneCents: 20}

	a.NoteOn(0, 60, 100)

	for _, ch := range []int{0, 1, 2} {
		if b0 := shadow.Read(opl3.ChanReg(ch, 0xB0)); b0&0x20 == 0 {
			t.Fatalf("expected OPL3 channel %d to key on", ch)
		}
	}

	fnum0 := fnumOf(shadow, 0)
	fnum1 := fnumOf(shadow, 1)
	fnum2 := fnumOf(shadow, 2)
	if fnum0 == fnum1 || fnum1 == fnum2 {
		t.Fatalf("expected detuned channels to differ: %d %d %d", fnum0, fnum1, fnum2)
	}
	// The middle unison voice (offset 0 cents) should match the
	// undetuned note table entry.
	want := opl3.NoteTable[60].FNum
	if fnum1 != want {
		t.Fatalf("middle voice f_num = %d, want %d", fnum1, want)
	}
}

func fnumOf(shadow *hw.Shadow, ch int) uint16 {
	lo := shadow.Read(opl3.ChanReg(ch, 0xA0))
	hi := shadow.Read(opl3.ChanReg(ch, 0xB0)) & 0x03
	return uint16(hi)<<8 | uint16(lo)
}

func TestNoteStealingFreesOldestGroupFirst(t *testing.T) {
	a, shadow := newTestAllocator()
	a.pools[0] = Config{OPL3Chans: []int{0, 1}, Unison: 1}

	a.NoteOn(0, 60, 100) // takes slot for ch0 or ch1 (oldest)
	a.NoteOn(0, 64, 100) // takes the other
	a.NoteOn(0, 67, 100) // pool full: must steal note 60's group

	// Exactly two of the three notes should still be sounding, and note
	// 60 (the oldest) must have been released.
	slots := a.slots[0]
	sounding := map[int]bool{}
	for _, s := range slots {
		if s.Note >= 0 {
			sounding[s.Note] = true
		}
	}
	if sounding[60] {
		t.Fatal("expected oldest note 60 to be stolen")
	}
	if !sounding[64] || !sounding[67] {
		t.Fatalf("expected notes 64 and 67 to still sound, got %v", sounding)
	}
	_ = shadow
}

func TestVoiceConfigStripsChannelFromOtherPools(t *testing.T) {
	a, _ := newTestAllocator()
	a.NoteOn(3, 60, 100) // MIDI ch 3 owns OPL3 ch 3 by default

	payload := []byte{0, 1, 3, 1, 0, 0} // midi_ch=0, count=1, chans={3}, unison=1, detune=0, flags=0
	frame := append([]byte{0xF0, 0x7D, 0x7F, 0x30}, payload...)
	frame = append(frame, 0xF7)

	if !a.Process(frame) {
		t.Fatal("expected voice-config sysex to be handled")
	}

	if len(a.pools[3].OPL3Chans) != 0 {
		t.Fatalf("expected OPL3 channel 3 removed from MIDI channel 3's pool, got %v", a.pools[3].OPL3Chans)
	}
	if len(a.pools[0].OPL3Chans) != 1 || a.pools[0].OPL3Chans[0] != 3 {
		t.Fatalf("expected MIDI channel 0 to now own OPL3 channel 3, got %v", a.pools[0].OPL3Chans)
	}
}

func TestPercussionBassDrum(t *testing.T) {
	a, shadow := newTestAllocator()

	enable := []byte{0xF0, 0x7D, 0x7F, 0x32, 0x7F, 0x00, 0x7F, 0x7F, 0x7F, 0x7F, 0xF7}
	if !a.Process(enable) {
		t.Fatal("expected percussion-config sysex to be handled")
	}

	a.NoteOn(0, 0x24, 0x50)

	if b := shadow.Read(0x0BD); b&0x10 == 0 {
		t.Fatal("expected BD trigger bit set")
	}
	if b := shadow.Read(0x0BD); b&0x20 == 0 {
		t.Fatal("expected percussion-mode bit set")
	}
	if fn := fnumOf(shadow, 6); fn == 0 {
		t.Fatal("expected OPL3 channel 6 to carry BD's frequency")
	}
}

func TestResetReleasesAllVoicesAndDrums(t *testing.T) {
	a, shadow := newTestAllocator()
	a.NoteOn(0, 60, 100)
	a.SetPercussion(true, [drumCount]int{1, -1, -1, -1, -1})
	a.NoteOn(1, 36, 100) // MIDI ch 1 is bound to BD

	a.Reset()

	if b0 := shadow.Read(opl3.ChanReg(0, 0xB0)); b0&0x20 != 0 {
		t.Fatal("expected key-on cleared after reset")
	}
	if b := shadow.Read(0x0BD); b&0x10 != 0 {
		t.Fatal("expected BD trigger bit cleared after reset")
	}
	if a.nextTS != 0 {
		t.Fatalf("expected timestamp counter cleared, got %d", a.nextTS)
	}
}
