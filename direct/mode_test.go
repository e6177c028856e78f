package direct

import (
	"testing"

	"retrowave/hw"
	"retrowave/opl3"
)

func newTestMode() (*Mode, *hw.Shadow) {
	shadow := hw.NewShadow(hw.NewBuffer())
	return NewMode(shadow, 0x7F, nil), shadow
}

func TestNoteOnSetsKeyOnAndFreq(t *testing.T) {
	m, shadow := newTestMode()
	m.NoteOn(0, 60, 100)

	fc := opl3.NoteTable[60]
	if got := shadow.Read(opl3.ChanReg(0, 0xA0)); got != uint8(fc.FNum&0xFF) {
		t.Fatalf("A0 = %#02x, want %#02x", got, uint8(fc.FNum&0xFF))
	}
	b0 := shadow.Read(opl3.ChanReg(0, 0xB0))
	if b0&0x20 == 0 {
		t.Fatal("expected key-on bit set")
	}

	_, car := opl3.OpOffsets(0)
	wantAtten := opl3.ClampAtten(int(opl3.Attenuation(100, 127)) + opl3.VelocityAttenuation(100))
	got := shadow.Read(opl3.OpReg(0, 0x40, car)) & 0x3F
	if got != wantAtten {
		t.Fatalf("carrier TL = %d, want %d", got, wantAtten)
	}
}

func TestVelocityZeroIsNoteOff(t *testing.T) {
	m, shadow := newTestMode()
	m.NoteOn(0, 60, 100)
	m.NoteOn(0, 60, 0)

	b0 := shadow.Read(opl3.ChanReg(0, 0xB0))
	if b0&0x20 != 0 {
		t.Fatal("expected key-on cleared after velocity-0 note-on")
	}
}

func TestSustainHoldsNoteUntilReleased(t *testing.T) {
	m, shadow := newTestMode()
	m.NoteOn(0, 60, 100)
	m.ApplyCC(0, 64, 127) // sustain on
	m.NoteOff(0, 60)

	if b0 := shadow.Read(opl3.ChanReg(0, 0xB0)); b0&0x20 == 0 {
		t.Fatal("note should still sound while sustain is held")
	}

	m.ApplyCC(0, 64, 0) // sustain off
	if b0 := shadow.Read(opl3.ChanReg(0, 0xB0)); b0&0x20 != 0 {
		t.Fatal("note should release once sustain is lifted")
	}
}

func TestPitchBendPreservesKeyOn(t *testing.T) {
	m, shadow := newTestMode()
	m.NoteOn(0, 60, 100)
	m.ApplyBend(0, 0x3000) // bent up

	if b0 := shadow.Read(opl3.ChanReg(0, 0xB0)); b0&0x20 == 0 {
		t.Fatal("bend must not clear key-on")
	}
}

func TestNRPNWaveformWrite(t *testing.T) {
	m, shadow := newTestMode()
	// NRPN(0,4) Data Entry 0x10 -> waveform = 0x10>>4 = 1, on the
	// modulator of channel 0.
	m.ApplyCC(0, 99, 0)
	m.ApplyCC(0, 98, 4)
	m.ApplyCC(0, 6, 0x10)

	mod, _ := opl3.OpOffsets(0)
	got := shadow.Read(opl3.OpReg(0, 0xE0, mod)) & 0x07
	if got != 1 {
		t.Fatalf("waveform = %d, want 1", got)
	}
}

func TestNoteOffMismatchedNoteIsNoOp(t *testing.T) {
	m, shadow := newTestMode()
	m.NoteOn(0, 60, 100)
	m.NoteOff(0, 61) // different note: no-op

	if b0 := shadow.Read(opl3.ChanReg(0, 0xB0)); b0&0x20 == 0 {
		t.Fatal("note-off for the wrong note must not release the sounding one")
	}
}

func TestPanCodes(t *testing.T) {
	m, shadow := newTestMode()
	m.ApplyCC(0, 10, 0)
	if got := shadow.Read(opl3.ChanReg(0, 0xC0)) & 0x30; got != 0x10 {
		t.Fatalf("left pan = %#02x, want 0x10", got)
	}
	m.ApplyCC(0, 10, 127)
	if got := shadow.Read(opl3.ChanReg(0, 0xC0)) & 0x30; got != 0x20 {
		t.Fatalf("right pan = %#02x, want 0x20", got)
	}
	m.ApplyCC(0, 10, 64)
	if got := shadow.Read(opl3.ChanReg(0, 0xC0)) & 0x30; got != 0x30 {
		t.Fatalf("center pan = %#02x, want 0x30", got)
	}
}

func TestProcessDispatchesNoteOn(t *testing.T) {
	m, shadow := newTestMode()
	handled := m.Process([]byte{0x90, 60, 100})
	if !handled {
		t.Fatal("expected note-on to be handled")
	}
	if b0 := shadow.Read(opl3.ChanReg(0, 0xB0)); b0&0x20 == 0 {
		t.Fatal("expected key-on after Process(note-on)")
	}
}

func TestProcessIgnoresUnknownStatus(t *testing.T) {
	m, _ := newTestMode()
	if m.Process([]byte{0xF8}) {
		t.Fatal("expected system realtime byte to be ignored")
	}
}
