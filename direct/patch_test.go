package direct

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"retrowave/opl3"
	"retrowave/patch"
)

func TestPatchDumpLoadRoundTrip(t *testing.T) {
	m, _ := newTestMode()
	m.applyPatchFull(0, patch.Default())

	dump := m.DumpPatch(0)
	// dump is a full F0..F7 frame; LoadPatch expects the payload after
	// the midi_ch byte, mirroring how sysex.go's patchLoad slices it.
	midiCh := dump[4]
	if midiCh != 0 {
		t.Fatalf("unexpected channel byte %d", midiCh)
	}
	nibbles := dump[5 : len(dump)-1]

	before := snapshotChannel(m, 0)
	// Mutate the channel so the load has to actually restore state.
	m.shadow.Write(opl3.ChanReg(0, 0xC0), 0xFF)

	ok := m.LoadPatch(0, nibbles)
	if !ok {
		t.Fatal("expected patch load to succeed")
	}
	after := snapshotChannel(m, 0)

	if diff := cmp.Diff(before, after); diff != "" {
		t.Fatalf("dump->load round trip changed shadow state:\n%s", diff)
	}
}

func TestPatchLoadRejectsFourOpOnUnpairableChannel(t *testing.T) {
	m, _ := newTestMode()
	fourOpNibbles := make([]byte, patch.FourOpLen)
	if m.LoadPatch(6, fourOpNibbles) {
		t.Fatal("expected 4-op payload on unpairable channel 6 to be rejected")
	}
}

type channelSnapshot struct {
	Op20, Op40, Op60, Op80, OpE0 [2]uint8
	Conn                         uint8
}

func snapshotChannel(m *Mode, ch int) channelSnapshot {
	mod, car := opl3.OpOffsets(ch)
	return channelSnapshot{
		Op20: [2]uint8{m.shadow.Read(opl3.OpReg(ch, 0x20, mod)), m.shadow.Read(opl3.OpReg(ch, 0x20, car))},
		Op40: [2]uint8{m.shadow.Read(opl3.OpReg(ch, 0x40, mod)), m.shadow.Read(opl3.OpReg(ch, 0x40, car))},
		Op60: [2]uint8{m.shadow.Read(opl3.OpReg(ch, 0x60, mod)), m.shadow.Read(opl3.OpReg(ch, 0x60, car))},
		Op80: [2]uint8{m.shadow.Read(opl3.OpReg(ch, 0x80, mod)), m.shadow.Read(opl3.OpReg(ch, 0x80, car))},
		OpE0: [2]uint8{m.shadow.Read(opl3.OpReg(ch, 0xE0, mod)), m.shadow.Read(opl3.OpReg(ch, 0xE0, car))},
		Conn: m.shadow.Read(opl3.ChanReg(ch, 0xC0)),
	}
}
