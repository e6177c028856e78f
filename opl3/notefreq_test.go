package opl3

import "testing"

func TestNoteTableBoundaries(t *testing.T) {
	for _, n := range []int{0, 127} {
		fc := NoteTable[n]
		if fc.FNum > 1023 {
			t.Fatalf("note %d: fnum %d exceeds 10 bits", n, fc.FNum)
		}
		if fc.Block > 7 {
			t.Fatalf("note %d: block %d exceeds 3 bits", n, fc.Block)
		}
	}
}

func TestFreqForHzFallback(t *testing.T) {
	fc := FreqForHz(1e9)
	if fc.FNum != 1023 || fc.Block != 7 {
		t.Fatalf("expected fallback (1023,7), got (%d,%d)", fc.FNum, fc.Block)
	}
}

func TestFreqForHzPicksSmallestBlock(t *testing.T) {
	fc := FreqForHz(noteHz(60))
	// Middle C (~261.6 Hz) needs f_num ~1380 at block 2 and ~690 at
	// block 3, so block 3 is the smallest that fits in 10 bits.
	if fc.Block != 3 {
		t.Fatalf("expected block 3 for middle C, got %d", fc.Block)
	}
}
