package opl3

import "math"

// FreqCode is a precomputed (f-num, block) pair for the OPL3's frequency
// encoding: Hz = f_num * 2^(block-20) * 49716.
type FreqCode struct {
	FNum  uint16 // 10-bit mantissa, 0-1023
	Block uint8  // 0-7
}

// NoteTable maps MIDI note numbers 0-127 to their nearest representable
// OPL3 frequency, computed once at package init since it is a pure
// function of the chip's fixed clock.
var NoteTable [128]FreqCode

func init() {
	for n := 0; n < 128; n++ {
		NoteTable[n] = FreqForHz(noteHz(n))
	}
}

func noteHz(note int) float64 {
	return 440.0 * math.Pow(2, float64(note-69)/12.0)
}

// FreqForHz searches block 0..7 for the smallest block producing an f-num
// within the 10-bit range, as specified for the note table and for
// pitch-bend/detune recomputation. Falls back to (1023, 7) when f would
// overflow even at the highest block.
func FreqForHz(hz float64) FreqCode {
	for block := 0; block <= 7; block++ {
		fnum := math.Round(hz * math.Pow(2, float64(20-block)) / 49716.0)
		if fnum <= 1023 {
			if fnum < 0 {
				fnum = 0
			}
			return FreqCode{FNum: uint16(fnum), Block: uint8(block)}
		}
	}
	return FreqCode{FNum: 1023, Block: 7}
}

// NoteHz is exported for the voice allocator's bend/detune/unison math,
// which needs the note's base frequency before re-deriving a FreqCode.
func NoteHz(note int) float64 {
	return noteHz(note)
}
