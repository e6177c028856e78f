package direct

// nullParam is the MIDI convention for "no NRPN/RPN selected".
const nullParam = 0x7F

// ChannelState mirrors the per-(MIDI or OPL3) channel controller state
// described in the data model: CC shadow values, NRPN/RPN selection, bend
// state, and the single currently-sounding note this channel (in Direct
// Mode, one OPL3 channel plays at most one note at a time; polyphony is
// the Voice Allocator's job).
type ChannelState struct {
	Volume     int // CC7, default 100
	Expression int // CC11, default 127
	Pan        int // CC10, default 64
	ModWheel   int // CC1, default 0
	Brightness int // CC74, default 64
	Sustain    bool

	NRPNMSB, NRPNLSB int // default nullParam
	RPNMSB, RPNLSB   int // default nullParam

	Bend           int // 14-bit, 8192 = centre
	BendRangeSemi  int // default 2
	BendRangeCents int // default 0

	Note          int // -1 = none
	Velocity      int
	HeldBySustain bool
}

func newChannelState() *ChannelState {
	return &ChannelState{
		Volume:        100,
		Expression:    127,
		Pan:           64,
		ModWheel:      0,
		Brightness:    64,
		NRPNMSB:       nullParam,
		NRPNLSB:       nullParam,
		RPNMSB:        nullParam,
		RPNLSB:        nullParam,
		Bend:          8192,
		BendRangeSemi: 2,
		Note:          -1,
	}
}

func (cs *ChannelState) nrpnActive() bool {
	return cs.NRPNMSB != nullParam && cs.NRPNLSB != nullParam
}

func (cs *ChannelState) rpnIsBendRange() bool {
	return cs.RPNMSB == 0 && cs.RPNLSB == 0
}

// BendSemitones converts the current 14-bit bend value into a fractional
// semitone offset using this channel's bend range.
func (cs *ChannelState) BendSemitones() float64 {
	rangeSemi := float64(cs.BendRangeSemi) + float64(cs.BendRangeCents)/100.0
	return float64(cs.Bend-8192) * rangeSemi / 8192.0
}
