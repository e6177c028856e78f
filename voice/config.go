// Package voice implements the polyphony layer in front of Direct Mode:
// one configurable pool of OPL3 channels per MIDI channel, unison
// detuning, note stealing, and the fixed percussion-channel bindings.
package voice

import "retrowave/direct"

// Config describes one MIDI channel's voice pool (§4.5.6).
type Config struct {
	OPL3Chans   []int
	Unison      int
	DetuneCents int
	FourOp      bool
	PanSplit    bool
}

func defaultConfig(midiCh int) Config {
	return Config{OPL3Chans: []int{midiCh}, Unison: 1}
}

// Slot is one sounding unison voice (§4.5.2/§4.5.8).
type Slot struct {
	OPL3Ch        int
	Note          int
	Timestamp     uint64
	HeldBySustain bool
}

const nullParam = 0x7F

// channelShadow mirrors the per-MIDI-channel CC/NRPN/RPN/bend state the
// allocator applies to every OPL3 channel as it enters a pool (§4.5.1).
type channelShadow struct {
	Volume, Expression, Pan, ModWheel, Brightness int
	Sustain                                       bool
	Bend                                          int
	BendRangeSemi, BendRangeCents                 int
	NRPNMSB, NRPNLSB, RPNMSB, RPNLSB              int
}

func newChannelShadow() channelShadow {
	return channelShadow{
		Volume: 100, Expression: 127, Pan: 64, Brightness: 64,
		Bend: 8192, BendRangeSemi: 2,
		NRPNMSB: nullParam, NRPNLSB: nullParam, RPNMSB: nullParam, RPNLSB: nullParam,
	}
}

func (cs *channelShadow) nrpnActive() bool {
	return cs.NRPNMSB != nullParam && cs.NRPNLSB != nullParam
}

func (cs *channelShadow) rpnIsBendRange() bool {
	return cs.RPNMSB == 0 && cs.RPNLSB == 0
}

// applyTo replays this channel's shadow CCs onto one newly assigned OPL3
// channel, per §4.5.1 and the reapply step of §4.5.6.
func (cs *channelShadow) applyTo(mode *direct.Mode, opl3Ch int) {
	mode.ApplyCC(opl3Ch, 7, cs.Volume)
	mode.ApplyCC(opl3Ch, 10, cs.Pan)
	mode.ApplyCC(opl3Ch, 11, cs.Expression)
	mode.ApplyCC(opl3Ch, 1, cs.ModWheel)
	mode.ApplyCC(opl3Ch, 74, cs.Brightness)
}
