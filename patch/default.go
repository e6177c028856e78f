package patch

import (
	"github.com/go-faster/jx"
)

// defaultPatchJSON describes the organ-like patch applied to every
// channel on a full reset (SysEx 0x20/0x7F). It's kept as data rather
// than a struct literal so the default sound can be hand-tuned by editing
// named JSON fields instead of packed register bytes; it is compiled into
// the binary, so a change still takes a rebuild. Nibble packing/unpacking
// only ever happens on the wire.
const defaultPatchJSON = `{
  "modulator": {"attack": 15, "decay": 4, "sustain": 11, "release": 5, "mult": 1, "ksl_tl": 20, "waveform": 0, "am": false, "vib": false, "egt": true, "ksr": false},
  "carrier":   {"attack": 15, "decay": 4, "sustain": 11, "release": 5, "mult": 1, "ksl_tl": 0,  "waveform": 0, "am": false, "vib": false, "egt": true, "ksr": false},
  "feedback": 5,
  "connection": "fm"
}`

type opSpec struct {
	attack, decay, sustain, release, mult, kslTL, waveform int
	am, vib, egt, ksr                                      bool
}

func parseOp(d *jx.Decoder) (opSpec, error) {
	var o opSpec
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "attack":
			o.attack, err = d.Int()
		case "decay":
			o.decay, err = d.Int()
		case "sustain":
			o.sustain, err = d.Int()
		case "release":
			o.release, err = d.Int()
		case "mult":
			o.mult, err = d.Int()
		case "ksl_tl":
			o.kslTL, err = d.Int()
		case "waveform":
			o.waveform, err = d.Int()
		case "am":
			o.am, err = d.Bool()
		case "vib":
			o.vib, err = d.Bool()
		case "egt":
			o.egt, err = d.Bool()
		case "ksr":
			o.ksr, err = d.Bool()
		default:
			err = d.Skip()
		}
		return err
	})
	return o, err
}

func (o opSpec) regs() OpRegs {
	flag := func(set bool, bit uint) uint8 {
		if set {
			return 1 << bit
		}
		return 0
	}
	return OpRegs{
		AttackDecay:     uint8(o.attack<<4) | uint8(o.decay),
		SustainRelease:  uint8(o.sustain<<4) | uint8(o.release),
		AMVibEgtKsrMult: flag(o.am, 7) | flag(o.vib, 6) | flag(o.egt, 5) | flag(o.ksr, 4) | uint8(o.mult),
		KslTl:           uint8(o.kslTL),
		Waveform:        uint8(o.waveform),
	}
}

var defaultPatch Patch

func init() {
	d := jx.DecodeStr(defaultPatchJSON)
	var mod, car opSpec
	var feedback int
	var connFM = true

	if err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "modulator":
			mod, err = parseOp(d)
		case "carrier":
			car, err = parseOp(d)
		case "feedback":
			feedback, err = d.Int()
		case "connection":
			var s string
			s, err = d.Str()
			connFM = s == "fm"
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		panic("patch: malformed embedded default patch JSON: " + err.Error())
	}

	conn := uint8(feedback&0x07) << 1
	if !connFM {
		conn |= 0x01
	}
	conn |= 0x30 // both speakers, matching the shadow-reset default

	defaultPatch = Patch{
		Op:   [4]OpRegs{mod.regs(), car.regs(), mod.regs(), car.regs()},
		Conn: [2]uint8{conn, conn},
	}
}

// Default returns the patch applied to every channel on a full reset.
func Default() Patch {
	return defaultPatch
}
