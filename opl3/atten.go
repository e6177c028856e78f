package opl3

import "math"

// Attenuation converts a pair of normalized 0-127 MIDI controller values
// (e.g. volume and expression, or mod-wheel and brightness) into an OPL3
// 6-bit total-level attenuation. Either input at zero silences the
// operator outright (attenuation 63); otherwise it's -20*log10(product)/0.75
// clamped to the 0-63 range the chip's total-level field supports.
func Attenuation(a, b int) uint8 {
	if a <= 0 || b <= 0 {
		return 63
	}
	m := (float64(a) / 127.0) * (float64(b) / 127.0)
	if m < 0.001 {
		return 63
	}
	v := int(math.Round(-20 * math.Log10(m) / 0.75))
	if v < 0 {
		v = 0
	}
	if v > 63 {
		v = 63
	}
	return uint8(v)
}

// VelocityAttenuation is the additive term note-on combines with the base
// carrier attenuation: harder hits (higher velocity) subtract less.
func VelocityAttenuation(velocity int) int {
	return (127 - velocity) / 2
}

// ClampAtten clamps a total-level sum into the 0-63 field.
func ClampAtten(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 63 {
		return 63
	}
	return uint8(v)
}
