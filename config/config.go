// Package config loads and saves the bridge's persisted settings: the
// bank/direct switch, SysEx device id, which serial/MIDI ports to open on
// startup, and the voice-pool/percussion layout so it survives a restart.
package config

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/kirsle/configdir"

	"retrowave/log"
)

// Mode selects how the router dispatches incoming MIDI (§6).
type Mode string

const (
	ModeBank   Mode = "bank"
	ModeDirect Mode = "direct"
)

const numMIDIChannels = 16

type Config struct {
	Mode     Mode  `toml:"mode"`
	DeviceID uint8 `toml:"device_id"`

	SerialPort string `toml:"serial_port"`

	MIDIPort    string `toml:"midi_port"`
	MIDIVirtual bool   `toml:"midi_virtual"`

	Voice      VoiceConfig           `toml:"voice"`
	Voices     [numMIDIChannels]Pool `toml:"voices"`
	Percussion Percussion            `toml:"percussion"`
}

// VoiceConfig gates whether the allocator is in play at all.
type VoiceConfig struct {
	Enabled bool `toml:"enabled"`
}

// Pool mirrors voice.Config for one MIDI channel, kept as its own type
// here rather than imported directly so this package stays free of a
// dependency on voice (which itself depends on direct and opl3).
type Pool struct {
	OPL3Chans   []int `toml:"opl3_chans"`
	Unison      int   `toml:"unison"`
	DetuneCents int   `toml:"detune_cents"`
	FourOp      bool  `toml:"four_op"`
	PanSplit    bool  `toml:"pan_split"`
}

// Percussion mirrors the SysEx 0x32 payload: whether percussion mode is
// on, and which MIDI channel (if any, -1 for none) drives each drum.
type Percussion struct {
	Enabled bool `toml:"enabled"`
	BD      int  `toml:"bd"`
	SD      int  `toml:"sd"`
	TT      int  `toml:"tt"`
	CY      int  `toml:"cy"`
	HH      int  `toml:"hh"`
}

func defaultPools() [numMIDIChannels]Pool {
	var pools [numMIDIChannels]Pool
	for i := range pools {
		pools[i] = Pool{OPL3Chans: []int{i}, Unison: 1}
	}
	return pools
}

func Default() Config {
	return Config{
		Mode:     ModeDirect,
		DeviceID: 0x7F,
		Voice:    VoiceConfig{Enabled: true},
		Voices:   defaultPools(),
		Percussion: Percussion{
			BD: -1, SD: -1, TT: -1, CY: -1, HH: -1,
		},
	}
}

var dir = sync.OnceValue(func() string {
	d := configdir.LocalConfig("retrowave")
	if err := configdir.MakePath(d); err != nil {
		log.ModConfig.Fatalf("failed to create config directory %s: %v", d, err)
	}
	return d
})

const filename = "config.toml"

// LoadOrDefault loads the configuration from the retrowave config
// directory, or returns Default() if none exists yet or it fails to
// parse.
func LoadOrDefault() Config {
	var cfg Config
	if _, err := toml.DecodeFile(filepath.Join(dir(), filename), &cfg); err != nil {
		return Default()
	}
	return cfg
}

// Save writes cfg into the retrowave config directory.
func Save(cfg Config) error {
	buf, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir(), filename), buf, 0644)
}
