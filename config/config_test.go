package config

import (
	"bytes"
	"testing"

	"github.com/BurntSushi/toml"
)

func TestDefaultHasOneToOneVoicePools(t *testing.T) {
	cfg := Default()
	for i, pool := range cfg.Voices {
		if len(pool.OPL3Chans) != 1 || pool.OPL3Chans[0] != i {
			t.Fatalf("channel %d: expected default pool {%d}, got %v", i, i, pool.OPL3Chans)
		}
		if pool.Unison != 1 {
			t.Fatalf("channel %d: expected unison 1, got %d", i, pool.Unison)
		}
	}
	if !cfg.Voice.Enabled {
		t.Fatal("expected voice pooling enabled by default")
	}
	if cfg.Percussion.BD != -1 {
		t.Fatalf("expected unbound percussion drums by default, got BD=%d", cfg.Percussion.BD)
	}
}

func TestConfigTOMLRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.SerialPort = "/dev/ttyUSB0"
	cfg.Voices[3] = Pool{OPL3Chans: []int{3, 4}, Unison: 2, DetuneCents: 7, PanSplit: true}
	cfg.Percussion = Percussion{Enabled: true, BD: 9, SD: 9, TT: -1, CY: -1, HH: -1}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	var got Config
	if _, err := toml.NewDecoder(&buf).Decode(&got); err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if got.SerialPort != cfg.SerialPort {
		t.Fatalf("serial port mismatch: %q != %q", got.SerialPort, cfg.SerialPort)
	}
	if len(got.Voices[3].OPL3Chans) != 2 || got.Voices[3].DetuneCents != 7 || !got.Voices[3].PanSplit {
		t.Fatalf("voice pool 3 did not round trip: %+v", got.Voices[3])
	}
	if got.Percussion != cfg.Percussion {
		t.Fatalf("percussion did not round trip: %+v != %+v", got.Percussion, cfg.Percussion)
	}
}
