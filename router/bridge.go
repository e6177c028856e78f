// Package router wires the Hardware Buffer, Shadow State, Direct Mode and
// Voice Allocator into the single object an embedder drives: feed it MIDI
// messages, run it, and it keeps the serial sink in sync with the chip
// state those messages imply.
package router

import (
	"context"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"retrowave/config"
	"retrowave/direct"
	"retrowave/hw"
	"retrowave/log"
	"retrowave/voice"
)

// FlushInterval is the flusher tick period. The spec requires at least
// 1kHz; 500us gives headroom above that floor.
const FlushInterval = 500 * time.Microsecond

// Bridge owns the full core stack (§9: byte sink <- buffer <- shadow <-
// direct mode <- voice allocator, strictly top-down, no back-references)
// and the bank/direct mode switch in front of it (§6).
type Bridge struct {
	buf    *hw.Buffer
	shadow *hw.Shadow
	direct *direct.Mode
	voice  *voice.Allocator // nil when voice pooling is disabled

	bankMode bool
	sink     io.Writer
}

// New builds a Bridge around sink (the serial byte sink) per cfg. replySink
// receives SysEx reply frames (patch dumps, voice/percussion query
// echoes); pass nil if the embedder has nowhere to route them.
func New(cfg config.Config, sink io.Writer, replySink func([]byte)) *Bridge {
	buf := hw.NewBuffer()
	shadow := hw.NewShadow(buf)
	mode := direct.NewMode(shadow, cfg.DeviceID, replySink)

	b := &Bridge{
		buf:      buf,
		shadow:   shadow,
		direct:   mode,
		bankMode: cfg.Mode == config.ModeBank,
		sink:     sink,
	}
	if cfg.Voice.Enabled {
		b.voice = voice.NewAllocator(mode, cfg.DeviceID, replySink)
		b.applyVoiceConfig(cfg)
	}
	return b
}

// applyVoiceConfig replays a loaded config's voice pools and percussion
// bindings onto a freshly built allocator, the same way the SysEx 0x30/0x32
// apply paths do at runtime.
func (b *Bridge) applyVoiceConfig(cfg config.Config) {
	for ch, pool := range cfg.Voices {
		if len(pool.OPL3Chans) == 0 {
			continue
		}
		b.voice.SetPool(ch, voice.Config{
			OPL3Chans:   pool.OPL3Chans,
			Unison:      pool.Unison,
			DetuneCents: pool.DetuneCents,
			FourOp:      pool.FourOp,
			PanSplit:    pool.PanSplit,
		})
	}
	p := cfg.Percussion
	b.voice.SetPercussion(p.Enabled, [5]int{p.BD, p.SD, p.TT, p.CY, p.HH})
}

// Snapshot captures the allocator's current voice pools and percussion
// bindings into cfg, so the embedder can persist them with config.Save.
func (b *Bridge) Snapshot(cfg config.Config) config.Config {
	if b.voice == nil {
		return cfg
	}
	for ch := range cfg.Voices {
		pool := b.voice.Pool(ch)
		cfg.Voices[ch] = config.Pool{
			OPL3Chans:   pool.OPL3Chans,
			Unison:      pool.Unison,
			DetuneCents: pool.DetuneCents,
			FourOp:      pool.FourOp,
			PanSplit:    pool.PanSplit,
		}
	}
	enabled, bindings := b.voice.PercussionState()
	cfg.Percussion = config.Percussion{
		Enabled: enabled,
		BD:      bindings[0], SD: bindings[1], TT: bindings[2], CY: bindings[3], HH: bindings[4],
	}
	return cfg
}

// SetBankMode switches between Bank and Direct routing at runtime.
func (b *Bridge) SetBankMode(bank bool) { b.bankMode = bank }

// Process dispatches one complete MIDI message. In Bank mode it always
// returns false ("not handled"): the caller must route the message to an
// external FM sequencer instead. In Direct mode it handles the message
// and returns true.
//
// The shadow's lock is held for the whole call, so every register write
// this message produces, however many channels or unison voices it
// touches, is enqueued atomically with respect to the flusher (§5).
func (b *Bridge) Process(msg []byte) bool {
	if b.bankMode {
		return false
	}
	b.shadow.Lock()
	defer b.shadow.Unlock()

	if b.voice != nil {
		return b.voice.Process(msg)
	}
	return b.direct.Process(msg)
}

// Flush packs and writes whatever register writes have accumulated since
// the last flush.
func (b *Bridge) Flush() error {
	return b.buf.Flush(b.sink)
}

// Run drives the flusher loop at FlushInterval until ctx is cancelled.
// Per §5's shutdown ordering, callers should stop feeding Process before
// cancelling ctx (closing the receiver side first); Run itself only owns
// the flusher and, transitively, the sink. It never closes the sink; that
// stays the embedder's responsibility once Run returns.
func (b *Bridge) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ticker := time.NewTicker(FlushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				// Let any in-flight flush tick complete, then do one
				// last flush to drain whatever accumulated since.
				if err := b.Flush(); err != nil {
					log.ModCore.WarnZ("final flush failed").Err(err).End()
				}
				return nil
			case <-ticker.C:
				if err := b.Flush(); err != nil {
					log.ModCore.WarnZ("flush failed").Err(err).End()
				}
			}
		}
	})
	return g.Wait()
}

// Shadow exposes the underlying register mirror for raw SysEx register
// commands and diagnostics.
func (b *Bridge) Shadow() *hw.Shadow { return b.shadow }
