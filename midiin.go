package main

import (
	"bufio"
	"context"
	"io"

	"retrowave/log"
	"retrowave/router"
)

// readMIDI frames a raw MIDI byte stream into complete messages and feeds
// each one to bridge.Process. §7 expects callers to hand it complete
// messages and to expand running status themselves; this is that caller.
// It isn't part of the core (the core never reads a byte stream itself),
// just the CLI's stand-in for a real MIDI transport.
func readMIDI(ctx context.Context, r io.Reader, bridge *router.Bridge, trace *outfile) {
	br := bufio.NewReader(r)
	var runningStatus byte
	for {
		if ctx.Err() != nil {
			return
		}
		msg, err := readOneMessage(br, &runningStatus)
		if err != nil {
			if err != io.EOF {
				log.ModCore.WarnZ("midi read error").Err(err).End()
			}
			return
		}
		if trace != nil {
			traceMessage(trace, "->", msg)
		}
		bridge.Process(msg)
	}
}

func readOneMessage(br *bufio.Reader, runningStatus *byte) ([]byte, error) {
	status, err := nextStatusByte(br, runningStatus)
	if err != nil {
		return nil, err
	}

	if status == 0xF0 {
		msg := []byte{status}
		for {
			b, err := br.ReadByte()
			if err != nil {
				return nil, err
			}
			msg = append(msg, b)
			if b == 0xF7 {
				return msg, nil
			}
		}
	}

	n := dataLen(status)
	msg := make([]byte, 1+n)
	msg[0] = status
	for i := 0; i < n; i++ {
		b, err := br.ReadByte()
		if err != nil {
			return nil, err
		}
		msg[1+i] = b
	}
	return msg, nil
}

// nextStatusByte reads bytes until it has a status byte, expanding running
// status: a data byte (high bit clear) arriving without a fresh status
// reuses the last channel-voice status seen.
func nextStatusByte(br *bufio.Reader, runningStatus *byte) (byte, error) {
	b, err := br.ReadByte()
	if err != nil {
		return 0, err
	}
	if b&0x80 != 0 {
		if b < 0xF0 {
			*runningStatus = b
		}
		return b, nil
	}
	if err := br.UnreadByte(); err != nil {
		return 0, err
	}
	return *runningStatus, nil
}

func dataLen(status byte) int {
	switch status & 0xF0 {
	case 0xC0, 0xD0:
		return 1
	case 0xF0:
		switch status {
		case 0xF1, 0xF3:
			return 1
		case 0xF2:
			return 2
		default:
			return 0
		}
	default:
		return 2
	}
}
