// Package hw implements the two lowest layers of the bridge: the Hardware
// Buffer that accumulates OPL3 register writes into chip-side command
// frames, and the Shadow State that mirrors every register the chip holds
// so reads and read-modify-writes are possible on a write-only part.
package hw

import (
	"io"
	"sync"

	"retrowave/log"
	"retrowave/protocol"
)

// frameHeader marks the start of an SPI-target command frame; 0x12 selects
// the OPL3 as the addressed peripheral.
var frameHeader = [2]byte{0x42, 0x12}

// Buffer accumulates register writes and flushes them, packed, to a byte
// sink. All three operations (Reset, Queue, Flush) are guarded by the same
// mutex; callers that need atomicity across several Queue calls hold the
// lock themselves via Lock/Unlock.
type Buffer struct {
	mu  sync.Mutex
	buf []byte
}

func NewBuffer() *Buffer {
	b := &Buffer{}
	b.reset()
	return b
}

func (b *Buffer) Lock()   { b.mu.Lock() }
func (b *Buffer) Unlock() { b.mu.Unlock() }

// Reset clears the buffer back to the bare frame header.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reset()
}

func (b *Buffer) reset() {
	b.buf = append(b.buf[:0], frameHeader[0], frameHeader[1])
}

// Queue appends one OPL3 register write addressed to the given port
// (0 or 1) and register.
func (b *Buffer) Queue(port int, addr, data uint8) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queueLocked(port, addr, data)
}

// QueueLocked is Queue for callers that already hold the lock (e.g. Direct
// Mode's note-on, which must enqueue several register writes atomically
// with respect to the flusher).
func (b *Buffer) QueueLocked(port int, addr, data uint8) {
	b.queueLocked(port, addr, data)
}

func (b *Buffer) queueLocked(port int, addr, data uint8) {
	var latchAddr, latchData byte
	if port == 0 {
		latchAddr, latchData = 0xE1, 0xE3
	} else {
		latchAddr, latchData = 0xE5, 0xE7
	}
	b.buf = append(b.buf, latchAddr, addr, latchData, data, 0xFB, data)
}

// Flush packs the accumulated writes and sends them to sink, then resets
// the buffer to the bare header regardless of write error (the chip-side
// state is unknown after a failed write either way, so there is nothing
// useful to retry against a stale buffer).
func (b *Buffer) Flush(sink io.Writer) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	packed := protocol.Pack(b.buf)
	b.reset()

	if sink == nil {
		return nil
	}
	_, err := sink.Write(packed)
	if err != nil {
		log.ModHW.WarnZ("serial write failed").Err(err).End()
	}
	return err
}
