package hw

import (
	"bytes"
	"testing"
)

func TestBufferQueueFrame(t *testing.T) {
	b := NewBuffer()
	b.Queue(0, 0xA0, 0x12)
	b.Queue(1, 0xB3, 0x20)

	var out bytes.Buffer
	if err := b.Flush(&out); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if out.Len() == 0 {
		t.Fatal("expected packed bytes written to sink")
	}
}

func TestBufferFlushResetsToHeader(t *testing.T) {
	b := NewBuffer()
	b.Queue(0, 0xA0, 0x12)

	var out bytes.Buffer
	if err := b.Flush(&out); err != nil {
		t.Fatalf("flush: %v", err)
	}

	// After flush, the internal buffer is back to the bare 2-byte header;
	// flushing again produces the minimal packed header-only frame.
	var out2 bytes.Buffer
	if err := b.Flush(&out2); err != nil {
		t.Fatalf("second flush: %v", err)
	}
	if out2.Len() == 0 {
		t.Fatal("expected a framed (if empty) write on the second flush")
	}
}
