package serial

import (
	"bytes"
	"testing"

	"github.com/kstaniek/go-socketcan/internal/can"
	"github.com/kstaniek/go-socketcan/internal/metrics"
)

// TestDecodeStreamMalformed ensures malformed length / checksum increment metric.
func TestDecodeStreamMalformed(t *testing.T) {
	var buf bytes.Buffer
	codec := Codec{}
	before := metrics.Snap().Malformed

	// Build a valid small frame then corrupt checksum.
	data := []byte{0, 0, 0, 1, 0xAA} // ID + 1B payload
	frame := canUARTSend(data)       // returns preamble 2D D4 len checksum
	frame[len(frame)-1] ^= 0xFF      // corrupt checksum
	buf.Write(frame)
	if err := codec.DecodeStream(&buf, func(_ can.Frame) {}); err != nil {
		t.Fatalf("DecodeStream error: %v", err)
	}
	after := metrics.Snap().Malformed
	if after <= before {
		t.Fatalf("expected malformed metric increment, before=%d after=%d", before, after)
	}
}

// TestDecodeStreamResync skips garbage and a bad length before a valid frame.
func TestDecodeStreamResync(t *testing.T) {
	var buf bytes.Buffer
	codec := Codec{}
	buf.Write([]byte{0x00, 0x11, 0x2D, 0xD4, 0x40})
	buf.Write(canUARTSend([]byte{0, 0, 0, 7, 0x01}))
	var got []can.Frame
	if err := codec.DecodeStream(&buf, func(f can.Frame) { got = append(got, f) }); err != nil {
		t.Fatalf("DecodeStream error: %v", err)
	}
	if len(got) != 1 || can.RawID(got[0]) != 7 || !got[0].IsExtended() {
		t.Fatalf("got %d frames", len(got))
	}
}

func TestParseEnvelope(t *testing.T) {
	good := canUARTSend([]byte{0x00, 0x00, 0x01, 0x23, 0xAA, 0xBB})
	if good[len(good)-1] != 0xBD {
		t.Fatalf("checksum %02X", good[len(good)-1])
	}
	f, n, st := parseEnvelope(good)
	if st != envOK || n != len(good) || can.RawID(f) != 0x123 || !f.IsExtended() {
		t.Fatalf("parse good: st=%d n=%d", st, n)
	}
	if _, _, st := parseEnvelope(good[:len(good)-1]); st != envShort {
		t.Fatalf("truncated envelope: st=%d", st)
	}
	bad := append([]byte(nil), good...)
	bad[len(bad)-1]++
	if _, _, st := parseEnvelope(bad); st != envBad {
		t.Fatalf("bad checksum: st=%d", st)
	}
	if _, _, st := parseEnvelope([]byte{pre0, pre1, 0x20, 0}); st != envBad {
		t.Fatalf("oversized len: st=%d", st)
	}
}
