package cnl

import (
	"bytes"
	"io"
	"testing"

	"github.com/kstaniek/go-socketcan/internal/can"
)

// TestDecodeN_MultiFrame verifies DecodeN drains multiple frames from a single buffer.
func TestDecodeN_MultiFrame(t *testing.T) {
	c := Codec{}
	in := []can.Frame{mkFrame(0x10, 8), mkFD(0x11, 48, can.CANFD_BRS), mkFrame(0x12, 0)}
	buf := bytes.NewReader(c.Encode(in))
	var out []can.Frame
	n, err := c.DecodeN(buf, 0, func(f can.Frame) { out = append(out, f) })
	if err != io.EOF && err != nil { // EOF expected at clean end
		t.Fatalf("DecodeN err=%v", err)
	}
	if n != len(in) || len(out) != len(in) {
		t.Fatalf("decoded %d collected %d want %d", n, len(out), len(in))
	}
	for i := range in {
		if !sameFrame(in[i], out[i]) {
			t.Fatalf("frame %d mismatch", i)
		}
	}
}

// TestDecodeN_Max stops after max frames without consuming the rest.
func TestDecodeN_Max(t *testing.T) {
	c := Codec{}
	in := []can.Frame{mkFrame(0x20, 1), mkFrame(0x21, 2), mkFrame(0x22, 3)}
	buf := bytes.NewReader(c.Encode(in))
	n, err := c.DecodeN(buf, 2, func(can.Frame) {})
	if err != nil || n != 2 {
		t.Fatalf("n=%d err=%v", n, err)
	}
	fr, err := c.Decode(buf)
	if err != nil || !sameFrame(fr, in[2]) {
		t.Fatalf("third frame: %v", err)
	}
}
