package cnl

import (
	"bytes"
	"io"
	"testing"

	"github.com/kstaniek/go-socketcan/internal/can"
)

// FuzzCodecRoundTrip feeds arbitrary packets to the decoder. Whatever it
// accepts must survive a second encode/decode pass unchanged.
func FuzzCodecRoundTrip(f *testing.F) {
	c := Codec{}
	seed := [][]can.Frame{{mkFrame(0x100, 0)}, {mkFrame(0x200, 8)}, {mkFrame(0x300, 3), mkFD(0x301, 16, can.CANFD_BRS)}}
	for _, s := range seed {
		f.Add(c.Encode(s))
	}
	f.Fuzz(func(t *testing.T, data []byte) {
		var first []can.Frame
		_, _ = c.DecodeN(bytes.NewReader(data), 16, func(fr can.Frame) { first = append(first, fr) })
		wire := c.Encode(first)
		var second []can.Frame
		if _, err := c.DecodeN(bytes.NewReader(wire), 0, func(fr can.Frame) { second = append(second, fr) }); err != nil && err != io.EOF {
			t.Fatalf("re-decode failed: %v (% X)", err, wire)
		}
		if len(second) != len(first) {
			t.Fatalf("re-decode count %d want %d", len(second), len(first))
		}
		for i := range first {
			if !sameFrame(first[i], second[i]) {
				t.Fatalf("frame %d changed across round trip", i)
			}
		}
	})
}

// FuzzCodecDecodeInvalid ensures decoder doesn't panic with random input.
func FuzzCodecDecodeInvalid(f *testing.F) {
	c := Codec{}
	f.Add([]byte{0, 0, 0, 1, 0})
	f.Add([]byte{0x20, 0, 0, 0x40, 8, 0, 0, 0, 0, 0, 0, 0, 0})
	f.Fuzz(func(t *testing.T, data []byte) {
		_, _ = c.Decode(bytes.NewReader(data))
	})
}
