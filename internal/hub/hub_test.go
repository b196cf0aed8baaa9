package hub

import (
	"testing"
	"time"

	"github.com/kstaniek/go-socketcan/internal/can"
)

func extFrame(t *testing.T, id uint32) can.Frame {
	t.Helper()
	f, ok := can.NewDataFrame(can.ExtendedIDUnchecked(id).ID(), nil)
	if !ok {
		t.Fatalf("build frame 0x%X", id)
	}
	return f
}

func TestHub_Broadcast_DropDoesNotBlock(t *testing.T) {
	h := New()
	cl := NewClient(4)
	h.Add(cl)
	defer h.Remove(cl)

	// Don't read from cl.Out to simulate slow client
	fr := extFrame(t, 0x123)
	start := time.Now()
	for i := 0; i < 1000; i++ {
		h.Broadcast(fr)
	}
	elapsed := time.Since(start)
	if elapsed > time.Second {
		t.Fatalf("Broadcast took too long: %s", elapsed)
	}
	if len(cl.Out) != cap(cl.Out) {
		t.Fatalf("expected client buffer to be full, got len=%d cap=%d", len(cl.Out), cap(cl.Out))
	}
}

func TestHub_Broadcast_DropKeepsOthersFlowing(t *testing.T) {
	h := New()
	slow := NewClient(1)
	fast := NewClient(16)
	h.Add(slow)
	h.Add(fast)
	defer h.Remove(slow)
	defer h.Remove(fast)

	h.Broadcast(extFrame(t, 0x1))
	for i := 0; i < 10; i++ {
		h.Broadcast(extFrame(t, 0x2))
	}

	got := 0
	timeout := time.After(200 * time.Millisecond)
loop:
	for {
		select {
		case <-fast.Out:
			got++
			if got >= 5 {
				break loop
			}
		case <-timeout:
			break loop
		}
	}
	if got == 0 {
		t.Fatalf("fast client did not receive any frames while slow was backpressured")
	}
}

func TestHub_Broadcast_KickClosesSlowClient(t *testing.T) {
	h := New()
	h.Policy = PolicyKick
	slow := NewClient(1)
	h.Add(slow)
	defer h.Remove(slow)

	h.Broadcast(extFrame(t, 0x1))
	h.Broadcast(extFrame(t, 0x1))
	select {
	case <-slow.Closed:
	default:
		t.Fatalf("expected slow client to be kicked")
	}
}

func TestHub_ErrorFramesOptIn(t *testing.T) {
	h := New()
	plain := NewClient(4)
	diag := NewClient(4)
	diag.WantErrors = true
	h.Add(plain)
	h.Add(diag)
	defer h.Remove(plain)
	defer h.Remove(diag)

	ef := can.EncodeBusError(can.BusError{Type: can.BusErrBusOff})
	if n := h.Broadcast(ef); n != 1 {
		t.Fatalf("error frame reached %d clients, want 1", n)
	}
	if len(plain.Out) != 0 || len(diag.Out) != 1 {
		t.Fatalf("plain=%d diag=%d", len(plain.Out), len(diag.Out))
	}
	if n := h.Broadcast(extFrame(t, 0x10)); n != 2 {
		t.Fatalf("data frame reached %d clients, want 2", n)
	}
}

func TestHub_ClientFilter(t *testing.T) {
	h := New()
	cl := NewClient(4)
	cl.Filter = func(f can.Frame) bool { return f.IsExtended() }
	h.Add(cl)
	defer h.Remove(cl)

	std, _ := can.NewDataFrame(can.StandardIDUnchecked(0x10).ID(), nil)
	h.Broadcast(std)
	h.Broadcast(extFrame(t, 0x10))
	if len(cl.Out) != 1 {
		t.Fatalf("expected only the extended frame, got %d", len(cl.Out))
	}
	if fr := <-cl.Out; !fr.IsExtended() {
		t.Fatalf("unexpected frame %v", fr.ID())
	}
}

func TestHub_RemoveIdempotent(t *testing.T) {
	h := New()
	cl := NewClient(1)
	h.Add(cl)
	h.Remove(cl)
	h.Remove(cl)
	if h.Count() != 0 {
		t.Fatalf("count=%d", h.Count())
	}
}

func TestParsePolicy(t *testing.T) {
	cases := map[string]BackpressurePolicy{"drop": PolicyDrop, "": PolicyDrop, "KICK": PolicyKick, " kick ": PolicyKick}
	for in, want := range cases {
		got, err := ParsePolicy(in)
		if err != nil || got != want {
			t.Fatalf("ParsePolicy(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParsePolicy("block"); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
}
