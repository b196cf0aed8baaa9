package main

import (
	"context"
	"slices"
	"strings"
	"testing"
)

func TestMDNSTXT(t *testing.T) {
	cfg := &appConfig{backend: "socketcan", canIf: "can1", canFD: true, clientErrors: true}
	txt := mdnsTXT(cfg)
	for _, want := range []string{"backend=socketcan", "fd=true", "error_frames=true", "if=can1"} {
		if !slices.Contains(txt, want) {
			t.Fatalf("missing %q in %v", want, txt)
		}
	}

	cfg = &appConfig{backend: "serial", canFD: true}
	txt = mdnsTXT(cfg)
	if !slices.Contains(txt, "fd=false") {
		t.Fatalf("serial backend must never advertise fd: %v", txt)
	}
	for _, r := range txt {
		if strings.HasPrefix(r, "if=") {
			t.Fatalf("serial backend advertises interface: %v", txt)
		}
	}
}

func TestMDNSInstance(t *testing.T) {
	if got := mdnsInstance(&appConfig{mdnsName: "bench"}); got != "bench" {
		t.Fatalf("got %q", got)
	}
	if got := mdnsInstance(&appConfig{}); !strings.HasPrefix(got, "can-server-") {
		t.Fatalf("got %q", got)
	}
}

func TestStartMDNSDisabled(t *testing.T) {
	stop, err := startMDNS(context.Background(), &appConfig{}, 20000)
	if err != nil {
		t.Fatalf("disabled mdns: %v", err)
	}
	stop()
}

func TestListenPort(t *testing.T) {
	for addr, want := range map[string]int{
		"[::]:20000":     20000,
		":8080":          8080,
		"127.0.0.1:1234": 1234,
		"nope":           0,
		"host:http":      0,
		":70000":         0,
	} {
		if got := listenPort(addr); got != want {
			t.Fatalf("listenPort(%q) = %d, want %d", addr, got, want)
		}
	}
}
