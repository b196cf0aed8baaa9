package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	mdnsServiceType = "_can-server._tcp"
	mdnsDomain      = "local."
)

// listenPort extracts the TCP port from a bound listener address such as
// "[::]:20000" or ":20000". It returns 0 when none can be found.
func listenPort(addr string) int {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(p)
	if err != nil || n < 0 || n > 65535 {
		return 0
	}
	return n
}

// mdnsInstance is the advertised instance name, derived from the hostname
// unless -mdns-name is set.
func mdnsInstance(cfg *appConfig) string {
	if cfg.mdnsName != "" {
		return cfg.mdnsName
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return "can-server-" + host
}

// mdnsTXT lists the TXT records clients use to pick a gateway: the bus
// backend, whether FD frames pass and whether error frames are forwarded.
func mdnsTXT(cfg *appConfig) []string {
	fd := cfg.backend == "socketcan" && cfg.canFD
	txt := []string{
		"backend=" + cfg.backend,
		"fd=" + strconv.FormatBool(fd),
		"error_frames=" + strconv.FormatBool(cfg.clientErrors),
		"version=" + version,
		"commit=" + commit,
	}
	if cfg.backend == "socketcan" {
		txt = append(txt, "if="+cfg.canIf)
	}
	return txt
}

// startMDNS registers the service via mDNS and returns a cleanup function.
// It is a no-op when mDNS is disabled.
func startMDNS(ctx context.Context, cfg *appConfig, port int) (func(), error) {
	if !cfg.mdnsEnable {
		return func() {}, nil
	}
	svc, err := zeroconf.Register(mdnsInstance(cfg), mdnsServiceType, mdnsDomain, port, mdnsTXT(cfg), nil)
	if err != nil {
		return nil, fmt.Errorf("mdns register: %w", err)
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		svc.Shutdown()
	}()
	return func() { close(done); svc.Shutdown(); time.Sleep(50 * time.Millisecond) }, nil
}
