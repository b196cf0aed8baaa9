package main

import (
	"os"
	"testing"
	"time"
)

func TestApplyEnvOverrides_Basic(t *testing.T) {
	base := &appConfig{
		serialDev:       "/dev/null",
		baud:            115200,
		listenAddr:      ":20000",
		serialReadTO:    50 * time.Millisecond,
		logFormat:       "text",
		logLevel:        "info",
		metricsAddr:     "",
		hubBuffer:       512,
		hubPolicy:       "drop",
		backend:         "socketcan",
		canIf:           "can0",
		maxClients:      0,
		handshakeTO:     3 * time.Second,
		clientReadTO:    60 * time.Second,
		logMetricsEvery: 0,
		mdnsEnable:      false,
		mdnsName:        "",
	}

	// Set env overrides
	os.Setenv("CAN_SERVER_BAUD", "230400")
	os.Setenv("CAN_SERVER_MDNS_ENABLE", "true")
	os.Setenv("CAN_SERVER_SERIAL_READ_TIMEOUT", "100ms")
	os.Setenv("CAN_SERVER_LOG_METRICS_INTERVAL", "5s")
	t.Cleanup(func() {
		os.Unsetenv("CAN_SERVER_BAUD")
		os.Unsetenv("CAN_SERVER_MDNS_ENABLE")
		os.Unsetenv("CAN_SERVER_SERIAL_READ_TIMEOUT")
		os.Unsetenv("CAN_SERVER_LOG_METRICS_INTERVAL")
	})
	if err := applyEnvOverrides(base, map[string]struct{}{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if base.baud != 230400 {
		t.Fatalf("expected baud override, got %d", base.baud)
	}
	if !base.mdnsEnable {
		t.Fatalf("expected mdnsEnable true")
	}
	if base.serialReadTO != 100*time.Millisecond {
		t.Fatalf("expected serialReadTO 100ms got %v", base.serialReadTO)
	}
	if base.logMetricsEvery != 5*time.Second {
		t.Fatalf("expected logMetricsEvery 5s got %v", base.logMetricsEvery)
	}
}

func TestApplyEnvOverrides_FlagPrecedence(t *testing.T) {
	base := &appConfig{baud: 115200}
	os.Setenv("CAN_SERVER_BAUD", "230400")
	t.Cleanup(func() { os.Unsetenv("CAN_SERVER_BAUD") })
	// Simulate user passed -baud flag (so env should be ignored)
	if err := applyEnvOverrides(base, map[string]struct{}{"baud": {}}); err != nil {
		t.Fatalf("err: %v", err)
	}
	if base.baud != 115200 {
		t.Fatalf("expected baud unchanged 115200 got %d", base.baud)
	}
}

func TestApplyEnvOverrides_BadInt(t *testing.T) {
	base := &appConfig{hubBuffer: 512}
	os.Setenv("CAN_SERVER_HUB_BUFFER", "notint")
	t.Cleanup(func() { os.Unsetenv("CAN_SERVER_HUB_BUFFER") })
	if err := applyEnvOverrides(base, map[string]struct{}{}); err == nil {
		t.Fatalf("expected error for bad integer")
	}
}

func TestApplyEnvOverrides_CANOptions(t *testing.T) {
	base := &appConfig{txSlots: 1024, rxBuffer: 1024}
	t.Setenv("CAN_SERVER_CAN_FD", "yes")
	t.Setenv("CAN_SERVER_ERR_MASK", "0x40")
	t.Setenv("CAN_SERVER_TX_SLOTS", "8")
	t.Setenv("CAN_SERVER_RX_BUFFER", "32")
	t.Setenv("CAN_SERVER_CAPTURE", "/tmp/bus.pcap")
	t.Setenv("CAN_SERVER_CLIENT_ERROR_FRAMES", "1")
	t.Setenv("CAN_SERVER_LOG_FILE", "/tmp/can.log")
	t.Setenv("CAN_SERVER_CLIENT_WRITE_TIMEOUT", "0")
	base.clientWriteTO = time.Second
	if err := applyEnvOverrides(base, map[string]struct{}{"rx-buffer": {}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !base.canFD || !base.clientErrors {
		t.Fatalf("expected bool overrides, got fd=%v errors=%v", base.canFD, base.clientErrors)
	}
	if base.errMask != 0x40 {
		t.Fatalf("expected errMask 0x40 got 0x%X", base.errMask)
	}
	if base.txSlots != 8 {
		t.Fatalf("expected txSlots 8 got %d", base.txSlots)
	}
	if base.rxBuffer != 1024 {
		t.Fatalf("flag should win for rx-buffer, got %d", base.rxBuffer)
	}
	if base.clientWriteTO != 0 {
		t.Fatalf("write timeout 0 should disable, got %v", base.clientWriteTO)
	}
	if base.capturePath != "/tmp/bus.pcap" || base.logFile != "/tmp/can.log" {
		t.Fatalf("paths not applied: %q %q", base.capturePath, base.logFile)
	}
}

func TestApplyEnvOverrides_BadErrMask(t *testing.T) {
	base := &appConfig{}
	t.Setenv("CAN_SERVER_ERR_MASK", "0xZZ")
	if err := applyEnvOverrides(base, map[string]struct{}{}); err == nil {
		t.Fatalf("expected error for bad mask")
	}
}

func TestApplyEnvOverrides_ZeroSlots(t *testing.T) {
	base := &appConfig{txSlots: 4}
	t.Setenv("CAN_SERVER_TX_SLOTS", "0")
	if err := applyEnvOverrides(base, map[string]struct{}{}); err == nil {
		t.Fatalf("expected error for zero slots")
	}
	if base.txSlots != 4 {
		t.Fatalf("txSlots changed to %d", base.txSlots)
	}
}

func TestApplyEnvOverrides_BadBool(t *testing.T) {
	base := &appConfig{canFD: true}
	t.Setenv("CAN_SERVER_CAN_FD", "maybe")
	if err := applyEnvOverrides(base, map[string]struct{}{}); err == nil {
		t.Fatalf("expected error for bad boolean")
	}
	if !base.canFD {
		t.Fatalf("canFD changed on parse error")
	}
}

func TestApplyEnvOverrides_EmptyMetricsDisables(t *testing.T) {
	base := &appConfig{metricsAddr: ":9100", canIf: "can0"}
	t.Setenv("CAN_SERVER_METRICS", "")
	t.Setenv("CAN_SERVER_IF", "")
	if err := applyEnvOverrides(base, map[string]struct{}{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if base.metricsAddr != "" || base.canIf != "can0" {
		t.Fatalf("metrics=%q if=%q", base.metricsAddr, base.canIf)
	}
}
