package main

import (
	"testing"
	"time"
)

func TestConfigValidate_OK(t *testing.T) {
	c := &appConfig{
		serialDev:    "/dev/null",
		baud:         115200,
		listenAddr:   ":20000",
		serialReadTO: 10 * time.Millisecond,
		logFormat:    "text",
		logLevel:     "info",
		hubBuffer:    8,
		hubPolicy:    "drop",
		backend:      "serial",
		canIf:        "can0",
		maxClients:   0,
		handshakeTO:  time.Second,
		clientReadTO: time.Second,
		errMask:      0x1FFFFFFF,
		txSlots:      16,
		rxBuffer:     16,
	}
	if err := c.validate(); err != nil {
		t.Fatalf("expected ok got %v", err)
	}
}

func TestConfigValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*appConfig)
	}{
		{"badFormat", func(c *appConfig) { c.logFormat = "xx" }},
		{"badLevel", func(c *appConfig) { c.logLevel = "nope" }},
		{"badBackend", func(c *appConfig) { c.backend = "x" }},
		{"badPolicy", func(c *appConfig) { c.hubPolicy = "x" }},
		{"badHubBuf", func(c *appConfig) { c.hubBuffer = 0 }},
		{"badBaud", func(c *appConfig) { c.baud = 0 }},
		{"badSerialTO", func(c *appConfig) { c.serialReadTO = 0 }},
		{"badHandshakeTO", func(c *appConfig) { c.handshakeTO = 0 }},
		{"badClientReadTO", func(c *appConfig) { c.clientReadTO = 0 }},
		{"negClientWriteTO", func(c *appConfig) { c.clientWriteTO = -time.Second }},
		{"badMaxClients", func(c *appConfig) { c.maxClients = -1 }},
		{"badErrMask", func(c *appConfig) { c.errMask = 0x20000000 }},
		{"badTxSlots", func(c *appConfig) { c.txSlots = 0 }},
		{"badRxBuffer", func(c *appConfig) { c.rxBuffer = 0 }},
		{"fdOnSerial", func(c *appConfig) { c.canFD = true }},
		{"badLogMaxSize", func(c *appConfig) { c.logFile = "/tmp/x.log"; c.logMaxSize = 0 }},
	}
	for _, tc := range tests {
		base := &appConfig{
			serialDev: "/dev/null", baud: 115200, listenAddr: ":20000", serialReadTO: 10 * time.Millisecond,
			logFormat: "text", logLevel: "info", hubBuffer: 8, hubPolicy: "drop", backend: "serial", canIf: "can0",
			maxClients: 0, handshakeTO: time.Second, clientReadTO: time.Second,
			txSlots: 16, rxBuffer: 16,
		}
		tc.mod(base)
		if err := base.validate(); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestConfigValidate_FDOnSocketCAN(t *testing.T) {
	c := &appConfig{
		baud: 115200, serialReadTO: time.Millisecond, logFormat: "json", logLevel: "DEBUG",
		hubBuffer: 1, hubPolicy: "kick", backend: "socketcan", canIf: "vcan0",
		handshakeTO: time.Second, clientReadTO: time.Second,
		canFD: true, errMask: 0x40, txSlots: 1, rxBuffer: 1,
	}
	if err := c.validate(); err != nil {
		t.Fatalf("expected ok got %v", err)
	}
}
