package main

import (
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kstaniek/go-socketcan/internal/can"
	"github.com/kstaniek/go-socketcan/internal/hub"
	"github.com/kstaniek/go-socketcan/internal/logging"
)

type appConfig struct {
	serialDev       string
	baud            int
	listenAddr      string
	serialReadTO    time.Duration
	logFormat       string
	logLevel        string
	metricsAddr     string
	hubBuffer       int
	hubPolicy       string
	logMetricsEvery time.Duration
	backend         string
	canIf           string
	maxClients      int
	handshakeTO     time.Duration
	clientReadTO    time.Duration
	clientWriteTO   time.Duration
	mdnsEnable      bool
	mdnsName        string
	canFD           bool
	errMask         uint32
	txSlots         int
	rxBuffer        int
	clientErrors    bool
	capturePath     string
	logFile         string
	logMaxSize      int
}

func parseFlags() (*appConfig, bool) {
	cfg := &appConfig{}
	serialDev := flag.String("serial", "/dev/ttyUSB0", "Serial device path")
	baud := flag.Int("baud", 115200, "Serial baud rate")
	listen := flag.String("listen", ":20000", "TCP listen address")
	serialReadTO := flag.Duration("serial-read-timeout", 50*time.Millisecond, "Serial read timeout")
	logFormat := flag.String("log-format", "text", "Log format: text|json")
	logLevel := flag.String("log-level", "info", "Log level: debug|info|warn|error")
	metricsAddr := flag.String("metrics-addr", "", "Metrics HTTP listen address (e.g., :9100); empty disables")
	hubBuf := flag.Int("hub-buffer", 512, "Per-client hub buffer (frames)")
	hubPolicy := flag.String("hub-policy", "drop", "Backpressure policy: drop|kick")
	logMetricsEvery := flag.Duration("log-metrics-interval", 0, "If >0, periodically log metrics counters (for non-Prometheus setups)")
	backend := flag.String("backend", "socketcan", "CAN backend: serial|socketcan (default socketcan)")
	canIf := flag.String("can-if", "can0", "SocketCAN interface (when --backend=socketcan)")
	maxClients := flag.Int("max-clients", 0, "Maximum simultaneous TCP clients (0 = unlimited)")
	handshakeTO := flag.Duration("handshake-timeout", 3*time.Second, "Client handshake timeout")
	clientReadTO := flag.Duration("client-read-timeout", 60*time.Second, "Per-connection read deadline")
	clientWriteTO := flag.Duration("client-write-timeout", 5*time.Second, "Per-batch write deadline for TCP clients (0 disables)")
	mdnsEnable := flag.Bool("mdns-enable", false, "Enable mDNS/Avahi advertisement (packaged systemd unit enables by default)")
	mdnsName := flag.String("mdns-name", "", "mDNS instance name (default can-server-<hostname>)")
	canFD := flag.Bool("can-fd", false, "Enable CAN FD frames on the SocketCAN socket")
	errMask := flag.Uint("err-mask", uint(can.ErrMaskAll), "CAN_RAW_ERR_FILTER error class mask (0 disables error frames)")
	txSlots := flag.Int("tx-slots", defaultTxSlots, "Transmit queue slots; when full, lower priority pending frames are replaced")
	rxBuffer := flag.Int("rx-buffer", defaultRxBuffer, "Received frames buffered ahead of the hub")
	clientErrors := flag.Bool("client-error-frames", false, "Forward bus error frames to TCP clients")
	capturePath := flag.String("capture", "", "Write received frames to this pcap file (empty disables)")
	logFile := flag.String("log-file", "", "Write logs to this file with rotation instead of stderr")
	logMaxSize := flag.Int("log-max-size", 50, "Rotate -log-file after this many megabytes")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	// Track which flags were explicitly set to give them precedence over env.
	setFlags := map[string]struct{}{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = struct{}{} })
	cfg.serialDev = *serialDev
	cfg.baud = *baud
	cfg.listenAddr = *listen
	cfg.serialReadTO = *serialReadTO
	cfg.logFormat = *logFormat
	cfg.logLevel = *logLevel
	cfg.metricsAddr = *metricsAddr
	cfg.hubBuffer = *hubBuf
	cfg.hubPolicy = *hubPolicy
	cfg.logMetricsEvery = *logMetricsEvery
	cfg.backend = *backend
	cfg.canIf = *canIf
	cfg.maxClients = *maxClients
	cfg.handshakeTO = *handshakeTO
	cfg.clientReadTO = *clientReadTO
	cfg.clientWriteTO = *clientWriteTO
	cfg.mdnsEnable = *mdnsEnable
	cfg.mdnsName = *mdnsName
	cfg.canFD = *canFD
	cfg.errMask = uint32(min(*errMask, uint(math.MaxUint32))) // oversized values fail validate
	cfg.txSlots = *txSlots
	cfg.rxBuffer = *rxBuffer
	cfg.clientErrors = *clientErrors
	cfg.capturePath = *capturePath
	cfg.logFile = *logFile
	cfg.logMaxSize = *logMaxSize

	if err := applyEnvOverrides(cfg, setFlags); err != nil {
		fmt.Printf("environment override error: %v\n", err)
		return nil, *showVersion
	}
	if err := cfg.validate(); err != nil {
		fmt.Printf("configuration error: %v\n", err)
		return nil, *showVersion
	}
	return cfg, *showVersion
}

// validate performs basic semantic validation of the parsed configuration.
// It does not open devices or listeners, it only checks values and ranges.
func (c *appConfig) validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	switch c.logFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format: %s", c.logFormat)
	}
	if _, err := logging.ParseLevel(c.logLevel); err != nil {
		return fmt.Errorf("invalid log-level: %s", c.logLevel)
	}
	switch c.backend {
	case "serial", "socketcan":
	default:
		return fmt.Errorf("invalid backend: %s", c.backend)
	}
	if _, err := hub.ParsePolicy(c.hubPolicy); err != nil {
		return fmt.Errorf("invalid hub-policy: %w", err)
	}
	if c.hubBuffer <= 0 {
		return fmt.Errorf("hub-buffer must be > 0 (got %d)", c.hubBuffer)
	}
	if c.baud <= 0 {
		return fmt.Errorf("baud must be > 0 (got %d)", c.baud)
	}
	if c.serialReadTO <= 0 {
		return fmt.Errorf("serial-read-timeout must be > 0")
	}
	if c.handshakeTO <= 0 {
		return fmt.Errorf("handshake-timeout must be > 0")
	}
	if c.clientReadTO <= 0 {
		return fmt.Errorf("client-read-timeout must be > 0")
	}
	if c.clientWriteTO < 0 {
		return fmt.Errorf("client-write-timeout must be >= 0")
	}
	if c.maxClients < 0 {
		return fmt.Errorf("max-clients must be >= 0")
	}
	if c.errMask > can.CAN_ERR_MASK {
		return fmt.Errorf("err-mask 0x%X exceeds 0x%X", c.errMask, can.CAN_ERR_MASK)
	}
	if c.txSlots <= 0 {
		return fmt.Errorf("tx-slots must be > 0 (got %d)", c.txSlots)
	}
	if c.rxBuffer <= 0 {
		return fmt.Errorf("rx-buffer must be > 0 (got %d)", c.rxBuffer)
	}
	if c.canFD && c.backend != "socketcan" {
		return fmt.Errorf("can-fd requires the socketcan backend")
	}
	if c.logFile != "" && c.logMaxSize <= 0 {
		return fmt.Errorf("log-max-size must be > 0 (got %d)", c.logMaxSize)
	}
	// No extra validation needed for mDNS besides enable flag.
	return nil
}

// envBinder applies CAN_SERVER_* variables to config fields. A variable is
// skipped when its flag was set explicitly or when it is empty; the first
// parse error is kept and the field left unchanged.
type envBinder struct {
	set map[string]struct{}
	err error
}

func (e *envBinder) lookup(flagName, key string, allowEmpty bool) (string, bool) {
	if _, ok := e.set[flagName]; ok {
		return "", false
	}
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	if !ok || (v == "" && !allowEmpty) {
		return "", false
	}
	return v, true
}

func (e *envBinder) fail(key string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("invalid %s: %w", key, err)
	}
}

func (e *envBinder) str(flagName, key string, dst *string) {
	if v, ok := e.lookup(flagName, key, false); ok {
		*dst = v
	}
}

func (e *envBinder) boolean(flagName, key string, dst *bool) {
	v, ok := e.lookup(flagName, key, false)
	if !ok {
		return
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		*dst = true
	case "0", "false", "no", "off":
		*dst = false
	default:
		e.fail(key, fmt.Errorf("not a boolean: %q", v))
	}
}

// integer accepts values >= lo.
func (e *envBinder) integer(flagName, key string, lo int, dst *int) {
	v, ok := e.lookup(flagName, key, false)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err == nil && n < lo {
		err = fmt.Errorf("must be >= %d", lo)
	}
	if err != nil {
		e.fail(key, err)
		return
	}
	*dst = n
}

// duration accepts time.ParseDuration values; zero only when allowZero.
func (e *envBinder) duration(flagName, key string, allowZero bool, dst *time.Duration) {
	v, ok := e.lookup(flagName, key, false)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err == nil && (d < 0 || (d == 0 && !allowZero)) {
		err = fmt.Errorf("out of range: %s", d)
	}
	if err != nil {
		e.fail(key, err)
		return
	}
	*dst = d
}

// mask accepts decimal, 0x hex or 0 octal 32-bit values.
func (e *envBinder) mask(flagName, key string, dst *uint32) {
	v, ok := e.lookup(flagName, key, false)
	if !ok {
		return
	}
	n, err := strconv.ParseUint(v, 0, 32)
	if err != nil {
		e.fail(key, err)
		return
	}
	*dst = uint32(n)
}

// applyEnvOverrides maps CAN_SERVER_* environment variables to config fields
// unless the corresponding flag was explicitly set.
func applyEnvOverrides(c *appConfig, set map[string]struct{}) error {
	e := &envBinder{set: set}
	e.str("serial", "CAN_SERVER_SERIAL", &c.serialDev)
	e.integer("baud", "CAN_SERVER_BAUD", 1, &c.baud)
	e.str("listen", "CAN_SERVER_LISTEN", &c.listenAddr)
	e.duration("serial-read-timeout", "CAN_SERVER_SERIAL_READ_TIMEOUT", false, &c.serialReadTO)
	e.str("log-format", "CAN_SERVER_LOG_FORMAT", &c.logFormat)
	e.str("log-level", "CAN_SERVER_LOG_LEVEL", &c.logLevel)
	// An empty CAN_SERVER_METRICS disables the endpoint.
	if v, ok := e.lookup("metrics-addr", "CAN_SERVER_METRICS", true); ok {
		c.metricsAddr = v
	}
	e.integer("hub-buffer", "CAN_SERVER_HUB_BUFFER", 1, &c.hubBuffer)
	e.str("hub-policy", "CAN_SERVER_HUB_POLICY", &c.hubPolicy)
	e.str("backend", "CAN_SERVER_BACKEND", &c.backend)
	e.str("can-if", "CAN_SERVER_IF", &c.canIf)
	e.integer("max-clients", "CAN_SERVER_MAX_CLIENTS", 0, &c.maxClients)
	e.duration("handshake-timeout", "CAN_SERVER_HANDSHAKE_TIMEOUT", false, &c.handshakeTO)
	e.duration("client-read-timeout", "CAN_SERVER_CLIENT_READ_TIMEOUT", false, &c.clientReadTO)
	e.duration("client-write-timeout", "CAN_SERVER_CLIENT_WRITE_TIMEOUT", true, &c.clientWriteTO)
	e.boolean("mdns-enable", "CAN_SERVER_MDNS_ENABLE", &c.mdnsEnable)
	e.str("mdns-name", "CAN_SERVER_MDNS_NAME", &c.mdnsName)
	e.duration("log-metrics-interval", "CAN_SERVER_LOG_METRICS_INTERVAL", true, &c.logMetricsEvery)
	e.boolean("can-fd", "CAN_SERVER_CAN_FD", &c.canFD)
	e.mask("err-mask", "CAN_SERVER_ERR_MASK", &c.errMask)
	e.integer("tx-slots", "CAN_SERVER_TX_SLOTS", 1, &c.txSlots)
	e.integer("rx-buffer", "CAN_SERVER_RX_BUFFER", 1, &c.rxBuffer)
	e.boolean("client-error-frames", "CAN_SERVER_CLIENT_ERROR_FRAMES", &c.clientErrors)
	e.str("capture", "CAN_SERVER_CAPTURE", &c.capturePath)
	e.str("log-file", "CAN_SERVER_LOG_FILE", &c.logFile)
	e.integer("log-max-size", "CAN_SERVER_LOG_MAX_SIZE", 1, &c.logMaxSize)
	return e.err
}
